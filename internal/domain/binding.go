package domain

import "sort"

// Binding maps variable names to the atoms they are grounded to.
type Binding map[string]*Atom

func NewBinding() Binding {
	return make(Binding, 4)
}

// Copy makes a shallow copy of the Binding.
func (b Binding) Copy() Binding {
	acc := make(Binding, len(b))
	for k, v := range b {
		acc[k] = v
	}
	return acc
}

// Names returns the bound variable names in sorted order.
func (b Binding) Names() []string {
	names := make([]string, 0, len(b))
	for k := range b {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Handles returns the grounding handle of every variable.
func (b Binding) Handles() map[string]Handle {
	out := make(map[string]Handle, len(b))
	for k, v := range b {
		out[k] = v.Handle()
	}
	return out
}

package domain

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrUnknownType  = errors.New("unknown atom type")
	ErrTypeConflict = errors.New("atom type already registered with a different parent")
)

// Type identifies an atom type. Ids are assigned in registration order and are
// only stable within one process; persist type names, not ids.
type Type uint16

// Built-in types. The registry always contains these, in this order.
const (
	AtomType Type = iota
	NodeType
	LinkType

	VariableNode
	ConceptNode
	PredicateNode
	NumberNode
	SchemaNode

	OrderedLink
	UnorderedLink
	ListLink
	InheritanceLink
	EvaluationLink
	ImplicationLink
	ExecutionLink
	AndLink
	OrLink
	SetLink
	SimilarityLink
	NotLink
	VariableScopeLink

	numBuiltinTypes
)

// TypeInfo describes one registered type.
type TypeInfo struct {
	Name      string `json:"name" yaml:"name"`
	Parent    string `json:"parent,omitempty" yaml:"parent"`
	Unordered bool   `json:"unordered,omitempty" yaml:"unordered"`
}

type typeEntry struct {
	name      string
	parent    Type
	unordered bool
}

var builtinTypes = [numBuiltinTypes]typeEntry{
	AtomType: {name: "Atom", parent: AtomType},
	NodeType: {name: "Node", parent: AtomType},
	LinkType: {name: "Link", parent: AtomType},

	VariableNode:  {name: "VariableNode", parent: NodeType},
	ConceptNode:   {name: "ConceptNode", parent: NodeType},
	PredicateNode: {name: "PredicateNode", parent: NodeType},
	NumberNode:    {name: "NumberNode", parent: NodeType},
	SchemaNode:    {name: "SchemaNode", parent: NodeType},

	OrderedLink:       {name: "OrderedLink", parent: LinkType},
	UnorderedLink:     {name: "UnorderedLink", parent: LinkType, unordered: true},
	ListLink:          {name: "ListLink", parent: OrderedLink},
	InheritanceLink:   {name: "InheritanceLink", parent: OrderedLink},
	EvaluationLink:    {name: "EvaluationLink", parent: OrderedLink},
	ImplicationLink:   {name: "ImplicationLink", parent: OrderedLink},
	ExecutionLink:     {name: "ExecutionLink", parent: OrderedLink},
	AndLink:           {name: "AndLink", parent: UnorderedLink},
	OrLink:            {name: "OrLink", parent: UnorderedLink},
	SetLink:           {name: "SetLink", parent: UnorderedLink},
	SimilarityLink:    {name: "SimilarityLink", parent: UnorderedLink},
	NotLink:           {name: "NotLink", parent: OrderedLink},
	VariableScopeLink: {name: "VariableScopeLink", parent: LinkType},
}

// TypeRegistry is the open type hierarchy. Every type has exactly one parent;
// AtomType is its own parent and the root of the lattice.
type TypeRegistry struct {
	mu      sync.RWMutex
	entries []typeEntry
	byName  map[string]Type
}

func NewTypeRegistry() *TypeRegistry {
	r := &TypeRegistry{
		entries: make([]typeEntry, 0, len(builtinTypes)+16),
		byName:  make(map[string]Type, len(builtinTypes)+16),
	}
	for i, e := range builtinTypes {
		r.entries = append(r.entries, e)
		r.byName[e.name] = Type(i)
	}
	return r
}

// Register adds a type below parent. Registering the same name again with the
// same parent is a no-op that returns the existing id.
func (r *TypeRegistry) Register(name string, parent Type, unordered bool) (Type, error) {
	if name == "" {
		return 0, fmt.Errorf("%w: empty type name", ErrUnknownType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if int(parent) >= len(r.entries) {
		return 0, fmt.Errorf("%w: parent %d", ErrUnknownType, parent)
	}
	if t, ok := r.byName[name]; ok {
		if r.entries[t].parent != parent {
			return 0, fmt.Errorf("%w: %s", ErrTypeConflict, name)
		}
		return t, nil
	}

	t := Type(len(r.entries))
	r.entries = append(r.entries, typeEntry{name: name, parent: parent, unordered: unordered})
	r.byName[name] = t
	return t, nil
}

// RegisterInfo registers a declaration that names its parent.
func (r *TypeRegistry) RegisterInfo(info TypeInfo) (Type, error) {
	parentName := info.Parent
	if parentName == "" {
		parentName = "Atom"
	}
	parent, ok := r.Lookup(parentName)
	if !ok {
		return 0, fmt.Errorf("%w: parent %q of %q", ErrUnknownType, parentName, info.Name)
	}
	return r.Register(info.Name, parent, info.Unordered)
}

func (r *TypeRegistry) Lookup(name string) (Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byName[name]
	return t, ok
}

func (r *TypeRegistry) Name(t Type) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(t) >= len(r.entries) {
		return fmt.Sprintf("Type(%d)", t)
	}
	return r.entries[t].name
}

func (r *TypeRegistry) Known(t Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int(t) < len(r.entries)
}

func (r *TypeRegistry) Parent(t Type) (Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(t) >= len(r.entries) {
		return 0, false
	}
	return r.entries[t].parent, true
}

// IsA reports whether t equals ancestor or descends from it.
func (r *TypeRegistry) IsA(t, ancestor Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isA(t, ancestor)
}

func (r *TypeRegistry) isA(t, ancestor Type) bool {
	if int(t) >= len(r.entries) {
		return false
	}
	for {
		if t == ancestor {
			return true
		}
		if t == AtomType {
			return false
		}
		t = r.entries[t].parent
	}
}

func (r *TypeRegistry) IsNode(t Type) bool { return r.IsA(t, NodeType) }

func (r *TypeRegistry) IsLink(t Type) bool { return r.IsA(t, LinkType) }

// IsUnordered reports whether links of type t have order-independent identity.
// The flag is inherited from any ancestor.
func (r *TypeRegistry) IsUnordered(t Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(t) >= len(r.entries) {
		return false
	}
	for {
		if r.entries[t].unordered {
			return true
		}
		if t == AtomType {
			return false
		}
		t = r.entries[t].parent
	}
}

// Subtypes returns t and every registered descendant of t, in id order.
func (r *TypeRegistry) Subtypes(t Type) []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Type
	for i := range r.entries {
		if r.isA(Type(i), t) {
			out = append(out, Type(i))
		}
	}
	return out
}

// Infos lists every registered type sorted by name.
func (r *TypeRegistry) Infos() []TypeInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]TypeInfo, 0, len(r.entries))
	for i, e := range r.entries {
		info := TypeInfo{Name: e.name, Unordered: e.unordered}
		if Type(i) != AtomType {
			info.Parent = r.entries[e.parent].name
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

package domain

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// Handle is the store-assigned identity of an interned atom. Zero means the
// atom is free-standing (a pattern or a shape awaiting insertion).
type Handle uint64

const UndefinedHandle Handle = 0

func (h Handle) String() string {
	return strconv.FormatUint(uint64(h), 10)
}

// Atom is a node or a link of the hypergraph. The structure of an atom never
// changes after construction; only its truth value may be revised, and only
// by the store that owns it.
type Atom struct {
	handle   Handle
	typ      Type
	link     bool
	name     string
	outgoing []*Atom
	tv       atomic.Pointer[TruthValue]
}

// NewNode builds a free-standing node.
func NewNode(t Type, name string) *Atom {
	return &Atom{typ: t, name: name}
}

// NewLink builds a free-standing link. The outgoing slice is copied.
func NewLink(t Type, outgoing ...*Atom) *Atom {
	out := make([]*Atom, len(outgoing))
	copy(out, outgoing)
	return &Atom{typ: t, link: true, outgoing: out}
}

// Var is shorthand for a VariableNode.
func Var(name string) *Atom {
	return NewNode(VariableNode, name)
}

// WithTruthValue sets the belief carried by a free-standing atom and returns
// it. Interned atoms are revised through AtomWriter.InsertOrMerge instead.
func (a *Atom) WithTruthValue(tv TruthValue) *Atom {
	if a.handle == UndefinedHandle {
		a.tv.Store(&tv)
	}
	return a
}

// Interned builds the store-owned copy of shape with the given handle and
// already-interned children. It is meant for AtomStore implementations.
func Interned(h Handle, shape *Atom, children []*Atom, tv TruthValue) *Atom {
	a := &Atom{handle: h, typ: shape.typ, link: shape.link, name: shape.name}
	if shape.link {
		a.outgoing = make([]*Atom, len(children))
		copy(a.outgoing, children)
	}
	a.tv.Store(&tv)
	return a
}

// StoreTruthValue replaces the truth value of an interned atom. Only an
// AtomStore may call it, from its commit path, while holding the atom's key
// lock.
func (a *Atom) StoreTruthValue(tv TruthValue) {
	a.tv.Store(&tv)
}

func (a *Atom) Handle() Handle { return a.handle }

func (a *Atom) Type() Type { return a.typ }

func (a *Atom) IsNode() bool { return !a.link }

func (a *Atom) IsLink() bool { return a.link }

// Name is empty for links.
func (a *Atom) Name() string { return a.name }

func (a *Atom) Arity() int { return len(a.outgoing) }

// Outgoing returns the ordered children. Callers must not modify the slice.
func (a *Atom) Outgoing() []*Atom { return a.outgoing }

func (a *Atom) TruthValue() TruthValue {
	if tv := a.tv.Load(); tv != nil {
		return *tv
	}
	return NullTruthValue
}

// Identical reports reference identity: the same pointer, the same non-zero
// handle, or two nodes with the same type and name. Links without handles
// are never identical here; structural comparison is the matcher's job.
func Identical(a, b *Atom) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.handle != UndefinedHandle && b.handle != UndefinedHandle {
		return a.handle == b.handle
	}
	if !a.link && !b.link {
		return a.typ == b.typ && a.name == b.name
	}
	return false
}

// Walk visits a and its descendants depth first. Returning false from fn
// skips the children of the visited atom.
func Walk(a *Atom, fn func(*Atom) bool) {
	if !fn(a) {
		return
	}
	for _, c := range a.outgoing {
		Walk(c, fn)
	}
}

// Format renders an atom as an s-expression using the registry's type names.
func (r *TypeRegistry) Format(a *Atom) string {
	var b strings.Builder
	r.format(&b, a)
	return b.String()
}

func (r *TypeRegistry) format(b *strings.Builder, a *Atom) {
	if a == nil {
		b.WriteString("()")
		return
	}
	b.WriteByte('(')
	b.WriteString(r.Name(a.typ))
	if !a.link {
		b.WriteByte(' ')
		b.WriteString(strconv.Quote(a.name))
	}
	for _, c := range a.outgoing {
		b.WriteByte(' ')
		r.format(b, c)
	}
	b.WriteByte(')')
}

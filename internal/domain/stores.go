package domain

import "context"

// AtomReader is the read side of the knowledge store used by searches.
type AtomReader interface {
	Types() *TypeRegistry
	Get(ctx context.Context, h Handle) (*Atom, error)
	// AtomsByType returns a snapshot of the atoms of type t (and of its
	// subtypes when subtypes is set). Atoms inserted after the call are not
	// included.
	AtomsByType(ctx context.Context, t Type, subtypes bool) ([]*Atom, error)
}

// AtomWriter is the single mutation path of the knowledge store.
type AtomWriter interface {
	// InsertOrMerge interns shape with tv. If a structurally identical atom
	// already exists its truth value is revised and the existing atom is
	// returned. The operation is atomic per structural key.
	InsertOrMerge(ctx context.Context, shape *Atom, tv TruthValue) (*Atom, error)
}

type AtomStore interface {
	AtomReader
	AtomWriter
}

// JournalEntry is the persisted form of one interned atom.
type JournalEntry struct {
	Handle     Handle
	Type       string
	Name       string
	Outgoing   []Handle
	TruthValue TruthValue
}

// Journal persists committed atoms so a store can be rebuilt on startup.
type Journal interface {
	Record(ctx context.Context, e JournalEntry) error
	// Replay calls fn for every entry in ascending handle order.
	Replay(ctx context.Context, fn func(JournalEntry) error) error
}

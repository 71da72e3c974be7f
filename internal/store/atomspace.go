package store

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/Harshitk-cp/cogquery/internal/domain"
	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/google/btree"
	"go.uber.org/zap"
)

const DefaultStripes = 64

// MergeFunc combines the stored truth value of an atom with a newly committed
// one.
type MergeFunc func(old, next domain.TruthValue) domain.TruthValue

// AtomSpace is the in-memory knowledge store. It interns atoms by structural
// key, indexes them by type and node name, and serializes commits per key.
type AtomSpace struct {
	types   *domain.TypeRegistry
	journal domain.Journal
	merge   MergeFunc
	logger  *zap.Logger

	mu       sync.RWMutex
	byKey    map[string]*domain.Atom
	byHandle map[domain.Handle]*domain.Atom
	byType   map[domain.Type]*roaring64.Bitmap
	names    *btree.BTreeG[*domain.Atom]
	next     domain.Handle

	stripes []sync.Mutex
}

type Option func(*AtomSpace)

// WithJournal makes every commit write through to j before it becomes
// visible.
func WithJournal(j domain.Journal) Option {
	return func(s *AtomSpace) { s.journal = j }
}

func WithMerge(f MergeFunc) Option {
	return func(s *AtomSpace) { s.merge = f }
}

func WithStripes(n int) Option {
	return func(s *AtomSpace) {
		if n > 0 {
			s.stripes = make([]sync.Mutex, n)
		}
	}
}

func NewAtomSpace(types *domain.TypeRegistry, logger *zap.Logger, opts ...Option) *AtomSpace {
	s := &AtomSpace{
		types:    types,
		merge:    domain.Revise,
		logger:   logger,
		byKey:    make(map[string]*domain.Atom),
		byHandle: make(map[domain.Handle]*domain.Atom),
		byType:   make(map[domain.Type]*roaring64.Bitmap),
		names:    btree.NewG[*domain.Atom](32, nameLess),
		next:     1,
		stripes:  make([]sync.Mutex, DefaultStripes),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func nameLess(a, b *domain.Atom) bool {
	if a.Name() != b.Name() {
		return a.Name() < b.Name()
	}
	if a.Type() != b.Type() {
		return a.Type() < b.Type()
	}
	return a.Handle() < b.Handle()
}

func (s *AtomSpace) Types() *domain.TypeRegistry {
	return s.types
}

func (s *AtomSpace) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byHandle)
}

func (s *AtomSpace) Get(ctx context.Context, h domain.Handle) (*domain.Atom, error) {
	s.mu.RLock()
	a, ok := s.byHandle[h]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return a, nil
}

func (s *AtomSpace) AtomsByType(ctx context.Context, t domain.Type, subtypes bool) ([]*domain.Atom, error) {
	if !s.types.Known(t) {
		return nil, fmt.Errorf("%w: %d", domain.ErrUnknownType, t)
	}
	types := []domain.Type{t}
	if subtypes {
		types = s.types.Subtypes(t)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var n uint64
	for _, tt := range types {
		if bm := s.byType[tt]; bm != nil {
			n += bm.GetCardinality()
		}
	}
	out := make([]*domain.Atom, 0, n)
	for _, tt := range types {
		bm := s.byType[tt]
		if bm == nil {
			continue
		}
		it := bm.Iterator()
		for it.HasNext() {
			out = append(out, s.byHandle[domain.Handle(it.Next())])
		}
	}
	if len(types) > 1 {
		sort.Slice(out, func(i, j int) bool { return out[i].Handle() < out[j].Handle() })
	}
	return out, nil
}

// NodesByPrefix returns up to limit nodes whose name starts with prefix,
// ordered by name. Only nodes of type t or its subtypes are returned.
func (s *AtomSpace) NodesByPrefix(ctx context.Context, t domain.Type, prefix string, limit int) ([]*domain.Atom, error) {
	if !s.types.Known(t) {
		return nil, fmt.Errorf("%w: %d", domain.ErrUnknownType, t)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Atom
	pivot := domain.NewNode(domain.AtomType, prefix)
	s.names.AscendGreaterOrEqual(pivot, func(a *domain.Atom) bool {
		if !strings.HasPrefix(a.Name(), prefix) {
			return false
		}
		if s.types.IsA(a.Type(), t) {
			out = append(out, a)
		}
		return limit <= 0 || len(out) < limit
	})
	return out, nil
}

// Lookup finds the interned atom identical to shape without inserting
// anything.
func (s *AtomSpace) Lookup(ctx context.Context, shape *domain.Atom) (*domain.Atom, error) {
	if shape == nil {
		return nil, ErrInvalidShape
	}
	if shape.Handle() != domain.UndefinedHandle {
		return s.Get(ctx, shape.Handle())
	}
	var children []*domain.Atom
	for _, c := range shape.Outgoing() {
		ic, err := s.Lookup(ctx, c)
		if err != nil {
			return nil, err
		}
		children = append(children, ic)
	}

	s.mu.RLock()
	a, ok := s.byKey[s.key(shape, children)]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return a, nil
}

func (s *AtomSpace) InsertOrMerge(ctx context.Context, shape *domain.Atom, tv domain.TruthValue) (*domain.Atom, error) {
	if shape == nil {
		return nil, ErrInvalidShape
	}
	return s.intern(ctx, shape, tv)
}

// intern inserts shape bottom-up. Children are interned with the truth value
// their shape carries, which leaves existing beliefs untouched when it is
// undefined.
func (s *AtomSpace) intern(ctx context.Context, shape *domain.Atom, tv domain.TruthValue) (*domain.Atom, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.checkShape(shape); err != nil {
		return nil, err
	}

	var children []*domain.Atom
	if shape.IsLink() {
		children = make([]*domain.Atom, 0, shape.Arity())
		for _, c := range shape.Outgoing() {
			ic, err := s.internChild(ctx, c)
			if err != nil {
				return nil, err
			}
			children = append(children, ic)
		}
	}

	key := s.key(shape, children)
	stripe := s.stripe(key)
	stripe.Lock()
	defer stripe.Unlock()

	s.mu.RLock()
	existing, ok := s.byKey[key]
	s.mu.RUnlock()

	if ok {
		return s.mergeExisting(ctx, existing, tv)
	}
	return s.create(ctx, key, shape, children, tv)
}

func (s *AtomSpace) internChild(ctx context.Context, c *domain.Atom) (*domain.Atom, error) {
	if c == nil {
		return nil, ErrInvalidShape
	}
	if h := c.Handle(); h != domain.UndefinedHandle {
		s.mu.RLock()
		stored, ok := s.byHandle[h]
		s.mu.RUnlock()
		if ok && stored == c {
			return stored, nil
		}
	}
	return s.intern(ctx, c, c.TruthValue())
}

func (s *AtomSpace) mergeExisting(ctx context.Context, a *domain.Atom, tv domain.TruthValue) (*domain.Atom, error) {
	old := a.TruthValue()
	merged := s.merge(old, tv)
	if merged == old {
		return a, nil
	}
	if s.journal != nil {
		if err := s.journal.Record(ctx, s.entry(a, merged)); err != nil {
			return nil, fmt.Errorf("journal merge of atom %d: %w", a.Handle(), err)
		}
	}
	a.StoreTruthValue(merged)

	s.logger.Debug("merged truth value",
		zap.Uint64("handle", uint64(a.Handle())),
		zap.Stringer("old", old),
		zap.Stringer("new", merged))
	return a, nil
}

func (s *AtomSpace) create(ctx context.Context, key string, shape *domain.Atom, children []*domain.Atom, tv domain.TruthValue) (*domain.Atom, error) {
	s.mu.Lock()
	h := s.next
	s.next++
	s.mu.Unlock()

	a := domain.Interned(h, shape, children, tv)
	if s.journal != nil {
		if err := s.journal.Record(ctx, s.entry(a, tv)); err != nil {
			return nil, fmt.Errorf("journal insert of atom %d: %w", h, err)
		}
	}
	s.publish(key, a)
	return a, nil
}

func (s *AtomSpace) publish(key string, a *domain.Atom) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byKey[key] = a
	s.byHandle[a.Handle()] = a
	bm := s.byType[a.Type()]
	if bm == nil {
		bm = roaring64.New()
		s.byType[a.Type()] = bm
	}
	bm.Add(uint64(a.Handle()))
	if a.IsNode() {
		s.names.ReplaceOrInsert(a)
	}
	if a.Handle() >= s.next {
		s.next = a.Handle() + 1
	}
}

// Replay rebuilds the store from its journal, keeping the journaled handles.
// It must run before the store serves any request.
func (s *AtomSpace) Replay(ctx context.Context) (int, error) {
	if s.journal == nil {
		return 0, nil
	}
	n := 0
	err := s.journal.Replay(ctx, func(e domain.JournalEntry) error {
		t, ok := s.types.Lookup(e.Type)
		if !ok {
			return fmt.Errorf("%w: %q in journal entry %d", domain.ErrUnknownType, e.Type, e.Handle)
		}
		var shape *domain.Atom
		var children []*domain.Atom
		if s.types.IsLink(t) {
			children = make([]*domain.Atom, 0, len(e.Outgoing))
			for _, oh := range e.Outgoing {
				s.mu.RLock()
				c, ok := s.byHandle[oh]
				s.mu.RUnlock()
				if !ok {
					return fmt.Errorf("journal entry %d references missing atom %d: %w", e.Handle, oh, ErrNotFound)
				}
				children = append(children, c)
			}
			shape = domain.NewLink(t, children...)
		} else {
			shape = domain.NewNode(t, e.Name)
		}
		key := s.key(shape, children)

		s.mu.RLock()
		existing, dup := s.byKey[key]
		s.mu.RUnlock()
		if dup {
			existing.StoreTruthValue(s.merge(existing.TruthValue(), e.TruthValue))
			return nil
		}
		s.publish(key, domain.Interned(e.Handle, shape, children, e.TruthValue))
		n++
		return nil
	})
	if err != nil {
		return n, err
	}
	s.logger.Info("replayed journal", zap.Int("atoms", n))
	return n, nil
}

func (s *AtomSpace) checkShape(shape *domain.Atom) error {
	t := shape.Type()
	if !s.types.Known(t) {
		return fmt.Errorf("%w: %d", domain.ErrUnknownType, t)
	}
	switch {
	case shape.IsNode() && !s.types.IsNode(t):
		return fmt.Errorf("%w: %s is not a node type", ErrInvalidShape, s.types.Name(t))
	case shape.IsLink() && !s.types.IsLink(t):
		return fmt.Errorf("%w: %s is not a link type", ErrInvalidShape, s.types.Name(t))
	case t == domain.NodeType || t == domain.LinkType || t == domain.AtomType:
		return fmt.Errorf("%w: %s is abstract", ErrInvalidShape, s.types.Name(t))
	}
	return nil
}

// key is the structural identity of an atom whose children are interned.
func (s *AtomSpace) key(shape *domain.Atom, children []*domain.Atom) string {
	var b strings.Builder
	if shape.IsNode() {
		b.WriteString("n:")
		b.WriteString(strconv.FormatUint(uint64(shape.Type()), 10))
		b.WriteByte(':')
		b.WriteString(shape.Name())
		return b.String()
	}

	hs := make([]uint64, len(children))
	for i, c := range children {
		hs[i] = uint64(c.Handle())
	}
	if s.types.IsUnordered(shape.Type()) {
		sort.Slice(hs, func(i, j int) bool { return hs[i] < hs[j] })
	}
	b.WriteString("l:")
	b.WriteString(strconv.FormatUint(uint64(shape.Type()), 10))
	b.WriteByte(':')
	for i, h := range hs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatUint(h, 10))
	}
	return b.String()
}

func (s *AtomSpace) stripe(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &s.stripes[h.Sum32()%uint32(len(s.stripes))]
}

func (s *AtomSpace) entry(a *domain.Atom, tv domain.TruthValue) domain.JournalEntry {
	e := domain.JournalEntry{
		Handle:     a.Handle(),
		Type:       s.types.Name(a.Type()),
		Name:       a.Name(),
		TruthValue: tv,
	}
	for _, c := range a.Outgoing() {
		e.Outgoing = append(e.Outgoing, c.Handle())
	}
	return e
}

// IsNotFound reports whether err means a missing atom.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

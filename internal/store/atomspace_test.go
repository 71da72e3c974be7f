package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Harshitk-cp/cogquery/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockJournal mocks the domain.Journal interface.
type MockJournal struct {
	mock.Mock
}

func (m *MockJournal) Record(ctx context.Context, e domain.JournalEntry) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockJournal) Replay(ctx context.Context, fn func(domain.JournalEntry) error) error {
	args := m.Called(ctx, fn)
	if entries, ok := args.Get(0).([]domain.JournalEntry); ok {
		for _, e := range entries {
			if err := fn(e); err != nil {
				return err
			}
		}
	}
	return args.Error(1)
}

func newTestSpace(opts ...Option) *AtomSpace {
	return NewAtomSpace(domain.NewTypeRegistry(), zap.NewNop(), opts...)
}

func concept(name string) *domain.Atom {
	return domain.NewNode(domain.ConceptNode, name)
}

func TestInsertOrMerge_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestSpace()
	tv := domain.NewTruthValue(0.8, 0.6)

	shape := domain.NewLink(domain.InheritanceLink, concept("cat"), concept("animal"))
	first, err := s.InsertOrMerge(ctx, shape, tv)
	require.NoError(t, err)

	again := domain.NewLink(domain.InheritanceLink, concept("cat"), concept("animal"))
	second, err := s.InsertOrMerge(ctx, again, tv)
	require.NoError(t, err)

	assert.Equal(t, first.Handle(), second.Handle())
	assert.Same(t, first, second)
	assert.Equal(t, tv, second.TruthValue())
	assert.Equal(t, 3, s.Size())
}

func TestInsertOrMerge_ChildrenKeepTheirBelief(t *testing.T) {
	ctx := context.Background()
	s := newTestSpace()

	cat, err := s.InsertOrMerge(ctx, concept("cat"), domain.NewTruthValue(0.9, 0.9))
	require.NoError(t, err)

	_, err = s.InsertOrMerge(ctx, domain.NewLink(domain.InheritanceLink, concept("cat"), concept("animal")), domain.NewTruthValue(1, 0.5))
	require.NoError(t, err)

	assert.Equal(t, domain.NewTruthValue(0.9, 0.9), cat.TruthValue())
}

func TestInsertOrMerge_RevisesTruthValue(t *testing.T) {
	ctx := context.Background()
	s := newTestSpace()

	a, err := s.InsertOrMerge(ctx, concept("x"), domain.NewTruthValue(1, 0.5))
	require.NoError(t, err)
	_, err = s.InsertOrMerge(ctx, concept("x"), domain.NewTruthValue(0, 0.5))
	require.NoError(t, err)

	assert.InDelta(t, 0.5, a.TruthValue().Strength, 1e-9)
	assert.InDelta(t, 0.5, a.TruthValue().Confidence, 1e-9)
}

func TestInsertOrMerge_UnorderedIdentity(t *testing.T) {
	ctx := context.Background()
	s := newTestSpace()

	ab, err := s.InsertOrMerge(ctx, domain.NewLink(domain.AndLink, concept("a"), concept("b")), domain.NullTruthValue)
	require.NoError(t, err)
	ba, err := s.InsertOrMerge(ctx, domain.NewLink(domain.AndLink, concept("b"), concept("a")), domain.NullTruthValue)
	require.NoError(t, err)
	assert.Equal(t, ab.Handle(), ba.Handle())

	l1, err := s.InsertOrMerge(ctx, domain.NewLink(domain.ListLink, concept("a"), concept("b")), domain.NullTruthValue)
	require.NoError(t, err)
	l2, err := s.InsertOrMerge(ctx, domain.NewLink(domain.ListLink, concept("b"), concept("a")), domain.NullTruthValue)
	require.NoError(t, err)
	assert.NotEqual(t, l1.Handle(), l2.Handle())
}

func TestInsertOrMerge_InvalidShape(t *testing.T) {
	ctx := context.Background()
	s := newTestSpace()

	tests := []struct {
		name  string
		shape *domain.Atom
		want  error
	}{
		{"nil", nil, ErrInvalidShape},
		{"node with link type", domain.NewNode(domain.ListLink, "x"), ErrInvalidShape},
		{"link with node type", domain.NewLink(domain.ConceptNode), ErrInvalidShape},
		{"abstract", domain.NewNode(domain.NodeType, "x"), ErrInvalidShape},
		{"unknown type", domain.NewNode(domain.Type(999), "x"), domain.ErrUnknownType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.InsertOrMerge(ctx, tt.shape, domain.NullTruthValue)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Equal(t, 0, s.Size())
}

func TestInsertOrMerge_Concurrent(t *testing.T) {
	ctx := context.Background()
	s := newTestSpace(WithStripes(4))

	const workers = 32
	handles := make([]domain.Handle, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := s.InsertOrMerge(ctx,
				domain.NewLink(domain.InheritanceLink, concept("cat"), concept("animal")),
				domain.NewTruthValue(0.7, 0.4))
			if err != nil {
				t.Error(err)
				return
			}
			handles[i] = a.Handle()
		}(i)
	}
	wg.Wait()

	for _, h := range handles[1:] {
		assert.Equal(t, handles[0], h)
	}
	assert.Equal(t, 3, s.Size())
}

func TestAtomsByType(t *testing.T) {
	ctx := context.Background()
	s := newTestSpace()

	for _, shape := range []*domain.Atom{
		domain.NewLink(domain.InheritanceLink, concept("cat"), concept("animal")),
		domain.NewLink(domain.AndLink, concept("a"), concept("b")),
		domain.NewLink(domain.OrLink, concept("a"), concept("b")),
	} {
		_, err := s.InsertOrMerge(ctx, shape, domain.NullTruthValue)
		require.NoError(t, err)
	}

	got, err := s.AtomsByType(ctx, domain.AndLink, false)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = s.AtomsByType(ctx, domain.UnorderedLink, true)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = s.AtomsByType(ctx, domain.ConceptNode, true)
	require.NoError(t, err)
	assert.Len(t, got, 4)
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1].Handle(), got[i].Handle())
	}

	_, err = s.AtomsByType(ctx, domain.Type(500), true)
	assert.ErrorIs(t, err, domain.ErrUnknownType)
}

func TestNodesByPrefix(t *testing.T) {
	ctx := context.Background()
	s := newTestSpace()

	for _, name := range []string{"cat", "caterpillar", "car", "dog"} {
		_, err := s.InsertOrMerge(ctx, concept(name), domain.NullTruthValue)
		require.NoError(t, err)
	}
	_, err := s.InsertOrMerge(ctx, domain.NewNode(domain.PredicateNode, "cats-like"), domain.NullTruthValue)
	require.NoError(t, err)

	got, err := s.NodesByPrefix(ctx, domain.ConceptNode, "cat", 0)
	require.NoError(t, err)
	var names []string
	for _, a := range got {
		names = append(names, a.Name())
	}
	assert.Equal(t, []string{"cat", "caterpillar"}, names)

	got, err = s.NodesByPrefix(ctx, domain.NodeType, "ca", 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestLookup(t *testing.T) {
	ctx := context.Background()
	s := newTestSpace()

	_, err := s.Lookup(ctx, domain.NewLink(domain.InheritanceLink, concept("cat"), concept("animal")))
	assert.True(t, IsNotFound(err))

	a, err := s.InsertOrMerge(ctx, domain.NewLink(domain.InheritanceLink, concept("cat"), concept("animal")), domain.NullTruthValue)
	require.NoError(t, err)

	got, err := s.Lookup(ctx, domain.NewLink(domain.InheritanceLink, concept("cat"), concept("animal")))
	require.NoError(t, err)
	assert.Same(t, a, got)
}

func TestInsertOrMerge_JournalFailureLeavesStoreUnchanged(t *testing.T) {
	ctx := context.Background()
	j := new(MockJournal)
	s := newTestSpace(WithJournal(j))

	boom := errors.New("disk full")
	j.On("Record", mock.Anything, mock.Anything).Return(boom).Once()

	_, err := s.InsertOrMerge(ctx, concept("cat"), domain.NewTruthValue(1, 0.5))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, s.Size())

	_, err = s.Lookup(ctx, concept("cat"))
	assert.ErrorIs(t, err, ErrNotFound)
	j.AssertExpectations(t)
}

func TestInsertOrMerge_JournalsMerges(t *testing.T) {
	ctx := context.Background()
	j := new(MockJournal)
	s := newTestSpace(WithJournal(j))

	j.On("Record", mock.Anything, mock.MatchedBy(func(e domain.JournalEntry) bool {
		return e.Type == "ConceptNode" && e.Name == "cat"
	})).Return(nil).Twice()

	tv := domain.NewTruthValue(1, 0.5)
	_, err := s.InsertOrMerge(ctx, concept("cat"), tv)
	require.NoError(t, err)
	// Same value again: merge is the identity, nothing to journal.
	_, err = s.InsertOrMerge(ctx, concept("cat"), tv)
	require.NoError(t, err)
	_, err = s.InsertOrMerge(ctx, concept("cat"), domain.NewTruthValue(0, 0.5))
	require.NoError(t, err)

	j.AssertExpectations(t)
}

func TestReplay(t *testing.T) {
	ctx := context.Background()
	j := new(MockJournal)
	s := newTestSpace(WithJournal(j))

	entries := []domain.JournalEntry{
		{Handle: 3, Type: "ConceptNode", Name: "cat", TruthValue: domain.NewTruthValue(1, 0.9)},
		{Handle: 5, Type: "ConceptNode", Name: "animal"},
		{Handle: 9, Type: "InheritanceLink", Outgoing: []domain.Handle{3, 5}, TruthValue: domain.NewTruthValue(0.9, 0.8)},
	}
	j.On("Replay", mock.Anything, mock.Anything).Return(entries, nil).Once()

	n, err := s.Replay(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	link, err := s.Get(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, "cat", link.Outgoing()[0].Name())
	assert.Equal(t, domain.NewTruthValue(0.9, 0.8), link.TruthValue())

	j.On("Record", mock.Anything, mock.Anything).Return(nil).Once()
	dog, err := s.InsertOrMerge(ctx, concept("dog"), domain.NullTruthValue)
	require.NoError(t, err)
	assert.Equal(t, domain.Handle(10), dog.Handle())
}

func TestReplay_MissingReference(t *testing.T) {
	ctx := context.Background()
	j := new(MockJournal)
	s := newTestSpace(WithJournal(j))

	entries := []domain.JournalEntry{
		{Handle: 2, Type: "ListLink", Outgoing: []domain.Handle{1}},
	}
	j.On("Replay", mock.Anything, mock.Anything).Return(entries, nil).Once()

	_, err := s.Replay(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
}

package service

import (
	"context"
	"fmt"

	"github.com/Harshitk-cp/cogquery/internal/domain"
	"go.uber.org/zap"
)

// AtomIndex is the store surface the atom endpoints need on top of the
// core read/write interfaces.
type AtomIndex interface {
	domain.AtomStore
	NodesByPrefix(ctx context.Context, t domain.Type, prefix string, limit int) ([]*domain.Atom, error)
	Size() int
}

type AtomService struct {
	store  AtomIndex
	logger *zap.Logger
}

func NewAtomService(store AtomIndex, logger *zap.Logger) *AtomService {
	return &AtomService{store: store, logger: logger}
}

func (s *AtomService) Types() *domain.TypeRegistry {
	return s.store.Types()
}

func (s *AtomService) Size() int {
	return s.store.Size()
}

// Insert commits shape with the truth value it carries.
func (s *AtomService) Insert(ctx context.Context, shape *domain.Atom) (*domain.Atom, error) {
	a, err := s.store.InsertOrMerge(ctx, shape, shape.TruthValue())
	if err != nil {
		return nil, err
	}
	s.logger.Debug("atom committed",
		zap.Uint64("handle", uint64(a.Handle())),
		zap.String("type", s.store.Types().Name(a.Type())))
	return a, nil
}

func (s *AtomService) Get(ctx context.Context, h domain.Handle) (*domain.Atom, error) {
	return s.store.Get(ctx, h)
}

// ByType lists atoms of the named type, newest last, up to limit.
func (s *AtomService) ByType(ctx context.Context, typeName string, subtypes bool, limit int) ([]*domain.Atom, error) {
	t, err := s.lookup(typeName)
	if err != nil {
		return nil, err
	}
	atoms, err := s.store.AtomsByType(ctx, t, subtypes)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(atoms) > limit {
		atoms = atoms[:limit]
	}
	return atoms, nil
}

func (s *AtomService) NodesByPrefix(ctx context.Context, typeName, prefix string, limit int) ([]*domain.Atom, error) {
	if typeName == "" {
		typeName = "Node"
	}
	t, err := s.lookup(typeName)
	if err != nil {
		return nil, err
	}
	return s.store.NodesByPrefix(ctx, t, prefix, limit)
}

func (s *AtomService) lookup(name string) (domain.Type, error) {
	t, ok := s.store.Types().Lookup(name)
	if !ok {
		return 0, fmt.Errorf("%w: %q", domain.ErrUnknownType, name)
	}
	return t, nil
}

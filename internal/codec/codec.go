// Package codec converts atoms to and from their JSON/YAML form.
package codec

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Harshitk-cp/cogquery/internal/domain"
	"gopkg.in/yaml.v3"
)

var ErrInvalidSpec = errors.New("invalid atom spec")

// AtomSpec is the wire form of an atom. A spec carrying only a handle refers
// to an atom already in the store.
type AtomSpec struct {
	Type     string             `json:"type,omitempty" yaml:"type,omitempty"`
	Name     string             `json:"name,omitempty" yaml:"name,omitempty"`
	Outgoing []AtomSpec         `json:"outgoing,omitempty" yaml:"outgoing,omitempty"`
	TV       *domain.TruthValue `json:"tv,omitempty" yaml:"tv,omitempty"`
	Handle   domain.Handle      `json:"handle,omitempty" yaml:"handle,omitempty"`
}

// Resolver looks up atoms referenced by handle.
type Resolver interface {
	Get(ctx context.Context, h domain.Handle) (*domain.Atom, error)
}

// Decode builds a free-standing atom from spec. Handle references are
// resolved through r, which may be nil when specs are self-contained.
func Decode(ctx context.Context, types *domain.TypeRegistry, r Resolver, spec AtomSpec) (*domain.Atom, error) {
	if spec.Type == "" {
		if spec.Handle == domain.UndefinedHandle {
			return nil, fmt.Errorf("%w: neither type nor handle", ErrInvalidSpec)
		}
		if r == nil {
			return nil, fmt.Errorf("%w: handle %d cannot be resolved here", ErrInvalidSpec, spec.Handle)
		}
		return r.Get(ctx, spec.Handle)
	}

	t, ok := types.Lookup(spec.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownType, spec.Type)
	}

	var a *domain.Atom
	if types.IsLink(t) {
		if spec.Name != "" {
			return nil, fmt.Errorf("%w: link %s has a name", ErrInvalidSpec, spec.Type)
		}
		children := make([]*domain.Atom, len(spec.Outgoing))
		for i, c := range spec.Outgoing {
			child, err := Decode(ctx, types, r, c)
			if err != nil {
				return nil, err
			}
			children[i] = child
		}
		a = domain.NewLink(t, children...)
	} else {
		if len(spec.Outgoing) > 0 {
			return nil, fmt.Errorf("%w: node %s has outgoing atoms", ErrInvalidSpec, spec.Type)
		}
		a = domain.NewNode(t, spec.Name)
	}

	if spec.TV != nil {
		a.WithTruthValue(domain.NewTruthValue(spec.TV.Strength, spec.TV.Confidence))
	}
	return a, nil
}

// DecodeAll decodes specs in order.
func DecodeAll(ctx context.Context, types *domain.TypeRegistry, r Resolver, specs []AtomSpec) ([]*domain.Atom, error) {
	out := make([]*domain.Atom, len(specs))
	for i, s := range specs {
		a, err := Decode(ctx, types, r, s)
		if err != nil {
			return nil, fmt.Errorf("atom %d: %w", i, err)
		}
		out[i] = a
	}
	return out, nil
}

func Encode(types *domain.TypeRegistry, a *domain.Atom) AtomSpec {
	spec := AtomSpec{
		Type:   types.Name(a.Type()),
		Name:   a.Name(),
		Handle: a.Handle(),
	}
	if tv := a.TruthValue(); tv.Defined() {
		spec.TV = &tv
	}
	for _, c := range a.Outgoing() {
		spec.Outgoing = append(spec.Outgoing, Encode(types, c))
	}
	return spec
}

func EncodeAll(types *domain.TypeRegistry, atoms []*domain.Atom) []AtomSpec {
	out := make([]AtomSpec, len(atoms))
	for i, a := range atoms {
		out[i] = Encode(types, a)
	}
	return out
}

func EncodeBinding(types *domain.TypeRegistry, b domain.Binding) map[string]AtomSpec {
	out := make(map[string]AtomSpec, len(b))
	for name, a := range b {
		out[name] = Encode(types, a)
	}
	return out
}

// File is a YAML document of type declarations and atoms, as read by the
// patmatch CLI.
type File struct {
	Types []domain.TypeInfo `yaml:"types"`
	Atoms []AtomSpec        `yaml:"atoms"`
}

func ReadFile(r io.Reader) (*File, error) {
	var f File
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("decode atom file: %w", err)
	}
	return &f, nil
}

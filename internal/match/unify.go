package match

import (
	"context"
	"errors"
	"fmt"

	"github.com/Harshitk-cp/cogquery/internal/domain"
)

var ErrUnboundVariable = errors.New("unbound variable")

// Unify matches patterns[i] against candidates[i] for every i under one
// shared binding, without consulting a store. It returns the first binding
// the policy accepts. A length mismatch is a plain non-match.
func Unify(ctx context.Context, policy Policy, types *domain.TypeRegistry, patterns, candidates []*domain.Atom) (domain.Binding, bool, error) {
	if len(patterns) != len(candidates) {
		return nil, false, nil
	}
	for _, c := range candidates {
		if c == nil {
			return nil, false, nil
		}
	}

	s := newSearch(ctx, policy, types, nil)
	var found domain.Binding
	err := s.matchSeq(patterns, candidates, 0, false, func() error {
		ok, err := policy.AcceptSolution(s.binding, candidates)
		if err != nil || !ok {
			return err
		}
		found = s.binding.Copy()
		return errStop
	})
	if err != nil && !errors.Is(err, errStop) {
		return nil, false, err
	}
	return found, found != nil, nil
}

// Substitute replaces the variables of pattern with their values in b. With
// partial set, unbound variables are left in place; otherwise they are an
// error. The result is a free-standing atom that may share interned children.
func Substitute(types *domain.TypeRegistry, pattern *domain.Atom, b domain.Binding, partial bool) (*domain.Atom, error) {
	if pattern.IsNode() {
		if !types.IsA(pattern.Type(), domain.VariableNode) {
			return pattern, nil
		}
		if v, ok := b[pattern.Name()]; ok {
			return v, nil
		}
		if partial {
			return pattern, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrUnboundVariable, pattern.Name())
	}

	out := make([]*domain.Atom, pattern.Arity())
	changed := false
	for i, c := range pattern.Outgoing() {
		sc, err := Substitute(types, c, b, partial)
		if err != nil {
			return nil, err
		}
		out[i] = sc
		changed = changed || sc != c
	}
	if !changed {
		return pattern, nil
	}
	return domain.NewLink(pattern.Type(), out...), nil
}

// Variables lists the distinct variable names in the given atoms in order of
// first appearance.
func Variables(types *domain.TypeRegistry, atoms ...*domain.Atom) []string {
	var out []string
	seen := make(map[string]bool)
	for _, a := range atoms {
		domain.Walk(a, func(n *domain.Atom) bool {
			if n.IsNode() && types.IsA(n.Type(), domain.VariableNode) && !seen[n.Name()] {
				seen[n.Name()] = true
				out = append(out, n.Name())
			}
			return true
		})
	}
	return out
}

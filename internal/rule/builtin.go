package rule

import (
	"github.com/Harshitk-cp/cogquery/internal/domain"
	"github.com/Harshitk-cp/cogquery/internal/formula"
	"go.uber.org/zap"
)

// Builtins constructs the standard rule set over store.
func Builtins(store domain.AtomStore, logger *zap.Logger) ([]Rule, error) {
	inh := func(a, b *domain.Atom) *domain.Atom { return domain.NewLink(domain.InheritanceLink, a, b) }
	a, b, c, x := domain.Var("$A"), domain.Var("$B"), domain.Var("$C"), domain.Var("$X")

	var rules []Rule
	add := func(r Rule, err error) error {
		if err != nil {
			return err
		}
		rules = append(rules, r)
		return nil
	}

	if err := add(New(Spec{
		Name:           "and",
		Inputs:         []*domain.Atom{x},
		FreeInputArity: true,
		Synthesize:     wrapPremises(domain.AndLink),
		Invert:         unwrapLink(domain.AndLink),
	}, formula.And{}, store, logger)); err != nil {
		return nil, err
	}

	if err := add(New(Spec{
		Name:           "or",
		Inputs:         []*domain.Atom{x},
		FreeInputArity: true,
		Synthesize:     wrapPremises(domain.OrLink),
		Invert:         unwrapLink(domain.OrLink),
	}, formula.Or{}, store, logger)); err != nil {
		return nil, err
	}

	if err := add(New(Spec{
		Name:   "not",
		Inputs: []*domain.Atom{x},
		Output: domain.NewLink(domain.NotLink, x),
	}, formula.Not{}, store, logger)); err != nil {
		return nil, err
	}

	if err := add(New(Spec{
		Name:   "deduction",
		Inputs: []*domain.Atom{inh(a, b), inh(b, c)},
		Output: inh(a, c),
		TVSources: []TVSource{
			FromPremise(0), FromPremise(1),
			FromVariable("$A"), FromVariable("$B"), FromVariable("$C"),
		},
	}, formula.Deduction{}, store, logger)); err != nil {
		return nil, err
	}

	if err := add(New(Spec{
		Name:      "inversion",
		Inputs:    []*domain.Atom{inh(a, b)},
		Output:    inh(b, a),
		TVSources: []TVSource{FromPremise(0), FromVariable("$A"), FromVariable("$B")},
	}, formula.Inversion{}, store, logger)); err != nil {
		return nil, err
	}

	return rules, nil
}

func wrapPremises(t domain.Type) func([]*domain.Atom, domain.Binding) (*domain.Atom, error) {
	return func(premises []*domain.Atom, _ domain.Binding) (*domain.Atom, error) {
		return domain.NewLink(t, premises...), nil
	}
}

func unwrapLink(t domain.Type) func(*domain.Atom) ([][]*domain.Atom, error) {
	return func(output *domain.Atom) ([][]*domain.Atom, error) {
		if !output.IsLink() || output.Type() != t || output.Arity() == 0 {
			return nil, nil
		}
		return [][]*domain.Atom{output.Outgoing()}, nil
	}
}

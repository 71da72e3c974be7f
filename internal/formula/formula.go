// Package formula holds the truth-value formulas used by the built-in rules.
// Every formula is a pure function of an ordered slice of truth values.
package formula

import (
	"errors"
	"fmt"
	"math"

	"github.com/Harshitk-cp/cogquery/internal/domain"
)

// ErrUndefined is returned when a formula has no value for its inputs.
var ErrUndefined = errors.New("formula undefined for inputs")

// epsilon guards divisions by strengths that are effectively zero or one.
const epsilon = 1e-9

func checkArity(name string, want int, tvs []domain.TruthValue) error {
	if want == 0 {
		if len(tvs) == 0 {
			return fmt.Errorf("%s: %w: no inputs", name, ErrUndefined)
		}
		return nil
	}
	if len(tvs) != want {
		return fmt.Errorf("%s: expected %d truth values, got %d", name, want, len(tvs))
	}
	return nil
}

func minConfidence(tvs []domain.TruthValue) float64 {
	c := 1.0
	for _, tv := range tvs {
		c = math.Min(c, tv.Confidence)
	}
	return c
}

// And is the conjunction under independence: the product of strengths with
// the weakest confidence. It accepts any number of inputs.
type And struct{}

func (And) Arity() int { return 0 }

func (And) Compute(tvs []domain.TruthValue) (domain.TruthValue, error) {
	if err := checkArity("and", 0, tvs); err != nil {
		return domain.NullTruthValue, err
	}
	s := 1.0
	for _, tv := range tvs {
		s *= tv.Strength
	}
	return domain.NewTruthValue(s, minConfidence(tvs)), nil
}

// Or is the disjunction under independence.
type Or struct{}

func (Or) Arity() int { return 0 }

func (Or) Compute(tvs []domain.TruthValue) (domain.TruthValue, error) {
	if err := checkArity("or", 0, tvs); err != nil {
		return domain.NullTruthValue, err
	}
	miss := 1.0
	for _, tv := range tvs {
		miss *= 1 - tv.Strength
	}
	return domain.NewTruthValue(1-miss, minConfidence(tvs)), nil
}

type Not struct{}

func (Not) Arity() int { return 1 }

func (Not) Compute(tvs []domain.TruthValue) (domain.TruthValue, error) {
	if err := checkArity("not", 1, tvs); err != nil {
		return domain.NullTruthValue, err
	}
	return domain.NewTruthValue(1-tvs[0].Strength, tvs[0].Confidence), nil
}

// Deduction derives A→C from A→B and B→C assuming independence of A and C
// given B. Inputs are AB, BC, A, B, C.
type Deduction struct{}

func (Deduction) Arity() int { return 5 }

func (Deduction) Compute(tvs []domain.TruthValue) (domain.TruthValue, error) {
	if err := checkArity("deduction", 5, tvs); err != nil {
		return domain.NullTruthValue, err
	}
	ab, bc, b, c := tvs[0], tvs[1], tvs[3], tvs[4]
	if b.Strength > 1-epsilon {
		return domain.NullTruthValue, fmt.Errorf("deduction: %w: P(B) = 1", ErrUndefined)
	}
	s := ab.Strength*bc.Strength + (1-ab.Strength)*(c.Strength-b.Strength*bc.Strength)/(1-b.Strength)
	return domain.NewTruthValue(s, ab.Confidence*bc.Confidence), nil
}

// Inversion derives B→A from A→B by Bayes' rule. Inputs are AB, A, B.
type Inversion struct{}

func (Inversion) Arity() int { return 3 }

func (Inversion) Compute(tvs []domain.TruthValue) (domain.TruthValue, error) {
	if err := checkArity("inversion", 3, tvs); err != nil {
		return domain.NullTruthValue, err
	}
	ab, a, b := tvs[0], tvs[1], tvs[2]
	if b.Strength < epsilon {
		return domain.NullTruthValue, fmt.Errorf("inversion: %w: P(B) = 0", ErrUndefined)
	}
	return domain.NewTruthValue(ab.Strength*a.Strength/b.Strength, minConfidence(tvs)), nil
}

// Revision merges two independent estimates of the same belief.
type Revision struct{}

func (Revision) Arity() int { return 2 }

func (Revision) Compute(tvs []domain.TruthValue) (domain.TruthValue, error) {
	if err := checkArity("revision", 2, tvs); err != nil {
		return domain.NullTruthValue, err
	}
	return domain.Revise(tvs[0], tvs[1]), nil
}

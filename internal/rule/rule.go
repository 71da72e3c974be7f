package rule

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/Harshitk-cp/cogquery/internal/domain"
	"github.com/Harshitk-cp/cogquery/internal/match"
	"go.uber.org/zap"
)

var (
	ErrInvalidPremises = errors.New("invalid premises")
	ErrNoResult        = errors.New("no result")
	ErrNotInvertible   = errors.New("rule does not declare its input shapes")
	ErrInvalidRule     = errors.New("invalid rule")
)

// ValidationError reports premises that do not fit a rule's declared inputs.
type ValidationError struct {
	Rule   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("rule %s: %s: %s", e.Rule, ErrInvalidPremises, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidPremises }

// Formula turns an ordered slice of truth values into one. Arity 0 means any
// non-empty number of inputs.
type Formula interface {
	Arity() int
	Compute(tvs []domain.TruthValue) (domain.TruthValue, error)
}

// TVSource names where one formula input comes from: a premise by position,
// or the atom bound to a variable of the input patterns.
type TVSource struct {
	Premise  int
	Variable string
}

func FromPremise(i int) TVSource { return TVSource{Premise: i} }

func FromVariable(name string) TVSource { return TVSource{Premise: -1, Variable: name} }

// Spec is the declared contract of a rule.
type Spec struct {
	Name string
	// Inputs are the premise patterns, in premise order. A free-arity rule has
	// at most one pattern, which every premise must satisfy on its own.
	Inputs []*domain.Atom
	// Output is substituted with the premise binding to build the conclusion.
	Output         *domain.Atom
	FreeInputArity bool
	// TVSources lists the formula inputs. Empty means one per premise.
	TVSources []TVSource
	// Synthesize builds the conclusion when it is not a substitution of
	// Output, which is always the case for free-arity rules.
	Synthesize func(premises []*domain.Atom, b domain.Binding) (*domain.Atom, error)
	// Invert lists premise shapes for a desired conclusion when Output alone
	// cannot express it.
	Invert func(output *domain.Atom) ([][]*domain.Atom, error)
}

// Rule is a named transformation from premises to one committed conclusion.
type Rule interface {
	Name() string
	Spec() Spec
	// Compute validates premises, derives a truth value and commits the
	// conclusion to the store. It returns a *ValidationError, ErrNoResult, or
	// the store's own error.
	Compute(ctx context.Context, premises []*domain.Atom) (*domain.Atom, error)
	// InputShapes returns the premise shapes that could produce output.
	InputShapes(ctx context.Context, output *domain.Atom) ([][]*domain.Atom, error)
	// OutputShape returns the conclusion shape for structurally valid inputs
	// without computing a truth value.
	OutputShape(ctx context.Context, inputs []*domain.Atom) (*domain.Atom, error)
}

// Generic is a Rule parameterized by its formula.
type Generic[F Formula] struct {
	spec    Spec
	formula F
	store   domain.AtomStore
	policy  match.Policy
	logger  *zap.Logger
}

func New[F Formula](spec Spec, f F, store domain.AtomStore, logger *zap.Logger) (*Generic[F], error) {
	r := &Generic[F]{
		spec:    spec,
		formula: f,
		store:   store,
		policy:  match.NewHierarchyPolicy(store.Types()),
		logger:  logger.With(zap.String("rule", spec.Name)),
	}
	if err := r.check(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Generic[F]) check() error {
	s := r.spec
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w %q: %s", ErrInvalidRule, s.Name, fmt.Sprintf(format, args...))
	}
	types := r.store.Types()

	switch {
	case s.Name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidRule)
	case s.FreeInputArity && s.Synthesize == nil:
		return invalid("free input arity needs Synthesize")
	case s.FreeInputArity && len(s.Inputs) > 1:
		return invalid("free input arity takes at most one input pattern")
	case s.FreeInputArity && len(s.TVSources) > 0:
		return invalid("free input arity reads one truth value per premise")
	case !s.FreeInputArity && len(s.Inputs) == 0:
		return invalid("no input patterns")
	case s.Output == nil && s.Synthesize == nil:
		return invalid("no output pattern")
	}

	inputVars := match.Variables(types, s.Inputs...)
	for i, src := range s.TVSources {
		if src.Variable != "" {
			if !slices.Contains(inputVars, src.Variable) {
				return invalid("truth value source %d names unknown variable %s", i, src.Variable)
			}
			continue
		}
		if s.FreeInputArity || src.Premise < 0 || src.Premise >= len(s.Inputs) {
			return invalid("truth value source %d names premise %d", i, src.Premise)
		}
	}

	if n := r.formula.Arity(); n > 0 {
		got := len(s.TVSources)
		if got == 0 {
			got = len(s.Inputs)
		}
		if s.FreeInputArity || got != n {
			return invalid("formula takes %d truth values, rule supplies %d", n, got)
		}
	}

	if s.Output != nil && s.Synthesize == nil {
		for _, v := range match.Variables(types, s.Output) {
			if !slices.Contains(inputVars, v) {
				return invalid("output variable %s is not bound by any input", v)
			}
		}
	}
	return nil
}

func (r *Generic[F]) Name() string { return r.spec.Name }

// Spec returns the declared contract. The pattern atoms are shared and must
// not be modified.
func (r *Generic[F]) Spec() Spec { return r.spec }

func (r *Generic[F]) Compute(ctx context.Context, premises []*domain.Atom) (*domain.Atom, error) {
	b, err := r.validate(ctx, premises)
	if err != nil {
		return nil, err
	}

	tvs, err := r.extract(premises, b)
	if err != nil {
		r.logger.Debug("no result", zap.Error(err))
		return nil, err
	}

	tv, err := r.formula.Compute(tvs)
	if err != nil {
		r.logger.Debug("formula refused inputs", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrNoResult, err)
	}
	if math.IsNaN(tv.Strength) || math.IsNaN(tv.Confidence) {
		return nil, fmt.Errorf("%w: formula produced NaN", ErrNoResult)
	}

	shape, err := r.synthesize(premises, b)
	if err != nil {
		return nil, err
	}

	atom, err := r.store.InsertOrMerge(ctx, shape, tv)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("committed conclusion",
		zap.Uint64("handle", uint64(atom.Handle())),
		zap.Stringer("tv", tv))
	return atom, nil
}

func (r *Generic[F]) InputShapes(ctx context.Context, output *domain.Atom) ([][]*domain.Atom, error) {
	if r.spec.Invert != nil {
		return r.spec.Invert(output)
	}
	if r.spec.FreeInputArity || r.spec.Output == nil {
		return nil, fmt.Errorf("%s: %w", r.spec.Name, ErrNotInvertible)
	}

	types := r.store.Types()
	b, ok, err := match.Unify(ctx, r.policy, types, []*domain.Atom{r.spec.Output}, []*domain.Atom{output})
	if err != nil || !ok {
		return nil, err
	}
	shapes := make([]*domain.Atom, len(r.spec.Inputs))
	for i, in := range r.spec.Inputs {
		shapes[i], err = match.Substitute(types, in, b, true)
		if err != nil {
			return nil, err
		}
	}
	return [][]*domain.Atom{shapes}, nil
}

func (r *Generic[F]) OutputShape(ctx context.Context, inputs []*domain.Atom) (*domain.Atom, error) {
	b, err := r.validate(ctx, inputs)
	if err != nil {
		return nil, err
	}
	return r.synthesize(inputs, b)
}

// validate checks premise count and unifies every premise with its input
// pattern, returning the combined binding.
func (r *Generic[F]) validate(ctx context.Context, premises []*domain.Atom) (domain.Binding, error) {
	invalid := func(format string, args ...any) error {
		return &ValidationError{Rule: r.spec.Name, Reason: fmt.Sprintf(format, args...)}
	}
	for i, p := range premises {
		if p == nil {
			return nil, invalid("premise %d is nil", i)
		}
	}
	types := r.store.Types()

	if r.spec.FreeInputArity {
		if len(premises) == 0 {
			return nil, invalid("expected at least one premise")
		}
		if len(r.spec.Inputs) == 0 {
			return domain.NewBinding(), nil
		}
		for i, p := range premises {
			_, ok, err := match.Unify(ctx, r.policy, types, r.spec.Inputs, []*domain.Atom{p})
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, invalid("premise %d %s does not fit %s", i, types.Format(p), types.Format(r.spec.Inputs[0]))
			}
		}
		return domain.NewBinding(), nil
	}

	if len(premises) != len(r.spec.Inputs) {
		return nil, invalid("expected %d premises, got %d", len(r.spec.Inputs), len(premises))
	}
	b, ok, err := match.Unify(ctx, r.policy, types, r.spec.Inputs, premises)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, invalid("premises do not fit the declared input patterns")
	}
	return b, nil
}

func (r *Generic[F]) extract(premises []*domain.Atom, b domain.Binding) ([]domain.TruthValue, error) {
	var tvs []domain.TruthValue
	if len(r.spec.TVSources) == 0 {
		tvs = make([]domain.TruthValue, len(premises))
		for i, p := range premises {
			tvs[i] = p.TruthValue()
		}
	} else {
		tvs = make([]domain.TruthValue, len(r.spec.TVSources))
		for i, src := range r.spec.TVSources {
			if src.Variable != "" {
				tvs[i] = b[src.Variable].TruthValue()
			} else {
				tvs[i] = premises[src.Premise].TruthValue()
			}
		}
	}

	for i, tv := range tvs {
		if !tv.Defined() {
			return nil, fmt.Errorf("%w: truth value input %d is undefined", ErrNoResult, i)
		}
	}
	return tvs, nil
}

func (r *Generic[F]) synthesize(premises []*domain.Atom, b domain.Binding) (*domain.Atom, error) {
	if r.spec.Synthesize != nil {
		return r.spec.Synthesize(premises, b)
	}
	return match.Substitute(r.store.Types(), r.spec.Output, b, false)
}

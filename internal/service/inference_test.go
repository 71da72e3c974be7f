package service

import (
	"context"
	"testing"

	"github.com/Harshitk-cp/cogquery/internal/domain"
	"github.com/Harshitk-cp/cogquery/internal/match"
	"github.com/Harshitk-cp/cogquery/internal/rule"
	"github.com/Harshitk-cp/cogquery/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func concept(name string) *domain.Atom { return domain.NewNode(domain.ConceptNode, name) }

func inherit(a, b *domain.Atom) *domain.Atom {
	return domain.NewLink(domain.InheritanceLink, a, b)
}

type testEnv struct {
	store   *store.AtomSpace
	svc     *InferenceService
	atoms   *AtomService
	reg     *prometheus.Registry
	handles map[string]domain.Handle
}

// newTestEnv builds a service over a small taxonomy:
// cat → mammal → animal, dog → mammal.
func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	ctx := context.Background()
	s := store.NewAtomSpace(domain.NewTypeRegistry(), zap.NewNop())
	reg := prometheus.NewRegistry()
	opts = append([]Option{WithMetrics(NewMetrics(reg, s.Size)), WithWorkers(2)}, opts...)

	env := &testEnv{
		store:   s,
		svc:     NewInferenceService(s, zap.NewNop(), opts...),
		atoms:   NewAtomService(s, zap.NewNop()),
		reg:     reg,
		handles: make(map[string]domain.Handle),
	}
	require.NoError(t, env.svc.RegisterBuiltins())

	for name, strength := range map[string]float64{"cat": 0.05, "dog": 0.05, "mammal": 0.2, "animal": 0.4} {
		a, err := s.InsertOrMerge(ctx, concept(name), domain.NewTruthValue(strength, 0.9))
		require.NoError(t, err)
		env.handles[name] = a.Handle()
	}
	for _, pair := range [][2]string{{"cat", "mammal"}, {"dog", "mammal"}, {"mammal", "animal"}} {
		a, err := s.InsertOrMerge(ctx, inherit(concept(pair[0]), concept(pair[1])), domain.NewTruthValue(0.9, 0.8))
		require.NoError(t, err)
		env.handles[pair[0]+"->"+pair[1]] = a.Handle()
	}
	return env
}

func (e *testEnv) counter(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := e.reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue metrics
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestPolicy(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name    string
		minConf float64
		want    match.Policy
		wantErr error
	}{
		{"", 0, match.DefaultPolicy{}, nil},
		{"default", 0, match.DefaultPolicy{}, nil},
		{"hierarchy", 0, match.NewHierarchyPolicy(env.store.Types()), nil},
		{"default", 0.5, match.ThresholdPolicy{Inner: match.DefaultPolicy{}, MinConfidence: 0.5}, nil},
		{"fuzzy", 0, nil, ErrPolicyUnknown},
	}
	for _, tt := range tests {
		p, err := env.svc.Policy(tt.name, tt.minConf)
		if tt.wantErr != nil {
			assert.ErrorIs(t, err, tt.wantErr)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, p)
	}
}

func TestRules(t *testing.T) {
	env := newTestEnv(t)

	var names []string
	for _, r := range env.svc.Rules() {
		names = append(names, r.Name())
	}
	assert.Equal(t, []string{"and", "deduction", "inversion", "not", "or"}, names)

	r, err := env.svc.Rule("deduction")
	require.NoError(t, err)
	assert.ErrorIs(t, env.svc.RegisterRule(r), ErrRuleExists)

	_, err = env.svc.Rule("abduction")
	assert.ErrorIs(t, err, ErrRuleNotFound)
}

func TestQuery(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Query(ctx, QueryRequest{})
	assert.ErrorIs(t, err, ErrEmptyPattern)

	res, err := env.svc.Query(ctx, QueryRequest{Clauses: []*domain.Atom{inherit(domain.Var("$X"), concept("mammal"))}})
	require.NoError(t, err)
	assert.Len(t, res.Solutions, 2)
	assert.False(t, res.Truncated)

	res, err = env.svc.Query(ctx, QueryRequest{Clauses: []*domain.Atom{inherit(domain.Var("$X"), concept("mammal"))}, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, res.Solutions, 1)
	assert.True(t, res.Truncated)

	assert.Equal(t, 2.0, env.counter(t, "cogquery_match_searches_total", nil))
}

func TestCompute(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	out, err := env.svc.Compute(ctx, "deduction", []domain.Handle{env.handles["cat->mammal"], env.handles["mammal->animal"]})
	require.NoError(t, err)
	assert.Equal(t, `(InheritanceLink (ConceptNode "cat") (ConceptNode "animal"))`, env.store.Types().Format(out))

	_, err = env.svc.Compute(ctx, "deduction", []domain.Handle{env.handles["cat->mammal"], 999})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = env.svc.Compute(ctx, "deduction", []domain.Handle{env.handles["cat->mammal"]})
	assert.ErrorIs(t, err, rule.ErrInvalidPremises)

	_, err = env.svc.Compute(ctx, "nope", nil)
	assert.ErrorIs(t, err, ErrRuleNotFound)

	assert.Equal(t, 1.0, env.counter(t, "cogquery_rule_computations_total", map[string]string{"rule": "deduction", "outcome": "derived"}))
	assert.Equal(t, 1.0, env.counter(t, "cogquery_rule_computations_total", map[string]string{"rule": "deduction", "outcome": "invalid"}))
}

func TestComputeAtoms_ResolvesPremises(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	before := env.store.Size()

	cat := concept("cat").WithTruthValue(domain.NewTruthValue(0.95, 0.95))
	mammal := concept("mammal").WithTruthValue(domain.NewTruthValue(0.5, 0.5))
	out, err := env.svc.ComputeAtoms(ctx, "and", []*domain.Atom{cat, mammal})
	require.NoError(t, err)
	assert.InDelta(t, 0.05*0.2, out.TruthValue().Strength, 1e-9)
	assert.Equal(t, before+1, env.store.Size())

	stored, err := env.store.Get(ctx, env.handles["cat"])
	require.NoError(t, err)
	assert.Equal(t, domain.NewTruthValue(0.05, 0.9), stored.TruthValue())

	_, err = env.svc.ComputeAtoms(ctx, "and", []*domain.Atom{concept("cat"), concept("rock")})
	assert.ErrorIs(t, err, rule.ErrInvalidPremises)
	assert.Equal(t, before+1, env.store.Size())
	assert.Equal(t, 1.0, env.counter(t, "cogquery_rule_computations_total", map[string]string{"rule": "and", "outcome": "invalid"}))
}

func TestApplyAll(t *testing.T) {
	defer goleak.VerifyNone(t)

	env := newTestEnv(t)
	ctx := context.Background()
	before := env.store.Size()

	res, err := env.svc.ApplyAll(ctx, "deduction", ApplyRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Groundings)
	assert.Equal(t, 2, res.Derived)
	assert.Len(t, res.Handles, 2)
	assert.Equal(t, before+2, env.store.Size())

	// A second run finds the new links as groundings too, but merges rather
	// than duplicates the existing conclusions.
	_, err = env.svc.ApplyAll(ctx, "deduction", ApplyRequest{})
	require.NoError(t, err)
	for _, name := range []string{"cat", "dog"} {
		_, err := env.store.Lookup(ctx, inherit(concept(name), concept("animal")))
		assert.NoError(t, err)
	}
}

func TestApplyAll_CountsNoResult(t *testing.T) {
	defer goleak.VerifyNone(t)

	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.store.InsertOrMerge(ctx, inherit(concept("rock"), concept("mineral")), domain.NewTruthValue(0.9, 0.9))
	require.NoError(t, err)

	res, err := env.svc.ApplyAll(ctx, "inversion", ApplyRequest{})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Groundings)
	assert.Equal(t, 3, res.Derived)
	assert.Equal(t, 1, res.NoResult)
}

func TestApplyAll_FreeArity(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.ApplyAll(context.Background(), "and", ApplyRequest{})
	assert.ErrorIs(t, err, ErrNotApplicable)
}

func TestAtomService(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a, err := env.atoms.Insert(ctx, concept("caterpillar").WithTruthValue(domain.NewTruthValue(1, 0.1)))
	require.NoError(t, err)
	got, err := env.atoms.Get(ctx, a.Handle())
	require.NoError(t, err)
	assert.Same(t, a, got)

	nodes, err := env.atoms.NodesByPrefix(ctx, "", "ca", 0)
	require.NoError(t, err)
	assert.Len(t, nodes, 2)

	links, err := env.atoms.ByType(ctx, "InheritanceLink", false, 2)
	require.NoError(t, err)
	assert.Len(t, links, 2)

	_, err = env.atoms.ByType(ctx, "NoSuchType", false, 0)
	assert.ErrorIs(t, err, domain.ErrUnknownType)
}

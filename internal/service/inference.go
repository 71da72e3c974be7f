package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Harshitk-cp/cogquery/internal/domain"
	"github.com/Harshitk-cp/cogquery/internal/match"
	"github.com/Harshitk-cp/cogquery/internal/rule"
	"github.com/Harshitk-cp/cogquery/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrRuleNotFound  = errors.New("rule not found")
	ErrRuleExists    = errors.New("rule already registered")
	ErrPolicyUnknown = errors.New("unknown match policy")
	ErrEmptyPattern  = errors.New("pattern has no clauses")
	ErrNotApplicable = errors.New("free-arity rules cannot be applied to search results")
)

const (
	DefaultSearchLimit  = 1000
	DefaultApplyWorkers = 4
)

type QueryRequest struct {
	Clauses   []*domain.Atom
	Variables []string
	Policy    string
	// MinConfidence wraps the named policy in a truth-value threshold when set.
	MinConfidence float64
	Limit         int
}

type QueryResult struct {
	Solutions []match.Solution
	Truncated bool
}

type ApplyRequest struct {
	Policy        string
	MinConfidence float64
	Limit         int
}

type ApplyResult struct {
	Groundings int             `json:"groundings"`
	Derived    int             `json:"derived"`
	NoResult   int             `json:"no_result"`
	Invalid    int             `json:"invalid"`
	Handles    []domain.Handle `json:"handles"`
	Truncated  bool            `json:"truncated"`
}

// KnowledgeStore is what inference needs from the store: the core read and
// write paths plus lookup of interned atoms by shape.
type KnowledgeStore interface {
	domain.AtomStore
	Lookup(ctx context.Context, shape *domain.Atom) (*domain.Atom, error)
}

// InferenceService runs pattern queries and applies rules against one store.
type InferenceService struct {
	store   KnowledgeStore
	engine  *match.Engine
	metrics *Metrics
	logger  *zap.Logger

	mu    sync.RWMutex
	rules map[string]rule.Rule

	workers     int
	searchLimit int
}

type Option func(*InferenceService)

func WithWorkers(n int) Option {
	return func(s *InferenceService) {
		if n > 0 {
			s.workers = n
		}
	}
}

func WithSearchLimit(n int) Option {
	return func(s *InferenceService) {
		if n > 0 {
			s.searchLimit = n
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *InferenceService) { s.metrics = m }
}

func NewInferenceService(store KnowledgeStore, logger *zap.Logger, opts ...Option) *InferenceService {
	s := &InferenceService{
		store:       store,
		engine:      match.NewEngine(store, logger),
		logger:      logger,
		rules:       make(map[string]rule.Rule),
		workers:     DefaultApplyWorkers,
		searchLimit: DefaultSearchLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InferenceService) Types() *domain.TypeRegistry {
	return s.store.Types()
}

func (s *InferenceService) RegisterRule(r rule.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[r.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrRuleExists, r.Name())
	}
	s.rules[r.Name()] = r
	return nil
}

func (s *InferenceService) Rule(name string) (rule.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rules[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, name)
	}
	return r, nil
}

// RegisterBuiltins registers the standard rule set.
func (s *InferenceService) RegisterBuiltins() error {
	rules, err := rule.Builtins(s.store, s.logger)
	if err != nil {
		return err
	}
	for _, r := range rules {
		if err := s.RegisterRule(r); err != nil {
			return err
		}
	}
	return nil
}

// Rules returns the registered rules sorted by name.
func (s *InferenceService) Rules() []rule.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]rule.Rule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Policy resolves a policy by name: "default" (or empty) and "hierarchy".
// A positive minConfidence wraps it in a ThresholdPolicy.
func (s *InferenceService) Policy(name string, minConfidence float64) (match.Policy, error) {
	var p match.Policy
	switch name {
	case "", "default":
		p = match.DefaultPolicy{}
	case "hierarchy":
		p = match.NewHierarchyPolicy(s.store.Types())
	default:
		return nil, fmt.Errorf("%w: %q", ErrPolicyUnknown, name)
	}
	if minConfidence > 0 {
		p = match.ThresholdPolicy{Inner: p, MinConfidence: minConfidence}
	}
	return p, nil
}

func (s *InferenceService) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	if len(req.Clauses) == 0 {
		return nil, ErrEmptyPattern
	}
	p, err := s.Policy(req.Policy, req.MinConfidence)
	if err != nil {
		return nil, err
	}
	limit := s.limit(req.Limit)

	start := time.Now()
	res := &QueryResult{}
	for sol, err := range s.engine.Search(ctx, p, match.Query{Clauses: req.Clauses, Variables: req.Variables}) {
		if err != nil {
			return nil, err
		}
		if len(res.Solutions) == limit {
			res.Truncated = true
			break
		}
		res.Solutions = append(res.Solutions, sol)
	}
	s.metrics.observeSearch(start, len(res.Solutions))
	return res, nil
}

// Compute applies a rule once to the atoms with the given handles.
func (s *InferenceService) Compute(ctx context.Context, ruleName string, handles []domain.Handle) (*domain.Atom, error) {
	r, err := s.Rule(ruleName)
	if err != nil {
		return nil, err
	}
	premises := make([]*domain.Atom, len(handles))
	for i, h := range handles {
		premises[i], err = s.store.Get(ctx, h)
		if err != nil {
			return nil, fmt.Errorf("premise %d (handle %d): %w", i, h, err)
		}
	}
	return s.compute(ctx, r, premises)
}

// ComputeAtoms applies a rule once to premises given by shape. Every premise
// must already be in the store; the rule sees the stored atom and its belief,
// never the truth value carried by the shape.
func (s *InferenceService) ComputeAtoms(ctx context.Context, ruleName string, premises []*domain.Atom) (*domain.Atom, error) {
	r, err := s.Rule(ruleName)
	if err != nil {
		return nil, err
	}
	stored := make([]*domain.Atom, len(premises))
	for i, p := range premises {
		if p == nil {
			continue
		}
		stored[i], err = s.store.Lookup(ctx, p)
		if errors.Is(err, store.ErrNotFound) {
			err = &rule.ValidationError{Rule: r.Name(), Reason: fmt.Sprintf("premise %d is not in the store", i)}
		}
		if err != nil {
			s.metrics.observeRule(r.Name(), outcome(err))
			return nil, err
		}
	}
	return s.compute(ctx, r, stored)
}

func (s *InferenceService) compute(ctx context.Context, r rule.Rule, premises []*domain.Atom) (*domain.Atom, error) {
	a, err := r.Compute(ctx, premises)
	s.metrics.observeRule(r.Name(), outcome(err))
	return a, err
}

// ApplyAll searches the store for groundings of a rule's input patterns and
// computes the rule once per grounding, in parallel. Invalid and no-result
// groundings are counted; any other error aborts the run.
func (s *InferenceService) ApplyAll(ctx context.Context, ruleName string, req ApplyRequest) (*ApplyResult, error) {
	r, err := s.Rule(ruleName)
	if err != nil {
		return nil, err
	}
	spec := r.Spec()
	if spec.FreeInputArity {
		return nil, fmt.Errorf("%w: %s", ErrNotApplicable, ruleName)
	}

	qr, err := s.Query(ctx, QueryRequest{
		Clauses:       spec.Inputs,
		Policy:        req.Policy,
		MinConfidence: req.MinConfidence,
		Limit:         req.Limit,
	})
	if err != nil {
		return nil, err
	}

	res := &ApplyResult{Groundings: len(qr.Solutions), Truncated: qr.Truncated}
	var mu sync.Mutex
	derived := make(map[domain.Handle]struct{})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, sol := range qr.Solutions {
		premises := sol.Groundings
		g.Go(func() error {
			a, err := s.compute(gctx, r, premises)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				res.Derived++
				derived[a.Handle()] = struct{}{}
			case errors.Is(err, rule.ErrNoResult):
				res.NoResult++
			case errors.Is(err, rule.ErrInvalidPremises):
				res.Invalid++
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res.Handles = make([]domain.Handle, 0, len(derived))
	for h := range derived {
		res.Handles = append(res.Handles, h)
	}
	sort.Slice(res.Handles, func(i, j int) bool { return res.Handles[i] < res.Handles[j] })

	s.logger.Info("applied rule",
		zap.String("rule", ruleName),
		zap.Int("groundings", res.Groundings),
		zap.Int("derived", res.Derived),
		zap.Int("no_result", res.NoResult),
		zap.Int("invalid", res.Invalid))
	return res, nil
}

func (s *InferenceService) limit(n int) int {
	if n <= 0 || n > s.searchLimit {
		return s.searchLimit
	}
	return n
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "derived"
	case errors.Is(err, rule.ErrNoResult):
		return "no_result"
	case errors.Is(err, rule.ErrInvalidPremises):
		return "invalid"
	default:
		return "error"
	}
}

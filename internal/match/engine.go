package match

import (
	"context"
	"errors"
	"iter"
	"slices"
	"strconv"
	"strings"

	"github.com/Harshitk-cp/cogquery/internal/domain"
	"go.uber.org/zap"
)

// errStop unwinds the search once the consumer stops iterating.
var errStop = errors.New("match: stop")

// Query is a conjunction of clauses sharing one variable namespace.
type Query struct {
	Clauses []*domain.Atom
	// Variables names the search variables. When nil, every node whose type is
	// VariableNode or one of its subtypes is a search variable. Variable-typed
	// nodes left out of a non-nil list are handed to the policy as plain nodes.
	Variables []string
}

// Solution is one grounding of a query: the variable binding and, per clause,
// the store atom the clause was matched against.
type Solution struct {
	Binding    domain.Binding
	Groundings []*domain.Atom
}

type Engine struct {
	store  domain.AtomReader
	logger *zap.Logger
}

func NewEngine(store domain.AtomReader, logger *zap.Logger) *Engine {
	return &Engine{store: store, logger: logger}
}

// Search lazily enumerates every distinct solution of q under policy. A store
// or policy error, or cancellation of ctx, ends the sequence with that error.
// Atoms inserted while the search runs may or may not be seen.
func (e *Engine) Search(ctx context.Context, policy Policy, q Query) iter.Seq2[Solution, error] {
	return func(yield func(Solution, error) bool) {
		if len(q.Clauses) == 0 {
			return
		}
		s := newSearch(ctx, policy, e.store.Types(), q.Variables)
		s.store = e.store
		s.clauses = q.Clauses
		s.groundings = make([]*domain.Atom, len(q.Clauses))
		s.cache = make(map[domain.Type][]*domain.Atom)
		s.emit = func() error {
			sol := Solution{Binding: s.binding.Copy(), Groundings: slices.Clone(s.groundings)}
			if !yield(sol, nil) {
				return errStop
			}
			return nil
		}

		err := s.clause(0)
		e.logger.Debug("pattern search finished",
			zap.Int("clauses", len(q.Clauses)),
			zap.Int("solutions", len(s.seen)),
			zap.Error(err))
		if err != nil && !errors.Is(err, errStop) {
			yield(Solution{}, err)
		}
	}
}

// Bindings is Search over the given clauses with automatic variables, keeping
// only the bindings.
func (e *Engine) Bindings(ctx context.Context, policy Policy, clauses ...*domain.Atom) iter.Seq2[domain.Binding, error] {
	return func(yield func(domain.Binding, error) bool) {
		for sol, err := range e.Search(ctx, policy, Query{Clauses: clauses}) {
			if !yield(sol.Binding, err) {
				return
			}
		}
	}
}

// Collect drains a search into a slice. It stops at the first error.
func Collect(seq iter.Seq2[Solution, error]) ([]Solution, error) {
	var out []Solution
	for sol, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, sol)
	}
	return out, nil
}

type search struct {
	ctx     context.Context
	policy  Policy
	types   *domain.TypeRegistry
	store   domain.AtomReader
	vars    map[string]bool
	binding domain.Binding

	clauses    []*domain.Atom
	groundings []*domain.Atom
	cache      map[domain.Type][]*domain.Atom
	seen       map[string]struct{}
	emit       func() error
}

func newSearch(ctx context.Context, policy Policy, types *domain.TypeRegistry, vars []string) *search {
	s := &search{
		ctx:     ctx,
		policy:  policy,
		types:   types,
		binding: domain.NewBinding(),
		seen:    make(map[string]struct{}),
	}
	if vars != nil {
		s.vars = make(map[string]bool, len(vars))
		for _, v := range vars {
			s.vars[v] = true
		}
	}
	return s
}

func (s *search) isVar(a *domain.Atom) bool {
	if !a.IsNode() || !s.types.IsA(a.Type(), domain.VariableNode) {
		return false
	}
	return s.vars == nil || s.vars[a.Name()]
}

func (s *search) clause(i int) error {
	if i == len(s.clauses) {
		return s.accept()
	}
	cl := s.clauses[i]
	cands, err := s.candidates(cl)
	if err != nil {
		return err
	}
	for _, c := range cands {
		s.groundings[i] = c
		err := s.match(cl, c, false, func() error { return s.clause(i + 1) })
		if err != nil {
			return err
		}
	}
	s.groundings[i] = nil
	return nil
}

func (s *search) candidates(cl *domain.Atom) ([]*domain.Atom, error) {
	var t domain.Type
	if s.isVar(cl) {
		if bound, ok := s.binding[cl.Name()]; ok {
			return []*domain.Atom{bound}, nil
		}
		t = domain.AtomType
	} else {
		t = s.policy.CandidateType(cl)
	}
	if cands, ok := s.cache[t]; ok {
		return cands, nil
	}
	cands, err := s.store.AtomsByType(s.ctx, t, true)
	if err != nil {
		return nil, err
	}
	s.cache[t] = cands
	return cands, nil
}

func (s *search) accept() error {
	key := s.solutionKey()
	if _, dup := s.seen[key]; dup {
		return nil
	}
	ok, err := s.policy.AcceptSolution(s.binding, s.groundings)
	if err != nil || !ok {
		return err
	}
	s.seen[key] = struct{}{}
	return s.emit()
}

func (s *search) solutionKey() string {
	var b strings.Builder
	for _, g := range s.groundings {
		b.WriteString(strconv.FormatUint(uint64(g.Handle()), 10))
		b.WriteByte(',')
	}
	for _, name := range s.binding.Names() {
		b.WriteByte(';')
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(strconv.FormatUint(uint64(s.binding[name].Handle()), 10))
	}
	return b.String()
}

// match pairs pat with cand and calls next for every way the pairing can
// succeed. Bindings made here are undone before match returns. In grounded
// mode pat is the value of an already bound variable: it must equal cand
// structurally and the policy is not consulted, so a stored variable node
// never acts as a wildcard.
func (s *search) match(pat, cand *domain.Atom, grounded bool, next func() error) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}

	if grounded {
		if domain.Identical(pat, cand) {
			return next()
		}
		if !pat.IsLink() || !cand.IsLink() || pat.Type() != cand.Type() || pat.Arity() != cand.Arity() {
			return nil
		}
		if s.types.IsUnordered(pat.Type()) {
			used := make([]bool, cand.Arity())
			return s.matchSet(pat.Outgoing(), cand.Outgoing(), used, 0, true, next)
		}
		return s.matchSeq(pat.Outgoing(), cand.Outgoing(), 0, true, next)
	}

	if s.isVar(pat) {
		name := pat.Name()
		if bound, ok := s.binding[name]; ok {
			if domain.Identical(bound, cand) {
				return next()
			}
			return s.match(bound, cand, true, next)
		}
		s.binding[name] = cand
		err := next()
		delete(s.binding, name)
		return err
	}

	if pat.IsNode() {
		ok, err := s.policy.NodeMatch(pat, cand)
		if err != nil || !ok {
			return err
		}
		return next()
	}

	if !cand.IsLink() {
		return nil
	}
	ok, err := s.policy.LinkMatch(pat, cand)
	if err != nil || !ok {
		return err
	}
	if pat.Arity() != cand.Arity() {
		return nil
	}
	if s.types.IsUnordered(pat.Type()) || s.types.IsUnordered(cand.Type()) {
		used := make([]bool, cand.Arity())
		return s.matchSet(pat.Outgoing(), cand.Outgoing(), used, 0, grounded, next)
	}
	return s.matchSeq(pat.Outgoing(), cand.Outgoing(), 0, grounded, next)
}

func (s *search) matchSeq(pats, cands []*domain.Atom, i int, grounded bool, next func() error) error {
	if i == len(pats) {
		return next()
	}
	return s.match(pats[i], cands[i], grounded, func() error {
		return s.matchSeq(pats, cands, i+1, grounded, next)
	})
}

// matchSet tries every assignment of pattern children to distinct candidate
// children.
func (s *search) matchSet(pats, cands []*domain.Atom, used []bool, i int, grounded bool, next func() error) error {
	if i == len(pats) {
		return next()
	}
	for j, c := range cands {
		if used[j] {
			continue
		}
		used[j] = true
		err := s.match(pats[i], c, grounded, func() error {
			return s.matchSet(pats, cands, used, i+1, grounded, next)
		})
		used[j] = false
		if err != nil {
			return err
		}
	}
	return nil
}

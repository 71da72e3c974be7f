package match

import "github.com/Harshitk-cp/cogquery/internal/domain"

// Policy decides, for one pattern atom and one candidate atom, whether the
// search may continue down that pairing. The engine only asks a policy about
// atoms that are not search variables; variables are bound by the engine.
type Policy interface {
	// NodeMatch compares a pattern node against a candidate atom.
	NodeMatch(pattern, candidate *domain.Atom) (bool, error)
	// LinkMatch is a pre-check on a pattern link and a candidate link before
	// their outgoing sets are compared. Returning true does not accept the
	// pairing, it only allows the engine to descend into it.
	LinkMatch(pattern, candidate *domain.Atom) (bool, error)
	// CandidateType picks the type whose atoms (subtypes included) are tried
	// as groundings of a top-level clause.
	CandidateType(clause *domain.Atom) domain.Type
	// AcceptSolution is the final say on a complete grounding.
	AcceptSolution(b domain.Binding, groundings []*domain.Atom) (bool, error)
}

// DefaultPolicy is the reference behavior: nodes match when identical or when
// the pattern node is a plain VariableNode, links match when identical or when
// type and arity agree. A VariableScopeLink in a pattern accepts a link of any
// type with the same arity.
type DefaultPolicy struct{}

func (DefaultPolicy) NodeMatch(pattern, candidate *domain.Atom) (bool, error) {
	if domain.Identical(pattern, candidate) {
		return true, nil
	}
	return pattern.Type() == domain.VariableNode, nil
}

func (DefaultPolicy) LinkMatch(pattern, candidate *domain.Atom) (bool, error) {
	if domain.Identical(pattern, candidate) {
		return true, nil
	}
	if pattern.Arity() != candidate.Arity() {
		return false, nil
	}
	if pattern.Type() != candidate.Type() && pattern.Type() != domain.VariableScopeLink {
		return false, nil
	}
	return true, nil
}

func (DefaultPolicy) CandidateType(clause *domain.Atom) domain.Type {
	return candidateType(clause, clause.Type() == domain.VariableNode)
}

func (DefaultPolicy) AcceptSolution(domain.Binding, []*domain.Atom) (bool, error) {
	return true, nil
}

// candidateType seeds a clause from its own type index. A wildcard node may
// stand for any atom and a scope link for any link.
func candidateType(clause *domain.Atom, wildcard bool) domain.Type {
	switch {
	case clause.IsNode() && wildcard:
		return domain.AtomType
	case clause.Type() == domain.VariableScopeLink:
		return domain.LinkType
	default:
		return clause.Type()
	}
}

// HierarchyPolicy widens DefaultPolicy with the type lattice: a pattern of type
// T matches candidates of any subtype of T, and any subtype of VariableNode
// acts as a wildcard.
type HierarchyPolicy struct {
	Types *domain.TypeRegistry
}

func NewHierarchyPolicy(types *domain.TypeRegistry) HierarchyPolicy {
	return HierarchyPolicy{Types: types}
}

func (p HierarchyPolicy) NodeMatch(pattern, candidate *domain.Atom) (bool, error) {
	if domain.Identical(pattern, candidate) {
		return true, nil
	}
	return p.Types.IsA(pattern.Type(), domain.VariableNode), nil
}

func (p HierarchyPolicy) LinkMatch(pattern, candidate *domain.Atom) (bool, error) {
	if domain.Identical(pattern, candidate) {
		return true, nil
	}
	if pattern.Arity() != candidate.Arity() {
		return false, nil
	}
	if pattern.Type() == domain.VariableScopeLink {
		return true, nil
	}
	return p.Types.IsA(candidate.Type(), pattern.Type()), nil
}

func (p HierarchyPolicy) CandidateType(clause *domain.Atom) domain.Type {
	return candidateType(clause, clause.IsNode() && p.Types.IsA(clause.Type(), domain.VariableNode))
}

func (HierarchyPolicy) AcceptSolution(domain.Binding, []*domain.Atom) (bool, error) {
	return true, nil
}

// ThresholdPolicy wraps another policy and rejects candidates, and complete
// solutions, whose truth values fall below the configured minimums.
type ThresholdPolicy struct {
	Inner         Policy
	MinStrength   float64
	MinConfidence float64
}

func (p ThresholdPolicy) passes(a *domain.Atom) bool {
	tv := a.TruthValue()
	return tv.Strength >= p.MinStrength && tv.Confidence >= p.MinConfidence
}

func (p ThresholdPolicy) NodeMatch(pattern, candidate *domain.Atom) (bool, error) {
	ok, err := p.Inner.NodeMatch(pattern, candidate)
	if err != nil || !ok {
		return ok, err
	}
	return p.passes(candidate), nil
}

func (p ThresholdPolicy) LinkMatch(pattern, candidate *domain.Atom) (bool, error) {
	ok, err := p.Inner.LinkMatch(pattern, candidate)
	if err != nil || !ok {
		return ok, err
	}
	return p.passes(candidate), nil
}

func (p ThresholdPolicy) CandidateType(clause *domain.Atom) domain.Type {
	return p.Inner.CandidateType(clause)
}

func (p ThresholdPolicy) AcceptSolution(b domain.Binding, groundings []*domain.Atom) (bool, error) {
	for _, g := range groundings {
		if !p.passes(g) {
			return false, nil
		}
	}
	return p.Inner.AcceptSolution(b, groundings)
}

package domain

import "testing"

func TestIdentical(t *testing.T) {
	a := NewNode(ConceptNode, "cat")
	a2 := NewNode(ConceptNode, "cat")
	p := NewNode(PredicateNode, "cat")
	l1 := NewLink(ListLink, a, p)
	l2 := NewLink(ListLink, a, p)
	s1 := Interned(7, l1, l1.Outgoing(), NullTruthValue)
	s2 := Interned(7, l2, l2.Outgoing(), NullTruthValue)

	tests := []struct {
		name string
		x, y *Atom
		want bool
	}{
		{"same pointer", a, a, true},
		{"same node content", a, a2, true},
		{"different node type", a, p, false},
		{"free links", l1, l2, false},
		{"same handle", s1, s2, true},
		{"nil", a, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Identical(tt.x, tt.y); got != tt.want {
				t.Errorf("Identical = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	r := NewTypeRegistry()
	l := NewLink(InheritanceLink, NewNode(ConceptNode, "cat"), Var("$X"))
	want := `(InheritanceLink (ConceptNode "cat") (VariableNode "$X"))`
	if got := r.Format(l); got != want {
		t.Errorf("Format = %s, want %s", got, want)
	}
}

func TestWithTruthValueOnlyForFreeAtoms(t *testing.T) {
	free := NewNode(ConceptNode, "a").WithTruthValue(NewTruthValue(0.5, 0.5))
	if free.TruthValue() != NewTruthValue(0.5, 0.5) {
		t.Errorf("free atom truth value = %v", free.TruthValue())
	}

	stored := Interned(1, free, nil, NewTruthValue(0.1, 0.1))
	stored.WithTruthValue(NewTruthValue(0.9, 0.9))
	if stored.TruthValue() != NewTruthValue(0.1, 0.1) {
		t.Errorf("interned atom must not be changed by WithTruthValue, got %v", stored.TruthValue())
	}
}

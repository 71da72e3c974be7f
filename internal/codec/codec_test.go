package codec

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/Harshitk-cp/cogquery/internal/domain"
	"github.com/Harshitk-cp/cogquery/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDecode(t *testing.T) {
	types := domain.NewTypeRegistry()
	var spec AtomSpec
	require.NoError(t, json.Unmarshal([]byte(`{
		"type": "InheritanceLink",
		"tv": {"strength": 0.9, "confidence": 0.8},
		"outgoing": [
			{"type": "VariableNode", "name": "$X"},
			{"type": "ConceptNode", "name": "animal"}
		]
	}`), &spec))

	a, err := Decode(context.Background(), types, nil, spec)
	require.NoError(t, err)
	assert.Equal(t, `(InheritanceLink (VariableNode "$X") (ConceptNode "animal"))`, types.Format(a))
	assert.Equal(t, domain.NewTruthValue(0.9, 0.8), a.TruthValue())
}

func TestDecode_Errors(t *testing.T) {
	types := domain.NewTypeRegistry()
	tests := []struct {
		name string
		spec AtomSpec
		want error
	}{
		{"empty", AtomSpec{}, ErrInvalidSpec},
		{"unknown type", AtomSpec{Type: "FrobLink"}, domain.ErrUnknownType},
		{"named link", AtomSpec{Type: "ListLink", Name: "x"}, ErrInvalidSpec},
		{"node with children", AtomSpec{Type: "ConceptNode", Outgoing: []AtomSpec{{Type: "ConceptNode"}}}, ErrInvalidSpec},
		{"handle without resolver", AtomSpec{Handle: 4}, ErrInvalidSpec},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(context.Background(), types, nil, tt.spec)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecode_HandleReference(t *testing.T) {
	ctx := context.Background()
	s := store.NewAtomSpace(domain.NewTypeRegistry(), zap.NewNop())
	cat, err := s.InsertOrMerge(ctx, domain.NewNode(domain.ConceptNode, "cat"), domain.NullTruthValue)
	require.NoError(t, err)

	a, err := Decode(ctx, s.Types(), s, AtomSpec{Type: "ListLink", Outgoing: []AtomSpec{{Handle: cat.Handle()}}})
	require.NoError(t, err)
	assert.Same(t, cat, a.Outgoing()[0])

	_, err = Decode(ctx, s.Types(), s, AtomSpec{Handle: 99})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEncode(t *testing.T) {
	types := domain.NewTypeRegistry()
	a := domain.NewLink(domain.ListLink, domain.NewNode(domain.ConceptNode, "a")).
		WithTruthValue(domain.NewTruthValue(1, 0.5))

	spec := Encode(types, a)
	assert.Equal(t, "ListLink", spec.Type)
	require.NotNil(t, spec.TV)
	assert.Equal(t, 0.5, spec.TV.Confidence)
	require.Len(t, spec.Outgoing, 1)
	assert.Nil(t, spec.Outgoing[0].TV)

	b := EncodeBinding(types, domain.Binding{"$X": domain.NewNode(domain.ConceptNode, "cat")})
	assert.Equal(t, "cat", b["$X"].Name)
}

func TestReadFile(t *testing.T) {
	doc := `
types:
  - name: MemberLink
    parent: UnorderedLink
atoms:
  - type: InheritanceLink
    tv: {strength: 0.9, confidence: 0.9}
    outgoing:
      - {type: ConceptNode, name: cat}
      - {type: ConceptNode, name: animal}
`
	f, err := ReadFile(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, f.Types, 1)
	assert.Equal(t, "UnorderedLink", f.Types[0].Parent)
	require.Len(t, f.Atoms, 1)
	assert.Equal(t, 0.9, f.Atoms[0].TV.Strength)
	assert.Equal(t, "animal", f.Atoms[0].Outgoing[1].Name)

	empty, err := ReadFile(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, empty.Atoms)
}

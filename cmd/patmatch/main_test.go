package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const taxonomy = `
atoms:
  - {type: ConceptNode, name: cat, tv: {strength: 0.05, confidence: 0.9}}
  - {type: ConceptNode, name: dog, tv: {strength: 0.05, confidence: 0.9}}
  - {type: ConceptNode, name: mammal, tv: {strength: 0.2, confidence: 0.9}}
  - {type: ConceptNode, name: animal, tv: {strength: 0.4, confidence: 0.9}}
  - type: InheritanceLink
    tv: {strength: 0.9, confidence: 0.8}
    outgoing: [{type: ConceptNode, name: cat}, {type: ConceptNode, name: mammal}]
  - type: InheritanceLink
    tv: {strength: 0.9, confidence: 0.8}
    outgoing: [{type: ConceptNode, name: dog}, {type: ConceptNode, name: mammal}]
  - type: InheritanceLink
    tv: {strength: 0.9, confidence: 0.8}
    outgoing: [{type: ConceptNode, name: mammal}, {type: ConceptNode, name: animal}]
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestQueryCmd(t *testing.T) {
	atoms := writeFile(t, "atoms.yaml", taxonomy)
	pattern := writeFile(t, "pattern.yaml", `
clauses:
  - type: InheritanceLink
    outgoing: [{type: VariableNode, name: $X}, {type: ConceptNode, name: mammal}]
`)

	out, err := execute(t, "query", "-f", atoms, "--json=false", "--limit", "0", "--policy", "default", pattern)
	require.NoError(t, err)
	assert.Contains(t, out, `$X = (ConceptNode "cat")`)
	assert.Contains(t, out, `$X = (ConceptNode "dog")`)
	assert.Contains(t, out, "2 solution(s)")

	out, err = execute(t, "query", "-f", atoms, "--json=true", "--limit", "1", "--policy", "default", pattern)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(strings.TrimSpace(out), "\n")+1)
	assert.Contains(t, out, `"$X"`)
}

func TestQueryCmd_Errors(t *testing.T) {
	atoms := writeFile(t, "atoms.yaml", taxonomy)
	pattern := writeFile(t, "pattern.yaml", `clauses: [{type: FrobLink}]`)

	_, err := execute(t, "query", "-f", atoms, "--json=false", "--policy", "default", pattern)
	assert.Error(t, err)

	_, err = execute(t, "query", "-f", filepath.Join(t.TempDir(), "missing.yaml"), pattern)
	assert.Error(t, err)
}

func TestApplyCmd(t *testing.T) {
	atoms := writeFile(t, "atoms.yaml", taxonomy)

	out, err := execute(t, "apply", "-f", atoms, "--json=false", "--limit", "0", "--policy", "default", "deduction")
	require.NoError(t, err)
	assert.Contains(t, out, `(InheritanceLink (ConceptNode "cat") (ConceptNode "animal"))`)
	assert.Contains(t, out, `(InheritanceLink (ConceptNode "dog") (ConceptNode "animal"))`)
	assert.Contains(t, out, "2 grounding(s): 2 derived")

	_, err = execute(t, "apply", "-f", atoms, "--json=false", "and")
	assert.Error(t, err)
}

func TestRulesCmd(t *testing.T) {
	out, err := execute(t, "rules", "-f", "", "--json=false")
	require.NoError(t, err)
	for _, name := range []string{"and", "deduction", "inversion", "not", "or"} {
		assert.Contains(t, out, name)
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "cogquery dev"))
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/Harshitk-cp/cogquery/internal/codec"
	"github.com/Harshitk-cp/cogquery/internal/service"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	policyName    string
	minConfidence float64
	limit         int
)

// patternFile is the YAML form of a query:
//
//	variables: [$X]
//	clauses:
//	  - type: InheritanceLink
//	    outgoing: [{type: VariableNode, name: $X}, {type: ConceptNode, name: animal}]
type patternFile struct {
	Variables []string         `yaml:"variables"`
	Clauses   []codec.AtomSpec `yaml:"clauses"`
}

var queryCmd = &cobra.Command{
	Use:   "query <pattern.yaml>",
	Short: "Find all groundings of a pattern",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery,
}

func init() {
	for _, cmd := range []*cobra.Command{queryCmd, applyCmd} {
		cmd.Flags().StringVar(&policyName, "policy", "default", "Match policy (default, hierarchy)")
		cmd.Flags().Float64Var(&minConfidence, "min-confidence", 0, "Ignore atoms below this confidence")
		cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of solutions (0 for the server default)")
	}
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var pf patternFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return fmt.Errorf("parse %s: %w", args[0], err)
	}

	types := s.space.Types()
	clauses, err := codec.DecodeAll(ctx, types, s.space, pf.Clauses)
	if err != nil {
		return err
	}

	res, err := s.inference.Query(ctx, service.QueryRequest{
		Clauses:       clauses,
		Variables:     pf.Variables,
		Policy:        policyName,
		MinConfidence: minConfidence,
		Limit:         limit,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		for _, sol := range res.Solutions {
			if err := enc.Encode(codec.EncodeBinding(types, sol.Binding)); err != nil {
				return err
			}
		}
		return nil
	}

	for i, sol := range res.Solutions {
		parts := make([]string, 0, len(sol.Binding))
		for _, name := range sol.Binding.Names() {
			parts = append(parts, name+" = "+types.Format(sol.Binding[name]))
		}
		if len(parts) == 0 {
			parts = append(parts, "(no variables)")
		}
		fmt.Fprintf(out, "%d: %s\n", i+1, strings.Join(parts, ", "))
	}
	fmt.Fprintf(out, "%d solution(s)", len(res.Solutions))
	if res.Truncated {
		fmt.Fprint(out, ", truncated")
	}
	fmt.Fprintln(out)
	return nil
}

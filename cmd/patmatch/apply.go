package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/Harshitk-cp/cogquery/internal/codec"
	"github.com/Harshitk-cp/cogquery/internal/service"
	"github.com/spf13/cobra"
)

var applyCmd = &cobra.Command{
	Use:   "apply <rule>",
	Short: "Apply a rule to every grounding of its inputs",
	Args:  cobra.ExactArgs(1),
	RunE:  runApply,
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the registered rules",
	RunE:  runRules,
}

func runApply(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}

	res, err := s.inference.ApplyAll(ctx, args[0], service.ApplyRequest{
		Policy:        policyName,
		MinConfidence: minConfidence,
		Limit:         limit,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	types := s.space.Types()
	if asJSON {
		derived := make([]codec.AtomSpec, 0, len(res.Handles))
		for _, h := range res.Handles {
			a, err := s.space.Get(ctx, h)
			if err != nil {
				return err
			}
			derived = append(derived, codec.Encode(types, a))
		}
		return json.NewEncoder(out).Encode(map[string]any{"result": res, "atoms": derived})
	}

	for _, h := range res.Handles {
		a, err := s.space.Get(ctx, h)
		if err != nil {
			return err
		}
		tv := a.TruthValue()
		fmt.Fprintf(out, "%s <%.3f, %.3f>\n", types.Format(a), tv.Strength, tv.Confidence)
	}
	fmt.Fprintf(out, "%d grounding(s): %d derived, %d no result, %d invalid\n",
		res.Groundings, res.Derived, res.NoResult, res.Invalid)
	return nil
}

func runRules(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}

	types := s.space.Types()
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tINPUTS\tOUTPUT")
	for _, r := range s.inference.Rules() {
		spec := r.Spec()
		inputs, output := "*", "(synthesized)"
		if !spec.FreeInputArity {
			inputs = fmt.Sprint(len(spec.Inputs))
		}
		if spec.Output != nil {
			output = types.Format(spec.Output)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name(), inputs, output)
	}
	return w.Flush()
}

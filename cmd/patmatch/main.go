// Command patmatch runs pattern queries and inference rules over an atom file
// without a server.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Harshitk-cp/cogquery/internal/buildconfig"
	"github.com/Harshitk-cp/cogquery/internal/codec"
	"github.com/Harshitk-cp/cogquery/internal/config"
	"github.com/Harshitk-cp/cogquery/internal/domain"
	"github.com/Harshitk-cp/cogquery/internal/service"
	"github.com/Harshitk-cp/cogquery/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	atomFile  string
	typesFile string
	verbose   bool
	asJSON    bool
	timeout   time.Duration

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "patmatch",
	Short: "Query and infer over an atom file",
	Long: `patmatch loads a YAML atom file into an in-memory store and runs
pattern queries or inference rules against it.

The atom file has the form:

  types:
    - {name: MemberLink, parent: UnorderedLink}
  atoms:
    - type: InheritanceLink
      tv: {strength: 0.9, confidence: 0.8}
      outgoing:
        - {type: ConceptNode, name: cat}
        - {type: ConceptNode, name: animal}`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !verbose {
			return nil
		}
		l, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), buildconfig.String())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&atomFile, "file", "f", "", "YAML atom file to load")
	rootCmd.PersistentFlags().StringVar(&typesFile, "types", "", "YAML file of extra atom types")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", time.Minute, "Operation timeout")

	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// session is a loaded store with services over it.
type session struct {
	space     *store.AtomSpace
	atoms     *service.AtomService
	inference *service.InferenceService
}

func openSession(ctx context.Context) (*session, error) {
	types := domain.NewTypeRegistry()
	if typesFile != "" {
		infos, err := config.LoadTypes(typesFile)
		if err != nil {
			return nil, fmt.Errorf("load types: %w", err)
		}
		if err := config.RegisterTypes(types, infos); err != nil {
			return nil, err
		}
	}

	space := store.NewAtomSpace(types, logger)
	s := &session{
		space:     space,
		atoms:     service.NewAtomService(space, logger),
		inference: service.NewInferenceService(space, logger),
	}
	if err := s.inference.RegisterBuiltins(); err != nil {
		return nil, err
	}

	if atomFile == "" {
		return s, nil
	}
	f, err := os.Open(atomFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := codec.ReadFile(f)
	if err != nil {
		return nil, err
	}
	if err := config.RegisterTypes(types, doc.Types); err != nil {
		return nil, err
	}
	for i, spec := range doc.Atoms {
		shape, err := codec.Decode(ctx, types, space, spec)
		if err != nil {
			return nil, fmt.Errorf("%s: atom %d: %w", atomFile, i, err)
		}
		if _, err := s.atoms.Insert(ctx, shape); err != nil {
			return nil, fmt.Errorf("%s: atom %d: %w", atomFile, i, err)
		}
	}
	logger.Debug("loaded atom file", zap.String("path", atomFile), zap.Int("atoms", space.Size()))
	return s, nil
}

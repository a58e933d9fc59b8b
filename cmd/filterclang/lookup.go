package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jlebar/llvm-repo-tools/internal/correspond"
)

func init() {
	rootCmd.AddCommand(lookupCmd)
}

var lookupCmd = &cobra.Command{
	Use:   "lookup <rev>...",
	Short: "Show how each revision would be rewritten",
	Long: `Show how each revision would be rewritten, without touching anything.

For each revision prints whether it would be edited, its new upstream
counterpart, its rewritten hash if the rewrite map has one, and the
reference parent its tree would build on. Useful for checking the
correspondence before starting a long filter-branch run.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLookup,
}

func runLookup(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	reports := make([]*correspond.Report, 0, len(args))
	for _, arg := range args {
		rev, err := s.repo.ResolveCommit(arg)
		if err != nil {
			return err
		}
		r, err := s.engine.Describe(rev)
		if err != nil {
			return err
		}
		reports = append(reports, r)
	}

	out := cmd.OutOrStdout()
	if !humanOutput {
		return outputJSON(out, reports)
	}
	for _, r := range reports {
		fmt.Fprintf(out, "%s\n", r.Rev)
		fmt.Fprintf(out, "  edit:             %t\n", r.ShouldEdit)
		fmt.Fprintf(out, "  new upstream:     %s\n", orNone(r.NewUpstream))
		fmt.Fprintf(out, "  filtered:         %s\n", orNone(r.Filtered))
		if r.ShouldEdit {
			fmt.Fprintf(out, "  reference parent: %s\n", orNone(r.ReferenceParent))
		}
	}
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

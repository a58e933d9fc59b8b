package main

import (
	"github.com/spf13/cobra"

	"github.com/jlebar/llvm-repo-tools/internal/filter"
)

func init() {
	rootCmd.AddCommand(parentCmd)
}

var parentCmd = &cobra.Command{
	Use:   "parent",
	Short: "Parent filter: map $GIT_COMMIT's parents onto the new upstream",
	Long: `Parent filter for git filter-branch --parent-filter.

Reads a "-p <hash> -p <hash>" list on stdin and writes it to stdout with
every parent on the old upstream line replaced by its new upstream
counterpart. Commits on the old upstream line pass through unchanged.`,
	Args: cobra.NoArgs,
	RunE: runParent,
}

func runParent(cmd *cobra.Command, args []string) error {
	rev, err := requireEnv(envCommit)
	if err != nil {
		return err
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	return filter.New(s.engine, s.repo).Parents(rev, cmd.InOrStdin(), cmd.OutOrStdout())
}

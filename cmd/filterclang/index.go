package main

import (
	"github.com/spf13/cobra"

	"github.com/jlebar/llvm-repo-tools/internal/filter"
)

func init() {
	rootCmd.AddCommand(indexCmd)
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index filter: rewrite $GIT_COMMIT's tree into $GIT_INDEX_FILE",
	Long: `Index filter for git filter-branch --index-filter.

If $GIT_COMMIT is on the old upstream line, the index is left alone.
Otherwise $GIT_INDEX_FILE is replaced by the commit's own tree under the
prefix plus everything outside the prefix from its reference parent.`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func runIndex(cmd *cobra.Command, args []string) error {
	rev, err := requireEnv(envCommit)
	if err != nil {
		return err
	}
	indexFile, err := requireEnv(envIndexFile)
	if err != nil {
		return err
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	_, err = filter.New(s.engine, s.repo).Index(rev, indexFile)
	return err
}

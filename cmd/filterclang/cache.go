package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jlebar/llvm-repo-tools/internal/memo"
)

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the memo database",
	Long: `Inspect or clear the memo database.

The database persists answers across the many processes of one
filter-branch run. Entries are keyed by the upstream tips they were
computed against, so a stale entry is never reused after an upstream
moves; clear the cache to reclaim the space.`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show entry counts and size of the memo database",
	Args:  cobra.NoArgs,
	RunE:  runCacheStats,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every entry in the memo database",
	Args:  cobra.NoArgs,
	RunE:  runCacheClear,
}

// openCacheFile opens the configured database for maintenance. ok is false
// when it does not exist yet.
func openCacheFile(cmd *cobra.Command) (store *memo.SQLite, path string, ok bool, err error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, "", false, err
	}
	path = cfg.CachePath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, path, false, nil
	}
	store, err = memo.OpenSQLite(path, "")
	if err != nil {
		return nil, path, false, err
	}
	return store, path, true, nil
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	store, path, ok, err := openCacheFile(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	stats := &memo.Stats{Path: path, Entries: map[string]int{}}
	if ok {
		defer store.Close()
		if stats, err = store.Stats(); err != nil {
			return err
		}
	}

	if !humanOutput {
		return outputJSON(out, stats)
	}

	fmt.Fprintf(out, "Path:   %s\n", stats.Path)
	fmt.Fprintf(out, "Size:   %s\n", humanize.Bytes(uint64(stats.SizeBytes)))
	fmt.Fprintf(out, "Scopes: %d\n", stats.Scopes)

	fns := make([]string, 0, len(stats.Entries))
	for fn := range stats.Entries {
		fns = append(fns, fn)
	}
	sort.Strings(fns)
	for _, fn := range fns {
		fmt.Fprintf(out, "  %-22s %s\n", fn, humanize.Comma(int64(stats.Entries[fn])))
	}
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	store, path, ok, err := openCacheFile(cmd)
	if err != nil {
		return err
	}

	var removed int64
	if ok {
		defer store.Close()
		if removed, err = store.Clear(); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if humanOutput {
		fmt.Fprintf(out, "Removed %s entries from %s\n", humanize.Comma(removed), path)
		return nil
	}
	return outputJSON(out, StatusResponse{Status: "cleared", Path: path, Removed: removed})
}

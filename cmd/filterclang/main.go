// Package main provides the filterclang CLI entry point.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jlebar/llvm-repo-tools/internal/config"
)

// Version is set at build time via ldflags
var Version = "dev"

// Persistent flags. Unset flags leave the loaded configuration alone.
var (
	configPath  string
	logLevel    string
	oldUpstream string
	newUpstream string
	prefix      string
	cacheDir    string
	mapDir      string
	repoDir     string
	noCache     bool
	humanOutput bool
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errUsage) {
			// Print the error since we have SilenceErrors: true
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(exitCodeFor(err))
	}
}

var rootCmd = &cobra.Command{
	Use:   "filterclang index|parent",
	Short: "git filter-branch callbacks that move clang history into the monorepo",
	Long: `filterclang rewrites commits made on top of a standalone clang repository
so they sit on top of the corresponding commits of the LLVM monorepo.

Run it from git filter-branch:

  git filter-branch \
    --index-filter 'filterclang index' \
    --parent-filter 'filterclang parent' \
    -- <branch> ^old-clang/master

Commits already on the old upstream line are left alone. Every other
commit gets its tree moved under the prefix (clang/ by default) next to
the rest of the monorepo, and each parent on the old line is replaced by
its monorepo counterpart.`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return usage(cmd)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/filterclang/config.yml)")
	flags.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.StringVar(&oldUpstream, "old-upstream", "", "Branch the rewritten history moves away from")
	flags.StringVar(&newUpstream, "new-upstream", "", "Branch the rewritten history moves onto")
	flags.StringVar(&prefix, "prefix", "", "Directory each rewritten tree moves under")
	flags.StringVar(&cacheDir, "cache-dir", "", "Directory holding the memo database")
	flags.StringVar(&mapDir, "map-dir", "", "filter-branch rewrite map directory")
	flags.StringVar(&repoDir, "repo", "", "Repository to run git in (default: working directory)")
	flags.BoolVar(&noCache, "no-cache", false, "Recompute every query instead of using the memo database")
	flags.BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.Version = Version
}

// usage prints the one-line usage to stdout and returns errUsage.
func usage(cmd *cobra.Command) error {
	fmt.Fprintf(cmd.OutOrStdout(), "Usage: %s index|parent\n", cmd.Root().Name())
	return errUsage
}

// loadConfig builds the effective configuration: file, environment, then
// whichever flags were set on the command line.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, required := config.ResolvePath(configPath)
	cfg, err := config.Load(path, required)
	if err != nil {
		return config.Config{}, &configError{err}
	}

	flags := cmd.Flags()
	overrides := []struct {
		name string
		val  string
		dst  *string
	}{
		{"old-upstream", oldUpstream, &cfg.OldUpstream},
		{"new-upstream", newUpstream, &cfg.NewUpstream},
		{"prefix", prefix, &cfg.Prefix},
		{"cache-dir", cacheDir, &cfg.CacheDir},
		{"map-dir", mapDir, &cfg.MapDir},
		{"repo", repoDir, &cfg.RepoDir},
		{"log-level", logLevel, &cfg.LogLevel},
	}
	for _, o := range overrides {
		if flags.Changed(o.name) {
			*o.dst = o.val
		}
	}
	if flags.Changed("no-cache") {
		cfg.CacheEnabled = !noCache
	}
	cfg.Prefix = config.NormalizePrefix(cfg.Prefix)

	if err := cfg.Validate(); err != nil {
		return config.Config{}, &configError{err}
	}
	if err := setupLogging(cmd.ErrOrStderr(), cfg.LogLevel); err != nil {
		return config.Config{}, &configError{err}
	}
	return cfg, nil
}

// setupLogging sends logs to w, which is stderr in production: stdout
// belongs to filter-branch in parent mode.
func setupLogging(w io.Writer, level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("%w: log_level: %v", config.ErrInvalidConfig, err)
	}
	log.SetOutput(w)
	log.SetLevel(lvl)
	log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
	return nil
}

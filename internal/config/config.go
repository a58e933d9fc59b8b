// Package config handles run configuration for filterclang.
//
// A Config is built once per process and passed by value into every
// constructor; nothing in the module reads configuration from globals.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the immutable configuration for one filtering run.
type Config struct {
	OldUpstream  string `yaml:"old_upstream"`       // Branch whose history is migrated away from
	NewUpstream  string `yaml:"new_upstream"`       // Branch supplying the replacement history
	Prefix       string `yaml:"prefix"`             // Namespace each rewritten commit's tree moves under
	CacheDir     string `yaml:"cache_dir"`          // Directory holding the memo database
	CacheEnabled bool   `yaml:"cache_enabled"`      // Disable to recompute every query
	MapDir       string `yaml:"map_dir"`            // filter-branch rewrite map, relative to the working dir
	RepoDir      string `yaml:"repo_dir,omitempty"` // Where git runs; empty means the working dir
	LogLevel     string `yaml:"log_level"`          // logrus level name
}

const (
	DefaultOldUpstream = "old-clang/master"
	DefaultNewUpstream = "origin/master"
	DefaultPrefix      = "clang/"
	DefaultCacheDir    = "/tmp/filter-branch-cache"
	DefaultMapDir      = "../map"
	DefaultLogLevel    = "warn"

	// CacheFile is the memo database file name inside CacheDir.
	CacheFile = "memo.db"

	// EnvPrefix prefixes every environment variable filterclang reads.
	EnvPrefix = "FILTERCLANG_"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		OldUpstream:  DefaultOldUpstream,
		NewUpstream:  DefaultNewUpstream,
		Prefix:       DefaultPrefix,
		CacheDir:     DefaultCacheDir,
		CacheEnabled: true,
		MapDir:       DefaultMapDir,
		LogLevel:     DefaultLogLevel,
	}
}

// CachePath returns the path to the memo database.
func (c Config) CachePath() string {
	return filepath.Join(ExpandPath(c.CacheDir), CacheFile)
}

// MapEntryPath returns the rewrite map file recording rev's rewritten hash.
func (c Config) MapEntryPath(rev string) string {
	return filepath.Join(c.MapDir, rev)
}

// Load builds the effective configuration: defaults, then the YAML file at
// path, then FILTERCLANG_* variables from the process environment.
//
// When required is false a missing file is not an error.
func Load(path string, required bool) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.mergeFile(path, required); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}

	cfg.Prefix = NormalizePrefix(cfg.Prefix)
	return cfg, nil
}

// mergeFile overlays the keys present in a YAML file onto c.
func (c *Config) mergeFile(path string, required bool) error {
	data, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays FILTERCLANG_* variables found through lookup onto c.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := []struct {
		key string
		dst *string
	}{
		{"OLD_UPSTREAM", &c.OldUpstream},
		{"NEW_UPSTREAM", &c.NewUpstream},
		{"PREFIX", &c.Prefix},
		{"CACHE_DIR", &c.CacheDir},
		{"MAP_DIR", &c.MapDir},
		{"REPO_DIR", &c.RepoDir},
		{"LOG_LEVEL", &c.LogLevel},
	}
	for _, s := range strs {
		if v, ok := lookup(EnvPrefix + s.key); ok && v != "" {
			*s.dst = v
		}
	}

	if v, ok := lookup(EnvPrefix + "CACHE_ENABLED"); ok && v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parsing %sCACHE_ENABLED=%q: %w", EnvPrefix, v, err)
		}
		c.CacheEnabled = enabled
	}
	return nil
}

// Validate checks that the configuration describes a usable run.
func (c Config) Validate() error {
	if c.OldUpstream == "" || c.NewUpstream == "" {
		return fmt.Errorf("%w: old_upstream and new_upstream must both be set", ErrInvalidConfig)
	}
	if c.OldUpstream == c.NewUpstream {
		return fmt.Errorf("%w: old_upstream and new_upstream are both %q", ErrInvalidConfig, c.OldUpstream)
	}
	if err := ValidatePrefix(c.Prefix); err != nil {
		return err
	}
	if c.MapDir == "" {
		return fmt.Errorf("%w: map_dir must be set", ErrInvalidConfig)
	}
	if c.CacheEnabled && c.CacheDir == "" {
		return fmt.Errorf("%w: cache_dir must be set when the cache is enabled", ErrInvalidConfig)
	}
	return nil
}

// ValidatePrefix checks that prefix is a relative, non-empty tree path.
func ValidatePrefix(prefix string) error {
	trimmed := strings.TrimSuffix(prefix, "/")
	if trimmed == "" {
		return fmt.Errorf("%w: prefix must not be empty", ErrInvalidConfig)
	}
	if strings.HasPrefix(trimmed, "/") {
		return fmt.Errorf("%w: prefix %q must be relative", ErrInvalidConfig, prefix)
	}
	for _, seg := range strings.Split(trimmed, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("%w: prefix %q has an invalid path segment", ErrInvalidConfig, prefix)
		}
	}
	return nil
}

// NormalizePrefix makes sure a non-empty prefix ends in exactly one slash.
func NormalizePrefix(prefix string) string {
	if prefix == "" {
		return ""
	}
	return strings.TrimRight(prefix, "/") + "/"
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path // Return original if we can't get home directory
	}

	return filepath.Join(home, path[1:])
}

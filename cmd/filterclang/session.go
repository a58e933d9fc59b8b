package main

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jlebar/llvm-repo-tools/internal/config"
	"github.com/jlebar/llvm-repo-tools/internal/correspond"
	"github.com/jlebar/llvm-repo-tools/internal/git"
	"github.com/jlebar/llvm-repo-tools/internal/memo"
	"github.com/jlebar/llvm-repo-tools/internal/rewritemap"
)

// session is everything one invocation needs to answer queries.
type session struct {
	cfg        config.Config
	repo       *git.Repo
	engine     *correspond.Engine
	closeCache func() error
}

// openSession loads configuration and wires the repository, memo cache,
// and rewrite map into an engine. The caller must call Close.
func openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	if cfg.RepoDir != "" {
		root, err := git.FindRepoRoot(config.ExpandPath(cfg.RepoDir))
		if err != nil {
			return nil, &configError{fmt.Errorf("repo %s: %w", cfg.RepoDir, err)}
		}
		cfg.RepoDir = root
	}
	repo := git.Open(cfg.RepoDir)

	// Cached answers are only valid for the upstream tips they were
	// computed against.
	oldTip, err := repo.ResolveCommit(cfg.OldUpstream)
	if err != nil {
		return nil, &configError{fmt.Errorf("old upstream: %w", err)}
	}
	newTip, err := repo.ResolveCommit(cfg.NewUpstream)
	if err != nil {
		return nil, &configError{fmt.Errorf("new upstream: %w", err)}
	}

	cache, closeCache := memo.Open(cfg, memo.Scope(oldTip, newTip))
	engine := correspond.New(repo, cache, rewritemap.NewDir(cfg.MapDir), cfg)

	log.WithFields(log.Fields{
		"old_upstream": cfg.OldUpstream,
		"new_upstream": cfg.NewUpstream,
		"cache":        cfg.CacheEnabled,
	}).Debug("session opened")

	return &session{cfg: cfg, repo: repo, engine: engine, closeCache: closeCache}, nil
}

// Close releases the memo cache.
func (s *session) Close() {
	if err := s.closeCache(); err != nil {
		log.WithError(err).Warn("closing cache")
	}
}

// Package correspond decides which commits need rewriting and maps commits
// from the old upstream line onto their counterparts in the new one.
//
// Two commits correspond when they have the same author email and the
// new commit's date lies within MatchWindow seconds after the old
// commit's. Nothing verifies that this pair is unique in general: the
// engine only refuses to guess when it is not.
package correspond

import (
	"errors"
	"fmt"

	"github.com/jlebar/llvm-repo-tools/internal/config"
	"github.com/jlebar/llvm-repo-tools/internal/git"
	"github.com/jlebar/llvm-repo-tools/internal/memo"
	"github.com/jlebar/llvm-repo-tools/internal/rewritemap"
)

// MatchWindow is how many seconds a new-upstream commit may trail the old
// commit it corresponds to.
const MatchWindow = 1

// Memo function names. Changing a computation's meaning requires a new name.
const (
	fnShouldEdit       = "should_edit"
	fnMapToNewUpstream = "map_to_new_upstream"
)

var (
	// ErrAmbiguousCorrespondence means more than one new-upstream commit
	// matched the (author email, date) identity.
	ErrAmbiguousCorrespondence = errors.New("ambiguous correspondence")

	// ErrMissingCorrespondence means a commit on the old upstream line has
	// no counterpart in the new one.
	ErrMissingCorrespondence = errors.New("missing correspondence")
)

// History is the subset of git the engine queries.
type History interface {
	MergeBase(a, b string) (string, error)
	Identity(rev string) (git.Identity, error)
	CommitsByAuthorInWindow(ref, email string, since, until int64) ([]string, error)
	Parents(rev string) ([]string, error)
}

// Engine answers correspondence queries for one run. Revisions passed in
// must be full hashes, which is what filter-branch provides.
type Engine struct {
	history  History
	cache    memo.Cache
	rewrites rewritemap.Reader
	cfg      config.Config
}

// New returns an Engine. A nil cache disables memoization.
func New(history History, cache memo.Cache, rewrites rewritemap.Reader, cfg config.Config) *Engine {
	if cache == nil {
		cache = memo.Nop{}
	}
	return &Engine{history: history, cache: cache, rewrites: rewrites, cfg: cfg}
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() config.Config {
	return e.cfg
}

// ShouldEdit reports whether rev lies outside the old upstream line and
// so must be rewritten. The old upstream tip itself is not rewritten.
func (e *Engine) ShouldEdit(rev string) (bool, error) {
	return memo.Do(e.cache, fnShouldEdit, rev, func() (bool, error) {
		in, err := e.inOldUpstream(rev)
		return !in, err
	})
}

// inOldUpstream reports whether rev is an ancestor of, or equal to, the
// old upstream tip. It is never memoized.
func (e *Engine) inOldUpstream(rev string) (bool, error) {
	base, err := e.history.MergeBase(rev, e.cfg.OldUpstream)
	if err != nil {
		return false, fmt.Errorf("merge-base of %s and %s: %w", rev, e.cfg.OldUpstream, err)
	}
	return base == rev, nil
}

// correspondence is the memoized form of a MapToNewUpstream answer.
// An empty To records that rev has no counterpart.
type correspondence struct {
	To string `json:"to,omitempty"`
}

// MapToNewUpstream returns the new-upstream commit corresponding to rev.
// ok is false when rev has no counterpart, which is only legal for
// commits outside the old upstream line.
func (e *Engine) MapToNewUpstream(rev string) (to string, ok bool, err error) {
	c, err := memo.Do(e.cache, fnMapToNewUpstream, rev, func() (correspondence, error) {
		to, err := e.mapToNewUpstream(rev)
		return correspondence{To: to}, err
	})
	if err != nil {
		return "", false, err
	}
	return c.To, c.To != "", nil
}

func (e *Engine) mapToNewUpstream(rev string) (string, error) {
	id, err := e.history.Identity(rev)
	if err != nil {
		return "", fmt.Errorf("reading identity of %s: %w", rev, err)
	}

	matches, err := e.history.CommitsByAuthorInWindow(e.cfg.NewUpstream, id.Email, id.Timestamp, id.Timestamp+MatchWindow)
	if err != nil {
		return "", fmt.Errorf("searching %s for %s: %w", e.cfg.NewUpstream, rev, err)
	}

	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		in, err := e.inOldUpstream(rev)
		if errors.Is(err, git.ErrNoMergeBase) {
			// Commits filter-branch already rewrote onto the new line
			// share no history with the old one.
			in, err = false, nil
		}
		if err != nil {
			return "", err
		}
		if in {
			return "", fmt.Errorf("%w: couldn't map revision %s from %s to %s",
				ErrMissingCorrespondence, rev, e.cfg.OldUpstream, e.cfg.NewUpstream)
		}
		return "", nil
	default:
		return "", fmt.Errorf("%w: revision %s has %d corresponding revisions in %s %v; (author email, date) is not unique",
			ErrAmbiguousCorrespondence, rev, len(matches), e.cfg.NewUpstream, matches)
	}
}

// MapToFiltered returns the hash rev was rewritten to earlier in this run.
// ok is false if rev has not been rewritten yet.
func (e *Engine) MapToFiltered(rev string) (string, bool, error) {
	return e.rewrites.Lookup(rev)
}

// ReferenceParent picks the commit whose unprefixed tree rev's rewritten
// tree builds on: the counterpart of the first parent that has one, else
// the first parent, replaced by its rewritten hash when it has one.
// A root commit has no reference parent and yields "".
func (e *Engine) ReferenceParent(rev string) (string, error) {
	parents, err := e.history.Parents(rev)
	if err != nil {
		return "", fmt.Errorf("listing parents of %s: %w", rev, err)
	}
	if len(parents) == 0 {
		return "", nil
	}

	ref := parents[0]
	for _, p := range parents {
		to, ok, err := e.MapToNewUpstream(p)
		if err != nil {
			return "", err
		}
		if ok {
			ref = to
			break
		}
	}

	filtered, ok, err := e.MapToFiltered(ref)
	if err != nil {
		return "", err
	}
	if ok {
		ref = filtered
	}
	return ref, nil
}

// Report is everything the engine knows about one revision.
type Report struct {
	Rev             string `json:"rev"`
	ShouldEdit      bool   `json:"should_edit"`
	NewUpstream     string `json:"new_upstream,omitempty"`
	Filtered        string `json:"filtered,omitempty"`
	ReferenceParent string `json:"reference_parent,omitempty"`
}

// Describe gathers a Report for rev.
func (e *Engine) Describe(rev string) (*Report, error) {
	r := &Report{Rev: rev}

	var err error
	if r.ShouldEdit, err = e.ShouldEdit(rev); err != nil {
		return nil, err
	}
	if r.NewUpstream, _, err = e.MapToNewUpstream(rev); err != nil {
		return nil, err
	}
	if r.Filtered, _, err = e.MapToFiltered(rev); err != nil {
		return nil, err
	}
	if r.ShouldEdit {
		if r.ReferenceParent, err = e.ReferenceParent(rev); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Package filter implements the index and parent callbacks run by git
// filter-branch for each commit.
package filter

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jlebar/llvm-repo-tools/internal/correspond"
	"github.com/jlebar/llvm-repo-tools/internal/git"
)

// parentFlag precedes each hash in a filter-branch parent list.
const parentFlag = "-p"

// Trees reads commit trees and writes index files.
type Trees interface {
	LsTree(rev string) ([]git.TreeEntry, error)
	WriteIndex(indexFile string, entries []git.TreeEntry) error
}

// Filter rewrites commits that are not on the old upstream line.
type Filter struct {
	engine *correspond.Engine
	trees  Trees
	prefix string
}

// New returns a Filter using engine's namespace prefix.
func New(engine *correspond.Engine, trees Trees) *Filter {
	return &Filter{
		engine: engine,
		trees:  trees,
		prefix: engine.Config().Prefix,
	}
}

// timed logs how long an operation took once the returned func runs.
func timed(op, rev string) func() {
	start := time.Now()
	return func() {
		log.WithFields(log.Fields{
			"op":      op,
			"rev":     rev,
			"elapsed": time.Since(start),
		}).Debug("done")
	}
}

// Tree computes rev's rewritten tree: rev's own tree under the prefix plus
// everything outside the prefix in rev's reference parent.
func (f *Filter) Tree(rev string) ([]git.TreeEntry, error) {
	own, err := f.trees.LsTree(rev)
	if err != nil {
		return nil, fmt.Errorf("listing tree of %s: %w", rev, err)
	}
	entries := Namespace(own, f.prefix)

	parent, err := f.engine.ReferenceParent(rev)
	if err != nil {
		return nil, err
	}
	if parent == "" {
		return entries, nil
	}

	inherited, err := f.trees.LsTree(parent)
	if err != nil {
		return nil, fmt.Errorf("listing tree of reference parent %s: %w", parent, err)
	}
	return append(entries, ExcludeNamespace(inherited, f.prefix)...), nil
}

// Index replaces the index at indexFile with rev's rewritten tree. It
// reports whether rev needed rewriting; when it did not, nothing is
// written.
func (f *Filter) Index(rev, indexFile string) (bool, error) {
	defer timed("filter_index", rev)()

	edit, err := f.engine.ShouldEdit(rev)
	if err != nil {
		return false, err
	}
	if !edit {
		return false, nil
	}

	entries, err := f.Tree(rev)
	if err != nil {
		return false, err
	}
	if err := f.publish(indexFile, entries); err != nil {
		return false, err
	}
	return true, nil
}

// publish writes entries to a sibling of indexFile and renames it into
// place, so a failure never leaves a partial index behind.
func (f *Filter) publish(indexFile string, entries []git.TreeEntry) error {
	tmpPath := indexFile + ".new"
	if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale index: %w", err)
	}

	if err := f.trees.WriteIndex(tmpPath, entries); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, indexFile); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming index: %w", err)
	}
	return nil
}

// Parents copies the parent list in to out, replacing each parent that
// has a new-upstream counterpart. If rev needs no rewriting the input is
// echoed byte for byte.
func (f *Filter) Parents(rev string, in io.Reader, out io.Writer) error {
	defer timed("filter_parent", rev)()

	edit, err := f.engine.ShouldEdit(rev)
	if err != nil {
		return err
	}
	if !edit {
		_, err := io.Copy(out, in)
		return err
	}

	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("reading parent list: %w", err)
	}

	tokens, err := f.RewriteParents(strings.Fields(string(data)))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, strings.Join(tokens, " "))
	return err
}

// RewriteParents maps every hash in a "-p <hash> -p <hash>" token list to
// its counterpart when one exists. Order and length are preserved.
func (f *Filter) RewriteParents(tokens []string) ([]string, error) {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		if tok == parentFlag {
			out[i] = tok
			continue
		}
		to, ok, err := f.engine.MapToNewUpstream(tok)
		if err != nil {
			return nil, err
		}
		if ok {
			out[i] = to
		} else {
			out[i] = tok
		}
	}
	return out, nil
}

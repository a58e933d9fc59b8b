// Package rewritemap reads the commit map git filter-branch keeps while it
// rewrites history: one file per rewritten commit, named by the original
// hash and holding the rewritten hash.
package rewritemap

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrMalformedEntry indicates a map file that does not hold exactly one hash.
var ErrMalformedEntry = errors.New("malformed rewrite map entry")

// Reader looks up the rewritten hash of an original commit.
type Reader interface {
	Lookup(rev string) (string, bool, error)
}

// Dir is a rewrite map stored as a directory of files.
type Dir struct {
	Path string
}

// NewDir returns the map stored in path.
func NewDir(path string) *Dir {
	return &Dir{Path: path}
}

// Lookup returns the rewritten hash for rev. A missing file means rev has
// not been rewritten yet and is not an error.
func (d *Dir) Lookup(rev string) (string, bool, error) {
	path := filepath.Join(d.Path, rev)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading rewrite map entry: %w", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 || lines[0] == "" {
		return "", false, fmt.Errorf("%w: %s doesn't contain a single line: %q", ErrMalformedEntry, path, lines)
	}
	return strings.TrimSpace(lines[0]), true, nil
}

// Put records that original was rewritten to rewritten. filter-branch owns
// this side of the map; Put exists for fixtures and tooling.
func (d *Dir) Put(original, rewritten string) error {
	if err := os.MkdirAll(d.Path, 0755); err != nil {
		return fmt.Errorf("creating rewrite map: %w", err)
	}

	tmpFile, err := os.CreateTemp(d.Path, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.WriteString(rewritten + "\n"); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing map entry: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, filepath.Join(d.Path, original)); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	success = true
	return nil
}

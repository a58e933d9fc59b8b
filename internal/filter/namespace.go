package filter

import (
	"strings"

	"github.com/jlebar/llvm-repo-tools/internal/git"
)

// Namespace returns entries with every path moved under prefix.
func Namespace(entries []git.TreeEntry, prefix string) []git.TreeEntry {
	out := make([]git.TreeEntry, len(entries))
	for i, e := range entries {
		e.Path = prefix + e.Path
		out[i] = e
	}
	return out
}

// ExcludeNamespace returns the entries whose paths are not under prefix.
func ExcludeNamespace(entries []git.TreeEntry, prefix string) []git.TreeEntry {
	out := make([]git.TreeEntry, 0, len(entries))
	for _, e := range entries {
		if !strings.HasPrefix(e.Path, prefix) {
			out = append(out, e)
		}
	}
	return out
}

// Package git runs the git commands filterclang needs to inspect history
// and stage rewritten trees.
package git

import "fmt"

// Identity is the part of a commit used to match it across histories.
type Identity struct {
	Timestamp int64  // Author time, seconds since the epoch
	Email     string // Author email
}

// TreeEntry is one line of `git ls-tree -r` output.
type TreeEntry struct {
	Mode   string
	Type   string
	Object string
	Path   string
}

// String renders the entry in ls-tree format, which `update-index
// --index-info` also accepts.
func (e TreeEntry) String() string {
	return fmt.Sprintf("%s %s %s\t%s", e.Mode, e.Type, e.Object, e.Path)
}

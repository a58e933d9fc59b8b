package git

import (
	"bytes"
	"fmt"
	"strings"
)

// LsTree lists every blob and gitlink in rev's tree, recursively.
func (r *Repo) LsTree(rev string) ([]TreeEntry, error) {
	out, err := r.run(nil, nil, "ls-tree", "-r", "-z", "--full-tree", rev)
	if err != nil {
		return nil, err
	}
	return parseLsTree(out)
}

// parseLsTree parses NUL-terminated `ls-tree -z` records of the form
// "<mode> SP <type> SP <object> TAB <path>".
func parseLsTree(data []byte) ([]TreeEntry, error) {
	var entries []TreeEntry
	for _, rec := range bytes.Split(data, []byte{0}) {
		if len(rec) == 0 {
			continue
		}
		meta, path, ok := strings.Cut(string(rec), "\t")
		if !ok {
			return nil, fmt.Errorf("unexpected ls-tree record %q", rec)
		}
		fields := strings.Fields(meta)
		if len(fields) != 3 {
			return nil, fmt.Errorf("unexpected ls-tree record %q", rec)
		}
		entries = append(entries, TreeEntry{
			Mode:   fields[0],
			Type:   fields[1],
			Object: fields[2],
			Path:   path,
		})
	}
	return entries, nil
}

// WriteIndex writes a fresh index file containing exactly entries.
// Any existing file at indexFile is replaced.
func (r *Repo) WriteIndex(indexFile string, entries []TreeEntry) error {
	env := []string{"GIT_INDEX_FILE=" + indexFile}

	if _, err := r.run(env, nil, "read-tree", "--empty"); err != nil {
		return fmt.Errorf("initializing index %s: %w", indexFile, err)
	}
	if len(entries) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, e := range entries {
		buf.WriteString(e.String())
		buf.WriteByte(0)
	}
	if _, err := r.run(env, &buf, "update-index", "-z", "--index-info"); err != nil {
		return fmt.Errorf("populating index %s: %w", indexFile, err)
	}
	return nil
}

// Package gittest builds throwaway git repositories for tests.
package gittest

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// Repo is a bare-bones repository in a temporary directory. Commits are
// created with plumbing so tests control every parent and timestamp.
type Repo struct {
	t   testing.TB
	Dir string
}

// CommitSpec describes a commit to create.
type CommitSpec struct {
	Files     map[string]string // Path to content; the full tree of the commit
	Parents   []string
	Email     string
	Timestamp int64 // Used for both author and committer dates
	Message   string
}

// New initializes an empty repository, skipping the test if git is missing.
func New(t testing.TB) *Repo {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	r := &Repo{t: t, Dir: t.TempDir()}
	r.Run("init", "-q")
	r.Run("config", "user.name", "Test")
	r.Run("config", "user.email", "test@example.com")
	r.Run("config", "commit.gpgsign", "false")
	return r
}

// Run executes git in the repository and returns trimmed stdout.
func (r *Repo) Run(args ...string) string {
	r.t.Helper()
	return r.RunEnv(nil, nil, args...)
}

// RunEnv executes git with extra environment and optional stdin.
func (r *Repo) RunEnv(env []string, stdin []byte, args ...string) string {
	r.t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = r.Dir
	cmd.Env = append(os.Environ(),
		"GIT_CONFIG_NOSYSTEM=1",
		"GIT_CONFIG_GLOBAL="+os.DevNull,
	)
	cmd.Env = append(cmd.Env, env...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		r.t.Fatalf("git %s: %v: %s", strings.Join(args, " "), err, stderr.String())
	}
	return strings.TrimSpace(string(out))
}

// Commit creates a commit from spec without touching HEAD or the worktree.
func (r *Repo) Commit(spec CommitSpec) string {
	r.t.Helper()

	index := filepath.Join(r.t.TempDir(), "index")
	env := []string{"GIT_INDEX_FILE=" + index}
	r.RunEnv(env, nil, "read-tree", "--empty")

	paths := make([]string, 0, len(spec.Files))
	for p := range spec.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var info bytes.Buffer
	for _, p := range paths {
		blob := r.RunEnv(nil, []byte(spec.Files[p]), "hash-object", "-w", "--stdin")
		fmt.Fprintf(&info, "100644 %s\t%s\n", blob, p)
	}
	if info.Len() > 0 {
		r.RunEnv(env, info.Bytes(), "update-index", "--index-info")
	}
	tree := r.RunEnv(env, nil, "write-tree")

	email := spec.Email
	if email == "" {
		email = "test@example.com"
	}
	msg := spec.Message
	if msg == "" {
		msg = "commit"
	}
	date := fmt.Sprintf("@%d +0000", spec.Timestamp)
	commitEnv := []string{
		"GIT_AUTHOR_NAME=Test",
		"GIT_AUTHOR_EMAIL=" + email,
		"GIT_AUTHOR_DATE=" + date,
		"GIT_COMMITTER_NAME=Test",
		"GIT_COMMITTER_EMAIL=" + email,
		"GIT_COMMITTER_DATE=" + date,
	}

	args := []string{"commit-tree", tree, "-m", msg}
	for _, p := range spec.Parents {
		args = append(args, "-p", p)
	}
	return r.RunEnv(commitEnv, nil, args...)
}

// Branch points refs/heads/name at rev.
func (r *Repo) Branch(name, rev string) {
	r.t.Helper()
	r.Run("update-ref", "refs/heads/"+name, rev)
}

// Checkout moves HEAD to branch and resets the worktree to it.
func (r *Repo) Checkout(branch string) {
	r.t.Helper()
	r.Run("checkout", "-q", "-f", branch)
}

// Files returns the path to object mapping of rev's tree.
func (r *Repo) Files(rev string) map[string]string {
	r.t.Helper()
	out := r.Run("ls-tree", "-r", "--full-tree", rev)
	files := make(map[string]string)
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		meta, path, _ := strings.Cut(line, "\t")
		fields := strings.Fields(meta)
		files[path] = fields[2]
	}
	return files
}

// IndexFiles returns the path to object mapping of an index file.
func (r *Repo) IndexFiles(indexFile string) map[string]string {
	r.t.Helper()
	out := r.RunEnv([]string{"GIT_INDEX_FILE=" + indexFile}, nil, "ls-files", "-s")
	files := make(map[string]string)
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		meta, path, _ := strings.Cut(line, "\t")
		fields := strings.Fields(meta)
		files[path] = fields[1]
	}
	return files
}

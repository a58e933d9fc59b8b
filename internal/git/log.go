package git

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MergeBase returns the best common ancestor of a and b.
// Returns ErrNoMergeBase if the two commits have disjoint histories.
func (r *Repo) MergeBase(a, b string) (string, error) {
	base, err := r.output("merge-base", a, b)
	if err != nil {
		var cmdErr *CommandError
		if errors.As(err, &cmdErr) && cmdErr.ExitCode() == 1 && cmdErr.Stderr == "" {
			return "", fmt.Errorf("%w: %s and %s", ErrNoMergeBase, a, b)
		}
		return "", err
	}
	return base, nil
}

// IsAncestor reports whether rev is an ancestor of, or equal to, tip.
// rev must be a full hash.
func (r *Repo) IsAncestor(rev, tip string) (bool, error) {
	base, err := r.MergeBase(rev, tip)
	if err != nil {
		return false, err
	}
	return base == rev, nil
}

// Identity returns the author time and email of rev.
func (r *Repo) Identity(rev string) (Identity, error) {
	out, err := r.output("show", "-s", "--format=%at%x00%ae", rev)
	if err != nil {
		return Identity{}, err
	}
	return parseIdentity(out)
}

// parseIdentity parses "<unix time>\x00<email>".
func parseIdentity(s string) (Identity, error) {
	ts, email, ok := strings.Cut(s, "\x00")
	if !ok {
		return Identity{}, fmt.Errorf("unexpected identity format %q", s)
	}
	secs, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return Identity{}, fmt.Errorf("parsing commit time %q: %w", ts, err)
	}
	return Identity{Timestamp: secs, Email: email}, nil
}

// CommitsByAuthorInWindow lists commits reachable from ref whose author
// email is exactly email and whose date lies in the closed interval
// [since, until], newest first.
//
// git's --since/--until compare the committer date; the commits
// filterclang matches carry identical author and committer dates.
func (r *Repo) CommitsByAuthorInWindow(ref, email string, since, until int64) ([]string, error) {
	out, err := r.run(nil, nil,
		"log",
		"--fixed-strings",
		"--author=<"+email+">",
		"--since="+strconv.FormatInt(since, 10),
		"--until="+strconv.FormatInt(until, 10),
		"--format=%H%x00%ae",
		ref,
		"--",
	)
	if err != nil {
		return nil, err
	}
	return parseAuthorLog(out, email)
}

// parseAuthorLog parses "<sha>\x00<email>" lines and keeps exact email matches.
func parseAuthorLog(data []byte, email string) ([]string, error) {
	var shas []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		sha, ae, ok := strings.Cut(line, "\x00")
		if !ok {
			return nil, fmt.Errorf("unexpected log line %q", line)
		}
		if ae == email {
			shas = append(shas, sha)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning log: %w", err)
	}
	return shas, nil
}

// Parents returns the parents of rev in order. A root commit has none.
func (r *Repo) Parents(rev string) ([]string, error) {
	out, err := r.output("rev-list", "--parents", "-n", "1", rev)
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(out)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrCommitNotFound, rev)
	}
	return fields[1:], nil
}

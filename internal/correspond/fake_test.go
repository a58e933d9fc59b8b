package correspond

import (
	"fmt"

	"github.com/jlebar/llvm-repo-tools/internal/git"
)

type fakeCommit struct {
	parents []string
	email   string
	ts      int64
}

// fakeHistory is an in-memory commit graph implementing History.
type fakeHistory struct {
	commits map[string]fakeCommit
	refs    map[string]string
	calls   map[string]int
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{
		commits: make(map[string]fakeCommit),
		refs:    make(map[string]string),
		calls:   make(map[string]int),
	}
}

func (h *fakeHistory) add(rev, email string, ts int64, parents ...string) string {
	h.commits[rev] = fakeCommit{parents: parents, email: email, ts: ts}
	return rev
}

func (h *fakeHistory) resolve(rev string) (string, error) {
	if tip, ok := h.refs[rev]; ok {
		rev = tip
	}
	if _, ok := h.commits[rev]; !ok {
		return "", fmt.Errorf("%w: %s", git.ErrCommitNotFound, rev)
	}
	return rev, nil
}

// ancestors returns rev and everything reachable from it, nearest first.
func (h *fakeHistory) ancestors(rev string) []string {
	var order []string
	seen := map[string]bool{rev: true}
	queue := []string{rev}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		order = append(order, cur)
		for _, p := range h.commits[cur].parents {
			if !seen[p] {
				seen[p] = true
				queue = append(queue, p)
			}
		}
	}
	return order
}

func (h *fakeHistory) MergeBase(a, b string) (string, error) {
	h.calls["merge-base"]++
	a, err := h.resolve(a)
	if err != nil {
		return "", err
	}
	b, err = h.resolve(b)
	if err != nil {
		return "", err
	}
	inB := make(map[string]bool)
	for _, c := range h.ancestors(b) {
		inB[c] = true
	}
	for _, c := range h.ancestors(a) {
		if inB[c] {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %s and %s", git.ErrNoMergeBase, a, b)
}

func (h *fakeHistory) Identity(rev string) (git.Identity, error) {
	h.calls["identity"]++
	rev, err := h.resolve(rev)
	if err != nil {
		return git.Identity{}, err
	}
	c := h.commits[rev]
	return git.Identity{Timestamp: c.ts, Email: c.email}, nil
}

func (h *fakeHistory) CommitsByAuthorInWindow(ref, email string, since, until int64) ([]string, error) {
	h.calls["log"]++
	tip, err := h.resolve(ref)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, rev := range h.ancestors(tip) {
		c := h.commits[rev]
		if c.email == email && c.ts >= since && c.ts <= until {
			out = append(out, rev)
		}
	}
	return out, nil
}

func (h *fakeHistory) Parents(rev string) ([]string, error) {
	h.calls["parents"]++
	rev, err := h.resolve(rev)
	if err != nil {
		return nil, err
	}
	return h.commits[rev].parents, nil
}

// fakeRewrites is an in-memory rewritemap.Reader.
type fakeRewrites map[string]string

func (f fakeRewrites) Lookup(rev string) (string, bool, error) {
	v, ok := f[rev]
	return v, ok, nil
}

// mapCache is an in-memory memo.Cache.
type mapCache map[string][]byte

func (m mapCache) Get(fn, arg string) ([]byte, bool, error) {
	v, ok := m[fn+"("+arg+")"]
	return v, ok, nil
}

func (m mapCache) Put(fn, arg string, value []byte) error {
	m[fn+"("+arg+")"] = value
	return nil
}

package filter

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jlebar/llvm-repo-tools/internal/config"
	"github.com/jlebar/llvm-repo-tools/internal/correspond"
	"github.com/jlebar/llvm-repo-tools/internal/git"
	"github.com/jlebar/llvm-repo-tools/internal/git/gittest"
	"github.com/jlebar/llvm-repo-tools/internal/memo"
	"github.com/jlebar/llvm-repo-tools/internal/rewritemap"
)

const t0 = int64(1500000000)

// scenario is a standalone clang history next to a monorepo history:
//
//	old-clang: A0 - A          (paths at the root)
//	                 \
//	                  C - D    foreign work on top of old clang
//	                   \
//	                    M      merge of C and A0
//	monorepo:  B0 - B          (clang under clang/, plus llvm/)
//
// A0/B0 and A/B share author and date.
type scenario struct {
	fx    *gittest.Repo
	repo  *git.Repo
	cfg   config.Config
	rmap  *rewritemap.Dir
	a0, a string
	b0, b string
	c, d  string
	m     string
}

func newScenario(t *testing.T) *scenario {
	t.Helper()
	fx := gittest.New(t)
	s := &scenario{fx: fx, repo: git.Open(fx.Dir)}

	s.a0 = fx.Commit(gittest.CommitSpec{
		Files:     map[string]string{"lib/Sema.cpp": "v1"},
		Email:     "alice@llvm.org",
		Timestamp: t0,
	})
	s.a = fx.Commit(gittest.CommitSpec{
		Files:     map[string]string{"lib/Sema.cpp": "v2"},
		Parents:   []string{s.a0},
		Email:     "alice@llvm.org",
		Timestamp: t0 + 100,
	})
	s.b0 = fx.Commit(gittest.CommitSpec{
		Files:     map[string]string{"clang/lib/Sema.cpp": "v1", "llvm/README": "llvm1"},
		Email:     "alice@llvm.org",
		Timestamp: t0,
	})
	s.b = fx.Commit(gittest.CommitSpec{
		Files:     map[string]string{"clang/lib/Sema.cpp": "v2", "llvm/README": "llvm2"},
		Parents:   []string{s.b0},
		Email:     "alice@llvm.org",
		Timestamp: t0 + 100,
	})
	s.c = fx.Commit(gittest.CommitSpec{
		Files:     map[string]string{"lib/Sema.cpp": "v2", "lib/New.cpp": "new"},
		Parents:   []string{s.a},
		Email:     "dave@example.com",
		Timestamp: t0 + 150,
	})
	s.d = fx.Commit(gittest.CommitSpec{
		Files:     map[string]string{"lib/Sema.cpp": "v3", "lib/New.cpp": "new"},
		Parents:   []string{s.c},
		Email:     "erin@example.com",
		Timestamp: t0 + 160,
	})
	s.m = fx.Commit(gittest.CommitSpec{
		Files:     map[string]string{"lib/Sema.cpp": "v2", "lib/New.cpp": "new"},
		Parents:   []string{s.c, s.a0},
		Email:     "dave@example.com",
		Timestamp: t0 + 170,
	})

	fx.Branch("old-clang", s.a)
	fx.Branch("monorepo", s.b)

	s.cfg = config.Default()
	s.cfg.OldUpstream = "old-clang"
	s.cfg.NewUpstream = "monorepo"
	s.rmap = rewritemap.NewDir(filepath.Join(t.TempDir(), "map"))
	return s
}

func (s *scenario) filter(trees Trees) *Filter {
	engine := correspond.New(s.repo, memo.Nop{}, s.rmap, s.cfg)
	if trees == nil {
		trees = s.repo
	}
	return New(engine, trees)
}

// index creates an index file holding rev's tree.
func (s *scenario) index(t *testing.T, rev string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index")
	s.fx.RunEnv([]string{"GIT_INDEX_FILE=" + path}, nil, "read-tree", rev)
	return path
}

func (s *scenario) blob(rev, path string) string {
	return s.fx.Files(rev)[path]
}

func TestIndex_ForeignCommitOnOldTip(t *testing.T) {
	s := newScenario(t)
	index := s.index(t, s.c)

	changed, err := s.filter(nil).Index(s.c, index)
	require.NoError(t, err)
	assert.True(t, changed)

	got := s.fx.IndexFiles(index)
	assert.Equal(t, map[string]string{
		"clang/lib/Sema.cpp": s.blob(s.c, "lib/Sema.cpp"),
		"clang/lib/New.cpp":  s.blob(s.c, "lib/New.cpp"),
		"llvm/README":        s.blob(s.b, "llvm/README"),
	}, got)

	assert.NoFileExists(t, index+".new")
}

func TestIndex_UsesRewrittenParent(t *testing.T) {
	s := newScenario(t)

	// Pretend C was already rewritten to a monorepo-shaped commit.
	cPrime := s.fx.Commit(gittest.CommitSpec{
		Files: map[string]string{
			"clang/lib/Sema.cpp": "v2",
			"clang/lib/New.cpp":  "new",
			"llvm/README":        "llvm2",
		},
		Parents:   []string{s.b},
		Email:     "dave@example.com",
		Timestamp: t0 + 150,
	})
	require.NoError(t, s.rmap.Put(s.c, cPrime))

	index := s.index(t, s.d)
	changed, err := s.filter(nil).Index(s.d, index)
	require.NoError(t, err)
	assert.True(t, changed)

	assert.Equal(t, map[string]string{
		"clang/lib/Sema.cpp": s.blob(s.d, "lib/Sema.cpp"),
		"clang/lib/New.cpp":  s.blob(s.d, "lib/New.cpp"),
		"llvm/README":        s.blob(s.b, "llvm/README"),
	}, s.fx.IndexFiles(index))
}

func TestIndex_MergePrefersMappedParent(t *testing.T) {
	s := newScenario(t)
	index := s.index(t, s.m)

	_, err := s.filter(nil).Index(s.m, index)
	require.NoError(t, err)

	// C has no counterpart, A0 maps to B0, so llvm/ comes from B0.
	got := s.fx.IndexFiles(index)
	assert.Equal(t, s.blob(s.b0, "llvm/README"), got["llvm/README"])
	assert.Len(t, got, 3)
}

func TestIndex_NoOpOnOldUpstream(t *testing.T) {
	s := newScenario(t)
	index := s.index(t, s.a)
	before, err := os.ReadFile(index)
	require.NoError(t, err)

	for _, rev := range []string{s.a, s.a0} {
		changed, err := s.filter(nil).Index(rev, index)
		require.NoError(t, err)
		assert.False(t, changed)
	}

	after, err := os.ReadFile(index)
	require.NoError(t, err)
	assert.Equal(t, before, after, "index must be untouched")
	assert.NoFileExists(t, index+".new")
}

func TestIndex_RemovesStaleTemp(t *testing.T) {
	s := newScenario(t)
	index := s.index(t, s.c)
	require.NoError(t, os.WriteFile(index+".new", []byte("stale"), 0644))

	_, err := s.filter(nil).Index(s.c, index)
	require.NoError(t, err)
	assert.Len(t, s.fx.IndexFiles(index), 3)
	assert.NoFileExists(t, index+".new")
}

// failingTrees lists trees from git but refuses to write an index after
// leaving a partial file behind.
type failingTrees struct {
	*git.Repo
}

var errWrite = errors.New("disk full")

func (f failingTrees) WriteIndex(indexFile string, _ []git.TreeEntry) error {
	os.WriteFile(indexFile, []byte("partial"), 0644)
	return errWrite
}

func TestIndex_FailureLeavesIndexUntouched(t *testing.T) {
	s := newScenario(t)
	index := s.index(t, s.c)
	before, err := os.ReadFile(index)
	require.NoError(t, err)

	_, err = s.filter(failingTrees{s.repo}).Index(s.c, index)
	require.ErrorIs(t, err, errWrite)

	after, err := os.ReadFile(index)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.NoFileExists(t, index+".new")
}

func TestIndex_MalformedMapEntry(t *testing.T) {
	s := newScenario(t)
	require.NoError(t, os.MkdirAll(s.rmap.Path, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(s.rmap.Path, s.b), []byte("x\ny\n"), 0644))

	_, err := s.filter(nil).Index(s.c, s.index(t, s.c))
	assert.ErrorIs(t, err, rewritemap.ErrMalformedEntry)
}

func TestIndex_DisjointRoot(t *testing.T) {
	s := newScenario(t)
	foreign := s.fx.Commit(gittest.CommitSpec{
		Files:     map[string]string{"x.txt": "x"},
		Email:     "zed@example.com",
		Timestamp: t0 + 700,
	})
	index := s.index(t, foreign)
	before, err := os.ReadFile(index)
	require.NoError(t, err)

	// A root sharing no history with the old line cannot be classified;
	// the run must stop rather than guess.
	_, err = s.filter(nil).Index(foreign, index)
	assert.ErrorIs(t, err, git.ErrNoMergeBase)

	after, err := os.ReadFile(index)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestParents_ReplacesMappedParent(t *testing.T) {
	s := newScenario(t)

	var out bytes.Buffer
	err := s.filter(nil).Parents(s.c, strings.NewReader("-p "+s.a+"\n"), &out)
	require.NoError(t, err)
	assert.Equal(t, "-p "+s.b+"\n", out.String())
}

func TestParents_MergeKeepsOrderAndCardinality(t *testing.T) {
	s := newScenario(t)

	var out bytes.Buffer
	in := "-p " + s.c + " -p " + s.a0
	require.NoError(t, s.filter(nil).Parents(s.m, strings.NewReader(in), &out))
	assert.Equal(t, "-p "+s.c+" -p "+s.b0+"\n", out.String())
}

func TestParents_ForeignParentUnchanged(t *testing.T) {
	s := newScenario(t)

	var out bytes.Buffer
	require.NoError(t, s.filter(nil).Parents(s.d, strings.NewReader("-p "+s.c), &out))
	assert.Equal(t, "-p "+s.c+"\n", out.String())
}

func TestParents_NoOpEchoesInput(t *testing.T) {
	s := newScenario(t)

	in := "-p " + s.a0 + "  \n"
	var out bytes.Buffer
	require.NoError(t, s.filter(nil).Parents(s.a, strings.NewReader(in), &out))
	assert.Equal(t, in, out.String(), "input is echoed byte for byte")

	out.Reset()
	require.NoError(t, s.filter(nil).Parents(s.a0, strings.NewReader(""), &out))
	assert.Empty(t, out.String())
}

func TestParents_Ambiguous(t *testing.T) {
	s := newScenario(t)
	// A second alice commit within A's window on the monorepo line.
	dup := s.fx.Commit(gittest.CommitSpec{
		Files:     map[string]string{"clang/lib/Sema.cpp": "v2", "llvm/README": "llvm3"},
		Parents:   []string{s.b},
		Email:     "alice@llvm.org",
		Timestamp: t0 + 101,
	})
	s.fx.Branch("monorepo", dup)

	var out bytes.Buffer
	err := s.filter(nil).Parents(s.c, strings.NewReader("-p "+s.a), &out)
	assert.ErrorIs(t, err, correspond.ErrAmbiguousCorrespondence)
	assert.Empty(t, out.String(), "nothing is emitted on failure")
}

func TestRewriteParents_Empty(t *testing.T) {
	s := newScenario(t)

	got, err := s.filter(nil).RewriteParents(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

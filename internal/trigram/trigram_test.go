package trigram

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codelens-dev/codelens/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestExtract(t *testing.T) {
	terms, docLen := Extract("hello", 0)
	assert.ElementsMatch(t, []string{"hel", "ell", "llo"}, terms)
	assert.Equal(t, 3, docLen)

	terms, docLen = Extract("ab", 0)
	assert.Empty(t, terms)
	assert.Zero(t, docLen)
}

func TestCandidatesRequireAllTrigrams(t *testing.T) {
	ix := New(nil, Options{}, nil)
	require.NoError(t, ix.IndexFile("a.ts", "function authenticate() {}"))
	require.NoError(t, ix.IndexFile("b.ts", "function render() {}"))

	hits, usable := ix.Candidates("authenticate")
	require.True(t, usable)
	assert.Equal(t, []string{"a.ts"}, hits)

	// Every file contains "function"; both qualify.
	hits, usable = ix.Candidates("function")
	require.True(t, usable)
	assert.ElementsMatch(t, []string{"a.ts", "b.ts"}, hits)

	// A trigram absent everywhere rules out every file.
	hits, usable = ix.Candidates("zzzqqq")
	require.True(t, usable)
	assert.Empty(t, hits)

	// Too short to gate.
	_, usable = ix.Candidates("ab")
	assert.False(t, usable)
}

func TestReindexReplacesTerms(t *testing.T) {
	ix := New(nil, Options{}, nil)
	require.NoError(t, ix.IndexFile("a.ts", "alpha"))

	hits, _ := ix.Candidates("alpha")
	assert.Equal(t, []string{"a.ts"}, hits)

	require.NoError(t, ix.IndexFile("a.ts", "omega"))
	hits, _ = ix.Candidates("alpha")
	assert.Empty(t, hits)
	hits, _ = ix.Candidates("omega")
	assert.Equal(t, []string{"a.ts"}, hits)
}

func TestRemoveFile(t *testing.T) {
	ix := New(nil, Options{}, nil)
	require.NoError(t, ix.IndexFile("a.ts", "alpha"))
	ix.RemoveFile("a.ts")

	hits, _ := ix.Candidates("alpha")
	assert.Empty(t, hits)
	assert.Zero(t, ix.FileCount())
}

func TestPersistAndReload(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.UpsertFile("a.ts", "typescript", 1))

	ix := New(st, Options{}, nil)
	require.NoError(t, ix.IndexFile("a.ts", "persistent content"))

	// A fresh index over the same store sees the same postings.
	fresh := New(st, Options{}, nil)
	require.NoError(t, fresh.Load())
	hits, usable := fresh.Candidates("persistent")
	require.True(t, usable)
	assert.Equal(t, []string{"a.ts"}, hits)
	assert.Equal(t, ix.DocLen("a.ts"), fresh.DocLen("a.ts"))

	// Loading twice is idempotent.
	require.NoError(t, fresh.Load())
	assert.Equal(t, 1, fresh.FileCount())
}

func TestMaxFileBytesSkipsContent(t *testing.T) {
	ix := New(nil, Options{MaxFileBytes: 8}, nil)
	require.NoError(t, ix.IndexFile("big.ts", "this is definitely longer than eight bytes"))

	hits, _ := ix.Candidates("definitely")
	assert.Empty(t, hits)
}

package symbolindex

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/codelens-dev/codelens/internal/fsx"
	"github.com/codelens-dev/codelens/internal/parsing"
	"github.com/codelens-dev/codelens/internal/skeleton"
	"github.com/codelens-dev/codelens/internal/store"
	"github.com/codelens-dev/codelens/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestIndex(t *testing.T, opts Options) (*Index, *fsx.FS, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)

	fs := fsx.NewMem("/repo")
	parser := parsing.New(nil)
	extractor := skeleton.New(parser, nil)
	idx := New("/repo", fs, st, extractor, opts, nil)

	t.Cleanup(func() {
		idx.Close()
		parser.Close()
		st.Close()
	})
	return idx, fs, st
}

func TestSymbolsForFileParsesAndPersists(t *testing.T) {
	idx, fs, st := newTestIndex(t, Options{})
	require.NoError(t, fs.WriteFile("/repo/src/util.ts", []byte("export function greet() {}\n"), 0o644))

	symbols, err := idx.SymbolsForFile("src/util.ts")
	require.NoError(t, err)
	require.NotEmpty(t, symbols)

	var found bool
	for _, sym := range symbols {
		if sym.Kind == types.SymbolKindDefinition && sym.Name == "greet" {
			found = true
		}
	}
	assert.True(t, found, "expected a greet definition, got %+v", symbols)

	// The cold store holds the same list.
	persisted, err := st.SymbolsForFile("src/util.ts")
	require.NoError(t, err)
	assert.Len(t, persisted, len(symbols))

	// A second read is served from cache (same mtime).
	again, err := idx.SymbolsForFile("src/util.ts")
	require.NoError(t, err)
	assert.Len(t, again, len(symbols))
}

func TestUnsupportedExtensionPersistsEmpty(t *testing.T) {
	idx, fs, st := newTestIndex(t, Options{})
	require.NoError(t, fs.WriteFile("/repo/readme.txt", []byte("plain text"), 0o644))

	symbols, err := idx.SymbolsForFile("readme.txt")
	require.NoError(t, err)
	assert.Empty(t, symbols)

	_, ok, err := st.FileMTime("readme.txt")
	require.NoError(t, err)
	assert.True(t, ok, "an unsupported file still gets a row at its current mtime")
}

func TestMissingFileDropsRow(t *testing.T) {
	idx, fs, st := newTestIndex(t, Options{})
	require.NoError(t, fs.WriteFile("/repo/gone.ts", []byte("export const x = 1\n"), 0o644))

	_, err := idx.SymbolsForFile("gone.ts")
	require.NoError(t, err)

	require.NoError(t, fs.DeleteFile("/repo/gone.ts"))
	symbols, err := idx.SymbolsForFile("gone.ts")
	require.NoError(t, err)
	assert.Empty(t, symbols)

	_, ok, err := st.FileMTime("gone.ts")
	require.NoError(t, err)
	assert.False(t, ok, "the row is dropped when the file disappears")
}

func TestSearchExactThenFuzzy(t *testing.T) {
	idx, _, st := newTestIndex(t, Options{})
	require.NoError(t, st.UpsertFile("a.ts", "typescript", 1))
	require.NoError(t, st.ReplaceSymbols("a.ts", "typescript", 1, []types.Symbol{
		{Kind: types.SymbolKindDefinition, Name: "Authenticator", DefKind: types.DefKindClass},
		{Kind: types.SymbolKindDefinition, Name: "render", DefKind: types.DefKindFunction},
	}))

	// Exact substring, case-insensitive.
	hits, err := idx.Search("authent")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Authenticator", hits[0].Symbol.Name)

	// A near-miss falls back to fuzzy within distance 2.
	hits, err = idx.Search("rendr")
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "render", hits[0].Symbol.Name)
	assert.Greater(t, hits[0].Score, 0.0)
	assert.LessOrEqual(t, hits[0].Score, 1.0)

	// Hopeless queries return nothing.
	hits, err = idx.Search("zzzzzzzz")
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestFuzzyScoreBoosts(t *testing.T) {
	assert.InDelta(t, 1.0, fuzzyScore("render", "render", 0), 1e-9)

	prefix := fuzzyScore("rend", "render", 2)
	plain := fuzzyScore("xend", "yendzr", 2)
	assert.Greater(t, prefix, plain, "prefix matches outrank interior fixes")
}

func TestMarkFileModifiedDebounces(t *testing.T) {
	idx, fs, st := newTestIndex(t, Options{DebounceMs: 20})
	require.NoError(t, fs.WriteFile("/repo/a.ts", []byte("export function one() {}\n"), 0o644))

	idx.MarkFileModified("a.ts")
	idx.MarkFileModified("a.ts") // coalesces into one batch

	require.Eventually(t, func() bool {
		_, ok, err := st.FileMTime("a.ts")
		return err == nil && ok
	}, 2*time.Second, 10*time.Millisecond)

	symbols, err := st.SymbolsForFile("a.ts")
	require.NoError(t, err)
	assert.NotEmpty(t, symbols)
}

func TestMarkFileModifiedDropsMissing(t *testing.T) {
	idx, fs, st := newTestIndex(t, Options{DebounceMs: 20})
	require.NoError(t, fs.WriteFile("/repo/a.ts", []byte("export const x = 1\n"), 0o644))
	_, err := idx.SymbolsForFile("a.ts")
	require.NoError(t, err)

	require.NoError(t, fs.DeleteFile("/repo/a.ts"))
	idx.MarkFileModified("a.ts")
	idx.Flush()

	_, ok, err := st.FileMTime("a.ts")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOnReindexHookFires(t *testing.T) {
	var got []string
	idx, fs, _ := newTestIndex(t, Options{OnReindex: func(relPath string, _ []types.Symbol) {
		got = append(got, relPath)
	}})
	require.NoError(t, fs.WriteFile("/repo/a.ts", []byte("export const x = 1\n"), 0o644))

	_, err := idx.SymbolsForFile("a.ts")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.ts"}, got)
}

func TestLRUEvictsBeyondCapacity(t *testing.T) {
	evicted := 0
	c := newLRUCache[int](2, func(string, int) { evicted++ })
	c.set("a", 1)
	c.set("b", 2)
	c.set("c", 3)

	assert.Equal(t, 2, c.size())
	assert.Equal(t, 1, evicted)
	if _, ok := c.get("a"); ok {
		t.Error("oldest entry should have been evicted")
	}
}

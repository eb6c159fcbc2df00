package depgraph

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codelens-dev/codelens/internal/config"
	"github.com/codelens-dev/codelens/internal/fsx"
	"github.com/codelens-dev/codelens/internal/resolver"
	"github.com/codelens-dev/codelens/internal/store"
	"github.com/codelens-dev/codelens/internal/types"
)

func newTestGraph(t *testing.T) (*Graph, *fsx.FS, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	fs := fsx.NewMem("/repo")
	res := resolver.New("/repo", fs, nil, resolver.Options{}, nil)
	g := New("/repo", st, res, config.WorkspaceInfo{}, nil)
	return g, fs, st
}

func importSymbol(specifier string, line int) types.Symbol {
	return types.Symbol{
		Kind:         types.SymbolKindImport,
		Name:         specifier,
		ImportSource: specifier,
		ImportKind:   types.ImportNamed,
		Line:         line,
	}
}

func seedFile(t *testing.T, fs *fsx.FS, st *store.Store, path, content string) {
	t.Helper()
	require.NoError(t, fs.WriteFile("/repo/"+path, []byte(content), 0o644))
	require.NoError(t, st.UpsertFile(path, "typescript", 1))
}

func TestBuildForSplitsResolvedAndUnresolved(t *testing.T) {
	g, fs, st := newTestGraph(t)
	seedFile(t, fs, st, "a.ts", "import {x} from './b'")
	seedFile(t, fs, st, "b.ts", "export const x = 1")

	symbols := []types.Symbol{
		importSymbol("./b", 1),
		importSymbol("./missing", 2),
		importSymbol("fs", 3), // builtin, skipped entirely
	}
	require.NoError(t, g.BuildFor("a.ts", symbols))

	edges, err := g.Dependencies("a.ts", types.DirDownstream)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "b.ts", edges[0].Target)
	assert.Equal(t, types.StrategyRelative, edges[0].Meta.Strategy)

	unresolved, err := st.UnresolvedImports()
	require.NoError(t, err)
	require.Len(t, unresolved, 1)
	assert.Equal(t, "./missing", unresolved[0].Specifier)
}

func TestTransitiveDependencies(t *testing.T) {
	g, fs, st := newTestGraph(t)
	seedFile(t, fs, st, "a.ts", "import {b} from './b'")
	seedFile(t, fs, st, "b.ts", "import {c} from './c'")
	seedFile(t, fs, st, "c.ts", "export const c = 1")

	require.NoError(t, g.BuildFor("a.ts", []types.Symbol{importSymbol("./b", 1)}))
	require.NoError(t, g.BuildFor("b.ts", []types.Symbol{importSymbol("./c", 1)}))
	require.NoError(t, g.BuildFor("c.ts", nil))

	reached, err := g.TransitiveDependencies("a.ts", types.DirDownstream, 20)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b.ts", "c.ts"}, reached)

	// Depth 1 stops at the direct dependency.
	reached, err = g.TransitiveDependencies("a.ts", types.DirDownstream, 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b.ts"}, reached)

	// Upstream from c reaches both importer hops.
	reached, err = g.TransitiveDependencies("c.ts", types.DirUpstream, 20)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.ts", "b.ts"}, reached)
}

func TestTransitiveHandlesCycles(t *testing.T) {
	g, fs, st := newTestGraph(t)
	seedFile(t, fs, st, "a.ts", "import {b} from './b'")
	seedFile(t, fs, st, "b.ts", "import {a} from './a'")

	require.NoError(t, g.BuildFor("a.ts", []types.Symbol{importSymbol("./b", 1)}))
	require.NoError(t, g.BuildFor("b.ts", []types.Symbol{importSymbol("./a", 1)}))

	reached, err := g.TransitiveDependencies("a.ts", types.DirDownstream, 20)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b.ts"}, reached)
}

func TestAbsolutePathInYieldsAbsoluteOut(t *testing.T) {
	g, fs, st := newTestGraph(t)
	seedFile(t, fs, st, "a.ts", "import {b} from './b'")
	seedFile(t, fs, st, "b.ts", "export const b = 1")
	require.NoError(t, g.BuildFor("a.ts", []types.Symbol{importSymbol("./b", 1)}))

	edges, err := g.Dependencies("/repo/a.ts", types.DirDownstream)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, filepath.FromSlash("/repo/a.ts"), edges[0].Source)
	assert.Equal(t, filepath.FromSlash("/repo/b.ts"), edges[0].Target)
}

func TestStatusConfidenceTiers(t *testing.T) {
	g, fs, st := newTestGraph(t)
	seedFile(t, fs, st, "a.ts", "import {b} from './b'")
	seedFile(t, fs, st, "b.ts", "export const b = 1")

	require.NoError(t, g.BuildFor("a.ts", []types.Symbol{importSymbol("./b", 1)}))
	status, err := g.Status()
	require.NoError(t, err)
	assert.Equal(t, types.ConfidenceHigh, status.Confidence)
	assert.Zero(t, status.UnresolvedRatio)
	assert.Empty(t, status.UnresolvedByFile)

	// One unresolved out of five total drops below the 25% line: medium.
	require.NoError(t, g.BuildFor("a.ts", []types.Symbol{
		importSymbol("./b", 1), importSymbol("./b", 2), importSymbol("./b", 3),
		importSymbol("./b", 4), importSymbol("./gone", 5),
	}))
	status, err = g.Status()
	require.NoError(t, err)
	assert.Equal(t, types.ConfidenceMedium, status.Confidence)
	assert.Equal(t, map[string]int{"a.ts": 1}, status.UnresolvedByFile)

	// Majority unresolved: low.
	require.NoError(t, g.BuildFor("a.ts", []types.Symbol{
		importSymbol("./gone", 1), importSymbol("./gone2", 2),
	}))
	status, err = g.Status()
	require.NoError(t, err)
	assert.Equal(t, types.ConfidenceLow, status.Confidence)
}

type staticSymbols map[string][]types.Symbol

func (s staticSymbols) SymbolsForFile(path string) ([]types.Symbol, error) {
	return s[path], nil
}

func TestRebuildUnresolved(t *testing.T) {
	g, fs, st := newTestGraph(t)
	seedFile(t, fs, st, "a.ts", "import {b} from './b'")
	require.NoError(t, g.BuildFor("a.ts", []types.Symbol{importSymbol("./b", 1)}))

	unresolved, err := st.FilesWithUnresolved()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.ts"}, unresolved)

	// b.ts appears; the retry resolves the import. A fresh resolver is
	// needed because resolution results are cached per (context, specifier).
	seedFile(t, fs, st, "b.ts", "export const b = 1")
	g.resolver = resolver.New("/repo", fs, nil, resolver.Options{}, nil)

	require.NoError(t, g.RebuildUnresolved(staticSymbols{
		"a.ts": {importSymbol("./b", 1)},
	}))

	unresolved, err = st.FilesWithUnresolved()
	require.NoError(t, err)
	assert.Empty(t, unresolved)

	edges, err := g.Dependencies("a.ts", types.DirDownstream)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "b.ts", edges[0].Target)
}

func TestInvalidateDirectory(t *testing.T) {
	g, fs, st := newTestGraph(t)
	seedFile(t, fs, st, "src/a.ts", "export const a = 1")
	seedFile(t, fs, st, "src/b.ts", "export const b = 1")
	seedFile(t, fs, st, "lib/c.ts", "export const c = 1")

	require.NoError(t, g.InvalidateDirectory("src"))

	n, err := st.FileCount()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestInDegrees(t *testing.T) {
	g, fs, st := newTestGraph(t)
	seedFile(t, fs, st, "a.ts", "import {u} from './util'")
	seedFile(t, fs, st, "b.ts", "import {u} from './util'")
	seedFile(t, fs, st, "util.ts", "export const u = 1")

	require.NoError(t, g.BuildFor("a.ts", []types.Symbol{importSymbol("./util", 1)}))
	require.NoError(t, g.BuildFor("b.ts", []types.Symbol{importSymbol("./util", 1)}))

	degrees, err := g.InDegrees()
	require.NoError(t, err)
	assert.Equal(t, 2, degrees["util.ts"])
}

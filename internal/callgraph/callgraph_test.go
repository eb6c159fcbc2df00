package callgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codelens-dev/codelens/internal/fsx"
	"github.com/codelens-dev/codelens/internal/resolver"
	"github.com/codelens-dev/codelens/internal/types"
)

// fixtureSymbols is an in-memory SymbolSource for graph shapes that would
// be tedious to produce through the parser.
type fixtureSymbols map[string][]types.Symbol

func (f fixtureSymbols) SymbolsForFile(path string) ([]types.Symbol, error) {
	return f[path], nil
}

func (f fixtureSymbols) AllSymbols() ([]types.Symbol, error) {
	var all []types.Symbol
	for _, symbols := range f {
		all = append(all, symbols...)
	}
	return all, nil
}

func def(file, name string, line int, calls ...types.CallSite) types.Symbol {
	return types.Symbol{
		Kind:     types.SymbolKindDefinition,
		FilePath: file,
		Name:     name,
		DefKind:  types.DefKindFunction,
		Line:     line,
		Calls:    calls,
	}
}

func call(name string, line int) types.CallSite {
	return types.CallSite{CalleeName: name, Line: line, CallType: types.CallDirect}
}

func newTestBuilder(symbols fixtureSymbols) *Builder {
	fs := fsx.NewMem("/repo")
	res := resolver.New("/repo", fs, nil, resolver.Options{}, nil)
	return New("/repo", symbols, res, nil)
}

func TestDownstreamLocalChain(t *testing.T) {
	symbols := fixtureSymbols{
		"a.ts": {
			def("a.ts", "f", 1, call("g", 2)),
			def("a.ts", "g", 5, call("h", 6)),
			def("a.ts", "h", 9),
		},
	}
	b := newTestBuilder(symbols)

	result, err := b.Analyze("f", "a.ts", types.DirDownstream, 10)
	require.NoError(t, err)
	assert.False(t, result.Truncated)
	assert.Equal(t, []string{"f", "g", "h"}, result.VisitedNames())

	require.Len(t, result.Edges, 2)
	for _, e := range result.Edges {
		assert.Equal(t, types.ConfidenceDefinite, e.Confidence)
	}
}

func TestDownstreamDepthTruncation(t *testing.T) {
	symbols := fixtureSymbols{
		"a.ts": {
			def("a.ts", "f", 1, call("g", 2)),
			def("a.ts", "g", 5, call("h", 6)),
			def("a.ts", "h", 9, call("i", 10)),
			def("a.ts", "i", 13),
		},
	}
	b := newTestBuilder(symbols)

	result, err := b.Analyze("f", "a.ts", types.DirDownstream, 2)
	require.NoError(t, err)
	assert.True(t, result.Truncated)
	assert.Equal(t, []string{"f", "g", "h"}, result.VisitedNames())
	assert.NotContains(t, result.VisitedNames(), "i")
}

func TestDownstreamThroughNamedImport(t *testing.T) {
	fs := fsx.NewMem("/repo")
	require.NoError(t, fs.WriteFile("/repo/a.ts", []byte("import {helper} from './b'"), 0o644))
	require.NoError(t, fs.WriteFile("/repo/b.ts", []byte("export function helper() {}"), 0o644))

	symbols := fixtureSymbols{
		"a.ts": {
			def("a.ts", "main", 2, call("helper", 3)),
			{
				Kind:          types.SymbolKindImport,
				FilePath:      "a.ts",
				ImportSource:  "./b",
				ImportKind:    types.ImportNamed,
				ImportedNames: []string{"helper"},
				Line:          1,
			},
		},
		"b.ts": {
			def("b.ts", "helper", 1),
		},
	}
	res := resolver.New("/repo", fs, nil, resolver.Options{}, nil)
	b := New("/repo", symbols, res, nil)

	result, err := b.Analyze("main", "a.ts", types.DirDownstream, 5)
	require.NoError(t, err)

	require.Len(t, result.Edges, 1)
	assert.Equal(t, "a.ts::main", result.Edges[0].From)
	assert.Equal(t, "b.ts::helper", result.Edges[0].To)
	assert.Equal(t, types.ConfidenceDefinite, result.Edges[0].Confidence)
}

func TestDownstreamGlobalFallbackIsInferred(t *testing.T) {
	symbols := fixtureSymbols{
		"a.ts": {def("a.ts", "main", 1, call("helper", 2))},
		"x.ts": {def("x.ts", "helper", 1)},
		"y.ts": {def("y.ts", "helper", 1)},
	}
	b := newTestBuilder(symbols)

	result, err := b.Analyze("main", "a.ts", types.DirDownstream, 3)
	require.NoError(t, err)

	require.Len(t, result.Edges, 2)
	for _, e := range result.Edges {
		assert.Equal(t, types.ConfidenceInferred, e.Confidence)
	}
}

func TestMethodCallOnForeignObjectSkipsLocal(t *testing.T) {
	symbols := fixtureSymbols{
		"a.ts": {
			def("a.ts", "main", 1, types.CallSite{
				CalleeName: "run", CalleeObject: "worker", Line: 2, CallType: types.CallMethod,
			}),
			def("a.ts", "run", 5), // must NOT bind: the receiver is a foreign object
		},
		"w.ts": {def("w.ts", "run", 1)},
	}
	b := newTestBuilder(symbols)

	result, err := b.Analyze("main", "a.ts", types.DirDownstream, 3)
	require.NoError(t, err)

	// Without a matching import the call falls through to the global
	// fallback, which unions every definition named run.
	require.NotEmpty(t, result.Edges)
	for _, e := range result.Edges {
		assert.Equal(t, types.ConfidenceInferred, e.Confidence)
	}
}

func TestUpstreamFindsCallers(t *testing.T) {
	symbols := fixtureSymbols{
		"a.ts": {
			def("a.ts", "caller1", 1, call("shared", 2)),
			def("a.ts", "caller2", 5, call("shared", 6)),
			def("a.ts", "shared", 9),
		},
	}
	b := newTestBuilder(symbols)

	result, err := b.Analyze("shared", "a.ts", types.DirUpstream, 3)
	require.NoError(t, err)

	names := result.VisitedNames()
	assert.Contains(t, names, "caller1")
	assert.Contains(t, names, "caller2")
	for _, e := range result.Edges {
		assert.Equal(t, "a.ts::shared", e.To)
	}
}

func TestEdgesDedupe(t *testing.T) {
	symbols := fixtureSymbols{
		"a.ts": {
			def("a.ts", "f", 1, call("g", 2), call("g", 2)),
			def("a.ts", "g", 5),
		},
	}
	b := newTestBuilder(symbols)

	result, err := b.Analyze("f", "a.ts", types.DirDownstream, 3)
	require.NoError(t, err)
	assert.Len(t, result.Edges, 1)
}

func TestMissingRootIsTruncated(t *testing.T) {
	b := newTestBuilder(fixtureSymbols{})
	result, err := b.Analyze("ghost", "a.ts", types.DirDownstream, 3)
	require.NoError(t, err)
	assert.True(t, result.Truncated)
	assert.Empty(t, result.Nodes)
}

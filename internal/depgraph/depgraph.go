// Package depgraph is the Dependency Graph: persistent file→file import
// edges with resolved/unresolved bookkeeping and a store-backed reverse
// index. All keys are normalized relative paths; absolute paths at the
// API boundary convert in and convert back out.
package depgraph

import (
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/codelens-dev/codelens/internal/config"
	"github.com/codelens-dev/codelens/internal/logging"
	"github.com/codelens-dev/codelens/internal/resolver"
	"github.com/codelens-dev/codelens/internal/store"
	"github.com/codelens-dev/codelens/internal/types"
	"github.com/codelens-dev/codelens/pkg/pathutil"
)

const (
	defaultMaxDepth = 20
	staleAfter      = time.Hour

	metaIndexedAt = "dep_graph_indexed_at"
)

// SymbolSource supplies a file's current symbols for rebuild paths; the
// Symbol Index satisfies it.
type SymbolSource interface {
	SymbolsForFile(path string) ([]types.Symbol, error)
}

// Graph is the Dependency Graph component.
type Graph struct {
	root      string
	store     *store.Store
	resolver  *resolver.Resolver
	workspace config.WorkspaceInfo
	log       logging.Logger

	// writeMu serializes the replace path per the single-writer rule.
	writeMu sync.Mutex
}

// New builds a Graph over the given store and resolver.
func New(root string, st *store.Store, res *resolver.Resolver, workspace config.WorkspaceInfo, log logging.Logger) *Graph {
	if log == nil {
		log = logging.Nop
	}
	return &Graph{root: root, store: st, resolver: res, workspace: workspace, log: log}
}

// BuildFor resolves every import in symbols and atomically replaces the
// file's outgoing edges and unresolved imports. Builtins and externals
// are skipped entirely.
func (g *Graph) BuildFor(path string, symbols []types.Symbol) error {
	rel := pathutil.ToRelative(path, g.root)

	var edges []types.DependencyEdge
	var unresolved []types.UnresolvedImport
	for _, sym := range symbols {
		if sym.Kind != types.SymbolKindImport || sym.ImportSource == "" {
			continue
		}
		res := g.resolver.Resolve(rel, sym.ImportSource)
		if res.Core || res.External {
			continue
		}
		meta := types.DependencyEdgeMeta{
			What:      describeImport(sym),
			Line:      sym.Line,
			Specifier: sym.ImportSource,
			Strategy:  res.Strategy,
		}
		if res.Resolved() {
			edges = append(edges, types.DependencyEdge{
				Source: rel,
				Target: res.ResolvedPath,
				Kind:   sym.ImportKind,
				Meta:   meta,
			})
		} else {
			unresolved = append(unresolved, types.UnresolvedImport{
				Specifier: sym.ImportSource,
				Error:     res.Error,
				Meta:      meta,
			})
		}
	}

	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	if err := g.store.ReplaceDependencies(rel, edges, unresolved); err != nil {
		return err
	}
	return g.store.SetMetadata(metaIndexedAt, strconv.FormatInt(time.Now().UnixMilli(), 10))
}

func describeImport(sym types.Symbol) string {
	switch sym.ImportKind {
	case types.ImportNamespace:
		return "namespace import " + sym.Alias
	case types.ImportDefault:
		return "default import " + sym.Alias
	case types.ImportNamed:
		return "named import"
	default:
		return "import"
	}
}

// Dependencies returns the edges touching path in the given direction.
// An absolute path in yields absolute paths out.
func (g *Graph) Dependencies(path string, dir types.Direction) ([]types.DependencyEdge, error) {
	wasAbs := filepath.IsAbs(path)
	rel := pathutil.ToRelative(path, g.root)

	var edges []types.DependencyEdge
	if dir == types.DirDownstream || dir == types.DirBoth {
		out, err := g.store.Dependencies(rel)
		if err != nil {
			return nil, err
		}
		edges = append(edges, out...)
	}
	if dir == types.DirUpstream || dir == types.DirBoth {
		in, err := g.store.Importers(rel)
		if err != nil {
			return nil, err
		}
		edges = append(edges, in...)
	}

	if wasAbs {
		for i := range edges {
			edges[i].Source = pathutil.ToAbsolute(edges[i].Source, g.root)
			edges[i].Target = pathutil.ToAbsolute(edges[i].Target, g.root)
		}
	}
	return edges, nil
}

// Importers is the upstream alias: every file importing path.
func (g *Graph) Importers(path string) ([]types.DependencyEdge, error) {
	return g.Dependencies(path, types.DirUpstream)
}

// TransitiveDependencies walks the graph breadth-first from path up to
// maxDepth (default 20), returning the set of reachable relative paths
// excluding the start.
func (g *Graph) TransitiveDependencies(path string, dir types.Direction, maxDepth int) ([]string, error) {
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}
	start := pathutil.ToRelative(path, g.root)

	visited := map[string]bool{start: true}
	frontier := []string{start}
	var reached []string

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, cur := range frontier {
			edges, err := g.Dependencies(cur, dir)
			if err != nil {
				return nil, err
			}
			for _, e := range edges {
				neighbor := e.Target
				if dir == types.DirUpstream {
					neighbor = e.Source
				} else if dir == types.DirBoth {
					if e.Target == cur {
						neighbor = e.Source
					}
				}
				if visited[neighbor] {
					continue
				}
				visited[neighbor] = true
				reached = append(reached, neighbor)
				next = append(next, neighbor)
			}
		}
		frontier = next
	}
	return reached, nil
}

// InDegrees returns, per target path, how many intra-repo edges point at
// it — the reverse import index the hybrid scorer's outboundImportance
// signal reads. Keys are relative paths.
func (g *Graph) InDegrees() (map[string]int, error) {
	edges, err := g.store.AllEdges()
	if err != nil {
		return nil, err
	}
	degrees := make(map[string]int, len(edges))
	for _, e := range edges {
		degrees[e.Target]++
	}
	return degrees, nil
}

// Status reports index totals, per-file resolved state, and a confidence
// tier derived from the unresolved ratio, demoted one tier when the index
// is older than one hour. IsMonorepo is advisory only.
func (g *Graph) Status() (types.IndexStatus, error) {
	files, err := g.store.FileCount()
	if err != nil {
		return types.IndexStatus{}, err
	}
	edges, err := g.store.EdgeCount()
	if err != nil {
		return types.IndexStatus{}, err
	}
	unresolvedTotal, err := g.store.UnresolvedCount()
	if err != nil {
		return types.IndexStatus{}, err
	}
	byFile, err := g.store.UnresolvedCountsByFile()
	if err != nil {
		return types.IndexStatus{}, err
	}

	ratio := 0.0
	if total := edges + unresolvedTotal; total > 0 {
		ratio = float64(unresolvedTotal) / float64(total)
	}

	tier := types.ConfidenceHigh
	switch {
	case ratio == 0:
	case ratio < 0.25:
		tier = types.ConfidenceMedium
	default:
		tier = types.ConfidenceLow
	}

	var indexedAt int64
	if raw, ok, err := g.store.GetMetadata(metaIndexedAt); err != nil {
		return types.IndexStatus{}, err
	} else if ok {
		indexedAt, _ = strconv.ParseInt(raw, 10, 64)
	}
	if indexedAt > 0 && time.Since(time.UnixMilli(indexedAt)) > staleAfter {
		tier = demote(tier)
	}

	return types.IndexStatus{
		TotalFiles:       files,
		TotalEdges:       edges,
		TotalUnresolved:  unresolvedTotal,
		UnresolvedRatio:  ratio,
		Confidence:       tier,
		IsMonorepo:       g.workspace.IsMonorepo,
		IndexedAt:        indexedAt,
		UnresolvedByFile: byFile,
	}, nil
}

func demote(tier types.ConfidenceTier) types.ConfidenceTier {
	switch tier {
	case types.ConfidenceHigh:
		return types.ConfidenceMedium
	default:
		return types.ConfidenceLow
	}
}

// InvalidateFile drops the cold entry for path; the caller clears the
// symbol cache alongside.
func (g *Graph) InvalidateFile(path string) error {
	rel := pathutil.ToRelative(path, g.root)
	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	return g.store.DeleteFile(rel)
}

// InvalidateDirectory drops every cold entry under the prefix.
func (g *Graph) InvalidateDirectory(path string) error {
	rel := pathutil.ToRelative(path, g.root)
	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	return g.store.DeleteUnderPrefix(rel)
}

// RebuildUnresolved retries resolution for every file that has at least
// one unresolved import, reading current symbols through src.
func (g *Graph) RebuildUnresolved(src SymbolSource) error {
	paths, err := g.store.FilesWithUnresolved()
	if err != nil {
		return err
	}
	for _, rel := range paths {
		symbols, err := src.SymbolsForFile(rel)
		if err != nil {
			g.log.Warnf("depgraph: rebuild %s: %v", rel, err)
			continue
		}
		if err := g.BuildFor(rel, symbols); err != nil {
			return err
		}
	}
	return nil
}

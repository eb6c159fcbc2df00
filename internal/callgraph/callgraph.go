// Package callgraph builds symbol→symbol call edges on demand: local
// same-file resolution first, then import-scoped resolution through the
// Module Resolver, then a global name-match fallback — each tier with a
// strictly weaker confidence. Nodes live in a flat symbolId-keyed map and
// traversal uses explicit visited sets, never a cyclic object graph.
package callgraph

import (
	"sort"
	"strings"

	"github.com/codelens-dev/codelens/internal/logging"
	"github.com/codelens-dev/codelens/internal/resolver"
	"github.com/codelens-dev/codelens/internal/types"
	"github.com/codelens-dev/codelens/pkg/pathutil"
)

// SymbolSource supplies per-file and whole-index symbol lists; the Symbol
// Index satisfies it.
type SymbolSource interface {
	SymbolsForFile(path string) ([]types.Symbol, error)
	AllSymbols() ([]types.Symbol, error)
}

// Node is one call-graph vertex, keyed by relativePath + "::" + name.
type Node struct {
	ID       string
	Name     string
	FilePath string
	Line     int
	Kind     types.DefinitionKind
}

// Edge is one resolved call between two nodes.
type Edge struct {
	From       string
	To         string
	CallType   types.CallType
	Confidence types.CallConfidence
	Line       int
	Column     int
}

// Result is the node map plus edges rooted at the analyzed symbol.
type Result struct {
	Root      string
	Nodes     map[string]Node
	Edges     []Edge
	Truncated bool
}

// VisitedNames returns the distinct symbol names in the result, sorted —
// a convenience for callers summarizing the traversal.
func (r *Result) VisitedNames() []string {
	seen := make(map[string]bool, len(r.Nodes))
	var names []string
	for _, n := range r.Nodes {
		if !seen[n.Name] {
			seen[n.Name] = true
			names = append(names, n.Name)
		}
	}
	sort.Strings(names)
	return names
}

// Builder resolves call sites into a bounded call graph.
type Builder struct {
	root     string
	symbols  SymbolSource
	resolver *resolver.Resolver
	log      logging.Logger
}

// New builds a Builder over the given symbol source and resolver.
func New(root string, symbols SymbolSource, res *resolver.Resolver, log logging.Logger) *Builder {
	if log == nil {
		log = logging.Nop
	}
	return &Builder{root: root, symbols: symbols, resolver: res, log: log}
}

// selfReceivers are callee objects that still mean "this file's own
// definitions" for local resolution.
var selfReceivers = map[string]bool{"this": true, "super": true, "self": true}

// Analyze expands the call graph around (symbolName, filePath) in the
// given direction up to maxDepth. Truncated is set when depth or a
// missing definition context cut the expansion short.
func (b *Builder) Analyze(symbolName, filePath string, dir types.Direction, maxDepth int) (*Result, error) {
	rel := pathutil.ToRelative(filePath, b.root)
	result := &Result{
		Root:  types.SymbolID(rel, symbolName),
		Nodes: make(map[string]Node),
	}

	rootDef, err := b.findDefinition(rel, symbolName)
	if err != nil {
		return nil, err
	}
	if rootDef == nil {
		result.Truncated = true
		return result, nil
	}
	b.addNode(result, *rootDef)

	var calleeIdx *calleeIndex
	if dir == types.DirUpstream || dir == types.DirBoth {
		calleeIdx, err = b.buildCalleeIndex()
		if err != nil {
			return nil, err
		}
	}

	type frontierEntry struct {
		def   types.Symbol
		depth int
	}
	visited := map[string]bool{result.Root: true}
	frontier := []frontierEntry{{def: *rootDef, depth: 0}}
	edgeSeen := make(map[edgeKey]bool)

	for len(frontier) > 0 {
		cur := frontier[0]
		frontier = frontier[1:]

		if cur.depth >= maxDepth {
			result.Truncated = true
			continue
		}

		var neighbors []types.Symbol
		if dir == types.DirDownstream || dir == types.DirBoth {
			targets, truncated := b.expandDownstream(result, cur.def, edgeSeen)
			neighbors = append(neighbors, targets...)
			result.Truncated = result.Truncated || truncated
		}
		if dir == types.DirUpstream || dir == types.DirBoth {
			callers := b.expandUpstream(result, cur.def, calleeIdx, edgeSeen)
			neighbors = append(neighbors, callers...)
		}

		for _, n := range neighbors {
			id := types.SymbolID(n.FilePath, n.Name)
			if visited[id] {
				continue
			}
			visited[id] = true
			frontier = append(frontier, frontierEntry{def: n, depth: cur.depth + 1})
		}
	}

	return result, nil
}

type edgeKey struct {
	from, to string
	line     int
	column   int
	callType types.CallType
}

func (b *Builder) addNode(result *Result, def types.Symbol) {
	id := types.SymbolID(def.FilePath, def.Name)
	if _, ok := result.Nodes[id]; ok {
		return
	}
	result.Nodes[id] = Node{
		ID:       id,
		Name:     def.Name,
		FilePath: def.FilePath,
		Line:     def.Line,
		Kind:     def.DefKind,
	}
}

func (b *Builder) addEdge(result *Result, seen map[edgeKey]bool, e Edge) {
	k := edgeKey{from: e.From, to: e.To, line: e.Line, column: e.Column, callType: e.CallType}
	if seen[k] {
		return
	}
	seen[k] = true
	result.Edges = append(result.Edges, e)
}

// expandDownstream resolves every recorded call site on def through the
// three-tier ladder: local, import-scoped, global fallback.
func (b *Builder) expandDownstream(result *Result, def types.Symbol, edgeSeen map[edgeKey]bool) ([]types.Symbol, bool) {
	fromID := types.SymbolID(def.FilePath, def.Name)
	truncated := false

	fileSymbols, err := b.symbols.SymbolsForFile(def.FilePath)
	if err != nil {
		b.log.Warnf("callgraph: symbols for %s: %v", def.FilePath, err)
		return nil, true
	}

	var targets []types.Symbol
	for _, call := range def.Calls {
		resolved, confidence, ok := b.resolveCall(def.FilePath, fileSymbols, call)
		if !ok {
			truncated = true
			continue
		}
		for _, target := range resolved {
			b.addNode(result, target)
			b.addEdge(result, edgeSeen, Edge{
				From:       fromID,
				To:         types.SymbolID(target.FilePath, target.Name),
				CallType:   call.CallType,
				Confidence: confidence,
				Line:       call.Line,
				Column:     call.Column,
			})
			targets = append(targets, target)
		}
	}
	return targets, truncated
}

// resolveCall applies the confidence ladder for one call site.
func (b *Builder) resolveCall(fromPath string, fileSymbols []types.Symbol, call types.CallSite) ([]types.Symbol, types.CallConfidence, bool) {
	// Tier 1: local definitions, unless the call is dispatched through an
	// object other than this/super/self.
	if call.CalleeObject == "" || selfReceivers[call.CalleeObject] {
		if local := definitionsNamed(fileSymbols, fromPath, call.CalleeName); len(local) > 0 {
			return local, types.ConfidenceDefinite, true
		}
	}

	// Tier 2: an imported binding matching the callee.
	if targets, confidence, ok := b.resolveThroughImports(fromPath, fileSymbols, call); ok {
		return targets, confidence, true
	}

	// Tier 3: global fallback over every definition with that name.
	all, err := b.symbols.AllSymbols()
	if err != nil {
		b.log.Warnf("callgraph: global fallback: %v", err)
		return nil, "", false
	}
	var global []types.Symbol
	for _, sym := range all {
		if sym.Kind == types.SymbolKindDefinition && sym.Name == call.CalleeName {
			global = append(global, sym)
		}
	}
	if len(global) > 0 {
		return global, types.ConfidenceInferred, true
	}
	return nil, "", false
}

// resolveThroughImports looks for an import whose binding matches the
// call, resolves its source, and picks definitions in the target file per
// import kind. Named imports are definite; default and namespace imports
// are possible.
func (b *Builder) resolveThroughImports(fromPath string, fileSymbols []types.Symbol, call types.CallSite) ([]types.Symbol, types.CallConfidence, bool) {
	for _, imp := range fileSymbols {
		if imp.Kind != types.SymbolKindImport {
			continue
		}

		matched := false
		confidence := types.ConfidencePossible
		switch imp.ImportKind {
		case types.ImportNamespace:
			matched = call.CalleeObject != "" && imp.Alias == call.CalleeObject
		case types.ImportDefault:
			matched = imp.Alias == call.CalleeName || imp.Alias == call.CalleeObject
		case types.ImportNamed:
			for _, name := range imp.ImportedNames {
				if name == call.CalleeName {
					matched = true
					confidence = types.ConfidenceDefinite
					break
				}
			}
		}
		if !matched {
			continue
		}

		res := b.resolver.Resolve(fromPath, imp.ImportSource)
		if !res.Resolved() || res.Core || res.External {
			continue
		}
		targetSymbols, err := b.symbols.SymbolsForFile(res.ResolvedPath)
		if err != nil {
			continue
		}
		if defs := definitionsNamed(targetSymbols, res.ResolvedPath, call.CalleeName); len(defs) > 0 {
			return defs, confidence, true
		}
	}
	return nil, "", false
}

// expandUpstream finds callers of def by scanning the whole-index callee
// index and keeping candidates whose call re-resolves to def.
func (b *Builder) expandUpstream(result *Result, def types.Symbol, idx *calleeIndex, edgeSeen map[edgeKey]bool) []types.Symbol {
	if idx == nil {
		return nil
	}
	defID := types.SymbolID(def.FilePath, def.Name)

	var callers []types.Symbol
	for _, candidate := range idx.callersOf(def.Name) {
		callerSymbols, err := b.symbols.SymbolsForFile(candidate.caller.FilePath)
		if err != nil {
			continue
		}
		resolved, confidence, ok := b.resolveCall(candidate.caller.FilePath, callerSymbols, candidate.call)
		if !ok {
			continue
		}
		for _, target := range resolved {
			if types.SymbolID(target.FilePath, target.Name) != defID {
				continue
			}
			b.addNode(result, candidate.caller)
			b.addEdge(result, edgeSeen, Edge{
				From:       types.SymbolID(candidate.caller.FilePath, candidate.caller.Name),
				To:         defID,
				CallType:   candidate.call.CallType,
				Confidence: confidence,
				Line:       candidate.call.Line,
				Column:     candidate.call.Column,
			})
			callers = append(callers, candidate.caller)
			break
		}
	}
	return callers
}

// calleeIndex maps calleeName → the call sites that reference it, with
// their enclosing definitions.
type calleeIndex struct {
	byName map[string][]callerRef
}

type callerRef struct {
	caller types.Symbol
	call   types.CallSite
}

func (c *calleeIndex) callersOf(name string) []callerRef {
	return c.byName[name]
}

func (b *Builder) buildCalleeIndex() (*calleeIndex, error) {
	all, err := b.symbols.AllSymbols()
	if err != nil {
		return nil, err
	}
	idx := &calleeIndex{byName: make(map[string][]callerRef)}
	for _, sym := range all {
		if sym.Kind != types.SymbolKindDefinition {
			continue
		}
		for _, call := range sym.Calls {
			idx.byName[call.CalleeName] = append(idx.byName[call.CalleeName], callerRef{caller: sym, call: call})
		}
	}
	return idx, nil
}

// findDefinition locates the named definition in file, tolerating a
// method recorded as Object.name.
func (b *Builder) findDefinition(rel, name string) (*types.Symbol, error) {
	symbols, err := b.symbols.SymbolsForFile(rel)
	if err != nil {
		return nil, err
	}
	for i := range symbols {
		sym := symbols[i]
		if sym.Kind != types.SymbolKindDefinition {
			continue
		}
		if sym.Name == name || strings.HasSuffix(sym.Name, "."+name) {
			return &sym, nil
		}
	}
	return nil, nil
}

func definitionsNamed(symbols []types.Symbol, filePath, name string) []types.Symbol {
	var out []types.Symbol
	for _, sym := range symbols {
		if sym.Kind != types.SymbolKindDefinition || sym.Name != name {
			continue
		}
		if sym.FilePath == "" {
			sym.FilePath = filePath
		}
		out = append(out, sym)
	}
	return out
}

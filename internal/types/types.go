// Package types holds the data model shared across every component of the
// index: symbols, file records, dependency edges, call-graph nodes,
// resolution results and edits. Nothing here owns behavior beyond small
// value-level helpers — the components in sibling packages own behavior.
package types

import "strings"

// SymbolKind tags which shape a Symbol carries. Downstream code switches
// on Kind first, then narrows to the kind-specific fields; there is no
// inheritance hierarchy.
type SymbolKind string

const (
	SymbolKindDefinition SymbolKind = "definition"
	SymbolKindImport     SymbolKind = "import"
	SymbolKindExport     SymbolKind = "export"
)

// DefinitionKind enumerates the definition shapes a Symbol of
// SymbolKindDefinition can carry.
type DefinitionKind string

const (
	DefKindClass      DefinitionKind = "class"
	DefKindFunction   DefinitionKind = "function"
	DefKindMethod     DefinitionKind = "method"
	DefKindInterface  DefinitionKind = "interface"
	DefKindVariable   DefinitionKind = "variable"
	DefKindExportSpec DefinitionKind = "export_specifier"
)

// ImportKind enumerates how a source specifier was imported.
type ImportKind string

const (
	ImportNamed       ImportKind = "named"
	ImportNamespace   ImportKind = "namespace"
	ImportDefault     ImportKind = "default"
	ImportSideEffect  ImportKind = "side_effect"
)

// ExportKind enumerates how a symbol is re-exposed.
type ExportKind string

const (
	ExportNamed     ExportKind = "named"
	ExportDefault   ExportKind = "default"
	ExportNamespace ExportKind = "namespace"
	ExportReExport  ExportKind = "re_export"
)

// CallType classifies a call site recorded on a Definition.
type CallType string

const (
	CallDirect CallType = "direct"
	CallMethod CallType = "method"
)

// CallConfidence is the strictly-ordered call-graph confidence tier.
type CallConfidence string

const (
	ConfidenceDefinite CallConfidence = "definite"
	ConfidencePossible CallConfidence = "possible"
	ConfidenceInferred CallConfidence = "inferred"
)

// Rank returns the strict order definite > possible > inferred, useful
// for picking the strongest of several candidate edges.
func (c CallConfidence) Rank() int {
	switch c {
	case ConfidenceDefinite:
		return 3
	case ConfidencePossible:
		return 2
	case ConfidenceInferred:
		return 1
	default:
		return 0
	}
}

// ByteRange is a closed-open byte range [Start, End) that must intersect
// the file it was extracted from.
type ByteRange struct {
	Start int
	End   int
}

// CallSite is a single recorded call inside a Definition's body.
type CallSite struct {
	CalleeName   string
	CalleeObject string // empty when the call is not a method/member call
	Line         int
	Column       int
	CallType     CallType
}

// Symbol is the tagged sum described in the data model: a Definition, an
// Import, or an Export. Only the fields relevant to Kind are populated;
// callers must check Kind before reading kind-specific fields.
type Symbol struct {
	Kind     SymbolKind
	FilePath string // relative path of the owning file
	Name     string
	Range    ByteRange
	Line     int // 1-based start line, set by the LineCounter
	Column   int

	// Definition fields
	DefKind   DefinitionKind
	Signature string
	Doc       string
	Modifiers []string
	Calls     []CallSite
	Content   string // equals file[Range.Start:Range.End] when populated

	// Import fields
	ImportSource string // raw specifier, pre-resolution
	ImportKind   ImportKind
	Alias        string
	ImportedNames []string
	TypeOnly      bool

	// Export fields
	ExportKind    ExportKind
	ExportSource  string // set for re-exports
	ExportedNames []string
}

// SymbolID is the call-graph node identifier: relativePath + "::" + name.
func SymbolID(relPath, name string) string {
	return relPath + "::" + name
}

// SplitSymbolID reverses SymbolID, returning ok=false if sep is absent.
func SplitSymbolID(id string) (relPath, name string, ok bool) {
	idx := strings.LastIndex(id, "::")
	if idx < 0 {
		return "", "", false
	}
	return id[:idx], id[idx+2:], true
}

// FileRecord is the persisted unit of the Symbol Index: one row per
// relative path.
type FileRecord struct {
	Path         string
	LastModified int64 // ms since epoch, mtime at last parse
	Language     string
	Symbols      []Symbol
}

// ResolutionStrategy names which rung of the Module Resolver ladder
// produced a ResolutionResult.
type ResolutionStrategy string

const (
	StrategyRelative   ResolutionStrategy = "relative"
	StrategyAbsolute   ResolutionStrategy = "absolute"
	StrategyAlias      ResolutionStrategy = "alias"
	StrategyNode       ResolutionStrategy = "node"
	StrategyBundler    ResolutionStrategy = "bundler"
	StrategyUnresolved ResolutionStrategy = "unresolved"
)

// ResolutionAttempt records one candidate path the resolver tried plus a
// reason it didn't pan out; these accumulate into ResolutionResult.Attempts
// to drive the failure diagnostics in the search/editor error surfaces.
type ResolutionAttempt struct {
	Path   string
	Reason string
}

// ResolutionResult is the output of the Module Resolver for a single
// (context file, specifier) pair.
type ResolutionResult struct {
	ResolvedPath string // empty when unresolved
	Strategy     ResolutionStrategy
	Attempts     []ResolutionAttempt
	Core         bool // language-runtime builtin; ignored by the dependency graph
	External     bool // node_modules-style external package; ignored likewise
	Error        string
}

// Resolved reports whether ResolvedPath is usable.
func (r ResolutionResult) Resolved() bool {
	return r.ResolvedPath != "" && r.Error == ""
}

// DependencyEdgeKind mirrors ImportKind but lives on the persisted edge so
// the dependency graph doesn't need to look the import back up.
type DependencyEdgeKind = ImportKind

// DependencyEdgeMeta is the metadata attached to a persisted dependency
// edge.
type DependencyEdgeMeta struct {
	What     string // human description, e.g. "named import {x}"
	Line     int
	Specifier string
	Strategy ResolutionStrategy
}

// DependencyEdge is one outgoing edge in the Dependency Graph.
type DependencyEdge struct {
	Source string
	Target string
	Kind   DependencyEdgeKind
	Meta   DependencyEdgeMeta
}

// UnresolvedImport is a per-file import the resolver could not turn into
// an intra-repo edge.
type UnresolvedImport struct {
	Specifier string
	Error     string
	Meta      DependencyEdgeMeta
}

// Direction selects which way a dependency/call graph query traverses.
type Direction string

const (
	DirUpstream   Direction = "upstream"
	DirDownstream Direction = "downstream"
	DirBoth       Direction = "both"
)

// ConfidenceTier is the coarse health signal reported by IndexStatus.
type ConfidenceTier string

const (
	ConfidenceHigh   ConfidenceTier = "high"
	ConfidenceMedium ConfidenceTier = "medium"
	ConfidenceLow    ConfidenceTier = "low"
)

// IndexStatus summarizes the Dependency Graph's health.
type IndexStatus struct {
	TotalFiles        int
	TotalEdges        int
	TotalUnresolved   int
	UnresolvedRatio   float64
	Confidence        ConfidenceTier
	IsMonorepo        bool
	IndexedAt         int64 // ms since epoch
	// UnresolvedByFile maps each source path with at least one unresolved
	// import to its unresolved count; files absent from the map are fully
	// resolved.
	UnresolvedByFile map[string]int
}

package store

import (
	"path/filepath"
	"testing"

	"github.com/codelens-dev/codelens/internal/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "index.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertFileAndMTime(t *testing.T) {
	s := openTestStore(t)

	if err := s.UpsertFile("a.go", "go", 1000); err != nil {
		t.Fatalf("UpsertFile: %v", err)
	}
	mtime, ok, err := s.FileMTime("a.go")
	if err != nil {
		t.Fatalf("FileMTime: %v", err)
	}
	if !ok || mtime != 1000 {
		t.Fatalf("FileMTime = (%d, %v), want (1000, true)", mtime, ok)
	}

	if err := s.UpsertFile("a.go", "go", 2000); err != nil {
		t.Fatalf("UpsertFile update: %v", err)
	}
	mtime, _, err = s.FileMTime("a.go")
	if err != nil {
		t.Fatalf("FileMTime: %v", err)
	}
	if mtime != 2000 {
		t.Errorf("FileMTime after update = %d, want 2000", mtime)
	}

	if _, ok, err := s.FileMTime("missing.go"); err != nil || ok {
		t.Errorf("FileMTime for missing file = (_, %v, %v), want (_, false, nil)", ok, err)
	}
}

func TestReplaceFileSymbolsRoundTrips(t *testing.T) {
	s := openTestStore(t)
	if err := s.UpsertFile("a.go", "go", 1000); err != nil {
		t.Fatalf("UpsertFile: %v", err)
	}

	symbols := []types.Symbol{
		{
			Kind:      types.SymbolKindDefinition,
			Name:      "Greet",
			DefKind:   types.DefKindFunction,
			Line:      3,
			Column:    1,
			Modifiers: []string{"exported"},
			Calls: []types.CallSite{
				{CalleeName: "Println", CalleeObject: "fmt", Line: 4, Column: 2, CallType: types.CallMethod},
			},
		},
		{
			Kind:         types.SymbolKindImport,
			Name:         "fmt",
			ImportSource: "fmt",
			ImportKind:   types.ImportSideEffect,
			Line:         1,
		},
	}
	edges := []types.DependencyEdge{
		{Source: "a.go", Target: "b.go", Kind: types.ImportNamed, Meta: types.DependencyEdgeMeta{What: "named import {x}", Line: 2}},
	}
	unresolved := []types.UnresolvedImport{
		{Specifier: "missing-pkg", Error: "not found", Meta: types.DependencyEdgeMeta{What: "a.go", Line: 5}},
	}

	if err := s.ReplaceFileSymbols("a.go", symbols, edges, unresolved); err != nil {
		t.Fatalf("ReplaceFileSymbols: %v", err)
	}

	got, err := s.SymbolsForFile("a.go")
	if err != nil {
		t.Fatalf("SymbolsForFile: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("SymbolsForFile returned %d symbols, want 2", len(got))
	}

	var fn *types.Symbol
	for i := range got {
		if got[i].Name == "Greet" {
			fn = &got[i]
		}
	}
	if fn == nil {
		t.Fatal("expected Greet symbol")
	}
	if len(fn.Calls) != 1 || fn.Calls[0].CalleeName != "Println" {
		t.Errorf("Calls = %+v, want one call to Println", fn.Calls)
	}
	if len(fn.Modifiers) != 1 || fn.Modifiers[0] != "exported" {
		t.Errorf("Modifiers = %v, want [exported]", fn.Modifiers)
	}

	deps, err := s.Dependencies("a.go")
	if err != nil {
		t.Fatalf("Dependencies: %v", err)
	}
	if len(deps) != 1 || deps[0].Target != "b.go" {
		t.Errorf("Dependencies = %+v, want one edge to b.go", deps)
	}

	importers, err := s.Importers("b.go")
	if err != nil {
		t.Fatalf("Importers: %v", err)
	}
	if len(importers) != 1 || importers[0].Source != "a.go" {
		t.Errorf("Importers = %+v, want one edge from a.go", importers)
	}

	unresolvedGot, err := s.UnresolvedImports()
	if err != nil {
		t.Fatalf("UnresolvedImports: %v", err)
	}
	if len(unresolvedGot) != 1 || unresolvedGot[0].Specifier != "missing-pkg" {
		t.Errorf("UnresolvedImports = %+v, want one missing-pkg entry", unresolvedGot)
	}

	// Reparsing the same file replaces, not accumulates.
	if err := s.ReplaceFileSymbols("a.go", symbols[:1], nil, nil); err != nil {
		t.Fatalf("ReplaceFileSymbols second pass: %v", err)
	}
	got, err = s.SymbolsForFile("a.go")
	if err != nil {
		t.Fatalf("SymbolsForFile: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("SymbolsForFile after reparse returned %d symbols, want 1", len(got))
	}
	deps, err = s.Dependencies("a.go")
	if err != nil {
		t.Fatalf("Dependencies: %v", err)
	}
	if len(deps) != 0 {
		t.Errorf("Dependencies after reparse = %+v, want none", deps)
	}
}

func TestDeleteFileCascades(t *testing.T) {
	s := openTestStore(t)
	if err := s.UpsertFile("a.go", "go", 1000); err != nil {
		t.Fatalf("UpsertFile: %v", err)
	}
	symbols := []types.Symbol{{Kind: types.SymbolKindDefinition, Name: "X", DefKind: types.DefKindFunction}}
	if err := s.ReplaceFileSymbols("a.go", symbols, nil, nil); err != nil {
		t.Fatalf("ReplaceFileSymbols: %v", err)
	}

	if err := s.DeleteFile("a.go"); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}

	got, err := s.SymbolsForFile("a.go")
	if err != nil {
		t.Fatalf("SymbolsForFile: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("SymbolsForFile after delete = %+v, want none", got)
	}
	if n, err := s.FileCount(); err != nil || n != 0 {
		t.Errorf("FileCount after delete = (%d, %v), want (0, nil)", n, err)
	}
}

func TestAllSymbolsNameFilter(t *testing.T) {
	s := openTestStore(t)
	if err := s.UpsertFile("a.go", "go", 1000); err != nil {
		t.Fatalf("UpsertFile: %v", err)
	}
	symbols := []types.Symbol{
		{Kind: types.SymbolKindDefinition, Name: "Greet", DefKind: types.DefKindFunction},
		{Kind: types.SymbolKindDefinition, Name: "Farewell", DefKind: types.DefKindFunction},
	}
	if err := s.ReplaceFileSymbols("a.go", symbols, nil, nil); err != nil {
		t.Fatalf("ReplaceFileSymbols: %v", err)
	}

	got, err := s.AllSymbols("reet")
	if err != nil {
		t.Fatalf("AllSymbols: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Greet" {
		t.Errorf("AllSymbols(reet) = %+v, want one Greet match", got)
	}

	all, err := s.AllSymbols("")
	if err != nil {
		t.Fatalf("AllSymbols(\"\"): %v", err)
	}
	if len(all) != 2 {
		t.Errorf("AllSymbols(\"\") returned %d, want 2", len(all))
	}
}

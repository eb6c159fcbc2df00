package skeleton

import (
	"testing"

	"github.com/codelens-dev/codelens/internal/logging"
	"github.com/codelens-dev/codelens/internal/parsing"
	"github.com/codelens-dev/codelens/internal/types"
)

func TestExtractGoFunctionAndImport(t *testing.T) {
	src := []byte(`package main

import "fmt"

func Greet(name string) string {
	fmt.Println(name)
	return name
}
`)

	ex := New(parsing.New(logging.Nop), logging.Nop)
	symbols, err := ex.Extract("main.go", src)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	var fn *types.Symbol
	var imp *types.Symbol
	for i := range symbols {
		switch symbols[i].Kind {
		case types.SymbolKindDefinition:
			if symbols[i].Name == "Greet" {
				fn = &symbols[i]
			}
		case types.SymbolKindImport:
			imp = &symbols[i]
		}
	}

	if fn == nil {
		t.Fatal("expected a Greet function symbol")
	}
	if fn.DefKind != types.DefKindFunction {
		t.Errorf("DefKind = %v, want function", fn.DefKind)
	}
	if imp == nil {
		t.Fatal("expected an import symbol")
	}
	if imp.ImportSource != "fmt" {
		t.Errorf("ImportSource = %q, want fmt", imp.ImportSource)
	}
}

func TestExtractUnsupportedExtensionReturnsNil(t *testing.T) {
	ex := New(parsing.New(logging.Nop), logging.Nop)
	symbols, err := ex.Extract("notes.txt", []byte("hello"))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if symbols != nil {
		t.Errorf("expected nil symbols for unsupported extension, got %v", symbols)
	}
}

func TestParseJSImportClause(t *testing.T) {
	cases := []struct {
		stmt      string
		wantKind  types.ImportKind
		wantAlias string
		wantNames []string
	}{
		{`import {x} from "@/util"`, types.ImportNamed, "", []string{"x"}},
		{`import {a, b as c} from "./m"`, types.ImportNamed, "", []string{"a", "c"}},
		{`import * as ns from "./m"`, types.ImportNamespace, "ns", nil},
		{`import def from "./m"`, types.ImportDefault, "def", nil},
		{`import def, {x} from "./m"`, types.ImportNamed, "def", []string{"x"}},
		{`import "./side-effect"`, types.ImportSideEffect, "", nil},
	}
	for _, tc := range cases {
		kind, alias, names := parseJSImportClause(tc.stmt)
		if kind != tc.wantKind || alias != tc.wantAlias {
			t.Errorf("parseJSImportClause(%q) = (%v, %q), want (%v, %q)", tc.stmt, kind, alias, tc.wantKind, tc.wantAlias)
		}
		if len(names) != len(tc.wantNames) {
			t.Errorf("parseJSImportClause(%q) names = %v, want %v", tc.stmt, names, tc.wantNames)
			continue
		}
		for i := range names {
			if names[i] != tc.wantNames[i] {
				t.Errorf("parseJSImportClause(%q) names = %v, want %v", tc.stmt, names, tc.wantNames)
			}
		}
	}
}

func TestExtractJavaScriptCallSiteAttachment(t *testing.T) {
	src := []byte(`function outer() {
	helper();
}

function helper() {}
`)

	ex := New(parsing.New(logging.Nop), logging.Nop)
	symbols, err := ex.Extract("app.js", src)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	var outer *types.Symbol
	for i := range symbols {
		if symbols[i].Kind == types.SymbolKindDefinition && symbols[i].Name == "outer" {
			outer = &symbols[i]
		}
	}
	if outer == nil {
		t.Fatal("expected an outer function symbol")
	}
	found := false
	for _, c := range outer.Calls {
		if c.CalleeName == "helper" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected outer to record a call to helper, got %+v", outer.Calls)
	}
}

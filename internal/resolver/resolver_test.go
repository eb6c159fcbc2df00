package resolver

import (
	"testing"

	"github.com/codelens-dev/codelens/internal/config"
	"github.com/codelens-dev/codelens/internal/fsx"
	"github.com/codelens-dev/codelens/internal/types"
)

func writeFile(t *testing.T, fs *fsx.FS, path, content string) {
	t.Helper()
	if err := fs.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s): %v", path, err)
	}
}

func TestResolveRelative(t *testing.T) {
	fs := fsx.NewMem("/repo")
	writeFile(t, fs, "/repo/src/a.ts", "export const a = 1")
	writeFile(t, fs, "/repo/src/b.ts", "import { a } from './a'")

	r := New("/repo", fs, nil, Options{}, nil)
	result := r.Resolve("/repo/src/b.ts", "./a")

	if !result.Resolved() {
		t.Fatalf("expected resolved, got %+v", result)
	}
	if result.ResolvedPath != "src/a.ts" {
		t.Errorf("ResolvedPath = %q, want src/a.ts", result.ResolvedPath)
	}
}

func TestResolveRelativeIndexFallback(t *testing.T) {
	fs := fsx.NewMem("/repo")
	writeFile(t, fs, "/repo/src/widgets/index.ts", "export const w = 1")
	writeFile(t, fs, "/repo/src/main.ts", "import { w } from './widgets'")

	r := New("/repo", fs, nil, Options{}, nil)
	result := r.Resolve("/repo/src/main.ts", "./widgets")

	if !result.Resolved() {
		t.Fatalf("expected resolved, got %+v", result)
	}
	if result.ResolvedPath != "src/widgets/index.ts" {
		t.Errorf("ResolvedPath = %q, want src/widgets/index.ts", result.ResolvedPath)
	}
}

func TestResolveAlias(t *testing.T) {
	fs := fsx.NewMem("/repo")
	writeFile(t, fs, "/repo/src/util.ts", "export const u = 1")
	writeFile(t, fs, "/repo/src/main.ts", "import { u } from '@/util'")

	aliases := []config.AliasMapping{{Pattern: "@/*", Targets: []string{"src/*"}}}
	r := New("/repo", fs, aliases, Options{}, nil)
	result := r.Resolve("/repo/src/main.ts", "@/util")

	if !result.Resolved() {
		t.Fatalf("expected resolved, got %+v", result)
	}
	if result.ResolvedPath != "src/util.ts" {
		t.Errorf("ResolvedPath = %q, want src/util.ts", result.ResolvedPath)
	}
}

func TestResolveNodePackage(t *testing.T) {
	fs := fsx.NewMem("/repo")
	writeFile(t, fs, "/repo/node_modules/leftpad/index.js", "module.exports = {}")
	writeFile(t, fs, "/repo/src/main.ts", "import leftpad from 'leftpad'")

	r := New("/repo", fs, nil, Options{}, nil)
	result := r.Resolve("/repo/src/main.ts", "leftpad")

	if !result.Resolved() {
		t.Fatalf("expected resolved, got %+v", result)
	}
	if result.ResolvedPath != "node_modules/leftpad/index.js" {
		t.Errorf("ResolvedPath = %q, want node_modules/leftpad/index.js", result.ResolvedPath)
	}
}

func TestResolveBuiltinIsCoreNotExternal(t *testing.T) {
	fs := fsx.NewMem("/repo")
	writeFile(t, fs, "/repo/src/main.ts", "import fs from 'fs'")

	r := New("/repo", fs, nil, Options{}, nil)
	result := r.Resolve("/repo/src/main.ts", "fs")

	if !result.Core {
		t.Error("expected Core true for builtin specifier")
	}
	if result.External {
		t.Error("did not expect External true for a core builtin")
	}
}

func TestResolveUnresolvedCarriesAttempts(t *testing.T) {
	fs := fsx.NewMem("/repo")
	writeFile(t, fs, "/repo/src/main.ts", "import { missing } from './missing'")

	r := New("/repo", fs, nil, Options{}, nil)
	result := r.Resolve("/repo/src/main.ts", "./missing")

	if result.Resolved() {
		t.Fatalf("expected unresolved, got %+v", result)
	}
	if len(result.Attempts) == 0 {
		t.Error("expected at least one recorded attempt")
	}
}

func TestResolveCachesByContextAndSpecifier(t *testing.T) {
	fs := fsx.NewMem("/repo")
	writeFile(t, fs, "/repo/src/a.ts", "export const a = 1")
	writeFile(t, fs, "/repo/src/b.ts", "import { a } from './a'")

	r := New("/repo", fs, nil, Options{}, nil)
	first := r.Resolve("/repo/src/b.ts", "./a")
	second := r.Resolve("/repo/src/b.ts", "./a")

	if first.ResolvedPath != second.ResolvedPath {
		t.Errorf("cached result mismatch: %+v vs %+v", first, second)
	}
}

func TestResolveBundlerOptIn(t *testing.T) {
	fs := fsx.NewMem("/repo")
	writeFile(t, fs, "/repo/packages/core/index.ts", "export const core = 1")
	writeFile(t, fs, "/repo/src/main.ts", "import { core } from 'core'")

	r := New("/repo", fs, nil, Options{EnableBundler: true, BundlerBases: []string{"/repo/packages"}}, nil)
	result := r.Resolve("/repo/src/main.ts", "core")

	if !result.Resolved() {
		t.Fatalf("expected resolved via bundler strategy, got %+v", result)
	}
	if result.Strategy != types.StrategyBundler {
		t.Errorf("Strategy = %q, want bundler", result.Strategy)
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultThenLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Index.WatchDebounceMs != 500 {
		t.Errorf("expected default debounce 500, got %d", cfg.Index.WatchDebounceMs)
	}
}

func TestLoadKDLOverrides(t *testing.T) {
	dir := t.TempDir()
	doc := `
project {
	name "demo"
}
index {
	watch_debounce_ms 750
	respect_gitignore true
}
include "src/**"
exclude "**/*.generated.go"
`
	if err := os.WriteFile(filepath.Join(dir, ".codelens.kdl"), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Project.Name != "demo" {
		t.Errorf("Project.Name = %q, want demo", cfg.Project.Name)
	}
	if cfg.Index.WatchDebounceMs != 750 {
		t.Errorf("WatchDebounceMs = %d, want 750", cfg.Index.WatchDebounceMs)
	}
	if len(cfg.Include) != 1 || cfg.Include[0] != "src/**" {
		t.Errorf("Include = %v", cfg.Include)
	}
	if len(cfg.Exclude) != 1 {
		t.Errorf("Exclude = %v", cfg.Exclude)
	}
}

func TestIgnoreSetBakedIn(t *testing.T) {
	dir := t.TempDir()
	cfg := Default(dir)
	is := NewIgnoreSet(dir, cfg)

	if !is.Excluded("node_modules/leftpad/index.js") {
		t.Error("expected node_modules to be excluded")
	}
	if is.Excluded("src/index.ts") {
		t.Error("did not expect src/index.ts to be excluded")
	}
}

func TestIgnoreSetGitignore(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("*.log\nbuild/\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := Default(dir)
	is := NewIgnoreSet(dir, cfg)

	if !is.Excluded("debug.log") {
		t.Error("expected *.log to be excluded")
	}
	if !is.Excluded("build/out.js") {
		t.Error("expected build/ to be excluded")
	}
}

func TestLoadAliasesTsconfig(t *testing.T) {
	dir := t.TempDir()
	doc := `{
  "compilerOptions": {
    "baseUrl": ".",
    "paths": {
      "@/*": ["src/*"]
    }
  }
}`
	if err := os.WriteFile(filepath.Join(dir, "tsconfig.json"), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	aliases := LoadAliases(dir)
	if len(aliases) != 1 {
		t.Fatalf("expected 1 alias, got %d", len(aliases))
	}
	targets, ok := aliases[0].Match("@/util")
	if !ok || len(targets) != 1 || targets[0] != "src/util" {
		t.Errorf("Match(@/util) = %v, %v", targets, ok)
	}
}

func TestDetectWorkspaceCargo(t *testing.T) {
	dir := t.TempDir()
	doc := "[workspace]\nmembers = [\"crates/*\"]\n"
	if err := os.WriteFile(filepath.Join(dir, "Cargo.toml"), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	info := DetectWorkspace(dir)
	if !info.IsMonorepo {
		t.Error("expected IsMonorepo true")
	}
	found := false
	for _, g := range info.MemberGlobs {
		if g == "crates/*" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected crates/* in member globs, got %v", info.MemberGlobs)
	}
}

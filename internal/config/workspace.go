package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	toml "github.com/pelletier/go-toml/v2"
)

// AliasMapping is one compiled path-mapping entry discovered from
// tsconfig.json/jsconfig.json "paths", e.g. "@/*" -> ["src/*"].
type AliasMapping struct {
	Pattern string   // the raw key, e.g. "@/*"
	Targets []string // raw target templates, e.g. "src/*"
}

// Match reports whether specifier matches the alias pattern and, if so,
// returns the candidate relative targets with the wildcard substituted.
func (a AliasMapping) Match(specifier string) ([]string, bool) {
	prefix, hasStar := strings.CutSuffix(a.Pattern, "*")
	if !hasStar {
		if specifier != a.Pattern {
			return nil, false
		}
		return append([]string{}, a.Targets...), true
	}
	if !strings.HasPrefix(specifier, prefix) {
		return nil, false
	}
	rest := specifier[len(prefix):]
	out := make([]string, 0, len(a.Targets))
	for _, t := range a.Targets {
		out = append(out, strings.Replace(t, "*", rest, 1))
	}
	return out, true
}

type tsconfigFile struct {
	CompilerOptions struct {
		BaseURL string              `json:"baseUrl"`
		Paths   map[string][]string `json:"paths"`
	} `json:"compilerOptions"`
}

// LoadAliases reads tsconfig.json then jsconfig.json at root (first hit
// wins) and compiles their "paths" table into AliasMapping entries,
// resolved against baseUrl (default ".").
func LoadAliases(root string) []AliasMapping {
	for _, name := range []string{"tsconfig.json", "jsconfig.json"} {
		data, err := os.ReadFile(filepath.Join(root, name))
		if err != nil {
			continue
		}
		var tc tsconfigFile
		if err := json.Unmarshal(stripJSONComments(data), &tc); err != nil {
			continue
		}
		baseURL := tc.CompilerOptions.BaseURL
		if baseURL == "" {
			baseURL = "."
		}
		mappings := make([]AliasMapping, 0, len(tc.CompilerOptions.Paths))
		for pattern, targets := range tc.CompilerOptions.Paths {
			resolved := make([]string, 0, len(targets))
			for _, t := range targets {
				resolved = append(resolved, filepath.ToSlash(filepath.Join(baseURL, t)))
			}
			mappings = append(mappings, AliasMapping{Pattern: pattern, Targets: resolved})
		}
		return mappings
	}
	return nil
}

// stripJSONComments removes "//" line comments, a tolerance tsconfig.json
// files commonly rely on and encoding/json does not support natively.
func stripJSONComments(data []byte) []byte {
	lines := strings.Split(string(data), "\n")
	for i, line := range lines {
		if idx := strings.Index(line, "//"); idx >= 0 {
			lines[i] = line[:idx]
		}
	}
	return []byte(strings.Join(lines, "\n"))
}

type packageJSONWorkspaces struct {
	Workspaces json.RawMessage `json:"workspaces"`
}

type cargoWorkspace struct {
	Workspace struct {
		Members []string `toml:"members"`
	} `toml:"workspace"`
}

// defaultWorkspaceGlobs is the set of common monorepo layout globs the
// Module Resolver's alias ladder and the Dependency Graph's isMonorepo
// heuristic both consult.
var defaultWorkspaceGlobs = []string{"packages/*", "apps/*", "libs/*", "services/*"}

// WorkspaceInfo captures the workspace member globs discovered at root
// plus whether any workspace marker was found at all.
type WorkspaceInfo struct {
	MemberGlobs []string
	IsMonorepo  bool
}

// DetectWorkspace inspects package.json "workspaces", a Cargo.toml
// "[workspace] members" table, a go.work file, and the default
// packages/apps/libs/services layout to build the workspace member glob
// list used for alias resolution and the isMonorepo heuristic.
func DetectWorkspace(root string) WorkspaceInfo {
	var globs []string
	found := false

	if data, err := os.ReadFile(filepath.Join(root, "package.json")); err == nil {
		var pj packageJSONWorkspaces
		if json.Unmarshal(data, &pj) == nil && len(pj.Workspaces) > 0 {
			var list []string
			if json.Unmarshal(pj.Workspaces, &list) == nil {
				globs = append(globs, list...)
				found = len(list) > 0
			} else {
				var nested struct {
					Packages []string `json:"packages"`
				}
				if json.Unmarshal(pj.Workspaces, &nested) == nil && len(nested.Packages) > 0 {
					globs = append(globs, nested.Packages...)
					found = true
				}
			}
		}
	}

	if data, err := os.ReadFile(filepath.Join(root, "Cargo.toml")); err == nil {
		var cw cargoWorkspace
		if toml.Unmarshal(data, &cw) == nil && len(cw.Workspace.Members) > 0 {
			globs = append(globs, cw.Workspace.Members...)
			found = true
		}
	}

	if _, err := os.Stat(filepath.Join(root, "go.work")); err == nil {
		found = true
	}

	for _, g := range defaultWorkspaceGlobs {
		if dirGlobHasMatch(root, g) {
			globs = append(globs, g)
			found = true
		}
	}

	return WorkspaceInfo{MemberGlobs: dedupe(globs), IsMonorepo: found}
}

func dirGlobHasMatch(root, glob string) bool {
	matches, err := doublestar.Glob(os.DirFS(root), glob)
	return err == nil && len(matches) > 0
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

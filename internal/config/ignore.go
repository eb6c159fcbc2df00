package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// bakedInIgnores is the fixed set of directories the Symbol Index never
// scans.
var bakedInIgnores = []string{".git", "node_modules", ".mcp", "dist", "coverage", ".DS_Store"}

// IgnoreSet compiles the baked-in directory set, the project's
// .gitignore (when Index.RespectGitignore is set), and any user
// Include/Exclude globs from Config into a single match function, using
// doublestar for the glob semantics.
type IgnoreSet struct {
	excludeGlobs []string
	includeGlobs []string
}

// NewIgnoreSet builds an IgnoreSet for root using cfg.
func NewIgnoreSet(root string, cfg *Config) *IgnoreSet {
	is := &IgnoreSet{
		includeGlobs: append([]string{}, cfg.Include...),
	}
	is.excludeGlobs = append(is.excludeGlobs, bakedInIgnores...)
	is.excludeGlobs = append(is.excludeGlobs, cfg.Exclude...)

	if cfg.Index.RespectGitignore {
		is.excludeGlobs = append(is.excludeGlobs, readGitignore(root)...)
	}
	return is
}

// readGitignore loads "<root>/.gitignore" line by line, skipping blanks
// and comments. A trailing "/" (a directory entry such as "build/") is
// dropped so the name matches as a path segment at any depth. A missing
// file yields no patterns.
func readGitignore(root string) []string {
	f, err := os.Open(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSuffix(line, "/")
		if line == "" {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns
}

// Excluded reports whether relPath (forward-slash, relative to root)
// should be skipped during a scan. Include globs, when present, act as
// an allowlist: a path must match at least one to be kept, in addition
// to not matching any exclude pattern.
func (is *IgnoreSet) Excluded(relPath string) bool {
	for _, pat := range is.excludeGlobs {
		if matchesAnySegment(pat, relPath) {
			return true
		}
	}
	if len(is.includeGlobs) == 0 {
		return false
	}
	for _, pat := range is.includeGlobs {
		if ok, _ := doublestar.Match(pat, relPath); ok {
			return false
		}
	}
	return true
}

// matchesAnySegment matches pat either against the whole relative path
// or against any path segment, so a bare directory name like
// "node_modules" excludes it at any depth the way a real .gitignore
// entry would.
func matchesAnySegment(pat, relPath string) bool {
	if ok, _ := doublestar.Match(pat, relPath); ok {
		return true
	}
	if !strings.ContainsAny(pat, "/*?[") {
		for _, seg := range strings.Split(relPath, "/") {
			if seg == pat {
				return true
			}
		}
	}
	if ok, _ := doublestar.Match("**/"+pat, relPath); ok {
		return true
	}
	if ok, _ := doublestar.Match("**/"+pat+"/**", relPath); ok {
		return true
	}
	return false
}

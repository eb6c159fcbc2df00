// Package resolver resolves an import specifier in the context of a
// source file through a fixed strategy ladder — relative, absolute,
// alias, node, bundler (opt-in) — parameterized by a LanguageProfile
// rather than one resolver struct per language.
package resolver

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/codelens-dev/codelens/internal/config"
	"github.com/codelens-dev/codelens/internal/fsx"
	"github.com/codelens-dev/codelens/internal/logging"
	"github.com/codelens-dev/codelens/internal/types"
	"github.com/codelens-dev/codelens/pkg/pathutil"
)

// LanguageProfile parameterizes the ladder per source language: the
// extension priority list tried for an extension-less candidate (typed
// source first, then runtime source, then data) and the set of
// known-builtin specifiers treated as core=true.
type LanguageProfile struct {
	Name       string
	Extensions []string // priority order, e.g. [".ts", ".tsx", ".d.ts", ".js", ".jsx", ".json"]
	Builtins   map[string]bool
}

// DefaultJSProfile is the standard extension ladder: typed-source
// first, then runtime-source, then .json.
var DefaultJSProfile = LanguageProfile{
	Name:       "javascript",
	Extensions: []string{".ts", ".tsx", ".d.ts", ".js", ".jsx", ".json"},
	Builtins: map[string]bool{
		"fs": true, "path": true, "os": true, "http": true, "https": true,
		"crypto": true, "util": true, "events": true, "stream": true,
		"assert": true, "url": true, "child_process": true, "buffer": true,
	},
}

// Options configures a Resolver beyond its required root/aliases.
type Options struct {
	Profile       LanguageProfile
	EnableBundler bool
	BundlerBases  []string // additional roots (e.g. monorepo package dirs) tried bare-specifier-joined
}

// Resolver resolves import specifiers against one repository root.
type Resolver struct {
	root    string
	fs      *fsx.FS
	aliases []config.AliasMapping
	opts    Options
	log     logging.Logger

	mu          sync.Mutex
	resultCache map[cacheKey]types.ResolutionResult
	existsCache map[string]existsEntry
}

type cacheKey struct {
	context   string
	specifier string
}

type existsEntry struct {
	exists bool
	isDir  bool
}

// New builds a Resolver rooted at root.
func New(root string, fs *fsx.FS, aliases []config.AliasMapping, opts Options, log logging.Logger) *Resolver {
	if opts.Profile.Extensions == nil {
		opts.Profile = DefaultJSProfile
	}
	if log == nil {
		log = logging.Nop
	}
	return &Resolver{
		root:        filepath.Clean(root),
		fs:          fs,
		aliases:     aliases,
		opts:        opts,
		log:         log,
		resultCache: make(map[cacheKey]types.ResolutionResult),
		existsCache: make(map[string]existsEntry),
	}
}

// Resolve runs the full strategy ladder for specifier imported from
// contextFile (an absolute or root-relative path). Results are cached by
// (context, specifier).
func (r *Resolver) Resolve(contextFile, specifier string) types.ResolutionResult {
	key := cacheKey{context: contextFile, specifier: specifier}

	r.mu.Lock()
	if cached, ok := r.resultCache[key]; ok {
		r.mu.Unlock()
		return cached
	}
	r.mu.Unlock()

	result := r.resolveUncached(contextFile, specifier)

	r.mu.Lock()
	r.resultCache[key] = result
	r.mu.Unlock()

	return result
}

func (r *Resolver) resolveUncached(contextFile, specifier string) types.ResolutionResult {
	var attempts []types.ResolutionAttempt

	fromDir := filepath.Dir(pathutil.ToAbsolute(contextFile, r.root))

	switch {
	case strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../"):
		return r.finish(r.resolveRelative(specifier, fromDir, &attempts), types.StrategyRelative, attempts)

	case filepath.IsAbs(specifier):
		return r.finish(r.resolveAbsoluteSpecifier(specifier, &attempts), types.StrategyAbsolute, attempts)

	default:
		if r.opts.Profile.Builtins[specifier] || isBuiltinLikeSpecifier(specifier) {
			return types.ResolutionResult{Strategy: types.StrategyNode, Core: true}
		}

		if path, ok := r.resolveAlias(specifier, &attempts); ok {
			return r.finish(path, types.StrategyAlias, attempts)
		}

		if path, ok := r.resolveNode(specifier, fromDir, &attempts); ok {
			return r.finish(path, types.StrategyNode, attempts)
		}

		if r.opts.EnableBundler {
			if path, ok := r.resolveBundler(specifier, &attempts); ok {
				return r.finish(path, types.StrategyBundler, attempts)
			}
		}

		return types.ResolutionResult{
			Strategy: types.StrategyUnresolved,
			External: true,
			Error:    "specifier not found on any resolution strategy",
			Attempts: attempts,
		}
	}
}

func (r *Resolver) finish(path string, strategy types.ResolutionStrategy, attempts []types.ResolutionAttempt) types.ResolutionResult {
	if path == "" {
		return types.ResolutionResult{Strategy: types.StrategyUnresolved, Error: "not found", Attempts: attempts}
	}
	rel := pathutil.ToRelative(path, r.root)
	return types.ResolutionResult{
		ResolvedPath: rel,
		Strategy:     strategy,
		Attempts:     attempts,
		// node_modules hits are installed packages, not repo files; the
		// dependency graph ignores them the same way it ignores builtins.
		External: strings.Contains(rel, "node_modules/"),
	}
}

// resolveRelative resolves "./x" / "../x" against the importing file's
// directory.
func (r *Resolver) resolveRelative(specifier, fromDir string, attempts *[]types.ResolutionAttempt) string {
	target := filepath.Join(fromDir, specifier)
	return r.resolveCandidate(target, attempts)
}

// resolveAbsoluteSpecifier resolves an already-absolute specifier as a
// filesystem path directly.
func (r *Resolver) resolveAbsoluteSpecifier(specifier string, attempts *[]types.ResolutionAttempt) string {
	return r.resolveCandidate(specifier, attempts)
}

// resolveAlias tries every compiled AliasMapping in order.
func (r *Resolver) resolveAlias(specifier string, attempts *[]types.ResolutionAttempt) (string, bool) {
	for _, alias := range r.aliases {
		targets, ok := alias.Match(specifier)
		if !ok {
			continue
		}
		for _, t := range targets {
			abs := filepath.Join(r.root, t)
			if resolved := r.resolveCandidate(abs, attempts); resolved != "" {
				return resolved, true
			}
		}
	}
	return "", false
}

// resolveNode performs the two-stage (file-dir, then root) node-style
// resolution before falling back to package lookup.
func (r *Resolver) resolveNode(specifier, fromDir string, attempts *[]types.ResolutionAttempt) (string, bool) {
	if resolved := r.resolveCandidate(filepath.Join(fromDir, specifier), attempts); resolved != "" {
		return resolved, true
	}
	if resolved := r.resolveCandidate(filepath.Join(r.root, specifier), attempts); resolved != "" {
		return resolved, true
	}
	if resolved := r.resolvePackage(specifier, fromDir, attempts); resolved != "" {
		return resolved, true
	}
	return "", false
}

// resolveBundler is opt-in: join the bare specifier against root and
// each alias base and resolve as a plain file/directory, skipping
// node_modules package resolution entirely.
func (r *Resolver) resolveBundler(specifier string, attempts *[]types.ResolutionAttempt) (string, bool) {
	bases := append([]string{r.root}, r.opts.BundlerBases...)
	for _, base := range bases {
		if resolved := r.resolveCandidate(filepath.Join(base, specifier), attempts); resolved != "" {
			return resolved, true
		}
	}
	return "", false
}

// resolveCandidate tries a path as-is, then with each profile extension,
// then as a directory with an index file.
func (r *Resolver) resolveCandidate(basePath string, attempts *[]types.ResolutionAttempt) string {
	basePath = filepath.Clean(basePath)

	if entry := r.statCached(basePath); entry.exists && !entry.isDir {
		return basePath
	}
	*attempts = append(*attempts, types.ResolutionAttempt{Path: basePath, Reason: "not a file"})

	for _, ext := range r.opts.Profile.Extensions {
		candidate := basePath + ext
		if entry := r.statCached(candidate); entry.exists && !entry.isDir {
			return candidate
		}
		*attempts = append(*attempts, types.ResolutionAttempt{Path: candidate, Reason: "no such file"})
	}

	if entry := r.statCached(basePath); entry.exists && entry.isDir {
		for _, ext := range r.opts.Profile.Extensions {
			indexPath := filepath.Join(basePath, "index"+ext)
			if e := r.statCached(indexPath); e.exists && !e.isDir {
				return indexPath
			}
			*attempts = append(*attempts, types.ResolutionAttempt{Path: indexPath, Reason: "no index file"})
		}
	}

	return ""
}

// resolvePackage resolves a bare package specifier via the nearest
// node_modules directory. The dependency graph ignores these externals;
// finish marks them by their node_modules path.
func (r *Resolver) resolvePackage(specifier, fromDir string, attempts *[]types.ResolutionAttempt) string {
	nodeModules := r.findNodeModules(fromDir)
	if nodeModules == "" {
		return ""
	}

	var packageDir string
	if strings.HasPrefix(specifier, "@") {
		parts := strings.SplitN(specifier, "/", 3)
		if len(parts) >= 2 {
			packageDir = filepath.Join(nodeModules, parts[0], parts[1])
		}
	} else {
		parts := strings.SplitN(specifier, "/", 2)
		packageDir = filepath.Join(nodeModules, parts[0])
	}
	if packageDir == "" {
		return ""
	}

	entry := r.statCached(packageDir)
	if !entry.exists {
		*attempts = append(*attempts, types.ResolutionAttempt{Path: packageDir, Reason: "package not installed"})
		return ""
	}

	return r.resolveCandidate(packageDir, attempts)
}

// findNodeModules walks upward from dir looking for a node_modules
// sibling, stopping at root.
func (r *Resolver) findNodeModules(dir string) string {
	for {
		candidate := filepath.Join(dir, "node_modules")
		if entry := r.statCached(candidate); entry.exists && entry.isDir {
			return candidate
		}
		if dir == r.root || dir == filepath.Dir(dir) {
			return ""
		}
		dir = filepath.Dir(dir)
	}
}

func (r *Resolver) statCached(path string) existsEntry {
	r.mu.Lock()
	if e, ok := r.existsCache[path]; ok {
		r.mu.Unlock()
		return e
	}
	r.mu.Unlock()

	var entry existsEntry
	if st, err := r.fs.StatPath(path); err == nil {
		entry = existsEntry{exists: true, isDir: st.IsDirectory()}
	}

	r.mu.Lock()
	r.existsCache[path] = entry
	r.mu.Unlock()
	return entry
}

// isBuiltinLikeSpecifier recognizes the "node:" protocol prefix used by
// modern builtin imports regardless of whether the name is in the
// Builtins table.
func isBuiltinLikeSpecifier(specifier string) bool {
	return strings.HasPrefix(specifier, "node:")
}

// Package engine wires the index components into the three capabilities
// the library exposes: locate (hybrid search), relate (dependency and
// call graphs), and mutate (anchor-based edits). It owns the baseline
// scan and routes file events into invalidation.
package engine

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/codelens-dev/codelens/internal/callgraph"
	"github.com/codelens-dev/codelens/internal/config"
	"github.com/codelens-dev/codelens/internal/depgraph"
	"github.com/codelens-dev/codelens/internal/editor"
	"github.com/codelens-dev/codelens/internal/fsx"
	"github.com/codelens-dev/codelens/internal/logging"
	"github.com/codelens-dev/codelens/internal/parsing"
	"github.com/codelens-dev/codelens/internal/resolver"
	"github.com/codelens-dev/codelens/internal/search"
	"github.com/codelens-dev/codelens/internal/skeleton"
	"github.com/codelens-dev/codelens/internal/store"
	"github.com/codelens-dev/codelens/internal/symbolindex"
	"github.com/codelens-dev/codelens/internal/trigram"
	"github.com/codelens-dev/codelens/internal/types"
	"github.com/codelens-dev/codelens/internal/watcher"
	"github.com/codelens-dev/codelens/pkg/pathutil"
)

// Engine is the index coordinator.
type Engine struct {
	root   string
	cfg    *config.Config
	fs     *fsx.FS
	log    logging.Logger
	ignore *config.IgnoreSet

	store    *store.Store
	parser   *parsing.Parser
	skeleton *skeleton.Extractor
	resolver *resolver.Resolver
	symbols  *symbolindex.Index
	deps     *depgraph.Graph
	calls    *callgraph.Builder
	trigrams *trigram.Index
	search   *search.Engine
	editor   *editor.Engine
	watcher  *watcher.Watcher
}

// Options overrides engine construction defaults.
type Options struct {
	// DBPath overrides the index database location; default
	// <root>/.mcp/index.db.
	DBPath string
	// FS overrides the filesystem collaborator (tests inject a memory
	// filesystem).
	FS *fsx.FS
	// DisableWatcher skips starting the fsnotify feed even when the
	// config enables it.
	DisableWatcher bool
}

// New opens (or creates) the index for root and wires every component.
func New(root string, cfg *config.Config, opts Options, log logging.Logger) (*Engine, error) {
	if log == nil {
		log = logging.Nop
	}
	if cfg == nil {
		var err error
		cfg, err = config.Load(root)
		if err != nil {
			return nil, err
		}
	}

	fs := opts.FS
	if fs == nil {
		fs = fsx.NewOS(root)
	}

	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = pathutil.ToAbsolute(".mcp/index.db", root)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		root:   root,
		cfg:    cfg,
		fs:     fs,
		log:    log,
		ignore: config.NewIgnoreSet(root, cfg),
		store:  st,
	}

	e.parser = parsing.New(log)
	e.skeleton = skeleton.New(e.parser, log)

	aliases := config.LoadAliases(root)
	workspace := config.DetectWorkspace(root)
	e.resolver = resolver.New(root, fs, aliases, resolver.Options{
		EnableBundler: cfg.FeatureFlags.EnableBundlerResolution,
	}, log)

	e.trigrams = trigram.New(st, trigram.Options{
		MaxFileBytes: int(cfg.Index.MaxFileSizeBytes),
	}, log)
	if err := e.trigrams.Load(); err != nil {
		st.Close()
		return nil, err
	}

	e.deps = depgraph.New(root, st, e.resolver, workspace, log)
	e.symbols = symbolindex.New(root, fs, st, e.skeleton, symbolindex.Options{
		DebounceMs: cfg.Performance.DebounceMs,
		OnReindex:  e.onReindex,
	}, log)
	e.calls = callgraph.New(root, e.symbols, e.resolver, log)
	e.search = search.New(root, fs, st, e.trigrams, e.symbols, e.deps, cfg.Performance, cfg.Search, log)
	e.editor = editor.New(root, fs, e, log)

	if cfg.Index.WatchMode && cfg.FeatureFlags.EnableWatcher && !opts.DisableWatcher {
		w, err := watcher.New(root, e.ignore, e, log)
		if err != nil {
			log.Warnf("engine: watcher unavailable: %v", err)
		} else {
			e.watcher = w
		}
	}

	return e, nil
}

// onReindex is the Symbol Index's post-persist hook: rebuild the file's
// dependency edges and trigram terms from the fresh symbols.
func (e *Engine) onReindex(relPath string, symbols []types.Symbol) {
	if err := e.deps.BuildFor(relPath, symbols); err != nil {
		e.log.Warnf("engine: dependency rebuild for %s: %v", relPath, err)
	}
	abs := pathutil.ToAbsolute(relPath, e.root)
	if content, err := e.fs.ReadFile(abs); err == nil {
		if err := e.trigrams.IndexFile(relPath, string(content)); err != nil {
			e.log.Warnf("engine: trigram reindex for %s: %v", relPath, err)
		}
	}
}

// FileModified routes a file event into the debounced re-index batch.
func (e *Engine) FileModified(relPath string) {
	e.symbols.MarkFileModified(relPath)
}

// FileDeleted drops a path from every index immediately.
func (e *Engine) FileDeleted(relPath string) {
	e.symbols.Invalidate(relPath)
	e.trigrams.RemoveFile(relPath)
	if err := e.deps.InvalidateFile(relPath); err != nil {
		e.log.Warnf("engine: invalidate %s: %v", relPath, err)
	}
}

// BaselineScan walks the repository and indexes every non-ignored file,
// parallelizing across a bounded worker pool. Files the parser does not
// support still land in the trigram index so content search covers them.
func (e *Engine) BaselineScan(ctx context.Context) error {
	files, err := e.fs.ListFiles(e.root, func(path string, isDir bool) bool {
		rel := pathutil.ToRelative(path, e.root)
		if rel == "." || rel == "" {
			return false
		}
		return e.ignore.Excluded(rel)
	})
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for _, abs := range files {
		abs := abs
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rel := pathutil.ToRelative(abs, e.root)
			if _, err := e.symbols.SymbolsForFile(rel); err != nil {
				e.log.Warnf("engine: scan %s: %v", rel, err)
				return nil
			}
			// SymbolsForFile only fires onReindex when the file was
			// (re)parsed; make sure the trigram index covers unchanged
			// and unsupported files too.
			if content, err := e.fs.ReadFile(abs); err == nil {
				if err := e.trigrams.IndexFile(rel, string(content)); err != nil {
					e.log.Warnf("engine: trigram %s: %v", rel, err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	e.log.Infof("engine: baseline scan indexed %d files", len(files))
	return nil
}

// Search runs a hybrid ranked search.
func (e *Engine) Search(ctx context.Context, query string, opts search.Options) (*search.Response, error) {
	return e.search.Search(ctx, query, opts)
}

// SearchSymbols searches the symbol index by name (exact then fuzzy).
func (e *Engine) SearchSymbols(query string) ([]symbolindex.SearchHit, error) {
	return e.symbols.Search(query)
}

// Dependencies returns the edges touching path.
func (e *Engine) Dependencies(path string, dir types.Direction) ([]types.DependencyEdge, error) {
	return e.deps.Dependencies(path, dir)
}

// TransitiveDependencies returns the depth-bounded reachable set.
func (e *Engine) TransitiveDependencies(path string, dir types.Direction, maxDepth int) ([]string, error) {
	return e.deps.TransitiveDependencies(path, dir, maxDepth)
}

// Importers returns every file importing path.
func (e *Engine) Importers(path string) ([]types.DependencyEdge, error) {
	return e.deps.Importers(path)
}

// AnalyzeSymbol expands the call graph around a symbol.
func (e *Engine) AnalyzeSymbol(symbolName, filePath string, dir types.Direction, maxDepth int) (*callgraph.Result, error) {
	return e.calls.Analyze(symbolName, filePath, dir, maxDepth)
}

// Status reports the dependency index health.
func (e *Engine) Status() (types.IndexStatus, error) {
	return e.deps.Status()
}

// RebuildUnresolved retries resolution for every file with unresolved
// imports.
func (e *Engine) RebuildUnresolved() error {
	return e.deps.RebuildUnresolved(e.symbols)
}

// ApplyEdits applies anchor-based edits to one file.
func (e *Engine) ApplyEdits(path string, edits []types.Edit, opts editor.ApplyOptions) types.EditResult {
	return e.editor.ApplyEdits(path, edits, opts)
}

// Undo reverses a previously applied operation.
func (e *Engine) Undo(operationID string) types.EditResult {
	return e.editor.Undo(operationID)
}

// DeleteFile removes a file with destructive-delete protection.
func (e *Engine) DeleteFile(path string, confirmation *types.ExpectedHash, strict bool) types.EditResult {
	return e.editor.Delete(path, confirmation, strict)
}

// Flush drains any pending debounced re-index work.
func (e *Engine) Flush() {
	e.symbols.Flush()
}

// Close stops the watcher, drains pending work, and releases the store.
func (e *Engine) Close() error {
	if e.watcher != nil {
		e.watcher.Close()
	}
	e.symbols.Close()
	e.parser.Close()
	return e.store.Close()
}

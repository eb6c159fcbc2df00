// Package symbolindex maps relative paths to symbol lists across two
// storage tiers: a hot in-memory LRU (at most 50 entries) and the cold
// persistent store, both gated by file mtime. It owns the debounced
// re-index batch that file events feed.
package symbolindex

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hbollon/go-edlib"

	"github.com/codelens-dev/codelens/internal/fsx"
	"github.com/codelens-dev/codelens/internal/logging"
	"github.com/codelens-dev/codelens/internal/skeleton"
	"github.com/codelens-dev/codelens/internal/store"
	"github.com/codelens-dev/codelens/internal/types"
	"github.com/codelens-dev/codelens/pkg/pathutil"
)

const (
	hotCacheSize      = 50
	searchResultLimit = 100
	fuzzyMaxDistance  = 2
)

// cached is the hot-tier value: the symbols parsed at a given mtime.
type cached struct {
	mtime   int64
	symbols []types.Symbol
}

// SearchHit is one (file, symbol) pair returned by Search, with the fuzzy
// score when the fuzzy fallback produced it.
type SearchHit struct {
	FilePath string
	Symbol   types.Symbol
	Score    float64
}

// Index is the Symbol Index component.
type Index struct {
	root      string
	fs        *fsx.FS
	store     *store.Store
	extractor *skeleton.Extractor
	log       logging.Logger

	hot *lruCache[cached]

	// onReindex fires after a file's symbols are re-persisted, letting the
	// engine rebuild that file's dependency edges and trigram terms
	// without this package importing either component.
	onReindex func(relPath string, symbols []types.Symbol)

	debounce time.Duration
	mu       sync.Mutex
	pending  map[string]bool
	timer    *time.Timer
	drainWG  sync.WaitGroup
	closed   bool
}

// Options configures an Index beyond its required collaborators.
type Options struct {
	DebounceMs int
	OnReindex  func(relPath string, symbols []types.Symbol)
}

// New builds an Index over the given store and extractor.
func New(root string, fs *fsx.FS, st *store.Store, extractor *skeleton.Extractor, opts Options, log logging.Logger) *Index {
	if log == nil {
		log = logging.Nop
	}
	debounceMs := opts.DebounceMs
	if debounceMs <= 0 {
		debounceMs = 500
	}
	idx := &Index{
		root:      root,
		fs:        fs,
		store:     st,
		extractor: extractor,
		log:       log,
		onReindex: opts.OnReindex,
		debounce:  time.Duration(debounceMs) * time.Millisecond,
		pending:   make(map[string]bool),
	}
	idx.hot = newLRUCache[cached](hotCacheSize, func(key string, _ cached) {
		log.Debugf("symbolindex: evicted %s from hot cache", key)
	})
	return idx
}

// SymbolsForFile returns the symbol list for path (absolute or relative),
// reparsing only when the file's mtime differs from the stored value. A
// missing file drops the row and returns empty; an unsupported extension
// persists an empty list at the current mtime.
func (idx *Index) SymbolsForFile(path string) ([]types.Symbol, error) {
	rel := pathutil.ToRelative(path, idx.root)
	abs := pathutil.ToAbsolute(rel, idx.root)

	st, err := idx.fs.StatPath(abs)
	if err != nil {
		idx.drop(rel)
		return nil, nil
	}
	mtime := st.MTimeMs()

	if entry, ok := idx.hot.get(rel); ok && entry.mtime == mtime {
		return entry.symbols, nil
	}

	if stored, ok, err := idx.store.FileMTime(rel); err != nil {
		return nil, err
	} else if ok && stored == mtime {
		symbols, err := idx.store.SymbolsForFile(rel)
		if err != nil {
			return nil, err
		}
		idx.hot.set(rel, cached{mtime: mtime, symbols: symbols})
		return symbols, nil
	}

	return idx.reindex(rel, abs, mtime)
}

// reindex parses and persists one file, degrading parse failures to an
// empty symbol list so a single bad file cannot poison indexing.
func (idx *Index) reindex(rel, abs string, mtime int64) ([]types.Symbol, error) {
	content, err := idx.fs.ReadFile(abs)
	if err != nil {
		idx.drop(rel)
		return nil, nil
	}

	symbols, err := idx.extractor.Extract(rel, content)
	if err != nil {
		idx.log.Warnf("symbolindex: parse failed for %s, indexing empty: %v", rel, err)
		symbols = nil
	}
	for i := range symbols {
		symbols[i].FilePath = rel
	}

	language := idx.extractor.Language(rel)
	if err := idx.store.ReplaceSymbols(rel, language, mtime, symbols); err != nil {
		return nil, err
	}
	idx.hot.set(rel, cached{mtime: mtime, symbols: symbols})

	if idx.onReindex != nil {
		idx.onReindex(rel, symbols)
	}
	return symbols, nil
}

// drop removes a path from both tiers.
func (idx *Index) drop(rel string) {
	idx.hot.remove(rel)
	if err := idx.store.DeleteFile(rel); err != nil {
		idx.log.Warnf("symbolindex: drop %s: %v", rel, err)
	}
}

// Invalidate drops path from the hot tier without reparsing; the
// persisted row in the store is left as it is.
func (idx *Index) Invalidate(path string) {
	rel := pathutil.ToRelative(path, idx.root)
	idx.hot.remove(rel)
}

// AllSymbols streams every symbol in the cold store.
func (idx *Index) AllSymbols() ([]types.Symbol, error) {
	return idx.store.AllSymbols("")
}

// Search finds symbols by name: exact substring (case-insensitive, SQL
// LIKE) first, falling back to fuzzy matching when the exact pass returns
// nothing. At most 100 hits.
func (idx *Index) Search(query string) ([]SearchHit, error) {
	if query == "" {
		return nil, nil
	}

	exact, err := idx.store.AllSymbols(query)
	if err != nil {
		return nil, err
	}
	if len(exact) > 0 {
		hits := make([]SearchHit, 0, len(exact))
		for _, sym := range exact {
			hits = append(hits, SearchHit{FilePath: sym.FilePath, Symbol: sym, Score: 1.0})
			if len(hits) >= searchResultLimit {
				break
			}
		}
		return hits, nil
	}

	return idx.fuzzySearch(query, fuzzyMaxDistance)
}

// fuzzySearch scans every symbol name with Levenshtein distance, scoring
// 1 - d/max(|q|,|n|) with a +0.2 prefix boost and +0.3 exact-match boost,
// capped at 1.0.
func (idx *Index) fuzzySearch(query string, maxDistance int) ([]SearchHit, error) {
	all, err := idx.store.AllSymbols("")
	if err != nil {
		return nil, err
	}

	lowerQuery := strings.ToLower(query)
	var hits []SearchHit
	for _, sym := range all {
		if sym.Name == "" {
			continue
		}
		name := strings.ToLower(sym.Name)
		distance := edlib.LevenshteinDistance(lowerQuery, name)
		if distance > maxDistance {
			continue
		}
		hits = append(hits, SearchHit{
			FilePath: sym.FilePath,
			Symbol:   sym,
			Score:    fuzzyScore(lowerQuery, name, distance),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > searchResultLimit {
		hits = hits[:searchResultLimit]
	}
	return hits, nil
}

func fuzzyScore(query, name string, distance int) float64 {
	longest := len(query)
	if len(name) > longest {
		longest = len(name)
	}
	score := 0.0
	if longest > 0 {
		score = 1.0 - float64(distance)/float64(longest)
	}
	if strings.HasPrefix(name, query) {
		score += 0.2
	}
	if name == query {
		score += 0.3
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// MarkFileModified buffers path into the pending set; the debounced timer
// re-indexes the whole batch at once. A write during a drain lands in the
// next batch.
func (idx *Index) MarkFileModified(path string) {
	rel := pathutil.ToRelative(path, idx.root)

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return
	}
	idx.pending[rel] = true
	if idx.timer != nil {
		idx.timer.Stop()
	}
	idx.timer = time.AfterFunc(idx.debounce, idx.drainPending)
}

// drainPending re-indexes every buffered path in one batch. Paths whose
// file no longer exists are dropped from both tiers.
func (idx *Index) drainPending() {
	idx.mu.Lock()
	batch := idx.pending
	idx.pending = make(map[string]bool)
	idx.drainWG.Add(1)
	idx.mu.Unlock()
	defer idx.drainWG.Done()

	if len(batch) == 0 {
		return
	}

	paths := make([]string, 0, len(batch))
	for p := range batch {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, rel := range paths {
		abs := pathutil.ToAbsolute(rel, idx.root)
		st, err := idx.fs.StatPath(abs)
		if err != nil {
			idx.drop(rel)
			continue
		}
		if _, err := idx.reindex(rel, abs, st.MTimeMs()); err != nil {
			idx.log.Warnf("symbolindex: batch reindex %s: %v", rel, err)
		}
	}
	idx.log.Debugf("symbolindex: drained %d modified files", len(paths))
}

// Flush forces a pending drain synchronously, primarily for tests and
// shutdown ordering.
func (idx *Index) Flush() {
	idx.mu.Lock()
	if idx.timer != nil {
		idx.timer.Stop()
		idx.timer = nil
	}
	idx.mu.Unlock()

	idx.drainPending()
	idx.drainWG.Wait()
}

// Close stops the debounce timer and drains any buffered batch.
func (idx *Index) Close() {
	idx.mu.Lock()
	idx.closed = true
	idx.mu.Unlock()
	idx.Flush()
}

// HotSize reports the hot-tier entry count (observability only).
func (idx *Index) HotSize() int {
	return idx.hot.size()
}

// Package trigram maintains the per-file trigram posting lists that gate
// search candidates: a file is a candidate only when its term set contains
// every trigram of the query. Posting lists persist per file in the store
// and rebuild idempotently at startup.
package trigram

import (
	"strings"
	"sync"

	"github.com/codelens-dev/codelens/internal/logging"
	"github.com/codelens-dev/codelens/internal/store"
)

const (
	// DefaultMaxFileBytes skips pathologically large files entirely.
	DefaultMaxFileBytes = 1 << 20
	// DefaultMaxTermsPerFile caps a single file's term set.
	DefaultMaxTermsPerFile = 200_000
	// DefaultMaxDocFreq drops trigrams present in more than this share of
	// files — they no longer discriminate.
	DefaultMaxDocFreq = 0.5
)

// Options bounds the index.
type Options struct {
	MaxFileBytes    int
	MaxTermsPerFile int
	MaxDocFreq      float64
}

func (o *Options) fill() {
	if o.MaxFileBytes <= 0 {
		o.MaxFileBytes = DefaultMaxFileBytes
	}
	if o.MaxTermsPerFile <= 0 {
		o.MaxTermsPerFile = DefaultMaxTermsPerFile
	}
	if o.MaxDocFreq <= 0 {
		o.MaxDocFreq = DefaultMaxDocFreq
	}
}

// Index is the in-memory posting-list index with store-backed
// persistence.
type Index struct {
	opts  Options
	store *store.Store
	log   logging.Logger

	mu       sync.RWMutex
	postings map[string]map[string]struct{} // trigram → file set
	perFile  map[string]fileEntry
}

type fileEntry struct {
	terms  map[string]struct{}
	docLen int
}

// New builds an empty Index; call Load to rehydrate persisted postings.
func New(st *store.Store, opts Options, log logging.Logger) *Index {
	opts.fill()
	if log == nil {
		log = logging.Nop
	}
	return &Index{
		opts:     opts,
		store:    st,
		log:      log,
		postings: make(map[string]map[string]struct{}),
		perFile:  make(map[string]fileEntry),
	}
}

// Load rebuilds the in-memory posting lists from the persisted rows.
// Rebuilding over existing state is idempotent.
func (ix *Index) Load() error {
	if ix.store == nil {
		return nil
	}
	rows, err := ix.store.AllTrigrams()
	if err != nil {
		return err
	}
	for _, row := range rows {
		ix.install(row.Path, row.Terms, row.DocLen)
	}
	ix.log.Debugf("trigram: loaded %d files", len(rows))
	return nil
}

// Extract returns the lowercase overlapping 3-gram set of content plus
// its term count.
func Extract(content string, maxTerms int) ([]string, int) {
	lowered := strings.ToLower(content)
	if len(lowered) < 3 {
		return nil, 0
	}
	seen := make(map[string]struct{}, len(lowered))
	terms := make([]string, 0, 256)
	for i := 0; i+3 <= len(lowered); i++ {
		t := lowered[i : i+3]
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		terms = append(terms, t)
		if maxTerms > 0 && len(terms) >= maxTerms {
			break
		}
	}
	return terms, len(lowered) - 2
}

// IndexFile replaces path's term set from content. Files above
// MaxFileBytes are indexed with an empty term set so stale postings clear.
func (ix *Index) IndexFile(path, content string) error {
	var terms []string
	docLen := 0
	if len(content) <= ix.opts.MaxFileBytes {
		terms, docLen = Extract(content, ix.opts.MaxTermsPerFile)
	}

	ix.install(path, terms, docLen)

	if ix.store != nil {
		return ix.store.ReplaceTrigrams(path, terms, docLen)
	}
	return nil
}

// install swaps path's term set in memory, updating postings both ways.
func (ix *Index) install(path string, terms []string, docLen int) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if old, ok := ix.perFile[path]; ok {
		for t := range old.terms {
			if set, ok := ix.postings[t]; ok {
				delete(set, path)
				if len(set) == 0 {
					delete(ix.postings, t)
				}
			}
		}
	}

	termSet := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		termSet[t] = struct{}{}
		set, ok := ix.postings[t]
		if !ok {
			set = make(map[string]struct{})
			ix.postings[t] = set
		}
		set[path] = struct{}{}
	}
	ix.perFile[path] = fileEntry{terms: termSet, docLen: docLen}
}

// RemoveFile drops path from the index; the persisted row cascades away
// with the file row.
func (ix *Index) RemoveFile(path string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	old, ok := ix.perFile[path]
	if !ok {
		return
	}
	for t := range old.terms {
		if set, ok := ix.postings[t]; ok {
			delete(set, path)
			if len(set) == 0 {
				delete(ix.postings, t)
			}
		}
	}
	delete(ix.perFile, path)
}

// Candidates returns the files whose term set contains every trigram of
// query. Trigrams above the document-frequency cap are skipped rather
// than intersected; a query with no usable trigram returns (nil, false)
// so callers fall back to a broader scan.
func (ix *Index) Candidates(query string) ([]string, bool) {
	terms, _ := Extract(query, 0)
	if len(terms) == 0 {
		return nil, false
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	fileCount := len(ix.perFile)
	maxDocs := int(ix.opts.MaxDocFreq * float64(fileCount))
	if maxDocs < 1 {
		maxDocs = 1
	}

	var sets []map[string]struct{}
	for _, t := range terms {
		set, ok := ix.postings[t]
		if !ok {
			// A required trigram missing everywhere means no file can
			// contain the whole query.
			return nil, true
		}
		if fileCount > 2 && len(set) > maxDocs {
			continue
		}
		sets = append(sets, set)
	}
	if len(sets) == 0 {
		return nil, false
	}

	// Intersect starting from the smallest posting list.
	smallest := 0
	for i, s := range sets {
		if len(s) < len(sets[smallest]) {
			smallest = i
		}
	}

	var out []string
	for path := range sets[smallest] {
		inAll := true
		for i, s := range sets {
			if i == smallest {
				continue
			}
			if _, ok := s[path]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			out = append(out, path)
		}
	}
	return out, true
}

// DocLen returns path's indexed term length (the BM25 length signal).
func (ix *Index) DocLen(path string) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.perFile[path].docLen
}

// AvgDocLen returns the mean document length across indexed files.
func (ix *Index) AvgDocLen() float64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if len(ix.perFile) == 0 {
		return 0
	}
	total := 0
	for _, e := range ix.perFile {
		total += e.docLen
	}
	return float64(total) / float64(len(ix.perFile))
}

// FileCount returns how many files are indexed.
func (ix *Index) FileCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.perFile)
}

// Files returns every indexed path (the bounded fallback scan source).
func (ix *Index) Files() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]string, 0, len(ix.perFile))
	for p := range ix.perFile {
		out = append(out, p)
	}
	return out
}

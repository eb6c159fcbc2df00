package search

import (
	"sort"
	"strings"

	"github.com/codelens-dev/codelens/internal/types"
)

// collectCandidates unions the four candidate sources — trigram hits,
// path keyword matches, symbol-name matches, and a bounded fallback scan
// when the union is too small — capped at maxCandidates.
func (e *Engine) collectCandidates(query string, keywords []string, maxCandidates int) ([]string, bool) {
	set := make(map[string]struct{})
	degraded := false

	if hits, usable := e.trigrams.Candidates(query); usable {
		for _, p := range hits {
			set[p] = struct{}{}
		}
	}

	allFiles := e.trigrams.Files()
	sort.Strings(allFiles)

	// Files whose basename, dirname, or whole path contains every keyword
	// (case-normalized: the path match ignores smart-case on purpose, a
	// filename hit for "Auth" should still find auth_handler.ts).
	for _, p := range allFiles {
		if pathMatchesAllKeywords(p, keywords) {
			set[p] = struct{}{}
		}
	}

	// Files holding any symbol whose name contains any keyword.
	for _, kw := range keywords {
		symbols, err := e.store.AllSymbols(kw)
		if err != nil {
			e.log.Warnf("search: symbol candidates for %q: %v", kw, err)
			continue
		}
		for _, sym := range symbols {
			if sym.FilePath != "" {
				set[sym.FilePath] = struct{}{}
			}
		}
	}

	// Bounded fallback scan when the union is too small to rank usefully.
	if len(set) < minCandidatesBeforeFallback {
		limit := maxCandidates
		for i, p := range allFiles {
			if i >= limit {
				break
			}
			set[p] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)

	if len(out) > maxCandidates {
		out = out[:maxCandidates]
		degraded = true
	}
	return out, degraded
}

const minCandidatesBeforeFallback = 10

func pathMatchesAllKeywords(path string, keywords []string) bool {
	if len(keywords) == 0 {
		return false
	}
	lowered := strings.ToLower(path)
	for _, kw := range keywords {
		if !strings.Contains(lowered, strings.ToLower(kw)) {
			return false
		}
	}
	return true
}

// symbolNamesFor returns the definition names indexed for path.
func (e *Engine) symbolNamesFor(path string) []string {
	symbols, err := e.symbols.SymbolsForFile(path)
	if err != nil {
		return nil
	}
	var names []string
	for _, sym := range symbols {
		if sym.Kind == types.SymbolKindDefinition && sym.Name != "" {
			names = append(names, sym.Name)
		}
	}
	return names
}

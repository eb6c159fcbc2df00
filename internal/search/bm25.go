package search

import (
	"math"
	"strings"
	"unicode"

	"github.com/surgebase/porter2"
)

// BM25 constants, the standard Robertson parameters.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// tokenize lowercases, splits on non-alphanumerics, and stems each token,
// so "authenticating" and "authentication" score against the same term.
func tokenize(text string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, porter2.Stem(strings.ToLower(cur.String())))
			cur.Reset()
		}
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

// termFreqs counts stemmed term occurrences.
func termFreqs(tokens []string) map[string]int {
	tf := make(map[string]int, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}
	return tf
}

// bm25Stats holds the collection-wide statistics one query evaluation
// shares across candidates.
type bm25Stats struct {
	totalDocs int
	avgDocLen float64
	docFreq   map[string]int // stemmed query term → candidate docs containing it
}

// idf is the BM25+ variant that never goes negative.
func (s *bm25Stats) idf(term string) float64 {
	df := s.docFreq[term]
	return math.Log(1 + (float64(s.totalDocs)-float64(df)+0.5)/(float64(df)+0.5))
}

// bm25Score scores one document's term frequencies against the query
// terms.
func bm25Score(queryTerms []string, tf map[string]int, docLen int, stats *bm25Stats) float64 {
	if docLen <= 0 || stats.avgDocLen <= 0 {
		return 0
	}
	lenNorm := bm25K1 * (1 - bm25B + bm25B*float64(docLen)/stats.avgDocLen)
	score := 0.0
	for _, term := range queryTerms {
		f := float64(tf[term])
		if f == 0 {
			continue
		}
		score += stats.idf(term) * (f * (bm25K1 + 1)) / (f + lenNorm)
	}
	return score
}

// Package search is the hybrid search engine: trigram-gated candidate
// collection fused with filename, symbol, and content keyword candidates,
// scored by a weighted multi-signal sum whose weights follow the detected
// query intent.
package search

// Intent classifies what the query is probably asking for; it selects the
// signal weight set.
type Intent string

const (
	IntentSymbol   Intent = "symbol"
	IntentContent  Intent = "content"
	IntentFilename Intent = "filename"
	IntentMixed    Intent = "mixed"
)

// Options tunes one search call. Zero values fall back to the engine's
// configured defaults.
type Options struct {
	Intent        Intent   // auto-detected when empty
	Patterns      []string // regex pattern arguments, scored by the pattern signal
	FileTypes     []string // extension whitelist applied post-scoring, e.g. [".ts", ".go"]
	WordBoundary  bool
	GroupByFile   bool
	MaxResults    int
	MatchesPerFile int
	SnippetLength  int
}

// ScoreDetails is the score breakdown attached to each result.
type ScoreDetails struct {
	Type               string  // the detected intent
	ContentScore       float64 // raw BM25 (post-floor)
	FilenameMultiplier float64
	DepthMultiplier    float64
	FieldWeight        float64 // the dominant signal's weighted contribution (value × weight)
	FilenameMatchType  string  // "exact", "partial", or ""
}

// Result is one scored file hit with its best line match; secondary
// matches hang off the best when grouping is on.
type Result struct {
	FilePath   string
	LineNumber int
	Preview    string
	Score      float64
	Details    ScoreDetails

	// Signals lists the signal names that contributed a non-zero value;
	// Breakdown maps every signal name to its normalized value so the
	// final score is recomputable from Breakdown and the intent weights.
	Signals   []string
	Breakdown map[string]float64

	Secondary []Result
}

// Response wraps the ranked results plus degradation bookkeeping.
type Response struct {
	Results        []Result
	Degraded       bool
	DegradedReason string
}

// signal names, used as Breakdown keys.
const (
	sigContent      = "content"
	sigFilename     = "filename"
	sigSymbol       = "symbol"
	sigComment      = "comment"
	sigPattern      = "pattern"
	sigTestCoverage = "testCoverage"
	sigRecency      = "recency"
	sigOutbound     = "outboundImportance"
)

// weights is one intent's signal weight vector.
type weights map[string]float64

// weightsByIntent boosts symbol+filename for symbol intent and content
// for content intent, per the scorer design.
var weightsByIntent = map[Intent]weights{
	IntentSymbol: {
		sigContent: 0.15, sigFilename: 0.20, sigSymbol: 0.40, sigComment: 0.05,
		sigPattern: 0.05, sigTestCoverage: 0.03, sigRecency: 0.05, sigOutbound: 0.07,
	},
	IntentContent: {
		sigContent: 0.45, sigFilename: 0.10, sigSymbol: 0.15, sigComment: 0.10,
		sigPattern: 0.05, sigTestCoverage: 0.03, sigRecency: 0.05, sigOutbound: 0.07,
	},
	IntentFilename: {
		sigContent: 0.10, sigFilename: 0.45, sigSymbol: 0.15, sigComment: 0.05,
		sigPattern: 0.05, sigTestCoverage: 0.05, sigRecency: 0.08, sigOutbound: 0.07,
	},
	IntentMixed: {
		sigContent: 0.25, sigFilename: 0.20, sigSymbol: 0.25, sigComment: 0.08,
		sigPattern: 0.05, sigTestCoverage: 0.04, sigRecency: 0.06, sigOutbound: 0.07,
	},
}

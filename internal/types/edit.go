package types

// FuzzyMode selects the matching strategy used when an exact anchor match
// fails, per the Editor Engine matching pipeline.
type FuzzyMode string

const (
	FuzzyNone        FuzzyMode = ""
	FuzzyWhitespace  FuzzyMode = "whitespace"
	FuzzyLevenshtein FuzzyMode = "levenshtein"
)

// NormalizationLevel is a rung on the ladder from exact match to
// structure-only match. The alphabet is fixed; callers cannot register
// new levels.
type NormalizationLevel string

const (
	NormExact       NormalizationLevel = "exact"
	NormLineEndings NormalizationLevel = "line-endings"
	NormTrailing    NormalizationLevel = "trailing"
	NormIndentation NormalizationLevel = "indentation"
	NormWhitespace  NormalizationLevel = "whitespace"
	NormStructural  NormalizationLevel = "structural"
)

// normalizationOrder is the ladder's fixed rung order.
var normalizationOrder = []NormalizationLevel{
	NormExact, NormLineEndings, NormTrailing, NormIndentation, NormWhitespace, NormStructural,
}

// LevelsUpTo returns the ladder rungs from exact through max, inclusive.
// An unknown max rung yields the full ladder.
func LevelsUpTo(max NormalizationLevel) []NormalizationLevel {
	for i, l := range normalizationOrder {
		if l == max {
			return normalizationOrder[:i+1]
		}
	}
	return normalizationOrder
}

// HashAlgorithm is the supported algorithm family for an expected-hash
// guard.
type HashAlgorithm string

const (
	HashSHA256 HashAlgorithm = "sha256"
	HashXXHash HashAlgorithm = "xxhash"
)

// ExpectedHash is a caller-supplied pre-edit hash guard.
type ExpectedHash struct {
	Algorithm HashAlgorithm
	Value     string
}

// InsertMode selects where replacementString lands relative to a match
// when the edit is an insertion rather than a replacement.
type InsertMode string

const (
	InsertBefore InsertMode = "before"
	InsertAfter  InsertMode = "after"
	InsertAt     InsertMode = "at"
)

// LineRange is an inclusive, 1-based line range filter.
type LineRange struct {
	Start int
	End   int
}

// IndexRange is an explicit byte range, used both as a match-locating
// input and as the representation of an inverse edit.
type IndexRange struct {
	Start int
	End   int
}

// Edit is a single anchor-based textual change.
type Edit struct {
	TargetString      string
	ReplacementString string

	LineRange        *LineRange
	IndexRange       *IndexRange
	BeforeContext    string
	AfterContext     string

	FuzzyMode      FuzzyMode
	Normalization  NormalizationLevel // ladder ceiling; zero value means NormStructural (try everything)
	ExpectedHash   *ExpectedHash
	InsertMode     InsertMode
	AnchorSearchRange *LineRange
}

// EditOperation bundles the forward edits applied to a file with their
// inverse, for undo.
type EditOperation struct {
	ID            string
	Timestamp     int64
	Description   string
	Edits         []Edit
	InverseEdits  []Edit
	FilePath      string
}

// MatchConfidence scores how certain a resolved match is, per the table
// in the Editor Engine design.
type MatchConfidence float64

const (
	ConfExact             MatchConfidence = 1.0
	ConfNormLineEndings   MatchConfidence = 0.95
	ConfNormTrailing      MatchConfidence = 0.9
	ConfNormIndentation   MatchConfidence = 0.87
	ConfNormWhitespace    MatchConfidence = 0.82
	ConfNormStructural    MatchConfidence = 0.75
	ConfWhitespaceFuzzy   MatchConfidence = 0.8
)

// NormalizationConfidence maps a normalization rung to its base score.
func NormalizationConfidence(level NormalizationLevel) MatchConfidence {
	switch level {
	case NormExact:
		return ConfExact
	case NormLineEndings:
		return ConfNormLineEndings
	case NormTrailing:
		return ConfNormTrailing
	case NormIndentation:
		return ConfNormIndentation
	case NormWhitespace:
		return ConfNormWhitespace
	case NormStructural:
		return ConfNormStructural
	default:
		return 0
	}
}

// LevenshteinConfidence implements 0.5 + 0.5*max(0, 1 - d/dmax).
func LevenshteinConfidence(distance, dmax int) MatchConfidence {
	if dmax <= 0 {
		return 0.5
	}
	ratio := 1.0 - float64(distance)/float64(dmax)
	if ratio < 0 {
		ratio = 0
	}
	return MatchConfidence(0.5 + 0.5*ratio)
}

// Cap clamps a confidence to [0, 1].
func (c MatchConfidence) Cap() MatchConfidence {
	if c > 1.0 {
		return 1.0
	}
	if c < 0 {
		return 0
	}
	return c
}

// MatchCandidate is one surviving candidate after the matching pipeline
// and before lineRange/context filtering.
type MatchCandidate struct {
	Range      IndexRange
	Line       int
	Confidence MatchConfidence
	Method     string // "exact", "index-range", "normalization:<level>", "whitespace-fuzzy", "levenshtein"
	Snippet    string
}

// ErrorCode is the taxonomy surfaced on EditResult.
type ErrorCode string

const (
	ErrNoMatch        ErrorCode = "NO_MATCH"
	ErrAmbiguousMatch ErrorCode = "AMBIGUOUS_MATCH"
	ErrHashMismatch   ErrorCode = "HASH_MISMATCH"
)

// ToolSuggestion is the concrete next-best-action attached to a failed
// EditResult.
type ToolSuggestion struct {
	Action      string
	Reason      string
	LineRange   *LineRange
	Confidence  MatchConfidence
}

// EditResult is the boundary type returned by ApplyEdits.
type EditResult struct {
	Success          bool
	Message          string
	Diff             string
	AddedLines       int
	RemovedLines     int
	OriginalContent  string
	NewContent       string
	ErrorCode        ErrorCode
	Suggestion       *ToolSuggestion
	Operation        *EditOperation
	ConflictingLines []int
}

// Package cerrors is the typed error hierarchy shared by every component.
// One struct per error kind, each carrying structured context and
// implementing Error() (plus Unwrap() on the kinds that wrap an underlying
// error) so callers dispatch with errors.As rather than string matching.
package cerrors

import (
	"fmt"
	"time"
)

// ErrorType classifies an error for callers that want to switch on class
// rather than concrete type.
type ErrorType string

const (
	// Structural
	ErrorTypeMatchNotFound    ErrorType = "match_not_found"
	ErrorTypeAmbiguousMatch   ErrorType = "ambiguous_match"
	ErrorTypeHashMismatch     ErrorType = "hash_mismatch"
	ErrorTypeIndexOutOfBounds ErrorType = "index_range_out_of_bounds"
	ErrorTypeOverlapConflict  ErrorType = "overlap_conflict"

	// Resource
	ErrorTypeResolveTimeout   ErrorType = "resolve_timeout"
	ErrorTypeFuzzyBudget      ErrorType = "fuzzy_budget_exceeded"
	ErrorTypeTargetTooLong    ErrorType = "target_too_long_for_levenshtein"

	// I/O
	ErrorTypeFileNotFound ErrorType = "file_not_found"
	ErrorTypeParseFailure ErrorType = "parse_failure"
	ErrorTypeDatabase     ErrorType = "database_failure"
)

// MatchNotFoundError is raised when zero candidates survive normalization
// or post-filters. Diagnostic carries the attempted levels, candidate
// counts at each, and the strongest guesses.
type MatchNotFoundError struct {
	Target         string
	FilePath       string
	AttemptedLevels []LevelAttempt
	TopGuesses     []Guess
	Timestamp      time.Time
}

// LevelAttempt records the candidate count produced by one normalization
// rung (or fuzzy path) during matching.
type LevelAttempt struct {
	Level          string
	CandidateCount int
}

// Guess is one of the top-3 near-miss candidates reported in a
// MatchNotFoundError.
type Guess struct {
	Line       int
	Snippet    string
	Confidence float64
}

func (e *MatchNotFoundError) Error() string {
	return fmt.Sprintf("no match for target in %s after %d normalization attempts", e.FilePath, len(e.AttemptedLevels))
}

func (e *MatchNotFoundError) Type() ErrorType { return ErrorTypeMatchNotFound }

// AmbiguousMatchError is raised when more than one candidate survives.
type AmbiguousMatchError struct {
	FilePath         string
	ConflictingLines []int
	Guesses          []Guess
	SuggestedLine    int
	Timestamp        time.Time
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("ambiguous match in %s across lines %v", e.FilePath, e.ConflictingLines)
}

func (e *AmbiguousMatchError) Type() ErrorType { return ErrorTypeAmbiguousMatch }

// HashMismatchError is raised when an expected-hash guard disagrees with
// the file's current content.
type HashMismatchError struct {
	FilePath string
	Expected string
	Actual   string
	Algorithm string
	Timestamp time.Time
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("hash mismatch for %s: expected %s, got %s (%s)", e.FilePath, e.Expected, e.Actual, e.Algorithm)
}

func (e *HashMismatchError) Type() ErrorType { return ErrorTypeHashMismatch }

// IndexRangeOutOfBoundsError is raised when an explicit IndexRange falls
// outside [0, len(content)] or its slice doesn't match TargetString.
type IndexRangeOutOfBoundsError struct {
	FilePath string
	Start, End, ContentLen int
	Timestamp time.Time
}

func (e *IndexRangeOutOfBoundsError) Error() string {
	return fmt.Sprintf("index range [%d,%d) out of bounds for %s (len %d)", e.Start, e.End, e.FilePath, e.ContentLen)
}

func (e *IndexRangeOutOfBoundsError) Type() ErrorType { return ErrorTypeIndexOutOfBounds }

// OverlapConflictError is raised when two edits in the same batch touch
// overlapping byte ranges.
type OverlapConflictError struct {
	FilePath string
	First, Second IndexRangeLike
	Timestamp time.Time
}

// IndexRangeLike avoids an import cycle with the types package while
// still letting the error describe the two conflicting ranges.
type IndexRangeLike struct {
	Start, End int
}

func (e *OverlapConflictError) Error() string {
	return fmt.Sprintf("overlapping edits in %s: [%d,%d) vs [%d,%d)", e.FilePath, e.First.Start, e.First.End, e.Second.Start, e.Second.End)
}

func (e *OverlapConflictError) Type() ErrorType { return ErrorTypeOverlapConflict }

// ResolveTimeoutError is raised when a module resolution exceeds its
// deadline.
type ResolveTimeoutError struct {
	Specifier string
	Context   string
	Timestamp time.Time
}

func (e *ResolveTimeoutError) Error() string {
	return fmt.Sprintf("resolving %q from %s timed out", e.Specifier, e.Context)
}

func (e *ResolveTimeoutError) Type() ErrorType { return ErrorTypeResolveTimeout }

// FuzzyBudgetExceededError is raised when the Levenshtein fuzzy path
// exceeds its wall-clock or operation-count budget.
type FuzzyBudgetExceededError struct {
	FilePath   string
	OpsTried   int
	ElapsedMs  int64
	Timestamp  time.Time
}

func (e *FuzzyBudgetExceededError) Error() string {
	return fmt.Sprintf("fuzzy match budget exceeded in %s after %d ops / %dms", e.FilePath, e.OpsTried, e.ElapsedMs)
}

func (e *FuzzyBudgetExceededError) Type() ErrorType { return ErrorTypeFuzzyBudget }

// TargetTooLongError is raised when a Levenshtein target reaches the
// refusal threshold (256 characters in the editor).
type TargetTooLongError struct {
	Length    int
	Limit     int
	Timestamp time.Time
}

func (e *TargetTooLongError) Error() string {
	return fmt.Sprintf("target length %d exceeds levenshtein budget %d", e.Length, e.Limit)
}

func (e *TargetTooLongError) Type() ErrorType { return ErrorTypeTargetTooLong }

// FileNotFoundError wraps an I/O failure locating a file.
type FileNotFoundError struct {
	Path       string
	Underlying error
	Timestamp  time.Time
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("file not found: %s: %v", e.Path, e.Underlying)
}

func (e *FileNotFoundError) Unwrap() error { return e.Underlying }

func (e *FileNotFoundError) Type() ErrorType { return ErrorTypeFileNotFound }

// ParseFailureError wraps a parser collaborator failure. Callers degrade
// the file to an empty symbol list rather than surfacing this upward as
// a hard failure, so one bad file cannot poison indexing.
type ParseFailureError struct {
	Path       string
	Underlying error
	Timestamp  time.Time
}

func (e *ParseFailureError) Error() string {
	return fmt.Sprintf("parse failed for %s: %v", e.Path, e.Underlying)
}

func (e *ParseFailureError) Unwrap() error { return e.Underlying }

func (e *ParseFailureError) Type() ErrorType { return ErrorTypeParseFailure }

// DatabaseFailureError wraps a persistence-layer failure.
type DatabaseFailureError struct {
	Operation  string
	Underlying error
	Timestamp  time.Time
}

func (e *DatabaseFailureError) Error() string {
	return fmt.Sprintf("database %s failed: %v", e.Operation, e.Underlying)
}

func (e *DatabaseFailureError) Unwrap() error { return e.Underlying }

func (e *DatabaseFailureError) Type() ErrorType { return ErrorTypeDatabase }

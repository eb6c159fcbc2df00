package editor

import (
	"sort"
	"strings"
	"time"

	"github.com/codelens-dev/codelens/internal/cerrors"
	"github.com/codelens-dev/codelens/internal/linecount"
	"github.com/codelens-dev/codelens/internal/types"
)

// resolveMatch runs the matching pipeline for one edit against content,
// returning exactly one accepted candidate or a structural error
// (MatchNotFound / AmbiguousMatch / IndexRangeOutOfBounds / the fuzzy
// budget errors).
func resolveMatch(relPath, content string, edit types.Edit) (types.MatchCandidate, error) {
	lc := linecount.New(content)

	// Path 1: explicit index range.
	if edit.IndexRange != nil {
		return resolveIndexRange(relPath, content, edit, lc)
	}

	var candidates []types.MatchCandidate
	var attempts []cerrors.LevelAttempt
	var err error

	switch edit.FuzzyMode {
	case types.FuzzyLevenshtein:
		candidates, err = fuzzyLevenshtein(edit.TargetString, content, lc, 0)
		if err != nil {
			return types.MatchCandidate{}, err
		}
		attempts = append(attempts, cerrors.LevelAttempt{Level: "levenshtein", CandidateCount: len(candidates)})

	case types.FuzzyWhitespace:
		candidates = matchWhitespaceFuzzy(edit.TargetString, content, lc)
		attempts = append(attempts, cerrors.LevelAttempt{Level: "whitespace-fuzzy", CandidateCount: len(candidates)})

	default:
		candidates, attempts = matchLadder(edit.TargetString, content, lc, edit.Normalization)
	}

	// Restrict to the anchor search range before the declared filters.
	if edit.AnchorSearchRange != nil {
		candidates = filterByLineRange(candidates, *edit.AnchorSearchRange)
	}

	filtered := applyFilters(content, candidates, edit)

	if len(filtered) == 0 {
		return types.MatchCandidate{}, notFoundError(relPath, edit, attempts, candidates, lc)
	}
	if len(filtered) > 1 {
		return types.MatchCandidate{}, ambiguousError(relPath, filtered)
	}

	match := filtered[0]
	match.Confidence = boostConfidence(match.Confidence, edit)
	return match, nil
}

func resolveIndexRange(relPath, content string, edit types.Edit, lc *linecount.Counter) (types.MatchCandidate, error) {
	r := *edit.IndexRange
	if r.Start < 0 || r.End < r.Start || r.End > len(content) {
		return types.MatchCandidate{}, &cerrors.IndexRangeOutOfBoundsError{
			FilePath: relPath, Start: r.Start, End: r.End, ContentLen: len(content), Timestamp: time.Now(),
		}
	}
	if content[r.Start:r.End] != edit.TargetString {
		return types.MatchCandidate{}, &cerrors.MatchNotFoundError{
			Target:   edit.TargetString,
			FilePath: relPath,
			AttemptedLevels: []cerrors.LevelAttempt{
				{Level: "index-range", CandidateCount: 0},
			},
			Timestamp: time.Now(),
		}
	}
	line, _ := lc.LineColumn(r.Start)
	return types.MatchCandidate{
		Range:      types.IndexRange{Start: r.Start, End: r.End},
		Line:       line,
		Confidence: boostConfidence(types.ConfExact, edit),
		Method:     "index-range",
		Snippet:    lc.LineText(line),
	}, nil
}

// matchLadder tries normalization rungs in order up to the declared max,
// accepting the first rung that produces at least one candidate.
func matchLadder(target, content string, lc *linecount.Counter, max types.NormalizationLevel) ([]types.MatchCandidate, []cerrors.LevelAttempt) {
	if max == "" {
		max = types.NormStructural
	}
	var attempts []cerrors.LevelAttempt
	for _, level := range types.LevelsUpTo(max) {
		re, err := buildNormalizationRegex(target, level)
		if err != nil {
			attempts = append(attempts, cerrors.LevelAttempt{Level: string(level), CandidateCount: 0})
			continue
		}
		locs := re.FindAllStringIndex(content, -1)
		attempts = append(attempts, cerrors.LevelAttempt{Level: string(level), CandidateCount: len(locs)})
		if len(locs) == 0 {
			continue
		}

		candidates := make([]types.MatchCandidate, 0, len(locs))
		for _, loc := range locs {
			line, _ := lc.LineColumn(loc[0])
			candidates = append(candidates, types.MatchCandidate{
				Range:      types.IndexRange{Start: loc[0], End: loc[1]},
				Line:       line,
				Confidence: types.NormalizationConfidence(level),
				Method:     "normalization:" + string(level),
				Snippet:    lc.LineText(line),
			})
		}
		return candidates, attempts
	}
	return nil, attempts
}

func matchWhitespaceFuzzy(target, content string, lc *linecount.Counter) []types.MatchCandidate {
	re, err := whitespaceFuzzyRegex(target)
	if err != nil {
		return nil
	}
	locs := re.FindAllStringIndex(content, -1)
	candidates := make([]types.MatchCandidate, 0, len(locs))
	for _, loc := range locs {
		line, _ := lc.LineColumn(loc[0])
		candidates = append(candidates, types.MatchCandidate{
			Range:      types.IndexRange{Start: loc[0], End: loc[1]},
			Line:       line,
			Confidence: types.ConfWhitespaceFuzzy,
			Method:     "whitespace-fuzzy",
			Snippet:    lc.LineText(line),
		})
	}
	return candidates
}

// applyFilters narrows candidates by lineRange and before/afterContext.
// Context comparison follows the edit's fuzzy mode.
func applyFilters(content string, candidates []types.MatchCandidate, edit types.Edit) []types.MatchCandidate {
	out := candidates
	if edit.LineRange != nil {
		out = filterByLineRange(out, *edit.LineRange)
	}
	if edit.BeforeContext != "" {
		out = filterByContext(content, out, edit.BeforeContext, edit.FuzzyMode, true)
	}
	if edit.AfterContext != "" {
		out = filterByContext(content, out, edit.AfterContext, edit.FuzzyMode, false)
	}
	return out
}

func filterByLineRange(candidates []types.MatchCandidate, lr types.LineRange) []types.MatchCandidate {
	var out []types.MatchCandidate
	for _, c := range candidates {
		if c.Line >= lr.Start && c.Line <= lr.End {
			out = append(out, c)
		}
	}
	return out
}

func filterByContext(content string, candidates []types.MatchCandidate, anchor string, mode types.FuzzyMode, before bool) []types.MatchCandidate {
	needle := normalizeForCompare(anchor, mode)
	var out []types.MatchCandidate
	for _, c := range candidates {
		var window string
		if before {
			start := c.Range.Start - len(anchor)*2
			if start < 0 {
				start = 0
			}
			window = content[start:c.Range.Start]
		} else {
			end := c.Range.End + len(anchor)*2
			if end > len(content) {
				end = len(content)
			}
			window = content[c.Range.End:end]
		}
		if strings.Contains(normalizeForCompare(window, mode), needle) {
			out = append(out, c)
		}
	}
	return out
}

func boostConfidence(base types.MatchConfidence, edit types.Edit) types.MatchConfidence {
	c := base
	if edit.BeforeContext != "" {
		c += 0.1
	}
	if edit.AfterContext != "" {
		c += 0.1
	}
	if edit.LineRange != nil {
		c += 0.1
	}
	if edit.IndexRange != nil {
		c += 0.15
	}
	return c.Cap()
}

// notFoundError assembles the MatchNotFound diagnostic: every attempted
// level with its candidate count, and the top-3 near-miss guesses.
func notFoundError(relPath string, edit types.Edit, attempts []cerrors.LevelAttempt, prefilter []types.MatchCandidate, lc *linecount.Counter) error {
	guesses := topGuesses(edit.TargetString, prefilter, lc)
	return &cerrors.MatchNotFoundError{
		Target:          edit.TargetString,
		FilePath:        relPath,
		AttemptedLevels: attempts,
		TopGuesses:      guesses,
		Timestamp:       time.Now(),
	}
}

// topGuesses prefers candidates that matched but were filtered out; when
// none exist it scans for the most target-like lines.
func topGuesses(target string, prefilter []types.MatchCandidate, lc *linecount.Counter) []cerrors.Guess {
	var guesses []cerrors.Guess
	if len(prefilter) > 0 {
		for _, c := range prefilter {
			guesses = append(guesses, cerrors.Guess{Line: c.Line, Snippet: c.Snippet, Confidence: float64(c.Confidence)})
		}
	} else {
		targetTris := trigramSet(strings.ToLower(target))
		for line := 1; line <= lc.LineCount(); line++ {
			text := lc.LineText(line)
			if text == "" {
				continue
			}
			score := jaccard(trigramSet(strings.ToLower(text)), targetTris)
			if score > 0 {
				guesses = append(guesses, cerrors.Guess{Line: line, Snippet: text, Confidence: score})
			}
		}
	}
	sort.SliceStable(guesses, func(i, j int) bool { return guesses[i].Confidence > guesses[j].Confidence })
	if len(guesses) > 3 {
		guesses = guesses[:3]
	}
	return guesses
}

// ambiguousError reports every conflicting line and suggests the
// strongest.
func ambiguousError(relPath string, candidates []types.MatchCandidate) error {
	lines := make([]int, 0, len(candidates))
	guesses := make([]cerrors.Guess, 0, len(candidates))
	best := candidates[0]
	for _, c := range candidates {
		lines = append(lines, c.Line)
		guesses = append(guesses, cerrors.Guess{Line: c.Line, Snippet: c.Snippet, Confidence: float64(c.Confidence)})
		if c.Confidence > best.Confidence {
			best = c
		}
	}
	sort.Ints(lines)
	if len(guesses) > 5 {
		guesses = guesses[:5]
	}
	return &cerrors.AmbiguousMatchError{
		FilePath:         relPath,
		ConflictingLines: lines,
		Guesses:          guesses,
		SuggestedLine:    best.Line,
		Timestamp:        time.Now(),
	}
}

package editor

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/hbollon/go-edlib"

	"github.com/codelens-dev/codelens/internal/cerrors"
	"github.com/codelens-dev/codelens/internal/linecount"
	"github.com/codelens-dev/codelens/internal/types"
)

const (
	// levenshteinMaxTarget is the fixed refusal threshold for the fuzzy
	// path: targets of this length or longer are refused.
	levenshteinMaxTarget = 256

	fuzzyWallClock = 5 * time.Second
	fuzzyMaxOps    = 100_000

	lineJaccardGate   = 0.3
	windowJaccardGate = 0.2
	fallbackTopLines  = 50
)

// levenshteinTolerance is max(1, 0.2×|t|) for short targets, 0.3×|t|
// otherwise.
func levenshteinTolerance(targetLen int) int {
	if targetLen < 10 {
		tol := targetLen / 5
		if tol < 1 {
			tol = 1
		}
		return tol
	}
	return (targetLen * 3) / 10
}

// fuzzyLevenshtein finds approximate matches of target in content: exact
// regex first, then trigram-gated sliding windows at word-boundary
// positions scored by edit distance. Budgets are enforced; oversize
// targets are refused with a structured error.
func fuzzyLevenshtein(target, content string, lc *linecount.Counter, maxOps int) ([]types.MatchCandidate, error) {
	if len(target) >= levenshteinMaxTarget {
		return nil, &cerrors.TargetTooLongError{Length: len(target), Limit: levenshteinMaxTarget, Timestamp: time.Now()}
	}
	if maxOps <= 0 {
		maxOps = fuzzyMaxOps
	}

	// Exact pass first.
	if re, err := regexp.Compile(regexp.QuoteMeta(target)); err == nil {
		if locs := re.FindAllStringIndex(content, -1); len(locs) > 0 {
			var out []types.MatchCandidate
			for _, loc := range locs {
				line, _ := lc.LineColumn(loc[0])
				out = append(out, types.MatchCandidate{
					Range:      types.IndexRange{Start: loc[0], End: loc[1]},
					Line:       line,
					Confidence: types.ConfExact,
					Method:     "exact",
					Snippet:    lc.LineText(line),
				})
			}
			return out, nil
		}
	}

	tol := levenshteinTolerance(len(target))
	targetTris := trigramSet(strings.ToLower(target))
	deadline := time.Now().Add(fuzzyWallClock)
	ops := 0

	candidateLines := gateLines(content, lc, targetTris)

	var out []types.MatchCandidate
	for _, line := range candidateLines {
		if time.Now().After(deadline) || ops > maxOps {
			return nil, &cerrors.FuzzyBudgetExceededError{OpsTried: ops, ElapsedMs: int64(fuzzyWallClock / time.Millisecond), Timestamp: time.Now()}
		}

		regionStart := lc.LineStart(line)
		regionEnd := regionStart + len(target) + tol
		if regionEnd > len(content) {
			regionEnd = len(content)
		}

		for _, start := range wordBoundaryPositions(content, regionStart, lc.LineEnd(line)) {
			for _, winLen := range []int{len(target) - tol, len(target), len(target) + tol} {
				if winLen <= 0 || start+winLen > len(content) {
					continue
				}
				window := content[start : start+winLen]
				if jaccard(trigramSet(strings.ToLower(window)), targetTris) < windowJaccardGate {
					continue
				}

				ops += len(target) * winLen / 64
				if ops > maxOps {
					return nil, &cerrors.FuzzyBudgetExceededError{OpsTried: ops, Timestamp: time.Now()}
				}

				distance := edlib.LevenshteinDistance(target, window)
				if distance > tol {
					continue
				}
				matchLine, _ := lc.LineColumn(start)
				out = append(out, types.MatchCandidate{
					Range:      types.IndexRange{Start: start, End: start + winLen},
					Line:       matchLine,
					Confidence: types.LevenshteinConfidence(distance, tol).Cap(),
					Method:     "levenshtein",
					Snippet:    lc.LineText(matchLine),
				})
			}
		}
	}

	return dedupeOverlapping(out), nil
}

// gateLines returns the 1-based lines whose trigram Jaccard against the
// target clears the gate, falling back to the top-50 lines overall when
// nothing does.
func gateLines(content string, lc *linecount.Counter, targetTris map[string]struct{}) []int {
	type scored struct {
		line  int
		score float64
	}
	var all []scored
	for line := 1; line <= lc.LineCount(); line++ {
		text := lc.LineText(line)
		if text == "" {
			continue
		}
		all = append(all, scored{line: line, score: jaccard(trigramSet(strings.ToLower(text)), targetTris)})
	}

	var gated []int
	for _, s := range all {
		if s.score >= lineJaccardGate {
			gated = append(gated, s.line)
		}
	}
	if len(gated) > 0 {
		return gated
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].score > all[j].score })
	limit := fallbackTopLines
	if len(all) < limit {
		limit = len(all)
	}
	lines := make([]int, 0, limit)
	for _, s := range all[:limit] {
		lines = append(lines, s.line)
	}
	sort.Ints(lines)
	return lines
}

// wordBoundaryPositions lists offsets in [from, to) where a word starts.
func wordBoundaryPositions(content string, from, to int) []int {
	if from < 0 {
		from = 0
	}
	if to > len(content) {
		to = len(content)
	}
	var out []int
	for i := from; i < to; i++ {
		if !isWordByte(content[i]) {
			continue
		}
		if i == 0 || !isWordByte(content[i-1]) {
			out = append(out, i)
		}
	}
	return out
}

func trigramSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for i := 0; i+3 <= len(s); i++ {
		set[s[i:i+3]] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	inter := 0
	for t := range small {
		if _, ok := large[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// dedupeOverlapping keeps the highest-confidence candidate out of each
// overlapping cluster.
func dedupeOverlapping(candidates []types.MatchCandidate) []types.MatchCandidate {
	if len(candidates) <= 1 {
		return candidates
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Range.Start != candidates[j].Range.Start {
			return candidates[i].Range.Start < candidates[j].Range.Start
		}
		return candidates[i].Confidence > candidates[j].Confidence
	})

	var out []types.MatchCandidate
	for _, c := range candidates {
		if len(out) > 0 {
			last := &out[len(out)-1]
			if c.Range.Start < last.Range.End {
				if c.Confidence > last.Confidence {
					*last = c
				}
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

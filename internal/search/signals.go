package search

import (
	"math"
	"path"
	"regexp"
	"strings"
	"time"
)

// filenameSignal scores 100 for an exact basename/stem match against any
// keyword, 50 for a partial hit, honoring smart-case per keyword.
func filenameSignal(relPath string, keywords []string) (score float64, matchType string) {
	base := path.Base(relPath)
	stem := strings.TrimSuffix(base, path.Ext(base))

	for _, kw := range keywords {
		b, s, k := base, stem, kw
		if !keywordCaseSensitive(kw) {
			b, s, k = strings.ToLower(base), strings.ToLower(stem), strings.ToLower(kw)
		}
		if b == k || s == k {
			return 100, "exact"
		}
	}
	for _, kw := range keywords {
		b, k := base, kw
		if !keywordCaseSensitive(kw) {
			b, k = strings.ToLower(base), strings.ToLower(kw)
		}
		if strings.Contains(b, k) {
			return 50, "partial"
		}
	}
	return 0, ""
}

// symbolSignal scores 32 per regex-exact symbol name hit and 16 per
// substring hit.
func symbolSignal(symbolNames, keywords []string) float64 {
	score := 0.0
	for _, kw := range keywords {
		anchored := "^" + regexp.QuoteMeta(kw) + "$"
		if !keywordCaseSensitive(kw) {
			anchored = "(?i)" + anchored
		}
		exactRe, err := regexp.Compile(anchored)
		if err != nil {
			continue
		}
		for _, name := range symbolNames {
			n, k := name, kw
			if !keywordCaseSensitive(kw) {
				n, k = strings.ToLower(name), strings.ToLower(kw)
			}
			switch {
			case exactRe.MatchString(name):
				score += 32
			case strings.Contains(n, k):
				score += 16
			}
		}
	}
	return score
}

// commentSignal scores 10 per keyword hit within extracted comments.
func commentSignal(comments []string, keywords []string) float64 {
	score := 0.0
	for _, kw := range keywords {
		k := kw
		caseSensitive := keywordCaseSensitive(kw)
		if !caseSensitive {
			k = strings.ToLower(kw)
		}
		for _, c := range comments {
			body := c
			if !caseSensitive {
				body = strings.ToLower(c)
			}
			score += float64(strings.Count(body, k)) * 10
		}
	}
	return score
}

// patternSignal scores 100 × match count for each regex pattern argument.
func patternSignal(content string, patterns []string) float64 {
	score := 0.0
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			continue
		}
		score += float64(len(re.FindAllStringIndex(content, -1))) * 100
	}
	return score
}

// testCoverageSignal reports 1.0 when a sibling test file exists.
func (e *Engine) testCoverageSignal(relPath string) float64 {
	dir := path.Dir(relPath)
	base := path.Base(relPath)
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	candidates := []string{
		path.Join(dir, stem+".test"+ext),
		path.Join(dir, stem+".spec"+ext),
		path.Join(dir, "__tests__", stem+".test"+ext),
	}
	for _, c := range candidates {
		if e.fileExists(c) {
			return 1.0
		}
	}
	return 0
}

// recencySignal buckets file age: <7d → 1.0, <30d → 0.8, <90d → 0.6,
// else 0.4.
func recencySignal(mtimeMs int64, now time.Time) float64 {
	if mtimeMs <= 0 {
		return 0.4
	}
	age := now.Sub(time.UnixMilli(mtimeMs))
	switch {
	case age < 7*24*time.Hour:
		return 1.0
	case age < 30*24*time.Hour:
		return 0.8
	case age < 90*24*time.Hour:
		return 0.6
	default:
		return 0.4
	}
}

// outboundImportanceSignal maps in-degree through min(1, log2(n+1)/7).
func outboundImportanceSignal(inDegree int) float64 {
	v := math.Log2(float64(inDegree)+1) / 7
	if v > 1 {
		v = 1
	}
	return v
}

// depthMultiplier applies a small penalty per path segment beyond three.
func depthMultiplier(relPath string) float64 {
	segments := strings.Count(relPath, "/") + 1
	if segments <= 3 {
		return 1.0
	}
	return 1.0 / (1.0 + 0.05*float64(segments-3))
}

// compileKeyword compiles the literal-match regex for one keyword.
func compileKeyword(keyword string, wordBoundary bool) (*regexp.Regexp, error) {
	return regexp.Compile(keywordPattern(keyword, wordBoundary))
}

// keywordPattern builds the literal-match regex for one keyword, honoring
// word boundary and smart-case rules.
func keywordPattern(keyword string, wordBoundary bool) string {
	p := regexp.QuoteMeta(keyword)
	if wordBoundary {
		p = `\b` + p + `\b`
	}
	if !keywordCaseSensitive(keyword) {
		p = `(?i)` + p
	}
	return p
}

// extractComments pulls //, /* */, and # comment bodies out of content —
// a lexical pass, not a parse, which is enough for keyword counting.
func extractComments(content string) []string {
	var comments []string
	lines := strings.Split(content, "\n")
	inBlock := false
	var block strings.Builder

	for _, line := range lines {
		rest := line
		for {
			if inBlock {
				if end := strings.Index(rest, "*/"); end >= 0 {
					block.WriteString(rest[:end])
					comments = append(comments, block.String())
					block.Reset()
					inBlock = false
					rest = rest[end+2:]
					continue
				}
				block.WriteString(rest)
				block.WriteByte('\n')
				break
			}

			lineIdx := strings.Index(rest, "//")
			hashIdx := strings.Index(rest, "#")
			blockIdx := strings.Index(rest, "/*")

			first, kind := -1, ""
			for _, c := range []struct {
				idx  int
				kind string
			}{{lineIdx, "line"}, {hashIdx, "hash"}, {blockIdx, "block"}} {
				if c.idx >= 0 && (first < 0 || c.idx < first) {
					first, kind = c.idx, c.kind
				}
			}
			if first < 0 {
				break
			}
			switch kind {
			case "line":
				comments = append(comments, rest[first+2:])
			case "hash":
				comments = append(comments, rest[first+1:])
			case "block":
				inBlock = true
				rest = rest[first+2:]
				continue
			}
			break
		}
	}
	return comments
}

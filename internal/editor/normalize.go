package editor

import (
	"regexp"
	"strings"

	"github.com/codelens-dev/codelens/internal/types"
)

// buildNormalizationRegex compiles the regex for one ladder rung. Each
// rung tolerates exactly the class of drift it names and nothing beyond
// it:
//
//	exact        — byte-for-byte
//	line-endings — \r\n vs \n
//	trailing     — trailing whitespace before each newline
//	indentation  — leading whitespace per line (tabs vs spaces, width)
//	whitespace   — any interior whitespace amount, including none→some
//	structural   — token sequence only; all spacing is free
func buildNormalizationRegex(target string, level types.NormalizationLevel) (*regexp.Regexp, error) {
	var pattern string
	switch level {
	case types.NormExact:
		pattern = regexp.QuoteMeta(target)
	case types.NormLineEndings:
		pattern = lineEndingsPattern(target)
	case types.NormTrailing:
		pattern = trailingPattern(target)
	case types.NormIndentation:
		pattern = indentationPattern(target)
	case types.NormWhitespace:
		pattern = whitespacePattern(target)
	case types.NormStructural:
		pattern = structuralPattern(target)
	default:
		pattern = regexp.QuoteMeta(target)
	}
	return regexp.Compile(pattern)
}

func lineEndingsPattern(target string) string {
	normalized := strings.ReplaceAll(target, "\r\n", "\n")
	parts := strings.Split(normalized, "\n")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return strings.Join(parts, `\r?\n`)
}

func trailingPattern(target string) string {
	normalized := strings.ReplaceAll(target, "\r\n", "\n")
	parts := strings.Split(normalized, "\n")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(strings.TrimRight(p, " \t"))
	}
	return strings.Join(parts, `[ \t]*\r?\n`)
}

func indentationPattern(target string) string {
	normalized := strings.ReplaceAll(target, "\r\n", "\n")
	parts := strings.Split(normalized, "\n")
	for i, p := range parts {
		trimmed := strings.TrimRight(strings.TrimLeft(p, " \t"), " \t")
		parts[i] = regexp.QuoteMeta(trimmed)
	}
	return strings.Join(parts, `[ \t]*\r?\n[ \t]*`)
}

// whitespacePattern joins target tokens with \s+ where the target had
// whitespace and \s* at word↔punctuation seams where it had none, so
// "f(x, y)" still matches "f( x , y )".
func whitespacePattern(target string) string {
	tokens := tokenizeTarget(target)
	var sb strings.Builder
	for i, tok := range tokens {
		if tok.isSpace {
			sb.WriteString(`\s+`)
			continue
		}
		sb.WriteString(regexp.QuoteMeta(tok.text))
		if i+1 < len(tokens) && !tokens[i+1].isSpace {
			sb.WriteString(`\s*`)
		}
	}
	return sb.String()
}

// structuralPattern keeps only the token sequence; every seam becomes
// optional whitespace.
func structuralPattern(target string) string {
	tokens := tokenizeTarget(target)
	var parts []string
	for _, tok := range tokens {
		if tok.isSpace {
			continue
		}
		parts = append(parts, regexp.QuoteMeta(tok.text))
	}
	return strings.Join(parts, `\s*`)
}

type targetToken struct {
	text    string
	isSpace bool
}

// tokenizeTarget splits target into word runs, whitespace runs, and
// single punctuation characters.
func tokenizeTarget(target string) []targetToken {
	var tokens []targetToken
	i := 0
	for i < len(target) {
		c := target[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			j := i
			for j < len(target) && (target[j] == ' ' || target[j] == '\t' || target[j] == '\n' || target[j] == '\r') {
				j++
			}
			tokens = append(tokens, targetToken{text: target[i:j], isSpace: true})
			i = j
		case isWordByte(c):
			j := i
			for j < len(target) && isWordByte(target[j]) {
				j++
			}
			tokens = append(tokens, targetToken{text: target[i:j]})
			i = j
		default:
			tokens = append(tokens, targetToken{text: target[i : i+1]})
			i++
		}
	}
	return tokens
}

func isWordByte(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9') || c >= 0x80
}

// whitespaceFuzzyRegex is the fuzzy-whitespace path: \s+ in place of
// interior whitespace runs, with word boundaries on alphanumeric target
// edges.
func whitespaceFuzzyRegex(target string) (*regexp.Regexp, error) {
	pattern := whitespacePattern(target)
	if len(target) > 0 && isWordByte(target[0]) {
		pattern = `\b` + pattern
	}
	if len(target) > 0 && isWordByte(target[len(target)-1]) {
		pattern = pattern + `\b`
	}
	return regexp.Compile(pattern)
}

// normalizeForCompare reduces s per level so context anchors compare the
// same way their owning edit matched.
func normalizeForCompare(s string, mode types.FuzzyMode) string {
	if mode == types.FuzzyWhitespace {
		return strings.Join(strings.Fields(s), " ")
	}
	return s
}

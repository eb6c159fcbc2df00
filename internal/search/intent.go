package search

import (
	"regexp"
	"strings"
	"unicode"
)

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DetectIntent classifies a raw query into symbol/content/filename/mixed.
// A path-shaped query is filename intent; a single identifier-shaped
// token with camelCase or snake_case texture is symbol intent; several
// plain words are content intent.
func DetectIntent(query string) Intent {
	q := strings.TrimSpace(query)
	if q == "" {
		return IntentMixed
	}

	if strings.ContainsAny(q, "/\\") || looksLikeFilename(q) {
		return IntentFilename
	}

	fields := strings.Fields(q)
	if len(fields) == 1 && identifierRe.MatchString(fields[0]) {
		if hasIdentifierTexture(fields[0]) {
			return IntentSymbol
		}
		return IntentMixed
	}
	if len(fields) > 1 {
		return IntentContent
	}
	return IntentMixed
}

// looksLikeFilename recognizes "name.ext" shapes with a short extension.
func looksLikeFilename(q string) bool {
	idx := strings.LastIndexByte(q, '.')
	if idx <= 0 || idx == len(q)-1 {
		return false
	}
	ext := q[idx+1:]
	if len(ext) > 5 {
		return false
	}
	for _, r := range ext {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return !strings.ContainsRune(q, ' ')
}

// hasIdentifierTexture reports camelCase, PascalCase, or snake_case —
// the shapes a symbol name has and a prose word does not.
func hasIdentifierTexture(token string) bool {
	if strings.ContainsRune(token, '_') {
		return true
	}
	hasUpper, hasLower := false, false
	for _, r := range token {
		if unicode.IsUpper(r) {
			hasUpper = true
		}
		if unicode.IsLower(r) {
			hasLower = true
		}
	}
	// Mixed case (getUser, Authenticator) reads as a symbol; an
	// all-lower or all-upper single word could be anything.
	if hasUpper && hasLower {
		return true
	}
	return false
}

// Keywords splits a query into its scoring keywords, dropping empties.
func Keywords(query string) []string {
	return strings.Fields(strings.TrimSpace(query))
}

// keywordCaseSensitive implements smart-case per keyword: a keyword with
// any uppercase letter matches case-sensitively.
func keywordCaseSensitive(keyword string) bool {
	return strings.IndexFunc(keyword, unicode.IsUpper) >= 0
}

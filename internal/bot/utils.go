package bot

import (
	"regexp"
	"slices"
	"strings"
)

// BuildKeywordRegex creates a regex matching one of keywords at the START of
// text, followed by whitespace or the end of text. Keywords are quoted and
// sorted longest first so "/ai" never shadows "/aiko". Panics if keywords is empty.
//
// Example:
//
//	MatchKeyword(BuildKeywordRegex([]string{"/ask", "/ai"}), "/ask ម៉ោងរៀន") // "/ask"
//	MatchKeyword(BuildKeywordRegex([]string{"/ask", "/ai"}), "/askme")      // ""
func BuildKeywordRegex(keywords []string) *regexp.Regexp {
	if len(keywords) == 0 {
		panic("BuildKeywordRegex: keywords cannot be empty")
	}

	sorted := make([]string, len(keywords))
	for i, k := range keywords {
		sorted[i] = regexp.QuoteMeta(k)
	}
	slices.SortFunc(sorted, func(a, b string) int {
		return len(b) - len(a)
	})

	pattern := `(?i)^(` + strings.Join(sorted, "|") + `)(?:\s|$)`
	return regexp.MustCompile(pattern)
}

// MatchKeyword returns the matched keyword from text using the given regex.
// Returns empty string if no match. The keyword is returned without trailing space.
func MatchKeyword(regex *regexp.Regexp, text string) string {
	match := regex.FindStringSubmatch(text)
	if len(match) < 2 {
		return ""
	}
	return match[1]
}

// ExtractSearchTerm removes a leading keyword and returns the trimmed rest.
func ExtractSearchTerm(text, keyword string) string {
	text = strings.TrimSpace(text)
	if keyword == "" {
		return text
	}
	if len(text) >= len(keyword) && strings.EqualFold(text[:len(keyword)], keyword) {
		return strings.TrimSpace(text[len(keyword):])
	}
	return text
}

// IsCommand reports whether text starts with a slash command.
func IsCommand(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "/")
}

// normalizeWhitespace collapses whitespace runs to single spaces.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

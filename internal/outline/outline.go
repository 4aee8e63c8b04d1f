// Package outline parses the knowledge base's outline text into questions,
// derives stable deep-link ids for them and resolves ids back to answers.
package outline

import (
	"crypto/sha1" //nolint:gosec // content id, not a security boundary
	"encoding/hex"
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/ngspreakleap/kalyan-linebot-go/internal/matcher"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/textnorm"
)

const (
	// IDPrefix keeps ids from looking like numeric payloads.
	IDPrefix = "q"
	// idHexLen is the number of hex digest characters kept.
	idHexLen = 10
)

// bulletPattern matches "- question", "• question", "– question" and
// "— question", optionally indented with whitespace or zero-width spaces.
// \s is ASCII-only in RE2, so Unicode spaces (NBSP, U+3000) are listed via \p{Zs}.
var bulletPattern = regexp.MustCompile(`^[\s\p{Zs}\x{200B}]*[-•–—][\p{Zs}\t]+(\S.*)$`)

// LinkBuilder returns the link target for a question and its id.
type LinkBuilder func(question, id string) string

// bulletQuestion returns the question text of a bulleted line.
func bulletQuestion(line string) (string, bool) {
	m := bulletPattern.FindStringSubmatch(strings.TrimRight(line, "\r"))
	if m == nil {
		return "", false
	}
	q := strings.TrimSpace(m[1])
	return q, q != ""
}

// ExtractQuestions returns the text of every bulleted line, in order.
// Section headers and blank lines are skipped.
func ExtractQuestions(outline string) []string {
	var questions []string
	for line := range strings.SplitSeq(outline, "\n") {
		if q, ok := bulletQuestion(line); ok {
			questions = append(questions, q)
		}
	}
	return questions
}

// QuestionID returns "q" followed by the first ten hex digits of the SHA-1 of
// the normalized question. Ids are stable across restarts and deploys.
func QuestionID(question string) string {
	sum := sha1.Sum([]byte(textnorm.Normalize(question))) //nolint:gosec
	return IDPrefix + hex.EncodeToString(sum[:])[:idHexLen]
}

// IsID reports whether s has the shape of a question id.
func IsID(s string) bool {
	if len(s) != len(IDPrefix)+idHexLen || !strings.HasPrefix(s, IDPrefix) {
		return false
	}
	_, err := hex.DecodeString(s[len(IDPrefix):])
	return err == nil
}

// RenderWithLinks reproduces the outline line for line, turning each bulleted
// question into "- <a href=TARGET>QUESTION</a>". Other lines pass through.
func RenderWithLinks(outline string, build LinkBuilder) string {
	lines := strings.Split(outline, "\n")
	for i, line := range lines {
		q, ok := bulletQuestion(line)
		if !ok {
			continue
		}
		target := build(q, QuestionID(q))
		lines[i] = `- <a href="` + html.EscapeString(target) + `">` + html.EscapeString(q) + `</a>`
	}
	return strings.Join(lines, "\n")
}

// RenderHTML is RenderWithLinks for HTML pages: lines that are not
// questions are escaped too.
func RenderHTML(outline string, build LinkBuilder) string {
	lines := strings.Split(outline, "\n")
	for i, line := range lines {
		if _, ok := bulletQuestion(line); ok {
			lines[i] = RenderWithLinks(line, build)
			continue
		}
		lines[i] = html.EscapeString(strings.TrimRight(line, "\r"))
	}
	return strings.Join(lines, "\n")
}

// LINEDeepLink opens a chat with the official account basicID with
// "/start <id>" prefilled.
func LINEDeepLink(basicID string) LinkBuilder {
	account := url.PathEscape(basicID)
	return func(_, id string) string {
		return "https://line.me/R/oaMessage/" + account + "/?/start%20" + id
	}
}

// Resolve finds the outline question with the given id and matches it
// against the knowledge base. It returns nil when no question has that id.
func Resolve(m *matcher.Matcher, id, outline string) *matcher.Result {
	for _, q := range ExtractQuestions(outline) {
		if QuestionID(q) == id {
			return m.BestMatch(textnorm.Normalize(q))
		}
	}
	return nil
}

package outline

import (
	"github.com/ngspreakleap/kalyan-linebot-go/internal/matcher"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/sliceutil"
)

// Index caches the id to question mapping of one outline. It is built once
// and read-only afterwards; rebuilding yields the same mapping.
type Index struct {
	outline   string
	questions []string
	byID      map[string]string
}

// NewIndex parses the outline once. The first question wins a repeated id,
// and Questions lists each id once.
func NewIndex(outline string) *Index {
	questions := sliceutil.Deduplicate(ExtractQuestions(outline), QuestionID)
	byID := make(map[string]string, len(questions))
	for _, q := range questions {
		byID[QuestionID(q)] = q
	}
	return &Index{outline: outline, questions: questions, byID: byID}
}

// Outline returns the indexed outline text.
func (x *Index) Outline() string {
	return x.outline
}

// Questions returns the outline questions in order.
func (x *Index) Questions() []string {
	out := make([]string, len(x.questions))
	copy(out, x.questions)
	return out
}

// Question returns the question for an id.
func (x *Index) Question(id string) (string, bool) {
	q, ok := x.byID[id]
	return q, ok
}

// Resolve is the cached equivalent of the package-level Resolve.
func (x *Index) Resolve(m *matcher.Matcher, id string) *matcher.Result {
	q, ok := x.byID[id]
	if !ok {
		return nil
	}
	return m.BestMatch(q)
}

// Render renders the indexed outline with links.
func (x *Index) Render(build LinkBuilder) string {
	return RenderWithLinks(x.outline, build)
}

// RenderHTML renders the indexed outline for an HTML page.
func (x *Index) RenderHTML(build LinkBuilder) string {
	return RenderHTML(x.outline, build)
}

// Unresolved lists outline questions that do not resolve back to themselves,
// which means the outline and the entries have drifted apart.
func (x *Index) Unresolved(m *matcher.Matcher) []string {
	var bad []string
	for _, q := range x.questions {
		if r := m.BestMatch(q); r == nil || r.Question != q {
			bad = append(bad, q)
		}
	}
	return bad
}

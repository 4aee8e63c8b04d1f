// Package matcher finds the stored question that best answers free-form user
// input, or ranks near misses as suggestions.
//
// Scoring combines trigram Jaccard and normalized edit distance over
// normalized text, plus a small lexical-overlap bonus:
//
//	score = 1.2·jaccard(q, key) + 0.6·jaccard(q, answer) + 0.9·edit(q, key)
//	      + 0.7 if q contains key or key contains q
//	      + 0.6·tokenJaccard(q, key)
//
// A match is accepted when score >= Threshold. An exact key scores at least
// 3.4; unrelated sentences stay well under 1.
package matcher

import (
	"cmp"
	"slices"
	"strings"

	"github.com/ngspreakleap/kalyan-linebot-go/internal/knowledge"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/similarity"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/textnorm"
)

// Scoring weights.
const (
	WeightKeyNGram    = 1.2
	WeightAnswerNGram = 0.6
	WeightKeyEdit     = 0.9
	BonusContainment  = 0.7
	BonusTokenOverlap = 0.6

	// DefaultThreshold accepts near-miss rephrasings (typically around 2)
	// and rejects partial topic overlap.
	DefaultThreshold = 1.35

	// MaxScore is the highest attainable score.
	MaxScore = WeightKeyNGram + WeightAnswerNGram + WeightKeyEdit + BonusContainment + BonusTokenOverlap
)

// Result is a single accepted match.
type Result struct {
	Question string
	Answer   string
	Score    float64
}

// candidate caches the comparable forms of one entry.
type candidate struct {
	question    string
	answer      string
	key         string
	keyGrams    similarity.Set
	answerGrams similarity.Set
	keyTokens   []string
}

// query is the comparable form of user input.
type query struct {
	text   string
	grams  similarity.Set
	tokens []string
}

// Matcher scores queries against an immutable knowledge base. It holds no
// mutable state and is safe for concurrent use.
type Matcher struct {
	candidates []candidate
	byQuestion map[string]int
	threshold  float64
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithThreshold overrides the acceptance threshold.
func WithThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.threshold = threshold
	}
}

// New precomputes the comparable form of every entry.
func New(kb *knowledge.Base, opts ...Option) *Matcher {
	m := &Matcher{
		candidates: make([]candidate, 0, kb.Len()),
		byQuestion: make(map[string]int, kb.Len()),
		threshold:  DefaultThreshold,
	}
	for _, opt := range opts {
		opt(m)
	}

	for i := range kb.Len() {
		e := kb.Entry(i)
		key := comparable(e.Question)
		answer := textnorm.Normalize(e.Answer)
		m.byQuestion[e.Question] = len(m.candidates)
		m.candidates = append(m.candidates, candidate{
			question:    e.Question,
			answer:      e.Answer,
			key:         key,
			keyGrams:    similarity.NGrams(key, similarity.DefaultN),
			answerGrams: similarity.NGrams(answer, similarity.DefaultN),
			keyTokens:   textnorm.Tokens(key),
		})
	}
	return m
}

// comparable is the form both queries and keys are scored in.
func comparable(s string) string {
	return textnorm.StripStopwords(textnorm.Normalize(s))
}

func newQuery(raw string) (query, bool) {
	text := comparable(raw)
	if text == "" {
		return query{}, false
	}
	return query{
		text:   text,
		grams:  similarity.NGrams(text, similarity.DefaultN),
		tokens: textnorm.Tokens(text),
	}, true
}

// Threshold returns the acceptance threshold in use.
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// Len returns the number of candidate questions.
func (m *Matcher) Len() int {
	return len(m.candidates)
}

func (m *Matcher) score(q query, c *candidate) float64 {
	s := WeightKeyNGram*similarity.Jaccard(q.grams, c.keyGrams) +
		WeightAnswerNGram*similarity.Jaccard(q.grams, c.answerGrams) +
		WeightKeyEdit*similarity.EditSimilarity(q.text, c.key)

	if c.key != "" && (strings.Contains(c.key, q.text) || strings.Contains(q.text, c.key)) {
		s += BonusContainment
	}
	s += BonusTokenOverlap * similarity.TokenJaccard(q.tokens, c.keyTokens)
	return s
}

// Score returns the combined score of raw input against a stored question.
// ok is false when the question is unknown or the input normalizes to "".
func (m *Matcher) Score(input, question string) (score float64, ok bool) {
	i, found := m.byQuestion[question]
	if !found {
		return 0, false
	}
	q, valid := newQuery(input)
	if !valid {
		return 0, false
	}
	return m.score(q, &m.candidates[i]), true
}

// BestMatch returns the highest-scoring entry if it clears the threshold, or
// nil. The earliest entry wins ties.
func (m *Matcher) BestMatch(input string) *Result {
	q, ok := newQuery(input)
	if !ok {
		return nil
	}

	best, bestScore := -1, 0.0
	for i := range m.candidates {
		s := m.score(q, &m.candidates[i])
		if best < 0 || s > bestScore {
			best, bestScore = i, s
		}
	}
	if best < 0 || bestScore < m.threshold {
		return nil
	}

	c := &m.candidates[best]
	return &Result{Question: c.question, Answer: c.answer, Score: bestScore}
}

// Shadowed is a stored question that BestMatch never returns for itself.
type Shadowed struct {
	Question string
	// By is the question returned instead, or "" when nothing clears the
	// threshold.
	By string
}

// Unreachable lists the entries whose own question does not match back to
// them, in insertion order. This happens when two keys share a comparable
// form (same text after normalization and stopword removal); the earlier
// key always wins.
func (m *Matcher) Unreachable() []Shadowed {
	var out []Shadowed
	for i := range m.candidates {
		q := m.candidates[i].question
		r := m.BestMatch(q)
		if r != nil && r.Question == q {
			continue
		}
		s := Shadowed{Question: q}
		if r != nil {
			s.By = r.Question
		}
		out = append(out, s)
	}
	return out
}

type ranked struct {
	index int
	score float64
}

// rank orders candidates by descending score, keeping insertion order on ties
// and dropping zero scores.
func rank(scores []ranked, k int) []ranked {
	scores = slices.DeleteFunc(scores, func(r ranked) bool { return r.score <= 0 })
	slices.SortStableFunc(scores, func(a, b ranked) int {
		return cmp.Compare(b.score, a.score)
	})
	if len(scores) > k {
		scores = scores[:k]
	}
	return scores
}

// Suggestion is a ranked near miss with the trigram similarity it was
// ranked by.
type Suggestion struct {
	Question   string
	Similarity float64
}

// TopSuggestions returns up to k questions ranked by trigram similarity to
// the input. Questions with no overlap are never suggested.
func (m *Matcher) TopSuggestions(input string, k int) []string {
	return m.questions(m.suggest(input, k))
}

// Suggestions is TopSuggestions with the similarity of each question.
// Similarities are non-increasing.
func (m *Matcher) Suggestions(input string, k int) []Suggestion {
	rs := m.suggest(input, k)
	out := make([]Suggestion, len(rs))
	for i, r := range rs {
		out[i] = Suggestion{Question: m.candidates[r.index].question, Similarity: r.score}
	}
	return out
}

func (m *Matcher) suggest(input string, k int) []ranked {
	if k <= 0 {
		return nil
	}
	q, ok := newQuery(input)
	if !ok {
		return nil
	}

	scores := make([]ranked, len(m.candidates))
	for i := range m.candidates {
		scores[i] = ranked{index: i, score: similarity.Jaccard(q.grams, m.candidates[i].keyGrams)}
	}
	return rank(scores, k)
}

// Related returns up to k other questions similar to a stored question, for
// follow-up prompts after a hit. Unknown questions have no relations.
func (m *Matcher) Related(question string, k int) []string {
	self, ok := m.byQuestion[question]
	if !ok || k <= 0 {
		return nil
	}
	grams := m.candidates[self].keyGrams

	scores := make([]ranked, 0, len(m.candidates))
	for i := range m.candidates {
		if i == self {
			continue
		}
		scores = append(scores, ranked{index: i, score: similarity.Jaccard(grams, m.candidates[i].keyGrams)})
	}
	return m.questions(rank(scores, k))
}

func (m *Matcher) questions(rs []ranked) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = m.candidates[r.index].question
	}
	return out
}

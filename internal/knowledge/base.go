// Package knowledge holds the static question/answer knowledge base and the
// ordered loader strategies that produce it.
//
// A Base is built once at startup and never mutated, so it is safe to share
// between goroutines without locking.
package knowledge

import (
	"strings"

	domerrors "github.com/ngspreakleap/kalyan-linebot-go/internal/errors"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/textnorm"
)

// OutlineKey is the reserved key that holds the outline display text in flat
// key/value sources. It never becomes an Entry.
const OutlineKey = "សំណួរបែប Offline"

// Entry is one question and its stored answer.
type Entry struct {
	Question string `json:"question" yaml:"question" toml:"question"`
	Answer   string `json:"answer" yaml:"answer" toml:"answer"`
}

// Base is an immutable, insertion-ordered knowledge base plus its outline.
type Base struct {
	entries []Entry
	index   map[string]int
	outline string
	source  string
}

// Entries returns a copy of the entries in insertion order.
func (b *Base) Entries() []Entry {
	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Len returns the number of entries.
func (b *Base) Len() int {
	return len(b.entries)
}

// Entry returns the i-th entry in insertion order.
func (b *Base) Entry(i int) Entry {
	return b.entries[i]
}

// Answer returns the stored answer for an exact question key.
func (b *Base) Answer(question string) (string, bool) {
	i, ok := b.index[question]
	if !ok {
		return "", false
	}
	return b.entries[i].Answer, true
}

// Outline returns the outline display text, or "" when the source had none.
func (b *Base) Outline() string {
	return b.outline
}

// Source names where the base was loaded from, e.g. "json:offline/offline.json".
func (b *Base) Source() string {
	return b.source
}

// Builder accumulates entries while preserving first-seen order. A repeated
// key keeps its original position and takes the later answer.
type Builder struct {
	entries []Entry
	index   map[string]int
	outline string
	source  string
}

// NewBuilder starts a base for the named source.
func NewBuilder(source string) *Builder {
	return &Builder{
		index:  make(map[string]int),
		source: source,
	}
}

// Add records a key/value pair from a flat mapping. The reserved outline key
// is routed to the outline instead of the entries.
func (b *Builder) Add(key, value string) error {
	if key == OutlineKey {
		b.outline = value
		return nil
	}
	return b.AddEntry(key, value)
}

// AddEntry records a question/answer pair. A key that normalizes to nothing
// (blank, or only punctuation) could never be matched and is rejected.
func (b *Builder) AddEntry(question, answer string) error {
	if strings.TrimSpace(question) == "" {
		return domerrors.NewValidationError("question", "empty key")
	}
	if textnorm.Normalize(question) == "" {
		return domerrors.NewValidationError(question, "key has no searchable text")
	}
	if i, ok := b.index[question]; ok {
		b.entries[i].Answer = answer
		return nil
	}
	b.index[question] = len(b.entries)
	b.entries = append(b.entries, Entry{Question: question, Answer: answer})
	return nil
}

// SetOutline sets the outline text explicitly.
func (b *Builder) SetOutline(outline string) {
	b.outline = outline
}

// Build freezes the builder. A base without entries is rejected.
func (b *Builder) Build() (*Base, error) {
	if len(b.entries) == 0 {
		return nil, domerrors.ErrEmptyKnowledgeBase
	}
	base := &Base{
		entries: b.entries,
		index:   b.index,
		outline: b.outline,
		source:  b.source,
	}
	b.entries, b.index = nil, nil
	return base, nil
}

// FromEntries builds a base directly, mainly for tests and the builtin data.
func FromEntries(source, outline string, entries []Entry) (*Base, error) {
	b := NewBuilder(source)
	b.SetOutline(outline)
	for _, e := range entries {
		if err := b.AddEntry(e.Question, e.Answer); err != nil {
			return nil, err
		}
	}
	return b.Build()
}

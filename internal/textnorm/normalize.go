// Package textnorm canonicalizes Khmer and Latin text into a comparable form.
//
// Normalize is the single entry point used by every matching path: two inputs
// that normalize to the same string are treated as the same question.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// invisible covers zero-width spaces and joiners, bidi controls, the word
// joiner, the BOM and the variation selectors.
var invisible = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x200B, Hi: 0x200F, Stride: 1},
		{Lo: 0x202A, Hi: 0x202E, Stride: 1},
		{Lo: 0x2060, Hi: 0x2060, Stride: 1},
		{Lo: 0xFE00, Hi: 0xFE0F, Stride: 1},
		{Lo: 0xFEFF, Hi: 0xFEFF, Stride: 1},
	},
}

// punctuation is removed outright rather than replaced with a space, so
// "principal's" and "principals" compare equal.
var punctuation = map[rune]struct{}{
	'។': {}, '៕': {}, '៖': {},
	',': {}, '.': {}, '!': {}, '?': {}, '~': {}, '-': {}, '_': {}, '/': {}, '\\': {},
	'(': {}, ')': {}, '[': {}, ']': {}, '{': {}, '}': {},
	'«': {}, '»': {}, '“': {}, '”': {}, '‘': {}, '’': {}, '"': {}, '\'': {}, '`': {},
	'‐': {}, '‑': {}, '‒': {}, '–': {}, '—': {}, '―': {},
}

var (
	removeInvisible   = runes.Remove(runes.In(invisible))
	removePunctuation = runes.Remove(runes.Predicate(isPunctuation))
	mapKhmerDigits    = runes.Map(khmerDigitToASCII)
)

func isPunctuation(r rune) bool {
	_, ok := punctuation[r]
	return ok
}

func khmerDigitToASCII(r rune) rune {
	if r >= '០' && r <= '៩' {
		return '0' + (r - '០')
	}
	return r
}

// Normalize returns the canonical form of text: trimmed, lower-cased, free of
// invisible code points and punctuation, Khmer digits mapped to ASCII,
// whitespace collapsed to single spaces and composed to NFC.
//
// Normalize is idempotent. Input made only of whitespace, punctuation or
// invisible characters normalizes to "".
func Normalize(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return ""
	}

	// Chains keep per-use buffers, so build one per call.
	t := transform.Chain(removeInvisible, mapKhmerDigits, removePunctuation)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}

	// Collapse after punctuation removal too: "a - b" must not leave a double space.
	out = collapseSpaces(out)
	return norm.NFC.String(out)
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Tokens splits normalized text on whitespace.
func Tokens(s string) []string {
	return strings.Fields(s)
}

package textnorm

import "strings"

// stopwords are Khmer question particles and politeness markers that carry
// no lookup signal ("what", "or not", "please", ...).
var stopwords = map[string]struct{}{
	"តើ":    {},
	"ទេ":    {},
	"មែនទេ": {},
	"អី":    {},
	"អ្វី":  {},
	"ឬ":     {},
	"ញ៉ាំ":  {},
	"ឬអត់":  {},
	"សូម":   {},
}

// IsStopword reports whether a normalized token is a stopword.
func IsStopword(token string) bool {
	_, ok := stopwords[token]
	return ok
}

// StripStopwords drops stopword tokens from normalized text. When every token
// is a stopword the input is returned unchanged so a bare particle still
// matches something.
func StripStopwords(s string) string {
	tokens := Tokens(s)
	kept := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if !IsStopword(tok) {
			kept = append(kept, tok)
		}
	}
	if len(kept) == 0 {
		return s
	}
	return strings.Join(kept, " ")
}

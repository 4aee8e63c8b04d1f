// Package similarity provides lexical similarity scores between normalized
// strings. Every score is in [0, 1], symmetric and deterministic.
package similarity

// DefaultN is the character window used for n-gram comparison. Trigrams are
// robust to small typos and need no word boundaries, which Khmer lacks.
const DefaultN = 3

// Set is a set of n-grams.
type Set map[string]struct{}

// NGrams returns the set of overlapping rune windows of length n. A string
// shorter than n is its own single gram; the empty string has no grams.
func NGrams(s string, n int) Set {
	if s == "" {
		return Set{}
	}
	r := []rune(s)
	if n <= 0 || len(r) < n {
		return Set{s: {}}
	}

	grams := make(Set, len(r)-n+1)
	for i := 0; i+n <= len(r); i++ {
		grams[string(r[i:i+n])] = struct{}{}
	}
	return grams
}

// Jaccard returns |a ∩ b| / |a ∪ b|. Two empty sets are identical.
func Jaccard(a, b Set) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for g := range small {
		if _, ok := large[g]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// NGramJaccard compares two normalized strings by trigram overlap.
func NGramJaccard(a, b string) float64 {
	return Jaccard(NGrams(a, DefaultN), NGrams(b, DefaultN))
}

// TokenJaccard compares two token lists as sets.
func TokenJaccard(a, b []string) float64 {
	return Jaccard(tokenSet(a), tokenSet(b))
}

func tokenSet(tokens []string) Set {
	s := make(Set, len(tokens))
	for _, t := range tokens {
		s[t] = struct{}{}
	}
	return s
}

package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"whitespace only", " \t\n ", ""},
		{"punctuation only", "?!។៕--", ""},
		{"latin case and punctuation", "What IS the   Principal's Name??", "what is the principals name"},
		{"khmer digits", "ឆ្នាំ ២០២៤", "ឆ្នាំ 2024"},
		{"zero width space", "សាលា\u200bរៀន", "សាលារៀន"},
		{"bidi and variation selectors", "\u202aabc\u202c\ufe0f", "abc"},
		{"dash between words collapses", "grade - 12", "grade 12"},
		{"khmer sentence end", "តើសាលាបើកម៉ោងប៉ុន្មាន?", "តើសាលាបើកម៉ោងប៉ុន្មាន"},
		{"quotes of both scripts", "«ល្អ» “good”", "ល្អ good"},
		{"nfc composition", "e\u0301cole", "\u00e9cole"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"What IS the   Principal's Name??",
		"តើ\u200bសាលា\u200bមាន\u200bគ្រូ ប៉ុន្មាន\u200bនាក់?",
		"a - b -- c",
		"  ០១២  ៣ ",
		"\u200b\u200c",
		"Ｆｕｌｌ width ＡＢＣ",
		"é İstanbul",
	}

	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestNormalize_CaseAndDigitInvariance(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Normalize("abc"), Normalize("ABC"))
	assert.Equal(t, Normalize("012"), Normalize("០១២"))
}

func TestStripStopwords(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no stopwords", "school hours", "school hours"},
		{"leading particle", "តើ សាលា បើក", "សាលា បើក"},
		{"trailing particle", "សាលា បើក ទេ", "សាលា បើក"},
		{"only stopwords kept", "តើ ទេ", "តើ ទេ"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, StripStopwords(tt.in))
		})
	}
}

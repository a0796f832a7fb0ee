// Package evaluation derives readability and speed metrics from provider
// outcomes and compares them across providers.
package evaluation

import (
	"strings"
	"unicode"
)

// Scorer computes reading-ease and grade-level scores for a text.
type Scorer interface {
	// Score returns ok=false when the text cannot be scored.
	Score(text string) (readingEase, grade float64, ok bool)
}

// FleschScorer implements Flesch reading ease and Flesch-Kincaid grade
// with a vowel-group syllable estimate.
type FleschScorer struct{}

// Score implements Scorer.
func (FleschScorer) Score(text string) (float64, float64, bool) {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0, 0, false
	}

	syllables := 0
	for _, w := range words {
		syllables += countSyllables(w)
	}

	wps := float64(len(words)) / float64(countSentences(text))
	spw := float64(syllables) / float64(len(words))

	ease := 206.835 - 1.015*wps - 84.6*spw
	grade := 0.39*wps + 11.8*spw - 15.59
	return ease, grade, true
}

// countSentences counts runs of '.', '!' or '?' that close a non-empty
// stretch of text, plus a trailing unterminated stretch. Never below 1.
func countSentences(text string) int {
	n := 0
	pending := false
	for _, r := range text {
		switch {
		case isTerminator(r):
			if pending {
				n++
				pending = false
			}
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			pending = true
		}
	}
	if pending {
		n++
	}
	return max(n, 1)
}

// countTerminators is the degraded sentence count: every '.', '!' and '?'.
func countTerminators(text string) int {
	n := 0
	for _, r := range text {
		if isTerminator(r) {
			n++
		}
	}
	return max(n, 1)
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func countSyllables(word string) int {
	var b strings.Builder
	for _, r := range strings.ToLower(word) {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	w := b.String()
	if w == "" {
		return 0
	}

	count := 0
	prevVowel := false
	for i := 0; i < len(w); i++ {
		v := isVowel(w[i])
		if v && !prevVowel {
			count++
		}
		prevVowel = v
	}

	// silent trailing e, except consonant+"le" as in "table"
	if n := len(w); n > 2 && w[n-1] == 'e' && !isVowel(w[n-2]) {
		consonantLE := w[n-2] == 'l' && !isVowel(w[n-3])
		if !consonantLE && count > 1 {
			count--
		}
	}
	return max(count, 1)
}

func isVowel(c byte) bool {
	switch c {
	case 'a', 'e', 'i', 'o', 'u', 'y':
		return true
	}
	return false
}

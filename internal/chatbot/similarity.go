package chatbot

import (
	"strings"
	"unicode/utf8"
)

// Similarity returns the Jaccard overlap of the lower-cased word sets of a
// and b, in [0,1]. Two empty inputs score 0.
func Similarity(a, b string) float64 {
	wordsA := wordSet(a)
	wordsB := wordSet(b)

	union := len(wordsA)
	intersection := 0
	for word := range wordsB {
		if _, ok := wordsA[word]; ok {
			intersection++
			continue
		}
		union++
	}
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func wordSet(text string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		set[field] = struct{}{}
	}
	return set
}

// sharesSentence reports whether a and b contain an identical period-delimited
// fragment longer than minLen runes.
func sharesSentence(a, b string, minLen int) bool {
	fragments := sentenceSet(a, minLen)
	if len(fragments) == 0 {
		return false
	}
	for fragment := range sentenceSet(b, minLen) {
		if _, ok := fragments[fragment]; ok {
			return true
		}
	}
	return false
}

func sentenceSet(text string, minLen int) map[string]struct{} {
	set := make(map[string]struct{})
	for _, fragment := range strings.Split(text, ".") {
		fragment = strings.TrimSpace(fragment)
		if utf8.RuneCountInString(fragment) > minLen {
			set[fragment] = struct{}{}
		}
	}
	return set
}

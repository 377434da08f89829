// Package textmatch provides text normalization and layered near-duplicate
// detection for memory facts: exact, containment, Jaccard and Levenshtein
// checks in increasing cost order.
package textmatch

import "strings"

// Normalize returns the canonical comparison form of a string: trimmed,
// internal whitespace runs collapsed to a single space, trailing
// punctuation runs (".", ",", ";") stripped, lower-cased. Idempotent.
func Normalize(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.TrimRight(s, ".,; ")
	return strings.ToLower(s)
}

// tokenize splits a normalized string into comparison tokens, dropping
// tokens of length <= 2 (articles, prepositions, transcription noise).
func tokenize(normalized string) []string {
	fields := strings.Fields(normalized)
	out := fields[:0]
	for _, f := range fields {
		if len(f) > 2 {
			out = append(out, f)
		}
	}
	return out
}

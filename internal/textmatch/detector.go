package textmatch

import (
	"strings"
	"unicode/utf8"
)

const (
	// DefaultThreshold is the inclusive similarity score at or above which
	// two strings are considered the same fact.
	DefaultThreshold = 0.85

	// DefaultMaxLevenshteinLen gates the quadratic edit-distance check:
	// it only runs when both normalized strings are shorter than this,
	// measured in runes.
	DefaultMaxLevenshteinLen = 100
)

// Match is the outcome of a duplicate check. When Duplicate is true,
// Similarity holds the score of the triggering rule and MatchedText the
// existing item that matched.
type Match struct {
	Duplicate   bool    `json:"duplicate"`
	Similarity  float64 `json:"similarity,omitempty"`
	MatchedText string  `json:"matchedText,omitempty"`
}

// Detector decides whether a candidate string is a near-duplicate of any
// string in a set. The zero value is not usable; construct with NewDetector.
type Detector struct {
	Threshold         float64
	MaxLevenshteinLen int
}

// NewDetector returns a Detector with the default threshold and length gate.
func NewDetector() *Detector {
	return &Detector{
		Threshold:         DefaultThreshold,
		MaxLevenshteinLen: DefaultMaxLevenshteinLen,
	}
}

// IsDuplicate checks candidate against each existing item in order and
// returns on the first item that triggers any rule. First match wins; this
// is a deliberate contract, not an artifact of loop order. Later items are
// never consulted once an earlier one matches.
//
// Rules per item, in increasing cost order:
//  1. exact equality after normalization (similarity 1.0)
//  2. containment: one string contains the other, scored min(len)/max(len)
//  3. Jaccard token-set similarity
//  4. Levenshtein similarity, only when both strings are short enough
func (d *Detector) IsDuplicate(existing []string, candidate string) Match {
	cand := Normalize(candidate)

	for _, item := range existing {
		norm := Normalize(item)

		if norm == cand {
			return Match{Duplicate: true, Similarity: 1.0, MatchedText: item}
		}

		if len(norm) > 0 && len(cand) > 0 &&
			(strings.Contains(norm, cand) || strings.Contains(cand, norm)) {
			shorter, longer := len(norm), len(cand)
			if shorter > longer {
				shorter, longer = longer, shorter
			}
			sim := float64(shorter) / float64(longer)
			if sim >= d.Threshold {
				return Match{Duplicate: true, Similarity: sim, MatchedText: item}
			}
		}

		if sim := JaccardSimilarity(norm, cand); sim >= d.Threshold {
			return Match{Duplicate: true, Similarity: sim, MatchedText: item}
		}

		if utf8.RuneCountInString(norm) < d.MaxLevenshteinLen && utf8.RuneCountInString(cand) < d.MaxLevenshteinLen {
			if sim := LevenshteinSimilarity(norm, cand); sim >= d.Threshold {
				return Match{Duplicate: true, Similarity: sim, MatchedText: item}
			}
		}
	}
	return Match{}
}

// Deduplicate folds over items keeping the first occurrence of every fact
// under the duplicate rule. Relative order of kept items matches their
// first appearance in the input.
func (d *Detector) Deduplicate(items []string) []string {
	kept := make([]string, 0, len(items))
	for _, item := range items {
		if m := d.IsDuplicate(kept, item); !m.Duplicate {
			kept = append(kept, item)
		}
	}
	return kept
}

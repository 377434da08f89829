package textmatch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsDuplicateExactAfterNormalization(t *testing.T) {
	d := NewDetector()

	m := d.IsDuplicate([]string{"trabajo en ventas"}, "Trabajo en Ventas.")
	require.True(t, m.Duplicate)
	assert.Equal(t, 1.0, m.Similarity)
	assert.Equal(t, "trabajo en ventas", m.MatchedText)
}

func TestIsDuplicateSelf(t *testing.T) {
	d := NewDetector()
	for _, s := range []string{"hola", "le gusta el café por la mañana", "x"} {
		m := d.IsDuplicate([]string{s}, s)
		require.True(t, m.Duplicate, "self-duplicate for %q", s)
		assert.Equal(t, 1.0, m.Similarity)
	}
}

func TestIsDuplicateContainment(t *testing.T) {
	d := NewDetector()

	// 18/20 = 0.9: truncated repeat above threshold.
	long := "abcdefghijklmnopqrst"
	short := long[:18]
	m := d.IsDuplicate([]string{long}, short)
	require.True(t, m.Duplicate)
	assert.InDelta(t, 0.9, m.Similarity, 1e-9)

	// 10/20 = 0.5: contained but too short to count as the same fact.
	m = d.IsDuplicate([]string{long}, long[:10])
	assert.False(t, m.Duplicate)
}

func TestIsDuplicateJaccardThresholdInclusive(t *testing.T) {
	d := NewDetector()

	shared := make([]string, 17)
	for i := range shared {
		shared[i] = "palabra" + string(rune('a'+i)) + "x"
	}
	candidate := strings.Join(shared, " ")

	// Reversed order plus three extra tokens: no containment, strings are
	// long enough to skip the Levenshtein gate, Jaccard is exactly 17/20.
	reversed := make([]string, len(shared))
	for i, s := range shared {
		reversed[len(shared)-1-i] = s
	}
	existing := strings.Join(append(reversed, "extrauno", "extrados", "extratres"), " ")

	require.GreaterOrEqual(t, len(existing), DefaultMaxLevenshteinLen)
	require.InDelta(t, 0.85, JaccardSimilarity(Normalize(existing), Normalize(candidate)), 1e-9)

	m := d.IsDuplicate([]string{existing}, candidate)
	require.True(t, m.Duplicate)
	assert.InDelta(t, 0.85, m.Similarity, 1e-9)
}

func TestIsDuplicateJaccardJustBelowThreshold(t *testing.T) {
	d := NewDetector()

	shared := make([]string, 16)
	for i := range shared {
		shared[i] = "palabra" + string(rune('a'+i)) + "x"
	}
	candidate := strings.Join(shared, " ")

	reversed := make([]string, len(shared))
	for i, s := range shared {
		reversed[len(shared)-1-i] = s
	}
	existing := strings.Join(append(reversed, "extrauno", "extrados", "extratres"), " ")

	// 16/19 ≈ 0.842 stays below the inclusive 0.85 boundary.
	require.Less(t, JaccardSimilarity(Normalize(existing), Normalize(candidate)), 0.85)
	assert.False(t, d.IsDuplicate([]string{existing}, candidate).Duplicate)
}

func TestIsDuplicateLevenshteinTypo(t *testing.T) {
	d := NewDetector()

	// One substitution over 24 characters: 23/24 ≈ 0.958.
	existing := "le gusta el cafe cargado"
	candidate := "le gusta el cafe cargida"
	m := d.IsDuplicate([]string{existing}, candidate)
	require.True(t, m.Duplicate)
	assert.Greater(t, m.Similarity, 0.9)
}

func TestIsDuplicateLevenshteinGateSkipsLongStrings(t *testing.T) {
	d := NewDetector()

	// Two long strings, one substitution apart but with no token overlap
	// computable (single giant token); over the gate the edit-distance rule
	// never runs, so they are not duplicates.
	a := strings.Repeat("a", 120)
	b := strings.Repeat("a", 119) + "b"
	assert.False(t, d.IsDuplicate([]string{a}, b).Duplicate)

	// Under the gate the same shape is caught.
	a = strings.Repeat("a", 40)
	b = strings.Repeat("a", 39) + "b"
	assert.True(t, d.IsDuplicate([]string{a}, b).Duplicate)
}

func TestIsDuplicateFirstMatchWins(t *testing.T) {
	d := NewDetector()

	// Both items match the candidate; the earlier, weaker containment match
	// is reported instead of the later exact one.
	existing := []string{"le gusta el cafes", "le gusta el cafe"}
	m := d.IsDuplicate(existing, "le gusta el cafe")
	require.True(t, m.Duplicate)
	assert.Equal(t, existing[0], m.MatchedText)
	assert.Less(t, m.Similarity, 1.0)
}

func TestIsDuplicateEmptySet(t *testing.T) {
	d := NewDetector()
	assert.False(t, d.IsDuplicate(nil, "cualquier cosa").Duplicate)
}

func TestDeduplicate(t *testing.T) {
	d := NewDetector()

	in := []string{
		"trabaja en ventas",
		"Trabaja en Ventas.",
		"le gusta el café",
		"trabaja en  ventas",
		"prefiere reuniones por la tarde",
	}
	got := d.Deduplicate(in)
	assert.Equal(t, []string{
		"trabaja en ventas",
		"le gusta el café",
		"prefiere reuniones por la tarde",
	}, got)
}

func TestDeduplicateInvariant(t *testing.T) {
	d := NewDetector()

	in := []string{
		"revisar informe mensual",
		"revisar el informe mensual",
		"llamar al cliente nuevo",
		"llamar cliente nuevo",
		"preparar presupuesto anual",
		"preparar presupuesto anual.",
	}
	out := d.Deduplicate(in)

	assert.LessOrEqual(t, len(out), len(in))
	for i, a := range out {
		for _, b := range out[i+1:] {
			assert.False(t, d.IsDuplicate([]string{a}, b).Duplicate,
				"kept pair still duplicate: %q / %q", a, b)
		}
	}
	// Kept items preserve first-occurrence order.
	lastIdx := -1
	for _, kept := range out {
		for j, orig := range in {
			if orig == kept {
				assert.Greater(t, j, lastIdx)
				lastIdx = j
				break
			}
		}
	}
}

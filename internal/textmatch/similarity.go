package textmatch

// JaccardSimilarity computes token-set overlap between two normalized
// strings: |intersection| / |union| over whitespace tokens longer than two
// characters. Returns 0 when the union is empty.
func JaccardSimilarity(a, b string) float64 {
	tokensA := tokenize(a)
	tokensB := tokenize(b)

	setA := make(map[string]struct{}, len(tokensA))
	for _, t := range tokensA {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(tokensB))
	for _, t := range tokensB {
		setB[t] = struct{}{}
	}

	intersection := 0
	for t := range setB {
		if _, ok := setA[t]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// LevenshteinSimilarity computes 1 - editDistance/max(len) over the runes
// of the two strings: identical strings score 1.0, entirely different
// strings approach 0. An accented substitution ("cafe" vs "café") counts as
// a single edit. The full DP matrix is quadratic; callers gate on string
// length before invoking.
func LevenshteinSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	ra, rb := []rune(a), []rune(b)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	if maxLen == 0 {
		return 1.0
	}
	dist := levenshteinDistance(ra, rb)
	return 1.0 - float64(dist)/float64(maxLen)
}

// levenshteinDistance is the classic unit-cost edit distance
// (insert/delete/substitute) computed over a full matrix.
func levenshteinDistance(a, b []rune) int {
	la, lb := len(a), len(b)
	matrix := make([][]int, la+1)
	for i := range matrix {
		matrix[i] = make([]int, lb+1)
		matrix[i][0] = i
	}
	for j := 0; j <= lb; j++ {
		matrix[0][j] = j
	}

	for i := 1; i <= la; i++ {
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			del := matrix[i-1][j] + 1
			ins := matrix[i][j-1] + 1
			sub := matrix[i-1][j-1] + cost
			min := del
			if ins < min {
				min = ins
			}
			if sub < min {
				min = sub
			}
			matrix[i][j] = min
		}
	}
	return matrix[la][lb]
}

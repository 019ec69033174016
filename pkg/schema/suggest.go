package schema

// suggestThreshold is the minimum similarity for a "did you mean" hint.
const suggestThreshold = 0.75

// Suggest returns the known attribute name closest to an unrecognized
// header, compared after header normalization. It returns "" when nothing
// is similar enough.
func (r *Registry) Suggest(header string) string {
	target := normalizeHeader(header)
	if target == "" {
		return ""
	}

	best := ""
	bestScore := 0.0
	for key, idx := range r.byName {
		score := similarity(target, key)
		name := r.descs[idx].Name
		if score > bestScore || (score == bestScore && name < best) {
			best = name
			bestScore = score
		}
	}
	if bestScore < suggestThreshold {
		return ""
	}
	return best
}

// levenshteinDistance computes the Levenshtein edit distance between two strings.
// This is the minimum number of single-character edits (insertions, deletions,
// or substitutions) required to transform string a into string b.
func levenshteinDistance(a, b string) int {
	aRunes := []rune(a)
	bRunes := []rune(b)
	aLen := len(aRunes)
	bLen := len(bRunes)

	if aLen == 0 {
		return bLen
	}
	if bLen == 0 {
		return aLen
	}

	// Two rows instead of a full matrix; the shorter string is the inner loop.
	if aLen > bLen {
		aRunes, bRunes = bRunes, aRunes
		aLen, bLen = bLen, aLen
	}

	prevRow := make([]int, aLen+1)
	currRow := make([]int, aLen+1)
	for i := 0; i <= aLen; i++ {
		prevRow[i] = i
	}

	for j := 1; j <= bLen; j++ {
		currRow[0] = j
		for i := 1; i <= aLen; i++ {
			cost := 1
			if aRunes[i-1] == bRunes[j-1] {
				cost = 0
			}
			currRow[i] = min(prevRow[i]+1, currRow[i-1]+1, prevRow[i-1]+cost)
		}
		prevRow, currRow = currRow, prevRow
	}

	return prevRow[aLen]
}

// similarity computes a normalized similarity score between two strings.
// Returns a value between 0.0 (completely different) and 1.0 (identical).
// Formula: 1.0 - (levenshteinDistance(a, b) / max(len(a), len(b)))
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}

	maxLen := max(len([]rune(a)), len([]rune(b)))
	if maxLen == 0 {
		return 1.0
	}

	return 1.0 - float64(levenshteinDistance(a, b))/float64(maxLen)
}

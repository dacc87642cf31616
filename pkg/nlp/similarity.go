package nlp

import "math"

// Similarity scores two utterances in [0,1]: exact match, containment ratio,
// otherwise normalized Levenshtein distance over runes.
func Similarity(text1, text2 string) float64 {
	norm1 := []rune(comparable(text1))
	norm2 := []rune(comparable(text2))

	if len(norm1) == 0 && len(norm2) == 0 {
		return 0.0
	}
	if string(norm1) == string(norm2) {
		return 1.0
	}

	if containsRunes(norm1, norm2) || containsRunes(norm2, norm1) {
		shorter, longer := len(norm1), len(norm2)
		if shorter > longer {
			shorter, longer = longer, shorter
		}
		return float64(shorter) / float64(longer)
	}

	distance := levenshteinDistance(norm1, norm2)
	maxLen := math.Max(float64(len(norm1)), float64(len(norm2)))

	return math.Max(0, 1.0-(float64(distance)/maxLen))
}

func containsRunes(haystack, needle []rune) bool {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return false
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func levenshteinDistance(s1, s2 []rune) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	prev := make([]int, len(s2)+1)
	curr := make([]int, len(s2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(s1); i++ {
		curr[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 0
			if s1[i-1] != s2[j-1] {
				cost = 1
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(s2)]
}

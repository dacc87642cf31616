package recognition

import (
	"sort"
	"strings"
	"unicode"

	"eatech-voice/pkg/nlp"
)

// DefaultWakeSimilarity is the minimum similarity for a near-miss transcript
// of a wake phrase ("hey e tech") to count.
const DefaultWakeSimilarity = 0.85

// WakeDetector finds configured wake phrases in transcripts.
type WakeDetector struct {
	phrases    [][]string
	similarity float64
}

func NewWakeDetector(phrases []string, similarity float64) *WakeDetector {
	w := &WakeDetector{similarity: similarity}
	for _, p := range phrases {
		if toks := wakeTokens(p); len(toks) > 0 {
			w.phrases = append(w.phrases, toks)
		}
	}
	sort.SliceStable(w.phrases, func(i, j int) bool {
		return len(w.phrases[i]) > len(w.phrases[j])
	})
	return w
}

// Detect looks for a wake phrase in text. When one is found it returns the
// text with the phrase removed and the canonical phrase.
func (w *WakeDetector) Detect(text string) (rest, phrase string, found bool) {
	words := strings.Fields(text)
	keys := make([]string, len(words))
	for i, word := range words {
		keys[i] = wakeKey(word)
	}

	for _, p := range w.phrases {
		if i, n, ok := findTokens(keys, p); ok {
			return joinWithout(words, i, n), strings.Join(p, " "), true
		}
	}
	if w.similarity <= 0 {
		return text, "", false
	}

	for _, p := range w.phrases {
		target := strings.Join(p, " ")
		for n := len(p); n <= len(p)+1; n++ {
			for i := 0; i+n <= len(keys); i++ {
				window := strings.Join(keys[i:i+n], " ")
				if nlp.Similarity(window, target) >= w.similarity {
					return joinWithout(words, i, n), target, true
				}
			}
		}
	}
	return text, "", false
}

func findTokens(keys, phrase []string) (int, int, bool) {
	for i := 0; i+len(phrase) <= len(keys); i++ {
		match := true
		for j, tok := range phrase {
			if keys[i+j] != tok {
				match = false
				break
			}
		}
		if match {
			return i, len(phrase), true
		}
	}
	return 0, 0, false
}

func joinWithout(words []string, i, n int) string {
	out := make([]string, 0, len(words)-n)
	out = append(out, words[:i]...)
	out = append(out, words[i+n:]...)
	return strings.TrimLeftFunc(strings.Join(out, " "), func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
}

func wakeTokens(phrase string) []string {
	var out []string
	for _, w := range strings.Fields(phrase) {
		if k := wakeKey(w); k != "" {
			out = append(out, k)
		}
	}
	return out
}

func wakeKey(word string) string {
	return strings.ToLower(strings.TrimFunc(word, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}))
}

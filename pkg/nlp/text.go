package nlp

import (
	"strings"
	"unicode"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// cleanText lowercases and composes text, replaces punctuation with spaces and
// collapses whitespace. Runes listed in keep are isolated as their own tokens.
// A '.' or ',' between two digits is kept as a decimal point.
func cleanText(text string, keep map[rune]string) string {
	runes := []rune(norm.NFC.String(strings.ToLower(text)))

	var b strings.Builder
	b.Grow(len(runes))
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r):
			b.WriteRune(r)
		case (r == '.' || r == ',') && i > 0 && i+1 < len(runes) &&
			unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1]):
			b.WriteRune('.')
		default:
			if _, ok := keep[r]; ok {
				b.WriteRune(' ')
				b.WriteRune(r)
			}
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// foldDiacritics removes combining marks so "möchte" and "mochte" compare equal.
func foldDiacritics(text string) string {
	t := transform.Chain(norm.NFD, transform.RemoveFunc(isMn), norm.NFC)
	result, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return result
}

func isMn(r rune) bool {
	return unicode.Is(unicode.Mn, r)
}

// comparable reduces text to the form used for fuzzy similarity.
func comparable(text string) string {
	return foldDiacritics(cleanText(text, nil))
}

func tokenize(text string) []string {
	return strings.Fields(text)
}

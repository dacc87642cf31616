package nlp

import "strings"

// maxPhrasePasses bounds phrase substitution beyond one pass per token.
// No phrase grows its input, so the tables reach a fixed point before this.
const maxPhrasePasses = 8

// Normalizer rewrites raw transcripts into the canonical form the pattern
// tables are written against.
type Normalizer struct {
	folds   map[string]map[string]string
	symbols map[string]map[rune]string
	phrases map[string][]phrase
}

func NewNormalizer() *Normalizer {
	n := &Normalizer{
		folds:   swissFolds,
		symbols: symbolWords,
		phrases: make(map[string][]phrase, len(domainPhrases)),
	}
	for lang, list := range domainPhrases {
		n.phrases[lang] = append(append([]phrase{}, brandPhrases...), list...)
	}
	return n
}

// Normalize folds Swiss dialect spellings (only for *-CH languages), spells
// out symbols and substitutes brand, currency and domain phrases.
// Normalize(Normalize(x)) == Normalize(x).
func (n *Normalizer) Normalize(text, language string) string {
	base := BaseLanguage(language)
	symbols := n.symbols[base]
	if symbols == nil {
		symbols = n.symbols["en"]
	}

	tokens := tokenize(cleanText(text, symbols))
	if len(tokens) == 0 {
		return ""
	}

	if IsSwissDialect(language) {
		tokens = n.fold(tokens, base)
	}

	tokens = n.spellSymbols(tokens, symbols)

	list, ok := n.phrases[base]
	if !ok {
		list = brandPhrases
	}
	for pass := 0; pass < len(tokens)+maxPhrasePasses; pass++ {
		var changed bool
		tokens, changed = substitute(tokens, list)
		if !changed {
			break
		}
	}

	return strings.Join(tokens, " ")
}

func (n *Normalizer) fold(tokens []string, base string) []string {
	table, ok := n.folds[base]
	if !ok {
		return tokens
	}
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if v, ok := table[tok]; ok {
			out = append(out, tokenize(v)...)
			continue
		}
		out = append(out, tok)
	}
	return out
}

func (n *Normalizer) spellSymbols(tokens []string, symbols map[rune]string) []string {
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		r := []rune(tok)
		if len(r) == 1 {
			if word, ok := symbols[r[0]]; ok {
				out = append(out, tokenize(word)...)
				continue
			}
		}
		out = append(out, tok)
	}
	return out
}

// substitute replaces the first matching phrase at each position, left to right.
func substitute(tokens []string, list []phrase) ([]string, bool) {
	out := make([]string, 0, len(tokens))
	changed := false
	for i := 0; i < len(tokens); {
		p, ok := phraseAt(tokens, i, list)
		if !ok {
			out = append(out, tokens[i])
			i++
			continue
		}
		out = append(out, p.to...)
		i += len(p.from)
		if !equalTokens(p.from, p.to) {
			changed = true
		}
	}
	return out, changed
}

func phraseAt(tokens []string, i int, list []phrase) (phrase, bool) {
	for _, p := range list {
		if i+len(p.from) > len(tokens) {
			continue
		}
		if equalTokens(tokens[i:i+len(p.from)], p.from) {
			return p, true
		}
	}
	return phrase{}, false
}

func equalTokens(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

package nlp

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

const (
	// DefaultThreshold applies when the caller passes a negative threshold.
	DefaultThreshold = 0.7
	// MaxSuggestions bounds the clarification list.
	MaxSuggestions = 3
	// minSuggestionScore drops examples that share almost nothing with the input.
	minSuggestionScore = 0.25
)

var articles = map[string][]string{
	"de": {"der", "die", "das", "den", "dem", "des", "ein", "eine", "einen", "einem", "einer", "meine", "meinen", "mein"},
	"fr": {"le", "la", "les", "l", "un", "une", "des", "du", "de", "d", "mon", "ma", "mes"},
	"it": {"il", "lo", "la", "i", "gli", "le", "l", "un", "uno", "una", "del", "della", "dei", "delle", "mio", "mia", "miei"},
	"en": {"the", "a", "an", "some", "my"},
}

// swissArticles are dialect articles that survive folding ("es bier", "d karte").
var swissArticles = map[string][]string{
	"de": {"es", "e", "ä", "d", "de", "s"},
}

var politeness = map[string][]string{
	"de": {"bitte", "bitte schön", "bitteschön", "danke"},
	"fr": {"s il vous plaît", "s il vous plait", "s il te plaît", "s il te plait", "svp", "merci"},
	"it": {"per favore", "per piacere", "grazie"},
	"en": {"please", "thanks", "thank you"},
}

// Resolver matches normalized utterances against the pattern tables.
type Resolver struct {
	patterns *PatternSet
}

func NewResolver(patterns *PatternSet) *Resolver {
	return &Resolver{patterns: patterns}
}

// CombineConfidence merges the recognizer confidence with the specificity of
// the matched template. It is monotone in both arguments.
func CombineConfidence(recognizer, specificity float64) float64 {
	return clamp01(clamp01(recognizer) * (0.7 + 0.3*clamp01(specificity)))
}

// Specificity scores how many declared slots were filled with a value.
func Specificity(filled, declared int) float64 {
	if declared <= 0 {
		return 1.0
	}
	if filled > declared {
		filled = declared
	}
	return 0.6 + 0.4*float64(filled)/float64(declared)
}

// Resolve finds the first template, in priority order, matching the whole
// utterance. Below the threshold the resolution carries suggestions instead
// of being accepted.
func (r *Resolver) Resolve(in Input) Resolution {
	threshold := in.Threshold
	if threshold < 0 {
		threshold = DefaultThreshold
	}
	tokens := r.prepare(in.Text, in.Language)

	res := Resolution{Entities: map[string]string{}}
	if len(tokens) > 0 {
		r.match(&res, tokens, in)
	}

	if res.Matched && res.Confidence >= threshold {
		res.Accepted = true
		return res
	}

	res.Suggestions = r.Suggest(in.Text, in.Language, MaxSuggestions)
	if !res.Matched {
		res.Intent = ""
		res.Entities = map[string]string{}
	}
	return res
}

func (r *Resolver) match(res *Resolution, tokens []string, in Input) {
	base := BaseLanguage(in.Language)
	folded := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		folded[foldDiacritics(tok)] = true
	}

	for _, p := range r.patterns.For(in.Language, in.Context) {
		if excluded(p, folded) {
			continue
		}
		for _, t := range p.Templates {
			captures, ok := t.Match(tokens, in.Language)
			if !ok {
				continue
			}

			filled := 0
			entities := make(map[string]string, len(captures)+len(p.Defaults))
			for name, value := range captures {
				value = cleanEntity(value, in.Language)
				if value == "" {
					continue
				}
				entities[name] = value
				filled++
			}
			for name, value := range p.Defaults {
				if _, ok := entities[name]; !ok {
					entities[name] = value
				}
			}
			if page, ok := entities["page"]; ok {
				if route, _, found := FindRoute(page, base); found {
					entities["route"] = route.Path
					entities["page_id"] = route.ID
				}
			}

			res.Intent = p.Intent
			res.Category = p.Category
			res.Pattern = t.Source
			res.Entities = entities
			res.Dialect = p.Dialect
			res.Matched = true
			res.Confidence = CombineConfidence(in.Confidence, Specificity(filled, len(t.Slots())))
			return
		}
	}
}

func excluded(p CommandPattern, tokens map[string]bool) bool {
	for _, word := range p.Excludes {
		if tokens[word] {
			return true
		}
	}
	return false
}

// prepare tokenizes the utterance and trims courtesy words at either end.
func (r *Resolver) prepare(text, language string) []string {
	tokens := tokenize(cleanText(text, nil))
	base := BaseLanguage(language)

	for changed := true; changed && len(tokens) > 1; {
		changed = false
		for _, p := range politeness[base] {
			words := tokenize(p)
			if len(words) >= len(tokens) {
				continue
			}
			if equalTokens(tokens[len(tokens)-len(words):], words) {
				tokens = tokens[:len(tokens)-len(words)]
				changed = true
			} else if equalTokens(tokens[:len(words)], words) {
				tokens = tokens[len(words):]
				changed = true
			}
		}
	}
	return tokens
}

// cleanEntity strips a leading article from a captured phrase. Numbers are
// left untouched; a value that is only an article is kept as is.
func cleanEntity(value, language string) string {
	value = strings.TrimSpace(value)
	if _, err := strconv.Atoi(value); err == nil {
		return value
	}

	base := BaseLanguage(language)
	words := tokenize(value)
	list := articles[base]
	if IsSwissDialect(language) {
		list = append(append([]string{}, list...), swissArticles[base]...)
	}

	for len(words) > 1 && contains(list, words[0]) {
		words = words[1:]
	}
	return strings.Join(words, " ")
}

func contains(list []string, word string) bool {
	for _, w := range list {
		if w == word {
			return true
		}
	}
	return false
}

// Suggest ranks example utterances by similarity to text. Ties keep category
// priority, then declaration order.
func (r *Resolver) Suggest(text, language string, limit int) []Suggestion {
	if strings.TrimSpace(text) == "" || limit <= 0 {
		return nil
	}

	type candidate struct {
		Suggestion
		rank  int
		order int
	}
	var candidates []candidate
	seen := map[string]bool{}

	for _, p := range r.patterns.For(language, "") {
		for _, ex := range p.Examples {
			key := comparable(ex)
			if seen[key] {
				continue
			}
			seen[key] = true

			score := Similarity(text, ex)
			if score < minSuggestionScore {
				continue
			}
			candidates = append(candidates, candidate{
				Suggestion: Suggestion{
					Text:     ex,
					Intent:   p.Intent,
					Category: string(p.Category),
					Score:    math.Round(score*1000) / 1000,
				},
				rank:  categoryRank(p.Category),
				order: p.order,
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.rank != b.rank {
			return a.rank < b.rank
		}
		return a.order < b.order
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]Suggestion, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.Suggestion)
	}
	return out
}

// Examples lists the example utterances for a language, for help responses.
func (r *Resolver) Examples(language string, limit int) []Suggestion {
	var out []Suggestion
	seen := map[string]bool{}
	for _, p := range r.patterns.For(language, "") {
		if len(p.Examples) == 0 || seen[p.Intent] {
			continue
		}
		seen[p.Intent] = true
		out = append(out, Suggestion{Text: p.Examples[0], Intent: p.Intent, Category: string(p.Category), Score: 1})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

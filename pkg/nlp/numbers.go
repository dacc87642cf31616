package nlp

import (
	"strconv"
	"strings"
)

var numberWords = map[string]map[string]int{
	"de": {
		"null": 0, "ein": 1, "eine": 1, "einen": 1, "eins": 1, "einem": 1, "einer": 1,
		"zwei": 2, "drei": 3, "vier": 4, "fünf": 5, "sechs": 6, "sieben": 7,
		"acht": 8, "neun": 9, "zehn": 10, "elf": 11, "zwölf": 12,
		"dreizehn": 13, "vierzehn": 14, "fünfzehn": 15, "sechzehn": 16,
		"siebzehn": 17, "achtzehn": 18, "neunzehn": 19,
		"zwanzig": 20, "dreissig": 30, "dreißig": 30, "vierzig": 40,
		"fünfzig": 50, "sechzig": 60, "siebzig": 70, "achtzig": 80,
		"neunzig": 90, "hundert": 100,
		"paar": 2, "dutzend": 12,
	},
	"fr": {
		"zéro": 0, "un": 1, "une": 1, "deux": 2, "trois": 3, "quatre": 4,
		"cinq": 5, "six": 6, "sept": 7, "huit": 8, "neuf": 9, "dix": 10,
		"onze": 11, "douze": 12, "treize": 13, "quatorze": 14, "quinze": 15,
		"seize": 16, "vingt": 20, "vingts": 20, "trente": 30, "quarante": 40,
		"cinquante": 50, "soixante": 60, "septante": 70, "huitante": 80,
		"octante": 80, "nonante": 90, "cent": 100, "douzaine": 12,
	},
	"it": {
		"zero": 0, "un": 1, "uno": 1, "una": 1, "due": 2, "tre": 3,
		"quattro": 4, "cinque": 5, "sei": 6, "sette": 7, "otto": 8,
		"nove": 9, "dieci": 10, "undici": 11, "dodici": 12, "tredici": 13,
		"quattordici": 14, "quindici": 15, "sedici": 16, "diciassette": 17,
		"diciotto": 18, "diciannove": 19, "venti": 20, "trenta": 30,
		"quaranta": 40, "cinquanta": 50, "sessanta": 60, "settanta": 70,
		"ottanta": 80, "novanta": 90, "cento": 100, "dozzina": 12,
	},
	"en": {
		"zero": 0, "a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4,
		"five": 5, "six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
		"eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14,
		"fifteen": 15, "sixteen": 16, "seventeen": 17, "eighteen": 18,
		"nineteen": 19, "twenty": 20, "thirty": 30, "forty": 40, "fifty": 50,
		"sixty": 60, "seventy": 70, "eighty": 80, "ninety": 90,
		"hundred": 100, "couple": 2, "dozen": 12,
	},
}

// connectors may sit between the parts of a spoken number ("vingt et un").
var numberConnectors = map[string]bool{
	"und": true, "et": true, "e": true, "and": true,
}

// ParseNumber converts a single token, digits or a number word in the given
// language, to an integer.
func ParseNumber(token, language string) (int, bool) {
	return ParseNumberWords([]string{token}, language)
}

// ParseNumberWords parses a short spoken number spread over several tokens,
// such as "vingt et un", "dix sept" or "twenty one".
func ParseNumberWords(tokens []string, language string) (int, bool) {
	if len(tokens) == 0 {
		return 0, false
	}
	base := BaseLanguage(language)

	total := 0
	last := -1
	for i, tok := range tokens {
		tok = strings.ToLower(tok)
		if numberConnectors[tok] {
			if i == 0 || i == len(tokens)-1 {
				return 0, false
			}
			continue
		}

		v, ok := singleNumber(tok, base)
		if !ok {
			return 0, false
		}

		switch {
		case last < 0:
			total = v
		case v == 100 || (base == "fr" && v == 20 && last < 10):
			total *= v
		case v < last && total%10 == 0:
			total += v
		case last == 10 && v < 10:
			total += v
		default:
			return 0, false
		}
		last = v
	}
	return total, true
}

func singleNumber(tok, base string) (int, bool) {
	if n, err := strconv.Atoi(tok); err == nil && n >= 0 {
		return n, true
	}
	if f, err := strconv.ParseFloat(tok, 64); err == nil && f >= 0 && f == float64(int(f)) {
		return int(f), true
	}

	words, ok := numberWords[base]
	if !ok {
		return 0, false
	}
	if v, ok := words[tok]; ok {
		return v, true
	}

	switch base {
	case "de":
		return compoundGerman(tok, words)
	case "it":
		return compoundItalian(tok, words)
	}
	return 0, false
}

// compoundGerman reads "<unit>und<tens>" words such as "zweiundzwanzig".
func compoundGerman(tok string, words map[string]int) (int, bool) {
	unit, tens, found := strings.Cut(tok, "und")
	if !found {
		return 0, false
	}
	u, ok := words[unit]
	if !ok || u < 1 || u > 9 {
		return 0, false
	}
	t, ok := words[tens]
	if !ok || t < 20 || t > 90 || t%10 != 0 {
		return 0, false
	}
	return t + u, true
}

var italianTens = []struct {
	prefix string
	value  int
}{
	{"novant", 90}, {"ottant", 80}, {"settant", 70}, {"sessant", 60},
	{"cinquant", 50}, {"quarant", 40}, {"trent", 30}, {"vent", 20},
}

// compoundItalian reads fused tens and units such as "ventuno" or "trentadue".
func compoundItalian(tok string, words map[string]int) (int, bool) {
	for _, tens := range italianTens {
		if !strings.HasPrefix(tok, tens.prefix) {
			continue
		}
		rest := strings.TrimPrefix(tok, tens.prefix)
		if rest == "" {
			return 0, false
		}
		if u, ok := words[rest]; ok && u >= 1 && u <= 9 {
			return tens.value + u, true
		}
		// vowel kept before a consonant: venti-due, trenta-tre
		if u, ok := words[rest[1:]]; ok && u >= 1 && u <= 9 {
			return tens.value + u, true
		}
	}
	return 0, false
}

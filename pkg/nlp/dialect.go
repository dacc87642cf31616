package nlp

// swissFolds maps Swiss dialect spellings to the standard tokens used by the
// pattern tables. Values are never keys of the same table, so folding twice
// is the same as folding once.
var swissFolds = map[string]map[string]string{
	"de": {
		// pronouns and verbs
		"i": "ich", "ig": "ich", "mer": "mir",
		"möcht": "möchte", "möchti": "möchte", "wett": "möchte", "hätt": "hätte",
		"wott": "will", "wot": "will", "wänd": "wollen", "chan": "kann", "ha": "habe",
		"gärn": "gerne", "gern": "gerne", "nimm": "nehme",
		"füeg": "füge", "füeged": "füge", "tüe": "tu",
		"bstelle": "bestellen", "bstell": "bestelle", "bstellig": "bestellung",
		"lösch": "lösche", "entfern": "entferne", "abbräche": "abbrechen",
		"gang": "gehe", "gah": "gehe", "göh": "gehe", "zrugg": "zurück",
		"zeig": "zeige", "säg": "sag", "widerhole": "wiederholen", "nomal": "nochmal",
		"ufhöre": "aufhören", "reserviere": "reservieren", "zahle": "zahlen",
		"lääre": "leere", "lär": "leer", "uf": "auf",
		// yes, no
		"jo": "ja", "jä": "ja", "nei": "nein", "nöd": "nicht", "ned": "nicht", "nid": "nicht",
		// articles and numbers
		"en": "einen", "eis": "eins", "zwöi": "zwei", "zwee": "zwei", "zwo": "zwei",
		"drü": "drei", "foif": "fünf", "föif": "fünf", "sächs": "sechs", "sibe": "sieben",
		"nüün": "neun", "zäh": "zehn", "zwölfi": "zwölf",
		// places and things
		"warechorb": "warenkorb", "wägeli": "warenkorb", "chörbli": "warenkorb",
		"spiischarte": "speisekarte", "spiisechartä": "speisekarte", "charte": "karte",
		"rächnig": "rechnung", "rechnig": "rechnung",
		"chällner": "kellner", "chellner": "kellner", "serviertochter": "kellner",
		"persone": "personen", "pärsone": "personen", "tischli": "tisch",
		"hälf": "hilf", "sprach": "sprache",
		// food and drink
		"pomfritt": "pommes", "pommfrit": "pommes", "chäs": "käse", "wy": "wein", "wii": "wein",
		"kafi": "kaffee", "kaffi": "kaffee", "bierli": "bier", "glesli": "glas",
		"choschtet": "kostet", "chostet": "kostet", "wiviel": "wie viel",
		// time
		"hüt": "heute", "morn": "morgen", "znacht": "abendessen",
		"zmittag": "mittagessen", "zmorge": "frühstück",
		// fillers and greetings
		"dezue": "dazu", "drzue": "dazu", "dezu": "dazu", "hinzue": "hinzu",
		"grüezi": "hallo", "hoi": "hallo", "sali": "hallo", "merci": "danke",
		"fränkli": "franken", "stutz": "franken",
	},
	"fr": {
		"natel": "portable", "action": "promotion", "cornet": "sac",
		"bonnard": "super", "adieu": "salut",
	},
	"it": {
		"natel": "cellulare", "azione": "promozione", "posteggio": "parcheggio",
	},
}

// symbolWords spells out symbols in the spoken form of each language.
var symbolWords = map[string]map[rune]string{
	"de": {'%': "prozent", '&': "und", '@': "at", '+': "plus", '€': "euro", '$': "dollar"},
	"fr": {'%': "pour cent", '&': "et", '@': "arobase", '+': "plus", '€': "euros", '$': "dollars"},
	"it": {'%': "percento", '&': "e", '@': "chiocciola", '+': "più", '€': "euro", '$': "dollari"},
	"en": {'%': "percent", '&': "and", '@': "at", '+': "plus", '€': "euros", '$': "dollars"},
}

type phrase struct {
	from []string
	to   []string
}

func phrases(pairs ...string) []phrase {
	out := make([]phrase, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, phrase{from: tokenize(pairs[i]), to: tokenize(pairs[i+1])})
	}
	return out
}

// brandPhrases apply in every language. Recognizers split the brand name in
// many ways.
var brandPhrases = phrases(
	"e tech", "eatech",
	"eat tech", "eatech",
	"ee tech", "eatech",
	"i tech", "eatech",
	"eatec", "eatech",
	"eatek", "eatech",
	"eetech", "eatech",
)

// domainPhrases hold currency shorthand and menu vocabulary per language.
var domainPhrases = map[string][]phrase{
	"de": phrases(
		"chf", "franken",
		"sfr", "franken",
		"fr", "franken",
		"pommes frites", "pommes",
		"coca cola", "cola",
		"cheese burger", "cheeseburger",
		"hamburger", "burger",
	),
	"fr": phrases(
		"chf", "francs",
		"sfr", "francs",
		"fr", "francs",
		"coca cola", "cola",
		"cheese burger", "cheeseburger",
		"hamburger", "burger",
	),
	"it": phrases(
		"chf", "franchi",
		"sfr", "franchi",
		"fr", "franchi",
		"patate fritte", "patatine",
		"coca cola", "cola",
		"cheese burger", "cheeseburger",
		"hamburger", "burger",
	),
	"en": phrases(
		"chf", "francs",
		"sfr", "francs",
		"french fries", "fries",
		"coca cola", "cola",
		"cheese burger", "cheeseburger",
		"hamburger", "burger",
	),
}

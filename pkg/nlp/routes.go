package nlp

// Route is an application page reachable by voice navigation.
type Route struct {
	ID    string
	Path  string
	Names map[string][]string
}

// routeMatchThreshold is the minimum similarity for a spoken page name.
const routeMatchThreshold = 0.6

var defaultRoutes = []Route{
	{ID: "home", Path: "/", Names: map[string][]string{
		"de": {"startseite", "start", "home", "anfang"},
		"fr": {"accueil", "page d accueil", "début"},
		"it": {"home", "pagina iniziale", "inizio"},
		"en": {"home", "start", "homepage"},
	}},
	{ID: "menu", Path: "/menu", Names: map[string][]string{
		"de": {"speisekarte", "karte", "menü", "menu", "angebot"},
		"fr": {"menu", "carte"},
		"it": {"menu", "menù", "carta"},
		"en": {"menu", "food"},
	}},
	{ID: "cart", Path: "/cart", Names: map[string][]string{
		"de": {"warenkorb", "korb"},
		"fr": {"panier"},
		"it": {"carrello"},
		"en": {"cart", "basket"},
	}},
	{ID: "orders", Path: "/orders", Names: map[string][]string{
		"de": {"bestellungen", "bestellung", "meine bestellungen"},
		"fr": {"commandes", "commande", "mes commandes"},
		"it": {"ordini", "ordine", "i miei ordini"},
		"en": {"orders", "order", "my orders"},
	}},
	{ID: "checkout", Path: "/checkout", Names: map[string][]string{
		"de": {"kasse", "bezahlung", "zahlung"},
		"fr": {"caisse", "paiement"},
		"it": {"cassa", "pagamento"},
		"en": {"checkout", "payment"},
	}},
	{ID: "reservations", Path: "/reservations", Names: map[string][]string{
		"de": {"reservierung", "reservation", "reservationen", "tischreservierung"},
		"fr": {"réservation", "réservations"},
		"it": {"prenotazione", "prenotazioni", "riservazione"},
		"en": {"reservation", "reservations", "booking"},
	}},
	{ID: "profile", Path: "/profile", Names: map[string][]string{
		"de": {"profil", "konto", "mein profil"},
		"fr": {"profil", "compte"},
		"it": {"profilo", "account"},
		"en": {"profile", "account"},
	}},
	{ID: "settings", Path: "/settings", Names: map[string][]string{
		"de": {"einstellungen", "optionen"},
		"fr": {"paramètres", "réglages"},
		"it": {"impostazioni"},
		"en": {"settings", "preferences"},
	}},
	{ID: "help", Path: "/help", Names: map[string][]string{
		"de": {"hilfe", "anleitung"},
		"fr": {"aide"},
		"it": {"aiuto", "guida"},
		"en": {"help", "guide"},
	}},
}

// FindRoute maps a spoken page name to a route. Names in the active language
// are tried first, English names as a fallback.
func FindRoute(page, language string) (Route, float64, bool) {
	base := BaseLanguage(language)
	var best Route
	bestScore := 0.0

	for _, lang := range []string{base, "en"} {
		for _, route := range defaultRoutes {
			for _, name := range route.Names[lang] {
				if score := Similarity(page, name); score > bestScore {
					best, bestScore = route, score
				}
			}
		}
		if bestScore >= 1.0 {
			break
		}
	}

	if bestScore < routeMatchThreshold {
		return Route{}, bestScore, false
	}
	return best, bestScore, true
}

// Routes returns the navigable pages.
func Routes() []Route {
	return append([]Route(nil), defaultRoutes...)
}

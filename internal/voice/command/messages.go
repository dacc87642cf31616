package command

import (
	"fmt"
	"strings"

	"eatech-voice/pkg/nlp"
)

// swissGerman holds Swiss German variants of the German catalog.
const swissGerman = "gsw"

var messages = map[string]map[string]string{
	"de": {
		"navigate":               "Ich öffne %s.",
		"navigate_unknown":       "Die Seite %s kenne ich nicht.",
		"go_back":                "Zurück zur vorherigen Seite.",
		"show_menu":              "Hier ist die Speisekarte.",
		"cart_added":             "%d × %s zum Warenkorb hinzugefügt.",
		"cart_removed":           "%s aus dem Warenkorb entfernt.",
		"cart_cleared":           "Der Warenkorb ist jetzt leer.",
		"cart_empty":             "Ihr Warenkorb ist leer.",
		"cart_contents":          "Im Warenkorb: %s. Total %s Franken.",
		"quantity_set":           "Alles klar, %d × %s.",
		"order_empty":            "Ihr Warenkorb ist leer, es gibt nichts zu bestellen.",
		"order_confirm":          "Sie haben %d Artikel für %s Franken. Soll ich die Bestellung abschicken?",
		"order_created":          "Ihre Bestellung %s wurde aufgegeben.",
		"order_discarded":        "Gut, die Bestellung wurde nicht abgeschickt.",
		"order_cancelled":        "Die Bestellung %s wurde storniert.",
		"order_none":             "Ich habe keine Bestellung zum Stornieren gefunden.",
		"payment_set":            "Zahlung mit %s. Soll ich die Bestellung abschicken?",
		"pickup_set":             "Abholung um %s. Soll ich die Bestellung abschicken?",
		"table_selected":         "Sie sitzen an Tisch %d.",
		"price":                  "%s kostet %s Franken.",
		"price_unknown":          "Den Preis für %s habe ich nicht gefunden.",
		"help":                   "Sie können zum Beispiel sagen: %s.",
		"repeat_none":            "Es gibt nichts zu wiederholen.",
		"reservation_ask_guests": "Für wie viele Personen möchten Sie reservieren?",
		"reservation_ask_time":   "Ein Tisch für %d Personen. Um welche Zeit?",
		"reservation_confirm":    "Ein Tisch für %d Personen, %s. Soll ich reservieren?",
		"reservation_done":       "Ihr Tisch ist reserviert, Nummer %s.",
		"reservation_discarded":  "Gut, ich reserviere nichts.",
		"waiter_called":          "Die Bedienung kommt gleich.",
		"bill_ask_method":        "Wie möchten Sie bezahlen?",
		"bill_requested":         "Die Rechnung kommt gleich.",
		"confirm_nothing":        "Es gibt gerade nichts zu bestätigen.",
		"deny_ok":                "In Ordnung.",
		"context_missing":        "Worauf bezieht sich das?",
		"stop_listening":         "Bis später.",
		"language_changed":       "Ich spreche jetzt Deutsch.",
		"language_unknown":       "Die Sprache %s kenne ich nicht.",
		"failure":                "Das hat leider nicht geklappt. Bitte versuchen Sie es noch einmal.",
		"unknown_command":        "Das habe ich nicht verstanden.",
		"clarify":                "Meinten Sie: %s?",
		"clarify_none":           "Das habe ich nicht verstanden. Sagen Sie «Hilfe» für Beispiele.",
		"and":                    "und",
		"or":                     "oder",
		"at":                     "um %s",

		"error_permission-denied": "Ich habe keinen Zugriff auf das Mikrofon.",
		"error_no-microphone":     "Ich finde kein Mikrofon.",
		"error_audio-capture":     "Das Mikrofon liefert keinen Ton.",
		"error_network":           "Die Spracherkennung ist gerade nicht erreichbar.",
		"error_timeout":           "Ich habe nichts gehört.",
		"error_aborted":           "Die Spracheingabe wurde abgebrochen.",
		"error_unknown":           "Bei der Spracheingabe ist ein Fehler aufgetreten.",
	},
	swissGerman: {
		"navigate":               "I mach %s uf.",
		"go_back":                "Zrugg zur vorherige Siite.",
		"show_menu":              "Da isch d Charte.",
		"cart_added":             "%d × %s isch im Warechorb.",
		"cart_removed":           "%s isch usem Warechorb.",
		"cart_cleared":           "De Warechorb isch jetzt läär.",
		"cart_empty":             "Din Warechorb isch läär.",
		"cart_contents":          "Im Warechorb: %s. Total %s Franke.",
		"order_empty":            "Din Warechorb isch läär, es git nüt zum bstelle.",
		"order_confirm":          "Du hesch %d Artikel für %s Franke. Söll i d Bstellig abschicke?",
		"order_created":          "Dini Bstellig %s isch ufgä.",
		"order_discarded":        "Guet, d Bstellig isch nöd abgschickt.",
		"price":                  "%s choschtet %s Franke.",
		"help":                   "Du chasch zum Bispil säge: %s.",
		"reservation_ask_guests": "Für wie vill Lüt wotsch reserviere?",
		"waiter_called":          "D Bedienig chunnt grad.",
		"bill_requested":         "D Rächnig chunnt grad.",
		"stop_listening":         "Bis spöter.",
		"language_changed":       "I red jetzt Schwiizerdütsch.",
		"failure":                "Das het leider nöd klappt. Probier's bitte nomal.",
		"unknown_command":        "Das han i nöd verstande.",
		"clarify":                "Hesch gmeint: %s?",
		"error_timeout":          "I ha nüt ghört.",
	},
	"fr": {
		"navigate":               "J'ouvre %s.",
		"navigate_unknown":       "Je ne connais pas la page %s.",
		"go_back":                "Retour à la page précédente.",
		"show_menu":              "Voici la carte.",
		"cart_added":             "%d × %s ajouté au panier.",
		"cart_removed":           "%s retiré du panier.",
		"cart_cleared":           "Le panier est vide.",
		"cart_empty":             "Votre panier est vide.",
		"cart_contents":          "Dans le panier : %s. Total %s francs.",
		"quantity_set":           "C'est noté, %d × %s.",
		"order_empty":            "Votre panier est vide, il n'y a rien à commander.",
		"order_confirm":          "Vous avez %d articles pour %s francs. Dois-je envoyer la commande ?",
		"order_created":          "Votre commande %s a été passée.",
		"order_discarded":        "D'accord, la commande n'a pas été envoyée.",
		"order_cancelled":        "La commande %s a été annulée.",
		"order_none":             "Je n'ai trouvé aucune commande à annuler.",
		"payment_set":            "Paiement par %s. Dois-je envoyer la commande ?",
		"pickup_set":             "Retrait à %s. Dois-je envoyer la commande ?",
		"table_selected":         "Vous êtes à la table %d.",
		"price":                  "%s coûte %s francs.",
		"price_unknown":          "Je n'ai pas trouvé le prix de %s.",
		"help":                   "Vous pouvez dire par exemple : %s.",
		"repeat_none":            "Il n'y a rien à répéter.",
		"reservation_ask_guests": "Pour combien de personnes souhaitez-vous réserver ?",
		"reservation_ask_time":   "Une table pour %d personnes. À quelle heure ?",
		"reservation_confirm":    "Une table pour %d personnes, %s. Dois-je réserver ?",
		"reservation_done":       "Votre table est réservée, numéro %s.",
		"reservation_discarded":  "D'accord, je ne réserve rien.",
		"waiter_called":          "Le serveur arrive.",
		"bill_ask_method":        "Comment souhaitez-vous payer ?",
		"bill_requested":         "L'addition arrive.",
		"confirm_nothing":        "Il n'y a rien à confirmer.",
		"deny_ok":                "D'accord.",
		"context_missing":        "À quoi cela se rapporte-t-il ?",
		"stop_listening":         "À plus tard.",
		"language_changed":       "Je parle maintenant français.",
		"language_unknown":       "Je ne connais pas la langue %s.",
		"failure":                "Cela n'a malheureusement pas fonctionné. Veuillez réessayer.",
		"unknown_command":        "Je n'ai pas compris.",
		"clarify":                "Vouliez-vous dire : %s ?",
		"clarify_none":           "Je n'ai pas compris. Dites « aide » pour des exemples.",
		"and":                    "et",
		"or":                     "ou",
		"at":                     "à %s",

		"error_permission-denied": "Je n'ai pas accès au microphone.",
		"error_no-microphone":     "Je ne trouve aucun microphone.",
		"error_audio-capture":     "Le microphone ne transmet aucun son.",
		"error_network":           "La reconnaissance vocale n'est pas joignable.",
		"error_timeout":           "Je n'ai rien entendu.",
		"error_aborted":           "La saisie vocale a été interrompue.",
		"error_unknown":           "Une erreur est survenue pendant la saisie vocale.",
	},
	"it": {
		"navigate":               "Apro %s.",
		"navigate_unknown":       "Non conosco la pagina %s.",
		"go_back":                "Torno alla pagina precedente.",
		"show_menu":              "Ecco il menù.",
		"cart_added":             "%d × %s aggiunto al carrello.",
		"cart_removed":           "%s rimosso dal carrello.",
		"cart_cleared":           "Il carrello è vuoto.",
		"cart_empty":             "Il tuo carrello è vuoto.",
		"cart_contents":          "Nel carrello: %s. Totale %s franchi.",
		"quantity_set":           "Va bene, %d × %s.",
		"order_empty":            "Il carrello è vuoto, non c'è niente da ordinare.",
		"order_confirm":          "Hai %d articoli per %s franchi. Invio l'ordine?",
		"order_created":          "Il tuo ordine %s è stato inviato.",
		"order_discarded":        "Va bene, l'ordine non è stato inviato.",
		"order_cancelled":        "L'ordine %s è stato annullato.",
		"order_none":             "Non ho trovato nessun ordine da annullare.",
		"payment_set":            "Pagamento con %s. Invio l'ordine?",
		"pickup_set":             "Ritiro alle %s. Invio l'ordine?",
		"table_selected":         "Sei al tavolo %d.",
		"price":                  "%s costa %s franchi.",
		"price_unknown":          "Non ho trovato il prezzo di %s.",
		"help":                   "Puoi dire per esempio: %s.",
		"repeat_none":            "Non c'è niente da ripetere.",
		"reservation_ask_guests": "Per quante persone vuoi prenotare?",
		"reservation_ask_time":   "Un tavolo per %d persone. A che ora?",
		"reservation_confirm":    "Un tavolo per %d persone, %s. Prenoto?",
		"reservation_done":       "Il tavolo è prenotato, numero %s.",
		"reservation_discarded":  "Va bene, non prenoto niente.",
		"waiter_called":          "Il cameriere arriva subito.",
		"bill_ask_method":        "Come vuoi pagare?",
		"bill_requested":         "Il conto arriva subito.",
		"confirm_nothing":        "Non c'è niente da confermare.",
		"deny_ok":                "D'accordo.",
		"context_missing":        "A cosa ti riferisci?",
		"stop_listening":         "A dopo.",
		"language_changed":       "Adesso parlo italiano.",
		"language_unknown":       "Non conosco la lingua %s.",
		"failure":                "Purtroppo non ha funzionato. Riprova.",
		"unknown_command":        "Non ho capito.",
		"clarify":                "Intendevi: %s?",
		"clarify_none":           "Non ho capito. Di' «aiuto» per degli esempi.",
		"and":                    "e",
		"or":                     "o",
		"at":                     "alle %s",

		"error_permission-denied": "Non ho accesso al microfono.",
		"error_no-microphone":     "Non trovo nessun microfono.",
		"error_audio-capture":     "Il microfono non trasmette audio.",
		"error_network":           "Il riconoscimento vocale non è raggiungibile.",
		"error_timeout":           "Non ho sentito niente.",
		"error_aborted":           "L'input vocale è stato interrotto.",
		"error_unknown":           "Si è verificato un errore nell'input vocale.",
	},
	"en": {
		"navigate":               "Opening %s.",
		"navigate_unknown":       "I don't know the page %s.",
		"go_back":                "Going back.",
		"show_menu":              "Here is the menu.",
		"cart_added":             "Added %d × %s to your cart.",
		"cart_removed":           "Removed %s from your cart.",
		"cart_cleared":           "Your cart is now empty.",
		"cart_empty":             "Your cart is empty.",
		"cart_contents":          "In your cart: %s. Total %s francs.",
		"quantity_set":           "Got it, %d × %s.",
		"order_empty":            "Your cart is empty, there is nothing to order.",
		"order_confirm":          "You have %d items for %s francs. Shall I place the order?",
		"order_created":          "Your order %s has been placed.",
		"order_discarded":        "Okay, the order was not placed.",
		"order_cancelled":        "Order %s has been cancelled.",
		"order_none":             "I couldn't find an order to cancel.",
		"payment_set":            "Paying with %s. Shall I place the order?",
		"pickup_set":             "Pickup at %s. Shall I place the order?",
		"table_selected":         "You are at table %d.",
		"price":                  "%s costs %s francs.",
		"price_unknown":          "I couldn't find the price of %s.",
		"help":                   "You can say for example: %s.",
		"repeat_none":            "There is nothing to repeat.",
		"reservation_ask_guests": "For how many people would you like to book?",
		"reservation_ask_time":   "A table for %d people. At what time?",
		"reservation_confirm":    "A table for %d people, %s. Shall I book it?",
		"reservation_done":       "Your table is booked, number %s.",
		"reservation_discarded":  "Okay, nothing booked.",
		"waiter_called":          "A waiter is on the way.",
		"bill_ask_method":        "How would you like to pay?",
		"bill_requested":         "Your bill is on the way.",
		"confirm_nothing":        "There is nothing to confirm.",
		"deny_ok":                "Okay.",
		"context_missing":        "What does that refer to?",
		"stop_listening":         "See you later.",
		"language_changed":       "I'm speaking English now.",
		"language_unknown":       "I don't know the language %s.",
		"failure":                "Sorry, that didn't work. Please try again.",
		"unknown_command":        "I didn't understand that.",
		"clarify":                "Did you mean: %s?",
		"clarify_none":           "I didn't understand that. Say \"help\" for examples.",
		"and":                    "and",
		"or":                     "or",
		"at":                     "at %s",

		"error_permission-denied": "I don't have access to the microphone.",
		"error_no-microphone":     "I can't find a microphone.",
		"error_audio-capture":     "The microphone isn't delivering any sound.",
		"error_network":           "Speech recognition is unreachable right now.",
		"error_timeout":           "I didn't hear anything.",
		"error_aborted":           "Voice input was cancelled.",
		"error_unknown":           "Something went wrong with voice input.",
	},
}

// catalogs returns the lookup chain for a language code.
func catalogs(language string) []string {
	base := nlp.BaseLanguage(language)
	if base == "de" && nlp.IsSwissDialect(language) {
		return []string{swissGerman, "de", "en"}
	}
	if _, ok := messages[base]; ok && base != "en" {
		return []string{base, "en"}
	}
	return []string{"en"}
}

// Localize formats the message key in the given language, falling back to
// English and finally to the key itself.
func Localize(language, key string, args ...interface{}) string {
	for _, c := range catalogs(language) {
		if msg, ok := messages[c][key]; ok {
			if len(args) == 0 {
				return msg
			}
			return fmt.Sprintf(msg, args...)
		}
	}
	return key
}

// JoinList renders items as "a, b und c" in the given language.
func JoinList(language string, items []string, conj string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	word := Localize(language, conj)
	return strings.Join(items[:len(items)-1], ", ") + " " + word + " " + items[len(items)-1]
}

// FormatAmount renders a price the way it is spoken back ("12.50").
func FormatAmount(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

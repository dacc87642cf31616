package nlp

import "strings"

// Category groups intent patterns; the order of Categories is the matching priority.
type Category string

const (
	CategoryContext    Category = "context"
	CategoryNavigation Category = "navigation"
	CategoryOrders     Category = "orders"
	CategoryMenu       Category = "menu"
	CategoryCart       Category = "cart"
	CategoryRestaurant Category = "restaurant"
	CategorySystem     Category = "system"
)

var Categories = []Category{
	CategoryNavigation,
	CategoryOrders,
	CategoryMenu,
	CategoryCart,
	CategoryRestaurant,
	CategorySystem,
}

func categoryRank(c Category) int {
	if c == CategoryContext {
		return -1
	}
	for i, cat := range Categories {
		if cat == c {
			return i
		}
	}
	return len(Categories)
}

// Intent identifiers shared by the resolver tables and the command executor.
const (
	IntentNavigate       = "navigate"
	IntentGoBack         = "go_back"
	IntentCreateOrder    = "create_order"
	IntentCancelOrder    = "cancel_order"
	IntentShowMenu       = "show_menu"
	IntentPriceQuery     = "price_query"
	IntentAddToCart      = "add_to_cart"
	IntentRemoveFromCart = "remove_from_cart"
	IntentClearCart      = "clear_cart"
	IntentShowCart       = "show_cart"
	IntentReserveTable   = "reserve_table"
	IntentSelectTable    = "select_table"
	IntentCallWaiter     = "call_waiter"
	IntentRequestBill    = "request_bill"
	IntentConfirm        = "confirm"
	IntentDeny           = "deny"
	IntentHelp           = "help"
	IntentRepeat         = "repeat"
	IntentStopListening  = "stop_listening"
	IntentChangeLanguage = "change_language"
	IntentSetQuantity    = "set_quantity"
	IntentSetGuests      = "set_guests"
	IntentSetTime        = "set_time"
	IntentSetDate        = "set_date"
	IntentSetPayment     = "set_payment_method"
)

// CommandPattern is one intent with its ordered match templates.
type CommandPattern struct {
	Category  Category
	Intent    string
	Templates []Template
	Examples  []string
	Defaults  map[string]string
	Dialect   bool
	Context   string
	Language  string
	// Excludes lists words that rule the pattern out wherever they appear.
	Excludes []string
	order    int
}

// Suggestion is a ranked example utterance offered when no command was accepted.
type Suggestion struct {
	Text     string  `json:"text"`
	Intent   string  `json:"intent"`
	Category string  `json:"category"`
	Score    float64 `json:"score"`
}

// Input is one normalized utterance handed to the resolver. Zero is a valid
// Threshold that accepts every match; a negative one selects DefaultThreshold.
type Input struct {
	Text       string
	Language   string
	Confidence float64
	Threshold  float64
	Context    string
}

// Resolution is the outcome of matching an utterance against the pattern table.
type Resolution struct {
	Intent      string            `json:"intent"`
	Category    Category          `json:"category"`
	Pattern     string            `json:"pattern"`
	Entities    map[string]string `json:"entities"`
	Confidence  float64           `json:"confidence"`
	Dialect     bool              `json:"dialect"`
	Matched     bool              `json:"matched"`
	Accepted    bool              `json:"accepted"`
	Suggestions []Suggestion      `json:"suggestions,omitempty"`
}

// BaseLanguage returns the primary subtag of a language code ("de-CH" -> "de").
func BaseLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		return lang[:i]
	}
	return lang
}

// IsSwissDialect reports whether the language code selects a Swiss regional variant.
func IsSwissDialect(lang string) bool {
	lang = strings.ToLower(strings.TrimSpace(lang))
	return strings.HasSuffix(lang, "-ch") || strings.HasSuffix(lang, "_ch")
}

// SupportedLanguages lists the recognition/output languages accepted by preferences.
var SupportedLanguages = []string{
	"de-CH", "de-DE", "fr-CH", "fr-FR", "it-CH", "it-IT", "en-US", "en-GB",
}

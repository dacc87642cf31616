package command

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"eatech-voice/internal/voice/conversation"
	"eatech-voice/internal/voice/preferences"
	"eatech-voice/pkg/nlp"
)

const (
	maxQuantity   = 99
	helpExamples  = 3
	voiceCancel   = "cancelled by voice command"
	languageMatch = 0.8
)

func success(action, message string, data map[string]interface{}) Result {
	return Result{Success: true, Message: message, Action: action, Data: data}
}

func rejected(action, message string) Result {
	return Result{Success: false, Message: message, Action: action}
}

// quantity reads the quantity entity, defaulting to one.
func quantity(entities map[string]string) int {
	n, err := strconv.Atoi(entities["quantity"])
	if err != nil || n < 1 {
		return 1
	}
	return min(n, maxQuantity)
}

// heldBefore reads the units held before the add that opened a
// product-selection context.
func heldBefore(payload map[string]string) int {
	n, err := strconv.Atoi(payload["held"])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func pageName(route, page, language string) string {
	base := nlp.BaseLanguage(language)
	for _, r := range nlp.Routes() {
		if r.Path != route {
			continue
		}
		if names := r.Names[base]; len(names) > 0 {
			return names[0]
		}
	}
	return page
}

func (e *Executor) navigate(ctx context.Context, cmd Command) (Result, error) {
	route := cmd.Entities["route"]
	if route == "" {
		return rejected(cmd.Intent, Localize(cmd.Language, "navigate_unknown", cmd.Entities["page"])), nil
	}
	if e.deps.Navigator == nil {
		return Result{}, errUnavailable
	}
	if err := e.deps.Navigator.GoTo(ctx, route); err != nil {
		return Result{}, err
	}
	name := pageName(route, cmd.Entities["page"], cmd.Language)
	return success(cmd.Intent, Localize(cmd.Language, "navigate", name), map[string]interface{}{"route": route}), nil
}

func (e *Executor) goBack(ctx context.Context, cmd Command) (Result, error) {
	if e.deps.Navigator == nil {
		return Result{}, errUnavailable
	}
	if err := e.deps.Navigator.Back(ctx); err != nil {
		return Result{}, err
	}
	return success(cmd.Intent, Localize(cmd.Language, "go_back"), nil), nil
}

func (e *Executor) showMenu(ctx context.Context, cmd Command) (Result, error) {
	if e.deps.Navigator == nil {
		return Result{}, errUnavailable
	}
	if err := e.deps.Navigator.GoTo(ctx, "/menu"); err != nil {
		return Result{}, err
	}
	return success(cmd.Intent, Localize(cmd.Language, "show_menu"), map[string]interface{}{"route": "/menu"}), nil
}

func (e *Executor) priceQuery(ctx context.Context, cmd Command) (Result, error) {
	item := cmd.Entities["item"]
	if e.deps.Catalog == nil {
		return Result{}, errUnavailable
	}
	product, err := e.deps.Catalog.Price(ctx, item, cmd.Language)
	if errors.Is(err, ErrNotFound) {
		return rejected(cmd.Intent, Localize(cmd.Language, "price_unknown", item)), nil
	}
	if err != nil {
		return Result{}, err
	}
	return success(cmd.Intent, Localize(cmd.Language, "price", product.Name, FormatAmount(product.Price)),
		map[string]interface{}{"item": product.Name, "price": product.Price, "currency": product.Currency}), nil
}

func (e *Executor) addToCart(ctx context.Context, cmd Command) (Result, error) {
	if e.deps.Cart == nil {
		return Result{}, errUnavailable
	}
	item := cmd.Entities["item"]
	qty := quantity(cmd.Entities)
	held, err := e.heldQuantity(ctx, item)
	if err != nil {
		return Result{}, err
	}
	if err := e.deps.Cart.AddItem(ctx, item, qty); err != nil {
		return Result{}, err
	}
	// held lets a later "no" or quantity change return to the pre-add state.
	if _, err := e.contexts.Create(conversation.ProductSelection, map[string]string{
		"item":     item,
		"quantity": strconv.Itoa(qty),
		"held":     strconv.Itoa(held),
	}); err != nil {
		return Result{}, err
	}
	return success(cmd.Intent, Localize(cmd.Language, "cart_added", qty, item),
		map[string]interface{}{"item": item, "quantity": qty}), nil
}

// heldQuantity sums the units of item already in the cart.
func (e *Executor) heldQuantity(ctx context.Context, item string) (int, error) {
	items, err := e.deps.Cart.Items(ctx)
	if err != nil {
		return 0, err
	}
	held := 0
	for _, it := range items {
		if strings.EqualFold(it.Name, item) {
			held += it.Quantity
		}
	}
	return held, nil
}

// setHeld replaces every line of item with a single line of qty units.
func (e *Executor) setHeld(ctx context.Context, item string, qty int) error {
	if err := e.deps.Cart.RemoveItem(ctx, item); err != nil {
		return err
	}
	if qty <= 0 {
		return nil
	}
	return e.deps.Cart.AddItem(ctx, item, qty)
}

func (e *Executor) removeFromCart(ctx context.Context, cmd Command) (Result, error) {
	if e.deps.Cart == nil {
		return Result{}, errUnavailable
	}
	item := cmd.Entities["item"]
	if err := e.deps.Cart.RemoveItem(ctx, item); err != nil {
		return Result{}, err
	}
	return success(cmd.Intent, Localize(cmd.Language, "cart_removed", item), map[string]interface{}{"item": item}), nil
}

func (e *Executor) clearCart(ctx context.Context, cmd Command) (Result, error) {
	if e.deps.Cart == nil {
		return Result{}, errUnavailable
	}
	if err := e.deps.Cart.ClearCart(ctx); err != nil {
		return Result{}, err
	}
	return success(cmd.Intent, Localize(cmd.Language, "cart_cleared"), nil), nil
}

func cartSummary(items []CartItem) (count int, total float64) {
	for _, it := range items {
		count += it.Quantity
		total += it.Price * float64(it.Quantity)
	}
	return count, total
}

func (e *Executor) showCart(ctx context.Context, cmd Command) (Result, error) {
	if e.deps.Cart == nil {
		return Result{}, errUnavailable
	}
	items, err := e.deps.Cart.Items(ctx)
	if err != nil {
		return Result{}, err
	}
	if len(items) == 0 {
		return success(cmd.Intent, Localize(cmd.Language, "cart_empty"), map[string]interface{}{"items": items}), nil
	}
	lines := make([]string, 0, len(items))
	for _, it := range items {
		lines = append(lines, fmt.Sprintf("%d × %s", it.Quantity, it.Name))
	}
	_, total := cartSummary(items)
	msg := Localize(cmd.Language, "cart_contents", JoinList(cmd.Language, lines, "and"), FormatAmount(total))
	return success(cmd.Intent, msg, map[string]interface{}{"items": items, "total": total}), nil
}

func (e *Executor) createOrder(ctx context.Context, cmd Command) (Result, error) {
	if e.deps.Cart == nil {
		return Result{}, errUnavailable
	}
	items, err := e.deps.Cart.Items(ctx)
	if err != nil {
		return Result{}, err
	}
	if len(items) == 0 {
		return rejected(cmd.Intent, Localize(cmd.Language, "order_empty")), nil
	}
	count, total := cartSummary(items)
	payload := map[string]string{
		"items": strconv.Itoa(count),
		"total": FormatAmount(total),
	}
	for _, k := range []string{"method", "time"} {
		if v := cmd.Entities[k]; v != "" {
			payload[k] = v
		}
	}
	if _, err := e.contexts.Create(conversation.OrderCreation, payload); err != nil {
		return Result{}, err
	}
	return success("order_confirm", Localize(cmd.Language, "order_confirm", count, FormatAmount(total)),
		map[string]interface{}{"items": count, "total": total}), nil
}

func (e *Executor) cancelOrder(ctx context.Context, cmd Command) (Result, error) {
	if e.deps.Orders == nil {
		return Result{}, errUnavailable
	}
	id := cmd.Entities["order"]
	if id == "" {
		latest, err := e.deps.Orders.LatestOrder(ctx)
		if errors.Is(err, ErrNotFound) {
			return rejected(cmd.Intent, Localize(cmd.Language, "order_none")), nil
		}
		if err != nil {
			return Result{}, err
		}
		id = latest.ID
	}
	err := e.deps.Orders.CancelOrder(ctx, id, voiceCancel)
	if errors.Is(err, ErrNotFound) {
		return rejected(cmd.Intent, Localize(cmd.Language, "order_none")), nil
	}
	if err != nil {
		return Result{}, err
	}
	return success(cmd.Intent, Localize(cmd.Language, "order_cancelled", id), map[string]interface{}{"order": id}), nil
}

func (e *Executor) reserveTable(ctx context.Context, cmd Command) (Result, error) {
	payload := map[string]string{}
	for _, k := range []string{"guests", "time", "date"} {
		if v := cmd.Entities[k]; v != "" {
			payload[k] = v
		}
	}
	c, err := e.contexts.Create(conversation.Reservation, payload)
	if err != nil {
		return Result{}, err
	}
	return e.reservationPrompt(cmd.Language, c.Payload), nil
}

// reservationPrompt asks for the next missing reservation detail, or for
// confirmation once guests and time are known.
func (e *Executor) reservationPrompt(language string, payload map[string]string) Result {
	data := map[string]interface{}{}
	for k, v := range payload {
		data[k] = v
	}
	guests, _ := strconv.Atoi(payload["guests"])
	switch {
	case guests < 1:
		return success("reservation", Localize(language, "reservation_ask_guests"), data)
	case payload["time"] == "":
		return success("reservation", Localize(language, "reservation_ask_time", guests), data)
	}
	when := strings.TrimSpace(payload["date"] + " " + Localize(language, "at", payload["time"]))
	return success("reservation", Localize(language, "reservation_confirm", guests, when), data)
}

func (e *Executor) selectTable(_ context.Context, cmd Command) (Result, error) {
	n, err := strconv.Atoi(cmd.Entities["table"])
	if err != nil || n < 1 {
		return rejected(cmd.Intent, Localize(cmd.Language, "context_missing")), nil
	}
	e.setTable(n)
	return success(cmd.Intent, Localize(cmd.Language, "table_selected", n), map[string]interface{}{"table": n}), nil
}

func (e *Executor) callWaiter(ctx context.Context, cmd Command) (Result, error) {
	if e.deps.Restaurant == nil {
		return Result{}, errUnavailable
	}
	table := e.currentTable()
	if err := e.deps.Restaurant.CallWaiter(ctx, table); err != nil {
		return Result{}, err
	}
	return success(cmd.Intent, Localize(cmd.Language, "waiter_called"), map[string]interface{}{"table": table}), nil
}

func (e *Executor) requestBill(ctx context.Context, cmd Command) (Result, error) {
	if method := cmd.Entities["method"]; method != "" {
		return e.sendBill(ctx, cmd.Language, method)
	}
	if _, err := e.contexts.Create(conversation.Payment, nil); err != nil {
		return Result{}, err
	}
	return success("bill", Localize(cmd.Language, "bill_ask_method"), nil), nil
}

func (e *Executor) sendBill(ctx context.Context, language, method string) (Result, error) {
	if e.deps.Restaurant == nil {
		return Result{}, errUnavailable
	}
	req := BillRequest{Table: e.currentTable(), Method: method}
	if err := e.deps.Restaurant.RequestBill(ctx, req); err != nil {
		return Result{}, err
	}
	e.contexts.Clear()
	return success("bill", Localize(language, "bill_requested"),
		map[string]interface{}{"table": req.Table, "method": method}), nil
}

func (e *Executor) confirmWithoutContext(_ context.Context, cmd Command) (Result, error) {
	return rejected(cmd.Intent, Localize(cmd.Language, "confirm_nothing")), nil
}

func (e *Executor) denyWithoutContext(_ context.Context, cmd Command) (Result, error) {
	return success(cmd.Intent, Localize(cmd.Language, "deny_ok"), nil), nil
}

func (e *Executor) contextMissing(_ context.Context, cmd Command) (Result, error) {
	return rejected(cmd.Intent, Localize(cmd.Language, "context_missing")), nil
}

func (e *Executor) help(_ context.Context, cmd Command) (Result, error) {
	var examples []string
	if e.deps.Examples != nil {
		for _, s := range e.deps.Examples.Examples(cmd.Language, helpExamples) {
			examples = append(examples, "«"+s.Text+"»")
		}
	}
	if _, err := e.contexts.Create(conversation.Help, nil); err != nil {
		return Result{}, err
	}
	if len(examples) == 0 {
		return success(cmd.Intent, Localize(cmd.Language, "clarify_none"), nil), nil
	}
	return success(cmd.Intent, Localize(cmd.Language, "help", JoinList(cmd.Language, examples, "or")),
		map[string]interface{}{"examples": examples}), nil
}

func (e *Executor) stopListening(_ context.Context, cmd Command) (Result, error) {
	if e.deps.Listening != nil {
		if err := e.deps.Listening.Stop(); err != nil {
			e.log.WithField("error", err.Error()).Debug("stop listening")
		}
	}
	return success(cmd.Intent, Localize(cmd.Language, "stop_listening"), nil), nil
}

func (e *Executor) changeLanguage(_ context.Context, cmd Command) (Result, error) {
	name := cmd.Entities["language"]
	code, found := LanguageCode(name, cmd.Language)
	if !found {
		return rejected(cmd.Intent, Localize(cmd.Language, "language_unknown", name)), nil
	}
	if e.deps.Settings == nil {
		return Result{}, errUnavailable
	}
	err := e.deps.Settings.Update(func(p *preferences.Preferences) {
		p.Language = code
		if !nlp.IsSwissDialect(code) {
			p.Dialect = ""
		}
	})
	if err != nil {
		return Result{}, err
	}
	return success(cmd.Intent, Localize(code, "language_changed"), map[string]interface{}{"language": code}), nil
}

var languageNames = map[string][]string{
	"de-CH": {"schweizerdeutsch", "schwiizerdütsch", "schwyzerdütsch", "swiss german", "suisse allemand", "svizzero tedesco"},
	"de":    {"deutsch", "hochdeutsch", "german", "allemand", "tedesco"},
	"fr":    {"französisch", "franzosisch", "french", "français", "francais", "francese"},
	"it":    {"italienisch", "italian", "italien", "italiano"},
	"en":    {"englisch", "english", "anglais", "inglese"},
}

var regional = map[string][2]string{
	"de": {"de-CH", "de-DE"},
	"fr": {"fr-CH", "fr-FR"},
	"it": {"it-CH", "it-IT"},
	"en": {"en-GB", "en-US"},
}

// LanguageCode maps a spoken language name onto a supported code. Swiss
// speakers keep the Swiss variant of the target language.
func LanguageCode(name, current string) (string, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "", false
	}
	best, bestScore := "", 0.0
	for code, names := range languageNames {
		for _, n := range names {
			if s := nlp.Similarity(name, n); s > bestScore {
				best, bestScore = code, s
			}
		}
	}
	if bestScore < languageMatch {
		return "", false
	}
	if variants, ok := regional[best]; ok {
		if nlp.IsSwissDialect(current) || current == "" {
			return variants[0], true
		}
		return variants[1], true
	}
	return best, true
}

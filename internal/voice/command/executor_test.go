package command

import (
	"context"
	"errors"
	"sync"
	"testing"

	"eatech-voice/internal/voice/conversation"
	"eatech-voice/internal/voice/preferences"
	"eatech-voice/pkg/nlp"

	"github.com/stretchr/testify/require"
)

type addCall struct {
	name string
	qty  int
}

type fakeShop struct {
	mu        sync.Mutex
	items     []CartItem
	adds      []addCall
	removes   []string
	orders    []OrderRequest
	cancelled []string
	reserved  []Reservation
	bills     []BillRequest
	waiters   []int
	routes    []string
	backs     int
	stopped   int
	language  string
	failWith  error
	panicWith string
}

func (f *fakeShop) AddItem(_ context.Context, name string, qty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicWith != "" {
		panic(f.panicWith)
	}
	if f.failWith != nil {
		return f.failWith
	}
	f.adds = append(f.adds, addCall{name, qty})
	for i := range f.items {
		if f.items[i].Name == name {
			f.items[i].Quantity += qty
			return nil
		}
	}
	f.items = append(f.items, CartItem{Name: name, Quantity: qty, Price: 5.5})
	return nil
}

func (f *fakeShop) RemoveItem(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removes = append(f.removes, name)
	kept := f.items[:0]
	for _, it := range f.items {
		if it.Name != name {
			kept = append(kept, it)
		}
	}
	f.items = kept
	return nil
}

func (f *fakeShop) ClearCart(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = nil
	return nil
}

func (f *fakeShop) Items(context.Context) ([]CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]CartItem(nil), f.items...), nil
}

func (f *fakeShop) CreateOrder(_ context.Context, req OrderRequest) (Order, error) {
	f.orders = append(f.orders, req)
	return Order{ID: "ORD-1", Status: "pending"}, nil
}

func (f *fakeShop) CancelOrder(_ context.Context, id, _ string) error {
	f.cancelled = append(f.cancelled, id)
	return nil
}

func (f *fakeShop) LatestOrder(context.Context) (Order, error) {
	if len(f.orders) == 0 {
		return Order{}, ErrNotFound
	}
	return Order{ID: "ORD-1"}, nil
}

func (f *fakeShop) Reserve(_ context.Context, r Reservation) (string, error) {
	f.reserved = append(f.reserved, r)
	return "R-7", nil
}

func (f *fakeShop) CallWaiter(_ context.Context, table int) error {
	f.waiters = append(f.waiters, table)
	return nil
}

func (f *fakeShop) RequestBill(_ context.Context, req BillRequest) error {
	f.bills = append(f.bills, req)
	return nil
}

func (f *fakeShop) GoTo(_ context.Context, route string) error {
	f.routes = append(f.routes, route)
	return nil
}

func (f *fakeShop) Back(context.Context) error {
	f.backs++
	return nil
}

func (f *fakeShop) Price(_ context.Context, item, _ string) (Product, error) {
	if item != "burger" {
		return Product{}, ErrNotFound
	}
	return Product{Name: "Burger", Price: 18.5, Currency: "CHF"}, nil
}

func (f *fakeShop) Update(fn func(*preferences.Preferences)) error {
	p := preferences.Defaults()
	fn(&p)
	f.language = p.Language
	return nil
}

func (f *fakeShop) Stop() error {
	f.stopped++
	return nil
}

type fixedExamples []string

func (e fixedExamples) Examples(_ string, limit int) []nlp.Suggestion {
	var out []nlp.Suggestion
	for _, text := range e {
		if len(out) == limit {
			break
		}
		out = append(out, nlp.Suggestion{Text: text})
	}
	return out
}

func newTestExecutor() (*Executor, *fakeShop) {
	shop := &fakeShop{}
	deps := Deps{
		Cart:       shop,
		Orders:     shop,
		Restaurant: shop,
		Navigator:  shop,
		Catalog:    shop,
		Settings:   shop,
		Listening:  shop,
		Examples:   fixedExamples{"zeige die speisekarte", "ich möchte einen burger", "hilfe", "zurück"},
	}
	return New(deps, conversation.NewManager(), nil), shop
}

func cmd(intent string, entities map[string]string) Command {
	return Command{Intent: intent, Entities: entities, Language: "de-CH", Confidence: 0.9}
}

func TestAddToCartDefaultsQuantity(t *testing.T) {
	ex, shop := newTestExecutor()

	res := ex.Execute(context.Background(), cmd(nlp.IntentAddToCart, map[string]string{"item": "burger"}))

	require.True(t, res.Success)
	require.Equal(t, []addCall{{"burger", 1}}, shop.adds)
	require.Contains(t, res.Message, "burger")
	require.Equal(t, conversation.ProductSelection, ex.Contexts().Type())
}

func TestAddToCartWithQuantity(t *testing.T) {
	ex, shop := newTestExecutor()

	res := ex.Execute(context.Background(), cmd(nlp.IntentAddToCart, map[string]string{"item": "pommes", "quantity": "2"}))

	require.True(t, res.Success)
	require.Equal(t, []addCall{{"pommes", 2}}, shop.adds)
	require.Equal(t, 2, res.Data["quantity"])
}

func TestQuantityRefinesSelection(t *testing.T) {
	ex, shop := newTestExecutor()
	ctx := context.Background()

	ex.Execute(ctx, cmd(nlp.IntentAddToCart, map[string]string{"item": "burger"}))
	res := ex.Execute(ctx, cmd(nlp.IntentSetQuantity, map[string]string{"quantity": "3"}))

	require.True(t, res.Success)
	require.Equal(t, []string{"burger"}, shop.removes)
	require.Equal(t, []addCall{{"burger", 1}, {"burger", 3}}, shop.adds)
}

func TestDenyAfterAddRemovesItem(t *testing.T) {
	ex, shop := newTestExecutor()
	ctx := context.Background()

	ex.Execute(ctx, cmd(nlp.IntentAddToCart, map[string]string{"item": "salat"}))
	res := ex.Execute(ctx, cmd(nlp.IntentDeny, nil))

	require.True(t, res.Success)
	require.Equal(t, []string{"salat"}, shop.removes)
	require.Equal(t, conversation.Type(""), ex.Contexts().Type())
}

func TestDenyKeepsEarlierUnits(t *testing.T) {
	ex, shop := newTestExecutor()
	ctx := context.Background()

	ex.Execute(ctx, cmd(nlp.IntentAddToCart, map[string]string{"item": "burger", "quantity": "2"}))
	ex.Execute(ctx, cmd(nlp.IntentShowMenu, nil))
	ex.Execute(ctx, cmd(nlp.IntentAddToCart, map[string]string{"item": "burger"}))
	res := ex.Execute(ctx, cmd(nlp.IntentDeny, nil))

	require.True(t, res.Success)
	require.Equal(t, 2, res.Data["quantity"])
	items, _ := shop.Items(ctx)
	require.Equal(t, []CartItem{{Name: "burger", Quantity: 2, Price: 5.5}}, items)
}

func TestQuantityKeepsEarlierUnits(t *testing.T) {
	ex, shop := newTestExecutor()
	ctx := context.Background()
	shop.items = []CartItem{{Name: "cola", Quantity: 2, Price: 5.5}}

	ex.Execute(ctx, cmd(nlp.IntentAddToCart, map[string]string{"item": "cola"}))
	res := ex.Execute(ctx, cmd(nlp.IntentSetQuantity, map[string]string{"quantity": "3"}))
	require.True(t, res.Success)
	items, _ := shop.Items(ctx)
	require.Equal(t, []CartItem{{Name: "cola", Quantity: 5, Price: 5.5}}, items)

	// A second correction replaces the first one.
	ex.Execute(ctx, cmd(nlp.IntentSetQuantity, map[string]string{"quantity": "1"}))
	items, _ = shop.Items(ctx)
	require.Equal(t, []CartItem{{Name: "cola", Quantity: 3, Price: 5.5}}, items)
}

func TestOrderFlow(t *testing.T) {
	ex, shop := newTestExecutor()
	ctx := context.Background()

	res := ex.Execute(ctx, cmd(nlp.IntentCreateOrder, nil))
	require.False(t, res.Success)
	require.Empty(t, shop.orders)

	ex.Execute(ctx, cmd(nlp.IntentAddToCart, map[string]string{"item": "burger", "quantity": "2"}))
	res = ex.Execute(ctx, cmd(nlp.IntentCreateOrder, nil))
	require.True(t, res.Success)
	require.Equal(t, "order_confirm", res.Action)
	require.Contains(t, res.Message, "11.00")

	res = ex.Execute(ctx, cmd(nlp.IntentSetPayment, map[string]string{"method": "twint"}))
	require.True(t, res.Success)
	require.Contains(t, res.Message, "twint")

	res = ex.Execute(ctx, cmd(nlp.IntentConfirm, nil))
	require.True(t, res.Success)
	require.Len(t, shop.orders, 1)
	require.Equal(t, "twint", shop.orders[0].PaymentMethod)
	require.Equal(t, "de-CH", shop.orders[0].Language)
	require.Contains(t, res.Message, "ORD-1")

	res = ex.Execute(ctx, cmd(nlp.IntentConfirm, nil))
	require.False(t, res.Success)
	require.Len(t, shop.orders, 1)
}

func TestOrderDenied(t *testing.T) {
	ex, shop := newTestExecutor()
	ctx := context.Background()

	ex.Execute(ctx, cmd(nlp.IntentAddToCart, map[string]string{"item": "burger"}))
	ex.Execute(ctx, cmd(nlp.IntentCreateOrder, nil))
	res := ex.Execute(ctx, cmd(nlp.IntentDeny, nil))

	require.True(t, res.Success)
	require.Empty(t, shop.orders)
	require.Equal(t, conversation.Type(""), ex.Contexts().Type())
}

func TestReservationDialogue(t *testing.T) {
	ex, shop := newTestExecutor()
	ctx := context.Background()

	res := ex.Execute(ctx, cmd(nlp.IntentReserveTable, nil))
	require.Equal(t, Localize("de-CH", "reservation_ask_guests"), res.Message)

	res = ex.Execute(ctx, cmd(nlp.IntentSetGuests, map[string]string{"guests": "4"}))
	require.Equal(t, Localize("de-CH", "reservation_ask_time", 4), res.Message)

	// confirming early only repeats the open question
	res = ex.Execute(ctx, cmd(nlp.IntentConfirm, nil))
	require.Equal(t, Localize("de-CH", "reservation_ask_time", 4), res.Message)
	require.Empty(t, shop.reserved)

	res = ex.Execute(ctx, cmd(nlp.IntentSetTime, map[string]string{"time": "19"}))
	require.Contains(t, res.Message, "19")

	res = ex.Execute(ctx, cmd(nlp.IntentConfirm, nil))
	require.True(t, res.Success)
	require.Equal(t, []Reservation{{Guests: 4, Time: "19", Language: "de-CH"}}, shop.reserved)
}

func TestBillAsksForMethod(t *testing.T) {
	ex, shop := newTestExecutor()
	ctx := context.Background()

	ex.Execute(ctx, cmd(nlp.IntentSelectTable, map[string]string{"table": "12"}))
	res := ex.Execute(ctx, cmd(nlp.IntentRequestBill, nil))
	require.Equal(t, Localize("de-CH", "bill_ask_method"), res.Message)
	require.Empty(t, shop.bills)

	res = ex.Execute(ctx, cmd(nlp.IntentSetPayment, map[string]string{"method": "karte"}))
	require.True(t, res.Success)
	require.Equal(t, []BillRequest{{Table: 12, Method: "karte"}}, shop.bills)
	require.Equal(t, conversation.Type(""), ex.Contexts().Type())
}

func TestContextualIntentWithoutContext(t *testing.T) {
	ex, shop := newTestExecutor()

	res := ex.Execute(context.Background(), cmd(nlp.IntentSetQuantity, map[string]string{"quantity": "2"}))

	require.False(t, res.Success)
	require.Empty(t, shop.adds)
}

func TestNavigation(t *testing.T) {
	ex, shop := newTestExecutor()
	ctx := context.Background()

	res := ex.Execute(ctx, cmd(nlp.IntentNavigate, map[string]string{"page": "warenkorb", "route": "/cart"}))
	require.True(t, res.Success)

	res = ex.Execute(ctx, cmd(nlp.IntentNavigate, map[string]string{"page": "garage"}))
	require.False(t, res.Success)
	require.Contains(t, res.Message, "garage")

	ex.Execute(ctx, cmd(nlp.IntentShowMenu, nil))
	ex.Execute(ctx, cmd(nlp.IntentGoBack, nil))

	require.Equal(t, []string{"/cart", "/menu"}, shop.routes)
	require.Equal(t, 1, shop.backs)
}

func TestPriceQuery(t *testing.T) {
	ex, _ := newTestExecutor()
	ctx := context.Background()

	res := ex.Execute(ctx, cmd(nlp.IntentPriceQuery, map[string]string{"item": "burger"}))
	require.True(t, res.Success)
	require.Contains(t, res.Message, "18.50")

	res = ex.Execute(ctx, cmd(nlp.IntentPriceQuery, map[string]string{"item": "hummer"}))
	require.False(t, res.Success)
	require.Empty(t, res.Code)
}

func TestShowCart(t *testing.T) {
	ex, _ := newTestExecutor()
	ctx := context.Background()

	res := ex.Execute(ctx, cmd(nlp.IntentShowCart, nil))
	require.Equal(t, Localize("de-CH", "cart_empty"), res.Message)

	ex.Execute(ctx, cmd(nlp.IntentAddToCart, map[string]string{"item": "burger"}))
	ex.Execute(ctx, cmd(nlp.IntentAddToCart, map[string]string{"item": "cola", "quantity": "2"}))
	res = ex.Execute(ctx, cmd(nlp.IntentShowCart, nil))
	require.Contains(t, res.Message, "1 × burger")
	require.Contains(t, res.Message, "2 × cola")
	require.Contains(t, res.Message, "16.50")
}

func TestCancelOrder(t *testing.T) {
	ex, shop := newTestExecutor()
	ctx := context.Background()

	res := ex.Execute(ctx, cmd(nlp.IntentCancelOrder, nil))
	require.False(t, res.Success)

	shop.orders = append(shop.orders, OrderRequest{})
	res = ex.Execute(ctx, cmd(nlp.IntentCancelOrder, nil))
	require.True(t, res.Success)
	require.Equal(t, []string{"ORD-1"}, shop.cancelled)
}

func TestRepeat(t *testing.T) {
	ex, shop := newTestExecutor()
	ctx := context.Background()

	res := ex.Execute(ctx, cmd(nlp.IntentRepeat, nil))
	require.False(t, res.Success)

	ex.Execute(ctx, cmd(nlp.IntentCallWaiter, nil))
	ex.Execute(ctx, cmd(nlp.IntentRepeat, nil))
	require.Len(t, shop.waiters, 2)
}

func TestChangeLanguage(t *testing.T) {
	tests := []struct {
		name    string
		spoken  string
		current string
		want    string
		ok      bool
	}{
		{"swiss speaker keeps regional french", "französisch", "de-CH", "fr-CH", true},
		{"german speaker gets italy", "italiano", "de-DE", "it-IT", true},
		{"accent folded", "francais", "it-CH", "fr-CH", true},
		{"swiss german by name", "schweizerdeutsch", "en-GB", "de-CH", true},
		{"unknown", "klingonisch", "de-CH", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex, shop := newTestExecutor()
			c := Command{Intent: nlp.IntentChangeLanguage, Entities: map[string]string{"language": tt.spoken}, Language: tt.current}

			res := ex.Execute(context.Background(), c)

			require.Equal(t, tt.ok, res.Success)
			if tt.ok {
				require.Equal(t, tt.want, shop.language)
				require.Equal(t, Localize(tt.want, "language_changed"), res.Message)
			}
		})
	}
}

func TestHelpListsExamples(t *testing.T) {
	ex, _ := newTestExecutor()

	res := ex.Execute(context.Background(), cmd(nlp.IntentHelp, nil))

	require.True(t, res.Success)
	require.Len(t, res.Data["examples"], 3)
	require.Contains(t, res.Message, "«zeige die speisekarte»")
	require.Equal(t, conversation.Help, ex.Contexts().Type())
}

func TestStopListening(t *testing.T) {
	ex, shop := newTestExecutor()
	res := ex.Execute(context.Background(), cmd(nlp.IntentStopListening, nil))
	require.True(t, res.Success)
	require.Equal(t, 1, shop.stopped)
}

func TestFailuresAreContained(t *testing.T) {
	t.Run("error", func(t *testing.T) {
		ex, shop := newTestExecutor()
		shop.failWith = errors.New("backend down")

		res := ex.Execute(context.Background(), cmd(nlp.IntentAddToCart, map[string]string{"item": "burger"}))

		require.False(t, res.Success)
		require.Equal(t, CodeProcessing, res.Code)
		require.Equal(t, Localize("de-CH", "failure"), res.Message)
	})

	t.Run("panic", func(t *testing.T) {
		ex, shop := newTestExecutor()
		shop.panicWith = "boom"

		res := ex.Execute(context.Background(), cmd(nlp.IntentAddToCart, map[string]string{"item": "burger"}))

		require.False(t, res.Success)
		require.Equal(t, CodeProcessing, res.Code)
	})

	t.Run("missing collaborator", func(t *testing.T) {
		ex := New(Deps{}, nil, nil)
		res := ex.Execute(context.Background(), cmd(nlp.IntentCallWaiter, nil))
		require.False(t, res.Success)
		require.Equal(t, CodeProcessing, res.Code)
	})
}

func TestUnknownIntent(t *testing.T) {
	ex, _ := newTestExecutor()
	res := ex.Execute(context.Background(), cmd("fly_to_moon", nil))
	require.False(t, res.Success)
	require.Equal(t, "unknown", res.Action)
	require.Empty(t, res.Code)
}

func TestEveryIntentHasAnAction(t *testing.T) {
	ex, _ := newTestExecutor()
	patterns, err := nlp.DefaultPatterns()
	require.NoError(t, err)

	known := map[string]bool{}
	for _, intent := range ex.Intents() {
		known[intent] = true
	}
	for _, lang := range patterns.Languages() {
		for _, p := range patterns.For(lang, "") {
			require.True(t, known[p.Intent], "no action for %s", p.Intent)
		}
	}
}

func TestLocalizeFallbacks(t *testing.T) {
	require.Equal(t, Localize("de-DE", "waiter_called"), "Die Bedienung kommt gleich.")
	require.Equal(t, Localize("de-CH", "waiter_called"), "D Bedienig chunnt grad.")
	// missing in Swiss German, falls back to German
	require.Equal(t, Localize("de-CH", "repeat_none"), Localize("de-DE", "repeat_none"))
	require.Equal(t, Localize("es-ES", "cart_empty"), Localize("en-GB", "cart_empty"))
	require.Equal(t, "no_such_key", Localize("fr-CH", "no_such_key"))
	require.Equal(t, "a, b und c", JoinList("de-CH", []string{"a", "b", "c"}, "and"))
	require.Equal(t, "a or b", JoinList("en-US", []string{"a", "b"}, "or"))
}

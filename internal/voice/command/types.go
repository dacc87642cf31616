package command

import (
	"context"
	"errors"

	"eatech-voice/internal/voice/preferences"
	"eatech-voice/pkg/nlp"
)

// ErrNotFound is returned by collaborators when the requested record does
// not exist.
var ErrNotFound = errors.New("not found")

// Command is one resolved utterance handed to the executor.
type Command struct {
	Intent     string            `json:"intent"`
	Entities   map[string]string `json:"entities"`
	Language   string            `json:"language"`
	Confidence float64           `json:"confidence"`
	Text       string            `json:"text"`
}

// Result is what every action returns. Message is localized to the command
// language.
type Result struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Action  string                 `json:"action"`
	Code    string                 `json:"code,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// CodeProcessing marks results of failed or panicking actions.
const CodeProcessing = "processing-error"

type CartItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

type Order struct {
	ID     string  `json:"id"`
	Status string  `json:"status"`
	Total  float64 `json:"total"`
}

type OrderRequest struct {
	Items         []CartItem `json:"items"`
	PaymentMethod string     `json:"paymentMethod,omitempty"`
	Table         int        `json:"table,omitempty"`
	PickupTime    string     `json:"pickupTime,omitempty"`
	Language      string     `json:"language"`
}

type Reservation struct {
	Guests   int    `json:"guests"`
	Date     string `json:"date,omitempty"`
	Time     string `json:"time,omitempty"`
	Table    int    `json:"table,omitempty"`
	Language string `json:"language"`
}

type BillRequest struct {
	Table  int    `json:"table,omitempty"`
	Method string `json:"method,omitempty"`
}

type Product struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
}

type Cart interface {
	AddItem(ctx context.Context, name string, quantity int) error
	RemoveItem(ctx context.Context, name string) error
	ClearCart(ctx context.Context) error
	Items(ctx context.Context) ([]CartItem, error)
}

type Orders interface {
	CreateOrder(ctx context.Context, req OrderRequest) (Order, error)
	CancelOrder(ctx context.Context, id, reason string) error
	LatestOrder(ctx context.Context) (Order, error)
}

type Restaurant interface {
	Reserve(ctx context.Context, r Reservation) (string, error)
	CallWaiter(ctx context.Context, table int) error
	RequestBill(ctx context.Context, req BillRequest) error
}

// Navigator moves the client application. Calls are fire-and-forget.
type Navigator interface {
	GoTo(ctx context.Context, route string) error
	Back(ctx context.Context) error
}

type Catalog interface {
	Price(ctx context.Context, item, language string) (Product, error)
}

// Settings is the preferences entry point used for language changes.
type Settings interface {
	Update(fn func(*preferences.Preferences)) error
}

// Listening stops the active recognition session.
type Listening interface {
	Stop() error
}

// Examples supplies help utterances for a language.
type Examples interface {
	Examples(language string, limit int) []nlp.Suggestion
}

package commerce

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"eatech-voice/internal/voice/command"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method, path, auth string
	body               map[string]interface{}
}

func newPlatform(t *testing.T, handler http.HandlerFunc) (*Session, *[]recorded) {
	t.Helper()
	var mu sync.Mutex
	calls := &[]recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]interface{}
		_ = jsoniter.Unmarshal(raw, &body)
		mu.Lock()
		*calls = append(*calls, recorded{r.Method, r.URL.RequestURI(), r.Header.Get("Authorization"), body})
		mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	log := logrus.New()
	log.SetOutput(io.Discard)
	return New(srv.URL+"/", "secret", log).ForDevice("r-bern", "kiosk-1", 4), calls
}

func TestCartCalls(t *testing.T) {
	s, calls := newPlatform(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Write([]byte(`{"items":[{"name":"Rösti","quantity":2,"price":14.5}]}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	ctx := context.Background()

	require.NoError(t, s.AddItem(ctx, "Rösti", 2))
	require.NoError(t, s.RemoveItem(ctx, "Café crème"))
	require.NoError(t, s.ClearCart(ctx))
	items, err := s.Items(ctx)
	require.NoError(t, err)
	require.Equal(t, []command.CartItem{{Name: "Rösti", Quantity: 2, Price: 14.5}}, items)

	require.Len(t, *calls, 4)
	require.Equal(t, "POST", (*calls)[0].method)
	require.Equal(t, "/restaurants/r-bern/carts/kiosk-1/items", (*calls)[0].path)
	require.Equal(t, "Bearer secret", (*calls)[0].auth)
	require.Equal(t, float64(2), (*calls)[0].body["quantity"])
	require.Equal(t, "/restaurants/r-bern/carts/kiosk-1/items/Caf%C3%A9%20cr%C3%A8me", (*calls)[1].path)
	require.Equal(t, "DELETE", (*calls)[2].method)
}

func TestCreateOrderUsesDeviceTable(t *testing.T) {
	s, calls := newPlatform(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"o-17","status":"pending","total":29}`))
	})

	order, err := s.CreateOrder(context.Background(), command.OrderRequest{
		Items:         []command.CartItem{{Name: "Rösti", Quantity: 2, Price: 14.5}},
		PaymentMethod: "twint",
		Language:      "de-CH",
	})
	require.NoError(t, err)
	require.Equal(t, command.Order{ID: "o-17", Status: "pending", Total: 29}, order)

	body := (*calls)[0].body
	require.Equal(t, float64(4), body["table"])
	require.Equal(t, "kiosk-1", body["deviceId"])
	require.Equal(t, "twint", body["paymentMethod"])
}

func TestErrorMapping(t *testing.T) {
	s, _ := newPlatform(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/restaurants/r-bern/orders/latest":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"message":"kitchen closed"}`))
		}
	})
	ctx := context.Background()

	_, err := s.LatestOrder(ctx)
	require.ErrorIs(t, err, command.ErrNotFound)

	err = s.CallWaiter(ctx, 0)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusConflict, apiErr.Status)
	require.Equal(t, "kitchen closed", apiErr.Message)
}

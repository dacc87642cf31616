package commerce

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"eatech-voice/internal/voice/command"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

// APIError is a non-2xx answer from the ordering platform.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("commerce API %d: %s", e.Status, e.Message)
}

// Client talks to the ordering platform REST API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     *logrus.Logger
}

func New(baseURL, token string, log *logrus.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

// NewFromEnv reads COMMERCE_API_URL and COMMERCE_API_TOKEN.
func NewFromEnv(log *logrus.Logger) *Client {
	return New(os.Getenv("COMMERCE_API_URL"), os.Getenv("COMMERCE_API_TOKEN"), log)
}

// ForDevice scopes the client to one device's cart and table.
func (c *Client) ForDevice(restaurantID, deviceID string, table int) *Session {
	return &Session{c: c, restaurant: restaurantID, device: deviceID, table: table}
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := jsoniter.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.log.WithFields(logrus.Fields{
		"method":     method,
		"path":       path,
		"status":     resp.StatusCode,
		"latency_ms": time.Since(started).Milliseconds(),
	}).Debug("commerce API call")

	if resp.StatusCode == http.StatusNotFound {
		return command.ErrNotFound
	}
	if resp.StatusCode >= 300 {
		var e struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = jsoniter.Unmarshal(raw, &e)
		msg := e.Message
		if msg == "" {
			msg = e.Error
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := jsoniter.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// Session implements the cart, order and restaurant collaborators of the
// command executor for one device.
type Session struct {
	c          *Client
	restaurant string
	device     string
	table      int
}

func (s *Session) path(parts ...string) string {
	escaped := make([]string, 0, len(parts)+2)
	escaped = append(escaped, "restaurants", url.PathEscape(s.restaurant))
	for _, p := range parts {
		escaped = append(escaped, url.PathEscape(p))
	}
	return "/" + strings.Join(escaped, "/")
}

func (s *Session) AddItem(ctx context.Context, name string, quantity int) error {
	return s.c.do(ctx, http.MethodPost, s.path("carts", s.device, "items"), map[string]interface{}{
		"name":     name,
		"quantity": quantity,
	}, nil)
}

func (s *Session) RemoveItem(ctx context.Context, name string) error {
	return s.c.do(ctx, http.MethodDelete, s.path("carts", s.device, "items", name), nil, nil)
}

func (s *Session) ClearCart(ctx context.Context) error {
	return s.c.do(ctx, http.MethodDelete, s.path("carts", s.device), nil, nil)
}

func (s *Session) Items(ctx context.Context) ([]command.CartItem, error) {
	var out struct {
		Items []command.CartItem `json:"items"`
	}
	if err := s.c.do(ctx, http.MethodGet, s.path("carts", s.device), nil, &out); err != nil {
		if errors.Is(err, command.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return out.Items, nil
}

type orderPayload struct {
	command.OrderRequest
	DeviceID string `json:"deviceId"`
}

func (s *Session) CreateOrder(ctx context.Context, req command.OrderRequest) (command.Order, error) {
	if req.Table == 0 {
		req.Table = s.table
	}
	var order command.Order
	err := s.c.do(ctx, http.MethodPost, s.path("orders"), orderPayload{OrderRequest: req, DeviceID: s.device}, &order)
	return order, err
}

func (s *Session) CancelOrder(ctx context.Context, id, reason string) error {
	return s.c.do(ctx, http.MethodPost, s.path("orders", id, "cancel"), map[string]string{"reason": reason}, nil)
}

func (s *Session) LatestOrder(ctx context.Context) (command.Order, error) {
	var order command.Order
	err := s.c.do(ctx, http.MethodGet, s.path("orders", "latest")+"?device="+url.QueryEscape(s.device), nil, &order)
	return order, err
}

func (s *Session) Reserve(ctx context.Context, r command.Reservation) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := s.c.do(ctx, http.MethodPost, s.path("reservations"), r, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (s *Session) CallWaiter(ctx context.Context, table int) error {
	if table == 0 {
		table = s.table
	}
	return s.c.do(ctx, http.MethodPost, s.path("tables", strconv.Itoa(table), "waiter"), map[string]string{"deviceId": s.device}, nil)
}

func (s *Session) RequestBill(ctx context.Context, req command.BillRequest) error {
	if req.Table == 0 {
		req.Table = s.table
	}
	return s.c.do(ctx, http.MethodPost, s.path("bills"), req, nil)
}

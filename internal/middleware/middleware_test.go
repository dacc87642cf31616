package middleware

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"eatech-voice/internal/entity"
	jwtPkg "eatech-voice/pkg/jwt"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T, m Middleware, handlers ...fiber.Handler) *fiber.App {
	t.Helper()
	app := fiber.New()
	app.Use(m.NewRequestIDMiddleware())
	handlers = append(handlers, func(c *fiber.Ctx) error {
		device, err := jwtPkg.GetDeviceLoginData(c)
		if err != nil {
			return c.SendStatus(fiber.StatusTeapot)
		}
		return c.JSON(fiber.Map{"device": device.ID, "request_id": m.GetRequestID(c)})
	})
	app.Get("/", handlers...)
	return app
}

func deviceToken(t *testing.T) string {
	t.Helper()
	token, _, err := jwtPkg.SignDevice(entity.DeviceLoginData{ID: "kiosk-1", RestaurantID: "r-bern"}, time.Hour)
	require.NoError(t, err)
	return token
}

func body(t *testing.T, r io.Reader) map[string]string {
	t.Helper()
	var out map[string]string
	require.NoError(t, jsoniter.NewDecoder(r).Decode(&out))
	return out
}

func TestTokenMiddleware(t *testing.T) {
	t.Setenv(AccessTokenSecret, "test-secret")
	m := New(logrus.New())
	app := newTestApp(t, m, m.NewTokenMiddleware)

	req := httptest.NewRequest("GET", "/", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+deviceToken(t))
	req.Header.Set(RequestIDKey, "req-42")
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	out := body(t, resp.Body)
	require.Equal(t, "kiosk-1", out["device"])
	require.Equal(t, "req-42", out["request_id"])
}

func TestTokenWithoutDeviceRejected(t *testing.T) {
	t.Setenv(AccessTokenSecret, "test-secret")
	m := New(logrus.New())
	app := newTestApp(t, m, m.NewTokenMiddleware)

	token, _, err := jwtPkg.Sign(map[string]interface{}{"email": "gast@example.ch"}, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestStreamTokenFromQuery(t *testing.T) {
	t.Setenv(AccessTokenSecret, "test-secret")
	m := New(logrus.New())
	app := newTestApp(t, m, m.NewStreamTokenMiddleware)

	resp, err := app.Test(httptest.NewRequest("GET", "/?token="+deviceToken(t), nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "kiosk-1", body(t, resp.Body)["device"])

	resp, err = app.Test(httptest.NewRequest("GET", "/?token=garbage", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRequestIDGenerated(t *testing.T) {
	m := New(logrus.New())
	app := fiber.New()
	app.Use(m.NewRequestIDMiddleware())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(m.GetRequestID(c)) })

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	id := resp.Header.Get(RequestIDKey)
	require.Len(t, id, 26)
	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, id, string(got))
}

func TestRateLimiterPerDevice(t *testing.T) {
	t.Setenv(AccessTokenSecret, "test-secret")
	m := &middleware{
		rateLimitter:        newRateLimiter(0, 2),
		requestIDMiddleware: NewRequestIDMiddleware(),
		log:                 logrus.New(),
	}
	app := newTestApp(t, m, m.NewTokenMiddleware, m.NewRateLimiter)
	token := deviceToken(t)

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		require.NoError(t, err)
		statuses = append(statuses, resp.StatusCode)
	}
	require.Equal(t, []int{200, 200, 429}, statuses)
}

func TestSanitizeRequestBody(t *testing.T) {
	got := sanitizeRequestBody(fiber.MIMEApplicationJSON, []byte(`{"text":"zwei Rösti","apiKey":"sk-1"}`))
	var out map[string]string
	require.NoError(t, jsoniter.UnmarshalFromString(got, &out))
	require.Equal(t, "zwei Rösti", out["text"])
	require.Equal(t, "[SECRET]", out["apiKey"])

	require.Equal(t, "[non-JSON body]", sanitizeRequestBody(fiber.MIMETextPlain, []byte("hallo")))
	require.Equal(t, "[multipart body]", sanitizeRequestBody(fiber.MIMEMultipartForm+"; boundary=x", []byte("--x")))
}

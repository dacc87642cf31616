package handlerUtil

import (
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"eatech-voice/internal/voice/preferences"
	"eatech-voice/pkg/response"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, err error) (int, ErrorResponse) {
	t.Helper()
	app := fiber.New()
	h := New(logrus.New())
	app.Get("/", func(c *fiber.Ctx) error {
		return h.Handle(c, "req-1", err, c.Path(), "test")
	})

	resp, rerr := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, rerr)
	var out ErrorResponse
	require.NoError(t, jsoniter.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestHandleResponseError(t *testing.T) {
	base := response.NewKindError(fiber.StatusConflict, "voice-disabled", "voice input is disabled")
	status, out := serve(t, fmt.Errorf("process: %w", base))
	require.Equal(t, fiber.StatusConflict, status)
	require.Equal(t, "voice-disabled", out.Code)
}

func TestHandlePreferencesValidation(t *testing.T) {
	err := &preferences.ValidationError{Fields: []preferences.FieldError{
		{Field: "speech.rate", Rule: "max", Param: "2", Value: 3.5},
	}}
	status, out := serve(t, err)
	require.Equal(t, fiber.StatusUnprocessableEntity, status)
	require.Equal(t, "invalid-preferences", out.Code)
	require.NotNil(t, out.Fields)
}

func TestHandleUnexpectedHidesCause(t *testing.T) {
	status, out := serve(t, errors.New("pq: connection refused"))
	require.Equal(t, fiber.StatusInternalServerError, status)
	require.NotContains(t, out.Error, "pq")
	require.Equal(t, "req-1", out.TraceID)
}

package voiceHandler

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"eatech-voice/internal/api/voice"
	voiceService "eatech-voice/internal/api/voice/service"
	"eatech-voice/internal/entity"
	"eatech-voice/internal/middleware"
	"eatech-voice/internal/voice/assistant"
	"eatech-voice/internal/voice/preferences"
	"eatech-voice/pkg/handlerUtil"
	jwtPkg "eatech-voice/pkg/jwt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	voiceService.IVoiceService

	device   entity.DeviceLoginData
	command  voice.CommandRequest
	audio    string
	language string
	patch    []byte
	saved    bool
	err      error
}

func (f *fakeService) ProcessCommand(_ context.Context, device entity.DeviceLoginData, req voice.CommandRequest) (*voice.CommandResponse, error) {
	f.device, f.command = device, req
	if f.err != nil {
		return nil, f.err
	}
	return &voice.CommandResponse{Result: assistant.CommandResult{Original: req.Text, Accepted: true}}, nil
}

func (f *fakeService) ProcessAudio(_ context.Context, device entity.DeviceLoginData, file *multipart.FileHeader, language string) (*voice.CommandResponse, error) {
	f.device, f.audio, f.language = device, file.Filename, language
	return &voice.CommandResponse{Transcript: "zwei Rösti"}, nil
}

func (f *fakeService) GetHistory(_ context.Context, _ entity.DeviceLoginData, q voice.HistoryQuery) (*voice.HistoryResponse, error) {
	return &voice.HistoryResponse{Items: []voice.VoiceCommandHistory{}, Page: q.Page, Limit: q.Limit}, nil
}

func (f *fakeService) PatchPreferences(_ context.Context, _ entity.DeviceLoginData, patch []byte) (preferences.Preferences, error) {
	f.patch = patch
	if f.err != nil {
		return preferences.Preferences{}, f.err
	}
	return preferences.Defaults(), nil
}

func (f *fakeService) SavePreferences(context.Context, entity.DeviceLoginData) error {
	f.saved = true
	return nil
}

func (f *fakeService) StartListening(context.Context, entity.DeviceLoginData) (*voice.ListenResponse, error) {
	return nil, f.err
}

func newTestApp(t *testing.T, svc voiceService.IVoiceService) (*fiber.App, string) {
	t.Helper()
	t.Setenv(middleware.AccessTokenSecret, "test-secret")

	log := logrus.New()
	app := fiber.New()
	mw := middleware.New(log)
	app.Use(mw.NewRequestIDMiddleware())
	New(log, validator.New(), mw, svc).Start(app.Group("/api/v1"))

	token, _, err := jwtPkg.SignDevice(entity.DeviceLoginData{ID: "kiosk-3", RestaurantID: "r-bern"}, time.Hour)
	require.NoError(t, err)
	return app, token
}

func do(t *testing.T, app *fiber.App, token string, req *http.Request) (*http.Response, handlerUtil.ErrorResponse) {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var out handlerUtil.ErrorResponse
	if resp.StatusCode >= 400 {
		require.NoError(t, jsoniter.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	return req
}

func TestProcessCommandJSON(t *testing.T) {
	svc := &fakeService{}
	app, token := newTestApp(t, svc)

	resp, _ := do(t, app, token, jsonRequest("POST", "/api/v1/voice/command", `{"text":"Zwei Rösti bitte","language":"de-CH"}`))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "kiosk-3", svc.device.ID)
	require.Equal(t, "r-bern", svc.device.RestaurantID)
	require.Equal(t, "Zwei Rösti bitte", svc.command.Text)

	var out voice.CommandResponse
	require.NoError(t, jsoniter.NewDecoder(resp.Body).Decode(&out))
	require.True(t, out.Result.Accepted)
}

func TestProcessCommandValidation(t *testing.T) {
	app, token := newTestApp(t, &fakeService{})

	resp, out := do(t, app, token, jsonRequest("POST", "/api/v1/voice/command", `{"text":"","language":"xx"}`))
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "VALIDATION_ERROR", out.Code)
}

func TestProcessCommandServiceError(t *testing.T) {
	app, token := newTestApp(t, &fakeService{err: voice.ErrVoiceDisabled})

	resp, out := do(t, app, token, jsonRequest("POST", "/api/v1/voice/command", `{"text":"Menü"}`))
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
	require.Equal(t, "voice-disabled", out.Code)
}

func TestProcessCommandAudio(t *testing.T) {
	svc := &fakeService{}
	app, token := newTestApp(t, svc)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("audio", "bestellung.wav")
	require.NoError(t, err)
	_, err = part.Write([]byte("RIFF"))
	require.NoError(t, err)
	require.NoError(t, w.WriteField("language", "fr-CH"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/api/v1/voice/command", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, _ := do(t, app, token, req)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "bestellung.wav", svc.audio)
	require.Equal(t, "fr-CH", svc.language)
}

func TestRequiresToken(t *testing.T) {
	app, _ := newTestApp(t, &fakeService{})

	resp, out := do(t, app, "", jsonRequest("POST", "/api/v1/voice/command", `{"text":"Menü"}`))
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "UNAUTHORIZED", out.Code)
}

func TestHistoryQuery(t *testing.T) {
	app, token := newTestApp(t, &fakeService{})

	resp, _ := do(t, app, token, httptest.NewRequest("GET", "/api/v1/voice/history?page=2&limit=10", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var out voice.HistoryResponse
	require.NoError(t, jsoniter.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, 2, out.Page)
	require.Equal(t, 10, out.Limit)

	resp, _ = do(t, app, token, httptest.NewRequest("GET", "/api/v1/voice/history?limit=500", nil))
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestPatchPreferences(t *testing.T) {
	svc := &fakeService{}
	app, token := newTestApp(t, svc)

	resp, _ := do(t, app, token, jsonRequest("PATCH", "/api/v1/voice/preferences", `{"speaker":{"volume":0.4}}`))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"speaker":{"volume":0.4}}`, string(svc.patch))

	resp, _ = do(t, app, token, jsonRequest("PATCH", "/api/v1/voice/preferences", `{"speaker":`))
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestPatchPreferencesRejected(t *testing.T) {
	svc := &fakeService{err: &preferences.ValidationError{Fields: []preferences.FieldError{
		{Field: "speaker.volume", Rule: "lte", Param: "1", Value: 4},
	}}}
	app, token := newTestApp(t, svc)

	resp, out := do(t, app, token, jsonRequest("PATCH", "/api/v1/voice/preferences", `{"speaker":{"volume":4}}`))
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	require.Equal(t, "invalid-preferences", out.Code)
}

func TestSavePreferences(t *testing.T) {
	svc := &fakeService{}
	app, token := newTestApp(t, svc)

	resp, _ := do(t, app, token, httptest.NewRequest("POST", "/api/v1/voice/preferences/save", nil))
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	require.True(t, svc.saved)
}

func TestStartListeningError(t *testing.T) {
	app, token := newTestApp(t, &fakeService{err: voice.ErrDeviceNotConnected})

	resp, out := do(t, app, token, httptest.NewRequest("POST", "/api/v1/voice/listen/start", nil))
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
	require.Equal(t, "device-not-connected", out.Code)
}

func TestStreamRequiresUpgrade(t *testing.T) {
	app, token := newTestApp(t, &fakeService{})

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/voice/ws?token="+token, nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/api/v1/voice/ws", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

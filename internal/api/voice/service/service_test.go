package voiceService

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"strings"
	"sync"
	"testing"
	"time"

	"eatech-voice/internal/api/voice"
	voiceRepository "eatech-voice/internal/api/voice/repository"
	"eatech-voice/internal/entity"
	"eatech-voice/internal/voice/feedback"
	"eatech-voice/internal/voice/preferences"
	"eatech-voice/internal/voice/recognition"
	"eatech-voice/pkg/audio"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

var kiosk = entity.DeviceLoginData{ID: "kiosk-1", RestaurantID: "r-bern", Table: 4, Kind: entity.DeviceKiosk}

type fakeCommands struct {
	mu    sync.Mutex
	items []entity.VoiceCommand
}

func (f *fakeCommands) CreateVoiceCommand(_ context.Context, cmd entity.VoiceCommand) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, cmd)
	return nil
}

func (f *fakeCommands) GetVoiceCommandsByDeviceID(_ context.Context, deviceID string, limit, offset int) ([]entity.VoiceCommand, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var mine []entity.VoiceCommand
	for i := len(f.items) - 1; i >= 0; i-- {
		if f.items[i].DeviceID == deviceID {
			mine = append(mine, f.items[i])
		}
	}
	if offset > len(mine) {
		offset = len(mine)
	}
	end := min(offset+limit, len(mine))
	return mine[offset:end], len(mine), nil
}

func (f *fakeCommands) DeleteVoiceCommandsByDeviceID(_ context.Context, deviceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.items[:0]
	for _, c := range f.items {
		if c.DeviceID != deviceID {
			kept = append(kept, c)
		}
	}
	f.items = kept
	return nil
}

func (f *fakeCommands) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

type fakePreferences struct {
	mu      sync.Mutex
	records map[string]entity.VoicePreferences
}

func (f *fakePreferences) GetPreferences(_ context.Context, deviceID string) (entity.VoicePreferences, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[deviceID]
	if !ok {
		return entity.VoicePreferences{}, voice.ErrPreferencesNotFound
	}
	return rec, nil
}

func (f *fakePreferences) UpsertPreferences(_ context.Context, prefs entity.VoicePreferences) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[prefs.DeviceID] = prefs
	return nil
}

func (f *fakePreferences) get(deviceID string) (entity.VoicePreferences, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[deviceID]
	return rec, ok
}

type fakeMenu struct {
	items []entity.MenuItem
}

func (f *fakeMenu) FindMenuItem(_ context.Context, restaurantID, name, _ string) (entity.MenuItem, error) {
	for _, it := range f.items {
		if it.RestaurantID == restaurantID && strings.EqualFold(it.Name, name) {
			return it, nil
		}
	}
	return entity.MenuItem{}, voice.ErrMenuItemNotFound
}

type fakeRepo struct {
	commands *fakeCommands
	prefs    *fakePreferences
	menu     *fakeMenu
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		commands: &fakeCommands{},
		prefs:    &fakePreferences{records: map[string]entity.VoicePreferences{}},
		menu: &fakeMenu{items: []entity.MenuItem{
			{ID: "m1", RestaurantID: "r-bern", Name: "Rösti", Language: "de", Price: 14.5, Currency: "CHF", Available: true},
		}},
	}
}

func (f *fakeRepo) NewClient(bool) (voiceRepository.Client, error) {
	return voiceRepository.Client{
		VoiceCommands: f.commands,
		Preferences:   f.prefs,
		Menu:          f.menu,
		Commit:        func() error { return nil },
		Rollback:      func() error { return nil },
	}, nil
}

type frame struct {
	mt   int
	data []byte
}

// fakeConn is the device end of a websocket.
type fakeConn struct {
	in     chan frame
	closed chan struct{}
	once   sync.Once

	mu      sync.Mutex
	written []map[string]interface{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan frame, 16), closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case f := <-c.in:
		return f.mt, f.data, nil
	case <-c.closed:
		return 0, nil, errors.New("connection closed")
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	var ev map[string]interface{}
	if err := jsoniter.Unmarshal(data, &ev); err != nil {
		return err
	}
	c.mu.Lock()
	c.written = append(c.written, ev)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) send(msg voice.StreamMessage) {
	data, _ := jsoniter.Marshal(msg)
	c.in <- frame{websocket.TextMessage, data}
}

func (c *fakeConn) event(typ string) (map[string]interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ev := range c.written {
		if ev["type"] == typ {
			return ev, true
		}
	}
	return nil, false
}

func (c *fakeConn) hasEvent(typ string) func() bool {
	return func() bool {
		_, ok := c.event(typ)
		return ok
	}
}

type fakeSynth struct{}

func (fakeSynth) Synthesize(_ context.Context, req feedback.Request) (feedback.Audio, error) {
	return feedback.Audio{Data: []byte("mp3:" + req.Text), MimeType: "audio/mpeg"}, nil
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f fakeTranscriber) Transcribe(_ context.Context, _ string, r io.Reader, _ string) (audio.Transcript, error) {
	if _, err := io.ReadAll(r); err != nil {
		return audio.Transcript{}, err
	}
	return audio.Transcript{Text: f.text, Language: "de", Confidence: 0.92}, f.err
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestService(t *testing.T, repo voiceRepository.Repository, cfg Config) *voiceService {
	t.Helper()
	if cfg.PreferencesDir == "" {
		cfg.PreferencesDir = t.TempDir()
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = -1
	}
	if cfg.QuietPeriod == 0 {
		cfg.QuietPeriod = time.Hour
	}
	svc := NewVoiceService(quietLogger(), repo, cfg).(*voiceService)
	t.Cleanup(func() { _ = svc.Close(context.Background()) })
	return svc
}

// connect serves a fake device connection until the test ends.
func connect(t *testing.T, svc *voiceService, device entity.DeviceLoginData) *fakeConn {
	t.Helper()
	conn := newFakeConn()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = svc.Serve(context.Background(), device, conn)
	}()
	t.Cleanup(func() {
		conn.Close()
		<-done
	})
	require.Eventually(t, func() bool {
		st, err := svc.GetStatus(context.Background(), device)
		return err == nil && st.Connected
	}, time.Second, 5*time.Millisecond)
	return conn
}

func TestPriceQueryUsesMenuAndArchivesCommand(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo, Config{})

	out, err := svc.ProcessCommand(context.Background(), kiosk, voice.CommandRequest{
		Text:     "was kostet rösti",
		Language: "de-CH",
	})
	require.NoError(t, err)
	require.True(t, out.Result.Succeeded())
	require.Equal(t, 14.5, out.Result.Execution.Data["price"])
	require.Equal(t, "CHF", out.Result.Execution.Data["currency"])

	require.Equal(t, 1, repo.commands.count())
	history, err := svc.GetHistory(context.Background(), kiosk, voice.HistoryQuery{})
	require.NoError(t, err)
	require.Equal(t, 1, history.Total)
	require.Equal(t, "price_query", history.Items[0].Intent)
	require.True(t, history.Items[0].Success)
}

func TestUnknownMenuItem(t *testing.T) {
	svc := newTestService(t, newFakeRepo(), Config{})

	out, err := svc.ProcessCommand(context.Background(), kiosk, voice.CommandRequest{
		Text:     "was kostet fondue",
		Language: "de-CH",
	})
	require.NoError(t, err)
	require.True(t, out.Result.Accepted)
	require.False(t, out.Result.Succeeded())
}

func TestEmptyCommand(t *testing.T) {
	svc := newTestService(t, nil, Config{})

	_, err := svc.ProcessCommand(context.Background(), kiosk, voice.CommandRequest{Text: "   "})
	require.ErrorIs(t, err, voice.ErrEmptyCommand)

	_, err = svc.ProcessCommand(context.Background(), entity.DeviceLoginData{}, voice.CommandRequest{Text: "hilfe"})
	require.ErrorIs(t, err, voice.ErrUnauthorizedDevice)
}

func TestDisabledVoiceRejectsInput(t *testing.T) {
	svc := newTestService(t, nil, Config{})
	ctx := context.Background()

	_, err := svc.PatchPreferences(ctx, kiosk, []byte(`{"enabled":false}`))
	require.NoError(t, err)

	_, err = svc.ProcessCommand(ctx, kiosk, voice.CommandRequest{Text: "hilfe"})
	require.ErrorIs(t, err, voice.ErrVoiceDisabled)
	_, err = svc.StartListening(ctx, kiosk)
	require.ErrorIs(t, err, voice.ErrVoiceDisabled)
}

func TestPatchPreferences(t *testing.T) {
	svc := newTestService(t, nil, Config{})
	ctx := context.Background()

	_, err := svc.PatchPreferences(ctx, kiosk, []byte(`{"recognition":{"confidenceThreshold":1.5}}`))
	var verr *preferences.ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = svc.PatchPreferences(ctx, kiosk, []byte(`{"language":`))
	require.ErrorIs(t, err, voice.ErrInvalidPreferences)

	p, err := svc.PatchPreferences(ctx, kiosk, []byte(`{"language":"fr-CH","feedback":{"rate":1.2}}`))
	require.NoError(t, err)
	require.Equal(t, "fr-CH", p.Language)
	require.Equal(t, 1.2, p.Feedback.Rate)
	require.Equal(t, preferences.Defaults().Recognition.ConfidenceThreshold, p.Recognition.ConfidenceThreshold)

	p, err = svc.ResetPreferences(ctx, kiosk)
	require.NoError(t, err)
	require.Equal(t, "de-CH", p.Language)
}

func TestSavePreferencesWritesRemoteCopy(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo, Config{})
	ctx := context.Background()

	_, err := svc.PatchPreferences(ctx, kiosk, []byte(`{"language":"it-CH"}`))
	require.NoError(t, err)
	require.NoError(t, svc.SavePreferences(ctx, kiosk))

	rec, ok := repo.prefs.get(kiosk.ID)
	require.True(t, ok)
	require.Equal(t, preferences.CurrentVersion, rec.Version)
	require.Contains(t, string(rec.Data), `"it-CH"`)
	require.False(t, rec.LastModified.IsZero())
}

func TestSessionStartsFromRemotePreferences(t *testing.T) {
	repo := newFakeRepo()
	stored := preferences.Defaults()
	stored.Language = "fr-CH"
	stored.LastModified = time.Now()
	data, err := preferences.Encode(stored)
	require.NoError(t, err)
	repo.prefs.records[kiosk.ID] = entity.VoicePreferences{DeviceID: kiosk.ID, Version: 3, Data: data, LastModified: stored.LastModified}

	svc := newTestService(t, repo, Config{})
	p, err := svc.GetPreferences(context.Background(), kiosk)
	require.NoError(t, err)
	require.Equal(t, "fr-CH", p.Language)
}

func TestNavigationIsPushedToDevice(t *testing.T) {
	svc := newTestService(t, nil, Config{})
	conn := connect(t, svc, kiosk)

	out, err := svc.ProcessCommand(context.Background(), kiosk, voice.CommandRequest{Text: "zurück", Language: "de-CH"})
	require.NoError(t, err)
	require.True(t, out.Result.Succeeded())

	require.Eventually(t, conn.hasEvent("back"), time.Second, 5*time.Millisecond)
	require.Eventually(t, conn.hasEvent("result"), time.Second, 5*time.Millisecond)
}

func TestNavigationWithoutDeviceFails(t *testing.T) {
	svc := newTestService(t, nil, Config{})

	out, err := svc.ProcessCommand(context.Background(), kiosk, voice.CommandRequest{Text: "zurück", Language: "de-CH"})
	require.NoError(t, err)
	require.True(t, out.Result.Accepted)
	require.False(t, out.Result.Succeeded())
}

func TestSpeakStreamsAudioUntilAcknowledged(t *testing.T) {
	svc := newTestService(t, nil, Config{Synthesizer: fakeSynth{}})
	ctx := context.Background()

	_, err := svc.Speak(ctx, kiosk, voice.SpeakRequest{Text: "Grüezi"})
	require.ErrorIs(t, err, voice.ErrDeviceNotConnected)

	conn := connect(t, svc, kiosk)
	out, err := svc.Speak(ctx, kiosk, voice.SpeakRequest{Text: "Grüezi mitenand"})
	require.NoError(t, err)
	require.NotEmpty(t, out.ID)

	require.Eventually(t, conn.hasEvent("speech-play"), time.Second, 5*time.Millisecond)
	ev, _ := conn.event("speech-play")
	payload := ev["payload"].(map[string]interface{})
	require.Equal(t, out.ID, payload["id"])
	require.Equal(t, "audio/mpeg", payload["mimeType"])
	require.InDelta(t, 0.8, payload["volume"], 1e-9)
	require.NotEmpty(t, payload["audio"])

	st, err := svc.GetStatus(ctx, kiosk)
	require.NoError(t, err)
	require.True(t, st.Speaking)

	conn.send(voice.StreamMessage{Type: voice.StreamSpeechEnded, ID: out.ID})
	require.Eventually(t, func() bool {
		st, err := svc.GetStatus(ctx, kiosk)
		return err == nil && !st.Speaking
	}, time.Second, 5*time.Millisecond)
}

func TestSpeakWithoutSynthesizer(t *testing.T) {
	svc := newTestService(t, nil, Config{})

	_, err := svc.Speak(context.Background(), kiosk, voice.SpeakRequest{Text: "Grüezi"})
	require.ErrorIs(t, err, voice.ErrFeedbackDisabled)
}

func TestDeviceRecognizerRoundTrip(t *testing.T) {
	svc := newTestService(t, nil, Config{})
	ctx := context.Background()
	conn := connect(t, svc, kiosk)

	_, err := svc.StartListening(ctx, kiosk)
	require.NoError(t, err)
	require.Eventually(t, conn.hasEvent("mic-open"), time.Second, 5*time.Millisecond)
	require.Eventually(t, conn.hasEvent("recognizer-start"), time.Second, 5*time.Millisecond)
	ev, _ := conn.event("mic-open")
	mic := ev["payload"].(map[string]interface{})
	require.Equal(t, true, mic["noiseSuppression"])
	require.Equal(t, true, mic["echoCancellation"])
	require.InDelta(t, 0.5, mic["sensitivity"], 1e-9)
	ev, _ = conn.event("recognizer-start")
	start := ev["payload"].(map[string]interface{})
	require.Equal(t, "de-CH", start["language"])
	require.InDelta(t, 3000, start["silenceTimeoutMs"], 1e-9)

	_, err = svc.StartListening(ctx, kiosk)
	require.ErrorIs(t, err, voice.ErrRecognizerBusy)

	conn.send(voice.StreamMessage{Type: voice.StreamRecognizerStarted})
	require.Eventually(t, func() bool {
		st, _ := svc.GetStatus(ctx, kiosk)
		return st.Session.State == recognition.StateListening
	}, time.Second, 5*time.Millisecond)

	conn.send(voice.StreamMessage{
		Type:         voice.StreamRecognizerResult,
		Final:        true,
		Alternatives: []recognition.Alternative{{Transcript: "zurück", Confidence: 0.95}},
	})
	require.Eventually(t, conn.hasEvent("back"), time.Second, 5*time.Millisecond)
	require.Eventually(t, conn.hasEvent("transcript"), time.Second, 5*time.Millisecond)

	conn.send(voice.StreamMessage{Type: voice.StreamRecognizerEnd})
	require.Eventually(t, func() bool {
		st, _ := svc.GetStatus(ctx, kiosk)
		return st.Session.State == recognition.StateIdle
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, conn.hasEvent("mic-close"), time.Second, 5*time.Millisecond)
}

func TestMicrophoneErrorReachesDevice(t *testing.T) {
	svc := newTestService(t, nil, Config{})
	ctx := context.Background()
	conn := connect(t, svc, kiosk)

	_, err := svc.StartListening(ctx, kiosk)
	require.NoError(t, err)
	conn.send(voice.StreamMessage{Type: voice.StreamMicError, Error: "NotAllowedError"})

	require.Eventually(t, conn.hasEvent("error"), time.Second, 5*time.Millisecond)
	ev, _ := conn.event("error")
	require.Equal(t, "permission-denied", ev["payload"].(map[string]interface{})["code"])
}

func TestListeningWithoutDevice(t *testing.T) {
	svc := newTestService(t, nil, Config{})

	_, err := svc.StartListening(context.Background(), kiosk)
	require.ErrorIs(t, err, voice.ErrDeviceNotConnected)

	_, err = svc.StopListening(context.Background(), kiosk)
	require.ErrorIs(t, err, voice.ErrNotListening)
}

func TestStreamCommandAndPing(t *testing.T) {
	svc := newTestService(t, nil, Config{})
	conn := connect(t, svc, kiosk)

	conn.send(voice.StreamMessage{Type: voice.StreamPing})
	require.Eventually(t, conn.hasEvent("pong"), time.Second, 5*time.Millisecond)

	conn.send(voice.StreamMessage{Type: voice.StreamCommand, Text: "zurück", Language: "de-CH"})
	require.Eventually(t, conn.hasEvent("back"), time.Second, 5*time.Millisecond)

	conn.in <- frame{websocket.BinaryMessage, audio.EncodePCM(make([]int16, 320))}
	conn.in <- frame{websocket.BinaryMessage, []byte{1, 2, 3}}
}

func TestNewConnectionReplacesOld(t *testing.T) {
	svc := newTestService(t, nil, Config{})
	first := connect(t, svc, kiosk)
	second := connect(t, svc, kiosk)

	select {
	case <-first.closed:
	case <-time.After(time.Second):
		t.Fatal("old connection was not closed")
	}
	require.Eventually(t, func() bool {
		st, err := svc.GetStatus(context.Background(), kiosk)
		return err == nil && st.Connected
	}, time.Second, 5*time.Millisecond)

	_, err := svc.ProcessCommand(context.Background(), kiosk, voice.CommandRequest{Text: "zurück", Language: "de-CH"})
	require.NoError(t, err)
	require.Eventually(t, second.hasEvent("back"), time.Second, 5*time.Millisecond)
}

func TestHistoryInMemoryWithoutDatabase(t *testing.T) {
	svc := newTestService(t, nil, Config{})
	ctx := context.Background()

	_, err := svc.ProcessCommand(ctx, kiosk, voice.CommandRequest{Text: "hilfe", Language: "de-CH"})
	require.NoError(t, err)
	_, err = svc.ProcessCommand(ctx, kiosk, voice.CommandRequest{Text: "zurück", Language: "de-CH"})
	require.NoError(t, err)

	page, err := svc.GetHistory(ctx, kiosk, voice.HistoryQuery{Page: 2, Limit: 1})
	require.NoError(t, err)
	require.Equal(t, 2, page.Total)
	require.Len(t, page.Items, 1)
	require.Equal(t, "hilfe", page.Items[0].Transcript)

	require.NoError(t, svc.ClearHistory(ctx, kiosk))
	page, err = svc.GetHistory(ctx, kiosk, voice.HistoryQuery{})
	require.NoError(t, err)
	require.Zero(t, page.Total)
}

func TestSuggestionsAndContext(t *testing.T) {
	svc := newTestService(t, nil, Config{})
	ctx := context.Background()

	s, err := svc.GetSuggestions(ctx, kiosk, voice.SuggestionsQuery{Limit: 3})
	require.NoError(t, err)
	require.Equal(t, "de-CH", s.Language)
	require.NotEmpty(t, s.Suggestions)
	require.LessOrEqual(t, len(s.Suggestions), 3)

	c, err := svc.GetContext(ctx, kiosk)
	require.NoError(t, err)
	require.False(t, c.Active)
}

func TestProcessAudio(t *testing.T) {
	upload := func(t *testing.T, name string, body []byte) *multipart.FileHeader {
		t.Helper()
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		part, err := w.CreateFormFile("audio", name)
		require.NoError(t, err)
		_, _ = part.Write(body)
		require.NoError(t, w.Close())
		form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(1 << 20)
		require.NoError(t, err)
		return form.File["audio"][0]
	}
	ctx := context.Background()

	svc := newTestService(t, nil, Config{})
	_, err := svc.ProcessAudio(ctx, kiosk, upload(t, "cmd.webm", []byte("webm")), "")
	require.ErrorIs(t, err, voice.ErrRecognitionUnsupported)

	svc = newTestService(t, nil, Config{Transcriber: fakeTranscriber{text: "hilfe"}})
	_, err = svc.ProcessAudio(ctx, kiosk, upload(t, "menu.png", []byte("png")), "")
	require.ErrorIs(t, err, voice.ErrUnsupportedFormat)

	out, err := svc.ProcessAudio(ctx, kiosk, upload(t, "cmd.webm", []byte("webm")), "de-CH")
	require.NoError(t, err)
	require.Equal(t, "hilfe", out.Transcript)
	require.True(t, out.Result.Accepted)

	svc = newTestService(t, nil, Config{Transcriber: fakeTranscriber{err: errors.New("upstream down")}})
	_, err = svc.ProcessAudio(ctx, kiosk, upload(t, "cmd.webm", []byte("webm")), "")
	require.ErrorIs(t, err, voice.ErrTranscriptionFailed)
}

func TestIdleSessionsAreClosed(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	repo := newFakeRepo()
	svc := newTestService(t, repo, Config{Now: clock})
	ctx := context.Background()

	_, err := svc.PatchPreferences(ctx, kiosk, []byte(`{"language":"en-GB"}`))
	require.NoError(t, err)

	mu.Lock()
	now = now.Add(time.Hour)
	mu.Unlock()
	svc.closeIdle(30 * time.Minute)

	svc.mu.Lock()
	require.Empty(t, svc.sessions)
	svc.mu.Unlock()

	// pending preferences were flushed on close
	rec, ok := repo.prefs.get(kiosk.ID)
	require.True(t, ok)
	require.Contains(t, string(rec.Data), `"en-GB"`)
}

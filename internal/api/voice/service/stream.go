package voiceService

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"time"

	"eatech-voice/internal/api/voice"
	"eatech-voice/internal/voice/assistant"
	"eatech-voice/internal/voice/feedback"
	"eatech-voice/internal/voice/recognition"
	"eatech-voice/pkg/s3"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

const (
	streamBuffer = 64
	// playGrace is added to the estimated speaking time before a playback
	// without acknowledgement counts as finished.
	playGrace = 3 * time.Second
)

// StreamConn is the device end of the websocket.
type StreamConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// link is one attached connection.
type link struct {
	conn   StreamConn
	out    chan []byte
	closed chan struct{}
	once   sync.Once
}

func (l *link) close() {
	l.once.Do(func() {
		close(l.closed)
		_ = l.conn.Close()
	})
}

// deviceStream pushes events to the device and carries its audio and
// playback acknowledgements back. It serves the session as event publisher,
// navigator, audio player, microphone and, in device mode, as recognizer.
type deviceStream struct {
	deviceID string
	s3       s3.ItfS3
	log      *logrus.Logger
	now      func() time.Time

	mu      sync.Mutex
	current *link
	acks    map[string]chan error
	sink    recognition.Sink
}

func newDeviceStream(deviceID string, store s3.ItfS3, log *logrus.Logger, now func() time.Time) *deviceStream {
	return &deviceStream{
		deviceID: deviceID,
		s3:       store,
		log:      log,
		now:      now,
		acks:     make(map[string]chan error),
	}
}

// attach makes conn the device connection, replacing an older one, and
// starts its writer. The returned link is closed by detach.
func (s *deviceStream) attach(conn StreamConn) *link {
	l := &link{
		conn:   conn,
		out:    make(chan []byte, streamBuffer),
		closed: make(chan struct{}),
	}

	s.mu.Lock()
	old := s.current
	s.mu.Unlock()
	if old != nil {
		s.log.WithField("device_id", s.deviceID).Info("device stream replaced by a new connection")
		s.detach(old)
	}

	s.mu.Lock()
	s.current = l
	s.mu.Unlock()
	go s.write(l)
	return l
}

// detach drops l and fails everything waiting on the device.
func (s *deviceStream) detach(l *link) {
	l.close()

	s.mu.Lock()
	if s.current != l {
		s.mu.Unlock()
		return
	}
	s.current = nil
	acks := s.acks
	s.acks = make(map[string]chan error)
	sink := s.sink
	s.sink = nil
	s.mu.Unlock()

	for _, ch := range acks {
		select {
		case ch <- voice.ErrDeviceNotConnected:
		default:
		}
	}
	if sink != nil {
		sink.Signal(recognition.Signal{Kind: recognition.SignalError, Code: recognition.CodeNetwork, Err: voice.ErrDeviceNotConnected})
		sink.Signal(recognition.Signal{Kind: recognition.SignalEnd})
	}
}

func (s *deviceStream) write(l *link) {
	for {
		select {
		case <-l.closed:
			return
		case msg := <-l.out:
			if err := l.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.log.WithFields(logrus.Fields{
					"device_id": s.deviceID,
					"error":     err.Error(),
				}).Warn("writing to device stream failed")
				s.detach(l)
				return
			}
		}
	}
}

func (s *deviceStream) connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

// Publish queues ev for the device. Events are dropped while the device is
// offline or its buffer is full.
func (s *deviceStream) Publish(ev assistant.Event) {
	s.send(ev)
}

func (s *deviceStream) send(ev assistant.Event) bool {
	if ev.DeviceID == "" {
		ev.DeviceID = s.deviceID
	}
	if ev.At.IsZero() {
		ev.At = s.now()
	}
	data, err := jsoniter.Marshal(ev)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"type":  string(ev.Type),
			"error": err.Error(),
		}).Error("encoding device event failed")
		return false
	}

	s.mu.Lock()
	l := s.current
	s.mu.Unlock()
	if l == nil {
		return false
	}

	select {
	case l.out <- data:
		return true
	case <-l.closed:
		return false
	default:
		s.log.WithFields(logrus.Fields{
			"device_id": s.deviceID,
			"type":      string(ev.Type),
		}).Warn("device stream buffer full, dropping event")
		return false
	}
}

func (s *deviceStream) event(t assistant.EventType, payload interface{}) bool {
	return s.send(assistant.Event{Type: t, Payload: payload})
}

// GoTo asks the device to open route.
func (s *deviceStream) GoTo(_ context.Context, route string) error {
	if !s.event(voice.EventNavigate, map[string]string{"route": route}) {
		return voice.ErrDeviceNotConnected
	}
	return nil
}

func (s *deviceStream) Back(_ context.Context) error {
	if !s.event(voice.EventBack, nil) {
		return voice.ErrDeviceNotConnected
	}
	return nil
}

type speechPayload struct {
	ID       string  `json:"id"`
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Volume   float64 `json:"volume"`
	Output   string  `json:"outputDeviceId,omitempty"`
	MimeType string  `json:"mimeType"`
	URL      string  `json:"url,omitempty"`
	Audio    string  `json:"audio,omitempty"`
}

// Play sends the audio to the device and blocks until the device reports the
// end of playback, the expected duration has passed or ctx is cancelled.
func (s *deviceStream) Play(ctx context.Context, req feedback.Request, audio feedback.Audio) error {
	if !s.connected() {
		return voice.ErrDeviceNotConnected
	}

	payload := speechPayload{
		ID:       req.ID,
		Text:     req.Text,
		Language: req.Language,
		Volume:   req.Volume,
		Output:   req.Output,
		MimeType: audio.MimeType,
	}
	if url, err := s.upload(ctx, req, audio); err == nil {
		payload.URL = url
	} else {
		payload.Audio = base64.StdEncoding.EncodeToString(audio.Data)
	}

	ack := make(chan error, 1)
	s.mu.Lock()
	s.acks[req.ID] = ack
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.acks, req.ID)
		s.mu.Unlock()
	}()

	if !s.event(voice.EventSpeechPlay, payload) {
		return voice.ErrDeviceNotConnected
	}

	timer := time.NewTimer(req.Estimate() + playGrace)
	defer timer.Stop()
	select {
	case err := <-ack:
		return err
	case <-timer.C:
		return nil
	case <-ctx.Done():
		s.event(voice.EventSpeechStop, map[string]string{"id": req.ID})
		return ctx.Err()
	}
}

func (s *deviceStream) upload(ctx context.Context, req feedback.Request, audio feedback.Audio) (string, error) {
	if s.s3 == nil {
		return "", errors.New("no audio storage")
	}
	location, err := s.s3.UploadAudio(ctx, "speech/"+s.deviceID+"/"+req.ID+".mp3", audio.Data, audio.MimeType)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"device_id": s.deviceID,
			"error":     err.Error(),
		}).Warn("uploading speech audio failed, sending inline")
		return "", err
	}
	url, err := s.s3.PresignUrl(location)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"device_id": s.deviceID,
			"error":     err.Error(),
		}).Warn("presigning speech audio failed, sending inline")
		return "", err
	}
	return url, nil
}

// acknowledge resolves a pending playback.
func (s *deviceStream) acknowledge(id string, err error) {
	s.mu.Lock()
	ch, ok := s.acks[id]
	s.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- err:
	default:
	}
}

type capture struct {
	s    *deviceStream
	once sync.Once
}

func (c *capture) Release() error {
	c.once.Do(func() { c.s.event(voice.EventMicClose, nil) })
	return nil
}

// Acquire opens the device microphone with the requested input processing.
func (s *deviceStream) Acquire(_ context.Context, cfg recognition.InputConfig) (recognition.Capture, error) {
	if !s.event(voice.EventMicOpen, cfg) {
		return nil, &recognition.Error{Code: recognition.CodeNoMicrophone, Err: voice.ErrDeviceNotConnected}
	}
	return &capture{s: s}, nil
}

// deviceRecognizer runs speech recognition on the device itself and relays
// its results through the stream.
type deviceRecognizer struct {
	s *deviceStream
}

type recognizerPayload struct {
	recognition.RecognizerConfig
	SilenceTimeout int `json:"silenceTimeoutMs,omitempty"`
}

func (r deviceRecognizer) Start(_ context.Context, cfg recognition.RecognizerConfig, sink recognition.Sink) error {
	r.s.mu.Lock()
	r.s.sink = sink
	r.s.mu.Unlock()

	if !r.s.event(voice.EventRecognizerStart, recognizerPayload{cfg, cfg.SilenceTimeoutMs()}) {
		r.s.mu.Lock()
		r.s.sink = nil
		r.s.mu.Unlock()
		return &recognition.Error{Code: recognition.CodeNetwork, Err: voice.ErrDeviceNotConnected}
	}
	return nil
}

func (r deviceRecognizer) Stop() error {
	if !r.s.event(voice.EventRecognizerStop, nil) {
		// nobody left to confirm the end
		if sink := r.s.takeSink(); sink != nil {
			go sink.Signal(recognition.Signal{Kind: recognition.SignalEnd})
		}
	}
	return nil
}

func (r deviceRecognizer) Abort() error {
	r.s.takeSink()
	r.s.event(voice.EventRecognizerAbort, nil)
	return nil
}

func (s *deviceStream) takeSink() recognition.Sink {
	s.mu.Lock()
	defer s.mu.Unlock()
	sink := s.sink
	s.sink = nil
	return sink
}

func (s *deviceStream) recognizerSink() recognition.Sink {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sink
}

// relay forwards a recognizer message from the device to the active session.
func (s *deviceStream) relay(msg voice.StreamMessage) {
	sink := s.recognizerSink()
	if sink == nil {
		return
	}
	switch msg.Type {
	case voice.StreamRecognizerStarted:
		sink.Signal(recognition.Signal{Kind: recognition.SignalStarted})
	case voice.StreamRecognizerResult:
		alts := msg.Alternatives
		if len(alts) == 0 && msg.Text != "" {
			alts = []recognition.Alternative{{Transcript: msg.Text, Confidence: 1}}
		}
		sink.Signal(recognition.Signal{Kind: recognition.SignalResult, Final: msg.Final, Alternatives: alts})
	case voice.StreamRecognizerError:
		sink.Signal(recognition.Signal{
			Kind: recognition.SignalError,
			Code: recognition.ClassifyError(msg.Error),
			Err:  errors.New(msg.Error),
		})
	case voice.StreamRecognizerEnd:
		s.takeSink()
		sink.Signal(recognition.Signal{Kind: recognition.SignalEnd})
	}
}

package websocketPkg

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"eatech-voice/internal/voice/recognition"
	"eatech-voice/pkg/audio"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

const (
	defaultStreamURL = "ws://localhost:8000/api/v1/asr/ws"
	stopGrace        = 5 * time.Second
)

// IStreamRecognizer is a recognition.Recognizer fed with device audio.
type IStreamRecognizer interface {
	recognition.Recognizer
	WriteAudio(pcm []int16) error
	Close() error
}

// Config of the streaming ASR connection.
type Config struct {
	URL          string
	Token        string
	PingInterval time.Duration
	WriteTimeout time.Duration
	DialTimeout  time.Duration
}

func ConfigFromEnv() Config {
	url := os.Getenv("ASR_STREAM_URL")
	if url == "" {
		url = defaultStreamURL
	}
	return Config{
		URL:          url,
		Token:        os.Getenv("ASR_STREAM_TOKEN"),
		PingInterval: 30 * time.Second,
		WriteTimeout: 5 * time.Second,
		DialTimeout:  10 * time.Second,
	}
}

// control messages sent to the ASR service
type startMessage struct {
	Type            string `json:"type"`
	Language        string `json:"language"`
	SampleRate      int    `json:"sampleRate"`
	Continuous      bool   `json:"continuous"`
	InterimResults  bool   `json:"interimResults"`
	MaxAlternatives int    `json:"maxAlternatives"`
	SilenceTimeout  int    `json:"silenceTimeoutMs,omitempty"`
}

type controlMessage struct {
	Type string `json:"type"`
}

// serverMessage is any message received from the ASR service.
type serverMessage struct {
	Type         string                    `json:"type"`
	Final        bool                      `json:"final"`
	Alternatives []recognition.Alternative `json:"alternatives"`
	Error        string                    `json:"error"`
	Message      string                    `json:"message"`
}

type streamClient struct {
	cfg Config
	log *logrus.Logger

	mu   sync.Mutex
	conn *websocket.Conn
	sink recognition.Sink
	done chan struct{}
	// ended is set once SignalEnd was sent for the current connection.
	ended bool
}

func NewStreamRecognizer(cfg Config, log *logrus.Logger) IStreamRecognizer {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	return &streamClient{cfg: cfg, log: log}
}

// Start opens one connection per recognition session and sends the session
// configuration.
func (c *streamClient) Start(ctx context.Context, cfg recognition.RecognizerConfig, sink recognition.Sink) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return recognition.ErrBusy
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.cfg.DialTimeout,
	}
	header := http.Header{}
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		return &recognition.Error{Code: recognition.CodeNetwork, Err: fmt.Errorf("failed to connect to %s: %w", c.cfg.URL, err)}
	}

	conn.SetPingHandler(func(appData string) error {
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(c.cfg.WriteTimeout))
		if err != nil {
			c.log.WithField("error", err.Error()).Warn("error sending pong")
		}
		return nil
	})

	start := startMessage{
		Type:            "start",
		Language:        cfg.Language,
		SampleRate:      audio.SampleRate,
		Continuous:      cfg.Continuous,
		InterimResults:  cfg.InterimResults,
		MaxAlternatives: cfg.MaxAlternatives,
		SilenceTimeout:  cfg.SilenceTimeoutMs(),
	}
	if err := c.writeJSON(conn, start); err != nil {
		conn.Close()
		return &recognition.Error{Code: recognition.CodeNetwork, Err: fmt.Errorf("error sending start message: %w", err)}
	}

	c.conn = conn
	c.sink = sink
	c.ended = false
	c.done = make(chan struct{})

	go c.readLoop(conn, sink, c.done)
	go c.keepAlive(conn, c.done)

	c.log.WithFields(logrus.Fields{
		"url":      c.cfg.URL,
		"language": cfg.Language,
	}).Debug("ASR stream opened")
	return nil
}

func (c *streamClient) writeJSON(conn *websocket.Conn, v interface{}) error {
	body, err := jsoniter.Marshal(v)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	defer conn.SetWriteDeadline(time.Time{})
	return conn.WriteMessage(websocket.TextMessage, body)
}

func (c *streamClient) readLoop(conn *websocket.Conn, sink recognition.Sink, done chan struct{}) {
	defer c.finish(conn, done)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !c.closing(conn) {
				sink.Signal(recognition.Signal{Kind: recognition.SignalError, Code: recognition.CodeNetwork, Err: err})
			}
			return
		}

		var msg serverMessage
		if err := jsoniter.Unmarshal(message, &msg); err != nil {
			c.log.WithField("error", err.Error()).Warn("error unmarshaling ASR message")
			continue
		}

		switch msg.Type {
		case "started":
			sink.Signal(recognition.Signal{Kind: recognition.SignalStarted})
		case "result":
			sink.Signal(recognition.Signal{
				Kind:         recognition.SignalResult,
				Final:        msg.Final,
				Alternatives: msg.Alternatives,
			})
		case "error":
			sink.Signal(recognition.Signal{
				Kind: recognition.SignalError,
				Code: recognition.ClassifyError(msg.Error),
				Err:  errors.New(firstNonEmpty(msg.Message, msg.Error)),
			})
		case "end":
			return
		}
	}
}

// finish closes conn and reports the end of the session exactly once.
func (c *streamClient) finish(conn *websocket.Conn, done chan struct{}) {
	c.mu.Lock()
	sink := c.sink
	report := c.conn == conn && !c.ended
	if c.conn == conn {
		c.conn = nil
		c.ended = true
		close(done)
	}
	c.mu.Unlock()

	conn.Close()
	if report && sink != nil {
		sink.Signal(recognition.Signal{Kind: recognition.SignalEnd})
	}
}

func (c *streamClient) closing(conn *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != conn
}

func (c *streamClient) keepAlive(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.mu.Lock()
			err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(c.cfg.WriteTimeout))
			c.mu.Unlock()
			if err != nil {
				c.log.WithField("error", err.Error()).Warn("ping failed, closing ASR stream")
				conn.Close()
				return
			}
		}
	}
}

// WriteAudio forwards one PCM frame. Frames outside a session are dropped.
func (c *streamClient) WriteAudio(pcm []int16) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	defer c.conn.SetWriteDeadline(time.Time{})
	if err := c.conn.WriteMessage(websocket.BinaryMessage, audio.EncodePCM(pcm)); err != nil {
		return fmt.Errorf("error sending audio frame: %w", err)
	}
	return nil
}

// Stop asks the service to finalize; the session ends when it closes the
// stream, or after stopGrace.
func (c *streamClient) Stop() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}

	err := c.control("stop")
	time.AfterFunc(stopGrace, func() {
		if !c.closing(conn) {
			c.log.Warn("ASR stream did not close after stop, aborting")
			_ = c.Abort()
		}
	})
	return err
}

// Abort drops the session without waiting for pending results.
func (c *streamClient) Abort() error {
	c.mu.Lock()
	conn, sink := c.conn, c.sink
	if conn == nil {
		c.mu.Unlock()
		return nil
	}
	_ = c.writeJSON(conn, controlMessage{Type: "abort"})
	c.conn = nil
	c.ended = true
	close(c.done)
	c.mu.Unlock()

	conn.Close()
	sink.Signal(recognition.Signal{Kind: recognition.SignalEnd})
	return nil
}

func (c *streamClient) control(kind string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	if err := c.writeJSON(c.conn, controlMessage{Type: kind}); err != nil {
		return fmt.Errorf("error sending %s message: %w", kind, err)
	}
	return nil
}

func (c *streamClient) Close() error {
	return c.Abort()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return "unknown error"
}

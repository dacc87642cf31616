package recognition

import (
	"context"
	"time"
)

type Alternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

// Session is the observable state of the active recognition session.
type Session struct {
	State          State         `json:"state"`
	Language       string        `json:"language"`
	Interim        string        `json:"interim"`
	Final          string        `json:"final"`
	Confidence     float64       `json:"confidence"`
	Alternatives   []Alternative `json:"alternatives,omitempty"`
	AudioLevel     float64       `json:"audioLevel"`
	NoiseLevel     float64       `json:"noiseLevel"`
	WakeWordActive bool          `json:"wakeWordActive"`
	WakeWordAt     time.Time     `json:"wakeWordAt,omitempty"`
	StartedAt      time.Time     `json:"startedAt,omitempty"`
}

// InputConfig selects and tunes the audio input of a session.
type InputConfig struct {
	DeviceID         string  `json:"deviceId,omitempty"`
	NoiseSuppression bool    `json:"noiseSuppression"`
	EchoCancellation bool    `json:"echoCancellation"`
	AutoGainControl  bool    `json:"autoGainControl"`
	Sensitivity      float64 `json:"sensitivity"`
}

// StartOptions configure one session.
type StartOptions struct {
	Language        string
	Input           InputConfig
	Continuous      bool
	InterimResults  bool
	MaxAlternatives int
	// MaxDuration stops the session after it elapses. Zero disables it.
	MaxDuration time.Duration
	// SilenceTimeout ends a listening session that produced no result for
	// that long. Zero disables it.
	SilenceTimeout time.Duration
	WakeWords      []string
	// RequireWakeWord drops final results unless a wake phrase was heard
	// within the wake window.
	RequireWakeWord bool
	WakeSimilarity  float64
}

// RecognizerConfig is what the engine hands to the recognizer.
type RecognizerConfig struct {
	Language        string        `json:"language"`
	Continuous      bool          `json:"continuous"`
	InterimResults  bool          `json:"interimResults"`
	MaxAlternatives int           `json:"maxAlternatives"`
	SilenceTimeout  time.Duration `json:"-"`
}

// SilenceTimeoutMs is the silence timeout in whole milliseconds.
func (c RecognizerConfig) SilenceTimeoutMs() int {
	return int(c.SilenceTimeout / time.Millisecond)
}

// Recognizer is the speech-to-text capability. Start must not block on
// recognition; progress is reported through sink.
type Recognizer interface {
	Start(ctx context.Context, cfg RecognizerConfig, sink Sink) error
	Stop() error
	Abort() error
}

// Microphone grants scoped access to an audio input device.
type Microphone interface {
	Acquire(ctx context.Context, cfg InputConfig) (Capture, error)
}

// Capture is an acquired audio input. Release is called exactly once.
type Capture interface {
	Release() error
}

type SignalKind int

const (
	SignalStarted SignalKind = iota + 1
	SignalResult
	SignalAudio
	SignalError
	SignalEnd
)

// Signal is one event reported by the recognizer or the audio input.
type Signal struct {
	Kind SignalKind
	// SignalResult
	Final        bool
	Alternatives []Alternative
	// SignalAudio
	PCM []int16
	// SignalError
	Code ErrorCode
	Err  error

	session uint64
}

// Sink receives signals for one session.
type Sink interface {
	Signal(Signal)
}

type UpdateKind string

const (
	UpdateState    UpdateKind = "state"
	UpdateInterim  UpdateKind = "interim"
	UpdateFinal    UpdateKind = "final"
	UpdateLevel    UpdateKind = "level"
	UpdateWakeWord UpdateKind = "wake-word"
	UpdateError    UpdateKind = "error"
)

// Update is emitted to listeners after the engine handled a signal.
type Update struct {
	Kind         UpdateKind    `json:"kind"`
	State        State         `json:"state"`
	Transcript   string        `json:"transcript,omitempty"`
	Confidence   float64       `json:"confidence,omitempty"`
	Alternatives []Alternative `json:"alternatives,omitempty"`
	Language     string        `json:"language,omitempty"`
	Level        float64       `json:"level,omitempty"`
	Noise        float64       `json:"noise,omitempty"`
	WakeWord     string        `json:"wakeWord,omitempty"`
	Err          *Error        `json:"-"`
	At           time.Time     `json:"at"`
}

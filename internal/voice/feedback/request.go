package feedback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	ErrDisabled = errors.New("voice feedback is disabled")
	ErrEmpty    = errors.New("nothing to say")
	ErrClosed   = errors.New("feedback engine closed")
)

// perRune is the speaking time of one character at rate 1.
const perRune = 65 * time.Millisecond

// Audio is synthesized speech ready for playback.
type Audio struct {
	Data     []byte
	MimeType string
}

// Synthesizer turns a request into audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (Audio, error)
}

// Player plays audio and blocks until playback finished or ctx is cancelled.
type Player interface {
	Play(ctx context.Context, req Request, audio Audio) error
}

// AudioStore is an optional shared audio cache behind the in-process one.
type AudioStore interface {
	GetAudio(ctx context.Context, key string) ([]byte, bool, error)
	PutAudio(ctx context.Context, key string, data []byte) error
}

// Options override the engine defaults for one utterance. Zero values keep
// the default.
type Options struct {
	Language string
	Voice    string
	Rate     float64
	Pitch    float64
	Volume   float64
	NoCache  bool

	OnStart func(Request)
	OnEnd   func(Request)
	OnError func(Request, error)
}

// Request is one queued utterance.
type Request struct {
	ID       string    `json:"id"`
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Voice    string    `json:"voice,omitempty"`
	Rate     float64   `json:"rate"`
	Pitch    float64   `json:"pitch"`
	Volume   float64   `json:"volume"`
	Output   string    `json:"output,omitempty"`
	Cache    bool      `json:"cache"`
	QueuedAt time.Time `json:"queuedAt"`

	onStart func(Request)
	onEnd   func(Request)
	onError func(Request, error)
}

// Estimate is the expected speaking time of the request.
func (r Request) Estimate() time.Duration {
	rate := r.Rate
	if rate <= 0 {
		rate = 1
	}
	return time.Duration(float64(utf8.RuneCountInString(r.Text)) * float64(perRune) / rate)
}

func (r Request) cacheKey() string {
	return fmt.Sprintf("%s|%s|%s|%.2f|%.2f|%.2f", r.Language, r.Voice, r.Text, r.Rate, r.Pitch, r.Volume)
}

// collapse trims the text and folds runs of whitespace.
func collapse(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

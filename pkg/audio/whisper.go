package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"time"

	"eatech-voice/internal/voice/recognition"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

const (
	// speechThreshold is the RMS amplitude above which a frame counts as
	// speech.
	speechThreshold = 500
	endOfSpeech     = 800 * time.Millisecond
	noSpeechTimeout = 8 * time.Second
	maxUtterance    = 30 * time.Second
)

// Transcript is the text of one recognized utterance.
type Transcript struct {
	Text       string
	Language   string
	Confidence float64
}

// TranscriptionService transcribes audio with OpenAI Whisper. It serves both
// uploaded files and, through NewRecognizer, device audio streams.
type TranscriptionService struct {
	client *openai.Client
	model  string
	log    *logrus.Logger
}

func NewTranscriptionService(apiKey string, log *logrus.Logger) *TranscriptionService {
	return NewTranscriptionServiceWithConfig(openai.DefaultConfig(apiKey), log)
}

func NewTranscriptionServiceWithConfig(cfg openai.ClientConfig, log *logrus.Logger) *TranscriptionService {
	return &TranscriptionService{
		client: openai.NewClientWithConfig(cfg),
		model:  openai.Whisper1,
		log:    log,
	}
}

// Transcribe sends one audio file. name carries the extension Whisper uses
// to detect the format.
func (t *TranscriptionService) Transcribe(ctx context.Context, name string, r io.Reader, language string) (Transcript, error) {
	base, _, _ := strings.Cut(language, "-")
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: name,
		Reader:   r,
		Language: strings.ToLower(base),
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return Transcript{}, err
	}

	out := Transcript{Text: strings.TrimSpace(resp.Text), Language: resp.Language, Confidence: 1}
	if len(resp.Segments) > 0 {
		var sum float64
		for _, seg := range resp.Segments {
			sum += math.Exp(seg.AvgLogprob) * (1 - seg.NoSpeechProb)
		}
		out.Confidence = min(max(sum/float64(len(resp.Segments)), 0), 1)
	}
	return out, nil
}

// NewRecognizer returns a recognition.Recognizer that endpoints streamed PCM
// on silence and transcribes each utterance with Whisper.
func (t *TranscriptionService) NewRecognizer() *WhisperRecognizer {
	return &WhisperRecognizer{svc: t, now: time.Now}
}

// WhisperRecognizer buffers device audio between speech onset and the
// following silence, then reports the transcript as a final result.
type WhisperRecognizer struct {
	svc *TranscriptionService
	now func() time.Time

	mu        sync.Mutex
	active    bool
	cfg       recognition.RecognizerConfig
	sink      recognition.Sink
	ctx       context.Context
	cancel    context.CancelFunc
	buf       []int16
	speaking  bool
	lastVoice time.Time
	opened    time.Time
	inflight  sync.WaitGroup
}

func (w *WhisperRecognizer) Start(ctx context.Context, cfg recognition.RecognizerConfig, sink recognition.Sink) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.active {
		return recognition.ErrBusy
	}
	w.ctx, w.cancel = context.WithCancel(context.WithoutCancel(ctx))
	w.active = true
	w.cfg = cfg
	w.sink = sink
	w.resetLocked()
	sink.Signal(recognition.Signal{Kind: recognition.SignalStarted})
	return nil
}

func (w *WhisperRecognizer) resetLocked() {
	w.buf = w.buf[:0]
	w.speaking = false
	w.opened = w.now()
	w.lastVoice = time.Time{}
}

// WriteAudio feeds one PCM frame at SampleRate. Frames outside a session are
// dropped.
func (w *WhisperRecognizer) WriteAudio(pcm []int16) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.active {
		return nil
	}

	now := w.now()
	if rms(pcm) >= speechThreshold {
		w.speaking = true
		w.lastVoice = now
	}
	if !w.speaking {
		if now.Sub(w.opened) >= w.noSpeechLimit() {
			w.sink.Signal(recognition.Signal{Kind: recognition.SignalError, Code: recognition.CodeTimeout, Err: errors.New("no speech detected")})
			w.endLocked()
		}
		return nil
	}

	w.buf = append(w.buf, pcm...)
	utterance := time.Duration(len(w.buf)) * time.Second / SampleRate
	if now.Sub(w.lastVoice) >= endOfSpeech || utterance >= maxUtterance {
		w.flushLocked()
	}
	return nil
}

// flushLocked hands the buffered utterance to Whisper. In single-shot mode
// the session ends after the transcript is delivered.
func (w *WhisperRecognizer) flushLocked() {
	pcm := append([]int16(nil), w.buf...)
	cfg, sink, ctx := w.cfg, w.sink, w.ctx
	last := !cfg.Continuous
	if last {
		w.active = false
	}
	w.resetLocked()

	w.inflight.Add(1)
	go func() {
		defer w.inflight.Done()
		tr, err := w.svc.Transcribe(ctx, "utterance.wav", bytes.NewReader(EncodeWAV(pcm, SampleRate)), cfg.Language)
		switch {
		case ctx.Err() != nil:
		case err != nil:
			w.svc.logError(err, cfg.Language)
			sink.Signal(recognition.Signal{Kind: recognition.SignalError, Code: recognition.CodeNetwork, Err: err})
		case tr.Text == "":
			sink.Signal(recognition.Signal{Kind: recognition.SignalError, Code: recognition.CodeTimeout, Err: errors.New("empty transcript")})
		default:
			sink.Signal(recognition.Signal{
				Kind:         recognition.SignalResult,
				Final:        true,
				Alternatives: []recognition.Alternative{{Transcript: tr.Text, Confidence: tr.Confidence}},
			})
		}
		if last {
			sink.Signal(recognition.Signal{Kind: recognition.SignalEnd})
		}
	}()
}

// noSpeechLimit is the configured silence timeout, or noSpeechTimeout.
func (w *WhisperRecognizer) noSpeechLimit() time.Duration {
	if w.cfg.SilenceTimeout > 0 {
		return w.cfg.SilenceTimeout
	}
	return noSpeechTimeout
}

func (w *WhisperRecognizer) endLocked() {
	w.active = false
	w.resetLocked()
	w.sink.Signal(recognition.Signal{Kind: recognition.SignalEnd})
}

// Stop discards audio not yet endpointed and ends the session.
func (w *WhisperRecognizer) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.active {
		return nil
	}
	w.endLocked()
	return nil
}

// Abort also cancels a transcription in flight.
func (w *WhisperRecognizer) Abort() error {
	w.mu.Lock()
	cancel, wasActive := w.cancel, w.active
	if wasActive {
		w.active = false
		w.resetLocked()
	}
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if wasActive {
		w.sink.Signal(recognition.Signal{Kind: recognition.SignalError, Code: recognition.CodeAborted, Err: errors.New("aborted")})
		w.sink.Signal(recognition.Signal{Kind: recognition.SignalEnd})
	}
	return nil
}

// Wait blocks until pending transcriptions are delivered.
func (w *WhisperRecognizer) Wait() {
	w.inflight.Wait()
}

func (t *TranscriptionService) logError(err error, language string) {
	if t.log == nil {
		return
	}
	t.log.WithFields(logrus.Fields{
		"language": language,
		"error":    fmt.Sprint(err),
	}).Warn("whisper transcription failed")
}

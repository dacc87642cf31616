package feedback

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"eatech-voice/internal/voice/preferences"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
)

// DefaultCacheSize bounds the in-process audio cache.
const DefaultCacheSize = 128

type Option func(*Engine)

func WithLogger(log *logrus.Logger) Option {
	return func(e *Engine) { e.log = log }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithNormalizer rewrites text before synthesis, e.g. to spell out symbols.
func WithNormalizer(fn func(text, language string) string) Option {
	return func(e *Engine) { e.normalize = fn }
}

func WithCacheSize(n int) Option {
	return func(e *Engine) { e.cacheSize = n }
}

func WithStore(store AudioStore) Option {
	return func(e *Engine) { e.store = store }
}

// WithSpeakingHook is called with true when playback of a queue begins and
// with false once the queue has drained or was stopped.
func WithSpeakingHook(fn func(speaking bool)) Option {
	return func(e *Engine) { e.onSpeaking = fn }
}

// Status is a snapshot of the engine.
type Status struct {
	Speaking bool     `json:"speaking"`
	Current  *Request `json:"current,omitempty"`
	Queued   int      `json:"queued"`
	Progress float64  `json:"progress"`
}

// Engine plays utterances one at a time in strict FIFO order.
type Engine struct {
	synth      Synthesizer
	player     Player
	store      AudioStore
	cache      *lru.Cache[string, Audio]
	cacheSize  int
	normalize  func(text, language string) string
	onSpeaking func(bool)
	log        *logrus.Logger
	now        func() time.Time

	mu        sync.Mutex
	config    preferences.FeedbackConfig
	output    preferences.SpeakerConfig
	language  string
	queue     []Request
	current   *Request
	startedAt time.Time
	cancel    context.CancelFunc
	running   bool
	closed    bool
	wg        sync.WaitGroup

	hookMu   sync.Mutex
	reported bool
}

func New(synth Synthesizer, player Player, opts ...Option) (*Engine, error) {
	e := &Engine{
		synth:     synth,
		player:    player,
		cacheSize: DefaultCacheSize,
		now:       time.Now,
		config:    preferences.Defaults().Feedback,
		output:    preferences.Defaults().Speaker,
		language:  preferences.Defaults().Language,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logrus.New()
		e.log.SetOutput(io.Discard)
	}
	cache, err := lru.New[string, Audio](e.cacheSize)
	if err != nil {
		return nil, err
	}
	e.cache = cache
	return e, nil
}

// Configure applies feedback and speaker preferences to subsequent requests.
// The speaker volume scales the feedback volume.
func (e *Engine) Configure(cfg preferences.FeedbackConfig, out preferences.SpeakerConfig, language string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.config = cfg
	e.output = out
	if language != "" {
		e.language = language
	}
}

func (e *Engine) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.config.Enabled
}

// Speak queues text for playback and returns the request id. Playback is
// detached from ctx cancellation; use Stop to cancel.
func (e *Engine) Speak(ctx context.Context, text string, opts Options) (string, error) {
	e.mu.Lock()
	cfg, out, lang, closed := e.config, e.output, e.language, e.closed
	e.mu.Unlock()

	if closed {
		return "", ErrClosed
	}
	if !cfg.Enabled {
		return "", ErrDisabled
	}
	text = collapse(text)
	if text == "" {
		return "", ErrEmpty
	}

	if opts.Language != "" {
		lang = opts.Language
	}
	if e.normalize != nil {
		text = collapse(e.normalize(text, lang))
	}
	req := Request{
		ID:       uuid.NewString(),
		Text:     text,
		Language: lang,
		Voice:    pick(opts.Voice, cfg.Voice),
		Rate:     pickFloat(opts.Rate, cfg.Rate),
		Pitch:    pickFloat(opts.Pitch, cfg.Pitch),
		Volume:   pickFloat(opts.Volume, cfg.Volume) * out.Volume,
		Output:   out.DeviceID,
		Cache:    cfg.CacheAudio && !opts.NoCache,
		QueuedAt: e.now(),
		onStart:  opts.OnStart,
		onEnd:    opts.OnEnd,
		onError:  opts.OnError,
	}
	return req.ID, e.Enqueue(ctx, req)
}

// Enqueue appends a prepared request and starts the worker when idle.
func (e *Engine) Enqueue(ctx context.Context, req Request) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.queue = append(e.queue, req)
	start := !e.running
	if start {
		e.running = true
		e.wg.Add(1)
	}
	e.mu.Unlock()

	if start {
		e.notifySpeaking()
		go e.work(context.WithoutCancel(ctx))
	}
	return nil
}

func (e *Engine) work(base context.Context) {
	defer e.wg.Done()
	for {
		e.mu.Lock()
		if len(e.queue) == 0 {
			e.running = false
			e.current = nil
			e.mu.Unlock()
			e.notifySpeaking()
			return
		}
		req := e.queue[0]
		e.queue = e.queue[1:]
		ctx, cancel := context.WithCancel(base)
		e.current = &req
		e.startedAt = e.now()
		e.cancel = cancel
		e.mu.Unlock()

		e.play(ctx, req)
		cancel()

		e.mu.Lock()
		e.current = nil
		e.cancel = nil
		e.mu.Unlock()
	}
}

// notifySpeaking reports the current running state to the hook, skipping
// repeats. Calls are serialized so the hook never sees states out of order.
func (e *Engine) notifySpeaking() {
	if e.onSpeaking == nil {
		return
	}
	e.hookMu.Lock()
	defer e.hookMu.Unlock()
	e.mu.Lock()
	running := e.running
	e.mu.Unlock()
	if running == e.reported {
		return
	}
	e.reported = running
	e.onSpeaking(running)
}

func (e *Engine) play(ctx context.Context, req Request) {
	audio, err := e.audio(ctx, req)
	if err == nil {
		if req.onStart != nil {
			req.onStart(req)
		}
		err = e.player.Play(ctx, req, audio)
	}

	switch {
	case ctx.Err() != nil:
		e.log.WithField("id", req.ID).Debug("utterance stopped")
	case err != nil:
		e.log.WithFields(logrus.Fields{
			"id":    req.ID,
			"error": err.Error(),
		}).Warn("utterance failed")
		if req.onError != nil {
			req.onError(req, err)
		}
	default:
		if req.onEnd != nil {
			req.onEnd(req)
		}
	}
}

// audio returns cached speech when the request allows it, synthesizing and
// caching otherwise.
func (e *Engine) audio(ctx context.Context, req Request) (Audio, error) {
	key := req.cacheKey()
	if req.Cache {
		if a, ok := e.cache.Get(key); ok {
			return a, nil
		}
		if e.store != nil {
			data, found, err := e.store.GetAudio(ctx, key)
			if err != nil {
				e.log.WithField("error", err.Error()).Warn("audio store lookup failed")
			} else if found {
				a := Audio{Data: data, MimeType: "audio/mpeg"}
				e.cache.Add(key, a)
				return a, nil
			}
		}
	}

	if e.synth == nil {
		return Audio{}, errors.New("no synthesizer configured")
	}
	a, err := e.synth.Synthesize(ctx, req)
	if err != nil {
		return Audio{}, err
	}
	if req.Cache {
		e.cache.Add(key, a)
		if e.store != nil {
			if err := e.store.PutAudio(ctx, key, a.Data); err != nil {
				e.log.WithField("error", err.Error()).Warn("audio store write failed")
			}
		}
	}
	return a, nil
}

// Stop cancels the playing utterance and drops everything queued.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queue = nil
	if e.cancel != nil {
		e.cancel()
	}
}

// Speaking reports whether an utterance is playing or queued.
func (e *Engine) Speaking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Pending is the number of queued requests, not counting the playing one.
func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// Progress estimates how far the current utterance has played.
func (e *Engine) Progress() (float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.progressLocked()
}

func (e *Engine) progressLocked() (float64, bool) {
	if e.current == nil {
		return 0, false
	}
	est := e.current.Estimate()
	if est <= 0 {
		return 1, true
	}
	p := float64(e.now().Sub(e.startedAt)) / float64(est)
	if p > 1 {
		p = 1
	}
	if p < 0 {
		p = 0
	}
	return p, true
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := Status{Speaking: e.running, Queued: len(e.queue)}
	if e.current != nil {
		cur := *e.current
		s.Current = &cur
		s.Progress, _ = e.progressLocked()
	}
	return s
}

// Close stops playback and waits for the worker to exit.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.Stop()
	e.wg.Wait()
}

func pick(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func pickFloat(v, fallback float64) float64 {
	if v > 0 {
		return v
	}
	return fallback
}

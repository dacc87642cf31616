package recognition

import (
	"context"
	"io"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// WakeWindow is how long a wake phrase keeps a continuous session alive.
	WakeWindow = 30 * time.Second
	// DefaultRetryDelay is the pause before a continuous session restarts
	// after a no-speech timeout.
	DefaultRetryDelay = 500 * time.Millisecond

	signalBuffer = 256
)

type Option func(*Engine)

func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

func WithLogger(log *logrus.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithListener registers fn for every update. Listeners run on the Run
// goroutine, in order, and may call back into the engine.
func WithListener(fn func(Update)) Option {
	return func(e *Engine) { e.listeners = append(e.listeners, fn) }
}

func WithRetryDelay(d time.Duration) Option {
	return func(e *Engine) { e.retryDelay = d }
}

// Engine owns the single recognition session of one device. Signals from the
// recognizer are queued and applied by Run.
type Engine struct {
	mu            sync.Mutex
	state         State
	session       Session
	opts          StartOptions
	gen           uint64
	capture       Capture
	wake          *WakeDetector
	meter         LevelMeter
	maxTimer      Timer
	silenceTimer  Timer
	retryTimer    Timer
	stopRequested bool
	retryPending  bool
	suppressed    bool
	enabled       bool
	closed        bool

	rec        Recognizer
	mic        Microphone
	clock      Clock
	log        *logrus.Logger
	listeners  []func(Update)
	retryDelay time.Duration
	signals    chan Signal
	notify     chan struct{}
	pending    []Update
}

// New builds an engine. A nil recognizer makes every Start fail with
// ErrUnsupported.
func New(rec Recognizer, mic Microphone, opts ...Option) *Engine {
	e := &Engine{
		state:      StateIdle,
		enabled:    true,
		rec:        rec,
		mic:        mic,
		clock:      realClock{},
		retryDelay: DefaultRetryDelay,
		signals:    make(chan Signal, signalBuffer),
		notify:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logrus.New()
		e.log.SetOutput(io.Discard)
	}
	e.session.State = StateIdle
	return e
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Session returns a snapshot of the current session.
func (e *Engine) Session() Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.session
	s.Alternatives = slices.Clone(s.Alternatives)
	return s
}

func (e *Engine) SetEnabled(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = enabled
}

// SetSuppressed drops results while spoken feedback is playing so the engine
// does not recognize its own output.
func (e *Engine) SetSuppressed(suppressed bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.suppressed = suppressed
}

// Start opens a new session.
func (e *Engine) Start(ctx context.Context, opts StartOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case e.closed:
		return ErrClosed
	case e.rec == nil:
		return ErrUnsupported
	case !e.enabled:
		return ErrDisabled
	case e.state != StateIdle && e.state != StateError:
		return ErrBusy
	}

	e.stopRequested = false
	e.wake = NewWakeDetector(opts.WakeWords, opts.WakeSimilarity)
	e.opts = opts
	e.opts.WakeWords = slices.Clone(opts.WakeWords)
	return e.startLocked(ctx)
}

func (e *Engine) startLocked(ctx context.Context) error {
	updates := make([]Update, 0, 2)
	defer func() { e.emit(updates) }()

	if _, err := e.apply(EventStart); err != nil {
		return err
	}
	updates = append(updates, e.stateUpdate())

	e.gen++
	e.retryPending = false
	e.meter.Reset()
	e.session = Session{
		State:          StateStarting,
		Language:       e.opts.Language,
		StartedAt:      e.clock.Now(),
		WakeWordActive: e.session.WakeWordActive,
		WakeWordAt:     e.session.WakeWordAt,
	}

	if e.mic != nil {
		capture, err := e.mic.Acquire(ctx, e.opts.Input)
		if err != nil {
			rerr := asError(err, CodeAudioCaptureFailure)
			updates = append(updates, e.failLocked(rerr)...)
			return rerr
		}
		e.capture = capture
	}

	cfg := RecognizerConfig{
		Language:        e.opts.Language,
		Continuous:      e.opts.Continuous,
		InterimResults:  e.opts.InterimResults,
		MaxAlternatives: max(1, e.opts.MaxAlternatives),
		SilenceTimeout:  e.opts.SilenceTimeout,
	}
	if err := e.rec.Start(ctx, cfg, sessionSink{e: e, gen: e.gen}); err != nil {
		rerr := asError(err, CodeUnknown)
		updates = append(updates, e.failLocked(rerr)...)
		return rerr
	}

	if e.opts.MaxDuration > 0 {
		gen := e.gen
		e.maxTimer = e.clock.AfterFunc(e.opts.MaxDuration, func() { e.expire(gen) })
	}
	e.armSilence()

	e.log.WithFields(logrus.Fields{
		"language":   e.opts.Language,
		"continuous": e.opts.Continuous,
	}).Debug("recognition session starting")
	return nil
}

// Stop ends the active session. The engine reaches idle once the recognizer
// confirms the end.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopLocked()
}

func (e *Engine) stopLocked() error {
	if !e.state.Active() || e.state == StateStopping {
		if e.retryTimer != nil {
			e.stopRequested = true
			e.cancelRetry()
			return nil
		}
		return ErrNotListening
	}

	updates := make([]Update, 0, 1)
	defer func() { e.emit(updates) }()

	if _, err := e.apply(EventStop); err != nil {
		return err
	}
	updates = append(updates, e.stateUpdate())
	e.stopRequested = true
	e.cancelRetry()
	e.stopMaxTimer()
	e.releaseCapture()

	if err := e.rec.Stop(); err != nil {
		e.log.WithFields(logrus.Fields{
			"error": err.Error(),
		}).Warn("recognizer stop failed")
	}
	return nil
}

func (e *Engine) expire(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen {
		return
	}
	e.log.Debug("maximum listening duration reached")
	_ = e.stopLocked()
}

// armSilence restarts the silence countdown of the current session.
func (e *Engine) armSilence() {
	e.stopSilenceTimer()
	if e.opts.SilenceTimeout <= 0 {
		return
	}
	gen := e.gen
	e.silenceTimer = e.clock.AfterFunc(e.opts.SilenceTimeout, func() { e.silence(gen) })
}

// silence ends a session that heard nothing for SilenceTimeout. Continuous
// sessions come back after the retry delay, as after a no-speech timeout.
func (e *Engine) silence(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen || e.state != StateListening {
		return
	}
	e.log.Debug("silence timeout reached")
	continuous := e.opts.Continuous
	if err := e.stopLocked(); err != nil {
		return
	}
	if continuous {
		e.stopRequested = false
		e.retryPending = true
	}
}

// Signal queues a signal that is not bound to a session, such as audio from
// a shared input. It is attributed to the current session.
func (e *Engine) Signal(sig Signal) {
	e.mu.Lock()
	sig.session = e.gen
	e.mu.Unlock()
	e.signals <- sig
}

// FeedAudio queues one PCM frame for level analysis. It never blocks: the
// frame is dropped while the queue is full, e.g. when a listener is busy
// executing a command.
func (e *Engine) FeedAudio(pcm []int16) {
	e.mu.Lock()
	sig := Signal{Kind: SignalAudio, PCM: pcm, session: e.gen}
	e.mu.Unlock()
	select {
	case e.signals <- sig:
	default:
	}
}

type sessionSink struct {
	e   *Engine
	gen uint64
}

func (s sessionSink) Signal(sig Signal) {
	sig.session = s.gen
	s.e.signals <- sig
}

// Run applies queued signals until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig := <-e.signals:
			e.handle(sig)
		case <-e.notify:
		}
		e.dispatch()
	}
}

func (e *Engine) handle(sig Signal) {
	e.mu.Lock()
	if sig.session != e.gen || e.closed {
		e.mu.Unlock()
		return
	}

	var updates []Update
	switch sig.Kind {
	case SignalStarted:
		updates = e.onStarted()
	case SignalResult:
		updates = e.onResult(sig)
	case SignalAudio:
		updates = e.onAudio(sig.PCM)
	case SignalError:
		updates = e.onError(sig)
	case SignalEnd:
		updates = e.onEnd()
	}
	e.emit(updates)
	e.mu.Unlock()
}

func (e *Engine) onStarted() []Update {
	if _, err := e.apply(EventStarted); err != nil {
		return nil
	}
	return []Update{e.stateUpdate()}
}

func (e *Engine) onResult(sig Signal) []Update {
	if e.state != StateListening {
		return nil
	}
	alts := bestAlternatives(sig.Alternatives, e.opts.MaxAlternatives)
	if len(alts) == 0 {
		return nil
	}
	e.armSilence()

	if !sig.Final {
		e.session.Interim = alts[0].Transcript
		if !e.opts.InterimResults || e.suppressed {
			return nil
		}
		return []Update{{
			Kind:       UpdateInterim,
			State:      e.state,
			Transcript: alts[0].Transcript,
			Confidence: alts[0].Confidence,
			Language:   e.opts.Language,
			At:         e.clock.Now(),
		}}
	}

	if _, err := e.apply(EventFinal); err != nil {
		return nil
	}
	e.session.Interim = ""

	var updates []Update
	now := e.clock.Now()
	text := strings.TrimSpace(alts[0].Transcript)
	rest, phrase, woke := e.wake.Detect(text)
	if woke {
		text = rest
		e.session.WakeWordActive = true
		e.session.WakeWordAt = now
		for i := range alts {
			alts[i].Transcript, _, _ = e.wake.Detect(alts[i].Transcript)
		}
		updates = append(updates, Update{
			Kind:     UpdateWakeWord,
			State:    e.state,
			WakeWord: phrase,
			At:       now,
		})
	}

	deliver := text != "" && !e.suppressed
	if e.opts.RequireWakeWord && !e.wakeArmed(now) {
		deliver = false
	}
	if e.suppressed {
		e.log.WithFields(logrus.Fields{
			"transcript": text,
		}).Debug("dropping result while feedback is speaking")
	}

	if deliver {
		e.session.Final = text
		e.session.Confidence = alts[0].Confidence
		e.session.Alternatives = alts
		updates = append(updates, Update{
			Kind:         UpdateFinal,
			State:        e.state,
			Transcript:   text,
			Confidence:   alts[0].Confidence,
			Alternatives: slices.Clone(alts),
			Language:     e.opts.Language,
			At:           now,
		})
	}

	if _, err := e.apply(EventProcessed); err == nil {
		updates = append(updates, e.stateUpdate())
	}
	return updates
}

func (e *Engine) onAudio(pcm []int16) []Update {
	if !e.state.Active() {
		return nil
	}
	level, floor := e.meter.Feed(pcm)
	e.session.AudioLevel = level
	e.session.NoiseLevel = floor
	return []Update{{
		Kind:  UpdateLevel,
		State: e.state,
		Level: level,
		Noise: floor,
		At:    e.clock.Now(),
	}}
}

func (e *Engine) onError(sig Signal) []Update {
	code := sig.Code
	if code == "" {
		code = CodeUnknown
	}
	rerr := newError(code, sig.Err)

	if code == CodeAborted && e.stopRequested {
		return nil
	}
	if rerr.Retryable() && e.opts.Continuous && !e.stopRequested {
		e.retryPending = true
		e.log.Debug("no speech detected, restarting after session end")
		return []Update{{Kind: UpdateError, State: e.state, Err: rerr, At: e.clock.Now()}}
	}

	e.log.WithFields(logrus.Fields{
		"code":  string(code),
		"error": rerr.Error(),
	}).Warn("recognition failed")
	return e.failLocked(rerr)
}

func (e *Engine) onEnd() []Update {
	if _, err := e.apply(EventEnd); err != nil {
		return nil
	}
	e.stopMaxTimer()
	e.releaseCapture()
	e.session.Interim = ""
	updates := []Update{e.stateUpdate()}

	if e.stopRequested || !e.opts.Continuous {
		e.clearWakeIfExpired()
		return updates
	}

	if e.retryPending {
		e.retryPending = false
		gen := e.gen
		e.retryTimer = e.clock.AfterFunc(e.retryDelay, func() { e.restart(gen) })
		return updates
	}

	if e.wakeArmed(e.clock.Now()) {
		e.emit(updates)
		if err := e.startLocked(context.Background()); err != nil {
			e.log.WithFields(logrus.Fields{
				"error": err.Error(),
			}).Warn("automatic restart failed")
		}
		return nil
	}
	e.session.WakeWordActive = false
	return updates
}

func (e *Engine) restart(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen || e.closed || e.stopRequested || e.state != StateIdle {
		return
	}
	if err := e.startLocked(context.Background()); err != nil {
		e.log.WithFields(logrus.Fields{
			"error": err.Error(),
		}).Warn("retry after timeout failed")
	}
}

func (e *Engine) wakeArmed(now time.Time) bool {
	return e.session.WakeWordActive && now.Sub(e.session.WakeWordAt) < WakeWindow
}

func (e *Engine) clearWakeIfExpired() {
	if !e.wakeArmed(e.clock.Now()) {
		e.session.WakeWordActive = false
	}
}

// failLocked moves to the error state and frees the session's resources.
func (e *Engine) failLocked(rerr *Error) []Update {
	wasActive := e.state.Active()
	_, _ = e.apply(EventFail)
	e.stopMaxTimer()
	e.cancelRetry()
	e.releaseCapture()
	if wasActive && rerr.Code != CodeAborted {
		if err := e.rec.Abort(); err != nil {
			e.log.WithFields(logrus.Fields{
				"error": err.Error(),
			}).Debug("recognizer abort failed")
		}
	}
	// signals still queued for this session are stale now
	e.gen++
	return []Update{
		e.stateUpdate(),
		{Kind: UpdateError, State: e.state, Err: rerr, At: e.clock.Now()},
	}
}

// Close tears down the session and releases the microphone.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.stopRequested = true
	e.stopMaxTimer()
	e.cancelRetry()
	if e.state.Active() && e.rec != nil {
		_ = e.rec.Abort()
	}
	e.releaseCapture()
	e.state = StateIdle
	e.session.State = StateIdle
	e.gen++
	return nil
}

func (e *Engine) apply(ev Event) (State, error) {
	next, err := Transition(e.state, ev)
	if err != nil {
		e.log.WithFields(logrus.Fields{
			"state": string(e.state),
			"event": string(ev),
		}).Debug("ignoring signal")
		return e.state, err
	}
	e.state = next
	e.session.State = next
	return next, nil
}

func (e *Engine) stateUpdate() Update {
	return Update{Kind: UpdateState, State: e.state, At: e.clock.Now()}
}

func (e *Engine) releaseCapture() {
	if e.capture == nil {
		return
	}
	if err := e.capture.Release(); err != nil {
		e.log.WithFields(logrus.Fields{
			"error": err.Error(),
		}).Warn("failed to release microphone")
	}
	e.capture = nil
}

func (e *Engine) stopMaxTimer() {
	if e.maxTimer != nil {
		e.maxTimer.Stop()
		e.maxTimer = nil
	}
	e.stopSilenceTimer()
}

func (e *Engine) stopSilenceTimer() {
	if e.silenceTimer != nil {
		e.silenceTimer.Stop()
		e.silenceTimer = nil
	}
}

func (e *Engine) cancelRetry() {
	e.retryPending = false
	if e.retryTimer != nil {
		e.retryTimer.Stop()
		e.retryTimer = nil
	}
}

// emit queues updates for the Run goroutine. Callers hold e.mu.
func (e *Engine) emit(updates []Update) {
	if len(updates) == 0 {
		return
	}
	e.pending = append(e.pending, updates...)
	select {
	case e.notify <- struct{}{}:
	default:
	}
}

func (e *Engine) dispatch() {
	e.mu.Lock()
	updates := e.pending
	e.pending = nil
	e.mu.Unlock()

	for _, u := range updates {
		for _, l := range e.listeners {
			l(u)
		}
	}
}

func bestAlternatives(in []Alternative, limit int) []Alternative {
	out := make([]Alternative, 0, len(in))
	for _, a := range in {
		a.Transcript = strings.TrimSpace(a.Transcript)
		if a.Transcript == "" {
			continue
		}
		a.Confidence = max(0, min(1, a.Confidence))
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

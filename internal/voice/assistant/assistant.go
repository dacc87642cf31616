package assistant

import (
	"context"
	"errors"
	"io"
	"time"

	"eatech-voice/internal/voice/command"
	"eatech-voice/internal/voice/conversation"
	"eatech-voice/internal/voice/feedback"
	"eatech-voice/internal/voice/preferences"
	"eatech-voice/internal/voice/recognition"
	"eatech-voice/pkg/nlp"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// processTimeout bounds the actions run for a recognized utterance.
const processTimeout = 15 * time.Second

// Preferences is the subset of the preferences store the pipeline needs.
type Preferences interface {
	Get() preferences.Preferences
	Update(fn func(*preferences.Preferences)) error
	RecordUsage(success bool, confidence float64) error
}

// Speaker is the speech output.
type Speaker interface {
	Speak(ctx context.Context, text string, opts feedback.Options) (string, error)
	Stop()
	Configure(cfg preferences.FeedbackConfig, out preferences.SpeakerConfig, language string)
}

// Listener is the speech input.
type Listener interface {
	Start(ctx context.Context, opts recognition.StartOptions) error
	Stop() error
	SetEnabled(enabled bool)
}

// Utterance is a transcript to process, spoken or typed.
type Utterance struct {
	Text         string
	Language     string
	Confidence   float64
	Alternatives []recognition.Alternative
}

// Config wires the pipeline. Commerce collaborators go in Deps; Settings,
// Listening and Examples are filled in by New when left empty.
type Config struct {
	DeviceID    string
	Patterns    *nlp.PatternSet
	Deps        command.Deps
	Preferences Preferences
	Speaker     Speaker
	Listener    Listener
	Publisher   Publisher
	Telemetry   Telemetry
	Archive     Archive
	Contexts    *conversation.Manager
	Logger      *logrus.Logger
	Now         func() time.Time
}

// Assistant runs transcripts through normalization, intent resolution and
// execution and speaks the outcome.
type Assistant struct {
	deviceID   string
	normalizer *nlp.Normalizer
	resolver   *nlp.Resolver
	executor   *command.Executor
	contexts   *conversation.Manager
	prefs      Preferences
	speaker    Speaker
	listener   Listener
	publisher  Publisher
	telemetry  Telemetry
	archive    Archive
	log        *logrus.Logger
	now        func() time.Time
	history    history
}

func New(cfg Config) (*Assistant, error) {
	if cfg.Preferences == nil {
		return nil, errors.New("assistant: preferences are required")
	}
	patterns := cfg.Patterns
	if patterns == nil {
		var err error
		if patterns, err = nlp.DefaultPatterns(); err != nil {
			return nil, err
		}
	}

	a := &Assistant{
		deviceID:   cfg.DeviceID,
		normalizer: nlp.NewNormalizer(),
		resolver:   nlp.NewResolver(patterns),
		contexts:   cfg.Contexts,
		prefs:      cfg.Preferences,
		speaker:    cfg.Speaker,
		listener:   cfg.Listener,
		publisher:  cfg.Publisher,
		telemetry:  cfg.Telemetry,
		archive:    cfg.Archive,
		log:        cfg.Logger,
		now:        cfg.Now,
	}
	if a.contexts == nil {
		a.contexts = conversation.NewManager()
	}
	if a.log == nil {
		a.log = logrus.New()
		a.log.SetOutput(io.Discard)
	}
	if a.now == nil {
		a.now = time.Now
	}

	deps := cfg.Deps
	if deps.Settings == nil {
		deps.Settings = cfg.Preferences
	}
	if deps.Listening == nil {
		deps.Listening = listeningControl{a}
	}
	if deps.Examples == nil {
		deps.Examples = a.resolver
	}
	a.executor = command.New(deps, a.contexts, a.log)

	a.ApplyPreferences(cfg.Preferences.Get())
	return a, nil
}

// ApplyPreferences pushes preference changes to the engines. Register it
// with the store's OnChange.
func (a *Assistant) ApplyPreferences(p preferences.Preferences) {
	if a.speaker != nil {
		a.speaker.Configure(p.Feedback, p.Speaker, p.Language)
	}
	if a.listener != nil {
		a.listener.SetEnabled(p.Enabled)
	}
}

// StartOptions derives the recognition options from preferences.
func StartOptions(p preferences.Preferences) recognition.StartOptions {
	r := p.Recognition
	opts := recognition.StartOptions{
		Language:        p.Language,
		Input: recognition.InputConfig{
			DeviceID:         p.Microphone.DeviceID,
			NoiseSuppression: p.Microphone.NoiseSuppression,
			EchoCancellation: p.Microphone.EchoCancellation,
			AutoGainControl:  p.Microphone.AutoGainControl,
			Sensitivity:      p.Microphone.Sensitivity,
		},
		Continuous:      r.Continuous,
		InterimResults:  r.InterimResults,
		MaxAlternatives: r.MaxAlternatives,
		MaxDuration:     time.Duration(r.MaxDurationMs) * time.Millisecond,
		SilenceTimeout:  time.Duration(r.SilenceTimeoutMs) * time.Millisecond,
		WakeSimilarity:  r.WakeWordThreshold,
	}
	if r.WakeWordEnabled {
		opts.WakeWords = r.WakeWords
		opts.RequireWakeWord = r.Continuous
	}
	return opts
}

// StartListening opens a recognition session configured from preferences.
func (a *Assistant) StartListening(ctx context.Context) error {
	if a.listener == nil {
		return recognition.ErrUnsupported
	}
	return a.listener.Start(ctx, StartOptions(a.prefs.Get()))
}

func (a *Assistant) StopListening() error {
	if a.listener == nil {
		return recognition.ErrUnsupported
	}
	return a.listener.Stop()
}

type listeningControl struct{ a *Assistant }

func (l listeningControl) Stop() error {
	err := l.a.StopListening()
	if errors.Is(err, recognition.ErrNotListening) {
		return nil
	}
	return err
}

// Process handles one utterance end to end. It never fails: unrecognized
// input yields suggestions and a spoken clarification.
func (a *Assistant) Process(ctx context.Context, u Utterance) CommandResult {
	started := a.now()
	prefs := a.prefs.Get()
	lang := u.Language
	if lang == "" {
		lang = prefs.Language
	}

	out := CommandResult{
		ID:        ulid.Make().String(),
		Original:  u.Text,
		Language:  lang,
		Timestamp: started,
	}

	text, res := a.resolve(u, lang, prefs.Recognition.ConfidenceThreshold)
	out.Original = text
	out.Normalized = a.normalizer.Normalize(text, lang)
	out.Intent = res.Intent
	out.Entities = res.Entities
	out.Confidence = res.Confidence
	out.Category = res.Category
	out.Pattern = res.Pattern
	out.Dialect = res.Dialect
	out.Accepted = res.Accepted

	if !res.Accepted {
		out.Suggestions = res.Suggestions
		out.Message = clarification(lang, res.Suggestions)
		a.say(ctx, out.Message, lang)
	} else {
		execCtx, cancel := context.WithTimeout(ctx, processTimeout)
		result := a.executor.Execute(execCtx, command.Command{
			Intent:     res.Intent,
			Entities:   res.Entities,
			Language:   lang,
			Confidence: res.Confidence,
			Text:       out.Normalized,
		})
		cancel()
		out.Execution = &result
		out.Message = result.Message
		if prefs.Feedback.Confirmations || !result.Success {
			a.say(ctx, out.Message, lang)
		}
	}
	out.Duration = a.now().Sub(started)

	confidence := out.Confidence
	if !out.Accepted {
		confidence = u.Confidence
	}
	if err := a.prefs.RecordUsage(out.Succeeded(), confidence); err != nil {
		a.log.WithField("error", err.Error()).Warn("recording voice usage failed")
	}

	if prefs.Privacy.StoreHistory {
		a.history.add(out)
		if a.archive != nil {
			if err := a.archive.Save(ctx, a.deviceID, out); err != nil {
				a.log.WithFields(logrus.Fields{
					"device_id": a.deviceID,
					"error":     err.Error(),
				}).Warn("archiving voice command failed")
			}
		}
	}
	if a.telemetry != nil && prefs.Privacy.ShareAnalytics {
		if err := a.telemetry.Record(ctx, a.deviceID, out); err != nil {
			a.log.WithFields(logrus.Fields{
				"device_id": a.deviceID,
				"error":     err.Error(),
			}).Warn("voice telemetry failed")
		}
	}

	a.publish(EventResult, out)
	if c, ok := a.contexts.Current(); ok {
		a.publish(EventContext, c)
	} else {
		a.publish(EventContext, nil)
	}

	a.log.WithFields(logrus.Fields{
		"device_id":  a.deviceID,
		"intent":     out.Intent,
		"accepted":   out.Accepted,
		"confidence": out.Confidence,
		"duration":   out.Duration.String(),
	}).Debug("voice command processed")
	return out
}

// resolve tries the best transcript first and falls back to the recognizer
// alternatives when it is not accepted.
func (a *Assistant) resolve(u Utterance, lang string, threshold float64) (string, nlp.Resolution) {
	ctxType := string(a.contexts.Type())
	try := func(text string, confidence float64) nlp.Resolution {
		return a.resolver.Resolve(nlp.Input{
			Text:       a.normalizer.Normalize(text, lang),
			Language:   lang,
			Confidence: confidence,
			Threshold:  threshold,
			Context:    ctxType,
		})
	}

	best := try(u.Text, u.Confidence)
	if best.Accepted {
		return u.Text, best
	}
	for _, alt := range u.Alternatives {
		if alt.Transcript == "" || alt.Transcript == u.Text {
			continue
		}
		if res := try(alt.Transcript, alt.Confidence); res.Accepted {
			return alt.Transcript, res
		}
	}
	return u.Text, best
}

func clarification(lang string, suggestions []nlp.Suggestion) string {
	if len(suggestions) == 0 {
		return command.Localize(lang, "clarify_none")
	}
	texts := make([]string, 0, len(suggestions))
	for _, s := range suggestions {
		texts = append(texts, "«"+s.Text+"»")
	}
	return command.Localize(lang, "clarify", command.JoinList(lang, texts, "or"))
}

func (a *Assistant) say(ctx context.Context, text, lang string) {
	if a.speaker == nil || text == "" {
		return
	}
	id, err := a.speaker.Speak(ctx, text, feedback.Options{Language: lang})
	switch {
	case err == nil:
		a.publish(EventSpeech, map[string]string{"id": id, "text": text})
	case errors.Is(err, feedback.ErrDisabled):
	default:
		a.log.WithField("error", err.Error()).Warn("speaking voice feedback failed")
	}
}

// Speak queues arbitrary text on the speech output.
func (a *Assistant) Speak(ctx context.Context, text string, opts feedback.Options) (string, error) {
	if a.speaker == nil {
		return "", feedback.ErrDisabled
	}
	return a.speaker.Speak(ctx, text, opts)
}

func (a *Assistant) StopSpeaking() {
	if a.speaker != nil {
		a.speaker.Stop()
	}
}

// HandleRecognition consumes recognition engine updates. Register it with
// recognition.WithListener.
func (a *Assistant) HandleRecognition(u recognition.Update) {
	switch u.Kind {
	case recognition.UpdateFinal:
		ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
		defer cancel()
		a.publish(EventTranscript, u)
		a.Process(ctx, Utterance{
			Text:         u.Transcript,
			Language:     u.Language,
			Confidence:   u.Confidence,
			Alternatives: u.Alternatives,
		})
	case recognition.UpdateInterim:
		a.publish(EventTranscript, u)
	case recognition.UpdateState:
		a.publish(EventState, u)
	case recognition.UpdateLevel:
		a.publish(EventLevel, u)
	case recognition.UpdateWakeWord:
		a.publish(EventWakeWord, u)
	case recognition.UpdateError:
		a.recognitionFailed(u)
	}
}

func (a *Assistant) recognitionFailed(u recognition.Update) {
	code := recognition.CodeUnknown
	if u.Err != nil {
		code = u.Err.Code
	}
	prefs := a.prefs.Get()
	lang := u.Language
	if lang == "" {
		lang = prefs.Language
	}
	msg := command.Localize(lang, "error_"+string(code))
	a.publish(EventError, map[string]string{"code": string(code), "message": msg})

	// continuous sessions retry timeouts on their own
	if u.Err != nil && u.Err.Retryable() && prefs.Recognition.Continuous {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()
	a.say(ctx, msg, lang)
}

func (a *Assistant) publish(t EventType, payload interface{}) {
	if a.publisher == nil {
		return
	}
	a.publisher.Publish(Event{Type: t, DeviceID: a.deviceID, Payload: payload, At: a.now()})
}

// History returns up to limit processed commands, newest first.
func (a *Assistant) History(limit int) []CommandResult {
	return a.history.recent(limit)
}

func (a *Assistant) ClearHistory() {
	a.history.clear()
}

// LastResult returns the most recent processed command.
func (a *Assistant) LastResult() (CommandResult, bool) {
	return a.history.last()
}

// Context returns the live conversation context.
func (a *Assistant) Context() (conversation.Context, bool) {
	return a.contexts.Current()
}

// Suggestions ranks example utterances against text.
func (a *Assistant) Suggestions(text, lang string, limit int) []nlp.Suggestion {
	if lang == "" {
		lang = a.prefs.Get().Language
	}
	if text == "" {
		return a.resolver.Examples(lang, limit)
	}
	return a.resolver.Suggest(a.normalizer.Normalize(text, lang), lang, limit)
}

func (a *Assistant) DeviceID() string {
	return a.deviceID
}

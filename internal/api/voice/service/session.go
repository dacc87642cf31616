package voiceService

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"eatech-voice/internal/entity"
	"eatech-voice/internal/voice/assistant"
	"eatech-voice/internal/voice/command"
	"eatech-voice/internal/voice/conversation"
	"eatech-voice/internal/voice/feedback"
	"eatech-voice/internal/voice/preferences"
	"eatech-voice/internal/voice/recognition"

	"github.com/sirupsen/logrus"
)

// AudioWriter receives device audio for recognition on the server.
type AudioWriter interface {
	WriteAudio(pcm []int16) error
}

// RecognizerFactory builds the server side recognizer of one session. A nil
// factory leaves recognition to the device.
type RecognizerFactory func() (recognition.Recognizer, AudioWriter)

// deviceSession owns the voice pipeline of one device.
type deviceSession struct {
	device    entity.DeviceLoginData
	prefs     *preferences.Store
	rec       *recognition.Engine
	recognize recognition.Recognizer
	audioIn   AudioWriter
	speaker   *feedback.Engine
	assistant *assistant.Assistant
	stream    *deviceStream
	log       *logrus.Logger

	cancel   context.CancelFunc
	done     chan struct{}
	lastSeen atomic.Int64
	streams  atomic.Int32
	close    sync.Once
}

func (s *voiceService) newSession(ctx context.Context, device entity.DeviceLoginData) (*deviceSession, error) {
	sess := &deviceSession{
		device: device,
		log:    s.log,
		done:   make(chan struct{}),
		stream: newDeviceStream(device.ID, s.cfg.S3, s.log, s.now),
	}
	sess.touch(s.now())

	opts := []preferences.Option{
		preferences.WithLogger(s.log),
		preferences.WithClock(s.now),
	}
	if s.cfg.Validator != nil {
		opts = append(opts, preferences.WithValidator(s.cfg.Validator))
	}
	if s.voiceRepo != nil {
		opts = append(opts, preferences.WithRemote(remotePreferences{repo: s.voiceRepo, deviceID: device.ID, now: s.now}))
	}
	if s.cfg.QuietPeriod > 0 {
		opts = append(opts, preferences.WithQuietPeriod(s.cfg.QuietPeriod))
	}
	sess.prefs = preferences.NewStore(preferences.NewFileBackend(s.cfg.PreferencesDir, device.ID), opts...)
	if err := sess.prefs.Load(ctx); err != nil {
		s.log.WithFields(logrus.Fields{
			"device_id": device.ID,
			"error":     err.Error(),
		}).Warn("loading voice preferences failed, using loaded state")
	}

	var rec recognition.Recognizer = deviceRecognizer{s: sess.stream}
	if s.cfg.Recognizers != nil {
		rec, sess.audioIn = s.cfg.Recognizers()
	}
	sess.recognize = rec

	var speaker assistant.Speaker
	if s.cfg.Synthesizer != nil {
		fopts := []feedback.Option{
			feedback.WithLogger(s.log),
			feedback.WithClock(s.now),
			feedback.WithSpeakingHook(sess.speaking),
		}
		if s.cfg.AudioCache != nil {
			fopts = append(fopts, feedback.WithStore(s.cfg.AudioCache))
		}
		engine, err := feedback.New(s.cfg.Synthesizer, sess.stream, fopts...)
		if err != nil {
			return nil, err
		}
		sess.speaker = engine
		speaker = engine
	}

	deps := command.Deps{Navigator: sess.stream}
	if s.voiceRepo != nil && device.RestaurantID != "" {
		deps.Catalog = menuCatalog{repo: s.voiceRepo, restaurantID: device.RestaurantID}
	}
	if s.cfg.Commerce != nil && device.RestaurantID != "" {
		c := s.cfg.Commerce(device)
		deps.Cart, deps.Orders, deps.Restaurant = c, c, c
	}

	cfg := assistant.Config{
		DeviceID:    device.ID,
		Patterns:    s.cfg.Patterns,
		Deps:        deps,
		Preferences: sess.prefs,
		Speaker:     speaker,
		Publisher:   sess.stream,
		Contexts:    conversation.NewManager(conversation.WithClock(s.now)),
		Logger:      s.log,
		Now:         s.now,
	}
	if s.cfg.Redis != nil {
		cfg.Telemetry = redisTelemetry{redis: s.cfg.Redis}
	}
	if s.voiceRepo != nil {
		cfg.Archive = commandArchive{repo: s.voiceRepo}
	}

	// the engine reports to the assistant, which in turn drives the engine
	var a *assistant.Assistant
	sess.rec = recognition.New(rec, sess.stream,
		recognition.WithLogger(s.log),
		recognition.WithListener(func(u recognition.Update) { a.HandleRecognition(u) }),
	)
	cfg.Listener = sess.rec

	a, err := assistant.New(cfg)
	if err != nil {
		_ = sess.rec.Close()
		if sess.speaker != nil {
			sess.speaker.Close()
		}
		return nil, err
	}
	sess.assistant = a
	sess.prefs.OnChange(a.ApplyPreferences)

	runCtx, cancel := context.WithCancel(context.Background())
	sess.cancel = cancel
	go func() {
		defer close(sess.done)
		_ = sess.rec.Run(runCtx)
	}()

	s.log.WithFields(logrus.Fields{
		"device_id":     device.ID,
		"restaurant_id": device.RestaurantID,
		"kind":          device.Kind,
	}).Info("voice session opened")
	return sess, nil
}

// speaking keeps the recognizer from hearing our own speech.
func (d *deviceSession) speaking(on bool) {
	d.rec.SetSuppressed(on)
}

func (d *deviceSession) touch(now time.Time) {
	d.lastSeen.Store(now.UnixNano())
}

func (d *deviceSession) idleSince() time.Time {
	return time.Unix(0, d.lastSeen.Load())
}

// feed routes one PCM frame to level metering and server side recognition.
func (d *deviceSession) feed(pcm []int16) {
	d.rec.FeedAudio(pcm)
	if d.audioIn == nil {
		return
	}
	if err := d.audioIn.WriteAudio(pcm); err != nil {
		d.log.WithFields(logrus.Fields{
			"device_id": d.device.ID,
			"error":     err.Error(),
		}).Debug("forwarding audio to recognizer failed")
	}
}

// shutdown stops the engines and flushes pending preference writes.
func (d *deviceSession) shutdown(ctx context.Context) error {
	var err error
	d.close.Do(func() {
		_ = d.rec.Close()
		if d.speaker != nil {
			d.speaker.Close()
		}
		if c, ok := d.recognize.(io.Closer); ok {
			_ = c.Close()
		}
		d.cancel()
		<-d.done
		err = d.prefs.Close(ctx)

		d.log.WithField("device_id", d.device.ID).Info("voice session closed")
	})
	return err
}

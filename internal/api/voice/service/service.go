package voiceService

import (
	"context"
	"io"
	"mime/multipart"
	"sync"
	"time"

	"eatech-voice/internal/api/voice"
	voiceRepository "eatech-voice/internal/api/voice/repository"
	"eatech-voice/internal/entity"
	"eatech-voice/internal/voice/feedback"
	"eatech-voice/internal/voice/preferences"
	"eatech-voice/pkg/audio"
	"eatech-voice/pkg/nlp"
	"eatech-voice/pkg/redis"
	"eatech-voice/pkg/s3"
	"eatech-voice/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

type IVoiceService interface {
	ProcessCommand(ctx context.Context, device entity.DeviceLoginData, req voice.CommandRequest) (*voice.CommandResponse, error)
	ProcessAudio(ctx context.Context, device entity.DeviceLoginData, file *multipart.FileHeader, language string) (*voice.CommandResponse, error)

	GetHistory(ctx context.Context, device entity.DeviceLoginData, query voice.HistoryQuery) (*voice.HistoryResponse, error)
	ClearHistory(ctx context.Context, device entity.DeviceLoginData) error
	GetContext(ctx context.Context, device entity.DeviceLoginData) (*voice.ContextResponse, error)
	GetSuggestions(ctx context.Context, device entity.DeviceLoginData, query voice.SuggestionsQuery) (*voice.SuggestionsResponse, error)
	GetStatus(ctx context.Context, device entity.DeviceLoginData) (*voice.StatusResponse, error)

	GetPreferences(ctx context.Context, device entity.DeviceLoginData) (preferences.Preferences, error)
	PatchPreferences(ctx context.Context, device entity.DeviceLoginData, patch []byte) (preferences.Preferences, error)
	SavePreferences(ctx context.Context, device entity.DeviceLoginData) error
	ResetPreferences(ctx context.Context, device entity.DeviceLoginData) (preferences.Preferences, error)

	Speak(ctx context.Context, device entity.DeviceLoginData, req voice.SpeakRequest) (*voice.SpeakResponse, error)
	StopSpeaking(ctx context.Context, device entity.DeviceLoginData) error
	StartListening(ctx context.Context, device entity.DeviceLoginData) (*voice.ListenResponse, error)
	StopListening(ctx context.Context, device entity.DeviceLoginData) (*voice.ListenResponse, error)

	// Serve runs the device stream on conn until it closes.
	Serve(ctx context.Context, device entity.DeviceLoginData, conn StreamConn) error

	Close(ctx context.Context) error
}

// Transcriber turns uploaded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, name string, r io.Reader, language string) (audio.Transcript, error)
}

// Config carries the collaborators of the voice sessions. Nil members turn
// the matching feature off.
type Config struct {
	Patterns       *nlp.PatternSet
	Validator      *validator.Validate
	Synthesizer    feedback.Synthesizer
	AudioCache     feedback.AudioStore
	Transcriber    Transcriber
	Recognizers    RecognizerFactory
	Commerce       CommerceFor
	Redis          redis.IRedis
	S3             s3.ItfS3
	Utils          utils.IUtils
	PreferencesDir string
	QuietPeriod    time.Duration
	// IdleTimeout closes sessions without requests or a connected stream.
	IdleTimeout time.Duration
	Now         func() time.Time
}

type voiceService struct {
	log       *logrus.Logger
	voiceRepo voiceRepository.Repository
	cfg       Config
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*deviceSession
	closed   bool
	stop     chan struct{}
	janitor  sync.WaitGroup
}

func NewVoiceService(
	log *logrus.Logger,
	voiceRepo voiceRepository.Repository,
	cfg Config,
) IVoiceService {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.PreferencesDir == "" {
		cfg.PreferencesDir = "./storage/preferences"
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 30 * time.Minute
	}
	if cfg.Utils == nil {
		cfg.Utils = utils.New()
	}

	s := &voiceService{
		log:       log,
		voiceRepo: voiceRepo,
		cfg:       cfg,
		now:       cfg.Now,
		sessions:  make(map[string]*deviceSession),
		stop:      make(chan struct{}),
	}
	if cfg.IdleTimeout > 0 {
		s.janitor.Add(1)
		go s.sweep(cfg.IdleTimeout)
	}
	return s
}

// session returns the device's session, opening it on first use.
func (s *voiceService) session(ctx context.Context, device entity.DeviceLoginData) (*deviceSession, error) {
	if device.ID == "" {
		return nil, voice.ErrUnauthorizedDevice
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, voice.ErrDeviceNotConnected
	}
	if sess, ok := s.sessions[device.ID]; ok {
		sess.touch(s.now())
		return sess, nil
	}

	sess, err := s.newSession(ctx, device)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"device_id": device.ID,
			"error":     err.Error(),
		}).Error("opening voice session failed")
		return nil, err
	}
	s.sessions[device.ID] = sess
	return sess, nil
}

func (s *voiceService) sweep(idle time.Duration) {
	defer s.janitor.Done()
	ticker := time.NewTicker(idle / 4)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.closeIdle(idle)
		}
	}
}

func (s *voiceService) closeIdle(idle time.Duration) {
	cutoff := s.now().Add(-idle)

	s.mu.Lock()
	var expired []*deviceSession
	for id, sess := range s.sessions {
		if sess.streams.Load() == 0 && sess.idleSince().Before(cutoff) {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range expired {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := sess.shutdown(ctx); err != nil {
			s.log.WithFields(logrus.Fields{
				"device_id": sess.device.ID,
				"error":     err.Error(),
			}).Warn("flushing voice preferences of idle session failed")
		}
		cancel()
	}
}

// Close ends every session and flushes their preferences.
func (s *voiceService) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	sessions := s.sessions
	s.sessions = make(map[string]*deviceSession)
	s.mu.Unlock()

	close(s.stop)
	s.janitor.Wait()

	var firstErr error
	for _, sess := range sessions {
		if err := sess.shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

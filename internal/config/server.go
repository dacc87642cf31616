package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"eatech-voice/database/postgres"
	voiceHandler "eatech-voice/internal/api/voice/handler"
	voiceRepository "eatech-voice/internal/api/voice/repository"
	voiceService "eatech-voice/internal/api/voice/service"
	"eatech-voice/internal/middleware"
	"eatech-voice/internal/voice/feedback"
	"eatech-voice/internal/voice/recognition"
	"eatech-voice/pkg/audio"
	"eatech-voice/pkg/commerce"
	"eatech-voice/pkg/nlp"
	"eatech-voice/pkg/redis"
	"eatech-voice/pkg/s3"
	"eatech-voice/pkg/utils"
	websocketPkg "eatech-voice/pkg/websocket"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type ServerOption func(*Server) error

type Server struct {
	engine       *fiber.App
	db           *sqlx.DB
	log          *logrus.Logger
	middleware   middleware.Middleware
	validator    *validator.Validate
	utils        utils.IUtils
	handlers     []handler
	redisServer  redis.IRedis
	s3Client     s3.ItfS3
	synthesizer  feedback.Synthesizer
	transcriber  *audio.TranscriptionService
	recognizers  voiceService.RecognizerFactory
	commerce     *commerce.Client
	patterns     *nlp.PatternSet
	voiceService voiceService.IVoiceService
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.middleware == nil {
		server.middleware = middleware.New(server.log)
	}
	if server.validator == nil {
		server.validator = NewValidator()
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

// WithDatabase connects to Postgres and applies the embedded schema when
// DB_MIGRATE is "true".
func WithDatabase() ServerOption {
	return func(s *Server) error {
		db, err := postgres.New()
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to connect to database: %v", err)
			}
			return fmt.Errorf("failed to create database connection: %w", err)
		}
		if os.Getenv("DB_MIGRATE") == "true" {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := postgres.Migrate(ctx, db); err != nil {
				_ = db.Close()
				return fmt.Errorf("failed to migrate database: %w", err)
			}
		}
		s.db = db
		return nil
	}
}

func WithRedisServer(redisServer redis.IRedis) ServerOption {
	return func(s *Server) error {
		s.redisServer = redisServer
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log)
		return nil
	}
}

func WithS3Client() ServerOption {
	return func(s *Server) error {
		client, err := s3.New()
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to initialize S3 client: %v", err)
			}
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		s.s3Client = client
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.New()
		return nil
	}
}

// WithPatterns loads the command pattern tables. VOICE_PATTERNS_DIR replaces
// the built-in tables with files from disk.
func WithPatterns() ServerOption {
	return func(s *Server) error {
		var (
			patterns *nlp.PatternSet
			err      error
		)
		if dir := os.Getenv("VOICE_PATTERNS_DIR"); dir != "" {
			patterns, err = nlp.LoadPatterns(os.DirFS(dir), ".")
		} else {
			patterns, err = nlp.DefaultPatterns()
		}
		if err != nil {
			return fmt.Errorf("failed to load command patterns: %w", err)
		}
		s.patterns = patterns
		return nil
	}
}

// WithSpeechSynthesis enables spoken feedback through ElevenLabs. Without
// ELEVENLABS_API_KEY feedback stays visual only.
func WithSpeechSynthesis() ServerOption {
	return func(s *Server) error {
		if os.Getenv("ELEVENLABS_API_KEY") == "" {
			s.log.Warn("ELEVENLABS_API_KEY not set, spoken feedback disabled")
			return nil
		}
		s.synthesizer = audio.NewTTSServiceFromEnv(s.log)
		return nil
	}
}

// WithTranscription enables Whisper for uploaded audio.
func WithTranscription() ServerOption {
	return func(s *Server) error {
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			s.log.Warn("OPENAI_API_KEY not set, audio uploads disabled")
			return nil
		}
		s.transcriber = audio.NewTranscriptionService(key, s.log)
		return nil
	}
}

// WithRecognition picks the server side recognizer: the streaming ASR
// service when ASR_STREAM_URL is set, otherwise Whisper when transcription
// is enabled. Without either, devices recognize speech themselves.
func WithRecognition() ServerOption {
	return func(s *Server) error {
		switch {
		case os.Getenv("ASR_STREAM_URL") != "":
			cfg := websocketPkg.ConfigFromEnv()
			s.recognizers = func() (recognition.Recognizer, voiceService.AudioWriter) {
				r := websocketPkg.NewStreamRecognizer(cfg, s.log)
				return r, r
			}
			s.log.WithField("url", cfg.URL).Info("Using streaming speech recognition")
		case s.transcriber != nil:
			t := s.transcriber
			s.recognizers = func() (recognition.Recognizer, voiceService.AudioWriter) {
				r := t.NewRecognizer()
				return r, r
			}
			s.log.Info("Using Whisper speech recognition")
		default:
			s.log.Info("Using on-device speech recognition")
		}
		return nil
	}
}

// WithCommerce connects cart, order and service commands to the ordering
// backend at COMMERCE_API_URL.
func WithCommerce() ServerOption {
	return func(s *Server) error {
		if os.Getenv("COMMERCE_API_URL") == "" {
			s.log.Warn("COMMERCE_API_URL not set, ordering commands disabled")
			return nil
		}
		s.commerce = commerce.NewFromEnv(s.log)
		return nil
	}
}

func (s *Server) RegisterHandler() {
	var voiceRepo voiceRepository.Repository
	if s.db != nil {
		voiceRepo = voiceRepository.New(s.db, s.log)
	}

	cfg := voiceService.Config{
		Patterns:       s.patterns,
		Validator:      s.validator,
		Synthesizer:    s.synthesizer,
		Recognizers:    s.recognizers,
		Commerce:       voiceService.CommerceFromClient(s.commerce),
		Redis:          s.redisServer,
		S3:             s.s3Client,
		Utils:          s.utils,
		PreferencesDir: os.Getenv("VOICE_PREFERENCES_DIR"),
	}
	if s.transcriber != nil {
		cfg.Transcriber = s.transcriber
	}
	if s.redisServer != nil {
		cfg.AudioCache = s.redisServer
	}
	if idle, err := time.ParseDuration(os.Getenv("VOICE_SESSION_IDLE")); err == nil {
		cfg.IdleTimeout = idle
	}

	s.voiceService = voiceService.NewVoiceService(s.log, voiceRepo, cfg)
	voiceHandlers := voiceHandler.New(s.log, s.validator, s.middleware, s.voiceService)

	s.setupHealthCheck()
	s.handlers = append(s.handlers, voiceHandlers)
}

func (s *Server) Run() error {
	s.engine.Use(recover.New())
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(middleware.LoggerConfig())
	router := s.engine.Group("/api/v1")

	for _, h := range s.handlers {
		h.Start(router)
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "3000"
	}

	return s.engine.Listen(fmt.Sprintf(":%s", port))
}

// Shutdown stops accepting requests, ends the voice sessions so pending
// preference writes reach disk, then closes the stores.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if err := s.engine.ShutdownWithContext(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http: %w", err))
	}
	if s.voiceService != nil {
		if err := s.voiceService.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("voice sessions: %w", err))
		}
	}
	if s.redisServer != nil {
		if err := s.redisServer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("postgres: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"message": "Server is Healthy!",
		})
	})
	s.engine.Get("/ready", func(ctx *fiber.Ctx) error {
		if s.db != nil {
			c, cancel := context.WithTimeout(ctx.Context(), 2*time.Second)
			defer cancel()
			if err := s.db.PingContext(c); err != nil {
				return ctx.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"message": "database unavailable",
				})
			}
		}
		return ctx.JSON(fiber.Map{"message": "ready"})
	})
}

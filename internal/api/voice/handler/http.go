package voiceHandler

import (
	voiceService "eatech-voice/internal/api/voice/service"
	"eatech-voice/internal/middleware"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

type VoiceHandler struct {
	log          *logrus.Logger
	validator    *validator.Validate
	middleware   middleware.Middleware
	voiceService voiceService.IVoiceService
}

func New(
	log *logrus.Logger,
	validate *validator.Validate,
	middleware middleware.Middleware,
	vs voiceService.IVoiceService,
) *VoiceHandler {
	return &VoiceHandler{
		log:          log,
		validator:    validate,
		middleware:   middleware,
		voiceService: vs,
	}
}

func (h *VoiceHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	// the stream authenticates on its own, so it is registered ahead of the
	// bearer token group
	srv.Get("/voice/ws",
		h.middleware.NewStreamTokenMiddleware,
		wsMiddleware,
		websocket.New(h.handleStream),
	)

	voice := srv.Group("/voice")
	voice.Use(h.middleware.NewTokenMiddleware)
	voice.Use(h.middleware.NewRateLimiter)

	voice.Post("/command", h.ProcessCommand)
	voice.Get("/history", h.GetHistory)
	voice.Delete("/history", h.ClearHistory)
	voice.Get("/context", h.GetContext)
	voice.Get("/suggestions", h.GetSuggestions)
	voice.Get("/status", h.GetStatus)

	prefs := voice.Group("/preferences")
	prefs.Get("/", h.GetPreferences)
	prefs.Patch("/", h.PatchPreferences)
	prefs.Post("/save", h.SavePreferences)
	prefs.Post("/reset", h.ResetPreferences)

	voice.Post("/speak", h.Speak)
	voice.Post("/speak/stop", h.StopSpeaking)
	voice.Post("/listen/start", h.StartListening)
	voice.Post("/listen/stop", h.StopListening)
}

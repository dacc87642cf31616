package voiceHandler

import (
	"context"
	"errors"
	"strings"
	"time"

	"eatech-voice/internal/api/voice"
	contextPkg "eatech-voice/pkg/context"
	"eatech-voice/pkg/handlerUtil"
	jwtPkg "eatech-voice/pkg/jwt"
	"eatech-voice/pkg/log"

	"github.com/gofiber/fiber/v2"
)

func (h *VoiceHandler) ProcessCommand(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 30*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	device, err := jwtPkg.GetDeviceLoginData(ctx)
	if err != nil {
		return errHandler.HandleUnauthorized(ctx, requestID, "Unauthorized")
	}

	var res *voice.CommandResponse
	if strings.HasPrefix(string(ctx.Request().Header.ContentType()), fiber.MIMEMultipartForm) {
		audioFile, err := ctx.FormFile("audio")
		if err != nil {
			return errHandler.HandleValidationError(ctx, requestID,
				errors.New("audio file is required"), ctx.Path())
		}

		language := ctx.FormValue("language")
		if err := h.validator.Var(language, "omitempty,oneof=de-CH de-DE fr-CH fr-FR it-CH it-IT en-US en-GB"); err != nil {
			return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
		}

		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"device_id":  device.ID,
			"file":       audioFile.Filename,
			"size":       audioFile.Size,
		}).Debug("Processing spoken command")

		res, err = h.voiceService.ProcessAudio(c, device, audioFile, language)
		if err != nil {
			return errHandler.Handle(ctx, requestID, err, ctx.Path(), "process_audio")
		}
	} else {
		var req voice.CommandRequest
		if err := ctx.BodyParser(&req); err != nil {
			return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
		}
		if err := h.validator.Struct(req); err != nil {
			return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
		}

		res, err = h.voiceService.ProcessCommand(c, device, req)
		if err != nil {
			return errHandler.Handle(ctx, requestID, err, ctx.Path(), "process_command")
		}
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, res)
	}
}

func (h *VoiceHandler) GetHistory(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	device, err := jwtPkg.GetDeviceLoginData(ctx)
	if err != nil {
		return errHandler.HandleUnauthorized(ctx, requestID, "Unauthorized")
	}

	var query voice.HistoryQuery
	if err := ctx.QueryParser(&query); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}
	if err := h.validator.Struct(query); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	res, err := h.voiceService.GetHistory(c, device, query)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_history")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, res)
	}
}

func (h *VoiceHandler) ClearHistory(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	device, err := jwtPkg.GetDeviceLoginData(ctx)
	if err != nil {
		return errHandler.HandleUnauthorized(ctx, requestID, "Unauthorized")
	}

	if err := h.voiceService.ClearHistory(c, device); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "clear_history")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusNoContent, nil)
}

func (h *VoiceHandler) GetContext(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 5*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	device, err := jwtPkg.GetDeviceLoginData(ctx)
	if err != nil {
		return errHandler.HandleUnauthorized(ctx, requestID, "Unauthorized")
	}

	res, err := h.voiceService.GetContext(c, device)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_context")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, res)
}

func (h *VoiceHandler) GetSuggestions(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 5*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	device, err := jwtPkg.GetDeviceLoginData(ctx)
	if err != nil {
		return errHandler.HandleUnauthorized(ctx, requestID, "Unauthorized")
	}

	var query voice.SuggestionsQuery
	if err := ctx.QueryParser(&query); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}
	if err := h.validator.Struct(query); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	res, err := h.voiceService.GetSuggestions(c, device, query)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_suggestions")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, res)
}

func (h *VoiceHandler) GetStatus(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 5*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	device, err := jwtPkg.GetDeviceLoginData(ctx)
	if err != nil {
		return errHandler.HandleUnauthorized(ctx, requestID, "Unauthorized")
	}

	res, err := h.voiceService.GetStatus(c, device)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_status")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, res)
}

func (h *VoiceHandler) Speak(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 20*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	device, err := jwtPkg.GetDeviceLoginData(ctx)
	if err != nil {
		return errHandler.HandleUnauthorized(ctx, requestID, "Unauthorized")
	}

	var req voice.SpeakRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}
	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	res, err := h.voiceService.Speak(c, device, req)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "speak")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusAccepted, res)
	}
}

func (h *VoiceHandler) StopSpeaking(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 5*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	device, err := jwtPkg.GetDeviceLoginData(ctx)
	if err != nil {
		return errHandler.HandleUnauthorized(ctx, requestID, "Unauthorized")
	}

	if err := h.voiceService.StopSpeaking(c, device); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "stop_speaking")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusNoContent, nil)
}

func (h *VoiceHandler) StartListening(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	device, err := jwtPkg.GetDeviceLoginData(ctx)
	if err != nil {
		return errHandler.HandleUnauthorized(ctx, requestID, "Unauthorized")
	}

	res, err := h.voiceService.StartListening(c, device)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "start_listening")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, res)
}

func (h *VoiceHandler) StopListening(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	device, err := jwtPkg.GetDeviceLoginData(ctx)
	if err != nil {
		return errHandler.HandleUnauthorized(ctx, requestID, "Unauthorized")
	}

	res, err := h.voiceService.StopListening(c, device)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "stop_listening")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, res)
}

package voiceHandler

import (
	"context"
	"errors"
	"time"

	contextPkg "eatech-voice/pkg/context"
	"eatech-voice/pkg/handlerUtil"
	jwtPkg "eatech-voice/pkg/jwt"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
)

func (h *VoiceHandler) GetPreferences(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	device, err := jwtPkg.GetDeviceLoginData(ctx)
	if err != nil {
		return errHandler.HandleUnauthorized(ctx, requestID, "Unauthorized")
	}

	prefs, err := h.voiceService.GetPreferences(c, device)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_preferences")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, prefs)
}

// PatchPreferences merges a partial preferences document. Unknown keys are
// ignored, out of range values reject the whole patch.
func (h *VoiceHandler) PatchPreferences(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	device, err := jwtPkg.GetDeviceLoginData(ctx)
	if err != nil {
		return errHandler.HandleUnauthorized(ctx, requestID, "Unauthorized")
	}

	body := ctx.Body()
	if len(body) == 0 || !jsoniter.Valid(body) {
		return errHandler.HandleValidationError(ctx, requestID,
			errors.New("body must be a JSON object"), ctx.Path())
	}

	// fasthttp reuses the body buffer once the handler returns
	patch := append([]byte(nil), body...)
	prefs, err := h.voiceService.PatchPreferences(c, device, patch)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "patch_preferences")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, prefs)
}

func (h *VoiceHandler) SavePreferences(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 15*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	device, err := jwtPkg.GetDeviceLoginData(ctx)
	if err != nil {
		return errHandler.HandleUnauthorized(ctx, requestID, "Unauthorized")
	}

	if err := h.voiceService.SavePreferences(c, device); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "save_preferences")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusNoContent, nil)
	}
}

func (h *VoiceHandler) ResetPreferences(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	device, err := jwtPkg.GetDeviceLoginData(ctx)
	if err != nil {
		return errHandler.HandleUnauthorized(ctx, requestID, "Unauthorized")
	}

	prefs, err := h.voiceService.ResetPreferences(c, device)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "reset_preferences")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, prefs)
}

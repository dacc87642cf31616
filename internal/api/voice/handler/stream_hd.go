package voiceHandler

import (
	"context"

	"eatech-voice/internal/entity"
	"eatech-voice/internal/middleware"

	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

func (h *VoiceHandler) handleStream(c *websocket.Conn) {
	device, ok := c.Locals(middleware.DeviceKey).(entity.DeviceLoginData)
	if !ok {
		_ = c.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthorized"))
		_ = c.Close()
		return
	}

	h.log.WithFields(logrus.Fields{
		"device_id": device.ID,
		"remote":    c.RemoteAddr().String(),
	}).Info("Voice stream opened")

	// the stream outlives the upgrade request
	if err := h.voiceService.Serve(context.Background(), device, c); err != nil {
		h.log.WithFields(logrus.Fields{
			"device_id": device.ID,
			"error":     err.Error(),
		}).Warn("Voice stream rejected")
		_ = c.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()))
	}
	_ = c.Close()
}

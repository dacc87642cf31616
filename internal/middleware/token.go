package middleware

import (
	"strings"

	jwtPkg "eatech-voice/pkg/jwt"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

const (
	AccessTokenSecret = jwtPkg.AccessTokenSecret

	DeviceKey   = "device"
	DeviceIDKey = "device_id"
)

func unauthorized(ctx *fiber.Ctx) error {
	return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": "Unauthorized, access token invalid or expired",
		"code":  "UNAUTHORIZED",
	})
}

// NewTokenMiddleware admits requests carrying a device bearer token.
func (m *middleware) NewTokenMiddleware(ctx *fiber.Ctx) error {
	authHeader := ctx.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		m.log.WithFields(logrus.Fields{
			"path":      ctx.Path(),
			"client_ip": ctx.IP(),
		}).Warn("Authorization header missing or malformed")
		return unauthorized(ctx)
	}

	token, err := jwtPkg.VerifyTokenHeader(ctx, AccessTokenSecret)
	if err != nil {
		m.log.WithFields(logrus.Fields{
			"path":  ctx.Path(),
			"error": err.Error(),
		}).Warn("Token verification failed")
		return unauthorized(ctx)
	}

	return m.admit(ctx, token)
}

// NewStreamTokenMiddleware is NewTokenMiddleware for websocket upgrades.
// Browsers cannot set headers on the upgrade request, so the token may also
// come in the "token" query parameter.
func (m *middleware) NewStreamTokenMiddleware(ctx *fiber.Ctx) error {
	if strings.HasPrefix(ctx.Get("Authorization"), "Bearer ") {
		return m.NewTokenMiddleware(ctx)
	}

	token, err := jwtPkg.VerifyToken(ctx.Query("token"), AccessTokenSecret)
	if err != nil {
		m.log.WithFields(logrus.Fields{
			"path":  ctx.Path(),
			"error": err.Error(),
		}).Warn("Stream token verification failed")
		return unauthorized(ctx)
	}

	return m.admit(ctx, token)
}

func (m *middleware) admit(ctx *fiber.Ctx, token *jwt.Token) error {
	device, err := jwtPkg.DeviceFromToken(token)
	if err != nil {
		m.log.WithFields(logrus.Fields{
			"path":  ctx.Path(),
			"error": err.Error(),
		}).Warn("Token claims check")
		return unauthorized(ctx)
	}

	ctx.Locals(DeviceKey, device)
	ctx.Locals(DeviceIDKey, device.ID)

	m.log.WithFields(logrus.Fields{
		"device_id":     device.ID,
		"restaurant_id": device.RestaurantID,
	}).Debug("Device authenticated")
	return ctx.Next()
}

package jwtPkg

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"eatech-voice/internal/entity"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

const AccessTokenSecret = "JWT_ACCESS_TOKEN_SECRET"

var (
	ErrEmptyToken   = errors.New("empty token")
	ErrInvalidToken = errors.New("invalid token claims")
)

func Sign(Data map[string]interface{}, ExpiredAt time.Duration) (string, int64, error) {
	expiredAt := time.Now().Add(ExpiredAt).Unix()

	JWTSecretKey := os.Getenv(AccessTokenSecret)
	if JWTSecretKey == "" {
		return "", 0, fmt.Errorf("%s not set", AccessTokenSecret)
	}

	claims := jwt.MapClaims{}
	claims["exp"] = expiredAt
	claims["authorization"] = true

	for i, v := range Data {
		claims[i] = v
	}

	logrus.WithField("claims", claims).Debug("Creating token with claims")

	to := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	accessToken, err := to.SignedString([]byte(JWTSecretKey))
	if err != nil {
		logrus.WithError(err).Error("Failed to sign token")
		return "", 0, err
	}

	return accessToken, expiredAt, nil
}

// SignDevice issues an access token for a voice device.
func SignDevice(device entity.DeviceLoginData, ttl time.Duration) (string, int64, error) {
	return Sign(map[string]interface{}{
		"device_id":     device.ID,
		"restaurant_id": device.RestaurantID,
		"table":         device.Table,
		"kind":          device.Kind,
	}, ttl)
}

func VerifyTokenHeader(c *fiber.Ctx, secretEnvKey string) (*jwt.Token, error) {
	log := logrus.WithField("func", "VerifyTokenHeader")

	header := c.Get("Authorization")
	if header == "" {
		log.Error("Empty Authorization header")
		return nil, errors.New("empty Authorization header")
	}

	parts := strings.Split(header, "Bearer ")
	if len(parts) != 2 {
		log.WithField("header_parts", len(parts)).Error("Invalid Authorization format")
		return nil, errors.New("invalid Authorization format")
	}

	return VerifyToken(strings.TrimSpace(parts[1]), secretEnvKey)
}

// VerifyToken parses a raw token, for transports that cannot send headers.
func VerifyToken(accessToken string, secretEnvKey string) (*jwt.Token, error) {
	log := logrus.WithField("func", "VerifyToken")

	if accessToken == "" {
		log.Error("Empty token")
		return nil, ErrEmptyToken
	}

	JWTSecretKey := os.Getenv(secretEnvKey)
	if JWTSecretKey == "" {
		log.Errorf("%s environment variable not set", secretEnvKey)
		return nil, errors.New("JWT secret not configured")
	}

	token, err := jwt.Parse(accessToken, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			log.WithField("method", token.Header["alg"]).Error("Unexpected signing method")
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(JWTSecretKey), nil
	})

	if err != nil {
		log.WithError(err).Warn("Failed to parse JWT token")
		return nil, err
	}

	log.Debug("Token successfully verified")
	return token, nil
}

// DeviceFromToken reads the device claims of a verified token.
func DeviceFromToken(token *jwt.Token) (entity.DeviceLoginData, error) {
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return entity.DeviceLoginData{}, ErrInvalidToken
	}

	id, _ := claims["device_id"].(string)
	if id == "" {
		return entity.DeviceLoginData{}, ErrInvalidToken
	}
	device := entity.DeviceLoginData{ID: id}
	device.RestaurantID, _ = claims["restaurant_id"].(string)
	device.Kind, _ = claims["kind"].(string)
	if table, ok := claims["table"].(float64); ok {
		device.Table = int(table)
	}
	return device, nil
}

func GetDeviceLoginData(c *fiber.Ctx) (entity.DeviceLoginData, error) {
	deviceData := c.Locals("device")

	device, ok := deviceData.(entity.DeviceLoginData)
	if !ok {
		return entity.DeviceLoginData{}, fiber.ErrUnauthorized
	}

	return device, nil
}

package jwtPkg

import (
	"testing"
	"time"

	"eatech-voice/internal/entity"

	"github.com/stretchr/testify/require"
)

func TestSignAndVerifyDevice(t *testing.T) {
	t.Setenv(AccessTokenSecret, "test-secret")

	device := entity.DeviceLoginData{ID: "kiosk-7", RestaurantID: "r-zurich", Table: 12, Kind: entity.DeviceKiosk}
	token, exp, err := SignDevice(device, time.Hour)
	require.NoError(t, err)
	require.Greater(t, exp, time.Now().Unix())

	parsed, err := VerifyToken(token, AccessTokenSecret)
	require.NoError(t, err)

	got, err := DeviceFromToken(parsed)
	require.NoError(t, err)
	require.Equal(t, device, got)
}

func TestVerifyTokenRejects(t *testing.T) {
	t.Setenv(AccessTokenSecret, "test-secret")

	_, err := VerifyToken("", AccessTokenSecret)
	require.ErrorIs(t, err, ErrEmptyToken)

	token, _, err := Sign(map[string]interface{}{"device_id": "d1"}, time.Hour)
	require.NoError(t, err)

	t.Setenv(AccessTokenSecret, "other-secret")
	_, err = VerifyToken(token, AccessTokenSecret)
	require.Error(t, err)
}

func TestDeviceClaimRequired(t *testing.T) {
	t.Setenv(AccessTokenSecret, "test-secret")

	token, _, err := Sign(map[string]interface{}{"email": "chef@example.ch"}, time.Hour)
	require.NoError(t, err)
	parsed, err := VerifyToken(token, AccessTokenSecret)
	require.NoError(t, err)

	_, err = DeviceFromToken(parsed)
	require.ErrorIs(t, err, ErrInvalidToken)
}

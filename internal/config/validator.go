package config

import (
	"eatech-voice/internal/voice/preferences"

	"github.com/go-playground/validator/v10"
)

// NewValidator reports fields by their JSON names, for request bodies and
// preferences alike.
func NewValidator() *validator.Validate {
	return preferences.NewValidator()
}

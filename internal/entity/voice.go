package entity

import (
	"time"
)

// VoiceCommand is one processed utterance kept in the command history.
type VoiceCommand struct {
	ID         string                 `json:"id"`
	DeviceID   string                 `json:"device_id"`
	Transcript string                 `json:"transcript"`
	Normalized string                 `json:"normalized"`
	Language   string                 `json:"language"`
	Intent     string                 `json:"intent"`
	Confidence float64                `json:"confidence"`
	Accepted   bool                   `json:"accepted"`
	Success    bool                   `json:"success"`
	Response   string                 `json:"response"`
	AudioURL   string                 `json:"audio_url"`
	Metadata   map[string]interface{} `json:"metadata"`
	DurationMs int64                  `json:"duration_ms"`
	CreatedAt  time.Time              `json:"created_at"`
}

// VoicePreferences is the remote copy of a device's preferences record.
type VoicePreferences struct {
	DeviceID     string    `json:"device_id"`
	Version      int       `json:"version"`
	Data         []byte    `json:"data"`
	LastModified time.Time `json:"last_modified"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// MenuItem is a priced product on a restaurant menu.
type MenuItem struct {
	ID           string    `json:"id"`
	RestaurantID string    `json:"restaurant_id"`
	Name         string    `json:"name"`
	Language     string    `json:"language"`
	Price        float64   `json:"price"`
	Currency     string    `json:"currency"`
	Available    bool      `json:"available"`
	UpdatedAt    time.Time `json:"updated_at"`
}

package voiceService

import (
	"context"
	"errors"
	"time"

	"eatech-voice/internal/api/voice"
	voiceRepository "eatech-voice/internal/api/voice/repository"
	"eatech-voice/internal/entity"
	"eatech-voice/internal/voice/assistant"
	"eatech-voice/internal/voice/command"
	"eatech-voice/internal/voice/preferences"
	"eatech-voice/pkg/commerce"
	"eatech-voice/pkg/redis"

	jsoniter "github.com/json-iterator/go"
)

// CommerceSession is the ordering platform scoped to one device.
type CommerceSession interface {
	command.Cart
	command.Orders
	command.Restaurant
}

// CommerceFor scopes the ordering platform to a device.
type CommerceFor func(device entity.DeviceLoginData) CommerceSession

func CommerceFromClient(c *commerce.Client) CommerceFor {
	if c == nil {
		return nil
	}
	return func(device entity.DeviceLoginData) CommerceSession {
		return c.ForDevice(device.RestaurantID, device.ID, device.Table)
	}
}

// remotePreferences keeps the device's preferences record in Postgres.
type remotePreferences struct {
	repo     voiceRepository.Repository
	deviceID string
	now      func() time.Time
}

func (b remotePreferences) Read(ctx context.Context) ([]byte, error) {
	client, err := b.repo.NewClient(false)
	if err != nil {
		return nil, err
	}
	rec, err := client.Preferences.GetPreferences(ctx, b.deviceID)
	if errors.Is(err, voice.ErrPreferencesNotFound) {
		return nil, preferences.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec.Data, nil
}

func (b remotePreferences) Write(ctx context.Context, data []byte) error {
	var head struct {
		Version      int       `json:"version"`
		LastModified time.Time `json:"lastModified"`
	}
	if err := jsoniter.Unmarshal(data, &head); err != nil {
		return err
	}

	client, err := b.repo.NewClient(false)
	if err != nil {
		return err
	}
	return client.Preferences.UpsertPreferences(ctx, entity.VoicePreferences{
		DeviceID:     b.deviceID,
		Version:      head.Version,
		Data:         data,
		LastModified: head.LastModified,
		UpdatedAt:    b.now(),
	})
}

// menuCatalog prices items from the restaurant's menu.
type menuCatalog struct {
	repo         voiceRepository.Repository
	restaurantID string
}

func (c menuCatalog) Price(ctx context.Context, item, language string) (command.Product, error) {
	client, err := c.repo.NewClient(false)
	if err != nil {
		return command.Product{}, err
	}
	found, err := client.Menu.FindMenuItem(ctx, c.restaurantID, item, language)
	if errors.Is(err, voice.ErrMenuItemNotFound) {
		return command.Product{}, command.ErrNotFound
	}
	if err != nil {
		return command.Product{}, err
	}
	return command.Product{Name: found.Name, Price: found.Price, Currency: found.Currency}, nil
}

type commandSummary struct {
	ID         string  `json:"id"`
	Language   string  `json:"language"`
	Intent     string  `json:"intent,omitempty"`
	Category   string  `json:"category,omitempty"`
	Confidence float64 `json:"confidence"`
	Dialect    bool    `json:"dialect"`
	Accepted   bool    `json:"accepted"`
	Success    bool    `json:"success"`
	DurationMs int64   `json:"duration_ms"`
}

// redisTelemetry appends command summaries to the telemetry stream.
// Transcripts are left out.
type redisTelemetry struct {
	redis redis.IRedis
}

func (t redisTelemetry) Record(ctx context.Context, deviceID string, r assistant.CommandResult) error {
	return t.redis.AppendEvent(ctx, deviceID, "command", commandSummary{
		ID:         r.ID,
		Language:   r.Language,
		Intent:     r.Intent,
		Category:   string(r.Category),
		Confidence: r.Confidence,
		Dialect:    r.Dialect,
		Accepted:   r.Accepted,
		Success:    r.Succeeded(),
		DurationMs: r.Duration.Milliseconds(),
	})
}

// commandArchive writes processed commands to the history table.
type commandArchive struct {
	repo voiceRepository.Repository
}

func (a commandArchive) Save(ctx context.Context, deviceID string, r assistant.CommandResult) error {
	client, err := a.repo.NewClient(false)
	if err != nil {
		return err
	}
	return client.VoiceCommands.CreateVoiceCommand(ctx, toVoiceCommand(deviceID, r))
}

func toVoiceCommand(deviceID string, r assistant.CommandResult) entity.VoiceCommand {
	metadata := map[string]interface{}{
		"dialect": r.Dialect,
	}
	if len(r.Entities) > 0 {
		metadata["entities"] = r.Entities
	}
	if r.Category != "" {
		metadata["category"] = string(r.Category)
	}
	if r.Pattern != "" {
		metadata["pattern"] = r.Pattern
	}
	if len(r.Suggestions) > 0 {
		metadata["suggestions"] = r.Suggestions
	}
	if r.Execution != nil {
		metadata["action"] = r.Execution.Action
		if r.Execution.Code != "" {
			metadata["code"] = r.Execution.Code
		}
	}

	return entity.VoiceCommand{
		ID:         r.ID,
		DeviceID:   deviceID,
		Transcript: r.Original,
		Normalized: r.Normalized,
		Language:   r.Language,
		Intent:     r.Intent,
		Confidence: r.Confidence,
		Accepted:   r.Accepted,
		Success:    r.Succeeded(),
		Response:   r.Message,
		Metadata:   metadata,
		DurationMs: r.Duration.Milliseconds(),
		CreatedAt:  r.Timestamp,
	}
}

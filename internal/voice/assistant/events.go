package assistant

import (
	"context"
	"time"

	"eatech-voice/internal/voice/command"
	"eatech-voice/pkg/nlp"
)

type EventType string

const (
	EventTranscript EventType = "transcript"
	EventResult     EventType = "result"
	EventContext    EventType = "context"
	EventSpeech     EventType = "speech"
	EventState      EventType = "state"
	EventLevel      EventType = "level"
	EventWakeWord   EventType = "wake-word"
	EventError      EventType = "error"
)

// Event is pushed to the device stream.
type Event struct {
	Type     EventType   `json:"type"`
	DeviceID string      `json:"deviceId,omitempty"`
	Payload  interface{} `json:"payload,omitempty"`
	At       time.Time   `json:"at"`
}

// Publisher delivers events to connected clients. Publish must not block.
type Publisher interface {
	Publish(Event)
}

// Telemetry records processed commands. Failures are logged and ignored.
type Telemetry interface {
	Record(ctx context.Context, deviceID string, result CommandResult) error
}

// Archive persists processed commands when the privacy settings allow
// keeping history.
type Archive interface {
	Save(ctx context.Context, deviceID string, result CommandResult) error
}

// CommandResult is one processed utterance.
type CommandResult struct {
	ID          string            `json:"id"`
	Original    string            `json:"original"`
	Normalized  string            `json:"normalized"`
	Language    string            `json:"language"`
	Intent      string            `json:"intent,omitempty"`
	Entities    map[string]string `json:"entities,omitempty"`
	Confidence  float64           `json:"confidence"`
	Category    nlp.Category      `json:"category,omitempty"`
	Pattern     string            `json:"pattern,omitempty"`
	Dialect     bool              `json:"dialect"`
	Accepted    bool              `json:"accepted"`
	Suggestions []nlp.Suggestion  `json:"suggestions,omitempty"`
	Message     string            `json:"message"`
	Execution   *command.Result   `json:"execution,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
	Duration    time.Duration     `json:"duration"`
}

// Succeeded reports whether the utterance was accepted and its action worked.
func (r CommandResult) Succeeded() bool {
	return r.Accepted && r.Execution != nil && r.Execution.Success
}

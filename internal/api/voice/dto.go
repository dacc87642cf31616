package voice

import (
	"time"

	"eatech-voice/internal/voice/assistant"
	"eatech-voice/internal/voice/conversation"
	"eatech-voice/internal/voice/recognition"
	"eatech-voice/pkg/nlp"
)

type CommandRequest struct {
	Text         string                    `json:"text" validate:"required,max=500"`
	Language     string                    `json:"language,omitempty" validate:"omitempty,oneof=de-CH de-DE fr-CH fr-FR it-CH it-IT en-US en-GB"`
	Confidence   float64                   `json:"confidence,omitempty" validate:"gte=0,lte=1"`
	Alternatives []recognition.Alternative `json:"alternatives,omitempty" validate:"max=10"`
}

type CommandResponse struct {
	Result     assistant.CommandResult `json:"result"`
	Transcript string                  `json:"transcript,omitempty"`
	AudioURL   string                  `json:"audio_url,omitempty"`
}

type HistoryQuery struct {
	Page  int `query:"page" validate:"gte=0"`
	Limit int `query:"limit" validate:"gte=0,lte=100"`
}

type VoiceCommandHistory struct {
	ID         string                 `json:"id"`
	Transcript string                 `json:"transcript"`
	Normalized string                 `json:"normalized"`
	Language   string                 `json:"language"`
	Intent     string                 `json:"intent,omitempty"`
	Confidence float64                `json:"confidence"`
	Accepted   bool                   `json:"accepted"`
	Success    bool                   `json:"success"`
	Response   string                 `json:"response"`
	AudioURL   string                 `json:"audio_url,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	DurationMs int64                  `json:"duration_ms"`
	CreatedAt  time.Time              `json:"created_at"`
}

type HistoryResponse struct {
	Items []VoiceCommandHistory `json:"items"`
	Total int                   `json:"total"`
	Page  int                   `json:"page"`
	Limit int                   `json:"limit"`
}

type ContextResponse struct {
	Active  bool                  `json:"active"`
	Context *conversation.Context `json:"context,omitempty"`
}

type SpeakRequest struct {
	Text     string  `json:"text" validate:"required,max=1000"`
	Language string  `json:"language,omitempty" validate:"omitempty,oneof=de-CH de-DE fr-CH fr-FR it-CH it-IT en-US en-GB"`
	Voice    string  `json:"voice,omitempty" validate:"max=64"`
	Rate     float64 `json:"rate,omitempty" validate:"omitempty,gte=0.1,lte=3"`
	Pitch    float64 `json:"pitch,omitempty" validate:"omitempty,gte=0,lte=2"`
	Volume   float64 `json:"volume,omitempty" validate:"omitempty,gte=0,lte=1"`
	NoCache  bool    `json:"no_cache,omitempty"`
}

type SpeakResponse struct {
	ID string `json:"id"`
}

type SuggestionsQuery struct {
	Text     string `query:"text" validate:"max=500"`
	Language string `query:"language" validate:"omitempty,oneof=de-CH de-DE fr-CH fr-FR it-CH it-IT en-US en-GB"`
	Limit    int    `query:"limit" validate:"gte=0,lte=20"`
}

type SuggestionsResponse struct {
	Language    string           `json:"language"`
	Suggestions []nlp.Suggestion `json:"suggestions"`
}

type ListenResponse struct {
	State   recognition.State   `json:"state"`
	Session recognition.Session `json:"session"`
}

type StatusResponse struct {
	Connected bool                `json:"connected"`
	Enabled   bool                `json:"enabled"`
	Session   recognition.Session `json:"session"`
	Speaking  bool                `json:"speaking"`
	Pending   int                 `json:"pending"`
	Progress  float64             `json:"progress"`
}

// StreamMessage is a JSON text frame sent by the device over the stream.
type StreamMessage struct {
	Type         string                    `json:"type"`
	ID           string                    `json:"id,omitempty"`
	Text         string                    `json:"text,omitempty"`
	Language     string                    `json:"language,omitempty"`
	Error        string                    `json:"error,omitempty"`
	Final        bool                      `json:"final,omitempty"`
	Alternatives []recognition.Alternative `json:"alternatives,omitempty"`
}

// Inbound stream message types.
const (
	StreamSpeechEnded       = "speech-ended"
	StreamSpeechError       = "speech-error"
	StreamMicOpened         = "mic-opened"
	StreamMicError          = "mic-error"
	StreamRecognizerStarted = "recognizer-started"
	StreamRecognizerResult  = "recognizer-result"
	StreamRecognizerError   = "recognizer-error"
	StreamRecognizerEnd     = "recognizer-end"
	StreamCommand           = "command"
	StreamListenStart       = "listen-start"
	StreamListenStop        = "listen-stop"
	StreamSpeakStop         = "speak-stop"
	StreamPing              = "ping"
)

// Outbound stream event types beyond the assistant's own events.
const (
	EventNavigate        assistant.EventType = "navigate"
	EventBack            assistant.EventType = "back"
	EventSpeechPlay      assistant.EventType = "speech-play"
	EventSpeechStop      assistant.EventType = "speech-stop"
	EventMicOpen         assistant.EventType = "mic-open"
	EventMicClose        assistant.EventType = "mic-close"
	EventRecognizerStart assistant.EventType = "recognizer-start"
	EventRecognizerStop  assistant.EventType = "recognizer-stop"
	EventRecognizerAbort assistant.EventType = "recognizer-abort"
	EventPong            assistant.EventType = "pong"
)

package preferences

import (
	"slices"
	"time"
)

// CurrentVersion is the schema version written by this package.
const CurrentVersion = 3

type Preferences struct {
	Version      int               `json:"version" validate:"eq=3"`
	Language     string            `json:"language" validate:"required,oneof=de-CH de-DE fr-CH fr-FR it-CH it-IT en-US en-GB"`
	Dialect      string            `json:"dialect" validate:"omitempty,oneof=zh be bs lu sg gr vs ag romand ticino"`
	Enabled      bool              `json:"enabled"`
	Microphone   MicrophoneConfig  `json:"microphone"`
	Speaker      SpeakerConfig     `json:"speaker"`
	Recognition  RecognitionConfig `json:"recognition"`
	Feedback     FeedbackConfig    `json:"feedback"`
	Privacy      PrivacyConfig     `json:"privacy"`
	Stats        Stats             `json:"stats"`
	LastModified time.Time         `json:"lastModified"`
}

type MicrophoneConfig struct {
	DeviceID         string  `json:"deviceId" validate:"max=128"`
	NoiseSuppression bool    `json:"noiseSuppression"`
	EchoCancellation bool    `json:"echoCancellation"`
	AutoGainControl  bool    `json:"autoGainControl"`
	Sensitivity      float64 `json:"sensitivity" validate:"gte=0,lte=1"`
}

type SpeakerConfig struct {
	DeviceID string  `json:"deviceId" validate:"max=128"`
	Volume   float64 `json:"volume" validate:"gte=0,lte=1"`
}

type RecognitionConfig struct {
	ConfidenceThreshold float64  `json:"confidenceThreshold" validate:"gte=0,lte=1"`
	WakeWordThreshold   float64  `json:"wakeWordThreshold" validate:"gte=0,lte=1"`
	SilenceTimeoutMs    int      `json:"silenceTimeoutMs" validate:"gte=0,lte=60000"`
	MaxDurationMs       int      `json:"maxDurationMs" validate:"gte=0,lte=300000"`
	MaxAlternatives     int      `json:"maxAlternatives" validate:"gte=1,lte=10"`
	Continuous          bool     `json:"continuous"`
	InterimResults      bool     `json:"interimResults"`
	WakeWordEnabled     bool     `json:"wakeWordEnabled"`
	WakeWords           []string `json:"wakeWords" validate:"max=16,dive,min=2,max=64"`
}

type FeedbackConfig struct {
	Enabled       bool    `json:"enabled"`
	Confirmations bool    `json:"confirmations"`
	Voice         string  `json:"voice" validate:"max=64"`
	Rate          float64 `json:"rate" validate:"gte=0.1,lte=3"`
	Pitch         float64 `json:"pitch" validate:"gte=0,lte=2"`
	Volume        float64 `json:"volume" validate:"gte=0,lte=1"`
	CacheAudio    bool    `json:"cacheAudio"`
}

type PrivacyConfig struct {
	StoreHistory   bool `json:"storeHistory"`
	StoreAudio     bool `json:"storeAudio"`
	ShareAnalytics bool `json:"shareAnalytics"`
}

type Stats struct {
	TotalCommands      int       `json:"totalCommands" validate:"gte=0"`
	SuccessfulCommands int       `json:"successfulCommands" validate:"gte=0,ltefield=TotalCommands"`
	AverageConfidence  float64   `json:"averageConfidence" validate:"gte=0,lte=1"`
	LastUsed           time.Time `json:"lastUsed"`
}

// DefaultWakeWords covers the standard greeting and its regional variants.
var DefaultWakeWords = []string{
	"hey eatech", "hoi eatech", "hallo eatech", "grüezi eatech",
	"salut eatech", "bonjour eatech", "ciao eatech",
}

func Defaults() Preferences {
	return Preferences{
		Version:  CurrentVersion,
		Language: "de-CH",
		Enabled:  true,
		Microphone: MicrophoneConfig{
			NoiseSuppression: true,
			EchoCancellation: true,
			AutoGainControl:  true,
			Sensitivity:      0.5,
		},
		Speaker: SpeakerConfig{Volume: 1},
		Recognition: RecognitionConfig{
			ConfidenceThreshold: 0.7,
			WakeWordThreshold:   0.85,
			SilenceTimeoutMs:    3000,
			MaxDurationMs:       60000,
			MaxAlternatives:     3,
			Continuous:          false,
			InterimResults:      true,
			WakeWordEnabled:     true,
			WakeWords:           slices.Clone(DefaultWakeWords),
		},
		Feedback: FeedbackConfig{
			Enabled:       true,
			Confirmations: true,
			Rate:          1,
			Pitch:         1,
			Volume:        0.8,
			CacheAudio:    true,
		},
		Privacy: PrivacyConfig{StoreHistory: true},
	}
}

// Clone returns a deep copy.
func (p Preferences) Clone() Preferences {
	p.Recognition.WakeWords = slices.Clone(p.Recognition.WakeWords)
	return p
}

// SuccessRate is the share of successful commands, zero before first use.
func (s Stats) SuccessRate() float64 {
	if s.TotalCommands == 0 {
		return 0
	}
	return float64(s.SuccessfulCommands) / float64(s.TotalCommands)
}

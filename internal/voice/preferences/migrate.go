package preferences

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// v1 records were flat, stored the confidence threshold as a percentage and
// the silence timeout in seconds, and allowed a single wake word.
type recordV1 struct {
	Language            string  `json:"language"`
	Dialect             string  `json:"dialect"`
	Enabled             *bool   `json:"enabled"`
	ConfidenceThreshold float64 `json:"confidenceThreshold"`
	SilenceTimeout      int     `json:"silenceTimeout"`
	Continuous          bool    `json:"continuous"`
	WakeWord            string  `json:"wakeWord"`
	VoiceFeedback       *bool   `json:"voiceFeedback"`
	SpeechRate          float64 `json:"speechRate"`
	SpeechVolume        float64 `json:"speechVolume"`
	TotalCommands       int     `json:"totalCommands"`
	SuccessfulCommands  int     `json:"successfulCommands"`
}

// v2 introduced the nested layout but still named the rate "speed" and kept
// a single wake word.
type recordV2 struct {
	Recognition struct {
		WakeWord string `json:"wakeWord"`
	} `json:"recognition"`
	Feedback struct {
		Speed float64 `json:"speed"`
	} `json:"feedback"`
}

// Decode parses a stored record of any known schema version and returns it in
// the current layout. migrated is true when the input was an older version.
func Decode(data []byte) (p Preferences, migrated bool, err error) {
	var head struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return Preferences{}, false, fmt.Errorf("decode preferences header: %w", err)
	}

	switch head.Version {
	case 0, 1:
		p, err = migrateV1(data)
	case 2:
		p, err = migrateV2(data)
	case CurrentVersion:
		p = Defaults()
		p.Recognition.WakeWords = nil
		if err = json.Unmarshal(data, &p); err == nil && p.Recognition.WakeWords == nil {
			p.Recognition.WakeWords = Defaults().Recognition.WakeWords
		}
	default:
		return Preferences{}, false, fmt.Errorf("unsupported preferences version %d", head.Version)
	}
	if err != nil {
		return Preferences{}, false, err
	}
	return p, head.Version != CurrentVersion, nil
}

func migrateV1(data []byte) (Preferences, error) {
	var old recordV1
	if err := json.Unmarshal(data, &old); err != nil {
		return Preferences{}, fmt.Errorf("decode v1 preferences: %w", err)
	}

	p := Defaults()
	if old.Language != "" {
		p.Language = old.Language
	}
	p.Dialect = old.Dialect
	if old.Enabled != nil {
		p.Enabled = *old.Enabled
	}
	if old.ConfidenceThreshold > 0 {
		t := old.ConfidenceThreshold
		if t > 1 {
			t /= 100
		}
		p.Recognition.ConfidenceThreshold = t
	}
	if old.SilenceTimeout > 0 {
		p.Recognition.SilenceTimeoutMs = old.SilenceTimeout * 1000
	}
	p.Recognition.Continuous = old.Continuous
	p.Recognition.WakeWords = mergeWakeWord(p.Recognition.WakeWords, old.WakeWord)
	if old.VoiceFeedback != nil {
		p.Feedback.Enabled = *old.VoiceFeedback
	}
	if old.SpeechRate > 0 {
		p.Feedback.Rate = old.SpeechRate
	}
	if old.SpeechVolume > 0 {
		p.Feedback.Volume = old.SpeechVolume
	}
	p.Stats.TotalCommands = old.TotalCommands
	p.Stats.SuccessfulCommands = old.SuccessfulCommands
	return p, nil
}

func migrateV2(data []byte) (Preferences, error) {
	p := Defaults()
	if err := json.Unmarshal(data, &p); err != nil {
		return Preferences{}, fmt.Errorf("decode v2 preferences: %w", err)
	}
	var old recordV2
	if err := json.Unmarshal(data, &old); err != nil {
		return Preferences{}, fmt.Errorf("decode v2 preferences: %w", err)
	}

	if old.Feedback.Speed > 0 {
		p.Feedback.Rate = old.Feedback.Speed
	}
	p.Recognition.WakeWords = mergeWakeWord(p.Recognition.WakeWords, old.Recognition.WakeWord)
	if p.Recognition.MaxAlternatives == 0 {
		p.Recognition.MaxAlternatives = Defaults().Recognition.MaxAlternatives
	}
	p.Version = CurrentVersion
	return p, nil
}

func mergeWakeWord(words []string, w string) []string {
	w = strings.ToLower(strings.TrimSpace(w))
	if w == "" {
		return words
	}
	for _, existing := range words {
		if existing == w {
			return words
		}
	}
	return append([]string{w}, words...)
}

// Encode renders p in the current schema.
func Encode(p Preferences) ([]byte, error) {
	p.Version = CurrentVersion
	return json.MarshalIndent(p, "", "  ")
}

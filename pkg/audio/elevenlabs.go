package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"eatech-voice/internal/voice/feedback"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

const (
	elevenLabsURL   = "https://api.elevenlabs.io/v1/text-to-speech/"
	elevenLabsModel = "eleven_multilingual_v2"
)

// TTSService synthesizes speech with the ElevenLabs API.
type TTSService struct {
	apiKey  string
	baseURL string
	model   string
	voiceID string
	// voices maps a base language ("de", "fr") to a voice id.
	voices map[string]string
	client *http.Client
	log    *logrus.Logger
}

func NewTTSService(apiKey, voiceID string, log *logrus.Logger) *TTSService {
	return &TTSService{
		apiKey:  apiKey,
		baseURL: elevenLabsURL,
		model:   elevenLabsModel,
		voiceID: voiceID,
		voices:  map[string]string{},
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     log,
	}
}

// NewTTSServiceFromEnv reads ELEVENLABS_API_KEY, ELEVENLABS_VOICE_ID and the
// optional per-language ELEVENLABS_VOICE_DE/FR/IT/EN.
func NewTTSServiceFromEnv(log *logrus.Logger) *TTSService {
	tts := NewTTSService(os.Getenv("ELEVENLABS_API_KEY"), os.Getenv("ELEVENLABS_VOICE_ID"), log)
	for _, lang := range []string{"de", "fr", "it", "en"} {
		if v := os.Getenv("ELEVENLABS_VOICE_" + strings.ToUpper(lang)); v != "" {
			tts.voices[lang] = v
		}
	}
	if model := os.Getenv("ELEVENLABS_MODEL"); model != "" {
		tts.model = model
	}
	return tts
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
	Speed           float64 `json:"speed,omitempty"`
}

type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	LanguageCode  string        `json:"language_code,omitempty"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// Synthesize implements feedback.Synthesizer.
func (tts *TTSService) Synthesize(ctx context.Context, req feedback.Request) (feedback.Audio, error) {
	voiceID := tts.voiceFor(req)
	if voiceID == "" {
		return feedback.Audio{}, fmt.Errorf("no ElevenLabs voice configured for %q", req.Language)
	}

	body, err := jsoniter.Marshal(ttsRequest{
		Text:    req.Text,
		ModelID: tts.model,
		VoiceSettings: voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.8,
			UseSpeakerBoost: true,
			Speed:           speed(req.Rate),
		},
	})
	if err != nil {
		return feedback.Audio{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, tts.baseURL+voiceID, bytes.NewReader(body))
	if err != nil {
		return feedback.Audio{}, err
	}
	httpReq.Header.Set("Accept", "audio/mpeg")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", tts.apiKey)

	started := time.Now()
	resp, err := tts.client.Do(httpReq)
	if err != nil {
		return feedback.Audio{}, fmt.Errorf("ElevenLabs request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return feedback.Audio{}, fmt.Errorf("ElevenLabs API error: %s - %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return feedback.Audio{}, fmt.Errorf("read ElevenLabs audio: %w", err)
	}

	if tts.log != nil {
		tts.log.WithFields(logrus.Fields{
			"voice":      voiceID,
			"language":   req.Language,
			"size":       len(data),
			"latency_ms": time.Since(started).Milliseconds(),
		}).Debug("speech synthesized")
	}
	return feedback.Audio{Data: data, MimeType: "audio/mpeg"}, nil
}

func (tts *TTSService) voiceFor(req feedback.Request) string {
	if req.Voice != "" {
		return req.Voice
	}
	base, _, _ := strings.Cut(req.Language, "-")
	if v, ok := tts.voices[strings.ToLower(base)]; ok {
		return v
	}
	return tts.voiceID
}

// speed maps the feedback rate onto the range the API accepts.
func speed(rate float64) float64 {
	if rate <= 0 {
		return 0
	}
	return min(max(rate, 0.7), 1.2)
}

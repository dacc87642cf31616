package voice

import "eatech-voice/pkg/response"

var (
	ErrInvalidAudioFile       = response.NewKindError(400, "invalid-audio", "invalid audio file")
	ErrAudioFileTooLarge      = response.NewKindError(413, "audio-too-large", "audio file too large")
	ErrUnsupportedFormat      = response.NewKindError(415, "unsupported-audio-format", "unsupported audio format")
	ErrTranscriptionFailed    = response.NewKindError(502, "transcription-failed", "failed to transcribe audio")
	ErrSpeechFailed           = response.NewKindError(502, "speech-failed", "failed to synthesize speech")
	ErrEmptyCommand           = response.NewKindError(400, "empty-command", "command text is empty")
	ErrVoiceDisabled          = response.NewKindError(409, "voice-disabled", "voice control is disabled")
	ErrFeedbackDisabled       = response.NewKindError(409, "feedback-disabled", "voice feedback is disabled")
	ErrNotListening           = response.NewKindError(409, "not-listening", "recognizer is not listening")
	ErrRecognizerBusy         = response.NewKindError(409, "recognizer-busy", "recognizer is already running")
	ErrRecognitionUnsupported = response.NewKindError(501, "not-supported", "speech recognition is not available")
	ErrDeviceNotConnected     = response.NewKindError(409, "device-not-connected", "device stream is not connected")
	ErrPreferencesNotFound    = response.NewKindError(404, "preferences-not-found", "voice preferences not found")
	ErrInvalidPreferences     = response.NewKindError(400, "invalid-preferences", "preferences patch is not valid JSON")
	ErrMenuItemNotFound       = response.NewKindError(404, "menu-item-not-found", "menu item not found")
	ErrUnauthorizedDevice     = response.NewKindError(403, "unauthorized-device", "device is not allowed to use voice features")
	ErrRateLimitExceeded      = response.NewKindError(429, "rate-limited", "rate limit exceeded")
)

package voiceService

import (
	"context"
	"errors"
	"mime/multipart"
	"strings"

	"eatech-voice/internal/api/voice"
	"eatech-voice/internal/entity"
	"eatech-voice/internal/voice/assistant"
	"eatech-voice/internal/voice/feedback"
	"eatech-voice/internal/voice/preferences"
	"eatech-voice/internal/voice/recognition"
	"eatech-voice/pkg/log"
	"eatech-voice/pkg/nlp"
	"eatech-voice/pkg/utils"
)

const (
	defaultHistoryLimit    = 20
	defaultSuggestionLimit = 5
)

func (s *voiceService) ProcessCommand(ctx context.Context, device entity.DeviceLoginData, req voice.CommandRequest) (*voice.CommandResponse, error) {
	sess, err := s.session(ctx, device)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, voice.ErrEmptyCommand
	}
	if !sess.prefs.Get().Enabled {
		return nil, voice.ErrVoiceDisabled
	}

	confidence := req.Confidence
	if confidence == 0 {
		// typed input
		confidence = 1
	}
	result := sess.assistant.Process(ctx, assistant.Utterance{
		Text:         text,
		Language:     req.Language,
		Confidence:   confidence,
		Alternatives: req.Alternatives,
	})
	return &voice.CommandResponse{Result: result}, nil
}

// ProcessAudio transcribes an uploaded recording and processes it as an
// utterance.
func (s *voiceService) ProcessAudio(ctx context.Context, device entity.DeviceLoginData, file *multipart.FileHeader, language string) (*voice.CommandResponse, error) {
	if err := s.cfg.Utils.ValidateAudioFile(file); err != nil {
		switch {
		case errors.Is(err, utils.ErrFileTooLarge):
			return nil, voice.ErrAudioFileTooLarge
		case errors.Is(err, utils.ErrUnsupportedType):
			return nil, voice.ErrUnsupportedFormat
		default:
			return nil, voice.ErrInvalidAudioFile
		}
	}
	if s.cfg.Transcriber == nil {
		return nil, voice.ErrRecognitionUnsupported
	}

	sess, err := s.session(ctx, device)
	if err != nil {
		return nil, err
	}
	prefs := sess.prefs.Get()
	if !prefs.Enabled {
		return nil, voice.ErrVoiceDisabled
	}
	if language == "" {
		language = prefs.Language
	}

	src, err := file.Open()
	if err != nil {
		return nil, voice.ErrInvalidAudioFile
	}
	defer src.Close()

	transcript, err := s.cfg.Transcriber.Transcribe(ctx, file.Filename, src, language)
	if err != nil {
		log.WithDevice(ctx, s.log).WithField("error", err.Error()).Error("transcribing uploaded audio failed")
		return nil, voice.ErrTranscriptionFailed
	}
	if strings.TrimSpace(transcript.Text) == "" {
		return nil, voice.ErrEmptyCommand
	}

	var audioURL string
	if prefs.Privacy.StoreAudio && s.cfg.S3 != nil {
		if audioURL, err = s.cfg.S3.UploadFile(file); err != nil {
			log.WithDevice(ctx, s.log).WithField("error", err.Error()).Warn("storing voice recording failed")
			audioURL = ""
		}
	}

	result := sess.assistant.Process(ctx, assistant.Utterance{
		Text:       transcript.Text,
		Language:   language,
		Confidence: transcript.Confidence,
	})
	return &voice.CommandResponse{Result: result, Transcript: transcript.Text, AudioURL: audioURL}, nil
}

// GetHistory pages through the stored command history, falling back to the
// in-memory history when no database is configured.
func (s *voiceService) GetHistory(ctx context.Context, device entity.DeviceLoginData, query voice.HistoryQuery) (*voice.HistoryResponse, error) {
	page, limit := query.Page, query.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultHistoryLimit
	}

	if s.voiceRepo == nil {
		sess, err := s.session(ctx, device)
		if err != nil {
			return nil, err
		}
		all := sess.assistant.History(0)
		items := make([]voice.VoiceCommandHistory, 0, limit)
		for i := (page - 1) * limit; i < len(all) && len(items) < limit; i++ {
			items = append(items, historyItem(toVoiceCommand(device.ID, all[i])))
		}
		return &voice.HistoryResponse{Items: items, Total: len(all), Page: page, Limit: limit}, nil
	}

	client, err := s.voiceRepo.NewClient(false)
	if err != nil {
		return nil, err
	}
	commands, total, err := client.VoiceCommands.GetVoiceCommandsByDeviceID(ctx, device.ID, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	items := make([]voice.VoiceCommandHistory, 0, len(commands))
	for _, c := range commands {
		items = append(items, historyItem(c))
	}
	return &voice.HistoryResponse{Items: items, Total: total, Page: page, Limit: limit}, nil
}

func historyItem(c entity.VoiceCommand) voice.VoiceCommandHistory {
	return voice.VoiceCommandHistory{
		ID:         c.ID,
		Transcript: c.Transcript,
		Normalized: c.Normalized,
		Language:   c.Language,
		Intent:     c.Intent,
		Confidence: c.Confidence,
		Accepted:   c.Accepted,
		Success:    c.Success,
		Response:   c.Response,
		AudioURL:   c.AudioURL,
		Metadata:   c.Metadata,
		DurationMs: c.DurationMs,
		CreatedAt:  c.CreatedAt,
	}
}

func (s *voiceService) ClearHistory(ctx context.Context, device entity.DeviceLoginData) error {
	sess, err := s.session(ctx, device)
	if err != nil {
		return err
	}
	sess.assistant.ClearHistory()

	if s.voiceRepo == nil {
		return nil
	}
	client, err := s.voiceRepo.NewClient(false)
	if err != nil {
		return err
	}
	return client.VoiceCommands.DeleteVoiceCommandsByDeviceID(ctx, device.ID)
}

func (s *voiceService) GetContext(ctx context.Context, device entity.DeviceLoginData) (*voice.ContextResponse, error) {
	sess, err := s.session(ctx, device)
	if err != nil {
		return nil, err
	}
	c, ok := sess.assistant.Context()
	if !ok {
		return &voice.ContextResponse{}, nil
	}
	return &voice.ContextResponse{Active: true, Context: &c}, nil
}

func (s *voiceService) GetSuggestions(ctx context.Context, device entity.DeviceLoginData, query voice.SuggestionsQuery) (*voice.SuggestionsResponse, error) {
	sess, err := s.session(ctx, device)
	if err != nil {
		return nil, err
	}
	limit := query.Limit
	if limit < 1 {
		limit = defaultSuggestionLimit
	}
	lang := query.Language
	if lang == "" {
		lang = sess.prefs.Get().Language
	}
	suggestions := sess.assistant.Suggestions(query.Text, lang, limit)
	if suggestions == nil {
		suggestions = []nlp.Suggestion{}
	}
	return &voice.SuggestionsResponse{Language: lang, Suggestions: suggestions}, nil
}

func (s *voiceService) GetStatus(ctx context.Context, device entity.DeviceLoginData) (*voice.StatusResponse, error) {
	sess, err := s.session(ctx, device)
	if err != nil {
		return nil, err
	}
	out := &voice.StatusResponse{
		Connected: sess.stream.connected(),
		Enabled:   sess.prefs.Get().Enabled,
		Session:   sess.rec.Session(),
	}
	if sess.speaker != nil {
		status := sess.speaker.Status()
		out.Speaking = status.Speaking
		out.Pending = status.Queued
		out.Progress = status.Progress
	}
	return out, nil
}

func (s *voiceService) GetPreferences(ctx context.Context, device entity.DeviceLoginData) (preferences.Preferences, error) {
	sess, err := s.session(ctx, device)
	if err != nil {
		return preferences.Preferences{}, err
	}
	return sess.prefs.Get(), nil
}

// PatchPreferences merges a partial JSON document into the preferences. The
// usage statistics cannot be patched.
func (s *voiceService) PatchPreferences(ctx context.Context, device entity.DeviceLoginData, patch []byte) (preferences.Preferences, error) {
	sess, err := s.session(ctx, device)
	if err != nil {
		return preferences.Preferences{}, err
	}
	if err := sess.prefs.Patch(patch); err != nil {
		var verr *preferences.ValidationError
		if errors.As(err, &verr) {
			return preferences.Preferences{}, verr
		}
		log.WithDevice(ctx, s.log).WithField("error", err.Error()).Warn("rejected voice preferences patch")
		return preferences.Preferences{}, voice.ErrInvalidPreferences
	}
	return sess.prefs.Get(), nil
}

// SavePreferences writes pending changes without waiting for the quiet
// period.
func (s *voiceService) SavePreferences(ctx context.Context, device entity.DeviceLoginData) error {
	sess, err := s.session(ctx, device)
	if err != nil {
		return err
	}
	return sess.prefs.Flush(ctx)
}

func (s *voiceService) ResetPreferences(ctx context.Context, device entity.DeviceLoginData) (preferences.Preferences, error) {
	sess, err := s.session(ctx, device)
	if err != nil {
		return preferences.Preferences{}, err
	}
	if err := sess.prefs.Reset(); err != nil {
		return preferences.Preferences{}, err
	}
	return sess.prefs.Get(), nil
}

func (s *voiceService) Speak(ctx context.Context, device entity.DeviceLoginData, req voice.SpeakRequest) (*voice.SpeakResponse, error) {
	sess, err := s.session(ctx, device)
	if err != nil {
		return nil, err
	}
	if sess.speaker == nil {
		return nil, voice.ErrFeedbackDisabled
	}
	if !sess.stream.connected() {
		return nil, voice.ErrDeviceNotConnected
	}

	id, err := sess.assistant.Speak(ctx, req.Text, feedback.Options{
		Language: req.Language,
		Voice:    req.Voice,
		Rate:     req.Rate,
		Pitch:    req.Pitch,
		Volume:   req.Volume,
		NoCache:  req.NoCache,
	})
	switch {
	case err == nil:
		return &voice.SpeakResponse{ID: id}, nil
	case errors.Is(err, feedback.ErrDisabled):
		return nil, voice.ErrFeedbackDisabled
	case errors.Is(err, feedback.ErrEmpty):
		return nil, voice.ErrEmptyCommand
	case errors.Is(err, feedback.ErrClosed):
		return nil, voice.ErrDeviceNotConnected
	}
	return nil, err
}

func (s *voiceService) StopSpeaking(ctx context.Context, device entity.DeviceLoginData) error {
	sess, err := s.session(ctx, device)
	if err != nil {
		return err
	}
	sess.assistant.StopSpeaking()
	return nil
}

func (s *voiceService) StartListening(ctx context.Context, device entity.DeviceLoginData) (*voice.ListenResponse, error) {
	sess, err := s.session(ctx, device)
	if err != nil {
		return nil, err
	}
	// the session outlives the request
	if err := sess.assistant.StartListening(context.WithoutCancel(ctx)); err != nil {
		return nil, listenError(err)
	}
	return listenResponse(sess), nil
}

func (s *voiceService) StopListening(ctx context.Context, device entity.DeviceLoginData) (*voice.ListenResponse, error) {
	sess, err := s.session(ctx, device)
	if err != nil {
		return nil, err
	}
	if err := sess.assistant.StopListening(); err != nil {
		return nil, listenError(err)
	}
	return listenResponse(sess), nil
}

func listenResponse(sess *deviceSession) *voice.ListenResponse {
	snapshot := sess.rec.Session()
	return &voice.ListenResponse{State: snapshot.State, Session: snapshot}
}

func listenError(err error) error {
	var rerr *recognition.Error
	switch {
	case errors.Is(err, recognition.ErrDisabled):
		return voice.ErrVoiceDisabled
	case errors.Is(err, recognition.ErrBusy):
		return voice.ErrRecognizerBusy
	case errors.Is(err, recognition.ErrNotListening):
		return voice.ErrNotListening
	case errors.Is(err, recognition.ErrUnsupported), errors.Is(err, recognition.ErrClosed):
		return voice.ErrRecognitionUnsupported
	case errors.Is(err, voice.ErrDeviceNotConnected):
		return voice.ErrDeviceNotConnected
	case errors.As(err, &rerr) && rerr.Code == recognition.CodeNoMicrophone:
		return voice.ErrDeviceNotConnected
	}
	return err
}

package voiceService

import (
	"context"
	"errors"

	"eatech-voice/internal/api/voice"
	"eatech-voice/internal/entity"
	"eatech-voice/internal/voice/assistant"
	"eatech-voice/internal/voice/recognition"
	"eatech-voice/pkg/audio"
	"eatech-voice/pkg/response"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

// Serve attaches conn as the device's stream and reads from it until the
// device disconnects or a newer connection replaces it. Text frames carry
// JSON messages, binary frames carry 16 bit little endian PCM at 16 kHz.
func (s *voiceService) Serve(ctx context.Context, device entity.DeviceLoginData, conn StreamConn) error {
	sess, err := s.session(ctx, device)
	if err != nil {
		return err
	}

	l := sess.stream.attach(conn)
	sess.streams.Add(1)
	defer func() {
		sess.stream.detach(l)
		sess.streams.Add(-1)
		sess.touch(s.now())
	}()

	log := s.log.WithField("device_id", device.ID)
	log.Info("device stream connected")

	sess.stream.event(assistant.EventState, recognition.Update{
		Kind:  recognition.UpdateState,
		State: sess.rec.State(),
		At:    s.now(),
	})
	if c, ok := sess.assistant.Context(); ok {
		sess.stream.event(assistant.EventContext, c)
	}

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithField("error", err.Error()).Warn("device stream closed unexpectedly")
			} else {
				log.Info("device stream disconnected")
			}
			return nil
		}
		sess.touch(s.now())

		switch mt {
		case websocket.BinaryMessage:
			pcm, err := audio.DecodePCM(data)
			if err != nil {
				log.WithField("error", err.Error()).Debug("dropping malformed audio frame")
				continue
			}
			sess.feed(pcm)
		case websocket.TextMessage:
			var msg voice.StreamMessage
			if err := jsoniter.Unmarshal(data, &msg); err != nil {
				log.WithField("error", err.Error()).Debug("dropping malformed stream message")
				continue
			}
			s.handleStreamMessage(sess, msg)
		}
	}
}

func (s *voiceService) handleStreamMessage(sess *deviceSession, msg voice.StreamMessage) {
	switch msg.Type {
	case voice.StreamSpeechEnded:
		sess.stream.acknowledge(msg.ID, nil)
	case voice.StreamSpeechError:
		sess.stream.acknowledge(msg.ID, errors.New(msg.Error))
	case voice.StreamMicOpened:
	case voice.StreamMicError:
		sess.rec.Signal(recognition.Signal{
			Kind: recognition.SignalError,
			Code: recognition.ClassifyError(msg.Error),
			Err:  errors.New(msg.Error),
		})
	case voice.StreamRecognizerStarted, voice.StreamRecognizerResult,
		voice.StreamRecognizerError, voice.StreamRecognizerEnd:
		sess.stream.relay(msg)
	case voice.StreamCommand:
		go s.streamCommand(sess, msg)
	case voice.StreamListenStart:
		if err := sess.assistant.StartListening(context.Background()); err != nil {
			s.reportStreamError(sess, listenError(err))
		}
	case voice.StreamListenStop:
		if err := sess.assistant.StopListening(); err != nil {
			s.reportStreamError(sess, listenError(err))
		}
	case voice.StreamSpeakStop:
		sess.assistant.StopSpeaking()
	case voice.StreamPing:
		sess.stream.event(voice.EventPong, nil)
	default:
		s.log.WithFields(logrus.Fields{
			"device_id": sess.device.ID,
			"type":      msg.Type,
		}).Debug("ignoring unknown stream message")
	}
}

// streamCommand processes typed input sent over the stream. The result is
// published as a result event.
func (s *voiceService) streamCommand(sess *deviceSession, msg voice.StreamMessage) {
	_, err := s.ProcessCommand(context.Background(), sess.device, voice.CommandRequest{
		Text:         msg.Text,
		Language:     msg.Language,
		Alternatives: msg.Alternatives,
	})
	if err != nil {
		s.reportStreamError(sess, err)
	}
}

func (s *voiceService) reportStreamError(sess *deviceSession, err error) {
	code := "unknown"
	var rerr *response.Error
	if errors.As(err, &rerr) && rerr.Kind != "" {
		code = rerr.Kind
	}
	sess.stream.event(assistant.EventError, map[string]string{
		"code":    code,
		"message": err.Error(),
	})
}

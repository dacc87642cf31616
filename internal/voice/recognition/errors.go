package recognition

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnsupported  = errors.New("speech recognition is not supported")
	ErrDisabled     = errors.New("voice input is disabled")
	ErrBusy         = errors.New("recognition session already active")
	ErrNotListening = errors.New("no active recognition session")
	ErrClosed       = errors.New("recognition engine closed")
)

type ErrorCode string

const (
	CodePermissionDenied    ErrorCode = "permission-denied"
	CodeNoMicrophone        ErrorCode = "no-microphone"
	CodeAudioCaptureFailure ErrorCode = "audio-capture"
	CodeNetwork             ErrorCode = "network"
	CodeTimeout             ErrorCode = "timeout"
	CodeAborted             ErrorCode = "aborted"
	CodeUnknown             ErrorCode = "unknown"
)

// Error is a recognition failure classified into the engine's taxonomy.
type Error struct {
	Code ErrorCode
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "recognition: " + string(e.Code)
	}
	return fmt.Sprintf("recognition: %s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether a continuous session restarts by itself after e.
func (e *Error) Retryable() bool { return e.Code == CodeTimeout }

// ClassifyError maps a raw platform error name onto an ErrorCode.
func ClassifyError(raw string) ErrorCode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "not-allowed", "service-not-allowed", "permission-denied", "notallowederror", "securityerror":
		return CodePermissionDenied
	case "no-microphone", "device-not-found", "notfounderror", "overconstrainederror":
		return CodeNoMicrophone
	case "audio-capture", "notreadableerror", "aborterror-capture":
		return CodeAudioCaptureFailure
	case "network", "network-error", "connection-lost":
		return CodeNetwork
	case "no-speech", "timeout", "speech-timeout":
		return CodeTimeout
	case "aborted", "abort":
		return CodeAborted
	}
	return CodeUnknown
}

func newError(code ErrorCode, err error) *Error {
	return &Error{Code: code, Err: err}
}

// asError classifies err, keeping an existing *Error as is.
func asError(err error, fallback ErrorCode) *Error {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr
	}
	return newError(fallback, err)
}

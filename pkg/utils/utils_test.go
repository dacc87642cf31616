package utils

import (
	"mime/multipart"
	"net/textproto"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"
)

func TestNewULIDFromTimestamp(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	id, err := New().NewULIDFromTimestamp(at)
	require.NoError(t, err)

	parsed, err := ulid.Parse(id)
	require.NoError(t, err)
	require.Equal(t, ulid.Timestamp(at), parsed.Time())
}

func TestValidateAudioFile(t *testing.T) {
	header := func(name, contentType string, size int64) *multipart.FileHeader {
		h := textproto.MIMEHeader{}
		if contentType != "" {
			h.Set("Content-Type", contentType)
		}
		return &multipart.FileHeader{Filename: name, Header: h, Size: size}
	}

	tests := []struct {
		name string
		file *multipart.FileHeader
		err  error
	}{
		{"missing", nil, ErrNoFile},
		{"by content type", header("clip", "audio/webm", 1024), nil},
		{"by extension", header("bestellung.m4a", "application/octet-stream", 1024), nil},
		{"too large", header("clip.wav", "audio/wav", 26*1024*1024), ErrFileTooLarge},
		{"image", header("menu.png", "image/png", 1024), ErrUnsupportedType},
	}
	u := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := u.ValidateAudioFile(tt.file)
			if tt.err == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.err)
		})
	}
}

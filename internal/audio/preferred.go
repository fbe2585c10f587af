package audio

import (
	"strings"

	"kisanvoice/internal/capture"
)

// MimeOggOpus is the container reported for Ogg/Opus uploads.
const MimeOggOpus = "audio/ogg;codecs=opus"

// Preferred picks the upload encoder for container ("auto", a mime type, or
// a short name). "auto" takes the most compact encoder compiled in.
func Preferred(container string) capture.Encoder {
	c := strings.ToLower(strings.TrimSpace(container))
	wantOpus := c == "" || c == "auto" || strings.Contains(c, "opus") || strings.Contains(c, "ogg")
	if wantOpus && OpusAvailable {
		if enc, err := NewOpusEncoder(); err == nil {
			return enc
		}
	}
	return WAVEncoder{}
}

//go:build !whisper

package asr

import (
	"kisanvoice/internal/capture"

	"github.com/sirupsen/logrus"
)

// Compiled reports whether whisper support is linked in.
const Compiled = false

// Recognizer is unavailable without the whisper build tag.
type Recognizer struct{}

// New reports that on-device recognition is not compiled in.
func New(Options, *logrus.Logger) (*Recognizer, error) { return nil, ErrUnavailable }

func (r *Recognizer) Available() bool { return false }

func (r *Recognizer) Close() error { return nil }

func (r *Recognizer) Transcribe([]float32, string) (string, error) { return "", ErrUnavailable }

func (r *Recognizer) Recognize(capture.RecognizeOptions, func(capture.RecognitionEvent)) (capture.RecognitionSession, error) {
	return nil, ErrUnavailable
}

//go:build !portaudio && !whisper

package audio

import (
	"fmt"

	"kisanvoice/internal/capture"
)

// InputAvailable reports whether PortAudio capture is compiled in.
const InputAvailable = false

var errNoPortAudio = fmt.Errorf("build with '-tags portaudio' to enable capture: %w", capture.ErrMicUnavailable)

// Input is unavailable without PortAudio.
type Input struct {
	Device string
}

func OpenInput(string, int, int, int) (*Input, error) { return nil, errNoPortAudio }

func (*Input) Read() ([]int16, error) { return nil, errNoPortAudio }

func (*Input) Close() error { return nil }

func ListInputs() ([]Device, error) { return nil, errNoPortAudio }

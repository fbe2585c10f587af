// Package capture turns spoken input into a transcript using whichever
// recognition backend the host exposes: an on-device continuous recognizer
// when available, otherwise microphone recording plus remote transcription.
package capture

import (
	"context"
	"errors"
	"time"
)

// DefaultTimeout is the hard ceiling on one capture session.
const DefaultTimeout = 12 * time.Second

// Backend identifies which capture path a session uses.
type Backend string

const (
	BackendNone     Backend = ""
	BackendOnDevice Backend = "on-device"
	BackendRemote   Backend = "remote-fallback"
)

// Phase is the sub-state of a listening session.
type Phase string

const (
	PhaseIdle         Phase = ""
	PhaseStarting     Phase = "starting"
	PhaseRecognizing  Phase = "recognizing"
	PhaseRecording    Phase = "recording"
	PhaseTranscribing Phase = "transcribing"
)

// State is the observable capture state.
type State struct {
	Listening bool    `json:"listening"`
	Backend   Backend `json:"backend,omitempty"`
	Phase     Phase   `json:"phase,omitempty"`
	SessionID string  `json:"session_id,omitempty"`
	Language  string  `json:"language,omitempty"`
	Error     string  `json:"error,omitempty"`
	ErrorKind Kind    `json:"error_kind,omitempty"`
}

// ErrorCode is an engine-reported recognition error.
type ErrorCode string

const (
	CodeNoSpeech          ErrorCode = "no-speech"
	CodeAborted           ErrorCode = "aborted"
	CodeAudioCapture      ErrorCode = "audio-capture"
	CodeNetwork           ErrorCode = "network"
	CodeNotAllowed        ErrorCode = "not-allowed"
	CodeServiceNotAllowed ErrorCode = "service-not-allowed"
)

// EventKind tags a RecognitionEvent.
type EventKind int

const (
	EventResult EventKind = iota
	EventError
	EventEnd
)

// Segment is one recognition result; interim segments have Final false.
type Segment struct {
	Text  string
	Final bool
}

// RecognitionEvent is delivered by an on-device recognizer. Result events
// carry every result of the session so far.
type RecognitionEvent struct {
	Kind    EventKind
	Results []Segment
	Code    ErrorCode
	Err     error
}

// RecognizeOptions configures an on-device recognition session.
type RecognizeOptions struct {
	Language        string
	Continuous      bool
	InterimResults  bool
	MaxAlternatives int
}

// RecognitionSession is a running on-device recognition.
type RecognitionSession interface {
	// Stop ends capture gracefully; the engine emits pending results then EventEnd.
	Stop()
	// Abort ends capture immediately; the engine emits CodeAborted then EventEnd.
	Abort()
}

// OnDeviceRecognizer is a continuous speech recognizer running in-process.
type OnDeviceRecognizer interface {
	Available() bool
	// Recognize starts a session. It must not block on audio; events arrive
	// through emit on any goroutine.
	Recognize(opts RecognizeOptions, emit func(RecognitionEvent)) (RecognitionSession, error)
}

// MicOptions requests a capture format.
type MicOptions struct {
	SampleRate int
	Channels   int
}

// Recording is an open microphone capturing into memory. Stop and Close
// must be safe to call more than once.
type Recording interface {
	// Stop ends capture and returns everything recorded.
	Stop() []int16
	// Close releases the input device.
	Close() error
}

// Microphone opens the input device. Open may block on a permission prompt.
type Microphone interface {
	Open(opts MicOptions) (Recording, error)
}

// Encoder packs PCM into a container for upload.
type Encoder interface {
	MimeType() string
	Encode(pcm []int16, sampleRate, channels int) ([]byte, error)
}

// Audio is an encoded clip submitted for remote transcription.
type Audio struct {
	Data     []byte
	Format   string
	Language string
}

// Transcriber converts uploaded audio to text. ErrNoTranscript, or an empty
// transcript, means the service heard nothing intelligible.
type Transcriber interface {
	Transcribe(ctx context.Context, audio Audio) (string, error)
}

// Engine errors.
var (
	ErrPermissionDenied = errors.New("capture: microphone permission denied")
	ErrMicUnavailable   = errors.New("capture: microphone not available")
	ErrNoTranscript     = errors.New("capture: no transcript in response")
)

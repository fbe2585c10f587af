package capture

import "errors"

// Kind classifies a user-facing capture failure.
type Kind int

const (
	KindNone Kind = iota
	KindPermission
	KindUnavailable
	KindNoSpeech
	KindNoAudio
	KindNotUnderstood
	KindConnection
	KindNetwork
	KindEngine
)

var kindMessages = map[Kind]string{
	KindPermission:    "Microphone permission denied.",
	KindUnavailable:   "Microphone not available.",
	KindNoSpeech:      "No speech detected. Try again.",
	KindNoAudio:       "No audio captured. Try again.",
	KindNotUnderstood: "Could not understand. Try again.",
	KindConnection:    "Connection error. Please type instead.",
	KindNetwork:       "Network error. Check your connection.",
	KindEngine:        "Voice input error. Try again.",
}

// Message returns the short string shown to the user.
func (k Kind) Message() string {
	return kindMessages[k]
}

func (k Kind) String() string {
	switch k {
	case KindPermission:
		return "permission"
	case KindUnavailable:
		return "unavailable"
	case KindNoSpeech:
		return "no-speech"
	case KindNoAudio:
		return "no-audio"
	case KindNotUnderstood:
		return "not-understood"
	case KindConnection:
		return "connection"
	case KindNetwork:
		return "network"
	case KindEngine:
		return "engine"
	}
	return "none"
}

// kindForCode maps an engine error code. Aborted maps to KindNone: it is the
// manager's own cancellation, not a failure.
func kindForCode(code ErrorCode) Kind {
	switch code {
	case CodeAborted:
		return KindNone
	case CodeNoSpeech:
		return KindNoSpeech
	case CodeNotAllowed, CodeServiceNotAllowed:
		return KindPermission
	case CodeAudioCapture:
		return KindUnavailable
	case CodeNetwork:
		return KindNetwork
	}
	return KindEngine
}

// kindForMicError maps a Microphone.Open or Recognize start failure.
func kindForMicError(err error) Kind {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return KindPermission
	case errors.Is(err, ErrMicUnavailable):
		return KindUnavailable
	}
	return KindEngine
}

// KindForTranscribeError maps a Transcriber failure: an empty transcript is
// "not understood", anything else a connection problem.
func KindForTranscribeError(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrNoTranscript):
		return KindNotUnderstood
	}
	return KindConnection
}

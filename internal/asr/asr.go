// Package asr is the on-device recognizer: microphone frames are gated by
// WebRTC VAD and transcribed with whisper.cpp. Builds without the whisper
// tag report the recognizer unavailable so capture falls back to remote
// transcription.
package asr

import (
	"errors"
	"time"

	"kisanvoice/internal/config"
)

// ErrUnavailable is returned when whisper support is not compiled in.
var ErrUnavailable = errors.New("asr: build with '-tags whisper' to enable on-device recognition")

// Options configures capture and segmentation.
type Options struct {
	ModelPath  string
	DeviceName string
	SampleRate int
	Channels   int
	FrameMS    int

	Aggressiveness int
	Silence        time.Duration
	MinSpeech      time.Duration
	MaxSegment     time.Duration
	PartialFlush   time.Duration
}

// OptionsFromConfig maps the [audio], [vad] and [asr] sections.
func OptionsFromConfig(cfg *config.Config) Options {
	ms := func(v int) time.Duration { return time.Duration(v) * time.Millisecond }
	return Options{
		ModelPath:      cfg.ASR.ModelPath,
		DeviceName:     cfg.Audio.DeviceName,
		SampleRate:     cfg.Audio.SampleRate,
		Channels:       cfg.Audio.Channels,
		FrameMS:        cfg.Audio.FrameMS,
		Aggressiveness: cfg.VAD.Aggressiveness,
		Silence:        ms(cfg.VAD.SilenceMS),
		MinSpeech:      ms(cfg.VAD.MinSpeechMS),
		MaxSegment:     ms(cfg.VAD.MaxSegmentMS),
		PartialFlush:   ms(cfg.VAD.PartialFlushMS),
	}
}

// Cut is a span of speech ready for transcription. Partial cuts are
// re-transcribed as the utterance grows; a final cut closes it.
type Cut struct {
	PCM   []int16
	Final bool
}

// Segmenter turns a stream of VAD-labelled frames into cuts. Time is
// measured in frames, not wall clock.
type Segmenter struct {
	frame        time.Duration
	silence      time.Duration
	minSpeech    time.Duration
	maxSegment   time.Duration
	partialFlush time.Duration

	inSpeech     bool
	chunk        []int16
	speech       time.Duration
	sinceVoice   time.Duration
	sincePartial time.Duration
}

// NewSegmenter returns a segmenter for frames of the given duration.
func NewSegmenter(frame time.Duration, o Options) *Segmenter {
	return &Segmenter{
		frame:        frame,
		silence:      o.Silence,
		minSpeech:    o.MinSpeech,
		maxSegment:   o.MaxSegment,
		partialFlush: o.PartialFlush,
	}
}

// InSpeech reports whether an utterance is open.
func (s *Segmenter) InSpeech() bool { return s.inSpeech }

// Push feeds one frame. It returns a cut when one is due.
func (s *Segmenter) Push(frame []int16, voice bool) (Cut, bool) {
	if voice {
		if !s.inSpeech {
			s.inSpeech = true
			s.chunk = s.chunk[:0]
			s.speech = 0
			s.sincePartial = 0
		}
		s.chunk = append(s.chunk, frame...)
		s.speech += s.frame
		s.sinceVoice = 0
	} else if s.inSpeech {
		s.sinceVoice += s.frame
	}
	if !s.inSpeech {
		return Cut{}, false
	}
	s.sincePartial += s.frame

	if (!voice && s.sinceVoice >= s.silence) || (s.maxSegment > 0 && s.speech >= s.maxSegment) {
		return s.Flush()
	}
	if voice && s.partialFlush > 0 && s.sincePartial >= s.partialFlush && s.speech >= s.minSpeech {
		s.sincePartial = 0
		return Cut{PCM: append([]int16(nil), s.chunk...)}, true
	}
	return Cut{}, false
}

// Flush closes any open utterance. Utterances shorter than the minimum
// speech length are dropped.
func (s *Segmenter) Flush() (Cut, bool) {
	if !s.inSpeech {
		return Cut{}, false
	}
	s.inSpeech = false
	if s.speech < s.minSpeech || len(s.chunk) == 0 {
		return Cut{}, false
	}
	return Cut{PCM: append([]int16(nil), s.chunk...), Final: true}, true
}

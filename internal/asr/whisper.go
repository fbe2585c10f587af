//go:build whisper

package asr

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"kisanvoice/internal/audio"
	"kisanvoice/internal/capture"
	"kisanvoice/internal/langdetect"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	vad "github.com/maxhawkins/go-webrtcvad"
	"github.com/sirupsen/logrus"
)

// Compiled reports whether whisper support is linked in.
const Compiled = true

// Recognizer runs continuous on-device recognition with whisper.cpp.
type Recognizer struct {
	opts   Options
	logger *logrus.Logger
	model  whisper.Model
}

// New loads the whisper model and validates the capture format.
func New(opts Options, logger *logrus.Logger) (*Recognizer, error) {
	if opts.Channels != 1 {
		return nil, fmt.Errorf("only mono input supported; set audio.channels = 1")
	}
	if opts.FrameMS != 10 && opts.FrameMS != 20 && opts.FrameMS != 30 {
		return nil, fmt.Errorf("audio.frame_ms must be 10, 20, or 30 (got %d)", opts.FrameMS)
	}
	switch opts.SampleRate {
	case 8000, 16000, 32000, 48000:
	default:
		return nil, fmt.Errorf("sample_rate must be 8k/16k/32k/48k for webrtc VAD (got %d)", opts.SampleRate)
	}
	if !vad.ValidRateAndFrameLength(opts.SampleRate, opts.SampleRate*opts.FrameMS/1000) {
		return nil, fmt.Errorf("invalid frame_ms %d for sample_rate %d", opts.FrameMS, opts.SampleRate)
	}
	model, err := whisper.New(opts.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	return &Recognizer{opts: opts, logger: logger, model: model}, nil
}

// Available implements capture.OnDeviceRecognizer.
func (r *Recognizer) Available() bool { return r != nil && r.model != nil }

// Close frees the model.
func (r *Recognizer) Close() error {
	if r == nil || r.model == nil {
		return nil
	}
	return r.model.Close()
}

// Transcribe runs whisper once over 16 kHz mono samples.
func (r *Recognizer) Transcribe(samples []float32, lang string) (string, error) {
	wctx, err := r.model.NewContext()
	if err != nil {
		return "", err
	}
	wctx.SetThreads(uint(runtime.NumCPU()))
	if base := langdetect.Base(lang); base != "" && r.model.IsMultilingual() {
		if err := wctx.SetLanguage(base); err != nil {
			r.logger.Warnf("set language %s: %v", base, err)
		}
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", err
	}
	var b strings.Builder
	for {
		seg, err := wctx.NextSegment()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", err
		}
		b.WriteString(seg.Text)
		if !strings.HasSuffix(seg.Text, " ") {
			b.WriteRune(' ')
		}
	}
	return strings.TrimSpace(b.String()), nil
}

// Recognize implements capture.OnDeviceRecognizer. The microphone opens
// before it returns; frames are read and transcribed on background
// goroutines.
func (r *Recognizer) Recognize(opts capture.RecognizeOptions, emit func(capture.RecognitionEvent)) (capture.RecognitionSession, error) {
	v, err := vad.New()
	if err != nil {
		return nil, fmt.Errorf("vad: %w", err)
	}
	if err := v.SetMode(r.opts.Aggressiveness); err != nil {
		return nil, fmt.Errorf("vad mode: %w", err)
	}
	frameSamples := r.opts.SampleRate * r.opts.FrameMS / 1000
	in, err := audio.OpenInput(r.opts.DeviceName, r.opts.SampleRate, 1, frameSamples)
	if err != nil {
		return nil, err
	}
	r.logger.Infof("listening on mic: %s @ %d Hz (%s)", in.Device, r.opts.SampleRate, opts.Language)

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		r:       r,
		lang:    opts.Language,
		interim: opts.InterimResults,
		emit:    emit,
		in:      in,
		vad:     v,
		seg:     NewSegmenter(time.Duration(r.opts.FrameMS)*time.Millisecond, r.opts),
		ctx:     ctx,
		cancel:  cancel,
		stopCh:  make(chan struct{}),
		cuts:    make(chan Cut, 8),
	}
	go s.captureLoop()
	go s.transcribeLoop()
	return s, nil
}

type session struct {
	r       *Recognizer
	lang    string
	interim bool
	emit    func(capture.RecognitionEvent)

	in  *audio.Input
	vad *vad.VAD
	seg *Segmenter

	ctx      context.Context
	cancel   context.CancelFunc
	stopCh   chan struct{}
	stopOnce sync.Once
	cuts     chan Cut

	endOnce sync.Once
	ended   atomic.Bool
}

// Stop finishes the open utterance, transcribes it, then ends.
func (s *session) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Abort drops pending audio and ends immediately.
func (s *session) Abort() {
	s.cancel()
	s.Stop()
	s.send(capture.RecognitionEvent{Kind: capture.EventError, Code: capture.CodeAborted})
	s.end()
}

func (s *session) send(ev capture.RecognitionEvent) {
	if s.ended.Load() {
		return
	}
	s.emit(ev)
}

func (s *session) end() {
	s.endOnce.Do(func() {
		s.emit(capture.RecognitionEvent{Kind: capture.EventEnd})
		s.ended.Store(true)
	})
}

func (s *session) captureLoop() {
	defer close(s.cuts)
	defer func() {
		if err := s.in.Close(); err != nil {
			s.r.logger.Debugf("close input: %v", err)
		}
	}()
	rate := s.r.opts.SampleRate
	pcm := make([]byte, 0, rate/50*2)
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.stopCh:
			if cut, ok := s.seg.Flush(); ok {
				s.deliver(cut)
			}
			return
		default:
		}
		frame, err := s.in.Read()
		if err != nil {
			s.r.logger.Warnf("capture: %v", err)
			s.send(capture.RecognitionEvent{Kind: capture.EventError, Code: capture.CodeAudioCapture, Err: err})
			s.cancel()
			s.end()
			return
		}
		pcm = pcm[:0]
		for _, v := range frame {
			pcm = binary.LittleEndian.AppendUint16(pcm, uint16(v))
		}
		voice, err := s.vad.Process(rate, pcm)
		if err != nil {
			s.r.logger.Debugf("vad: %v", err)
			voice = false
		}
		if cut, ok := s.seg.Push(frame, voice); ok {
			s.deliver(cut)
		}
	}
}

// deliver queues a cut. Partials are dropped while whisper is busy; finals
// wait for room.
func (s *session) deliver(cut Cut) {
	if !cut.Final {
		if !s.interim {
			return
		}
		select {
		case s.cuts <- cut:
		default:
		}
		return
	}
	select {
	case s.cuts <- cut:
	case <-s.ctx.Done():
	}
}

func (s *session) transcribeLoop() {
	var finals []capture.Segment
	for cut := range s.cuts {
		if s.ctx.Err() != nil {
			continue
		}
		text, err := s.r.Transcribe(audio.Float32(cut.PCM), s.lang)
		if err != nil {
			s.r.logger.Errorf("transcribe: %v", err)
			s.send(capture.RecognitionEvent{Kind: capture.EventError, Code: "engine", Err: err})
			s.cancel()
			s.end()
			continue
		}
		if text == "" {
			continue
		}
		results := append(append([]capture.Segment(nil), finals...), capture.Segment{Text: text, Final: cut.Final})
		if cut.Final {
			finals = append(finals, capture.Segment{Text: text, Final: true})
		}
		s.send(capture.RecognitionEvent{Kind: capture.EventResult, Results: results})
	}
	if s.ctx.Err() != nil {
		return
	}
	if len(finals) == 0 {
		s.send(capture.RecognitionEvent{Kind: capture.EventError, Code: capture.CodeNoSpeech})
	}
	s.end()
}

package capture

import (
	"context"
	"errors"
	"strings"
	"time"
)

// runRemote records until stopped, then uploads the clip for transcription.
func (m *Manager) runRemote(s *session) {
	id := s.id
	if m.opts.Microphone == nil || m.opts.Encoder == nil || m.opts.Transcriber == nil {
		m.finish(id, KindUnavailable, "")
		return
	}

	rec, err := m.opts.Microphone.Open(MicOptions{SampleRate: m.opts.SampleRate, Channels: m.opts.Channels})
	if err != nil {
		m.log.WithField("session", id).Warnf("capture: open microphone: %v", err)
		m.finish(id, kindForMicError(err), "")
		return
	}

	m.mu.Lock()
	if m.cur != s {
		m.mu.Unlock()
		rec.Stop()
		_ = rec.Close()
		return
	}
	s.recording = rec
	s.phase = PhaseRecording
	m.mu.Unlock()
	m.notify()

	select {
	case <-s.stopCh:
	case <-s.ctx.Done():
		return
	}

	m.mu.Lock()
	if m.cur != s {
		m.mu.Unlock()
		return
	}
	s.timer.Stop()
	s.timer = time.AfterFunc(m.uploadCeiling(), func() { m.uploadTimeout(id) })
	m.mu.Unlock()

	// The device is released before the upload starts.
	pcm := s.releaseMic()
	if len(pcm) == 0 {
		m.finish(id, KindNoAudio, "")
		return
	}
	data, err := m.opts.Encoder.Encode(pcm, m.opts.SampleRate, m.opts.Channels)
	if err != nil {
		m.log.WithField("session", id).Warnf("capture: encode: %v", err)
		m.finish(id, KindEngine, "")
		return
	}

	m.setPhase(id, PhaseTranscribing)
	ctx := s.ctx
	if m.opts.TranscribeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.TranscribeTimeout)
		defer cancel()
	}
	text, err := m.opts.Transcriber.Transcribe(ctx, Audio{
		Data:     data,
		Format:   m.opts.Encoder.MimeType(),
		Language: s.lang,
	})
	if s.ctx.Err() != nil {
		return
	}
	text = strings.TrimSpace(text)
	switch {
	case err != nil:
		if !errors.Is(err, context.Canceled) {
			m.log.WithField("session", id).Warnf("capture: transcribe: %v", err)
		}
		m.finish(id, KindForTranscribeError(err), "")
	case text == "":
		m.finish(id, KindNotUnderstood, "")
	default:
		m.finish(id, KindNone, text)
	}
}

// Package playback reads assistant messages aloud: a pre-rendered clip when
// the message carries one, otherwise local synthesis of the message text in
// bounded chunks, one chunk at a time.
package playback

import (
	"errors"
	"hash/fnv"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"kisanvoice/internal/engine"
	"kisanvoice/internal/langdetect"
	"kisanvoice/internal/synth"
	"kisanvoice/internal/textprep"

	"github.com/sirupsen/logrus"
)

// Message is an assistant reply.
type Message struct {
	ID               string    `json:"id,omitempty"`
	Content          string    `json:"content"`
	AudioURL         string    `json:"audio_url,omitempty"`
	Timestamp        time.Time `json:"timestamp,omitempty"`
	DetectedLanguage string    `json:"detected_language,omitempty"`
}

// Key identifies the message across toggles.
func (m Message) Key() string {
	if m.ID != "" {
		return m.ID
	}
	if !m.Timestamp.IsZero() {
		return strconv.FormatInt(m.Timestamp.UnixMilli(), 10)
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(m.Content))
	return "msg-" + strconv.FormatUint(h.Sum64(), 16)
}

// Synthesizer is the shared on-device TTS engine.
type Synthesizer interface {
	Speak(u synth.Utterance, done func(error))
	Cancel()
}

// ClipPlayer plays pre-rendered audio.
type ClipPlayer interface {
	Play(src string, done func(error))
	Pause()
}

// Options wires a Manager.
type Options struct {
	Synth  Synthesizer
	Clips  ClipPlayer
	Broker *engine.Broker

	ChunkChars int
	// Voices maps lower-case language tags (full or base) to engine voices.
	Voices map[string]string
	Rate   int
	Detect func(text string) string

	OnState func(speaking bool)
	Logger  *logrus.Logger
}

type mode int

const (
	modeSynth mode = iota
	modeClip
)

// Manager is the playback state of one message.
type Manager struct {
	opts Options
	log  *logrus.Logger

	mu       sync.Mutex
	speaking bool
	gen      uint64
	mode     mode
	lease    *engine.Lease
	chunks   []string
	next     int
	lang     string
	voice    string
}

// New returns an idle manager.
func New(opts Options) *Manager {
	if opts.ChunkChars <= 0 {
		opts.ChunkChars = textprep.DefaultChunkChars
	}
	if opts.Detect == nil {
		opts.Detect = langdetect.Detect
	}
	log := opts.Logger
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &Manager{opts: opts, log: log}
}

// Speaking reports whether the message is being read out.
func (m *Manager) Speaking() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speaking
}

// ToggleSpeak starts reading msg, or stops if already speaking.
func (m *Manager) ToggleSpeak(msg Message) {
	m.mu.Lock()
	if m.speaking {
		stop := m.stopLocked()
		m.mu.Unlock()
		stop()
		m.log.WithField("message", msg.Key()).Info("playback: speaking -> idle (toggled)")
		m.notify(false)
		return
	}

	m.gen++
	gen := m.gen
	if msg.AudioURL != "" {
		m.mode = modeClip
		m.chunks = nil
	} else {
		m.mode = modeSynth
		m.chunks = textprep.Prepare(msg.Content, m.opts.ChunkChars)
		m.next = 0
		if len(m.chunks) == 0 {
			m.mu.Unlock()
			return
		}
		m.lang = m.language(msg)
		m.voice = m.voiceFor(m.lang)
	}
	m.speaking = true
	md, lang, n := m.mode, m.lang, len(m.chunks)
	m.mu.Unlock()

	if m.opts.Broker != nil {
		lease := m.opts.Broker.Acquire("playback:"+msg.Key(), func() { m.revoke(gen) })
		m.mu.Lock()
		if m.gen != gen {
			m.mu.Unlock()
			lease.Release()
			return
		}
		m.lease = lease
		m.mu.Unlock()
	}

	fields := logrus.Fields{"message": msg.Key()}
	if md == modeClip {
		m.log.WithFields(fields).Info("playback: idle -> speaking (clip)")
		m.notify(true)
		m.opts.Clips.Play(msg.AudioURL, func(err error) { m.finish(gen, err) })
		return
	}
	m.log.WithFields(fields).WithFields(logrus.Fields{"lang": lang, "chunks": n}).Info("playback: idle -> speaking")
	m.notify(true)
	m.speakNext(gen)
}

// Close stops any playback; used when the message goes away.
func (m *Manager) Close() {
	m.mu.Lock()
	if !m.speaking {
		m.mu.Unlock()
		return
	}
	stop := m.stopLocked()
	m.mu.Unlock()
	stop()
	m.notify(false)
}

func (m *Manager) speakNext(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || !m.speaking {
		m.mu.Unlock()
		return
	}
	if m.next >= len(m.chunks) {
		m.mu.Unlock()
		m.finish(gen, nil)
		return
	}
	u := synth.Utterance{Text: m.chunks[m.next], Lang: m.lang, Voice: m.voice, Rate: m.opts.Rate}
	m.next++
	m.mu.Unlock()

	m.opts.Synth.Speak(u, func(err error) {
		if err != nil {
			m.finish(gen, err)
			return
		}
		m.speakNext(gen)
	})
}

// finish ends session gen, naturally or on error.
func (m *Manager) finish(gen uint64, err error) {
	m.mu.Lock()
	if gen != m.gen || !m.speaking {
		m.mu.Unlock()
		return
	}
	m.speaking = false
	m.lease.Release()
	m.lease = nil
	m.mu.Unlock()

	if err != nil && !errors.Is(err, synth.ErrCanceled) {
		m.log.Warnf("playback: speaking -> idle: %v", err)
	} else {
		m.log.Debug("playback: speaking -> idle")
	}
	m.notify(false)
}

// revoke runs when another message takes the speaker.
func (m *Manager) revoke(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || !m.speaking {
		m.mu.Unlock()
		return
	}
	stop := m.stopLocked()
	m.mu.Unlock()
	stop()
	m.log.Info("playback: speaking -> idle (preempted)")
	m.notify(false)
}

// stopLocked invalidates the current session and returns the engine
// cancellation to run unlocked.
func (m *Manager) stopLocked() func() {
	m.gen++
	m.speaking = false
	lease := m.lease
	m.lease = nil
	md := m.mode
	return func() {
		if md == modeClip {
			m.opts.Clips.Pause()
		} else {
			m.opts.Synth.Cancel()
		}
		lease.Release()
	}
}

func (m *Manager) notify(speaking bool) {
	if m.opts.OnState != nil {
		m.opts.OnState(speaking)
	}
}

func (m *Manager) language(msg Message) string {
	if tag := strings.TrimSpace(msg.DetectedLanguage); tag != "" {
		return langdetect.Regional(tag)
	}
	return m.opts.Detect(msg.Content)
}

func (m *Manager) voiceFor(lang string) string {
	if v, ok := m.opts.Voices[strings.ToLower(lang)]; ok {
		return v
	}
	return m.opts.Voices[strings.ToLower(langdetect.Base(lang))]
}

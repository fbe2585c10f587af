package capture

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"kisanvoice/internal/engine"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Options wires a Manager to its engines and host callbacks.
type Options struct {
	// OnDevice is preferred when non-nil and Available.
	OnDevice OnDeviceRecognizer

	Microphone  Microphone
	Encoder     Encoder
	Transcriber Transcriber

	// Microphone is process-wide; holding its lease revokes other users.
	Broker *engine.Broker

	Timeout           time.Duration
	TranscribeTimeout time.Duration
	SampleRate        int
	Channels          int

	OnTranscript func(text string)
	OnState      func(State)

	Logger *logrus.Logger
}

// Manager owns at most one capture session at a time.
type Manager struct {
	opts Options
	log  *logrus.Logger

	mu      sync.Mutex
	cur     *session
	last    State
	errKind Kind
	closed  bool
}

type session struct {
	id      string
	backend Backend
	lang    string
	phase   Phase
	started time.Time

	timer *time.Timer
	lease *engine.Lease

	// on-device
	rec           RecognitionSession
	stopRequested bool

	// remote
	stopped   bool
	recording Recording
	ctx       context.Context
	cancel    context.CancelFunc
	stopCh    chan struct{}
	stopOnce  sync.Once
	micOnce   sync.Once
	pcm       []int16
}

// NewManager returns an idle manager.
func NewManager(opts Options) *Manager {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = 16000
	}
	if opts.Channels <= 0 {
		opts.Channels = 1
	}
	log := opts.Logger
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &Manager{opts: opts, log: log}
}

// State returns a snapshot of the capture state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

func (m *Manager) stateLocked() State {
	st := State{ErrorKind: m.errKind, Error: m.errKind.Message()}
	if s := m.cur; s != nil {
		st.Listening = true
		st.Backend = s.backend
		st.Phase = s.phase
		st.SessionID = s.id
		st.Language = s.lang
	}
	return st
}

// Listening reports whether a session is active.
func (m *Manager) Listening() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cur != nil
}

// Start begins a new session in lang, tearing down any running one first.
// It returns immediately; progress is reported through OnState and the
// transcript through OnTranscript.
func (m *Manager) Start(lang string) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	cleanup := m.teardownLocked(m.cur)
	s := &session{
		id:      uuid.NewString(),
		lang:    lang,
		phase:   PhaseStarting,
		started: time.Now(),
		stopCh:  make(chan struct{}),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	if m.opts.OnDevice != nil && m.opts.OnDevice.Available() {
		s.backend = BackendOnDevice
	} else {
		s.backend = BackendRemote
	}
	id := s.id
	s.timer = time.AfterFunc(m.opts.Timeout, func() { m.autoStop(id) })
	m.cur = s
	m.errKind = KindNone
	m.mu.Unlock()
	cleanup()

	m.log.WithFields(logrus.Fields{"session": id, "backend": s.backend, "lang": lang}).Info("capture: idle -> listening")
	m.acquireMic(s)
	m.notify()

	if s.backend == BackendOnDevice {
		m.startOnDevice(s)
		return
	}
	go m.runRemote(s)
}

// Stop asks the active session to finish. On-device sessions deliver any
// pending result; remote sessions stop recording and go on to transcribe.
// Stopping a remote session that is already past recording ends it and
// cancels the upload. It is a no-op when idle.
func (m *Manager) Stop() {
	m.mu.Lock()
	s := m.cur
	if s == nil {
		m.mu.Unlock()
		return
	}
	if s.backend == BackendRemote {
		if s.stopped {
			m.mu.Unlock()
			m.log.WithField("session", s.id).Info("capture: stopped during upload")
			m.finish(s.id, KindNone, "")
			return
		}
		s.stopped = true
		m.mu.Unlock()
		s.requestStop()
		return
	}
	rec := s.rec
	if rec == nil {
		s.stopRequested = true
	}
	m.mu.Unlock()
	if rec != nil {
		rec.Stop()
	}
}

// Close tears down any session and releases devices. Later calls to Start
// are ignored.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	cleanup := m.teardownLocked(m.cur)
	m.mu.Unlock()
	cleanup()
}

// teardownLocked detaches s and returns the device cleanup to run once the
// lock is released. Events from s arriving later are stale.
func (m *Manager) teardownLocked(s *session) func() {
	if s == nil {
		return func() {}
	}
	if m.cur == s {
		m.cur = nil
	}
	s.timer.Stop()
	s.cancel()
	rec := s.rec
	return func() {
		if rec != nil {
			rec.Abort()
		}
		s.releaseMic()
	}
}

// finish ends the session identified by id with kind (KindNone on success).
// It reports false when id is no longer current.
func (m *Manager) finish(id string, kind Kind, transcript string) bool {
	m.mu.Lock()
	s := m.cur
	if s == nil || s.id != id {
		m.mu.Unlock()
		return false
	}
	if kind != KindNone && m.errKind == KindNone {
		m.errKind = kind
	}
	cleanup := m.teardownLocked(s)
	m.mu.Unlock()
	cleanup()

	fields := logrus.Fields{"session": id, "backend": s.backend, "elapsed": time.Since(s.started).Round(time.Millisecond)}
	switch {
	case transcript != "":
		m.log.WithFields(fields).Info("capture: listening -> result")
		if m.opts.OnTranscript != nil {
			m.opts.OnTranscript(transcript)
		}
	case kind != KindNone:
		m.log.WithFields(fields).WithField("kind", kind).Warn("capture: listening -> error")
	default:
		m.log.WithFields(fields).Info("capture: listening -> idle")
	}
	m.notify()
	return true
}

// cancelSilently ends id without surfacing an error, e.g. when another
// owner takes the microphone.
func (m *Manager) cancelSilently(id string) {
	m.mu.Lock()
	s := m.cur
	if s == nil || s.id != id {
		m.mu.Unlock()
		return
	}
	cleanup := m.teardownLocked(s)
	m.mu.Unlock()
	cleanup()
	m.log.WithField("session", id).Info("capture: microphone revoked")
	m.notify()
}

func (m *Manager) autoStop(id string) {
	m.mu.Lock()
	s := m.cur
	if s == nil || s.id != id {
		m.mu.Unlock()
		return
	}
	if s.backend == BackendRemote {
		if s.stopped {
			m.mu.Unlock()
			return
		}
		s.stopped = true
		m.mu.Unlock()
		m.log.WithField("session", id).Infof("capture: auto-stop after %s", m.opts.Timeout)
		s.requestStop()
		return
	}
	m.mu.Unlock()
	m.log.WithField("session", id).Infof("capture: auto-stop after %s", m.opts.Timeout)
	m.finish(id, KindNoSpeech, "")
}

// uploadTimeout ends a remote session whose transcription outlived its
// ceiling, whether or not the transcriber honours cancellation.
func (m *Manager) uploadTimeout(id string) {
	m.log.WithField("session", id).Warn("capture: transcription ceiling reached")
	m.finish(id, KindConnection, "")
}

func (m *Manager) uploadCeiling() time.Duration {
	if m.opts.TranscribeTimeout > 0 {
		return m.opts.TranscribeTimeout
	}
	return m.opts.Timeout
}

func (m *Manager) acquireMic(s *session) {
	if m.opts.Broker == nil {
		return
	}
	id := s.id
	lease := m.opts.Broker.Acquire("capture:"+id, func() { m.cancelSilently(id) })
	m.mu.Lock()
	if m.cur != s {
		m.mu.Unlock()
		lease.Release()
		return
	}
	s.lease = lease
	m.mu.Unlock()
}

func (m *Manager) setPhase(id string, p Phase) {
	m.mu.Lock()
	s := m.cur
	if s == nil || s.id != id {
		m.mu.Unlock()
		return
	}
	s.phase = p
	m.mu.Unlock()
	m.notify()
}

// notify reports state changes to the host; duplicates are suppressed.
func (m *Manager) notify() {
	m.mu.Lock()
	st := m.stateLocked()
	if st == m.last {
		m.mu.Unlock()
		return
	}
	m.last = st
	m.mu.Unlock()
	if m.opts.OnState != nil {
		m.opts.OnState(st)
	}
}

func (s *session) requestStop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// releaseMic stops and closes the recorder at most once and frees the lease.
func (s *session) releaseMic() []int16 {
	s.micOnce.Do(func() {
		if s.recording != nil {
			s.pcm = s.recording.Stop()
			_ = s.recording.Close()
		}
		s.lease.Release()
	})
	return s.pcm
}

// finalText joins the final segments of a result list.
func finalText(results []Segment) string {
	var b strings.Builder
	for _, r := range results {
		if !r.Final {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strings.TrimSpace(r.Text))
	}
	return strings.TrimSpace(b.String())
}

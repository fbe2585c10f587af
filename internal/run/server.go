package run

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"kisanvoice/internal/api"
	"kisanvoice/internal/asr"
	"kisanvoice/internal/audio"
	"kisanvoice/internal/capability"
	"kisanvoice/internal/capture"
	"kisanvoice/internal/clip"
	"kisanvoice/internal/config"
	"kisanvoice/internal/control"
	"kisanvoice/internal/engine"
	"kisanvoice/internal/hook"
	"kisanvoice/internal/langdetect"
	"kisanvoice/internal/playback"
	"kisanvoice/internal/synth"
	"kisanvoice/internal/transcribe"

	"github.com/sirupsen/logrus"
)

// engines are the host-side implementations the managers drive.
type engines struct {
	onDevice    capture.OnDeviceRecognizer
	mic         capture.Microphone
	encoder     capture.Encoder
	transcriber capture.Transcriber
	synth       playback.Synthesizer
	clips       playback.ClipPlayer
	closers     []func()
}

// Server manages capture, playback, hook dispatch, metrics, and control endpoints.
type Server struct {
	cfg       *config.Config
	logger    *logrus.Logger
	hook      atomic.Pointer[hook.Runner]
	startedAt time.Time
	lastHeard atomic.Int64

	transcriptsMu sync.Mutex
	transcripts   []control.Transcript

	metrics metrics
	hookCh  chan hook.Job
	hub     *stateHub

	mic     *engine.Broker
	speaker *engine.Broker
	capture *capture.Manager
	eng     engines

	listenMu   sync.Mutex
	listenLang string
	heardText  string
	waiters    []chan control.ListenResult

	playMu  sync.Mutex
	players map[string]*playback.Manager

	wg sync.WaitGroup
}

func newServer(cfg *config.Config, logger *logrus.Logger, eng engines) *Server {
	s := &Server{
		cfg:         cfg,
		logger:      logger,
		startedAt:   time.Now(),
		transcripts: make([]control.Transcript, 0, cfg.UI.StatusTail),
		hookCh:      make(chan hook.Job, hookQueueSize(cfg)),
		hub:         newStateHub(),
		mic:         engine.NewBroker("microphone"),
		speaker:     engine.NewBroker("speaker"),
		eng:         eng,
		players:     make(map[string]*playback.Manager),
	}
	s.hook.Store(hook.NewRunner(cfg, logger))
	s.metrics.reset()
	s.capture = capture.NewManager(capture.Options{
		OnDevice:          eng.onDevice,
		Microphone:        eng.mic,
		Encoder:           eng.encoder,
		Transcriber:       eng.transcriber,
		Broker:            s.mic,
		Timeout:           cfg.CaptureTimeout(),
		TranscribeTimeout: cfg.TranscribeTimeout(),
		SampleRate:        cfg.Audio.SampleRate,
		Channels:          cfg.Audio.Channels,
		OnTranscript:      s.handleTranscript,
		OnState:           s.onCaptureState,
		Logger:            logger,
	})
	return s
}

// defaultEngines wires the real audio, recognition, and synthesis backends.
func defaultEngines(cfg *config.Config, logger *logrus.Logger) engines {
	var e engines
	report := capability.Load(cfg)
	if report.OnDevice {
		rec, err := asr.New(asr.OptionsFromConfig(cfg), logger)
		if err != nil {
			logger.Warnf("asr init: %v; using remote transcription", err)
		} else {
			e.onDevice = rec
			e.closers = append(e.closers, func() { _ = rec.Close() })
		}
	}
	e.mic = audio.NewRecorder(cfg.Audio.DeviceName, cfg.Audio.FrameMS, logger)
	e.encoder = audio.Preferred(cfg.Capture.Container)
	client := api.New(cfg.Transcribe.APIURL, cfg.TranscribeTimeout(), api.WithRetries(1, 500*time.Millisecond))
	e.transcriber = transcribe.NewRemote(client, cfg.Transcribe.Path)

	sy := synth.New(cfg.Playback.SynthCommand, cfg.Playback.SynthArgs, cfg.Playback.RateWPM, logger)
	e.synth = sy
	e.closers = append(e.closers, sy.Close)
	e.clips = clip.New(cfg.Playback.ClipCommand, cfg.Playback.ClipArgs, nil, logger)

	logger.WithFields(logrus.Fields{
		"backend":    report.Backend(),
		"containers": strings.Join(report.Containers, ","),
		"synth":      report.Synth,
		"clips":      report.ClipPlayer,
	}).Info("capabilities probed")
	return e
}

// Serve runs the daemon until interrupted.
func Serve(cfg *config.Config, logger *logrus.Logger) error {
	if err := config.MustStatePaths(cfg); err != nil {
		return err
	}
	// Write pid file.
	if err := os.WriteFile(cfg.Paths.PidPath, []byte(fmt.Sprintf("%d", os.Getpid())), 0o644); err != nil {
		return err
	}
	defer func() {
		if err := os.Remove(cfg.Paths.PidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warnf("remove pid file: %v", err)
		}
	}()
	// Ensure socket removed
	if err := os.Remove(cfg.Paths.SocketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Debugf("remove stale socket: %v", err)
	}

	srv := newServer(cfg, logger, defaultEngines(cfg, logger))
	defer srv.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Control socket
	go srv.controlLoop(ctx)

	// Hook worker
	srv.wg.Add(1)
	go srv.hookWorker(ctx)

	// HTTP surface: metrics, status API, state websocket
	if cfg.Metrics.Enabled {
		go srv.httpServe(ctx, cfg.Metrics.Addr)
	}

	// Handle signals
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	select {
	case sig := <-sigCh:
		logger.Infof("received signal %s, shutting down", sig)
		cancel()
	case <-ctx.Done():
	}
	// Wait for hook worker to drain
	srv.wg.Wait()
	return nil
}

func (s *Server) close() {
	s.capture.Close()
	s.playMu.Lock()
	players := make([]*playback.Manager, 0, len(s.players))
	for _, p := range s.players {
		players = append(players, p)
	}
	s.playMu.Unlock()
	for _, p := range players {
		p.Close()
	}
	for _, c := range s.eng.closers {
		c()
	}
	s.hub.closeAll()
}

// startListening begins a capture session. When wait is non-nil it receives
// the outcome once the session ends.
func (s *Server) startListening(lang string, wait chan control.ListenResult) string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		lang = s.cfg.Capture.Language
	}
	lang = langdetect.Regional(lang)
	s.listenMu.Lock()
	s.listenLang = lang
	s.heardText = ""
	if wait != nil {
		s.waiters = append(s.waiters, wait)
	}
	s.listenMu.Unlock()
	s.metrics.incListens()
	s.capture.Start(lang)
	return lang
}

func (s *Server) stopListening() {
	s.capture.Stop()
}

func (s *Server) onCaptureState(st capture.State) {
	if st.Error != "" {
		s.metrics.incCaptureErrors()
	}
	s.hub.broadcast(control.Event{Type: "capture", Capture: &st, Timestamp: time.Now()})
	if st.Listening {
		return
	}
	s.listenMu.Lock()
	waiters := s.waiters
	s.waiters = nil
	res := control.ListenResult{OK: st.Error == "", Transcript: s.heardText, Lang: s.listenLang, Error: st.Error}
	s.heardText = ""
	s.listenMu.Unlock()
	for _, w := range waiters {
		select {
		case w <- res:
		default:
		}
	}
}

// handleTranscript receives each final capture result.
func (s *Server) handleTranscript(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	s.listenMu.Lock()
	s.heardText = text
	lang := s.listenLang
	s.listenMu.Unlock()

	s.lastHeard.Store(time.Now().UnixNano())
	s.metrics.incHeard()
	s.logger.WithField("lang", lang).Infof("heard: %q", text)
	s.recordTranscript(text, lang)
	s.hub.broadcast(control.Event{Type: "transcript", Text: text, Lang: lang, Timestamp: time.Now()})
	s.dispatchHook(text, lang)
}

func (s *Server) dispatchHook(text, lang string) {
	runner := s.hook.Load()
	if !runner.Enabled() || !runner.Accept(text) {
		return
	}
	if !runner.ShouldRun() {
		s.logger.Debug("hook skipped (cooldown)")
		s.metrics.incSkipped()
		return
	}
	s.logger.Infof("dispatching hook payload: %q", text)
	job := hook.Job{
		Text:      text,
		Lang:      lang,
		Timestamp: time.Now(),
	}
	select {
	case s.hookCh <- job:
	default:
		s.metrics.incDropped()
		s.logger.Warn("hook queue full, dropping job")
	}
}

// toggleSpeak starts or stops reading msg aloud and reports whether it is
// now speaking.
func (s *Server) toggleSpeak(msg playback.Message) control.SpeakResult {
	key := msg.Key()
	s.playMu.Lock()
	p, ok := s.players[key]
	if !ok {
		p = playback.New(playback.Options{
			Synth:      s.eng.synth,
			Clips:      s.eng.clips,
			Broker:     s.speaker,
			ChunkChars: s.cfg.Playback.ChunkChars,
			Voices:     s.cfg.Voices(),
			Rate:       s.cfg.Playback.RateWPM,
			OnState:    func(speaking bool) { s.onPlaybackState(key, speaking) },
			Logger:     s.logger,
		})
		s.players[key] = p
	}
	s.playMu.Unlock()

	p.ToggleSpeak(msg)
	speaking := p.Speaking()
	if speaking {
		s.metrics.incPlaybacks()
	}
	return control.SpeakResult{Key: key, Speaking: speaking}
}

func (s *Server) onPlaybackState(key string, speaking bool) {
	if !speaking {
		s.playMu.Lock()
		if p, ok := s.players[key]; ok && !p.Speaking() {
			delete(s.players, key)
		}
		s.playMu.Unlock()
	}
	s.hub.broadcast(control.Event{Type: "playback", Key: key, Speaking: speaking, Timestamp: time.Now()})
}

func (s *Server) speaking() []string {
	s.playMu.Lock()
	defer s.playMu.Unlock()
	var keys []string
	for k, p := range s.players {
		if p.Speaking() {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func (s *Server) status() control.Status {
	backend := capture.BackendRemote
	if s.eng.onDevice != nil && s.eng.onDevice.Available() {
		backend = capture.BackendOnDevice
	}
	return control.Status{
		Running:     true,
		UptimeSec:   time.Since(s.startedAt).Seconds(),
		Backend:     backend,
		Capture:     s.capture.State(),
		Speaking:    s.speaking(),
		Transcripts: s.copyTranscripts(),
	}
}

// reload re-reads the config file and swaps in a fresh hook runner.
func (s *Server) reload() control.SimpleResponse {
	path := s.cfg.Paths.ConfigPath
	cfg, err := config.Load(path)
	if err != nil {
		return control.SimpleResponse{OK: false, Message: err.Error()}
	}
	s.hook.Store(hook.NewRunner(cfg, s.logger))
	s.logger.Infof("reloaded hook settings from %s", path)
	return control.SimpleResponse{OK: true, Message: "hook settings reloaded"}
}

func hookQueueSize(cfg *config.Config) int {
	return max(1, cfg.Hook.QueueSize)
}

func (s *Server) recordTranscript(text, lang string) {
	if !s.cfg.Transcripts.Enabled {
		return
	}
	entry := control.Transcript{
		Text:      text,
		Lang:      lang,
		Timestamp: time.Now(),
	}
	s.transcriptsMu.Lock()
	defer s.transcriptsMu.Unlock()
	s.transcripts = append(s.transcripts, entry)
	if len(s.transcripts) > s.cfg.UI.StatusTail {
		s.transcripts = s.transcripts[len(s.transcripts)-s.cfg.UI.StatusTail:]
	}
	// append to file
	if s.cfg.Paths.TranscriptPath == "" {
		return
	}
	f, err := os.OpenFile(s.cfg.Paths.TranscriptPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err == nil {
		if _, err := fmt.Fprintf(f, "%s\t%s\t%s\n", entry.Timestamp.Format(time.RFC3339), entry.Lang, entry.Text); err != nil {
			s.logger.Warnf("write transcript: %v", err)
		}
		_ = f.Close()
	}
}

func (s *Server) copyTranscripts() []control.Transcript {
	s.transcriptsMu.Lock()
	defer s.transcriptsMu.Unlock()
	out := make([]control.Transcript, len(s.transcripts))
	copy(out, s.transcripts)
	return out
}

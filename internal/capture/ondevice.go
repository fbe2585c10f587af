package capture

func (m *Manager) startOnDevice(s *session) {
	id := s.id
	opts := RecognizeOptions{
		Language:        s.lang,
		Continuous:      true,
		InterimResults:  true,
		MaxAlternatives: 1,
	}
	rec, err := m.opts.OnDevice.Recognize(opts, func(ev RecognitionEvent) { m.onRecognition(id, ev) })
	if err != nil {
		m.log.WithField("session", id).Warnf("capture: recognizer start: %v", err)
		m.finish(id, kindForMicError(err), "")
		return
	}

	m.mu.Lock()
	if m.cur != s {
		m.mu.Unlock()
		rec.Abort()
		return
	}
	s.rec = rec
	s.phase = PhaseRecognizing
	stop := s.stopRequested
	m.mu.Unlock()
	m.notify()
	if stop {
		rec.Stop()
	}
}

// onRecognition handles engine events for session id. The first final
// result ends the session.
func (m *Manager) onRecognition(id string, ev RecognitionEvent) {
	m.mu.Lock()
	s := m.cur
	if s == nil || s.id != id {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	// finish aborts the engine, so later events for id are dropped.
	switch ev.Kind {
	case EventResult:
		text := finalText(ev.Results)
		if text == "" {
			return
		}
		m.finish(id, KindNone, text)
	case EventError:
		kind := kindForCode(ev.Code)
		if kind == KindNone {
			return
		}
		if ev.Err != nil {
			m.log.WithField("session", id).Debugf("capture: engine error %s: %v", ev.Code, ev.Err)
		}
		m.finish(id, kind, "")
	case EventEnd:
		m.finish(id, KindNoSpeech, "")
	}
}

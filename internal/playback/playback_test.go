package playback

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"kisanvoice/internal/engine"
	"kisanvoice/internal/synth"
)

type pending struct {
	u    synth.Utterance
	done func(error)
}

// fakeSynth holds utterances until the test completes them.
type fakeSynth struct {
	mu      sync.Mutex
	spoken  []synth.Utterance
	queue   []pending
	cancels int
}

func (f *fakeSynth) Speak(u synth.Utterance, done func(error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spoken = append(f.spoken, u)
	f.queue = append(f.queue, pending{u, done})
}

func (f *fakeSynth) Cancel() {
	f.mu.Lock()
	q := f.queue
	f.queue = nil
	f.cancels++
	f.mu.Unlock()
	for _, p := range q {
		p.done(synth.ErrCanceled)
	}
}

// complete finishes the oldest utterance with err.
func (f *fakeSynth) complete(err error) {
	f.mu.Lock()
	if len(f.queue) == 0 {
		f.mu.Unlock()
		return
	}
	p := f.queue[0]
	f.queue = f.queue[1:]
	f.mu.Unlock()
	p.done(err)
}

func (f *fakeSynth) utterances() []synth.Utterance {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]synth.Utterance(nil), f.spoken...)
}

func (f *fakeSynth) queued() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

type fakeClips struct {
	played []string
	pauses int
	done   func(error)
}

func (f *fakeClips) Play(src string, done func(error)) {
	f.played = append(f.played, src)
	f.done = done
}

func (f *fakeClips) Pause() { f.pauses++ }

type stateLog struct {
	mu     sync.Mutex
	states []bool
}

func (s *stateLog) record(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, v)
}

func newManager(sy *fakeSynth, cl *fakeClips, broker *engine.Broker, states *stateLog) *Manager {
	opts := Options{
		Synth:  sy,
		Clips:  cl,
		Broker: broker,
		Voices: map[string]string{"hi-in": "hi", "ta": "ta", "en-in": "en"},
		Rate:   150,
	}
	if states != nil {
		opts.OnState = states.record
	}
	return New(opts)
}

func TestScenarioCSingleChunk(t *testing.T) {
	sy := &fakeSynth{}
	states := &stateLog{}
	m := newManager(sy, &fakeClips{}, nil, states)

	m.ToggleSpeak(Message{Content: "**Apply** neem oil.\n\nWater daily."})
	got := sy.utterances()
	if len(got) != 1 {
		t.Fatalf("expected one utterance, got %d", len(got))
	}
	if got[0].Text != "Apply neem oil. Water daily." {
		t.Fatalf("utterance text %q", got[0].Text)
	}
	if got[0].Lang != "en-IN" || got[0].Voice != "en" || got[0].Rate != 150 {
		t.Fatalf("utterance %+v", got[0])
	}
	if !m.Speaking() {
		t.Fatalf("not speaking during playback")
	}
	sy.complete(nil)
	if m.Speaking() {
		t.Fatalf("still speaking after last chunk")
	}
	if len(states.states) != 2 || !states.states[0] || states.states[1] {
		t.Fatalf("state transitions %v", states.states)
	}
}

func longText() string {
	var b strings.Builder
	for i := 0; i < 6; i++ {
		b.WriteString("Irrigate the field early in the morning and check the soil moisture before adding more water to the crop rows. ")
	}
	return b.String()
}

func TestChunksSpokenStrictlyInSequence(t *testing.T) {
	sy := &fakeSynth{}
	m := newManager(sy, &fakeClips{}, nil, nil)
	m.ToggleSpeak(Message{Content: longText()})

	if sy.queued() != 1 {
		t.Fatalf("next chunk submitted before previous finished")
	}
	for i := 0; m.Speaking() && i < 20; i++ {
		if sy.queued() != 1 {
			t.Fatalf("expected exactly one utterance in flight")
		}
		sy.complete(nil)
	}
	spoken := sy.utterances()
	if len(spoken) < 2 {
		t.Fatalf("expected several chunks, got %d", len(spoken))
	}
	for _, u := range spoken {
		if n := len([]rune(u.Text)); n > 250 {
			t.Fatalf("chunk of %d chars", n)
		}
	}
}

func TestScenarioDToggleCancels(t *testing.T) {
	sy := &fakeSynth{}
	m := newManager(sy, &fakeClips{}, nil, nil)
	msg := Message{ID: "m1", Content: longText()}

	m.ToggleSpeak(msg)
	m.ToggleSpeak(msg)
	if m.Speaking() {
		t.Fatalf("still speaking after second toggle")
	}
	if sy.cancels != 1 {
		t.Fatalf("synth cancels = %d", sy.cancels)
	}
	if n := len(sy.utterances()); n != 1 {
		t.Fatalf("further chunks spoken after cancel: %d", n)
	}
	sy.complete(nil)
	if n := len(sy.utterances()); n != 1 {
		t.Fatalf("late completion resumed playback")
	}
}

func TestUtteranceErrorAbortsQueue(t *testing.T) {
	sy := &fakeSynth{}
	m := newManager(sy, &fakeClips{}, nil, nil)
	m.ToggleSpeak(Message{Content: longText()})
	sy.complete(errors.New("voice not installed"))
	if m.Speaking() {
		t.Fatalf("still speaking after utterance error")
	}
	if n := len(sy.utterances()); n != 1 {
		t.Fatalf("queue continued after error: %d utterances", n)
	}
}

func TestClipNeverSynthesizes(t *testing.T) {
	sy := &fakeSynth{}
	cl := &fakeClips{}
	m := newManager(sy, cl, nil, nil)
	msg := Message{Content: "Apply neem oil.", AudioURL: "https://cdn.example/reply.mp3"}

	m.ToggleSpeak(msg)
	if len(cl.played) != 1 || !m.Speaking() {
		t.Fatalf("clip not played")
	}
	m.ToggleSpeak(msg)
	if cl.pauses != 1 || m.Speaking() {
		t.Fatalf("clip not paused")
	}
	m.ToggleSpeak(msg)
	cl.done(nil)
	if m.Speaking() {
		t.Fatalf("clip end did not reset state")
	}
	if len(sy.utterances()) != 0 || sy.cancels != 0 {
		t.Fatalf("local synthesis touched for clip message")
	}
}

func TestExplicitLanguageAndDetection(t *testing.T) {
	sy := &fakeSynth{}
	m := newManager(sy, &fakeClips{}, nil, nil)
	m.ToggleSpeak(Message{Content: "Apply neem oil.", DetectedLanguage: "hi"})
	if u := sy.utterances()[0]; u.Lang != "hi-IN" || u.Voice != "hi" {
		t.Fatalf("explicit language ignored: %+v", u)
	}
	sy.complete(nil)

	m2 := newManager(sy, &fakeClips{}, nil, nil)
	m2.ToggleSpeak(Message{Content: "வேப்ப எண்ணெய் தெளிக்கவும்."})
	if u := sy.utterances()[1]; u.Lang != "ta-IN" || u.Voice != "ta" {
		t.Fatalf("script detection: %+v", u)
	}
}

func TestEmptyMessageStaysIdle(t *testing.T) {
	sy := &fakeSynth{}
	m := newManager(sy, &fakeClips{}, nil, nil)
	m.ToggleSpeak(Message{Content: "  🌾 \n\n"})
	if m.Speaking() || len(sy.utterances()) != 0 {
		t.Fatalf("empty message spoke")
	}
}

func TestSecondMessagePreemptsFirst(t *testing.T) {
	sy := &fakeSynth{}
	broker := engine.NewBroker("speaker")
	a := newManager(sy, &fakeClips{}, broker, nil)
	b := newManager(sy, &fakeClips{}, broker, nil)

	a.ToggleSpeak(Message{ID: "a", Content: longText()})
	b.ToggleSpeak(Message{ID: "b", Content: "Water daily."})

	if a.Speaking() {
		t.Fatalf("first message still speaking")
	}
	if !b.Speaking() || broker.Holder() != "playback:b" {
		t.Fatalf("second message does not hold the speaker")
	}
	got := sy.utterances()
	if last := got[len(got)-1]; last.Text != "Water daily." {
		t.Fatalf("last utterance %q", last.Text)
	}
	sy.complete(nil)
	if b.Speaking() || broker.Holder() != "" {
		t.Fatalf("speaker not released after completion")
	}
}

func TestMessageKey(t *testing.T) {
	if k := (Message{ID: "x"}).Key(); k != "x" {
		t.Fatalf("key %q", k)
	}
	a := Message{Content: "one"}.Key()
	if a == (Message{Content: "two"}).Key() || a != (Message{Content: "one"}).Key() {
		t.Fatalf("content keys not stable")
	}
}

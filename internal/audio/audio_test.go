package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"kisanvoice/internal/capture"
)

func TestWAVEncodeDecodeHeader(t *testing.T) {
	pcm := make([]int16, 1600)
	for i := range pcm {
		pcm[i] = int16(i * 10)
	}
	data, err := WAVEncoder{}.Encode(pcm, 16000, 1)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		t.Fatalf("missing RIFF/WAVE header")
	}
	if got := binary.LittleEndian.Uint32(data[24:28]); got != 16000 {
		t.Fatalf("sample rate in header = %d", got)
	}
	if len(data) != 44+len(pcm)*2 {
		t.Fatalf("wav size = %d, want %d", len(data), 44+len(pcm)*2)
	}

	path := filepath.Join(t.TempDir(), "clip.wav")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	samples, err := DecodeWAV(path, 16000)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(samples) != len(pcm) {
		t.Fatalf("decoded %d samples, want %d", len(samples), len(pcm))
	}
	if want := float32(pcm[100]) / 32768; samples[100] != want {
		t.Fatalf("sample 100 = %f, want %f", samples[100], want)
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wav")
	if err := os.WriteFile(path, []byte("not a wav"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeWAV(path, 16000); err == nil {
		t.Fatalf("expected error for invalid file")
	}
}

func TestResampleLinear(t *testing.T) {
	in := []float32{0, 1, 0, -1}
	out := Resample(in, 8000, 16000)
	if len(out) != 8 {
		t.Fatalf("len = %d", len(out))
	}
	if out[1] != 0.5 {
		t.Fatalf("interpolated sample = %f", out[1])
	}
	same := Resample(in, 16000, 16000)
	same[0] = 9
	if in[0] == 9 {
		t.Fatalf("resample must copy")
	}
}

func TestMemFileSeekOverwrite(t *testing.T) {
	m := &memFile{}
	_, _ = m.Write([]byte("hello world"))
	if _, err := m.Seek(0, 0); err != nil {
		t.Fatal(err)
	}
	_, _ = m.Write([]byte("J"))
	if got := string(m.Bytes()); got != "Jello world" {
		t.Fatalf("got %q", got)
	}
	if _, err := m.Seek(-1, 0); err == nil {
		t.Fatalf("negative seek accepted")
	}
}

func TestPreferredFallsBackToWAV(t *testing.T) {
	if got := Preferred("audio/wav").MimeType(); got != MimeWAV {
		t.Fatalf("explicit wav = %q", got)
	}
	want := MimeWAV
	if OpusAvailable {
		want = MimeOggOpus
	}
	if got := Preferred("auto").MimeType(); got != want {
		t.Fatalf("auto = %q, want %q", got, want)
	}
}

type fakeSource struct {
	mu     sync.Mutex
	reads  int
	closed bool
	fail   error
}

func (f *fakeSource) Read() ([]int16, error) {
	time.Sleep(time.Millisecond)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	f.reads++
	return []int16{1, 2, 3, 4}, nil
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestRecorderCollectsFrames(t *testing.T) {
	src := &fakeSource{}
	r := NewRecorder("", 20, nil)
	var gotFrames int
	r.open = func(_ string, rate, _, frames int) (frameSource, error) {
		gotFrames = frames
		return src, nil
	}
	rec, err := r.Open(capture.MicOptions{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatal(err)
	}
	if gotFrames != 320 {
		t.Fatalf("frames per buffer = %d", gotFrames)
	}
	pcm := rec.Stop()
	if len(pcm)%4 != 0 {
		t.Fatalf("partial frame recorded: %d", len(pcm))
	}
	if again := rec.Stop(); len(again) != len(pcm) {
		t.Fatalf("second stop changed data")
	}
	if err := rec.Close(); err != nil {
		t.Fatal(err)
	}
	if err := rec.Close(); err != nil {
		t.Fatal(err)
	}
	if !src.closed {
		t.Fatalf("device not released")
	}
}

func TestRecorderOpenError(t *testing.T) {
	r := NewRecorder("usb", 20, nil)
	r.open = func(string, int, int, int) (frameSource, error) {
		return nil, capture.ErrPermissionDenied
	}
	if _, err := r.Open(capture.MicOptions{SampleRate: 16000, Channels: 1}); !errors.Is(err, capture.ErrPermissionDenied) {
		t.Fatalf("err = %v", err)
	}
}

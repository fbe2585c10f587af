package audio

import (
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// MimeWAV is the container reported for WAV uploads.
const MimeWAV = "audio/wav"

// WAVEncoder packs 16-bit PCM into a RIFF/WAVE file.
type WAVEncoder struct{}

// MimeType implements capture.Encoder.
func (WAVEncoder) MimeType() string { return MimeWAV }

// Encode implements capture.Encoder.
func (WAVEncoder) Encode(pcm []int16, sampleRate, channels int) ([]byte, error) {
	if channels <= 0 {
		channels = 1
	}
	out := &memFile{}
	enc := wav.NewEncoder(out, sampleRate, 16, channels, 1)
	data := make([]int, len(pcm))
	for i, s := range pcm {
		data[i] = int(s)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("wav write: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("wav close: %w", err)
	}
	return out.Bytes(), nil
}

// DecodeWAV reads a PCM WAV file and returns mono float samples at
// targetRate. Multi-channel input is averaged.
func DecodeWAV(path string, targetRate int) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%s: not a valid wav file", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	chans := int(dec.NumChans)
	if chans < 1 {
		chans = 1
	}
	depth := int(dec.BitDepth)
	if depth == 0 {
		depth = 16
	}
	scale := float32(int64(1) << (depth - 1))

	frames := len(buf.Data) / chans
	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < chans; c++ {
			sum += float32(buf.Data[i*chans+c]) / scale
		}
		mono[i] = sum / float32(chans)
	}
	return Resample(mono, int(dec.SampleRate), targetRate), nil
}

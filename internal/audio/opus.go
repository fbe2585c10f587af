//go:build opus

package audio

import (
	"fmt"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3/pkg/media/oggwriter"
	"gopkg.in/hraban/opus.v2"
)

// OpusAvailable reports whether the binary links libopus.
const OpusAvailable = true

// OpusEncoder packs PCM into Ogg/Opus at 20ms frames.
type OpusEncoder struct{}

// NewOpusEncoder returns an Ogg/Opus encoder.
func NewOpusEncoder() (*OpusEncoder, error) { return &OpusEncoder{}, nil }

// MimeType implements capture.Encoder.
func (*OpusEncoder) MimeType() string { return MimeOggOpus }

// Encode implements capture.Encoder. Opus accepts 8/12/16/24/48 kHz input.
func (*OpusEncoder) Encode(pcm []int16, sampleRate, channels int) ([]byte, error) {
	if channels <= 0 {
		channels = 1
	}
	enc, err := opus.NewEncoder(sampleRate, channels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("opus encoder: %w", err)
	}
	out := &memFile{}
	ogg, err := oggwriter.NewWith(out, uint32(sampleRate), uint16(channels))
	if err != nil {
		return nil, fmt.Errorf("ogg writer: %w", err)
	}

	frame := sampleRate / 50 * channels
	packet := make([]byte, 4000)
	var (
		seq uint16
		ts  uint32
	)
	for off := 0; off < len(pcm); off += frame {
		chunk := make([]int16, frame)
		copy(chunk, pcm[off:min(off+frame, len(pcm))])
		n, err := enc.Encode(chunk, packet)
		if err != nil {
			return nil, fmt.Errorf("opus encode: %w", err)
		}
		payload := make([]byte, n)
		copy(payload, packet[:n])
		// RTP opus timestamps run on a 48 kHz clock.
		ts += 960
		seq++
		if err := ogg.WriteRTP(&rtp.Packet{
			Header:  rtp.Header{Version: 2, SequenceNumber: seq, Timestamp: ts},
			Payload: payload,
		}); err != nil {
			return nil, fmt.Errorf("ogg write: %w", err)
		}
	}
	if err := ogg.Close(); err != nil {
		return nil, fmt.Errorf("ogg close: %w", err)
	}
	return out.Bytes(), nil
}

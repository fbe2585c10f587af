//go:build portaudio || whisper

package audio

import (
	"errors"
	"fmt"
	"strings"

	"kisanvoice/internal/capture"

	"github.com/gordonklaus/portaudio"
)

// InputAvailable reports whether PortAudio capture is compiled in.
const InputAvailable = true

// Input is an open, started PortAudio input stream reading fixed frames.
type Input struct {
	stream *portaudio.Stream
	buf    []int16
	Device string
}

// OpenInput initializes PortAudio and starts capture on the named device
// (substring match) or the default input. Each Input holds one PortAudio
// reference until Close.
func OpenInput(deviceName string, sampleRate, channels, framesPerBuffer int) (*Input, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w: %w", capture.ErrMicUnavailable, err)
	}
	dev, err := selectDevice(deviceName)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, err
	}
	in := &Input{buf: make([]int16, framesPerBuffer*channels), Device: dev.Name}
	in.stream, err = portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: channels,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(sampleRate),
		FramesPerBuffer: framesPerBuffer,
	}, &in.buf)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("open stream: %w: %w", capture.ErrMicUnavailable, err)
	}
	if err := in.stream.Start(); err != nil {
		_ = in.stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("start stream: %w: %w", capture.ErrMicUnavailable, err)
	}
	return in, nil
}

// Read blocks for one frame. The returned slice is reused by the next Read.
// Input overflow is not an error; the frame is still returned.
func (in *Input) Read() ([]int16, error) {
	if err := in.stream.Read(); err != nil && !errors.Is(err, portaudio.InputOverflowed) {
		return nil, fmt.Errorf("stream read: %w", err)
	}
	return in.buf, nil
}

// Close stops the stream and drops the PortAudio reference.
func (in *Input) Close() error {
	err := in.stream.Stop()
	if cerr := in.stream.Close(); err == nil {
		err = cerr
	}
	if terr := portaudio.Terminate(); err == nil {
		err = terr
	}
	return err
}

// ListInputs enumerates capture-capable devices.
func ListInputs() ([]Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	defer func() { _ = portaudio.Terminate() }()

	devs, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	def, _ := portaudio.DefaultInputDevice()
	out := []Device{}
	for i, d := range devs {
		if d.MaxInputChannels < 1 {
			continue
		}
		out = append(out, Device{
			Index:     i,
			Name:      d.Name,
			Channels:  d.MaxInputChannels,
			LatencyMs: d.DefaultLowInputLatency.Seconds() * 1000,
			Default:   def != nil && d.Name == def.Name,
		})
	}
	return out, nil
}

func selectDevice(preferred string) (*portaudio.DeviceInfo, error) {
	devs, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	if preferred != "" {
		for _, d := range devs {
			if d.MaxInputChannels > 0 && strings.Contains(strings.ToLower(d.Name), strings.ToLower(preferred)) {
				return d, nil
			}
		}
	}
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		return def, nil
	}
	for _, d := range devs {
		if d.MaxInputChannels > 0 {
			return d, nil
		}
	}
	return nil, ErrNoInput
}

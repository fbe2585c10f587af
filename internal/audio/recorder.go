package audio

import (
	"io"
	"sync"

	"kisanvoice/internal/capture"

	"github.com/sirupsen/logrus"
)

type frameSource interface {
	Read() ([]int16, error)
	Close() error
}

// Recorder implements capture.Microphone on a PortAudio input.
type Recorder struct {
	DeviceName string
	FrameMS    int
	Logger     *logrus.Logger

	open func(device string, sampleRate, channels, frames int) (frameSource, error)
}

// NewRecorder returns a recorder for the named device ("" for default).
func NewRecorder(device string, frameMS int, logger *logrus.Logger) *Recorder {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Recorder{DeviceName: device, FrameMS: frameMS, Logger: logger}
}

// Open starts recording into memory.
func (r *Recorder) Open(opts capture.MicOptions) (capture.Recording, error) {
	frameMS := r.FrameMS
	if frameMS <= 0 {
		frameMS = 20
	}
	frames := opts.SampleRate * frameMS / 1000

	var (
		src frameSource
		err error
	)
	if r.open != nil {
		src, err = r.open(r.DeviceName, opts.SampleRate, opts.Channels, frames)
	} else {
		var in *Input
		if in, err = OpenInput(r.DeviceName, opts.SampleRate, opts.Channels, frames); err == nil {
			src = in
			r.Logger.Debugf("recording from %s @ %d Hz", in.Device, opts.SampleRate)
		}
	}
	if err != nil {
		return nil, err
	}
	rec := &recording{
		src:  src,
		log:  r.Logger,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go rec.loop()
	return rec, nil
}

type recording struct {
	src frameSource
	log *logrus.Logger

	mu  sync.Mutex
	pcm []int16

	stop      chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
	closeOnce sync.Once
	closeErr  error
}

func (r *recording) loop() {
	defer close(r.done)
	for {
		select {
		case <-r.stop:
			return
		default:
		}
		frame, err := r.src.Read()
		if err != nil {
			r.log.Warnf("recorder: %v", err)
			return
		}
		r.mu.Lock()
		r.pcm = append(r.pcm, frame...)
		r.mu.Unlock()
	}
}

// Stop ends capture and returns the recorded samples.
func (r *recording) Stop() []int16 {
	r.stopOnce.Do(func() { close(r.stop) })
	<-r.done
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int16(nil), r.pcm...)
}

// Close stops capture and releases the device.
func (r *recording) Close() error {
	r.Stop()
	r.closeOnce.Do(func() { r.closeErr = r.src.Close() })
	return r.closeErr
}

// Package capability probes which voice engines this host can run.
package capability

import (
	"os"
	"os/exec"
	"sync"

	"kisanvoice/internal/asr"
	"kisanvoice/internal/audio"
	"kisanvoice/internal/capture"
	"kisanvoice/internal/config"
)

// Report is the result of one probe.
type Report struct {
	WhisperCompiled bool           `json:"whisper_compiled"`
	ModelPresent    bool           `json:"model_present"`
	OnDevice        bool           `json:"on_device"`
	Microphone      bool           `json:"microphone"`
	Inputs          []audio.Device `json:"inputs,omitempty"`
	MicError        string         `json:"mic_error,omitempty"`
	Containers      []string       `json:"containers"`
	Synth           bool           `json:"synth"`
	SynthPath       string         `json:"synth_path,omitempty"`
	ClipPlayer      bool           `json:"clip_player"`
	ClipPath        string         `json:"clip_path,omitempty"`
}

// Backend is the capture path a new session would take.
func (r Report) Backend() capture.Backend {
	if r.OnDevice {
		return capture.BackendOnDevice
	}
	return capture.BackendRemote
}

// Compute probes the host now.
func Compute(cfg *config.Config) Report {
	r := Report{WhisperCompiled: asr.Compiled}
	if _, err := os.Stat(cfg.ASR.ModelPath); err == nil {
		r.ModelPresent = true
	}
	r.OnDevice = cfg.ASR.Enabled && r.WhisperCompiled && r.ModelPresent

	if inputs, err := audio.ListInputs(); err != nil {
		r.MicError = err.Error()
	} else {
		r.Inputs = inputs
		r.Microphone = len(inputs) > 0
	}

	r.Containers = []string{audio.MimeWAV}
	if audio.OpusAvailable {
		r.Containers = append([]string{audio.MimeOggOpus}, r.Containers...)
	}

	if p, err := exec.LookPath(cfg.Playback.SynthCommand); err == nil && cfg.Playback.SynthCommand != "" {
		r.Synth, r.SynthPath = true, p
	}
	if p, err := exec.LookPath(cfg.Playback.ClipCommand); err == nil && cfg.Playback.ClipCommand != "" {
		r.ClipPlayer, r.ClipPath = true, p
	}
	return r
}

var (
	once   sync.Once
	cached Report
)

// Load probes once per process and returns the cached report after.
func Load(cfg *config.Config) Report {
	once.Do(func() { cached = Compute(cfg) })
	return cached
}

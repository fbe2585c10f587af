package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultLanguage      = "en-IN"
	defaultTimeoutSec    = 12.0
	defaultChunkChars    = 250
	defaultStatusTail    = 10
	defaultStateDirLinux = ".local/state/kisanvoice"
	defaultConfigDir     = ".config/kisanvoice"
	defaultAPIURL        = "http://127.0.0.1:3000"
)

// Config holds user configuration loaded from TOML.
type Config struct {
	Audio struct {
		DeviceName string `toml:"device_name"`
		SampleRate int    `toml:"sample_rate"`
		Channels   int    `toml:"channels"`
		FrameMS    int    `toml:"frame_ms"`
	} `toml:"audio"`

	VAD struct {
		Aggressiveness int `toml:"aggressiveness"`
		SilenceMS      int `toml:"silence_ms"`
		MinSpeechMS    int `toml:"min_speech_ms"`
		MaxSegmentMS   int `toml:"max_segment_ms"`
		PartialFlushMS int `toml:"partial_flush_ms"`
	} `toml:"vad"`

	ASR struct {
		Enabled   bool   `toml:"enabled"`
		ModelPath string `toml:"model_path"`
	} `toml:"asr"`

	Capture struct {
		Language   string  `toml:"language"`
		TimeoutSec float64 `toml:"timeout_sec"`
		Container  string  `toml:"container"` // auto, audio/wav, audio/ogg;codecs=opus
	} `toml:"capture"`

	Transcribe struct {
		APIURL     string  `toml:"api_url"`
		Path       string  `toml:"path"`
		TimeoutSec float64 `toml:"timeout_sec"`
	} `toml:"transcribe"`

	Playback struct {
		ChunkChars   int      `toml:"chunk_chars"`
		RateWPM      int      `toml:"rate_wpm"`
		SynthCommand string   `toml:"synth_command"`
		SynthArgs    []string `toml:"synth_args"`
		ClipCommand  string   `toml:"clip_command"`
		ClipArgs     []string `toml:"clip_args"`
	} `toml:"playback"`

	Languages []LanguageConfig `toml:"languages"`

	Hook struct {
		Command     string            `toml:"command"`
		Args        []string          `toml:"args"`
		Prefix      string            `toml:"prefix"`
		CooldownSec float64           `toml:"cooldown_sec"`
		MinChars    int               `toml:"min_chars"`
		QueueSize   int               `toml:"queue_size"`
		TimeoutSec  float64           `toml:"timeout_sec"`
		Env         map[string]string `toml:"env"`
		RedactPII   bool              `toml:"redact_pii"`
	} `toml:"hook"`

	Logging struct {
		Level  string `toml:"level"`  // debug, info, warn, error
		Format string `toml:"format"` // text, json
		Stdout bool   `toml:"stdout"`
	} `toml:"logging"`

	Paths struct {
		StateDir       string `toml:"state_dir"`
		LogPath        string `toml:"log_path"`
		TranscriptPath string `toml:"transcript_path"`
		SocketPath     string `toml:"socket_path"`
		PidPath        string `toml:"pid_path"`
		ConfigPath     string `toml:"-"`
	} `toml:"paths"`

	UI struct {
		StatusTail int `toml:"status_tail"`
	} `toml:"ui"`

	Metrics struct {
		Enabled bool   `toml:"enabled"`
		Addr    string `toml:"addr"`
	} `toml:"metrics"`

	Transcripts struct {
		Enabled bool `toml:"enabled"`
	} `toml:"transcripts"`
}

// Default returns Config populated with defaults.
func Default() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	stateDir := filepath.Join(home, defaultStateDirLinux)
	// macOS prefers ~/Library/Application Support/kisanvoice for state/logs
	if isMac() {
		stateDir = filepath.Join(home, "Library", "Application Support", "kisanvoice")
	}

	cfg := &Config{}

	cfg.Audio.SampleRate = 16000
	cfg.Audio.Channels = 1
	cfg.Audio.FrameMS = 20

	cfg.VAD.Aggressiveness = 2
	cfg.VAD.SilenceMS = 900
	cfg.VAD.MinSpeechMS = 300
	cfg.VAD.MaxSegmentMS = 10000
	cfg.VAD.PartialFlushMS = 1500

	cfg.ASR.Enabled = true
	cfg.ASR.ModelPath = filepath.Join(stateDir, "models", "ggml-small-q5_1.bin")

	cfg.Capture.Language = DefaultLanguage
	cfg.Capture.TimeoutSec = defaultTimeoutSec
	cfg.Capture.Container = "auto"

	cfg.Transcribe.APIURL = defaultAPIURL
	cfg.Transcribe.Path = "/transcribe"
	cfg.Transcribe.TimeoutSec = 60

	cfg.Playback.ChunkChars = defaultChunkChars
	cfg.Playback.RateWPM = 160
	if isMac() {
		cfg.Playback.SynthCommand = "say"
		cfg.Playback.SynthArgs = []string{"-v", "{voice}", "-r", "{rate}"}
	} else {
		cfg.Playback.SynthCommand = "espeak-ng"
		cfg.Playback.SynthArgs = []string{"-v", "{voice}", "-s", "{rate}", "--stdin"}
	}
	cfg.Playback.ClipCommand = "ffplay"
	cfg.Playback.ClipArgs = []string{"-nodisp", "-autoexit", "-loglevel", "quiet", "-"}

	cfg.Languages = DefaultLanguages()

	cfg.Hook.Prefix = ""
	cfg.Hook.CooldownSec = 0
	cfg.Hook.MinChars = 1
	cfg.Hook.QueueSize = 16
	cfg.Hook.TimeoutSec = 5
	cfg.Hook.Env = map[string]string{}

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"

	cfg.Paths.StateDir = stateDir
	cfg.Paths.LogPath = filepath.Join(stateDir, "kisanvoice.log")
	cfg.Paths.TranscriptPath = filepath.Join(stateDir, "transcripts.log")
	cfg.Paths.SocketPath = filepath.Join(stateDir, "kisanvoice.sock")
	cfg.Paths.PidPath = filepath.Join(stateDir, "kisanvoice.pid")

	cfg.UI.StatusTail = defaultStatusTail

	cfg.Metrics.Enabled = false
	cfg.Metrics.Addr = "127.0.0.1:9318"

	cfg.Transcripts.Enabled = true

	return cfg, nil
}

// Load loads config from file, applying defaults, a sibling .env file and env overrides.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	if path == "" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, defaultConfigDir, "config.toml")
	}
	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, err
	}

	// Read if exists; otherwise write template.
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, err
			}
			if err := Save(cfg, path); err != nil {
				return nil, err
			}
			cfg.Paths.ConfigPath = path
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Paths.ConfigPath = path
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Save writes cfg to path.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o600)
}

// CaptureTimeout is the hard ceiling for one capture session.
func (c *Config) CaptureTimeout() time.Duration {
	if c.Capture.TimeoutSec <= 0 {
		return time.Duration(defaultTimeoutSec * float64(time.Second))
	}
	return time.Duration(c.Capture.TimeoutSec * float64(time.Second))
}

// TranscribeTimeout bounds one remote transcription round trip.
func (c *Config) TranscribeTimeout() time.Duration {
	if c.Transcribe.TimeoutSec <= 0 {
		return 0
	}
	return time.Duration(c.Transcribe.TimeoutSec * float64(time.Second))
}

func isMac() bool {
	return runtime.GOOS == "darwin"
}

// MustStatePaths ensures state dirs exist.
func MustStatePaths(cfg *Config) error {
	for _, p := range []string{cfg.Paths.StateDir, filepath.Dir(cfg.Paths.LogPath), filepath.Dir(cfg.Paths.TranscriptPath)} {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(p, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// loadDotEnv reads KEY=VAL pairs next to the config file. Existing env wins.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KISANVOICE_API_URL"); v != "" {
		cfg.Transcribe.APIURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("KISANVOICE_LANGUAGE"); v != "" {
		cfg.Capture.Language = v
	}
	if v := os.Getenv("KISANVOICE_CAPTURE_TIMEOUT_SEC"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Capture.TimeoutSec = f
		}
	}
	if v := os.Getenv("KISANVOICE_ASR_ENABLED"); v != "" {
		cfg.ASR.Enabled = envBool(v)
	}
	if v := os.Getenv("KISANVOICE_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
		cfg.Metrics.Enabled = true
	}
	if v := os.Getenv("KISANVOICE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("KISANVOICE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("KISANVOICE_TRANSCRIPTS_ENABLED"); v != "" {
		cfg.Transcripts.Enabled = envBool(v)
	}
	if v := os.Getenv("KISANVOICE_REDACT_PII"); v != "" {
		cfg.Hook.RedactPII = envBool(v)
	}
}

func envBool(v string) bool {
	return v != "0" && strings.ToLower(v) != "false"
}

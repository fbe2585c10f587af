package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEnvOverrides(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	cfg.Paths.ConfigPath = "/tmp/config" // avoid creation

	t.Setenv("KISANVOICE_API_URL", "https://api.example.test/Prod/")
	t.Setenv("KISANVOICE_METRICS_ADDR", "1.2.3.4:9999")
	t.Setenv("KISANVOICE_LOG_LEVEL", "debug")
	t.Setenv("KISANVOICE_LOG_FORMAT", "json")
	t.Setenv("KISANVOICE_ASR_ENABLED", "0")
	t.Setenv("KISANVOICE_CAPTURE_TIMEOUT_SEC", "3.5")

	applyEnvOverrides(cfg)

	if cfg.Transcribe.APIURL != "https://api.example.test/Prod" {
		t.Fatalf("api url override failed: %q", cfg.Transcribe.APIURL)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Addr != "1.2.3.4:9999" {
		t.Fatalf("metrics override failed: %+v", cfg.Metrics)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Fatalf("logging overrides failed: %+v", cfg.Logging)
	}
	if cfg.ASR.Enabled {
		t.Fatalf("asr should be disabled via env")
	}
	if cfg.CaptureTimeout() != 3500*time.Millisecond {
		t.Fatalf("capture timeout override failed: %s", cfg.CaptureTimeout())
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/config.toml"

	cfg, err := Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	cfg.Paths.ConfigPath = path
	cfg.Hook.Command = "/bin/echo"
	cfg.Languages = append(cfg.Languages, LanguageConfig{Tag: "sa-IN", Name: "Sanskrit", Voice: "sa"})

	if err := Save(cfg, path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Hook.Command != "/bin/echo" {
		t.Fatalf("expected hook command to persist")
	}
	if l, ok := loaded.FindLanguage("SA-in"); !ok || l.Voice != "sa" {
		t.Fatalf("expected extra language to persist, got %+v", l)
	}
}

func TestLoadWritesTemplateWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Paths.ConfigPath != path {
		t.Fatalf("config path not recorded: %q", cfg.Paths.ConfigPath)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("template not written: %v", err)
	}
	if cfg.CaptureTimeout() != 12*time.Second {
		t.Fatalf("default timeout should be 12s, got %s", cfg.CaptureTimeout())
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("KISANVOICE_LANGUAGE=ta-IN\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	// godotenv sets the variable process-wide; register cleanup through t.Setenv.
	t.Setenv("KISANVOICE_LANGUAGE", "")
	os.Unsetenv("KISANVOICE_LANGUAGE")

	cfg, err := Load(filepath.Join(dir, "config.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Capture.Language != "ta-IN" {
		t.Fatalf("expected .env language, got %q", cfg.Capture.Language)
	}
}

func TestVoicesSkipsBlankEntries(t *testing.T) {
	cfg, _ := Default()
	cfg.Languages = []LanguageConfig{
		{Tag: "ta-IN", Voice: "ta"},
		{Tag: "xx-IN", Voice: ""},
	}
	v := cfg.Voices()
	if v["ta-in"] != "ta" {
		t.Fatalf("expected lowercase key for ta-IN, got %v", v)
	}
	if _, ok := v["xx-in"]; ok {
		t.Fatalf("blank voice should be skipped")
	}
}

package logging

import (
	"os"
	"path/filepath"
	"testing"

	"kisanvoice/internal/config"

	"github.com/sirupsen/logrus"
)

func TestConfigureWritesRotatedLog(t *testing.T) {
	dir := t.TempDir()
	cfg, _ := config.Default()
	cfg.Paths.StateDir = dir
	cfg.Paths.LogPath = filepath.Join(dir, "logs", "kisanvoice.log")
	cfg.Paths.TranscriptPath = filepath.Join(dir, "transcripts.log")
	cfg.Logging.Level = "warn"
	cfg.Logging.Format = "json"

	logger, err := Configure(cfg)
	if err != nil {
		t.Fatalf("configure: %v", err)
	}
	if logger.GetLevel() != logrus.WarnLevel {
		t.Fatalf("expected warn level, got %s", logger.GetLevel())
	}
	if _, ok := logger.Formatter.(*logrus.JSONFormatter); !ok {
		t.Fatalf("expected JSON formatter, got %T", logger.Formatter)
	}
	logger.Warn("hello")
	if _, err := os.Stat(cfg.Paths.LogPath); err != nil {
		t.Fatalf("log file not created: %v", err)
	}
}

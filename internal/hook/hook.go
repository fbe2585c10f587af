// Package hook forwards final transcripts to a user command, typically a
// script that posts the farmer's question to the advisory backend.
package hook

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"kisanvoice/internal/config"

	"github.com/google/shlex"
	"github.com/sirupsen/logrus"
)

// ErrNoCommand is returned when hook.command is empty.
var ErrNoCommand = errors.New("no hook.command configured")

// Job represents a hook invocation request.
type Job struct {
	Text      string
	Lang      string
	Timestamp time.Time
}

type runFunc func(ctx context.Context, name string, args, env []string) ([]byte, error)

// Runner executes hooks with cooldown and prefix handling.
type Runner struct {
	cfg      *config.Config
	logger   *logrus.Logger
	hostname string
	run      runFunc

	mu      sync.Mutex
	lastRun time.Time
}

func NewRunner(cfg *config.Config, logger *logrus.Logger) *Runner {
	host, _ := os.Hostname()
	return &Runner{
		cfg:      cfg,
		logger:   logger,
		hostname: host,
		run:      execRun,
	}
}

// Enabled reports whether a hook command is configured.
func (r *Runner) Enabled() bool {
	return strings.TrimSpace(r.cfg.Hook.Command) != ""
}

// Accept reports whether text is long enough to forward.
func (r *Runner) Accept(text string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(text)) >= r.cfg.Hook.MinChars
}

// ShouldRun returns whether cooldown allows a new hook.
func (r *Runner) ShouldRun() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cfg.Hook.CooldownSec <= 0 {
		return true
	}
	return time.Since(r.lastRun).Seconds() >= r.cfg.Hook.CooldownSec
}

// Run executes the configured command with text payload.
func (r *Runner) Run(ctx context.Context, job Job) error {
	if !r.Enabled() {
		return ErrNoCommand
	}
	r.mu.Lock()
	r.lastRun = time.Now()
	r.mu.Unlock()

	prefix := strings.ReplaceAll(r.cfg.Hook.Prefix, "${hostname}", r.hostname)
	text := job.Text
	if r.cfg.Hook.RedactPII {
		text = redactPII(text)
	}
	args := append([]string{}, r.cfg.Hook.Args...)
	args = append(args, strings.TrimSpace(prefix+text))

	runCtx := ctx
	if r.cfg.Hook.TimeoutSec > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(float64(time.Second)*r.cfg.Hook.TimeoutSec))
		defer cancel()
	}

	env := os.Environ()
	for k, v := range r.cfg.Hook.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	env = append(env,
		"KISANVOICE_TEXT="+text,
		"KISANVOICE_LANG="+job.Lang,
		"KISANVOICE_PREFIX="+prefix,
	)

	out, err := r.run(runCtx, r.cfg.Hook.Command, args, env)
	if len(out) > 0 {
		r.logger.Infof("hook output: %s", strings.TrimSpace(string(out)))
	}
	if err != nil {
		return fmt.Errorf("hook failed: %w", err)
	}
	return nil
}

// ParseArgs allows Hook.Args to be configured as a single string.
func ParseArgs(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return []string{}, nil
	}
	return shlex.Split(raw)
}

func execRun(ctx context.Context, name string, args, env []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = env
	return cmd.CombinedOutput()
}

var (
	emailRE = regexp.MustCompile(`[\w.+-]+@[\w.-]+\.[A-Za-z]{2,}`)
	phoneRE = regexp.MustCompile(`\+?\d[\d\s\-\(\)]{6,}\d`)
)

func redactPII(s string) string {
	s = emailRE.ReplaceAllString(s, "[redacted-email]")
	s = phoneRE.ReplaceAllString(s, "[redacted-phone]")
	return s
}

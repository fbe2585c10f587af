// Package clip plays pre-rendered audio clips by streaming them into an
// external player command (ffplay, mpv, afplay).
package clip

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrStopped is reported when Pause or a newer Play ends a clip early.
var ErrStopped = errors.New("clip: stopped")

type runFunc func(ctx context.Context, name string, args []string, stdin io.Reader) error

// Player plays one clip at a time.
type Player struct {
	name   string
	args   []string
	client *http.Client
	logger *logrus.Logger
	run    runFunc

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// New returns a player. client may be nil.
func New(name string, args []string, client *http.Client, logger *logrus.Logger) *Player {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Player{
		name:   name,
		args:   append([]string(nil), args...),
		client: client,
		logger: logger,
		run:    execRun,
	}
}

// Play stops any current clip and starts src (http(s) URL or local path).
// done is called once, from a background goroutine.
func (p *Player) Play(src string, done func(error)) {
	ctx, cancel := context.WithCancel(context.Background())
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.seq++
	id := p.seq
	p.cancel = cancel
	p.mu.Unlock()

	go func() {
		err := p.play(ctx, src)
		if ctx.Err() != nil {
			err = ErrStopped
		}
		p.mu.Lock()
		if p.seq == id {
			p.cancel = nil
		}
		p.mu.Unlock()
		cancel()
		if err != nil && !errors.Is(err, ErrStopped) {
			p.logger.Warnf("clip: %v", err)
		}
		if done != nil {
			done(err)
		}
	}()
}

// Pause stops the current clip. Playback restarts from the beginning on the
// next Play.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

// Playing reports whether a clip is running.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *Player) play(ctx context.Context, src string) error {
	body, err := p.open(ctx, src)
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }()
	if p.name == "" {
		return errors.New("clip: no player command configured")
	}
	return p.run(ctx, p.name, p.args, body)
}

func (p *Player) open(ctx context.Context, src string) (io.ReadCloser, error) {
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		return os.Open(strings.TrimPrefix(src, "file://"))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch clip: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("fetch clip: status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func execRun(ctx context.Context, name string, args []string, stdin io.Reader) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	out, err := cmd.CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// Package synth speaks text through an external text-to-speech command
// (say, espeak-ng, piper). One Command is shared by the whole process and
// runs utterances one at a time in submission order.
package synth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/google/shlex"
	"github.com/sirupsen/logrus"
)

// ErrCanceled is reported for utterances dropped by Cancel or Close.
var ErrCanceled = errors.New("synth: canceled")

// Utterance is one chunk of speech.
type Utterance struct {
	Text  string
	Lang  string
	Voice string
	Rate  int
}

type job struct {
	u    Utterance
	done func(error)
}

type runFunc func(ctx context.Context, name string, args []string, stdin string) error

// Command runs a TTS command per utterance.
type Command struct {
	name   string
	args   []string
	rate   int
	logger *logrus.Logger
	run    runFunc

	mu      sync.Mutex
	queue   []job
	active  *job
	cancel  context.CancelFunc
	wake    chan struct{}
	closed  bool
	workers sync.WaitGroup
}

// New starts a synthesizer. args may contain {voice}, {lang}, {rate} and
// {text}; without {text} the text is written to stdin.
func New(name string, args []string, rate int, logger *logrus.Logger) *Command {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	c := &Command{
		name:   name,
		args:   append([]string(nil), args...),
		rate:   rate,
		logger: logger,
		run:    execRun,
		wake:   make(chan struct{}, 1),
	}
	c.workers.Add(1)
	go c.loop()
	return c
}

// ParseArgs splits a shell-style argument string.
func ParseArgs(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return []string{}, nil
	}
	return shlex.Split(raw)
}

// Speak queues u. done is called exactly once, from the worker goroutine,
// with nil on completion or an error.
func (c *Command) Speak(u Utterance, done func(error)) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		if done != nil {
			done(ErrCanceled)
		}
		return
	}
	c.queue = append(c.queue, job{u: u, done: done})
	select {
	case c.wake <- struct{}{}:
	default:
	}
	c.mu.Unlock()
}

// Cancel kills the running utterance and drops everything queued.
func (c *Command) Cancel() {
	c.mu.Lock()
	dropped := c.queue
	c.queue = nil
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()
	for _, j := range dropped {
		if j.done != nil {
			j.done(ErrCanceled)
		}
	}
}

// Speaking reports whether an utterance is running or queued.
func (c *Command) Speaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil || len(c.queue) > 0
}

// Close cancels pending speech and stops the worker.
func (c *Command) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	c.Cancel()
	c.mu.Lock()
	close(c.wake)
	c.mu.Unlock()
	c.workers.Wait()
}

func (c *Command) loop() {
	defer c.workers.Done()
	for range c.wake {
		for {
			c.mu.Lock()
			if len(c.queue) == 0 {
				c.mu.Unlock()
				break
			}
			j := c.queue[0]
			c.queue = c.queue[1:]
			ctx, cancel := context.WithCancel(context.Background())
			c.active = &j
			c.cancel = cancel
			c.mu.Unlock()

			err := c.speak(ctx, j.u)
			if ctx.Err() != nil {
				err = ErrCanceled
			}
			cancel()

			c.mu.Lock()
			c.active = nil
			c.cancel = nil
			c.mu.Unlock()
			if j.done != nil {
				j.done(err)
			}
		}
	}
}

func (c *Command) speak(ctx context.Context, u Utterance) error {
	if c.name == "" {
		return errors.New("synth: no command configured")
	}
	rate := u.Rate
	if rate <= 0 {
		rate = c.rate
	}
	voice := u.Voice
	if voice == "" {
		voice = u.Lang
	}
	repl := strings.NewReplacer(
		"{voice}", voice,
		"{lang}", u.Lang,
		"{rate}", strconv.Itoa(rate),
		"{text}", u.Text,
	)
	args := make([]string, 0, len(c.args))
	stdin := u.Text
	for _, a := range c.args {
		if strings.Contains(a, "{text}") {
			stdin = ""
		}
		args = append(args, repl.Replace(a))
	}
	c.logger.WithFields(logrus.Fields{"lang": u.Lang, "voice": voice, "chars": len([]rune(u.Text))}).Debug("synth: speak")
	return c.run(ctx, c.name, args, stdin)
}

func execRun(ctx context.Context, name string, args []string, stdin string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = os.Environ()
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

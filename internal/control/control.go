package control

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"kisanvoice/internal/capture"
	"kisanvoice/internal/playback"
)

// Control socket ops.
const (
	OpStatus = "status"
	OpHealth = "health"
	OpReload = "reload"
	OpListen = "listen"
	OpStop   = "stop"
	OpSpeak  = "speak"
)

type Request struct {
	Op      string            `json:"op"`
	Lang    string            `json:"lang,omitempty"`
	Wait    bool              `json:"wait,omitempty"`
	Message *playback.Message `json:"message,omitempty"`
}

type Status struct {
	Running     bool            `json:"running"`
	UptimeSec   float64         `json:"uptime_sec"`
	Backend     capture.Backend `json:"backend"`
	Capture     capture.State   `json:"capture"`
	Speaking    []string        `json:"speaking,omitempty"`
	Transcripts []Transcript    `json:"transcripts"`
}

type SimpleResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// ListenResult answers a listen request sent with Wait.
type ListenResult struct {
	OK         bool   `json:"ok"`
	Transcript string `json:"transcript,omitempty"`
	Lang       string `json:"lang,omitempty"`
	Error      string `json:"error,omitempty"`
}

// SpeakResult answers a speak request.
type SpeakResult struct {
	Key      string `json:"key"`
	Speaking bool   `json:"speaking"`
}

type Transcript struct {
	Text      string    `json:"text"`
	Lang      string    `json:"lang,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Event is pushed to state subscribers.
type Event struct {
	Type      string         `json:"type"` // capture, playback, transcript
	Capture   *capture.State `json:"capture,omitempty"`
	Key       string         `json:"key,omitempty"`
	Speaking  bool           `json:"speaking,omitempty"`
	Text      string         `json:"text,omitempty"`
	Lang      string         `json:"lang,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Call sends one request over the control socket and decodes the reply
// into out. The context deadline, if any, bounds the whole exchange.
func Call(ctx context.Context, socketPath string, req Request, out any) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return fmt.Errorf("cannot connect to daemon: %w", err)
	}
	defer conn.Close()
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return err
	}
	if err := json.NewDecoder(conn).Decode(out); err != nil {
		return fmt.Errorf("read daemon reply: %w", err)
	}
	return nil
}

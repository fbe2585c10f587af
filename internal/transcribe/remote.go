// Package transcribe sends recorded clips to the backend's /transcribe
// endpoint through a host-supplied request function.
package transcribe

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"kisanvoice/internal/capture"
)

// DefaultPath is the backend route for transcription.
const DefaultPath = "/transcribe"

// ErrConnection wraps any transport or decoding failure.
var ErrConnection = errors.New("transcribe: connection failed")

// Requester is the generic backend call: POST payload as JSON to path and
// return the response body.
type Requester interface {
	PostJSON(ctx context.Context, path string, payload any) ([]byte, error)
}

// RequesterFunc adapts a function to Requester.
type RequesterFunc func(ctx context.Context, path string, payload any) ([]byte, error)

// PostJSON implements Requester.
func (f RequesterFunc) PostJSON(ctx context.Context, path string, payload any) ([]byte, error) {
	return f(ctx, path, payload)
}

// Request is the upload body.
type Request struct {
	Audio    string `json:"audio"`
	Language string `json:"language"`
	Format   string `json:"format"`
}

type response struct {
	Transcript *string `json:"transcript"`
	Status     string  `json:"status"`
	Message    string  `json:"message"`
	Data       *struct {
		Transcript *string `json:"transcript"`
	} `json:"data"`
}

// Remote implements capture.Transcriber.
type Remote struct {
	req  Requester
	path string
}

// NewRemote returns a transcriber posting to path ("" for DefaultPath).
func NewRemote(req Requester, path string) *Remote {
	if path == "" {
		path = DefaultPath
	}
	return &Remote{req: req, path: path}
}

// Transcribe uploads a clip. A missing or blank transcript yields
// capture.ErrNoTranscript; everything else that fails wraps ErrConnection.
func (r *Remote) Transcribe(ctx context.Context, a capture.Audio) (string, error) {
	body, err := r.req.PostJSON(ctx, r.path, Request{
		Audio:    base64.StdEncoding.EncodeToString(a.Data),
		Language: a.Language,
		Format:   a.Format,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrConnection, err)
	}
	text, err := Parse(body)
	if err != nil {
		return "", err
	}
	return text, nil
}

// Parse reads a bare {"transcript"} or an enveloped
// {"status","data":{"transcript"},"message"} response.
func Parse(body []byte) (string, error) {
	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: decode response: %w", ErrConnection, err)
	}
	if strings.EqualFold(resp.Status, "error") {
		return "", fmt.Errorf("%w: %s", ErrConnection, resp.Message)
	}
	var text string
	switch {
	case resp.Transcript != nil:
		text = *resp.Transcript
	case resp.Data != nil && resp.Data.Transcript != nil:
		text = *resp.Data.Transcript
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", capture.ErrNoTranscript
	}
	return text, nil
}

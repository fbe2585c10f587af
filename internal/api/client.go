// Package api is the HTTP client for the advisory backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds a single request when the caller sets none.
const DefaultTimeout = 60 * time.Second

// MaxResponseBytes caps a response body.
const MaxResponseBytes = 1 << 20

// ErrResponseTooLarge is returned when a body exceeds MaxResponseBytes.
var ErrResponseTooLarge = errors.New("api: response too large")

const maxErrorRunes = 200

// StatusError is a non-2xx response.
type StatusError struct {
	StatusCode int
	Message    string
	Path       string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api %s: status %d", e.Path, e.StatusCode)
	}
	return fmt.Sprintf("api %s: status %d: %s", e.Path, e.StatusCode, e.Message)
}

// Retryable reports whether the backend may succeed on a later attempt.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client posts JSON to the backend.
type Client struct {
	baseURL    string
	http       *http.Client
	maxRetries int
	retryDelay time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithRetries retries 429/5xx and transport failures n times.
func WithRetries(n int, delay time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = n
		c.retryDelay = delay
	}
}

// New returns a client for baseURL (trailing slash ignored).
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: timeout},
		retryDelay: 500 * time.Millisecond,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// PostJSON marshals payload, posts it to path, and returns the raw body of
// a 2xx response.
func (c *Client) PostJSON(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	url := c.baseURL + "/" + strings.TrimLeft(path, "/")

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			}
		}
		out, err := c.do(ctx, url, path, body)
		if err == nil {
			return out, nil
		}
		lastErr = err
		var se *StatusError
		if (errors.As(err, &se) && !se.Retryable()) || errors.Is(err, ErrResponseTooLarge) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, url, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(data) > MaxResponseBytes {
		return nil, fmt.Errorf("%s: %w", path, ErrResponseTooLarge)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(data), Path: path}
	}
	return data, nil
}

// errorMessage extracts {"message"} or {"error"} from an error body.
func errorMessage(body []byte) string {
	var env struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &env) == nil {
		if env.Message != "" {
			return env.Message
		}
		if env.Error != "" {
			return env.Error
		}
	}
	msg := []rune(strings.TrimSpace(string(body)))
	if len(msg) > maxErrorRunes {
		msg = msg[:maxErrorRunes]
	}
	return string(msg)
}

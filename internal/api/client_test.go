package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"
)

func TestPostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transcribe" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type %q", ct)
		}
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		_, _ = w.Write([]byte(`{"transcript":"` + in["language"] + `"}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", time.Second)
	out, err := c.PostJSON(context.Background(), "transcribe", map[string]string{"language": "ta-IN"})
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"transcript":"ta-IN"}` {
		t.Fatalf("body %s", out)
	}
}

func TestPostJSONStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":"error","message":"audio too short"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second).PostJSON(context.Background(), "/transcribe", struct{}{})
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.StatusCode != 400 || se.Message != "audio too short" || se.Retryable() {
		t.Fatalf("status error %+v", se)
	}
}

func TestPostJSONRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, WithRetries(2, time.Millisecond))
	if _, err := c.PostJSON(context.Background(), "x", nil); err != nil {
		t.Fatalf("retry did not recover: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d", calls.Load())
	}
}

func TestPostJSONRejectsOversizedBody(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(strings.Repeat("a", MaxResponseBytes+10)))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, WithRetries(2, time.Millisecond))
	if _, err := c.PostJSON(context.Background(), "x", nil); !errors.Is(err, ErrResponseTooLarge) {
		t.Fatalf("err = %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("oversized body retried: %d calls", calls.Load())
	}
}

func TestErrorMessageTruncatesOnRunes(t *testing.T) {
	body := strings.Repeat("क", 300)
	msg := errorMessage([]byte(body))
	if !utf8.ValidString(msg) || utf8.RuneCountInString(msg) != 200 {
		t.Fatalf("message %d runes, valid=%v", utf8.RuneCountInString(msg), utf8.ValidString(msg))
	}
}

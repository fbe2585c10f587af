package control

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"kisanvoice/internal/config"
	"kisanvoice/internal/playback"
)

// fakeDaemon answers one request per connection with reply(req).
func fakeDaemon(t *testing.T, reply func(Request) any) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "kv")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	sock := filepath.Join(dir, "d.sock")
	ln, err := net.Listen("unix", sock)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			sc := bufio.NewScanner(conn)
			if sc.Scan() {
				var req Request
				_ = json.Unmarshal(sc.Bytes(), &req)
				_ = json.NewEncoder(conn).Encode(reply(req))
			}
			_ = conn.Close()
		}
	}()
	return sock
}

func TestCallRoundTrip(t *testing.T) {
	var got Request
	sock := fakeDaemon(t, func(r Request) any {
		got = r
		return SpeakResult{Key: r.Message.Key(), Speaking: true}
	})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	var res SpeakResult
	msg := &playback.Message{ID: "m7", Content: "Water daily.", DetectedLanguage: "ta"}
	if err := Call(ctx, sock, Request{Op: OpSpeak, Message: msg}, &res); err != nil {
		t.Fatal(err)
	}
	if !res.Speaking || res.Key != "m7" || got.Message.DetectedLanguage != "ta" {
		t.Fatalf("res %+v req %+v", res, got)
	}
}

func TestCallWithoutDaemon(t *testing.T) {
	err := Call(context.Background(), filepath.Join(t.TempDir(), "none.sock"), Request{Op: OpHealth}, &SimpleResponse{})
	if err == nil || !strings.Contains(err.Error(), "cannot connect") {
		t.Fatalf("err = %v", err)
	}
}

func writeConfig(t *testing.T, socket string) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	cfg, err := config.Default()
	if err != nil {
		t.Fatal(err)
	}
	cfg.Paths.SocketPath = socket
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.Save(cfg, path); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestListenWaitPrintsTranscript(t *testing.T) {
	sock := fakeDaemon(t, func(r Request) any {
		if r.Op != OpListen || !r.Wait || r.Lang != "mr-IN" {
			return ListenResult{OK: false, Error: "unexpected request"}
		}
		return ListenResult{OK: true, Transcript: "कांद्याला पाणी किती द्यावे", Lang: r.Lang}
	})
	cfgPath := writeConfig(t, sock)
	cmd := NewListenCmd(&cfgPath)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--wait", "--lang", "mr-IN"})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out.String()) != "कांद्याला पाणी किती द्यावे" {
		t.Fatalf("out %q", out.String())
	}
}

func TestListenSurfacesCaptureError(t *testing.T) {
	sock := fakeDaemon(t, func(Request) any {
		return ListenResult{OK: false, Error: "Microphone permission denied"}
	})
	cfgPath := writeConfig(t, sock)
	cmd := NewListenCmd(&cfgPath)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--wait"})
	if err := cmd.Execute(); err == nil || err.Error() != "Microphone permission denied" {
		t.Fatalf("err = %v", err)
	}
}

func TestSpeakDryRunPrintsChunks(t *testing.T) {
	cfgPath := writeConfig(t, "/nonexistent.sock")
	cmd := NewSpeakCmd(&cfgPath)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--dry-run", "**Apply** neem oil.\n\nWater daily."})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	want := "lang: en-IN\n1. Apply neem oil. Water daily.\n"
	if out.String() != want {
		t.Fatalf("out %q", out.String())
	}
}

func TestDetectCmd(t *testing.T) {
	cmd := NewDetectCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"ਪਾਣੀ ਦਿਓ"})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out.String()) != "pa-IN" {
		t.Fatalf("out %q", out.String())
	}
}

func TestParseEnvPairs(t *testing.T) {
	env, err := parseEnvPairs([]string{"A=1", "B=x=y"})
	if err != nil || env["A"] != "1" || env["B"] != "x=y" {
		t.Fatalf("env %v err %v", env, err)
	}
	if _, err := parseEnvPairs([]string{"novalue"}); err == nil {
		t.Fatalf("bad pair accepted")
	}
}

func TestResolveModel(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, _ := config.Default()
	if got := resolveModel(cfg, "ggml-small-q5_1.bin"); got != filepath.Join(cfg.Paths.StateDir, "models", "ggml-small-q5_1.bin") {
		t.Fatalf("resolved %s", got)
	}
	if got := resolveModel(cfg, "/opt/m.bin"); got != "/opt/m.bin" {
		t.Fatalf("path rewritten: %s", got)
	}
}

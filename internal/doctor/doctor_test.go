package doctor

import (
	"os"
	"path/filepath"
	"testing"

	"kisanvoice/internal/capability"
	"kisanvoice/internal/config"
)

func TestCheckHookExecutable(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "ask.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if r := checkHookExecutable(script); r.Pass {
		t.Fatalf("non-executable script passed")
	}
	_ = os.Chmod(script, 0o755)
	if r := checkHookExecutable(script); !r.Pass {
		t.Fatalf("executable script failed: %s", r.Detail)
	}
	if r := checkHookExecutable(dir); r.Pass {
		t.Fatalf("directory passed")
	}
	if r := checkHookExecutable(""); !r.Pass {
		t.Fatalf("unset hook should not fail")
	}
}

func TestCheckAPIURL(t *testing.T) {
	if !checkAPIURL("http://127.0.0.1:3000").Pass {
		t.Fatalf("valid url rejected")
	}
	for _, bad := range []string{"", "127.0.0.1:3000", "ftp://x"} {
		if checkAPIURL(bad).Pass {
			t.Fatalf("%q accepted", bad)
		}
	}
}

func TestCheckOnDeviceNeverFails(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, _ := config.Default()
	r := checkOnDevice(cfg, capability.Report{WhisperCompiled: false})
	if !r.Pass || r.Detail == "" {
		t.Fatalf("result %+v", r)
	}
}

func TestCheckMicrophone(t *testing.T) {
	if r := checkMicrophone(capability.Report{MicError: "no portaudio"}); r.Pass || r.Detail != "no portaudio" {
		t.Fatalf("result %+v", r)
	}
}

package doctor

import (
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strings"

	"kisanvoice/internal/capability"
	"kisanvoice/internal/config"
)

// Result represents a diagnostic check.
type Result struct {
	Name   string
	Pass   bool
	Detail string
}

// Run executes doctor checks.
func Run(cfg *config.Config) []Result {
	rep := capability.Compute(cfg)
	return []Result{
		checkFile("config path", cfg.Paths.ConfigPath),
		checkOnDevice(cfg, rep),
		checkMicrophone(rep),
		checkAPIURL(cfg.Transcribe.APIURL),
		checkCommand("synth", cfg.Playback.SynthCommand),
		checkCommand("clip player", cfg.Playback.ClipCommand),
		checkHookExecutable(cfg.Hook.Command),
		checkPortAudioPkgConfig(),
	}
}

func checkFile(label, path string) Result {
	if path == "" {
		return Result{Name: label, Pass: false, Detail: "not set"}
	}
	if _, err := os.Stat(os.ExpandEnv(path)); err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	return Result{Name: label, Pass: true, Detail: path}
}

// checkOnDevice never fails: without whisper the remote path is used.
func checkOnDevice(cfg *config.Config, rep capability.Report) Result {
	r := Result{Name: "asr", Pass: true}
	switch {
	case rep.OnDevice:
		r.Detail = "on-device (" + cfg.ASR.ModelPath + ")"
	case !cfg.ASR.Enabled:
		r.Detail = "disabled; remote transcription"
	case !rep.WhisperCompiled:
		r.Detail = "not compiled (build with -tags whisper); remote transcription"
	default:
		r.Detail = "model missing (run setup); remote transcription"
	}
	return r
}

func checkMicrophone(rep capability.Report) Result {
	if rep.Microphone {
		for _, d := range rep.Inputs {
			if d.Default {
				return Result{Name: "microphone", Pass: true, Detail: d.Name}
			}
		}
		return Result{Name: "microphone", Pass: true, Detail: fmt.Sprintf("%d input(s)", len(rep.Inputs))}
	}
	detail := rep.MicError
	if detail == "" {
		detail = "no input devices"
	}
	return Result{Name: "microphone", Pass: false, Detail: detail}
}

func checkAPIURL(raw string) Result {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Result{Name: "api url", Pass: false, Detail: fmt.Sprintf("invalid transcribe.api_url %q", raw)}
	}
	return Result{Name: "api url", Pass: true, Detail: raw}
}

func checkCommand(label, name string) Result {
	if name == "" {
		return Result{Name: label, Pass: false, Detail: "not set"}
	}
	resolved, err := exec.LookPath(os.ExpandEnv(name))
	if err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	return Result{Name: label, Pass: true, Detail: resolved}
}

func checkHookExecutable(cmd string) Result {
	label := "hook.command"
	if cmd == "" {
		return Result{Name: label, Pass: true, Detail: "not set; transcripts stay local"}
	}
	path := os.ExpandEnv(cmd)
	// If contains a path separator, treat as explicit path.
	if strings.Contains(path, "/") || strings.Contains(path, "\\") {
		info, err := os.Stat(path)
		if err != nil {
			return Result{Name: label, Pass: false, Detail: err.Error()}
		}
		if info.IsDir() {
			return Result{Name: label, Pass: false, Detail: "is a directory; set hook.command to an executable file"}
		}
		if info.Mode().Perm()&0o111 == 0 {
			return Result{Name: label, Pass: false, Detail: "not executable; chmod +x or choose another command"}
		}
		return Result{Name: label, Pass: true, Detail: path}
	}
	return checkCommand(label, path)
}

func checkPortAudioPkgConfig() Result {
	pkg, err := exec.LookPath("pkg-config")
	if err != nil {
		return Result{Name: "pkg-config", Pass: false, Detail: "pkg-config not found"}
	}
	versionCmd := exec.Command(pkg, "--modversion", "portaudio-2.0")
	out, err := versionCmd.Output()
	if err != nil {
		return Result{Name: "portaudio", Pass: false, Detail: "portaudio-2.0 not found (apt install portaudio19-dev / brew install portaudio)"}
	}
	return Result{Name: "portaudio", Pass: true, Detail: strings.TrimSpace(string(out))}
}

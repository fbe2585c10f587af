// Package service writes per-user service definitions so the daemon starts
// at login: a launchd plist on macOS, a systemd user unit on Linux.
package service

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"text/template"
)

// DefaultLabel names the launchd job and the systemd unit.
const DefaultLabel = "com.kisanvoice.agent"

const launchdTemplate = `<?xml version='1.0' encoding='UTF-8'?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
  <key>Label</key><string>{{.Label}}</string>
  <key>ProgramArguments</key>
  <array>
    <string>{{.Binary}}</string>
    <string>serve</string>
    <string>--config</string>
    <string>{{.Config}}</string>
  </array>
  <key>RunAtLoad</key><true/>
  <key>KeepAlive</key><dict><key>SuccessfulExit</key><false/></dict>
  <key>StandardOutPath</key><string>{{.Log}}</string>
  <key>StandardErrorPath</key><string>{{.Log}}</string>
  {{- if .Env }}
  <key>EnvironmentVariables</key>
  <dict>
    {{- range $k, $v := .Env }}
    <key>{{$k}}</key><string>{{$v}}</string>
    {{- end }}
  </dict>
  {{- end }}
</dict>
</plist>`

const systemdTemplate = `[Unit]
Description=kisanvoice farm advisory voice daemon
After=sound.target network-online.target

[Service]
ExecStart={{.Binary}} serve --config {{.Config}}
Restart=on-failure
{{- range $k, $v := .Env }}
Environment={{$k}}={{$v}}
{{- end }}

[Install]
WantedBy=default.target
`

type Params struct {
	Label  string
	Binary string
	Config string
	Log    string
	Env    map[string]string
}

// Path returns where the service definition for label lives on this OS.
func Path(label string) string {
	if runtime.GOOS == "darwin" {
		return LaunchdPath(label)
	}
	return SystemdPath(label)
}

// LaunchdPath returns the plist path for a label.
func LaunchdPath(label string) string {
	return filepath.Join(os.Getenv("HOME"), "Library", "LaunchAgents", fmt.Sprintf("%s.plist", label))
}

// SystemdPath returns the user unit path for a label.
func SystemdPath(label string) string {
	return filepath.Join(os.Getenv("HOME"), ".config", "systemd", "user", label+".service")
}

// Write writes the definition appropriate for this OS.
func Write(params Params) (string, error) {
	if runtime.GOOS == "darwin" {
		return WritePlist(params)
	}
	return WriteSystemdUnit(params)
}

// WritePlist writes a user-level launchd plist.
func WritePlist(params Params) (string, error) {
	return write(LaunchdPath(params.Label), launchdTemplate, params)
}

// WriteSystemdUnit writes a systemd user unit.
func WriteSystemdUnit(params Params) (string, error) {
	return write(SystemdPath(params.Label), systemdTemplate, params)
}

func write(path, text string, params Params) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	tpl := template.Must(template.New(filepath.Base(path)).Parse(text))
	if err := tpl.Execute(f, params); err != nil {
		return "", err
	}
	return path, nil
}

// Status returns the definition path and whether it exists.
func Status(label string) (string, bool) {
	p := Path(label)
	if _, err := os.Stat(p); err == nil {
		return p, true
	}
	return p, false
}

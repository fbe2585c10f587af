package main

import (
	"fmt"
	"os"

	"kisanvoice/internal/control"
	"kisanvoice/internal/daemon"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	root := &cobra.Command{
		Use:   "kisanvoice",
		Short: "kisanvoice: multilingual voice front end for a farm advisory assistant",
		Long: `kisanvoice captures a farmer's spoken question (on-device with whisper.cpp, or by recording
and uploading to the advisory API), and reads replies aloud in the reply's language,
one short chunk at a time.

Key commands:
  start|stop|restart                 Daemon lifecycle
  listen [--lang] [--wait]           Capture one question
  stop-listening                     End the current capture
  speak "text" [--id] [--lang]       Toggle reading a reply aloud
  status [--json]                    Capture/playback state + last transcripts
  mic list|set                       Select microphone
  doctor|setup                       Check deps / download default model
  models list|download|set           Manage whisper.cpp models
  service install|uninstall|status   launchd / systemd --user helper
  health|reload|tail-log|test-hook   Liveness, hook reload, log tail, manual hook

Notable flags/env:
  --http-addr <addr>        Enable /metrics, /api and /ws/state
  --remote-only             Always record and upload for transcription
  Env overrides: KISANVOICE_API_URL, KISANVOICE_LANGUAGE, KISANVOICE_METRICS_ADDR,
                 KISANVOICE_ASR_ENABLED, KISANVOICE_LOG_LEVEL/FORMAT,
                 KISANVOICE_TRANSCRIPTS_ENABLED, KISANVOICE_REDACT_PII`,
		Example: `  kisanvoice start --http-addr 127.0.0.1:9318 --lang hi-IN
  kisanvoice listen --wait --lang ta-IN
  kisanvoice speak --id r1 "नीम का तेल छिड़कें। रोज़ पानी दें।"
  kisanvoice speak --dry-run "**Apply** neem oil. Water daily."
  kisanvoice mic set --index 1
  kisanvoice models download ggml-small-q5_1.bin
  kisanvoice transcribe --remote question.wav`,
		DisableFlagsInUseLine: true,
	}

	root.Version = version
	root.SetVersionTemplate("kisanvoice v{{.Version}}\n")

	cfgPath := root.PersistentFlags().StringP("config", "c", "", "Path to config file (TOML). Defaults to ~/.config/kisanvoice/config.toml")
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(daemon.NewStartCmd(cfgPath))
	root.AddCommand(daemon.NewStopCmd(cfgPath))
	root.AddCommand(daemon.NewRestartCmd(cfgPath))
	root.AddCommand(control.NewStatusCmd(cfgPath))
	root.AddCommand(control.NewListenCmd(cfgPath))
	root.AddCommand(control.NewStopListeningCmd(cfgPath))
	root.AddCommand(control.NewSpeakCmd(cfgPath))
	root.AddCommand(control.NewDetectCmd())
	root.AddCommand(control.NewTranscribeCmd(cfgPath))
	root.AddCommand(control.NewMicCmd(cfgPath))
	root.AddCommand(control.NewModelsCmd(cfgPath))
	root.AddCommand(control.NewSetupCmd(cfgPath))
	root.AddCommand(control.NewConfigCmd(cfgPath))
	root.AddCommand(control.NewDoctorCmd(cfgPath))
	root.AddCommand(control.NewServiceCmd(cfgPath))
	root.AddCommand(control.NewHealthCmd(cfgPath))
	root.AddCommand(control.NewReloadCmd(cfgPath))
	root.AddCommand(control.NewTailLogCmd(cfgPath))
	root.AddCommand(control.NewTestHookCmd(cfgPath))

	// Hidden internal serve command used by start and the service definition.
	root.AddCommand(daemon.NewServeCmd(cfgPath))

	applyColorHelp(root)

	return root.Execute()
}

func applyColorHelp(root *cobra.Command) {
	const (
		boldGreen = "\033[1;32m"
		green     = "\033[32m"
		bold      = "\033[1m"
		dim       = "\033[2m"
		reset     = "\033[0m"
	)
	defaultHelp := root.HelpFunc()
	root.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if cmd != root {
			defaultHelp(cmd, args)
			return
		}
		out := cmd.OutOrStdout()
		write := func(format string, args ...any) { _, _ = fmt.Fprintf(out, format, args...) }
		writeln := func(line string) { _, _ = fmt.Fprintln(out, line) }

		write("%skisanvoice%s: voice front end for farm advisory %s(v%s)%s\n", boldGreen, reset, dim, version, reset)
		write("%sListens in the farmer's language and reads replies aloud in theirs.%s\n\n", dim, reset)

		write("%sUsage%s\n", bold, reset)
		write("  kisanvoice [command] [flags]\n\n")

		write("%sNotable flags & env%s\n", bold, reset)
		writeln("  --http-addr <addr>      enable /metrics, /api, /ws/state")
		writeln("  --remote-only           skip on-device recognition")
		writeln("  -c, --config <path>     config file (default ~/.config/kisanvoice/config.toml)")
		writeln("  Env: KISANVOICE_API_URL=http://host:3000, KISANVOICE_LANGUAGE=hi-IN,")
		writeln("       KISANVOICE_LOG_LEVEL=debug, KISANVOICE_LOG_FORMAT=json,")
		writeln("       KISANVOICE_TRANSCRIPTS_ENABLED=0, KISANVOICE_REDACT_PII=1")
		writeln("")

		write("%sExamples%s\n", bold, reset)
		writeln("  kisanvoice start --http-addr 127.0.0.1:9318 --lang hi-IN")
		writeln("  kisanvoice listen --wait --lang ta-IN")
		writeln("  kisanvoice speak --id r1 \"Apply neem oil. Water daily.\"")
		writeln("  kisanvoice mic list")
		writeln("  kisanvoice models download ggml-small-q5_1.bin")
		writeln("")

		write("%sCommands%s\n", bold, reset)
		for _, c := range cmd.Commands() {
			if c.Hidden {
				continue
			}
			write("  %s%-15s%s %s\n", green, c.Name(), reset, c.Short)
		}
	})
}

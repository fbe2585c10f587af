package control

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"kisanvoice/internal/config"
	"kisanvoice/internal/doctor"
	"kisanvoice/internal/hook"
	"kisanvoice/internal/langdetect"
	"kisanvoice/internal/logging"
	"kisanvoice/internal/playback"
	"kisanvoice/internal/textprep"

	"github.com/spf13/cobra"
)

const callTimeout = 5 * time.Second

// daemonCall loads config and sends one request to the running daemon.
func daemonCall(cfgPath string, timeout time.Duration, req Request, out any) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return Call(ctx, cfg.Paths.SocketPath, req, out)
}

// NewStatusCmd queries daemon status.
func NewStatusCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var status Status
			if err := daemonCall(*cfgPath, callTimeout, Request{Op: OpStatus}, &status); err != nil {
				return err
			}
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(status)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "running: %v\nuptime: %.1fs\nbackend: %s\n", status.Running, status.UptimeSec, status.Backend)
			if c := status.Capture; c.Listening {
				fmt.Fprintf(out, "capture: %s (%s, %s)\n", c.Phase, c.Backend, c.Language)
			} else if c.Error != "" {
				fmt.Fprintf(out, "capture: idle (last error: %s)\n", c.Error)
			} else {
				fmt.Fprintln(out, "capture: idle")
			}
			if len(status.Speaking) > 0 {
				fmt.Fprintf(out, "speaking: %s\n", strings.Join(status.Speaking, ", "))
			}
			for _, t := range status.Transcripts {
				fmt.Fprintf(out, "%s  [%s] %s\n", t.Timestamp.Format("15:04:05"), t.Lang, t.Text)
			}
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "output JSON")
	return cmd
}

// NewHealthCmd pings the control socket.
func NewHealthCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Ping the daemon over the control socket",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp SimpleResponse
			if err := daemonCall(*cfgPath, callTimeout, Request{Op: OpHealth}, &resp); err != nil {
				return err
			}
			if !resp.OK {
				return fmt.Errorf("unhealthy: %s", resp.Message)
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			return nil
		},
	}
}

// NewReloadCmd asks the daemon to reload config.
func NewReloadCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Reload hook settings in the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp SimpleResponse
			if err := daemonCall(*cfgPath, callTimeout, Request{Op: OpReload}, &resp); err != nil {
				return err
			}
			if !resp.OK {
				return fmt.Errorf("reload failed: %s", resp.Message)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "reload ok:", resp.Message)
			return nil
		},
	}
}

// NewListenCmd starts a capture session in the daemon.
func NewListenCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Start listening for one spoken question",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			lang, _ := cmd.Flags().GetString("lang")
			wait, _ := cmd.Flags().GetBool("wait")
			timeout := callTimeout
			if wait {
				timeout = cfg.CaptureTimeout() + cfg.TranscribeTimeout() + 10*time.Second
			}
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			var res ListenResult
			if err := Call(ctx, cfg.Paths.SocketPath, Request{Op: OpListen, Lang: lang, Wait: wait}, &res); err != nil {
				return err
			}
			if !res.OK {
				return fmt.Errorf("%s", res.Error)
			}
			if !wait {
				fmt.Fprintf(cmd.OutOrStdout(), "listening (%s)\n", res.Lang)
				return nil
			}
			if res.Transcript == "" {
				return fmt.Errorf("no transcript")
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Transcript)
			return nil
		},
	}
	cmd.Flags().String("lang", "", "capture language (default capture.language)")
	cmd.Flags().Bool("wait", false, "block until the transcript arrives and print it")
	return cmd
}

// NewStopListeningCmd ends the current capture session.
func NewStopListeningCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stop-listening",
		Short: "Stop the current capture session",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp SimpleResponse
			if err := daemonCall(*cfgPath, callTimeout, Request{Op: OpStop}, &resp); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			return nil
		},
	}
}

// NewSpeakCmd toggles reading a message aloud.
func NewSpeakCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "speak \"text\"",
		Short: "Read a reply aloud (run again with the same --id to stop)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg := playback.Message{}
			msg.ID, _ = cmd.Flags().GetString("id")
			msg.AudioURL, _ = cmd.Flags().GetString("audio-url")
			msg.DetectedLanguage, _ = cmd.Flags().GetString("lang")
			if len(args) == 1 {
				msg.Content = args[0]
			}
			if msg.Content == "" && msg.AudioURL == "" {
				return fmt.Errorf("text or --audio-url required")
			}
			if dry, _ := cmd.Flags().GetBool("dry-run"); dry {
				return printPlan(cmd, *cfgPath, msg)
			}
			var res SpeakResult
			if err := daemonCall(*cfgPath, callTimeout, Request{Op: OpSpeak, Message: &msg}, &res); err != nil {
				return err
			}
			state := "stopped"
			if res.Speaking {
				state = "speaking"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", res.Key, state)
			return nil
		},
	}
	cmd.Flags().String("id", "", "message id used to toggle playback")
	cmd.Flags().String("lang", "", "language tag; detected from the script when empty")
	cmd.Flags().String("audio-url", "", "pre-rendered clip to play instead of synthesis")
	cmd.Flags().Bool("dry-run", false, "print language and chunks without speaking")
	return cmd
}

// printPlan shows what playback would speak for msg.
func printPlan(cmd *cobra.Command, cfgPath string, msg playback.Message) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if msg.AudioURL != "" {
		fmt.Fprintf(out, "clip: %s\n", msg.AudioURL)
		return nil
	}
	lang := langdetect.Detect(msg.Content)
	if msg.DetectedLanguage != "" {
		lang = langdetect.Regional(msg.DetectedLanguage)
	}
	fmt.Fprintf(out, "lang: %s\n", lang)
	for i, c := range textprep.Prepare(msg.Content, cfg.Playback.ChunkChars) {
		fmt.Fprintf(out, "%d. %s\n", i+1, c)
	}
	return nil
}

// NewDetectCmd prints the language detected from text's script.
func NewDetectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect \"text\"",
		Short: "Detect reply language from its script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), langdetect.Detect(args[0]))
			return nil
		},
	}
}

// NewTailLogCmd tails the main log file (simple last N lines).
func NewTailLogCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tail-log",
		Short: "Show last log lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			n, _ := cmd.Flags().GetInt("lines")
			return tailFile(cmd, cfg.Paths.LogPath, n)
		},
	}
	cmd.Flags().IntP("lines", "n", 50, "number of lines")
	return cmd
}

func tailFile(cmd *cobra.Command, path string, n int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	lines := strings.Split(string(data), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			fmt.Fprintln(cmd.OutOrStdout(), l)
		}
	}
	return nil
}

// NewTestHookCmd triggers hook manually.
func NewTestHookCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test-hook \"some text\"",
		Short: "Send sample text through hook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			logger, err := logging.Configure(cfg)
			if err != nil {
				return err
			}
			lang, _ := cmd.Flags().GetString("lang")
			if lang == "" {
				lang = langdetect.DetectOr(args[0], cfg.Capture.Language)
			}
			r := hook.NewRunner(cfg, logger)
			job := hook.Job{Text: args[0], Lang: lang, Timestamp: time.Now()}
			return r.Run(cmd.Context(), job)
		},
	}
	cmd.Flags().String("lang", "", "language passed as KISANVOICE_LANG")
	return cmd
}

// NewDoctorCmd runs environment checks.
func NewDoctorCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check dependencies and config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			results := doctor.Run(cfg)
			failed := false
			for _, r := range results {
				status := "ok"
				if !r.Pass {
					status = "fail"
					failed = true
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %-4s %s\n", r.Name, status, r.Detail)
			}
			if failed {
				return fmt.Errorf("doctor found issues")
			}
			return nil
		},
	}
}

// NewServiceCmd manages the per-user service definition.
func NewServiceCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage login service (launchd on macOS, systemd --user on Linux)",
	}
	cmd.AddCommand(newServiceInstallCmd(cfgPath))
	cmd.AddCommand(newServiceUninstallCmd())
	cmd.AddCommand(newServiceStatusCmd())
	return cmd
}

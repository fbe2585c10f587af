package control

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"kisanvoice/internal/api"
	"kisanvoice/internal/asr"
	"kisanvoice/internal/audio"
	"kisanvoice/internal/capture"
	"kisanvoice/internal/config"
	"kisanvoice/internal/hook"
	"kisanvoice/internal/langdetect"
	"kisanvoice/internal/logging"
	"kisanvoice/internal/transcribe"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewTranscribeCmd transcribes a WAV file on-device or through the advisory
// API and optionally fires the hook.
func NewTranscribeCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcribe <wavfile>",
		Short: "Transcribe a WAV file",
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
				lang = cfg.Capture.Language
			}
			lang = langdetect.Regional(lang)
			remote, _ := cmd.Flags().GetBool("remote")
			if !remote && !asr.Compiled {
				logger.Info("on-device recognition not compiled; using remote transcription")
				remote = true
			}

			var txt string
			if remote {
				txt, err = transcribeRemote(cmd.Context(), cfg, args[0], lang)
			} else {
				txt, err = transcribeLocal(cfg, logger, args[0], lang)
			}
			if err != nil {
				return err
			}
			txt = strings.TrimSpace(txt)
			fmt.Fprintln(cmd.OutOrStdout(), txt)

			if wantHook, _ := cmd.Flags().GetBool("hook"); !wantHook {
				return nil
			}
			r := hook.NewRunner(cfg, logger)
			if !r.Accept(txt) {
				return fmt.Errorf("skipped: text shorter than hook.min_chars=%d", cfg.Hook.MinChars)
			}
			return r.Run(cmd.Context(), hook.Job{Text: txt, Lang: lang, Timestamp: time.Now()})
		},
	}
	cmd.Flags().String("lang", "", "language tag (default capture.language)")
	cmd.Flags().Bool("remote", false, "send the file to the transcription API instead of whisper")
	cmd.Flags().Bool("hook", false, "also send through configured hook")
	return cmd
}

func transcribeLocal(cfg *config.Config, logger *logrus.Logger, path, lang string) (string, error) {
	samples, err := audio.DecodeWAV(path, cfg.Audio.SampleRate)
	if err != nil {
		return "", err
	}
	rec, err := asr.New(asr.OptionsFromConfig(cfg), logger)
	if err != nil {
		return "", err
	}
	defer func() { _ = rec.Close() }()
	return rec.Transcribe(samples, lang)
}

func transcribeRemote(ctx context.Context, cfg *config.Config, path, lang string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.TranscribeTimeout())
	defer cancel()
	client := api.New(cfg.Transcribe.APIURL, cfg.TranscribeTimeout())
	r := transcribe.NewRemote(client, cfg.Transcribe.Path)
	txt, err := r.Transcribe(ctx, capture.Audio{Data: data, Format: audio.MimeWAV, Language: lang})
	if err != nil {
		return "", fmt.Errorf("%s: %w", capture.KindForTranscribeError(err).Message(), err)
	}
	return txt, nil
}

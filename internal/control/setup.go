package control

import (
	"fmt"
	"os"
	"path/filepath"

	"kisanvoice/internal/config"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

// NewSetupCmd writes the config template and downloads the default model if missing.
func NewSetupCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Write default config and download the whisper model if missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "config:", cfg.Paths.ConfigPath)
			modelPath := os.ExpandEnv(cfg.ASR.ModelPath)
			if _, err := os.Stat(modelPath); err == nil {
				fmt.Fprintln(out, "model already present at", modelPath)
				return nil
			}
			url, ok := modelRegistry[filepath.Base(modelPath)]
			if !ok {
				return fmt.Errorf("model %s missing and not in registry; use models download", modelPath)
			}
			if err := download(cmd.Context(), out, url, modelPath); err != nil {
				return err
			}
			fmt.Fprintln(out, "model download complete")
			return nil
		},
	}
}

// NewConfigCmd prints the effective config after .env and env overrides.
func NewConfigCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			out, err := toml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", cfg.Paths.ConfigPath, out)
			return nil
		},
	}
}

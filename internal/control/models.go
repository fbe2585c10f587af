package control

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"kisanvoice/internal/config"

	"github.com/spf13/cobra"
)

const modelBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

// multilingual ggml models; English-only variants cannot recognise Indic speech.
var modelRegistry = map[string]string{
	"ggml-small-q5_1.bin":          modelBaseURL + "ggml-small-q5_1.bin",
	"ggml-medium-q5_0.bin":         modelBaseURL + "ggml-medium-q5_0.bin",
	"ggml-large-v3-q5_0.bin":       modelBaseURL + "ggml-large-v3-q5_0.bin",
	"ggml-large-v3-turbo-q8_0.bin": modelBaseURL + "ggml-large-v3-turbo-q8_0.bin",
	"ggml-large-v3-turbo.bin":      modelBaseURL + "ggml-large-v3-turbo.bin",
}

func modelsDir(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.StateDir, "models")
}

// resolveModel turns a registry name into a path under the models dir;
// anything containing a separator is taken as a path.
func resolveModel(cfg *config.Config, val string) string {
	if strings.ContainsRune(val, os.PathSeparator) {
		return val
	}
	return filepath.Join(modelsDir(cfg), val)
}

// download fetches url into dest through a .part file.
func download(ctx context.Context, out io.Writer, url, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	fmt.Fprintf(out, "downloading %s -> %s\n", url, dest)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: %s", resp.Status)
	}
	tmp := dest + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, dest)
}

// NewModelsCmd wires up the models subcommands (list/download/set).
func NewModelsCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List/download/set whisper models",
	}
	cmd.AddCommand(newModelsListCmd(cfgPath))
	cmd.AddCommand(newModelsDownloadCmd(cfgPath))
	cmd.AddCommand(newModelsSetCmd(cfgPath))
	return cmd
}

func newModelsListCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known models and those present locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			local := map[string]bool{}
			entries, _ := os.ReadDir(modelsDir(cfg))
			for _, e := range entries {
				if !e.IsDir() {
					local[e.Name()] = true
				}
			}
			names := make([]string, 0, len(modelRegistry))
			for n := range modelRegistry {
				names = append(names, n)
			}
			sort.Strings(names)
			for _, n := range names {
				mark := ""
				if local[n] {
					mark = " (downloaded)"
				}
				if resolveModel(cfg, n) == cfg.ASR.ModelPath {
					mark += " (active)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "- %s%s\n", n, mark)
			}
			return nil
		},
	}
}

func newModelsDownloadCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "download <model>",
		Short: "Download a model from the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			url, ok := modelRegistry[args[0]]
			if !ok {
				return fmt.Errorf("unknown model %q; run models list", args[0])
			}
			return download(cmd.Context(), cmd.OutOrStdout(), url, resolveModel(cfg, args[0]))
		},
	}
}

func newModelsSetCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "set <model-name-or-path>",
		Short: "Set asr.model_path in config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			cfg.ASR.ModelPath = resolveModel(cfg, args[0])
			if err := config.Save(cfg, cfg.Paths.ConfigPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "model set to %s\n", cfg.ASR.ModelPath)
			return nil
		},
	}
}

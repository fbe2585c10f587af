package control

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"kisanvoice/internal/config"
	"kisanvoice/internal/service"

	"github.com/spf13/cobra"
)

func newServiceInstallCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install the user service definition",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			exe, err := os.Executable()
			if err != nil {
				return err
			}
			envPairs, _ := cmd.Flags().GetStringArray("env")
			env, err := parseEnvPairs(envPairs)
			if err != nil {
				return err
			}
			params := service.Params{
				Label:  service.DefaultLabel,
				Binary: exe,
				Config: cfg.Paths.ConfigPath,
				Log:    cfg.Paths.LogPath,
				Env:    env,
			}
			path, err := service.Write(params)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "service definition written: %s\n", path)
			if runtime.GOOS == "darwin" {
				fmt.Fprintln(out, "Load:   launchctl load -w", path)
				fmt.Fprintf(out, "Start:  launchctl kickstart gui/$(id -u)/%s\n", params.Label)
				fmt.Fprintf(out, "Stop:   launchctl bootout gui/$(id -u)/%s\n", params.Label)
				return nil
			}
			fmt.Fprintln(out, "Enable: systemctl --user daemon-reload && systemctl --user enable --now", params.Label)
			fmt.Fprintln(out, "Stop:   systemctl --user stop", params.Label)
			return nil
		},
	}
	cmd.Flags().StringArray("env", nil, "Env to set in the service (KEY=VAL)")
	return cmd
}

func parseEnvPairs(pairs []string) (map[string]string, error) {
	env := make(map[string]string)
	for _, p := range pairs {
		parts := strings.SplitN(p, "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			return nil, fmt.Errorf("bad env %q, want KEY=VAL", p)
		}
		env[parts[0]] = parts[1]
	}
	return env, nil
}

func newServiceUninstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the user service definition",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := service.Path(service.DefaultLabel)
			_ = os.Remove(path)
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s (if present); stop the running job manually\n", path)
			return nil
		},
	}
}

func newServiceStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show service definition path and whether it exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, ok := service.Status(service.DefaultLabel)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "definition: %s\n", path)
			if ok {
				fmt.Fprintln(out, "status: present")
			} else {
				fmt.Fprintln(out, "status: missing (install via: kisanvoice service install)")
			}
			return nil
		},
	}
}

package control

import (
	"encoding/json"
	"fmt"
	"strconv"

	"kisanvoice/internal/audio"
	"kisanvoice/internal/config"

	"github.com/spf13/cobra"
)

// NewMicCmd groups mic subcommands.
func NewMicCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "mic",
		Aliases: []string{"microphone", "mics"},
		Short:   "Microphone management",
	}
	cmd.AddCommand(newMicListCmd())
	cmd.AddCommand(newMicSetCmd(cfgPath))
	return cmd
}

func newMicListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available microphones",
		RunE: func(cmd *cobra.Command, args []string) error {
			devs, err := audio.ListInputs()
			if err != nil {
				return err
			}
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(devs)
			}
			for _, d := range devs {
				defMark := ""
				if d.Default {
					defMark = " (default)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[%d] %s%s (in %d ch, latency %.2fms)\n", d.Index, d.Name, defMark, d.Channels, d.LatencyMs)
			}
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "output JSON")
	return cmd
}

func newMicSetCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set [name]",
		Short: "Set microphone device in config by name or --index",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			if idx, _ := cmd.Flags().GetString("index"); idx != "" {
				name, err = micNameByIndex(idx)
				if err != nil {
					return err
				}
			}
			if name == "" {
				return fmt.Errorf("device name or --index required")
			}
			cfg.Audio.DeviceName = name
			if err := config.Save(cfg, cfg.Paths.ConfigPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "mic set to %q in %s\n", name, cfg.Paths.ConfigPath)
			return nil
		},
	}
	cmd.Flags().String("index", "", "device index from mic list")
	return cmd
}

func micNameByIndex(raw string) (string, error) {
	idx, err := strconv.Atoi(raw)
	if err != nil {
		return "", fmt.Errorf("bad index %q", raw)
	}
	devs, err := audio.ListInputs()
	if err != nil {
		return "", err
	}
	for _, d := range devs {
		if d.Index == idx {
			return d.Name, nil
		}
	}
	return "", fmt.Errorf("no input device with index %d", idx)
}

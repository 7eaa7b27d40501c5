package agentcli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/inputplumber/inputplumber/internal/manager"
	"github.com/inputplumber/inputplumber/pkg/agent"
)

func Main(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	dir, err := os.UserConfigDir()
	if err != nil {
		return err
	}
	cmd := NewRootCmd(filepath.Join(dir, "inputplumber"))
	cmd.SetArgs(args)
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	return cmd.ExecuteContext(ctx)
}

type agentProvider func() *agent.Agent

func NewRootCmd(configDir string) *cobra.Command {
	cfg := agent.Config{
		DataDir:     filepath.Join(configDir, "data"),
		DevicesDirs: []string{"/usr/share/inputplumber/devices", filepath.Join(configDir, "devices.d")},
	}
	agentCmd := &cobra.Command{
		Use:   "inputplumberd",
		Short: "InputPlumber daemon",
		Long:  `InputPlumber composes kernel input devices into virtual gamepads, mice, keyboards and touch devices.`,
	}
	var a *agent.Agent
	provider := func() *agent.Agent {
		return a
	}
	agentCmd.PersistentFlags().StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "data directory")
	agentCmd.PersistentFlags().StringSliceVar(&cfg.DevicesDirs, "devices-dir", cfg.DevicesDirs, "composite device configuration directories, in priority order")
	agentCmd.PersistentFlags().BoolVar(&cfg.NoDBus, "no-dbus", cfg.NoDBus, "disable D-Bus export")
	agentCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		a, err = agent.NewAgent(cfg)
		return err
	}
	agentCmd.AddCommand(NewRun(provider))
	agentCmd.AddCommand(NewListDevices(provider))
	agentCmd.AddCommand(NewListSources(provider))
	agentCmd.AddCommand(NewListTargets(provider))
	agentCmd.AddCommand(NewSupportedTargets())
	return agentCmd
}

func NewRun(agent agentProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the InputPlumber daemon",
		Long:  `Run the InputPlumber daemon in the foreground until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return agent().Run(cmd.Context())
		},
	}
}

func NewListDevices(agent agentProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "list-devices",
		Short: "List running composite devices",
		Long:  `List the composite devices currently running, by name.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			names := agent().Manager().ListComposites()
			return printJSON(cmd, names)
		},
	}
}

// NewListSources lists every kernel source node currently grabbed by a
// running composite, mirroring the original implementation's `sources
// list` command.
func NewListSources(agent agentProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "list-sources",
		Short: "List discovered source devices",
		Long:  `List the kernel source devices currently claimed by a running composite device.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd, agent().Manager().ListSources())
		},
	}
}

// NewListTargets lists every target device configured on a running
// composite, mirroring the original implementation's `targets list` command.
func NewListTargets(agent agentProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "list-targets",
		Short: "List running target devices",
		Long:  `List the virtual target devices currently created by a running composite device.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd, agent().Manager().ListTargets())
		},
	}
}

// NewSupportedTargets lists every target_devices "kind" the daemon knows how
// to build, mirroring the original implementation's `targets
// supported-devices` command. It needs no running agent, since the set is
// static.
func NewSupportedTargets() *cobra.Command {
	return &cobra.Command{
		Use:   "supported-targets",
		Short: "List supported target device kinds",
		Long:  `List every target device kind this daemon knows how to create.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd, manager.SupportedTargetKinds())
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	jsonB, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(jsonB))
	return nil
}

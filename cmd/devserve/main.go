package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	if err := buildRoot().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds the persistent flags shared by all commands.
type GlobalFlags struct {
	ConfigPath string
}

func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	devserveCommand := command{}

	root := createRootCommand(globalFlags)
	root.AddCommand(
		createServeCommand(globalFlags),
		createProjectCommand(globalFlags),
		createStartCommand(devserveCommand),
		createStopCommand(devserveCommand),
		createRestartCommand(devserveCommand),
		createStatusCommand(devserveCommand),
	)
	return root
}

func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "devserve",
		Short: "Dev-project process lifecycle manager",
		Long: `Devserve manages frontend/backend dev servers per project: port
discovery, process-tree termination and restart with sibling recovery.

Examples:
  devserve serve                                   # Start daemon
  devserve project add webshop --path=/srv/webshop
  devserve start webshop
  devserve restart webshop --target=backend --force-ports
  devserve status webshop --api-url=http://remote:7466`,
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	return root
}

func addClientFlags(cmd *cobra.Command, flags *LifecycleFlags) {
	cmd.Flags().StringVar(&flags.APIUrl, "api-url", "", "daemon URL (default http://127.0.0.1:7466)")
	cmd.Flags().DurationVar(&flags.APITimeout, "api-timeout", 30*time.Second, "request timeout")
}

func addScopeFlags(cmd *cobra.Command, flags *LifecycleFlags) {
	cmd.Flags().StringVar(&flags.Target, "target", "", "limit to one role: frontend or backend (default both)")
	cmd.Flags().BoolVar(&flags.ForcePorts, "force-ports", false, "also kill whatever still holds the stopped roles' ports")
	cmd.Flags().BoolVar(&flags.WaitForRelease, "wait", false, "pause briefly after stopping so the OS releases the ports")
}

func createStartCommand(devserveCommand command) *cobra.Command {
	flags := &LifecycleFlags{}
	cmd := &cobra.Command{
		Use:   "start <project-id>",
		Short: "Start a project's dev servers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return devserveCommand.Start(args[0], flags)
		},
	}
	addClientFlags(cmd, flags)
	return cmd
}

func createStopCommand(devserveCommand command) *cobra.Command {
	flags := &LifecycleFlags{}
	cmd := &cobra.Command{
		Use:   "stop <project-id>",
		Short: "Stop a project's dev servers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return devserveCommand.Stop(args[0], flags)
		},
	}
	addClientFlags(cmd, flags)
	addScopeFlags(cmd, flags)
	return cmd
}

func createRestartCommand(devserveCommand command) *cobra.Command {
	flags := &LifecycleFlags{}
	cmd := &cobra.Command{
		Use:   "restart <project-id>",
		Short: "Restart a project's dev servers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return devserveCommand.Restart(args[0], flags)
		},
	}
	addClientFlags(cmd, flags)
	addScopeFlags(cmd, flags)
	return cmd
}

func createStatusCommand(devserveCommand command) *cobra.Command {
	flags := &LifecycleFlags{}
	cmd := &cobra.Command{
		Use:   "status <project-id>",
		Short: "Show a project's lifecycle state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return devserveCommand.Status(args[0], flags)
		},
	}
	addClientFlags(cmd, flags)
	return cmd
}

// Package command wires the claw CLI.
package command

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const AppName = "claw"

// Version is overwritten at build time using -ldflags.
var Version = "dev"

func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           AppName,
		Short:         "Claw - relay between a chat gateway and the claude CLI",
		Long: `Claw connects a chat conversation to the claude CLI. It keeps per-conversation
sessions across restarts, runs cron-scheduled prompts, and performs periodic
heartbeat check-ins against a checklist.

Configuration is read from CLAW_* environment variables; see 'claw run --help'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.Version = version
	cmd.SetVersionTemplate(AppName + " version {{.Version}}\n")
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.AddCommand(NewRunCmd())

	return cmd
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := NewRootCmd(Version).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

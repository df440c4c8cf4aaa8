// Package cli is the cobra command surface. `run` starts the daemon in the
// foreground; every other command is a thin client against the daemon's
// local HTTP mirror, so manual triggers land on the same worker queue as
// scheduled ones.
package cli

import (
	"github.com/spf13/cobra"
)

// Dependencies carries the flags shared by all commands.
type Dependencies struct {
	ConfigPath string
	Addr       string // daemon mirror address, host:port
}

func NewRootCmd(version string) *cobra.Command {
	deps := &Dependencies{}

	rootCmd := &cobra.Command{
		Use:           "zoompollmaster",
		Short:         "Automated poll generation for Zoom meetings",
		Long:          "Captures meeting transcript segments on a schedule, turns them into four-option polls and posts them back into the meeting, unattended.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.Version = version
	rootCmd.PersistentFlags().StringVarP(&deps.ConfigPath, "config", "c", "config.yaml", "path to the config file")
	rootCmd.PersistentFlags().StringVar(&deps.Addr, "addr", "127.0.0.1:8787", "address of the running daemon's HTTP mirror")

	rootCmd.AddCommand(NewRunCmd(deps))
	rootCmd.AddCommand(NewJoinCmd(deps))
	rootCmd.AddCommand(NewLeaveCmd(deps))
	rootCmd.AddCommand(NewStartCmd(deps))
	rootCmd.AddCommand(NewStopCmd(deps))
	rootCmd.AddCommand(NewCaptureCmd(deps))
	rootCmd.AddCommand(NewGenerateCmd(deps))
	rootCmd.AddCommand(NewPostCmd(deps))
	rootCmd.AddCommand(NewStatusCmd(deps))
	rootCmd.AddCommand(NewConfigCmd(deps))
	rootCmd.AddCommand(NewExportLogsCmd(deps))

	return rootCmd
}

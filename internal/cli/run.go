package cli

import (
	"github.com/spf13/cobra"

	"github.com/Srinivas26k/ZoomPollMaster/internal/core"
)

func NewRunCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground",
		Long:  "Loads the configuration, connects the automation driver and runs the scheduler until interrupted. Set SESSION_SECRET to enable the local HTTP mirror the other commands talk to.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := core.New(deps.ConfigPath)
			if err != nil {
				return err
			}
			return app.Run(cmd.Context())
		},
	}
}

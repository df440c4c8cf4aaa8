package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func NewJoinCmd(deps *Dependencies) *cobra.Command {
	var passcode, displayName, client string

	cmd := &cobra.Command{
		Use:   "join MEETING_ID",
		Short: "Join a Zoom meeting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(deps)
			if err != nil {
				return err
			}
			return c.post("/api/join", map[string]string{
				"meeting_id":   args[0],
				"passcode":     passcode,
				"display_name": displayName,
				"client":       client,
			})
		},
	}
	cmd.Flags().StringVarP(&passcode, "passcode", "p", "", "meeting passcode")
	cmd.Flags().StringVarP(&displayName, "name", "n", "", "display name (default from config)")
	cmd.Flags().StringVar(&client, "client", "", "client variant, web or desktop (default from config)")
	return cmd
}

func NewLeaveCmd(deps *Dependencies) *cobra.Command {
	return simpleCmd(deps, "leave", "Leave the current meeting and discard all session state", "/api/leave")
}

func NewStartCmd(deps *Dependencies) *cobra.Command {
	return simpleCmd(deps, "start", "Start the capture/post schedule", "/api/start")
}

func NewStopCmd(deps *Dependencies) *cobra.Command {
	return simpleCmd(deps, "stop", "Pause the schedule, keeping the session and entries", "/api/stop")
}

func NewCaptureCmd(deps *Dependencies) *cobra.Command {
	return simpleCmd(deps, "capture", "Capture a transcript segment now", "/api/capture")
}

func NewGenerateCmd(deps *Dependencies) *cobra.Command {
	return simpleCmd(deps, "generate", "Generate a poll from the latest transcript now", "/api/generate")
}

func NewPostCmd(deps *Dependencies) *cobra.Command {
	return simpleCmd(deps, "post", "Post the pending poll now", "/api/post")
}

func simpleCmd(deps *Dependencies, use, short, path string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(deps)
			if err != nil {
				return err
			}
			return c.post(path, nil)
		},
	}
}

func NewStatusCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon state, artifacts and next fire times",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(deps)
			if err != nil {
				return err
			}
			return c.printData("/api/status")
		},
	}
}

func NewConfigCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the daemon's active configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(deps)
			if err != nil {
				return err
			}
			return c.printData("/api/config")
		},
	}
}

func NewExportLogsCmd(deps *Dependencies) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export-logs",
		Short: "Export the daemon's recent log buffer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(deps)
			if err != nil {
				return err
			}
			b, err := c.getRaw("/api/export-logs")
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				_, err = os.Stdout.Write(b)
				return err
			}
			if err := os.WriteFile(out, b, 0o644); err != nil {
				return err
			}
			fmt.Printf("wrote %d bytes to %s\n", len(b), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "write to file instead of stdout")
	return cmd
}

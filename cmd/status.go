package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newStatusCmd())
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Reports what the daemon has done so far",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if daemon == nil {
				if pidPath.IsRunning() && !pidPath.IsOurs() {
					return sendViaIPC(cmd)
				}
				return fail(7, "no daemon is running")
			}

			cmd.Println("pid =", os.Getpid())
			cmd.Println("uptime =", time.Since(daemon.startedAt).Round(time.Second))
			cmd.Println("processed =", daemon.processed.Load())
			cmd.Println("failed =", daemon.failed.Load())
			if daemon.inbox != nil {
				cmd.Println("inbox =", daemon.inbox.Dir)
			}
			cmd.Println("watchers =", daemon.events.Len())
			cmd.Println("dropped events =", daemon.events.Dropped())
			if daemon.hookWatcher != nil {
				cmd.Println("hook backlog =", daemon.hookWatcher.Pending())
			}
			return nil
		},
	}
}

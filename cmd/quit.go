package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newQuitCmd())
}

func newQuitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quit",
		Short: "Tells the daemon to quit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if daemon != nil {
				log.Info().Msg("received request to quit")
				cmd.Println("stopping")
				cancelFunc()
				return nil
			}

			if pidPath.IsRunning() && !pidPath.IsOurs() {
				return sendViaIPC(cmd)
			}

			return fail(7, "no daemon is running")
		},
	}
}

package cmd

import (
	"fmt"
	"time"

	"github.com/BitPonyLLC/canvaspipe/pkg/events"
	"github.com/BitPonyLLC/canvaspipe/pkg/ipc"
	"github.com/BitPonyLLC/canvaspipe/pkg/pipeline"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(newFollowCmd())
}

func newFollowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "follow",
		Short: "Prints each image the daemon handles until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if daemon != nil {
				return streamEvents(cmd, daemon.events)
			}

			if !pidPath.IsRunning() || pidPath.IsOurs() {
				return fail(7, "no daemon is running")
			}

			client := &ipc.Client{
				Foreground: true,
				RespCB: func(line string) bool {
					cmd.Println(line)
					return true
				},
			}

			go func() {
				<-cmd.Context().Done()
				client.Close()
			}()

			return client.Send(viper.GetString("sockpath"), "follow")
		},
	}
}

func streamEvents(cmd *cobra.Command, manager *events.Manager) error {
	w := manager.Watch()
	defer w.Stop()

	out := cmd.OutOrStdout()
	for {
		select {
		case <-cmd.Context().Done():
			return nil
		case event, ok := <-w.Ch:
			if !ok {
				return nil
			}

			_, err := fmt.Fprintln(out, describe(event))
			if err != nil {
				// follower went away
				return nil
			}
		}
	}
}

func describe(event events.Event) string {
	switch e := event.(type) {
	case pipeline.ProcessedEvent:
		return fmt.Sprintf("processed %s = %s (id %d, saved %d%%, %s)",
			e.Image.SourceName, e.Image.Color, e.Image.ID, e.Image.SavedPercentage, e.Elapsed.Round(time.Millisecond))
	case pipeline.FailedEvent:
		return fmt.Sprintf("failed %s: %v", e.Source, e.Err)
	default:
		return fmt.Sprint(event)
	}
}

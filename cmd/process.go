package cmd

import (
	"context"
	"path/filepath"

	"github.com/BitPonyLLC/canvaspipe/pkg/catalog"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newProcessCmd())
}

func newProcessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process FILE...",
		Short: "Publishes the variants of each image and adds it to the catalog",
		Long: "Publishes the variants of each image and adds it to the catalog. " +
			"When a daemon is serving, the files are handed to it instead.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if daemon != nil {
				return processEach(cmd, args, daemon.process)
			}

			if pidPath.IsRunning() && !pidPath.IsOurs() {
				paths := make([]string, 0, len(args))
				for _, arg := range args {
					abs, err := filepath.Abs(arg)
					if err != nil {
						return fail(2, "unable to resolve %s: %w", arg, err)
					}
					paths = append(paths, abs)
				}
				return sendMsgViaIPC(cmd, "process", paths...)
			}

			b, err := openBackends()
			if err != nil {
				return err
			}
			defer b.Close()

			return processEach(cmd, args, b.processor(nil).ProcessFile)
		},
	}
}

func processEach(cmd *cobra.Command, args []string, process func(context.Context, string) (catalog.Image, error)) error {
	failed := 0
	for _, arg := range args {
		img, err := process(cmd.Context(), arg)
		if err != nil {
			cmd.PrintErrf("%s: %v\n", arg, err)
			failed++
			continue
		}

		cmd.Printf("%s = %s (id %d, saved %d%%) %s\n", arg, img.Color, img.ID, img.SavedPercentage, img.OriginalURL)
	}

	if failed > 0 {
		return fail(11, "%d of %d images failed", failed, len(args))
	}

	return nil
}

package cmd

import (
	"strconv"

	"github.com/BitPonyLLC/canvaspipe/pkg/variants"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statsCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats ORIGINAL_BYTES OPTIMIZED_BYTES",
	Short: "Prints the compression statistics for a pair of sizes",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sizes := make([]int64, 2)
		for i, arg := range args {
			n, err := strconv.ParseInt(arg, 10, 64)
			if err != nil {
				return fail(2, "invalid size %q: %w", arg, err)
			}
			sizes[i] = n
		}

		stats, err := variants.ComputeStats(sizes[0], sizes[1])
		if err != nil {
			return fail(2, err)
		}

		cmd.Println(stats)
		return nil
	},
}

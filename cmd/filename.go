package cmd

import (
	"github.com/BitPonyLLC/canvaspipe/pkg/variants"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(filenameCmd)
}

var filenameCmd = &cobra.Command{
	Use:   "filename NAME KIND",
	Short: "Prints a storage name for a variant (thumbnail, medium, or original)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := variants.ParseKind(args[1])
		if err != nil {
			return fail(2, err)
		}

		cmd.Println(variants.Filename(args[0], kind))
		return nil
	},
}

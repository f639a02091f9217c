package cmd

import (
	"github.com/BitPonyLLC/canvaspipe/pkg/palette"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

func init() {
	rootCmd.AddCommand(paletteCmd)
}

var paletteCmd = &cobra.Command{
	Use:   "palette",
	Short: "Lists the colors images are filed under",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		title := cases.Title(language.English)
		palette.Each(func(name, hex string) {
			cmd.Printf("%-8s %s\n", title.String(name), hex)
		})
	},
}

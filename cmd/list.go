package cmd

import (
	"encoding/json"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/BitPonyLLC/canvaspipe/pkg/palette"

	"github.com/spf13/cobra"
)

var listColor = ""
var listLimit = 0
var listJSON = false
var listCounts = false

func init() {
	listCmd.Flags().StringVarP(&listColor, "color", "c", listColor, "only images filed under this palette color")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", listLimit, "show at most this many images (0 for all)")
	listCmd.Flags().BoolVar(&listJSON, "json", listJSON, "print the images as JSON")
	listCmd.Flags().BoolVar(&listCounts, "counts", listCounts, "print how many images each color has instead")
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists cataloged images, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if listColor != "" {
			if _, ok := palette.Lookup(listColor); !ok {
				return fail(2, "unknown color %q (expected one of %v)", listColor, palette.Names())
			}
		}

		cat, err := openCatalog()
		if err != nil {
			return err
		}
		defer cat.Close()

		if listCounts {
			counts, err := cat.CountByColor(cmd.Context())
			if err != nil {
				return fail(10, err)
			}

			names := make([]string, 0, len(counts))
			for name := range counts {
				names = append(names, name)
			}
			sort.Strings(names)

			for _, name := range names {
				cmd.Printf("%s = %d\n", name, counts[name])
			}
			return nil
		}

		images, err := cat.List(cmd.Context(), listColor, listLimit)
		if err != nil {
			return fail(10, err)
		}

		if listJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(images)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tCOLOR\tSIZE\tSAVED\tSOURCE\tORIGINAL")
		for _, img := range images {
			fmt.Fprintf(tw, "%d\t%s\t%dx%d\t%d%%\t%s\t%s\n",
				img.ID, img.Color, img.Width, img.Height, img.SavedPercentage, img.SourceName, img.OriginalURL)
		}
		return tw.Flush()
	},
}

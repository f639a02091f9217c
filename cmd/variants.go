package cmd

import (
	"os"
	"path/filepath"

	"github.com/BitPonyLLC/canvaspipe/pkg/raster"
	"github.com/BitPonyLLC/canvaspipe/pkg/variants"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var variantsOut = "."

func init() {
	variantsCmd.Flags().StringVarP(&variantsOut, "out", "o", variantsOut, "directory to write the variants into")
	rootCmd.AddCommand(variantsCmd)
}

var variantsCmd = &cobra.Command{
	Use:   "variants FILE",
	Short: "Writes the thumbnail, medium, and original variants of an image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source := args[0]
		data, err := os.ReadFile(source)
		if err != nil {
			return fail(11, "unable to read %s: %w", source, err)
		}

		img, err := raster.DecodeBytes(data)
		if err != nil {
			return fail(12, err)
		}

		set, err := variants.Generate(img, variantOptions())
		if err != nil {
			return fail(11, "unable to generate variants of %s: %w", source, err)
		}

		err = os.MkdirAll(variantsOut, 0o755)
		if err != nil {
			return fail(11, "unable to create %s: %w", variantsOut, err)
		}

		for _, kind := range variants.Kinds {
			v := set.Get(kind)

			pathname := filepath.Join(variantsOut, variants.FilenameAs(filepath.Base(source), kind, set.Extension))
			err = os.WriteFile(pathname, v.Data, 0o644)
			if err != nil {
				return fail(11, "unable to write %s: %w", pathname, err)
			}

			log.Debug().Str("path", pathname).Msg("written")
			cmd.Printf("%-9s %5dx%-5d %9d bytes  %s\n", kind, v.Width, v.Height, len(v.Data), pathname)
		}

		stats, err := variants.ComputeStats(int64(len(data)), int64(len(set.Original.Data)))
		if err != nil {
			return fail(11, err)
		}

		cmd.Println(stats)
		return nil
	},
}

package cmd

import (
	"errors"

	"github.com/BitPonyLLC/canvaspipe/internal/image_matcher"
	"github.com/BitPonyLLC/canvaspipe/pkg/palette"
	"github.com/BitPonyLLC/canvaspipe/pkg/raster"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var colorMethod = string(image_matcher.MethodSample)
var colorShowRGB = false

func init() {
	colorCmd.Flags().StringVarP(&colorMethod, "method", "m", colorMethod, "how to pick the color: sample, kmeans, or dominantcolor")
	colorCmd.Flags().BoolVar(&colorShowRGB, "rgb", colorShowRGB, "also show the color that was matched to the palette")
	rootCmd.AddCommand(colorCmd)
}

var colorCmd = &cobra.Command{
	Use:   "color FILE...",
	Short: "Reports the palette color each image is filed under",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		method, err := image_matcher.ParseMethod(colorMethod)
		if err != nil {
			return fail(2, err)
		}

		for _, arg := range args {
			result, err := image_matcher.ColorOfFile(arg, method)
			if err != nil {
				var decodeErr *raster.DecodeError
				if method != image_matcher.MethodSample || !errors.As(err, &decodeErr) {
					return fail(13, "can't determine dominant color of %s: %w", arg, err)
				}

				// unreadable images are still filed somewhere
				log.Warn().Err(err).Str("file", arg).Msg("using fallback color")
				result = image_matcher.Result{Method: method, Name: palette.Fallback}
			}

			if colorShowRGB {
				cmd.Printf("%s = %s (%s)\n", arg, result.Name, result.RGB.Hex())
			} else {
				cmd.Printf("%s = %s\n", arg, result.Name)
			}
		}

		return nil
	},
}

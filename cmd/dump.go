package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BitPonyLLC/canvaspipe/buildinfo"
	"github.com/BitPonyLLC/canvaspipe/pkg/palette"
	"github.com/BitPonyLLC/canvaspipe/pkg/variants"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// dumpValues are the plain one-line answers of the dump command.
var dumpValues = map[string]func() string{
	"name":    func() string { return buildinfo.App.Name },
	"url":     func() string { return buildinfo.App.URL },
	"desc":    func() string { return buildinfo.App.Description },
	"full":    func() string { return buildinfo.App.FullDescription },
	"version": func() string { return buildinfo.All },
	"formats": func() string { return strings.Join(variants.Formats(), " ") },
	"palette": func() string { return strings.Join(palette.Names(), " ") },
}

var dumpFormat = "toml"

var dumpCmd = &cobra.Command{
	Use:       "dump KEY...",
	Short:     "Prints build details or the effective configuration",
	Hidden:    true,
	Args:      cobra.MinimumNArgs(1),
	ValidArgs: dumpKeys(),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, arg := range args {
			err := dump(arg, cmd.OutOrStdout())
			if err != nil {
				return err
			}
		}

		return nil
	},
}

func init() {
	dumpCmd.Flags().StringVar(&dumpFormat, "as", dumpFormat, "encoding of the config key: toml, yaml, or json")
	rootCmd.AddCommand(dumpCmd)
}

func dumpKeys() []string {
	keys := []string{"config"}
	for key := range dumpValues {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func dump(key string, writer io.Writer) error {
	if key == "config" {
		return writeConfig(writer, dumpFormat)
	}

	value, ok := dumpValues[key]
	if !ok {
		return fail(2, "unknown dump key %q: want one of %s", key, strings.Join(dumpKeys(), ", "))
	}

	_, err := fmt.Fprintln(writer, value())
	return err
}

// writeConfig prints the merged configuration (file, flags, and defaults).
// viper only encodes to files, so it goes through a scratch one.
func writeConfig(writer io.Writer, format string) error {
	switch format {
	case "toml", "yaml", "json":
	default:
		return fail(2, "unknown config encoding %q", format)
	}

	dir, err := os.MkdirTemp("", buildinfo.App.Name+"-dump-")
	if err != nil {
		return fmt.Errorf("unable to create scratch directory: %w", err)
	}
	defer os.RemoveAll(dir)

	pathname := filepath.Join(dir, "config."+format)
	err = viper.WriteConfigAs(pathname)
	if err != nil {
		return fmt.Errorf("unable to encode config: %w", err)
	}

	f, err := os.Open(pathname)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(writer, f)
	return err
}

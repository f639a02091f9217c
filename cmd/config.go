package cmd

import (
	"os"

	"github.com/BitPonyLLC/canvaspipe/pkg/util"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const configTemplate = `# canvaspipe configuration
log-level = "{{.LogLevel}}"
log-dst = "{{.LogDst}}"
nice = {{.Nice}}

[variants]
thumbnail-max = {{.ThumbnailMax}}
medium-max = {{.MediumMax}}
quality = {{.Quality}}
format = "{{.Format}}"

[storage]
dir = "{{.StorageDir}}"
base-url = "{{.BaseURL}}"
prefix = "{{.Prefix}}"

[catalog]
path = "{{.CatalogPath}}"

[inbox]
dir = "{{.InboxDir}}"
settle = "{{.Settle}}"
sort = {{.Sort}}

[hook]
# e.g. "rsync -a /srv/assets/ cdn:/paintings/"
command = "{{.Hook}}"
`

var configForce = false

func init() {
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", configForce, "replace an existing configuration file")
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manages the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Writes a configuration file holding the current settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		pathname := os.ExpandEnv(configPath) + ".toml"
		opts := variantOptions()

		data := map[string]any{
			"LogLevel":     viper.GetString("log-level"),
			"LogDst":       viper.GetString(logDstLabel),
			"Nice":         viper.GetInt("nice"),
			"ThumbnailMax": opts.ThumbnailMaxDim,
			"MediumMax":    opts.MediumMaxDim,
			"Quality":      opts.Quality,
			"Format":       opts.Format,
			"StorageDir":   viper.GetString("storage.dir"),
			"BaseURL":      viper.GetString("storage.base-url"),
			"Prefix":       viper.GetString("storage.prefix"),
			"CatalogPath":  viper.GetString("catalog.path"),
			"InboxDir":     viper.GetString("inbox.dir"),
			"Settle":       viper.GetDuration("inbox.settle"),
			"Sort":         viper.GetBool("inbox.sort"),
			"Hook":         viper.GetString("hook.command"),
		}

		written, err := util.Extract(pathname, []byte(configTemplate), data, configForce)
		if err != nil {
			return fail(5, err)
		}

		if !written {
			cmd.Println(pathname, "already exists (use --force to replace it)")
			return nil
		}

		cmd.Println("wrote", pathname)
		return nil
	},
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/syslog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/BitPonyLLC/canvaspipe/buildinfo"
	"github.com/BitPonyLLC/canvaspipe/pkg/inbox"
	"github.com/BitPonyLLC/canvaspipe/pkg/pidpath"
	"github.com/BitPonyLLC/canvaspipe/pkg/termwrap"
	"github.com/BitPonyLLC/canvaspipe/pkg/variants"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Execute is the primary entrypoint for this CLI
func Execute() int {
	defer atExit()

	tw := termwrap.NewTermWrap(80, 24)
	rootCmd.Long = tw.Paragraph(buildinfo.App.Description + "\n\n" + buildinfo.App.FullDescription)

	rootCmd.SetOut(os.Stdout) // default is stderr

	rootCmd.PersistentFlags().StringVar(&configPath, "config", configPath, "the configuration file to load (without the .toml extension)")
	rootCmd.Flags().BoolVar(&dumpConfig, "dump-config", dumpConfig, "dump configuration to stdout")

	bindPersistent("log-level", "log-level", "info", "set logging level: trace, debug, info, warn, error")
	bindPersistent(logDstLabel, logDstLabel, "stderr", "write logs to syslog, stdout, stderr, or provide a pathname")
	bindPersistent("pidpath", "pidpath", filepath.Join(os.TempDir(), buildinfo.App.Name+".pid"), "pathname of the pidfile")
	bindPersistent("sockpath", "sockpath", filepath.Join(os.TempDir(), buildinfo.App.Name+".sock"), "pathname of the sockfile")
	bindPersistent("nice", "nice", 10, "the priority level of the daemon process")

	defaults := variants.DefaultOptions()
	bindPersistent("thumbnail-max", "variants.thumbnail-max", defaults.ThumbnailMaxDim, "longest side of the thumbnail variant")
	bindPersistent("medium-max", "variants.medium-max", defaults.MediumMaxDim, "longest side of the medium variant")
	bindPersistent("quality", "variants.quality", defaults.Quality, fmt.Sprintf("encoder quality between %v and 1 (0 uses the default)", variants.MinQuality))
	bindPersistent("format", "variants.format", defaults.Format, "variant encoding: "+fmt.Sprint(variants.Formats()))

	dataDir := defaultDataDir()
	bindPersistent("storage-dir", "storage.dir", filepath.Join(dataDir, "assets"), "directory variants are published into")
	bindPersistent("base-url", "storage.base-url", "", "public URL prefix of the storage directory")
	bindPersistent("key-prefix", "storage.prefix", "", "prefix for every storage key")
	bindPersistent("catalog", "catalog.path", filepath.Join(dataDir, "catalog.db"), "pathname of the catalog database")

	var cancelCtx context.Context
	cancelCtx, cancelFunc = context.WithCancel(context.Background())

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-stop
		log.Info().Str("signal", sig.String()).Msg("stopping")
		cancelFunc()
	}()

	err := rootCmd.ExecuteContext(cancelCtx)
	if err != nil {
		log.Err(err).Msg("command failed")
		cancelFunc()
		return failureCode
	}

	return 0
}

//--------------------------------------------------------------------------------
// private

const logDstLabel = "log-dst"
const minimalTimeFormat = "15:04:05.000"

var failureCode = 1
var initialized = false

var configPath = "$HOME/." + buildinfo.App.Name
var dumpConfig = false
var logF *os.File

var cancelFunc func()
var pidPath *pidpath.PidPath

var rootCmd = &cobra.Command{
	Use:               buildinfo.App.Name,
	Short:             buildinfo.App.Description,
	Version:           buildinfo.All,
	SilenceUsage:      true,
	PersistentPreRunE: atStart,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if dumpConfig {
			return dump("config", cmd.OutOrStdout())
		}
		return cmd.Help()
	},
}

func bindPersistent(flag, key string, value any, usage string) {
	flags := rootCmd.PersistentFlags()
	switch v := value.(type) {
	case string:
		flags.String(flag, v, usage)
	case int:
		flags.Int(flag, v, usage)
	case float64:
		flags.Float64(flag, v, usage)
	case bool:
		flags.Bool(flag, v, usage)
	case time.Duration:
		flags.Duration(flag, v, usage)
	default:
		panic(fmt.Sprintf("unsupported flag type %T for %s", value, flag))
	}
	viper.BindPFlag(key, flags.Lookup(flag))
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), buildinfo.App.Name)
	}
	return filepath.Join(home, ".local", "share", buildinfo.App.Name)
}

func atStart(cmd *cobra.Command, _ []string) error {
	if initialized {
		return nil
	}

	initialized = true

	viper.SetConfigName(filepath.Base(configPath))
	viper.SetConfigType("toml")
	viper.AddConfigPath(filepath.Dir(configPath))

	err := viper.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fail(5, "unable to read config file: %w", err)
		}
	} else {
		viper.OnConfigChange(func(e fsnotify.Event) {
			confLogLevel := viper.GetString("log-level")
			level, err := zerolog.ParseLevel(confLogLevel)
			if err != nil {
				log.Err(err).Str("level", confLogLevel).Msg("unable to parse new log level")
			} else {
				zerolog.SetGlobalLevel(level)
			}
		})

		viper.WatchConfig()
	}

	// the config file may move it
	pidPath = pidpath.NewPidPath(viper.GetString("pidpath"), 0644)

	err = setupLogging(cmd, "")
	if err != nil {
		return err
	}

	log.Debug().Str("file", viper.ConfigFileUsed()).Str("pidpath", pidPath.Path()).Msg("config")
	return nil
}

func atExit() {
	if daemon != nil {
		daemon.close()
	}

	if logF != nil {
		logF.Close()
	}

	if pidPath != nil {
		pidPath.Release()
	}
}

func setupLogging(cmd *cobra.Command, logDst string) error {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	var logWriter io.Writer

	withTime := true

	if logDst == "" {
		logDst = viper.GetString(logDstLabel)
	}

	switch logDst {
	case "syslog":
		syslogger, err := syslog.New(syslog.LOG_INFO, buildinfo.App.Name)
		if err != nil {
			newErr := setupLogging(cmd, "stderr")
			if newErr != nil {
				return newErr
			}

			log.Warn().Err(err).Msg("unable to use syslog: switched to stderr")
			return nil
		}

		withTime = false
		logWriter = zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
			w.NoColor = true
			w.PartsExclude = []string{zerolog.TimestampFieldName}
			w.Out = zerolog.SyslogLevelWriter(syslogger)
		})
	case "stdout":
		zerolog.TimeFieldFormat = minimalTimeFormat
		logWriter = zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
			w.TimeFormat = minimalTimeFormat
			w.Out = os.Stdout
		})
	case "stderr":
		zerolog.TimeFieldFormat = minimalTimeFormat
		logWriter = zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
			w.TimeFormat = minimalTimeFormat
			w.Out = os.Stderr
		})
	default:
		var err error
		logF, err = os.OpenFile(logDst, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return fail(4, "unable to open %s: %w", logDst, err)
		}

		logWriter = logF
	}

	level, err := zerolog.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return fail(4, err)
	}

	zerolog.SetGlobalLevel(level)

	if withTime {
		log.Logger = zerolog.New(logWriter).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(logWriter)
	}

	return nil
}

func variantOptions() variants.Options {
	return variants.Options{
		ThumbnailMaxDim: viper.GetInt("variants.thumbnail-max"),
		MediumMaxDim:    viper.GetInt("variants.medium-max"),
		Quality:         viper.GetFloat64("variants.quality"),
		Format:          viper.GetString("variants.format"),
	}
}

func inboxDefaults() (string, time.Duration) {
	return filepath.Join(defaultDataDir(), "inbox"), inbox.DefaultSettle
}

func fail(code int, formatOrErr interface{}, args ...interface{}) error {
	failureCode = code
	if len(args) == 0 {
		err, ok := formatOrErr.(error)
		if ok {
			return err
		}
		return errors.New(formatOrErr.(string))
	}
	return fmt.Errorf(formatOrErr.(string), args...)
}

package cmd

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/BitPonyLLC/canvaspipe/buildinfo"
	"github.com/BitPonyLLC/canvaspipe/pkg/catalog"
	"github.com/BitPonyLLC/canvaspipe/pkg/events"
	"github.com/BitPonyLLC/canvaspipe/pkg/hook"
	"github.com/BitPonyLLC/canvaspipe/pkg/inbox"
	"github.com/BitPonyLLC/canvaspipe/pkg/ipc"
	"github.com/BitPonyLLC/canvaspipe/pkg/pipeline"
	"github.com/BitPonyLLC/canvaspipe/pkg/util"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/atomic"
)

func init() {
	inboxDir, settle := inboxDefaults()

	serveCmd.Flags().String("inbox", inboxDir, "directory to watch for new images")
	viper.BindPFlag("inbox.dir", serveCmd.Flags().Lookup("inbox"))

	serveCmd.Flags().Duration("settle", settle, "how long a file must stay unchanged before it is processed")
	viper.BindPFlag("inbox.settle", serveCmd.Flags().Lookup("settle"))

	serveCmd.Flags().Bool("sort", false, "move handled files into done/ or failed/ below the inbox")
	viper.BindPFlag("inbox.sort", serveCmd.Flags().Lookup("sort"))

	serveCmd.Flags().String("hook", "", "command to run after each image is published")
	viper.BindPFlag("hook.command", serveCmd.Flags().Lookup("hook"))

	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Processes images dropped into the inbox and accepts commands from other invocations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		err := pidPath.CheckAndSet()
		if err != nil {
			return fail(3, err)
		}

		nice := viper.GetInt("nice")
		if nice != 0 {
			err = util.BeNice(nice)
			if err != nil {
				log.Warn().Err(err).Msg("unable to lower priority")
			}
		}

		b, err := openBackends()
		if err != nil {
			return err
		}

		manager := &events.Manager{}
		daemon = &daemonState{
			backends:  b,
			processor: b.processor(manager),
			events:    manager,
			startedAt: time.Now(),
		}

		ctx := cmd.Context()

		hookCmd := viper.GetString("hook.command")
		if hookCmd != "" {
			h, err := hook.New(hookCmd, &log.Logger)
			if err != nil {
				return fail(5, err)
			}
			daemon.startHook(ctx, h)
		}

		daemon.ipc = &ipc.IPCServer{}
		err = daemon.ipc.Start(ctx, &log.Logger, viper.GetString("sockpath"), daemonCommands)
		if err != nil {
			return fail(6, err)
		}

		in := inbox.New(viper.GetString("inbox.dir"), func(ctx context.Context, pathname string) error {
			_, err := daemon.process(ctx, pathname)
			return err
		}, &log.Logger)
		in.Settle = viper.GetDuration("inbox.settle")
		in.Sort = viper.GetBool("inbox.sort")
		in.Seen = daemon.seen
		daemon.inbox = in

		log.Info().Int("pid", os.Getpid()).Str("inbox", in.Dir).
			Str("sock", daemon.ipc.Path()).Str("version", buildinfo.App.Version).Msg("serving")

		err = in.Run(ctx)
		daemon.ipc.Wait()
		if err != nil {
			return fail(6, err)
		}

		log.Info().Int64("processed", daemon.processed.Load()).Int64("failed", daemon.failed.Load()).Msg("stopped")
		return nil
	},
}

// daemonCommands builds the commands a serving process accepts over IPC.
func daemonCommands() *cobra.Command {
	root := &cobra.Command{Use: buildinfo.App.Name, SilenceUsage: true}
	root.AddCommand(newProcessCmd(), newStatusCmd(), newFollowCmd(), newQuitCmd())
	return root
}

//--------------------------------------------------------------------------------
// daemon state

var daemon *daemonState

type daemonState struct {
	backends  *backends
	processor *pipeline.Processor
	events    *events.Manager
	inbox     *inbox.Inbox
	ipc       *ipc.IPCServer
	startedAt time.Time

	processed atomic.Int64
	failed    atomic.Int64

	// one image at a time keeps memory bounded
	work sync.Mutex

	hookWatcher *events.Watcher
	closeOnce   sync.Once
}

func (d *daemonState) process(ctx context.Context, pathname string) (catalog.Image, error) {
	d.work.Lock()
	defer d.work.Unlock()

	img, err := d.processor.ProcessFile(ctx, pathname)
	if err != nil {
		d.failed.Inc()
		return img, err
	}

	d.processed.Inc()
	return img, nil
}

// seen reports whether pathname was cataloged by an earlier run.
func (d *daemonState) seen(ctx context.Context, pathname string) bool {
	known, err := d.processor.Known(ctx, pathname)
	if err != nil {
		log.Warn().Err(err).Str("file", pathname).Msg("unable to check catalog")
		return false
	}
	return known
}

// startHook queues every processed image for h, however slow it is.
func (d *daemonState) startHook(ctx context.Context, h *hook.Hook) {
	d.hookWatcher = d.events.Follow()
	log.Info().Str("hook", h.String()).Msg("running hook after each image")

	go func(w *events.Watcher) {
		ran := h.Drain(ctx, w.Ch)
		log.Debug().Int("runs", ran).Int("unsent", w.Pending()).Msg("hook stopped")
	}(d.hookWatcher)
}

func (d *daemonState) close() {
	d.closeOnce.Do(func() {
		if d.hookWatcher != nil {
			d.hookWatcher.Stop()
		}
		d.backends.Close()
	})
}

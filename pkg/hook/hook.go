// Package hook runs a user supplied command after each image is published,
// e.g. to purge a CDN path or notify a gallery. Details of the image are
// passed in CANVASPIPE_* environment variables.
package hook

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/BitPonyLLC/canvaspipe/pkg/catalog"
	"github.com/BitPonyLLC/canvaspipe/pkg/events"
	"github.com/BitPonyLLC/canvaspipe/pkg/pipeline"
	"github.com/BitPonyLLC/canvaspipe/pkg/util"

	"github.com/mattn/go-shellwords"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const DefaultTimeout = 30 * time.Second

type Hook struct {
	Timeout time.Duration

	args []string
	log  *zerolog.Logger
}

// New parses command with shell quoting rules.
func New(command string, log *zerolog.Logger) (*Hook, error) {
	args, err := shellwords.Parse(command)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to parse hook command %q", command)
	}

	if len(args) == 0 {
		return nil, errors.New("hook command is empty")
	}

	hlog := log.With().Str("component", "hook").Str("hook", args[0]).Logger()
	return &Hook{Timeout: DefaultTimeout, args: args, log: &hlog}, nil
}

func (h *Hook) String() string {
	return strings.Join(h.args, " ")
}

// Run executes the command for img. Its output is logged line by line.
func (h *Hook) Run(ctx context.Context, img catalog.Image) error {
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}

	ilog := h.log.With().Int64("id", img.ID).Logger()

	stdout := &util.CommandLogger{Log: func(line string) { ilog.Info().Msg(line) }}
	stderr := &util.CommandLogger{Log: func(line string) { ilog.Warn().Msg(line) }}
	defer stdout.Close()
	defer stderr.Close()

	cmd := exec.CommandContext(ctx, h.args[0], h.args[1:]...)
	cmd.Env = append(os.Environ(), Environ(img)...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Run()
	if err != nil {
		return errors.Wrapf(err, "hook %s failed", h.args[0])
	}

	ilog.Debug().Dur("elapsed", time.Since(start)).Msg("hook finished")
	return nil
}

// Drain runs the hook once for every pipeline.ProcessedEvent read from ch, one
// at a time, until ch is closed. Failures are logged. It reports how many
// runs succeeded.
func (h *Hook) Drain(ctx context.Context, ch <-chan events.Event) int {
	defer util.LogRecover()

	succeeded := 0
	for event := range ch {
		processed, ok := event.(pipeline.ProcessedEvent)
		if !ok {
			continue
		}

		err := h.Run(ctx, processed.Image)
		if err != nil {
			h.log.Err(err).Str("source", processed.Image.SourceName).Msg("hook failed")
			continue
		}
		succeeded++
	}
	return succeeded
}

// Environ lists the variables describing img.
func Environ(img catalog.Image) []string {
	return []string{
		fmt.Sprint("CANVASPIPE_ID=", img.ID),
		"CANVASPIPE_SOURCE=" + img.SourceName,
		"CANVASPIPE_COLOR=" + img.Color,
		"CANVASPIPE_CONTENT_TYPE=" + img.ContentType,
		"CANVASPIPE_THUMBNAIL_URL=" + img.ThumbnailURL,
		"CANVASPIPE_MEDIUM_URL=" + img.MediumURL,
		"CANVASPIPE_ORIGINAL_URL=" + img.OriginalURL,
		fmt.Sprint("CANVASPIPE_SAVED_PERCENTAGE=", img.SavedPercentage),
	}
}

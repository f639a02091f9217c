// Package inbox watches a drop directory and hands each new image to a
// handler once the file has stopped changing.
package inbox

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BitPonyLLC/canvaspipe/pkg/util"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	DoneDir   = "done"
	FailedDir = "failed"

	DefaultSettle = 500 * time.Millisecond
)

// DefaultExtensions are the source types the inbox picks up.
var DefaultExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

// Handler processes one settled file.
type Handler func(ctx context.Context, pathname string) error

type Inbox struct {
	Dir        string
	Settle     time.Duration
	Extensions []string

	// Sort moves handled files into done/ or failed/ below Dir.
	Sort bool

	// Seen, when set, is asked about every file found at startup. Files it
	// reports were handled by an earlier run and are left alone.
	Seen func(ctx context.Context, pathname string) bool

	handler Handler
	log     *zerolog.Logger

	mu      sync.Mutex
	pending map[string]*pendingFile
}

func New(dir string, handler Handler, log *zerolog.Logger) *Inbox {
	ilog := log.With().Str("component", "inbox").Str("dir", dir).Logger()
	return &Inbox{
		Dir:        dir,
		Settle:     DefaultSettle,
		Extensions: DefaultExtensions,
		handler:    handler,
		log:        &ilog,
	}
}

// Run handles files already in the directory, then watches for new ones
// until ctx is done.
func (in *Inbox) Run(ctx context.Context) error {
	if in.handler == nil {
		return errors.New("no handler configured")
	}

	err := os.MkdirAll(in.Dir, 0o755)
	if err != nil {
		return errors.Wrapf(err, "unable to create %s", in.Dir)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "unable to create watcher")
	}
	defer watcher.Close()

	err = watcher.Add(in.Dir)
	if err != nil {
		return errors.Wrapf(err, "unable to watch %s", in.Dir)
	}

	in.mu.Lock()
	in.pending = map[string]*pendingFile{}
	in.mu.Unlock()
	defer in.cancelPending()

	ready := make(chan string, 64)
	done := make(chan struct{})
	go func() {
		defer util.LogRecover()
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case pathname := <-ready:
				in.handle(ctx, pathname)
			}
		}
	}()

	existing, err := in.Existing()
	if err != nil {
		return err
	}
	skipped := 0
	for _, pathname := range existing {
		if in.Seen != nil && in.Seen(ctx, pathname) {
			skipped++
			continue
		}
		in.schedule(ctx, pathname, ready)
	}
	if skipped > 0 {
		in.log.Info().Int("skipped", skipped).Msg("left already handled files alone")
	}

	in.log.Info().Msg("watching")

	for {
		select {
		case <-ctx.Done():
			<-done
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if in.Accepts(event.Name) {
				in.schedule(ctx, event.Name, ready)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			in.log.Err(err).Msg("watch error")
		}
	}
}

// Accepts reports whether pathname has one of the watched extensions.
func (in *Inbox) Accepts(pathname string) bool {
	ext := strings.ToLower(filepath.Ext(pathname))
	for _, want := range in.Extensions {
		if ext == want {
			return true
		}
	}
	return false
}

// Existing lists the accepted files currently in Dir, sorted by name.
func (in *Inbox) Existing() ([]string, error) {
	entries, err := os.ReadDir(in.Dir)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to list %s", in.Dir)
	}

	found := []string{}
	for _, entry := range entries {
		if entry.Type().IsRegular() && in.Accepts(entry.Name()) {
			found = append(found, filepath.Join(in.Dir, entry.Name()))
		}
	}

	sort.Strings(found)
	return found, nil
}

//--------------------------------------------------------------------------------
// private

type pendingFile struct {
	timer *time.Timer
}

// schedule (re)starts the settle timer for pathname; each further write
// pushes it back.
func (in *Inbox) schedule(ctx context.Context, pathname string, ready chan<- string) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if old, ok := in.pending[pathname]; ok {
		old.timer.Stop()
	}

	p := &pendingFile{}
	in.pending[pathname] = p
	p.timer = time.AfterFunc(in.Settle, func() {
		in.mu.Lock()
		if in.pending[pathname] != p {
			// superseded by a later write
			in.mu.Unlock()
			return
		}
		delete(in.pending, pathname)
		in.mu.Unlock()

		select {
		case ready <- pathname:
		case <-ctx.Done():
		}
	})
}

func (in *Inbox) cancelPending() {
	in.mu.Lock()
	defer in.mu.Unlock()

	for pathname, p := range in.pending {
		p.timer.Stop()
		delete(in.pending, pathname)
	}
}

func (in *Inbox) handle(ctx context.Context, pathname string) {
	info, err := os.Stat(pathname)
	if err != nil || !info.Mode().IsRegular() {
		// already moved or removed
		return
	}

	flog := in.log.With().Str("file", filepath.Base(pathname)).Logger()
	flog.Debug().Msg("settled")

	err = in.handler(ctx, pathname)
	if err != nil {
		flog.Err(err).Msg("handler failed")
	}

	if !in.Sort || ctx.Err() != nil {
		return
	}

	dest := DoneDir
	if err != nil {
		dest = FailedDir
	}

	err = moveInto(pathname, filepath.Join(in.Dir, dest))
	if err != nil {
		flog.Err(err).Str("dest", dest).Msg("unable to move file")
	}
}

func moveInto(pathname, dir string) error {
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return err
	}
	return os.Rename(pathname, filepath.Join(dir, filepath.Base(pathname)))
}

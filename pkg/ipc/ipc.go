// Package ipc lets a running daemon accept CLI commands over a unix socket.
// Each connection carries one command line; the daemon executes it against a
// fresh cobra command tree and streams the output back before hanging up.
package ipc

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/BitPonyLLC/canvaspipe/pkg/util"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// CommandFactory builds the command tree a single connection executes against.
type CommandFactory func() *cobra.Command

type IPCServer struct {
	ctx     context.Context
	log     *zerolog.Logger
	path    string
	conns   sync.Map
	factory CommandFactory
	wg      sync.WaitGroup
	done    chan struct{}
}

// Start listens on path until ctx is canceled. Any stale socket file is
// replaced.
func (ipc *IPCServer) Start(ctx context.Context, log *zerolog.Logger, path string, factory CommandFactory) error {
	err := os.Remove(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("unable to remove %s: %w", path, err)
		}
	}

	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "unix", path)
	if err != nil {
		return fmt.Errorf("unable to listen on %s: %w", path, err)
	}

	// only the owner submits images
	err = os.Chmod(path, 0600)
	if err != nil {
		l.Close()
		return fmt.Errorf("unable to change permissions of %s: %w", path, err)
	}

	slog := log.With().Str("sock", path).Logger()
	ipc.ctx = ctx
	ipc.log = &slog
	ipc.path = path
	ipc.factory = factory
	ipc.done = make(chan struct{})

	go func() {
		<-ctx.Done()
		l.Close()
	}()

	go func() {
		defer close(ipc.done)
		defer util.LogRecover()

		for {
			conn, err := l.Accept()
			if err != nil {
				if ctx.Err() == nil {
					ipc.log.Error().Err(err).Msg("unable to accept new connection")
				}
				break
			}

			ac := &acceptedConn{conn: conn}
			ipc.wg.Add(1)
			go func() {
				defer ipc.wg.Done()
				ac.processCommand(ipc)
			}()
		}

		// cleanup (our context was canceled)
		ipc.conns.Range(func(key, value any) bool {
			key.(*acceptedConn).conn.Close()
			return true
		})
		ipc.wg.Wait()
		os.Remove(path)
	}()

	return nil
}

// Wait blocks until the server has shut down after its context was canceled.
func (ipc *IPCServer) Wait() {
	if ipc.done != nil {
		<-ipc.done
	}
}

// Path is the socket the server listens on.
func (ipc *IPCServer) Path() string {
	return ipc.path
}

package ipc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCommands() *cobra.Command {
	root := &cobra.Command{Use: "test"}
	root.AddCommand(&cobra.Command{
		Use: "echo",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(strings.Join(args, " "))
		},
	})
	root.AddCommand(&cobra.Command{
		Use: "fail",
		RunE: func(cmd *cobra.Command, args []string) error {
			return errors.New("boom")
		},
	})
	root.AddCommand(&cobra.Command{
		Use: "lines",
		Run: func(cmd *cobra.Command, args []string) {
			for _, word := range []string{"one", "two", "three"} {
				cmd.Println(word)
			}
		},
	})
	return root
}

func startServer(t *testing.T) (*IPCServer, context.CancelFunc) {
	// unix socket paths are short; t.TempDir can exceed the limit
	dir, err := os.MkdirTemp("", "ipc")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	ctx, cancel := context.WithCancel(context.Background())
	log := zerolog.Nop()
	server := &IPCServer{}
	require.NoError(t, server.Start(ctx, &log, filepath.Join(dir, "s.sock"), testCommands))
	t.Cleanup(func() {
		cancel()
		server.Wait()
	})
	return server, cancel
}

func TestSendRunsCommand(t *testing.T) {
	server, _ := startServer(t)

	resp, err := Send(server.Path(), `echo "hello world" again`)
	require.NoError(t, err)
	assert.Equal(t, "hello world again", resp)
}

func TestSendReportsRemoteErrors(t *testing.T) {
	server, _ := startServer(t)

	_, err := Send(server.Path(), "fail")
	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Contains(t, remote.Error(), "boom")

	_, err = Send(server.Path(), `echo "unterminated`)
	require.True(t, errors.As(err, &remote))
	assert.Contains(t, remote.Error(), "unable to parse command")
}

func TestClientStopsWhenCallbackDeclines(t *testing.T) {
	server, _ := startServer(t)

	seen := []string{}
	client := &Client{RespCB: func(line string) bool {
		seen = append(seen, line)
		return len(seen) < 2
	}}
	require.NoError(t, client.Send(server.Path(), "lines"))
	assert.Equal(t, []string{"one", "two"}, seen)
}

func TestServerShutsDown(t *testing.T) {
	server, cancel := startServer(t)
	cancel()
	server.Wait()

	_, err := os.Stat(server.Path())
	assert.True(t, os.IsNotExist(err))

	_, err = Send(server.Path(), "echo hi")
	assert.Error(t, err)
}

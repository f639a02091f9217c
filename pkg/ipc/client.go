package ipc

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
)

// ResponseTimeout bounds how long a non-foreground client waits for the daemon
// to finish a command.
var ResponseTimeout = 2 * time.Minute

// RemoteError carries the error lines the daemon reported for a command.
type RemoteError struct {
	Lines []string
}

func (e *RemoteError) Error() string {
	return strings.Join(e.Lines, "; ")
}

// Client sends a single command to an IPCServer and relays its response.
type Client struct {
	// Foreground keeps reading without a deadline until the server hangs up or
	// Close is called (e.g. to follow events).
	Foreground bool

	// RespCB receives every response line that is not an error line. Returning
	// false stops reading.
	RespCB func(line string) bool

	mu     sync.Mutex
	conn   net.Conn
	closed bool
}

// Send is invoked when a caller wants to connect to an IPCServer listening on
// the provided path to issue a command as described by the provided msg.
func (c *Client) Send(path, msg string) error {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return fmt.Errorf("unable to connect to %s: %w", path, err)
	}
	defer conn.Close()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.conn = conn
	c.mu.Unlock()

	_, err = conn.Write([]byte(msg + "\n"))
	if err != nil {
		return fmt.Errorf("unable to send message to %s: %w", path, err)
	}

	if !c.Foreground {
		conn.SetReadDeadline(time.Now().Add(ResponseTimeout))
	}

	errLines := []string{}
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, ErrPrefix) {
			errLines = append(errLines, strings.TrimPrefix(line, ErrPrefix))
			continue
		}

		if c.RespCB != nil && !c.RespCB(line) {
			break
		}
	}

	err = scanner.Err()
	if err != nil && !c.isClosed() {
		return fmt.Errorf("unable to read response from %s: %w", path, err)
	}

	if len(errLines) > 0 {
		return &RemoteError{Lines: errLines}
	}

	return nil
}

// Close ends a Send in progress.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.conn == nil {
		return nil
	}

	err := c.conn.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Send issues msg to the server on path and returns the whole response.
func Send(path, msg string) (string, error) {
	lines := []string{}
	client := &Client{
		RespCB: func(line string) bool {
			lines = append(lines, line)
			return true
		},
	}

	err := client.Send(path, msg)
	return strings.Join(lines, "\n"), err
}

//--------------------------------------------------------------------------------
// private

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

package util

import (
	"bytes"
	"io"
	"sync"
)

// CommandLogger collects the output of an external command and hands it to
// Log one line at a time. Blank lines are skipped.
type CommandLogger struct {
	Log func(string)

	buf   bytes.Buffer
	mutex sync.Mutex
}

var _ io.WriteCloser = (*CommandLogger)(nil) // ensures we conform to the WriteCloser interface

func (cl *CommandLogger) Write(data []byte) (int, error) {
	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	n, err := cl.buf.Write(data)
	if err != nil {
		return n, err
	}

	for {
		i := bytes.IndexByte(cl.buf.Bytes(), '\n')
		if i < 0 {
			return n, nil // wait for more writes to complete the line
		}

		line := string(bytes.TrimRight(cl.buf.Next(i+1), "\r\n"))
		if line != "" {
			cl.Log(line)
		}
	}
}

// Close flushes a trailing partial line.
func (cl *CommandLogger) Close() error {
	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	if cl.buf.Len() > 0 {
		cl.Log(cl.buf.String())
	}

	cl.buf.Reset()
	return nil
}

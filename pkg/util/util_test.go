package util

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoveredError(t *testing.T) {
	cause := errors.New("kaboom")
	err := RecoveredError(cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "recovered error")

	err = RecoveredError("a string panic")
	assert.EqualError(t, err, "recovered error: a string panic")
}

func TestLogRecoverSwallowsPanic(t *testing.T) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer LogRecover()
		panic("from goroutine")
	}()
	<-done
}

func TestRecoverWithReportsPanic(t *testing.T) {
	got := make(chan error, 1)
	go func() {
		defer RecoverWith(func(err error) { got <- err })
		panic("palette exploded")
	}()

	err := <-got
	assert.EqualError(t, err, "recovered error: palette exploded")
}

func TestRecoverWithIgnoresNormalReturn(t *testing.T) {
	called := false
	func() {
		defer RecoverWith(func(error) { called = true })
	}()
	assert.False(t, called)
}

func TestBeNiceRejectsOutOfRange(t *testing.T) {
	assert.Error(t, BeNice(40))
	assert.Error(t, BeNice(-21))
}

func TestExtractRespectsExistingFiles(t *testing.T) {
	pathname := filepath.Join(t.TempDir(), "conf", "config.toml")

	written, err := Extract(pathname, []byte(`dir = "{{.Dir}}"`), map[string]string{"Dir": "/srv/inbox"}, false)
	require.NoError(t, err)
	assert.True(t, written)

	data, err := os.ReadFile(pathname)
	require.NoError(t, err)
	assert.Equal(t, `dir = "/srv/inbox"`, string(data))

	written, err = Extract(pathname, []byte("replaced"), nil, false)
	require.NoError(t, err)
	assert.False(t, written)

	written, err = Extract(pathname, []byte("replaced"), nil, true)
	require.NoError(t, err)
	assert.True(t, written)
	data, err = os.ReadFile(pathname)
	require.NoError(t, err)
	assert.Equal(t, "replaced", string(data))
}

func TestExtractBadTemplate(t *testing.T) {
	_, err := Extract(filepath.Join(t.TempDir(), "x"), []byte("{{.Broken"), struct{}{}, false)
	assert.Error(t, err)
}

func TestCommandLoggerSplitsLines(t *testing.T) {
	lines := []string{}
	cl := &CommandLogger{Log: func(s string) { lines = append(lines, s) }}

	_, err := cl.Write([]byte("uploaded a.webp\nsyn"))
	require.NoError(t, err)
	_, err = cl.Write([]byte("ced\r\n\n"))
	require.NoError(t, err)
	_, err = cl.Write([]byte("trailing"))
	require.NoError(t, err)
	assert.Equal(t, []string{"uploaded a.webp", "synced"}, lines)

	require.NoError(t, cl.Close())
	assert.Equal(t, []string{"uploaded a.webp", "synced", "trailing"}, lines)
}

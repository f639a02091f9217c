package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadAndDelete(t *testing.T) {
	root := t.TempDir()
	fs, err := NewFileStore(root, "https://cdn.example.com/paintings/")
	require.NoError(t, err)

	url, err := fs.Upload(context.Background(), "thumbs/a.webp", []byte("pixels"), "image/webp")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/paintings/thumbs/a.webp", url)

	data, err := os.ReadFile(filepath.Join(root, "thumbs", "a.webp"))
	require.NoError(t, err)
	assert.Equal(t, "pixels", string(data))

	entries, err := os.ReadDir(filepath.Join(root, "thumbs"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "staging files should be gone")

	require.NoError(t, fs.Delete(context.Background(), "thumbs/a.webp"))
	_, err = os.Stat(filepath.Join(root, "thumbs", "a.webp"))
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, fs.Delete(context.Background(), "thumbs/a.webp"))
}

func TestUploadChecksContentType(t *testing.T) {
	root := t.TempDir()
	fs, err := NewFileStore(root, "")
	require.NoError(t, err)

	_, err = fs.Upload(context.Background(), "medium/a.png", []byte("RIFF"), "image/webp")
	assert.ErrorIs(t, err, ErrContentType)
	_, err = os.Stat(filepath.Join(root, "medium", "a.png"))
	assert.True(t, os.IsNotExist(err))

	_, err = fs.Upload(context.Background(), "medium/a.JPG", []byte("x"), "image/jpeg")
	assert.NoError(t, err)
	_, err = fs.Upload(context.Background(), "medium/noext", []byte("x"), "image/avif")
	assert.NoError(t, err)
	_, err = fs.Upload(context.Background(), "medium/b.webp", []byte("x"), "")
	assert.NoError(t, err)
}

func TestUploadRejectsEscapingKeys(t *testing.T) {
	fs, err := NewFileStore(t.TempDir(), "")
	require.NoError(t, err)

	for _, key := range []string{"", "../x.png", "a/../../x.png", "."} {
		_, err := fs.Upload(context.Background(), key, []byte("x"), "image/png")
		assert.True(t, errors.Is(err, ErrInvalidKey), "key %q", key)
	}
}

func TestUploadHonorsCanceledContext(t *testing.T) {
	fs, err := NewFileStore(t.TempDir(), "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = fs.Upload(ctx, "a.png", []byte("x"), "image/png")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestURLWithoutBase(t *testing.T) {
	fs := &FileStore{Root: "/srv/assets"}
	assert.Equal(t, "file:///srv/assets/a/b.png", fs.URL("a/b.png"))
}

func TestNewFileStoreRequiresRoot(t *testing.T) {
	_, err := NewFileStore("  ", "")
	assert.Error(t, err)
}

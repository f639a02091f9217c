package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BitPonyLLC/canvaspipe/pkg/catalog"
	"github.com/BitPonyLLC/canvaspipe/pkg/events"
	"github.com/BitPonyLLC/canvaspipe/pkg/palette"
	"github.com/BitPonyLLC/canvaspipe/pkg/raster"
	"github.com/BitPonyLLC/canvaspipe/pkg/storage"
	"github.com/BitPonyLLC/canvaspipe/pkg/variants"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidPNG(t *testing.T, w, h int, fill color.NRGBA) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, fill)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// memStore records uploads and can be told to fail the nth one.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	failAt  int
	calls   int
	deleted []string
}

var _ storage.Uploader = (*memStore)(nil) // ensures we conform to the Uploader interface

func (m *memStore) Upload(_ context.Context, key string, data []byte, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failAt == m.calls {
		return "", errors.New("bucket unavailable")
	}
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[key] = data
	return "mem://" + key, nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

type brokenIndex struct{}

func (brokenIndex) Add(context.Context, catalog.Image) (catalog.Image, error) {
	return catalog.Image{}, errors.New("disk full")
}

var blue = color.NRGBA{R: 0x3B, G: 0x82, B: 0xF6, A: 255}

func jpegOptions() variants.Options {
	opts := variants.DefaultOptions()
	opts.Format = variants.FormatJPEG
	return opts
}

func TestProcessStoresAndIndexes(t *testing.T) {
	root := t.TempDir()
	store, err := storage.NewFileStore(filepath.Join(root, "assets"), "https://cdn.example.com")
	require.NoError(t, err)

	cat, err := catalog.Open(filepath.Join(root, "catalog.db"))
	require.NoError(t, err)
	defer cat.Close()

	manager := &events.Manager{}
	watcher := manager.Watch()
	defer watcher.Stop()

	log := zerolog.Nop()
	p := NewProcessor(store, cat, jpegOptions(), manager, &log)
	p.KeyPrefix = "paintings"

	data := solidPNG(t, 1600, 1000, blue)
	record, err := p.Process(context.Background(), "Blue Hour.png", data)
	require.NoError(t, err)

	assert.NotZero(t, record.ID)
	assert.Equal(t, "blue", record.Color)
	assert.Equal(t, "image/jpeg", record.ContentType)
	assert.Equal(t, 1600, record.Width)
	assert.Equal(t, int64(len(data)), record.OriginalBytes)
	assert.True(t, strings.HasPrefix(record.ThumbnailURL, "https://cdn.example.com/paintings/thumbnail/Blue_Hour_"), record.ThumbnailURL)

	for _, url := range []string{record.ThumbnailURL, record.MediumURL, record.OriginalURL} {
		assert.Equal(t, record.ContentType, mime.TypeByExtension(path.Ext(url)), url)

		rel := strings.TrimPrefix(url, "https://cdn.example.com/")
		data, err := os.ReadFile(filepath.Join(root, "assets", filepath.FromSlash(rel)))
		require.NoError(t, err, url)
		assert.Equal(t, record.ContentType, http.DetectContentType(data), url)
	}

	stored, err := cat.List(context.Background(), "blue", 0)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, record, stored[0])

	event := <-watcher.Ch
	processed, ok := event.(ProcessedEvent)
	require.True(t, ok)
	assert.Equal(t, record.ID, processed.Image.ID)
}

func TestProcessDefaultFormatPublishesWebP(t *testing.T) {
	root := t.TempDir()
	store, err := storage.NewFileStore(root, "")
	require.NoError(t, err)

	log := zerolog.Nop()
	p := NewProcessor(store, nil, variants.DefaultOptions(), nil, &log)

	record, err := p.Process(context.Background(), "painting.png", solidPNG(t, 500, 400, blue))
	require.NoError(t, err)
	assert.Equal(t, "image/webp", record.ContentType)

	for _, url := range []string{record.ThumbnailURL, record.MediumURL, record.OriginalURL} {
		assert.Equal(t, ".webp", path.Ext(url), url)

		data, err := os.ReadFile(strings.TrimPrefix(url, "file://"))
		require.NoError(t, err, url)
		assert.Equal(t, "image/webp", http.DetectContentType(data), url)
	}
}

func TestProcessSurvivesColorPanic(t *testing.T) {
	orig := extractColor
	defer func() { extractColor = orig }()
	extractColor = func(*raster.DecodedImage) string { panic("bad pixel data") }

	store := &memStore{}
	log := zerolog.Nop()
	p := NewProcessor(store, nil, jpegOptions(), nil, &log)

	done := make(chan struct{})
	var record catalog.Image
	var err error
	go func() {
		defer close(done)
		record, err = p.Process(context.Background(), "a.png", solidPNG(t, 300, 200, blue))
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Process did not return after a color extraction panic")
	}
	require.NoError(t, err)
	assert.Equal(t, palette.Fallback, record.Color)
	assert.Len(t, store.objects, 3)
}

func TestProcessUndecodableEmitsFailure(t *testing.T) {
	manager := &events.Manager{}
	watcher := manager.Watch()
	defer watcher.Stop()

	store := &memStore{}
	log := zerolog.Nop()
	p := NewProcessor(store, nil, jpegOptions(), manager, &log)

	_, err := p.Process(context.Background(), "notes.png", []byte("not an image"))
	require.Error(t, err)
	assert.Zero(t, store.calls)

	failed, ok := (<-watcher.Ch).(FailedEvent)
	require.True(t, ok)
	assert.Equal(t, "notes.png", failed.Source)
}

func TestProcessRollsBackPartialUpload(t *testing.T) {
	store := &memStore{failAt: 3}
	log := zerolog.Nop()
	p := NewProcessor(store, nil, jpegOptions(), nil, &log)

	_, err := p.Process(context.Background(), "a.png", solidPNG(t, 800, 600, blue))
	require.Error(t, err)
	assert.Empty(t, store.objects)
	assert.Len(t, store.deleted, 2)
}

func TestProcessRollsBackWhenIndexFails(t *testing.T) {
	store := &memStore{}
	log := zerolog.Nop()
	p := NewProcessor(store, brokenIndex{}, jpegOptions(), nil, &log)

	_, err := p.Process(context.Background(), "a.png", solidPNG(t, 800, 600, blue))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Empty(t, store.objects)
	assert.Len(t, store.deleted, 3)
}

func TestProcessHonorsCanceledContext(t *testing.T) {
	store := &memStore{}
	log := zerolog.Nop()
	p := NewProcessor(store, nil, jpegOptions(), nil, &log)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Process(ctx, "a.png", solidPNG(t, 300, 200, blue))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, store.objects)
}

func TestKnownAfterProcessing(t *testing.T) {
	root := t.TempDir()
	store, err := storage.NewFileStore(filepath.Join(root, "assets"), "")
	require.NoError(t, err)
	cat, err := catalog.Open(filepath.Join(root, "catalog.db"))
	require.NoError(t, err)
	defer cat.Close()

	pathname := filepath.Join(root, "dusk.png")
	require.NoError(t, os.WriteFile(pathname, solidPNG(t, 200, 100, blue), 0o644))

	log := zerolog.Nop()
	p := NewProcessor(store, cat, jpegOptions(), nil, &log)
	ctx := context.Background()

	known, err := p.Known(ctx, pathname)
	require.NoError(t, err)
	assert.False(t, known)

	_, err = p.ProcessFile(ctx, pathname)
	require.NoError(t, err)

	known, err = p.Known(ctx, pathname)
	require.NoError(t, err)
	assert.True(t, known)

	// a different file under the same name is new
	require.NoError(t, os.WriteFile(pathname, solidPNG(t, 300, 100, blue), 0o644))
	known, err = p.Known(ctx, pathname)
	require.NoError(t, err)
	assert.False(t, known)
}

func TestKnownWithoutFinder(t *testing.T) {
	log := zerolog.Nop()
	p := NewProcessor(&memStore{}, brokenIndex{}, jpegOptions(), nil, &log)

	known, err := p.Known(context.Background(), "/does/not/matter.png")
	require.NoError(t, err)
	assert.False(t, known)
}

func TestProcessFileMissing(t *testing.T) {
	log := zerolog.Nop()
	p := NewProcessor(&memStore{}, nil, jpegOptions(), nil, &log)

	_, err := p.ProcessFile(context.Background(), filepath.Join(t.TempDir(), "nope.png"))
	assert.Error(t, err)
}

func TestProcessFileUsesBaseName(t *testing.T) {
	dir := t.TempDir()
	pathname := filepath.Join(dir, "study.png")
	require.NoError(t, os.WriteFile(pathname, solidPNG(t, 200, 100, blue), 0o644))

	store := &memStore{}
	log := zerolog.Nop()
	p := NewProcessor(store, nil, jpegOptions(), nil, &log)

	record, err := p.ProcessFile(context.Background(), pathname)
	require.NoError(t, err)
	assert.Equal(t, "study.png", record.SourceName)
	assert.Len(t, store.objects, 3)
}

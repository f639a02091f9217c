// Package pipeline turns a raw painting image into published variants and a
// catalog entry: decode once, extract the dominant color and render the
// variants side by side, upload, then index.
package pipeline

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/BitPonyLLC/canvaspipe/pkg/catalog"
	"github.com/BitPonyLLC/canvaspipe/pkg/dominant"
	"github.com/BitPonyLLC/canvaspipe/pkg/events"
	"github.com/BitPonyLLC/canvaspipe/pkg/palette"
	"github.com/BitPonyLLC/canvaspipe/pkg/raster"
	"github.com/BitPonyLLC/canvaspipe/pkg/storage"
	"github.com/BitPonyLLC/canvaspipe/pkg/util"
	"github.com/BitPonyLLC/canvaspipe/pkg/variants"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// replaceable in tests
var extractColor = dominant.ExtractDominantColor

// Indexer records processed images.
type Indexer interface {
	Add(ctx context.Context, img catalog.Image) (catalog.Image, error)
}

// Finder is implemented by indexes that can tell whether a source was already
// recorded.
type Finder interface {
	Has(ctx context.Context, sourceName string, originalBytes int64) (bool, error)
}

// ProcessedEvent is emitted after an image was stored and indexed.
type ProcessedEvent struct {
	Image   catalog.Image
	Elapsed time.Duration
}

// FailedEvent is emitted when processing a source did not complete.
type FailedEvent struct {
	Source string
	Err    error
}

// Processor wires the pure image steps to the storage and index
// collaborators it was constructed with.
type Processor struct {
	Uploader storage.Uploader
	Index    Indexer
	Options  variants.Options
	Events   *events.Manager

	// KeyPrefix is prepended to every storage key.
	KeyPrefix string

	log *zerolog.Logger
}

// NewProcessor builds a Processor. index and manager may be nil.
func NewProcessor(uploader storage.Uploader, index Indexer, options variants.Options, manager *events.Manager, log *zerolog.Logger) *Processor {
	plog := log.With().Str("component", "pipeline").Logger()
	return &Processor{
		Uploader: uploader,
		Index:    index,
		Options:  options,
		Events:   manager,
		log:      &plog,
	}
}

// ProcessFile reads and processes the image stored at pathname.
func (p *Processor) ProcessFile(ctx context.Context, pathname string) (catalog.Image, error) {
	data, err := os.ReadFile(pathname)
	if err != nil {
		err = errors.Wrapf(err, "unable to read %s", pathname)
		p.emit(FailedEvent{Source: pathname, Err: err})
		return catalog.Image{}, err
	}

	return p.Process(ctx, filepath.Base(pathname), data)
}

// Known reports whether the file at pathname is already in the index, matched
// by base name and size. It is false when the index cannot tell.
func (p *Processor) Known(ctx context.Context, pathname string) (bool, error) {
	finder, ok := p.Index.(Finder)
	if !ok {
		return false, nil
	}

	info, err := os.Stat(pathname)
	if err != nil {
		return false, errors.Wrapf(err, "unable to stat %s", pathname)
	}

	return finder.Has(ctx, filepath.Base(pathname), info.Size())
}

// Process handles one source image held in memory. name is the original file
// name the storage keys are derived from.
func (p *Processor) Process(ctx context.Context, name string, data []byte) (catalog.Image, error) {
	img, err := p.process(ctx, name, data)
	if err != nil {
		p.log.Err(err).Str("source", name).Msg("processing failed")
		p.emit(FailedEvent{Source: name, Err: err})
		return catalog.Image{}, err
	}
	return img, nil
}

//--------------------------------------------------------------------------------
// private

func (p *Processor) process(ctx context.Context, name string, data []byte) (catalog.Image, error) {
	if p.Uploader == nil {
		return catalog.Image{}, errors.New("no uploader configured")
	}

	start := time.Now()
	plog := p.log.With().Str("source", name).Logger()

	decoded, err := raster.DecodeBytes(data)
	if err != nil {
		return catalog.Image{}, err
	}

	plog.Debug().Int("width", decoded.Width()).Int("height", decoded.Height()).
		Str("format", decoded.Format()).Msg("decoded")

	// both steps only read the decoded image
	colorCh := make(chan string, 1)
	go func() {
		defer util.RecoverWith(func(err error) {
			plog.Warn().Err(err).Str("fallback", palette.Fallback).Msg("color extraction failed")
			colorCh <- palette.Fallback
		})
		colorCh <- extractColor(decoded)
	}()

	set, err := variants.Generate(decoded, p.Options)
	if err != nil {
		return catalog.Image{}, errors.Wrapf(err, "unable to generate variants of %s", name)
	}

	var color string
	select {
	case color = <-colorCh:
	case <-ctx.Done():
		return catalog.Image{}, ctx.Err()
	}

	if err := ctx.Err(); err != nil {
		return catalog.Image{}, err
	}

	urls, keys, err := p.upload(ctx, name, set)
	if err != nil {
		return catalog.Image{}, err
	}

	stats, err := variants.ComputeStats(int64(len(data)), int64(len(set.Original.Data)))
	if err != nil {
		p.deleteKeys(keys)
		return catalog.Image{}, err
	}

	record := catalog.Image{
		SourceName:      name,
		Color:           color,
		ContentType:     set.ContentType,
		ThumbnailURL:    urls[variants.KindThumbnail],
		MediumURL:       urls[variants.KindMedium],
		OriginalURL:     urls[variants.KindOriginal],
		Width:           decoded.Width(),
		Height:          decoded.Height(),
		OriginalBytes:   int64(len(data)),
		ThumbnailBytes:  int64(len(set.Thumbnail.Data)),
		MediumBytes:     int64(len(set.Medium.Data)),
		OptimizedBytes:  int64(len(set.Original.Data)),
		SavedPercentage: stats.SavedPercentage,
		Ratio:           stats.Ratio,
	}

	if p.Index != nil {
		record, err = p.Index.Add(ctx, record)
		if err != nil {
			plog.Warn().Msg("removing uploaded variants")
			p.deleteKeys(keys)
			return catalog.Image{}, errors.Wrapf(err, "unable to index %s", name)
		}
	}

	elapsed := time.Since(start)
	plog.Info().Str("color", color).Int32("saved%", stats.SavedPercentage).
		Dur("elapsed", elapsed).Msg("processed")

	p.emit(ProcessedEvent{Image: record, Elapsed: elapsed})
	return record, nil
}

// upload stores every variant and returns the public URLs and storage keys by
// kind. Keys end in the encoder's extension rather than the source's. Nothing
// stays behind when one of the uploads fails.
func (p *Processor) upload(ctx context.Context, name string, set *variants.Set) (map[variants.Kind]string, map[variants.Kind]string, error) {
	urls := map[variants.Kind]string{}
	keys := map[variants.Kind]string{}

	for _, kind := range variants.Kinds {
		key := path.Join(p.KeyPrefix, string(kind), variants.FilenameAs(name, kind, set.Extension))
		url, err := p.Uploader.Upload(ctx, key, set.Get(kind).Data, set.ContentType)
		if err != nil {
			p.deleteKeys(keys)
			return nil, nil, errors.Wrapf(err, "unable to upload %s variant of %s", kind, name)
		}
		urls[kind] = url
		keys[kind] = key
	}

	return urls, keys, nil
}

func (p *Processor) deleteKeys(keys map[variants.Kind]string) {
	// a fresh context: the caller's may already be canceled
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for kind, key := range keys {
		err := p.Uploader.Delete(ctx, key)
		if err != nil {
			p.log.Err(err).Str("key", key).Str("variant", string(kind)).Msg("unable to remove uploaded variant")
		}
	}
}

func (p *Processor) emit(event events.Event) {
	if p.Events != nil {
		p.Events.Emit(event)
	}
}

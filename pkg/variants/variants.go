// Package variants renders the storage variants of a painting image: a small
// thumbnail, a medium rendition and a recompressed full-size original.
package variants

import (
	"bytes"
	"fmt"
	"image"
	"math"
	"strings"
	"sync"

	"github.com/BitPonyLLC/canvaspipe/pkg/raster"
	"github.com/BitPonyLLC/canvaspipe/pkg/util"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Kind names a variant.
type Kind string

const (
	KindThumbnail Kind = "thumbnail"
	KindMedium    Kind = "medium"
	KindOriginal  Kind = "original"
)

// Kinds lists every variant in the order they appear in a Set.
var Kinds = []Kind{KindThumbnail, KindMedium, KindOriginal}

// ParseKind accepts a variant name in any case.
func ParseKind(value string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(value))) {
	case KindThumbnail:
		return KindThumbnail, nil
	case KindMedium:
		return KindMedium, nil
	case KindOriginal:
		return KindOriginal, nil
	default:
		return "", fmt.Errorf("unknown variant: %q", value)
	}
}

// Options control sizing and compression. A zero field takes its value from
// DefaultOptions.
type Options struct {
	ThumbnailMaxDim int `mapstructure:"thumbnail-max" json:"thumbnailMaxDim"`
	MediumMaxDim    int `mapstructure:"medium-max" json:"mediumMaxDim"`

	// Quality runs from MinQuality to 1. Zero selects the default of 0.85;
	// ask for MinQuality to get the smallest output.
	Quality float64 `mapstructure:"quality" json:"quality"`

	Format string `mapstructure:"format" json:"format"`
}

// MinQuality is the lowest quality every encoder distinguishes.
const MinQuality = 0.01

var defaultOptions = Options{
	ThumbnailMaxDim: 400,
	MediumMaxDim:    1200,
	Quality:         0.85,
	Format:          FormatWebP,
}

// DefaultOptions returns thumbnail 400, medium 1200, quality 0.85, webp.
func DefaultOptions() Options {
	return defaultOptions
}

// Variant is one encoded rendition.
type Variant struct {
	Kind   Kind
	Data   []byte
	Width  int
	Height int
}

// Set holds the three renditions produced from a single source.
type Set struct {
	Thumbnail   Variant
	Medium      Variant
	Original    Variant
	ContentType string
	Extension   string
}

// Get returns the variant of the given kind.
func (s *Set) Get(kind Kind) Variant {
	switch kind {
	case KindThumbnail:
		return s.Thumbnail
	case KindMedium:
		return s.Medium
	default:
		return s.Original
	}
}

// Each visits the variants in Kinds order.
func (s *Set) Each(cb func(v Variant)) {
	for _, k := range Kinds {
		cb(s.Get(k))
	}
}

// EncodeError reports a variant that the encoder could not produce.
type EncodeError struct {
	Kind Kind
	Err  error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("unable to encode %s variant: %v", e.Kind, e.Err)
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}

// TargetSize computes the dimensions of a rendition capped at maxDim on its
// longer side. Images already within the cap are never enlarged.
func TargetSize(width, height, maxDim int) (int, int) {
	if width <= 0 || height <= 0 || maxDim <= 0 {
		return width, height
	}

	if width >= height {
		if width <= maxDim {
			return width, height
		}
		return maxDim, scaleSide(height, maxDim, width)
	}

	if height <= maxDim {
		return width, height
	}
	return scaleSide(width, maxDim, height), maxDim
}

// Generate renders and encodes all three variants concurrently. The set is
// all-or-nothing: when any variant fails the returned error combines every
// failure and no set is returned.
func Generate(img *raster.DecodedImage, options Options) (*Set, error) {
	if img == nil {
		return nil, &raster.DecodeError{Err: errors.New("no decoded image")}
	}

	opts, err := options.normalized()
	if err != nil {
		return nil, err
	}

	enc, err := EncoderFor(opts.Format)
	if err != nil {
		return nil, err
	}

	caps := map[Kind]int{
		KindThumbnail: opts.ThumbnailMaxDim,
		KindMedium:    opts.MediumMaxDim,
		KindOriginal:  0,
	}

	results := make([]Variant, len(Kinds))
	errs := make([]error, len(Kinds))

	var wg sync.WaitGroup
	for i, kind := range Kinds {
		wg.Add(1)
		go func(i int, kind Kind) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[i] = &EncodeError{Kind: kind, Err: util.RecoveredError(r)}
				}
			}()
			results[i], errs[i] = render(img.Image(), kind, caps[kind], enc, opts.Quality)
		}(i, kind)
	}
	wg.Wait()

	if err := multierr.Combine(errs...); err != nil {
		return nil, err
	}

	return &Set{
		Thumbnail:   results[0],
		Medium:      results[1],
		Original:    results[2],
		ContentType: enc.ContentType(),
		Extension:   enc.Extension(),
	}, nil
}

//--------------------------------------------------------------------------------
// private

func (o Options) normalized() (Options, error) {
	n := o

	if n.ThumbnailMaxDim == 0 {
		n.ThumbnailMaxDim = defaultOptions.ThumbnailMaxDim
	}
	if n.MediumMaxDim == 0 {
		n.MediumMaxDim = defaultOptions.MediumMaxDim
	}
	if n.Quality == 0 {
		n.Quality = defaultOptions.Quality
	}
	if n.Format == "" {
		n.Format = defaultOptions.Format
	}

	if n.ThumbnailMaxDim < 0 || n.MediumMaxDim < 0 {
		return n, errors.Errorf("invalid variant caps: thumbnail=%d medium=%d", n.ThumbnailMaxDim, n.MediumMaxDim)
	}
	if n.Quality < MinQuality || n.Quality > 1 {
		return n, errors.Errorf("invalid quality %v: must be within %v-1.0", n.Quality, MinQuality)
	}

	return n, nil
}

func scaleSide(side, maxDim, longer int) int {
	scaled := int(math.Round(float64(side) * float64(maxDim) / float64(longer)))
	if scaled < 1 {
		scaled = 1
	}
	return scaled
}

func render(src image.Image, kind Kind, maxDim int, enc Encoder, quality float64) (Variant, error) {
	b := src.Bounds()
	width, height := b.Dx(), b.Dy()

	dst := src
	if maxDim > 0 {
		w, h := TargetSize(width, height, maxDim)
		if w != width || h != height {
			dst = imaging.Resize(src, w, h, imaging.Lanczos)
			width, height = w, h
		}
	}

	var buf bytes.Buffer
	err := enc.Encode(&buf, dst, quality)
	if err != nil {
		return Variant{}, &EncodeError{Kind: kind, Err: err}
	}

	if buf.Len() == 0 {
		return Variant{}, &EncodeError{Kind: kind, Err: errors.New("encoder produced no output")}
	}

	return Variant{Kind: kind, Data: buf.Bytes(), Width: width, Height: height}, nil
}

// Package dominant finds the palette color that best describes an image. It is
// a best-effort hint for filtering and display: sampling is deliberately
// sparse and the color distance is plain RGB.
package dominant

import (
	"image"
	"io"

	"github.com/BitPonyLLC/canvaspipe/pkg/palette"
	"github.com/BitPonyLLC/canvaspipe/pkg/raster"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"github.com/rs/zerolog/log"
)

const (
	// SampleMaxDim bounds the downscaled copy that gets sampled.
	SampleMaxDim = 100

	// SampleStride visits every 4th pixel of the flattened sample.
	SampleStride = 4

	// QuantizeStep is the width of a bucket on each channel.
	QuantizeStep = 32

	minAlpha      = 128
	minBrightness = 15
	maxBrightness = 240
)

// DefaultRGB is reported when no sample survives filtering.
var DefaultRGB = palette.RGBColor{Red: 128, Green: 128, Blue: 128}

// Match describes how a dominant color was chosen.
type Match struct {
	Color     palette.Color
	Quantized palette.RGBColor
	Count     int // occurrences of the winning bucket
	Samples   int // samples kept after filtering
	Fallback  bool
}

// ExtractDominantColor returns the palette name for img. A nil image yields
// palette.Fallback.
func ExtractDominantColor(img *raster.DecodedImage) string {
	if img == nil {
		return palette.Fallback
	}
	return Extract(img).Color.Name
}

// ExtractDominantColorFrom decodes r and returns its palette name. Decoding
// problems are logged and answered with palette.Fallback rather than returned.
func ExtractDominantColorFrom(r io.Reader) string {
	img, err := raster.Decode(r)
	if err != nil {
		log.Warn().Err(err).Str("fallback", palette.Fallback).Msg("unable to extract dominant color")
		return palette.Fallback
	}
	return ExtractDominantColor(img)
}

// Extract runs the sampling and matching steps and reports the details.
func Extract(img *raster.DecodedImage) Match {
	sample := downscale(img.Image())
	counts := countBuckets(sample)

	m := Match{Samples: counts.total}
	key, count, ok := counts.winner()
	if ok {
		m.Quantized = unpack(key)
		m.Count = count
	} else {
		m.Quantized = DefaultRGB
		m.Fallback = true
	}

	m.Color = palette.Nearest(m.Quantized)
	return m
}

// Quantize rounds v to the nearest multiple of QuantizeStep, clamped to 255.
func Quantize(v uint8) uint8 {
	q := (int(v) + QuantizeStep/2) / QuantizeStep * QuantizeStep
	if q > 255 {
		q = 255
	}
	return uint8(q)
}

//--------------------------------------------------------------------------------
// private

type bucket struct {
	count int
	first int
}

type bucketCounts struct {
	buckets map[uint32]*bucket
	total   int
}

// map iteration order is random, so first-seen order is tracked explicitly
func (bc *bucketCounts) add(key uint32) {
	b, ok := bc.buckets[key]
	if !ok {
		b = &bucket{first: len(bc.buckets)}
		bc.buckets[key] = b
	}
	b.count++
	bc.total++
}

func (bc *bucketCounts) winner() (uint32, int, bool) {
	var bestKey uint32
	var best *bucket
	for key, b := range bc.buckets {
		if best == nil || b.count > best.count || (b.count == best.count && b.first < best.first) {
			bestKey = key
			best = b
		}
	}
	if best == nil {
		return 0, 0, false
	}
	return bestKey, best.count, true
}

func downscale(src image.Image) *image.NRGBA {
	small := resize.Thumbnail(SampleMaxDim, SampleMaxDim, src, resize.Bilinear)
	return imaging.Clone(small)
}

func countBuckets(img *image.NRGBA) *bucketCounts {
	counts := &bucketCounts{buckets: map[uint32]*bucket{}}

	w := img.Rect.Dx()
	h := img.Rect.Dy()
	for i := 0; i < w*h; i += SampleStride {
		x := i % w
		y := i / w
		off := img.PixOffset(x+img.Rect.Min.X, y+img.Rect.Min.Y)
		r, g, b, a := img.Pix[off], img.Pix[off+1], img.Pix[off+2], img.Pix[off+3]

		if a < minAlpha {
			continue
		}

		// compare the channel sum against 3x the bounds to keep the mean exact
		sum := int(r) + int(g) + int(b)
		if sum < 3*minBrightness || sum > 3*maxBrightness {
			continue
		}

		counts.add(pack(Quantize(r), Quantize(g), Quantize(b)))
	}

	return counts
}

func pack(r, g, b uint8) uint32 {
	return uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}

func unpack(key uint32) palette.RGBColor {
	return palette.RGBColor{Red: uint8(key >> 16), Green: uint8(key >> 8), Blue: uint8(key)}
}

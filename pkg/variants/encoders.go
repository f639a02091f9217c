package variants

import (
	"image"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/gen2brain/avif"
	"github.com/pkg/errors"
)

const (
	FormatWebP = "webp"
	FormatJPEG = "jpeg"
	FormatAVIF = "avif"
)

// Encoder compresses a rendition with a lossy codec.
type Encoder interface {
	Name() string
	ContentType() string
	Extension() string

	// Encode writes img to w. quality is in the 0.0-1.0 range.
	Encode(w io.Writer, img image.Image, quality float64) error
}

var encoders = map[string]Encoder{
	FormatWebP: webpEncoder{},
	FormatJPEG: jpegEncoder{},
	FormatAVIF: avifEncoder{},
}

// EncoderFor looks up an encoder by format name ("jpg" is accepted for jpeg).
func EncoderFor(format string) (Encoder, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "jpg" {
		format = FormatJPEG
	}

	enc, ok := encoders[format]
	if !ok {
		return nil, errors.Errorf("unsupported output format: %q", format)
	}
	return enc, nil
}

// Formats lists the supported output formats.
func Formats() []string {
	names := make([]string, 0, len(encoders))
	for name := range encoders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

//--------------------------------------------------------------------------------
// private

type webpEncoder struct{}

var _ Encoder = webpEncoder{} // ensures we conform to the Encoder interface

func (webpEncoder) Name() string        { return FormatWebP }
func (webpEncoder) ContentType() string { return "image/webp" }
func (webpEncoder) Extension() string   { return ".webp" }

func (webpEncoder) Encode(w io.Writer, img image.Image, quality float64) error {
	err := webp.Encode(w, img, &webp.Options{Quality: float32(quality * 100)})
	return errors.Wrap(err, "webp")
}

type jpegEncoder struct{}

var _ Encoder = jpegEncoder{} // ensures we conform to the Encoder interface

func (jpegEncoder) Name() string        { return FormatJPEG }
func (jpegEncoder) ContentType() string { return "image/jpeg" }
func (jpegEncoder) Extension() string   { return ".jpg" }

func (jpegEncoder) Encode(w io.Writer, img image.Image, quality float64) error {
	err := imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(percent(quality)))
	return errors.Wrap(err, "jpeg")
}

type avifEncoder struct{}

var _ Encoder = avifEncoder{} // ensures we conform to the Encoder interface

func (avifEncoder) Name() string        { return FormatAVIF }
func (avifEncoder) ContentType() string { return "image/avif" }
func (avifEncoder) Extension() string   { return ".avif" }

func (avifEncoder) Encode(w io.Writer, img image.Image, quality float64) error {
	q := percent(quality)
	err := avif.Encode(w, img, avif.Options{
		Quality:           q,
		QualityAlpha:      q,
		Speed:             avif.DefaultSpeed,
		ChromaSubsampling: image.YCbCrSubsampleRatio420,
	})
	return errors.Wrap(err, "avif")
}

func percent(quality float64) int {
	q := int(math.Round(quality * 100))
	if q < 1 {
		q = 1
	}
	if q > 100 {
		q = 100
	}
	return q
}

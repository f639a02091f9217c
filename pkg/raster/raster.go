// Package raster decodes source images once into an immutable, non-premultiplied
// RGBA8 buffer that every later step of the pipeline reads from.
package raster

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	_ "golang.org/x/image/webp"
)

// DecodedImage is a read-only handle on decoded pixel data. Rows are stored
// top-to-bottom, four bytes (R, G, B, A) per pixel.
type DecodedImage struct {
	pix    *image.NRGBA
	format string
}

// DecodeError reports a source that could not be interpreted as an image.
type DecodeError struct {
	Source string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("unable to decode image: %v", e.Err)
	}
	return fmt.Sprintf("unable to decode %s: %v", e.Source, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decode reads a complete image from r.
func Decode(r io.Reader) (*DecodedImage, error) {
	return decode(r, "")
}

// DecodeBytes decodes an in-memory image.
func DecodeBytes(data []byte) (*DecodedImage, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Err: errors.New("no image data")}
	}
	return decode(bytes.NewReader(data), "")
}

// DecodeFile decodes the image stored at pathname.
func DecodeFile(pathname string) (*DecodedImage, error) {
	f, err := os.Open(pathname)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open %s", pathname)
	}
	defer f.Close()

	return decode(f, pathname)
}

// FromImage wraps an already decoded image, copying its pixels so the result
// can't be changed through img.
func FromImage(img image.Image) (*DecodedImage, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, &DecodeError{Err: errors.New("image has no pixels")}
	}
	return &DecodedImage{pix: imaging.Clone(img)}, nil
}

// Width of the image in pixels.
func (d *DecodedImage) Width() int {
	return d.pix.Rect.Dx()
}

// Height of the image in pixels.
func (d *DecodedImage) Height() int {
	return d.pix.Rect.Dy()
}

// Format is the name of the decoder that produced the image ("jpeg", "png", ...)
// or empty when built with FromImage.
func (d *DecodedImage) Format() string {
	return d.format
}

// Image exposes the pixels through the standard image interface. Callers must
// treat the result as read-only.
func (d *DecodedImage) Image() image.Image {
	return d.pix
}

// At returns the RGBA8 values of the pixel at column x, row y.
func (d *DecodedImage) At(x, y int) (r, g, b, a uint8) {
	i := d.pix.PixOffset(x, y)
	s := d.pix.Pix[i : i+4 : i+4]
	return s[0], s[1], s[2], s[3]
}

//--------------------------------------------------------------------------------
// private

func decode(r io.Reader, source string) (*DecodedImage, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, &DecodeError{Source: source, Err: errors.WithStack(err)}
	}

	if img.Bounds().Empty() {
		return nil, &DecodeError{Source: source, Err: errors.New("image has no pixels")}
	}

	// imaging.Clone normalizes every color model to NRGBA anchored at (0,0)
	return &DecodedImage{pix: imaging.Clone(img), format: format}, nil
}

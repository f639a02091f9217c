package variants

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"math"
	"testing"

	"github.com/BitPonyLLC/canvaspipe/pkg/raster"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func gradient(t *testing.T, w, h int) *raster.DecodedImage {
	src := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			src.SetNRGBA(x, y, color.NRGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	img, err := raster.FromImage(src)
	require.NoError(t, err)
	return img
}

func TestTargetSizeNeverExceedsCap(t *testing.T) {
	sizes := [][2]int{
		{4000, 3000}, {3000, 4000}, {1201, 1}, {1, 1201}, {1920, 1080},
		{401, 400}, {400, 401}, {5000, 5000}, {12345, 67}, {799, 1601},
	}

	for _, size := range sizes {
		for _, maxDim := range []int{400, 1200} {
			w, h := TargetSize(size[0], size[1], maxDim)
			assert.LessOrEqual(t, w, maxDim, "%v cap %d", size, maxDim)
			assert.LessOrEqual(t, h, maxDim, "%v cap %d", size, maxDim)
			assert.GreaterOrEqual(t, w, 1)
			assert.GreaterOrEqual(t, h, 1)

			if size[0] > maxDim || size[1] > maxDim {
				assert.Equal(t, maxDim, max(w, h), "longer side should hit the cap")

				// aspect preserved within a pixel on the shorter side
				if size[0] >= size[1] {
					expected := float64(size[1]) * float64(w) / float64(size[0])
					assert.LessOrEqual(t, math.Abs(float64(h)-expected), 1.0)
				} else {
					expected := float64(size[0]) * float64(h) / float64(size[1])
					assert.LessOrEqual(t, math.Abs(float64(w)-expected), 1.0)
				}
			}
		}
	}
}

func TestTargetSizeNoUpscale(t *testing.T) {
	w, h := TargetSize(300, 200, 400)
	assert.Equal(t, 300, w)
	assert.Equal(t, 200, h)

	w, h = TargetSize(400, 400, 400)
	assert.Equal(t, 400, w)
	assert.Equal(t, 400, h)
}

func TestTargetSizeRounding(t *testing.T) {
	w, h := TargetSize(1000, 333, 400)
	assert.Equal(t, 400, w)
	assert.Equal(t, 133, h) // 133.2

	w, h = TargetSize(333, 1000, 400)
	assert.Equal(t, 133, w)
	assert.Equal(t, 400, h)
}

func TestGenerateJPEG(t *testing.T) {
	img := gradient(t, 1600, 900)
	set, err := Generate(img, Options{Format: FormatJPEG})
	require.NoError(t, err)

	assert.Equal(t, "image/jpeg", set.ContentType)
	assert.Equal(t, [2]int{400, 225}, [2]int{set.Thumbnail.Width, set.Thumbnail.Height})
	assert.Equal(t, [2]int{1200, 675}, [2]int{set.Medium.Width, set.Medium.Height})
	assert.Equal(t, [2]int{1600, 900}, [2]int{set.Original.Width, set.Original.Height})

	set.Each(func(v Variant) {
		require.NotEmpty(t, v.Data, v.Kind)
		decoded, err := jpeg.Decode(bytes.NewReader(v.Data))
		require.NoError(t, err, v.Kind)
		assert.Equal(t, v.Width, decoded.Bounds().Dx(), v.Kind)
		assert.Equal(t, v.Height, decoded.Bounds().Dy(), v.Kind)
	})

	assert.Less(t, len(set.Thumbnail.Data), len(set.Medium.Data))
	assert.Less(t, len(set.Medium.Data), len(set.Original.Data))
}

func TestGenerateWebP(t *testing.T) {
	img := gradient(t, 500, 800)
	set, err := Generate(img, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, "image/webp", set.ContentType)
	assert.Equal(t, ".webp", set.Extension)
	assert.Equal(t, [2]int{250, 400}, [2]int{set.Thumbnail.Width, set.Thumbnail.Height})
	// smaller than the medium cap: passed through
	assert.Equal(t, [2]int{500, 800}, [2]int{set.Medium.Width, set.Medium.Height})
	assert.NotEmpty(t, set.Original.Data)
}

func TestGenerateSmallSourceKeepsDimensions(t *testing.T) {
	img := gradient(t, 120, 80)
	set, err := Generate(img, Options{Format: FormatJPEG})
	require.NoError(t, err)

	set.Each(func(v Variant) {
		assert.Equal(t, 120, v.Width, v.Kind)
		assert.Equal(t, 80, v.Height, v.Kind)
	})
}

func TestGenerateIsRepeatable(t *testing.T) {
	img := gradient(t, 900, 700)
	first, err := Generate(img, Options{Format: FormatJPEG, Quality: 0.7})
	require.NoError(t, err)
	second, err := Generate(img, Options{Format: FormatJPEG, Quality: 0.7})
	require.NoError(t, err)

	for _, kind := range Kinds {
		a, b := first.Get(kind), second.Get(kind)
		assert.Equal(t, a.Width, b.Width, kind)
		assert.Equal(t, a.Height, b.Height, kind)
	}
}

func TestGenerateQualityAffectsSize(t *testing.T) {
	img := gradient(t, 640, 480)
	low, err := Generate(img, Options{Format: FormatJPEG, Quality: 0.2})
	require.NoError(t, err)
	high, err := Generate(img, Options{Format: FormatJPEG, Quality: 0.95})
	require.NoError(t, err)

	assert.Less(t, len(low.Original.Data), len(high.Original.Data))
}

func TestZeroQualityMeansDefault(t *testing.T) {
	img := gradient(t, 300, 200)

	zero, err := Generate(img, Options{Format: FormatJPEG, Quality: 0})
	require.NoError(t, err)
	def, err := Generate(img, Options{Format: FormatJPEG, Quality: DefaultOptions().Quality})
	require.NoError(t, err)
	assert.Equal(t, def.Original.Data, zero.Original.Data)

	lowest, err := Generate(img, Options{Format: FormatJPEG, Quality: MinQuality})
	require.NoError(t, err)
	assert.Less(t, len(lowest.Original.Data), len(def.Original.Data))
}

func TestGenerateRejectsBadOptions(t *testing.T) {
	img := gradient(t, 10, 10)

	_, err := Generate(img, Options{Quality: 1.5})
	assert.Error(t, err)

	_, err = Generate(img, Options{Quality: -0.2})
	assert.Error(t, err)

	_, err = Generate(img, Options{Quality: MinQuality / 2})
	assert.Error(t, err)

	_, err = Generate(img, Options{Format: "bmp"})
	assert.Error(t, err)

	_, err = Generate(nil, DefaultOptions())
	var decodeErr *raster.DecodeError
	assert.True(t, errors.As(err, &decodeErr))
}

type failingEncoder struct {
	jpegEncoder
	fail map[int]bool
	maxW int
}

func (f failingEncoder) Name() string { return "failing" }

func (f failingEncoder) Encode(w io.Writer, img image.Image, quality float64) error {
	if f.fail[img.Bounds().Dx()] {
		return errors.New("boom")
	}
	if img.Bounds().Dx() == f.maxW {
		return nil // declines to write anything
	}
	return f.jpegEncoder.Encode(w, img, quality)
}

func TestGenerateCouplesFailures(t *testing.T) {
	encoders["failing"] = failingEncoder{fail: map[int]bool{400: true}, maxW: 1600}
	defer delete(encoders, "failing")

	img := gradient(t, 1600, 800)
	set, err := Generate(img, Options{Format: "failing"})
	require.Error(t, err)
	assert.Nil(t, set)

	errs := multierr.Errors(err)
	require.Len(t, errs, 2)

	kinds := []Kind{}
	for _, e := range errs {
		var encErr *EncodeError
		require.True(t, errors.As(e, &encErr))
		kinds = append(kinds, encErr.Kind)
	}
	assert.Equal(t, []Kind{KindThumbnail, KindOriginal}, kinds)
}

func TestEncoderFor(t *testing.T) {
	for _, name := range []string{"webp", "JPEG", "jpg", "avif"} {
		enc, err := EncoderFor(name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, enc.ContentType())
	}

	_, err := EncoderFor("tiff")
	assert.Error(t, err)
	assert.Equal(t, []string{"avif", "jpeg", "webp"}, Formats())
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Thumbnail")
	require.NoError(t, err)
	assert.Equal(t, KindThumbnail, k)

	_, err = ParseKind("poster")
	assert.Error(t, err)
}

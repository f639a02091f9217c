package image_matcher

import (
	"errors"
	"fmt"
	"image/color"
	"sort"
	"strings"

	"github.com/BitPonyLLC/canvaspipe/pkg/dominant"
	"github.com/BitPonyLLC/canvaspipe/pkg/palette"
	"github.com/BitPonyLLC/canvaspipe/pkg/raster"

	"github.com/EdlinOrg/prominentcolor"
	"github.com/cenkalti/dominantcolor"
)

// Method names a way of picking the most representative color of an image.
type Method string

const (
	// MethodSample is the bucket sampler the pipeline files images with.
	MethodSample Method = "sample"
	// MethodKmeans clusters the pixels and keeps the largest cluster.
	MethodKmeans Method = "kmeans"
	// MethodDominantColor takes the heaviest color found by dominantcolor.
	MethodDominantColor Method = "dominantcolor"
)

// Result is a palette match together with the raw color that produced it.
type Result struct {
	Method Method
	Name   string
	RGB    palette.RGBColor
}

var methods = map[Method]func(*raster.DecodedImage) (palette.RGBColor, error){
	MethodSample:        sample,
	MethodKmeans:        kmeans,
	MethodDominantColor: heaviest,
}

// Methods lists the names accepted by ParseMethod.
func Methods() []string {
	names := make([]string, 0, len(methods))
	for m := range methods {
		names = append(names, string(m))
	}
	sort.Strings(names)
	return names
}

func ParseMethod(name string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(name)))
	if m == "" {
		return MethodSample, nil
	}
	if _, ok := methods[m]; !ok {
		return "", fmt.Errorf("unknown method %q (expected one of %s)", name, strings.Join(Methods(), ", "))
	}
	return m, nil
}

// ColorOf matches img to the palette using method.
func ColorOf(img *raster.DecodedImage, method Method) (Result, error) {
	if img == nil {
		return Result{}, errors.New("no image to match")
	}

	fn, ok := methods[method]
	if !ok {
		return Result{}, fmt.Errorf("unknown method %q", method)
	}

	rgb, err := fn(img)
	if err != nil {
		return Result{}, err
	}

	return Result{Method: method, Name: palette.Nearest(rgb).Name, RGB: rgb}, nil
}

// ColorOfFile decodes pathname and matches it with method.
func ColorOfFile(pathname string, method Method) (Result, error) {
	img, err := raster.DecodeFile(pathname)
	if err != nil {
		return Result{}, err
	}

	return ColorOf(img, method)
}

//--------------------------------------------------------------------------------
// private

func sample(img *raster.DecodedImage) (palette.RGBColor, error) {
	match := dominant.Extract(img)
	return match.Quantized, nil
}

func kmeans(img *raster.DecodedImage) (palette.RGBColor, error) {
	colors, err := prominentcolor.KmeansWithArgs(prominentcolor.ArgumentNoCropping, img.Image())
	if err != nil {
		return palette.RGBColor{}, fmt.Errorf("unable to extract dominant color: %w", err)
	}

	var best *prominentcolor.ColorItem
	for i, c := range colors {
		if best == nil || c.Cnt > best.Cnt {
			best = &colors[i]
		}
	}

	if best == nil {
		return palette.RGBColor{}, errors.New("no colors found")
	}

	return palette.RGBColor{
		Red:   uint8(best.Color.R),
		Green: uint8(best.Color.G),
		Blue:  uint8(best.Color.B),
	}, nil
}

func heaviest(img *raster.DecodedImage) (palette.RGBColor, error) {
	candidates := dominantcolor.FindWeight(img.Image(), 4)
	if len(candidates) == 0 {
		return palette.RGBColor{}, errors.New("no colors found")
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Weight > best.Weight {
			best = c
		}
	}

	return fromRGBA(best.RGBA), nil
}

func fromRGBA(c color.RGBA) palette.RGBColor {
	return palette.RGBColor{Red: c.R, Green: c.G, Blue: c.B}
}

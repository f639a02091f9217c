// Package palette holds the fixed set of named colors that paintings are
// filed under and the nearest-neighbor lookup used to map any RGB triple onto
// one of them.
package palette

import (
	"fmt"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// RGBColor represents Red Green and Blue values of a color
type RGBColor struct {
	Red   uint8
	Green uint8
	Blue  uint8
}

// Color is one named palette entry.
type Color struct {
	Name string
	RGB  RGBColor
}

const rgbHexFormat = "#%02X%02X%02X"

// Fallback is the name reported when an image can't be read at all.
const Fallback = "blue"

// declaration order matters: it breaks distance ties
var declared = []struct {
	name string
	hex  string
}{
	{"red", "#EF4444"},
	{"orange", "#F97316"},
	{"yellow", "#EAB308"},
	{"green", "#22C55E"},
	{"blue", "#3B82F6"},
	{"purple", "#A855F7"},
	{"pink", "#EC4899"},
	{"brown", "#92400E"},
	{"black", "#000000"},
	{"white", "#FFFFFF"},
	{"gray", "#6B7280"},
	{"beige", "#F5F5DC"},
}

var colors []Color

func init() {
	colors = make([]Color, 0, len(declared))
	for _, d := range declared {
		rgb, err := ParseHex(d.hex)
		if err != nil {
			panic(err)
		}
		colors = append(colors, Color{Name: d.name, RGB: rgb})
	}
}

// ParseHex converts a "#RRGGBB" string into an RGBColor.
func ParseHex(hex string) (RGBColor, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return RGBColor{}, fmt.Errorf("unable to parse color %q: %w", hex, err)
	}

	r, g, b := c.RGB255()
	return RGBColor{r, g, b}, nil
}

// Hex returns a color in "#RRGGBB" format
func (c RGBColor) Hex() string {
	return fmt.Sprintf(rgbHexFormat, c.Red, c.Green, c.Blue)
}

func (c RGBColor) String() string {
	return c.Hex()
}

// All returns a copy of the palette in declaration order.
func All() []Color {
	out := make([]Color, len(colors))
	copy(out, colors)
	return out
}

// Names returns the palette names in declaration order.
func Names() []string {
	names := make([]string, len(colors))
	for i, c := range colors {
		names[i] = c.Name
	}
	return names
}

// Lookup finds a palette entry by (case-insensitive) name.
func Lookup(name string) (Color, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, c := range colors {
		if c.Name == name {
			return c, true
		}
	}
	return Color{}, false
}

// Each invokes cb for every entry in declaration order.
func Each(cb func(name, hex string)) {
	for _, c := range colors {
		cb(c.Name, c.RGB.Hex())
	}
}

// Nearest maps rgb onto the palette entry with the smallest Euclidean
// distance. Only a strictly smaller distance replaces the current best, so the
// earliest declared entry wins a tie.
func Nearest(rgb RGBColor) Color {
	best := colors[0]
	bestDist := distanceSq(rgb, best.RGB)
	for _, c := range colors[1:] {
		d := distanceSq(rgb, c.RGB)
		if d < bestDist {
			best = c
			bestDist = d
		}
	}
	return best
}

//--------------------------------------------------------------------------------
// private

// squared distance preserves ordering and stays in integers
func distanceSq(a, b RGBColor) int {
	dr := int(a.Red) - int(b.Red)
	dg := int(a.Green) - int(b.Green)
	db := int(a.Blue) - int(b.Blue)
	return dr*dr + dg*dg + db*db
}

// Package thread provides thread colors and brand palettes.
package thread

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrBadColor is returned when a hex color string cannot be parsed.
var ErrBadColor = errors.New("thread: bad color")

// Color is an RGBA thread color.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
	A uint8 `json:"a"`
}

// RGB returns an opaque color.
func RGB(r, g, b uint8) Color {
	return Color{R: r, G: g, B: b, A: 255}
}

// Black is the fallback thread for blocks without a color.
var Black = RGB(0, 0, 0)

// ParseHex parses "#rrggbb", "rrggbb" or "#rgb".
func ParseHex(s string) (Color, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return Color{}, fmt.Errorf("%w: %q", ErrBadColor, s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("%w: %q", ErrBadColor, s)
	}
	return RGB(uint8(v>>16), uint8(v>>8), uint8(v)), nil
}

// Hex formats c as "#rrggbb".
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// DistanceSq is the squared RGB distance used for nearest-color matching.
func (c Color) DistanceSq(o Color) int {
	dr := int(c.R) - int(o.R)
	dg := int(c.G) - int(o.G)
	db := int(c.B) - int(o.B)
	return dr*dr + dg*dg + db*db
}

// NearestIndex returns the index of the palette color closest to c. Ties go
// to the lower index. An empty palette returns -1.
func NearestIndex(c Color, palette []Color) int {
	best, bestD := -1, 0
	for i, p := range palette {
		d := c.DistanceSq(p)
		if best < 0 || d < bestD {
			best, bestD = i, d
		}
	}
	return best
}

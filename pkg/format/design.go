// Package format lowers a routed stitch stream into machine embroidery
// files. Every encoder consumes the same Design; each applies its own
// coordinate quantization, per-stitch distance limit and color table.
package format

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/chazu/bobbin/pkg/geom"
	"github.com/chazu/bobbin/pkg/thread"
)

// StitchType is the command attached to a stitch position.
type StitchType int

const (
	Normal StitchType = iota
	Jump
	Trim
	ColorChange
	End
)

var stitchTypeNames = [...]string{"Normal", "Jump", "Trim", "ColorChange", "End"}

func (t StitchType) String() string {
	if t >= 0 && int(t) < len(stitchTypeNames) {
		return stitchTypeNames[t]
	}
	return fmt.Sprintf("StitchType(%d)", int(t))
}

// MarshalJSON writes the type by name.
func (t StitchType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON reads a type name.
func (t *StitchType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for i, n := range stitchTypeNames {
		if n == s {
			*t = StitchType(i)
			return nil
		}
	}
	return fmt.Errorf("unknown stitch type %q", s)
}

// Stitch is one command at an absolute position in millimeters.
type Stitch struct {
	X    float64    `json:"x"`
	Y    float64    `json:"y"`
	Type StitchType `json:"type"`
}

// Design is the canonical lowered form of an embroidery. Colors lists one
// thread per color block, in sewing order.
type Design struct {
	Name     string         `json:"name"`
	Stitches []Stitch       `json:"stitches"`
	Colors   []thread.Color `json:"colors"`
}

// Extents returns the bounds of every stitch, or a zero box when empty.
func (d Design) Extents() geom.BBox {
	if len(d.Stitches) == 0 {
		return geom.BBox{}
	}
	b := geom.EmptyBBox()
	for _, s := range d.Stitches {
		b = b.Extend(geom.Pt(s.X, s.Y))
	}
	return b
}

// ColorChangeCount counts ColorChange commands.
func (d Design) ColorChangeCount() int {
	n := 0
	for _, s := range d.Stitches {
		if s.Type == ColorChange {
			n++
		}
	}
	return n
}

// Needles returns the positions of Normal stitches, the points where
// thread actually enters the fabric.
func (d Design) Needles() []geom.Point {
	var out []geom.Point
	for _, s := range d.Stitches {
		if s.Type == Normal {
			out = append(out, geom.Pt(s.X, s.Y))
		}
	}
	return out
}

// unit is a stitch in 0.1 mm integer coordinates.
type unit struct {
	X, Y int
	Type StitchType
}

// Units converts every stitch to 0.1 mm integers.
func (d Design) Units() []unit {
	out := make([]unit, len(d.Stitches))
	for i, s := range d.Stitches {
		out[i] = unit{X: toUnit(s.X), Y: toUnit(s.Y), Type: s.Type}
	}
	return out
}

func toUnit(mm float64) int {
	return int(math.Round(mm * 10))
}

func fromUnit(u int) float64 {
	return float64(u) / 10
}

// threadColor returns the color of block i, black when the design lists
// fewer colors than it has blocks.
func (d Design) threadColor(i int) thread.Color {
	if i < len(d.Colors) {
		return d.Colors[i]
	}
	return thread.Black
}

// blockCount is the number of color blocks the stitch stream uses.
func (d Design) blockCount() int {
	return max(d.ColorChangeCount()+1, len(d.Colors), 1)
}

package kernel

import (
	"math"

	"github.com/chazu/bobbin/pkg/geom"
)

// maxGridCells caps a sample grid so measurements stay bounded on huge or
// malformed regions; the step is widened to fit.
const maxGridCells = 40000

// Grid is a regular sampling of a region's signed distance field. Values are
// stored row-major, one per cell center.
type Grid struct {
	Origin geom.Point `json:"origin"` // center of cell (0,0)
	Step   float64    `json:"step"`
	Cols   int        `json:"cols"`
	Rows   int        `json:"rows"`
	Values []float64  `json:"values"`
}

// Sample evaluates r on a grid of the given step over its bounds.
func Sample(r Region, step float64) *Grid {
	b := r.Bounds()
	if b.IsEmpty() || step <= 0 {
		return &Grid{Step: step}
	}
	cols := int(math.Ceil(b.Width()/step)) + 1
	rows := int(math.Ceil(b.Height()/step)) + 1
	for cols*rows > maxGridCells {
		step *= 1.5
		cols = int(math.Ceil(b.Width()/step)) + 1
		rows = int(math.Ceil(b.Height()/step)) + 1
	}
	g := &Grid{
		Origin: geom.Pt(b.MinX, b.MinY),
		Step:   step,
		Cols:   cols,
		Rows:   rows,
		Values: make([]float64, cols*rows),
	}
	for j := 0; j < rows; j++ {
		for i := 0; i < cols; i++ {
			g.Values[j*cols+i] = r.Distance(g.Center(i, j))
		}
	}
	return g
}

// Center returns the sample position of cell (i, j).
func (g *Grid) Center(i, j int) geom.Point {
	return geom.Pt(g.Origin.X+float64(i)*g.Step, g.Origin.Y+float64(j)*g.Step)
}

// CellCount returns the number of samples.
func (g *Grid) CellCount() int {
	return len(g.Values)
}

// InsideCount returns the number of samples inside the region.
func (g *Grid) InsideCount() int {
	n := 0
	for _, v := range g.Values {
		if v <= 0 {
			n++
		}
	}
	return n
}

// IsEmpty returns true if no sample lies inside the region.
func (g *Grid) IsEmpty() bool {
	return g.InsideCount() == 0
}

// MaxDepth returns the largest distance from an inside sample to the
// boundary, an estimate of the maximum inscribed circle radius.
func (g *Grid) MaxDepth() float64 {
	best := 0.0
	for _, v := range g.Values {
		if -v > best {
			best = -v
		}
	}
	return best
}

// MaxInscribedRadius samples r at step and returns its widest interior
// radius. A region narrower than step may report 0.
func MaxInscribedRadius(r Region, step float64) float64 {
	return Sample(r, step).MaxDepth()
}

package kernel

import (
	"testing"

	"github.com/chazu/bobbin/pkg/geom"
)

// boxRegion is an exact signed distance field for an axis-aligned box.
type boxRegion struct {
	b geom.BBox
}

func (r boxRegion) Distance(p geom.Point) float64 {
	dx := max(r.b.MinX-p.X, p.X-r.b.MaxX)
	dy := max(r.b.MinY-p.Y, p.Y-r.b.MaxY)
	if dx <= 0 && dy <= 0 {
		return max(dx, dy)
	}
	return geom.Pt(max(dx, 0), max(dy, 0)).Len()
}

func (r boxRegion) Bounds() geom.BBox { return r.b }

func TestGridCounts(t *testing.T) {
	tests := []struct {
		name      string
		box       geom.BBox
		step      float64
		wantCells int
	}{
		{"unit step", geom.BBox{MinX: 0, MinY: 0, MaxX: 4, MaxY: 2}, 1, 15},
		{"half step", geom.BBox{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}, 0.5, 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := Sample(boxRegion{tt.box}, tt.step)
			if got := g.CellCount(); got != tt.wantCells {
				t.Errorf("CellCount() = %d, want %d", got, tt.wantCells)
			}
			if g.IsEmpty() {
				t.Error("box grid should have inside samples")
			}
		})
	}
}

func TestGridEmptyRegion(t *testing.T) {
	g := Sample(boxRegion{geom.EmptyBBox()}, 1)
	if !g.IsEmpty() {
		t.Error("empty region should produce an empty grid")
	}
	if g.CellCount() != 0 {
		t.Errorf("CellCount() = %d, want 0", g.CellCount())
	}
}

func TestMaxInscribedRadius(t *testing.T) {
	r := boxRegion{geom.BBox{MinX: 0, MinY: 0, MaxX: 10, MaxY: 2}}
	got := MaxInscribedRadius(r, 0.25)
	if got < 0.9 || got > 1.0+1e-9 {
		t.Errorf("MaxInscribedRadius = %f, want about 1", got)
	}
}

func TestSampleCapsCellCount(t *testing.T) {
	g := Sample(boxRegion{geom.BBox{MinX: 0, MinY: 0, MaxX: 1000, MaxY: 1000}}, 0.1)
	if g.CellCount() > maxGridCells {
		t.Errorf("CellCount() = %d exceeds cap %d", g.CellCount(), maxGridCells)
	}
}

func TestContainsAndNear(t *testing.T) {
	r := boxRegion{geom.BBox{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}}
	if !Contains(r, geom.Pt(5, 5)) {
		t.Error("center should be contained")
	}
	if Contains(r, geom.Pt(12, 5)) {
		t.Error("outside point should not be contained")
	}
	if !Near(r, geom.Pt(12, 5), 3) {
		t.Error("point 2mm outside should be near with 3mm tolerance")
	}
}

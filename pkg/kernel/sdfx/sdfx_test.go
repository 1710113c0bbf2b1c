package sdfx

import (
	"math"
	"testing"

	"github.com/chazu/bobbin/pkg/geom"
	"github.com/chazu/bobbin/pkg/kernel"
)

func square(x, y, size float64) []geom.Point {
	return []geom.Point{
		{X: x, Y: y}, {X: x + size, Y: y}, {X: x + size, Y: y + size}, {X: x, Y: y + size}, {X: x, Y: y},
	}
}

func TestPolygonSignedDistance(t *testing.T) {
	k := New()
	r, err := k.Polygon([][]geom.Point{square(0, 0, 10)})
	if err != nil {
		t.Fatalf("Polygon failed: %v", err)
	}
	if d := r.Distance(geom.Pt(5, 5)); math.Abs(d+5) > 1e-6 {
		t.Errorf("center distance = %f, want -5", d)
	}
	if d := r.Distance(geom.Pt(13, 5)); math.Abs(d-3) > 1e-6 {
		t.Errorf("outside distance = %f, want 3", d)
	}
	b := r.Bounds()
	if b.MinX > 0 || b.MaxX < 10 {
		t.Errorf("bounds %+v do not cover the square", b)
	}
}

func TestPolygonWithHole(t *testing.T) {
	k := New()
	r, err := k.Polygon([][]geom.Point{square(0, 0, 10), square(3, 3, 4)})
	if err != nil {
		t.Fatalf("Polygon failed: %v", err)
	}
	if kernel.Contains(r, geom.Pt(5, 5)) {
		t.Error("hole center should be outside the region")
	}
	if !kernel.Contains(r, geom.Pt(1, 1)) {
		t.Error("ring body should be inside the region")
	}
}

func TestPolygonDisjoint(t *testing.T) {
	k := New()
	r, err := k.Polygon([][]geom.Point{square(0, 0, 2), square(10, 0, 2)})
	if err != nil {
		t.Fatalf("Polygon failed: %v", err)
	}
	for _, p := range []geom.Point{{X: 1, Y: 1}, {X: 11, Y: 1}} {
		if !kernel.Contains(r, p) {
			t.Errorf("%v should be inside", p)
		}
	}
	if kernel.Contains(r, geom.Pt(6, 1)) {
		t.Error("gap between components should be outside")
	}
}

func TestPolygonNoRings(t *testing.T) {
	k := New()
	if _, err := k.Polygon(nil); err == nil {
		t.Fatal("expected error for empty ring set")
	}
	if _, err := k.Polygon([][]geom.Point{{{X: 0, Y: 0}, {X: 1, Y: 1}}}); err == nil {
		t.Fatal("expected error for degenerate ring")
	}
}

func TestOffsetAndBooleans(t *testing.T) {
	k := New()
	a, _ := k.Polygon([][]geom.Point{square(0, 0, 10)})
	b, _ := k.Polygon([][]geom.Point{square(5, 0, 10)})

	grown := k.Offset(a, 1)
	if !kernel.Contains(grown, geom.Pt(10.5, 5)) {
		t.Error("offset region should include points 0.5mm outside")
	}
	u := k.Union(a, b)
	if !kernel.Contains(u, geom.Pt(14, 5)) {
		t.Error("union should include b")
	}
	d := k.Difference(a, b)
	if kernel.Contains(d, geom.Pt(7, 5)) {
		t.Error("difference should exclude the overlap")
	}
	if !kernel.Contains(d, geom.Pt(2, 5)) {
		t.Error("difference should keep the rest of a")
	}
}

func TestMaxInscribedRadiusNarrowStrip(t *testing.T) {
	k := New()
	strip := []geom.Point{{X: 0, Y: 0}, {X: 20, Y: 0}, {X: 20, Y: 0.8}, {X: 0, Y: 0.8}, {X: 0, Y: 0}}
	r, err := k.Polygon([][]geom.Point{strip})
	if err != nil {
		t.Fatalf("Polygon failed: %v", err)
	}
	if got := kernel.MaxInscribedRadius(r, 0.1); got > 0.45 {
		t.Errorf("strip radius = %f, want <= 0.4", got)
	}
}

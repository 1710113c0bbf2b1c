package scene

import (
	"math"

	"github.com/chazu/bobbin/pkg/geom"
	"github.com/chazu/bobbin/pkg/kernel"
	"github.com/chazu/bobbin/pkg/stitch"
)

// Outline returns a shape's flattened outline in world coordinates. Text
// shapes return their placed glyph contours. A shape with non-finite
// geometry or transform has an empty outline.
func (s *Scene) Outline(id NodeID) ([]geom.Subpath, bool) {
	n, ok := s.nodes[id]
	if !ok {
		return nil, false
	}
	k, ok := n.shape()
	if !ok || k.Geometry == nil {
		return nil, false
	}
	m := s.WorldMatrix(id)
	if !geom.Finite(k.Geometry) || !m.Finite() {
		return nil, true
	}
	local := localOutline(k)
	out := make([]geom.Subpath, len(local))
	for i, sp := range local {
		out[i] = geom.Subpath{Points: m.ApplyAll(sp.Points), Closed: sp.Closed}
	}
	return out, true
}

func localOutline(k ShapeKind) []geom.Subpath {
	t, ok := k.Geometry.(geom.TextGeometry)
	if !ok {
		return k.Geometry.ToPath().Subpaths(geom.FlattenTolerance)
	}
	var base []geom.Point
	if !t.Baseline.IsEmpty() {
		base = t.Baseline.Flatten(geom.FlattenTolerance)
	}
	rings, err := stitch.LetterOutlines(t.Text, stitch.LetteringOptions{
		SizeMm:    t.SizeMm,
		SpacingMm: t.SpacingMm,
		Baseline:  base,
	})
	if err != nil || len(rings) == 0 {
		return t.ToPath().Subpaths(geom.FlattenTolerance)
	}
	out := make([]geom.Subpath, len(rings))
	for i, r := range rings {
		out[i] = geom.Subpath{Points: r, Closed: true}
	}
	return out
}

// finiteShape reports whether id's geometry and world transform are finite.
func (s *Scene) finiteShape(id NodeID) bool {
	k, ok := s.nodes[id].shape()
	if !ok || k.Geometry == nil {
		return true
	}
	return geom.Finite(k.Geometry) && s.WorldMatrix(id).Finite()
}

// StrokeWidth returns a shape's stroke width scaled into world units.
func (s *Scene) StrokeWidth(id NodeID) float64 {
	n, ok := s.nodes[id]
	if !ok {
		return 0
	}
	k, ok := n.shape()
	if !ok {
		return 0
	}
	return k.StrokeWidth * s.WorldMatrix(id).MeanScale()
}

// Region builds the kernel region of a shape's closed outline. ok is false
// for open or degenerate outlines.
func (s *Scene) Region(id NodeID) (kernel.Region, bool) {
	sub, ok := s.Outline(id)
	if !ok {
		return nil, false
	}
	rings := closedRings(sub)
	if len(rings) == 0 {
		return nil, false
	}
	r, err := s.kern.Polygon(rings)
	if err != nil {
		return nil, false
	}
	return r, true
}

func closedRings(sub []geom.Subpath) [][]geom.Point {
	var rings [][]geom.Point
	for _, sp := range sub {
		if sp.Closed && len(sp.Points) >= 3 {
			rings = append(rings, sp.Points)
		}
	}
	return rings
}

// RepairEpsilon is the distance under which outline points are merged.
const RepairEpsilon = 1e-3

// RepairedOutline is Outline after Repair.
func (s *Scene) RepairedOutline(id NodeID) ([]geom.Subpath, bool) {
	sub, ok := s.Outline(id)
	if !ok {
		return nil, false
	}
	return Repair(sub), true
}

// Repair drops duplicate points, zero-length edges and spikes, drops
// closed rings without area and rewinds the rest so outer rings are
// positive and holes negative. Open subpaths are only deduplicated.
func Repair(sub []geom.Subpath) []geom.Subpath {
	var (
		out   []geom.Subpath
		rings [][]geom.Point
		at    []int
	)
	for _, sp := range sub {
		if !sp.Closed {
			pts := geom.Dedupe(sp.Points, RepairEpsilon)
			if len(pts) >= 2 {
				out = append(out, geom.Subpath{Points: pts})
			}
			continue
		}
		rr := geom.RepairRing(sp.Points, RepairEpsilon)
		if rr == nil || math.Abs(geom.SignedArea(rr)) <= RepairEpsilon*RepairEpsilon {
			continue
		}
		at = append(at, len(out))
		rings = append(rings, rr)
		out = append(out, geom.Subpath{Points: rr, Closed: true})
	}
	for i, r := range rings {
		if hole := ringDepth(i, rings)%2 == 1; (geom.SignedArea(r) > 0) == hole {
			out[at[i]].Points = geom.Reverse(r)
		}
	}
	return out
}

// ringDepth counts the rings that contain ring i.
func ringDepth(i int, rings [][]geom.Point) int {
	depth := 0
	for j, o := range rings {
		if i != j && geom.PointInRing(rings[i][0], o) {
			depth++
		}
	}
	return depth
}

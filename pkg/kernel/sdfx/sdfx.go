// Package sdfx implements the kernel.Kernel interface using the 2D signed
// distance functions of the github.com/deadsy/sdfx CAD library.
package sdfx

import (
	"errors"
	"fmt"

	"github.com/chazu/bobbin/pkg/geom"
	"github.com/chazu/bobbin/pkg/kernel"
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// Compile-time interface check.
var _ kernel.Kernel = (*SdfxKernel)(nil)

// ErrNoRings is returned when a polygon has no usable ring.
var ErrNoRings = errors.New("sdfx: no rings with at least three vertices")

// sdfxRegion wraps an sdf.SDF2 to implement kernel.Region.
type sdfxRegion struct {
	s sdf.SDF2
}

// Distance evaluates the signed distance field.
func (r *sdfxRegion) Distance(p geom.Point) float64 {
	return r.s.Evaluate(v2.Vec{X: p.X, Y: p.Y})
}

// Bounds returns the axis-aligned bounding box.
func (r *sdfxRegion) Bounds() geom.BBox {
	bb := r.s.BoundingBox()
	return geom.BBox{MinX: bb.Min.X, MinY: bb.Min.Y, MaxX: bb.Max.X, MaxY: bb.Max.Y}
}

// SdfxKernel implements kernel.Kernel using sdfx.
type SdfxKernel struct{}

// New returns a new SdfxKernel.
func New() *SdfxKernel {
	return &SdfxKernel{}
}

func unwrap(r kernel.Region) sdf.SDF2 {
	return r.(*sdfxRegion).s
}

func wrap(s sdf.SDF2) kernel.Region {
	return &sdfxRegion{s: s}
}

// Polygon unions the outer rings and subtracts the holes. A ring is a hole
// when it sits inside an odd number of other rings.
func (k *SdfxKernel) Polygon(rings [][]geom.Point) (kernel.Region, error) {
	var usable [][]geom.Point
	for _, r := range rings {
		if rr := geom.RepairRing(r, 1e-9); rr != nil {
			usable = append(usable, rr)
		}
	}
	if len(usable) == 0 {
		return nil, ErrNoRings
	}

	var outers, holes []sdf.SDF2
	for i, r := range usable {
		s, err := polygon(r)
		if err != nil {
			return nil, err
		}
		depth := 0
		for j, o := range usable {
			if i != j && geom.PointInRing(r[0], o) {
				depth++
			}
		}
		if depth%2 == 0 {
			outers = append(outers, s)
		} else {
			holes = append(holes, s)
		}
	}

	var s sdf.SDF2
	if len(outers) == 1 {
		s = outers[0]
	} else {
		s = sdf.Union2D(outers...)
	}
	for _, h := range holes {
		s = sdf.Difference2D(s, h)
	}
	return wrap(s), nil
}

// polygon converts a closed ring into an sdfx polygon, dropping the
// repeated closing vertex.
func polygon(ring []geom.Point) (sdf.SDF2, error) {
	pts := ring[:len(ring)-1]
	vs := make([]v2.Vec, len(pts))
	for i, p := range pts {
		vs[i] = v2.Vec{X: p.X, Y: p.Y}
	}
	s, err := sdf.Polygon2D(vs)
	if err != nil {
		return nil, fmt.Errorf("sdfx.Polygon2D: %w", err)
	}
	return s, nil
}

// Union returns the union of two regions.
func (k *SdfxKernel) Union(a, b kernel.Region) kernel.Region {
	return wrap(sdf.Union2D(unwrap(a), unwrap(b)))
}

// Difference returns a minus b.
func (k *SdfxKernel) Difference(a, b kernel.Region) kernel.Region {
	return wrap(sdf.Difference2D(unwrap(a), unwrap(b)))
}

// Offset grows or shrinks a region by d millimeters.
func (k *SdfxKernel) Offset(r kernel.Region, d float64) kernel.Region {
	return wrap(sdf.Offset2D(unwrap(r), d))
}

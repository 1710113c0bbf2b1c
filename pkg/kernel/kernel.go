// Package kernel defines the abstract 2D outline kernel. Implementations
// turn flattened shape rings into regions that answer signed distance
// queries, which the scene uses for hit testing and the validator and router
// use for width and coverage measurements.
package kernel

import "github.com/chazu/bobbin/pkg/geom"

// Region is an opaque handle to a kernel region.
type Region interface {
	// Distance returns the signed distance from p to the region boundary,
	// negative inside.
	Distance(p geom.Point) float64

	// Bounds returns the axis-aligned bounding box.
	Bounds() geom.BBox
}

// Kernel is the abstract outline kernel interface.
type Kernel interface {
	// Polygon builds a region from closed rings using the even-odd rule:
	// rings nested an odd number of times are holes.
	Polygon(rings [][]geom.Point) (Region, error)

	// Boolean operations
	Union(a, b Region) Region
	Difference(a, b Region) Region

	// Offset grows (d > 0) or shrinks (d < 0) a region.
	Offset(r Region, d float64) Region
}

// Contains reports whether p lies inside or on the boundary of r.
func Contains(r Region, p geom.Point) bool {
	return r.Distance(p) <= 0
}

// Near reports whether p is inside r or within tol of its boundary.
func Near(r Region, p geom.Point, tol float64) bool {
	return r.Distance(p) <= tol
}

package geom

import "math"

// BBox is an axis-aligned bounding box. The empty box has Min > Max.
type BBox struct {
	MinX float64 `json:"minX"`
	MinY float64 `json:"minY"`
	MaxX float64 `json:"maxX"`
	MaxY float64 `json:"maxY"`
}

// EmptyBBox returns a box that contains nothing and absorbs the first Extend.
func EmptyBBox() BBox {
	return BBox{
		MinX: math.Inf(1),
		MinY: math.Inf(1),
		MaxX: math.Inf(-1),
		MaxY: math.Inf(-1),
	}
}

// BBoxOf returns the bounds of a set of points.
func BBoxOf(points []Point) BBox {
	b := EmptyBBox()
	for _, p := range points {
		b = b.Extend(p)
	}
	return b
}

func (b BBox) IsEmpty() bool {
	return b.MinX > b.MaxX || b.MinY > b.MaxY
}

// Extend returns b grown to include p.
func (b BBox) Extend(p Point) BBox {
	return BBox{
		MinX: math.Min(b.MinX, p.X),
		MinY: math.Min(b.MinY, p.Y),
		MaxX: math.Max(b.MaxX, p.X),
		MaxY: math.Max(b.MaxY, p.Y),
	}
}

// Union returns the smallest box containing b and o.
func (b BBox) Union(o BBox) BBox {
	if o.IsEmpty() {
		return b
	}
	if b.IsEmpty() {
		return o
	}
	return BBox{
		MinX: math.Min(b.MinX, o.MinX),
		MinY: math.Min(b.MinY, o.MinY),
		MaxX: math.Max(b.MaxX, o.MaxX),
		MaxY: math.Max(b.MaxY, o.MaxY),
	}
}

func (b BBox) Width() float64 {
	if b.IsEmpty() {
		return 0
	}
	return b.MaxX - b.MinX
}

func (b BBox) Height() float64 {
	if b.IsEmpty() {
		return 0
	}
	return b.MaxY - b.MinY
}

func (b BBox) Center() Point {
	return Point{(b.MinX + b.MaxX) / 2, (b.MinY + b.MaxY) / 2}
}

// Contains reports whether p lies inside or on the edge of b.
func (b BBox) Contains(p Point) bool {
	return p.X >= b.MinX && p.X <= b.MaxX && p.Y >= b.MinY && p.Y <= b.MaxY
}

// Expand returns b grown by d on every side.
func (b BBox) Expand(d float64) BBox {
	if b.IsEmpty() {
		return b
	}
	return BBox{b.MinX - d, b.MinY - d, b.MaxX + d, b.MaxY + d}
}

// Corners returns the four corners in clockwise order starting at Min.
func (b BBox) Corners() [4]Point {
	return [4]Point{
		{b.MinX, b.MinY},
		{b.MaxX, b.MinY},
		{b.MaxX, b.MaxY},
		{b.MinX, b.MaxY},
	}
}

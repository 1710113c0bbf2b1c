package geom

import (
	"fmt"
	"math"
)

// Kappa is the cubic Bezier control offset for a quarter circle of radius 1.
const Kappa = 0.5522847498

// Geometry is the closed set of shape outlines a Shape node can carry.
type Geometry interface {
	// ToPath converts the geometry into path commands in local space.
	ToPath() Path
	geometry()
}

// PathGeometry is a free-form path.
type PathGeometry struct {
	Path Path
}

func (g PathGeometry) ToPath() Path { return g.Path.Clone() }
func (PathGeometry) geometry()      {}

// RectGeometry is a rectangle with its top-left corner at the origin.
type RectGeometry struct {
	Width        float64
	Height       float64
	CornerRadius float64
}

func (RectGeometry) geometry() {}

func (g RectGeometry) ToPath() Path {
	w, h := g.Width, g.Height
	r := math.Max(0, math.Min(g.CornerRadius, math.Min(w/2, h/2)))
	var p Path
	if r < Epsilon {
		p.MoveTo(Pt(0, 0))
		p.LineTo(Pt(w, 0))
		p.LineTo(Pt(w, h))
		p.LineTo(Pt(0, h))
		p.Close()
		return p
	}
	k := r * Kappa
	p.MoveTo(Pt(r, 0))
	p.LineTo(Pt(w-r, 0))
	p.CubicTo(Pt(w-r+k, 0), Pt(w, r-k), Pt(w, r))
	p.LineTo(Pt(w, h-r))
	p.CubicTo(Pt(w, h-r+k), Pt(w-r+k, h), Pt(w-r, h))
	p.LineTo(Pt(r, h))
	p.CubicTo(Pt(r-k, h), Pt(0, h-r+k), Pt(0, h-r))
	p.LineTo(Pt(0, r))
	p.CubicTo(Pt(0, r-k), Pt(r-k, 0), Pt(r, 0))
	p.Close()
	return p
}

// EllipseGeometry is an ellipse centered on the origin.
type EllipseGeometry struct {
	RX float64
	RY float64
}

func (EllipseGeometry) geometry() {}

func (g EllipseGeometry) ToPath() Path {
	rx, ry := g.RX, g.RY
	kx, ky := rx*Kappa, ry*Kappa
	var p Path
	p.MoveTo(Pt(rx, 0))
	p.CubicTo(Pt(rx, ky), Pt(kx, ry), Pt(0, ry))
	p.CubicTo(Pt(-kx, ry), Pt(-rx, ky), Pt(-rx, 0))
	p.CubicTo(Pt(-rx, -ky), Pt(-kx, -ry), Pt(0, -ry))
	p.CubicTo(Pt(kx, -ry), Pt(rx, -ky), Pt(rx, 0))
	p.Close()
	return p
}

// PolygonGeometry is a regular polygon centered on the origin with its first
// vertex pointing up.
type PolygonGeometry struct {
	Sides  int
	Radius float64
}

func (PolygonGeometry) geometry() {}

// MaxPolygonSides bounds regular polygons; more sides are clamped.
const MaxPolygonSides = 1024

func clampSides(n int) int { return min(max(n, 3), MaxPolygonSides) }

func (g PolygonGeometry) ToPath() Path {
	n := clampSides(g.Sides)
	var p Path
	for i := 0; i < n; i++ {
		a := float64(i)/float64(n)*2*math.Pi - math.Pi/2
		pt := Pt(g.Radius*math.Cos(a), g.Radius*math.Sin(a))
		if i == 0 {
			p.MoveTo(pt)
		} else {
			p.LineTo(pt)
		}
	}
	p.Close()
	return p
}

// TextGeometry is a line of lettering. Its outline depends on a font, so
// ToPath returns the baseline only; the stitch package lays out the glyphs.
type TextGeometry struct {
	Text      string
	SizeMm    float64
	SpacingMm float64
	// Baseline is an optional path the glyphs follow. Empty means a straight
	// baseline along +X from the origin.
	Baseline Path
}

func (TextGeometry) geometry() {}

func (g TextGeometry) ToPath() Path {
	if !g.Baseline.IsEmpty() {
		return g.Baseline.Clone()
	}
	var p Path
	p.MoveTo(Pt(0, 0))
	p.LineTo(Pt(g.SizeMm*0.6*float64(len([]rune(g.Text))), 0))
	return p
}

// CloneGeometry returns a deep copy of g.
func CloneGeometry(g Geometry) Geometry {
	switch v := g.(type) {
	case PathGeometry:
		return PathGeometry{Path: v.Path.Clone()}
	case TextGeometry:
		v.Baseline = v.Baseline.Clone()
		return v
	}
	return g
}

// GeometrySpec is the plain-data form of a Geometry used at JSON boundaries.
type GeometrySpec struct {
	Type         string        `json:"type"`
	Width        float64       `json:"width,omitempty"`
	Height       float64       `json:"height,omitempty"`
	CornerRadius float64       `json:"cornerRadius,omitempty"`
	RX           float64       `json:"rx,omitempty"`
	RY           float64       `json:"ry,omitempty"`
	Sides        int           `json:"sides,omitempty"`
	Radius       float64       `json:"radius,omitempty"`
	Commands     []PathCommand `json:"commands,omitempty"`
	Closed       bool          `json:"closed,omitempty"`
	Text         string        `json:"text,omitempty"`
	SizeMm       float64       `json:"sizeMm,omitempty"`
	SpacingMm    float64       `json:"spacingMm,omitempty"`
}

// SpecOf converts a Geometry to its plain-data form.
func SpecOf(g Geometry) GeometrySpec {
	switch v := g.(type) {
	case PathGeometry:
		return GeometrySpec{Type: "path", Commands: append([]PathCommand(nil), v.Path.Commands...), Closed: v.Path.Closed}
	case RectGeometry:
		return GeometrySpec{Type: "rect", Width: v.Width, Height: v.Height, CornerRadius: v.CornerRadius}
	case EllipseGeometry:
		return GeometrySpec{Type: "ellipse", RX: v.RX, RY: v.RY}
	case PolygonGeometry:
		return GeometrySpec{Type: "polygon", Sides: v.Sides, Radius: v.Radius}
	case TextGeometry:
		return GeometrySpec{
			Type:      "text",
			Text:      v.Text,
			SizeMm:    v.SizeMm,
			SpacingMm: v.SpacingMm,
			Commands:  append([]PathCommand(nil), v.Baseline.Commands...),
			Closed:    v.Baseline.Closed,
		}
	}
	return GeometrySpec{}
}

// Geometry converts the plain-data form back into a Geometry.
func (s GeometrySpec) Geometry() (Geometry, error) {
	switch s.Type {
	case "path":
		for _, c := range s.Commands {
			if err := c.Validate(); err != nil {
				return nil, err
			}
		}
		p := NewPath(s.Commands)
		p.Closed = p.Closed || s.Closed
		return PathGeometry{Path: p}, nil
	case "rect":
		return RectGeometry{Width: s.Width, Height: s.Height, CornerRadius: s.CornerRadius}, nil
	case "ellipse":
		return EllipseGeometry{RX: s.RX, RY: s.RY}, nil
	case "polygon":
		return PolygonGeometry{Sides: clampSides(s.Sides), Radius: s.Radius}, nil
	case "text":
		return TextGeometry{
			Text:      s.Text,
			SizeMm:    s.SizeMm,
			SpacingMm: s.SpacingMm,
			Baseline:  NewPath(s.Commands),
		}, nil
	}
	return nil, fmt.Errorf("unknown geometry type %q", s.Type)
}

// Finite reports whether every dimension and coordinate of g is a finite
// number.
func Finite(g Geometry) bool {
	switch v := g.(type) {
	case PathGeometry:
		return v.Path.Finite()
	case RectGeometry:
		return finite(v.Width, v.Height, v.CornerRadius)
	case EllipseGeometry:
		return finite(v.RX, v.RY)
	case PolygonGeometry:
		return finite(v.Radius)
	case TextGeometry:
		return finite(v.SizeMm, v.SpacingMm) && v.Baseline.Finite()
	}
	return true
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

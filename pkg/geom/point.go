package geom

import "math"

// Epsilon is the distance below which two points are treated as equal.
const Epsilon = 1e-9

// Point is a 2D position in millimeters.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

func (p Point) Scale(s float64) Point { return Point{p.X * s, p.Y * s} }

func (p Point) Dot(q Point) float64   { return p.X*q.X + p.Y*q.Y }
func (p Point) Cross(q Point) float64 { return p.X*q.Y - p.Y*q.X }

// Len returns the length of p treated as a vector.
func (p Point) Len() float64 { return math.Hypot(p.X, p.Y) }

// Dist returns the Euclidean distance between p and q.
func (p Point) Dist(q Point) float64 { return math.Hypot(q.X-p.X, q.Y-p.Y) }

// Lerp interpolates between p (t=0) and q (t=1).
func (p Point) Lerp(q Point, t float64) Point {
	return Point{p.X + (q.X-p.X)*t, p.Y + (q.Y-p.Y)*t}
}

// Normalize returns the unit vector of p, or the zero vector when p has no length.
func (p Point) Normalize() Point {
	l := p.Len()
	if l <= Epsilon {
		return Point{}
	}
	return Point{p.X / l, p.Y / l}
}

// Perp returns p rotated by +90 degrees.
func (p Point) Perp() Point { return Point{-p.Y, p.X} }

// Rotate rotates p around the origin by angle radians.
func (p Point) Rotate(angle float64) Point {
	sin, cos := math.Sincos(angle)
	return Point{p.X*cos - p.Y*sin, p.X*sin + p.Y*cos}
}

// Near reports whether p and q are within tol of each other.
func (p Point) Near(q Point, tol float64) bool {
	return p.Dist(q) <= tol
}

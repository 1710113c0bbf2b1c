package geom

import (
	"encoding/json"
	"math"
)

// Transform is the authoring form of a node transform. Rotation is in
// radians. Application order is scale, then rotate, then translate.
type Transform struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
	ScaleX   float64 `json:"scaleX"`
	ScaleY   float64 `json:"scaleY"`
}

// Identity returns the transform that leaves points unchanged.
func Identity() Transform {
	return Transform{ScaleX: 1, ScaleY: 1}
}

// UnmarshalJSON decodes t starting from the identity, so omitted scale
// fields read as 1 rather than collapsing the node.
func (t *Transform) UnmarshalJSON(data []byte) error {
	type plain Transform
	v := plain(Identity())
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*t = Transform(v)
	return nil
}

// Translate returns an identity transform moved to (x, y).
func Translate(x, y float64) Transform {
	return Transform{X: x, Y: y, ScaleX: 1, ScaleY: 1}
}

// Matrix converts t into its affine matrix.
func (t Transform) Matrix() Affine {
	sin, cos := math.Sincos(t.Rotation)
	return Affine{
		t.ScaleX * cos,
		t.ScaleX * sin,
		-t.ScaleY * sin,
		t.ScaleY * cos,
		t.X,
		t.Y,
	}
}

// Affine is a 2x3 matrix [a b c d tx ty] mapping (x, y) to
// (a*x + c*y + tx, b*x + d*y + ty).
type Affine [6]float64

// IdentityAffine is the identity matrix.
var IdentityAffine = Affine{1, 0, 0, 1, 0, 0}

// Finite reports whether every entry of m is finite.
func (m Affine) Finite() bool { return finite(m[:]...) }

// Mul returns m·n, the transform that applies n first and then m.
func (m Affine) Mul(n Affine) Affine {
	return Affine{
		m[0]*n[0] + m[2]*n[1],
		m[1]*n[0] + m[3]*n[1],
		m[0]*n[2] + m[2]*n[3],
		m[1]*n[2] + m[3]*n[3],
		m[0]*n[4] + m[2]*n[5] + m[4],
		m[1]*n[4] + m[3]*n[5] + m[5],
	}
}

// Apply maps p through m.
func (m Affine) Apply(p Point) Point {
	return Point{
		m[0]*p.X + m[2]*p.Y + m[4],
		m[1]*p.X + m[3]*p.Y + m[5],
	}
}

// ApplyAll maps every point of pts through m into a new slice.
func (m Affine) ApplyAll(pts []Point) []Point {
	out := make([]Point, len(pts))
	for i, p := range pts {
		out[i] = m.Apply(p)
	}
	return out
}

// Det returns the determinant of the linear part.
func (m Affine) Det() float64 {
	return m[0]*m[3] - m[1]*m[2]
}

// Invert returns the inverse of m. Singular matrices return false.
func (m Affine) Invert() (Affine, bool) {
	det := m.Det()
	if math.Abs(det) < 1e-12 {
		return Affine{}, false
	}
	inv := 1 / det
	a := m[3] * inv
	b := -m[1] * inv
	c := -m[2] * inv
	d := m[0] * inv
	return Affine{
		a, b, c, d,
		-(a*m[4] + c*m[5]),
		-(b*m[4] + d*m[5]),
	}, true
}

// Decompose recovers a Transform from m. Skew is dropped.
func (m Affine) Decompose() Transform {
	return Transform{
		X:        m[4],
		Y:        m[5],
		Rotation: math.Atan2(m[1], m[0]),
		ScaleX:   math.Hypot(m[0], m[1]),
		ScaleY:   math.Hypot(m[2], m[3]),
	}
}

// MeanScale is the geometric mean of the axis scales, used to convert
// world-space tolerances into local space.
func (m Affine) MeanScale() float64 {
	return math.Sqrt(math.Abs(m.Det()))
}

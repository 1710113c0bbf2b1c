package geom

import "fmt"

// FlattenTolerance is the default maximum deviation, in mm, between a curve
// and its flattened polyline.
const FlattenTolerance = 0.5

// maxFlattenDepth bounds curve subdivision on malformed control points.
const maxFlattenDepth = 16

// Op names a path command.
type Op string

const (
	OpMoveTo  Op = "moveTo"
	OpLineTo  Op = "lineTo"
	OpCubicTo Op = "cubicTo"
	OpQuadTo  Op = "quadTo"
	OpClose   Op = "close"
)

// PathCommand is one drawing instruction. To is the end point for every op
// except Close; C1 and C2 are control points for curves (QuadTo uses C1).
type PathCommand struct {
	Op Op    `json:"op"`
	To Point `json:"to"`
	C1 Point `json:"c1"`
	C2 Point `json:"c2"`
}

func MoveTo(p Point) PathCommand { return PathCommand{Op: OpMoveTo, To: p} }
func LineTo(p Point) PathCommand { return PathCommand{Op: OpLineTo, To: p} }
func QuadTo(c, to Point) PathCommand {
	return PathCommand{Op: OpQuadTo, C1: c, To: to}
}
func CubicTo(c1, c2, to Point) PathCommand {
	return PathCommand{Op: OpCubicTo, C1: c1, C2: c2, To: to}
}
func Close() PathCommand { return PathCommand{Op: OpClose} }

// Validate reports an unknown op.
func (c PathCommand) Validate() error {
	switch c.Op {
	case OpMoveTo, OpLineTo, OpCubicTo, OpQuadTo, OpClose:
		return nil
	}
	return fmt.Errorf("unknown path op %q", c.Op)
}

// Finite reports whether every point of p is finite.
func (p Path) Finite() bool {
	for _, c := range p.Commands {
		if !finite(c.To.X, c.To.Y, c.C1.X, c.C1.Y, c.C2.X, c.C2.Y) {
			return false
		}
	}
	return true
}

// Path is a sequence of commands. Closed is true once a Close command has
// been appended.
type Path struct {
	Commands []PathCommand `json:"commands"`
	Closed   bool          `json:"closed"`
}

// NewPath builds a path from commands, deriving Closed from a trailing Close.
func NewPath(cmds []PathCommand) Path {
	p := Path{Commands: append([]PathCommand(nil), cmds...)}
	for _, c := range cmds {
		if c.Op == OpClose {
			p.Closed = true
		}
	}
	return p
}

func (p *Path) MoveTo(pt Point) { p.Commands = append(p.Commands, MoveTo(pt)) }
func (p *Path) LineTo(pt Point) { p.Commands = append(p.Commands, LineTo(pt)) }

func (p *Path) CubicTo(c1, c2, to Point) {
	p.Commands = append(p.Commands, CubicTo(c1, c2, to))
}

func (p *Path) QuadTo(c, to Point) {
	p.Commands = append(p.Commands, QuadTo(c, to))
}

// Close closes the current subpath unless it is already closed.
func (p *Path) Close() {
	if n := len(p.Commands); n == 0 || p.Commands[n-1].Op == OpClose {
		return
	}
	p.Commands = append(p.Commands, Close())
	p.Closed = true
}

// Clone returns a deep copy.
func (p Path) Clone() Path {
	return Path{Commands: append([]PathCommand(nil), p.Commands...), Closed: p.Closed}
}

// IsEmpty reports whether the path draws nothing.
func (p Path) IsEmpty() bool {
	for _, c := range p.Commands {
		if c.Op != OpMoveTo && c.Op != OpClose {
			return false
		}
	}
	return true
}

// Transform returns the path with every point mapped through m.
func (p Path) Transform(m Affine) Path {
	out := Path{Commands: make([]PathCommand, len(p.Commands)), Closed: p.Closed}
	for i, c := range p.Commands {
		out.Commands[i] = PathCommand{
			Op: c.Op,
			To: m.Apply(c.To),
			C1: m.Apply(c.C1),
			C2: m.Apply(c.C2),
		}
	}
	return out
}

// Subpath is one flattened MoveTo-delimited piece of a path.
type Subpath struct {
	Points []Point
	Closed bool
}

// Subpaths flattens the path into one polyline per MoveTo. A closed subpath
// ends with its start point.
func (p Path) Subpaths(tol float64) []Subpath {
	if tol <= 0 {
		tol = FlattenTolerance
	}
	var (
		out     []Subpath
		cur     Subpath
		current Point
		start   Point
	)
	flush := func() {
		if len(cur.Points) > 0 {
			out = append(out, cur)
		}
		cur = Subpath{}
	}
	for _, c := range p.Commands {
		switch c.Op {
		case OpMoveTo:
			flush()
			current, start = c.To, c.To
			cur.Points = append(cur.Points, c.To)
		case OpLineTo:
			if len(cur.Points) == 0 {
				cur.Points = append(cur.Points, current)
			}
			current = c.To
			cur.Points = append(cur.Points, c.To)
		case OpCubicTo:
			if len(cur.Points) == 0 {
				cur.Points = append(cur.Points, current)
			}
			cur.Points = flattenCubic(current, c.C1, c.C2, c.To, tol, 0, cur.Points)
			current = c.To
		case OpQuadTo:
			if len(cur.Points) == 0 {
				cur.Points = append(cur.Points, current)
			}
			cur.Points = flattenQuad(current, c.C1, c.To, tol, cur.Points)
			current = c.To
		case OpClose:
			if len(cur.Points) == 0 {
				continue
			}
			if current.Dist(start) > Epsilon {
				cur.Points = append(cur.Points, start)
			}
			cur.Closed = true
			current = start
			flush()
		}
	}
	flush()
	return out
}

// Flatten returns every subpath's points concatenated.
func (p Path) Flatten(tol float64) []Point {
	var pts []Point
	for _, sp := range p.Subpaths(tol) {
		pts = append(pts, sp.Points...)
	}
	return pts
}

// BBox returns the bounds of the flattened path.
func (p Path) BBox() BBox {
	return BBoxOf(p.Flatten(FlattenTolerance))
}

// Contains reports whether pt lies inside a closed path using the even-odd
// rule over all subpaths. Open paths contain nothing.
func (p Path) Contains(pt Point) bool {
	if !p.Closed {
		return false
	}
	var rings [][]Point
	for _, sp := range p.Subpaths(FlattenTolerance) {
		rings = append(rings, sp.Points)
	}
	return PointInRings(pt, rings)
}

func flattenCubic(p0, c1, c2, p3 Point, tol float64, depth int, out []Point) []Point {
	d := DistanceToLine(c1, p0, p3) + DistanceToLine(c2, p0, p3)
	if d <= tol || depth >= maxFlattenDepth {
		return append(out, p3)
	}
	m01 := p0.Lerp(c1, 0.5)
	m12 := c1.Lerp(c2, 0.5)
	m23 := c2.Lerp(p3, 0.5)
	a := m01.Lerp(m12, 0.5)
	b := m12.Lerp(m23, 0.5)
	mid := a.Lerp(b, 0.5)
	out = flattenCubic(p0, m01, a, mid, tol, depth+1, out)
	return flattenCubic(mid, b, m23, p3, tol, depth+1, out)
}

// flattenQuad elevates the quadratic to a cubic.
func flattenQuad(p0, c, p2 Point, tol float64, out []Point) []Point {
	c1 := p0.Add(c.Sub(p0).Scale(2.0 / 3.0))
	c2 := p2.Add(c.Sub(p2).Scale(2.0 / 3.0))
	return flattenCubic(p0, c1, c2, p2, tol, 0, out)
}

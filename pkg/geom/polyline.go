package geom

import "math"

// PolylineLength returns the summed segment length.
func PolylineLength(pts []Point) float64 {
	var l float64
	for i := 1; i < len(pts); i++ {
		l += pts[i-1].Dist(pts[i])
	}
	return l
}

// ArcLengths returns the cumulative length at each vertex.
func ArcLengths(pts []Point) []float64 {
	out := make([]float64, len(pts))
	for i := 1; i < len(pts); i++ {
		out[i] = out[i-1] + pts[i-1].Dist(pts[i])
	}
	return out
}

// SampleAt returns the point at arc length s along pts, with the unit
// tangent there. s is clamped to the polyline.
func SampleAt(pts []Point, arc []float64, s float64) (Point, Point) {
	switch len(pts) {
	case 0:
		return Point{}, Point{X: 1}
	case 1:
		return pts[0], Point{X: 1}
	}
	total := arc[len(arc)-1]
	s = math.Max(0, math.Min(s, total))
	for i := 1; i < len(pts); i++ {
		if arc[i] >= s {
			seg := arc[i] - arc[i-1]
			tan := pts[i].Sub(pts[i-1]).Normalize()
			if seg < Epsilon {
				return pts[i-1], tan
			}
			return pts[i-1].Lerp(pts[i], (s-arc[i-1])/seg), tan
		}
	}
	last := len(pts) - 1
	return pts[last], pts[last].Sub(pts[last-1]).Normalize()
}

// Resample returns n+1 points evenly spaced by arc length, including both ends.
func Resample(pts []Point, n int) []Point {
	if len(pts) == 0 || n <= 0 {
		return append([]Point(nil), pts...)
	}
	arc := ArcLengths(pts)
	total := arc[len(arc)-1]
	out := make([]Point, 0, n+1)
	for i := 0; i <= n; i++ {
		p, _ := SampleAt(pts, arc, total*float64(i)/float64(n))
		out = append(out, p)
	}
	return out
}

// DistanceToLine is the distance from p to the infinite line through a and b.
func DistanceToLine(p, a, b Point) float64 {
	d := b.Sub(a)
	l := d.Len()
	if l < Epsilon {
		return p.Dist(a)
	}
	return math.Abs(d.Cross(p.Sub(a))) / l
}

// DistanceToSegment is the distance from p to segment ab.
func DistanceToSegment(p, a, b Point) float64 {
	d := b.Sub(a)
	l2 := d.Dot(d)
	if l2 < Epsilon {
		return p.Dist(a)
	}
	t := math.Max(0, math.Min(1, p.Sub(a).Dot(d)/l2))
	return p.Dist(a.Add(d.Scale(t)))
}

// DistanceToPolyline is the smallest distance from p to any segment of pts.
func DistanceToPolyline(p Point, pts []Point) float64 {
	switch len(pts) {
	case 0:
		return math.Inf(1)
	case 1:
		return p.Dist(pts[0])
	}
	best := math.Inf(1)
	for i := 1; i < len(pts); i++ {
		best = math.Min(best, DistanceToSegment(p, pts[i-1], pts[i]))
	}
	return best
}

// OffsetPolyline offsets every vertex by d along its averaged normal. The
// first and last vertices use their single adjacent segment; zero-length
// tangents reuse the previous normal.
func OffsetPolyline(pts []Point, d float64) []Point {
	out := make([]Point, len(pts))
	normal := Point{Y: 1}
	for i := range pts {
		var tan Point
		switch {
		case len(pts) < 2:
		case i == 0:
			tan = pts[1].Sub(pts[0])
		case i == len(pts)-1:
			tan = pts[i].Sub(pts[i-1])
		default:
			tan = pts[i+1].Sub(pts[i-1])
		}
		if t := tan.Normalize(); t.Len() > 0 {
			normal = t.Perp()
		}
		out[i] = pts[i].Add(normal.Scale(d))
	}
	return out
}

// Dedupe drops consecutive points closer than eps, keeping the last point.
func Dedupe(pts []Point, eps float64) []Point {
	if len(pts) == 0 {
		return nil
	}
	out := []Point{pts[0]}
	for _, p := range pts[1:] {
		if out[len(out)-1].Dist(p) >= eps {
			out = append(out, p)
		}
	}
	if last := pts[len(pts)-1]; out[len(out)-1] != last && len(out) > 1 {
		out[len(out)-1] = last
	}
	return out
}

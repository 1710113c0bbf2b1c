package geom

import (
	"math"
	"sort"
)

// A ring is a closed polyline whose last point repeats the first.

// CloseRing returns ring with its first point appended when it is open.
func CloseRing(ring []Point) []Point {
	if len(ring) == 0 {
		return nil
	}
	out := append([]Point(nil), ring...)
	if out[0].Dist(out[len(out)-1]) > 1e-6 {
		out = append(out, out[0])
	}
	return out
}

// SignedArea returns the shoelace area. Positive means counter-clockwise in
// a Y-up frame (clockwise on screen, where Y points down).
func SignedArea(ring []Point) float64 {
	n := len(ring)
	if n < 3 {
		return 0
	}
	var a float64
	for i := 0; i < n; i++ {
		p, q := ring[i], ring[(i+1)%n]
		a += p.X*q.Y - q.X*p.Y
	}
	return a / 2
}

// Centroid returns the vertex average, ignoring a repeated closing point.
func Centroid(ring []Point) Point {
	pts := ring
	if len(pts) > 1 && pts[0].Dist(pts[len(pts)-1]) <= 1e-6 {
		pts = pts[:len(pts)-1]
	}
	if len(pts) == 0 {
		return Point{}
	}
	var c Point
	for _, p := range pts {
		c = c.Add(p)
	}
	return c.Scale(1 / float64(len(pts)))
}

// PointInRing is the crossing-number test against one ring.
func PointInRing(p Point, ring []Point) bool {
	n := len(ring)
	if n < 3 {
		return false
	}
	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		a, b := ring[i], ring[j]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			x := a.X + (p.Y-a.Y)*(b.X-a.X)/(b.Y-a.Y)
			if p.X < x {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// PointInRings applies the even-odd rule across rings, so a point inside a
// hole is outside the region.
func PointInRings(p Point, rings [][]Point) bool {
	inside := false
	for _, r := range rings {
		if PointInRing(p, r) {
			inside = !inside
		}
	}
	return inside
}

// DegenerateEdges returns the indices i where edge (i, i+1) is shorter than eps.
func DegenerateEdges(ring []Point, eps float64) []int {
	var out []int
	for i := 0; i+1 < len(ring); i++ {
		if ring[i].Dist(ring[i+1]) < eps {
			out = append(out, i)
		}
	}
	return out
}

// Intersection is a crossing between two non-adjacent edges of a ring.
type Intersection struct {
	EdgeA int
	EdgeB int
	At    Point
}

// SelfIntersections finds proper crossings between non-adjacent edges. It
// stops after limit findings; limit <= 0 means no limit.
func SelfIntersections(ring []Point, limit int) []Intersection {
	var out []Intersection
	n := len(ring) - 1 // ring is closed: edges 0..n-1
	if n < 4 {
		return nil
	}
	for i := 0; i < n; i++ {
		for j := i + 2; j < n; j++ {
			if i == 0 && j == n-1 {
				continue
			}
			if at, ok := SegmentIntersection(ring[i], ring[i+1], ring[j], ring[j+1]); ok {
				out = append(out, Intersection{EdgeA: i, EdgeB: j, At: at})
				if limit > 0 && len(out) >= limit {
					return out
				}
			}
		}
	}
	return out
}

// SegmentIntersection returns the crossing point of segments ab and cd when
// they properly intersect.
func SegmentIntersection(a, b, c, d Point) (Point, bool) {
	r := b.Sub(a)
	s := d.Sub(c)
	den := r.Cross(s)
	if math.Abs(den) < 1e-12 {
		return Point{}, false
	}
	qp := c.Sub(a)
	t := qp.Cross(s) / den
	u := qp.Cross(r) / den
	const e = 1e-9
	if t <= e || t >= 1-e || u <= e || u >= 1-e {
		return Point{}, false
	}
	return a.Add(r.Scale(t)), true
}

// RepairRing closes the ring, removes repeated points and zero-width spikes.
// The result has at least four points (three distinct) or is nil.
func RepairRing(ring []Point, eps float64) []Point {
	if len(ring) < 3 {
		return nil
	}
	pts := make([]Point, 0, len(ring))
	for _, p := range ring {
		if len(pts) > 0 && pts[len(pts)-1].Dist(p) < eps {
			continue
		}
		pts = append(pts, p)
	}
	if len(pts) > 1 && pts[0].Dist(pts[len(pts)-1]) < eps {
		pts = pts[:len(pts)-1]
	}
	// Drop vertices where the outline doubles back on itself.
	for changed := true; changed && len(pts) >= 3; {
		changed = false
		for i := 0; i < len(pts); i++ {
			prev := pts[(i+len(pts)-1)%len(pts)]
			next := pts[(i+1)%len(pts)]
			u := pts[i].Sub(prev)
			v := next.Sub(pts[i])
			zero := u.Len() < eps
			spike := math.Abs(u.Cross(v)) <= eps*u.Len()*v.Len() && u.Dot(v) < 0
			if zero || spike {
				pts = append(pts[:i], pts[i+1:]...)
				changed = true
				break
			}
		}
	}
	if len(pts) < 3 {
		return nil
	}
	return append(pts, pts[0])
}

// NormalizeRings repairs every ring, drops rings without area, and orders
// the result with the largest ring first wound positive and the remaining
// rings (holes) wound negative, largest first.
func NormalizeRings(rings [][]Point) [][]Point {
	type entry struct {
		ring []Point
		area float64
	}
	var es []entry
	for _, r := range rings {
		rr := RepairRing(r, 1e-6)
		if rr == nil {
			continue
		}
		a := SignedArea(rr)
		if math.Abs(a) <= 1e-6 {
			continue
		}
		es = append(es, entry{rr, a})
	}
	if len(es) == 0 {
		return nil
	}
	sort.SliceStable(es, func(i, j int) bool {
		return math.Abs(es[i].area) > math.Abs(es[j].area)
	})
	out := make([][]Point, len(es))
	for i, e := range es {
		wantPositive := i == 0
		if (e.area > 0) != wantPositive {
			e.ring = Reverse(e.ring)
		}
		out[i] = e.ring
	}
	return out
}

// OuterRings returns the rings not contained in any other ring, i.e. the
// disjoint components of an even-odd region.
func OuterRings(rings [][]Point) [][]Point {
	var out [][]Point
	for i, r := range rings {
		if len(r) == 0 {
			continue
		}
		probe := r[0]
		depth := 0
		for j, o := range rings {
			if i != j && PointInRing(probe, o) {
				depth++
			}
		}
		if depth%2 == 0 {
			out = append(out, r)
		}
	}
	return out
}

// Reverse returns a reversed copy of pts.
func Reverse(pts []Point) []Point {
	out := make([]Point, len(pts))
	for i, p := range pts {
		out[len(pts)-1-i] = p
	}
	return out
}

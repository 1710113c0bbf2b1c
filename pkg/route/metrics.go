package route

import (
	"math"
	"slices"

	"github.com/samber/lo"

	"github.com/chazu/bobbin/pkg/format"
	"github.com/chazu/bobbin/pkg/geom"
	"github.com/chazu/bobbin/pkg/kernel"
	"github.com/chazu/bobbin/pkg/scene"
	"github.com/chazu/bobbin/pkg/stitch"
)

// RouteMetrics summarize the machine cost of a stitch stream.
type RouteMetrics struct {
	StitchCount      int     `json:"stitchCount"`
	JumpCount        int     `json:"jumpCount"`
	TrimCount        int     `json:"trimCount"`
	ColorChangeCount int     `json:"colorChangeCount"`
	TravelDistanceMm float64 `json:"travelDistanceMm"`
	LongestTravelMm  float64 `json:"longestTravelMm"`
	RouteScore       float64 `json:"routeScore"`
}

// Metrics measures d. Travel is the displacement covered by jump, trim and
// color change commands; the longest travel is the largest such stretch
// between two ordinary stitches.
func Metrics(d format.Design, p Policy) RouteMetrics {
	var m RouteMetrics
	var prev geom.Point
	var stretch float64
	for i, s := range d.Stitches {
		pos := geom.Pt(s.X, s.Y)
		step := 0.0
		if i > 0 {
			step = prev.Dist(pos)
		}
		switch s.Type {
		case format.Normal:
			m.StitchCount++
			stretch = 0
		case format.Jump:
			m.JumpCount++
		case format.Trim:
			m.TrimCount++
		case format.ColorChange:
			m.ColorChangeCount++
		}
		if s.Type == format.Jump || s.Type == format.Trim || s.Type == format.ColorChange {
			m.TravelDistanceMm += step
			stretch += step
			m.LongestTravelMm = max(m.LongestTravelMm, stretch)
		}
		prev = pos
	}
	m.RouteScore = Score(m, p)
	return m
}

// Score weighs a route's events under p. Lower is better.
func Score(m RouteMetrics, p Policy) float64 {
	w := p.Weights()
	return w.Jump*float64(m.JumpCount) +
		w.Trim*float64(m.TrimCount) +
		w.ColorChange*float64(m.ColorChangeCount) +
		w.TravelPerMm*m.TravelDistanceMm
}

// QualityMetrics estimate how faithfully the stitches render the shapes.
type QualityMetrics struct {
	MeanStitchLengthMm float64 `json:"meanStitchLengthMm"`
	P95StitchLengthMm  float64 `json:"p95StitchLengthMm"`
	DensityErrorMm     float64 `json:"densityErrorMm"`
	AngleErrorDeg      float64 `json:"angleErrorDeg"`
	CoverageErrorPct   float64 `json:"coverageErrorPct"`
}

// Quality routes s and measures the result.
func (r *Router) Quality(s *scene.Scene) QualityMetrics {
	blocks, _ := r.Build(s)
	d, _ := r.assemble(r.Order(blocks))
	q := stitchLengths(d)

	var dens, angle, cover []float64
	for _, b := range blocks {
		if v, ok := densityError(b); ok {
			dens = append(dens, v)
		}
		if v, ok := angleError(b, r.length); ok {
			angle = append(angle, v)
		}
		if v, ok := coverageError(s.Kernel(), b); ok {
			cover = append(cover, v)
		}
	}
	q.DensityErrorMm = mean(dens)
	q.AngleErrorDeg = mean(angle)
	q.CoverageErrorPct = mean(cover)
	return q
}

// stitchLengths measures the sewn segments between consecutive ordinary
// stitches.
func stitchLengths(d format.Design) QualityMetrics {
	var ls []float64
	for i := 1; i < len(d.Stitches); i++ {
		a, b := d.Stitches[i-1], d.Stitches[i]
		if a.Type != format.Normal || b.Type != format.Normal {
			continue
		}
		if l := math.Hypot(b.X-a.X, b.Y-a.Y); l > geom.Epsilon {
			ls = append(ls, l)
		}
	}
	var q QualityMetrics
	if len(ls) == 0 {
		return q
	}
	slices.Sort(ls)
	q.MeanStitchLengthMm = mean(ls)
	rank := int(math.Ceil(0.95*float64(len(ls)))) - 1
	q.P95StitchLengthMm = ls[max(rank, 0)]
	return q
}

// sewnSegments returns the needle segments of a block that carry thread.
func sewnSegments(sts []stitch.Stitch) [][2]geom.Point {
	var out [][2]geom.Point
	for i := 1; i < len(sts); i++ {
		if sts[i].Jump || sts[i-1].Trim {
			continue
		}
		out = append(out, [2]geom.Point{sts[i-1].Pos, sts[i].Pos})
	}
	return out
}

func sewnLength(sts []stitch.Stitch) float64 {
	return lo.SumBy(sewnSegments(sts), func(s [2]geom.Point) float64 { return s[0].Dist(s[1]) })
}

// densityError compares the achieved row spacing, area over sewn length,
// with the requested density. Satin area is column width times outline
// length.
func densityError(b *Block) (float64, bool) {
	t := b.Params.Type
	want := b.Params.Density
	if want <= 0 {
		want = stitch.DefaultDensity
	}
	var area float64
	switch {
	case t == stitch.TypeTatami || t == stitch.TypeContour || t == stitch.TypeSpiral:
		for _, ring := range b.Rings {
			area += geom.SignedArea(ring)
		}
	case t == stitch.TypeSatin:
		area = b.Width * b.Length
	default:
		return 0, false
	}
	l := sewnLength(b.Stitches)
	if area <= 0 || l <= 0 {
		return 0, false
	}
	return math.Abs(math.Abs(area)/l - want), true
}

// angleError is the median deviation of a tatami block's long stitches
// from the requested fill angle, in degrees.
func angleError(b *Block, length float64) (float64, bool) {
	if b.Params.Type != stitch.TypeTatami {
		return 0, false
	}
	var devs []float64
	for _, s := range sewnSegments(b.Stitches) {
		v := s[1].Sub(s[0])
		if v.Len() < length/2 {
			continue
		}
		a := math.Atan2(v.Y, v.X) * 180 / math.Pi
		dev := math.Mod(math.Abs(a-b.Params.Angle), 180)
		devs = append(devs, math.Min(dev, 180-dev))
	}
	if len(devs) == 0 {
		return 0, false
	}
	slices.Sort(devs)
	return devs[len(devs)/2], true
}

// coverageError is the percentage of a fill's interior samples that lie
// farther than one row spacing from every sewn segment.
func coverageError(k kernel.Kernel, b *Block) (float64, bool) {
	if !b.Params.Type.IsFill() || len(b.Rings) == 0 {
		return 0, false
	}
	reg, err := k.Polygon(b.Rings)
	if err != nil {
		return 0, false
	}
	tol := max(b.Params.Density, stitch.DefaultDensity)
	g := kernel.Sample(reg, tol)
	h := newSegmentHash(sewnSegments(b.Stitches), tol)
	inside, missed := 0, 0
	for j := 0; j < g.Rows; j++ {
		for i := 0; i < g.Cols; i++ {
			if g.Values[j*g.Cols+i] > 0 {
				continue
			}
			inside++
			if !h.near(g.Center(i, j), tol) {
				missed++
			}
		}
	}
	if inside == 0 {
		return 0, false
	}
	return 100 * float64(missed) / float64(inside), true
}

// segmentHash buckets segments into square cells for proximity queries.
type segmentHash struct {
	cell  float64
	cells map[[2]int][]int
	segs  [][2]geom.Point
}

func newSegmentHash(segs [][2]geom.Point, cell float64) *segmentHash {
	h := &segmentHash{cell: cell, cells: make(map[[2]int][]int), segs: segs}
	for i, s := range segs {
		b := geom.BBoxOf(s[:]).Expand(cell)
		x0, y0 := h.key(geom.Pt(b.MinX, b.MinY))
		x1, y1 := h.key(geom.Pt(b.MaxX, b.MaxY))
		for x := x0; x <= x1; x++ {
			for y := y0; y <= y1; y++ {
				k := [2]int{x, y}
				h.cells[k] = append(h.cells[k], i)
			}
		}
	}
	return h
}

func (h *segmentHash) key(p geom.Point) (int, int) {
	return int(math.Floor(p.X / h.cell)), int(math.Floor(p.Y / h.cell))
}

func (h *segmentHash) near(p geom.Point, tol float64) bool {
	x, y := h.key(p)
	for _, i := range h.cells[[2]int{x, y}] {
		if geom.DistanceToSegment(p, h.segs[i][0], h.segs[i][1]) <= tol {
			return true
		}
	}
	return false
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	return lo.Sum(vs) / float64(len(vs))
}

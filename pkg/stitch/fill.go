package stitch

import (
	"math"
	"sort"

	"github.com/chazu/bobbin/pkg/geom"
)

const (
	// boundaryTol lets points sitting on an outline count as inside.
	boundaryTol   = 0.05
	spiralGuard   = 25000
	minSpiralStep = 0.2
	minMotifStep  = 0.6
	// contourStop ends contour loops once they shrink below this fraction.
	contourStop = 0.05
)

// FillOptions configures the area fills.
type FillOptions struct {
	Density      float64
	Angle        float64 // degrees
	StitchLength float64
	MinSegment   float64
	Overlap      float64
	EdgeWalk     bool
	StartMode    FillStartMode
	ContourStep  float64
	Pattern      MotifPattern
	MotifScale   float64
	Phase        float64
	Underlay     Underlay
	Compensation Compensation
}

// FillOptionsFrom collects the fill fields of p.
func FillOptionsFrom(p Params, stitchLength float64) FillOptions {
	return FillOptions{
		Density:      p.Density,
		Angle:        p.Angle,
		StitchLength: stitchLength,
		MinSegment:   p.MinSegmentMm,
		Overlap:      p.OverlapMm,
		EdgeWalk:     p.EdgeWalkOnFill,
		StartMode:    p.FillStartMode,
		ContourStep:  p.ContourStepMm,
		Pattern:      p.MotifPattern,
		MotifScale:   p.MotifScale,
		Phase:        p.FillPhase,
		Underlay:     p.Underlay,
		Compensation: p.Compensation,
	}
}

// Tatami fills the even-odd region of rings with parallel rows at
// opt.Angle. Rows alternate direction, and penetrations on alternate rows
// are offset by half a stitch so needle holes do not line up into a seam.
// Holes are never crossed by a sewn stitch: rows broken by a hole continue
// after a jump.
func Tatami(rings [][]geom.Point, opt FillOptions) []Stitch {
	rings = geom.NormalizeRings(rings)
	if len(rings) == 0 {
		return nil
	}
	var out []Stitch
	if opt.EdgeWalk {
		out = appendPass(out, edgeWalk(rings, opt.StitchLength))
	}
	if opt.Underlay.Enabled {
		u := opt
		u.Angle += 90
		u.Density = opt.Underlay.SpacingMm
		if u.Density <= 0 {
			u.Density = DefaultUnderlaySpacing
		}
		u.Overlap = 0
		u.Compensation = Compensation{}
		u.Phase = 0
		out = appendPass(out, tatamiRows(rings, u))
	}
	return appendPass(out, tatamiRows(rings, opt))
}

// appendPass joins a new pass to out, jumping to its start.
func appendPass(out, pass []Stitch) []Stitch {
	if len(pass) == 0 {
		return out
	}
	if len(out) > 0 {
		pass[0].Jump = true
	}
	return append(out, pass...)
}

func edgeWalk(rings [][]geom.Point, l float64) []Stitch {
	var out []Stitch
	for _, r := range rings {
		out = appendPass(out, Running(r, RunOptions{Length: l}))
	}
	return out
}

type span struct{ x0, x1 float64 }

func tatamiRows(rings [][]geom.Point, opt FillOptions) []Stitch {
	d := density(opt.Density, MinFillDensity)
	l := length(opt.StitchLength)
	angle := opt.Angle * math.Pi / 180

	rot := make([][]geom.Point, len(rings))
	minY, maxY := math.Inf(1), math.Inf(-1)
	for i, r := range rings {
		rot[i] = make([]geom.Point, len(r))
		for j, p := range r {
			q := p.Rotate(-angle)
			rot[i][j] = q
			minY = math.Min(minY, q.Y)
			maxY = math.Max(maxY, q.Y)
		}
	}
	if minY > maxY {
		return nil
	}

	ext := opt.Overlap + rowCompensation(opt.Compensation)
	rows := int(math.Ceil((maxY - minY) / d))
	order := make([]int, 0, rows+1)
	for r := 0; r <= rows; r++ {
		order = append(order, r)
	}
	if opt.StartMode == FillStartReverse {
		for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
			order[i], order[j] = order[j], order[i]
		}
	}

	var out []Stitch
	prevSingle := false
	for n, row := range order {
		y := minY + float64(row)*d
		spans := scanline(rot, y, opt.MinSegment)
		if len(spans) == 0 {
			prevSingle = false
			continue
		}
		ltr := n%2 == 0
		if !ltr {
			for i, j := 0, len(spans)-1; i < j; i, j = i+1, j-1 {
				spans[i], spans[j] = spans[j], spans[i]
			}
		}
		single := len(spans) == 1
		offset := math.Mod(float64(row%2)*l/2+opt.Phase*l, l)
		for i, s := range spans {
			x0, x1 := s.x0-ext, s.x1+ext
			if !ltr {
				x0, x1 = x1, x0
			}
			pts := rowPoints(x0, x1, y, offset, l)
			for k := range pts {
				pts[k] = pts[k].Rotate(angle)
			}
			run := plain(pts)
			continuous := i == 0 && prevSingle && single
			if len(out) > 0 && !continuous {
				run[0].Jump = true
			}
			out = append(out, run...)
		}
		prevSingle = single
	}
	return out
}

func rowCompensation(c Compensation) float64 {
	switch c.Mode {
	case CompensationAuto:
		return c.PullCompensation
	case CompensationDirectional:
		return math.Abs(c.XMm)
	}
	return 0
}

// scanline intersects the horizontal line y with every ring and pairs the
// sorted crossings into inside spans, dropping spans shorter than minLen.
func scanline(rings [][]geom.Point, y, minLen float64) []span {
	var xs []float64
	for _, r := range rings {
		for i := 0; i+1 < len(r); i++ {
			a, b := r[i], r[i+1]
			if (a.Y <= y && b.Y > y) || (b.Y <= y && a.Y > y) {
				t := (y - a.Y) / (b.Y - a.Y)
				xs = append(xs, a.X+t*(b.X-a.X))
			}
		}
	}
	sort.Float64s(xs)
	var out []span
	for i := 0; i+1 < len(xs); i += 2 {
		if xs[i+1]-xs[i] > math.Max(minLen, geom.Epsilon) {
			out = append(out, span{xs[i], xs[i+1]})
		}
	}
	return out
}

// rowPoints places penetrations from x0 to x1 on a grid of pitch l shifted
// by offset, always including both ends and dropping grid points that
// would make a stitch shorter than MinStitch.
func rowPoints(x0, x1, y, offset, l float64) []geom.Point {
	pts := []geom.Point{geom.Pt(x0, y)}
	lo, hi := math.Min(x0, x1), math.Max(x0, x1)
	k0 := math.Ceil((lo - offset) / l)
	var grid []float64
	for x := k0*l + offset; x < hi; x += l {
		if x-lo >= MinStitch && hi-x >= MinStitch {
			grid = append(grid, x)
		}
	}
	if x0 > x1 {
		for i, j := 0, len(grid)-1; i < j; i, j = i+1, j-1 {
			grid[i], grid[j] = grid[j], grid[i]
		}
	}
	for _, x := range grid {
		pts = append(pts, geom.Pt(x, y))
	}
	return append(pts, geom.Pt(x1, y))
}

// inRegion is the even-odd test with points on an outline counted inside.
func inRegion(p geom.Point, rings [][]geom.Point) bool {
	if geom.PointInRings(p, rings) {
		return true
	}
	for _, r := range rings {
		if geom.DistanceToPolyline(p, r) <= boundaryTol {
			return true
		}
	}
	return false
}

// clipRuns splits pts into maximal runs inside the region. Each run after
// the first starts with a jump.
func clipRuns(pts []geom.Point, rings [][]geom.Point) []Stitch {
	var out []Stitch
	var cur []geom.Point
	flush := func() {
		if len(cur) >= 2 {
			out = appendPass(out, plain(cur))
		}
		cur = nil
	}
	for _, p := range pts {
		if inRegion(p, rings) {
			cur = append(cur, p)
		} else {
			flush()
		}
	}
	flush()
	return out
}

// Contour sews concentric copies of the outer ring shrunk toward its
// centroid in ContourStep increments, clipped to the region so holes stay
// empty. The outermost loop is sewn first unless StartMode is inside_out.
func Contour(rings [][]geom.Point, opt FillOptions) []Stitch {
	rings = geom.NormalizeRings(rings)
	if len(rings) == 0 {
		return nil
	}
	step := opt.ContourStep
	if step > 0 {
		step = math.Max(step, MinFillDensity)
	} else {
		step = density(opt.Density, MinFillDensity)
	}
	outer := rings[0]
	center := geom.Centroid(outer)
	maxR := 0.0
	for _, p := range outer {
		maxR = math.Max(maxR, p.Dist(center))
	}
	if maxR <= geom.Epsilon {
		return nil
	}

	var loops [][]geom.Point
	for i := 0; ; i++ {
		f := 1 - float64(i)*step/maxR
		if f <= contourStop {
			break
		}
		loop := make([]geom.Point, len(outer))
		for j, p := range outer {
			loop[j] = center.Add(p.Sub(center).Scale(f))
		}
		loops = append(loops, loop)
	}
	if opt.StartMode == FillStartInsideOut {
		for i, j := 0, len(loops)-1; i < j; i, j = i+1, j-1 {
			loops[i], loops[j] = loops[j], loops[i]
		}
	}

	var out []Stitch
	if opt.EdgeWalk {
		out = appendPass(out, edgeWalk(rings, opt.StitchLength))
	}
	for _, loop := range loops {
		pts := Points(Running(loop, RunOptions{Length: opt.StitchLength}))
		out = appendPass(out, clipRuns(pts, rings))
	}
	return out
}

// Spiral sews an Archimedean spiral outward from the outer ring's centroid
// with turns Density apart, starting at angle Phase turns.
func Spiral(rings [][]geom.Point, opt FillOptions) []Stitch {
	rings = geom.NormalizeRings(rings)
	if len(rings) == 0 {
		return nil
	}
	spacing := math.Max(density(opt.Density, MinFillDensity), minSpiralStep)
	l := length(opt.StitchLength)
	outer := rings[0]
	center := geom.Centroid(outer)
	maxR := 0.0
	for _, p := range outer {
		maxR = math.Max(maxR, p.Dist(center))
	}
	if maxR <= geom.Epsilon {
		return nil
	}

	phase := opt.Phase * 2 * math.Pi
	theta := phase
	var pts []geom.Point
	for guard := 0; guard < spiralGuard; guard++ {
		r := (theta - phase) / (2 * math.Pi) * spacing
		if r > maxR+spacing {
			break
		}
		pts = append(pts, center.Add(geom.Pt(r*math.Cos(theta), r*math.Sin(theta))))
		theta += math.Max(0.1, math.Min(0.7, l/math.Max(r, 0.5)))
	}

	var out []Stitch
	if opt.EdgeWalk {
		out = appendPass(out, edgeWalk(rings, opt.StitchLength))
	}
	return appendPass(out, clipRuns(pts, rings))
}

// Motif tiles pattern units over the region in serpentine rows. Units are
// rotated by Angle, shifted by Phase of one grid step, and skipped when
// their center lies outside the region.
func Motif(rings [][]geom.Point, opt FillOptions) []Stitch {
	rings = geom.NormalizeRings(rings)
	if len(rings) == 0 {
		return nil
	}
	scale := opt.MotifScale
	if scale == 0 {
		scale = 1
	}
	spacing := math.Max(density(opt.Density, MinFillDensity)*3*math.Max(scale, 0.2), minMotifStep)
	var all []geom.Point
	for _, r := range rings {
		all = append(all, r...)
	}
	bb := geom.BBoxOf(all)
	angle := opt.Angle * math.Pi / 180
	shift := (opt.Phase - math.Floor(opt.Phase)) * spacing

	var out []Stitch
	if opt.EdgeWalk {
		out = appendPass(out, edgeWalk(rings, opt.StitchLength))
	}
	row := 0
	for y := bb.MinY + shift; y <= bb.MaxY+spacing; y += spacing {
		var xs []float64
		for x := bb.MinX + shift; x <= bb.MaxX+spacing; x += spacing {
			xs = append(xs, x)
		}
		if row%2 == 1 {
			for i, j := 0, len(xs)-1; i < j; i, j = i+1, j-1 {
				xs[i], xs[j] = xs[j], xs[i]
			}
		}
		for _, x := range xs {
			c := geom.Pt(x, y)
			if !geom.PointInRings(c, rings) {
				continue
			}
			unit := motifUnit(c, spacing*0.45, angle, opt.Pattern)
			pts := Points(Running(unit, RunOptions{Length: opt.StitchLength}))
			out = appendPass(out, clipRuns(pts, rings))
		}
		row++
	}
	return out
}

func motifUnit(c geom.Point, size, angle float64, pattern MotifPattern) []geom.Point {
	var local []geom.Point
	switch pattern {
	case MotifWave:
		local = []geom.Point{
			{X: -size}, {X: -size * 0.3, Y: -size * 0.7}, {X: size * 0.3, Y: size * 0.7}, {X: size},
		}
	case MotifTriangle:
		local = []geom.Point{
			{Y: -size}, {X: size, Y: size}, {X: -size, Y: size}, {Y: -size},
		}
	default:
		local = []geom.Point{
			{Y: -size}, {X: size}, {Y: size}, {X: -size}, {Y: -size},
		}
	}
	out := make([]geom.Point, len(local))
	for i, p := range local {
		out[i] = c.Add(p.Rotate(angle))
	}
	return out
}

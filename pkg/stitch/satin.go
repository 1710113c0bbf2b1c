package stitch

import (
	"math"

	"github.com/chazu/bobbin/pkg/geom"
)

// edgeInset is the fraction of the column width edge-walk underlay stays
// inside each rail.
const edgeInset = 0.15

// SatinOptions configures a satin column.
type SatinOptions struct {
	Density      float64
	Underlay     Underlay
	Compensation Compensation
	// StitchLength is the running length used by walk underlays.
	StitchLength float64
}

type pair struct{ a, b geom.Point }

// SatinRails offsets a centerline into two rails width apart. Widths below
// MinSatinWidth are raised to it. A closed centerline drops its repeated
// end point first.
func SatinRails(centerline []geom.Point, width float64) (rail1, rail2 []geom.Point) {
	c := centerline
	if n := len(c); n >= 2 && c[0].Dist(c[n-1]) <= geom.Epsilon {
		c = c[:n-1]
	}
	if len(c) < 2 {
		return nil, nil
	}
	half := max(width, MinSatinWidth) / 2
	return geom.OffsetPolyline(c, half), geom.OffsetPolyline(c, -half)
}

// Satin sews a zigzag column between two rails. Both rails are sampled at
// the same arc-length fractions so the stitch count follows the longer rail.
// Underlay passes come first, each ending in a trim, followed by a jump to
// the start of the top stitching.
func Satin(rail1, rail2 []geom.Point, opt SatinOptions) []Stitch {
	if len(rail1) < 2 || len(rail2) < 2 {
		return nil
	}
	d := density(opt.Density, MinSatinDensity)
	pairs := samplePairs(rail1, rail2, d)
	pairs = dropShortPairs(pairs, math.Min(MinStitch, d*0.75))
	if len(pairs) == 0 {
		return nil
	}

	var out []Stitch
	if opt.Underlay.Enabled {
		out = underlay(pairs, d, opt)
	}

	top := compensate(pairs, opt.Compensation)
	if len(out) > 0 {
		out = append(out, Stitch{Pos: top[0].a, Jump: true})
	}
	for i, p := range top {
		if i%2 == 0 {
			out = append(out, Stitch{Pos: p.a}, Stitch{Pos: p.b})
		} else {
			out = append(out, Stitch{Pos: p.b}, Stitch{Pos: p.a})
		}
	}
	return out
}

func samplePairs(rail1, rail2 []geom.Point, d float64) []pair {
	arc1, arc2 := geom.ArcLengths(rail1), geom.ArcLengths(rail2)
	len1, len2 := arc1[len(arc1)-1], arc2[len(arc2)-1]
	n := max(int(math.Ceil(math.Max(len1, len2)/d)), 2)

	pairs := make([]pair, n)
	for i := range pairs {
		t := float64(i) / float64(n-1)
		a, _ := geom.SampleAt(rail1, arc1, t*len1)
		b, _ := geom.SampleAt(rail2, arc2, t*len2)
		pairs[i] = pair{a, b}
	}
	return pairs
}

// dropShortPairs thins the column where either rail advances less than
// minStep since the last kept pair, which happens on the inside of tight
// curves, and drops pairs too narrow to sew. The final pair is kept when it
// is wide enough so the column still reaches its end.
func dropShortPairs(pairs []pair, minStep float64) []pair {
	var out []pair
	for i, p := range pairs {
		if p.a.Dist(p.b) < MinStitch {
			continue
		}
		if len(out) > 0 {
			last := out[len(out)-1]
			step := math.Min(p.a.Dist(last.a), p.b.Dist(last.b))
			if step < minStep {
				if i == len(pairs)-1 {
					out[len(out)-1] = p
				}
				continue
			}
		}
		out = append(out, p)
	}
	return out
}

// compensate widens (or narrows, for negative values) every pair along its
// own direction.
func compensate(pairs []pair, c Compensation) []pair {
	out := make([]pair, len(pairs))
	for i, p := range pairs {
		dir := p.b.Sub(p.a)
		w := dir.Len()
		if w < geom.Epsilon {
			out[i] = p
			continue
		}
		n := dir.Scale(1 / w)
		var off geom.Point
		switch c.Mode {
		case CompensationAuto:
			off = n.Scale(c.PullCompensation)
		case CompensationDirectional:
			off = geom.Pt(n.X*c.XMm, n.Y*c.YMm)
		}
		a, b := p.a.Sub(off), p.b.Add(off)
		// Narrowing never flips the pair or collapses it below MinStitch.
		if b.Sub(a).Dot(n) < MinStitch {
			mid := p.a.Lerp(p.b, 0.5)
			a, b = mid.Sub(n.Scale(MinStitch/2)), mid.Add(n.Scale(MinStitch/2))
		}
		out[i] = pair{a, b}
	}
	return out
}

func underlay(pairs []pair, d float64, opt SatinOptions) []Stitch {
	center, edge, zigzag := opt.Underlay.Mode.passes()
	run := RunOptions{Length: opt.StitchLength}
	var out []Stitch
	endPass := func(sts []Stitch) {
		if len(sts) == 0 {
			return
		}
		sts[len(sts)-1].Trim = true
		out = append(out, sts...)
	}

	if center {
		mid := make([]geom.Point, len(pairs))
		for i, p := range pairs {
			mid[i] = p.a.Lerp(p.b, 0.5)
		}
		endPass(Running(mid, run))
	}
	if edge {
		e1 := make([]geom.Point, len(pairs))
		e2 := make([]geom.Point, len(pairs))
		for i, p := range pairs {
			e1[i] = p.a.Lerp(p.b, edgeInset)
			e2[i] = p.b.Lerp(p.a, edgeInset)
		}
		endPass(Running(e1, run))
		endPass(Running(e2, run))
	}
	if zigzag {
		spacing := opt.Underlay.SpacingMm
		if spacing <= 0 {
			spacing = DefaultUnderlaySpacing
		}
		step := int(math.Ceil(math.Max(spacing/d, 1)))
		var zz []Stitch
		side := false
		for i := 0; i < len(pairs); i += step {
			p := pairs[i].a
			if side {
				p = pairs[i].b
			}
			zz = append(zz, Stitch{Pos: p})
			side = !side
		}
		endPass(zz)
	}
	return out
}

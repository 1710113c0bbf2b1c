package stitch

import (
	"math"

	"github.com/chazu/bobbin/pkg/geom"
)

// RunOptions configures a running stitch.
type RunOptions struct {
	Length     float64 // target stitch length, DefaultStitchLength when <= 0
	MinSegment float64 // penetrations closer than this are merged
	MaxStitch  float64 // longer stitches are split, disabled when <= 0
	Bean       bool    // sew every stitch forward, back and forward again
}

// Running walks pts at opt.Length intervals. The leftover distance at the
// end of a segment carries into the next so spacing stays even around
// corners. The first and last points are always kept, so a closed input
// yields a closed run.
func Running(pts []geom.Point, opt RunOptions) []Stitch {
	if len(pts) < 2 {
		return nil
	}
	l := length(opt.Length)

	out := []geom.Point{pts[0]}
	remaining := 0.0
	for i := 0; i+1 < len(pts); i++ {
		p0, p1 := pts[i], pts[i+1]
		seg := p0.Dist(p1)
		if seg == 0 {
			continue
		}
		dir := p1.Sub(p0).Scale(1 / seg)
		d := l - remaining
		for d <= seg {
			out = append(out, p0.Add(dir.Scale(d)))
			d += l
		}
		remaining = seg - (d - l)
	}
	out = append(out, pts[len(pts)-1])

	out = geom.Dedupe(out, max(opt.MinSegment, geom.Epsilon))
	if opt.MaxStitch > 0 {
		out = splitLong(out, opt.MaxStitch)
	}
	if opt.Bean {
		out = bean(out)
	}
	if len(out) < 2 {
		return nil
	}
	return plain(out)
}

// splitLong inserts evenly spaced points into every segment longer than limit.
func splitLong(pts []geom.Point, limit float64) []geom.Point {
	if len(pts) < 2 {
		return pts
	}
	out := []geom.Point{pts[0]}
	for i := 1; i < len(pts); i++ {
		a, b := pts[i-1], pts[i]
		n := int(math.Ceil(a.Dist(b) / limit))
		for k := 1; k < n; k++ {
			out = append(out, a.Lerp(b, float64(k)/float64(n)))
		}
		out = append(out, b)
	}
	return out
}

// bean triples every stitch: a to b, back to a, and to b again.
func bean(pts []geom.Point) []geom.Point {
	if len(pts) < 2 {
		return pts
	}
	out := make([]geom.Point, 0, 3*len(pts))
	out = append(out, pts[0])
	for i := 1; i < len(pts); i++ {
		out = append(out, pts[i], pts[i-1], pts[i])
	}
	return out
}

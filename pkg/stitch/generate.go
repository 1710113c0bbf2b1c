package stitch

import (
	"math"

	"github.com/chazu/bobbin/pkg/geom"
)

// Generate sews one shape. subpaths are the flattened outline, strokeWidth
// is the satin column width and stitchLength the export default, which
// p.StitchLengthMm overrides when set. Fills need at least one closed
// subpath; satin and fills that produce nothing fall back to a running
// stitch along the outline.
func Generate(p Params, subpaths []geom.Subpath, strokeWidth, stitchLength float64) []Stitch {
	l := stitchLength
	if p.StitchLengthMm > 0 {
		l = p.StitchLengthMm
	}
	l = length(l)

	var out []Stitch
	switch {
	case p.Type == TypeSatin || p.Type == TypeLettering:
		out = columns(p, subpaths, strokeWidth, l)
	case p.Type.IsFill():
		var rings [][]geom.Point
		for _, sp := range subpaths {
			if sp.Closed {
				rings = append(rings, sp.Points)
			}
		}
		if len(rings) == 0 {
			break
		}
		opt := FillOptionsFrom(p, l)
		switch p.Type {
		case TypeTatami:
			out = Tatami(rings, opt)
		case TypeContour:
			out = Contour(rings, opt)
		case TypeSpiral:
			out = Spiral(rings, opt)
		case TypeMotif:
			out = Motif(rings, opt)
		}
	}
	if len(out) == 0 {
		out = running(p, subpaths, l)
	}
	return out
}

func running(p Params, subpaths []geom.Subpath, l float64) []Stitch {
	opt := RunOptions{
		Length:     l,
		MinSegment: p.MinSegmentMm,
		MaxStitch:  p.MaxStitchMm,
		Bean:       p.BeanStitch,
	}
	var out []Stitch
	for _, sp := range subpaths {
		out = appendPass(out, Running(sp.Points, opt))
	}
	return out
}

// columns sews one satin column per subpath, using the subpath as the
// column centerline.
func columns(p Params, subpaths []geom.Subpath, width, l float64) []Stitch {
	opt := SatinOptions{
		Density:      p.Density,
		Underlay:     p.Underlay,
		Compensation: p.Compensation,
		StitchLength: l,
	}
	var out []Stitch
	for _, sp := range subpaths {
		r1, r2 := SatinRails(sp.Points, width)
		out = appendPass(out, Satin(r1, r2, opt))
	}
	return out
}

// EstimateCount predicts the stitch count of a shape without generating it:
// outline length over stitch length for running, area over density times
// stitch length for fills and satin.
func EstimateCount(p Params, subpaths []geom.Subpath, stitchLength float64) int {
	l := stitchLength
	if p.StitchLengthMm > 0 {
		l = p.StitchLengthMm
	}
	l = length(l)
	var perim, area float64
	for _, sp := range subpaths {
		perim += geom.PolylineLength(sp.Points)
		if sp.Closed {
			area += math.Abs(geom.SignedArea(sp.Points))
		}
	}
	d := density(p.Density, MinFillDensity)
	switch {
	case p.Type.IsFill() && area > 0:
		return count(area/(d*l)) + 1
	case p.Type == TypeSatin || p.Type == TypeLettering:
		return 2*count(perim/d) + 2
	}
	return count(perim/l) + 2
}

// maxEstimate caps EstimateCount far above any machine's stitch limit.
const maxEstimate = 1 << 30

// count converts a float count to int, mapping NaN and negatives to 0 and
// clamping at maxEstimate.
func count(f float64) int {
	if !(f > 0) {
		return 0
	}
	if f > maxEstimate {
		return maxEstimate
	}
	return int(f)
}

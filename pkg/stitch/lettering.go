package stitch

import (
	"fmt"
	"math"
	"sync"

	"github.com/chazu/bobbin/pkg/geom"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// goRegular is parsed on first use.
var goRegular = sync.OnceValues(func() (*sfnt.Font, error) {
	return sfnt.Parse(goregular.TTF)
})

// LetteringOptions lays out a line of text.
type LetteringOptions struct {
	SizeMm    float64 // cap height
	SpacingMm float64 // extra space after every glyph
	// Baseline is the polyline glyphs sit on. Empty means +X from the origin.
	Baseline []geom.Point
	// Width is the satin column width; zero picks one from SizeMm.
	Width float64
	Satin SatinOptions
}

// LetterOutlines returns every glyph contour of text as a closed ring,
// placed along the baseline. Glyph origins sit at the arc length of the
// accumulated advances and are rotated to the baseline tangent there.
func LetterOutlines(text string, opt LetteringOptions) ([][]geom.Point, error) {
	f, err := goRegular()
	if err != nil {
		return nil, fmt.Errorf("load font: %w", err)
	}
	if opt.SizeMm <= 0 {
		return nil, nil
	}
	var buf sfnt.Buffer
	upem := fixed.I(int(f.UnitsPerEm()))
	m, err := f.Metrics(&buf, upem, font.HintingNone)
	if err != nil {
		return nil, fmt.Errorf("font metrics: %w", err)
	}
	capHeight := fromFixed(m.CapHeight)
	if capHeight <= 0 {
		capHeight = 0.7 * float64(f.UnitsPerEm())
	}
	scale := opt.SizeMm / capHeight
	tol := math.Min(geom.FlattenTolerance, opt.SizeMm/40)

	base := opt.Baseline
	if len(base) < 2 {
		base = []geom.Point{{}, {X: 1}}
	}
	arc := geom.ArcLengths(base)
	total := arc[len(arc)-1]

	var out [][]geom.Point
	pen := 0.0
	for _, r := range text {
		idx, err := f.GlyphIndex(&buf, r)
		if err != nil {
			return nil, fmt.Errorf("glyph %q: %w", r, err)
		}
		adv, err := f.GlyphAdvance(&buf, idx, upem, font.HintingNone)
		if err != nil {
			return nil, fmt.Errorf("advance %q: %w", r, err)
		}
		origin, tan := geom.SampleAt(base, arc, pen)
		if pen > total {
			origin = origin.Add(tan.Scale(pen - total))
		}
		if idx != 0 {
			segs, err := f.LoadGlyph(&buf, idx, upem, nil)
			if err != nil {
				return nil, fmt.Errorf("outline %q: %w", r, err)
			}
			normal := tan.Perp()
			place := func(p fixed.Point26_6) geom.Point {
				x, y := fromFixed(p.X)*scale, fromFixed(p.Y)*scale
				return origin.Add(tan.Scale(x)).Add(normal.Scale(y))
			}
			for _, sp := range glyphPath(segs, place).Subpaths(tol) {
				if ring := geom.RepairRing(sp.Points, 1e-6); ring != nil {
					out = append(out, ring)
				}
			}
		}
		pen += fromFixed(adv)*scale + opt.SpacingMm
	}
	return out, nil
}

// glyphPath converts sfnt segments to a path, closing every contour.
func glyphPath(segs sfnt.Segments, place func(fixed.Point26_6) geom.Point) geom.Path {
	var p geom.Path
	open := false
	for _, s := range segs {
		switch s.Op {
		case sfnt.SegmentOpMoveTo:
			if open {
				p.Close()
			}
			p.MoveTo(place(s.Args[0]))
			open = true
		case sfnt.SegmentOpLineTo:
			p.LineTo(place(s.Args[0]))
		case sfnt.SegmentOpQuadTo:
			p.QuadTo(place(s.Args[0]), place(s.Args[1]))
		case sfnt.SegmentOpCubeTo:
			p.CubicTo(place(s.Args[0]), place(s.Args[1]), place(s.Args[2]))
		}
	}
	if open {
		p.Close()
	}
	return p
}

func fromFixed(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

// Lettering sews every glyph contour as a satin column centered on the
// outline, with the same short-stitch thinning as Satin.
func Lettering(text string, opt LetteringOptions) ([]Stitch, error) {
	rings, err := LetterOutlines(text, opt)
	if err != nil {
		return nil, err
	}
	w := opt.Width
	if w <= 0 {
		w = math.Max(opt.SizeMm*0.08, MinSatinWidth)
	}
	var out []Stitch
	for _, ring := range rings {
		r1, r2 := SatinRails(ring, w)
		out = appendPass(out, Satin(r1, r2, opt.Satin))
	}
	return out, nil
}

// Package svg imports SVG path data and basic SVG documents as geometry.
// Coordinates are taken as millimeters; no viewBox or unit scaling is
// applied.
package svg

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/chazu/bobbin/pkg/geom"
)

// ErrParse is returned for malformed path data or XML.
var ErrParse = errors.New("svg: parse error")

// ParsePath parses an SVG path "d" attribute. Every command of the SVG 1.1
// grammar is supported; relative commands are made absolute, H and V become
// lines, S and T reflect the previous control point and arcs are
// approximated by cubics.
func ParsePath(d string) (geom.Path, error) {
	p := &pathParser{sc: scanner{s: d}}
	if err := p.parse(); err != nil {
		return geom.Path{}, err
	}
	return p.path, nil
}

type pathParser struct {
	sc    scanner
	path  geom.Path
	cur   geom.Point
	start geom.Point
	ctrl  geom.Point // last curve control point, for S and T
	prev  byte       // previous command, upper case
}

func (p *pathParser) parse() error {
	for {
		p.sc.skipSep()
		if p.sc.done() {
			return nil
		}
		c := p.sc.s[p.sc.i]
		if !isCommand(c) {
			return p.sc.errorf("expected command, found %q", c)
		}
		p.sc.i++
		if err := p.command(c); err != nil {
			return err
		}
	}
}

func (p *pathParser) command(c byte) error {
	rel := c >= 'a'
	upper := c &^ 0x20
	if upper == 'Z' {
		p.path.Close()
		p.cur = p.start
		p.prev = 'Z'
		return nil
	}
	first := true
	for first || p.sc.hasNumber() {
		if err := p.segment(upper, rel, first); err != nil {
			return err
		}
		first = false
	}
	return nil
}

// offset makes a relative point absolute.
func (p *pathParser) offset(pt geom.Point, rel bool) geom.Point {
	if rel {
		return pt.Add(p.cur)
	}
	return pt
}

func (p *pathParser) segment(c byte, rel, first bool) error {
	switch c {
	case 'M':
		pt, err := p.sc.point()
		if err != nil {
			return err
		}
		pt = p.offset(pt, rel)
		if first {
			p.path.MoveTo(pt)
			p.start = pt
		} else {
			p.path.LineTo(pt)
		}
		p.cur = pt
	case 'L':
		pt, err := p.sc.point()
		if err != nil {
			return err
		}
		p.cur = p.offset(pt, rel)
		p.path.LineTo(p.cur)
	case 'H':
		x, err := p.sc.number()
		if err != nil {
			return err
		}
		if rel {
			x += p.cur.X
		}
		p.cur = geom.Pt(x, p.cur.Y)
		p.path.LineTo(p.cur)
	case 'V':
		y, err := p.sc.number()
		if err != nil {
			return err
		}
		if rel {
			y += p.cur.Y
		}
		p.cur = geom.Pt(p.cur.X, y)
		p.path.LineTo(p.cur)
	case 'C', 'S':
		var c1 geom.Point
		if c == 'C' {
			pt, err := p.sc.point()
			if err != nil {
				return err
			}
			c1 = p.offset(pt, rel)
		} else {
			c1 = p.reflect('C', 'S')
		}
		c2, err := p.sc.point()
		if err != nil {
			return err
		}
		to, err := p.sc.point()
		if err != nil {
			return err
		}
		c2, to = p.offset(c2, rel), p.offset(to, rel)
		p.path.CubicTo(c1, c2, to)
		p.ctrl, p.cur = c2, to
	case 'Q', 'T':
		var c1 geom.Point
		if c == 'Q' {
			pt, err := p.sc.point()
			if err != nil {
				return err
			}
			c1 = p.offset(pt, rel)
		} else {
			c1 = p.reflect('Q', 'T')
		}
		to, err := p.sc.point()
		if err != nil {
			return err
		}
		to = p.offset(to, rel)
		p.path.QuadTo(c1, to)
		p.ctrl, p.cur = c1, to
	case 'A':
		rx, err := p.sc.number()
		if err != nil {
			return err
		}
		ry, err := p.sc.number()
		if err != nil {
			return err
		}
		rot, err := p.sc.number()
		if err != nil {
			return err
		}
		large, err := p.sc.flag()
		if err != nil {
			return err
		}
		sweep, err := p.sc.flag()
		if err != nil {
			return err
		}
		to, err := p.sc.point()
		if err != nil {
			return err
		}
		to = p.offset(to, rel)
		for _, cb := range arcToCubics(p.cur, to, rx, ry, rot, large, sweep) {
			p.path.CubicTo(cb[0], cb[1], cb[2])
		}
		p.cur = to
	}
	p.prev = c
	return nil
}

// reflect mirrors the previous control point about the current point when
// the previous command was one of the given curve commands.
func (p *pathParser) reflect(a, b byte) geom.Point {
	if p.prev == a || p.prev == b {
		return p.cur.Scale(2).Sub(p.ctrl)
	}
	return p.cur
}

// arcToCubics converts an endpoint-parameterized elliptical arc into cubic
// segments of at most 90 degrees each.
func arcToCubics(from, to geom.Point, rx, ry, rotDeg float64, large, sweep bool) [][3]geom.Point {
	if from.Near(to, geom.Epsilon) {
		return nil
	}
	rx, ry = math.Abs(rx), math.Abs(ry)
	if rx < geom.Epsilon || ry < geom.Epsilon {
		return [][3]geom.Point{{from, to, to}}
	}
	phi := rotDeg * math.Pi / 180
	sin, cos := math.Sincos(phi)

	// Center parameterization, SVG 1.1 appendix F.6.5.
	dx, dy := (from.X-to.X)/2, (from.Y-to.Y)/2
	x1 := cos*dx + sin*dy
	y1 := -sin*dx + cos*dy
	if l := x1*x1/(rx*rx) + y1*y1/(ry*ry); l > 1 {
		s := math.Sqrt(l)
		rx, ry = rx*s, ry*s
	}
	num := rx*rx*ry*ry - rx*rx*y1*y1 - ry*ry*x1*x1
	den := rx*rx*y1*y1 + ry*ry*x1*x1
	coef := 0.0
	if den > 0 && num > 0 {
		coef = math.Sqrt(num / den)
	}
	if large == sweep {
		coef = -coef
	}
	cx1 := coef * rx * y1 / ry
	cy1 := -coef * ry * x1 / rx
	cx := cos*cx1 - sin*cy1 + (from.X+to.X)/2
	cy := sin*cx1 + cos*cy1 + (from.Y+to.Y)/2

	angle := func(ux, uy, vx, vy float64) float64 {
		return math.Atan2(ux*vy-uy*vx, ux*vx+uy*vy)
	}
	theta := angle(1, 0, (x1-cx1)/rx, (y1-cy1)/ry)
	delta := angle((x1-cx1)/rx, (y1-cy1)/ry, (-x1-cx1)/rx, (-y1-cy1)/ry)
	if !sweep && delta > 0 {
		delta -= 2 * math.Pi
	} else if sweep && delta < 0 {
		delta += 2 * math.Pi
	}

	n := int(math.Ceil(math.Abs(delta) / (math.Pi / 2)))
	step := delta / float64(n)
	k := 4.0 / 3.0 * math.Tan(step/4)
	at := func(t float64) (geom.Point, geom.Point) {
		st, ct := math.Sincos(t)
		p := geom.Pt(cx+rx*ct*cos-ry*st*sin, cy+rx*ct*sin+ry*st*cos)
		d := geom.Pt(-rx*st*cos-ry*ct*sin, -rx*st*sin+ry*ct*cos)
		return p, d
	}
	out := make([][3]geom.Point, 0, n)
	t := theta
	p0, d0 := at(t)
	for i := 0; i < n; i++ {
		p1, d1 := at(t + step)
		if i == n-1 {
			p1 = to
		}
		out = append(out, [3]geom.Point{p0.Add(d0.Scale(k)), p1.Sub(d1.Scale(k)), p1})
		t += step
		p0, d0 = p1, d1
	}
	return out
}

// ---------------------------------------------------------------------------
// Lexing
// ---------------------------------------------------------------------------

type scanner struct {
	s string
	i int
}

func (sc *scanner) done() bool { return sc.i >= len(sc.s) }

func (sc *scanner) errorf(format string, args ...any) error {
	return fmt.Errorf("%w at offset %d: %s", ErrParse, sc.i, fmt.Sprintf(format, args...))
}

func (sc *scanner) skipSep() {
	for !sc.done() {
		switch sc.s[sc.i] {
		case ' ', '\t', '\n', '\r', '\f', ',':
			sc.i++
		default:
			return
		}
	}
}

func (sc *scanner) hasNumber() bool {
	sc.skipSep()
	if sc.done() {
		return false
	}
	c := sc.s[sc.i]
	return c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9')
}

// number reads one float. "1.5.5" is two numbers and "1-2" is two numbers,
// as the grammar allows.
func (sc *scanner) number() (float64, error) {
	sc.skipSep()
	start := sc.i
	if !sc.done() && (sc.s[sc.i] == '-' || sc.s[sc.i] == '+') {
		sc.i++
	}
	digits, dot := false, false
mantissa:
	for !sc.done() {
		c := sc.s[sc.i]
		switch {
		case c >= '0' && c <= '9':
			digits = true
		case c == '.' && !dot:
			dot = true
		default:
			break mantissa
		}
		sc.i++
	}
	if digits && !sc.done() && (sc.s[sc.i] == 'e' || sc.s[sc.i] == 'E') {
		j := sc.i + 1
		if j < len(sc.s) && (sc.s[j] == '-' || sc.s[j] == '+') {
			j++
		}
		if j < len(sc.s) && sc.s[j] >= '0' && sc.s[j] <= '9' {
			for j < len(sc.s) && sc.s[j] >= '0' && sc.s[j] <= '9' {
				j++
			}
			sc.i = j
		}
	}
	if !digits {
		sc.i = start
		return 0, sc.errorf("expected number")
	}
	v, err := strconv.ParseFloat(sc.s[start:sc.i], 64)
	if err != nil {
		return 0, sc.errorf("bad number %q", sc.s[start:sc.i])
	}
	return v, nil
}

// flag reads an arc flag, which may be packed without separators.
func (sc *scanner) flag() (bool, error) {
	sc.skipSep()
	if sc.done() {
		return false, sc.errorf("expected flag")
	}
	switch sc.s[sc.i] {
	case '0':
		sc.i++
		return false, nil
	case '1':
		sc.i++
		return true, nil
	}
	return false, sc.errorf("expected flag, found %q", sc.s[sc.i])
}

func (sc *scanner) point() (geom.Point, error) {
	x, err := sc.number()
	if err != nil {
		return geom.Point{}, err
	}
	y, err := sc.number()
	if err != nil {
		return geom.Point{}, err
	}
	return geom.Pt(x, y), nil
}

func isCommand(c byte) bool {
	switch c &^ 0x20 {
	case 'M', 'L', 'H', 'V', 'C', 'S', 'Q', 'T', 'A', 'Z':
		return true
	}
	return false
}

package svg

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/multierr"

	"github.com/chazu/bobbin/pkg/geom"
	"github.com/chazu/bobbin/pkg/thread"
)

// Shape is one drawable element of a document.
type Shape struct {
	ID     string        `json:"id,omitempty"`
	Tag    string        `json:"tag"`
	Path   geom.Path     `json:"path"`
	Fill   *thread.Color `json:"fill,omitempty"`
	Stroke *thread.Color `json:"stroke,omitempty"`
}

// Document is the result of importing an SVG document. Elements that could
// not be converted are left out and listed in Skipped.
type Document struct {
	Shapes  []Shape `json:"shapes"`
	Skipped []error `json:"-"`
}

// Paths returns the geometry of every shape.
func (d Document) Paths() []geom.Path {
	out := make([]geom.Path, len(d.Shapes))
	for i, s := range d.Shapes {
		out[i] = s.Path
	}
	return out
}

// Err combines the errors of skipped elements, or returns nil.
func (d Document) Err() error {
	return multierr.Combine(d.Skipped...)
}

// ParseDocument reads path, rect, circle, ellipse, line, polyline and
// polygon elements in document order. Malformed XML fails the whole import
// with ErrParse; a bad element is skipped.
func ParseDocument(content string) (Document, error) {
	var doc Document
	dec := xml.NewDecoder(strings.NewReader(content))
	dec.Strict = true
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Document{}, fmt.Errorf("%w: %w", ErrParse, err)
		}
		el, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		a := attrs(el.Attr)
		var (
			p     geom.Path
			found bool
			perr  error
		)
		switch el.Name.Local {
		case "path":
			d, ok := a["d"]
			if !ok {
				continue
			}
			p, perr = ParsePath(d)
			found = true
		case "rect":
			p, found = rect(a)
		case "circle":
			r, ok := a.num("r")
			if ok {
				p, found = ellipse(a.numOr("cx", 0), a.numOr("cy", 0), r, r), true
			}
		case "ellipse":
			rx, okx := a.num("rx")
			ry, oky := a.num("ry")
			if okx && oky {
				p, found = ellipse(a.numOr("cx", 0), a.numOr("cy", 0), rx, ry), true
			}
		case "line":
			p.MoveTo(geom.Pt(a.numOr("x1", 0), a.numOr("y1", 0)))
			p.LineTo(geom.Pt(a.numOr("x2", 0), a.numOr("y2", 0)))
			found = true
		case "polyline", "polygon":
			p, found = poly(a["points"], el.Name.Local == "polygon")
		default:
			continue
		}
		if perr != nil {
			doc.Skipped = append(doc.Skipped, fmt.Errorf("<%s id=%q>: %w", el.Name.Local, a["id"], perr))
			continue
		}
		if !found || p.IsEmpty() {
			doc.Skipped = append(doc.Skipped, fmt.Errorf("<%s id=%q>: missing or empty geometry", el.Name.Local, a["id"]))
			continue
		}
		doc.Shapes = append(doc.Shapes, Shape{
			ID:     a["id"],
			Tag:    el.Name.Local,
			Path:   p,
			Fill:   a.color("fill"),
			Stroke: a.color("stroke"),
		})
	}
	return doc, nil
}

type attrMap map[string]string

func attrs(as []xml.Attr) attrMap {
	m := make(attrMap, len(as))
	for _, a := range as {
		m[a.Name.Local] = a.Value
	}
	// Inline style declarations win over presentation attributes.
	for _, decl := range strings.Split(m["style"], ";") {
		k, v, ok := strings.Cut(decl, ":")
		if ok {
			m[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	return m
}

func (m attrMap) num(name string) (float64, bool) {
	s, ok := m[name]
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "mm"), 64)
	return v, err == nil
}

func (m attrMap) numOr(name string, def float64) float64 {
	if v, ok := m.num(name); ok {
		return v
	}
	return def
}

func (m attrMap) color(name string) *thread.Color {
	s := strings.TrimSpace(m[name])
	if s == "" || s == "none" {
		return nil
	}
	c, err := thread.ParseHex(s)
	if err != nil {
		return nil
	}
	return &c
}

func rect(a attrMap) (geom.Path, bool) {
	w, okw := a.num("width")
	h, okh := a.num("height")
	if !okw || !okh || w <= 0 || h <= 0 {
		return geom.Path{}, false
	}
	x, y := a.numOr("x", 0), a.numOr("y", 0)
	rx := min(a.numOr("rx", 0), w/2)
	ry := min(a.numOr("ry", rx), h/2)
	if _, ok := a["rx"]; !ok {
		rx = min(ry, w/2)
	}

	var p geom.Path
	if rx <= 0 || ry <= 0 {
		p.MoveTo(geom.Pt(x, y))
		p.LineTo(geom.Pt(x+w, y))
		p.LineTo(geom.Pt(x+w, y+h))
		p.LineTo(geom.Pt(x, y+h))
		p.Close()
		return p, true
	}
	kx, ky := rx*geom.Kappa, ry*geom.Kappa
	p.MoveTo(geom.Pt(x+rx, y))
	p.LineTo(geom.Pt(x+w-rx, y))
	p.CubicTo(geom.Pt(x+w-rx+kx, y), geom.Pt(x+w, y+ry-ky), geom.Pt(x+w, y+ry))
	p.LineTo(geom.Pt(x+w, y+h-ry))
	p.CubicTo(geom.Pt(x+w, y+h-ry+ky), geom.Pt(x+w-rx+kx, y+h), geom.Pt(x+w-rx, y+h))
	p.LineTo(geom.Pt(x+rx, y+h))
	p.CubicTo(geom.Pt(x+rx-kx, y+h), geom.Pt(x, y+h-ry+ky), geom.Pt(x, y+h-ry))
	p.LineTo(geom.Pt(x, y+ry))
	p.CubicTo(geom.Pt(x, y+ry-ky), geom.Pt(x+rx-kx, y), geom.Pt(x+rx, y))
	p.Close()
	return p, true
}

// ellipse is centered on (cx, cy) and starts at the top.
func ellipse(cx, cy, rx, ry float64) geom.Path {
	g := geom.EllipseGeometry{RX: rx, RY: ry}.ToPath()
	return g.Transform(geom.Translate(cx, cy).Matrix())
}

func poly(points string, closed bool) (geom.Path, bool) {
	fields := strings.FieldsFunc(points, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	var nums []float64
	for _, f := range fields {
		if v, err := strconv.ParseFloat(f, 64); err == nil {
			nums = append(nums, v)
		}
	}
	if len(nums) < 4 {
		return geom.Path{}, false
	}
	var p geom.Path
	p.MoveTo(geom.Pt(nums[0], nums[1]))
	for i := 2; i+1 < len(nums); i += 2 {
		p.LineTo(geom.Pt(nums[i], nums[i+1]))
	}
	if closed {
		p.Close()
	}
	return p, true
}

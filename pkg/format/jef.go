package format

import (
	"encoding/binary"

	"github.com/chazu/bobbin/pkg/thread"
)

// Janome JEF: a fixed header with hoop fit tables, a color index table,
// then signed byte displacements with Y pointing up and 0x80 escapes.
const (
	jefHeaderSize = 116
	jefMax        = 127
	jefDate       = "20000101000000"

	jefEscape = 0x80
	jefColor  = 0x01
	jefMove   = 0x02
	jefEnd    = 0x10
)

// jefPalette is the Janome thread table. Index 0 is unused.
var jefPalette = []thread.Color{
	{},
	thread.RGB(0, 0, 0), thread.RGB(255, 255, 255), thread.RGB(255, 255, 23), thread.RGB(250, 160, 96),
	thread.RGB(92, 118, 73), thread.RGB(64, 192, 48), thread.RGB(101, 194, 200), thread.RGB(172, 128, 190),
	thread.RGB(245, 188, 203), thread.RGB(255, 0, 0), thread.RGB(192, 128, 0), thread.RGB(0, 0, 240),
	thread.RGB(228, 195, 93), thread.RGB(165, 42, 42), thread.RGB(213, 176, 212), thread.RGB(252, 242, 148),
	thread.RGB(240, 208, 192), thread.RGB(255, 192, 0), thread.RGB(201, 164, 128), thread.RGB(155, 61, 75),
	thread.RGB(160, 184, 204), thread.RGB(127, 194, 28), thread.RGB(185, 185, 185), thread.RGB(160, 160, 160),
	thread.RGB(152, 214, 189), thread.RGB(184, 240, 240), thread.RGB(54, 139, 160), thread.RGB(79, 131, 171),
	thread.RGB(56, 106, 145), thread.RGB(0, 32, 107),
}

// jefHoops are the hoop sizes in 0.1 mm, in header code order.
var jefHoops = [4][2]int{{1260, 1100}, {500, 500}, {1400, 2000}, {2300, 2000}}

// EncodeJEF writes a Janome JEF file.
func EncodeJEF(d Design) ([]byte, []Note) {
	moves, notes := relative(d, jefMax, "jef")

	var body []byte
	esc := func(cmd byte, dx, dy int) {
		body = append(body, jefEscape, cmd, byte(int8(dx)), byte(int8(-dy)))
	}
	for _, m := range moves {
		ended := false
		switch m.Type {
		case Normal:
			body = append(body, byte(int8(m.DX)), byte(int8(-m.DY)))
		case Jump:
			if m.DX != 0 || m.DY != 0 {
				esc(jefMove, m.DX, m.DY)
			}
		case Trim:
			if m.DX != 0 || m.DY != 0 {
				esc(jefMove, m.DX, m.DY)
			}
			esc(jefMove, 0, 0)
		case ColorChange:
			esc(jefColor, m.DX, m.DY)
		case End:
			if m.DX != 0 || m.DY != 0 {
				esc(jefMove, m.DX, m.DY)
			}
			ended = true
		}
		if ended {
			break
		}
	}
	body = append(body, jefEscape, jefEnd)

	n := d.blockCount()
	le := binary.LittleEndian
	out := make([]byte, 0, jefHeaderSize+8*n+len(body))
	out = le.AppendUint32(out, uint32(jefHeaderSize+8*n))
	out = le.AppendUint32(out, 0x14)
	out = append(out, jefDate...)
	out = append(out, 0, 0)
	out = le.AppendUint32(out, uint32(n))
	out = le.AppendUint32(out, uint32(len(body)/2))

	ext := d.Extents()
	hw := toUnit(ext.Width()) / 2
	hh := toUnit(ext.Height()) / 2
	out = le.AppendUint32(out, uint32(jefHoop(hw, hh)))
	for _, v := range []int{hw, hh, hw, hh} {
		out = le.AppendUint32(out, uint32(v))
	}
	for _, h := range jefHoops {
		fx, fy := h[0]/2-hw, h[1]/2-hh
		if fx < 0 || fy < 0 {
			for range 4 {
				out = le.AppendUint32(out, 0xFFFFFFFF)
			}
			continue
		}
		for _, v := range []int{fx, fy, fx, fy} {
			out = le.AppendUint32(out, uint32(v))
		}
	}
	for i := range n {
		out = le.AppendUint32(out, uint32(thread.NearestIndex(d.threadColor(i), jefPalette[1:])+1))
	}
	for range n {
		out = le.AppendUint32(out, 0x0D)
	}
	return append(out, body...), notes
}

// jefHoop picks the smallest hoop code that fits the half extents.
func jefHoop(hw, hh int) int {
	for _, code := range []int{1, 0, 2, 3} {
		if 2*hw <= jefHoops[code][0] && 2*hh <= jefHoops[code][1] {
			return code
		}
	}
	return 3
}

// DecodeJEF reads a JEF file. A zero-length move decodes as Trim.
func DecodeJEF(b []byte) (Design, error) {
	if len(b) < jefHeaderSize {
		return Design{}, ErrTruncated
	}
	le := binary.LittleEndian
	off := int(le.Uint32(b[0:]))
	n := int(le.Uint32(b[24:]))
	if off > len(b) || jefHeaderSize+4*n > len(b) {
		return Design{}, ErrTruncated
	}
	var a absolute
	for i := range n {
		k := int(le.Uint32(b[jefHeaderSize+4*i:]))
		c := thread.Black
		if k > 0 && k < len(jefPalette) {
			c = jefPalette[k]
		}
		a.d.Colors = append(a.d.Colors, c)
	}

	r := &reader{b: b, off: off}
	for !r.done() {
		x := r.u8()
		if x != jefEscape {
			y := r.u8()
			a.add(int(int8(x)), -int(int8(y)), Normal)
			continue
		}
		cmd := r.u8()
		if cmd == jefEnd {
			break
		}
		dx, dy := int(int8(r.u8())), -int(int8(r.u8()))
		if r.err != nil {
			return Design{}, r.err
		}
		switch {
		case cmd == jefColor:
			a.add(dx, dy, ColorChange)
		case dx == 0 && dy == 0:
			a.add(0, 0, Trim)
		default:
			a.add(dx, dy, Jump)
		}
	}
	if r.err != nil {
		return Design{}, r.err
	}
	return a.finish(), nil
}

package format

import (
	"encoding/binary"

	"github.com/chazu/bobbin/pkg/thread"
)

// Singer XXX: a 256 byte header, signed byte displacements with Y up and
// 0x7F command escapes, then an RGB color table at the offset stored at
// 0xFC.
const (
	xxxHeaderSize = 0x100
	xxxMax        = 124
	xxxEscape     = 0x7F

	xxxJump  = 0x01
	xxxTrim  = 0x03
	xxxColor = 0x08
	xxxEnd   = 0x7F

	xxxCountAt  = 0x17
	xxxColorsAt = 0x27
	xxxTableAt  = 0xFC
)

// EncodeXXX writes a Singer XXX file.
func EncodeXXX(d Design) ([]byte, []Note) {
	moves, notes := relative(d, xxxMax, "xxx")
	out := make([]byte, xxxHeaderSize)
	records := 0
	esc := func(cmd byte, dx, dy int) {
		out = append(out, xxxEscape, cmd, byte(int8(dx)), byte(int8(-dy)))
		records++
	}
	for _, m := range moves {
		if m.Type == End {
			if m.DX != 0 || m.DY != 0 {
				esc(xxxJump, m.DX, m.DY)
			}
			break
		}
		switch m.Type {
		case Normal:
			out = append(out, byte(int8(m.DX)), byte(int8(-m.DY)))
			records++
		case Jump:
			esc(xxxJump, m.DX, m.DY)
		case Trim:
			if m.DX != 0 || m.DY != 0 {
				esc(xxxJump, m.DX, m.DY)
			}
			esc(xxxTrim, 0, 0)
		case ColorChange:
			esc(xxxColor, m.DX, m.DY)
		}
	}
	esc(xxxEnd, 0, 0)

	n := d.blockCount()
	le := binary.LittleEndian
	le.PutUint32(out[xxxCountAt:], uint32(records))
	le.PutUint16(out[xxxColorsAt:], uint16(n))
	le.PutUint32(out[xxxTableAt:], uint32(len(out)))
	out = append(out, 0, 0)
	for i := range n {
		c := d.threadColor(i)
		out = append(out, 0, c.R, c.G, c.B)
	}
	return out, notes
}

// DecodeXXX reads a Singer XXX file.
func DecodeXXX(b []byte) (Design, error) {
	if len(b) < xxxHeaderSize {
		return Design{}, ErrTruncated
	}
	le := binary.LittleEndian
	n := int(le.Uint16(b[xxxColorsAt:]))
	table := int(le.Uint32(b[xxxTableAt:]))
	if table < xxxHeaderSize || table > len(b) {
		return Design{}, ErrTruncated
	}

	var a absolute
	r := &reader{b: b[:table], off: xxxHeaderSize}
	for !r.done() {
		x := r.u8()
		if x != xxxEscape {
			a.add(int(int8(x)), -int(int8(r.u8())), Normal)
			continue
		}
		cmd := r.u8()
		dx, dy := int(int8(r.u8())), -int(int8(r.u8()))
		if r.err != nil {
			return Design{}, r.err
		}
		if cmd == xxxEnd {
			break
		}
		switch cmd {
		case xxxColor:
			a.add(dx, dy, ColorChange)
		case xxxTrim:
			a.add(dx, dy, Trim)
		default:
			a.add(dx, dy, Jump)
		}
	}
	if r.err != nil {
		return Design{}, r.err
	}

	t := &reader{b: b, off: table + 2}
	for range n {
		c := t.take(4)
		if t.err != nil {
			return Design{}, t.err
		}
		a.d.Colors = append(a.d.Colors, thread.RGB(c[1], c[2], c[3]))
	}
	return a.finish(), nil
}

package format

import (
	"encoding/binary"

	"github.com/chazu/bobbin/pkg/thread"
)

// Husqvarna Viking HUS. The header points at three sections holding the
// command bytes, X displacements and Y displacements. Sections are
// written with the stored (uncompressed) method marker.
const (
	husMagic      = 0x00C8AF5B
	husHeaderSize = 42
	husMax        = 127
	husStored     = 0x00

	husNormal = 0x80
	husJump   = 0x81
	husColor  = 0x84
	husTrim   = 0x88
	husEnd    = 0x90
)

var husPalette = []thread.Color{
	thread.RGB(0, 0, 0), thread.RGB(0, 0, 255), thread.RGB(0, 255, 0), thread.RGB(255, 0, 0),
	thread.RGB(255, 0, 255), thread.RGB(255, 255, 0), thread.RGB(127, 127, 127), thread.RGB(51, 154, 255),
	thread.RGB(51, 204, 102), thread.RGB(255, 127, 0), thread.RGB(255, 160, 180), thread.RGB(153, 75, 0),
	thread.RGB(255, 255, 255), thread.RGB(0, 0, 127), thread.RGB(0, 127, 0), thread.RGB(127, 0, 0),
	thread.RGB(255, 127, 127), thread.RGB(127, 0, 127), thread.RGB(255, 127, 255), thread.RGB(200, 200, 0),
	thread.RGB(255, 255, 153), thread.RGB(60, 60, 60), thread.RGB(192, 192, 192), thread.RGB(255, 102, 0),
	thread.RGB(255, 204, 102), thread.RGB(255, 102, 204), thread.RGB(255, 204, 255), thread.RGB(115, 40, 0),
	thread.RGB(175, 90, 10),
}

var husCommands = map[StitchType]byte{
	Normal:      husNormal,
	Jump:        husJump,
	Trim:        husTrim,
	ColorChange: husColor,
	End:         husEnd,
}

// EncodeHUS writes a Husqvarna Viking HUS file.
func EncodeHUS(d Design) ([]byte, []Note) {
	moves, notes := relative(d, husMax, "hus")
	var cmds, xs, ys []byte
	for _, m := range moves {
		cmds = append(cmds, husCommands[m.Type])
		xs = append(xs, byte(int8(m.DX)))
		ys = append(ys, byte(int8(-m.DY)))
		if m.Type == End {
			break
		}
	}
	if len(cmds) == 0 || cmds[len(cmds)-1] != husEnd {
		cmds, xs, ys = append(cmds, husEnd), append(xs, 0), append(ys, 0)
	}

	n := d.blockCount()
	le := binary.LittleEndian
	out := le.AppendUint32(nil, husMagic)
	out = le.AppendUint32(out, uint32(len(cmds)))
	out = le.AppendUint32(out, uint32(n))
	ext := d.Extents()
	for _, v := range []float64{ext.MaxX, ext.MaxY, -ext.MinX, -ext.MinY} {
		out = le.AppendUint16(out, uint16(clamp16(toUnit(v))))
	}
	sections := husHeaderSize + 2*n
	out = le.AppendUint32(out, uint32(sections))
	out = le.AppendUint32(out, uint32(sections+5+len(cmds)))
	out = le.AppendUint32(out, uint32(sections+10+len(cmds)+len(xs)))
	name := []byte(truncate(d.Name, 8))
	out = append(out, name...)
	out = append(out, make([]byte, 8-len(name))...)
	out = le.AppendUint16(out, 0)
	for i := range n {
		out = le.AppendUint16(out, uint16(thread.NearestIndex(d.threadColor(i), husPalette)))
	}
	for _, s := range [][]byte{cmds, xs, ys} {
		out = append(out, husStored)
		out = le.AppendUint32(out, uint32(len(s)))
		out = append(out, s...)
	}
	return out, notes
}

// DecodeHUS reads a HUS file with stored sections.
func DecodeHUS(b []byte) (Design, error) {
	r := &reader{b: b}
	if r.u32le() != husMagic {
		if r.err != nil {
			return Design{}, r.err
		}
		return Design{}, ErrBadMagic
	}
	count := int(r.u32le())
	n := int(r.u32le())
	r.take(8)
	offs := [3]int{int(r.u32le()), int(r.u32le()), int(r.u32le())}
	name := r.take(8)
	r.take(2)
	var a absolute
	a.d.Name = string(trimZero(name))
	for range n {
		k := int(r.u16le())
		c := thread.Black
		if k < len(husPalette) {
			c = husPalette[k]
		}
		a.d.Colors = append(a.d.Colors, c)
	}
	if r.err != nil {
		return Design{}, r.err
	}
	var sec [3][]byte
	for i, off := range offs {
		sr := &reader{b: b, off: off}
		if sr.u8() != husStored {
			return Design{}, ErrBadMagic
		}
		sec[i] = sr.take(int(sr.u32le()))
		if sr.err != nil {
			return Design{}, sr.err
		}
		if len(sec[i]) < count {
			return Design{}, ErrTruncated
		}
	}
	for i := range count {
		dx, dy := int(int8(sec[1][i])), -int(int8(sec[2][i]))
		switch sec[0][i] {
		case husJump:
			a.add(dx, dy, Jump)
		case husTrim:
			a.add(dx, dy, Trim)
		case husColor:
			a.add(dx, dy, ColorChange)
		case husEnd:
			a.add(dx, dy, End)
			return a.d, nil
		default:
			a.add(dx, dy, Normal)
		}
	}
	return a.finish(), nil
}

func trimZero(b []byte) []byte {
	for i, c := range b {
		if c == 0 {
			return b[:i]
		}
	}
	return b
}

package format

import (
	"bytes"
	"fmt"

	"github.com/chazu/bobbin/pkg/thread"
)

// Brother PEC. The block is shared by standalone .pec files and the tail
// of every PES file: a label, a color index table padded to a fixed
// offset, then 7 or 12 bit displacements.
const (
	pecMagic      = "#PEC0001"
	pecStitchOff  = 463
	pecMax        = 2047
	pecShortLimit = 64
	pecBlack      = 20

	pecLong  = 0x80
	pecJump  = 0x10
	pecTrim  = 0x20
	pecEnd   = 0xFF
	pecColor = 0xFE
)

// pecPalette is the Brother thread table. Index 0 is unused.
var pecPalette = []thread.Color{
	{},
	thread.RGB(14, 31, 124), thread.RGB(10, 85, 163), thread.RGB(48, 135, 119), thread.RGB(75, 107, 175),
	thread.RGB(237, 23, 31), thread.RGB(209, 92, 0), thread.RGB(145, 54, 151), thread.RGB(228, 154, 203),
	thread.RGB(145, 95, 172), thread.RGB(158, 214, 125), thread.RGB(232, 169, 0), thread.RGB(254, 186, 53),
	thread.RGB(255, 255, 0), thread.RGB(112, 188, 31), thread.RGB(186, 152, 0), thread.RGB(168, 168, 168),
	thread.RGB(125, 111, 0), thread.RGB(255, 255, 179), thread.RGB(79, 85, 86), thread.RGB(0, 0, 0),
	thread.RGB(11, 61, 145), thread.RGB(119, 1, 118), thread.RGB(41, 49, 51), thread.RGB(42, 19, 1),
	thread.RGB(246, 74, 138), thread.RGB(178, 118, 36), thread.RGB(252, 187, 197), thread.RGB(254, 55, 15),
	thread.RGB(240, 240, 240), thread.RGB(106, 28, 138), thread.RGB(168, 221, 196), thread.RGB(37, 132, 187),
	thread.RGB(254, 179, 67), thread.RGB(255, 243, 107), thread.RGB(208, 166, 96), thread.RGB(209, 84, 0),
	thread.RGB(102, 186, 73), thread.RGB(19, 74, 70), thread.RGB(135, 135, 135), thread.RGB(216, 204, 198),
	thread.RGB(67, 86, 7), thread.RGB(253, 217, 222), thread.RGB(249, 147, 188), thread.RGB(0, 56, 34),
	thread.RGB(178, 175, 212), thread.RGB(104, 106, 176), thread.RGB(239, 227, 185), thread.RGB(247, 56, 102),
	thread.RGB(181, 76, 100), thread.RGB(19, 43, 26), thread.RGB(199, 1, 86), thread.RGB(254, 158, 50),
	thread.RGB(168, 222, 235), thread.RGB(0, 103, 62), thread.RGB(78, 41, 144), thread.RGB(47, 126, 32),
	thread.RGB(255, 204, 204), thread.RGB(255, 217, 17), thread.RGB(9, 91, 166), thread.RGB(240, 249, 112),
	thread.RGB(227, 243, 91), thread.RGB(255, 153, 0), thread.RGB(255, 240, 141), thread.RGB(255, 200, 200),
}

// pecIndex maps a color to the nearest Brother palette index, 1..64.
func pecIndex(c thread.Color) int {
	return thread.NearestIndex(c, pecPalette[1:]) + 1
}

// pecColors returns the palette index of every color block, capped at the
// 256 blocks the count byte can describe.
func pecColors(d Design) ([]byte, []Note) {
	n := d.ColorChangeCount() + 1
	var notes []Note
	if n > 256 {
		notes = append(notes, warn("too-many-colors", "pec: %d color blocks, only 256 are listed", n))
		n = 256
	}
	idx := make([]byte, n)
	for i := range idx {
		idx[i] = pecBlack
		if i < len(d.Colors) {
			idx[i] = byte(pecIndex(d.Colors[i]))
		}
	}
	return idx, notes
}

// EncodePEC writes a standalone PEC file: the magic followed by the block.
func EncodePEC(d Design) ([]byte, []Note) {
	block, notes := pecBlock(d)
	return append([]byte(pecMagic), block...), notes
}

func pecBlock(d Design) ([]byte, []Note) {
	idx, notes := pecColors(d)
	moves, split := relative(d, pecMax, "pec")
	notes = append(notes, split...)

	var b bytes.Buffer
	fmt.Fprintf(&b, "LA:%-16s\r", truncate(d.Name, 16))
	b.Write(bytes.Repeat([]byte{' '}, 12))
	b.WriteByte(byte(len(idx) - 1))
	b.Write(idx)
	for b.Len() < pecStitchOff {
		b.WriteByte(0x20)
	}

	toggle := byte(2)
	ended := false
	for _, m := range moves {
		switch m.Type {
		case Normal:
			pecAxis(&b, m.DX, 0, false)
			pecAxis(&b, m.DY, 0, false)
		case Jump:
			pecMove(&b, m.DX, m.DY, pecJump)
		case Trim:
			pecMove(&b, m.DX, m.DY, pecTrim)
		case ColorChange:
			if m.DX != 0 || m.DY != 0 {
				pecMove(&b, m.DX, m.DY, pecJump)
			}
			b.Write([]byte{pecColor, 0xB0, toggle})
			toggle = 3 - toggle
		case End:
			if m.DX != 0 || m.DY != 0 {
				pecMove(&b, m.DX, m.DY, pecJump)
			}
			ended = true
		}
		if ended {
			break
		}
	}
	b.WriteByte(pecEnd)
	return b.Bytes(), notes
}

func pecMove(b *bytes.Buffer, dx, dy int, flag byte) {
	pecAxis(b, dx, flag, true)
	pecAxis(b, dy, flag, true)
}

// pecAxis writes one coordinate: 7 bit two's complement when short, else
// 12 bit with the command flag in the high byte.
func pecAxis(b *bytes.Buffer, v int, flag byte, long bool) {
	if !long && v > -pecShortLimit && v < pecShortLimit {
		b.WriteByte(byte(v) & 0x7F)
		return
	}
	u := uint16(clamp(v, -pecMax-1, pecMax)) & 0x0FFF
	b.WriteByte(pecLong | flag | byte(u>>8))
	b.WriteByte(byte(u))
}

// DecodePEC reads a standalone PEC file.
func DecodePEC(b []byte) (Design, error) {
	if !bytes.HasPrefix(b, []byte(pecMagic)) {
		return Design{}, ErrBadMagic
	}
	return decodePECBlock(b[len(pecMagic):])
}

func decodePECBlock(b []byte) (Design, error) {
	if len(b) < pecStitchOff {
		return Design{}, ErrTruncated
	}
	if !bytes.HasPrefix(b, []byte("LA:")) {
		return Design{}, ErrBadMagic
	}
	var a absolute
	a.d.Name = string(bytes.TrimRight(b[3:19], " "))
	n := int(b[32]) + 1
	for _, i := range b[33 : 33+n] {
		c := thread.Black
		if int(i) > 0 && int(i) < len(pecPalette) {
			c = pecPalette[i]
		}
		a.d.Colors = append(a.d.Colors, c)
	}

	r := &reader{b: b, off: pecStitchOff}
	for !r.done() {
		c := r.u8()
		if c == pecEnd {
			break
		}
		if c == pecColor {
			r.take(2)
			a.add(0, 0, ColorChange)
			continue
		}
		dx, fx := pecRead(r, c)
		dy, fy := pecRead(r, r.u8())
		if r.err != nil {
			return Design{}, r.err
		}
		switch f := fx | fy; {
		case f&pecTrim != 0:
			a.add(dx, dy, Trim)
		case f&pecJump != 0:
			a.add(dx, dy, Jump)
		default:
			a.add(dx, dy, Normal)
		}
	}
	if r.err != nil {
		return Design{}, r.err
	}
	return a.finish(), nil
}

func pecRead(r *reader, c byte) (int, byte) {
	if c&pecLong == 0 {
		v := int(c)
		if v >= 0x40 {
			v -= 0x80
		}
		return v, 0
	}
	v := int(c&0x0F)<<8 | int(r.u8())
	if v >= 0x800 {
		v -= 0x1000
	}
	return v, c & (pecJump | pecTrim)
}

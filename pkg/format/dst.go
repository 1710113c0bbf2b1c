package format

import (
	"bytes"
	"fmt"
)

// Tajima DST: a 512 byte text header followed by 3 byte records that
// encode each axis displacement in balanced ternary.
const (
	dstHeaderSize = 512
	dstMax        = 121
)

// ternary digit bit positions, ordered by weight 1, 3, 9, 27, 81.
// Each entry is {byte, positive bit, negative bit}.
var (
	dstX = [5][3]byte{{0, 0x04, 0x08}, {1, 0x04, 0x08}, {0, 0x01, 0x02}, {1, 0x01, 0x02}, {2, 0x04, 0x08}}
	dstY = [5][3]byte{{0, 0x80, 0x40}, {1, 0x80, 0x40}, {0, 0x20, 0x10}, {1, 0x20, 0x10}, {2, 0x20, 0x10}}
)

var dstEnd = [3]byte{0x00, 0x00, 0xF3}

// EncodeDST writes a Tajima DST file. Displacements longer than 12.1 mm
// become jump chains; trims use the three-jump tie-off machines read as a
// thread cut.
func EncodeDST(d Design) ([]byte, []Note) {
	moves, notes := relative(d, dstMax, "dst")

	var body bytes.Buffer
	records := 0
	put := func(dx, dy int, flags byte) {
		r := dstRecord(dx, dy)
		r[2] |= flags
		body.Write(r[:])
		records++
	}
	ended := false
	for _, m := range moves {
		switch m.Type {
		case Normal:
			put(m.DX, m.DY, 0)
		case Jump:
			put(m.DX, m.DY, 0x80)
		case Trim:
			put(1, 1, 0x80)
			put(-2, -2, 0x80)
			put(1, 1, 0x80)
			put(m.DX, m.DY, 0x80)
		case ColorChange:
			put(m.DX, m.DY, 0xC0)
		case End:
			if m.DX != 0 || m.DY != 0 {
				put(m.DX, m.DY, 0x80)
			}
			body.Write(dstEnd[:])
			records++
			ended = true
		}
		if ended {
			break
		}
	}
	if !ended {
		body.Write(dstEnd[:])
		records++
	}

	ext := d.Extents()
	var h bytes.Buffer
	fmt.Fprintf(&h, "LA:%-16s\r", truncate(d.Name, 16))
	fmt.Fprintf(&h, "ST:%07d\r", records)
	fmt.Fprintf(&h, "CO:%03d\r", d.ColorChangeCount())
	fmt.Fprintf(&h, "+X:%05d\r", max(toUnit(ext.MaxX), 0))
	fmt.Fprintf(&h, "-X:%05d\r", max(-toUnit(ext.MinX), 0))
	fmt.Fprintf(&h, "+Y:%05d\r", max(toUnit(ext.MaxY), 0))
	fmt.Fprintf(&h, "-Y:%05d\r", max(-toUnit(ext.MinY), 0))
	h.WriteString("AX:+    0\r")
	h.WriteString("AY:+    0\r")
	h.WriteString("MX:+    0\r")
	h.WriteString("MY:+    0\r")
	h.WriteString("PD:******\r")
	hdr := h.Bytes()
	if len(hdr) > dstHeaderSize {
		hdr = hdr[:dstHeaderSize]
	}
	out := make([]byte, 0, dstHeaderSize+body.Len())
	out = append(out, hdr...)
	out = append(out, bytes.Repeat([]byte{0x20}, dstHeaderSize-len(hdr))...)
	out = append(out, body.Bytes()...)
	return out, notes
}

// dstRecord encodes one displacement of at most 121 units per axis.
func dstRecord(dx, dy int) [3]byte {
	r := [3]byte{0, 0, 0x03}
	ternary(r[:], clamp(dx, -dstMax, dstMax), dstX)
	ternary(r[:], clamp(dy, -dstMax, dstMax), dstY)
	return r
}

func ternary(r []byte, v int, bits [5][3]byte) {
	for i := range bits {
		switch rem := (v%3 + 3) % 3; rem {
		case 1:
			r[bits[i][0]] |= bits[i][1]
			v = (v - 1) / 3
		case 2:
			r[bits[i][0]] |= bits[i][2]
			v = (v + 1) / 3
		default:
			v /= 3
		}
	}
}

func unternary(r []byte, bits [5][3]byte) int {
	v, w := 0, 1
	for i := range bits {
		if r[bits[i][0]]&bits[i][1] != 0 {
			v += w
		}
		if r[bits[i][0]]&bits[i][2] != 0 {
			v -= w
		}
		w *= 3
	}
	return v
}

// DecodeDST reads a DST file. The three-jump tie-off followed by a jump
// decodes as a Trim at the jump's destination.
func DecodeDST(b []byte) (Design, error) {
	if len(b) < dstHeaderSize {
		return Design{}, ErrTruncated
	}
	if !bytes.HasPrefix(b, []byte("LA:")) {
		return Design{}, ErrBadMagic
	}
	var a absolute
	a.d.Name = string(bytes.TrimRight(b[3:19], " "))

	type rec struct {
		dx, dy int
		flags  byte
	}
	var recs []rec
	for off := dstHeaderSize; off+3 <= len(b); off += 3 {
		r := b[off : off+3]
		if r[0] == 0 && r[1] == 0 && r[2] == 0xF3 {
			break
		}
		recs = append(recs, rec{dx: unternary(r, dstX), dy: unternary(r, dstY), flags: r[2] & 0xC0})
	}
	isJump := func(i, dx, dy int) bool {
		return i < len(recs) && recs[i].flags == 0x80 && recs[i].dx == dx && recs[i].dy == dy
	}
	for i := 0; i < len(recs); i++ {
		r := recs[i]
		switch r.flags {
		case 0xC0:
			a.add(r.dx, r.dy, ColorChange)
		case 0x80:
			if isJump(i, 1, 1) && isJump(i+1, -2, -2) && isJump(i+2, 1, 1) && i+3 < len(recs) && recs[i+3].flags == 0x80 {
				a.add(recs[i+3].dx, recs[i+3].dy, Trim)
				i += 3
				continue
			}
			a.add(r.dx, r.dy, Jump)
		default:
			a.add(r.dx, r.dy, Normal)
		}
	}
	return a.finish(), nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

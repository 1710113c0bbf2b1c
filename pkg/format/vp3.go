package format

import (
	"encoding/binary"

	"github.com/chazu/bobbin/pkg/thread"
)

// Pfaff VP3, big endian. Each color block stores its absolute start and
// RGB thread, then byte displacements with 0x80 escapes for long moves
// and trims. A new block is the color change.
const (
	vp3Magic  = "%vsm%\x00"
	vp3Max    = 127
	vp3Escape = 0x80
	vp3Long   = 0x01
	vp3Trim   = 0x03
)

type vp3Block struct {
	x, y     int
	started  bool
	stitches []unit
}

// EncodeVP3 writes a Pfaff VP3 file.
func EncodeVP3(d Design) ([]byte, []Note) {
	var (
		blocks []vp3Block
		cur    vp3Block
	)
	for _, u := range d.Units() {
		if u.Type == End {
			break
		}
		if u.Type == ColorChange {
			// A change before any stitch still closes an empty first block.
			if !cur.started {
				cur = vp3Block{x: u.X, y: u.Y, started: true}
			}
			blocks = append(blocks, cur)
			cur = vp3Block{x: u.X, y: u.Y, started: true}
			continue
		}
		if !cur.started {
			cur = vp3Block{x: u.X, y: u.Y, started: true}
		}
		cur.stitches = append(cur.stitches, u)
	}
	if cur.started {
		blocks = append(blocks, cur)
	}

	be := binary.BigEndian
	out := []byte(vp3Magic)
	name := truncate(d.Name, 255)
	out = be.AppendUint16(out, uint16(len(name)))
	out = append(out, name...)
	ext := d.Extents()
	for _, v := range []float64{ext.MinX, ext.MinY, ext.MaxX, ext.MaxY} {
		out = be.AppendUint32(out, uint32(int32(toUnit(v))))
	}
	out = be.AppendUint16(out, uint16(len(blocks)))

	split := 0
	for i, blk := range blocks {
		data, n := vp3Data(blk)
		split += n
		c := d.threadColor(i)
		out = be.AppendUint32(out, uint32(int32(blk.x)))
		out = be.AppendUint32(out, uint32(int32(blk.y)))
		out = append(out, c.R, c.G, c.B)
		out = be.AppendUint32(out, uint32(len(data)))
		out = append(out, data...)
	}
	var notes []Note
	if split > 0 {
		notes = append(notes, warn("split-long-stitch",
			"vp3: %d stitches longer than %.1f mm were reached with a long move", split, fromUnit(vp3Max)))
	}
	return out, notes
}

func vp3Data(blk vp3Block) ([]byte, int) {
	var (
		out   []byte
		split int
	)
	x, y := blk.x, blk.y
	long := func(dx, dy int) {
		if dx == 0 && dy == 0 {
			return
		}
		out = append(out, vp3Escape, vp3Long)
		out = binary.BigEndian.AppendUint16(out, uint16(clamp16(dx)))
		out = binary.BigEndian.AppendUint16(out, uint16(clamp16(dy)))
	}
	for _, u := range blk.stitches {
		dx, dy := u.X-x, u.Y-y
		switch u.Type {
		case Normal:
			if n := max(ceilDiv(abs(dx), vp3Max), ceilDiv(abs(dy), vp3Max), 1); n > 1 {
				split++
				long(dx-dx/n, dy-dy/n)
				dx, dy = dx/n, dy/n
			}
			out = append(out, byte(int8(dx)), byte(int8(dy)))
		case Jump:
			long(dx, dy)
		case Trim:
			long(dx, dy)
			out = append(out, vp3Escape, vp3Trim)
		}
		x, y = u.X, u.Y
	}
	return out, split
}

// DecodeVP3 reads a VP3 file written by EncodeVP3.
func DecodeVP3(b []byte) (Design, error) {
	r := &reader{b: b}
	if string(r.take(len(vp3Magic))) != vp3Magic {
		if r.err != nil {
			return Design{}, r.err
		}
		return Design{}, ErrBadMagic
	}
	var a absolute
	a.d.Name = string(r.take(int(r.u16be())))
	r.take(16)
	n := int(r.u16be())
	for i := range n {
		a.x, a.y = int(int32(r.u32be())), int(int32(r.u32be()))
		rgb := r.take(3)
		data := r.take(int(r.u32be()))
		if r.err != nil {
			return Design{}, r.err
		}
		a.d.Colors = append(a.d.Colors, thread.RGB(rgb[0], rgb[1], rgb[2]))
		if i > 0 {
			a.add(0, 0, ColorChange)
		}
		br := &reader{b: data}
		for !br.done() {
			c := br.u8()
			if c != vp3Escape {
				a.add(int(int8(c)), int(int8(br.u8())), Normal)
				continue
			}
			switch br.u8() {
			case vp3Long:
				a.add(int(int16(br.u16be())), int(int16(br.u16be())), Jump)
			case vp3Trim:
				a.add(0, 0, Trim)
			}
		}
		if br.err != nil {
			return Design{}, br.err
		}
	}
	return a.finish(), nil
}

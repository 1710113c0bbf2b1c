package format

import (
	"encoding/binary"
	"math"
)

// Brother PES version 1: one embroidery object, one sewing segment, and
// the PEC block at the offset stored after the magic.
const pesMagic = "#PES0001"

// EncodePES writes a PES v1 file.
func EncodePES(d Design) ([]byte, []Note) {
	var notes []Note
	le := binary.LittleEndian
	out := []byte(pesMagic)
	out = le.AppendUint32(out, 0)
	out = le.AppendUint16(out, 1) // hoop
	out = le.AppendUint16(out, 1)
	out = le.AppendUint16(out, 1) // segments

	ext := d.Extents()
	box := []int16{
		clamp16(toUnit(ext.MinX)), clamp16(toUnit(ext.MinY)),
		clamp16(toUnit(ext.MaxX)), clamp16(toUnit(ext.MaxY)),
	}
	for range 2 {
		for _, v := range box {
			out = le.AppendUint16(out, uint16(v))
		}
	}
	for _, v := range []float32{1, 0, 0, 1, 0, 0} {
		out = le.AppendUint32(out, math.Float32bits(v))
	}

	idx, cn := pecColors(d)
	notes = append(notes, cn...)
	out = le.AppendUint16(out, uint16(len(idx)))
	for i, p := range idx {
		out = le.AppendUint16(out, uint16(i))
		out = le.AppendUint16(out, uint16(p))
	}

	var pts []unit
	for _, u := range d.Units() {
		if u.Type != End {
			pts = append(pts, u)
		}
	}
	if len(pts) > math.MaxUint16 {
		notes = append(notes, warn("segment-overflow",
			"pes: %d stitches, the sewing segment lists the first %d", len(pts), math.MaxUint16))
		pts = pts[:math.MaxUint16]
	}
	out = le.AppendUint16(out, uint16(len(pts)))
	for _, u := range pts {
		out = le.AppendUint16(out, uint16(clamp16(u.X)))
		out = le.AppendUint16(out, uint16(clamp16(u.Y)))
	}

	le.PutUint32(out[len(pesMagic):], uint32(len(out)))
	block, bn := pecBlock(d)
	notes = append(notes, bn...)
	return append(out, block...), notes
}

// DecodePES reads the PEC block a PES file points at.
func DecodePES(b []byte) (Design, error) {
	r := &reader{b: b}
	if string(r.take(len(pesMagic))) != pesMagic {
		if r.err != nil {
			return Design{}, r.err
		}
		return Design{}, ErrBadMagic
	}
	off := int(r.u32le())
	if r.err != nil {
		return Design{}, r.err
	}
	if off > len(b) {
		return Design{}, ErrTruncated
	}
	return decodePECBlock(b[off:])
}

package format

// Melco EXP: headerless signed byte pairs with Y pointing up. The file
// carries no colors; 0x80 starts a four byte command.
const (
	expMax    = 127
	expEscape = 0x80
	expColor  = 0x01
	expJump   = 0x04
	expTrim   = 0x80
)

// EncodeEXP writes a Melco EXP file.
func EncodeEXP(d Design) ([]byte, []Note) {
	moves, notes := relative(d, expMax, "exp")
	var out []byte
	jump := func(dx, dy int) {
		if dx != 0 || dy != 0 {
			out = append(out, expEscape, expJump, byte(int8(dx)), byte(int8(-dy)))
		}
	}
	for _, m := range moves {
		if m.Type == End {
			jump(m.DX, m.DY)
			break
		}
		switch m.Type {
		case Normal:
			out = append(out, byte(int8(m.DX)), byte(int8(-m.DY)))
		case Jump:
			jump(m.DX, m.DY)
		case Trim:
			jump(m.DX, m.DY)
			out = append(out, expEscape, expTrim, 0x07, 0x00)
		case ColorChange:
			jump(m.DX, m.DY)
			out = append(out, expEscape, expColor, 0x00, 0x00)
		}
	}
	return out, notes
}

// DecodeEXP reads a Melco EXP file.
func DecodeEXP(b []byte) (Design, error) {
	var a absolute
	r := &reader{b: b}
	for !r.done() {
		x := r.u8()
		if x != expEscape {
			y := r.u8()
			a.add(int(int8(x)), -int(int8(y)), Normal)
			continue
		}
		cmd := r.u8()
		p := r.take(2)
		if r.err != nil {
			return Design{}, r.err
		}
		switch cmd {
		case expColor:
			a.add(0, 0, ColorChange)
		case expTrim:
			a.add(0, 0, Trim)
		default:
			a.add(int(int8(p[0])), -int(int8(p[1])), Jump)
		}
	}
	if r.err != nil {
		return Design{}, r.err
	}
	return a.finish(), nil
}

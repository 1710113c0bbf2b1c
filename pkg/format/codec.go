package format

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"go.uber.org/multierr"
)

var (
	ErrUnknownFormat = errors.New("unknown format")
	ErrNoDecoder     = errors.New("format has no decoder")
	ErrTruncated     = errors.New("truncated file")
	ErrBadMagic      = errors.New("bad magic")
)

// Note is an encoder remark about the output, such as a stitch that had
// to be split to fit the format's distance limit.
type Note struct {
	Severity string `json:"severity"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

func warn(code, msg string, args ...any) Note {
	return Note{Severity: "warning", Code: code, Message: fmt.Sprintf(msg, args...)}
}

// Codec binds a format name to its encoder and, when one exists, decoder.
type Codec struct {
	Name   string
	Ext    string
	Encode func(Design) ([]byte, []Note)
	Decode func([]byte) (Design, error)
}

var codecs = map[string]Codec{}

func register(c Codec) {
	codecs[c.Name] = c
}

func init() {
	register(Codec{Name: "dst", Ext: ".dst", Encode: EncodeDST, Decode: DecodeDST})
	register(Codec{Name: "pec", Ext: ".pec", Encode: EncodePEC, Decode: DecodePEC})
	register(Codec{Name: "pes", Ext: ".pes", Encode: EncodePES, Decode: DecodePES})
	register(Codec{Name: "jef", Ext: ".jef", Encode: EncodeJEF, Decode: DecodeJEF})
	register(Codec{Name: "exp", Ext: ".exp", Encode: EncodeEXP, Decode: DecodeEXP})
	register(Codec{Name: "vp3", Ext: ".vp3", Encode: EncodeVP3, Decode: DecodeVP3})
	register(Codec{Name: "hus", Ext: ".hus", Encode: EncodeHUS, Decode: DecodeHUS})
	register(Codec{Name: "xxx", Ext: ".xxx", Encode: EncodeXXX, Decode: DecodeXXX})
}

// Formats lists the registered format names in sorted order.
func Formats() []string {
	names := make([]string, 0, len(codecs))
	for n := range codecs {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Lookup finds a codec by name or file extension, case-insensitively.
func Lookup(name string) (Codec, error) {
	n := strings.TrimPrefix(strings.ToLower(name), ".")
	c, ok := codecs[n]
	if !ok {
		return Codec{}, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
	return c, nil
}

// Encode writes d in the named format.
func Encode(name string, d Design) ([]byte, []Note, error) {
	c, err := Lookup(name)
	if err != nil {
		return nil, nil, err
	}
	b, notes := c.Encode(d)
	return b, notes, nil
}

// Decode reads a file in the named format back into a Design.
func Decode(name string, b []byte) (Design, error) {
	c, err := Lookup(name)
	if err != nil {
		return Design{}, err
	}
	if c.Decode == nil {
		return Design{}, fmt.Errorf("%w: %s", ErrNoDecoder, c.Name)
	}
	d, err := c.Decode(b)
	if err != nil {
		return Design{}, fmt.Errorf("decode %s: %w", c.Name, err)
	}
	return d, nil
}

// Output is one encoded file from EncodeAll.
type Output struct {
	Format string
	Data   []byte
	Notes  []Note
}

// EncodeAll encodes d in every named format. Unknown names are collected
// into the returned error; the known formats are still encoded.
func EncodeAll(names []string, d Design) ([]Output, error) {
	var (
		out  []Output
		errs error
	)
	for _, n := range names {
		b, notes, err := Encode(n, d)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		out = append(out, Output{Format: strings.ToLower(n), Data: b, Notes: notes})
	}
	return out, errs
}

// move is one encoder step after limit splitting: a relative offset and
// the command it carries.
type move struct {
	DX, DY int
	Type   StitchType
}

// relative walks the design in 0.1 mm units, starting from the origin, and
// splits every displacement longer than limit on either axis into equal
// Jump steps followed by the original command. Split stitches are
// reported once per design.
func relative(d Design, limit int, format string) ([]move, []Note) {
	var (
		out   []move
		notes []Note
		px    int
		py    int
		split int
	)
	for _, u := range d.Units() {
		dx, dy := u.X-px, u.Y-py
		n := max(ceilDiv(abs(dx), limit), ceilDiv(abs(dy), limit), 1)
		if n > 1 {
			split++
			for i := 1; i < n; i++ {
				sx := dx*i/n - dx*(i-1)/n
				sy := dy*i/n - dy*(i-1)/n
				out = append(out, move{DX: sx, DY: sy, Type: Jump})
			}
			dx -= dx * (n - 1) / n
			dy -= dy * (n - 1) / n
		}
		out = append(out, move{DX: dx, DY: dy, Type: u.Type})
		px, py = u.X, u.Y
	}
	if split > 0 {
		notes = append(notes, warn("split-long-stitch",
			"%s: %d displacements longer than %.1f mm were split into jumps", format, split, fromUnit(limit)))
	}
	return out, notes
}

// absolute accumulates decoded moves back into a Design stream.
type absolute struct {
	x, y int
	d    Design
}

func (a *absolute) add(dx, dy int, t StitchType) {
	a.x += dx
	a.y += dy
	a.d.Stitches = append(a.d.Stitches, Stitch{X: fromUnit(a.x), Y: fromUnit(a.y), Type: t})
}

// finish appends End when the stream lacks one.
func (a *absolute) finish() Design {
	if n := len(a.d.Stitches); n == 0 || a.d.Stitches[n-1].Type != End {
		a.add(0, 0, End)
	}
	return a.d
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

func clamp16(v int) int16 {
	return int16(clamp(v, math.MinInt16, math.MaxInt16))
}

// reader is a bounds-checked cursor over a file.
type reader struct {
	b   []byte
	off int
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.b) {
		r.err = ErrTruncated
		return nil
	}
	s := r.b[r.off : r.off+n]
	r.off += n
	return s
}

func (r *reader) u8() byte {
	if s := r.take(1); s != nil {
		return s[0]
	}
	return 0
}

func (r *reader) u16le() uint16 {
	if s := r.take(2); s != nil {
		return binary.LittleEndian.Uint16(s)
	}
	return 0
}

func (r *reader) u32le() uint32 {
	if s := r.take(4); s != nil {
		return binary.LittleEndian.Uint32(s)
	}
	return 0
}

func (r *reader) u16be() uint16 {
	if s := r.take(2); s != nil {
		return binary.BigEndian.Uint16(s)
	}
	return 0
}

func (r *reader) u32be() uint32 {
	if s := r.take(4); s != nil {
		return binary.BigEndian.Uint32(s)
	}
	return 0
}

func (r *reader) done() bool {
	return r.err != nil || r.off >= len(r.b)
}

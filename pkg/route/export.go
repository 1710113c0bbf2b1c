package route

import (
	"math"

	"go.uber.org/zap"

	"github.com/chazu/bobbin/pkg/format"
	"github.com/chazu/bobbin/pkg/geom"
	"github.com/chazu/bobbin/pkg/scene"
	"github.com/chazu/bobbin/pkg/stitch"
	"github.com/chazu/bobbin/pkg/thread"
)

const (
	// TieLengthMm is the length of one tie stitch.
	TieLengthMm = 0.5
	// tieStitches is the number of back-and-forth stitches in a tie.
	tieStitches = 4
)

// Router lowers scenes under one set of options.
type Router struct {
	opts   Options
	length float64
	log    *zap.Logger
}

// New returns a router. stitchLength is the default running length in
// millimeters; non-positive means the stitch package default.
func New(opts Options, stitchLength float64, log *zap.Logger) *Router {
	if stitchLength <= 0 {
		stitchLength = stitch.DefaultStitchLength
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{opts: opts, length: stitchLength, log: log}
}

// Options returns the router's global options.
func (r *Router) Options() Options { return r.opts }

// BlockRoute records how one block was sewn.
type BlockRoute struct {
	ID       scene.BlockID `json:"id"`
	NodeID   scene.NodeID  `json:"nodeId"`
	Name     string        `json:"name"`
	Color    thread.Color  `json:"color"`
	Reversed bool          `json:"reversed"`
	Rotation int           `json:"rotation"`
	Entry    geom.Point    `json:"entry"`
	Exit     geom.Point    `json:"exit"`
	Stitches int           `json:"stitches"`
	TieIn    bool          `json:"tieIn"`
	TieOut   bool          `json:"tieOut"`
	Trimmed  bool          `json:"trimmedBefore"`
}

// Report describes a routed design.
type Report struct {
	Blocks  []BlockRoute    `json:"blocks"`
	Skipped []scene.BlockID `json:"skipped"`
}

// Export routes every visible block of s into one stitch stream.
func Export(s *scene.Scene, opts Options, stitchLength float64) (format.Design, Report) {
	return New(opts, stitchLength, nil).Export(s)
}

// Export routes every visible block of s into one stitch stream. An empty
// or fully hidden scene yields a design without stitches.
func (r *Router) Export(s *scene.Scene) (format.Design, Report) {
	blocks, skipped := r.Build(s)
	placed := r.Order(blocks)
	d, rep := r.assemble(placed)
	rep.Skipped = skipped
	r.log.Debug("routed design",
		zap.Int("blocks", len(placed)),
		zap.Int("skipped", len(skipped)),
		zap.Int("stitches", len(d.Stitches)))
	return d, rep
}

// emitter accumulates the stitch stream.
type emitter struct {
	r      *Router
	out    []format.Stitch
	colors []thread.Color
	pos    geom.Point
	run    float64 // sewn length since the last trim
}

func (e *emitter) add(p geom.Point, t format.StitchType) {
	if t == format.Normal && len(e.out) > 0 {
		e.run += e.pos.Dist(p)
	}
	if t == format.Trim {
		e.run = 0
	}
	e.out = append(e.out, format.Stitch{X: p.X, Y: p.Y, Type: t})
	e.pos = p
}

// jumpTo moves to p in jumps no longer than the maximum jump.
func (e *emitter) jumpTo(p geom.Point) {
	d := e.pos.Dist(p)
	n := int(math.Ceil(d / e.r.opts.MaxJumpMm))
	from := e.pos
	for k := 1; k <= n; k++ {
		e.add(from.Lerp(p, float64(k)/float64(n)), format.Jump)
	}
}

// runTo sews a running stitch to p.
func (e *emitter) runTo(p geom.Point) {
	d := e.pos.Dist(p)
	n := int(math.Ceil(d / e.r.length))
	from := e.pos
	for k := 1; k < n; k++ {
		e.add(from.Lerp(p, float64(k)/float64(n)), format.Normal)
	}
}

// tie sews short back-and-forth stitches at p along dir.
func (e *emitter) tie(p, dir geom.Point) {
	u := dir.Normalize()
	if u.Len() == 0 {
		u = geom.Pt(1, 0)
	}
	q := p.Add(u.Scale(TieLengthMm))
	for k := 0; k < tieStitches; k++ {
		if k%2 == 0 {
			e.add(q, format.Normal)
		} else {
			e.add(p, format.Normal)
		}
	}
}

// body sews a block's stitches after its entry.
func (e *emitter) body(sts []stitch.Stitch) {
	for i, s := range sts {
		if i > 0 {
			if s.Jump {
				e.jumpTo(s.Pos)
			} else {
				e.add(s.Pos, format.Normal)
			}
		}
		if s.Trim && i < len(sts)-1 {
			e.add(s.Pos, format.Trim)
		}
	}
}

// transition is the machine commands between two placed blocks.
type transition struct {
	colorChange bool
	trim        bool
}

func (r *Router) transition(prev, next placement, run float64) transition {
	var t transition
	t.colorChange = r.colorChange(prev.block, next.block)
	d := prev.cand.exit.Dist(next.cand.entry)
	t.trim = t.colorChange || (d > r.opts.TrimThresholdMm && run > r.opts.MinStitchRunBeforeTrimMm)
	if t.colorChange {
		return t
	}
	after, before := prev.block.Commands.TrimAfter, next.block.Commands.TrimBefore
	switch {
	case isTrue(after) || isTrue(before):
		t.trim = true
	case isFalse(after) || isFalse(before):
		t.trim = false
	}
	return t
}

// tieIn reports whether a block starts with a tie. boundary is true at
// the design start and after a color change.
func tieIn(b *Block, boundary bool) bool {
	if b.Commands.TieIn != nil {
		return *b.Commands.TieIn
	}
	return tieWanted(b.Routing.TieMode, boundary)
}

func tieOut(b *Block, boundary bool) bool {
	if b.Commands.TieOut != nil {
		return *b.Commands.TieOut
	}
	return tieWanted(b.Routing.TieMode, boundary)
}

func tieWanted(m scene.TieMode, boundary bool) bool {
	switch m {
	case scene.TieShapeStartEnd:
		return true
	case scene.TieColorChange:
		return boundary
	}
	return false
}

// assemble lowers placed blocks into the stitch stream.
func (r *Router) assemble(placed []placement) (format.Design, Report) {
	d := format.Design{Name: "design"}
	rep := Report{Blocks: make([]BlockRoute, 0, len(placed))}
	if len(placed) == 0 {
		return d, rep
	}
	e := &emitter{r: r}
	var prevSts []stitch.Stitch
	for i, p := range placed {
		sts := orient(p.block, p.cand)
		entry := sts[0].Pos
		br := BlockRoute{
			ID:       p.block.ID,
			NodeID:   p.block.NodeID,
			Name:     p.block.Name,
			Color:    p.block.Color,
			Reversed: p.cand.reversed,
			Rotation: p.cand.rotation,
			Entry:    entry,
			Exit:     sts[len(sts)-1].Pos,
		}
		start := len(e.out)
		boundary := true
		if i == 0 {
			e.colors = append(e.colors, p.block.Color)
			e.add(entry, format.Normal)
		} else {
			prev := placed[i-1]
			t := r.transition(prev, p, e.run)
			boundary = t.colorChange
			if tieOut(prev.block, t.colorChange) {
				e.tie(e.pos, backward(prevSts))
				rep.Blocks[i-1].TieOut = true
			}
			r.travelTo(e, entry, p.block, t)
			br.Trimmed = t.trim
		}
		if tieIn(p.block, boundary) {
			e.tie(entry, forward(sts))
			br.TieIn = true
		}
		e.body(sts)
		br.Stitches = len(e.out) - start
		rep.Blocks = append(rep.Blocks, br)
		prevSts = sts
	}
	last := placed[len(placed)-1]
	if tieOut(last.block, true) {
		e.tie(e.pos, backward(prevSts))
		rep.Blocks[len(rep.Blocks)-1].TieOut = true
	}
	e.add(e.pos, format.End)

	d.Stitches = e.out
	d.Colors = e.colors
	return d, rep
}

// travelTo emits the commands that carry the needle from the previous
// block's exit to entry, then the entry stitch itself.
func (r *Router) travelTo(e *emitter, entry geom.Point, next *Block, t transition) {
	exit := e.pos
	if t.trim {
		e.add(exit, format.Trim)
	}
	if t.colorChange {
		e.add(exit, format.ColorChange)
		e.colors = append(e.colors, next.Color)
	}
	d := exit.Dist(entry)
	switch {
	case !t.trim && !t.colorChange && d <= geom.Epsilon:
		return
	case !t.trim && d <= r.length:
	case !t.trim && r.opts.AllowUnderpath && d <= r.opts.TrimThresholdMm:
		e.runTo(entry)
	default:
		e.jumpTo(entry)
	}
	e.add(entry, format.Normal)
}

// forward is the direction a run leaves its first stitch.
func forward(sts []stitch.Stitch) geom.Point {
	for _, s := range sts[1:] {
		if v := s.Pos.Sub(sts[0].Pos); v.Len() > geom.Epsilon {
			return v
		}
	}
	return geom.Point{}
}

// backward points from a run's last stitch back along it.
func backward(sts []stitch.Stitch) geom.Point {
	n := len(sts)
	for i := n - 2; i >= 0; i-- {
		if v := sts[i].Pos.Sub(sts[n-1].Pos); v.Len() > geom.Epsilon {
			return v
		}
	}
	return geom.Point{}
}

func isTrue(b *bool) bool  { return b != nil && *b }
func isFalse(b *bool) bool { return b != nil && !*b }

package route

import (
	"math"

	"go.uber.org/zap"

	"github.com/chazu/bobbin/pkg/geom"
	"github.com/chazu/bobbin/pkg/scene"
	"github.com/chazu/bobbin/pkg/stitch"
	"github.com/chazu/bobbin/pkg/thread"
)

// closeTolerance is how near a run's last stitch must come to its first for
// the run to count as a loop that may start anywhere.
const closeTolerance = 0.05

// Block is a stitch block lowered to needle positions, in its authored
// direction and with its overrides resolved.
type Block struct {
	ID       scene.BlockID          `json:"id"`
	NodeID   scene.NodeID           `json:"nodeId"`
	Name     string                 `json:"name"`
	Track    int                    `json:"track"`
	Layer    scene.NodeID           `json:"layer"`
	Color    thread.Color           `json:"color"`
	Params   stitch.Params          `json:"params"`
	Width    float64                `json:"width"`
	Length   float64                `json:"outlineLength"`
	Rings    [][]geom.Point         `json:"-"`
	Stitches []stitch.Stitch        `json:"-"`
	Routing  Effective              `json:"routing"`
	Commands scene.CommandOverrides `json:"commands"`
}

// Loop reports whether the block's run returns to its start without any
// jump or trim, so it may be entered at any of its stitches.
func (b *Block) Loop() bool {
	n := len(b.Stitches)
	if n < 4 {
		return false
	}
	for _, s := range b.Stitches {
		if s.Jump || s.Trim {
			return false
		}
	}
	return b.Stitches[0].Pos.Near(b.Stitches[n-1].Pos, closeTolerance)
}

// Build generates every visible block of s in sequence order. Hidden
// blocks and blocks that produce no stitches are returned as skipped.
func (r *Router) Build(s *scene.Scene) (blocks []*Block, skipped []scene.BlockID) {
	for i, sb := range s.StitchBlocks() {
		b := r.buildBlock(s, sb, i)
		if b == nil {
			skipped = append(skipped, sb.ID)
			continue
		}
		blocks = append(blocks, b)
	}
	return blocks, skipped
}

func (r *Router) buildBlock(s *scene.Scene, sb scene.StitchBlock, track int) *Block {
	id := sb.SourceNodeID
	if s.Hidden(id) {
		r.log.Debug("skipping hidden block", zap.Int64("block", int64(sb.ID)))
		return nil
	}
	n, ok := s.GetNode(id)
	if !ok {
		return nil
	}
	k, ok := n.Kind.(scene.ShapeKind)
	if !ok {
		return nil
	}
	sub, ok := s.RepairedOutline(id)
	if !ok || len(sub) == 0 {
		r.log.Debug("skipping block without outline", zap.Int64("block", int64(sb.ID)), zap.String("name", n.Name))
		return nil
	}
	width := s.StrokeWidth(id)
	sts := stitch.Generate(k.Stitch, sub, width, r.length)
	sts = dropNaN(sts)
	if len(sts) == 0 {
		r.log.Debug("block produced no stitches", zap.Int64("block", int64(sb.ID)), zap.String("name", n.Name))
		return nil
	}

	color := thread.Black
	if sb.Color != nil {
		color = *sb.Color
	}
	var rings [][]geom.Point
	var outline float64
	for _, sp := range sub {
		outline += geom.PolylineLength(sp.Points)
		if sp.Closed {
			rings = append(rings, sp.Points)
		}
	}
	b := &Block{
		ID:       sb.ID,
		NodeID:   id,
		Name:     n.Name,
		Track:    track,
		Layer:    s.LayerOf(id),
		Color:    color,
		Params:   k.Stitch,
		Width:    width,
		Length:   outline,
		Rings:    rings,
		Stitches: sts,
		Routing:  Resolve(sb.RoutingOverrides, r.opts),
		Commands: sb.CommandOverrides,
	}
	r.log.Debug("built block",
		zap.Int64("block", int64(b.ID)),
		zap.String("name", b.Name),
		zap.String("type", string(k.Stitch.Type)),
		zap.Int("stitches", len(sts)))
	return b
}

func dropNaN(sts []stitch.Stitch) []stitch.Stitch {
	out := sts[:0]
	for _, s := range sts {
		if math.IsNaN(s.Pos.X) || math.IsNaN(s.Pos.Y) || math.IsInf(s.Pos.X, 0) || math.IsInf(s.Pos.Y, 0) {
			continue
		}
		out = append(out, s)
	}
	return out
}

package route

import (
	"github.com/chazu/bobbin/pkg/geom"
	"github.com/chazu/bobbin/pkg/scene"
	"github.com/chazu/bobbin/pkg/stitch"
)

// maxRotations caps the start points tried on a closed loop.
const maxRotations = 32

// candidate is one way to sew a block: forward or reversed, starting at
// stitch rotation of a loop.
type candidate struct {
	reversed bool
	rotation int
	entry    geom.Point
	exit     geom.Point
}

// candidates lists the orientations a block's entry/exit mode allows. The
// authored orientation always comes first.
func candidates(b *Block) []candidate {
	sts := b.Stitches
	first, last := sts[0].Pos, sts[len(sts)-1].Pos
	fwd := candidate{entry: first, exit: last}
	rev := candidate{reversed: true, entry: last, exit: first}

	switch b.Routing.EntryExitMode {
	case scene.EntryExitPreserveShapeStart:
		return []candidate{fwd}
	case scene.EntryExitNearestPoint:
		if b.Loop() {
			return loopCandidates(b)
		}
	}
	if b.Routing.AllowReverse {
		return []candidate{fwd, rev}
	}
	return []candidate{fwd}
}

func loopCandidates(b *Block) []candidate {
	n := len(b.Stitches) - 1 // last stitch repeats the first
	step := max(1, (n+maxRotations-1)/maxRotations)
	var out []candidate
	for r := 0; r < n; r += step {
		p := b.Stitches[r].Pos
		out = append(out, candidate{rotation: r, entry: p, exit: p})
		if b.Routing.AllowReverse {
			out = append(out, candidate{reversed: true, rotation: r, entry: p, exit: p})
		}
	}
	return out
}

// orient returns the block's stitches as sewn under c.
func orient(b *Block, c candidate) []stitch.Stitch {
	sts := b.Stitches
	if c.rotation > 0 {
		n := len(sts) - 1
		rot := make([]stitch.Stitch, 0, len(sts))
		rot = append(rot, sts[c.rotation:n]...)
		rot = append(rot, sts[:c.rotation+1]...)
		sts = rot
	}
	if c.reversed {
		sts = reverse(sts)
	}
	return sts
}

// reverse flips a run. A jump into stitch i becomes a jump out of it, and
// a trim after stitch i becomes a trim before it.
func reverse(sts []stitch.Stitch) []stitch.Stitch {
	n := len(sts)
	out := make([]stitch.Stitch, n)
	for i, s := range sts {
		out[n-1-i].Pos = s.Pos
	}
	for i, s := range sts {
		if s.Jump && i > 0 {
			out[n-i].Jump = true
		}
		if s.Trim && i < n-1 {
			out[n-2-i].Trim = true
		}
	}
	return out
}

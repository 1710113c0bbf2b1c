package scene

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"

	"github.com/chazu/bobbin/pkg/geom"
	"github.com/chazu/bobbin/pkg/kernel"
	"github.com/chazu/bobbin/pkg/stitch"
)

// Severity classifies a diagnostic.
type Severity int

const (
	SeverityError   Severity = iota // breaks stitching; repaired before export
	SeverityWarning                 // may degrade quality
	SeverityInfo                    // observational
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Diagnostic codes.
const (
	CodeEmptyGeometry       = "empty_geometry"
	CodeInvalidGeometry     = "invalid_geometry"
	CodeDegenerateEdge      = "degenerate_edge"
	CodeSelfIntersection    = "self_intersection"
	CodeWindingNormalized   = "ring_winding_normalized"
	CodeDisjointFill        = "disjoint_fill_components"
	CodeNarrowFill          = "narrow_fill_shape"
	CodeMissingColor        = "missing_color"
	CodeHiddenBlock         = "hidden_block"
	CodeStitchCountEstimate = "stitch_count_estimate"
	CodeComplexRing         = "complex_ring_skipped"
	CodeOpenFill            = "open_fill_outline"
	CodeCycle               = "tree_cycle"
	CodeDanglingReference   = "dangling_reference"
	CodeOrphanNode          = "orphan_node"
	CodeOrphanBlock         = "orphan_block"
	CodeTrackMismatch       = "track_mismatch"
)

const (
	// NarrowFillWidth is the narrowest interior a fill type sews well.
	NarrowFillWidth = 1.0

	// maxCheckedVertices bounds the quadratic self-intersection check.
	maxCheckedVertices = 4096

	// maxIntersections stops the self-intersection scan early.
	maxIntersections = 16
)

// Diagnostic is one preflight finding. NodeID is zero for scene-level
// findings.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	NodeID   NodeID   `json:"nodeId,omitempty"`
}

func (d Diagnostic) Error() string {
	if d.NodeID == 0 {
		return fmt.Sprintf("[%s] %s: %s", d.Severity, d.Code, d.Message)
	}
	return fmt.Sprintf("[%s] node %d: %s: %s", d.Severity, d.NodeID, d.Code, d.Message)
}

// Validate runs every preflight check: structure first, then geometry and
// stitch findings per shape in render order. It is read-only and never
// panics on malformed geometry.
func Validate(s *Scene) []Diagnostic {
	var out []Diagnostic
	out = append(out, validateTree(s)...)
	out = append(out, validateReferences(s)...)
	out = append(out, validateRoots(s)...)
	out = append(out, validateBlocks(s)...)
	for _, id := range s.DepthFirst() {
		if _, ok := s.nodes[id].shape(); !ok {
			continue
		}
		out = append(out, validateShape(s, id)...)
	}
	return out
}

// Errors filters diagnostics down to error severity.
func Errors(ds []Diagnostic) []Diagnostic {
	var out []Diagnostic
	for _, d := range ds {
		if d.Severity == SeverityError {
			out = append(out, d)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Structure
// ---------------------------------------------------------------------------

// validateTree checks for cycles using iterative DFS with 3-color marking.
// White = unvisited, gray = on the current path, black = fully explored.
// Reaching a gray node means a cycle.
func validateTree(s *Scene) []Diagnostic {
	const (
		white = iota
		gray
		black
	)
	color := make(map[NodeID]int, len(s.nodes))
	ids := sortedNodeIDs(s)

	type frame struct {
		id   NodeID
		next int
	}
	for _, start := range ids {
		if color[start] != white {
			continue
		}
		stack := []frame{{id: start}}
		color[start] = gray
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			n := s.nodes[top.id]
			if n == nil || top.next >= len(n.Children) {
				color[top.id] = black
				stack = stack[:len(stack)-1]
				continue
			}
			child := n.Children[top.next]
			top.next++
			switch color[child] {
			case gray:
				// One cycle is enough to report.
				return []Diagnostic{{
					Severity: SeverityError,
					Code:     CodeCycle,
					Message:  fmt.Sprintf("node %d is part of a cycle", child),
					NodeID:   child,
				}}
			case white:
				if _, ok := s.nodes[child]; ok {
					color[child] = gray
					stack = append(stack, frame{id: child})
				}
			}
		}
	}
	return nil
}

// validateReferences checks that child and parent links point at nodes
// that exist and agree with each other.
func validateReferences(s *Scene) []Diagnostic {
	var out []Diagnostic
	for _, id := range sortedNodeIDs(s) {
		n := s.nodes[id]
		for _, c := range n.Children {
			child, ok := s.nodes[c]
			if !ok {
				out = append(out, Diagnostic{
					Severity: SeverityError,
					Code:     CodeDanglingReference,
					Message:  fmt.Sprintf("child reference %d does not exist", c),
					NodeID:   id,
				})
				continue
			}
			if child.Parent != id {
				out = append(out, Diagnostic{
					Severity: SeverityError,
					Code:     CodeDanglingReference,
					Message:  fmt.Sprintf("child %d names %d as its parent", c, child.Parent),
					NodeID:   id,
				})
			}
		}
		if n.Parent != 0 {
			if _, ok := s.nodes[n.Parent]; !ok {
				out = append(out, Diagnostic{
					Severity: SeverityError,
					Code:     CodeDanglingReference,
					Message:  fmt.Sprintf("parent reference %d does not exist", n.Parent),
					NodeID:   id,
				})
			}
		}
	}
	return out
}

// validateRoots checks root references and reports nodes unreachable from
// any root.
func validateRoots(s *Scene) []Diagnostic {
	var out []Diagnostic
	for _, r := range s.roots {
		if _, ok := s.nodes[r]; !ok {
			out = append(out, Diagnostic{
				Severity: SeverityError,
				Code:     CodeDanglingReference,
				Message:  fmt.Sprintf("root reference %d does not exist", r),
			})
		}
	}
	reachable := make(map[NodeID]bool, len(s.nodes))
	for _, id := range s.DepthFirst() {
		reachable[id] = true
	}
	for _, id := range sortedNodeIDs(s) {
		if !reachable[id] {
			out = append(out, Diagnostic{
				Severity: SeverityWarning,
				Code:     CodeOrphanNode,
				Message:  fmt.Sprintf("node %q is not reachable from any root", s.nodes[id].Name),
				NodeID:   id,
			})
		}
	}
	return out
}

// validateBlocks checks that every block derives from a live shape and
// that the track lists each block exactly once.
func validateBlocks(s *Scene) []Diagnostic {
	var out []Diagnostic
	bids := make([]BlockID, 0, len(s.blocks))
	for id := range s.blocks {
		bids = append(bids, id)
	}
	slices.Sort(bids)
	for _, id := range bids {
		b := s.blocks[id]
		shape := false
		if n, ok := s.nodes[b.SourceNodeID]; ok {
			_, shape = n.shape()
		}
		if !shape {
			out = append(out, Diagnostic{
				Severity: SeverityError,
				Code:     CodeOrphanBlock,
				Message:  fmt.Sprintf("block %d references node %d, which is not a shape", id, b.SourceNodeID),
			})
		}
	}
	seen := make(map[BlockID]int, len(s.track))
	for _, id := range s.track {
		seen[id]++
		if seen[id] == 2 {
			out = append(out, Diagnostic{
				Severity: SeverityError,
				Code:     CodeTrackMismatch,
				Message:  fmt.Sprintf("block %d appears more than once in the sequence", id),
			})
		}
		if _, ok := s.blocks[id]; !ok && seen[id] == 1 {
			out = append(out, Diagnostic{
				Severity: SeverityError,
				Code:     CodeTrackMismatch,
				Message:  fmt.Sprintf("sequence lists unknown block %d", id),
			})
		}
	}
	for _, id := range bids {
		if seen[id] == 0 {
			out = append(out, Diagnostic{
				Severity: SeverityError,
				Code:     CodeTrackMismatch,
				Message:  fmt.Sprintf("block %d is missing from the sequence", id),
			})
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Geometry and stitching
// ---------------------------------------------------------------------------

func validateShape(s *Scene, id NodeID) []Diagnostic {
	k, _ := s.nodes[id].shape()
	if !s.finiteShape(id) {
		return []Diagnostic{{
			Severity: SeverityError,
			Code:     CodeInvalidGeometry,
			Message:  "shape has a non-finite dimension, coordinate or transform and is skipped on export",
			NodeID:   id,
		}}
	}
	sub, _ := s.Outline(id)
	out := validateOutline(id, sub)
	if len(Repair(sub)) == 0 {
		return out
	}
	out = append(out, validateFill(s, id, k, sub)...)
	out = append(out, validateBlock(s, id, k, sub)...)
	return out
}

func validateOutline(id NodeID, sub []geom.Subpath) []Diagnostic {
	var out []Diagnostic
	d := func(sev Severity, code, format string, args ...any) {
		out = append(out, Diagnostic{Severity: sev, Code: code, Message: fmt.Sprintf(format, args...), NodeID: id})
	}
	if len(Repair(sub)) == 0 {
		d(SeverityError, CodeEmptyGeometry, "shape has no stitchable outline and is skipped on export")
		return out
	}

	var rings [][]geom.Point
	for i, sp := range sub {
		if n := len(geom.DegenerateEdges(sp.Points, RepairEpsilon)); n > 0 {
			d(SeverityError, CodeDegenerateEdge, "subpath %d has %d zero-length edges, removed before export", i, n)
		}
		if !sp.Closed {
			continue
		}
		rings = append(rings, sp.Points)
		if len(sp.Points) > maxCheckedVertices {
			d(SeverityInfo, CodeComplexRing, "ring %d has %d vertices, self-intersection check skipped", i, len(sp.Points))
			continue
		}
		if xs := geom.SelfIntersections(sp.Points, maxIntersections); len(xs) > 0 {
			d(SeverityError, CodeSelfIntersection, "ring %d crosses itself near (%.2f, %.2f), filled even-odd on export",
				i, xs[0].At.X, xs[0].At.Y)
		}
	}
	for i, r := range rings {
		a := geom.SignedArea(r)
		if math.Abs(a) <= RepairEpsilon*RepairEpsilon {
			continue
		}
		if hole := ringDepth(i, rings)%2 == 1; (a > 0) == hole {
			d(SeverityInfo, CodeWindingNormalized, "ring %d winding reversed to match its role", i)
		}
	}
	return out
}

func validateFill(s *Scene, id NodeID, k ShapeKind, sub []geom.Subpath) []Diagnostic {
	if !k.Stitch.Type.IsFill() {
		return nil
	}
	rings := closedRings(Repair(sub))
	if len(rings) == 0 {
		return []Diagnostic{{
			Severity: SeverityWarning,
			Code:     CodeOpenFill,
			Message:  fmt.Sprintf("%s fill on an open outline is sewn as a running stitch", k.Stitch.Type),
			NodeID:   id,
		}}
	}
	var out []Diagnostic
	if n := len(geom.OuterRings(rings)); n > 1 {
		out = append(out, Diagnostic{
			Severity: SeverityWarning,
			Code:     CodeDisjointFill,
			Message:  fmt.Sprintf("fill has %d disjoint components joined by travel", n),
			NodeID:   id,
		})
	}
	r, err := s.kern.Polygon(rings)
	if err != nil {
		return out
	}
	b := r.Bounds()
	step := math.Max(math.Min(b.Width(), b.Height())/40, 0.05)
	if w := 2 * kernel.MaxInscribedRadius(r, step); w < NarrowFillWidth {
		out = append(out, Diagnostic{
			Severity: SeverityWarning,
			Code:     CodeNarrowFill,
			Message:  fmt.Sprintf("shape is %.2f mm at its widest, too narrow for %s; consider satin or running", w, k.Stitch.Type),
			NodeID:   id,
		})
	}
	return out
}

func validateBlock(s *Scene, id NodeID, k ShapeKind, sub []geom.Subpath) []Diagnostic {
	var out []Diagnostic
	if _, ok := s.blocks[BlockID(id)]; !ok {
		return out
	}
	if threadColor(k) == nil {
		out = append(out, Diagnostic{
			Severity: SeverityWarning,
			Code:     CodeMissingColor,
			Message:  "block has neither fill nor stroke color and sews in black",
			NodeID:   id,
		})
	}
	if s.Hidden(id) {
		out = append(out, Diagnostic{
			Severity: SeverityInfo,
			Code:     CodeHiddenBlock,
			Message:  "block is in a hidden layer and is skipped on export",
			NodeID:   id,
		})
		return out
	}
	out = append(out, Diagnostic{
		Severity: SeverityInfo,
		Code:     CodeStitchCountEstimate,
		Message:  fmt.Sprintf("about %d stitches", stitch.EstimateCount(k.Stitch, Repair(sub), stitch.DefaultStitchLength)),
		NodeID:   id,
	})
	return out
}

func sortedNodeIDs(s *Scene) []NodeID {
	ids := make([]NodeID, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

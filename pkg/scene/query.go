package scene

import (
	"slices"

	"github.com/samber/lo"

	"github.com/chazu/bobbin/pkg/geom"
	"github.com/chazu/bobbin/pkg/kernel"
	"github.com/chazu/bobbin/pkg/stitch"
	"github.com/chazu/bobbin/pkg/thread"
)

// HitTolerance is how far outside a shape's outline a point still hits it.
const HitTolerance = 3.0

// HitTest returns the topmost visible shape at world point p. Later nodes
// in render order are on top.
func (s *Scene) HitTest(p geom.Point) (NodeID, bool) {
	order := s.DepthFirst()
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		if _, ok := s.nodes[id].shape(); !ok || s.Hidden(id) {
			continue
		}
		if s.hits(id, p) {
			return id, true
		}
	}
	return 0, false
}

func (s *Scene) hits(id NodeID, p geom.Point) bool {
	sub, ok := s.Outline(id)
	if !ok {
		return false
	}
	if !outlineBBox(sub).Expand(HitTolerance).Contains(p) {
		return false
	}
	if r, err := s.kern.Polygon(closedRings(sub)); err == nil && kernel.Near(r, p, HitTolerance) {
		return true
	}
	for _, sp := range sub {
		if geom.DistanceToPolyline(p, sp.Points) <= HitTolerance {
			return true
		}
	}
	return false
}

func outlineBBox(sub []geom.Subpath) geom.BBox {
	b := geom.EmptyBBox()
	for _, sp := range sub {
		b = b.Union(geom.BBoxOf(sp.Points))
	}
	return b
}

// NodeBBox returns the world bounds of a node: its own outline for a shape,
// the union of its descendant shapes otherwise. ok is false for unknown
// nodes and nodes with no geometry below them.
func (s *Scene) NodeBBox(id NodeID) (geom.BBox, bool) {
	if _, ok := s.nodes[id]; !ok {
		return geom.BBox{}, false
	}
	b := geom.EmptyBBox()
	for _, nid := range s.subtree(id) {
		if sub, ok := s.Outline(nid); ok {
			b = b.Union(outlineBBox(sub))
		}
	}
	if b.IsEmpty() {
		return geom.BBox{}, false
	}
	return b, true
}

// RenderItem is one visible shape to draw.
type RenderItem struct {
	ID    NodeID      `json:"id"`
	Name  string      `json:"name"`
	World geom.Affine `json:"world"`
	Kind  KindSpec    `json:"kind"`
}

// RenderList returns the visible shapes in draw order, back to front.
func (s *Scene) RenderList() []RenderItem {
	var out []RenderItem
	for _, id := range s.DepthFirst() {
		n := s.nodes[id]
		if _, ok := n.shape(); !ok || s.Hidden(id) {
			continue
		}
		out = append(out, RenderItem{ID: id, Name: n.Name, World: s.WorldMatrix(id), Kind: SpecOf(n.Kind)})
	}
	return out
}

// TreeNode is the outliner view of a node.
type TreeNode struct {
	ID       NodeID     `json:"id"`
	Name     string     `json:"name"`
	Kind     string     `json:"kind"`
	Visible  bool       `json:"visible"`
	Locked   bool       `json:"locked"`
	Children []TreeNode `json:"children"`
}

// Tree returns the node hierarchy from the roots.
func (s *Scene) Tree() []TreeNode {
	seen := make(map[NodeID]bool, len(s.nodes))
	return s.treeOf(s.roots, seen)
}

func (s *Scene) treeOf(ids []NodeID, seen map[NodeID]bool) []TreeNode {
	out := []TreeNode{}
	for _, id := range ids {
		n, ok := s.nodes[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		t := TreeNode{ID: id, Name: n.Name, Kind: n.Kind.KindName(), Visible: true}
		if l, ok := n.Kind.(LayerKind); ok {
			t.Visible, t.Locked = l.Visible, l.Locked
		}
		t.Children = s.treeOf(n.Children, seen)
		out = append(out, t)
	}
	return out
}

// StitchPlanRow is the sequencer view of one block.
type StitchPlanRow struct {
	BlockID          BlockID          `json:"blockId"`
	NodeID           NodeID           `json:"nodeId"`
	Parent           NodeID           `json:"parent,omitempty"`
	Name             string           `json:"name"`
	StitchType       stitch.Type      `json:"stitchType"`
	Color            *thread.Color    `json:"color,omitempty"`
	Visible          bool             `json:"visible"`
	Locked           bool             `json:"locked"`
	SequenceIndex    int              `json:"sequenceIndex"`
	RoutingOverrides RoutingOverrides `json:"routingOverrides"`
	CommandOverrides CommandOverrides `json:"commandOverrides"`
}

// StitchPlan lists every block in sequence order.
func (s *Scene) StitchPlan() []StitchPlanRow {
	out := []StitchPlanRow{}
	for i, bid := range s.track {
		b, ok := s.blocks[bid]
		if !ok {
			continue
		}
		n, ok := s.nodes[b.SourceNodeID]
		if !ok {
			continue
		}
		out = append(out, StitchPlanRow{
			BlockID:          bid,
			NodeID:           n.ID,
			Parent:           n.Parent,
			Name:             n.Name,
			StitchType:       b.StitchType,
			Color:            cloneColor(b.Color),
			Visible:          !s.Hidden(n.ID),
			Locked:           s.Locked(n.ID),
			SequenceIndex:    i,
			RoutingOverrides: b.RoutingOverrides.clone(),
			CommandOverrides: b.CommandOverrides.clone(),
		})
	}
	return out
}

// Snapshot is the complete comparable state of a scene.
type Snapshot struct {
	Nodes   []NodeInfo
	Roots   []NodeID
	NextID  NodeID
	Objects []EmbroideryObject
	Blocks  []StitchBlock
	Track   []BlockID
}

// Snapshot captures the scene, nodes and blocks ordered by id.
func (s *Scene) Snapshot() Snapshot {
	ids := lo.Keys(s.nodes)
	slices.Sort(ids)
	bids := lo.Keys(s.blocks)
	slices.Sort(bids)
	return Snapshot{
		Nodes:   lo.Map(ids, func(id NodeID, _ int) NodeInfo { return s.nodes[id].Info() }),
		Roots:   append([]NodeID{}, s.roots...),
		NextID:  s.nextID,
		Objects: s.EmbroideryObjects(),
		Blocks:  lo.Map(bids, func(id BlockID, _ int) StitchBlock { return *s.blocks[id].clone() }),
		Track:   append([]BlockID{}, s.track...),
	}
}

package scene

import (
	"slices"

	"github.com/chazu/bobbin/pkg/geom"
)

// command is one reversible mutation. apply and revert touch only the node
// arena and the block fields the command owns; derived state is handled by
// the sync pass over dirty().
type command interface {
	apply(s *Scene)
	revert(s *Scene)
	dirty() []NodeID
	label() string
}

// ---------------------------------------------------------------------------
// Structure
// ---------------------------------------------------------------------------

// placed is a top-level node of an insertion and where it goes.
type placed struct {
	id     NodeID
	parent NodeID
	index  int
}

// addNodes inserts one or more subtrees. Single creates and SVG imports
// are both one addNodes, so an import undoes in one step.
type addNodes struct {
	nodes    []*Node // every inserted node, parents before children
	tops     []placed
	prevNext NodeID
	next     NodeID
	name     string
}

func (c *addNodes) apply(s *Scene) {
	for _, n := range c.nodes {
		s.nodes[n.ID] = n.clone()
	}
	for _, t := range c.tops {
		s.attach(t.id, t.parent, t.index)
	}
	s.nextID = c.next
}

func (c *addNodes) revert(s *Scene) {
	for i := len(c.tops) - 1; i >= 0; i-- {
		s.detach(c.tops[i].id)
	}
	for _, n := range c.nodes {
		delete(s.nodes, n.ID)
	}
	s.nextID = c.prevNext
}

func (c *addNodes) dirty() []NodeID {
	ids := make([]NodeID, len(c.nodes))
	for i, n := range c.nodes {
		ids[i] = n.ID
	}
	return ids
}

func (c *addNodes) label() string { return c.name }

// removeNode deletes a subtree, keeping a snapshot to restore it.
type removeNode struct {
	id     NodeID
	parent NodeID
	index  int
	nodes  []*Node
}

func (c *removeNode) apply(s *Scene) {
	s.detach(c.id)
	for _, n := range c.nodes {
		delete(s.nodes, n.ID)
	}
}

func (c *removeNode) revert(s *Scene) {
	for _, n := range c.nodes {
		s.nodes[n.ID] = n.clone()
	}
	s.attach(c.id, c.parent, c.index)
}

func (c *removeNode) dirty() []NodeID {
	ids := make([]NodeID, len(c.nodes))
	for i, n := range c.nodes {
		ids[i] = n.ID
	}
	return ids
}

func (c *removeNode) label() string { return "remove node" }

// moveNode re-parents or reorders a node. The sequence track is untouched.
type moveNode struct {
	id                   NodeID
	oldParent, newParent NodeID
	oldIndex, newIndex   int
	name                 string
}

func (c *moveNode) apply(s *Scene) {
	s.detach(c.id)
	s.attach(c.id, c.newParent, c.newIndex)
}

func (c *moveNode) revert(s *Scene) {
	s.detach(c.id)
	s.attach(c.id, c.oldParent, c.oldIndex)
}

func (c *moveNode) dirty() []NodeID { return nil }
func (c *moveNode) label() string   { return c.name }

// ---------------------------------------------------------------------------
// Node fields
// ---------------------------------------------------------------------------

type setTransform struct {
	id       NodeID
	old, new geom.Transform
}

func (c *setTransform) apply(s *Scene)  { s.nodes[c.id].Transform = c.new }
func (c *setTransform) revert(s *Scene) { s.nodes[c.id].Transform = c.old }
func (c *setTransform) dirty() []NodeID { return nil }
func (c *setTransform) label() string   { return "update transform" }

// setKind replaces a node payload. Fill, stroke, stroke width, path and
// stitch parameter edits are all setKind with their own label.
type setKind struct {
	id       NodeID
	old, new Kind
	name     string
}

func (c *setKind) apply(s *Scene)  { s.nodes[c.id].Kind = c.new.clone() }
func (c *setKind) revert(s *Scene) { s.nodes[c.id].Kind = c.old.clone() }
func (c *setKind) dirty() []NodeID { return []NodeID{c.id} }
func (c *setKind) label() string   { return c.name }

type rename struct {
	id       NodeID
	old, new string
}

func (c *rename) apply(s *Scene)  { s.nodes[c.id].Name = c.new }
func (c *rename) revert(s *Scene) { s.nodes[c.id].Name = c.old }
func (c *rename) dirty() []NodeID { return nil }
func (c *rename) label() string   { return "rename" }

// ---------------------------------------------------------------------------
// Stitch plan
// ---------------------------------------------------------------------------

// reorderBlock moves a block within the sequence track.
type reorderBlock struct {
	id                 BlockID
	oldIndex, newIndex int
}

func (c *reorderBlock) apply(s *Scene)  { c.move(s, c.newIndex) }
func (c *reorderBlock) revert(s *Scene) { c.move(s, c.oldIndex) }

func (c *reorderBlock) move(s *Scene, to int) {
	i := slices.Index(s.track, c.id)
	if i < 0 {
		return
	}
	s.track = slices.Delete(s.track, i, i+1)
	s.track = slices.Insert(s.track, min(max(to, 0), len(s.track)), c.id)
}

func (c *reorderBlock) dirty() []NodeID { return nil }
func (c *reorderBlock) label() string   { return "reorder stitch block" }

type setRouting struct {
	id       BlockID
	old, new RoutingOverrides
}

func (c *setRouting) apply(s *Scene) {
	if b, ok := s.blocks[c.id]; ok {
		b.RoutingOverrides = c.new.clone()
	}
}

func (c *setRouting) revert(s *Scene) {
	if b, ok := s.blocks[c.id]; ok {
		b.RoutingOverrides = c.old.clone()
	}
}

func (c *setRouting) dirty() []NodeID { return nil }
func (c *setRouting) label() string   { return "set routing overrides" }

type setCommands struct {
	id       BlockID
	old, new CommandOverrides
}

func (c *setCommands) apply(s *Scene) {
	if b, ok := s.blocks[c.id]; ok {
		b.CommandOverrides = c.new.clone()
	}
}

func (c *setCommands) revert(s *Scene) {
	if b, ok := s.blocks[c.id]; ok {
		b.CommandOverrides = c.old.clone()
	}
}

func (c *setCommands) dirty() []NodeID { return nil }
func (c *setCommands) label() string   { return "set command overrides" }

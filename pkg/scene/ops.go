package scene

import (
	"fmt"
	"slices"

	"github.com/chazu/bobbin/pkg/geom"
	"github.com/chazu/bobbin/pkg/stitch"
	"github.com/chazu/bobbin/pkg/thread"
)

// CreateNode adds a node under parent (zero for the root) with an identity
// transform.
func (s *Scene) CreateNode(name string, kind Kind, parent NodeID) (NodeID, error) {
	return s.CreateNodeWithTransform(name, kind, geom.Identity(), parent)
}

// CreateNodeWithTransform adds a node under parent at the end of its
// children.
func (s *Scene) CreateNodeWithTransform(name string, kind Kind, t geom.Transform, parent NodeID) (NodeID, error) {
	if kind == nil {
		return 0, ErrInvalidKind
	}
	if parent != 0 {
		if _, ok := s.nodes[parent]; !ok {
			return 0, fmt.Errorf("%w: parent %d", ErrUnknownNode, parent)
		}
	}
	id := s.nextID
	n := &Node{ID: id, Name: name, Parent: parent, Transform: t, Kind: kind.clone()}
	s.execute(&addNodes{
		nodes:    []*Node{n},
		tops:     []placed{{id: id, parent: parent, index: len(s.childList(parent))}},
		prevNext: id,
		next:     id + 1,
		name:     "create node",
	})
	return id, nil
}

// ShapeImport is one shape of a batch import.
type ShapeImport struct {
	Name      string
	Kind      ShapeKind
	Transform geom.Transform
}

// ImportShapes adds shapes under parent as one undoable command. Either
// every shape is added or, on error, none is.
func (s *Scene) ImportShapes(parent NodeID, shapes []ShapeImport) ([]NodeID, error) {
	if parent != 0 {
		if _, ok := s.nodes[parent]; !ok {
			return nil, fmt.Errorf("%w: parent %d", ErrUnknownNode, parent)
		}
	}
	if len(shapes) == 0 {
		return nil, nil
	}
	for i, sh := range shapes {
		if sh.Kind.Geometry == nil {
			return nil, fmt.Errorf("%w: shape %d has no geometry", ErrInvalidKind, i)
		}
		if err := sh.Kind.Stitch.Validate(); err != nil {
			return nil, fmt.Errorf("%w: shape %d: %w", ErrInvalidKind, i, err)
		}
	}
	cmd := &addNodes{prevNext: s.nextID, name: "import shapes"}
	base := len(s.childList(parent))
	ids := make([]NodeID, len(shapes))
	for i, sh := range shapes {
		id := s.nextID + NodeID(i)
		ids[i] = id
		cmd.nodes = append(cmd.nodes, &Node{ID: id, Name: sh.Name, Parent: parent, Transform: sh.Transform, Kind: sh.Kind.clone()})
		cmd.tops = append(cmd.tops, placed{id: id, parent: parent, index: base + i})
	}
	cmd.next = s.nextID + NodeID(len(shapes))
	s.execute(cmd)
	return ids, nil
}

// RemoveNode deletes id and its descendants together with their stitch
// blocks.
func (s *Scene) RemoveNode(id NodeID) bool {
	n, ok := s.nodes[id]
	if !ok {
		return false
	}
	ids := s.subtree(id)
	snap := make([]*Node, len(ids))
	for i, nid := range ids {
		snap[i] = s.nodes[nid].clone()
	}
	s.execute(&removeNode{
		id:     id,
		parent: n.Parent,
		index:  slices.Index(s.childList(n.Parent), id),
		nodes:  snap,
	})
	return true
}

// UpdateTransform sets a node's local transform.
func (s *Scene) UpdateTransform(id NodeID, t geom.Transform) bool {
	n, ok := s.nodes[id]
	if !ok {
		return false
	}
	if n.Transform == t {
		return true
	}
	s.execute(&setTransform{id: id, old: n.Transform, new: t})
	return true
}

// UpdateKind replaces a node's payload.
func (s *Scene) UpdateKind(id NodeID, kind Kind) bool {
	if kind == nil {
		return false
	}
	return s.setKind(id, "update kind", func(Kind) (Kind, bool) { return kind.clone(), true })
}

func (s *Scene) setKind(id NodeID, label string, edit func(Kind) (Kind, bool)) bool {
	n, ok := s.nodes[id]
	if !ok {
		return false
	}
	next, ok := edit(n.Kind.clone())
	if !ok {
		return false
	}
	s.execute(&setKind{id: id, old: n.Kind.clone(), new: next, name: label})
	return true
}

func (s *Scene) editShape(id NodeID, label string, edit func(*ShapeKind)) bool {
	return s.setKind(id, label, func(k Kind) (Kind, bool) {
		sh, ok := k.(ShapeKind)
		if !ok {
			return nil, false
		}
		edit(&sh)
		return sh, true
	})
}

// SetFill sets or clears a shape's fill color.
func (s *Scene) SetFill(id NodeID, c *thread.Color) bool {
	return s.editShape(id, "set fill", func(k *ShapeKind) { k.Fill = cloneColor(c) })
}

// SetStroke sets or clears a shape's stroke color.
func (s *Scene) SetStroke(id NodeID, c *thread.Color) bool {
	return s.editShape(id, "set stroke", func(k *ShapeKind) { k.Stroke = cloneColor(c) })
}

// SetStrokeWidth sets a shape's stroke width, which is also its satin
// column width.
func (s *Scene) SetStrokeWidth(id NodeID, w float64) bool {
	if w < 0 {
		return false
	}
	return s.editShape(id, "set stroke width", func(k *ShapeKind) { k.StrokeWidth = w })
}

// SetStitchParams replaces a shape's stitch parameters.
func (s *Scene) SetStitchParams(id NodeID, p stitch.Params) bool {
	if p.Validate() != nil {
		return false
	}
	return s.editShape(id, "set stitch params", func(k *ShapeKind) { k.Stitch = p })
}

// SetPathCommands replaces a shape's geometry with an explicit path.
func (s *Scene) SetPathCommands(id NodeID, cmds []geom.PathCommand) bool {
	for _, c := range cmds {
		if c.Validate() != nil {
			return false
		}
	}
	p := geom.NewPath(cmds)
	return s.editShape(id, "set path", func(k *ShapeKind) { k.Geometry = geom.PathGeometry{Path: p} })
}

// GetPathCommands returns a shape's outline as path commands in local
// coordinates.
func (s *Scene) GetPathCommands(id NodeID) ([]geom.PathCommand, bool) {
	n, ok := s.nodes[id]
	if !ok {
		return nil, false
	}
	k, ok := n.shape()
	if !ok || k.Geometry == nil {
		return nil, false
	}
	return k.Geometry.ToPath().Commands, true
}

// Rename sets a node's name.
func (s *Scene) Rename(id NodeID, name string) bool {
	n, ok := s.nodes[id]
	if !ok {
		return false
	}
	if n.Name == name {
		return true
	}
	s.execute(&rename{id: id, old: n.Name, new: name})
	return true
}

// MoveNode re-parents id under newParent (zero for the root) at index. A
// node cannot move into its own subtree. Sewing order is not affected.
func (s *Scene) MoveNode(id, newParent NodeID, index int) bool {
	n, ok := s.nodes[id]
	if !ok {
		return false
	}
	if newParent != 0 {
		if _, ok := s.nodes[newParent]; !ok || s.isAncestor(id, newParent) {
			return false
		}
	}
	oldIndex := slices.Index(s.childList(n.Parent), id)
	to := len(s.childList(newParent))
	if newParent == n.Parent {
		to--
	}
	index = min(max(index, 0), to)
	if newParent == n.Parent && index == oldIndex {
		return true
	}
	s.execute(&moveNode{
		id:        id,
		oldParent: n.Parent,
		newParent: newParent,
		oldIndex:  oldIndex,
		newIndex:  index,
		name:      "move node",
	})
	return true
}

// ReorderChild moves id to index among its siblings.
func (s *Scene) ReorderChild(id NodeID, index int) bool {
	n, ok := s.nodes[id]
	if !ok {
		return false
	}
	return s.MoveNode(id, n.Parent, index)
}

// ReorderStitchBlock moves a block to index in the sequence track. The
// node tree is not affected.
func (s *Scene) ReorderStitchBlock(id BlockID, index int) bool {
	i := slices.Index(s.track, id)
	if i < 0 {
		return false
	}
	index = min(max(index, 0), len(s.track)-1)
	if index == i {
		return true
	}
	s.execute(&reorderBlock{id: id, oldIndex: i, newIndex: index})
	return true
}

// SetObjectRoutingOverrides replaces a block's routing overrides. Unknown
// modes are rejected and leave the block unchanged.
func (s *Scene) SetObjectRoutingOverrides(id BlockID, o RoutingOverrides) bool {
	b, ok := s.blocks[id]
	if !ok || o.Validate() != nil {
		return false
	}
	s.execute(&setRouting{id: id, old: b.RoutingOverrides.clone(), new: o.clone()})
	return true
}

// SetStitchBlockCommandOverrides replaces a block's command overrides.
func (s *Scene) SetStitchBlockCommandOverrides(id BlockID, o CommandOverrides) bool {
	b, ok := s.blocks[id]
	if !ok {
		return false
	}
	s.execute(&setCommands{id: id, old: b.CommandOverrides.clone(), new: o.clone()})
	return true
}

// Package scene holds the authoring document: an arena of layer, group and
// shape nodes mutated only through undoable commands, plus the stitch
// model derived from it.
//
// Every mutation runs a deterministic sync pass over the nodes it touched,
// so embroidery objects, stitch blocks and the sequence track never drift
// from the tree. The sequence track is independent of tree order: moving a
// node never reorders sewing, and reordering a block never moves a node.
package scene

import (
	"slices"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/chazu/bobbin/pkg/geom"
	"github.com/chazu/bobbin/pkg/kernel"
	"github.com/chazu/bobbin/pkg/kernel/sdfx"
)

// Scene is a single authoritative document. It is not safe for concurrent
// use.
type Scene struct {
	nodes  map[NodeID]*Node
	roots  []NodeID
	nextID NodeID

	objects map[ObjectID]*EmbroideryObject
	blocks  map[BlockID]*StitchBlock
	track   []BlockID

	history *History
	kern    kernel.Kernel
	log     *zap.Logger
}

// Option configures a Scene.
type Option func(*Scene)

// WithLogger sets the logger used for sync and history tracing.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scene) {
		if l != nil {
			s.log = l
		}
	}
}

// WithKernel sets the outline kernel used for hit testing and validation.
func WithKernel(k kernel.Kernel) Option {
	return func(s *Scene) {
		if k != nil {
			s.kern = k
		}
	}
}

// WithHistoryLimit caps the undo stack.
func WithHistoryLimit(n int) Option {
	return func(s *Scene) {
		s.history = NewHistory(n)
	}
}

// New returns an empty scene.
func New(opts ...Option) *Scene {
	s := &Scene{
		nodes:   make(map[NodeID]*Node),
		nextID:  1,
		objects: make(map[ObjectID]*EmbroideryObject),
		blocks:  make(map[BlockID]*StitchBlock),
		history: NewHistory(DefaultHistoryLimit),
		kern:    sdfx.New(),
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Kernel returns the outline kernel.
func (s *Scene) Kernel() kernel.Kernel { return s.kern }

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

// GetNode returns a copy of the node.
func (s *Scene) GetNode(id NodeID) (Node, bool) {
	n, ok := s.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n.clone(), true
}

// NodeCount returns the number of nodes.
func (s *Scene) NodeCount() int {
	return len(s.nodes)
}

// Roots returns the root-level node ids in order.
func (s *Scene) Roots() []NodeID {
	return slices.Clone(s.roots)
}

// Children returns the ordered child ids of a node, or the roots for zero.
func (s *Scene) Children(id NodeID) []NodeID {
	return slices.Clone(s.childList(id))
}

// EmbroideryObjects returns every object ordered by id.
func (s *Scene) EmbroideryObjects() []EmbroideryObject {
	ids := lo.Keys(s.objects)
	slices.Sort(ids)
	return lo.Map(ids, func(id ObjectID, _ int) EmbroideryObject { return *s.objects[id].clone() })
}

// StitchBlocks returns every block in sequence order.
func (s *Scene) StitchBlocks() []StitchBlock {
	out := make([]StitchBlock, 0, len(s.track))
	for _, id := range s.track {
		if b, ok := s.blocks[id]; ok {
			out = append(out, *b.clone())
		}
	}
	return out
}

// StitchBlock returns one block.
func (s *Scene) StitchBlock(id BlockID) (StitchBlock, bool) {
	b, ok := s.blocks[id]
	if !ok {
		return StitchBlock{}, false
	}
	return *b.clone(), true
}

// SequenceTrack returns the machine execution order.
func (s *Scene) SequenceTrack() SequenceTrack {
	return SequenceTrack{OrderedBlockIDs: slices.Clone(s.track)}
}

// WorldMatrix composes the transforms from the root down to id.
func (s *Scene) WorldMatrix(id NodeID) geom.Affine {
	m := geom.IdentityAffine
	for cur, guard := id, 0; cur != 0 && guard <= len(s.nodes); guard++ {
		n, ok := s.nodes[cur]
		if !ok {
			break
		}
		m = n.Transform.Matrix().Mul(m)
		cur = n.Parent
	}
	return m
}

// Hidden reports whether id sits in an invisible layer.
func (s *Scene) Hidden(id NodeID) bool {
	return s.inLayer(id, func(l LayerKind) bool { return !l.Visible })
}

// Locked reports whether id sits in a locked layer.
func (s *Scene) Locked(id NodeID) bool {
	return s.inLayer(id, func(l LayerKind) bool { return l.Locked })
}

// LayerOf returns the nearest enclosing layer, or zero.
func (s *Scene) LayerOf(id NodeID) NodeID {
	for cur, guard := id, 0; cur != 0 && guard <= len(s.nodes); guard++ {
		n, ok := s.nodes[cur]
		if !ok {
			break
		}
		if _, ok := n.Kind.(LayerKind); ok {
			return cur
		}
		cur = n.Parent
	}
	return 0
}

func (s *Scene) inLayer(id NodeID, pred func(LayerKind) bool) bool {
	for cur, guard := id, 0; cur != 0 && guard <= len(s.nodes); guard++ {
		n, ok := s.nodes[cur]
		if !ok {
			break
		}
		if l, ok := n.Kind.(LayerKind); ok && pred(l) {
			return true
		}
		cur = n.Parent
	}
	return false
}

// DepthFirst returns every reachable node id in render order.
func (s *Scene) DepthFirst() []NodeID {
	var out []NodeID
	seen := make(map[NodeID]bool, len(s.nodes))
	stack := slices.Clone(s.roots)
	slices.Reverse(stack)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n, ok := s.nodes[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Arena helpers used by commands
// ---------------------------------------------------------------------------

func (s *Scene) childList(parent NodeID) []NodeID {
	if parent == 0 {
		return s.roots
	}
	if p, ok := s.nodes[parent]; ok {
		return p.Children
	}
	return nil
}

func (s *Scene) setChildList(parent NodeID, ids []NodeID) {
	if parent == 0 {
		s.roots = ids
		return
	}
	if p, ok := s.nodes[parent]; ok {
		p.Children = ids
	}
}

// attach inserts id under parent at index, clamped to the list.
func (s *Scene) attach(id, parent NodeID, index int) {
	list := s.childList(parent)
	index = min(max(index, 0), len(list))
	s.setChildList(parent, slices.Insert(slices.Clone(list), index, id))
	if n, ok := s.nodes[id]; ok {
		n.Parent = parent
	}
}

// detach removes id from its parent's child list and returns where it was.
func (s *Scene) detach(id NodeID) (NodeID, int) {
	n, ok := s.nodes[id]
	if !ok {
		return 0, -1
	}
	list := s.childList(n.Parent)
	i := slices.Index(list, id)
	if i >= 0 {
		s.setChildList(n.Parent, slices.Delete(slices.Clone(list), i, i+1))
	}
	return n.Parent, i
}

// subtree returns id and all its descendants in depth-first order.
func (s *Scene) subtree(id NodeID) []NodeID {
	var out []NodeID
	seen := make(map[NodeID]bool)
	stack := []NodeID{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n, ok := s.nodes[cur]
		if !ok || seen[cur] {
			continue
		}
		seen[cur] = true
		out = append(out, cur)
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
	return out
}

// isAncestor reports whether a is b or one of b's ancestors.
func (s *Scene) isAncestor(a, b NodeID) bool {
	for cur, guard := b, 0; cur != 0 && guard <= len(s.nodes); guard++ {
		if cur == a {
			return true
		}
		n, ok := s.nodes[cur]
		if !ok {
			return false
		}
		cur = n.Parent
	}
	return false
}

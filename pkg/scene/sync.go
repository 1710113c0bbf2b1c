package scene

import (
	"slices"

	"go.uber.org/zap"
)

type changeOp int

const (
	blockAdded changeOp = iota
	blockUpdated
	blockRemoved
)

// derivedChange records one step of a sync pass with enough data to undo it.
type derivedChange struct {
	op     changeOp
	id     BlockID
	object *EmbroideryObject // state before the change; nil when added
	block  *StitchBlock
	index  int // track position before removal
}

// syncDelta is the derived-state effect of one command.
type syncDelta []derivedChange

// sync re-derives objects and blocks for the dirty node ids. Shapes gain
// or refresh their object and block; anything else loses them. New blocks
// are appended to the track, removed blocks leave it with the remaining
// order intact, and refreshed blocks keep their id, position and overrides.
func (s *Scene) sync(dirty []NodeID) syncDelta {
	ids := slices.Clone(dirty)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	var delta syncDelta
	for _, nid := range ids {
		bid := BlockID(nid)
		old, exists := s.blocks[bid]
		n, ok := s.nodes[nid]
		var (
			k       ShapeKind
			isShape bool
		)
		if ok {
			k, isShape = n.shape()
		}

		switch {
		case isShape && exists:
			obj := objectFor(n, k)
			prevObj := s.objects[ObjectID(nid)]
			if prevObj != nil && objectsEqual(prevObj, obj) && old.StitchType == k.Stitch.Type && colorsEqual(old.Color, threadColor(k)) {
				continue
			}
			delta = append(delta, derivedChange{op: blockUpdated, id: bid, object: prevObj.clone(), block: old.clone()})
			s.objects[obj.ID] = obj
			nb := old.clone()
			nb.StitchType = k.Stitch.Type
			nb.Color = threadColor(k)
			s.blocks[bid] = nb

		case isShape:
			obj := objectFor(n, k)
			s.objects[obj.ID] = obj
			s.blocks[bid] = &StitchBlock{
				ID:           bid,
				ObjectID:     obj.ID,
				SourceNodeID: nid,
				StitchType:   k.Stitch.Type,
				Color:        threadColor(k),
			}
			s.track = append(s.track, bid)
			delta = append(delta, derivedChange{op: blockAdded, id: bid})

		case exists:
			i := slices.Index(s.track, bid)
			delta = append(delta, derivedChange{
				op:     blockRemoved,
				id:     bid,
				object: s.objects[ObjectID(nid)].clone(),
				block:  old.clone(),
				index:  i,
			})
			delete(s.objects, ObjectID(nid))
			delete(s.blocks, bid)
			if i >= 0 {
				s.track = slices.Delete(s.track, i, i+1)
			}
		}
	}
	if len(delta) > 0 {
		s.log.Debug("sync",
			zap.Int("dirty", len(ids)),
			zap.Int("changes", len(delta)),
			zap.Int("blocks", len(s.blocks)))
	}
	return delta
}

// revert undoes a sync pass, newest change first.
func (s *Scene) revert(delta syncDelta) {
	for i := len(delta) - 1; i >= 0; i-- {
		c := delta[i]
		switch c.op {
		case blockAdded:
			delete(s.blocks, c.id)
			delete(s.objects, ObjectID(c.id))
			if j := slices.Index(s.track, c.id); j >= 0 {
				s.track = slices.Delete(s.track, j, j+1)
			}
		case blockUpdated:
			s.blocks[c.id] = c.block.clone()
			if c.object != nil {
				s.objects[c.object.ID] = c.object.clone()
			}
		case blockRemoved:
			s.blocks[c.id] = c.block.clone()
			if c.object != nil {
				s.objects[c.object.ID] = c.object.clone()
			}
			if c.index >= 0 {
				s.track = slices.Insert(s.track, min(c.index, len(s.track)), c.id)
			}
		}
	}
}

// resyncAll rebuilds derived state for every node, used after loading.
func (s *Scene) resyncAll() {
	ids := make([]NodeID, 0, len(s.nodes)+len(s.blocks))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	for id := range s.blocks {
		ids = append(ids, NodeID(id))
	}
	s.sync(ids)
}

func objectsEqual(a, b *EmbroideryObject) bool {
	return a.ID == b.ID &&
		a.NodeID == b.NodeID &&
		a.Stitch == b.Stitch &&
		colorsEqual(a.Fill, b.Fill) &&
		colorsEqual(a.Stroke, b.Stroke) &&
		a.StrokeWidth == b.StrokeWidth
}

func colorsEqual[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

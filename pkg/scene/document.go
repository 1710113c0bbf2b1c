package scene

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/multierr"
)

// DocumentVersion is written into every saved document.
const DocumentVersion = 1

var ErrBadDocument = errors.New("scene: bad document")

// Document is the persisted form of a scene: the node tree, the sequence
// track and per-block overrides. Everything else is re-derived on load.
type Document struct {
	Version   int              `json:"version"`
	NextID    NodeID           `json:"nextId"`
	Roots     []NodeID         `json:"roots"`
	Nodes     []NodeInfo       `json:"nodes"`
	Track     []BlockID        `json:"track"`
	Overrides []BlockOverrides `json:"overrides,omitempty"`
}

// BlockOverrides are the saved overrides of one block.
type BlockOverrides struct {
	Block    BlockID          `json:"block"`
	Routing  RoutingOverrides `json:"routing"`
	Commands CommandOverrides `json:"commands"`
}

// Document captures the persisted state.
func (s *Scene) Document() Document {
	snap := s.Snapshot()
	d := Document{
		Version: DocumentVersion,
		NextID:  snap.NextID,
		Roots:   snap.Roots,
		Nodes:   snap.Nodes,
		Track:   snap.Track,
	}
	for _, b := range snap.Blocks {
		if b.RoutingOverrides != (RoutingOverrides{}) || b.CommandOverrides != (CommandOverrides{}) {
			d.Overrides = append(d.Overrides, BlockOverrides{Block: b.ID, Routing: b.RoutingOverrides, Commands: b.CommandOverrides})
		}
	}
	return d
}

// Save encodes the scene as indented JSON.
func (s *Scene) Save() ([]byte, error) {
	return json.MarshalIndent(s.Document(), "", "  ")
}

// Load decodes a saved scene. The history starts empty.
func Load(data []byte, opts ...Option) (*Scene, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadDocument, err)
	}
	return FromDocument(d, opts...)
}

// FromDocument rebuilds a scene, deriving objects and blocks through the
// sync pass and then restoring the saved order and overrides.
func FromDocument(d Document, opts ...Option) (*Scene, error) {
	if d.Version > DocumentVersion {
		return nil, fmt.Errorf("%w: version %d is newer than %d", ErrBadDocument, d.Version, DocumentVersion)
	}
	s := New(opts...)
	var errs error
	for _, info := range d.Nodes {
		if info.ID <= 0 {
			errs = multierr.Append(errs, fmt.Errorf("node id %d", info.ID))
			continue
		}
		if _, dup := s.nodes[info.ID]; dup {
			errs = multierr.Append(errs, fmt.Errorf("duplicate node %d", info.ID))
			continue
		}
		k, err := info.Kind.Kind()
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("node %d: %w", info.ID, err))
			continue
		}
		s.nodes[info.ID] = &Node{
			ID:        info.ID,
			Name:      info.Name,
			Parent:    info.Parent,
			Children:  slices.Clone(info.Children),
			Transform: info.Transform,
			Kind:      k,
		}
	}
	if errs != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadDocument, errs)
	}
	s.roots = slices.Clone(d.Roots)
	if err := s.checkLinks(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadDocument, err)
	}

	s.nextID = d.NextID
	for id := range s.nodes {
		s.nextID = max(s.nextID, id+1)
	}

	s.resyncAll()
	order := make([]BlockID, 0, len(s.track))
	for _, id := range d.Track {
		if _, ok := s.blocks[id]; ok && !slices.Contains(order, id) {
			order = append(order, id)
		}
	}
	for _, id := range s.track {
		if !slices.Contains(order, id) {
			order = append(order, id)
		}
	}
	s.track = order
	for _, o := range d.Overrides {
		if err := o.Routing.Validate(); err != nil {
			return nil, fmt.Errorf("%w: block %d: %w", ErrBadDocument, o.Block, err)
		}
		if b, ok := s.blocks[o.Block]; ok {
			b.RoutingOverrides = o.Routing.clone()
			b.CommandOverrides = o.Commands.clone()
		}
	}
	s.ClearHistory()
	return s, nil
}

// checkLinks verifies that parent and child links agree and every node is
// reachable from the roots exactly once.
func (s *Scene) checkLinks() error {
	var errs error
	seen := make(map[NodeID]bool, len(s.nodes))
	var visit func(ids []NodeID, parent NodeID)
	visit = func(ids []NodeID, parent NodeID) {
		for _, id := range ids {
			n, ok := s.nodes[id]
			if !ok {
				errs = multierr.Append(errs, fmt.Errorf("node %d: missing child %d", parent, id))
				continue
			}
			if seen[id] {
				errs = multierr.Append(errs, fmt.Errorf("node %d: linked more than once", id))
				continue
			}
			seen[id] = true
			if n.Parent != parent {
				errs = multierr.Append(errs, fmt.Errorf("node %d: parent %d, listed under %d", id, n.Parent, parent))
			}
			visit(n.Children, id)
		}
	}
	visit(s.roots, 0)
	for id := range s.nodes {
		if !seen[id] {
			errs = multierr.Append(errs, fmt.Errorf("node %d: unreachable", id))
		}
	}
	return errs
}

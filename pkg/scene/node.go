package scene

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/chazu/bobbin/pkg/geom"
	"github.com/chazu/bobbin/pkg/stitch"
	"github.com/chazu/bobbin/pkg/thread"
)

var (
	ErrUnknownNode = errors.New("scene: unknown node")
	ErrInvalidKind = errors.New("scene: invalid node kind")
)

// NodeID identifies a node. Zero means "no node", which as a parent is the
// scene root.
type NodeID int64

// Kind is the closed set of node payloads.
type Kind interface {
	// KindName returns "layer", "group" or "shape".
	KindName() string
	clone() Kind
}

// LayerKind is a top-level organizational node. Hidden layers are skipped
// by hit testing, rendering and export.
type LayerKind struct {
	Visible bool
	Locked  bool
}

func (LayerKind) KindName() string { return "layer" }
func (k LayerKind) clone() Kind    { return k }

// GroupKind groups children under a shared transform.
type GroupKind struct{}

func (GroupKind) KindName() string { return "group" }
func (k GroupKind) clone() Kind    { return k }

// ShapeKind is a stitchable outline.
type ShapeKind struct {
	Geometry    geom.Geometry
	Fill        *thread.Color
	Stroke      *thread.Color
	StrokeWidth float64
	Stitch      stitch.Params
}

func (ShapeKind) KindName() string { return "shape" }

func (k ShapeKind) clone() Kind {
	if k.Geometry != nil {
		k.Geometry = geom.CloneGeometry(k.Geometry)
	}
	k.Fill = cloneColor(k.Fill)
	k.Stroke = cloneColor(k.Stroke)
	return k
}

// NewShape returns a shape with default stitch parameters.
func NewShape(g geom.Geometry) ShapeKind {
	return ShapeKind{Geometry: g, StrokeWidth: 1, Stitch: stitch.DefaultParams()}
}

func cloneColor(c *thread.Color) *thread.Color {
	if c == nil {
		return nil
	}
	v := *c
	return &v
}

// Node is one element of the scene tree. Parent and children are ids into
// the scene arena.
type Node struct {
	ID        NodeID         `json:"id"`
	Name      string         `json:"name"`
	Parent    NodeID         `json:"parent,omitempty"`
	Children  []NodeID       `json:"children,omitempty"`
	Transform geom.Transform `json:"transform"`
	Kind      Kind           `json:"-"`
}

func (n *Node) clone() *Node {
	c := *n
	c.Children = append([]NodeID(nil), n.Children...)
	if n.Kind != nil {
		c.Kind = n.Kind.clone()
	}
	return &c
}

// shape returns the node's shape payload.
func (n *Node) shape() (ShapeKind, bool) {
	s, ok := n.Kind.(ShapeKind)
	return s, ok
}

// ---------------------------------------------------------------------------
// Plain-data form
// ---------------------------------------------------------------------------

// KindSpec is the JSON form of a Kind.
type KindSpec struct {
	Type        string             `json:"type"`
	Visible     *bool              `json:"visible,omitempty"`
	Locked      bool               `json:"locked,omitempty"`
	Geometry    *geom.GeometrySpec `json:"geometry,omitempty"`
	Fill        *thread.Color      `json:"fill,omitempty"`
	Stroke      *thread.Color      `json:"stroke,omitempty"`
	StrokeWidth float64            `json:"strokeWidth,omitempty"`
	Stitch      *stitch.Params     `json:"stitch,omitempty"`
}

// SpecOf converts k to its plain-data form.
func SpecOf(k Kind) KindSpec {
	switch v := k.(type) {
	case LayerKind:
		visible := v.Visible
		return KindSpec{Type: "layer", Visible: &visible, Locked: v.Locked}
	case GroupKind:
		return KindSpec{Type: "group"}
	case ShapeKind:
		spec := KindSpec{
			Type:        "shape",
			Fill:        cloneColor(v.Fill),
			Stroke:      cloneColor(v.Stroke),
			StrokeWidth: v.StrokeWidth,
		}
		if v.Geometry != nil {
			g := geom.SpecOf(v.Geometry)
			spec.Geometry = &g
		}
		p := v.Stitch
		spec.Stitch = &p
		return spec
	}
	return KindSpec{}
}

// Kind converts the plain-data form back into a Kind. Layers default to
// visible and shapes to the default stitch parameters.
func (s KindSpec) Kind() (Kind, error) {
	switch s.Type {
	case "layer":
		visible := s.Visible == nil || *s.Visible
		return LayerKind{Visible: visible, Locked: s.Locked}, nil
	case "group":
		return GroupKind{}, nil
	case "shape":
		if s.Geometry == nil {
			return nil, fmt.Errorf("%w: shape without geometry", ErrInvalidKind)
		}
		g, err := s.Geometry.Geometry()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidKind, err)
		}
		k := NewShape(g)
		k.Fill = cloneColor(s.Fill)
		k.Stroke = cloneColor(s.Stroke)
		if s.StrokeWidth > 0 {
			k.StrokeWidth = s.StrokeWidth
		}
		if s.Stitch != nil {
			if err := s.Stitch.Validate(); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvalidKind, err)
			}
			k.Stitch = *s.Stitch
		}
		return k, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidKind, s.Type)
}

// NodeInfo is the plain-data view of a node.
type NodeInfo struct {
	ID        NodeID         `json:"id"`
	Name      string         `json:"name"`
	Parent    NodeID         `json:"parent,omitempty"`
	Children  []NodeID       `json:"children"`
	Transform geom.Transform `json:"transform"`
	Kind      KindSpec       `json:"kind"`
}

// UnmarshalJSON defaults an omitted transform to the identity.
func (n *NodeInfo) UnmarshalJSON(data []byte) error {
	type plain NodeInfo
	v := plain{Transform: geom.Identity()}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = NodeInfo(v)
	return nil
}

// Info converts n to its plain-data view.
func (n Node) Info() NodeInfo {
	return NodeInfo{
		ID:        n.ID,
		Name:      n.Name,
		Parent:    n.Parent,
		Children:  append([]NodeID{}, n.Children...),
		Transform: n.Transform,
		Kind:      SpecOf(n.Kind),
	}
}

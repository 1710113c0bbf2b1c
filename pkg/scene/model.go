package scene

import (
	"fmt"

	"github.com/chazu/bobbin/pkg/stitch"
	"github.com/chazu/bobbin/pkg/thread"
)

// BlockID identifies a stitch block. A block takes the id of the shape it
// is derived from, so it survives every edit of that shape, including a
// change of stitch type, and is restored by undo with the same id.
type BlockID int64

// ObjectID identifies an embroidery object, likewise keyed by source node.
type ObjectID int64

// EntryExitMode chooses where a block's needle path starts and ends.
type EntryExitMode string

const (
	EntryExitAuto               EntryExitMode = "auto"
	EntryExitPreserveShapeStart EntryExitMode = "preserve_shape_start"
	EntryExitNearestPoint       EntryExitMode = "nearest_point"
)

// TieMode chooses where tie stitches are sewn.
type TieMode string

const (
	TieOff           TieMode = "off"
	TieShapeStartEnd TieMode = "shape_start_end"
	TieColorChange   TieMode = "color_change"
)

// ParseEntryExitMode validates s.
func ParseEntryExitMode(s string) (EntryExitMode, error) {
	switch m := EntryExitMode(s); m {
	case EntryExitAuto, EntryExitPreserveShapeStart, EntryExitNearestPoint:
		return m, nil
	}
	return "", fmt.Errorf("unknown entry/exit mode %q", s)
}

// ParseTieMode validates s.
func ParseTieMode(s string) (TieMode, error) {
	switch m := TieMode(s); m {
	case TieOff, TieShapeStartEnd, TieColorChange:
		return m, nil
	}
	return "", fmt.Errorf("unknown tie mode %q", s)
}

// RoutingOverrides are per-block routing settings. A nil field inherits
// the global routing option.
type RoutingOverrides struct {
	AllowReverse  *bool          `json:"allowReverse"`
	EntryExitMode *EntryExitMode `json:"entryExitMode"`
	TieMode       *TieMode       `json:"tieMode"`
}

// Validate reports an unknown mode in any set field.
func (o RoutingOverrides) Validate() error {
	if o.EntryExitMode != nil {
		if _, err := ParseEntryExitMode(string(*o.EntryExitMode)); err != nil {
			return err
		}
	}
	if o.TieMode != nil {
		if _, err := ParseTieMode(string(*o.TieMode)); err != nil {
			return err
		}
	}
	return nil
}

func (o RoutingOverrides) clone() RoutingOverrides {
	return RoutingOverrides{
		AllowReverse:  clonePtr(o.AllowReverse),
		EntryExitMode: clonePtr(o.EntryExitMode),
		TieMode:       clonePtr(o.TieMode),
	}
}

// CommandOverrides force or suppress machine commands around a block. A nil
// field inherits the router's decision.
type CommandOverrides struct {
	TrimBefore *bool `json:"trimBefore"`
	TrimAfter  *bool `json:"trimAfter"`
	TieIn      *bool `json:"tieIn"`
	TieOut     *bool `json:"tieOut"`
}

func (o CommandOverrides) clone() CommandOverrides {
	return CommandOverrides{
		TrimBefore: clonePtr(o.TrimBefore),
		TrimAfter:  clonePtr(o.TrimAfter),
		TieIn:      clonePtr(o.TieIn),
		TieOut:     clonePtr(o.TieOut),
	}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// EmbroideryObject mirrors a shape node's stitch-relevant fields as of the
// last sync.
type EmbroideryObject struct {
	ID          ObjectID      `json:"id"`
	NodeID      NodeID        `json:"nodeId"`
	Stitch      stitch.Params `json:"stitch"`
	Fill        *thread.Color `json:"fill,omitempty"`
	Stroke      *thread.Color `json:"stroke,omitempty"`
	StrokeWidth float64       `json:"strokeWidth"`
}

func (o *EmbroideryObject) clone() *EmbroideryObject {
	if o == nil {
		return nil
	}
	c := *o
	c.Fill = cloneColor(o.Fill)
	c.Stroke = cloneColor(o.Stroke)
	return &c
}

// StitchBlock is one manufacturing unit derived from an embroidery object.
type StitchBlock struct {
	ID               BlockID          `json:"id"`
	ObjectID         ObjectID         `json:"objectId"`
	SourceNodeID     NodeID           `json:"sourceNodeId"`
	StitchType       stitch.Type      `json:"stitchType"`
	Color            *thread.Color    `json:"color,omitempty"`
	RoutingOverrides RoutingOverrides `json:"routingOverrides"`
	CommandOverrides CommandOverrides `json:"commandOverrides"`
}

func (b *StitchBlock) clone() *StitchBlock {
	if b == nil {
		return nil
	}
	c := *b
	c.Color = cloneColor(b.Color)
	c.RoutingOverrides = b.RoutingOverrides.clone()
	c.CommandOverrides = b.CommandOverrides.clone()
	return &c
}

// SequenceTrack is the machine execution order of blocks.
type SequenceTrack struct {
	OrderedBlockIDs []BlockID `json:"orderedBlockIds"`
}

// objectFor derives the embroidery object of a shape node.
func objectFor(n *Node, k ShapeKind) *EmbroideryObject {
	return &EmbroideryObject{
		ID:          ObjectID(n.ID),
		NodeID:      n.ID,
		Stitch:      k.Stitch,
		Fill:        cloneColor(k.Fill),
		Stroke:      cloneColor(k.Stroke),
		StrokeWidth: k.StrokeWidth,
	}
}

// threadColor picks the color a shape sews with: the fill for area types,
// the stroke for line types, each falling back to the other.
func threadColor(k ShapeKind) *thread.Color {
	first, second := k.Stroke, k.Fill
	if k.Stitch.Type.IsFill() {
		first, second = k.Fill, k.Stroke
	}
	if first != nil {
		return cloneColor(first)
	}
	return cloneColor(second)
}

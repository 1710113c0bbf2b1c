// Package stitch turns shape outlines into ordered needle penetrations.
//
// Every generator is a pure function of its input polylines and options.
// Coordinates are millimeters in whatever space the caller supplies; the
// scene hands over world-space outlines.
package stitch

import (
	"fmt"

	"github.com/chazu/bobbin/pkg/geom"
)

const (
	DefaultDensity         = 0.45
	DefaultStitchLength    = 2.5
	DefaultUnderlaySpacing = 2.0
	MinSatinDensity        = 0.1
	MinFillDensity         = 0.1
	MinSatinWidth          = 0.6
)

// MinStitch is the shortest stitch a satin or lettering column emits.
const MinStitch = 0.3

// Type enumerates the stitch types a shape can carry.
type Type string

const (
	TypeRunning   Type = "running"
	TypeSatin     Type = "satin"
	TypeTatami    Type = "tatami"
	TypeContour   Type = "contour"
	TypeSpiral    Type = "spiral"
	TypeMotif     Type = "motif"
	TypeLettering Type = "lettering"
)

// Types lists every stitch type in declaration order.
var Types = []Type{TypeRunning, TypeSatin, TypeTatami, TypeContour, TypeSpiral, TypeMotif, TypeLettering}

// ParseType converts a string to a Type.
func ParseType(s string) (Type, error) {
	for _, t := range Types {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown stitch type %q", s)
}

// IsFill reports whether the type covers an area.
func (t Type) IsFill() bool {
	switch t {
	case TypeTatami, TypeContour, TypeSpiral, TypeMotif:
		return true
	}
	return false
}

// UnderlayMode selects the preparatory passes sewn before a satin column.
type UnderlayMode string

const (
	UnderlayCenterWalk   UnderlayMode = "center_walk"
	UnderlayEdgeWalk     UnderlayMode = "edge_walk"
	UnderlayZigzag       UnderlayMode = "zigzag"
	UnderlayCenterEdge   UnderlayMode = "center_edge"
	UnderlayCenterZigzag UnderlayMode = "center_zigzag"
	UnderlayEdgeZigzag   UnderlayMode = "edge_zigzag"
	UnderlayFull         UnderlayMode = "full"
)

// passes reports which underlay passes the mode enables.
func (m UnderlayMode) passes() (center, edge, zigzag bool) {
	switch m {
	case UnderlayCenterWalk:
		return true, false, false
	case UnderlayEdgeWalk:
		return false, true, false
	case UnderlayZigzag:
		return false, false, true
	case UnderlayCenterEdge:
		return true, true, false
	case UnderlayCenterZigzag:
		return true, false, true
	case UnderlayEdgeZigzag:
		return false, true, true
	case UnderlayFull:
		return true, true, true
	}
	return true, false, false
}

// CompensationMode selects how pull compensation is applied.
type CompensationMode string

const (
	CompensationOff         CompensationMode = "off"
	CompensationAuto        CompensationMode = "auto"
	CompensationDirectional CompensationMode = "directional"
)

// FillStartMode selects where a fill begins.
type FillStartMode string

const (
	FillStartAuto      FillStartMode = "auto"
	FillStartReverse   FillStartMode = "reverse"
	FillStartInsideOut FillStartMode = "inside_out"
)

// MotifPattern is the unit shape repeated by a motif fill.
type MotifPattern string

const (
	MotifDiamond  MotifPattern = "diamond"
	MotifWave     MotifPattern = "wave"
	MotifTriangle MotifPattern = "triangle"
)

// Underlay configures preparatory stitching.
type Underlay struct {
	Mode      UnderlayMode `json:"mode"`
	SpacingMm float64      `json:"spacingMm"`
	Enabled   bool         `json:"enabled"`
}

// Compensation configures pull compensation.
type Compensation struct {
	Mode             CompensationMode `json:"mode"`
	PullCompensation float64          `json:"pullCompensation"`
	XMm              float64          `json:"xMm"`
	YMm              float64          `json:"yMm"`
}

// Params is the full stitch parameter set of a shape. Fields that do not
// apply to Type are kept as-is so switching type back restores them.
type Params struct {
	Type         Type         `json:"type"`
	Density      float64      `json:"density"`
	Angle        float64      `json:"angle"` // degrees
	Underlay     Underlay     `json:"underlay"`
	Compensation Compensation `json:"compensation"`

	MinSegmentMm   float64       `json:"minSegmentMm"`
	OverlapMm      float64       `json:"overlapMm"`
	EdgeWalkOnFill bool          `json:"edgeWalkOnFill"`
	FillStartMode  FillStartMode `json:"fillStartMode"`
	ContourStepMm  float64       `json:"contourStepMm"`
	MotifPattern   MotifPattern  `json:"motifPattern"`
	MotifScale     float64       `json:"motifScale"`
	FillPhase      float64       `json:"fillPhase"`

	// StitchLengthMm overrides the export stitch length when positive.
	StitchLengthMm float64 `json:"stitchLengthMm,omitempty"`
	// MaxStitchMm splits running stitches longer than this when positive.
	MaxStitchMm float64 `json:"maxStitchMm,omitempty"`
	BeanStitch  bool    `json:"beanStitch,omitempty"`
}

// DefaultParams returns the parameters new shapes start with.
func DefaultParams() Params {
	return Params{
		Type:    TypeRunning,
		Density: DefaultDensity,
		Angle:   45,
		Underlay: Underlay{
			Mode:      UnderlayCenterWalk,
			SpacingMm: DefaultUnderlaySpacing,
			Enabled:   true,
		},
		Compensation: Compensation{
			Mode:             CompensationAuto,
			PullCompensation: 0.2,
		},
		MinSegmentMm:  0.4,
		OverlapMm:     0.2,
		FillStartMode: FillStartAuto,
		ContourStepMm: 0,
		MotifPattern:  MotifDiamond,
		MotifScale:    1,
		FillPhase:     0,
	}
}

// Validate rejects values no generator can use.
func (p Params) Validate() error {
	if _, err := ParseType(string(p.Type)); err != nil {
		return err
	}
	if p.Density < 0 {
		return fmt.Errorf("density %.3f must not be negative", p.Density)
	}
	if p.Underlay.SpacingMm < 0 {
		return fmt.Errorf("underlay spacing %.3f must not be negative", p.Underlay.SpacingMm)
	}
	if p.MotifScale < 0 {
		return fmt.Errorf("motif scale %.3f must not be negative", p.MotifScale)
	}
	switch p.Compensation.Mode {
	case "", CompensationOff, CompensationAuto, CompensationDirectional:
	default:
		return fmt.Errorf("unknown compensation mode %q", p.Compensation.Mode)
	}
	switch p.MotifPattern {
	case "", MotifDiamond, MotifWave, MotifTriangle:
	default:
		return fmt.Errorf("unknown motif pattern %q", p.MotifPattern)
	}
	return nil
}

// Stitch is one needle penetration. Jump means the needle travels to Pos
// without sewing; Trim means the thread is cut after Pos.
type Stitch struct {
	Pos  geom.Point `json:"pos"`
	Jump bool       `json:"jump,omitempty"`
	Trim bool       `json:"trim,omitempty"`
}

// Points extracts the positions of a stitch run.
func Points(sts []Stitch) []geom.Point {
	out := make([]geom.Point, len(sts))
	for i, s := range sts {
		out[i] = s.Pos
	}
	return out
}

func plain(pts []geom.Point) []Stitch {
	out := make([]Stitch, len(pts))
	for i, p := range pts {
		out[i] = Stitch{Pos: p}
	}
	return out
}

func density(d, floor float64) float64 {
	if d <= 0 {
		return DefaultDensity
	}
	return max(d, floor)
}

func length(l float64) float64 {
	if l <= 0 {
		return DefaultStitchLength
	}
	return l
}

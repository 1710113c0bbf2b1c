// Package route lowers a scene's stitch blocks into one machine stitch
// stream. It orders and orients the blocks, inserts ties, trims, jumps and
// color changes between them, and scores the result.
//
// Per-block routing overrides are resolved against the global Options each
// time a route is built, so changing a global option affects every block
// that does not override it.
package route

import (
	"errors"
	"fmt"

	"github.com/chazu/bobbin/pkg/scene"
)

var ErrInvalidOptions = errors.New("route: invalid options")

// Policy weights the optimizer's objective.
type Policy string

const (
	PolicyBalanced  Policy = "balanced"
	PolicyMinTravel Policy = "min_travel"
	PolicyMinTrims  Policy = "min_trims"
)

// SequenceMode decides whether blocks may be reordered.
type SequenceMode string

const (
	// SequenceStrict sews blocks in sequence track order.
	SequenceStrict SequenceMode = "strict_sequencer"
	// SequenceOptimizer reorders blocks within color and layer buckets.
	SequenceOptimizer SequenceMode = "optimizer"
)

// Options are the global routing settings.
type Options struct {
	Policy                   Policy              `json:"policy"`
	MaxJumpMm                float64             `json:"maxJumpMm"`
	TrimThresholdMm          float64             `json:"trimThresholdMm"`
	PreserveColorOrder       bool                `json:"preserveColorOrder"`
	PreserveLayerOrder       bool                `json:"preserveLayerOrder"`
	AllowReverse             bool                `json:"allowReverse"`
	AllowColorMerge          bool                `json:"allowColorMerge"`
	AllowUnderpath           bool                `json:"allowUnderpath"`
	EntryExitMode            scene.EntryExitMode `json:"entryExitMode"`
	TieMode                  scene.TieMode       `json:"tieMode"`
	MinStitchRunBeforeTrimMm float64             `json:"minStitchRunBeforeTrimMm"`
	SequenceMode             SequenceMode        `json:"sequenceMode"`
}

// DefaultOptions returns the routing defaults.
func DefaultOptions() Options {
	return Options{
		Policy:                   PolicyBalanced,
		MaxJumpMm:                12.1,
		TrimThresholdMm:          12,
		PreserveColorOrder:       true,
		PreserveLayerOrder:       false,
		AllowReverse:             true,
		AllowColorMerge:          false,
		AllowUnderpath:           false,
		EntryExitMode:            scene.EntryExitAuto,
		TieMode:                  scene.TieShapeStartEnd,
		MinStitchRunBeforeTrimMm: 1.5,
		SequenceMode:             SequenceStrict,
	}
}

// Validate rejects options the router cannot honor.
func (o Options) Validate() error {
	switch o.Policy {
	case PolicyBalanced, PolicyMinTravel, PolicyMinTrims:
	default:
		return fmt.Errorf("%w: unknown policy %q", ErrInvalidOptions, o.Policy)
	}
	switch o.SequenceMode {
	case SequenceStrict, SequenceOptimizer:
	default:
		return fmt.Errorf("%w: unknown sequence mode %q", ErrInvalidOptions, o.SequenceMode)
	}
	if _, err := scene.ParseEntryExitMode(string(o.EntryExitMode)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	if _, err := scene.ParseTieMode(string(o.TieMode)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	if o.MaxJumpMm <= 0 {
		return fmt.Errorf("%w: maxJumpMm %.2f must be positive", ErrInvalidOptions, o.MaxJumpMm)
	}
	if o.TrimThresholdMm < 0 || o.MinStitchRunBeforeTrimMm < 0 {
		return fmt.Errorf("%w: trim thresholds must not be negative", ErrInvalidOptions)
	}
	return nil
}

// Weights are the per-event costs of a policy. Every weight is positive,
// so the score falls whenever jumps, trims, color changes or travel fall.
type Weights struct {
	Jump        float64 `json:"jump"`
	Trim        float64 `json:"trim"`
	ColorChange float64 `json:"colorChange"`
	TravelPerMm float64 `json:"travelPerMm"`
}

// Weights returns the policy's cost weights.
func (p Policy) Weights() Weights {
	switch p {
	case PolicyMinTravel:
		return Weights{Jump: 0.1, Trim: 0.5, ColorChange: 1, TravelPerMm: 1}
	case PolicyMinTrims:
		return Weights{Jump: 0.25, Trim: 5, ColorChange: 20, TravelPerMm: 0.05}
	default:
		return Weights{Jump: 1, Trim: 2, ColorChange: 10, TravelPerMm: 0.2}
	}
}

// Effective is a block's routing settings after override resolution.
type Effective struct {
	AllowReverse  bool                `json:"allowReverse"`
	EntryExitMode scene.EntryExitMode `json:"entryExitMode"`
	TieMode       scene.TieMode       `json:"tieMode"`
}

// Resolve applies a block's routing overrides over the global options, one
// field at a time.
func Resolve(o scene.RoutingOverrides, opts Options) Effective {
	e := Effective{
		AllowReverse:  opts.AllowReverse,
		EntryExitMode: opts.EntryExitMode,
		TieMode:       opts.TieMode,
	}
	if o.AllowReverse != nil {
		e.AllowReverse = *o.AllowReverse
	}
	if o.EntryExitMode != nil {
		e.EntryExitMode = *o.EntryExitMode
	}
	if o.TieMode != nil {
		e.TieMode = *o.TieMode
	}
	return e
}

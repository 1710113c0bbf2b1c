package route

import (
	"errors"
	"fmt"

	"github.com/chazu/bobbin/pkg/format"
)

// Machine is the timing model used to simulate sewing.
type Machine struct {
	StitchesPerMinute  float64 `json:"stitchesPerMinute"`
	JumpSeconds        float64 `json:"jumpSeconds"`
	TrimSeconds        float64 `json:"trimSeconds"`
	ColorChangeSeconds float64 `json:"colorChangeSeconds"`
}

// DefaultMachine returns a typical single-head home machine.
func DefaultMachine() Machine {
	return Machine{
		StitchesPerMinute:  700,
		JumpSeconds:        0.1,
		TrimSeconds:        2,
		ColorChangeSeconds: 15,
	}
}

// Validate rejects timings that would stall the simulation.
func (m Machine) Validate() error {
	if m.StitchesPerMinute <= 0 {
		return errors.New("route: stitchesPerMinute must be positive")
	}
	if m.JumpSeconds < 0 || m.TrimSeconds < 0 || m.ColorChangeSeconds < 0 {
		return fmt.Errorf("route: machine timings must not be negative")
	}
	return nil
}

// Frame is one step of a sewing simulation.
type Frame struct {
	Index      int               `json:"index"`
	X          float64           `json:"x"`
	Y          float64           `json:"y"`
	Type       format.StitchType `json:"type"`
	ColorIndex int               `json:"colorIndex"`
	Seconds    float64           `json:"seconds"` // elapsed when the step completes
}

// TimelineSummary totals a simulation.
type TimelineSummary struct {
	Frames       int     `json:"frames"`
	Stitches     int     `json:"stitches"`
	Jumps        int     `json:"jumps"`
	Trims        int     `json:"trims"`
	ColorChanges int     `json:"colorChanges"`
	Colors       int     `json:"colors"`
	Seconds      float64 `json:"seconds"`
}

// Timeline simulates sewing d on m, one frame per stitch command.
func Timeline(d format.Design, m Machine) ([]Frame, TimelineSummary) {
	perStitch := 0.0
	if m.StitchesPerMinute > 0 {
		perStitch = 60 / m.StitchesPerMinute
	}
	frames := make([]Frame, 0, len(d.Stitches))
	var sum TimelineSummary
	color := 0
	elapsed := 0.0
	for i, s := range d.Stitches {
		switch s.Type {
		case format.Normal:
			elapsed += perStitch
			sum.Stitches++
		case format.Jump:
			elapsed += m.JumpSeconds
			sum.Jumps++
		case format.Trim:
			elapsed += m.TrimSeconds
			sum.Trims++
		case format.ColorChange:
			elapsed += m.ColorChangeSeconds
			sum.ColorChanges++
			color++
		}
		frames = append(frames, Frame{
			Index:      i,
			X:          s.X,
			Y:          s.Y,
			Type:       s.Type,
			ColorIndex: color,
			Seconds:    elapsed,
		})
	}
	sum.Frames = len(frames)
	sum.Colors = len(d.Colors)
	sum.Seconds = elapsed
	return frames, sum
}

// Window returns at most limit frames starting at offset.
func Window(frames []Frame, offset, limit int) []Frame {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(frames) || limit <= 0 {
		return []Frame{}
	}
	end := min(offset+limit, len(frames))
	return frames[offset:end]
}

package conv

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-reflect/dsp/core"
)

// Errors returned by render parameter validation.
var (
	ErrPercentageRange = errors.New("conv: percentage must be in [0, 1]")
	ErrTimeBoundRange  = errors.New("conv: time bound must be non-negative")
	ErrNonFiniteParam  = errors.New("conv: render parameter is not finite")
)

// RenderParams shape how each tap reads the source clip.
type RenderParams struct {
	// Percentage of the remaining clip copied per tap.
	Percentage float64

	// Loop wraps the read offset inside the clip instead of dropping taps
	// whose offset falls past its end.
	Loop bool

	// AccelerationSlope scales the read speed with tap time:
	// readSpeed = 1 + AccelerationSlope*tapTime.
	AccelerationSlope float64

	// TimeBound moves the read start to TimeBound*tapDelaySamples.
	TimeBound float64
}

// DefaultRenderParams returns identity parameters: every tap copies the
// whole clip from its start at normal speed.
func DefaultRenderParams() RenderParams {
	return RenderParams{Percentage: 1}
}

// Validate reports whether p can be used for rendering.
func (p RenderParams) Validate() error {
	if !core.Finite(p.Percentage, p.AccelerationSlope, p.TimeBound) {
		return ErrNonFiniteParam
	}
	if p.Percentage < 0 || p.Percentage > 1 {
		return fmt.Errorf("%w: %g", ErrPercentageRange, p.Percentage)
	}
	if p.TimeBound < 0 {
		return fmt.Errorf("%w: %g", ErrTimeBoundRange, p.TimeBound)
	}
	return nil
}

// IsIdentity reports whether p leaves the source untouched, which makes
// the render a plain linear convolution.
func (p RenderParams) IsIdentity() bool {
	return p.Percentage == 1 && !p.Loop && p.AccelerationSlope == 0 && p.TimeBound == 0
}

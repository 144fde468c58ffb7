package propagation

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-reflect/dsp/core"
)

// Errors returned when propagation parameters are rejected.
var (
	ErrGainRange = errors.New("propagation: gain must be in (0, 1)")
	ErrRxMinGain = errors.New("propagation: rxMinGain must be positive")
	ErrNonFinite = errors.New("propagation: parameter must be finite")
)

// MinSpeed is the smallest propagation speed magnitude used in divisions.
const MinSpeed = 1e-3

// Params controls how amplitude and time evolve along a path.
type Params struct {
	// Speed is the propagation speed in room units per second. It may be
	// negative, which makes arrivals precede the emission.
	Speed float64

	// Gain is the attenuation per unit distance. It must lie in (0, 1) so
	// every reflection chain decays below RxMinGain.
	Gain float64

	// RxMinGain is the amplitude floor below which taps are discarded.
	RxMinGain float64
}

// DefaultParams returns the parameters used when none are configured.
func DefaultParams() Params {
	return Params{
		Speed:     10,
		Gain:      0.85,
		RxMinGain: 0.1,
	}
}

// Validate rejects parameters that would make reflection chains unbounded.
func (p Params) Validate() error {
	if !core.Finite(p.Speed, p.Gain, p.RxMinGain) {
		return ErrNonFinite
	}
	if !(p.Gain > 0 && p.Gain < 1) {
		return fmt.Errorf("%w: %g", ErrGainRange, p.Gain)
	}
	if !(p.RxMinGain > 0) {
		return fmt.Errorf("%w: %g", ErrRxMinGain, p.RxMinGain)
	}
	return nil
}

// EffectiveSpeed returns Speed with magnitudes below MinSpeed raised to MinSpeed.
func (p Params) EffectiveSpeed() float64 {
	if math.Abs(p.Speed) < MinSpeed {
		return MinSpeed
	}
	return p.Speed
}

// TravelTime returns the time needed to cover dist.
func (p Params) TravelTime(dist float64) float64 {
	return dist / p.EffectiveSpeed()
}

// Attenuation returns Gain^dist.
func (p Params) Attenuation(dist float64) float64 {
	return math.Pow(p.Gain, dist)
}

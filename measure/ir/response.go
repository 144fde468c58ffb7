package ir

import (
	"errors"
	"math"

	"github.com/cwbudde/algo-reflect/dsp/core"
)

// Errors returned by impulse response constructors and renderers.
var (
	ErrTapMismatch       = errors.New("ir: times and gains differ in length")
	ErrInvalidSampleRate = errors.New("ir: sample rate must be positive")
	ErrNonFiniteTap      = errors.New("ir: tap time or gain is not finite")
)

// ImpulseResponse is a sparse impulse response: unordered (time, gain) taps
// as seen by one receiver. Near-simultaneous taps are kept separately.
type ImpulseResponse struct {
	Times []float64
	Gains []float64

	// Duration is the latest tap time.
	Duration float64
}

// New builds an impulse response from parallel tap slices and computes its
// duration. The slices are used without copying.
func New(times, gains []float64) (ImpulseResponse, error) {
	if len(times) != len(gains) {
		return ImpulseResponse{}, ErrTapMismatch
	}
	for i := range times {
		if !core.Finite(times[i], gains[i]) {
			return ImpulseResponse{}, ErrNonFiniteTap
		}
	}
	if times == nil {
		times, gains = []float64{}, []float64{}
	}
	return ImpulseResponse{Times: times, Gains: gains, Duration: maxOf(times)}, nil
}

// Empty returns an impulse response with no taps. It differs from a missing
// response: the receiver was computed and hears nothing.
func Empty() ImpulseResponse {
	return ImpulseResponse{Times: []float64{}, Gains: []float64{}}
}

// Len returns the number of taps.
func (r ImpulseResponse) Len() int {
	return len(r.Times)
}

// Append adds one tap and extends Duration when needed.
func (r *ImpulseResponse) Append(time, gain float64) {
	if len(r.Times) == 0 || time > r.Duration {
		r.Duration = time
	}
	r.Times = append(r.Times, time)
	r.Gains = append(r.Gains, gain)
}

// MaxGain returns the largest tap gain, or 0 for an empty response.
func (r ImpulseResponse) MaxGain() float64 {
	if len(r.Gains) == 0 {
		return 0
	}
	return maxOf(r.Gains)
}

// Shift returns a copy with every tap time moved by -offset.
func (r ImpulseResponse) Shift(offset float64) ImpulseResponse {
	out := ImpulseResponse{
		Times: make([]float64, len(r.Times)),
		Gains: make([]float64, len(r.Gains)),
	}
	copy(out.Gains, r.Gains)
	for i, t := range r.Times {
		out.Times[i] = t - offset
	}
	out.Duration = maxOf(out.Times)
	return out
}

// Render samples the taps onto a dense kernel at sampleRate. Each tap is
// rounded to the nearest sample and coincident taps are summed; taps before
// time zero are dropped. The kernel is one sample longer than the last tap.
func (r ImpulseResponse) Render(sampleRate float64) ([]float64, error) {
	if sampleRate <= 0 {
		return nil, ErrInvalidSampleRate
	}
	if len(r.Times) == 0 {
		return []float64{}, nil
	}

	last := 0
	for _, t := range r.Times {
		if idx := int(math.Round(t * sampleRate)); idx > last {
			last = idx
		}
	}

	kernel := make([]float64, last+1)
	for i, t := range r.Times {
		idx := int(math.Round(t * sampleRate))
		if idx < 0 {
			continue
		}
		kernel[idx] += r.Gains[i]
	}
	return kernel, nil
}

func maxOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}

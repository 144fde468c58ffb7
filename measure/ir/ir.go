package ir

import (
	"errors"
	"math"
)

// Errors returned by IR analysis functions.
var (
	ErrEmptyIR     = errors.New("ir: impulse response is empty")
	ErrInvalidTime = errors.New("ir: time must be positive")
	ErrNoDecay     = errors.New("ir: insufficient decay for EDT calculation")
)

// Metrics holds analysis results for a sparse impulse response.
type Metrics struct {
	Taps         int
	Energy       float64 // sum of squared tap gains
	FirstArrival float64 // earliest tap time in seconds
	PeakTime     float64 // time of the loudest tap
	PeakGain     float64
	CenterTime   float64 // energy centroid in seconds, relative to FirstArrival
	D50          float64 // definition at 50ms (ratio 0-1)
	C50          float64 // clarity at 50ms in dB
	C80          float64 // clarity at 80ms in dB
	EDT          float64 // early decay time in seconds, 0 if undefined
}

// Analyzer computes metrics from sparse impulse responses.
// SampleRate is only used for the Schroeder-based decay estimate.
type Analyzer struct {
	SampleRate float64
}

// NewAnalyzer creates an IR analyzer with the given sample rate.
func NewAnalyzer(sampleRate float64) *Analyzer {
	return &Analyzer{SampleRate: sampleRate}
}

// Analyze computes all metrics. Time windows (D50, C50, C80) start at the
// first arrival, so a response that was not shifted to zero still measures
// its own early energy.
func (a *Analyzer) Analyze(r ImpulseResponse) (Metrics, error) {
	if r.Len() == 0 {
		return Metrics{}, ErrEmptyIR
	}
	if a.SampleRate <= 0 {
		return Metrics{}, ErrInvalidSampleRate
	}

	m := Metrics{
		Taps:         r.Len(),
		FirstArrival: r.Times[0],
		PeakTime:     r.Times[0],
	}
	for i, t := range r.Times {
		g := r.Gains[i]
		m.Energy += g * g
		if t < m.FirstArrival {
			m.FirstArrival = t
		}
		if math.Abs(g) > m.PeakGain {
			m.PeakGain = math.Abs(g)
			m.PeakTime = t
		}
	}

	m.CenterTime = a.centerTime(r, m.FirstArrival)
	m.D50 = a.definition(r, m.FirstArrival, 50)
	m.C50 = a.clarity(r, m.FirstArrival, 50)
	m.C80 = a.clarity(r, m.FirstArrival, 80)

	if edt, err := a.EDT(r); err == nil {
		m.EDT = edt
	}

	return m, nil
}

// Definition computes D(t): the share of tap energy arriving within timeMs
// of the first arrival.
func (a *Analyzer) Definition(r ImpulseResponse, timeMs float64) (float64, error) {
	if r.Len() == 0 {
		return 0, ErrEmptyIR
	}
	if timeMs <= 0 {
		return 0, ErrInvalidTime
	}
	return a.definition(r, minOf(r.Times), timeMs), nil
}

func (a *Analyzer) definition(r ImpulseResponse, start, timeMs float64) float64 {
	early, total := splitEnergy(r, start+timeMs*0.001)
	if total <= 0 {
		return 0
	}
	return early / total
}

// Clarity computes C(t) = 10*log10(early/late) in dB with the boundary
// timeMs after the first arrival.
func (a *Analyzer) Clarity(r ImpulseResponse, timeMs float64) (float64, error) {
	if r.Len() == 0 {
		return 0, ErrEmptyIR
	}
	if timeMs <= 0 {
		return 0, ErrInvalidTime
	}
	return a.clarity(r, minOf(r.Times), timeMs), nil
}

func (a *Analyzer) clarity(r ImpulseResponse, start, timeMs float64) float64 {
	early, total := splitEnergy(r, start+timeMs*0.001)
	late := total - early
	if late <= 0 {
		return math.Inf(1)
	}
	if early <= 0 {
		return math.Inf(-1)
	}
	return 10 * math.Log10(early/late)
}

func (a *Analyzer) centerTime(r ImpulseResponse, start float64) float64 {
	var num, den float64
	for i, t := range r.Times {
		e := r.Gains[i] * r.Gains[i]
		num += (t - start) * e
		den += e
	}
	if den <= 0 {
		return 0
	}
	return num / den
}

// EDT estimates the early decay time: the Schroeder curve of the rendered
// response is fitted between 0 and -10 dB and extrapolated to -60 dB.
func (a *Analyzer) EDT(r ImpulseResponse) (float64, error) {
	if r.Len() == 0 {
		return 0, ErrEmptyIR
	}
	kernel, err := r.Shift(minOf(r.Times)).Render(a.SampleRate)
	if err != nil {
		return 0, err
	}

	schroeder := schroederDB(kernel)
	slope, ok := decaySlope(schroeder, 0, -10)
	if !ok {
		return 0, ErrNoDecay
	}
	return -60 / (slope * a.SampleRate), nil
}

// splitEnergy returns the energy of taps before boundary and the total.
func splitEnergy(r ImpulseResponse, boundary float64) (early, total float64) {
	for i, t := range r.Times {
		e := r.Gains[i] * r.Gains[i]
		total += e
		if t < boundary {
			early += e
		}
	}
	return early, total
}

// schroederDB is the normalized backward-integrated energy in dB.
func schroederDB(h []float64) []float64 {
	out := make([]float64, len(h))
	var cum float64
	for i := len(h) - 1; i >= 0; i-- {
		cum += h[i] * h[i]
		out[i] = cum
	}
	if len(out) == 0 || out[0] <= 0 {
		return out
	}
	total := out[0]
	for i, v := range out {
		if v <= 0 {
			out[i] = -200
			continue
		}
		out[i] = 10 * math.Log10(v/total)
	}
	return out
}

// decaySlope fits a line (dB per sample) to the Schroeder curve between
// startDB and endDB. It reports false when the curve never reaches endDB
// or does not decay.
func decaySlope(curve []float64, startDB, endDB float64) (float64, bool) {
	startIdx, endIdx := -1, -1
	for i, v := range curve {
		if startIdx < 0 && v <= startDB {
			startIdx = i
		}
		if startIdx >= 0 && v <= endDB {
			endIdx = i
			break
		}
	}
	if startIdx < 0 || endIdx <= startIdx {
		return 0, false
	}

	var sumX, sumY, sumXX, sumXY float64
	n := float64(endIdx - startIdx + 1)
	for i := startIdx; i <= endIdx; i++ {
		x := float64(i - startIdx)
		sumX += x
		sumY += curve[i]
		sumXX += x * x
		sumXY += x * curve[i]
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, false
	}
	slope := (n*sumXY - sumX*sumY) / denom
	if slope >= 0 {
		return 0, false
	}
	return slope, true
}

func minOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m
}

// Package irbuild turns source images into one sparse impulse response per
// receiver.
package irbuild

import (
	"math"

	"github.com/cwbudde/algo-reflect/acoustics/propagation"
	"github.com/cwbudde/algo-reflect/acoustics/room"
	"github.com/cwbudde/algo-reflect/measure/ir"
)

// Result holds the responses of one emission.
type Result struct {
	// IRs is aligned with the receivers passed to Build. Receivers that hear
	// nothing get an empty, non-nil response.
	IRs []ir.ImpulseResponse

	// MinTime is the earliest arrival over all receivers, 0 when no tap
	// qualified. It may be negative when the speed is negative.
	MinTime float64
}

// Build computes, for every receiver, a tap per image with
// arrival = image.Time + dist/speed and gain = image.Amplitude * gain^dist,
// keeping only taps with gain >= p.RxMinGain.
func Build(images []propagation.SourceImage, receivers []room.Vec2, p propagation.Params) Result {
	res := Result{IRs: make([]ir.ImpulseResponse, len(receivers))}

	minTime := math.Inf(1)
	for i, rx := range receivers {
		r := ir.Empty()
		for _, img := range images {
			dist := rx.Dist(img.Position)
			gain := img.Amplitude * p.Attenuation(dist)
			if gain < p.RxMinGain {
				continue
			}
			arrival := img.Time + p.TravelTime(dist)
			r.Append(arrival, gain)
			if arrival < minTime {
				minTime = arrival
			}
		}
		res.IRs[i] = r
	}

	if !math.IsInf(minTime, 1) {
		res.MinTime = minTime
	}
	return res
}

// Taps returns the total number of taps over all receivers.
func (r Result) Taps() int {
	n := 0
	for _, resp := range r.IRs {
		n += resp.Len()
	}
	return n
}

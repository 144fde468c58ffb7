// Package ir holds the sparse impulse response exchanged between the
// propagation pipeline and the renderers, together with a few room acoustic
// metrics computed directly from its taps.
//
// An [ImpulseResponse] is a list of (time, gain) taps, one per source image
// heard by a receiver. Taps are unordered and not de-duplicated. A response
// with zero taps is a valid, silent response.
//
// The [Analyzer] reports:
//
//   - Energy and tap count
//   - First arrival and the loudest tap
//   - Center Time: temporal energy centroid after the first arrival
//   - D50: early energy fraction within 50ms of the first arrival
//   - C50, C80: early-to-late energy ratio in dB
//   - EDT: early decay time from the Schroeder curve of the rendered taps
//
// # Usage
//
//	r, err := ir.New(times, gains)
//	metrics, err := ir.NewAnalyzer(48000).Analyze(r)
//	kernel, err := r.Render(48000) // dense kernel for FFT convolution
package ir

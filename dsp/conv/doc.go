// Package conv renders a sparse impulse response against a mono source clip.
//
// Every tap adds a delayed, scaled copy of the source into the output. The
// render parameters bend that copy: Percentage shortens it, TimeBound moves
// the read start proportionally to the tap delay, Loop wraps that start
// inside the clip and AccelerationSlope speeds up (or slows down) later taps.
//
// # Usage
//
//	c := conv.NewConvolver(core.WithSampleRate(48000))
//	out, err := c.Render(response, clip, conv.DefaultRenderParams())
//	// play out.Buffer scaled by out.NormFactor * masterGain
//	c.Release(out)
//
// The output is never rescaled. NormFactor is the single scalar to apply
// at playback time.
//
// # Algorithm Selection
//
// With identity render parameters and at least [DenseTapThreshold] taps the
// response is rendered to a dense kernel and convolved with FFT-based
// overlap-add. Otherwise each tap is accumulated directly.
package conv

package buffer

import vecmath "github.com/cwbudde/algo-vecmath"

// Buffer is a mono clip: a float64 slice tagged with its sample rate.
// DSP functions accept raw []float64; use Samples() to bridge.
type Buffer struct {
	samples    []float64
	sampleRate float64
}

// New returns a zero-filled Buffer of the given length.
func New(length int, sampleRate float64) *Buffer {
	if length < 0 {
		length = 0
	}
	return &Buffer{samples: make([]float64, length), sampleRate: sampleRate}
}

// FromSlice wraps an existing slice without copying.
// Mutations to the slice are visible through the Buffer and vice versa.
func FromSlice(s []float64, sampleRate float64) *Buffer {
	return &Buffer{samples: s, sampleRate: sampleRate}
}

// Samples returns the underlying slice.
func (b *Buffer) Samples() []float64 {
	return b.samples
}

// Len returns the current number of samples.
func (b *Buffer) Len() int {
	return len(b.samples)
}

// SampleRate returns the sample rate in Hz.
func (b *Buffer) SampleRate() float64 {
	return b.sampleRate
}

// Duration returns the clip length in seconds, 0 without a sample rate.
func (b *Buffer) Duration() float64 {
	if b.sampleRate <= 0 {
		return 0
	}
	return float64(len(b.samples)) / b.sampleRate
}

// Peak returns the largest absolute sample value.
func (b *Buffer) Peak() float64 {
	if len(b.samples) == 0 {
		return 0
	}
	return vecmath.MaxAbs(b.samples)
}

// Resize sets the length to n, reusing existing capacity when possible.
// New elements beyond the previous length are zeroed.
func (b *Buffer) Resize(n int) {
	if n < 0 {
		n = 0
	}
	oldLen := len(b.samples)
	if n <= cap(b.samples) {
		b.samples = b.samples[:n]
	} else {
		s := make([]float64, n)
		copy(s, b.samples)
		b.samples = s
	}
	// The backing array may hold stale data from an earlier rendering.
	if n > oldLen {
		clear(b.samples[oldLen:n])
	}
}

// Zero sets all samples to 0.
func (b *Buffer) Zero() {
	clear(b.samples)
}

// Copy returns a deep copy of the buffer.
func (b *Buffer) Copy() *Buffer {
	s := make([]float64, len(b.samples))
	copy(s, b.samples)
	return &Buffer{samples: s, sampleRate: b.sampleRate}
}

package conv

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-reflect/dsp/buffer"
	"github.com/cwbudde/algo-reflect/dsp/core"
	"github.com/cwbudde/algo-reflect/measure/ir"
	vecmath "github.com/cwbudde/algo-vecmath"
)

// Errors returned by the convolver.
var (
	ErrEmptyInput         = errors.New("conv: empty input")
	ErrEmptyKernel        = errors.New("conv: empty kernel")
	ErrSampleRateMismatch = errors.New("conv: source sample rate differs from convolver")
	ErrInvalidBlockSize   = errors.New("conv: invalid block size")
	ErrLengthMismatch     = errors.New("conv: buffer length mismatch")
	ErrTooLong            = errors.New("conv: impulse response longer than the render limit")
)

// DenseTapThreshold is the tap count from which identity renders switch to
// FFT convolution.
const DenseTapThreshold = 64

// Output is one rendered emission.
type Output struct {
	Buffer *buffer.Buffer

	// NormFactor = max(tapGains) / max(maxAbs(Buffer), 1). Playback applies
	// NormFactor*masterGain instead of rescaling the buffer.
	NormFactor float64
}

// Convolver renders impulse responses into pooled output buffers.
// A Convolver is safe for concurrent use; each Render allocates its own
// scratch space.
type Convolver struct {
	cfg  core.ProcessorConfig
	pool *buffer.Pool
}

// NewConvolver returns a Convolver using the given processing options.
func NewConvolver(opts ...core.ProcessorOption) *Convolver {
	return &Convolver{
		cfg:  core.ApplyProcessorOptions(opts...),
		pool: buffer.NewPool(),
	}
}

// SampleRate returns the output sample rate in Hz.
func (c *Convolver) SampleRate() float64 {
	return c.cfg.SampleRate
}

// OutputLen returns max(MinLength, ceil((irDuration+srcDuration+1)*sampleRate)).
func (c *Convolver) OutputLen(irDuration, srcDuration float64) int {
	n := c.cfg.Samples(irDuration + srcDuration + 1)
	if n < c.cfg.MinLength {
		n = c.cfg.MinLength
	}
	return n
}

// Render accumulates every tap of r into a fresh output buffer.
// The source must share the convolver's sample rate, and r may not last
// longer than the configured MaxDuration.
func (c *Convolver) Render(r ir.ImpulseResponse, src *buffer.Buffer, p RenderParams) (Output, error) {
	if src == nil {
		return Output{}, ErrEmptyInput
	}
	if src.SampleRate() != c.cfg.SampleRate {
		return Output{}, fmt.Errorf("%w: %g != %g", ErrSampleRateMismatch, src.SampleRate(), c.cfg.SampleRate)
	}
	if err := p.Validate(); err != nil {
		return Output{}, err
	}
	if r.Duration > c.cfg.MaxDuration {
		return Output{}, fmt.Errorf("%w: %gs > %gs", ErrTooLong, r.Duration, c.cfg.MaxDuration)
	}

	out := c.pool.Get(c.OutputLen(r.Duration, src.Duration()), c.cfg.SampleRate)

	if p.IsIdentity() && r.Len() >= DenseTapThreshold && src.Len() > 0 {
		if err := c.renderDense(out.Samples(), r, src.Samples()); err != nil {
			c.pool.Put(out)
			return Output{}, err
		}
	} else {
		c.renderTaps(out.Samples(), r, src.Samples(), p)
	}

	return Output{Buffer: out, NormFactor: r.MaxGain() / math.Max(out.Peak(), 1)}, nil
}

// Release returns the output buffer to the pool. The output must not be
// used afterwards.
func (c *Convolver) Release(o Output) {
	c.pool.Put(o.Buffer)
}

// renderTaps is the direct tap-delay synthesis. Both the read index into
// src and the write index into dst are bounds-checked.
func (c *Convolver) renderTaps(dst []float64, r ir.ImpulseResponse, src []float64, p RenderParams) {
	srcLen := len(src)
	if srcLen == 0 {
		return
	}
	scratch := make([]float64, srcLen)

	for k, tapTime := range r.Times {
		tapGain := r.Gains[k]

		delay := int(math.Round(tapTime * c.cfg.SampleRate))
		if delay < 0 || delay >= len(dst) {
			continue
		}

		readOffset := int(math.Floor(p.TimeBound * float64(delay)))
		if p.Loop {
			readOffset %= srcLen
			if readOffset < 0 {
				readOffset += srcLen
			}
		}
		if readOffset < 0 || readOffset >= srcLen {
			continue
		}

		readSpeed := 1 + p.AccelerationSlope*tapTime
		if readSpeed <= 0 {
			continue
		}
		count := int(math.Floor(float64(srcLen-readOffset) * p.Percentage / readSpeed))

		if readSpeed == 1 {
			n := min(count, srcLen-readOffset, len(dst)-delay)
			if n <= 0 {
				continue
			}
			vecmath.ScaleBlock(scratch[:n], src[readOffset:readOffset+n], tapGain)
			vecmath.AddBlockInPlace(dst[delay:delay+n], scratch[:n])
			continue
		}

		for i := range count {
			ri := readOffset + int(math.Round(float64(i)*readSpeed))
			wi := delay + i
			if ri >= srcLen || wi >= len(dst) {
				break
			}
			dst[wi] += tapGain * src[ri]
		}
	}
}

// renderDense renders r to a dense kernel and convolves it with src.
func (c *Convolver) renderDense(dst []float64, r ir.ImpulseResponse, src []float64) error {
	kernel, err := r.Render(c.cfg.SampleRate)
	if err != nil {
		return err
	}
	oa, err := NewOverlapAdd(kernel, 0)
	if err != nil {
		return err
	}
	full, err := oa.Process(src)
	if err != nil {
		return err
	}
	copy(dst, full)
	return nil
}

// nextPowerOf2 returns the next power of 2 >= n.
func nextPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p *= 2
	}
	return p
}

package conv

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/cwbudde/algo-reflect/dsp/buffer"
	"github.com/cwbudde/algo-reflect/dsp/core"
	"github.com/cwbudde/algo-reflect/internal/testutil"
	"github.com/cwbudde/algo-reflect/measure/ir"
)

func mustIR(t *testing.T, times, gains []float64) ir.ImpulseResponse {
	t.Helper()
	r, err := ir.New(times, gains)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestOutputLen(t *testing.T) {
	tests := []struct {
		name       string
		sampleRate float64
		irDur      float64
		srcDur     float64
		want       int
	}{
		{"formula", 1000, 0.25, 0.5, 1750},
		{"minimum", 100, 0, 0.5, 512},
		{"ceil", 1000, 0.0005, 0, 1001},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := NewConvolver(core.WithSampleRate(tc.sampleRate))
			if got := c.OutputLen(tc.irDur, tc.srcDur); got != tc.want {
				t.Fatalf("OutputLen = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestRenderParams(t *testing.T) {
	src := testutil.Ramp(4)
	tests := []struct {
		name   string
		times  []float64
		params RenderParams
		want   map[int]float64
	}{
		{
			name:   "identity",
			times:  []float64{0.01},
			params: DefaultRenderParams(),
			want:   map[int]float64{10: 0.5, 11: 1, 12: 1.5, 13: 2},
		},
		{
			name:   "time bound",
			times:  []float64{0.002},
			params: RenderParams{Percentage: 1, TimeBound: 1},
			want:   map[int]float64{2: 1.5, 3: 2},
		},
		{
			name:   "time bound past end",
			times:  []float64{0.006},
			params: RenderParams{Percentage: 1, TimeBound: 1},
			want:   map[int]float64{},
		},
		{
			name:   "loop wraps",
			times:  []float64{0.006},
			params: RenderParams{Percentage: 1, TimeBound: 1, Loop: true},
			want:   map[int]float64{6: 1.5, 7: 2},
		},
		{
			name:   "percentage",
			times:  []float64{0},
			params: RenderParams{Percentage: 0.5},
			want:   map[int]float64{0: 0.5, 1: 1},
		},
		{
			name:   "acceleration",
			times:  []float64{0.01},
			params: RenderParams{Percentage: 1, AccelerationSlope: 100},
			want:   map[int]float64{10: 0.5, 11: 1.5},
		},
		{
			name:   "non-positive read speed",
			times:  []float64{0.01},
			params: RenderParams{Percentage: 1, AccelerationSlope: -100},
			want:   map[int]float64{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := NewConvolver(core.WithSampleRate(1000))
			gains := make([]float64, len(tc.times))
			for i := range gains {
				gains[i] = 0.5
			}
			out, err := c.Render(mustIR(t, tc.times, gains), buffer.FromSlice(src, 1000), tc.params)
			if err != nil {
				t.Fatal(err)
			}
			defer c.Release(out)

			for i, v := range out.Buffer.Samples() {
				if w := tc.want[i]; v != w {
					t.Fatalf("out[%d] = %v, want %v", i, v, w)
				}
			}
		})
	}
}

func TestRenderAccumulates(t *testing.T) {
	c := NewConvolver(core.WithSampleRate(1000))
	r := mustIR(t, []float64{0, 0.001, 0.001}, []float64{1, 0.5, 0.25})
	out, err := c.Render(r, buffer.FromSlice([]float64{2, 2}, 1000), DefaultRenderParams())
	if err != nil {
		t.Fatal(err)
	}
	s := out.Buffer.Samples()
	if s[0] != 2 || s[1] != 3.5 || s[2] != 1.5 {
		t.Fatalf("out[:3] = %v, want [2 3.5 1.5]", s[:3])
	}
	if want := 1 / 3.5; math.Abs(out.NormFactor-want) > 1e-15 {
		t.Fatalf("NormFactor = %v, want %v", out.NormFactor, want)
	}
}

func TestNormFactorQuietOutput(t *testing.T) {
	c := NewConvolver(core.WithSampleRate(1000))
	out, err := c.Render(mustIR(t, []float64{0}, []float64{0.4}), buffer.FromSlice([]float64{0.5}, 1000), DefaultRenderParams())
	if err != nil {
		t.Fatal(err)
	}
	if out.NormFactor != 0.4 {
		t.Fatalf("NormFactor = %v, want 0.4 when peak < 1", out.NormFactor)
	}

	out, err = c.Render(ir.Empty(), buffer.FromSlice([]float64{0.5}, 1000), DefaultRenderParams())
	if err != nil {
		t.Fatal(err)
	}
	if out.NormFactor != 0 || out.Buffer.Peak() != 0 || out.Buffer.Len() != 1001 {
		t.Fatalf("empty IR output: len=%d peak=%v norm=%v", out.Buffer.Len(), out.Buffer.Peak(), out.NormFactor)
	}
}

func TestRenderErrors(t *testing.T) {
	c := NewConvolver(core.WithSampleRate(1000))
	r := mustIR(t, []float64{0}, []float64{1})

	if _, err := c.Render(r, nil, DefaultRenderParams()); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("nil source error = %v", err)
	}
	if _, err := c.Render(r, buffer.New(4, 44100), DefaultRenderParams()); !errors.Is(err, ErrSampleRateMismatch) {
		t.Fatalf("rate mismatch error = %v", err)
	}
	if _, err := c.Render(r, buffer.New(4, 1000), RenderParams{Percentage: 2}); !errors.Is(err, ErrPercentageRange) {
		t.Fatalf("percentage error = %v", err)
	}
	if _, err := c.Render(r, buffer.New(4, 1000), RenderParams{Percentage: 1, TimeBound: -1}); !errors.Is(err, ErrTimeBoundRange) {
		t.Fatalf("time bound error = %v", err)
	}
	if _, err := c.Render(r, buffer.New(4, 1000), RenderParams{Percentage: math.NaN()}); !errors.Is(err, ErrNonFiniteParam) {
		t.Fatalf("NaN error = %v", err)
	}
}

func TestRenderRejectsLongResponse(t *testing.T) {
	// A near-zero speed stretches arrivals to thousands of seconds.
	long := mustIR(t, []float64{0, 3500}, []float64{1, 0.5})
	src := buffer.FromSlice([]float64{1}, 1000)

	c := NewConvolver(core.WithSampleRate(1000))
	if _, err := c.Render(long, src, DefaultRenderParams()); !errors.Is(err, ErrTooLong) {
		t.Fatalf("error = %v, want ErrTooLong", err)
	}

	limited := NewConvolver(core.WithSampleRate(1000), core.WithMaxDuration(2))
	if _, err := limited.Render(mustIR(t, []float64{2.5}, []float64{1}), src, DefaultRenderParams()); !errors.Is(err, ErrTooLong) {
		t.Fatalf("limited error = %v, want ErrTooLong", err)
	}
	out, err := limited.Render(mustIR(t, []float64{2}, []float64{1}), src, DefaultRenderParams())
	if err != nil {
		t.Fatal(err)
	}
	if out.Buffer.Len() != limited.OutputLen(2, src.Duration()) {
		t.Fatalf("len = %d", out.Buffer.Len())
	}
	limited.Release(out)
}

// TestRenderBounds feeds random responses and parameters, including taps
// far outside the output and read offsets far outside the source. Any
// out-of-range index would panic.
func TestRenderBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	c := NewConvolver(core.WithSampleRate(1000), core.WithMinLength(64))

	for i := range 300 {
		src := make([]float64, rng.Intn(200))
		for j := range src {
			src[j] = rng.Float64()*2 - 1
		}
		n := rng.Intn(40)
		times := make([]float64, n)
		gains := make([]float64, n)
		for j := range times {
			times[j] = rng.Float64()*3 - 0.5
			gains[j] = rng.Float64()
		}
		r := mustIR(t, times, gains)
		p := RenderParams{
			Percentage:        rng.Float64(),
			Loop:              rng.Intn(2) == 0,
			AccelerationSlope: rng.Float64()*20 - 10,
			TimeBound:         rng.Float64() * 5,
		}
		source := buffer.FromSlice(src, 1000)

		out, err := c.Render(r, source, p)
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		if want := c.OutputLen(r.Duration, source.Duration()); out.Buffer.Len() != want {
			t.Fatalf("case %d: len = %d, want %d", i, out.Buffer.Len(), want)
		}
		for j, v := range out.Buffer.Samples() {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("case %d: out[%d] = %v", i, j, v)
			}
		}
		if math.IsNaN(out.NormFactor) || out.NormFactor < 0 {
			t.Fatalf("case %d: NormFactor = %v", i, out.NormFactor)
		}
		c.Release(out)
	}
}

func TestDenseMatchesTaps(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	c := NewConvolver(core.WithSampleRate(8000))

	n := DenseTapThreshold * 2
	times := make([]float64, n)
	gains := make([]float64, n)
	for i := range times {
		times[i] = rng.Float64() * 0.1
		gains[i] = rng.Float64()
	}
	r := mustIR(t, times, gains)

	src := testutil.DeterministicNoise(9, 1, 500)

	dense, err := c.Render(r, buffer.FromSlice(src, 8000), DefaultRenderParams())
	if err != nil {
		t.Fatal(err)
	}
	direct := make([]float64, dense.Buffer.Len())
	c.renderTaps(direct, r, src, DefaultRenderParams())

	testutil.RequireSliceNearlyEqual(t, dense.Buffer.Samples(), direct, 1e-9)
}

func TestOverlapAdd(t *testing.T) {
	kernel := testutil.DeterministicNoise(1, 0.5, 37)
	input := testutil.DeterministicSine(440, 8000, 0.5, 1000)

	oa, err := NewOverlapAdd(kernel, 64)
	if err != nil {
		t.Fatal(err)
	}
	if oa.BlockSize() != 64 || oa.FFTSize() != 128 {
		t.Fatalf("BlockSize=%d FFTSize=%d", oa.BlockSize(), oa.FFTSize())
	}
	got, err := oa.Process(input)
	if err != nil {
		t.Fatal(err)
	}

	want := make([]float64, len(input)+len(kernel)-1)
	for i, x := range input {
		for j, k := range kernel {
			want[i+j] += x * k
		}
	}
	testutil.RequireSliceNearlyEqual(t, got, want, 1e-10)

	shifted, err := oa.Process(testutil.Impulse(100, 10))
	if err != nil {
		t.Fatal(err)
	}
	testutil.RequireSliceNearlyEqual(t, shifted[10:10+len(kernel)], kernel, 1e-12)

	if _, err := NewOverlapAdd(nil, 0); !errors.Is(err, ErrEmptyKernel) {
		t.Fatalf("empty kernel error = %v", err)
	}
	if _, err := NewOverlapAdd(kernel, -1); !errors.Is(err, ErrInvalidBlockSize) {
		t.Fatalf("block size error = %v", err)
	}
	if _, err := oa.Process(nil); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("empty input error = %v", err)
	}
}

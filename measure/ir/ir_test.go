package ir

import (
	"errors"
	"math"
	"testing"
)

// exponentialTaps returns taps every step seconds decaying to -60 dB at rt60.
func exponentialTaps(rt60, step, length float64) ImpulseResponse {
	r := Empty()
	decayRate := 6.9078 / rt60
	for t := 0.0; t < length; t += step {
		r.Append(t, math.Exp(-decayRate*t))
	}
	return r
}

func TestNew(t *testing.T) {
	r, err := New([]float64{0.5, 0.1, 0.9}, []float64{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	if r.Duration != 0.9 {
		t.Fatalf("Duration = %v, want 0.9", r.Duration)
	}

	if _, err := New([]float64{1}, nil); !errors.Is(err, ErrTapMismatch) {
		t.Fatalf("mismatch error = %v", err)
	}
	if _, err := New([]float64{math.NaN()}, []float64{1}); !errors.Is(err, ErrNonFiniteTap) {
		t.Fatalf("NaN error = %v", err)
	}

	empty, err := New(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if empty.Times == nil || empty.Gains == nil || empty.Len() != 0 || empty.Duration != 0 {
		t.Fatalf("empty response = %#v", empty)
	}
}

func TestAppendAndShift(t *testing.T) {
	r := Empty()
	r.Append(-0.2, 0.5)
	if r.Duration != -0.2 {
		t.Fatalf("Duration after first tap = %v, want -0.2", r.Duration)
	}
	r.Append(0.3, 0.25)

	shifted := r.Shift(-0.2)
	if shifted.Times[0] != 0 || math.Abs(shifted.Times[1]-0.5) > 1e-15 {
		t.Fatalf("shifted times = %v", shifted.Times)
	}
	if math.Abs(shifted.Duration-0.5) > 1e-15 {
		t.Fatalf("shifted duration = %v", shifted.Duration)
	}
	if r.Times[0] != -0.2 {
		t.Fatal("Shift modified the receiver")
	}
	if r.MaxGain() != 0.5 || Empty().MaxGain() != 0 {
		t.Fatal("unexpected MaxGain")
	}
}

func TestRender(t *testing.T) {
	r, _ := New([]float64{-0.001, 0.0004, 0.003}, []float64{9, 1, 2})
	kernel, err := r.Render(1000)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{1, 0, 0, 2}
	if len(kernel) != len(want) {
		t.Fatalf("len = %d, want %d", len(kernel), len(want))
	}
	for i := range want {
		if kernel[i] != want[i] {
			t.Fatalf("kernel = %v, want %v", kernel, want)
		}
	}

	if _, err := r.Render(0); !errors.Is(err, ErrInvalidSampleRate) {
		t.Fatalf("Render(0) error = %v", err)
	}
	if k, err := Empty().Render(48000); err != nil || len(k) != 0 {
		t.Fatalf("empty render = %v, %v", k, err)
	}
}

func TestAnalyzerAnalyze(t *testing.T) {
	r := exponentialTaps(1.0, 0.001, 2.0)

	metrics, err := NewAnalyzer(8000).Analyze(r)
	if err != nil {
		t.Fatal(err)
	}
	if metrics.Taps != r.Len() {
		t.Fatalf("Taps = %d, want %d", metrics.Taps, r.Len())
	}
	if metrics.PeakTime != 0 || metrics.PeakGain != 1 || metrics.FirstArrival != 0 {
		t.Fatalf("peak/first = %+v", metrics)
	}
	if metrics.D50 <= 0 || metrics.D50 >= 1 {
		t.Errorf("D50 = %.3f, expected in (0, 1)", metrics.D50)
	}
	if metrics.C80 <= metrics.C50 {
		t.Errorf("C80 = %.2f should exceed C50 = %.2f", metrics.C80, metrics.C50)
	}
	if metrics.CenterTime <= 0 || metrics.CenterTime > 1 {
		t.Errorf("CenterTime = %.3f", metrics.CenterTime)
	}
	if math.Abs(metrics.EDT-1.0) > 0.05 {
		t.Errorf("EDT = %.3f, want ~1.0", metrics.EDT)
	}
}

func TestAnalyzeRelativeToFirstArrival(t *testing.T) {
	base := exponentialTaps(0.5, 0.003, 1)
	late := base.Shift(-3)

	a := NewAnalyzer(4000)
	m1, err := a.Analyze(base)
	if err != nil {
		t.Fatal(err)
	}
	m2, err := a.Analyze(late)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(m1.D50-m2.D50) > 1e-9 || math.Abs(m1.CenterTime-m2.CenterTime) > 1e-9 {
		t.Fatalf("metrics depend on absolute time: %+v vs %+v", m1, m2)
	}
	if math.Abs(m2.FirstArrival-3) > 1e-12 {
		t.Fatalf("FirstArrival = %v, want 3", m2.FirstArrival)
	}
}

func TestClarityAndDefinition(t *testing.T) {
	r, _ := New([]float64{0, 0.01, 0.1}, []float64{1, 1, 1})
	a := NewAnalyzer(48000)

	d, err := a.Definition(r, 50)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(d-2.0/3) > 1e-12 {
		t.Fatalf("D50 = %v, want 2/3", d)
	}

	c, err := a.Clarity(r, 50)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(c-10*math.Log10(2)) > 1e-12 {
		t.Fatalf("C50 = %v", c)
	}

	c, _ = a.Clarity(r, 500)
	if !math.IsInf(c, 1) {
		t.Fatalf("C500 = %v, want +Inf", c)
	}

	if _, err := a.Clarity(r, 0); !errors.Is(err, ErrInvalidTime) {
		t.Fatalf("Clarity(0) error = %v", err)
	}
	if _, err := a.Definition(Empty(), 50); !errors.Is(err, ErrEmptyIR) {
		t.Fatalf("Definition(empty) error = %v", err)
	}
}

func TestAnalyzerErrors(t *testing.T) {
	if _, err := NewAnalyzer(48000).Analyze(Empty()); !errors.Is(err, ErrEmptyIR) {
		t.Fatalf("empty error = %v", err)
	}
	r, _ := New([]float64{0}, []float64{1})
	if _, err := NewAnalyzer(0).Analyze(r); !errors.Is(err, ErrInvalidSampleRate) {
		t.Fatalf("sample rate error = %v", err)
	}
	if _, err := NewAnalyzer(48000).EDT(r); !errors.Is(err, ErrNoDecay) {
		t.Fatalf("single tap EDT error = %v", err)
	}
}

package asset

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/algo-reflect/dsp/buffer"
	"github.com/cwbudde/algo-reflect/internal/testutil"
	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
)

// writeWAV encodes frames as 16-bit PCM into dir/name.
func writeWAV(t *testing.T, dir, name string, rate, channels int, frames [][2]float64) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	pos := 0
	s := beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if pos >= len(frames) {
			return 0, false
		}
		n := copy(samples, frames[pos:])
		pos += n
		return n, true
	})
	format := beep.Format{SampleRate: beep.SampleRate(rate), NumChannels: channels, Precision: 2}
	if err := wav.Encode(f, s, format); err != nil {
		t.Fatal(err)
	}
	return path
}

func monoFrames(xs []float64) [][2]float64 {
	out := make([][2]float64, len(xs))
	for i, x := range xs {
		out[i] = [2]float64{x, x}
	}
	return out
}

// pcm16 builds a 16-bit PCM WAV stream byte by byte.
func pcm16(rate, channels int, samples []int16) []byte {
	var b bytes.Buffer
	le := binary.LittleEndian
	dataSize := uint32(2 * len(samples))
	b.WriteString("RIFF")
	binary.Write(&b, le, 36+dataSize)
	b.WriteString("WAVEfmt ")
	binary.Write(&b, le, uint32(16))
	binary.Write(&b, le, uint16(1))
	binary.Write(&b, le, uint16(channels))
	binary.Write(&b, le, uint32(rate))
	binary.Write(&b, le, uint32(rate*channels*2))
	binary.Write(&b, le, uint16(channels*2))
	binary.Write(&b, le, uint16(16))
	b.WriteString("data")
	binary.Write(&b, le, dataSize)
	binary.Write(&b, le, samples)
	return b.Bytes()
}

func TestDecodePCM16Scale(t *testing.T) {
	tests := []struct {
		name     string
		channels int
		samples  []int16
		want     []float64
	}{
		{"mono", 1, []int16{16384, 16384, -16384, 0}, []float64{0.5, 0.5, -0.5, 0}},
		{"full scale", 1, []int16{32767, -32767}, []float64{1, -1}},
		{"stereo", 2, []int16{32767, 0, -16384, -16384}, []float64{0.5, -0.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Decode(bytes.NewReader(pcm16(8000, tt.channels, tt.samples)), 8000)
			if err != nil {
				t.Fatal(err)
			}
			testutil.RequireSliceNearlyEqual(t, b.Samples(), tt.want, 1e-4)
		})
	}
}

func TestLoadFileMono(t *testing.T) {
	dir := t.TempDir()
	want := testutil.DeterministicSine(440, 8000, 0.5, 400)
	path := writeWAV(t, dir, "tone.wav", 8000, 1, monoFrames(want))

	r := NewRegistry(8000)
	if err := r.LoadFile("tone", path); err != nil {
		t.Fatal(err)
	}
	b, err := r.Get("tone")
	if err != nil {
		t.Fatal(err)
	}
	if b.SampleRate() != 8000 {
		t.Fatalf("SampleRate() = %v", b.SampleRate())
	}
	testutil.RequireSliceNearlyEqual(t, b.Samples(), want, 1e-3)
}

func TestLoadFileStereoAverages(t *testing.T) {
	dir := t.TempDir()
	frames := [][2]float64{{0.5, -0.5}, {0.25, 0.75}, {1, 0}}
	path := writeWAV(t, dir, "st.wav", 8000, 2, frames)

	r := NewRegistry(8000)
	if err := r.LoadFile("st", path); err != nil {
		t.Fatal(err)
	}
	b, _ := r.Get("st")
	testutil.RequireSliceNearlyEqual(t, b.Samples(), []float64{0, 0.5, 0.5}, 1e-3)
}

func TestLoadResamples(t *testing.T) {
	dir := t.TempDir()
	path := writeWAV(t, dir, "low.wav", 8000, 1, monoFrames(testutil.DeterministicSine(100, 8000, 0.5, 800)))

	r := NewRegistry(16000)
	if err := r.LoadFile("low", path); err != nil {
		t.Fatal(err)
	}
	b, _ := r.Get("low")
	if math.Abs(float64(b.Len())-1600) > 16 {
		t.Fatalf("resampled length = %d, want ~1600", b.Len())
	}
	if math.Abs(b.Duration()-0.1) > 0.001 {
		t.Fatalf("Duration() = %v, want ~0.1", b.Duration())
	}
	testutil.RequireFinite(t, b.Samples())
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeWAV(t, dir, "b.wav", 8000, 1, monoFrames([]float64{0.1}))
	writeWAV(t, dir, "a.WAV", 8000, 1, monoFrames([]float64{0.2}))
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry(8000)
	names, err := r.LoadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 {
		t.Fatalf("loaded %v", names)
	}
	got := r.Names()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("Names() = %v, want [a b]", got)
	}
}

func TestRegistryErrors(t *testing.T) {
	r := NewRegistry(48000)

	if _, err := r.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get error = %v", err)
	}
	if err := r.Add("x", buffer.New(4, 44100)); !errors.Is(err, ErrSampleRate) {
		t.Fatalf("Add rate error = %v", err)
	}
	if err := r.Add("", buffer.New(4, 48000)); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("Add name error = %v", err)
	}
	if err := r.LoadFile("x", filepath.Join(t.TempDir(), "nope.wav")); err == nil {
		t.Fatal("LoadFile succeeded on a missing file")
	}

	if err := r.Add("x", buffer.New(4, 48000)); err != nil {
		t.Fatal(err)
	}
	r.Remove("x")
	if _, err := r.Get("x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after Remove error = %v", err)
	}
}

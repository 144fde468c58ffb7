// Package asset loads source clips and keeps them by name.
//
// Clips are decoded from WAV, folded to mono and resampled to the
// registry's sample rate, so every clip can be fed straight to the
// convolver.
package asset

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/cwbudde/algo-reflect/dsp/buffer"
	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
)

// Errors returned by the registry.
var (
	ErrNotFound   = errors.New("asset: clip not found")
	ErrSampleRate = errors.New("asset: clip sample rate differs from registry")
	ErrEmptyName  = errors.New("asset: empty clip name")
)

// resampleQuality is passed to beep.Resample.
const resampleQuality = 4

// Registry holds decoded clips. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	sampleRate float64
	clips      map[string]*buffer.Buffer
}

// NewRegistry returns an empty registry for clips at sampleRate.
func NewRegistry(sampleRate float64) *Registry {
	return &Registry{
		sampleRate: sampleRate,
		clips:      make(map[string]*buffer.Buffer),
	}
}

// SampleRate returns the rate every clip is stored at.
func (r *Registry) SampleRate() float64 {
	return r.sampleRate
}

// Add stores an already decoded clip, replacing any clip with that name.
func (r *Registry) Add(name string, b *buffer.Buffer) error {
	if name == "" {
		return ErrEmptyName
	}
	if b.SampleRate() != r.sampleRate {
		return fmt.Errorf("%w: %q at %g Hz", ErrSampleRate, name, b.SampleRate())
	}
	r.mu.Lock()
	r.clips[name] = b
	r.mu.Unlock()
	return nil
}

// Load decodes WAV data from rd and stores it under name.
func (r *Registry) Load(name string, rd io.Reader) error {
	if name == "" {
		return ErrEmptyName
	}
	b, err := Decode(rd, r.sampleRate)
	if err != nil {
		return fmt.Errorf("asset: decode %q: %w", name, err)
	}
	r.mu.Lock()
	r.clips[name] = b
	r.mu.Unlock()
	return nil
}

// LoadFile loads a WAV file under name.
func (r *Registry) LoadFile(name, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("asset: %w", err)
	}
	defer f.Close()
	return r.Load(name, f)
}

// LoadDir loads every .wav file in dir, named by its base name without
// extension. It returns the names loaded.
func (r *Registry) LoadDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("asset: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".wav") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if err := r.LoadFile(name, filepath.Join(dir, e.Name())); err != nil {
			return names, err
		}
		names = append(names, name)
	}
	return names, nil
}

// Get returns the clip stored under name.
func (r *Registry) Get(name string) (*buffer.Buffer, error) {
	r.mu.RLock()
	b, ok := r.clips[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return b, nil
}

// Remove forgets a clip.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	delete(r.clips, name)
	r.mu.Unlock()
}

// Names returns the stored clip names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.clips))
	for name := range r.clips {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Decode reads a whole WAV stream as mono at sampleRate. Stereo input is
// averaged; other rates are resampled.
func Decode(rd io.Reader, sampleRate float64) (*buffer.Buffer, error) {
	s, format, err := wav.Decode(rd)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	var src beep.Streamer = s
	target := beep.SampleRate(sampleRate)
	if format.SampleRate != target {
		src = beep.Resample(resampleQuality, format.SampleRate, target, s)
	}

	gain := pcmScale(format.Precision) / 2
	var mono []float64
	chunk := make([][2]float64, 512)
	for {
		n, ok := src.Stream(chunk)
		for _, frame := range chunk[:n] {
			mono = append(mono, (frame[0]+frame[1])*gain)
		}
		if !ok {
			break
		}
	}
	if err := src.Err(); err != nil {
		return nil, err
	}
	return buffer.FromSlice(mono, sampleRate), nil
}

// pcmScale undoes the wav decoder's signed PCM scaling, which divides by
// 2^bits-1 instead of the 2^(bits-1)-1 the encoder multiplies by. 8-bit
// PCM is unsigned and decodes to full scale already.
func pcmScale(precision int) float64 {
	if precision < 2 {
		return 1
	}
	bits := uint(8 * precision)
	return float64(uint64(1)<<bits-1) / float64(uint64(1)<<(bits-1)-1)
}

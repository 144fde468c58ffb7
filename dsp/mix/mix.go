// Package mix sums concurrently playing rendered outputs into one mono
// stream. Voices never replace each other; each adds its samples scaled by
// its own gain and the shared master gain.
package mix

import (
	"sync"

	"github.com/cwbudde/algo-reflect/dsp/buffer"
	"github.com/cwbudde/algo-reflect/dsp/core"
	vecmath "github.com/cwbudde/algo-vecmath"
	"github.com/faiface/beep"
)

// VoiceID identifies a playing voice.
type VoiceID uint64

// DoneFunc is called once when a voice leaves the mixer. stopped is false
// when the voice played to its end and true when it was stopped early.
// It runs without the mixer lock held.
type DoneFunc func(stopped bool)

type voice struct {
	buf  *buffer.Buffer
	gain float64
	pos  int
	done DoneFunc
}

// Mixer is an additive mono mixer. It is safe for concurrent use.
type Mixer struct {
	mu         sync.Mutex
	voices     map[VoiceID]*voice
	next       VoiceID
	masterGain float64
	sampleRate float64

	scratch []float64
	mono    []float64
}

// NewMixer returns an empty mixer with unity master gain.
func NewMixer(sampleRate float64) *Mixer {
	return &Mixer{
		voices:     make(map[VoiceID]*voice),
		masterGain: 1,
		sampleRate: sampleRate,
	}
}

// SampleRate returns the output sample rate in Hz.
func (m *Mixer) SampleRate() float64 {
	return m.sampleRate
}

// SetMasterGain sets the gain applied on top of every voice gain.
func (m *Mixer) SetMasterGain(g float64) {
	m.mu.Lock()
	m.masterGain = g
	m.mu.Unlock()
}

// MasterGain returns the current master gain.
func (m *Mixer) MasterGain() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.masterGain
}

// Play starts b at sample offset with the given gain. A voice whose offset
// is already past the end finishes immediately.
func (m *Mixer) Play(b *buffer.Buffer, gain float64, offset int, done DoneFunc) VoiceID {
	m.mu.Lock()
	m.next++
	id := m.next
	if b == nil || offset >= b.Len() {
		m.mu.Unlock()
		if done != nil {
			done(false)
		}
		return id
	}
	m.voices[id] = &voice{buf: b, gain: gain, pos: max(offset, 0), done: done}
	m.mu.Unlock()
	return id
}

// Stop removes a voice. It reports whether the voice was still playing.
func (m *Mixer) Stop(id VoiceID) bool {
	m.mu.Lock()
	v, ok := m.voices[id]
	delete(m.voices, id)
	m.mu.Unlock()

	if ok && v.done != nil {
		v.done(true)
	}
	return ok
}

// StopAll removes every voice.
func (m *Mixer) StopAll() {
	m.mu.Lock()
	stopped := make([]*voice, 0, len(m.voices))
	for id, v := range m.voices {
		stopped = append(stopped, v)
		delete(m.voices, id)
	}
	m.mu.Unlock()

	for _, v := range stopped {
		if v.done != nil {
			v.done(true)
		}
	}
}

// Active returns the number of playing voices.
func (m *Mixer) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.voices)
}

// Process overwrites dst with the next len(dst) mixed samples and advances
// every voice. Voices that reach their end are removed and reported.
func (m *Mixer) Process(dst []float64) {
	clear(dst)

	m.mu.Lock()
	m.scratch = core.EnsureLen(m.scratch, len(dst))
	var finished []*voice
	for id, v := range m.voices {
		src := v.buf.Samples()
		n := min(len(dst), len(src)-v.pos)
		tmp := m.scratch[:n]
		vecmath.ScaleBlock(tmp, src[v.pos:v.pos+n], v.gain*m.masterGain)
		vecmath.AddBlockInPlace(dst[:n], tmp)
		v.pos += n
		if v.pos >= len(src) {
			finished = append(finished, v)
			delete(m.voices, id)
		}
	}
	m.mu.Unlock()

	for _, v := range finished {
		if v.done != nil {
			v.done(false)
		}
	}
}

// Streamer exposes the mixer as an endless stereo beep.Streamer with the
// mono mix on both channels, clipped to [-1, 1]. The streamer must be
// drained by a single goroutine, normally the audio device callback.
func (m *Mixer) Streamer() beep.Streamer {
	return beep.StreamerFunc(func(samples [][2]float64) (n int, ok bool) {
		m.mono = core.EnsureLen(m.mono, len(samples))
		m.Process(m.mono)
		for i, v := range m.mono {
			v = core.Clamp(v, -1, 1)
			samples[i] = [2]float64{v, v}
		}
		return len(samples), true
	})
}

package buffer

import "sync"

// Pool provides sync.Pool-based Buffer reuse for rendered outputs, which
// are allocated per trigger and released when playback ends.
type Pool struct {
	pool sync.Pool
}

// NewPool returns a Pool ready for use.
func NewPool() *Pool {
	return &Pool{
		pool: sync.Pool{
			New: func() any {
				return &Buffer{}
			},
		},
	}
}

// Get returns a zeroed Buffer with the requested length and sample rate.
// Callers must return it via Put when done.
func (p *Pool) Get(length int, sampleRate float64) *Buffer {
	b := p.pool.Get().(*Buffer)
	b.Resize(length)
	b.Zero()
	b.sampleRate = sampleRate
	return b
}

// Put returns a Buffer to the pool for reuse.
// The caller must not use the buffer after calling Put.
func (p *Pool) Put(b *Buffer) {
	if b == nil {
		return
	}
	p.pool.Put(b)
}

package node

import (
	"github.com/cwbudde/algo-reflect/dsp/conv"
)

type renderKey struct {
	emission int
	source   string
	params   conv.RenderParams
}

// cacheEntry is a rendered output shared by every event playing it. Its
// buffer returns to the convolver pool once it is evicted and no event
// holds it.
type cacheEntry struct {
	key     renderKey
	out     conv.Output
	refs    int
	evicted bool
}

// renderCache keeps recent outputs in insertion order. Callers hold the
// node lock.
type renderCache struct {
	conv    *conv.Convolver
	size    int
	entries []*cacheEntry
}

func newRenderCache(c *conv.Convolver, size int) *renderCache {
	return &renderCache{conv: c, size: size}
}

// acquire returns a held entry for key, or nil.
func (c *renderCache) acquire(key renderKey) *cacheEntry {
	for _, e := range c.entries {
		if e.key == key {
			e.refs++
			return e
		}
	}
	return nil
}

// store inserts a fresh output and returns it held. If another render of
// the same key won the race, out is released and the existing entry used.
func (c *renderCache) store(key renderKey, out conv.Output) *cacheEntry {
	if e := c.acquire(key); e != nil {
		c.conv.Release(out)
		return e
	}
	e := &cacheEntry{key: key, out: out, refs: 1}
	c.entries = append(c.entries, e)
	for len(c.entries) > c.size {
		c.evict(c.entries[0])
	}
	return e
}

func (c *renderCache) release(e *cacheEntry) {
	e.refs--
	if e.refs <= 0 && e.evicted {
		c.conv.Release(e.out)
		e.out = conv.Output{}
	}
}

func (c *renderCache) evict(e *cacheEntry) {
	for i, cur := range c.entries {
		if cur == e {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			break
		}
	}
	e.evicted = true
	if e.refs <= 0 {
		c.conv.Release(e.out)
		e.out = conv.Output{}
	}
}

func (c *renderCache) evictEmission(emission int) {
	for _, e := range append([]*cacheEntry(nil), c.entries...) {
		if e.key.emission == emission {
			c.evict(e)
		}
	}
}

func (c *renderCache) evictAll() {
	for _, e := range append([]*cacheEntry(nil), c.entries...) {
		c.evict(e)
	}
}

func (c *renderCache) count() int {
	return len(c.entries)
}

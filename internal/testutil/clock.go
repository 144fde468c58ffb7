package testutil

import (
	"sort"
	"sync"
	"time"
)

// ManualClock is a synchronized clock that only moves when told to. Timers
// created with AfterFunc fire from Advance, in due order, on the calling
// goroutine.
type ManualClock struct {
	mu     sync.Mutex
	now    float64
	seq    int
	timers []*ManualTimer
}

// ManualTimer is a one-shot timer driven by a ManualClock.
type ManualTimer struct {
	clock *ManualClock
	due   float64
	seq   int
	fn    func()
	fired bool
	dead  bool
}

// NewManualClock returns a clock reading start seconds.
func NewManualClock(start float64) *ManualClock {
	return &ManualClock{now: start}
}

// SyncTime returns the current time in seconds.
func (c *ManualClock) SyncTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set jumps to t without firing timers.
func (c *ManualClock) Set(t float64) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// AfterFunc arms fn to run once the clock has advanced by d.
func (c *ManualClock) AfterFunc(d time.Duration, fn func()) *ManualTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &ManualTimer{clock: c, due: c.now + d.Seconds(), seq: c.seq, fn: fn}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward by seconds and runs every timer that
// became due.
func (c *ManualClock) Advance(seconds float64) {
	c.mu.Lock()
	c.now += seconds
	var due []*ManualTimer
	keep := c.timers[:0]
	for _, t := range c.timers {
		switch {
		case t.dead:
		case t.due <= c.now:
			t.fired = true
			due = append(due, t)
		default:
			keep = append(keep, t)
		}
	}
	c.timers = keep
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].due != due[j].due {
			return due[i].due < due[j].due
		}
		return due[i].seq < due[j].seq
	})
	for _, t := range due {
		t.fn()
	}
}

// Pending returns the number of armed timers.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.dead {
			n++
		}
	}
	return n
}

// Stop disarms the timer. It reports whether the timer was still armed.
func (t *ManualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.dead {
		return false
	}
	t.dead = true
	return true
}

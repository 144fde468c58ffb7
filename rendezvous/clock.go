package rendezvous

import "time"

// DefaultLookahead is the rendezvous distance used to absorb network jitter.
const DefaultLookahead = 2.0

// SyncClock is the synchronized clock shared by coordinator and nodes.
// Times are in seconds. This package only reads it.
type SyncClock interface {
	SyncTime() float64
}

// Lookahead returns the rendezvous the coordinator assigns now:
// SyncTime() + d seconds.
func Lookahead(c SyncClock, d float64) float64 {
	return c.SyncTime() + d
}

// MonotonicClock reads the process monotonic clock, offset so that it
// starts at a chosen synchronized time. It stands in for a real
// synchronized clock in tools and single-host setups.
type MonotonicClock struct {
	start  time.Time
	offset float64
}

// NewMonotonicClock returns a clock reading offset seconds now.
func NewMonotonicClock(offset float64) *MonotonicClock {
	return &MonotonicClock{start: time.Now(), offset: offset}
}

// NewWallClock returns a clock reading Unix time in seconds. Processes on
// hosts whose system clocks are kept in sync share its timeline.
func NewWallClock() *MonotonicClock {
	now := time.Now()
	return &MonotonicClock{start: now, offset: float64(now.UnixNano()) / 1e9}
}

// SyncTime implements SyncClock.
func (c *MonotonicClock) SyncTime() float64 {
	return c.offset + time.Since(c.start).Seconds()
}

// Timer is a one-shot timer that can be disarmed.
type Timer interface {
	Stop() bool
}

// AfterFunc arms fn to run after d on its own goroutine.
type AfterFunc func(d time.Duration, fn func()) Timer

func systemAfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

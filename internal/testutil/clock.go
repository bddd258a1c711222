package testutil

import (
	"sync"
	"time"
)

// Epoch is the instant new manual clocks start at: 2023-11-14T22:13:20Z,
// 1_700_000_000_000 in Unix milliseconds. Tests assert against this
// base when checking memory timestamps.
var Epoch = time.UnixMilli(1_700_000_000_000).UTC()

// ManualClock provides a thread-safe wall clock that tests advance by
// hand.
//
// Unlike time.Now, ManualClock only moves when the test says so. Pass
// its Now method wherever a component accepts a time source; idle
// windows, decay factors, and memory timestamps then come out exact.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock creates a clock pinned at Epoch.
func NewManualClock() *ManualClock {
	return &ManualClock{now: Epoch}
}

// NewManualClockAt creates a clock pinned at t.
func NewManualClockAt(t time.Time) *ManualClock {
	return &ManualClock{now: t}
}

// Now returns the current instant without moving the clock.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new instant.
//
// Negative d moves it backward; tests exercising stale timestamps do
// this on purpose.
func (c *ManualClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// Set pins the clock to t.
//
// Used for test reuse: setting the clock back to Epoch replays a
// scenario with identical timestamps.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

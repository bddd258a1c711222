package cascade

import "sync/atomic"

// Clock is the monotonic revision counter for a Store.
//
// Every notified state change is stamped with a strictly increasing
// revision from this clock. Listeners can therefore detect missed or
// duplicate deliveries, and traces can be ordered without wall time.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations),
// though the Store bumps it only under its own lock.
type Clock struct {
	rev atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next revision and advances the clock.
// Each call returns a unique, increasing value.
func (c *Clock) Next() int64 {
	return c.rev.Add(1)
}

// Current returns the latest issued revision without advancing.
func (c *Clock) Current() int64 {
	return c.rev.Load()
}

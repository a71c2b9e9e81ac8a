package engine

import (
	"sync/atomic"
	"time"
)

// Clock is a monotonic logical clock for event ordering.
//
// All events are stamped with a strictly increasing seq number from this clock.
// This ensures:
// - Deterministic ordering (no wall-clock race conditions)
// - Debrief traces replay in identical order
// - Causal relationships are explicit
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific sequence number.
// Used when reopening a database to resume past the highest stored seq.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
// Calls are linearizable - each call returns a unique, increasing value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// TimeSource supplies wall-clock timestamps for event attribution.
// Implemented by SystemTime (production) and testutil.DeterministicClock
// (tests). Logical ordering never depends on these values.
type TimeSource interface {
	Now() time.Time
}

// SystemTime reads the system clock in UTC.
type SystemTime struct{}

// Now returns the current time in UTC.
func (SystemTime) Now() time.Time {
	return time.Now().UTC()
}

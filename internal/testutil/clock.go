package testutil

import (
	"sync"
	"time"
)

// baseTime is the fixed origin for deterministic timestamps.
var baseTime = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// DeterministicTime is a thread-safe wall clock for tests. Each call to
// Now() returns the base time advanced by one more second, so timestamps
// are unique, ordered, and identical across runs.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type DeterministicTime struct {
	mu    sync.Mutex
	ticks int64
}

// NewDeterministicTime creates a clock whose first Now() returns
// 2025-01-01T00:00:01Z.
func NewDeterministicTime() *DeterministicTime {
	return &DeterministicTime{}
}

// Now returns the next deterministic timestamp.
func (c *DeterministicTime) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks++
	return baseTime.Add(time.Duration(c.ticks) * time.Second)
}

// Current returns the last issued timestamp without advancing.
func (c *DeterministicTime) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return baseTime.Add(time.Duration(c.ticks) * time.Second)
}

// Reset rewinds the clock to its origin.
// After Reset(), the next Now() returns 2025-01-01T00:00:01Z again.
func (c *DeterministicTime) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks = 0
}

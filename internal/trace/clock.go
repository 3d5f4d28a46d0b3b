package trace

import "sync/atomic"

// Clock is the monotonic logical clock for event ordering.
//
// All recorded events are stamped with a strictly increasing seq number
// from this clock. This ensures:
//   - Deterministic ordering (no wall-clock race conditions)
//   - Identical traces for identical runs
//   - Causal relationships are explicit
//
// Thread-safety: Clock is safe for concurrent use (atomic operations),
// though the runner's single-writer design means only one goroutine
// typically calls Next().
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
// Each call returns a unique, increasing value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

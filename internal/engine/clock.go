package engine

import "sync/atomic"

// Clock is the monotonic logical clock that stamps rule evaluations.
//
// Every evaluation gets a strictly increasing seq from Next. Traces and the
// activation journal order by seq, never by wall-clock time, so two runs
// over the same writes produce identical sequences.
//
// The engine itself is single-writer; atomics keep the clock safe to read
// from an observer running on another goroutine.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific sequence number.
// Used to continue numbering after the last journaled evaluation.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

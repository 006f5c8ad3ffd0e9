package store

import "sync/atomic"

// Clock hands out the seq stamped on each inserted triple. Listing and
// export order by seq, so a store read back after reopening lists triples
// in the order they were written.
type Clock struct {
	last atomic.Int64
}

// NewClock returns a clock whose first Next is 1.
func NewClock() *Clock {
	return NewClockAt(0)
}

// NewClockAt returns a clock resuming after last, the highest seq already
// stored.
func NewClockAt(last int64) *Clock {
	c := new(Clock)
	c.last.Store(last)
	return c
}

// Next advances the clock and returns the new seq.
func (c *Clock) Next() int64 { return c.last.Add(1) }

// Current is the last seq handed out.
func (c *Clock) Current() int64 { return c.last.Load() }

// Package ticks provides the monotonic 32-bit tick counter (L1). The real
// source is a periodic hardware interrupt calling Advance once per tick;
// here Advance is called by whatever drives the scheduler loop in tests or
// by a real timer in a hosted build.
package ticks

import "sync/atomic"

// Source is a monotonic, strictly non-decreasing tick counter.
type Source struct {
	count uint32
}

// New returns a Source starting at tick zero.
func New() *Source {
	return &Source{}
}

// Advance increments the tick counter by one and returns the new value.
// It wraps at 2^32, matching the original 32-bit counter.
func (s *Source) Advance() uint32 {
	return atomic.AddUint32(&s.count, 1)
}

// Now returns the current tick count without advancing it.
func (s *Source) Now() uint32 {
	return atomic.LoadUint32(&s.count)
}

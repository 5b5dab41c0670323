// Package debugsink implements the debug ring buffer (L9): a byte-oriented
// overwrite-oldest ring that buffers formatted trace output until a UART (or
// other transport) drains it, grounded on original_source/_debug.c and
// debug.h. Puts is critical-section protected per the original; the
// byte/block readers are not, matching the original's "ISR-only" contract.
package debugsink

import "github.com/ferrethan485/SmartX/internal/irq"

// Sink is a fixed-capacity byte ring buffer (DEBUG_BUFFER_SIZE). The zero
// value is not usable; build one with NewSink.
type Sink struct {
	gate irq.Gate
	buf  []byte
	head int
	tail int
	used int
}

// NewSink builds a sink with room for capacity bytes.
func NewSink(capacity int) *Sink {
	return &Sink{buf: make([]byte, capacity)}
}

// Puts appends s to the buffer under a critical section. When the buffer
// would overflow, the tail advances to make room — newer data always wins
// over older, the "last-is-best" debug policy the original driver
// documents.
func (s *Sink) Puts(str string) {
	s.gate.Do(func() {
		for i := 0; i < len(str); i++ {
			s.buf[s.head] = str[i]
			s.head = (s.head + 1) % len(s.buf)
			s.used++
		}
		if s.used > len(s.buf) {
			s.tail = s.head
			s.used = len(s.buf)
		}
	})
}

// IsEmpty reports whether the buffer currently holds no bytes.
func (s *Sink) IsEmpty() bool {
	var used int
	s.gate.Do(func() { used = s.used })
	return used == 0
}

// GetByte delivers one byte at a time. Not critical-section protected, per
// the original driver's ISR-only contract: callers must serialize their own
// access if used outside a single consumer context.
func (s *Sink) GetByte() (byte, bool) {
	if s.used == 0 {
		return 0, false
	}
	b := s.buf[s.tail]
	s.tail = (s.tail + 1) % len(s.buf)
	s.used--
	return b, true
}

// GetBlock delivers up to maxLen contiguous bytes from the tail, stopping
// early at the physical end of the ring — callers must call again to get
// data that wrapped around. Not critical-section protected, same contract
// as GetByte.
func (s *Sink) GetBlock(maxLen int) []byte {
	if s.used == 0 {
		return nil
	}
	count := len(s.buf) - s.tail
	if count > s.used {
		count = s.used
	}
	if count > maxLen {
		count = maxLen
	}
	start := s.tail
	s.used -= count
	s.tail = (s.tail + count) % len(s.buf)
	return s.buf[start : start+count]
}

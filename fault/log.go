// Package fault implements the fixed-capacity fault log (L9): a ring buffer
// of (file, line, timestamp) records with an overwrite-oldest policy,
// grounded on original_source/fault.c's fault_/fault_get pair. Assertion
// failures and other programming-error faults are recorded here; the
// scheduler periodically lifts the oldest record into the static fault
// event so application code can observe it like any other signal.
package fault

import "github.com/ferrethan485/SmartX/internal/irq"

// Record is one fault entry: the source location and the tick at which it
// was recorded.
type Record struct {
	File string
	Line int32
	Time uint32
}

// Log is a fixed-capacity ring of Records. The zero value is not usable;
// build one with NewLog.
type Log struct {
	gate irq.Gate
	ring []Record
	head int
	tail int
	full bool
}

// NewLog builds a log with room for capacity records (FAULT_AMOUNT).
func NewLog(capacity int) *Log {
	return &Log{ring: make([]Record, capacity)}
}

// Record appends (file, line, now) to the log. When the log is full, it
// overwrites the oldest record rather than reject the new one — a fault
// that arrives when the log is saturated is more informative live than
// buffered.
func (l *Log) Record(file string, line int32, now uint32) {
	l.gate.Do(func() {
		l.ring[l.head] = Record{File: file, Line: line, Time: now}
		l.head = (l.head + 1) % len(l.ring)
		if l.full {
			l.tail = (l.tail + 1) % len(l.ring)
		}
		if l.head == l.tail {
			l.full = true
		}
	})
}

// Get pops the oldest record, reporting false if the log is empty.
func (l *Log) Get() (Record, bool) {
	var rec Record
	var ok bool
	l.gate.Do(func() {
		if l.head == l.tail && !l.full {
			return
		}
		rec = l.ring[l.tail]
		l.tail = (l.tail + 1) % len(l.ring)
		l.full = false
		ok = true
	})
	return rec, ok
}

// Empty reports whether the log currently holds no records.
func (l *Log) Empty() bool {
	var empty bool
	l.gate.Do(func() { empty = l.head == l.tail && !l.full })
	return empty
}

// Len reports the number of records currently held.
func (l *Log) Len() int {
	var n int
	l.gate.Do(func() {
		switch {
		case l.full:
			n = len(l.ring)
		case l.head >= l.tail:
			n = l.head - l.tail
		default:
			n = len(l.ring) - l.tail + l.head
		}
	})
	return n
}

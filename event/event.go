// Package event implements the Event header (L3): an immutable-after
// -construction record with a signal, a priority, a preempt threshold, an
// opaque payload, a reference count, and a static/dynamic flag. Dynamic
// events are drawn from a Pool and returned to it when refcount drops to
// zero; static events, built with Init, are never pooled.
package event

import (
	"errors"

	"github.com/ferrethan485/SmartX/internal/fbpool"
	"github.com/ferrethan485/SmartX/internal/irq"
)

// ErrThresholdAbovePriority is a construction-time fault: threshold must
// never exceed priority (a lower number is a higher priority).
var ErrThresholdAbovePriority = errors.New("event: threshold must be <= priority")

// ReleaseOutcome resolves the ambiguity in original_source/event.c's
// event_release, whose static-event path returned an uninitialized value.
// Release now always reports what actually happened.
type ReleaseOutcome int

const (
	// StillHeld means the refcount dropped but is still above zero.
	StillHeld ReleaseOutcome = iota
	// ReleasedToPool means refcount hit zero and the dynamic event's
	// block was returned to its pool.
	ReleasedToPool
	// StaticNoop means refcount hit zero but the event is static, so
	// there is no pool block to recycle.
	StaticNoop
)

// Event is a header carrying a signal, priority, threshold, opaque payload,
// refcount, and static/dynamic flag. The zero value is not valid; build one
// with Init (static) or a Pool's New (dynamic).
type Event struct {
	Signal    uint16
	Priority  uint16
	Threshold uint16
	// Record is the opaque payload. The runtime never frees it.
	Record any

	refcount int32
	dynamic  bool
	gate     *irq.Gate
	handle   *fbpool.Handle[Event]
	owner    *Pool
}

// Init statically initializes a caller-allocated Event. Static events are
// never returned to a pool; Release on one still tracks the refcount but
// always reports StaticNoop once it reaches zero.
func Init(e *Event, signal, priority, threshold uint16) error {
	if threshold > priority {
		return ErrThresholdAbovePriority
	}
	e.Signal = signal
	e.Priority = priority
	e.Threshold = threshold
	e.Record = nil
	e.refcount = 0
	e.dynamic = false
	e.gate = &irq.Gate{}
	return nil
}

// Pool wraps a fixed-block pool sized to hold events of a uniform maximum
// size (L3's event pool).
type Pool struct {
	blocks *fbpool.Pool[Event]
	gate   irq.Gate
}

// NewPool builds an event pool with the given block capacity.
func NewPool(capacity int) *Pool {
	return &Pool{blocks: fbpool.New[Event](capacity)}
}

// New allocates a dynamic event from the pool. A nil, ErrExhausted return is
// a transient-exhaustion condition the caller must handle (drop, log,
// proceed) — it is not a fault.
func (p *Pool) New(signal, priority, threshold uint16) (*Event, error) {
	if threshold > priority {
		return nil, ErrThresholdAbovePriority
	}
	h, err := p.blocks.Get()
	if err != nil {
		return nil, err
	}
	e := h.Value()
	e.Signal = signal
	e.Priority = priority
	e.Threshold = threshold
	e.Record = nil
	e.refcount = 0
	e.dynamic = true
	e.gate = &p.gate
	e.handle = h
	e.owner = p
	return e, nil
}

// Margin returns the historical minimum of free blocks, for pool sizing.
func (p *Pool) Margin() int { return p.blocks.Margin() }

// Free returns the current free-block count.
func (p *Pool) Free() int { return p.blocks.Free() }

// AllRecycled reports whether every block issued by the pool has been put
// back.
func (p *Pool) AllRecycled() bool { return p.blocks.AllRecycled() }

// Retain increments the refcount. The scheduler's publish calls it once for
// each subscriber event chain it links the event into; the scheduler inbox
// holds a posted event without a reference of its own, and moving an event
// onto a defer chain carries over the subscriber's existing reference.
func (e *Event) Retain() {
	e.gate.Do(func() {
		e.refcount++
	})
}

// Release drops the refcount by one (never below zero) and, if it reaches
// zero and the event is dynamic, returns the block to its pool. Static
// events still have their refcount decremented the same way — original_
// source/epool.c's epool_release decrements event->dynamic_ unconditionally
// and only the final recycle step is gated on the static flag — so Refcount
// stays meaningful for a static event reused across many Retain/Release
// cycles (the scheduler's injected fault event, a periodic timer's event).
func (e *Event) Release() ReleaseOutcome {
	var outcome ReleaseOutcome
	var doPut bool
	e.gate.Do(func() {
		if e.refcount > 0 {
			e.refcount--
		}
		if e.refcount == 0 {
			if e.dynamic {
				outcome = ReleasedToPool
				doPut = true
			} else {
				outcome = StaticNoop
			}
		} else {
			outcome = StillHeld
		}
	})
	if doPut {
		_ = e.owner.blocks.Put(e.handle)
	}
	return outcome
}

// Refcount returns the current reference count, for tests and invariant
// checks.
func (e *Event) Refcount() int {
	var n int32
	e.gate.Do(func() { n = e.refcount })
	return int(n)
}

// IsDynamic reports whether the event was allocated from a Pool.
func (e *Event) IsDynamic() bool { return e.dynamic }

// Package timer implements the software timer wheel (L6): a single global
// doubly-linked list of armed timers, ticked from the tick ISR, delivering a
// caller-supplied event to the scheduler's inbox on expiry. Grounded on
// original_source/timer.c's timer_arm/timer_rearm/timer_disarm/task_timer.
package timer

import (
	"errors"

	"github.com/ferrethan485/SmartX/event"
	"github.com/ferrethan485/SmartX/internal/irq"
)

// ErrAlreadyArmed is a programming-error fault: Arm was called on a timer
// that is already linked into the wheel.
var ErrAlreadyArmed = errors.New("timer: already armed")

// ErrInvalidCount is a programming-error fault: count must be positive.
var ErrInvalidCount = errors.New("timer: count must be > 0")

// Timer is one armable timeout. The zero value is disarmed and ready to
// Arm; do not copy a Timer once armed.
type Timer struct {
	prev, next *Timer

	counter  int32
	interval int32
	event    *event.Event
}

// IsArmed reports whether the timer is currently linked into a wheel.
func (t *Timer) IsArmed() bool { return t.prev != nil }

// Wheel is the global list of armed timers. The zero value is ready to use.
type Wheel struct {
	gate irq.Gate
	head *Timer
}

// Arm links t into the wheel with the given initial count (ticks until
// first expiry) and interval (0 for one-shot, >0 for periodic reload). It
// fails if t is already armed.
func (w *Wheel) Arm(t *Timer, count, interval int32, evt *event.Event) error {
	if count <= 0 {
		return ErrInvalidCount
	}
	if interval < 0 {
		return ErrInvalidCount
	}
	var err error
	w.gate.Do(func() {
		if t.prev != nil {
			err = ErrAlreadyArmed
			return
		}
		t.counter = count
		t.interval = interval
		t.event = evt
		t.prev = t // marks "in use" before linking, per the original
		t.next = w.head
		if w.head != nil {
			w.head.prev = t
		}
		w.head = t
	})
	return err
}

// Rearm updates a timer's counter and interval in place. It reports whether
// the timer was armed at the time of the call; rearming a disarmed timer
// updates nothing and returns false.
func (w *Wheel) Rearm(t *Timer, count, interval int32) (bool, error) {
	if count <= 0 {
		return false, ErrInvalidCount
	}
	if interval < 0 {
		return false, ErrInvalidCount
	}
	var armed bool
	w.gate.Do(func() {
		if t.prev == nil {
			armed = false
			return
		}
		t.counter = count
		t.interval = interval
		armed = true
	})
	return armed, nil
}

// Disarm unlinks t from the wheel. It reports whether the timer was armed;
// disarming an already-disarmed timer is harmless and returns false.
func (w *Wheel) Disarm(t *Timer) bool {
	var wasArmed bool
	w.gate.Do(func() {
		if t.prev == nil {
			return
		}
		wasArmed = true
		w.unlink(t)
		t.prev = nil
	})
	return wasArmed
}

// unlink removes t from the list. The original C implementation left the
// new head's prev pointing at itself after removing the old head, which
// this port does not reproduce — it clears it to nil like every other
// disarmed timer.
func (w *Wheel) unlink(t *Timer) {
	if t == w.head {
		w.head = t.next
		if w.head != nil {
			w.head.prev = nil
		}
	} else {
		if t.next != nil {
			t.next.prev = t.prev
		}
		t.prev.next = t.next
	}
}

// Tick decrements every armed timer's counter by one. Timers that reach
// zero are reloaded (periodic) or unlinked (one-shot), then post is called
// with the timer's event, exactly like any other caller handing an event
// to the scheduler's inbox: post's own fan-out settles the refcount back
// to 0 once every subscriber has run, so Tick does not retain on the
// timer's behalf. A periodic timer's event is therefore at rest (refcount
// 0) between expiries, not accumulating a stranded reference each period.
// Timers expiring on the same tick fire in list order.
func (w *Wheel) Tick(post func(evt *event.Event) error) error {
	var expired []*event.Event
	w.gate.Do(func() {
		t := w.head
		for t != nil {
			next := t.next
			t.counter--
			if t.counter == 0 {
				if t.interval > 0 {
					t.counter = t.interval
				} else {
					w.unlink(t)
					t.prev = nil
				}
				expired = append(expired, t.event)
			}
			t = next
		}
	})
	for _, evt := range expired {
		if err := post(evt); err != nil {
			return err
		}
	}
	return nil
}

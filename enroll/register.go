// Package enroll implements the subscription register (L4): a
// priority-ordered chain of per-signal descriptors, each holding its own
// chain of subscribing active objects. It is the data structure behind
// Subscribe, Unsubscribe, UnsubscribeAll, and the fan-out side of Publish.
//
// A signal gets a descriptor the first time anything subscribes to it; the
// descriptor is dropped once its last subscriber leaves. Binding the same
// active object to the same signal twice is a no-op, matching
// original_source/manager.c's man_subscribe, which walks the existing
// subscriber chain before appending.
package enroll

import (
	"github.com/ferrethan485/SmartX/chain"
	"github.com/ferrethan485/SmartX/event"
	"github.com/ferrethan485/SmartX/internal/irq"
)

// Descriptor binds one signal to the chain of active objects subscribed to
// it. Priority is the signal's template event priority, used to keep the
// register itself priority-ordered (signals with smaller priority values,
// the more urgent ones, come first in the scheduler's polling scan, which
// walks front-to-back).
type Descriptor struct {
	Signal      uint16
	Priority    uint16
	Subscribers chain.Chain

	// tmpl is the first subscriber's template event. The descriptor owns
	// it for as long as it has at least one subscriber and releases it
	// when the last one leaves.
	tmpl *event.Event
}

// Register is the subscription register. The zero value is not usable; build
// one with NewRegister.
type Register struct {
	gate        irq.Gate
	descriptors chain.Chain
	pool        *chain.CellPool
}

// NewRegister builds an empty register backed by pool for both its
// descriptor chain and every descriptor's subscriber chain.
func NewRegister(pool *chain.CellPool) *Register {
	return &Register{pool: pool}
}

func (r *Register) find(signal uint16) *Descriptor {
	var found *Descriptor
	r.descriptors.Walk(func(p any, _ uint16) bool {
		d := p.(*Descriptor)
		if d.Signal == signal {
			found = d
			return false
		}
		return true
	})
	return found
}

// Subscribe binds active (at subscriberPriority) to tmpl.Signal. tmpl is a
// template event carrying the signal's canonical priority. The first
// subscriber of a signal hands its template to the new descriptor, which
// owns it until the last subscriber leaves; every later subscriber's
// template is redundant and is released immediately — mirroring
// man_subscribe's "event already bound, release the duplicate" branch.
// Binding the same active object twice is a no-op, not an error.
func (r *Register) Subscribe(tmpl *event.Event, subscriberPriority uint16, active any) error {
	var err error
	r.gate.Do(func() {
		desc := r.find(tmpl.Signal)
		if desc == nil {
			desc = &Descriptor{Signal: tmpl.Signal, Priority: tmpl.Priority, tmpl: tmpl}
			if e := r.descriptors.Insert(r.pool, tmpl.Priority, desc); e != nil {
				err = e
				return
			}
		} else {
			tmpl.Release()
		}

		dup := false
		desc.Subscribers.Walk(func(p any, _ uint16) bool {
			if p == active {
				dup = true
				return false
			}
			return true
		})
		if dup {
			return
		}
		err = desc.Subscribers.Insert(r.pool, subscriberPriority, active)
	})
	return err
}

// Unsubscribe removes active from tmpl.Signal's subscriber chain, releasing
// the caller's tmpl unconditionally (it is only ever used to identify the
// signal). If the descriptor's subscriber chain becomes empty, the
// descriptor itself is dropped and the template it has owned since its
// first Subscribe is released too.
func (r *Register) Unsubscribe(tmpl *event.Event, active any) {
	r.gate.Do(func() {
		tmpl.Release()
		desc := r.find(tmpl.Signal)
		if desc == nil {
			return
		}
		desc.Subscribers.Remove(r.pool, active)
		if desc.Subscribers.Empty() {
			r.descriptors.Remove(r.pool, desc)
			desc.tmpl.Release()
		}
	})
}

// UnsubscribeAll removes active from every descriptor it is bound to,
// dropping any descriptor left with no subscribers and releasing its owned
// template. Used when an active object is destroyed or reset.
func (r *Register) UnsubscribeAll(active any) {
	r.gate.Do(func() {
		var empty []*Descriptor
		r.descriptors.Walk(func(p any, _ uint16) bool {
			d := p.(*Descriptor)
			d.Subscribers.Remove(r.pool, active)
			if d.Subscribers.Empty() {
				empty = append(empty, d)
			}
			return true
		})
		for _, d := range empty {
			r.descriptors.Remove(r.pool, d)
			d.tmpl.Release()
		}
	})
}

// Subscribers returns the descriptor for signal, if any is currently bound.
// The returned Descriptor must only be read, not mutated, outside the
// register's own methods.
func (r *Register) Subscribers(signal uint16) (*Descriptor, bool) {
	var d *Descriptor
	r.gate.Do(func() {
		d = r.find(signal)
	})
	return d, d != nil
}

// Empty reports whether the register currently has no signals bound at all.
func (r *Register) Empty() bool {
	var empty bool
	r.gate.Do(func() { empty = r.descriptors.Empty() })
	return empty
}

// DescriptorsHead returns the head cell of the descriptor chain, or nil if
// empty. Exposed for the scheduler's polling-scan cursor, which must walk
// descriptors non-destructively across many Step calls.
func (r *Register) DescriptorsHead() *chain.Cell {
	var head *chain.Cell
	r.gate.Do(func() { head = r.descriptors.HeadCell() })
	return head
}

// Walk calls fn for each bound descriptor in priority order, stopping early
// if fn returns false. Intended for the scheduler's polling scan.
func (r *Register) Walk(fn func(d *Descriptor) bool) {
	r.gate.Do(func() {
		r.descriptors.Walk(func(p any, _ uint16) bool {
			return fn(p.(*Descriptor))
		})
	})
}

// Package activeobject implements the active-object engine (L6): a state
// machine plus an event chain, a deferred-event chain, and lifecycle flags,
// driven one run-to-completion step at a time by Run. The scheduler calls
// Run; it never reaches into an active object's chains directly.
package activeobject

import (
	"github.com/ferrethan485/SmartX/chain"
	"github.com/ferrethan485/SmartX/event"
	"github.com/ferrethan485/SmartX/hsm"
	"github.com/ferrethan485/SmartX/internal/irq"
)

// Engine is the state-machine interface an Active drives. Both *hsm.HSM and
// *hsm.FSM satisfy it.
type Engine interface {
	Dispatch(evt *event.Event) (hsm.Verdict, error)
	IsIdle() bool
	RunService() error
}

// Step is the outcome of one Run call.
type Step int

const (
	// StepIdle means there was nothing to do this step.
	StepIdle Step = iota
	// StepProgressed means the step did useful work: a lifecycle
	// transition fired, a deferred event was recalled, or an event was
	// dispatched.
	StepProgressed
	// StepError means a handler returned an error. The caller should
	// treat this as a fault, not a retryable condition.
	StepError
)

// Active is one active object: a name, a scheduling priority, the state
// machine it drives, its own event and deferred-event chains, and the
// exit/reset/pause lifecycle flags the scheduler and application toggle
// from outside a running step.
type Active struct {
	Name     string
	Priority uint16

	engine Engine
	pool   *chain.CellPool
	events chain.Chain
	defers chain.Chain

	gate     irq.Gate
	exitReq  bool
	resetReq bool
	pauseReq bool

	// OnExit and OnReset are called when the corresponding request flag
	// is observed at the top of Run. Either may be nil.
	OnExit  func() error
	OnReset func() error
}

// New builds an active object around engine, drawing event-chain cells from
// pool. The caller is responsible for calling engine.Start (or equivalent)
// before the first Run.
func New(name string, priority uint16, engine Engine, pool *chain.CellPool) *Active {
	return &Active{Name: name, Priority: priority, engine: engine, pool: pool}
}

// RequestExit flags the object to run its exit hook on the next step.
func (a *Active) RequestExit() { a.gate.Do(func() { a.exitReq = true }) }

// RequestReset flags the object to run its reset hook on the next step.
func (a *Active) RequestReset() { a.gate.Do(func() { a.resetReq = true }) }

// RequestPause flags the object to go idle on the next step without
// processing its chains.
func (a *Active) RequestPause() { a.gate.Do(func() { a.pauseReq = true }) }

// Resume clears a pending pause request.
func (a *Active) Resume() { a.gate.Do(func() { a.pauseReq = false }) }

// Post appends evt to this object's event chain, priority-ordered. The
// caller must already hold a reference (Retain) on evt's behalf; Post does
// not change the refcount.
func (a *Active) Post(evt *event.Event) error {
	return a.events.Insert(a.pool, evt.Priority, evt)
}

// EventsEmpty reports whether the object's event chain has no pending
// events.
func (a *Active) EventsEmpty() bool { return a.events.Empty() }

// DefersEmpty reports whether the object's deferred-event chain has no
// pending events.
func (a *Active) DefersEmpty() bool { return a.defers.Empty() }

// Run performs exactly one active-object step, per spec section 4.5:
//
//  1. exit_req: run OnExit, clear the flag, return.
//  2. reset_req: run OnReset, clear the flag, return.
//  3. pause_req: return idle without touching either chain.
//  4. if the engine is idle and the defer chain is non-empty: recall one
//     deferred event, dispatch it, release it, run the state's service.
//  5. else if the event chain is non-empty: pop the highest-priority
//     event and dispatch it. An Unhandled verdict moves the event onto
//     the defer chain instead of releasing it. A Handled verdict
//     releases it and runs the state's service.
//  6. otherwise, idle.
func (a *Active) Run() (Step, error) {
	if a.exitReq {
		if a.OnExit != nil {
			if err := a.OnExit(); err != nil {
				return StepError, err
			}
		}
		a.exitReq = false
		return StepProgressed, nil
	}
	if a.resetReq {
		if a.OnReset != nil {
			if err := a.OnReset(); err != nil {
				return StepError, err
			}
		}
		a.resetReq = false
		return StepProgressed, nil
	}
	if a.pauseReq {
		return StepIdle, nil
	}

	if a.engine.IsIdle() && !a.defers.Empty() {
		payload, _ := a.defers.PopHead(a.pool)
		evt := payload.(*event.Event)
		if _, err := a.engine.Dispatch(evt); err != nil {
			return StepError, err
		}
		evt.Release()
		if err := a.engine.RunService(); err != nil {
			return StepError, err
		}
		return StepProgressed, nil
	}

	if !a.events.Empty() {
		payload, _ := a.events.PopHead(a.pool)
		evt := payload.(*event.Event)
		verdict, err := a.engine.Dispatch(evt)
		if err != nil {
			return StepError, err
		}
		if verdict == hsm.Unhandled {
			if err := a.defers.Insert(a.pool, evt.Priority, evt); err != nil {
				return StepError, err
			}
			return StepProgressed, nil
		}
		evt.Release()
		if err := a.engine.RunService(); err != nil {
			return StepError, err
		}
		return StepProgressed, nil
	}

	return StepIdle, nil
}

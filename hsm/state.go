// Package hsm implements the hierarchical state machine engine (L5): states
// arranged in a parent/child tree, reactions scanned by bubbling the active
// signal from the current state toward the root, and a transition executor
// that walks the least-common-ancestor path between source and target.
package hsm

import "github.com/ferrethan485/SmartX/event"

// Verdict is the outcome of a Dispatch call.
type Verdict int

const (
	// Handled means the event matched a reaction (possibly a guarded
	// no-op) and was fully processed.
	Handled Verdict = iota
	// Unhandled means no ancestor of the current state reacts to the
	// event's signal; the caller decides whether to discard or defer it.
	Unhandled
	// Err means a state handler (guard, action, on-enter, on-exit)
	// returned an error. The engine treats this as a programming fault,
	// not a recoverable condition.
	Err
)

// Guard gates whether a matched reaction's transition proceeds.
type Guard func(evt *event.Event) bool

// Action is the transition's effect, run after the guard passes and after
// the transition's exits, before any entry.
type Action func(evt *event.Event) error

// Reaction binds a signal, at one state, to a guard, an action, and an
// optional target. A nil Target is an internal transition: the action runs
// but current never changes and no on_exit/on_enter fires. External
// controls the self-transition special case when Target equals the state
// the reaction is declared on.
type Reaction struct {
	Signal   uint16
	Guard    Guard
	Action   Action
	Target   *State
	External bool
}

// State is one node of the hierarchy. The zero value is not usable; build
// states with HSM.NewState.
type State struct {
	Name string

	parent       *State
	defaultChild *State
	reactions    []Reaction

	OnEnter func() error
	OnExit  func() error
	// Service is the state's "do" action, run at most once per
	// active-object step, after that step has dispatched an event.
	Service func() error
}

// AddReaction appends a reaction to s's table. Reactions are scanned in
// declaration order; the first matching signal wins, so order encodes
// precedence.
func (s *State) AddReaction(signal uint16, guard Guard, action Action, target *State, external bool) {
	s.reactions = append(s.reactions, Reaction{
		Signal:   signal,
		Guard:    guard,
		Action:   action,
		Target:   target,
		External: external,
	})
}

// SetDefaultChild marks child as the state entered automatically whenever a
// transition lands on s without driving deeper — the "drill into target"
// step of the transition algorithm.
func (s *State) SetDefaultChild(child *State) {
	s.defaultChild = child
}

// Parent returns s's parent, or nil if s is the HSM root or a final state.
func (s *State) Parent() *State { return s.parent }

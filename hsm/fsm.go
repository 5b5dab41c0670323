package hsm

import "github.com/ferrethan485/SmartX/event"

// FSM is the flat-state specialization of HSM: every state is a direct
// child of the root, so dispatch never bubbles past one level and
// transitions never need an LCA walk. It reuses HSM's machinery with
// maxDepth fixed at 1, which both bounds entry-path length to a single
// state and forbids building sub-hierarchies by construction.
type FSM struct {
	hsm *HSM
}

// NewFSM builds an empty flat state machine.
func NewFSM() *FSM {
	return &FSM{hsm: New(1)}
}

// NewState creates a top-level state. FSM has no concept of nested states,
// so every state's parent is the FSM's root.
func (f *FSM) NewState(name string) *State {
	return f.hsm.NewState(name, nil)
}

// NewFinalState creates a terminal state.
func (f *FSM) NewFinalState(name string) *State {
	return f.hsm.NewFinalState(name)
}

// SetInitial designates the state entered by Start.
func (f *FSM) SetInitial(s *State) {
	f.hsm.Root().SetDefaultChild(s)
}

// Start enters the initial state.
func (f *FSM) Start() error { return f.hsm.Start() }

// Current returns the active state.
func (f *FSM) Current() *State { return f.hsm.Current() }

// IsIdle reports whether the machine is not presently inside Dispatch.
func (f *FSM) IsIdle() bool { return f.hsm.IsIdle() }

// IsFinalState reports whether the current state is final.
func (f *FSM) IsFinalState() bool { return f.hsm.IsFinalState() }

// Dispatch routes evt to the current state's reaction table. Since every
// state is flat, there is no bubbling: a state either reacts to the signal
// itself or the event is Unhandled.
func (f *FSM) Dispatch(evt *event.Event) (Verdict, error) {
	return f.hsm.Dispatch(evt)
}

// RunService invokes the current state's Service action, if any.
func (f *FSM) RunService() error { return f.hsm.RunService() }

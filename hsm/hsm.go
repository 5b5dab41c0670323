package hsm

import (
	"errors"

	"github.com/ferrethan485/SmartX/event"
)

// ErrReentrantDispatch is a programming-error fault: Dispatch was called
// while another Dispatch on the same HSM was still running. The engine is
// run-to-completion and single-threaded by design; this can only happen if
// a state handler calls back into Dispatch.
var ErrReentrantDispatch = errors.New("hsm: reentrant dispatch")

// ErrDepthExceeded is a construction-error fault: a transition's entry path
// is deeper than HSM_MAX_DEPTH, meaning the hierarchy was built deeper than
// the engine was sized for.
var ErrDepthExceeded = errors.New("hsm: transition depth exceeds HSM_MAX_DEPTH")

// HSM is one hierarchical state machine instance: a tree of States rooted at
// an internal sentinel, plus the cursor tracking which state is current.
type HSM struct {
	root     *State
	current  *State
	maxDepth int
	busy     bool
}

// New builds an HSM whose transition entry-path stack is bounded at
// maxDepth (HSM_MAX_DEPTH).
func New(maxDepth int) *HSM {
	return &HSM{root: &State{Name: "root"}, maxDepth: maxDepth}
}

// NewState creates a state under parent. A nil parent attaches the state
// directly under the HSM's root.
func (h *HSM) NewState(name string, parent *State) *State {
	if parent == nil {
		parent = h.root
	}
	return &State{Name: name, parent: parent}
}

// NewFinalState creates a terminal state with no parent. IsFinalState
// reports true once the HSM transitions into it, and further Dispatch calls
// become no-ops.
func (h *HSM) NewFinalState(name string) *State {
	return &State{Name: name}
}

// Root returns the HSM's sentinel root state, the parent of every top-level
// state.
func (h *HSM) Root() *State { return h.root }

// Current returns the state the HSM is presently in. Valid only after Start.
func (h *HSM) Current() *State { return h.current }

// Start runs init_trans: it drills from the root down the default-child
// chain, entering each state along the way, until it reaches an atomic
// state with no default child.
func (h *HSM) Start() error {
	h.current = h.root
	return h.drillInto()
}

// IsIdle reports whether the HSM is not presently inside a Dispatch call —
// always true for callers, since Dispatch runs to completion before
// returning. Exposed for the active-object engine's step 4 check.
func (h *HSM) IsIdle() bool { return !h.busy }

// RunService invokes the current state's Service ("do") action, if any. The
// active-object engine calls this at most once per step.
func (h *HSM) RunService() error {
	if h.current != nil && h.current.Service != nil {
		return h.current.Service()
	}
	return nil
}

// IsFinalState reports whether the current state is a final state: it has
// no parent and is not the root sentinel.
func (h *HSM) IsFinalState() bool {
	return h.current != nil && h.current.parent == nil && h.current != h.root
}

// Dispatch bubbles evt's signal from the current state toward the root,
// looking for the first reaction whose Signal matches. See package doc and
// spec section 4.4 for the full algorithm.
func (h *HSM) Dispatch(evt *event.Event) (Verdict, error) {
	if h.busy {
		return Err, ErrReentrantDispatch
	}
	h.busy = true
	defer func() { h.busy = false }()

	if h.IsFinalState() {
		return Handled, nil
	}

	work := h.current
	var matched *Reaction
	for work != nil {
		for i := range work.reactions {
			if work.reactions[i].Signal == evt.Signal {
				matched = &work.reactions[i]
				break
			}
		}
		if matched != nil {
			break
		}
		work = work.parent
	}
	if matched == nil {
		return Unhandled, nil
	}

	if matched.Guard != nil && !matched.Guard(evt) {
		return Handled, nil
	}

	// Every exit this transition requires — bubbling current up to work,
	// plus (for a self- or cross-subtree transition) up to the LCA — runs
	// eagerly, before the action, so on_exit always precedes the
	// transition's effect and its on_enter handlers.
	entryFrom, internal, err := h.exitForTransition(work, matched.Target, matched.External)
	if err != nil {
		return Err, err
	}

	if matched.Action != nil {
		if err := matched.Action(evt); err != nil {
			return Err, err
		}
	}
	if matched.Target == nil || internal {
		return Handled, nil
	}
	if err := h.enterPath(entryFrom, matched.Target); err != nil {
		return Err, err
	}
	if err := h.drillInto(); err != nil {
		return Err, err
	}
	return Handled, nil
}

// exitForTransition exits current from its present position down to the
// point entries for tgt will resume from, covering every case spec section
// 4.4 enumerates: bubbling up to src, a self-transition's own exit, or the
// walk up to the LCA of src and tgt (up to the root when tgt is a final
// state). It reports the state entries should
// resume from (entryFrom) and whether this is a purely internal self-reaction
// with no exits or entries at all.
func (h *HSM) exitForTransition(src, tgt *State, external bool) (entryFrom *State, internal bool, err error) {
	if tgt == nil {
		// A pure action with no transition: current never moves, so the
		// bubble up to src is never exited either.
		return nil, true, nil
	}

	if err := h.exitUpTo(src); err != nil {
		return nil, false, err
	}

	switch {
	case tgt.parent == nil && tgt != h.root:
		// A final state hangs off no parent, so there is no common
		// ancestor: exit every state up to the root and enter it alone.
		if err := h.exitUpTo(h.root); err != nil {
			return nil, false, err
		}
		return nil, false, nil

	case src == tgt && !external:
		return nil, true, nil

	case src == tgt && external:
		if err := callExit(src); err != nil {
			return nil, false, err
		}
		h.current = src.parent
		return src.parent, false, nil

	case isDescendant(tgt, src) && !external:
		return src, false, nil

	default:
		lca, err := findLCA(src, tgt, h.maxDepth)
		if err != nil {
			return nil, false, err
		}
		if err := h.exitUpTo(lca); err != nil {
			return nil, false, err
		}
		return lca, false, nil
	}
}

// exitUpTo exits current through (but not including) target.
func (h *HSM) exitUpTo(target *State) error {
	for h.current != target {
		if err := callExit(h.current); err != nil {
			return err
		}
		h.current = h.current.parent
	}
	return nil
}

// enterPath builds the stack of states from tgt up to (exclusive) from,
// bounded by maxDepth, then enters them root-to-leaf.
func (h *HSM) enterPath(from, tgt *State) error {
	stack := make([]*State, 0, h.maxDepth)
	cursor := tgt
	for cursor != from {
		if len(stack) >= h.maxDepth {
			return ErrDepthExceeded
		}
		stack = append(stack, cursor)
		cursor = cursor.parent
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if err := callEnter(stack[i]); err != nil {
			return err
		}
		h.current = stack[i]
	}
	return nil
}

// drillInto follows default_child links from the current state until it
// reaches an atomic state, entering each child along the way.
func (h *HSM) drillInto() error {
	for h.current.defaultChild != nil {
		child := h.current.defaultChild
		if err := callEnter(child); err != nil {
			return err
		}
		h.current = child
	}
	return nil
}

func callEnter(s *State) error {
	if s.OnEnter != nil {
		return s.OnEnter()
	}
	return nil
}

func callExit(s *State) error {
	if s.OnExit != nil {
		return s.OnExit()
	}
	return nil
}

func isDescendant(tgt, src *State) bool {
	for s := tgt.parent; s != nil; s = s.parent {
		if s == src {
			return true
		}
	}
	return false
}

func findLCA(src, tgt *State, maxDepth int) (*State, error) {
	ancestors := make(map[*State]bool, maxDepth)
	depth := 0
	for s := src; s != nil; s = s.parent {
		ancestors[s] = true
		depth++
		if depth > maxDepth+1 {
			return nil, ErrDepthExceeded
		}
	}
	depth = 0
	for t := tgt; t != nil; t = t.parent {
		if ancestors[t] {
			return t, nil
		}
		depth++
		if depth > maxDepth+1 {
			return nil, ErrDepthExceeded
		}
	}
	return nil, ErrDepthExceeded
}

package hsm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ferrethan485/SmartX/event"
)

const (
	sigA uint16 = iota + 1
	sigB
	sigC
	sigInternal
)

func newEvt(signal uint16) *event.Event {
	var e event.Event
	_ = event.Init(&e, signal, 10, 10)
	return &e
}

// Builds a three-level hierarchy:
//
//	root
//	 └─ top (default: a)
//	     ├─ a
//	     └─ b (default: b1)
//	         └─ b1
func newFixture(t *testing.T) (*HSM, map[string]*State, *[]string) {
	t.Helper()
	h := New(16)
	var trace []string
	mark := func(name, kind string) func() error {
		return func() error { trace = append(trace, name+":"+kind); return nil }
	}

	top := h.NewState("top", nil)
	a := h.NewState("a", top)
	b := h.NewState("b", top)
	b1 := h.NewState("b1", b)

	top.OnEnter, top.OnExit = mark("top", "enter"), mark("top", "exit")
	a.OnEnter, a.OnExit = mark("a", "enter"), mark("a", "exit")
	b.OnEnter, b.OnExit = mark("b", "enter"), mark("b", "exit")
	b1.OnEnter, b1.OnExit = mark("b1", "enter"), mark("b1", "exit")

	h.Root().SetDefaultChild(top)
	top.SetDefaultChild(a)
	b.SetDefaultChild(b1)

	states := map[string]*State{"top": top, "a": a, "b": b, "b1": b1}
	return h, states, &trace
}

func TestStartDrillsIntoDefaultChildChain(t *testing.T) {
	h, states, trace := newFixture(t)
	require.NoError(t, h.Start())
	require.Equal(t, states["a"], h.Current())
	require.Equal(t, []string{"top:enter", "a:enter"}, *trace)
}

func TestExternalTransitionAcrossSiblings(t *testing.T) {
	h, states, trace := newFixture(t)
	require.NoError(t, h.Start())
	*trace = nil

	states["a"].AddReaction(sigA, nil, nil, states["b"], true)
	v, err := h.Dispatch(newEvt(sigA))
	require.NoError(t, err)
	require.Equal(t, Handled, v)
	require.Equal(t, states["b1"], h.Current())
	require.Equal(t, []string{"a:exit", "b:enter", "b1:enter"}, *trace)
}

func TestDescendantTransitionDoesNotExitSource(t *testing.T) {
	h, states, trace := newFixture(t)
	states["top"].SetDefaultChild(states["b"])
	require.NoError(t, h.Start())
	require.Equal(t, states["b1"], h.Current())
	*trace = nil

	states["top"].AddReaction(sigB, nil, nil, states["b1"], false)
	v, err := h.Dispatch(newEvt(sigB))
	require.NoError(t, err)
	require.Equal(t, Handled, v)
	require.Equal(t, states["b1"], h.Current())
	// top is the LCA and is never exited; b1 is re-entered even though it
	// was already current, since the target explicitly names it.
	require.Equal(t, []string{"b1:exit", "b:exit", "b:enter", "b1:enter"}, *trace)
}

func TestSelfTransitionInternalDoesNothing(t *testing.T) {
	h, states, trace := newFixture(t)
	require.NoError(t, h.Start())
	*trace = nil

	fired := false
	states["a"].AddReaction(sigInternal, nil, func(*event.Event) error { fired = true; return nil }, nil, false)
	v, err := h.Dispatch(newEvt(sigInternal))
	require.NoError(t, err)
	require.Equal(t, Handled, v)
	require.True(t, fired)
	require.Equal(t, states["a"], h.Current())
	require.Empty(t, *trace)
}

func TestSelfTransitionExternalExitsAndReenters(t *testing.T) {
	h, states, trace := newFixture(t)
	require.NoError(t, h.Start())
	*trace = nil

	states["a"].AddReaction(sigA, nil, nil, states["a"], true)
	v, err := h.Dispatch(newEvt(sigA))
	require.NoError(t, err)
	require.Equal(t, Handled, v)
	require.Equal(t, states["a"], h.Current())
	require.Equal(t, []string{"a:exit", "a:enter"}, *trace)
}

func TestUnhandledSignalBubblesToRootAndReturnsUnhandled(t *testing.T) {
	h, _, _ := newFixture(t)
	require.NoError(t, h.Start())

	v, err := h.Dispatch(newEvt(sigC))
	require.NoError(t, err)
	require.Equal(t, Unhandled, v)
}

func TestGuardFalseIsHandledWithNoTransition(t *testing.T) {
	h, states, trace := newFixture(t)
	require.NoError(t, h.Start())
	*trace = nil

	states["a"].AddReaction(sigA, func(*event.Event) bool { return false }, nil, states["b"], true)
	v, err := h.Dispatch(newEvt(sigA))
	require.NoError(t, err)
	require.Equal(t, Handled, v)
	require.Equal(t, states["a"], h.Current())
	require.Empty(t, *trace)
}

func TestReactionLookupBubblesToAncestor(t *testing.T) {
	h, states, _ := newFixture(t)
	require.NoError(t, h.Start())

	states["top"].AddReaction(sigB, nil, nil, states["b"], true)
	v, err := h.Dispatch(newEvt(sigB))
	require.NoError(t, err)
	require.Equal(t, Handled, v)
	require.Equal(t, states["b1"], h.Current())
}

func TestFinalStateIgnoresFurtherDispatch(t *testing.T) {
	h, states, _ := newFixture(t)
	final := h.NewFinalState("done")
	states["a"].AddReaction(sigA, nil, nil, final, true)
	require.NoError(t, h.Start())

	_, err := h.Dispatch(newEvt(sigA))
	require.NoError(t, err)
	require.True(t, h.IsFinalState())

	v, err := h.Dispatch(newEvt(sigB))
	require.NoError(t, err)
	require.Equal(t, Handled, v)
}

var errBoom = errors.New("boom")

func TestActionErrorSurfacesAsErrVerdict(t *testing.T) {
	h, states, _ := newFixture(t)
	require.NoError(t, h.Start())

	states["a"].AddReaction(sigA, nil, func(*event.Event) error { return errBoom }, states["b"], true)
	v, err := h.Dispatch(newEvt(sigA))
	require.ErrorIs(t, err, errBoom)
	require.Equal(t, Err, v)
}

func TestReentrantDispatchIsRejected(t *testing.T) {
	h, states, _ := newFixture(t)
	require.NoError(t, h.Start())

	states["a"].AddReaction(sigA, nil, func(evt *event.Event) error {
		_, err := h.Dispatch(evt)
		require.ErrorIs(t, err, ErrReentrantDispatch)
		return nil
	}, nil, false)

	_, err := h.Dispatch(newEvt(sigA))
	require.NoError(t, err)
}

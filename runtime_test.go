package smartx

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ferrethan485/SmartX/activeobject"
	"github.com/ferrethan485/SmartX/config"
	"github.com/ferrethan485/SmartX/event"
	"github.com/ferrethan485/SmartX/hsm"
	"github.com/ferrethan485/SmartX/timer"
)

const sigPing uint16 = 1

func newPingObject(t *testing.T, rt *Runtime, name string, priority uint16) (*activeobject.Active, *int) {
	t.Helper()
	return newSignalCountingObject(t, rt, name, priority, sigPing)
}

// newSignalCountingObject builds an active object whose FSM counts every
// dispatch of signal, registers it with rt, and returns the running count.
func newSignalCountingObject(t *testing.T, rt *Runtime, name string, priority, signal uint16) (*activeobject.Active, *int) {
	t.Helper()
	f := hsm.NewFSM()
	s := f.NewState("s")
	f.SetInitial(s)
	count := 0
	s.AddReaction(signal, nil, func(*event.Event) error { count++; return nil }, nil, false)
	require.NoError(t, f.Start())
	ao := activeobject.New(name, priority, f, rt.CellPool())
	require.NoError(t, rt.Register(ao))
	return ao, &count
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	bad := config.Default()
	bad.MStackAmount = 0
	_, err := New(bad, nil)
	require.Error(t, err)
}

func TestRuntimeDispatchesPublishedEventToSubscriber(t *testing.T) {
	rt, err := New(config.Default(), nil)
	require.NoError(t, err)

	ao, count := newPingObject(t, rt, "pinger", 1)

	tmpl, err := rt.EventPool().New(sigPing, 1, 1)
	require.NoError(t, err)
	require.NoError(t, rt.Subscribe(tmpl, 1, ao))

	evt, err := rt.EventPool().New(sigPing, 1, 1)
	require.NoError(t, err)
	require.NoError(t, rt.Post(evt))

	// drain (pops, publishes) -> drive (runs the sole subscriber)
	_, err = rt.Step()
	require.NoError(t, err)
	_, err = rt.Step()
	require.NoError(t, err)

	require.Equal(t, 1, *count)
}

func TestRegisterRejectsDuplicateName(t *testing.T) {
	rt, err := New(config.Default(), nil)
	require.NoError(t, err)

	ao, _ := newPingObject(t, rt, "dup", 1)
	err = rt.Register(ao)
	require.ErrorIs(t, err, ErrAlreadyRegistered)
}

func TestStopBroadcastsExitToEveryRegisteredObject(t *testing.T) {
	rt, err := New(config.Default(), nil)
	require.NoError(t, err)

	f := hsm.NewFSM()
	s := f.NewState("s")
	f.SetInitial(s)
	require.NoError(t, f.Start())
	ao := activeobject.New("exiter", 1, f, rt.CellPool())

	exited := false
	ao.OnExit = func() error { exited = true; return nil }
	require.NoError(t, rt.Register(ao))

	rt.Stop()
	step, err := ao.Run()
	require.NoError(t, err)
	require.Equal(t, activeobject.StepProgressed, step)
	require.True(t, exited)
}

func TestOnIdleFiresAfterFullPollingScanWrap(t *testing.T) {
	rt, err := New(config.Default(), nil)
	require.NoError(t, err)

	ao, _ := newPingObject(t, rt, "idle-pinger", 1)
	tmpl, err := rt.EventPool().New(sigPing, 1, 1)
	require.NoError(t, err)
	require.NoError(t, rt.Subscribe(tmpl, 1, ao))

	idled := false
	rt.OnIdle(func() { idled = true })

	_, err = rt.Step() // drain (inbox empty) -> drive
	require.NoError(t, err)
	_, err = rt.Step() // drive (no active publication group) -> scan
	require.NoError(t, err)
	_, err = rt.Step() // one full wrap over the sole subscriber, idle
	require.NoError(t, err)

	require.True(t, idled)
	require.Equal(t, 1, rt.IdleCount())
}

// TestFaultInjectionRecoversAfterSubscriberConsumesIt pins down a defect
// where the scheduler's reserved fault event never returned to refcount 0
// once delivered, permanently blocking injectFault's re-injection guard.
// Two separate fault records must each reach the subscriber.
func TestFaultInjectionRecoversAfterSubscriberConsumesIt(t *testing.T) {
	rt, err := New(config.Default(), nil)
	require.NoError(t, err)

	ao, count := newSignalCountingObject(t, rt, "fault-watcher", 1, FaultSignal)
	tmpl, err := rt.EventPool().New(FaultSignal, 1, 1)
	require.NoError(t, err)
	require.NoError(t, rt.Subscribe(tmpl, 1, ao))

	rt.FaultLog().Record("a.go", 1, 1)
	for i := 0; i < 10 && *count < 1; i++ {
		_, err = rt.Step()
		require.NoError(t, err)
	}
	require.Equal(t, 1, *count, "first fault must reach the subscriber")

	// A second record must not be blocked by the first injection's event
	// being stranded at a nonzero refcount.
	rt.FaultLog().Record("b.go", 2, 2)
	for i := 0; i < 10 && *count < 2; i++ {
		_, err = rt.Step()
		require.NoError(t, err)
	}
	require.Equal(t, 2, *count, "second fault must not be blocked by the first")
}

// TestPeriodicTimerEventRefcountReturnsToRestBetweenPeriods pins down a
// defect where Wheel.Tick's pre-emptive Retain, uncompensated by the
// scheduler's drain, grew a periodic timer's event refcount by one every
// period it had a subscriber.
func TestPeriodicTimerEventRefcountReturnsToRestBetweenPeriods(t *testing.T) {
	rt, err := New(config.Default(), nil)
	require.NoError(t, err)

	const sigTimer uint16 = 7
	ao, count := newSignalCountingObject(t, rt, "timer-watcher", 1, sigTimer)
	tmpl, err := rt.EventPool().New(sigTimer, 1, 1)
	require.NoError(t, err)
	require.NoError(t, rt.Subscribe(tmpl, 1, ao))

	var timerEvt event.Event
	require.NoError(t, event.Init(&timerEvt, sigTimer, 1, 1))
	var tm timer.Timer
	require.NoError(t, rt.Timers().Arm(&tm, 1, 1, &timerEvt))

	for period := 1; period <= 3; period++ {
		require.Equal(t, 0, timerEvt.Refcount(), "event must be at rest before the next tick")
		require.NoError(t, rt.Tick())
		_, err = rt.Step() // drain: pops the timer's event, publishes
		require.NoError(t, err)
		_, err = rt.Step() // drive: runs the sole subscriber
		require.NoError(t, err)
		require.Equal(t, period, *count)
	}
	require.Equal(t, 0, timerEvt.Refcount(), "event must settle back to rest, not grow unboundedly")
}

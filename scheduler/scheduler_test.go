package scheduler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ferrethan485/SmartX/activeobject"
	"github.com/ferrethan485/SmartX/chain"
	"github.com/ferrethan485/SmartX/enroll"
	"github.com/ferrethan485/SmartX/event"
	"github.com/ferrethan485/SmartX/hsm"
	"github.com/ferrethan485/SmartX/internal/irq"
)

const (
	sigWork   uint16 = 100
	sigFault  uint16 = 999
	priHigh   uint16 = 1
	priLow    uint16 = 2
	threshold uint16 = 1
)

func newCountingObject(t *testing.T, name string, priority uint16, cells *chain.CellPool, signal uint16) (*activeobject.Active, *int) {
	t.Helper()
	f := hsm.NewFSM()
	s := f.NewState("s")
	f.SetInitial(s)
	count := 0
	s.AddReaction(signal, nil, func(*event.Event) error { count++; return nil }, nil, false)
	require.NoError(t, f.Start())
	return activeobject.New(name, priority, f, cells), &count
}

func TestPublishFansOutToEverySubscriberByPriority(t *testing.T) {
	cells := chain.NewCellPool(64)
	events := event.NewPool(16)
	register := enroll.NewRegister(cells)

	aoHigh, countHigh := newCountingObject(t, "high", priHigh, cells, sigWork)
	aoLow, countLow := newCountingObject(t, "low", priLow, cells, sigWork)

	tmpl1, err := events.New(sigWork, threshold, threshold)
	require.NoError(t, err)
	require.NoError(t, register.Subscribe(tmpl1, priHigh, aoHigh))
	tmpl2, err := events.New(sigWork, threshold, threshold)
	require.NoError(t, err)
	require.NoError(t, register.Subscribe(tmpl2, priLow, aoLow))

	sched, err := New(cells, register, 8, nil, sigFault)
	require.NoError(t, err)

	evt, err := events.New(sigWork, threshold, threshold)
	require.NoError(t, err)
	require.NoError(t, sched.Post(evt))

	progressed, err := sched.Step() // drain: pops inbox, publishes, -> drive
	require.NoError(t, err)
	require.True(t, progressed)

	progressed, err = sched.Step() // drive: high-priority subscriber, -> drain
	require.NoError(t, err)
	require.True(t, progressed)
	require.Equal(t, 1, *countHigh)

	progressed, err = sched.Step() // drain: inbox empty, -> drive
	require.NoError(t, err)
	require.False(t, progressed)

	progressed, err = sched.Step() // drive: low-priority subscriber, wraps
	require.NoError(t, err)
	require.True(t, progressed)
	require.Equal(t, 1, *countLow)

	// evt itself is fully released; only the two descriptor-owned
	// subscribe templates remain outstanding.
	require.Equal(t, 15, events.Free())
}

func TestPublishWithNoSubscribersReleasesImmediately(t *testing.T) {
	cells := chain.NewCellPool(64)
	events := event.NewPool(16)
	register := enroll.NewRegister(cells)
	sched, err := New(cells, register, 8, nil, sigFault)
	require.NoError(t, err)

	evt, err := events.New(sigWork, threshold, threshold)
	require.NoError(t, err)
	require.NoError(t, sched.Post(evt))

	progressed, err := sched.Step()
	require.NoError(t, err)
	require.True(t, progressed)
	require.True(t, events.AllRecycled())
}

func TestPollingScanRunsIdleSubscribersAndCountsIdleWraps(t *testing.T) {
	cells := chain.NewCellPool(64)
	events := event.NewPool(16)
	register := enroll.NewRegister(cells)

	ao, _ := newCountingObject(t, "solo", priHigh, cells, sigWork)
	tmpl, err := events.New(sigWork, threshold, threshold)
	require.NoError(t, err)
	require.NoError(t, register.Subscribe(tmpl, priHigh, ao))

	sched, err := New(cells, register, 8, nil, sigFault)
	require.NoError(t, err)

	idled := false
	sched.OnIdle = func(tok irq.Token) {
		idled = true
	}

	// drain (inbox empty) -> drive
	_, err = sched.Step()
	require.NoError(t, err)

	// drive (no active publication group) -> scan
	_, err = sched.Step()
	require.NoError(t, err)

	// one full wrap over the single subscriber, which is idle
	_, err = sched.Step()
	require.NoError(t, err)

	require.True(t, idled)
	require.Equal(t, 1, sched.IdleCount())
}

// TestPreemptionInterruptsAPublicationGroupBetweenSubscribers traces the
// scenario from spec section 8's S2: while a low-priority publication group
// is mid-flight, a higher-priority event posted to the inbox is serviced to
// completion before the group resumes at its next subscriber.
func TestPreemptionInterruptsAPublicationGroupBetweenSubscribers(t *testing.T) {
	cells := chain.NewCellPool(64)
	events := event.NewPool(16)
	register := enroll.NewRegister(cells)

	const sigLow uint16 = 1
	const sigUrgent uint16 = 2
	const priLowGroup uint16 = 10
	const priUrgent uint16 = 3

	low1, countLow1 := newCountingObject(t, "low1", priLowGroup, cells, sigLow)
	low2, countLow2 := newCountingObject(t, "low2", priLowGroup, cells, sigLow)
	urgent, countUrgent := newCountingObject(t, "urgent", priUrgent, cells, sigUrgent)

	tmplLow1, err := events.New(sigLow, priLowGroup, priLowGroup)
	require.NoError(t, err)
	require.NoError(t, register.Subscribe(tmplLow1, priLowGroup, low1))
	tmplLow2, err := events.New(sigLow, priLowGroup, priLowGroup)
	require.NoError(t, err)
	require.NoError(t, register.Subscribe(tmplLow2, priLowGroup, low2))
	tmplUrgent, err := events.New(sigUrgent, priUrgent, priUrgent)
	require.NoError(t, err)
	require.NoError(t, register.Subscribe(tmplUrgent, priUrgent, urgent))

	sched, err := New(cells, register, 8, nil, sigFault)
	require.NoError(t, err)

	evtLow, err := events.New(sigLow, priLowGroup, priLowGroup)
	require.NoError(t, err)
	require.NoError(t, sched.Post(evtLow))

	_, err = sched.Step() // drain: pops E1, publishes to low1+low2, -> drive
	require.NoError(t, err)
	_, err = sched.Step() // drive: low1 runs
	require.NoError(t, err)
	require.Equal(t, 1, *countLow1)
	require.Equal(t, 0, *countLow2)

	// The tick-ISR posts the urgent event while low2 has not run yet.
	evtUrgent, err := events.New(sigUrgent, priUrgent, priUrgent)
	require.NoError(t, err)
	require.NoError(t, sched.Post(evtUrgent))

	_, err = sched.Step() // drain: E2 preempts (3 < 10), pushes context, -> drive
	require.NoError(t, err)
	progressed, err := sched.Step() // drive: urgent runs
	require.NoError(t, err)
	require.True(t, progressed)
	require.Equal(t, 1, *countUrgent)
	require.Equal(t, 0, *countLow2, "low2 must not run until the urgent group completes")

	_, err = sched.Step() // drain: inbox empty, -> drive
	require.NoError(t, err)
	_, err = sched.Step() // drive: context popped, low2 finally runs
	require.NoError(t, err)
	require.Equal(t, 1, *countLow2)
}

// Package scheduler implements the active-object scheduler (L7): a
// three-state outer loop that drains the scheduler inbox, drives the
// currently executing publication group one active object at a time with
// priority-based preemption across a nested context stack, and falls back
// to a polling scan of every subscriber when there is nothing queued.
// Grounded on spec section 4.7 and original_source/manager.c's man_run.
package scheduler

import (
	"errors"

	"github.com/ferrethan485/SmartX/activeobject"
	"github.com/ferrethan485/SmartX/chain"
	"github.com/ferrethan485/SmartX/enroll"
	"github.com/ferrethan485/SmartX/event"
	"github.com/ferrethan485/SmartX/fault"
	"github.com/ferrethan485/SmartX/internal/irq"
)

// ErrContextStackExhausted is a programming-error fault: MSTACK_AMOUNT was
// sized too small for the application's nesting depth of preempting
// publications.
var ErrContextStackExhausted = errors.New("scheduler: nested publication context stack exhausted")

// noFloor is the "no active publication" sentinel for currentPriority: the
// maximum uint16, so every real event priority preempts it.
const noFloor = ^uint16(0)

// state identifies which of the three outer-loop states Step will execute
// next.
type state int

const (
	stateDrain state = iota
	stateDrive
	stateScan
)

// ActiveObject is the subset of activeobject.Active the scheduler needs:
// somewhere to post a published event, and a run-to-completion step.
type ActiveObject interface {
	Post(evt *event.Event) error
	Run() (activeobject.Step, error)
}

// Scheduler is the outer-loop state machine. Build one with New.
type Scheduler struct {
	cellPool *chain.CellPool
	register *enroll.Register
	faultLog *fault.Log

	inboxGate irq.Gate
	inbox     chain.Chain

	maxStack int
	stack    []frame

	currentPriority uint16
	publishHead     *chain.Cell
	publishCursor   *chain.Cell

	state state

	descCursor      *chain.Cell
	descCursorStart *chain.Cell
	subCursor       *chain.Cell
	subCursorStart  *chain.Cell
	scanProgressed  bool
	idleCount       int

	idleGate irq.Gate
	faultEvt event.Event

	// OnIdle is called with the idle gate held (via the token) whenever a
	// full polling scan completes with no active object having made
	// progress — the natural place to enter a low-power mode on real
	// hardware, where doing so atomically re-enables interrupts. The
	// scheduler releases the gate as soon as OnIdle returns.
	OnIdle func(token irq.Token)
}

// New builds a scheduler. maxStack bounds the nested-publication context
// stack (MSTACK_AMOUNT); faultSignal is the signal carried by the single
// reserved fault event the scheduler injects from faultLog.
func New(cellPool *chain.CellPool, register *enroll.Register, maxStack int, faultLog *fault.Log, faultSignal uint16) (*Scheduler, error) {
	s := &Scheduler{
		cellPool:        cellPool,
		register:        register,
		faultLog:        faultLog,
		maxStack:        maxStack,
		currentPriority: noFloor,
	}
	if err := event.Init(&s.faultEvt, faultSignal, 0, 0); err != nil {
		return nil, err
	}
	return s, nil
}

// Post appends evt to the scheduler inbox, priority-ordered. It does not
// change evt's refcount: a freshly built event is posted at refcount 0, and
// publish retains it once per subscriber when the inbox is drained.
func (s *Scheduler) Post(evt *event.Event) error {
	var err error
	s.inboxGate.Do(func() { err = s.inbox.Insert(s.cellPool, evt.Priority, evt) })
	return err
}

// Step runs exactly one outer-loop state and returns whether it made
// observable progress (dispatched or ran a state-handler step). Call it
// repeatedly from the application's main loop.
func (s *Scheduler) Step() (bool, error) {
	s.injectFault()
	switch s.state {
	case stateDrain:
		return s.stepDrain()
	case stateDrive:
		return s.stepDrive()
	default:
		return s.stepScan()
	}
}

// injectFault lifts the oldest fault-log record into the reserved fault
// event and posts it, once per Step call, provided the event is not
// already in flight and the log is non-empty. It does not retain the
// event before Post: like every other caller of Post, it hands off an
// event sitting at whatever refcount publish's fan-out (or the
// no-subscriber release) will settle back to 0 on its own, the way
// original_source/manager.c's man_post never bumps the count itself and
// leaves man_publish to do it once per recipient.
func (s *Scheduler) injectFault() {
	if s.faultLog == nil || s.faultEvt.Refcount() != 0 {
		return
	}
	rec, ok := s.faultLog.Get()
	if !ok {
		return
	}
	s.faultEvt.Record = rec
	_ = s.Post(&s.faultEvt)
}

// stepDrain inspects the inbox for at most one event and always leaves
// state set to stateDrive afterward — original_source/manager.c's case 0
// falls through to manager->state = 1 on every path (empty inbox, event not
// urgent enough, insufficient stack margin, or a popped-and-handled event),
// never to state 2 directly. Driving an already-idle publication group (or
// none at all) is what then decides whether to fall further to a scan.
func (s *Scheduler) stepDrain() (bool, error) {
	defer func() { s.state = stateDrive }()

	var priority uint16
	var ok bool
	s.inboxGate.Do(func() { _, priority, ok = s.inbox.PeekHead() })
	if !ok {
		return false, nil
	}

	if priority >= s.currentPriority {
		// Not urgent enough to preempt the running group; leave it
		// queued and revisit it once the group (or scan) yields.
		return false, nil
	}

	if s.maxStack-len(s.stack) < 3 {
		// Not enough context-stack margin to safely nest another
		// publication; abandon this step without popping the event.
		return false, nil
	}

	var evtAny any
	s.inboxGate.Do(func() { evtAny, _ = s.inbox.PopHead(s.cellPool) })
	evt := evtAny.(*event.Event)

	desc, found := s.register.Subscribers(evt.Signal)
	if !found {
		evt.Release()
		return true, nil
	}

	s.stack = append(s.stack, frame{
		priority: s.currentPriority,
		head:     s.publishHead,
		cursor:   s.publishCursor,
	})
	s.currentPriority = evt.Threshold

	head2 := desc.Subscribers.HeadCell()
	s.publishHead = head2
	s.publishCursor = head2
	if err := s.publish(head2, evt); err != nil {
		return false, err
	}
	return true, nil
}

// publish fans evt out to every active object in the subscriber chain
// starting at head, incrementing the refcount once per recipient. If head
// is nil (no subscribers), evt is released immediately.
func (s *Scheduler) publish(head *chain.Cell, evt *event.Event) error {
	if head == nil {
		evt.Release()
		return nil
	}
	cell := head
	for {
		active := cell.Value().(ActiveObject)
		evt.Retain()
		if err := active.Post(evt); err != nil {
			return err
		}
		cell = cell.Next()
		if cell == head {
			return nil
		}
	}
}

// stepDrive runs exactly one active object in the current publication
// group, then always returns to stateDrain — original_source/manager.c's
// man_scheduler sets manager->state = 0 unconditionally at the end of its
// own case 1, win or lose the group. That is what lets stepDrain re-check
// the inbox, and therefore preempt, between every single subscriber run
// rather than only between whole publication groups.
func (s *Scheduler) stepDrive() (bool, error) {
	if s.publishCursor == nil {
		// No active publication group: nothing to drive, fall to the
		// polling scan.
		s.state = stateScan
		return false, nil
	}
	active := s.publishCursor.Value().(ActiveObject)
	step, err := active.Run()
	if err != nil {
		return false, err
	}
	s.publishCursor = s.publishCursor.Next()

	if s.publishCursor == s.publishHead {
		if len(s.stack) == 0 {
			s.currentPriority = noFloor
			s.publishHead, s.publishCursor = nil, nil
		} else {
			top := s.stack[len(s.stack)-1]
			s.stack = s.stack[:len(s.stack)-1]
			s.currentPriority = top.priority
			s.publishHead = top.head
			s.publishCursor = top.cursor
		}
	}
	s.state = stateDrain
	return step == activeobject.StepProgressed, nil
}

// stepScan runs exactly one polling-scan target, then always returns to
// stateDrain — original_source/manager.c's default case (state 2) sets
// manager->state = 0 unconditionally at the end, whether or not there was
// anything to scan. stepDrain is what re-checks the inbox on the very next
// Step call, so a newly posted event is never more than one scan step away
// from preempting.
func (s *Scheduler) stepScan() (bool, error) {
	defer func() { s.state = stateDrain }()

	target, wrapped := s.nextScanTarget()
	progressed := false
	if target != nil {
		if active, ok := target.(ActiveObject); ok {
			step, err := active.Run()
			if err != nil {
				return false, err
			}
			progressed = step == activeobject.StepProgressed
		}
	}
	if progressed {
		s.scanProgressed = true
	}
	if wrapped {
		if !s.scanProgressed {
			s.idleCount++
			if s.OnIdle != nil {
				tok := s.idleGate.Enter()
				s.OnIdle(tok)
				s.idleGate.Leave(tok)
			}
		}
		s.scanProgressed = false
	}
	return progressed, nil
}

// nextScanTarget advances the polling-scan cursor by one subscriber and
// reports whether that step completed a full wrap of every descriptor's
// subscriber chain.
func (s *Scheduler) nextScanTarget() (any, bool) {
	if s.descCursor == nil {
		head := s.register.DescriptorsHead()
		if head == nil {
			return nil, true
		}
		s.descCursor = head
		s.descCursorStart = head
	}

	for {
		desc := s.descCursor.Value().(*enroll.Descriptor)
		if s.subCursor == nil {
			subHead := desc.Subscribers.HeadCell()
			if subHead == nil {
				if !s.advanceDescriptor() {
					return nil, true
				}
				continue
			}
			s.subCursor = subHead
			s.subCursorStart = subHead
		}

		active := s.subCursor.Value()
		next := s.subCursor.Next()
		if next == s.subCursorStart {
			s.subCursor = nil
			wrapped := !s.advanceDescriptor()
			return active, wrapped
		}
		s.subCursor = next
		return active, false
	}
}

func (s *Scheduler) advanceDescriptor() bool {
	next := s.descCursor.Next()
	if next == s.descCursorStart {
		s.descCursor = nil
		return false
	}
	s.descCursor = next
	return true
}

// IdleCount reports how many full polling-scan wraps have completed with
// no active object making progress — a coarse low-power-entry counter for
// tests and diagnostics.
func (s *Scheduler) IdleCount() int { return s.idleCount }

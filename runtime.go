package smartx

import (
	"context"
	"sync"

	"github.com/ferrethan485/SmartX/activeobject"
	"github.com/ferrethan485/SmartX/chain"
	"github.com/ferrethan485/SmartX/config"
	"github.com/ferrethan485/SmartX/debugsink"
	"github.com/ferrethan485/SmartX/enroll"
	"github.com/ferrethan485/SmartX/event"
	"github.com/ferrethan485/SmartX/fault"
	"github.com/ferrethan485/SmartX/internal/irq"
	"github.com/ferrethan485/SmartX/logging"
	"github.com/ferrethan485/SmartX/scheduler"
	"github.com/ferrethan485/SmartX/timer"
)

// FaultSignal is the signal carried by the scheduler's single reserved
// fault-injection event. Applications that dispatch on signal values
// should keep their own signals below this one or explicitly handle it.
const FaultSignal uint16 = 0xFFFF

// Runtime is the single handle an application builds around every layer:
// the chain-cell and event pools, the subscription register, the fault log
// and debug sink, the timer wheel, and the scheduler. Building one from
// config.Options is the only supported way to get these layers wired
// together consistently; holding each singleton separately is exactly the
// hidden-global pattern this handle exists to avoid.
type Runtime struct {
	opts config.Options

	cellPool  *chain.CellPool
	eventPool *event.Pool
	register  *enroll.Register
	faultLog  *fault.Log
	debugSink *debugsink.Sink
	timers    timer.Wheel
	sched     *scheduler.Scheduler
	logger    logging.Logger

	mu      sync.Mutex
	objects map[string]*activeobject.Active
}

// New builds a Runtime from opts, returning Validate's error if opts fail
// it. If logger is nil, a no-op logger is used.
func New(opts config.Options, logger logging.Logger) (*Runtime, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	r := &Runtime{
		opts:      opts,
		cellPool:  chain.NewCellPool(opts.CPoolAmount),
		eventPool: event.NewPool(opts.HPoolAmountResolved()),
		faultLog:  fault.NewLog(opts.FaultAmount),
		debugSink: debugsink.NewSink(opts.DebugBufferSize),
		logger:    logger,
		objects:   make(map[string]*activeobject.Active),
	}
	r.register = enroll.NewRegister(r.cellPool)

	sched, err := scheduler.New(r.cellPool, r.register, opts.MStackAmount, r.faultLog, FaultSignal)
	if err != nil {
		return nil, err
	}
	r.sched = sched
	return r, nil
}

// EventPool returns the pool dynamic events must be drawn from.
func (r *Runtime) EventPool() *event.Pool { return r.eventPool }

// CellPool returns the shared chain-cell pool.
func (r *Runtime) CellPool() *chain.CellPool { return r.cellPool }

// FaultLog returns the runtime's fault log.
func (r *Runtime) FaultLog() *fault.Log { return r.faultLog }

// DebugSink returns the runtime's debug ring buffer.
func (r *Runtime) DebugSink() *debugsink.Sink { return r.debugSink }

// Timers returns the runtime's software timer wheel.
func (r *Runtime) Timers() *timer.Wheel { return &r.timers }

// Logger returns the runtime's structured logger.
func (r *Runtime) Logger() logging.Logger { return r.logger }

// Register binds an active object into the runtime's scheduler-visible
// registry under its own Name, for later broadcast lifecycle control
// (Stop, ResetAll, PauseAll, ResumeAll). Subscribe and the Unsubscribe
// family do not consult this registry. The active object's engine must
// already be started.
func (r *Runtime) Register(ao *activeobject.Active) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.objects[ao.Name]; exists {
		return ErrAlreadyRegistered
	}
	r.objects[ao.Name] = ao
	return nil
}

// Subscribe binds ao to tmpl.Signal at subscriberPriority. tmpl is handed
// off to the register; the caller must not use it again afterward (see
// enroll.Register.Subscribe).
func (r *Runtime) Subscribe(tmpl *event.Event, subscriberPriority uint16, ao *activeobject.Active) error {
	return r.register.Subscribe(tmpl, subscriberPriority, ao)
}

// Unsubscribe unbinds ao from tmpl.Signal, releasing tmpl.
func (r *Runtime) Unsubscribe(tmpl *event.Event, ao *activeobject.Active) {
	r.register.Unsubscribe(tmpl, ao)
}

// UnsubscribeAll unbinds ao from every signal it is subscribed to.
func (r *Runtime) UnsubscribeAll(ao *activeobject.Active) {
	r.register.UnsubscribeAll(ao)
}

// Post publishes evt through the scheduler.
func (r *Runtime) Post(evt *event.Event) error {
	return r.sched.Post(evt)
}

// Step runs exactly one scheduler outer-loop state.
func (r *Runtime) Step() (bool, error) {
	return r.sched.Step()
}

// Run drives Step in a loop until ctx is cancelled, returning ctx's error.
// Applications wanting finer control (e.g. integrating with an existing
// event loop, or sleeping between idle steps) should call Step directly
// instead.
func (r *Runtime) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if _, err := r.sched.Step(); err != nil {
			return err
		}
	}
}

// IdleCount reports how many full scheduler polling-scan wraps have
// completed with no active object making progress.
func (r *Runtime) IdleCount() int { return r.sched.IdleCount() }

// OnIdle registers a callback invoked whenever the scheduler's polling
// scan completes a full wrap with no active object making progress — the
// natural place to enter a low-power mode on real hardware.
func (r *Runtime) OnIdle(fn func()) {
	r.sched.OnIdle = func(_ irq.Token) {
		fn()
	}
}

// Stop requests every registered active object exit.
func (r *Runtime) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ao := range r.objects {
		ao.RequestExit()
	}
}

// ResetAll requests every registered active object reset.
func (r *Runtime) ResetAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ao := range r.objects {
		ao.RequestReset()
	}
}

// PauseAll requests every registered active object pause.
func (r *Runtime) PauseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ao := range r.objects {
		ao.RequestPause()
	}
}

// ResumeAll clears a pending pause request on every registered active
// object.
func (r *Runtime) ResumeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ao := range r.objects {
		ao.Resume()
	}
}

// Tick advances the timer wheel by one period, posting every event whose
// timer expired this tick.
func (r *Runtime) Tick() error {
	return r.timers.Tick(r.sched.Post)
}

// Package telemetry exports runtime lifecycle and fault data as CloudEvents,
// the standardized event envelope format, so an external observability
// system can consume them over whatever transport it already uses (HTTP,
// a message broker, a log shipper) without the runtime itself knowing or
// caring which. Grounded on the teacher's observer.go (the Subject/Observer
// vocabulary) and observer_cloudevents.go (event construction), using the
// same cloudevents-sdk-go and google/uuid dependencies.
package telemetry

import (
	"context"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"

	"github.com/ferrethan485/SmartX/fault"
)

// Event type vocabulary for the runtime's own CloudEvents, following the
// teacher's reverse-domain-notation convention.
const (
	EventTypeFaultRecorded  = "io.smartx.fault.recorded"
	EventTypeSchedulerIdle  = "io.smartx.scheduler.idle"
	EventTypeActiveObjectUp = "io.smartx.activeobject.started"
)

// Sink receives exported CloudEvents. It is deliberately the same shape as
// the teacher's Observer.OnEvent so an application already wired against
// that pattern needs no adaptation to also receive runtime telemetry.
type Sink interface {
	OnEvent(ctx context.Context, event cloudevents.Event) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ctx context.Context, event cloudevents.Event) error

// OnEvent calls f.
func (f SinkFunc) OnEvent(ctx context.Context, event cloudevents.Event) error { return f(ctx, event) }

// Exporter turns runtime state into CloudEvents and hands them to a Sink.
// The zero value is not usable; build one with NewExporter.
type Exporter struct {
	source string
	sink   Sink
}

// NewExporter builds an Exporter. source identifies this runtime instance
// in every event's CloudEvents "source" attribute (e.g. a board serial
// number or process name).
func NewExporter(source string, sink Sink) *Exporter {
	return &Exporter{source: source, sink: sink}
}

// FaultPayload is the JSON body of an EventTypeFaultRecorded CloudEvent.
type FaultPayload struct {
	File string `json:"file"`
	Line int32  `json:"line"`
	Time uint32 `json:"time"`
}

// ExportFault builds and emits a CloudEvent for a single fault.Record.
func (e *Exporter) ExportFault(ctx context.Context, rec fault.Record) error {
	evt := e.newEvent(EventTypeFaultRecorded)
	if err := evt.SetData(cloudevents.ApplicationJSON, FaultPayload{
		File: rec.File,
		Line: rec.Line,
		Time: rec.Time,
	}); err != nil {
		return err
	}
	return e.sink.OnEvent(ctx, evt)
}

// SchedulerIdlePayload is the JSON body of an EventTypeSchedulerIdle
// CloudEvent.
type SchedulerIdlePayload struct {
	IdleCount int `json:"idleCount"`
}

// ExportSchedulerIdle emits a CloudEvent recording a completed idle wrap of
// the scheduler's polling scan, for dashboards tracking duty cycle.
func (e *Exporter) ExportSchedulerIdle(ctx context.Context, idleCount int) error {
	evt := e.newEvent(EventTypeSchedulerIdle)
	if err := evt.SetData(cloudevents.ApplicationJSON, SchedulerIdlePayload{IdleCount: idleCount}); err != nil {
		return err
	}
	return e.sink.OnEvent(ctx, evt)
}

// ActiveObjectStartedPayload is the JSON body of an EventTypeActiveObjectUp
// CloudEvent.
type ActiveObjectStartedPayload struct {
	Name     string `json:"name"`
	Priority uint16 `json:"priority"`
}

// ExportActiveObjectStarted emits a CloudEvent when an active object
// finishes its initial state-machine Start.
func (e *Exporter) ExportActiveObjectStarted(ctx context.Context, name string, priority uint16) error {
	evt := e.newEvent(EventTypeActiveObjectUp)
	if err := evt.SetData(cloudevents.ApplicationJSON, ActiveObjectStartedPayload{Name: name, Priority: priority}); err != nil {
		return err
	}
	return e.sink.OnEvent(ctx, evt)
}

func (e *Exporter) newEvent(eventType string) cloudevents.Event {
	evt := cloudevents.NewEvent()
	evt.SetID(newEventID())
	evt.SetSource(e.source)
	evt.SetType(eventType)
	evt.SetTime(time.Now())
	evt.SetSpecVersion(cloudevents.VersionV1)
	return evt
}

func newEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}

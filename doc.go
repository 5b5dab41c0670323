// Package smartx is an active-object runtime for resource-constrained
// targets: a hierarchical state machine engine, a priority-preemptive
// active-object scheduler, fixed-block memory pools, a priority-ordered
// publish/subscribe bus, a software timer wheel, and a fault/debug safety
// net. Runtime ties every layer together behind one handle so an
// application never has to wire the pools, register, and scheduler by
// hand.
//
// Subpackages implement one layer each: event (L3), chain and enroll (L4),
// hsm (L5), activeobject (L6), scheduler (L7), fault and debugsink (the
// safety net), timer (the software timer wheel), config (sizing), and
// logging/telemetry (the ambient observability stack).
package smartx

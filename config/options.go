// Package config holds the runtime's compile-time-equivalent sizing knobs —
// the pool and stack capacities the original C build fixed with #define, now
// loaded from a TOML file so a single binary can be resized without a
// rebuild. Grounded on the teacher's root config_types.go and feeders
// package: BurntSushi/toml decodes the file, golobby/cast coerces
// environment-variable overrides onto the decoded struct's reflected
// fields.
package config

import "fmt"

// Options collects every sizing knob the runtime's layers need at
// construction time. Field names mirror the original C macros so the
// TOML keys stay recognizable to anyone porting an existing build.
type Options struct {
	// HSMMaxDepth bounds a hierarchical state machine's nesting (root
	// excluded). HSM_MAX_DEPTH.
	HSMMaxDepth int `toml:"HSM_MAX_DEPTH"`

	// CPoolAmount sizes the shared chain-cell pool every chain.Chain
	// draws from. CPOOL_AMOUNT.
	CPoolAmount int `toml:"CPOOL_AMOUNT"`

	// HPoolAmount sizes the event pool directly; if zero, it is derived
	// from CPoolAmount*HPoolFactor instead. HPOOL_AMOUNT.
	HPoolAmount int `toml:"HPOOL_AMOUNT"`

	// HPoolFactor derives HPoolAmount from CPoolAmount when HPoolAmount
	// is left at zero. HPOOL_FACTOR.
	HPoolFactor float64 `toml:"HPOOL_FACTOR"`

	// MStackAmount bounds the scheduler's nested-publication context
	// stack. MSTACK_AMOUNT.
	MStackAmount int `toml:"MSTACK_AMOUNT"`

	// FaultAmount sizes the fault log's ring buffer. FAULT_AMOUNT.
	FaultAmount int `toml:"FAULT_AMOUNT"`

	// DebugBufferSize sizes the debug sink's byte ring. DEBUG_BUFFER_SIZE.
	DebugBufferSize int `toml:"DEBUG_BUFFER_SIZE"`

	// TickerMillis is the period, in milliseconds, between calls to the
	// timer wheel's Tick. TICKER.
	TickerMillis int `toml:"TICKER"`
}

// Default returns the sizing Options the runtime's own examples and tests
// build against: generous enough for a handful of active objects and a
// modest burst of in-flight events, matching the scale the original
// firmware's reference board configuration used.
func Default() Options {
	return Options{
		HSMMaxDepth:     8,
		CPoolAmount:     64,
		HPoolAmount:     0,
		HPoolFactor:     2.0,
		MStackAmount:    8,
		FaultAmount:     16,
		DebugBufferSize: 256,
		TickerMillis:    10,
	}
}

// resolvedHPoolAmount returns HPoolAmount if set, otherwise HPoolFactor
// applied to CPoolAmount, rounded down to at least one.
func (o Options) resolvedHPoolAmount() int {
	if o.HPoolAmount > 0 {
		return o.HPoolAmount
	}
	n := int(float64(o.CPoolAmount) * o.HPoolFactor)
	if n < 1 {
		n = 1
	}
	return n
}

// Validate checks every knob for the minimums the runtime's layers assume:
// a context stack too small to ever push a frame, or a pool too small to
// hold a single block, is a misconfiguration the caller should fail fast
// on rather than discover as a mysterious ErrCellsExhausted at runtime.
func (o Options) Validate() error {
	if o.HSMMaxDepth < 1 {
		return fmt.Errorf("config: HSM_MAX_DEPTH must be >= 1, got %d", o.HSMMaxDepth)
	}
	if o.CPoolAmount < 1 {
		return fmt.Errorf("config: CPOOL_AMOUNT must be >= 1, got %d", o.CPoolAmount)
	}
	if o.resolvedHPoolAmount() < 1 {
		return fmt.Errorf("config: HPOOL_AMOUNT (resolved) must be >= 1")
	}
	if o.MStackAmount < 3 {
		return fmt.Errorf("config: MSTACK_AMOUNT must be >= 3 (the scheduler's push margin check never succeeds below that), got %d", o.MStackAmount)
	}
	if o.FaultAmount < 1 {
		return fmt.Errorf("config: FAULT_AMOUNT must be >= 1, got %d", o.FaultAmount)
	}
	if o.DebugBufferSize < 1 {
		return fmt.Errorf("config: DEBUG_BUFFER_SIZE must be >= 1, got %d", o.DebugBufferSize)
	}
	if o.TickerMillis < 1 {
		return fmt.Errorf("config: TICKER must be >= 1, got %d", o.TickerMillis)
	}
	return nil
}

// HPoolAmountResolved exposes resolvedHPoolAmount to callers building an
// event.Pool from these Options.
func (o Options) HPoolAmountResolved() int { return o.resolvedHPoolAmount() }

package logging

// Decorator is a Logger that wraps another one, per the teacher's
// LoggerDecorator pattern: GetInner exposes the wrapped logger so decorators
// can be stacked and later unwrapped by anything that needs the original.
type Decorator interface {
	Logger
	GetInner() Logger
}

// BaseDecorator forwards every call straight to the wrapped logger. Real
// decorators embed it and override only the methods they need to change,
// matching the teacher's BaseLoggerDecorator.
type BaseDecorator struct {
	inner Logger
}

// NewBaseDecorator wraps inner.
func NewBaseDecorator(inner Logger) *BaseDecorator {
	return &BaseDecorator{inner: inner}
}

// GetInner returns the wrapped logger.
func (d *BaseDecorator) GetInner() Logger { return d.inner }

func (d *BaseDecorator) Info(msg string, args ...any)  { d.inner.Info(msg, args...) }
func (d *BaseDecorator) Error(msg string, args ...any) { d.inner.Error(msg, args...) }
func (d *BaseDecorator) Warn(msg string, args ...any)  { d.inner.Warn(msg, args...) }
func (d *BaseDecorator) Debug(msg string, args ...any) { d.inner.Debug(msg, args...) }

// redacted is substituted for any masked value so the key itself still
// shows up in log output — useful for confirming a field was present
// without leaking it.
const redacted = "***"

// MaskingDecorator replaces the value of any configured key with a fixed
// placeholder before forwarding to the wrapped logger. The fault log's
// Record payload and the debug sink's raw bytes can carry application data
// the firmware's own code never inspects; a deployment that logs fault
// records to a shared sink can mask those keys without touching call
// sites.
type MaskingDecorator struct {
	*BaseDecorator
	keys map[string]bool
}

// NewMaskingDecorator wraps inner, masking the value following any of the
// given keys in every log call's key-value pairs.
func NewMaskingDecorator(inner Logger, keys ...string) *MaskingDecorator {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return &MaskingDecorator{BaseDecorator: NewBaseDecorator(inner), keys: set}
}

func (d *MaskingDecorator) mask(args []any) []any {
	if len(d.keys) == 0 || len(args) < 2 {
		return args
	}
	masked := make([]any, len(args))
	copy(masked, args)
	for i := 0; i+1 < len(masked); i += 2 {
		key, ok := masked[i].(string)
		if ok && d.keys[key] {
			masked[i+1] = redacted
		}
	}
	return masked
}

func (d *MaskingDecorator) Info(msg string, args ...any)  { d.inner.Info(msg, d.mask(args)...) }
func (d *MaskingDecorator) Error(msg string, args ...any) { d.inner.Error(msg, d.mask(args)...) }
func (d *MaskingDecorator) Warn(msg string, args ...any)  { d.inner.Warn(msg, d.mask(args)...) }
func (d *MaskingDecorator) Debug(msg string, args ...any) { d.inner.Debug(msg, d.mask(args)...) }

// Package logging provides the runtime's structured logger: an interface
// matching the teacher's key-value logging convention, backed by
// go.uber.org/zap, the structured logging library the teacher's own go.mod
// already carries as a transitive dependency of its observability stack.
// Grounded on the teacher's root logger.go (the Logger interface shape) and
// logger_decorator.go (the decorator pattern used for cross-cutting
// concerns like masking).
package logging

import (
	"go.uber.org/zap"
)

// Logger is the structured logging interface every runtime component
// accepts. Key-value pairs follow each message, alternating key then
// value, matching the teacher's convention so decorators built against it
// need no adaptation.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Debug(msg string, args ...any)
}

// zapLogger adapts a *zap.SugaredLogger to Logger.
type zapLogger struct {
	sugar *zap.SugaredLogger
}

// NewProduction builds a Logger backed by zap's JSON production
// configuration: epoch timestamps, level and caller included, sampled
// under sustained high volume.
func NewProduction() (Logger, error) {
	z, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return &zapLogger{sugar: z.Sugar()}, nil
}

// NewDevelopment builds a Logger backed by zap's human-readable console
// configuration: no sampling, DPanic on invalid usage, full stack traces
// on Warn and above.
func NewDevelopment() (Logger, error) {
	z, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}
	return &zapLogger{sugar: z.Sugar()}, nil
}

// NewNop builds a Logger that discards everything, for tests and examples
// that don't want log noise.
func NewNop() Logger {
	return &zapLogger{sugar: zap.NewNop().Sugar()}
}

func (l *zapLogger) Info(msg string, args ...any)  { l.sugar.Infow(msg, args...) }
func (l *zapLogger) Error(msg string, args ...any) { l.sugar.Errorw(msg, args...) }
func (l *zapLogger) Warn(msg string, args ...any)  { l.sugar.Warnw(msg, args...) }
func (l *zapLogger) Debug(msg string, args ...any) { l.sugar.Debugw(msg, args...) }

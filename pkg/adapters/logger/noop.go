package logger

import "github.com/jamischarles/timelapser/pkg/ports"

// NoopLogger discards everything. Quiet mode and library embedding use
// it so the pipeline never needs a nil check.
type NoopLogger struct{}

// NewNoop creates a no-op logger.
func NewNoop() *NoopLogger {
	return &NoopLogger{}
}

func (l *NoopLogger) Debug(msg string, args ...interface{}) {}
func (l *NoopLogger) Info(msg string, args ...interface{})  {}
func (l *NoopLogger) Warn(msg string, args ...interface{})  {}
func (l *NoopLogger) Error(msg string, args ...interface{}) {}

func (l *NoopLogger) WithComponent(component string) ports.Logger { return l }

var _ ports.Logger = (*NoopLogger)(nil)

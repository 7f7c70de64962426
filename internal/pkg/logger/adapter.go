package logger

import "earn_usdc/internal/app/port"

// slogAdapter implements port.Logger on top of the package-level helpers so services can
// take the logger as a dependency.
type slogAdapter struct {
	args []any
}

// NewSlogAdapter creates a new slogAdapter.
func NewSlogAdapter() port.Logger {
	return &slogAdapter{}
}

// With returns an adapter that prefixes every record with the given attributes.
func (a *slogAdapter) With(args ...any) port.Logger {
	merged := make([]any, 0, len(a.args)+len(args))
	merged = append(merged, a.args...)
	merged = append(merged, args...)
	return &slogAdapter{args: merged}
}

func (a *slogAdapter) Info(msg string, args ...any) {
	Info(msg, append(a.args, args...)...)
}

func (a *slogAdapter) Debug(msg string, args ...any) {
	Debug(msg, append(a.args, args...)...)
}

func (a *slogAdapter) Warn(msg string, args ...any) {
	Warn(msg, append(a.args, args...)...)
}

func (a *slogAdapter) Error(msg string, args ...any) {
	Error(msg, append(a.args, args...)...)
}

type nopLogger struct{}

// NewNop returns a port.Logger that discards everything. Used by tests.
func NewNop() port.Logger { return nopLogger{} }

func (nopLogger) With(...any) port.Logger { return nopLogger{} }
func (nopLogger) Info(string, ...any)     {}
func (nopLogger) Debug(string, ...any)    {}
func (nopLogger) Warn(string, ...any)     {}
func (nopLogger) Error(string, ...any)    {}

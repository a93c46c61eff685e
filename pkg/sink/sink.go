package sink

import (
	"errors"
	"strings"

	"github.com/getmockd/capturelog/pkg/unitlog"
)

// ErrClosed is returned by sinks and registries used after Close.
var ErrClosed = errors.New("sink: closed")

// Sink consumes flush records. OnFlush is called synchronously, once per
// unit, possibly from many goroutines at once.
type Sink interface {
	OnFlush(rec *unitlog.FlushRecord) error
}

// Func adapts a function to Sink.
type Func func(rec *unitlog.FlushRecord) error

// OnFlush calls f(rec).
func (f Func) OnFlush(rec *unitlog.FlushRecord) error { return f(rec) }

// MultiError aggregates the failures of several sinks.
type MultiError struct {
	Errors []error
}

// Error returns a string representation of all errors.
func (e *MultiError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var b strings.Builder
	b.WriteString("multiple errors:")
	for _, err := range e.Errors {
		b.WriteString("\n  - ")
		b.WriteString(err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying errors for use with errors.Is/As.
func (e *MultiError) Unwrap() []error {
	return e.Errors
}

// Is reports whether any error in the chain matches target.
func (e *MultiError) Is(target error) bool {
	for _, err := range e.Errors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Join returns nil for no errors and a *MultiError otherwise.
func Join(errs ...error) error {
	var kept []error
	for _, err := range errs {
		if err != nil {
			kept = append(kept, err)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return &MultiError{Errors: kept}
}

// Error wraps a failure of one named sink.
type Error struct {
	Sink string
	Err  error
}

func (e *Error) Error() string { return "sink " + e.Sink + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

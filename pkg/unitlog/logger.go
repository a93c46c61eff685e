package unitlog

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
)

// Logger appends entries to a unit's buffer. The zero Logger discards
// everything, so From can be used outside a unit.
type Logger struct {
	unit     *Unit
	category string
}

// Category returns a logger for a sub-task of the same unit.
func (l Logger) Category(name string) Logger {
	return Logger{unit: l.unit, category: name}
}

// Enabled reports whether the logger is attached to a unit.
func (l Logger) Enabled() bool { return l.unit != nil }

// Trace appends msg at LevelTrace.
func (l Logger) Trace(msg string) { l.log(LevelTrace, msg, nil) }

// Debug appends msg at LevelDebug.
func (l Logger) Debug(msg string) { l.log(LevelDebug, msg, nil) }

// Info appends msg at LevelInformation.
func (l Logger) Info(msg string) { l.log(LevelInformation, msg, nil) }

// Warn appends msg at LevelWarning.
func (l Logger) Warn(msg string) { l.log(LevelWarning, msg, nil) }

// Error appends msg at LevelError. Use LogError to attach an error value.
func (l Logger) Error(msg string) { l.log(LevelError, msg, nil) }

// Fatal appends msg at LevelFatal. It does not exit.
func (l Logger) Fatal(msg string) { l.log(LevelFatal, msg, nil) }

// Log appends a message at level.
func (l Logger) Log(level Level, msg string) { l.log(level, msg, nil) }

// Logf appends a formatted message at level.
func (l Logger) Logf(level Level, format string, args ...any) {
	l.log(level, fmt.Sprintf(format, args...), nil)
}

// LogError appends err at level with its exception detail.
func (l Logger) LogError(level Level, err error) {
	if err == nil {
		return
	}
	l.log(level, err.Error(), NewExceptionDetail(err))
}

// Append adds a fully built entry, stamping timestamp and category when empty.
func (l Logger) Append(e Entry) {
	if l.unit == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = l.unit.now()
	}
	if e.Category == "" {
		e.Category = l.category
	}
	l.unit.buffer.Append(e)
}

func (l Logger) log(level Level, msg string, exc *ExceptionDetail) {
	if l.unit == nil {
		return
	}
	e := Entry{
		Timestamp: l.unit.now(),
		Level:     level,
		Message:   msg,
		Exception: exc,
		Category:  l.category,
	}
	if _, file, line, ok := runtime.Caller(2); ok {
		e.Caller = filepath.Base(file) + ":" + strconv.Itoa(line)
	}
	l.unit.buffer.Append(e)
}

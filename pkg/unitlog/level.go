package unitlog

import (
	"fmt"
	"strings"
)

// Level is the severity of a buffered entry.
type Level int8

// Levels in ascending severity.
const (
	LevelTrace Level = iota
	LevelDebug
	LevelInformation
	LevelWarning
	LevelError
	LevelFatal
)

var levelNames = [...]string{
	LevelTrace:       "Trace",
	LevelDebug:       "Debug",
	LevelInformation: "Information",
	LevelWarning:     "Warning",
	LevelError:       "Error",
	LevelFatal:       "Fatal",
}

// String returns the level name, e.g. "Information".
func (l Level) String() string {
	if l < LevelTrace || l > LevelFatal {
		return fmt.Sprintf("Level(%d)", int8(l))
	}
	return levelNames[l]
}

// ParseLevel parses a level name case-insensitively. Short forms
// ("info", "warn", "err") are accepted.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace", "":
		return LevelTrace, nil
	case "debug":
		return LevelDebug, nil
	case "information", "info":
		return LevelInformation, nil
	case "warning", "warn":
		return LevelWarning, nil
	case "error", "err":
		return LevelError, nil
	case "fatal", "critical":
		return LevelFatal, nil
	}
	return LevelTrace, fmt.Errorf("unitlog: unknown level %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

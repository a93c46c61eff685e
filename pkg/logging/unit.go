package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/getmockd/capturelog/pkg/unitlog"
)

// UnitHandler copies records logged with a unit-carrying context into
// that unit's buffer, then forwards them to the wrapped handler.
type UnitHandler struct {
	next   slog.Handler
	attrs  []slog.Attr
	prefix string
}

// NewUnitHandler wraps next. A nil next only feeds units.
func NewUnitHandler(next slog.Handler) *UnitHandler {
	return &UnitHandler{next: next}
}

// Enabled is true whenever a unit may want the record.
func (h *UnitHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if _, ok := unitlog.FromContext(ctx); ok {
		return true
	}
	return h.next != nil && h.next.Enabled(ctx, level)
}

func (h *UnitHandler) Handle(ctx context.Context, r slog.Record) error {
	if unit, ok := unitlog.FromContext(ctx); ok {
		unit.Logger().Append(unitlog.Entry{
			Timestamp: r.Time,
			Level:     UnitLevel(r.Level),
			Message:   h.message(r),
		})
	}
	if h.next != nil && h.next.Enabled(ctx, r.Level) {
		return h.next.Handle(ctx, r)
	}
	return nil
}

func (h *UnitHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := h.clone()
	for _, a := range attrs {
		a.Key = h.prefix + a.Key
		out.attrs = append(out.attrs, a)
	}
	if h.next != nil {
		out.next = h.next.WithAttrs(attrs)
	}
	return out
}

func (h *UnitHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	out := h.clone()
	out.prefix = h.prefix + name + "."
	if h.next != nil {
		out.next = h.next.WithGroup(name)
	}
	return out
}

func (h *UnitHandler) clone() *UnitHandler {
	return &UnitHandler{
		next:   h.next,
		attrs:  append([]slog.Attr(nil), h.attrs...),
		prefix: h.prefix,
	}
}

// message renders r as "msg k=v ...".
func (h *UnitHandler) message(r slog.Record) string {
	var b strings.Builder
	b.WriteString(r.Message)
	write := func(a slog.Attr) {
		if a.Equal(slog.Attr{}) {
			return
		}
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value.Resolve().Any())
	}
	for _, a := range h.attrs {
		write(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		a.Key = h.prefix + a.Key
		write(a)
		return true
	})
	return b.String()
}

// UnitLevel maps a slog level onto the unit severity scale.
func UnitLevel(l slog.Level) unitlog.Level {
	switch {
	case l < slog.LevelDebug:
		return unitlog.LevelTrace
	case l < slog.LevelInfo:
		return unitlog.LevelDebug
	case l < slog.LevelWarn:
		return unitlog.LevelInformation
	case l < slog.LevelError:
		return unitlog.LevelWarning
	case l < slog.LevelError+4:
		return unitlog.LevelError
	default:
		return unitlog.LevelFatal
	}
}

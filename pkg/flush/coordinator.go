package flush

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/getmockd/capturelog/pkg/capture"
	"github.com/getmockd/capturelog/pkg/logging"
	"github.com/getmockd/capturelog/pkg/requestlog"
	"github.com/getmockd/capturelog/pkg/sink"
	"github.com/getmockd/capturelog/pkg/unitlog"
)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger for sink faults.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.log = l
		}
	}
}

// WithResponseBodyPredicate decides by response Content-Type whether the
// spooled body is offered to sinks. Default: application/json only.
func WithResponseBodyPredicate(fn func(contentType string) bool) Option {
	return func(c *Coordinator) {
		if fn != nil {
			c.includeBody = fn
		}
	}
}

// WithUnitOptions applies opts to units created by Run.
func WithUnitOptions(opts ...unitlog.Option) Option {
	return func(c *Coordinator) { c.unitOpts = append(c.unitOpts, opts...) }
}

// Coordinator owns the sink fan-out for all units of a process.
type Coordinator struct {
	registry    *sink.Registry
	includeBody func(string) bool
	unitOpts    []unitlog.Option
	log         *slog.Logger
}

// New creates a Coordinator delivering to registry. A nil registry is
// replaced by an empty one.
func New(registry *sink.Registry, opts ...Option) *Coordinator {
	if registry == nil {
		registry = sink.NewRegistry()
	}
	c := &Coordinator{
		registry:    registry,
		includeBody: capture.ContentTypeAllowList(capture.DefaultResponseBodyContentTypes...),
		log:         logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registry returns the sink registry.
func (c *Coordinator) Registry() *sink.Registry { return c.registry }

// Begin opens a session for unit. web is the request capture of an HTTP
// unit and nil for background units.
func (c *Coordinator) Begin(unit *unitlog.Unit, web *requestlog.UnitContext) *Session {
	if web == nil && unit.IsWeb() {
		web = &requestlog.UnitContext{ID: unit.ID(), StartTime: unit.StartTime()}
	}
	return &Session{coord: c, unit: unit, web: web}
}

// Run executes fn as a background unit named name. Entries logged through
// the context passed to fn are flushed when fn returns. A returned error
// or panic is recorded as an Error entry; the error is returned and the
// panic re-raised unchanged.
func (c *Coordinator) Run(ctx context.Context, name string, fn func(ctx context.Context) error) (err error) {
	unit := unitlog.NewBackgroundUnit(append([]unitlog.Option{unitlog.WithName(name)}, c.unitOpts...)...)
	s := c.Begin(unit, nil)

	defer func() {
		if v := recover(); v != nil {
			_ = s.End(Outcome{Panic: v, Stack: debug.Stack()})
			panic(v)
		}
		_ = s.End(Outcome{Err: err})
	}()
	return fn(unitlog.NewContext(ctx, unit))
}

// notify delivers rec to one registration, converting a panic to an error.
func (c *Coordinator) notify(reg *sink.Registration, rec *unitlog.FlushRecord) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("panic: %v", v)
			c.log.Warn("sink panicked", "sink", reg.Name, "unit", rec.UnitID, "panic", v, "stack", string(debug.Stack()))
		}
	}()

	ok, err := reg.Accepts(rec)
	if err != nil {
		c.log.Warn("sink filter failed", "sink", reg.Name, "unit", rec.UnitID, "error", err)
		return err
	}
	if !ok {
		return nil
	}
	if err := reg.Sink.OnFlush(rec); err != nil {
		c.log.Warn("sink flush failed", "sink", reg.Name, "unit", rec.UnitID, "error", err)
		return err
	}
	return nil
}

// Package middleware adapts the capture pipeline to net/http.
//
// New returns a middleware that, for every request not ignored by the
// builder, starts a unit, captures the request, buffers the response,
// and flushes one record when the handler returns or panics. Handlers
// reach their unit through the request context:
//
//	log := unitlog.From(r.Context())
//	log.Info("loading user")
package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/getmockd/capturelog/pkg/capture"
	"github.com/getmockd/capturelog/pkg/flush"
	"github.com/getmockd/capturelog/pkg/intercept"
	"github.com/getmockd/capturelog/pkg/logging"
	"github.com/getmockd/capturelog/pkg/unitlog"
)

// Option configures the middleware.
type Option func(*options)

type options struct {
	log         *slog.Logger
	spoolDir    string
	memoryLimit int64
	unitOpts    []unitlog.Option
}

// WithLogger sets the logger for replay and spool faults.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithSpoolDir sets where response bodies are spooled.
func WithSpoolDir(dir string) Option {
	return func(o *options) { o.spoolDir = dir }
}

// WithMemoryLimit sets how much of a response is buffered in memory
// before spooling to disk.
func WithMemoryLimit(n int64) Option {
	return func(o *options) { o.memoryLimit = n }
}

// WithUnitOptions applies opts to every unit created by the middleware.
func WithUnitOptions(opts ...unitlog.Option) Option {
	return func(o *options) { o.unitOpts = append(o.unitOpts, opts...) }
}

// New returns the capture middleware.
func New(coord *flush.Coordinator, builder *capture.Builder, opts ...Option) func(http.Handler) http.Handler {
	o := options{log: logging.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	writerOpts := []intercept.Option{intercept.WithLogger(o.log), intercept.WithMemoryLimit(o.memoryLimit)}
	if o.spoolDir != "" {
		writerOpts = append(writerOpts, intercept.WithDir(o.spoolDir))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !builder.ShouldCapture(r) {
				next.ServeHTTP(w, r)
				return
			}

			unit := unitlog.NewUnit(o.unitOpts...)
			session := coord.Begin(unit, builder.Build(r, unit))
			r = r.WithContext(unitlog.NewContext(r.Context(), unit))

			iw := intercept.New(w, writerOpts...)
			defer func() {
				if err := iw.Release(); err != nil {
					o.log.Warn("response spool cleanup failed", "unit", unit.ID(), "error", err)
				}
			}()
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				// Nothing buffered is replayed; the host decides how to answer.
				_ = session.End(flush.Outcome{
					StatusCode:    iw.Status(),
					Header:        iw.Header(),
					ContentLength: iw.Size(),
					Panic:         v,
					Stack:         debug.Stack(),
				})
				panic(v)
			}()

			next.ServeHTTP(iw, r)

			if err := iw.Finish(); err != nil {
				o.log.Debug("response replay failed", "unit", unit.ID(), "error", err)
			}
			_ = session.End(flush.Outcome{
				StatusCode:    iw.Status(),
				Header:        iw.Header(),
				ContentLength: iw.Size(),
				ContentType:   iw.ContentType(),
				Body:          iw.Body(),
			})
		})
	}
}

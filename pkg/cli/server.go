package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/getmockd/capturelog/pkg/capture"
	"github.com/getmockd/capturelog/pkg/config"
	"github.com/getmockd/capturelog/pkg/flush"
	"github.com/getmockd/capturelog/pkg/inspect"
	"github.com/getmockd/capturelog/pkg/middleware"
	"github.com/getmockd/capturelog/pkg/sink"
	"github.com/getmockd/capturelog/pkg/sink/memory"
)

// InspectPrefix is where the memory sink inspector is mounted.
const InspectPrefix = "/_capturelog"

// server is the assembled pipeline behind the serve command.
type server struct {
	log      *slog.Logger
	registry *sink.Registry
	coord    *flush.Coordinator
	handler  http.Handler
	started  time.Time
}

// newServer wires registry, builder, coordinator and middleware around
// the demo routes. Close must be called to release the sinks.
func newServer(cfg *config.Config, logger *slog.Logger) (*server, error) {
	registry, err := cfg.BuildRegistry()
	if err != nil {
		return nil, fmt.Errorf("build sinks: %w", err)
	}

	opts, err := cfg.CaptureOptions()
	if err != nil {
		_ = registry.Close()
		return nil, fmt.Errorf("capture options: %w", err)
	}
	opts.Logger = logger
	builder, err := capture.NewBuilder(opts)
	if err != nil {
		_ = registry.Close()
		return nil, fmt.Errorf("capture builder: %w", err)
	}

	coord := flush.New(registry,
		flush.WithLogger(logger),
		flush.WithResponseBodyPredicate(cfg.ResponseBodyPredicate()),
	)
	capturing := middleware.New(coord, builder,
		middleware.WithLogger(logger),
		middleware.WithSpoolDir(cfg.Capture.SpoolDir),
	)

	s := &server{log: logger, registry: registry, coord: coord, started: time.Now()}

	mux := http.NewServeMux()
	mux.Handle("/", capturing(demoRoutes()))
	if mem := firstMemorySink(registry); mem != nil {
		mux.Handle(InspectPrefix+"/", http.StripPrefix(InspectPrefix, inspect.New(mem, inspect.WithLogger(logger))))
	}
	s.handler = mux
	return s, nil
}

func firstMemorySink(registry *sink.Registry) *memory.Sink {
	for _, reg := range registry.Snapshot() {
		if mem, ok := reg.Sink.(*memory.Sink); ok {
			return mem
		}
	}
	return nil
}

// heartbeat runs a background unit every interval until ctx is done.
func (s *server) heartbeat(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.coord.Run(ctx, "heartbeat", func(ctx context.Context) error {
				slog.InfoContext(ctx, "heartbeat", "uptime", time.Since(s.started).Round(time.Second).String())
				return nil
			})
		}
	}
}

// serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *server) serve(ctx context.Context, addr string, heartbeat time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if heartbeat > 0 {
		go s.heartbeat(ctx, heartbeat)
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("capturelog listening", "addr", addr, "sinks", s.registry.Len())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close releases every sink.
func (s *server) Close() error {
	return s.registry.Close()
}

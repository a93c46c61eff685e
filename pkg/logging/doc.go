// Package logging provides structured logging configuration for capturelog.
//
// This package wraps log/slog for the process's own operational logs
// (startup, sink faults, spool errors). It is separate from the per-unit
// buffers of package unitlog, which hold what applications log while
// handling a request.
//
// # Usage
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.LevelInfo,
//	    Format: logging.FormatJSON,
//	})
//
//	logger.Info("server started", "addr", ":8080")
//
// # Bridging into units
//
// NewUnitHandler wraps a handler so that records logged with a context
// carrying a unit are also appended to that unit's buffer:
//
//	slog.SetDefault(slog.New(logging.NewUnitHandler(logger.Handler())))
//	slog.InfoContext(r.Context(), "user loaded", "id", 42)
//
// # Integration
//
// Components accept a *slog.Logger in their constructor or options. If no
// logger is provided, use logging.Nop().
package logging

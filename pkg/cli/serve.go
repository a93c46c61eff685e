package cli

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/getmockd/capturelog/pkg/logging"
)

var (
	serveAddr      string
	serveHeartbeat time.Duration
	serveOverrides configOverrides
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the demo server with capture enabled",
	Long: `Serve starts an HTTP server whose routes are wrapped by the capture
middleware:

  GET    /hello?name=   JSON greeting
  POST   /echo          echoes the request body
  GET    /fail          panics (recorded as a 500 with an error entry)
  GET    /error         logs an error and returns 502
  DELETE /empty         204 No Content

When a memory sink is configured its records are browsable under
` + InspectPrefix + `/records.`,
	Example: `  capturelog serve
  capturelog serve -c capturelog.yaml --addr :9090 --log-dir ./logs
  CAPTURELOG_LOG_LEVEL=debug capturelog serve --heartbeat 30s`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath, serveOverrides)
		if err != nil {
			return err
		}

		logger, closer, err := cfg.Logger(os.Stderr)
		if err != nil {
			return err
		}
		defer func() { _ = closer.Close() }()

		// Operational logs written with a unit context also land in the unit.
		logger = slog.New(logging.NewUnitHandler(logger.Handler()))
		slog.SetDefault(logger)

		srv, err := newServer(cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := srv.Close(); err != nil {
				logger.Warn("failed to close sinks", "error", err)
			}
		}()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return srv.serve(ctx, serveAddr, serveHeartbeat)
	},
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveAddr, "addr", ":8080", "Listen address")
	f.DurationVar(&serveHeartbeat, "heartbeat", 0, "Run a background heartbeat unit at this interval (0 disables)")
	f.StringVar(&serveOverrides.logLevel, "log-level", "", "Operational log level (debug, info, warn, error)")
	f.StringVar(&serveOverrides.logFormat, "log-format", "", "Operational log format (text, json)")
	f.StringVar(&serveOverrides.logDir, "log-dir", "", "Directory for the daily file sink")
	f.StringVar(&serveOverrides.spoolDir, "spool-dir", "", "Directory for temporary response bodies")
	rootCmd.AddCommand(serveCmd)
}


// capturelog runs an HTTP server whose requests are captured, buffered
// per unit of work and flushed to the configured sinks.
package main

import "github.com/getmockd/capturelog/pkg/cli"

// Build-time variables set via ldflags
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	cli.Version = Version
	cli.Commit = Commit
	cli.BuildDate = BuildDate
	cli.Execute()
}

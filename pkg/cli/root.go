// Package cli implements the capturelog command line.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Persistent flags available to all subcommands
	configPath string
	jsonOutput bool

	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "capturelog",
	Short: "capturelog captures HTTP units of work and flushes them to sinks",
	Long: `capturelog buffers every log entry written while an HTTP request (or a
named background job) is in flight, together with a snapshot of the request
and response, and hands the complete record to each configured sink once the
unit finishes.

Configuration can be provided via a YAML or JSON file, environment variables
(CAPTURELOG_LOG_LEVEL, CAPTURELOG_LOG_FORMAT, CAPTURELOG_LOG_DIR,
CAPTURELOG_SPOOL_DIR) or flags. Flags win over the environment, which wins
over the file.`,
	SilenceUsage:  true,
	SilenceErrors: true, // We handle errors in Execute()
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// run executes the command tree with args, writing to out. Used by tests.
func run(out io.Writer, args ...string) error {
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		jsonOutput = false
		configPath = ""
	}()
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML or JSON)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output command results in JSON format")
}

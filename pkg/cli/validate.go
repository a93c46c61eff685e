package cli

import (
	"fmt"

	"github.com/segmentio/encoding/json"
	"github.com/spf13/cobra"
)

// ValidateOutput is the JSON form of a validate run.
type ValidateOutput struct {
	Valid   bool              `json:"valid"`
	Path    string            `json:"path,omitempty"`
	Sinks   []string          `json:"sinks,omitempty"`
	Errors  []string          `json:"errors,omitempty"`
	Sources map[string]string `json:"sources,omitempty"`
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a capturelog configuration without starting the server",
	Long: `Validate checks YAML/JSON syntax, the configuration schema, sink types,
routing levels and filter expressions, and capture options such as
JSONPath obfuscation rules.`,
	Example: `  capturelog validate -c capturelog.yaml
  capturelog validate -c capturelog.yaml --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		out := ValidateOutput{Path: configPath}

		cfg, err := loadConfig(configPath, configOverrides{})
		if err == nil {
			out.Valid = true
			out.Sources = cfg.Sources
			for _, s := range cfg.Sinks {
				out.Sinks = append(out.Sinks, s.Name+" ("+s.Type+")")
			}
		} else {
			out.Errors = configErrors(err)
		}

		if jsonOutput {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(out); encErr != nil {
				return encErr
			}
			return err
		}

		if err != nil {
			fmt.Fprintln(w, "Configuration is invalid:")
			for _, e := range out.Errors {
				fmt.Fprintln(w, "  -", e)
			}
			return err
		}
		fmt.Fprintf(w, "Configuration is valid (%d sinks)\n", len(out.Sinks))
		for _, s := range out.Sinks {
			fmt.Fprintln(w, "  -", s)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

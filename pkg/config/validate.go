package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/getmockd/capturelog/pkg/capture"
	"github.com/getmockd/capturelog/pkg/sink"

	// Built-in sink kinds.
	_ "github.com/getmockd/capturelog/pkg/sink/file"
	_ "github.com/getmockd/capturelog/pkg/sink/jsonl"
	_ "github.com/getmockd/capturelog/pkg/sink/memory"
	_ "github.com/getmockd/capturelog/pkg/sink/nats"
	_ "github.com/getmockd/capturelog/pkg/sink/sqlite"
)

var validLogLevels = map[string]bool{"": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true}

// Validate performs semantic checks the schema cannot express.
func Validate(cfg *Config) *SchemaValidationResult {
	result := &SchemaValidationResult{}
	if cfg == nil {
		result.AddError("", "configuration is nil")
		return result
	}

	if cfg.Version != CurrentVersion {
		result.AddError("version", fmt.Sprintf("unsupported version %q (expected %q)", cfg.Version, CurrentVersion))
	}

	if !validLogLevels[strings.ToLower(cfg.Logging.Level)] {
		result.AddError("logging.level", fmt.Sprintf("unknown level %q", cfg.Logging.Level))
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "", "text", "json":
	default:
		result.AddError("logging.format", fmt.Sprintf("unknown format %q", cfg.Logging.Format))
	}

	validateCapture(cfg, result)

	seen := make(map[string]int, len(cfg.Sinks))
	for i, sc := range cfg.Sinks {
		path := fmt.Sprintf("sinks[%d]", i)
		if sc.Name == "" {
			result.AddError(path+".name", "name is required")
		} else if prev, dup := seen[sc.Name]; dup {
			result.AddError(path+".name", fmt.Sprintf("duplicate sink name %q (also sinks[%d])", sc.Name, prev))
		} else {
			seen[sc.Name] = i
		}
		if _, ok := sink.LookupFactory(sc.Type); !ok {
			result.AddError(path+".type", fmt.Sprintf("unknown sink type %q (known: %s)", sc.Type, strings.Join(sink.Kinds(), ", ")))
		}
		p, err := sc.Policy()
		if err != nil {
			result.AddError(path+".minLevel", err.Error())
			continue
		}
		if err := p.Validate(); err != nil {
			result.AddError(path+".when", err.Error())
		}
	}
	return result
}

func validateCapture(cfg *Config, result *SchemaValidationResult) {
	if jwt := cfg.Capture.JWT; jwt != nil {
		if jwt.Secret != "" && jwt.SecretEnv != "" {
			result.AddError("capture.jwt", "secret and secretEnv are mutually exclusive")
		}
		if jwt.Secret == "" && jwt.SecretEnv == "" {
			result.AddError("capture.jwt", "secret or secretEnv is required")
		}
		if jwt.SecretEnv != "" && os.Getenv(jwt.SecretEnv) == "" {
			result.AddError("capture.jwt.secretEnv", fmt.Sprintf("environment variable %s is not set", jwt.SecretEnv))
		}
	}
	opts, err := cfg.CaptureOptions()
	if err != nil {
		result.AddError("capture", err.Error())
		return
	}
	if _, err := capture.NewBuilder(opts); err != nil {
		result.AddError("capture", err.Error())
	}
}

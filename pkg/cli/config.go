package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/getmockd/capturelog/pkg/config"
)

// configOverrides are flag values layered over file and environment.
type configOverrides struct {
	logLevel  string
	logFormat string
	logDir    string
	spoolDir  string
}

// loadConfig resolves the effective configuration: file (or defaults),
// then environment, then flags.
func loadConfig(path string, o configOverrides) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	config.ApplyEnv(cfg)

	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
		cfg.Sources["logging.level"] = config.SourceFlag
	}
	if o.logFormat != "" {
		cfg.Logging.Format = o.logFormat
		cfg.Sources["logging.format"] = config.SourceFlag
	}
	if o.spoolDir != "" {
		cfg.Capture.SpoolDir = o.spoolDir
		cfg.Sources["capture.spoolDir"] = config.SourceFlag
	}
	if o.logDir != "" {
		cfg.SetLogDir(o.logDir, config.SourceFlag)
	}

	if result := config.Validate(cfg); !result.IsValid() {
		return nil, fmt.Errorf("%w:\n%s", config.ErrInvalidConfig, result.Error())
	}
	return cfg, nil
}

// configErrors splits a load error into per-line messages for output.
func configErrors(err error) []string {
	if err == nil {
		return nil
	}
	if errors.Is(err, config.ErrInvalidConfig) {
		var lines []string
		for _, line := range strings.Split(err.Error(), "\n") {
			if line != "" && line != config.ErrInvalidConfig.Error()+":" {
				lines = append(lines, line)
			}
		}
		return lines
	}
	return []string{err.Error()}
}

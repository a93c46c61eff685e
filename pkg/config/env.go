package config

import (
	"os"
	"strings"
)

// Environment variables that override file configuration.
const (
	EnvLogLevel  = "CAPTURELOG_LOG_LEVEL"
	EnvLogFormat = "CAPTURELOG_LOG_FORMAT"
	EnvLogDir    = "CAPTURELOG_LOG_DIR"
	EnvSpoolDir  = "CAPTURELOG_SPOOL_DIR"
)

// Source values recorded in Config.Sources.
const (
	SourceEnv  = "env"
	SourceFlag = "flag"
)

// ApplyEnv overrides cfg from the environment.
func ApplyEnv(cfg *Config) {
	applyEnvWith(cfg, os.Getenv)
}

func applyEnvWith(cfg *Config, getenv func(string) string) {
	if cfg.Sources == nil {
		cfg.Sources = make(map[string]string)
	}
	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = v
		cfg.Sources["logging.level"] = SourceEnv
	}
	if v := strings.TrimSpace(getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = v
		cfg.Sources["logging.format"] = SourceEnv
	}
	if v := strings.TrimSpace(getenv(EnvSpoolDir)); v != "" {
		cfg.Capture.SpoolDir = v
		cfg.Sources["capture.spoolDir"] = SourceEnv
	}
	if v := strings.TrimSpace(getenv(EnvLogDir)); v != "" {
		cfg.SetLogDir(v, SourceEnv)
	}
}

// SetLogDir points every file sink at dir, adding a "daily" file sink
// when none is declared.
func (c *Config) SetLogDir(dir, source string) {
	if c.Sources == nil {
		c.Sources = make(map[string]string)
	}
	found := false
	for i := range c.Sinks {
		if c.Sinks[i].Type != "file" {
			continue
		}
		if c.Sinks[i].Options == nil {
			c.Sinks[i].Options = make(map[string]any)
		}
		c.Sinks[i].Options["dir"] = dir
		c.Sources["sinks."+c.Sinks[i].Name+".dir"] = source
		found = true
	}
	if !found {
		c.Sinks = append(c.Sinks, SinkConfig{Name: "daily", Type: "file", Options: map[string]any{"dir": dir}})
		c.Sources["sinks.daily.dir"] = source
	}
}

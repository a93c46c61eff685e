package config

import (
	"github.com/getmockd/capturelog/pkg/unitlog"
)

// CurrentVersion is the only supported configuration version.
const CurrentVersion = "1"

// Config is the root configuration.
type Config struct {
	Version string        `json:"version" yaml:"version"`
	Logging LoggingConfig `json:"logging,omitempty" yaml:"logging,omitempty"`
	Capture CaptureConfig `json:"capture,omitempty" yaml:"capture,omitempty"`
	Sinks   []SinkConfig  `json:"sinks,omitempty" yaml:"sinks,omitempty"`

	// Sources records which fields were set from the environment.
	Sources map[string]string `json:"-" yaml:"-"`
}

// LoggingConfig configures operational logging.
type LoggingConfig struct {
	// Level is debug, info, warn or error.
	Level string `json:"level,omitempty" yaml:"level,omitempty"`

	// Format is text or json.
	Format string `json:"format,omitempty" yaml:"format,omitempty"`

	// File additionally receives every log line as JSON.
	File string `json:"file,omitempty" yaml:"file,omitempty"`
}

// CaptureConfig mirrors capture.Options. Omitted lists keep the defaults;
// an explicit empty list clears them.
type CaptureConfig struct {
	MaxPropertyLength    int   `json:"maxPropertyLength,omitempty" yaml:"maxPropertyLength,omitempty"`
	MaxInputStreamLength int   `json:"maxInputStreamLength,omitempty" yaml:"maxInputStreamLength,omitempty"`
	MaxFormBytes         int64 `json:"maxFormBytes,omitempty" yaml:"maxFormBytes,omitempty"`

	// Cookies are doublestar patterns of cookie names to capture.
	Cookies []string `json:"cookies,omitempty" yaml:"cookies,omitempty"`

	InputStreamContentTypes  []string `json:"inputStreamContentTypes,omitempty" yaml:"inputStreamContentTypes,omitempty"`
	ResponseBodyContentTypes []string `json:"responseBodyContentTypes,omitempty" yaml:"responseBodyContentTypes,omitempty"`

	ObfuscateKeys      []string `json:"obfuscateKeys,omitempty" yaml:"obfuscateKeys,omitempty"`
	ObfuscateJSONPaths []string `json:"obfuscateJsonPaths,omitempty" yaml:"obfuscateJsonPaths,omitempty"`

	UserNameClaims []string `json:"userNameClaims,omitempty" yaml:"userNameClaims,omitempty"`
	EmailClaims    []string `json:"emailClaims,omitempty" yaml:"emailClaims,omitempty"`
	AvatarClaims   []string `json:"avatarClaims,omitempty" yaml:"avatarClaims,omitempty"`

	IgnorePaths []string `json:"ignorePaths,omitempty" yaml:"ignorePaths,omitempty"`

	// SessionCookie enables session correlation keyed by this cookie.
	SessionCookie string `json:"sessionCookie,omitempty" yaml:"sessionCookie,omitempty"`

	MachineName string `json:"machineName,omitempty" yaml:"machineName,omitempty"`

	// SpoolDir holds temporary response bodies. Default: the OS temp dir.
	SpoolDir string `json:"spoolDir,omitempty" yaml:"spoolDir,omitempty"`

	JWT *JWTConfig `json:"jwt,omitempty" yaml:"jwt,omitempty"`
}

// JWTConfig enables bearer-token claims capture.
type JWTConfig struct {
	// Secret is the HMAC key. SecretEnv names a variable holding it instead.
	Secret    string `json:"secret,omitempty" yaml:"secret,omitempty"`
	SecretEnv string `json:"secretEnv,omitempty" yaml:"secretEnv,omitempty"`

	// Header carries the token. Default: Authorization.
	Header string `json:"header,omitempty" yaml:"header,omitempty"`
}

// SinkConfig declares one sink.
type SinkConfig struct {
	Name          string         `json:"name" yaml:"name"`
	Type          string         `json:"type" yaml:"type"`
	MinLevel      string         `json:"minLevel,omitempty" yaml:"minLevel,omitempty"`
	MinStatusCode int            `json:"minStatusCode,omitempty" yaml:"minStatusCode,omitempty"`
	When          string         `json:"when,omitempty" yaml:"when,omitempty"`
	Options       map[string]any `json:"options,omitempty" yaml:"options,omitempty"`
}

// Level parses MinLevel. An empty value means Trace.
func (s SinkConfig) Level() (unitlog.Level, error) {
	return unitlog.ParseLevel(s.MinLevel)
}

// Default returns the configuration used when no file is given: info
// logging and a daily file sink under ./logs.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Sinks: []SinkConfig{{
			Name:    "daily",
			Type:    "file",
			Options: map[string]any{"dir": "logs"},
		}},
		Sources: make(map[string]string),
	}
}

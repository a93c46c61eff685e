package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/getmockd/capturelog/pkg/capture"
	"github.com/getmockd/capturelog/pkg/identity"
	"github.com/getmockd/capturelog/pkg/logging"
	"github.com/getmockd/capturelog/pkg/sink"
)

// Policy returns the routing policy declared for the sink.
func (s SinkConfig) Policy() (sink.Policy, error) {
	level, err := s.Level()
	if err != nil {
		return sink.Policy{}, err
	}
	return sink.Policy{MinLevel: level, MinStatusCode: s.MinStatusCode, When: s.When}, nil
}

// list returns override when the key was present, def otherwise.
func list(override, def []string) []string {
	if override != nil {
		return override
	}
	return def
}

// CaptureOptions converts the capture section into capture.Options.
func (c *Config) CaptureOptions() (capture.Options, error) {
	cc := c.Capture
	opts := capture.DefaultOptions()

	if cc.MaxPropertyLength > 0 {
		opts.MaxPropertyLength = cc.MaxPropertyLength
	}
	if cc.MaxInputStreamLength > 0 {
		opts.MaxInputStreamLength = cc.MaxInputStreamLength
	}
	if cc.MaxFormBytes > 0 {
		opts.MaxFormBytes = cc.MaxFormBytes
	}
	if len(cc.Cookies) > 0 {
		opts.ShouldLogCookie = capture.CookieAllowList(cc.Cookies...)
	}
	if cc.InputStreamContentTypes != nil {
		opts.ShouldLogInputStream = capture.ContentTypeAllowList(cc.InputStreamContentTypes...)
	}
	if cc.ObfuscateKeys != nil {
		opts.ShouldObfuscate = capture.KeyContains(cc.ObfuscateKeys...)
	}
	opts.ObfuscateJSONPaths = list(cc.ObfuscateJSONPaths, opts.ObfuscateJSONPaths)
	if cc.UserNameClaims != nil {
		opts.UserNameClaims = capture.ClaimMatcher(cc.UserNameClaims)
	}
	if cc.EmailClaims != nil {
		opts.EmailClaims = capture.ClaimMatcher(cc.EmailClaims)
	}
	if cc.AvatarClaims != nil {
		opts.AvatarClaims = capture.ClaimMatcher(cc.AvatarClaims)
	}
	opts.IgnorePaths = cc.IgnorePaths
	opts.MachineName = cc.MachineName
	if cc.SessionCookie != "" {
		opts.Sessions = capture.NewCookieSessions(cc.SessionCookie)
	}

	if jc := cc.JWT; jc != nil {
		secret := jc.Secret
		if jc.SecretEnv != "" {
			secret = os.Getenv(jc.SecretEnv)
		}
		if secret == "" {
			return opts, errors.New("jwt: empty secret")
		}
		bearer := &identity.BearerJWT{Key: []byte(secret), Header: jc.Header}
		opts.Principal = identity.Chain(identity.ContextResolver, bearer.Resolve)
	}
	return opts, nil
}

// ResponseBodyPredicate decides by Content-Type whether a response body
// is offered to sinks.
func (c *Config) ResponseBodyPredicate() func(contentType string) bool {
	return capture.ContentTypeAllowList(list(c.Capture.ResponseBodyContentTypes, capture.DefaultResponseBodyContentTypes)...)
}

// BuildRegistry constructs every declared sink. On failure the sinks
// already built are closed.
func (c *Config) BuildRegistry() (*sink.Registry, error) {
	reg := sink.NewRegistry()
	for i, sc := range c.Sinks {
		p, err := sc.Policy()
		if err != nil {
			return nil, closeOnError(reg, fmt.Errorf("sinks[%d]: %w", i, err))
		}
		s, err := sink.New(sc.Type, sc.Options)
		if err != nil {
			return nil, closeOnError(reg, fmt.Errorf("sinks[%d] %q: %w", i, sc.Name, err))
		}
		if _, err := reg.Register(sc.Name, s, p); err != nil {
			if closer, ok := s.(io.Closer); ok {
				_ = closer.Close()
			}
			return nil, closeOnError(reg, fmt.Errorf("sinks[%d]: %w", i, err))
		}
	}
	return reg, nil
}

func closeOnError(reg *sink.Registry, err error) error {
	if cerr := reg.Close(); cerr != nil {
		return errors.Join(err, cerr)
	}
	return err
}

// LoggerConfig maps the logging section onto logging.Config. The returned
// closer releases the log file, if any.
func (c *Config) LoggerConfig(out io.Writer) (logging.Config, io.Closer, error) {
	lc := logging.DefaultConfig()
	if out != nil {
		lc.Output = out
	}
	if c.Logging.Level != "" {
		lc.Level = logging.ParseLevel(c.Logging.Level)
	}
	if c.Logging.Format != "" {
		lc.Format = logging.ParseFormat(c.Logging.Format)
	}
	if c.Logging.File == "" {
		return lc, io.NopCloser(nil), nil
	}
	f, err := os.OpenFile(c.Logging.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return lc, nil, fmt.Errorf("open log file: %w", err)
	}
	lc.Extra = f
	return lc, f, nil
}

// Logger is shorthand for building the operational logger from cfg.
func (c *Config) Logger(out io.Writer) (*slog.Logger, io.Closer, error) {
	lc, closer, err := c.LoggerConfig(out)
	if err != nil {
		return nil, nil, err
	}
	return logging.New(lc), closer, nil
}

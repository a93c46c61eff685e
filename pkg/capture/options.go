package capture

import (
	"log/slog"
	"mime"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/getmockd/capturelog/pkg/identity"
	"github.com/getmockd/capturelog/pkg/logging"
	"github.com/getmockd/capturelog/pkg/util"
)

// ObfuscatedValue replaces sensitive captured values.
const ObfuscatedValue = "***obfuscated***"

// DefaultMaxFormBytes caps how much of a url-encoded body is read to
// capture form fields.
const DefaultMaxFormBytes = 10 << 20

// Default candidate lists for deriving user details from claims.
var (
	DefaultUserNameClaims = ClaimMatcher{"http://schemas.xmlsoap.org/ws/2005/05/identity/claims/name", "name", "email"}
	DefaultEmailClaims    = ClaimMatcher{"http://schemas.xmlsoap.org/ws/2005/05/identity/claims/emailaddress", "email", "emailaddress"}
	DefaultAvatarClaims   = ClaimMatcher{"avatar", "picture", "image"}
)

// Default content types whose bodies are captured.
var (
	DefaultInputStreamContentTypes  = []string{"text/plain", "application/json", "application/xml", "text/xml", "text/html"}
	DefaultResponseBodyContentTypes = []string{"application/json"}
)

// DefaultObfuscateKeys lists key fragments whose values are hidden.
var DefaultObfuscateKeys = []string{"password", "pwd", "secret"}

// DefaultObfuscateJSONPaths lists JSONPath expressions hidden in JSON bodies.
var DefaultObfuscateJSONPaths = []string{"$..password"}

// Options configures the Builder.
type Options struct {
	// MaxPropertyLength caps header, cookie, query and form values.
	MaxPropertyLength int

	// MaxInputStreamLength caps the captured request body.
	MaxInputStreamLength int

	// MaxFormBytes caps how much body is read to parse form fields.
	MaxFormBytes int64

	// ShouldLogCookie decides per cookie name. Nil excludes all cookies.
	ShouldLogCookie func(name string) bool

	// ShouldLogInputStream decides by request Content-Type.
	ShouldLogInputStream func(contentType string) bool

	// ShouldObfuscate reports whether a key's value must be hidden.
	ShouldObfuscate func(key string) bool

	// ObfuscateJSONPaths are hidden in captured JSON bodies.
	ObfuscateJSONPaths []string

	UserNameClaims ClaimMatcher
	EmailClaims    ClaimMatcher
	AvatarClaims   ClaimMatcher

	// IgnorePaths are doublestar patterns of request paths never captured.
	IgnorePaths []string

	// Sessions provides session correlation. Nil skips the session step.
	Sessions SessionProvider

	// Principal resolves the authenticated caller.
	Principal identity.Resolver

	// MachineName overrides host name detection.
	MachineName string

	// Logger receives debug lines for isolated capture faults.
	Logger *slog.Logger
}

// DefaultOptions returns the default capture policy.
func DefaultOptions() Options {
	return Options{
		MaxPropertyLength:    util.MaxPropertyLength,
		MaxInputStreamLength: util.MaxLogBodySize,
		MaxFormBytes:         DefaultMaxFormBytes,
		ShouldLogCookie:      DenyAllCookies,
		ShouldLogInputStream: ContentTypeAllowList(DefaultInputStreamContentTypes...),
		ShouldObfuscate:      KeyContains(DefaultObfuscateKeys...),
		ObfuscateJSONPaths:   DefaultObfuscateJSONPaths,
		UserNameClaims:       DefaultUserNameClaims,
		EmailClaims:          DefaultEmailClaims,
		AvatarClaims:         DefaultAvatarClaims,
		Principal:            identity.ContextResolver,
		Logger:               logging.Nop(),
	}
}

func (o *Options) applyDefaults() {
	def := DefaultOptions()
	if o.MaxPropertyLength <= 0 {
		o.MaxPropertyLength = def.MaxPropertyLength
	}
	if o.MaxInputStreamLength <= 0 {
		o.MaxInputStreamLength = def.MaxInputStreamLength
	}
	if o.MaxFormBytes <= 0 {
		o.MaxFormBytes = def.MaxFormBytes
	}
	if o.ShouldLogCookie == nil {
		o.ShouldLogCookie = DenyAllCookies
	}
	if o.ShouldLogInputStream == nil {
		o.ShouldLogInputStream = def.ShouldLogInputStream
	}
	if o.ShouldObfuscate == nil {
		o.ShouldObfuscate = func(string) bool { return false }
	}
	if o.UserNameClaims == nil {
		o.UserNameClaims = def.UserNameClaims
	}
	if o.EmailClaims == nil {
		o.EmailClaims = def.EmailClaims
	}
	if o.AvatarClaims == nil {
		o.AvatarClaims = def.AvatarClaims
	}
	if o.Principal == nil {
		o.Principal = def.Principal
	}
	if o.Logger == nil {
		o.Logger = def.Logger
	}
}

// DenyAllCookies is the default cookie predicate.
func DenyAllCookies(string) bool { return false }

// CookieAllowList admits cookies whose name matches one of the doublestar
// patterns (e.g. "session_*"). Invalid patterns never match.
func CookieAllowList(patterns ...string) func(name string) bool {
	return func(name string) bool {
		for _, p := range patterns {
			if ok, err := doublestar.Match(p, name); err == nil && ok {
				return true
			}
		}
		return false
	}
}

// ContentTypeAllowList matches a Content-Type containing any of the given
// media types, case-insensitively. An empty content type never matches.
func ContentTypeAllowList(types ...string) func(contentType string) bool {
	lowered := make([]string, len(types))
	for i, t := range types {
		lowered[i] = strings.ToLower(t)
	}
	return func(contentType string) bool {
		if contentType == "" {
			return false
		}
		ct := strings.ToLower(contentType)
		for _, t := range lowered {
			if t != "" && strings.Contains(ct, t) {
				return true
			}
		}
		return false
	}
}

// KeyContains matches keys containing any fragment, case-insensitively.
func KeyContains(fragments ...string) func(key string) bool {
	lowered := make([]string, 0, len(fragments))
	for _, f := range fragments {
		if f != "" {
			lowered = append(lowered, strings.ToLower(f))
		}
	}
	return func(key string) bool {
		k := strings.ToLower(key)
		for _, f := range lowered {
			if strings.Contains(k, f) {
				return true
			}
		}
		return false
	}
}

// isMediaType reports whether contentType parses to mediaType.
func isMediaType(contentType, mediaType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == mediaType
}

package requestlog

import (
	"net/url"
	"strings"
	"time"

	"github.com/segmentio/encoding/json"
)

// KeyValue is one ordered name/value pair captured from a request or response.
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`

	// Truncated is set when Value was cut to the configured maximum length.
	Truncated bool `json:"truncated,omitempty"`
}

// Pairs is an ordered list of captured name/value pairs.
type Pairs []KeyValue

// Get returns the first value whose key matches name case-insensitively.
func (p Pairs) Get(name string) (string, bool) {
	for _, kv := range p {
		if strings.EqualFold(kv.Key, name) {
			return kv.Value, true
		}
	}
	return "", false
}

// RequestSnapshot is the immutable capture of an inbound request.
type RequestSnapshot struct {
	// Method is the HTTP method (GET, POST, etc.).
	Method string `json:"method"`

	// URL is the full display URL including scheme, host and query.
	URL *url.URL `json:"-"`

	// RawURL is URL rendered as a string, kept for serialization.
	RawURL string `json:"url"`

	// RemoteAddress is the client IP address without the port.
	RemoteAddress string `json:"remoteAddress,omitempty"`

	// UserAgent is the User-Agent header value.
	UserAgent string `json:"userAgent,omitempty"`

	// HTTPReferer is the Referer header value.
	HTTPReferer string `json:"httpReferer,omitempty"`

	// Headers are the request headers in canonical-name order, without Cookie.
	Headers Pairs `json:"headers,omitempty"`

	// Cookies are the cookies admitted by the cookie predicate.
	Cookies Pairs `json:"cookies,omitempty"`

	// QueryString holds query parameters in first-seen order.
	QueryString Pairs `json:"queryString,omitempty"`

	// FormData holds url-encoded form fields in first-seen order.
	FormData Pairs `json:"formData,omitempty"`

	// InputStream is the captured request body text, if any.
	InputStream string `json:"inputStream,omitempty"`

	// InputStreamTruncated is set when InputStream was cut.
	InputStreamTruncated bool `json:"inputStreamTruncated,omitempty"`

	// Claims are the authenticated principal's claims, in principal order.
	Claims Pairs `json:"claims,omitempty"`

	// IsAuthenticated reports whether the host supplied a principal.
	IsAuthenticated bool `json:"isAuthenticated"`

	// User is derived from Claims when the request is authenticated.
	User *UserDetails `json:"user,omitempty"`
}

// UnmarshalJSON decodes a snapshot and rebuilds URL from RawURL.
func (r *RequestSnapshot) UnmarshalJSON(data []byte) error {
	type plain RequestSnapshot
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = RequestSnapshot(p)
	if r.RawURL != "" {
		if u, err := url.Parse(r.RawURL); err == nil {
			r.URL = u
		}
	}
	return nil
}

// Path returns the request URL path, or "" when no URL was captured.
func (r *RequestSnapshot) Path() string {
	if r == nil {
		return ""
	}
	if r.URL == nil {
		if r.RawURL == "" {
			return ""
		}
		u, err := url.Parse(r.RawURL)
		if err != nil {
			return ""
		}
		return u.Path
	}
	return r.URL.Path
}

// ContentType returns the captured Content-Type header value.
func (r *RequestSnapshot) ContentType() string {
	if r == nil {
		return ""
	}
	v, _ := r.Headers.Get("Content-Type")
	return v
}

// ResponseSnapshot is the immutable capture of an outbound response.
type ResponseSnapshot struct {
	// StatusCode is the final HTTP status code.
	StatusCode int `json:"statusCode"`

	// Headers are the response headers in canonical-name order.
	Headers Pairs `json:"headers,omitempty"`

	// ContentLength is the number of body bytes the handler wrote.
	ContentLength int64 `json:"contentLength"`

	// Body references the spooled response body when it was selected for logging.
	Body *CapturedBody `json:"body,omitempty"`
}

// ContentType returns the captured Content-Type header value.
func (r *ResponseSnapshot) ContentType() string {
	if r == nil {
		return ""
	}
	v, _ := r.Headers.Get("Content-Type")
	return v
}

// UnitContext ties together the snapshots and timing of one web unit.
type UnitContext struct {
	// ID uniquely identifies the unit.
	ID string `json:"id"`

	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`

	SessionID    string `json:"sessionId,omitempty"`
	IsNewSession bool   `json:"isNewSession,omitempty"`

	// MachineName is the host that served the unit.
	MachineName string `json:"machineName,omitempty"`

	Request  *RequestSnapshot  `json:"request"`
	Response *ResponseSnapshot `json:"response,omitempty"`
}

// Duration returns EndTime - StartTime, or zero while the unit is open.
func (u *UnitContext) Duration() time.Duration {
	if u == nil || u.EndTime.IsZero() {
		return 0
	}
	return u.EndTime.Sub(u.StartTime)
}

// StatusCode returns the response status, or 0 if no response was captured.
func (u *UnitContext) StatusCode() int {
	if u == nil || u.Response == nil {
		return 0
	}
	return u.Response.StatusCode
}

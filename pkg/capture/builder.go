package capture

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"runtime/debug"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/getmockd/capturelog/pkg/requestlog"
	"github.com/getmockd/capturelog/pkg/unitlog"
	"github.com/getmockd/capturelog/pkg/util"
)

// Builder produces request snapshots from live requests.
type Builder struct {
	opts       Options
	obfuscator *jsonObfuscator
	machine    string
	log        *slog.Logger
}

// NewBuilder validates opts and returns a Builder. Zero limits and nil
// predicates, matchers or resolvers fall back to DefaultOptions; a nil
// ShouldObfuscate or ObfuscateJSONPaths disables that obfuscation.
func NewBuilder(opts Options) (*Builder, error) {
	opts.applyDefaults()

	for _, p := range opts.IgnorePaths {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("capture: invalid ignore pattern %q", p)
		}
	}
	obf, err := newJSONObfuscator(opts.ObfuscateJSONPaths)
	if err != nil {
		return nil, err
	}

	machine := opts.MachineName
	if machine == "" {
		machine = machineName()
	}

	return &Builder{
		opts:       opts,
		obfuscator: obf,
		machine:    machine,
		log:        opts.Logger,
	}, nil
}

// Options returns the effective options.
func (b *Builder) Options() Options { return b.opts }

// ShouldCapture reports whether r is outside every ignored path.
func (b *Builder) ShouldCapture(r *http.Request) bool {
	for _, p := range b.opts.IgnorePaths {
		if ok, _ := doublestar.Match(p, r.URL.Path); ok {
			return false
		}
	}
	return true
}

// Build captures r into a UnitContext for unit. Build never fails: each
// step that errors or panics leaves its fields empty. r.Body is replaced
// by an equivalent unread body when it had to be inspected.
func (b *Builder) Build(r *http.Request, unit *unitlog.Unit) *requestlog.UnitContext {
	snap := &requestlog.RequestSnapshot{}
	uc := &requestlog.UnitContext{
		ID:          unit.ID(),
		StartTime:   unit.StartTime(),
		MachineName: b.machine,
		Request:     snap,
	}
	if r == nil {
		return uc
	}

	b.step("request", func() error {
		snap.Method = r.Method
		snap.UserAgent = r.UserAgent()
		snap.RemoteAddress = remoteAddress(r.RemoteAddr)
		snap.URL = displayURL(r)
		snap.RawURL = snap.URL.String()
		return nil
	})
	b.step("session", func() error { return b.captureSession(r, uc) })
	b.step("headers", func() error { return b.captureHeaders(r, snap) })
	b.step("cookies", func() error { return b.captureCookies(r, snap) })
	b.step("query", func() error {
		snap.QueryString = b.sanitize(parseOrdered(r.URL.RawQuery))
		return nil
	})
	b.step("form", func() error { return b.captureForm(r, snap) })
	b.step("identity", func() error { return b.captureIdentity(r, snap) })
	b.step("inputStream", func() error { return b.captureInputStream(r, snap) })

	return uc
}

// step runs fn, logging and swallowing any error or panic.
func (b *Builder) step(name string, fn func() error) {
	defer func() {
		if v := recover(); v != nil {
			b.log.Debug("capture step panicked", "step", name, "panic", v, "stack", string(debug.Stack()))
		}
	}()
	if err := fn(); err != nil {
		b.log.Debug("capture step failed", "step", name, "error", err)
	}
}

func (b *Builder) captureSession(r *http.Request, uc *requestlog.UnitContext) error {
	if b.opts.Sessions == nil {
		return nil
	}
	session, err := b.opts.Sessions.Session(r)
	if err != nil {
		return err
	}

	id := session.ID()
	last, ok := session.Get(SessionMarkerKey)
	isNew := !ok || last == "" || !strings.EqualFold(last, id)
	if isNew {
		if err := session.Set(SessionMarkerKey, id); err != nil {
			return err
		}
	}
	uc.SessionID = id
	uc.IsNewSession = isNew
	return nil
}

func (b *Builder) captureHeaders(r *http.Request, snap *requestlog.RequestSnapshot) error {
	keys := make([]string, 0, len(r.Header)+1)
	for k := range r.Header {
		if strings.EqualFold(k, "Cookie") {
			continue
		}
		keys = append(keys, k)
	}
	if r.Host != "" && r.Header.Get("Host") == "" {
		keys = append(keys, "Host")
	}
	sort.Strings(keys)

	headers := make(requestlog.Pairs, 0, len(keys))
	for _, k := range keys {
		value := strings.Join(r.Header.Values(k), ", ")
		if k == "Host" && value == "" {
			value = r.Host
		}
		if strings.EqualFold(k, "Referer") {
			snap.HTTPReferer = value
		}
		headers = append(headers, requestlog.KeyValue{Key: k, Value: value})
	}
	snap.Headers = b.sanitize(headers)
	return nil
}

func (b *Builder) captureCookies(r *http.Request, snap *requestlog.RequestSnapshot) error {
	var cookies requestlog.Pairs
	for _, c := range r.Cookies() {
		if !b.opts.ShouldLogCookie(c.Name) {
			continue
		}
		cookies = append(cookies, requestlog.KeyValue{Key: c.Name, Value: c.Value})
	}
	snap.Cookies = b.sanitize(cookies)
	return nil
}

func (b *Builder) captureForm(r *http.Request, snap *requestlog.RequestSnapshot) error {
	if !isMediaType(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		return nil
	}
	if r.PostForm != nil {
		// Already parsed by an earlier handler; the body is gone.
		snap.FormData = b.sanitize(valuesToPairs(r.PostForm))
		return nil
	}
	data, err := peekBody(r, b.opts.MaxFormBytes)
	if err != nil {
		return err
	}
	snap.FormData = b.sanitize(parseOrdered(string(data)))
	return nil
}

func (b *Builder) captureIdentity(r *http.Request, snap *requestlog.RequestSnapshot) error {
	if b.opts.Principal == nil {
		return nil
	}
	principal, ok := b.opts.Principal(r)
	if !ok {
		return nil
	}
	claims := make(requestlog.Pairs, 0, len(principal.Claims))
	for _, c := range principal.Claims {
		if c.Key != "" {
			claims = append(claims, c)
		}
	}
	snap.Claims = claims
	snap.IsAuthenticated = true
	snap.User = deriveUser(claims, &b.opts)
	return nil
}

func (b *Builder) captureInputStream(r *http.Request, snap *requestlog.RequestSnapshot) error {
	contentType := r.Header.Get("Content-Type")
	if !b.opts.ShouldLogInputStream(contentType) {
		return nil
	}
	limit := b.opts.MaxInputStreamLength
	data, err := peekBody(r, int64(limit)+1)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	truncated := len(data) > limit
	if truncated {
		data = cutUTF8(data, limit)
	}
	text := decodeText(data, contentType)
	if !truncated && strings.Contains(strings.ToLower(contentType), "json") {
		text = b.obfuscator.Apply(text)
	}
	snap.InputStream = text
	snap.InputStreamTruncated = truncated
	return nil
}

// sanitize obfuscates sensitive keys, then truncates long values.
func (b *Builder) sanitize(pairs requestlog.Pairs) requestlog.Pairs {
	for i := range pairs {
		if b.opts.ShouldObfuscate(pairs[i].Key) {
			pairs[i].Value = ObfuscatedValue
			continue
		}
		pairs[i].Value, pairs[i].Truncated = util.Truncate(pairs[i].Value, b.opts.MaxPropertyLength)
	}
	return pairs
}

func valuesToPairs(values url.Values) requestlog.Pairs {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(requestlog.Pairs, 0, len(keys))
	for _, k := range keys {
		out = append(out, requestlog.KeyValue{Key: k, Value: strings.Join(values[k], paramSeparator)})
	}
	return out
}

func displayURL(r *http.Request) *url.URL {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	} else if r.URL.Scheme != "" {
		scheme = r.URL.Scheme
	}
	host := r.Host
	if host == "" {
		host = r.URL.Host
	}
	return &url.URL{
		Scheme:   scheme,
		Host:     host,
		Path:     r.URL.Path,
		RawPath:  r.URL.RawPath,
		RawQuery: r.URL.RawQuery,
	}
}

func remoteAddress(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func machineName() string {
	for _, env := range []string{"COMPUTERNAME", "HOSTNAME"} {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	name, _ := os.Hostname()
	return name
}

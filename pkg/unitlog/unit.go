package unitlog

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Property is a custom key/value attached to a unit.
type Property struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Unit holds everything buffered during one unit of work.
type Unit struct {
	id      string
	name    string
	web     bool
	started time.Time
	now     func() time.Time
	buffer  *Buffer

	mu              sync.Mutex
	properties      []Property
	logResponseBody *bool
	statusCode      int
}

// Option configures a Unit.
type Option func(*Unit)

// WithClock sets the time source used for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(u *Unit) {
		if now != nil {
			u.now = now
		}
	}
}

// WithName labels a background unit (e.g. "nightly-import").
func WithName(name string) Option {
	return func(u *Unit) {
		u.name = name
	}
}

// WithID overrides the generated unit id.
func WithID(id string) Option {
	return func(u *Unit) {
		if id != "" {
			u.id = id
		}
	}
}

// NewUnit starts a web unit.
func NewUnit(opts ...Option) *Unit {
	return newUnit(true, opts)
}

// NewBackgroundUnit starts a unit that is not tied to an HTTP request.
func NewBackgroundUnit(opts ...Option) *Unit {
	return newUnit(false, opts)
}

func newUnit(web bool, opts []Option) *Unit {
	u := &Unit{
		id:     uuid.New().String(),
		web:    web,
		now:    time.Now,
		buffer: NewBuffer(),
	}
	for _, opt := range opts {
		opt(u)
	}
	u.started = u.now()
	return u
}

// ID returns the unit id.
func (u *Unit) ID() string { return u.id }

// Name returns the background unit label, if any.
func (u *Unit) Name() string { return u.name }

// IsWeb reports whether the unit was created for an HTTP request.
func (u *Unit) IsWeb() bool { return u.web }

// StartTime returns when the unit was created.
func (u *Unit) StartTime() time.Time { return u.started }

// Now returns the unit's clock reading.
func (u *Unit) Now() time.Time { return u.now() }

// Buffer returns the unit's message buffer.
func (u *Unit) Buffer() *Buffer { return u.buffer }

// Logger returns a logger writing to the default category.
func (u *Unit) Logger() Logger { return Logger{unit: u} }

// Category returns a logger writing to the named category.
func (u *Unit) Category(name string) Logger { return Logger{unit: u, category: name} }

// SetProperty attaches a custom property. Setting an existing key replaces
// its value and keeps its position.
func (u *Unit) SetProperty(key string, value any) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for i := range u.properties {
		if u.properties[i].Key == key {
			u.properties[i].Value = value
			return
		}
	}
	u.properties = append(u.properties, Property{Key: key, Value: value})
}

// Property returns a custom property.
func (u *Unit) Property(key string) (any, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, p := range u.properties {
		if p.Key == key {
			return p.Value, true
		}
	}
	return nil, false
}

// Properties returns a copy of all custom properties.
func (u *Unit) Properties() []Property {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]Property, len(u.properties))
	copy(out, u.properties)
	return out
}

// SetLogResponseBody forces the response body to be included (or not)
// regardless of the configured content-type predicate.
func (u *Unit) SetLogResponseBody(include bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.logResponseBody = &include
}

// LogResponseBody returns the per-unit body override, if set.
func (u *Unit) LogResponseBody() (include, set bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.logResponseBody == nil {
		return false, false
	}
	return *u.logResponseBody, true
}

// SetStatusCode records the status the unit should report, overriding
// what the handler wrote. Used when a handled error implies a status.
func (u *Unit) SetStatusCode(code int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.statusCode = code
}

// StatusCode returns the status override, or 0.
func (u *Unit) StatusCode() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.statusCode
}

package sink

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/getmockd/capturelog/pkg/unitlog"
)

// Registration is one sink with its policy, as seen by the coordinator.
type Registration struct {
	Name   string
	Sink   Sink
	Policy Policy

	filter *filter
}

// Accepts reports whether rec passes the registration's policy.
func (r *Registration) Accepts(rec *unitlog.FlushRecord) (bool, error) {
	return r.filter.accepts(rec)
}

// Registry is the process-wide, read-mostly set of sinks. Registration is
// expected at startup; flushes work on a Snapshot and never observe a
// sink registered after they began.
type Registry struct {
	mu     sync.RWMutex
	regs   []*Registration
	byName map[string]*Registration
	closed bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Registration)}
}

// Register adds s under a unique name.
func (r *Registry) Register(name string, s Sink, p Policy) (*Registration, error) {
	if s == nil {
		return nil, errors.New("sink: nil sink")
	}
	if name == "" {
		return nil, errors.New("sink: name is required")
	}
	f, err := compilePolicy(p)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	if _, exists := r.byName[name]; exists {
		return nil, fmt.Errorf("sink: %q already registered", name)
	}
	reg := &Registration{Name: name, Sink: s, Policy: p, filter: f}
	r.regs = append(r.regs, reg)
	r.byName[name] = reg
	return reg, nil
}

// Snapshot returns the current registrations. The slice is a copy.
func (r *Registry) Snapshot() []*Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Registration, len(r.regs))
	copy(out, r.regs)
	return out
}

// Get returns the registration with name.
func (r *Registry) Get(name string) (*Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.byName[name]
	return reg, ok
}

// Len returns the number of registered sinks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.regs)
}

// Close closes every sink implementing io.Closer. All sinks are closed
// even if some fail.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	for _, reg := range r.regs {
		if c, ok := reg.Sink.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, &Error{Sink: reg.Name, Err: err})
			}
		}
	}
	return Join(errs...)
}

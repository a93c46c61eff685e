package capture

import (
	"errors"
	"net/http"
	"sync"
)

// SessionMarkerKey is the session key holding the last seen session id.
const SessionMarkerKey = "X-CaptureSessionId"

// ErrSessionUnavailable is returned when a request has no session.
var ErrSessionUnavailable = errors.New("capture: session unavailable")

// Session is a per-client key/value store.
type Session interface {
	ID() string
	Get(key string) (string, bool)
	Set(key, value string) error
}

// SessionProvider returns the session of a request.
type SessionProvider interface {
	Session(r *http.Request) (Session, error)
}

// CookieSessions is an in-memory SessionProvider keyed by a session cookie.
// Requests without the cookie have no session.
type CookieSessions struct {
	// CookieName names the cookie carrying the session id.
	CookieName string

	// MaxSessions bounds the number of tracked sessions. Default: 10000.
	MaxSessions int

	mu       sync.Mutex
	sessions map[string]map[string]string
}

// NewCookieSessions creates a provider reading the named cookie.
func NewCookieSessions(cookieName string) *CookieSessions {
	return &CookieSessions{CookieName: cookieName}
}

// Session implements SessionProvider.
func (c *CookieSessions) Session(r *http.Request) (Session, error) {
	cookie, err := r.Cookie(c.CookieName)
	if err != nil || cookie.Value == "" {
		return nil, ErrSessionUnavailable
	}
	return &cookieSession{store: c, id: cookie.Value}, nil
}

// Len returns the number of tracked sessions.
func (c *CookieSessions) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

func (c *CookieSessions) get(id, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.sessions[id][key]
	return v, ok
}

func (c *CookieSessions) set(id, key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sessions == nil {
		c.sessions = make(map[string]map[string]string)
	}
	values, ok := c.sessions[id]
	if !ok {
		limit := c.MaxSessions
		if limit <= 0 {
			limit = 10000
		}
		// Evict an arbitrary session when full.
		for evict := range c.sessions {
			if len(c.sessions) < limit {
				break
			}
			delete(c.sessions, evict)
		}
		values = make(map[string]string)
		c.sessions[id] = values
	}
	values[key] = value
}

type cookieSession struct {
	store *CookieSessions
	id    string
}

func (s *cookieSession) ID() string { return s.id }

func (s *cookieSession) Get(key string) (string, bool) { return s.store.get(s.id, key) }

func (s *cookieSession) Set(key, value string) error {
	s.store.set(s.id, key, value)
	return nil
}

// Package memory provides a bounded in-memory sink with live subscriptions.
package memory

import (
	"strings"
	"sync"
	"time"

	"github.com/getmockd/capturelog/pkg/sink"
	"github.com/getmockd/capturelog/pkg/unitlog"
	"github.com/getmockd/capturelog/pkg/util"
)

// Kind is the factory name of this sink.
const Kind = "memory"

// DefaultCapacity is used when New is given a non-positive capacity.
const DefaultCapacity = 1000

// Stored is a retained record. The response body is copied out of its
// spool file, which does not outlive the flush.
type Stored struct {
	Sequence     int64                `json:"sequence"`
	Received     time.Time            `json:"received"`
	Record       *unitlog.FlushRecord `json:"record"`
	ResponseBody string               `json:"responseBody,omitempty"`
}

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	Web           *bool
	MinLevel      unitlog.Level
	MinStatusCode int
	PathPrefix    string
	Offset        int
	Limit         int
}

// Subscriber receives records as they are stored.
type Subscriber chan *Stored

// Sink keeps the most recent records in FIFO order.
type Sink struct {
	mu       sync.RWMutex
	records  []*Stored
	capacity int
	nextSeq  int64

	subMu       sync.RWMutex
	subscribers map[Subscriber]struct{}
}

// New creates a sink retaining at most capacity records.
func New(capacity int) *Sink {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Sink{
		records:     make([]*Stored, 0, capacity),
		capacity:    capacity,
		subscribers: make(map[Subscriber]struct{}),
	}
}

// OnFlush stores rec and notifies subscribers without blocking.
func (s *Sink) OnFlush(rec *unitlog.FlushRecord) error {
	if rec == nil {
		return nil
	}
	stored := &Stored{Received: time.Now(), Record: rec}
	if rec.Web != nil && rec.Web.Response != nil && rec.Web.Response.Body != nil {
		if text, err := rec.Web.Response.Body.ReadText(util.MaxLogBodySize + 1); err == nil {
			stored.ResponseBody = util.TruncateBody(text, util.MaxLogBodySize)
		}
	}

	s.mu.Lock()
	s.nextSeq++
	stored.Sequence = s.nextSeq
	// FIFO eviction: remove oldest if at capacity
	if len(s.records) >= s.capacity {
		s.records = s.records[1:]
	}
	s.records = append(s.records, stored)
	s.mu.Unlock()

	s.subMu.RLock()
	for sub := range s.subscribers {
		select {
		case sub <- stored:
		default:
			// Drop if subscriber is slow
		}
	}
	s.subMu.RUnlock()
	return nil
}

// Get returns the stored record of a unit.
func (s *Sink) Get(unitID string) (*Stored, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range s.records {
		if st.Record.UnitID == unitID {
			return st, true
		}
	}
	return nil, false
}

// List returns matching records, newest first.
func (s *Sink) List(filter *Filter) []*Stored {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Stored, 0, len(s.records))
	for i := len(s.records) - 1; i >= 0; i-- {
		if filter == nil || filter.matches(s.records[i].Record) {
			result = append(result, s.records[i])
		}
	}

	if filter != nil {
		if filter.Offset > 0 {
			if filter.Offset >= len(result) {
				return []*Stored{}
			}
			result = result[filter.Offset:]
		}
		if filter.Limit > 0 && filter.Limit < len(result) {
			result = result[:filter.Limit]
		}
	}
	return result
}

func (f *Filter) matches(rec *unitlog.FlushRecord) bool {
	if f.Web != nil && *f.Web != rec.IsWebUnit {
		return false
	}
	if rec.Level() < f.MinLevel {
		return false
	}
	if f.MinStatusCode > 0 && rec.StatusCode() < f.MinStatusCode {
		return false
	}
	if f.PathPrefix != "" {
		if rec.Web == nil || !strings.HasPrefix(rec.Web.Request.Path(), f.PathPrefix) {
			return false
		}
	}
	return true
}

// Count returns the number of stored records.
func (s *Sink) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Clear removes all stored records.
func (s *Sink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make([]*Stored, 0, s.capacity)
}

// Subscribe registers a subscriber to receive new records.
// Returns a channel that will receive records and an unsubscribe function.
func (s *Sink) Subscribe() (Subscriber, func()) {
	ch := make(Subscriber, 100)

	s.subMu.Lock()
	s.subscribers[ch] = struct{}{}
	s.subMu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subscribers, ch)
			s.subMu.Unlock()
			close(ch)
		})
	}
	return ch, unsubscribe
}

func init() {
	sink.RegisterFactory(Kind, func(options map[string]any) (sink.Sink, error) {
		capacity, err := sink.IntOption(options, "capacity", DefaultCapacity)
		if err != nil {
			return nil, err
		}
		return New(capacity), nil
	})
}

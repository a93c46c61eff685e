package flush

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/getmockd/capturelog/pkg/requestlog"
	"github.com/getmockd/capturelog/pkg/sink"
	"github.com/getmockd/capturelog/pkg/unitlog"
)

// State is the lifecycle position of a unit.
type State int32

// Unit states.
const (
	StateOpen State = iota
	StateClosing
	StateFlushed

	// stateClosingBusy marks a Close still building the record.
	stateClosingBusy
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateFlushed:
		return "flushed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Outcome is what the host observed when the unit ended.
type Outcome struct {
	// StatusCode is the status written by the handler.
	StatusCode int

	// Header is the response header map.
	Header http.Header

	// ContentLength is the number of body bytes the handler wrote.
	ContentLength int64

	// ContentType overrides Header's Content-Type, e.g. a sniffed type.
	ContentType string

	// Body is the spooled response body, if any.
	Body *requestlog.CapturedBody

	// Panic is a recovered handler panic and Stack its stack trace.
	Panic any
	Stack []byte

	// Err is an error the unit ended with.
	Err error
}

// Session tracks one unit from Begin to Flush.
type Session struct {
	coord  *Coordinator
	unit   *unitlog.Unit
	web    *requestlog.UnitContext
	state  atomic.Int32
	record *unitlog.FlushRecord
}

// Unit returns the unit being tracked.
func (s *Session) Unit() *unitlog.Unit { return s.unit }

// State returns the current state.
func (s *Session) State() State {
	st := State(s.state.Load())
	if st == stateClosingBusy {
		return StateClosing
	}
	return st
}

// Record returns the flushed record, or nil before Flush.
func (s *Session) Record() *unitlog.FlushRecord {
	if s.State() != StateFlushed {
		return nil
	}
	return s.record
}

// End closes and flushes the unit.
func (s *Session) End(out Outcome) error {
	s.Close(out)
	return s.Flush()
}

// Close moves the unit from Open to Closing. It reports false when the
// unit was already closed.
func (s *Session) Close(out Outcome) bool {
	if !s.state.CompareAndSwap(int32(StateOpen), int32(stateClosingBusy)) {
		return false
	}
	defer s.state.Store(int32(StateClosing))

	faulted := out.Panic != nil || out.Err != nil
	logger := s.unit.Logger()
	switch {
	case out.Panic != nil:
		logger.Append(unitlog.Entry{
			Level:     unitlog.LevelError,
			Message:   fmt.Sprintf("unhandled panic: %v", out.Panic),
			Exception: unitlog.PanicDetail(out.Panic, out.Stack),
		})
	case out.Err != nil:
		logger.Append(unitlog.Entry{
			Level:     unitlog.LevelError,
			Message:   out.Err.Error(),
			Exception: unitlog.NewExceptionDetail(out.Err),
		})
	}

	rec := &unitlog.FlushRecord{
		UnitID:    s.unit.ID(),
		Name:      s.unit.Name(),
		IsWebUnit: s.unit.IsWeb(),
	}
	if rec.IsWebUnit {
		s.web.EndTime = s.unit.Now()
		s.web.Response = s.response(out, faulted)
		rec.Web = s.web
	}
	s.record = rec
	return true
}

// response builds the response snapshot and decides body inclusion.
func (s *Session) response(out Outcome, faulted bool) *requestlog.ResponseSnapshot {
	status := out.StatusCode
	if override := s.unit.StatusCode(); override > 0 {
		status = override
	}
	if status == 0 {
		status = http.StatusOK
	}
	if faulted {
		status = http.StatusInternalServerError
	}

	headers := headerPairs(out.Header)
	contentType := out.ContentType
	if contentType == "" {
		contentType = out.Header.Get("Content-Type")
	} else if _, ok := headers.Get("Content-Type"); !ok {
		headers = append(headers, requestlog.KeyValue{Key: "Content-Type", Value: contentType})
		sort.SliceStable(headers, func(i, j int) bool { return headers[i].Key < headers[j].Key })
	}

	snap := &requestlog.ResponseSnapshot{
		StatusCode:    status,
		Headers:       headers,
		ContentLength: out.ContentLength,
	}
	if out.Body != nil && !faulted {
		include, set := s.unit.LogResponseBody()
		if !set {
			include = s.coord.includeBody(contentType)
		}
		if include {
			snap.Body = out.Body
		}
	}
	return snap
}

// Flush moves the unit from Closing to Flushed and notifies every
// registered sink whose policy accepts the record. It returns the
// aggregated sink failures. Calling it again, before Close, or while
// another goroutine is still closing the unit does nothing.
func (s *Session) Flush() error {
	if !s.state.CompareAndSwap(int32(StateClosing), int32(StateFlushed)) {
		return nil
	}

	rec := s.record
	rec.Groups = s.unit.Buffer().Snapshot()
	rec.Properties = s.unit.Properties()

	var errs []error
	for _, reg := range s.coord.registry.Snapshot() {
		if err := s.coord.notify(reg, rec); err != nil {
			errs = append(errs, &sink.Error{Sink: reg.Name, Err: err})
		}
	}
	return sink.Join(errs...)
}

func headerPairs(h http.Header) requestlog.Pairs {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(requestlog.Pairs, 0, len(keys))
	for _, k := range keys {
		out = append(out, requestlog.KeyValue{Key: k, Value: strings.Join(h[k], ", ")})
	}
	return out
}

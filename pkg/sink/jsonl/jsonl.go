// Package jsonl provides a sink writing one JSON object per flushed unit.
package jsonl

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/segmentio/encoding/json"

	"github.com/getmockd/capturelog/pkg/requestlog"
	"github.com/getmockd/capturelog/pkg/sink"
	"github.com/getmockd/capturelog/pkg/unitlog"
	"github.com/getmockd/capturelog/pkg/util"
)

// Kind is the factory name of this sink.
const Kind = "jsonl"

// Line is the JSON shape of one flushed unit.
type Line struct {
	Sequence     int64                        `json:"sequence"`
	Timestamp    time.Time                    `json:"timestamp"`
	UnitID       string                       `json:"unitId"`
	Name         string                       `json:"name,omitempty"`
	Web          bool                         `json:"web"`
	Level        unitlog.Level                `json:"level"`
	StatusCode   int                          `json:"statusCode,omitempty"`
	DurationMs   int64                        `json:"durationMs,omitempty"`
	SessionID    string                       `json:"sessionId,omitempty"`
	MachineName  string                       `json:"machineName,omitempty"`
	Request      *requestlog.RequestSnapshot  `json:"request,omitempty"`
	Response     *requestlog.ResponseSnapshot `json:"response,omitempty"`
	ResponseBody string                       `json:"responseBody,omitempty"`
	Entries      []unitlog.Entry              `json:"entries"`
	Properties   []unitlog.Property           `json:"properties,omitempty"`
}

// Sink encodes records as JSON lines. Writes are serialized.
type Sink struct {
	mu       sync.Mutex
	w        io.Writer
	closer   io.Closer
	flusher  interface{ Flush() error }
	sequence int64
	compress Compression
	bodyMax  int64
	now      func() time.Time
}

// Option configures a Sink.
type Option func(*Sink)

// WithBodyLimit caps the inlined response body. Zero disables inlining.
func WithBodyLimit(n int64) Option {
	return func(s *Sink) { s.bodyMax = n }
}

// WithCompression sets the stream encoding of files opened by Open.
func WithCompression(c Compression) Option {
	return func(s *Sink) { s.compress = c }
}

// WithClock sets the clock stamping each line.
func WithClock(now func() time.Time) Option {
	return func(s *Sink) { s.now = now }
}

// New writes lines to w. The caller keeps ownership of w.
func New(w io.Writer, opts ...Option) *Sink {
	s := &Sink{w: w, bodyMax: util.MaxLogBodySize, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open appends lines to the file at path, creating it if needed. Without
// WithCompression the encoding follows the extension (.gz, .zst).
func Open(path string, opts ...Option) (*Sink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("jsonl sink: open %s: %w", path, err)
	}
	s := New(f, opts...)
	s.closer = f
	if s.compress == "" {
		s.compress = CompressionFor(path)
	}
	if s.compress == CompressionNone {
		return s, nil
	}

	enc, err := newEncoder(f, s.compress)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("jsonl sink: %w", err)
	}
	s.w = enc
	s.flusher = enc
	s.closer = closers{enc, f}
	return s, nil
}

// NewLine converts rec into its wire shape. Bodies up to bodyMax bytes are
// inlined; the spool is only readable during OnFlush. Sequence and
// Timestamp are left for the caller.
func NewLine(rec *unitlog.FlushRecord, bodyMax int64) Line {
	line := Line{
		UnitID:     rec.UnitID,
		Name:       rec.Name,
		Web:        rec.IsWebUnit,
		Level:      rec.Level(),
		StatusCode: rec.StatusCode(),
		Entries:    rec.Entries(),
		Properties: rec.Properties,
	}
	if uc := rec.Web; uc != nil {
		line.DurationMs = uc.Duration().Milliseconds()
		line.SessionID = uc.SessionID
		line.MachineName = uc.MachineName
		line.Request = uc.Request
		line.Response = uc.Response
		if uc.Response != nil && uc.Response.Body != nil && bodyMax > 0 {
			if text, err := uc.Response.Body.ReadText(bodyMax + 1); err == nil {
				line.ResponseBody = util.TruncateBody(text, int(bodyMax))
			}
		}
	}
	return line
}

// OnFlush writes rec as one line.
func (s *Sink) OnFlush(rec *unitlog.FlushRecord) error {
	line := NewLine(rec, s.bodyMax)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return sink.ErrClosed
	}
	s.sequence++
	line.Sequence = s.sequence
	line.Timestamp = s.now().UTC()

	data, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("jsonl sink: encode: %w", err)
	}
	data = append(data, '\n')
	if _, err := s.w.Write(data); err != nil {
		return fmt.Errorf("jsonl sink: write: %w", err)
	}
	if s.flusher != nil {
		if err := s.flusher.Flush(); err != nil {
			return fmt.Errorf("jsonl sink: flush: %w", err)
		}
	}
	return nil
}

// Close closes the file opened by Open. Later flushes return sink.ErrClosed.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w = nil
	s.flusher = nil
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}

func init() {
	sink.RegisterFactory(Kind, func(options map[string]any) (sink.Sink, error) {
		path, err := sink.StringOption(options, "path", "-")
		if err != nil {
			return nil, err
		}
		limit, err := sink.IntOption(options, "bodyLimit", util.MaxLogBodySize)
		if err != nil {
			return nil, err
		}
		name, err := sink.StringOption(options, "compression", "")
		if err != nil {
			return nil, err
		}
		if path == "-" || path == "" {
			if name != "" && name != string(CompressionNone) {
				return nil, fmt.Errorf("jsonl sink: compression requires a file path")
			}
			return New(os.Stdout, WithBodyLimit(int64(limit))), nil
		}
		safe, ok := util.SafeFilePathAllowAbsolute(path)
		if !ok {
			return nil, fmt.Errorf("jsonl sink: invalid path %q", path)
		}
		opts := []Option{WithBodyLimit(int64(limit))}
		if name != "" {
			c, err := ParseCompression(name)
			if err != nil {
				return nil, err
			}
			opts = append(opts, WithCompression(c))
		}
		return Open(safe, opts...)
	})
}

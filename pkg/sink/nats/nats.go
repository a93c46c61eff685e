// Package nats publishes flushed units to a NATS subject.
//
// Each unit becomes one message whose body is the jsonl line shape encoded
// as JSON or CBOR. Messages carry a ULID in the Nats-Msg-Id header so
// JetStream can de-duplicate redeliveries.
package nats

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fxamacker/cbor/v2"
	natsgo "github.com/nats-io/nats.go"
	"github.com/oklog/ulid/v2"
	"github.com/segmentio/encoding/json"

	"github.com/getmockd/capturelog/pkg/sink"
	"github.com/getmockd/capturelog/pkg/sink/jsonl"
	"github.com/getmockd/capturelog/pkg/unitlog"
	"github.com/getmockd/capturelog/pkg/util"
)

// Kind is the factory name of this sink.
const Kind = "nats"

// DefaultSubject receives units when none is configured.
const DefaultSubject = "capturelog.units"

// Message headers set on every publish.
const (
	HeaderLevel  = "Capturelog-Level"
	HeaderStatus = "Capturelog-Status"
	HeaderUnit   = "Capturelog-Unit"
)

// Encoding selects the message body format.
type Encoding string

const (
	EncodingJSON Encoding = "json"
	EncodingCBOR Encoding = "cbor"
)

// ParseEncoding parses an encoding name. An empty name means JSON.
func ParseEncoding(name string) (Encoding, error) {
	switch Encoding(name) {
	case "", EncodingJSON:
		return EncodingJSON, nil
	case EncodingCBOR:
		return EncodingCBOR, nil
	}
	return "", fmt.Errorf("nats sink: unknown encoding %q", name)
}

// Publisher is the part of *natsgo.Conn the sink needs.
type Publisher interface {
	PublishMsg(m *natsgo.Msg) error
}

// Sink publishes one message per flushed unit.
type Sink struct {
	pub      Publisher
	conn     *natsgo.Conn
	subject  string
	encoding Encoding
	bodyMax  int64
	now      func() time.Time
	sequence atomic.Int64

	closeOnce sync.Once
	closed    atomic.Bool
}

// Option configures a Sink.
type Option func(*Sink)

// WithEncoding sets the body format. Default: JSON.
func WithEncoding(e Encoding) Option {
	return func(s *Sink) { s.encoding = e }
}

// WithBodyLimit caps the inlined response body. Zero disables inlining.
func WithBodyLimit(n int64) Option {
	return func(s *Sink) { s.bodyMax = n }
}

// WithClock sets the clock stamping each message.
func WithClock(now func() time.Time) Option {
	return func(s *Sink) { s.now = now }
}

// New publishes through pub. The caller keeps ownership of pub.
func New(pub Publisher, subject string, opts ...Option) *Sink {
	if subject == "" {
		subject = DefaultSubject
	}
	s := &Sink{pub: pub, subject: subject, encoding: EncodingJSON, bodyMax: util.MaxLogBodySize, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect dials url and publishes on the new connection, which Close
// drains.
func Connect(url, subject string, opts ...Option) (*Sink, error) {
	conn, err := natsgo.Connect(url, natsgo.Name("capturelog"))
	if err != nil {
		return nil, fmt.Errorf("nats sink: connect %s: %w", url, err)
	}
	s := New(conn, subject, opts...)
	s.conn = conn
	return s, nil
}

// Subject returns the publish subject.
func (s *Sink) Subject() string { return s.subject }

// OnFlush encodes and publishes rec.
func (s *Sink) OnFlush(rec *unitlog.FlushRecord) error {
	if s.closed.Load() {
		return sink.ErrClosed
	}

	line := jsonl.NewLine(rec, s.bodyMax)
	line.Sequence = s.sequence.Add(1)
	line.Timestamp = s.now().UTC()

	data, contentType, err := s.encode(line)
	if err != nil {
		return fmt.Errorf("nats sink: encode: %w", err)
	}

	msg := natsgo.NewMsg(s.subject)
	msg.Data = data
	msg.Header.Set(natsgo.MsgIdHdr, ulid.Make().String())
	msg.Header.Set("Content-Type", contentType)
	msg.Header.Set(HeaderUnit, rec.UnitID)
	msg.Header.Set(HeaderLevel, line.Level.String())
	if rec.IsWebUnit {
		msg.Header.Set(HeaderStatus, strconv.Itoa(line.StatusCode))
	}

	if err := s.pub.PublishMsg(msg); err != nil {
		return fmt.Errorf("nats sink: publish %s: %w", s.subject, err)
	}
	return nil
}

func (s *Sink) encode(line jsonl.Line) ([]byte, string, error) {
	if s.encoding == EncodingCBOR {
		data, err := cbor.Marshal(line)
		return data, "application/cbor", err
	}
	data, err := json.Marshal(line)
	return data, "application/json", err
}

// Close drains a connection opened by Connect. Later flushes return
// sink.ErrClosed.
func (s *Sink) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		if s.conn != nil {
			err = s.conn.Drain()
		}
	})
	return err
}

func init() {
	sink.RegisterFactory(Kind, func(options map[string]any) (sink.Sink, error) {
		url, err := sink.StringOption(options, "url", natsgo.DefaultURL)
		if err != nil {
			return nil, err
		}
		subject, err := sink.StringOption(options, "subject", DefaultSubject)
		if err != nil {
			return nil, err
		}
		name, err := sink.StringOption(options, "encoding", "")
		if err != nil {
			return nil, err
		}
		enc, err := ParseEncoding(name)
		if err != nil {
			return nil, err
		}
		limit, err := sink.IntOption(options, "bodyLimit", util.MaxLogBodySize)
		if err != nil {
			return nil, err
		}
		return Connect(url, subject, WithEncoding(enc), WithBodyLimit(int64(limit)))
	})
}

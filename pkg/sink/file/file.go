// Package file provides the reference text sink: one file per UTC day,
// a header line per web unit followed by its entries in timestamp order.
package file

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/getmockd/capturelog/pkg/format"
	"github.com/getmockd/capturelog/pkg/sink"
	"github.com/getmockd/capturelog/pkg/unitlog"
	"github.com/getmockd/capturelog/pkg/util"
)

// Kind is the factory name of this sink.
const Kind = "file"

// DateLayout names daily files, e.g. 2026-10-14.log.
const DateLayout = "2006-01-02"

// destination locks are shared by every Sink writing to the same directory.
var (
	locksMu sync.Mutex
	locks   = make(map[string]*sync.Mutex)
)

func lockFor(dir string) *sync.Mutex {
	locksMu.Lock()
	defer locksMu.Unlock()
	mu, ok := locks[dir]
	if !ok {
		mu = &sync.Mutex{}
		locks[dir] = mu
	}
	return mu
}

// Option configures a Sink.
type Option func(*Sink)

// WithFormatter sets the line formatter. Default: format.Text().
func WithFormatter(f format.Formatter) Option {
	return func(s *Sink) {
		if f != nil {
			s.formatter = f
		}
	}
}

// WithClock sets the clock used to pick the daily file.
func WithClock(now func() time.Time) Option {
	return func(s *Sink) {
		if now != nil {
			s.now = now
		}
	}
}

// Sink appends flush records to dir/yyyy-MM-dd.log.
//
// Factory options: "dir" (required) and "timeFormat", a time.Format layout
// for entry timestamps.
type Sink struct {
	dir       string
	formatter format.Formatter
	now       func() time.Time
	mu        *sync.Mutex
}

// New creates a file sink writing under dir. The directory is created on
// first use.
func New(dir string, opts ...Option) (*Sink, error) {
	if dir == "" {
		return nil, errors.New("file sink: directory is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("file sink: %w", err)
	}
	s := &Sink{
		dir:       abs,
		formatter: format.Text(),
		now:       time.Now,
		mu:        lockFor(abs),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Formatter returns the line formatter.
func (s *Sink) Formatter() format.Formatter { return s.formatter }

// Dir returns the absolute destination directory.
func (s *Sink) Dir() string { return s.dir }

// Path returns the file a record flushed at t is written to.
func (s *Sink) Path(t time.Time) string {
	return filepath.Join(s.dir, t.UTC().Format(DateLayout)+".log")
}

// OnFlush writes rec as one block of lines. Concurrent calls for the same
// directory are serialized so blocks never interleave.
func (s *Sink) OnFlush(rec *unitlog.FlushRecord) error {
	lines := s.lines(rec)
	if len(lines) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("file sink: create directory: %w", err)
	}
	path := s.Path(s.now())
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("file sink: open %s: %w", path, err)
	}

	size := 0
	for _, line := range lines {
		size += len(line) + 1
	}
	// Sized to the block so it reaches the file in one write. The lock is
	// what keeps blocks from interleaving within this process.
	w := bufio.NewWriterSize(f, size)
	for _, line := range lines {
		_, _ = w.WriteString(line)
		_ = w.WriteByte('\n')
	}
	writeErr := w.Flush()
	closeErr := f.Close()
	if writeErr != nil {
		return fmt.Errorf("file sink: write %s: %w", path, writeErr)
	}
	return closeErr
}

func (s *Sink) lines(rec *unitlog.FlushRecord) []string {
	entries := rec.Entries()
	lines := make([]string, 0, len(entries)+1)
	if rec.IsWebUnit && rec.Web != nil {
		lines = append(lines, s.formatter.FormatUnit(rec.Web))
	}
	for _, e := range entries {
		lines = append(lines, s.formatter.FormatEntry(e))
	}
	return lines
}

func init() {
	sink.RegisterFactory(Kind, func(options map[string]any) (sink.Sink, error) {
		dir, err := sink.StringOption(options, "dir", "")
		if err != nil {
			return nil, err
		}
		safe, ok := util.SafeFilePathAllowAbsolute(dir)
		if !ok {
			return nil, fmt.Errorf("file sink: invalid directory %q", dir)
		}
		layout, err := sink.StringOption(options, "timeFormat", "")
		if err != nil {
			return nil, err
		}
		return New(safe, WithFormatter(&format.TextFormatter{TimeFormat: layout}))
	})
}

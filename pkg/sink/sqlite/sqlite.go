// Package sqlite stores flushed units in a SQLite database.
//
// Every unit is one row of the units table holding the indexed summary
// fields and the full record as JSON; its entries are also written to the
// entries table so they can be queried by level or category.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/segmentio/encoding/json"

	"github.com/getmockd/capturelog/pkg/sink"
	"github.com/getmockd/capturelog/pkg/sink/jsonl"
	"github.com/getmockd/capturelog/pkg/unitlog"
	"github.com/getmockd/capturelog/pkg/util"
)

// Kind is the factory name of this sink.
const Kind = "sqlite"

const schema = `
CREATE TABLE IF NOT EXISTS units (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	unit_id     TEXT NOT NULL UNIQUE,
	flushed_at  TEXT NOT NULL,
	name        TEXT,
	web         INTEGER NOT NULL,
	level       INTEGER NOT NULL,
	status      INTEGER,
	method      TEXT,
	url         TEXT,
	duration_ms INTEGER,
	record      TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS entries (
	unit_id  TEXT NOT NULL REFERENCES units(unit_id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	ts       TEXT NOT NULL,
	level    INTEGER NOT NULL,
	category TEXT,
	message  TEXT NOT NULL,
	PRIMARY KEY (unit_id, position)
);
CREATE INDEX IF NOT EXISTS units_status ON units(status);
CREATE INDEX IF NOT EXISTS entries_level ON entries(level);
`

// Unit is the summary row of a stored unit.
type Unit struct {
	Seq        int64
	UnitID     string
	FlushedAt  time.Time
	Name       string
	Web        bool
	Level      unitlog.Level
	StatusCode int
	Method     string
	URL        string
	DurationMs int64
}

// Sink writes each record in one transaction.
type Sink struct {
	mu      sync.RWMutex
	db      *sql.DB
	bodyMax int64
	now     func() time.Time
}

// Option configures a Sink.
type Option func(*Sink)

// WithBodyLimit caps the response body stored in the record JSON.
func WithBodyLimit(n int64) Option {
	return func(s *Sink) { s.bodyMax = n }
}

// WithClock sets the clock stamping flushed_at.
func WithClock(now func() time.Time) Option {
	return func(s *Sink) { s.now = now }
}

// Open opens (creating if needed) the database at path and applies the
// schema.
func Open(path string, opts ...Option) (*Sink, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("sqlite sink: open %s: %w", path, err)
	}
	// A single writer avoids SQLITE_BUSY between concurrent flushes.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite sink: migrate: %w", err)
	}

	s := &Sink{db: db, bodyMax: util.MaxLogBodySize, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// OnFlush inserts rec and its entries.
func (s *Sink) OnFlush(rec *unitlog.FlushRecord) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return sink.ErrClosed
	}
	line := jsonl.NewLine(rec, s.bodyMax)
	line.Timestamp = s.now().UTC()
	record, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("sqlite sink: encode: %w", err)
	}

	var method, url sql.NullString
	var status sql.NullInt64
	if line.Web {
		status = sql.NullInt64{Int64: int64(line.StatusCode), Valid: true}
		if line.Request != nil {
			method = sql.NullString{String: line.Request.Method, Valid: true}
			url = sql.NullString{String: line.Request.RawURL, Valid: true}
		}
	}

	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite sink: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `INSERT INTO units
		(unit_id, flushed_at, name, web, level, status, method, url, duration_ms, record)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		line.UnitID, line.Timestamp.Format(time.RFC3339Nano), line.Name, line.Web, int(line.Level),
		status, method, url, line.DurationMs, string(record))
	if err != nil {
		return fmt.Errorf("sqlite sink: insert unit %s: %w", line.UnitID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO entries
		(unit_id, position, ts, level, category, message) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite sink: prepare: %w", err)
	}
	defer func() { _ = stmt.Close() }()
	for i, e := range line.Entries {
		if _, err := stmt.ExecContext(ctx, line.UnitID, i, e.Timestamp.UTC().Format(time.RFC3339Nano), int(e.Level), e.Category, e.Message); err != nil {
			return fmt.Errorf("sqlite sink: insert entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite sink: commit: %w", err)
	}
	return nil
}

// Count returns the number of stored units.
func (s *Sink) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM units`).Scan(&n)
	return n, err
}

// Recent returns up to limit units, newest first, whose status is at
// least minStatus (0 includes background units).
func (s *Sink) Recent(ctx context.Context, minStatus, limit int) ([]Unit, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT seq, unit_id, flushed_at, name, web, level,
		status, method, url, duration_ms
		FROM units WHERE (? = 0 OR status >= ?) ORDER BY seq DESC LIMIT ?`, minStatus, minStatus, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Unit
	for rows.Next() {
		var (
			u              Unit
			flushed        string
			name           sql.NullString
			level          int
			status         sql.NullInt64
			method, rawURL sql.NullString
			duration       sql.NullInt64
		)
		if err := rows.Scan(&u.Seq, &u.UnitID, &flushed, &name, &u.Web, &level, &status, &method, &rawURL, &duration); err != nil {
			return nil, err
		}
		u.FlushedAt, _ = time.Parse(time.RFC3339Nano, flushed)
		u.Name = name.String
		u.Level = unitlog.Level(level)
		u.StatusCode = int(status.Int64)
		u.Method = method.String
		u.URL = rawURL.String
		u.DurationMs = duration.Int64
		out = append(out, u)
	}
	return out, rows.Err()
}

// ErrNotFound is returned by Record for unknown units.
var ErrNotFound = errors.New("sqlite sink: unit not found")

// Record returns the stored line of a unit.
func (s *Sink) Record(ctx context.Context, unitID string) (*jsonl.Line, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM units WHERE unit_id = ?`, unitID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var line jsonl.Line
	if err := json.Unmarshal([]byte(raw), &line); err != nil {
		return nil, fmt.Errorf("sqlite sink: decode %s: %w", unitID, err)
	}
	return &line, nil
}

// CountEntries returns how many entries at or above level are stored.
func (s *Sink) CountEntries(ctx context.Context, level unitlog.Level) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries WHERE level >= ?`, int(level)).Scan(&n)
	return n, err
}

// Close closes the database. Later flushes return sink.ErrClosed.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func init() {
	sink.RegisterFactory(Kind, func(options map[string]any) (sink.Sink, error) {
		path, err := sink.StringOption(options, "path", "")
		if err != nil {
			return nil, err
		}
		if path == "" {
			return nil, errors.New("sqlite sink: option \"path\" is required")
		}
		safe, ok := util.SafeFilePathAllowAbsolute(path)
		if !ok {
			return nil, fmt.Errorf("sqlite sink: invalid path %q", path)
		}
		limit, err := sink.IntOption(options, "bodyLimit", util.MaxLogBodySize)
		if err != nil {
			return nil, err
		}
		return Open(safe, WithBodyLimit(int64(limit)))
	})
}

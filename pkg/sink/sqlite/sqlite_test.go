package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/capturelog/pkg/requestlog"
	"github.com/getmockd/capturelog/pkg/sink"
	"github.com/getmockd/capturelog/pkg/unitlog"
)

var now = time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)

func openTemp(t *testing.T) *Sink {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "units.db"), WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func webRecord(id string, status int) *unitlog.FlushRecord {
	return &unitlog.FlushRecord{
		UnitID:    id,
		IsWebUnit: true,
		Web: &requestlog.UnitContext{
			ID:        id,
			StartTime: now,
			EndTime:   now.Add(12 * time.Millisecond),
			Request:   &requestlog.RequestSnapshot{Method: "PUT", RawURL: "http://h/items/1"},
			Response:  &requestlog.ResponseSnapshot{StatusCode: status},
		},
		Groups: []unitlog.EntryGroup{
			{Entries: []unitlog.Entry{{Timestamp: now, Level: unitlog.LevelInformation, Message: "saving"}}},
			{Category: "db", Entries: []unitlog.Entry{{Timestamp: now.Add(time.Millisecond), Level: unitlog.LevelError, Message: "constraint", Category: "db"}}},
		},
	}
}

func TestSink_StoresUnitsAndEntries(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTemp(t)

	require.NoError(t, s.OnFlush(webRecord("w-1", 500)))
	require.NoError(t, s.OnFlush(&unitlog.FlushRecord{UnitID: "bg-1", Name: "cleanup"}))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	units, err := s.Recent(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, "bg-1", units[0].UnitID, "newest first")
	assert.Equal(t, "cleanup", units[0].Name)
	assert.False(t, units[0].Web)
	assert.Zero(t, units[0].StatusCode)

	web := units[1]
	assert.True(t, web.Web)
	assert.Equal(t, 500, web.StatusCode)
	assert.Equal(t, "PUT", web.Method)
	assert.Equal(t, "http://h/items/1", web.URL)
	assert.Equal(t, int64(12), web.DurationMs)
	assert.Equal(t, unitlog.LevelError, web.Level)
	assert.True(t, web.FlushedAt.Equal(now))

	errorsOnly, err := s.Recent(ctx, 500, 10)
	require.NoError(t, err)
	require.Len(t, errorsOnly, 1)
	assert.Equal(t, "w-1", errorsOnly[0].UnitID)

	entries, err := s.CountEntries(ctx, unitlog.LevelError)
	require.NoError(t, err)
	assert.Equal(t, 1, entries)

	line, err := s.Record(ctx, "w-1")
	require.NoError(t, err)
	require.Len(t, line.Entries, 2)
	assert.Equal(t, "constraint", line.Entries[1].Message)

	_, err = s.Record(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSink_DuplicateUnitRejected(t *testing.T) {
	t.Parallel()
	s := openTemp(t)

	require.NoError(t, s.OnFlush(webRecord("dup", 200)))
	assert.Error(t, s.OnFlush(webRecord("dup", 200)))

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n, "failed transaction leaves no partial rows")
}

func TestSink_Concurrent(t *testing.T) {
	t.Parallel()
	s := openTemp(t)

	var wg sync.WaitGroup
	for i := range 25 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.OnFlush(webRecord(fmt.Sprintf("c-%d", i), 200)))
		}()
	}
	wg.Wait()

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 25, n)
}

func TestSink_ClosedAndFactory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "f.db")
	built, err := sink.New(Kind, map[string]any{"path": path})
	require.NoError(t, err)
	s := built.(*Sink)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.OnFlush(webRecord("late", 200)), sink.ErrClosed)

	_, err = sink.New(Kind, nil)
	assert.ErrorContains(t, err, "path")
}

package memory

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/capturelog/pkg/requestlog"
	"github.com/getmockd/capturelog/pkg/sink"
	"github.com/getmockd/capturelog/pkg/unitlog"
)

func web(id, path string, status int, level unitlog.Level) *unitlog.FlushRecord {
	return &unitlog.FlushRecord{
		UnitID:    id,
		IsWebUnit: true,
		Web: &requestlog.UnitContext{
			Request:  &requestlog.RequestSnapshot{URL: &url.URL{Path: path}},
			Response: &requestlog.ResponseSnapshot{StatusCode: status},
		},
		Groups: []unitlog.EntryGroup{{Entries: []unitlog.Entry{{Level: level}}}},
	}
}

func TestSink_FIFOEviction(t *testing.T) {
	t.Parallel()

	s := New(3)
	for i := range 5 {
		require.NoError(t, s.OnFlush(web(fmt.Sprintf("u%d", i), "/", 200, unitlog.LevelInformation)))
	}
	assert.Equal(t, 3, s.Count())

	list := s.List(nil)
	require.Len(t, list, 3)
	assert.Equal(t, "u4", list[0].Record.UnitID, "newest first")
	assert.Equal(t, "u2", list[2].Record.UnitID)
	assert.Equal(t, int64(5), list[0].Sequence)

	_, ok := s.Get("u0")
	assert.False(t, ok)
	got, ok := s.Get("u3")
	require.True(t, ok)
	assert.Equal(t, int64(4), got.Sequence)

	s.Clear()
	assert.Zero(t, s.Count())
}

func TestSink_ListFilter(t *testing.T) {
	t.Parallel()

	s := New(0)
	_ = s.OnFlush(web("a", "/api/users", 200, unitlog.LevelInformation))
	_ = s.OnFlush(web("b", "/api/orders", 500, unitlog.LevelError))
	_ = s.OnFlush(web("c", "/static/app.js", 404, unitlog.LevelWarning))
	_ = s.OnFlush(&unitlog.FlushRecord{UnitID: "bg", Groups: []unitlog.EntryGroup{{Entries: []unitlog.Entry{{Level: unitlog.LevelError}}}}})

	ids := func(list []*Stored) []string {
		var out []string
		for _, st := range list {
			out = append(out, st.Record.UnitID)
		}
		return out
	}
	yes, no := true, false

	assert.Equal(t, []string{"b", "a"}, ids(s.List(&Filter{PathPrefix: "/api"})))
	assert.Equal(t, []string{"c", "b"}, ids(s.List(&Filter{MinStatusCode: 400})))
	assert.Equal(t, []string{"bg", "b"}, ids(s.List(&Filter{MinLevel: unitlog.LevelError})))
	assert.Equal(t, []string{"bg"}, ids(s.List(&Filter{Web: &no})))
	assert.Equal(t, []string{"b"}, ids(s.List(&Filter{Web: &yes, Offset: 1, Limit: 1})))
	assert.Empty(t, s.List(&Filter{Offset: 10}))
}

func TestSink_CopiesResponseBody(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "body")
	require.NoError(t, os.WriteFile(path, []byte(`{"ok":true}`), 0o600))

	rec := web("u", "/", 200, unitlog.LevelInformation)
	rec.Web.Response.Body = &requestlog.CapturedBody{Path: path}

	s := New(10)
	require.NoError(t, s.OnFlush(rec))
	require.NoError(t, os.Remove(path))

	got, ok := s.Get("u")
	require.True(t, ok)
	assert.Equal(t, `{"ok":true}`, got.ResponseBody)

	_, err := got.Record.Web.Response.Body.Open()
	assert.ErrorIs(t, err, requestlog.ErrBodyReleased)
}

func TestSink_Subscribe(t *testing.T) {
	t.Parallel()

	s := New(10)
	ch, unsubscribe := s.Subscribe()

	require.NoError(t, s.OnFlush(web("live", "/", 200, unitlog.LevelInformation)))

	select {
	case st := <-ch:
		assert.Equal(t, "live", st.Record.UnitID)
	case <-time.After(time.Second):
		t.Fatal("subscriber not notified")
	}

	unsubscribe()
	unsubscribe()
	_, open := <-ch
	assert.False(t, open)

	require.NoError(t, s.OnFlush(web("after", "/", 200, unitlog.LevelInformation)))
}

func TestSink_SlowSubscriberDoesNotBlock(t *testing.T) {
	t.Parallel()

	s := New(500)
	_, unsubscribe := s.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := range 300 {
			_ = s.OnFlush(web(fmt.Sprint(i), "/", 200, unitlog.LevelInformation))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("OnFlush blocked on a full subscriber")
	}
	assert.Equal(t, 300, s.Count())
}

func TestFactory(t *testing.T) {
	t.Parallel()

	s, err := sink.New(Kind, map[string]any{"capacity": 2})
	require.NoError(t, err)
	ms, ok := s.(*Sink)
	require.True(t, ok)
	assert.Equal(t, 2, ms.capacity)
}

package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/capturelog/pkg/capture"
	"github.com/getmockd/capturelog/pkg/flush"
	"github.com/getmockd/capturelog/pkg/sink"
	"github.com/getmockd/capturelog/pkg/sink/memory"
	"github.com/getmockd/capturelog/pkg/unitlog"
)

// bodyProbe records, during OnFlush, whether a body was offered and what
// it contained.
type bodyProbe struct {
	mu    sync.Mutex
	paths []string
	texts []string
}

func (p *bodyProbe) OnFlush(rec *unitlog.FlushRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if rec.Web == nil || rec.Web.Response == nil || rec.Web.Response.Body == nil {
		p.paths = append(p.paths, "")
		p.texts = append(p.texts, "")
		return nil
	}
	text, err := rec.Web.Response.Body.ReadText(0)
	if err != nil {
		return err
	}
	p.paths = append(p.paths, rec.Web.Response.Body.Path)
	p.texts = append(p.texts, text)
	return nil
}

type fixture struct {
	store    *memory.Sink
	probe    *bodyProbe
	spoolDir string
	handler  func(http.Handler) http.Handler
}

func newFixture(t *testing.T, mutate func(*capture.Options)) *fixture {
	t.Helper()

	f := &fixture{store: memory.New(100), probe: &bodyProbe{}, spoolDir: t.TempDir()}
	reg := sink.NewRegistry()
	_, err := reg.Register("memory", f.store, sink.Policy{})
	require.NoError(t, err)
	_, err = reg.Register("probe", f.probe, sink.Policy{})
	require.NoError(t, err)

	opts := capture.DefaultOptions()
	if mutate != nil {
		mutate(&opts)
	}
	builder, err := capture.NewBuilder(opts)
	require.NoError(t, err)

	f.handler = New(flush.New(reg), builder, WithSpoolDir(f.spoolDir))
	return f
}

func (f *fixture) only(t *testing.T) *unitlog.FlushRecord {
	t.Helper()
	list := f.store.List(nil)
	require.Len(t, list, 1)
	return list[0].Record
}

func (f *fixture) assertSpoolEmpty(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.spoolDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "spool files must not outlive the request")
}

func TestMiddleware_JSONResponse(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	h := f.handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := unitlog.From(r.Context())
		log.Info("start")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"hello":"world"}`)
		log.Info("done")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://example.com/hello", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"hello":"world"}`, rec.Body.String())

	got := f.only(t)
	assert.True(t, got.IsWebUnit)
	assert.Equal(t, http.StatusOK, got.StatusCode())
	assert.Equal(t, "GET", got.Web.Request.Method)
	assert.Equal(t, "application/json", got.Web.Response.ContentType())
	assert.Equal(t, int64(17), got.Web.Response.ContentLength)

	entries := got.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "start", entries[0].Message)
	assert.Equal(t, "done", entries[1].Message)

	require.Len(t, f.probe.texts, 1)
	assert.Equal(t, `{"hello":"world"}`, f.probe.texts[0], "JSON body offered during flush")
	_, err := os.Stat(f.probe.paths[0])
	assert.True(t, os.IsNotExist(err), "spool deleted after flush")
	f.assertSpoolEmpty(t)
}

func TestMiddleware_NonJSONBodyNotOffered(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	h := f.handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, "<p>hi</p>")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/page", nil))

	assert.Equal(t, "<p>hi</p>", rec.Body.String())
	assert.Equal(t, []string{""}, f.probe.paths)
	assert.Nil(t, f.only(t).Web.Response.Body)
	f.assertSpoolEmpty(t)
}

func TestMiddleware_UnitOverridesBodyDecision(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	h := f.handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		unit, ok := unitlog.FromContext(r.Context())
		require.True(t, ok)
		unit.SetLogResponseBody(true)
		_, _ = io.WriteString(w, "plain text")
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"plain text"}, f.probe.texts)
	f.assertSpoolEmpty(t)
}

func TestMiddleware_PanicRecordedAndReraised(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	h := f.handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		unitlog.From(r.Context()).Info("about to fail")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"partial":`)
		panic("handler exploded")
	}))

	rec := httptest.NewRecorder()
	assert.PanicsWithValue(t, "handler exploded", func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fail", nil))
	})

	assert.Empty(t, rec.Body.String(), "buffered bytes are not replayed after a panic")

	got := f.only(t)
	assert.Equal(t, http.StatusInternalServerError, got.StatusCode())
	assert.Equal(t, unitlog.LevelError, got.Level())

	entries := got.Entries()
	require.Len(t, entries, 2)
	last := entries[1]
	assert.Equal(t, unitlog.LevelError, last.Level)
	require.NotNil(t, last.Exception)
	assert.Equal(t, "handler exploded", last.Exception.Message)
	assert.Contains(t, last.Exception.Stack, "goroutine")

	assert.Equal(t, []string{""}, f.probe.paths)
	f.assertSpoolEmpty(t)
}

func TestMiddleware_NoContentWritesNoBody(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	h := f.handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
		_, _ = io.WriteString(w, "ignored")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/item/1", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, http.StatusNoContent, f.only(t).StatusCode())
	f.assertSpoolEmpty(t)
}

func TestMiddleware_RequestBodyStillReadable(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	var seen string
	h := f.handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		seen = string(data)
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"msg":"hi","password":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, `{"msg":"hi","password":"x"}`, seen)
	captured := f.only(t).Web.Request.InputStream
	assert.Contains(t, captured, capture.ObfuscatedValue)
	assert.NotContains(t, captured, `"x"`)
}

func TestMiddleware_IgnoredPathsBypassCapture(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(o *capture.Options) { o.IgnorePaths = []string{"/healthz"} })
	called := false
	h := f.handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		_, ok := unitlog.FromContext(r.Context())
		assert.False(t, ok)
		w.WriteHeader(http.StatusOK)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.True(t, called)
	assert.Zero(t, f.store.Count())
}

func TestMiddleware_ConcurrentRequests(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	h := f.handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		unitlog.From(r.Context()).Info(r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{}`)
	}))

	const n = 50
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/c", nil))
		}()
	}
	wg.Wait()

	assert.Equal(t, n, f.store.Count())
	for _, st := range f.store.List(nil) {
		assert.Len(t, st.Record.Entries(), 1)
	}
	f.assertSpoolEmpty(t)
}

package intercept

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_BuffersUntilFinish(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	w := New(rec, WithDir(t.TempDir()))
	defer func() { _ = w.Release() }()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, err := w.Write([]byte(`{"id":1}`))
	require.NoError(t, err)

	assert.False(t, rec.Flushed)
	assert.Empty(t, rec.Body.String(), "nothing reaches the client before Finish")

	require.NoError(t, w.Finish())
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, `{"id":1}`, rec.Body.String())
	assert.Equal(t, http.StatusCreated, w.Status())
	assert.Equal(t, int64(8), w.Size())
}

func TestWriter_SpoolsBodyAndReleaseDeletesIt(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w := New(httptest.NewRecorder(), WithDir(dir))
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"ok":true}`))
	require.NoError(t, w.Finish())

	body := w.Body()
	require.NotNil(t, body)
	assert.Equal(t, "Response.json", body.FileName)
	assert.Equal(t, int64(11), body.Size)
	assert.Equal(t, "application/json", body.ContentType)

	text, err := body.ReadText(0)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, text)

	require.NoError(t, w.Release())
	_, err = os.Stat(body.Path)
	assert.True(t, os.IsNotExist(err))
	assert.Nil(t, w.Body())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, w.Release(), "second release is a no-op")
}

func TestWriter_NoBodyStatuses(t *testing.T) {
	t.Parallel()

	for _, code := range []int{http.StatusNoContent, http.StatusNotModified} {
		t.Run(http.StatusText(code), func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			w := New(rec, WithDir(t.TempDir()))
			defer func() { _ = w.Release() }()

			w.WriteHeader(code)
			_, _ = w.Write([]byte("should not be sent"))
			require.NoError(t, w.Finish())

			assert.Equal(t, code, rec.Code)
			assert.Empty(t, rec.Body.String())
		})
	}
}

func TestWriter_ImplicitOKAndSniffedType(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	w := New(rec, WithDir(t.TempDir()))
	defer func() { _ = w.Release() }()

	_, _ = w.Write([]byte("<html><body>hi</body></html>"))
	assert.Equal(t, "text/html; charset=utf-8", w.ContentType())
	require.NoError(t, w.Finish())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
}

func TestWriter_FirstStatusWins(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	w := New(rec, WithDir(t.TempDir()))
	defer func() { _ = w.Release() }()

	w.WriteHeader(http.StatusNotFound)
	w.WriteHeader(http.StatusOK)
	require.NoError(t, w.Finish())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWriter_LargeBodyStreamsToSpool(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	rec := httptest.NewRecorder()
	w := New(rec, WithDir(dir), WithMemoryLimit(16))
	defer func() { _ = w.Release() }()

	chunk := strings.Repeat("x", 10)
	for range 5 {
		_, err := w.Write([]byte(chunk))
		require.NoError(t, err)
	}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "spool created once the memory limit is crossed")

	require.NoError(t, w.Finish())
	assert.Equal(t, strings.Repeat(chunk, 5), rec.Body.String())
	require.NotNil(t, w.Body())
	assert.Equal(t, int64(50), w.Body().Size)
}

func TestWriter_SpoolFailureStillReplays(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	w := New(rec, WithDir("/nonexistent/capturelog/spool"))
	defer func() { _ = w.Release() }()

	_, _ = w.Write([]byte("hello"))
	require.NoError(t, w.Finish())

	assert.Equal(t, "hello", rec.Body.String())
	assert.Nil(t, w.Body())
}

func TestWriter_ReleaseWithoutFinish(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	rec := httptest.NewRecorder()
	w := New(rec, WithDir(dir), WithMemoryLimit(1))

	_, _ = w.Write([]byte("partial"))
	require.NoError(t, w.Release())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Empty(t, rec.Body.String(), "an abandoned response is never replayed")

	_, err = w.Write([]byte("more"))
	assert.ErrorIs(t, err, ErrFinished)
}

func TestWriter_NilResponseWriter(t *testing.T) {
	t.Parallel()

	w := New(nil, WithDir(t.TempDir()))
	defer func() { _ = w.Release() }()

	w.Header().Set("X-Test", "1")
	_, _ = w.Write([]byte("body"))
	assert.NoError(t, w.Finish())
}

func TestWriter_EmptyBodyHasNoSpool(t *testing.T) {
	t.Parallel()

	w := New(httptest.NewRecorder(), WithDir(t.TempDir()))
	defer func() { _ = w.Release() }()

	require.NoError(t, w.Finish())
	assert.Nil(t, w.Body())
}

func TestWriter_FlushIsHeldUntilFinish(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	var rw http.ResponseWriter = New(rec, WithDir(t.TempDir()))
	w := rw.(*Writer)
	defer func() { _ = w.Release() }()

	flusher, ok := rw.(http.Flusher)
	require.True(t, ok)

	_, _ = w.Write([]byte("chunk"))
	flusher.Flush()
	require.NoError(t, http.NewResponseController(rw).Flush())
	assert.False(t, rec.Flushed)
	assert.Empty(t, rec.Body.String())

	require.NoError(t, w.Finish())
	assert.Equal(t, "chunk", rec.Body.String())
}

func TestWriter_FlushCommitsImplicitOK(t *testing.T) {
	t.Parallel()

	w := New(httptest.NewRecorder(), WithDir(t.TempDir()))
	defer func() { _ = w.Release() }()

	w.Flush()
	w.WriteHeader(http.StatusTeapot)
	assert.Equal(t, http.StatusOK, w.Status())
}

package intercept

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/getmockd/capturelog/pkg/logging"
	"github.com/getmockd/capturelog/pkg/requestlog"
)

// DefaultMemoryLimit is how many body bytes are held in memory before the
// writer starts streaming the body to its spool file.
const DefaultMemoryLimit = 1 << 20

// sniffLen matches the amount net/http inspects to detect a content type.
const sniffLen = 512

// ErrFinished is returned by Write after Finish.
var ErrFinished = errors.New("intercept: response already finished")

// Option configures a Writer.
type Option func(*Writer)

// WithDir sets the spool directory. Default: os.TempDir().
func WithDir(dir string) Option {
	return func(w *Writer) {
		if dir != "" {
			w.dir = dir
		}
	}
}

// WithMemoryLimit sets the in-memory threshold. Values <= 0 keep the default.
func WithMemoryLimit(n int64) Option {
	return func(w *Writer) {
		if n > 0 {
			w.memLimit = n
		}
	}
}

// WithLogger sets the logger for spool faults.
func WithLogger(l *slog.Logger) Option {
	return func(w *Writer) {
		if l != nil {
			w.log = l
		}
	}
}

// Writer is a buffering http.ResponseWriter decorator. It is not safe for
// concurrent use, matching http.ResponseWriter.
type Writer struct {
	rw       http.ResponseWriter
	dir      string
	memLimit int64
	log      *slog.Logger

	status      int
	wroteHeader bool
	buf         bytes.Buffer
	sniff       []byte
	size        int64

	spool    *os.File
	spoolErr error
	path     string

	finished bool
	released bool
}

// New wraps rw. rw may be nil, in which case nothing is replayed.
func New(rw http.ResponseWriter, opts ...Option) *Writer {
	w := &Writer{
		rw:       rw,
		dir:      os.TempDir(),
		memLimit: DefaultMemoryLimit,
		log:      logging.Nop(),
		status:   http.StatusOK,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Header returns the real writer's header map; changes are sent on Finish.
func (w *Writer) Header() http.Header {
	if w.rw == nil {
		return http.Header{}
	}
	return w.rw.Header()
}

// WriteHeader records the status code. Informational codes are forwarded
// immediately since they precede the final response.
func (w *Writer) WriteHeader(code int) {
	if w.wroteHeader || w.finished {
		return
	}
	if code >= 100 && code < 200 && code != http.StatusSwitchingProtocols {
		if w.rw != nil {
			w.rw.WriteHeader(code)
		}
		return
	}
	w.status = code
	w.wroteHeader = true
}

// Write buffers p.
func (w *Writer) Write(p []byte) (int, error) {
	if w.finished {
		return 0, ErrFinished
	}
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if len(w.sniff) < sniffLen {
		n := min(sniffLen-len(w.sniff), len(p))
		w.sniff = append(w.sniff, p[:n]...)
	}
	w.size += int64(len(p))

	if w.spool != nil && w.spoolErr == nil {
		if n, err := w.spool.Write(p); err != nil {
			w.abandonSpool(err)
			w.buf.Write(p[n:])
		}
		return len(p), nil
	}
	w.buf.Write(p)
	if int64(w.buf.Len()) > w.memLimit && w.spoolErr == nil {
		w.moveToSpool()
	}
	return len(p), nil
}

// Flush satisfies http.Flusher. The body is held until Finish, so Flush
// only commits the status; nothing reaches the client early.
func (w *Writer) Flush() {
	if !w.wroteHeader && !w.finished {
		w.WriteHeader(http.StatusOK)
	}
}

// Unwrap returns the real writer for http.ResponseController.
func (w *Writer) Unwrap() http.ResponseWriter { return w.rw }

// Status returns the recorded status code, 200 when none was set.
func (w *Writer) Status() int { return w.status }

// Size returns the number of body bytes written by the handler.
func (w *Writer) Size() int64 { return w.size }

// ContentType returns the response Content-Type, sniffed from the body
// when the handler did not set one.
func (w *Writer) ContentType() string {
	if ct := w.Header().Get("Content-Type"); ct != "" {
		return ct
	}
	if len(w.sniff) == 0 {
		return ""
	}
	return http.DetectContentType(w.sniff)
}

// Finish spools the body and replays the response to the real writer.
// Statuses that carry no body (1xx, 204, 304) have their header written
// and their body dropped. Spool failures are logged, never returned; the
// error reports a failed replay to the client.
func (w *Writer) Finish() error {
	if w.finished {
		return nil
	}
	w.finished = true

	if w.spool == nil && w.spoolErr == nil && w.size > 0 {
		w.moveToSpool()
	}
	if w.rw == nil {
		return nil
	}

	if w.Header().Get("Content-Type") == "" && len(w.sniff) > 0 && bodyAllowed(w.status) {
		w.Header().Set("Content-Type", http.DetectContentType(w.sniff))
	}
	if w.status >= 200 || w.status == http.StatusSwitchingProtocols {
		w.rw.WriteHeader(w.status)
	}
	if !bodyAllowed(w.status) || w.size == 0 {
		return nil
	}
	return w.replay()
}

// replay copies the body from memory or from the spool file.
func (w *Writer) replay() error {
	if w.spool == nil {
		_, err := w.rw.Write(w.buf.Bytes())
		return err
	}
	// A spool that failed mid-stream holds a prefix; the rest is in buf.
	if _, err := w.spool.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("intercept: rewind spool: %w", err)
	}
	if _, err := io.Copy(w.rw, w.spool); err != nil {
		return err
	}
	if w.buf.Len() > 0 {
		_, err := w.rw.Write(w.buf.Bytes())
		return err
	}
	return nil
}

// Body describes the spooled body, or nil when nothing was spooled.
// It stays valid until Release.
func (w *Writer) Body() *requestlog.CapturedBody {
	if w.spool == nil || w.spoolErr != nil || w.released || w.size == 0 {
		return nil
	}
	contentType := w.ContentType()
	return &requestlog.CapturedBody{
		Path:        w.path,
		FileName:    requestlog.ResponseFileName(contentType),
		Size:        w.size,
		ContentType: contentType,
	}
}

// Release closes and deletes the spool file. It is safe to call more
// than once and on every exit path.
func (w *Writer) Release() error {
	if w.released {
		return nil
	}
	w.released = true
	w.finished = true
	if w.spool == nil {
		return nil
	}
	closeErr := w.spool.Close()
	removeErr := os.Remove(w.path)
	if errors.Is(removeErr, os.ErrNotExist) {
		removeErr = nil
	}
	return errors.Join(closeErr, removeErr)
}

// moveToSpool creates the spool file and drains buf into it.
func (w *Writer) moveToSpool() {
	path := filepath.Join(w.dir, "capturelog-"+uuid.NewString()+".body")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		w.spoolErr = err
		w.log.Warn("response spool unavailable", "path", path, "error", err)
		return
	}
	if _, err := f.Write(w.buf.Bytes()); err != nil {
		w.spoolErr = err
		w.log.Warn("response spool write failed", "path", path, "error", err)
		_ = f.Close()
		_ = os.Remove(path)
		return
	}
	w.spool = f
	w.path = path
	w.buf.Reset()
}

// abandonSpool gives up on the spool file. Bytes already on disk are kept
// so replay stays complete; the body is no longer offered to sinks.
func (w *Writer) abandonSpool(err error) {
	w.spoolErr = err
	w.log.Warn("response spool write failed", "path", w.path, "error", err)
}

// bodyAllowed reports whether a response with status may carry a body.
func bodyAllowed(status int) bool {
	switch {
	case status < 200:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}

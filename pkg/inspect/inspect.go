// Package inspect serves the records retained by a memory sink over HTTP.
//
// Routes, relative to the mount point:
//
//	GET    /records           list, newest first
//	GET    /records/stream    server-sent events for new records
//	GET    /records/ws        the same feed over a WebSocket
//	GET    /records/{id}      one record by unit id
//	DELETE /records           clear
//
// List filters: web (true|false), minLevel, minStatus, path (prefix),
// offset and limit.
package inspect

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/segmentio/encoding/json"

	"github.com/getmockd/capturelog/pkg/httputil"
	"github.com/getmockd/capturelog/pkg/logging"
	"github.com/getmockd/capturelog/pkg/sink/memory"
	"github.com/getmockd/capturelog/pkg/unitlog"
)

// DefaultKeepAlive is the interval between SSE keep-alive comments.
const DefaultKeepAlive = 15 * time.Second

// ListResponse is the body of GET /records.
type ListResponse struct {
	Records []*memory.Stored `json:"records"`
	Count   int              `json:"count"`
	Total   int              `json:"total"`
}

// Handler exposes a memory sink.
type Handler struct {
	store     *memory.Sink
	log       *slog.Logger
	keepAlive time.Duration
	origins   []string
	mux       *http.ServeMux
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.log = l
		}
	}
}

// WithKeepAlive sets the SSE keep-alive interval.
func WithKeepAlive(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.keepAlive = d
		}
	}
}

// WithOriginPatterns allows cross-origin WebSocket clients whose Origin
// host matches one of the patterns.
func WithOriginPatterns(patterns ...string) Option {
	return func(h *Handler) { h.origins = append(h.origins, patterns...) }
}

// New creates a Handler over store.
func New(store *memory.Sink, opts ...Option) *Handler {
	h := &Handler{store: store, log: logging.Nop(), keepAlive: DefaultKeepAlive}
	for _, opt := range opts {
		opt(h)
	}
	h.mux = http.NewServeMux()
	h.mux.HandleFunc("GET /records", h.handleList)
	h.mux.HandleFunc("GET /records/stream", h.handleStream)
	h.mux.HandleFunc("GET /records/ws", h.handleWebSocket)
	h.mux.HandleFunc("GET /records/{id}", h.handleGet)
	h.mux.HandleFunc("DELETE /records", h.handleClear)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteBadRequest(w, "invalid_filter", err.Error())
		return
	}
	records := h.store.List(filter)
	httputil.WriteOK(w, ListResponse{Records: records, Count: len(records), Total: h.store.Count()})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	stored, ok := h.store.Get(id)
	if !ok {
		httputil.WriteNotFound(w, "not_found", fmt.Sprintf("no record for unit %q", id))
		return
	}
	httputil.WriteOK(w, stored)
}

func (h *Handler) handleClear(w http.ResponseWriter, _ *http.Request) {
	cleared := h.store.Count()
	h.store.Clear()
	httputil.WriteOK(w, map[string]any{"message": "Records cleared", "cleared": cleared})
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteInternalError(w, "sse_error", "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ch, unsubscribe := h.store.Subscribe()
	defer unsubscribe()

	_, _ = fmt.Fprint(w, "event: connected\ndata: {}\n\n")
	flusher.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case stored, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(stored)
			if err != nil {
				h.log.Warn("inspect: failed to encode record", "unit", stored.Record.UnitID, "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: record\nid: %d\ndata: %s\n\n", stored.Sequence, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		// Accept has already written the failure response.
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "stream closed") }()

	ch, unsubscribe := h.store.Subscribe()
	defer unsubscribe()

	// Inbound messages are ignored; the returned context ends when the
	// peer goes away.
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case stored, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(stored)
			if err != nil {
				h.log.Warn("inspect: failed to encode record", "unit", stored.Record.UnitID, "error", err)
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				return
			}
		}
	}
}

func parseFilter(r *http.Request) (*memory.Filter, error) {
	q := r.URL.Query()
	filter := &memory.Filter{PathPrefix: q.Get("path")}

	if v := q.Get("web"); v != "" {
		web, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("web: %w", err)
		}
		filter.Web = &web
	}
	if v := q.Get("minLevel"); v != "" {
		level, err := unitlog.ParseLevel(v)
		if err != nil {
			return nil, err
		}
		filter.MinLevel = level
	}
	if v := q.Get("minStatus"); v != "" {
		n, ok := httputil.ParseNonNegativeInt(v)
		if !ok {
			return nil, fmt.Errorf("minStatus: invalid value %q", v)
		}
		filter.MinStatusCode = n
	}
	if n, ok := httputil.ParseNonNegativeInt(q.Get("offset")); ok {
		filter.Offset = n
	}
	if n, ok := httputil.ParseNonNegativeInt(q.Get("limit")); ok {
		filter.Limit = n
	}
	return filter, nil
}

package cli

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/getmockd/capturelog/pkg/httputil"
	"github.com/getmockd/capturelog/pkg/unitlog"
)

// demoRoutes exercises the capture pipeline: each handler logs into the
// unit of its request.
func demoRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /hello", func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("name")
		if name == "" {
			name = "world"
		}
		slog.InfoContext(r.Context(), "greeting", "name", name)
		httputil.WriteOK(w, map[string]string{"message": "hello, " + name})
	})

	mux.HandleFunc("POST /echo", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			unitlog.From(r.Context()).LogError(unitlog.LevelError, err)
			httputil.WriteBadRequest(w, "read_failed", err.Error())
			return
		}
		unitlog.From(r.Context()).Category("echo").Logf(unitlog.LevelDebug, "echoing %d bytes", len(body))
		if ct := r.Header.Get("Content-Type"); ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		_, _ = w.Write(body)
	})

	mux.HandleFunc("GET /fail", func(w http.ResponseWriter, r *http.Request) {
		unitlog.From(r.Context()).Warn("about to fail")
		panic(errors.New("demo failure"))
	})

	mux.HandleFunc("GET /error", func(w http.ResponseWriter, r *http.Request) {
		slog.ErrorContext(r.Context(), "handled error", "error", "upstream unavailable")
		httputil.WriteError(w, http.StatusBadGateway, "upstream", "upstream unavailable")
	})

	mux.HandleFunc("DELETE /empty", func(w http.ResponseWriter, r *http.Request) {
		unitlog.From(r.Context()).Info("nothing to return")
		httputil.WriteNoContent(w)
	})

	return mux
}

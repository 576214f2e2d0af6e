// Package server exposes the dispatch router over HTTP. The webhook endpoint
// always answers 200 with the outcome body: signal sources fire and forget,
// and the body is authoritative for callers that do read it.
package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"tradehook/internal/dispatch"
)

const maxBodyBytes = 1 << 20

// NewHandler wires the webhook routes over the given router.
func NewHandler(d *dispatch.Router, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Post("/webhook", func(w http.ResponseWriter, req *http.Request) {
		body, err := io.ReadAll(io.LimitReader(req.Body, maxBodyBytes))
		if err != nil {
			writeJSON(w, dispatch.Outcome{Error: "ParseError", Detail: "reading request body failed"})
			return
		}
		writeJSON(w, d.Dispatch(req.Context(), body))
	})

	return r
}

func writeJSON(w http.ResponseWriter, out dispatch.Outcome) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(out)
}

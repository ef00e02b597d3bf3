package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Sternrassler/epd-ingest/pkg/batch"
	"github.com/Sternrassler/epd-ingest/pkg/epd"
	"github.com/Sternrassler/epd-ingest/pkg/metrics"
	"github.com/Sternrassler/epd-ingest/pkg/pipeline"
)

// phases is the part of the pipeline exposed over HTTP.
type phases interface {
	List(ctx context.Context) (*pipeline.ListResult, error)
	Process(ctx context.Context, h batch.Handle) (*pipeline.Result, error)
}

func newServer(p phases) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/list", listHandler(p))
	mux.HandleFunc("/process", processHandler(p))
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func listHandler(p phases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
			return
		}

		res, err := p.List(r.Context())
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func processHandler(p phases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
			return
		}

		var h batch.Handle
		if err := json.NewDecoder(r.Body).Decode(&h); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
			return
		}
		if h.Key == "" {
			writeError(w, http.StatusBadRequest, errors.New("s3Key is required"))
			return
		}

		res, err := p.Process(r.Context(), h)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, epd.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, batch.ErrDecode):
		return http.StatusUnprocessableEntity
	case errors.Is(err, epd.ErrAuth), errors.Is(err, epd.ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// batch kept, safe to retry
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/promptshelf/internal/auth"
	"github.com/jackzampolin/promptshelf/internal/svcctx"
)

// RequestIDHeader is echoed on every response.
const RequestIDHeader = "X-Request-ID"

// withServices attaches services to the request context. Each request gets
// its own logger tagged with the request id.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		ctx := r.Context()
		if services := s.currentServices(); services != nil {
			scoped := *services
			scoped.Logger = services.Logger.With("request_id", id)
			ctx = svcctx.WithServices(ctx, &scoped)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

// withRequestLog logs each request and records it in the metrics. It must
// wrap the mux directly so the matched pattern is visible after serving.
func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		s.metrics.ObserveRequest(r.Pattern, r.Method, rec.status, elapsed)

		level := s.logger.Debug
		if rec.status >= http.StatusInternalServerError {
			level = s.logger.Warn
		}
		level("request",
			"method", r.Method,
			"path", r.URL.Path,
			"route", r.Pattern,
			"status", rec.status,
			"duration_ms", elapsed.Milliseconds(),
			"request_id", w.Header().Get(RequestIDHeader))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable if the stores aren't ready.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if services := s.currentServices(); services == nil || services.PromptService == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "server not fully initialized"})
			return
		}
		next(w, r)
	}
}

// requireUser rejects requests without the identity header.
func (s *Server) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return auth.Middleware(s.cfg.UserHeader, nil)(next).ServeHTTP
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

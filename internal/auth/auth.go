// Package auth reads the caller's identity from a header set by the upstream
// identity provider. The provider authenticates the user; this service only
// trusts and propagates the id it forwards.
package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// DefaultHeader carries the authenticated user id.
const DefaultHeader = "X-User-ID"

type contextKey struct{}

// WithUserID returns a context carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// FromContext returns the user id stored by Middleware, if any.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKey{}).(string)
	return id, ok && id != ""
}

// UserID returns the authenticated user id for r, or "" if there is none.
func UserID(r *http.Request) string {
	id, _ := FromContext(r.Context())
	return id
}

// Middleware extracts the user id from header into the request context.
// Requests without it are rejected with 401 unless public reports true for them.
func Middleware(header string, public func(*http.Request) bool) func(http.Handler) http.Handler {
	if header == "" {
		header = DefaultHeader
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(header))
			if id != "" {
				next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), id)))
				return
			}
			if public != nil && public(r) {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "missing " + header + " header"})
		})
	}
}

// Package middleware carries the explicit request-context values that
// replace the source's thread-local MDC correlation id, per §9's
// design note to thread context through call sites instead of relying
// on implicit thread-local state.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// RequestID reads X-Request-ID from the incoming request, synthesizes
// one with google/uuid when absent, stores it on the request context,
// and echoes it back on the response — the same shape as
// Sumukhak22-GopherPay/internal/middleware/request_id.go, generalized
// to both facades in this repository.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)
		ctx := context.WithValue(r.Context(), requestIDKey, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// FromContext returns the correlation id stashed by RequestID, or ""
// if none is present (e.g. in a test that built its own context).
func FromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithRequestID lets a worker-pool task carry the correlation id of
// the HTTP request that submitted it (§9: "thread the context through
// call sites, including into worker tasks at submission time").
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

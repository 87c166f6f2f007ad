// Package requestmeta provides middleware that stamps every request with an
// id and a request-scoped time. All operations within a single HTTP request
// observe the same "now", keeping timestamps consistent across log lines and
// stored records.
package requestmeta

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"rumbo/pkg/requestcontext"
)

// RequestID assigns a request id, preferring one supplied by an upstream
// proxy via X-Request-ID.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := requestcontext.WithRequestID(r.Context(), reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestTime captures the current time at the start of the request and
// stores it in the context for consistent time references throughout.
func RequestTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

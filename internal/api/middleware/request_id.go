// Package middleware provides HTTP middleware for the watchdog API.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// headerRequestID is the correlation header read from and written to every
// request.
const headerRequestID = "X-Request-Id"

type requestIDKey struct{}

func newRequestID() string {
	return "req_" + uuid.New().String()[:22]
}

// RequestID attaches a correlation ID to the request context and echoes it in
// the response header. A caller-supplied ID is kept as is.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = newRequestID()
		}
		w.Header().Set(headerRequestID, id)

		next.ServeHTTP(w, r.WithContext(
			context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// GetRequestID returns the correlation ID from the context, empty if the
// RequestID middleware did not run.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

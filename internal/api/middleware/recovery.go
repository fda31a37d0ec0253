package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/ragpilot/ragpilot/internal/api/models"
)

// Recovery converts handler panics into RFC 7807 500 responses. The panic
// value and stack are logged under the request's correlation ID.
func Recovery(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					// The server uses this sentinel to abort the reply;
					// suppressing it would break that contract.
					panic(rec)
				}

				id := GetRequestID(r.Context())
				log.Error().
					Str("request_id", id).
					Str("path", r.URL.Path).
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Msg("handler panicked")

				problem := models.NewInternalError(id, "an unexpected error occurred")
				problem.Instance = r.URL.Path
				problem.Write(w)
			}()

			next.ServeHTTP(w, r)
		})
	}
}

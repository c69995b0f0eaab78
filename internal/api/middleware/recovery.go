package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/citymove/citymove/internal/api/models"
)

// Recovery turns a handler panic into a 500 problem response. An
// http.ErrAbortHandler panic is passed on so the server aborts the response.
func Recovery(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				requestID := GetRequestID(r.Context())
				log.Error().
					Str("request_id", requestID).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Interface("error", rec).
					Str("stack", string(debug.Stack())).
					Msg("panic recovered")

				problem := models.NewInternalError(requestID, "an unexpected error occurred")
				problem.Instance = r.URL.Path
				problem.Write(w)
			}()

			next.ServeHTTP(w, r)
		})
	}
}

package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Logger logs one line per request. Server errors log at error level, client
// errors at warn, and health probes at debug.
func Logger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrapWriter(w)

			next.ServeHTTP(wrapped, r)

			event := log.Info()
			switch {
			case wrapped.statusCode >= 500:
				event = log.Error()
			case wrapped.statusCode >= 400:
				event = log.Warn()
			case isProbe(r):
				event = log.Debug()
			}

			if spanCtx := trace.SpanContextFromContext(r.Context()); spanCtx.IsValid() {
				event = event.
					Str("trace_id", spanCtx.TraceID().String()).
					Str("span_id", spanCtx.SpanID().String())
			}

			event.
				Str("request_id", GetRequestID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("route", routePattern(r)).
				Int("status", wrapped.statusCode).
				Int64("bytes", wrapped.written).
				Dur("duration", time.Since(start)).
				Str("remote_addr", r.RemoteAddr).
				Str("user_agent", r.UserAgent()).
				Msg("request completed")
		})
	}
}

func isProbe(r *http.Request) bool {
	switch r.URL.Path {
	case "/v1/ops/health", "/v1/ops/ready":
		return true
	}
	return false
}

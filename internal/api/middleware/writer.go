package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// statusWriter records the status code and body size written by a handler.
type statusWriter struct {
	http.ResponseWriter
	statusCode  int
	written     int64
	wroteHeader bool
}

// wrapWriter returns w itself when it is already a statusWriter so that
// stacked middleware share one wrapper.
func wrapWriter(w http.ResponseWriter) *statusWriter {
	if sw, ok := w.(*statusWriter); ok {
		return sw
	}
	return &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.statusCode = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	n, err := w.ResponseWriter.Write(b)
	w.written += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// routePattern returns the matched chi pattern, or the raw path outside a
// chi router. Only meaningful once the router has run.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

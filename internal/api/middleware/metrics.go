package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the HTTP server instruments.
type Metrics struct {
	requestDuration  metric.Float64Histogram
	requestTotal     metric.Int64Counter
	requestsInFlight metric.Int64UpDownCounter
	responseSize     metric.Int64Histogram
}

// NewMetrics creates the HTTP server instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

	requestDuration, err := meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("Duration of HTTP server requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestTotal, err := meter.Int64Counter(
		"http.server.request.total",
		metric.WithDescription("Total number of HTTP server requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	requestsInFlight, err := meter.Int64UpDownCounter(
		"http.server.requests_in_flight",
		metric.WithDescription("Number of HTTP requests currently being processed"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	responseSize, err := meter.Int64Histogram(
		"http.server.response.size",
		metric.WithDescription("Size of HTTP server responses in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		requestsInFlight: requestsInFlight,
		responseSize:     responseSize,
	}, nil
}

// Middleware records request count, duration and size per method, route
// pattern and status.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			inFlight := metric.WithAttributes(attribute.String("http.method", r.Method))
			m.requestsInFlight.Add(r.Context(), 1, inFlight)
			defer m.requestsInFlight.Add(r.Context(), -1, inFlight)

			wrapped := wrapWriter(w)
			next.ServeHTTP(wrapped, r)

			attrs := []attribute.KeyValue{
				attribute.String("http.method", r.Method),
				attribute.String("http.route", routePattern(r)),
				attribute.String("http.status_code", strconv.Itoa(wrapped.statusCode)),
			}
			if wrapped.statusCode >= 400 {
				attrs = append(attrs, attribute.Bool("error", true))
			}

			opt := metric.WithAttributes(attrs...)
			m.requestDuration.Record(r.Context(), time.Since(start).Seconds(), opt)
			m.requestTotal.Add(r.Context(), 1, opt)
			m.responseSize.Record(r.Context(), wrapped.written, opt)
		})
	}
}

// ProviderMetrics records calls to geocoding and routing providers and the
// route cache. It satisfies the Recorder interfaces of the geocode and
// routing packages.
type ProviderMetrics struct {
	requestDuration metric.Float64Histogram
	requestTotal    metric.Int64Counter
	cacheHits       metric.Int64Counter
	cacheMisses     metric.Int64Counter
}

// NewProviderMetrics creates the provider instruments.
func NewProviderMetrics() (*ProviderMetrics, error) {
	meter := otel.Meter(instrumentationName)

	requestDuration, err := meter.Float64Histogram(
		"provider.request.duration",
		metric.WithDescription("Duration of provider requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestTotal, err := meter.Int64Counter(
		"provider.request.total",
		metric.WithDescription("Total number of provider requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	cacheHits, err := meter.Int64Counter(
		"provider.cache.hit",
		metric.WithDescription("Number of cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, err
	}

	cacheMisses, err := meter.Int64Counter(
		"provider.cache.miss",
		metric.WithDescription("Number of cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, err
	}

	return &ProviderMetrics{
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
	}, nil
}

// RecordRequest records one provider call.
func (m *ProviderMetrics) RecordRequest(provider, operation string, duration time.Duration, err error) {
	attrs := providerAttrs(provider, operation)
	if err != nil {
		attrs = append(attrs,
			attribute.Bool("error", true),
			attribute.String("error.type", errorType(err)),
		)
	}

	// Metrics outlive the request context.
	ctx := context.Background()
	opt := metric.WithAttributes(attrs...)
	m.requestDuration.Record(ctx, duration.Seconds(), opt)
	m.requestTotal.Add(ctx, 1, opt)
}

// RecordCacheHit records a cache hit.
func (m *ProviderMetrics) RecordCacheHit(provider, operation string) {
	m.cacheHits.Add(context.Background(), 1, metric.WithAttributes(providerAttrs(provider, operation)...))
}

// RecordCacheMiss records a cache miss.
func (m *ProviderMetrics) RecordCacheMiss(provider, operation string) {
	m.cacheMisses.Add(context.Background(), 1, metric.WithAttributes(providerAttrs(provider, operation)...))
}

func providerAttrs(provider, operation string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("provider.name", provider),
		attribute.String("provider.operation", operation),
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "failure"
	}
}

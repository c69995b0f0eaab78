package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/citymove/citymove/internal/api/models"
)

// RateLimitConfig holds configuration for rate limiting.
type RateLimitConfig struct {
	// RequestLimit is the number of requests allowed per window.
	RequestLimit int
	// WindowLength is the window duration.
	WindowLength time.Duration
}

// Default rate limits per endpoint category.
var (
	// RouteRateLimit applies to the route proxy, which spends upstream quota
	// (30 req/min).
	RouteRateLimit = RateLimitConfig{
		RequestLimit: 30,
		WindowLength: time.Minute,
	}

	// GeocodeRateLimit applies to place resolution (60 req/min). The public
	// fallback geocoder allows one request per second per application.
	GeocodeRateLimit = RateLimitConfig{
		RequestLimit: 60,
		WindowLength: time.Minute,
	}

	// StandardRateLimit applies to cheap read endpoints (100 req/min).
	StandardRateLimit = RateLimitConfig{
		RequestLimit: 100,
		WindowLength: time.Minute,
	}
)

// RateLimitByIP limits requests per client IP. Run chi's RealIP middleware
// first when the API sits behind a proxy.
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(math.Ceil(cfg.WindowLength.Seconds())))

	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			problem := models.NewTooManyRequests(GetRequestID(r.Context()), "Rate limit exceeded. Please try again later.")
			problem.Instance = r.URL.Path
			// httprate does not expose the reset time.
			w.Header().Set("Retry-After", retryAfter)
			problem.Write(w)
		}),
	)
}

// Package resilience wraps outbound provider calls with a circuit breaker,
// timeouts, and retries, and tracks provider health in a registry.
package resilience

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// CircuitBreakerConfig holds configuration for the circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies the circuit breaker for logging/metrics.
	Name string

	// MaxRequests is the number of probe requests allowed while half-open.
	// Default: 1
	MaxRequests uint32

	// Interval is the cyclic period for clearing counts while closed.
	// Default: 0 (never cleared)
	Interval time.Duration

	// Timeout is how long the breaker stays open before going half-open.
	// Default: 30 seconds
	Timeout time.Duration

	// ReadyToTrip decides when to open the breaker.
	// If nil, uses DefaultReadyToTrip.
	ReadyToTrip func(counts gobreaker.Counts) bool

	// OnStateChange is called on every state transition (optional).
	OnStateChange func(name string, from gobreaker.State, to gobreaker.State)
}

// DefaultCircuitBreakerConfig returns the breaker used for geocoding and
// routing providers.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:        name,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: DefaultReadyToTrip,
	}
}

// DefaultReadyToTrip opens the breaker after 5 or more requests with a
// failure rate of at least 50%.
func DefaultReadyToTrip(counts gobreaker.Counts) bool {
	if counts.Requests < 5 {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
}

// TripAfterConsecutive opens the breaker after n consecutive failures.
func TripAfterConsecutive(n uint32) func(gobreaker.Counts) bool {
	return func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= n
	}
}

// LogStateChanges returns an OnStateChange hook that logs transitions.
func LogStateChanges(logger zerolog.Logger) func(string, gobreaker.State, gobreaker.State) {
	return func(name string, from, to gobreaker.State) {
		event := logger.Info()
		if to == gobreaker.StateOpen {
			event = logger.Warn()
		}
		event.
			Str("provider", name).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("circuit breaker state changed")
	}
}

// NewCircuitBreaker creates a new circuit breaker with the given configuration.
func NewCircuitBreaker[T any](cfg CircuitBreakerConfig) *gobreaker.CircuitBreaker[T] {
	readyToTrip := cfg.ReadyToTrip
	if readyToTrip == nil {
		readyToTrip = DefaultReadyToTrip
	}

	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:          cfg.Name,
		MaxRequests:   cfg.MaxRequests,
		Interval:      cfg.Interval,
		Timeout:       cfg.Timeout,
		ReadyToTrip:   readyToTrip,
		OnStateChange: cfg.OnStateChange,
	})
}

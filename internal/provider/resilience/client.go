package resilience

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

// Predefined errors for resilient operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrMaxRetriesExceeded is returned when all retry attempts have been exhausted.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// ClientConfig holds configuration for the resilient HTTP client.
type ClientConfig struct {
	// Name identifies this client for circuit breaker naming and registry lookups.
	Name string

	// Timeout is the request timeout for individual HTTP calls.
	// Default: 10 seconds
	Timeout time.Duration

	// MaxRetries is the maximum number of retry attempts.
	// Default: 3. Ignored when NoRetry is set.
	MaxRetries uint64

	// NoRetry sends every request exactly once. Used by callers whose
	// retries are driven by an explicit user action.
	NoRetry bool

	// InitialInterval is the initial retry backoff interval.
	// Default: 100ms
	InitialInterval time.Duration

	// MaxInterval is the maximum retry backoff interval.
	// Default: 5 seconds
	MaxInterval time.Duration

	// CircuitBreaker is the circuit breaker configuration.
	// If nil, uses DefaultCircuitBreakerConfig.
	CircuitBreaker *CircuitBreakerConfig

	// Registry receives the client on construction and is told about
	// every success and failure (optional).
	Registry *Registry

	// Transport overrides the underlying round tripper (optional).
	Transport http.RoundTripper
}

// DefaultClientConfig returns sensible defaults for the resilient client.
func DefaultClientConfig(name string) ClientConfig {
	cbConfig := DefaultCircuitBreakerConfig(name)
	return ClientConfig{
		Name:            name,
		Timeout:         10 * time.Second,
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		CircuitBreaker:  &cbConfig,
	}
}

// Client is a resilient HTTP client with circuit breaker and retry logic.
type Client struct {
	httpClient     *http.Client
	circuitBreaker *gobreaker.CircuitBreaker[*http.Response]
	config         ClientConfig
}

// NewClient creates a new resilient HTTP client.
func NewClient(cfg ClientConfig) *Client {
	// Set defaults
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.NoRetry {
		cfg.MaxRetries = 0
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 5 * time.Second
	}

	// Create circuit breaker
	var cb *gobreaker.CircuitBreaker[*http.Response]
	if cfg.CircuitBreaker != nil {
		cb = NewCircuitBreaker[*http.Response](*cfg.CircuitBreaker) //nolint:bodyclose // type param, not response
	} else {
		defaultCB := DefaultCircuitBreakerConfig(cfg.Name)
		cb = NewCircuitBreaker[*http.Response](defaultCB) //nolint:bodyclose // type param, not response
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
		circuitBreaker: cb,
		config:         cfg,
	}

	if cfg.Registry != nil {
		cfg.Registry.Register(cfg.Name, c)
	}

	return c
}

// Name returns the client name.
func (c *Client) Name() string {
	return c.config.Name
}

// Do executes an HTTP request with circuit breaker protection and retry logic.
// The request is retried on transient failures (5xx, network errors) with exponential backoff.
// Returns immediately with ErrCircuitOpen if the circuit breaker is open.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.DoWithContext(req.Context(), req)
}

// DoWithContext executes an HTTP request with the given context.
func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := c.do(ctx, req)
	c.record(resp, err)
	return resp, err
}

func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	// Create exponential backoff
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.InitialInterval
	bo.MaxInterval = c.config.MaxInterval
	bo.MaxElapsedTime = 0 // Unlimited, we control retries via WithMaxRetries

	// Wrap with max retries and context
	backoffWithRetries := backoff.WithMaxRetries(bo, c.config.MaxRetries)
	backoffWithContext := backoff.WithContext(backoffWithRetries, ctx)

	var lastResp *http.Response

	operation := func() error {
		// A response kept from a failed attempt is superseded by this one.
		if lastResp != nil {
			lastResp.Body.Close()
			lastResp = nil
		}

		// Execute through circuit breaker
		// Note: 5xx errors are returned as errors to trip the circuit breaker
		resp, err := c.circuitBreaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // caller is responsible for closing
			reqClone := req.Clone(ctx)
			if req.GetBody != nil {
				body, bodyErr := req.GetBody()
				if bodyErr != nil {
					return nil, bodyErr
				}
				reqClone.Body = body
			}
			r, err := c.httpClient.Do(reqClone)
			if err != nil {
				return nil, err
			}

			// Treat 5xx as errors for circuit breaker
			if r.StatusCode >= 500 {
				return r, &ServerError{StatusCode: r.StatusCode}
			}

			return r, nil
		})

		if err != nil {
			// Check if circuit breaker is open
			if errors.Is(err, gobreaker.ErrOpenState) {
				return backoff.Permanent(ErrCircuitOpen)
			}
			if errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(ErrCircuitOpen)
			}

			// Store response if available (5xx case)
			if resp != nil {
				lastResp = resp
			}
			// Network and server errors are retryable
			return err
		}

		lastResp = resp

		// Success or client error (not retryable)
		return nil
	}

	err := backoff.Retry(operation, backoffWithContext)
	if err != nil {
		// If we have a last response (e.g., 5xx that exhausted retries), return it
		if lastResp != nil {
			return lastResp, nil
		}
		return nil, err
	}

	return lastResp, nil
}

func (c *Client) record(resp *http.Response, err error) {
	reg := c.config.Registry
	if reg == nil {
		return
	}
	switch {
	case err != nil:
		reg.RecordFailure(c.config.Name, err)
	case resp.StatusCode >= 500:
		reg.RecordFailure(c.config.Name, &ServerError{StatusCode: resp.StatusCode})
	default:
		reg.RecordSuccess(c.config.Name)
	}
}

// ServerError represents an HTTP 5xx server error.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}

// CircuitBreakerState returns the current state of the circuit breaker.
func (c *Client) CircuitBreakerState() gobreaker.State {
	return c.circuitBreaker.State()
}

// CircuitBreakerCounts returns the current counts of the circuit breaker.
func (c *Client) CircuitBreakerCounts() gobreaker.Counts {
	return c.circuitBreaker.Counts()
}

package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/citymove/citymove/internal/geo"
	"github.com/citymove/citymove/internal/provider/resilience"
)

const (
	// BackendProviderName identifies the routing endpoint in the registry.
	BackendProviderName = "route-backend"

	// DefaultBackendURL is used when no backend is configured.
	DefaultBackendURL = "http://127.0.0.1:8000"

	// RoutePath is the routing endpoint path on the backend.
	RoutePath = "/api/route/"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 15 * time.Second

	maxResponseBytes = 8 << 20
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Recorder receives endpoint call measurements.
type Recorder interface {
	RecordRequest(provider, operation string, duration time.Duration, err error)
}

// CoordinatorConfig holds configuration for the route coordinator.
type CoordinatorConfig struct {
	// BackendURL is the backend base URL (default: DefaultBackendURL).
	BackendURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with retries disabled.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (default: 15s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Recorder receives per-request timings (optional).
	Recorder Recorder

	// Logger for coordinator operations.
	Logger zerolog.Logger
}

// Coordinator requests routes from the backend routing endpoint.
type Coordinator struct {
	endpoint   string
	httpClient HTTPDoer
	recorder   Recorder
	logger     zerolog.Logger
	state      RouteState
}

// routeRequest is the routing endpoint request body.
type routeRequest struct {
	Start   geo.Point `json:"start"`
	Dest    geo.Point `json:"dest"`
	Vehicle Mode      `json:"vehicle"`
}

// Outcome is the completion of a submitted query.
type Outcome struct {
	Ticket Ticket
	Query  Query
	Result *Result
	Err    error
	// Current is false when a newer query superseded this one; the outcome
	// was then discarded and not published to the route state.
	Current bool
}

// NewCoordinator creates a new route coordinator.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	backend := cfg.BackendURL
	if backend == "" {
		backend = DefaultBackendURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(BackendProviderName)
		clientCfg.Timeout = timeout
		clientCfg.NoRetry = true
		clientCfg.Registry = cfg.Registry
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Coordinator{
		endpoint:   strings.TrimRight(backend, "/") + RoutePath,
		httpClient: httpClient,
		recorder:   cfg.Recorder,
		logger:     cfg.Logger,
	}
}

// Endpoint returns the routing endpoint URL.
func (c *Coordinator) Endpoint() string {
	return c.endpoint
}

// State returns the route state published by Submit.
func (c *Coordinator) State() *RouteState {
	return &c.state
}

// Submit requests a route for q and publishes the outcome to the route state
// unless a newer query was submitted, or the state cleared, meanwhile.
func (c *Coordinator) Submit(ctx context.Context, q Query) Outcome {
	return c.Complete(ctx, c.state.Begin(q), q)
}

// Complete requests a route for q, already registered under t with State(),
// and publishes the outcome unless t has been superseded meanwhile.
func (c *Coordinator) Complete(ctx context.Context, t Ticket, q Query) Outcome {
	result, err := c.RequestRoute(ctx, q)

	out := Outcome{Ticket: t, Query: q, Result: result, Err: err}
	out.Current = c.state.Apply(t, result, err)
	if !out.Current {
		c.logger.Debug().
			Uint64("ticket", uint64(t)).
			Msg("discarding superseded route response")
	}
	return out
}

// RequestRoute posts q to the routing endpoint and normalizes the response.
// Invalid queries fail with ErrInvalidInput without a network call; every
// endpoint failure wraps ErrRouteUnavailable. Nothing is retried.
func (c *Coordinator) RequestRoute(ctx context.Context, q Query) (*Result, error) {
	q.Mode = q.Mode.OrDefault()
	if err := q.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := c.requestRoute(ctx, q)
	if c.recorder != nil {
		c.recorder.RecordRequest(BackendProviderName, "route", time.Since(start), err)
	}
	if err != nil {
		c.logger.Warn().Err(err).
			Float64("origin_lat", q.Origin.Point.Lat).
			Float64("origin_lon", q.Origin.Point.Lon).
			Float64("dest_lat", q.Destination.Point.Lat).
			Float64("dest_lon", q.Destination.Point.Lon).
			Str("mode", string(q.Mode)).
			Msg("route request failed")
		return nil, err
	}

	c.logger.Debug().
		Int("points", len(result.Path)).
		Bool("has_duration", result.Duration != nil).
		Str("mode", string(q.Mode)).
		Msg("route received")

	return result, nil
}

func (c *Coordinator) requestRoute(ctx context.Context, q Query) (*Result, error) {
	payload, err := json.Marshal(routeRequest{
		Start:   q.Origin.Point,
		Dest:    q.Destination.Point,
		Vehicle: q.Mode,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding route request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &Error{
			Provider: BackendProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach routing endpoint",
			Err:      fmt.Errorf("%w: %w", ErrRouteUnavailable, err),
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &Error{
			Provider: BackendProviderName,
			Code:     "READ_FAILED",
			Message:  "failed to read route response",
			Err:      ErrRouteUnavailable,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{
			Provider: BackendProviderName,
			Code:     fmt.Sprintf("HTTP_%d", resp.StatusCode),
			Message:  fmt.Sprintf("routing endpoint returned status %d", resp.StatusCode),
			Err:      ErrRouteUnavailable,
		}
	}

	result, err := Normalize(body)
	if err != nil {
		var routeErr *Error
		if errors.As(err, &routeErr) {
			routeErr.Provider = BackendProviderName
		}
		return nil, err
	}
	return result, nil
}

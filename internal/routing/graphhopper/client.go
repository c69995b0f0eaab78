// Package graphhopper provides the upstream routing engine behind the route
// proxy, using the GraphHopper Routing API.
package graphhopper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/citymove/citymove/internal/geo"
	"github.com/citymove/citymove/internal/provider/resilience"
	"github.com/citymove/citymove/internal/routing"
)

const (
	// ProviderName identifies this routing provider.
	ProviderName = "graphhopper"

	// DefaultBaseURL is the GraphHopper API base URL.
	DefaultBaseURL = "https://graphhopper.com"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second
)

// vehicles maps travel modes to GraphHopper vehicle profiles.
var vehicles = map[routing.Mode]string{
	routing.ModeWalking: "foot",
	routing.ModeCycling: "bike",
	routing.ModeDriving: "car",
}

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the GraphHopper client.
type ClientConfig struct {
	// APIKey is the GraphHopper API key (required).
	APIKey string

	// BaseURL is the API base URL (optional, defaults to GraphHopper).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 10s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a GraphHopper Routing API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new GraphHopper client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		clientCfg.Registry = cfg.Registry
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// SupportedModes returns the supported travel modes.
func (c *Client) SupportedModes() []routing.Mode {
	return []routing.Mode{routing.ModeWalking, routing.ModeCycling, routing.ModeDriving}
}

// Vehicle returns the GraphHopper vehicle for mode.
func Vehicle(mode routing.Mode) (string, bool) {
	v, ok := vehicles[mode.OrDefault()]
	return v, ok
}

// GetDirections retrieves a route between two points.
func (c *Client) GetDirections(ctx context.Context, req routing.DirectionsRequest) (*routing.DirectionsResponse, error) {
	if err := req.Origin.Validate(); err != nil {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "INVALID_ORIGIN",
			Message:  "invalid origin coordinates",
			Err:      routing.ErrInvalidInput,
		}
	}
	if err := req.Destination.Validate(); err != nil {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "INVALID_DESTINATION",
			Message:  "invalid destination coordinates",
			Err:      routing.ErrInvalidInput,
		}
	}

	vehicle, ok := Vehicle(req.Mode)
	if !ok {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "UNSUPPORTED_MODE",
			Message:  fmt.Sprintf("travel mode %q not supported", req.Mode),
			Err:      routing.ErrInvalidInput,
		}
	}

	params := url.Values{}
	params.Add("point", formatPoint(req.Origin))
	params.Add("point", formatPoint(req.Destination))
	params.Set("vehicle", vehicle)
	params.Set("points_encoded", "false")
	params.Set("key", c.apiKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/1/route?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("vehicle", vehicle).
		Float64("origin_lat", req.Origin.Lat).
		Float64("origin_lon", req.Origin.Lon).
		Float64("dest_lat", req.Destination.Lat).
		Float64("dest_lon", req.Destination.Lon).
		Msg("requesting route from graphhopper")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach routing provider",
			Err:      routing.ErrProviderUnavailable,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse(resp.StatusCode, respBody)
	}

	var ghResp routeResponse
	if err := json.Unmarshal(respBody, &ghResp); err != nil {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "DECODE_FAILED",
			Message:  "malformed routing response",
			Err:      routing.ErrProviderUnavailable,
		}
	}

	result := toDirectionsResponse(&ghResp)

	c.logger.Debug().
		Int("route_count", len(result.Routes)).
		Msg("received route from graphhopper")

	return result, nil
}

// handleErrorResponse maps GraphHopper error responses to domain errors.
// The upstream message is kept so the proxy can pass it on.
func handleErrorResponse(statusCode int, body []byte) error {
	var ghErr errorResponse
	message := ""
	if err := json.Unmarshal(body, &ghErr); err == nil {
		message = ghErr.Message
	}
	if message == "" {
		message = fmt.Sprintf("routing provider returned status %d", statusCode)
	}

	switch {
	case statusCode == http.StatusTooManyRequests:
		return &routing.Error{Provider: ProviderName, Code: "RATE_LIMIT", Message: message, Err: routing.ErrRateLimitExceeded}
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return &routing.Error{Provider: ProviderName, Code: "UNAUTHORIZED", Message: message, Err: routing.ErrProviderUnavailable}
	case statusCode == http.StatusBadRequest:
		return &routing.Error{Provider: ProviderName, Code: "BAD_REQUEST", Message: message, Err: routing.ErrNoRouteFound}
	case statusCode >= 500:
		return &routing.Error{Provider: ProviderName, Code: fmt.Sprintf("SERVER_%d", statusCode), Message: message, Err: routing.ErrProviderUnavailable}
	default:
		return &routing.Error{Provider: ProviderName, Code: fmt.Sprintf("HTTP_%d", statusCode), Message: message, Err: routing.ErrProviderUnavailable}
	}
}

// toDirectionsResponse converts paths to routes, reversing [lng, lat] pairs.
func toDirectionsResponse(resp *routeResponse) *routing.DirectionsResponse {
	routes := make([]routing.Route, 0, len(resp.Paths))

	for i := range resp.Paths {
		p := &resp.Paths[i]
		route := routing.Route{
			Path:            make([]geo.Point, 0, len(p.Points.Coordinates)),
			DistanceMeters:  p.Distance,
			DurationSeconds: p.Time / 1000,
		}
		for _, c := range p.Points.Coordinates {
			if len(c) < 2 {
				continue
			}
			route.Path = append(route.Path, geo.Point{Lat: c[1], Lon: c[0]})
		}

		if len(p.BBox) >= 4 {
			route.BoundingBox = &geo.Bounds{
				Min: geo.Point{Lat: p.BBox[1], Lon: p.BBox[0]},
				Max: geo.Point{Lat: p.BBox[3], Lon: p.BBox[2]},
			}
		} else if b, ok := geo.BoundsOf(route.Path); ok {
			route.BoundingBox = &b
		}

		routes = append(routes, route)
	}

	return &routing.DirectionsResponse{
		Routes:    routes,
		Provider:  ProviderName,
		FetchedAt: time.Now(),
	}
}

func formatPoint(p geo.Point) string {
	return strconv.FormatFloat(p.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lon, 'f', -1, 64)
}

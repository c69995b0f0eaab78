// Package google provides the primary places provider: a Google Maps
// Geocoding API client and the once-per-process loader that activates it.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/citymove/citymove/internal/geo"
	"github.com/citymove/citymove/internal/geocode"
	"github.com/citymove/citymove/internal/provider/resilience"
)

const (
	// ProviderName identifies this geocoding provider.
	ProviderName = "google"

	// DefaultBaseURL is the Google Maps API base URL.
	DefaultBaseURL = "https://maps.googleapis.com/maps/api"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Google geocoding client.
type ClientConfig struct {
	// APIKey is the Maps API key. Without it the provider never activates.
	APIKey string

	// BaseURL is the API base URL (optional, defaults to Google).
	BaseURL string

	// Language is passed as the language parameter (optional).
	Language string

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

// Client is a Google Maps Geocoding API client.
type Client struct {
	apiKey     string
	baseURL    string
	language   string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new Google geocoding client.
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
		language:   cfg.Language,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Geocode resolves an address with the direct geocoding endpoint and returns
// the first result.
func (c *Client) Geocode(ctx context.Context, text string) (geo.Place, error) {
	resp, err := c.geocode(ctx, text)
	if err != nil {
		return geo.Place{}, err
	}

	switch resp.Status {
	case statusOK:
	case statusZeroResults:
		return geo.Place{}, &geocode.Error{
			Provider: ProviderName,
			Code:     resp.Status,
			Message:  "no results for query",
			Err:      geocode.ErrNoMatchFound,
		}
	default:
		return geo.Place{}, statusError(resp)
	}

	if len(resp.Results) == 0 || resp.Results[0].Geometry.Location == nil {
		return geo.Place{}, &geocode.Error{
			Provider: ProviderName,
			Code:     "NO_GEOMETRY",
			Message:  "first result has no geometry",
			Err:      geocode.ErrNoMatchFound,
		}
	}

	first := resp.Results[0]
	label := first.FormattedAddress
	if label == "" {
		label = text
	}

	c.logger.Debug().
		Str("query", text).
		Str("label", label).
		Float64("lat", first.Geometry.Location.Lat).
		Float64("lon", first.Geometry.Location.Lng).
		Msg("google geocoder result")

	return geo.Place{
		Label: label,
		Point: geo.Point{Lat: first.Geometry.Location.Lat, Lon: first.Geometry.Location.Lng},
	}, nil
}

// HealthCheck verifies the API key is accepted.
func (c *Client) HealthCheck(ctx context.Context) error {
	resp, err := c.geocode(ctx, "Plovdiv")
	if err != nil {
		return err
	}
	if resp.Status != statusOK && resp.Status != statusZeroResults {
		return statusError(resp)
	}
	return nil
}

func (c *Client) geocode(ctx context.Context, text string) (*geocodeResponse, error) {
	params := url.Values{}
	params.Set("address", text)
	params.Set("key", c.apiKey)
	if c.language != "" {
		params.Set("language", c.language)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/geocode/json?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &geocode.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach geocoding provider",
			Err:      geocode.ErrProviderUnavailable,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &geocode.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", resp.StatusCode),
			Message:  fmt.Sprintf("geocoding provider returned status %d", resp.StatusCode),
			Err:      geocode.ErrProviderUnavailable,
		}
	}

	var out geocodeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &geocode.Error{
			Provider: ProviderName,
			Code:     "DECODE_FAILED",
			Message:  "malformed geocoding response",
			Err:      geocode.ErrProviderUnavailable,
		}
	}
	return &out, nil
}

// statusError maps a non-OK API status to a domain error. Every such status
// makes the provider unusable for this request, so the chain falls back.
func statusError(resp *geocodeResponse) error {
	msg := resp.ErrorMessage
	if msg == "" {
		switch resp.Status {
		case statusOverQueryLimit:
			msg = "geocoding quota exceeded"
		case statusRequestDenied:
			msg = "geocoding request denied - check API key configuration"
		case statusInvalidRequest:
			msg = "invalid geocoding request"
		default:
			msg = "geocoding provider error"
		}
	}
	return &geocode.Error{
		Provider: ProviderName,
		Code:     resp.Status,
		Message:  msg,
		Err:      geocode.ErrProviderUnavailable,
	}
}

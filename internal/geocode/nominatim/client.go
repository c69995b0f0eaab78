// Package nominatim provides the public OpenStreetMap geocoding fallback.
package nominatim

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
	"golang.org/x/time/rate"

	"github.com/citymove/citymove/internal/geo"
	"github.com/citymove/citymove/internal/geocode"
	"github.com/citymove/citymove/internal/provider/resilience"
)

const (
	// ProviderName identifies this geocoding provider.
	ProviderName = "nominatim"

	// DefaultBaseURL is the public Nominatim instance.
	DefaultBaseURL = "https://nominatim.openstreetmap.org"

	// DefaultUserAgent identifies the application, as the usage policy requires.
	DefaultUserAgent = "citymove/1.0"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Nominatim client.
type ClientConfig struct {
	// BaseURL is the Nominatim base URL (optional).
	BaseURL string

	// UserAgent is sent with every request (optional).
	UserAgent string

	// Language is sent as Accept-Language (optional).
	Language string

	// RequestsPerSecond caps the request rate (default: 1, the public instance limit).
	// A negative value disables limiting.
	RequestsPerSecond float64

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

// Client is a Nominatim search client.
type Client struct {
	baseURL    string
	userAgent  string
	language   string
	limiter    *rate.Limiter
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// searchResult is one element of the /search response array.
type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// NewClient creates a new Nominatim client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	limit := rate.Limit(cfg.RequestsPerSecond)
	switch {
	case cfg.RequestsPerSecond == 0:
		limit = rate.Limit(1)
	case cfg.RequestsPerSecond < 0:
		limit = rate.Inf
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		clientCfg.Registry = cfg.Registry
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		baseURL:    baseURL,
		userAgent:  userAgent,
		language:   cfg.Language,
		limiter:    rate.NewLimiter(limit, 1),
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Geocode searches text and returns the first result.
func (c *Client) Geocode(ctx context.Context, text string) (geo.Place, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return geo.Place{}, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	params := url.Values{}
	params.Set("q", text)
	params.Set("format", "json")
	params.Set("limit", "1")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), http.NoBody)
	if err != nil {
		return geo.Place{}, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("Accept", "application/json")
	if c.language != "" {
		httpReq.Header.Set("Accept-Language", c.language)
	}

	c.logger.Debug().Str("query", text).Msg("nominatim search")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return geo.Place{}, &geocode.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach nominatim",
			Err:      geocode.ErrProviderUnavailable,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return geo.Place{}, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return geo.Place{}, &geocode.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", resp.StatusCode),
			Message:  fmt.Sprintf("nominatim returned status %d", resp.StatusCode),
			Err:      geocode.ErrProviderUnavailable,
		}
	}

	var results []searchResult
	if err := json.Unmarshal(body, &results); err != nil {
		return geo.Place{}, &geocode.Error{
			Provider: ProviderName,
			Code:     "DECODE_FAILED",
			Message:  "malformed nominatim response",
			Err:      geocode.ErrNoMatchFound,
		}
	}

	if len(results) == 0 {
		return geo.Place{}, &geocode.Error{
			Provider: ProviderName,
			Code:     "NO_RESULTS",
			Message:  "no results for query",
			Err:      geocode.ErrNoMatchFound,
		}
	}

	return toPlace(results[0], text)
}

// toPlace converts the first search result. Nominatim encodes coordinates as strings.
func toPlace(r searchResult, text string) (geo.Place, error) {
	lat, errLat := strconv.ParseFloat(r.Lat, 64)
	lon, errLon := strconv.ParseFloat(r.Lon, 64)
	if errLat != nil || errLon != nil {
		return geo.Place{}, &geocode.Error{
			Provider: ProviderName,
			Code:     "BAD_COORDINATES",
			Message:  fmt.Sprintf("unparseable coordinates %q,%q", r.Lat, r.Lon),
			Err:      geocode.ErrNoMatchFound,
		}
	}

	label := r.DisplayName
	if label == "" {
		label = text
	}

	return geo.Place{Label: label, Point: geo.Point{Lat: lat, Lon: lon}}, nil
}

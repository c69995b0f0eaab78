package routing

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// ServiceConfig holds configuration for the routing service.
type ServiceConfig struct {
	// Provider is the upstream routing engine.
	Provider Provider

	// Logger for service operations.
	Logger zerolog.Logger

	// CacheTTL is how long to cache routes (default: 10 minutes).
	CacheTTL time.Duration

	// CacheGridSize is the size of cache grid cells in degrees (default: 0.0001 ~ 11m).
	// Endpoints within the same grid cell share cached routes.
	CacheGridSize float64

	// StaleIfErrorTTL allows serving stale routes on provider errors (default: 1 hour).
	StaleIfErrorTTL time.Duration

	// CleanupInterval is how often to clean up expired entries (default: 5 minutes).
	CleanupInterval time.Duration

	// Recorder receives cache hits and misses (optional).
	Recorder CacheRecorder
}

// Service serves upstream routes with caching. Concurrent requests for the
// same cache key share one upstream call.
type Service struct {
	provider        Provider
	logger          zerolog.Logger
	cacheTTL        time.Duration
	cacheGridSize   float64
	staleIfErrorTTL time.Duration
	cleanupInterval time.Duration
	recorder        CacheRecorder

	group singleflight.Group

	mu          sync.RWMutex
	cache       map[string]*cachedRoute
	lastCleanup time.Time
}

type cachedRoute struct {
	response  *DirectionsResponse
	fetchedAt time.Time
	expiresAt time.Time
}

// NewService creates a new routing service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 10 * time.Minute
	}

	cacheGridSize := cfg.CacheGridSize
	if cacheGridSize == 0 {
		cacheGridSize = 0.0001
	}

	staleIfErrorTTL := cfg.StaleIfErrorTTL
	if staleIfErrorTTL == 0 {
		staleIfErrorTTL = time.Hour
	}

	cleanupInterval := cfg.CleanupInterval
	if cleanupInterval == 0 {
		cleanupInterval = 5 * time.Minute
	}

	return &Service{
		provider:        cfg.Provider,
		logger:          cfg.Logger,
		recorder:        cfg.Recorder,
		cacheTTL:        cacheTTL,
		cacheGridSize:   cacheGridSize,
		staleIfErrorTTL: staleIfErrorTTL,
		cleanupInterval: cleanupInterval,
		cache:           make(map[string]*cachedRoute),
	}
}

// GetDirections returns a route between two points for the request mode.
// Uses cached data if available and not expired.
func (s *Service) GetDirections(ctx context.Context, req DirectionsRequest) (*DirectionsResponse, error) {
	req.Mode = req.Mode.OrDefault()

	if err := req.Origin.Validate(); err != nil {
		return nil, &Error{
			Provider: s.provider.Name(),
			Code:     "INVALID_ORIGIN",
			Message:  "invalid origin coordinates",
			Err:      ErrInvalidInput,
		}
	}
	if err := req.Destination.Validate(); err != nil {
		return nil, &Error{
			Provider: s.provider.Name(),
			Code:     "INVALID_DESTINATION",
			Message:  "invalid destination coordinates",
			Err:      ErrInvalidInput,
		}
	}
	if !s.supports(req.Mode) {
		return nil, &Error{
			Provider: s.provider.Name(),
			Code:     "UNSUPPORTED_MODE",
			Message:  fmt.Sprintf("travel mode %q not supported", req.Mode),
			Err:      ErrInvalidInput,
		}
	}

	key := s.cacheKey(req)

	s.mu.RLock()
	if cached, ok := s.cache[key]; ok && time.Now().Before(cached.expiresAt) {
		s.mu.RUnlock()
		s.logger.Debug().Str("cache_key", key).Msg("route cache hit")
		if s.recorder != nil {
			s.recorder.RecordCacheHit(s.provider.Name(), "directions")
		}
		return cached.response, nil
	}
	s.mu.RUnlock()
	if s.recorder != nil {
		s.recorder.RecordCacheMiss(s.provider.Name(), "directions")
	}

	v, err, shared := s.group.Do(key, func() (any, error) {
		return s.fetch(ctx, req, key)
	})
	if shared {
		s.logger.Debug().Str("cache_key", key).Msg("shared in-flight route request")
	}
	if err != nil {
		return nil, err
	}
	return v.(*DirectionsResponse), nil
}

// FirstRoute returns the first route of GetDirections.
func (s *Service) FirstRoute(ctx context.Context, req DirectionsRequest) (*Route, error) {
	resp, err := s.GetDirections(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Routes) == 0 {
		return nil, &Error{
			Provider: s.provider.Name(),
			Code:     "NO_PATH",
			Message:  "provider returned no path",
			Err:      ErrNoRouteFound,
		}
	}
	return &resp.Routes[0], nil
}

// fetch calls the provider and updates the cache. On provider failure a
// stale entry within the stale-if-error window is served instead.
func (s *Service) fetch(ctx context.Context, req DirectionsRequest, key string) (*DirectionsResponse, error) {
	s.logger.Debug().
		Float64("origin_lat", req.Origin.Lat).
		Float64("origin_lon", req.Origin.Lon).
		Float64("dest_lat", req.Destination.Lat).
		Float64("dest_lon", req.Destination.Lon).
		Str("mode", string(req.Mode)).
		Str("provider", s.provider.Name()).
		Msg("fetching route from provider")

	resp, err := s.provider.GetDirections(ctx, req)
	if err != nil {
		s.logger.Error().Err(err).
			Str("cache_key", key).
			Str("mode", string(req.Mode)).
			Msg("failed to fetch route")

		s.mu.RLock()
		cached, ok := s.cache[key]
		s.mu.RUnlock()
		if ok && time.Now().Before(cached.fetchedAt.Add(s.staleIfErrorTTL)) {
			s.logger.Warn().
				Time("fetched_at", cached.fetchedAt).
				Str("cache_key", key).
				Msg("serving stale route due to provider error")
			return cached.response, nil
		}
		return nil, err
	}

	now := time.Now()
	s.mu.Lock()
	s.cache[key] = &cachedRoute{
		response:  resp,
		fetchedAt: now,
		expiresAt: now.Add(s.cacheTTL),
	}
	s.cleanupIfNeeded(now)
	s.mu.Unlock()

	s.logger.Debug().
		Str("cache_key", key).
		Int("route_count", len(resp.Routes)).
		Msg("cached route response")

	return resp, nil
}

// cacheKey quantizes both endpoints to the cache grid.
// Format: {mode}:{originLat},{originLon}:{destLat},{destLon}.
func (s *Service) cacheKey(req DirectionsRequest) string {
	snap := func(v float64) float64 {
		return math.Floor(v/s.cacheGridSize) * s.cacheGridSize
	}
	return fmt.Sprintf("%s:%.4f,%.4f:%.4f,%.4f",
		req.Mode,
		snap(req.Origin.Lat), snap(req.Origin.Lon),
		snap(req.Destination.Lat), snap(req.Destination.Lon),
	)
}

// cleanupIfNeeded drops entries past the stale window. Callers hold s.mu.
func (s *Service) cleanupIfNeeded(now time.Time) {
	if now.Sub(s.lastCleanup) < s.cleanupInterval {
		return
	}
	s.lastCleanup = now

	expired := 0
	for key, cached := range s.cache {
		if now.After(cached.fetchedAt.Add(s.staleIfErrorTTL)) {
			delete(s.cache, key)
			expired++
		}
	}

	if expired > 0 {
		s.logger.Debug().
			Int("expired_entries", expired).
			Msg("cleaned up expired route cache entries")
	}
}

// InvalidateCache clears all cached routes.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*cachedRoute)
}

// CacheStats contains cache statistics.
type CacheStats struct {
	TotalEntries int
	FreshEntries int
	StaleEntries int
	Provider     string
}

// CacheStats returns cache statistics.
func (s *Service) CacheStats() CacheStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	stats := CacheStats{TotalEntries: len(s.cache), Provider: s.provider.Name()}
	for _, c := range s.cache {
		switch {
		case now.Before(c.expiresAt):
			stats.FreshEntries++
		case now.Before(c.fetchedAt.Add(s.staleIfErrorTTL)):
			stats.StaleEntries++
		}
	}
	return stats
}

// ProviderName returns the name of the underlying provider.
func (s *Service) ProviderName() string {
	return s.provider.Name()
}

// supports reports whether the provider serves mode.
func (s *Service) supports(mode Mode) bool {
	for _, m := range s.provider.SupportedModes() {
		if m == mode {
			return true
		}
	}
	return false
}

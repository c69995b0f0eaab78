package handler

import (
	"net/http"
	"time"

	"github.com/citymove/citymove/internal/api/models"
	"github.com/citymove/citymove/internal/api/response"
	"github.com/citymove/citymove/internal/provider/resilience"
	"github.com/citymove/citymove/internal/routing"
)

// RouteCache reports route cache statistics.
type RouteCache interface {
	CacheStats() routing.CacheStats
}

// OpsConfig configures an OpsHandler.
type OpsConfig struct {
	Version   string
	BuildTime string
	// Registry tracks upstream provider health (optional).
	Registry *resilience.Registry
	// RouteCache is the route proxy cache (optional).
	RouteCache RouteCache
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version    string
	buildTime  string
	registry   *resilience.Registry
	routeCache RouteCache
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{
		version:    cfg.Version,
		buildTime:  cfg.BuildTime,
		registry:   cfg.Registry,
		routeCache: cfg.RouteCache,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]any{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. The API is not ready when every
// registered provider has an open circuit.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	providers := h.providerStatuses()
	status := overallStatus(providers)

	code := http.StatusOK
	if status == models.HealthStatusFail {
		code = http.StatusServiceUnavailable
	}
	response.JSON(w, r, code, models.Health{
		Status: status,
		Time:   models.Timestamp(time.Now()),
	})
}

// SystemStatus handles GET /v1/ops/status - provider and cache status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	providers := h.providerStatuses()
	status := models.SystemStatus{
		Status:    overallStatus(providers),
		Time:      models.Timestamp(time.Now()),
		Version:   h.version,
		Providers: providers,
	}
	if h.routeCache != nil {
		stats := h.routeCache.CacheStats()
		status.RouteCache = &models.CacheStatus{
			Entries:      stats.TotalEntries,
			ValidEntries: stats.FreshEntries,
		}
	}
	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) providerStatuses() []models.ProviderStatus {
	if h.registry == nil {
		return []models.ProviderStatus{}
	}

	all := h.registry.GetAllHealth()
	out := make([]models.ProviderStatus, 0, len(all))
	for _, ph := range all {
		ps := models.ProviderStatus{
			Provider:            ph.Name,
			Status:              models.HealthStatusOK,
			CircuitState:        ph.CircuitState.String(),
			ConsecutiveFailures: ph.Counts.ConsecutiveFailures,
		}
		switch {
		case ph.IsUnhealthy():
			ps.Status = models.HealthStatusFail
		case ph.IsDegraded():
			ps.Status = models.HealthStatusDegraded
		}
		if ph.LastSuccessAt != nil {
			ts := models.Timestamp(*ph.LastSuccessAt)
			ps.LastSuccessAt = &ts
		}
		if ph.LastFailureAt != nil {
			ts := models.Timestamp(*ph.LastFailureAt)
			ps.LastFailureAt = &ts
		}
		if ph.LastError != "" {
			msg := ph.LastError
			ps.Message = &msg
		}
		out = append(out, ps)
	}
	return out
}

// overallStatus is FAIL when every provider failed, DEGRADED when some did,
// and OK otherwise.
func overallStatus(providers []models.ProviderStatus) models.HealthStatus {
	failed, degraded := 0, 0
	for _, p := range providers {
		switch p.Status {
		case models.HealthStatusFail:
			failed++
		case models.HealthStatusDegraded:
			degraded++
		}
	}
	switch {
	case len(providers) > 0 && failed == len(providers):
		return models.HealthStatusFail
	case failed > 0 || degraded > 0:
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusOK
	}
}

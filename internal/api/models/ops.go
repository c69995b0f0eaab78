package models

// Health is the body of the liveness and readiness probes.
type Health struct {
	Status  HealthStatus   `json:"status"`
	Time    Timestamp      `json:"time"`
	Details map[string]any `json:"details,omitempty"`
}

// SystemStatus reports the API and the state of every upstream provider.
type SystemStatus struct {
	Status     HealthStatus     `json:"status"`
	Time       Timestamp        `json:"time"`
	Version    string           `json:"version"`
	Providers  []ProviderStatus `json:"providers"`
	RouteCache *CacheStatus     `json:"routeCache,omitempty"`
}

// ProviderStatus is the health of one upstream provider.
type ProviderStatus struct {
	Provider            string       `json:"provider"`
	Status              HealthStatus `json:"status"`
	CircuitState        string       `json:"circuitState"`
	ConsecutiveFailures uint32       `json:"consecutiveFailures"`
	LastSuccessAt       *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *Timestamp   `json:"lastFailureAt,omitempty"`
	Message             *string      `json:"message,omitempty"`
}

// CacheStatus summarizes the route cache.
type CacheStatus struct {
	Entries      int `json:"entries"`
	ValidEntries int `json:"validEntries"`
}

package google

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/citymove/citymove/internal/geo"
	"github.com/citymove/citymove/internal/geocode"
)

// defaultProbeTimeout bounds the activation probe.
const defaultProbeTimeout = 5 * time.Second

// LoaderConfig holds configuration for the loader.
type LoaderConfig struct {
	// Client configures the client built on first use.
	Client ClientConfig

	// Probe verifies the credential with one request during activation.
	Probe bool

	// ProbeTimeout bounds the probe (default: 5s).
	ProbeTimeout time.Duration

	// Logger for loader operations.
	Logger zerolog.Logger
}

// Loader activates the primary provider lazily, exactly once per process.
// Every caller, concurrent or reentrant, observes the outcome of that single
// activation. A missing key or failed probe leaves the provider unavailable
// and resolution falls through to the fallback geocoder.
type Loader struct {
	cfg    LoaderConfig
	logger zerolog.Logger

	once   sync.Once
	client *Client
	err    error
}

// NewLoader creates a loader. Nothing is contacted until first use.
func NewLoader(cfg LoaderConfig) *Loader {
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = defaultProbeTimeout
	}
	return &Loader{cfg: cfg, logger: cfg.Logger}
}

// Load returns the activated client, activating it on the first call.
func (l *Loader) Load(ctx context.Context) (*Client, error) {
	l.once.Do(func() {
		l.client, l.err = l.activate(ctx)
	})
	return l.client, l.err
}

func (l *Loader) activate(ctx context.Context) (*Client, error) {
	if l.cfg.Client.APIKey == "" {
		l.logger.Info().Msg("google maps key not configured, using fallback geocoder")
		return nil, &geocode.Error{
			Provider: ProviderName,
			Code:     "NO_CREDENTIAL",
			Message:  "google maps key not configured",
			Err:      geocode.ErrProviderUnavailable,
		}
	}

	client := NewClient(l.cfg.Client)

	if l.cfg.Probe {
		// The outcome is shared by every later caller, so the first caller's
		// cancellation must not decide it.
		probeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.cfg.ProbeTimeout)
		defer cancel()

		if err := client.HealthCheck(probeCtx); err != nil {
			l.logger.Warn().Err(err).Msg("google maps failed to load, using fallback geocoder")
			return nil, &geocode.Error{
				Provider: ProviderName,
				Code:     "LOAD_FAILED",
				Message:  "google maps failed to load",
				Err:      geocode.ErrProviderUnavailable,
			}
		}
	}

	l.logger.Info().Bool("probed", l.cfg.Probe).Msg("google maps provider active")
	return client, nil
}

// Name returns the provider name.
func (l *Loader) Name() string {
	return ProviderName
}

// Available reports whether activation succeeded.
func (l *Loader) Available(ctx context.Context) bool {
	_, err := l.Load(ctx)
	return err == nil
}

// Geocode activates the provider if needed and geocodes text.
func (l *Loader) Geocode(ctx context.Context, text string) (geo.Place, error) {
	client, err := l.Load(ctx)
	if err != nil {
		return geo.Place{}, err
	}
	return client.Geocode(ctx, text)
}

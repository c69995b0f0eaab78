package google

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citymove/citymove/internal/geocode"
)

func TestLoader_NoCredential(t *testing.T) {
	loader := NewLoader(LoaderConfig{Logger: zerolog.Nop()})

	client, err := loader.Load(context.Background())
	assert.Nil(t, client)
	assert.ErrorIs(t, err, geocode.ErrProviderUnavailable)
	assert.False(t, loader.Available(context.Background()))

	_, err = loader.Geocode(context.Background(), "Plovdiv")
	assert.ErrorIs(t, err, geocode.ErrProviderUnavailable)
}

func TestLoader_ProbesOnceUnderConcurrency(t *testing.T) {
	var probes atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("address") == "Plovdiv" {
			probes.Add(1)
		}
		_, _ = w.Write([]byte(`{"status":"OK","results":[{"formatted_address":"Plovdiv, Bulgaria","geometry":{"location":{"lat":42.1354,"lng":24.7453}}}]}`))
	}))
	defer server.Close()

	loader := NewLoader(LoaderConfig{
		Client: ClientConfig{
			APIKey:     "test-key",
			BaseURL:    server.URL,
			HTTPClient: server.Client(),
			Logger:     zerolog.Nop(),
		},
		Probe:  true,
		Logger: zerolog.Nop(),
	})

	const callers = 16
	clients := make([]*Client, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := loader.Load(context.Background())
			assert.NoError(t, err)
			clients[i] = c
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), probes.Load())
	for _, c := range clients {
		assert.Same(t, clients[0], c)
	}
	assert.True(t, loader.Available(context.Background()))
	assert.Equal(t, int32(1), probes.Load())
}

func TestLoader_FailedProbeStaysUnavailable(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"status":"REQUEST_DENIED"}`))
	}))
	defer server.Close()

	loader := NewLoader(LoaderConfig{
		Client: ClientConfig{APIKey: "bad", BaseURL: server.URL, HTTPClient: server.Client()},
		Probe:  true,
		Logger: zerolog.Nop(),
	})

	for i := 0; i < 3; i++ {
		_, err := loader.Load(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, geocode.ErrProviderUnavailable)
	}
	assert.Equal(t, int32(1), calls.Load(), "activation must not be retried")
}

func TestLoader_FirstCallerCancellationDoesNotDecideOutcome(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"OK","results":[]}`))
	}))
	defer server.Close()

	loader := NewLoader(LoaderConfig{
		Client: ClientConfig{APIKey: "k", BaseURL: server.URL, HTTPClient: server.Client()},
		Probe:  true,
		Logger: zerolog.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := loader.Load(ctx)
	assert.NoError(t, err)
	assert.True(t, loader.Available(context.Background()))
}

//go:build integration
// +build integration

package testhelpers

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/kjstillabower/weather-gateway/internal/cache"
	"github.com/kjstillabower/weather-gateway/internal/client"
	"github.com/kjstillabower/weather-gateway/internal/service"
)

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	APIKey        string
	BaseURL       string
	CacheBackend  string // "in_memory", "valkey" or "memcached"
	ValkeyAddr    string
	MemcachedAddr string
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips the test if WEATHER_API_KEY is not set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	apiKey := os.Getenv("WEATHER_API_KEY")
	if apiKey == "" {
		t.Skip("WEATHER_API_KEY not set, skipping integration test")
	}
	return IntegrationTestConfig{
		APIKey:        apiKey,
		BaseURL:       envOr("WEATHER_API_BASE_URL", "https://api.openweathermap.org"),
		CacheBackend:  envOr("INTEGRATION_CACHE_BACKEND", "in_memory"),
		ValkeyAddr:    envOr("VALKEY_ADDR", "localhost:6379"),
		MemcachedAddr: envOr("MEMCACHED_ADDRS", "localhost:11211"),
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// SetupIntegrationStore returns the configured cache backend, falling back to
// the in-memory store when the backend is unreachable.
func SetupIntegrationStore(t *testing.T, cfg IntegrationTestConfig) cache.Store {
	t.Helper()
	var store cache.Store
	switch cfg.CacheBackend {
	case "valkey":
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		vc, err := cache.NewValkeyCache(ctx, cache.ValkeyConfig{Address: cfg.ValkeyAddr, KeyPrefix: "weathergw-it"})
		if err != nil {
			t.Logf("Valkey not available (%v), using in-memory cache", err)
			break
		}
		t.Logf("Using Valkey cache at %s", cfg.ValkeyAddr)
		store = vc
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddr, 500*time.Millisecond, 2)
		if err == nil {
			err = mc.Ping(context.Background())
		}
		if err != nil {
			t.Logf("Memcached not available (%v), using in-memory cache", err)
			break
		}
		t.Logf("Using Memcached cache at %s", cfg.MemcachedAddr)
		store = mc
	}
	if store == nil {
		store = cache.NewInMemoryCache()
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// SetupIntegrationClient creates a provider client against the live API.
func SetupIntegrationClient(t *testing.T, cfg IntegrationTestConfig) *client.OpenWeatherClient {
	t.Helper()
	c, err := client.NewOpenWeatherClient(cfg.APIKey, client.DefaultEndpoints(cfg.BaseURL), 5*time.Second)
	if err != nil {
		t.Fatalf("NewOpenWeatherClient() error = %v", err)
	}
	return c
}

// SetupIntegrationService wires a live client and the configured store into a WeatherService.
func SetupIntegrationService(t *testing.T, cfg IntegrationTestConfig) (*service.WeatherService, *client.OpenWeatherClient, cache.Store) {
	t.Helper()
	c := SetupIntegrationClient(t, cfg)
	store := SetupIntegrationStore(t, cfg)
	return service.NewWeatherService(c, store, service.Options{}), c, store
}

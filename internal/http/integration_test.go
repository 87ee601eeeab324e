//go:build integration
// +build integration

package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-gateway/internal/auth"
	"github.com/kjstillabower/weather-gateway/internal/cache"
	"github.com/kjstillabower/weather-gateway/internal/client"
	"github.com/kjstillabower/weather-gateway/internal/lifecycle"
	"github.com/kjstillabower/weather-gateway/internal/models"
	"github.com/kjstillabower/weather-gateway/internal/ratelimit"
	"github.com/kjstillabower/weather-gateway/internal/service"
	"github.com/kjstillabower/weather-gateway/internal/testhelpers"
	"github.com/kjstillabower/weather-gateway/internal/traffic"
)

// setupIntegrationRouter wires the live provider and the configured cache
// backend behind the full router. Returns the router and the store for test setup.
func setupIntegrationRouter(t *testing.T, limiter *ratelimit.KeyedLimiter) (http.Handler, cache.Store, *auth.Authenticator) {
	t.Helper()
	cfg := testhelpers.GetIntegrationConfig(t)
	svc, c, store := testhelpers.SetupIntegrationService(t, cfg)

	a, err := auth.NewAuthenticator(auth.Config{Secret: "integration-secret"})
	if err != nil {
		t.Fatalf("NewAuthenticator: %v", err)
	}
	h := NewHandler(svc, c, traffic.NewTracker(), lifecycle.New(), nil, zap.NewNop())
	router := NewRouter(RouterConfig{
		Handler:        h,
		Authenticator:  a,
		Limiter:        limiter,
		InFlight:       &InFlightTracker{},
		APIPrefix:      "/api",
		RequestTimeout: 15 * time.Second,
	})
	return router, store, a
}

func integrationGet(t *testing.T, router http.Handler, a *auth.Authenticator, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if a != nil {
		token, err := a.IssueToken("integration", time.Hour)
		if err != nil {
			t.Fatalf("IssueToken: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// TestIntegration_GetWeather_CacheHit verifies a pre-populated entry is served
// as stored, without reaching the provider.
func TestIntegration_GetWeather_CacheHit(t *testing.T) {
	router, store, a := setupIntegrationRouter(t, nil)

	city := "integration-cached-city"
	want := models.WeatherResponse{City: "Cached, XX", Temperature: "1.5°C (feels like 0.0°C)"}
	raw, _ := json.Marshal(want)
	if err := store.Set(context.Background(), service.WeatherKey(city), raw, time.Minute); err != nil {
		t.Fatalf("populate cache: %v", err)
	}

	w := integrationGet(t, router, a, "/api/weather/"+city)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200. Body: %s", w.Code, w.Body.String())
	}
	var got models.WeatherResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.City != want.City || got.Temperature != want.Temperature {
		t.Errorf("response = %+v, want cached %+v", got, want)
	}
}

// TestIntegration_GetWeather_CacheMiss verifies a live fetch populates the cache.
func TestIntegration_GetWeather_CacheMiss(t *testing.T) {
	router, store, a := setupIntegrationRouter(t, nil)

	w := integrationGet(t, router, a, "/api/weather/London")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200. Body: %s", w.Code, w.Body.String())
	}
	var first models.WeatherResponse
	if err := json.NewDecoder(w.Body).Decode(&first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(first.City, "London") {
		t.Errorf("City = %q, want London prefix", first.City)
	}
	if _, ok, err := store.Get(context.Background(), "weather:london"); err != nil || !ok {
		t.Fatalf("cache entry weather:london missing (ok=%v err=%v)", ok, err)
	}

	w2 := integrationGet(t, router, a, "/api/weather/london")
	var second models.WeatherResponse
	if err := json.NewDecoder(w2.Body).Decode(&second); err != nil {
		t.Fatalf("decode second: %v", err)
	}
	if second.DataCalculatedAt != first.DataCalculatedAt {
		t.Errorf("second response not from cache: %q vs %q", second.DataCalculatedAt, first.DataCalculatedAt)
	}
}

// TestIntegration_UpstreamStatus verifies a provider 401 is reported as 500 on
// /weather and keeps its status on /map.
func TestIntegration_UpstreamStatus(t *testing.T) {
	cfg := testhelpers.GetIntegrationConfig(t)
	c, err := client.NewOpenWeatherClient("invalid_key_for_testing_123456789012", client.DefaultEndpoints(cfg.BaseURL), 5*time.Second)
	if err != nil {
		t.Fatalf("NewOpenWeatherClient() error = %v", err)
	}
	svc := service.NewWeatherService(c, cache.NewInMemoryCache(), service.Options{})
	router := NewRouter(RouterConfig{Handler: NewHandler(svc, c, nil, nil, nil, zap.NewNop()), APIPrefix: "/api"})

	w := integrationGet(t, router, nil, "/api/weather/London")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("weather status = %d, want 500. Body: %s", w.Code, w.Body.String())
	}
	if got := decodeError(t, w).Error.Code; got != CodeUpstreamError {
		t.Errorf("weather code = %q, want %q", got, CodeUpstreamError)
	}

	w = integrationGet(t, router, nil, "/api/map/London")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("map status = %d, want 401. Body: %s", w.Code, w.Body.String())
	}
	if got := decodeError(t, w).Error.Code; got != CodeUpstreamError {
		t.Errorf("map code = %q, want %q", got, CodeUpstreamError)
	}
}

func TestIntegration_UVIndexAndMap(t *testing.T) {
	router, _, a := setupIntegrationRouter(t, nil)

	if w := integrationGet(t, router, a, "/api/uv_index/London"); w.Code != http.StatusOK {
		t.Errorf("uv_index status = %d. Body: %s", w.Code, w.Body.String())
	}
	if w := integrationGet(t, router, a, "/api/map/Paris"); w.Code != http.StatusOK {
		t.Errorf("map status = %d. Body: %s", w.Code, w.Body.String())
	}
	if w := integrationGet(t, router, a, "/api/map/Xqzvtplkjh"); w.Code != http.StatusNotFound {
		t.Errorf("map unknown city status = %d, want 404", w.Code)
	}
}

func TestIntegration_GetHealth_FullStack(t *testing.T) {
	router, _, _ := setupIntegrationRouter(t, nil)

	w := integrationGet(t, router, nil, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200. Body: %s", w.Code, w.Body.String())
	}
}

func TestIntegration_GetMetrics_Format(t *testing.T) {
	router, _, a := setupIntegrationRouter(t, nil)
	integrationGet(t, router, a, "/api/map/London")

	w := integrationGet(t, router, nil, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	for _, name := range []string{"httpRequestsTotal", "weatherApiCallsTotal", "cacheMissesTotal"} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}

func TestIntegration_RateLimiting_Enforcement(t *testing.T) {
	limiter := ratelimit.New(ratelimit.Config{Requests: 3, Window: time.Minute})
	router, _, a := setupIntegrationRouter(t, limiter)

	var denied int
	for i := 0; i < 5; i++ {
		if w := integrationGet(t, router, a, "/api/map/London"); w.Code == http.StatusTooManyRequests {
			denied++
		}
	}
	if denied != 2 {
		t.Errorf("denied = %d, want 2", denied)
	}
}

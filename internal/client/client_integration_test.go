//go:build integration
// +build integration

package client

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"testing"
	"time"
)

func isValidAPIKeyFormat(key string) error {
	if len(key) != 32 {
		return fmt.Errorf("API key length is %d, expected 32", len(key))
	}

	hexPattern := regexp.MustCompile(`^[0-9a-fA-F]+$`)
	if !hexPattern.MatchString(key) {
		return fmt.Errorf("API key contains non-hexadecimal characters")
	}

	return nil
}

func liveClient(t *testing.T) *OpenWeatherClient {
	t.Helper()
	apiKey := os.Getenv("WEATHER_API_KEY")
	if apiKey == "" {
		t.Skip("WEATHER_API_KEY not set, skipping integration test")
	}
	if err := isValidAPIKeyFormat(apiKey); err != nil {
		t.Fatalf("API key format validation failed: %v", err)
	}

	client, err := NewOpenWeatherClient(apiKey, DefaultEndpoints("https://api.openweathermap.org"), 5*time.Second)
	if err != nil {
		t.Fatalf("NewOpenWeatherClient() error = %v", err)
	}
	return client
}

func TestOpenWeatherClient_ValidateAPIKey_Integration(t *testing.T) {
	client := liveClient(t)
	if err := client.ValidateAPIKey(context.Background()); err != nil {
		t.Errorf("ValidateAPIKey() error = %v, want nil (API key may not be activated yet)", err)
	}
}

func TestOpenWeatherClient_FetchWeather_Integration(t *testing.T) {
	client := liveClient(t)

	payload, err := client.FetchWeather(context.Background(), "London")
	if err != nil {
		t.Fatalf("FetchWeather() error = %v (API key may not be activated yet)", err)
	}
	if payload.Name == "" {
		t.Error("FetchWeather() returned empty city name")
	}
	if len(payload.Weather) == 0 {
		t.Error("FetchWeather() returned no conditions")
	}
}

func TestOpenWeatherClient_FetchCoordinates_Integration(t *testing.T) {
	client := liveClient(t)

	coords, err := client.FetchCoordinates(context.Background(), "London")
	if err != nil {
		t.Fatalf("FetchCoordinates() error = %v", err)
	}
	if coords.Lat < 51 || coords.Lat > 52 {
		t.Errorf("FetchCoordinates() lat = %v, want about 51.5", coords.Lat)
	}
}

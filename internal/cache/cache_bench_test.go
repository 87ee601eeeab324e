package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/kjstillabower/weather-gateway/internal/models"
)

// sampleEntry returns a serialized weather response of realistic size.
func sampleEntry(b *testing.B) []byte {
	b.Helper()
	raw, err := json.Marshal(models.WeatherResponse{
		City:        "London, GB",
		Coordinates: "(51.5085, -0.1257)",
		Temperature: "15.5°C (Feels like: 14.8°C)",
		Weather:     "Scattered clouds",
		Humidity:    "65%",
		Pressure:    "1012 hPa",
		Wind:        "3.2 m/s at 240°",
	})
	if err != nil {
		b.Fatalf("marshal: %v", err)
	}
	return raw
}

func BenchmarkInMemoryCache_Get_Hit(b *testing.B) {
	cache := NewInMemoryCache()
	ctx := context.Background()
	_ = cache.Set(ctx, "weather:london", sampleEntry(b), 5*time.Minute)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = cache.Get(ctx, "weather:london")
	}
}

func BenchmarkInMemoryCache_Get_Miss(b *testing.B) {
	cache := NewInMemoryCache()
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = cache.Get(ctx, "nonexistent")
	}
}

func BenchmarkInMemoryCache_Set(b *testing.B) {
	cache := NewInMemoryCache()
	ctx := context.Background()
	entry := sampleEntry(b)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cache.Set(ctx, "weather:london", entry, 5*time.Minute)
	}
}

// BenchmarkInMemoryCache_Concurrent benchmarks parallel reads of one hot key.
func BenchmarkInMemoryCache_Concurrent(b *testing.B) {
	cache := NewInMemoryCache()
	ctx := context.Background()
	_ = cache.Set(ctx, "weather:london", sampleEntry(b), 5*time.Minute)

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _, _ = cache.Get(ctx, "weather:london")
		}
	})
}

// BenchmarkLazyStore_Get measures the mutex overhead LazyStore adds after connecting.
func BenchmarkLazyStore_Get(b *testing.B) {
	backing := NewInMemoryCache()
	lazy := NewLazyStore(func(ctx context.Context) (Store, error) { return backing, nil })
	ctx := context.Background()
	_ = lazy.Set(ctx, "weather:london", sampleEntry(b), 5*time.Minute)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = lazy.Get(ctx, "weather:london")
	}
}

func BenchmarkInMemoryCache_ManyKeys(b *testing.B) {
	cache := NewInMemoryCache()
	ctx := context.Background()
	entry := sampleEntry(b)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cache.Set(ctx, "historical_weather:london:"+strconv.Itoa(i), entry, 5*time.Minute)
	}
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-gateway/internal/cache"
	"github.com/kjstillabower/weather-gateway/internal/client"
	"github.com/kjstillabower/weather-gateway/internal/format"
	"github.com/kjstillabower/weather-gateway/internal/models"
	"github.com/kjstillabower/weather-gateway/internal/observability"
)

// DefaultTTL is how long a formatted response stays cached.
const DefaultTTL = 300 * time.Second

// DefaultSharedFetchTimeout bounds a coalesced fetch, which no longer follows
// any single caller's context.
const DefaultSharedFetchTimeout = 15 * time.Second

// ErrCacheStore marks a failed cache read or write. The request fails; the
// provider is not used as a fallback.
var ErrCacheStore = errors.New("cache store error")

// Options configures a WeatherService.
type Options struct {
	TTL time.Duration
	// Coalesce shares one provider fetch among concurrent misses on the same key.
	Coalesce bool
	// SharedFetchTimeout bounds a coalesced fetch. Zero means DefaultSharedFetchTimeout.
	SharedFetchTimeout time.Duration
}

// WeatherService serves formatted weather resources using cache-aside over the
// provider client. Each miss fetches once and writes once; failed fetches are
// never cached.
type WeatherService struct {
	client          client.WeatherClient
	store           cache.Store
	ttl             time.Duration
	sharedTimeout   time.Duration
	stampedeTracker *stampedeTracker
	coalescer       *requestCoalescer
}

func NewWeatherService(c client.WeatherClient, store cache.Store, opts Options) *WeatherService {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	sharedTimeout := opts.SharedFetchTimeout
	if sharedTimeout <= 0 {
		sharedTimeout = DefaultSharedFetchTimeout
	}
	var coalescer *requestCoalescer
	if opts.Coalesce {
		coalescer = newRequestCoalescer()
	}
	return &WeatherService{
		client:          c,
		store:           store,
		ttl:             ttl,
		sharedTimeout:   sharedTimeout,
		stampedeTracker: newStampedeTracker(),
		coalescer:       coalescer,
	}
}

func (s *WeatherService) GetWeather(ctx context.Context, city string) (models.WeatherResponse, error) {
	return getOrFetch(ctx, s, ResourceWeather, WeatherKey(city), func(ctx context.Context) (models.WeatherResponse, error) {
		p, err := s.client.FetchWeather(ctx, strings.TrimSpace(city))
		if err != nil {
			return models.WeatherResponse{}, err
		}
		return format.Weather(p), nil
	})
}

func (s *WeatherService) GetForecast(ctx context.Context, city string) (models.ForecastResponse, error) {
	return getOrFetch(ctx, s, ResourceForecast, ForecastKey(city), func(ctx context.Context) (models.ForecastResponse, error) {
		p, err := s.client.FetchForecast(ctx, strings.TrimSpace(city))
		if err != nil {
			return models.ForecastResponse{}, err
		}
		return format.Forecast(p), nil
	})
}

func (s *WeatherService) GetAirPollution(ctx context.Context, city string) (models.AirPollutionResponse, error) {
	return getOrFetch(ctx, s, ResourceAirPollution, AirPollutionKey(city), func(ctx context.Context) (models.AirPollutionResponse, error) {
		p, err := s.client.FetchAirPollution(ctx, strings.TrimSpace(city))
		if err != nil {
			return models.AirPollutionResponse{}, err
		}
		return format.AirPollution(p)
	})
}

// GetHistoricalWeather returns conditions for city at timestamp, the unix time
// of a UTC midnight produced by validation.ParseDate.
func (s *WeatherService) GetHistoricalWeather(ctx context.Context, city string, timestamp int64) (models.HistoricalWeatherResponse, error) {
	key := HistoricalWeatherKey(city, timestamp)
	return getOrFetch(ctx, s, ResourceHistoricalWeather, key, func(ctx context.Context) (models.HistoricalWeatherResponse, error) {
		p, err := s.client.FetchHistoricalWeather(ctx, strings.TrimSpace(city), timestamp)
		if err != nil {
			return models.HistoricalWeatherResponse{}, err
		}
		return format.HistoricalWeather(p), nil
	})
}

// ResolveCoordinates geocodes city. The result is not cached.
func (s *WeatherService) ResolveCoordinates(ctx context.Context, city string) (models.Coordinates, error) {
	return s.client.FetchCoordinates(ctx, strings.TrimSpace(city))
}

// GetUVIndex is keyed by coordinates; callers resolve them with ResolveCoordinates first.
func (s *WeatherService) GetUVIndex(ctx context.Context, coords models.Coordinates) (models.UVIndexResponse, error) {
	return getOrFetch(ctx, s, ResourceUVIndex, UVIndexKey(coords), func(ctx context.Context) (models.UVIndexResponse, error) {
		p, err := s.client.FetchUVIndex(ctx, coords)
		if err != nil {
			return models.UVIndexResponse{}, err
		}
		return format.UVIndex(p), nil
	})
}

// GetMap checks map:{city} first and geocodes only on a miss. Spellings that
// normalize alike share the entry; the response always echoes this caller's
// trimmed city.
func (s *WeatherService) GetMap(ctx context.Context, city string) (models.MapResponse, error) {
	trimmed := strings.TrimSpace(city)
	result, err := getOrFetch(ctx, s, ResourceMap, MapKey(city), func(ctx context.Context) (models.MapResponse, error) {
		coords, err := s.client.FetchCoordinates(ctx, trimmed)
		if err != nil {
			return models.MapResponse{}, err
		}
		return models.MapResponse{City: trimmed, Latitude: coords.Lat, Longitude: coords.Lon}, nil
	})
	if err != nil {
		return models.MapResponse{}, err
	}
	result.City = trimmed
	return result, nil
}

// Ping reports whether the cache store is reachable.
func (s *WeatherService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// getOrFetch is the cache-aside core shared by every resource.
func getOrFetch[T any](ctx context.Context, s *WeatherService, resource, key string, fetch func(context.Context) (T, error)) (T, error) {
	var zero T
	start := time.Now()
	logger := observability.LoggerFromContext(ctx).With(zap.String("cache_key", key))

	raw, ok, err := s.store.Get(ctx, key)
	if err != nil {
		logger.Error("cache get failed", zap.Error(err))
		return zero, fmt.Errorf("%w: get %s: %w", ErrCacheStore, key, err)
	}
	if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			observability.CacheHitsTotal.WithLabelValues(resource).Inc()
			logger.Debug("cache hit", zap.Duration("duration", time.Since(start)))
			return v, nil
		}
		logger.Warn("undecodable cache entry, refetching", zap.Error(err))
	}

	observability.CacheMissesTotal.WithLabelValues(resource).Inc()
	concurrent, done := s.stampedeTracker.begin(key)
	defer done()
	if concurrent > 1 {
		observability.CacheStampedeDetectedTotal.WithLabelValues(resource).Inc()
		observability.CacheStampedeConcurrency.WithLabelValues(resource).Observe(float64(concurrent))
	}
	logger.Debug("cache miss, fetching upstream")

	fill := func(ctx context.Context) (interface{}, error) {
		v, err := fetch(ctx)
		if err != nil {
			return zero, err
		}
		encoded, err := json.Marshal(v)
		if err != nil {
			return zero, fmt.Errorf("encode %s: %w", key, err)
		}
		if err := s.store.Set(ctx, key, encoded, s.ttl); err != nil {
			return zero, fmt.Errorf("%w: set %s: %w", ErrCacheStore, key, err)
		}
		return v, nil
	}

	var out interface{}
	if s.coalescer != nil {
		// The shared fill must survive the caller that started it leaving.
		out, err = s.coalescer.do(ctx, resource, key, func() (interface{}, error) {
			shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.sharedTimeout)
			defer cancel()
			return fill(shared)
		})
	} else {
		out, err = fill(ctx)
	}
	if err != nil {
		if errors.Is(err, ErrCacheStore) {
			logger.Error("cache set failed", zap.Error(err))
		} else {
			logger.Warn("upstream fetch failed",
				zap.String("resource", resource),
				zap.String("kind", client.KindOf(err).String()),
				zap.Error(err),
			)
		}
		return zero, err
	}
	logger.Debug("served from upstream", zap.Duration("duration", time.Since(start)))
	return out.(T), nil
}

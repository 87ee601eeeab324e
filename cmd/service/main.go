package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-gateway/internal/auth"
	"github.com/kjstillabower/weather-gateway/internal/cache"
	"github.com/kjstillabower/weather-gateway/internal/circuitbreaker"
	"github.com/kjstillabower/weather-gateway/internal/client"
	"github.com/kjstillabower/weather-gateway/internal/config"
	httphandler "github.com/kjstillabower/weather-gateway/internal/http"
	"github.com/kjstillabower/weather-gateway/internal/lifecycle"
	"github.com/kjstillabower/weather-gateway/internal/observability"
	"github.com/kjstillabower/weather-gateway/internal/ratelimit"
	"github.com/kjstillabower/weather-gateway/internal/service"
	"github.com/kjstillabower/weather-gateway/internal/traffic"
)

const serviceName = "weather-gateway"

func main() {
	// Config first so LOG_LEVEL from .env reaches the logger.
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := observability.NewLogger(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	weatherClient, err := client.NewOpenWeatherClient(
		cfg.WeatherAPIKey,
		client.DefaultEndpoints(cfg.WeatherAPIBaseURL),
		cfg.WeatherAPITimeout,
	)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}
	if cfg.CircuitBreakerEnabled {
		weatherClient.SetCircuitBreaker(newCircuitBreaker(cfg))
		observability.CircuitBreakerState.WithLabelValues("weather_api").Set(0)
		logger.Info("circuit breaker enabled",
			zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold),
			zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}

	store := newStore(cfg)
	logger.Info("cache backend", zap.String("backend", cfg.CacheBackend), zap.Duration("ttl", cfg.CacheTTL))

	weatherService := service.NewWeatherService(weatherClient, store, service.Options{
		TTL:                cfg.CacheTTL,
		Coalesce:           cfg.CacheCoalesce,
		SharedFetchTimeout: cfg.RequestTimeout,
	})

	authenticator, err := auth.NewAuthenticator(auth.Config{Secret: cfg.AuthJWTSecret, Issuer: cfg.AuthIssuer})
	if err != nil {
		logger.Fatal("authenticator", zap.Error(err))
	}
	limiter := ratelimit.New(ratelimit.Config{Requests: cfg.RateLimitRequests, Window: cfg.RateLimitWindow})

	tracker := traffic.NewTracker()
	state := lifecycle.New()
	observability.RegisterTrafficGauges(
		func() int { return tracker.RequestCount(cfg.HealthWindow) },
		func() int { return tracker.DenialCount(cfg.HealthWindow) },
	)
	if len(cfg.TrackedCities) > 0 {
		observability.SetTrackedCities(cfg.TrackedCities)
	}

	handler := httphandler.NewHandler(weatherService, weatherClient, tracker, state, &httphandler.HealthConfig{
		DegradedWindow:      cfg.HealthWindow,
		DegradedErrorPct:    cfg.HealthErrorPct,
		DegradedMinRequests: cfg.HealthMinRequests,
	}, logger)
	inflight := &httphandler.InFlightTracker{}
	router := httphandler.NewRouter(httphandler.RouterConfig{
		Handler:        handler,
		Logger:         logger,
		Authenticator:  authenticator,
		Limiter:        limiter,
		Traffic:        tracker,
		InFlight:       inflight,
		APIPrefix:      cfg.APIPrefix,
		RequestTimeout: cfg.RequestTimeout,
	})

	warmCtx, warmCancel := context.WithCancel(context.Background())
	defer warmCancel()
	go func() {
		<-state.Draining()
		warmCancel()
	}()
	if len(cfg.CacheWarmCities) > 0 {
		warmer := cache.NewCacheWarmer(weatherService, logger)
		go func() {
			if cfg.CacheWarmInterval > 0 {
				if err := warmer.WarmPeriodic(warmCtx, cfg.CacheWarmCities, cfg.CacheWarmInterval); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("periodic cache warming stopped", zap.Error(err))
				}
				return
			}
			if err := warmer.Warm(warmCtx, cfg.CacheWarmCities); err != nil {
				logger.Warn("cache warming failed", zap.Error(err))
			}
		}()
	}

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("api_prefix", cfg.APIPrefix))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	state.BeginShutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	if n := inflight.Count(); n > 0 {
		logger.Info("waiting for in-flight requests", zap.Int64("count", n))
		if err := inflight.WaitForZero(shutdownCtx, 50*time.Millisecond); err != nil {
			logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", inflight.Count()))
		}
	}

	if err := store.Close(); err != nil {
		logger.Error("cache close", zap.Error(err))
	}
	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		fmt.Fprintf(os.Stderr, "telemetry flush: %v\n", err)
	}
	logger.Info("shutdown complete")
}

// newStore returns the configured cache backend. Network backends connect on
// first use so the process starts even while the cache is still coming up.
func newStore(cfg *config.Config) cache.Store {
	var connect cache.ConnectFunc
	switch cfg.CacheBackend {
	case config.BackendValkey:
		connect = func(ctx context.Context) (cache.Store, error) {
			vc, err := cache.NewValkeyCache(ctx, cache.ValkeyConfig{
				Address:   cfg.ValkeyAddr,
				Password:  cfg.ValkeyPassword,
				DB:        cfg.ValkeyDB,
				KeyPrefix: cfg.ValkeyKeyPrefix,
			})
			if err != nil {
				return nil, err
			}
			return vc, nil
		}
	case config.BackendMemcached:
		connect = func(ctx context.Context) (cache.Store, error) {
			mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
			if err != nil {
				return nil, err
			}
			if err := mc.Ping(ctx); err != nil {
				_ = mc.Close()
				return nil, err
			}
			return mc, nil
		}
	default:
		return cache.NewInstrumented(cache.NewInMemoryCache())
	}
	return cache.NewInstrumented(cache.NewLazyStore(connect))
}

func newCircuitBreaker(cfg *config.Config) *circuitbreaker.CircuitBreaker {
	return circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: cfg.CircuitBreakerFailureThreshold,
		SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
		Timeout:          cfg.CircuitBreakerTimeout,
		Component:        "weather_api",
		IsFailure:        client.IsBreakerFailure,
		OnStateChange: func(from, to circuitbreaker.State) {
			observability.RecordCircuitBreakerTransition("weather_api", from.String(), to.String(), int(to))
		},
	})
}

package cache

import (
	"context"
	"errors"
	"time"

	"github.com/kjstillabower/weather-gateway/internal/observability"
)

// Instrumented wraps a Store and records operation latency and error metrics.
type Instrumented struct {
	next Store
}

func NewInstrumented(next Store) *Instrumented {
	return &Instrumented{next: next}
}

func (s *Instrumented) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	v, ok, err := s.next.Get(ctx, key)
	result := "hit"
	switch {
	case err != nil:
		result = "error"
		observability.CacheErrorsTotal.WithLabelValues("get", errorCategory(err)).Inc()
	case !ok:
		result = "miss"
	}
	observability.CacheOperationDurationSeconds.WithLabelValues("get", result).Observe(time.Since(start).Seconds())
	return v, ok, err
}

func (s *Instrumented) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := s.next.Set(ctx, key, value, ttl)
	result := "ok"
	if err != nil {
		result = "error"
		observability.CacheErrorsTotal.WithLabelValues("set", errorCategory(err)).Inc()
	}
	observability.CacheOperationDurationSeconds.WithLabelValues("set", result).Observe(time.Since(start).Seconds())
	return err
}

func (s *Instrumented) Ping(ctx context.Context) error {
	err := s.next.Ping(ctx)
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("ping", errorCategory(err)).Inc()
	}
	return err
}

func (s *Instrumented) Close() error { return s.next.Close() }

func errorCategory(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrStoreClosed):
		return "closed"
	default:
		return "backend"
	}
}

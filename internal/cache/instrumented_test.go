package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kjstillabower/weather-gateway/internal/observability"
)

type failingStore struct{ err error }

func (f failingStore) Get(context.Context, string) ([]byte, bool, error) { return nil, false, f.err }
func (f failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return f.err
}
func (f failingStore) Ping(context.Context) error { return f.err }
func (f failingStore) Close() error              { return nil }

func TestInstrumented_PassesThrough(t *testing.T) {
	ctx := context.Background()
	s := NewInstrumented(NewInMemoryCache())

	if err := s.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, ok, err := s.Get(ctx, "k")
	if err != nil || !ok || string(got) != "v" {
		t.Errorf("Get() = (%q, %v, %v), want (v, true, nil)", got, ok, err)
	}
}

func TestInstrumented_CountsErrors(t *testing.T) {
	ctx := context.Background()
	s := NewInstrumented(failingStore{err: errors.New("down")})

	before := testutil.ToFloat64(observability.CacheErrorsTotal.WithLabelValues("get", "backend"))
	if _, _, err := s.Get(ctx, "k"); err == nil {
		t.Fatal("Get() error = nil, want error")
	}
	after := testutil.ToFloat64(observability.CacheErrorsTotal.WithLabelValues("get", "backend"))
	if after-before != 1 {
		t.Errorf("cacheErrorsTotal{get,backend} delta = %v, want 1", after-before)
	}
}

package service

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/kjstillabower/weather-gateway/internal/observability"
)

// requestCoalescer lets concurrent misses on one key share a single
// fetch-and-store. Waiters return early when their own context ends; the
// shared call keeps running for the others.
type requestCoalescer struct {
	group singleflight.Group
}

func newRequestCoalescer() *requestCoalescer {
	return &requestCoalescer{}
}

func (rc *requestCoalescer) do(ctx context.Context, resource, key string, fn func() (interface{}, error)) (interface{}, error) {
	ch := rc.group.DoChan(key, fn)
	select {
	case res := <-ch:
		if res.Shared {
			observability.RequestCoalescingHitsTotal.WithLabelValues(resource).Inc()
		}
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

package http

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/kjstillabower/weather-gateway/internal/observability"
)

// InFlightTracker counts requests currently being served. MetricsMiddleware
// updates it; shutdown waits on it after the listener stops accepting.
// The zero value is ready to use.
type InFlightTracker struct {
	count atomic.Int64
}

func (t *InFlightTracker) begin() {
	t.count.Add(1)
	observability.HTTPRequestsInFlight.Inc()
}

func (t *InFlightTracker) end() {
	t.count.Add(-1)
	observability.HTTPRequestsInFlight.Dec()
}

// Count returns the current in-flight count.
func (t *InFlightTracker) Count() int64 {
	return t.count.Load()
}

// WaitForZero blocks until the in-flight count reaches zero or ctx is done,
// polling every checkInterval.
func (t *InFlightTracker) WaitForZero(ctx context.Context, checkInterval time.Duration) error {
	if checkInterval <= 0 {
		checkInterval = 50 * time.Millisecond
	}
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()
	for {
		if t.Count() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

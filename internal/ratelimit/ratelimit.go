package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Defaults: 10 requests per 60 seconds per client.
const (
	DefaultRequests = 10
	DefaultWindow   = 60 * time.Second
)

// Config describes the per-client allowance: Requests per Window, refilled
// smoothly, with bursts of up to Requests. IdleTTL controls when a client's
// bucket is forgotten; zero uses twice the window.
type Config struct {
	Requests int
	Window   time.Duration
	IdleTTL  time.Duration
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedLimiter holds one token bucket per client key.
type KeyedLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time

	mu        sync.Mutex
	entries   map[string]*entry
	lastSweep time.Time
}

func New(cfg Config) *KeyedLimiter {
	return newWithClock(cfg, time.Now)
}

func newWithClock(cfg Config, now func() time.Time) *KeyedLimiter {
	if cfg.Requests <= 0 {
		cfg.Requests = DefaultRequests
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 2 * cfg.Window
	}
	return &KeyedLimiter{
		limit:     rate.Every(cfg.Window / time.Duration(cfg.Requests)),
		burst:     cfg.Requests,
		idleTTL:   cfg.IdleTTL,
		now:       now,
		entries:   make(map[string]*entry),
		lastSweep: now(),
	}
}

// Allow consumes one token for key. When the bucket is empty it returns false
// and how long the client should wait before retrying.
func (l *KeyedLimiter) Allow(key string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	if now.Sub(l.lastSweep) >= l.idleTTL {
		l.sweepLocked(now)
	}
	e, ok := l.entries[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = e
	}
	e.lastSeen = now
	l.mu.Unlock()

	r := e.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, 0
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Len returns the number of tracked clients.
func (l *KeyedLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *KeyedLimiter) sweepLocked(now time.Time) {
	for k, e := range l.entries {
		if now.Sub(e.lastSeen) >= l.idleTTL {
			delete(l.entries, k)
		}
	}
	l.lastSweep = now
}

package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrStoreClosed is returned by a LazyStore after Close.
var ErrStoreClosed = errors.New("cache store closed")

// ConnectFunc opens the underlying store.
type ConnectFunc func(ctx context.Context) (Store, error)

// LazyStore defers connecting until first use. Concurrent first callers share a
// single connection attempt; a failed attempt is retried on the next call.
type LazyStore struct {
	connect ConnectFunc

	mu     sync.Mutex
	store  Store
	closed bool
}

// NewLazyStore wraps connect. connect is not invoked until the first operation.
func NewLazyStore(connect ConnectFunc) *LazyStore {
	return &LazyStore{connect: connect}
}

func (l *LazyStore) get(ctx context.Context) (Store, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrStoreClosed
	}
	if l.store != nil {
		return l.store, nil
	}
	s, err := l.connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect cache store: %w", err)
	}
	l.store = s
	return s, nil
}

func (l *LazyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s, err := l.get(ctx)
	if err != nil {
		return nil, false, err
	}
	return s.Get(ctx, key)
}

func (l *LazyStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s, err := l.get(ctx)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, value, ttl)
}

func (l *LazyStore) Ping(ctx context.Context) error {
	s, err := l.get(ctx)
	if err != nil {
		return err
	}
	return s.Ping(ctx)
}

// Close closes the underlying store if one was opened. Later calls fail with ErrStoreClosed.
func (l *LazyStore) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	if l.store == nil {
		return nil
	}
	err := l.store.Close()
	l.store = nil
	return err
}

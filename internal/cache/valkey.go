package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	valkeylib "github.com/valkey-io/valkey-go"
)

// DefaultValkeyConnectTimeout bounds the initial PING issued by NewValkeyCache.
const DefaultValkeyConnectTimeout = 5 * time.Second

// ValkeyConfig holds the connection settings for a Valkey or Redis server.
type ValkeyConfig struct {
	Address        string
	Password       string
	DB             int
	KeyPrefix      string
	ConnectTimeout time.Duration
}

// ValkeyCache implements Store with SET EX / GET against Valkey.
type ValkeyCache struct {
	inner     valkeylib.Client
	keyPrefix string
}

// NewValkeyCache connects and pings the server. The caller owns Close.
func NewValkeyCache(ctx context.Context, cfg ValkeyConfig) (*ValkeyCache, error) {
	opts := valkeylib.ClientOption{
		InitAddress: []string{cfg.Address},
		SelectDB:    cfg.DB,
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	inner, err := valkeylib.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("create valkey client: %w", err)
	}

	timeout := cfg.ConnectTimeout
	if timeout == 0 {
		timeout = DefaultValkeyConnectTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := inner.Do(pingCtx, inner.B().Ping().Build()).Error(); err != nil {
		inner.Close()
		return nil, fmt.Errorf("ping valkey (timeout: %v): %w", timeout, err)
	}

	prefix := cfg.KeyPrefix
	if prefix != "" && !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return &ValkeyCache{inner: inner, keyPrefix: prefix}, nil
}

func (c *ValkeyCache) key(k string) string {
	return c.keyPrefix + k
}

func (c *ValkeyCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	cmd := c.inner.B().Get().Key(c.key(key)).Build()
	data, err := c.inner.Do(ctx, cmd).AsBytes()
	if err != nil {
		if valkeylib.IsValkeyNil(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("valkey get: %w", err)
	}
	return data, true, nil
}

func (c *ValkeyCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	cmd := c.inner.B().Set().
		Key(c.key(key)).
		Value(string(value)).
		Ex(ttl).
		Build()
	if err := c.inner.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("valkey set: %w", err)
	}
	return nil
}

func (c *ValkeyCache) Ping(ctx context.Context) error {
	return c.inner.Do(ctx, c.inner.B().Ping().Build()).Error()
}

func (c *ValkeyCache) Close() error {
	c.inner.Close()
	return nil
}

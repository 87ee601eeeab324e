package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Cache backends.
const (
	BackendValkey    = "valkey"
	BackendMemcached = "memcached"
	BackendInMemory  = "in_memory"
)

// Config holds service configuration loaded from YAML, .env and the environment.
type Config struct {
	ServerPort string
	APIPrefix  string

	WeatherAPIKey     string
	WeatherAPIBaseURL string
	WeatherAPITimeout time.Duration

	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	CacheBackend      string
	CacheTTL          time.Duration
	CacheCoalesce     bool
	CacheWarmCities   []string
	CacheWarmInterval time.Duration

	ValkeyAddr      string
	ValkeyPassword  string
	ValkeyDB        int
	ValkeyKeyPrefix string

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	AuthJWTSecret string
	AuthIssuer    string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	CircuitBreakerEnabled          bool
	CircuitBreakerFailureThreshold int
	CircuitBreakerSuccessThreshold int
	CircuitBreakerTimeout          time.Duration

	HealthWindow      time.Duration
	HealthErrorPct    int
	HealthMinRequests int

	TrackedCities []string
}

type fileConfig struct {
	Server struct {
		Port      string `yaml:"port"`
		APIPrefix string `yaml:"api_prefix"`
	} `yaml:"server"`

	WeatherAPI struct {
		BaseURL string `yaml:"base_url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"weather_api"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Cache struct {
		Backend      string   `yaml:"backend"`
		TTL          string   `yaml:"ttl"`
		Coalesce     bool     `yaml:"coalesce"`
		WarmCities   []string `yaml:"warm_cities"`
		WarmInterval string   `yaml:"warm_interval"`
		Valkey       struct {
			Addr      string `yaml:"addr"`
			DB        int    `yaml:"db"`
			KeyPrefix string `yaml:"key_prefix"`
		} `yaml:"valkey"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Auth struct {
		Issuer string `yaml:"issuer"`
	} `yaml:"auth"`

	RateLimit struct {
		Requests int    `yaml:"requests"`
		Window   string `yaml:"window"`
	} `yaml:"rate_limit"`

	CircuitBreaker struct {
		Enabled          bool   `yaml:"enabled"`
		FailureThreshold int    `yaml:"failure_threshold"`
		SuccessThreshold int    `yaml:"success_threshold"`
		Timeout          string `yaml:"timeout"`
	} `yaml:"circuit_breaker"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`

	Health struct {
		Window      string `yaml:"window"`
		ErrorPct    int    `yaml:"error_pct"`
		MinRequests int    `yaml:"min_requests"`
	} `yaml:"health"`

	Metrics struct {
		TrackedCities []string `yaml:"tracked_cities"`
	} `yaml:"metrics"`
}

type secretsFile struct {
	WeatherAPIKey  string `yaml:"weather_api_key"`
	AuthJWTSecret  string `yaml:"auth_jwt_secret"`
	ValkeyPassword string `yaml:"valkey_password"`
}

// Load reads .env (optional), config/{ENV_NAME}.yaml (default dev) and
// config/secrets.yaml (optional). Environment variables override file values
// for secrets and backend addresses. Call from project root.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}

	if err := godotenv.Load(filepath.Join(cwd, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	sec, err := loadSecrets(filepath.Join(cwd, "config", "secrets.yaml"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{}

	cfg.ServerPort = firstNonEmpty(fc.Server.Port, "8080")
	cfg.APIPrefix = "/" + strings.Trim(firstNonEmpty(fc.Server.APIPrefix, "/api"), "/")
	if cfg.APIPrefix == "/" {
		cfg.APIPrefix = ""
	}

	cfg.WeatherAPIKey = firstNonEmpty(os.Getenv("WEATHER_API_KEY"), sec.WeatherAPIKey)
	if cfg.WeatherAPIKey == "" {
		return nil, fmt.Errorf("WEATHER_API_KEY required (set env or config/secrets.yaml weather_api_key)")
	}
	cfg.AuthJWTSecret = firstNonEmpty(os.Getenv("AUTH_JWT_SECRET"), sec.AuthJWTSecret)
	if cfg.AuthJWTSecret == "" {
		return nil, fmt.Errorf("AUTH_JWT_SECRET required (set env or config/secrets.yaml auth_jwt_secret)")
	}
	cfg.AuthIssuer = strings.TrimSpace(fc.Auth.Issuer)

	cfg.WeatherAPIBaseURL = firstNonEmpty(fc.WeatherAPI.BaseURL, "https://api.openweathermap.org")
	cfg.WeatherAPITimeout = parseDurationOrZero(fc.WeatherAPI.Timeout, 10*time.Second)
	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 15*time.Second)
	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)

	cfg.CacheBackend = strings.ToLower(firstNonEmpty(os.Getenv("CACHE_BACKEND"), fc.Cache.Backend, BackendValkey))
	cfg.CacheTTL = parseDuration(fc.Cache.TTL, 300*time.Second)
	cfg.CacheCoalesce = fc.Cache.Coalesce
	cfg.CacheWarmCities = fc.Cache.WarmCities
	cfg.CacheWarmInterval = parseDurationOrZero(fc.Cache.WarmInterval, 0)

	cfg.ValkeyAddr = firstNonEmpty(os.Getenv("VALKEY_ADDR"), fc.Cache.Valkey.Addr, "localhost:6379")
	cfg.ValkeyPassword = firstNonEmpty(os.Getenv("VALKEY_PASSWORD"), sec.ValkeyPassword)
	cfg.ValkeyDB = fc.Cache.Valkey.DB
	if v := strings.TrimSpace(os.Getenv("VALKEY_DB")); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("VALKEY_DB must be an integer: %w", err)
		}
		cfg.ValkeyDB = db
	}
	cfg.ValkeyKeyPrefix = firstNonEmpty(fc.Cache.Valkey.KeyPrefix, "weathergw")

	cfg.MemcachedAddrs = firstNonEmpty(os.Getenv("MEMCACHED_ADDRS"), fc.Cache.Memcached.Addrs, "localhost:11211")
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.RateLimitRequests = fc.RateLimit.Requests
	if cfg.RateLimitRequests <= 0 {
		cfg.RateLimitRequests = 10
	}
	cfg.RateLimitWindow = parseDuration(fc.RateLimit.Window, 60*time.Second)

	cfg.CircuitBreakerEnabled = fc.CircuitBreaker.Enabled
	cfg.CircuitBreakerFailureThreshold = fc.CircuitBreaker.FailureThreshold
	if cfg.CircuitBreakerFailureThreshold <= 0 {
		cfg.CircuitBreakerFailureThreshold = 5
	}
	cfg.CircuitBreakerSuccessThreshold = fc.CircuitBreaker.SuccessThreshold
	if cfg.CircuitBreakerSuccessThreshold <= 0 {
		cfg.CircuitBreakerSuccessThreshold = 2
	}
	cfg.CircuitBreakerTimeout = parseDuration(fc.CircuitBreaker.Timeout, 30*time.Second)

	cfg.HealthWindow = parseDuration(fc.Health.Window, 60*time.Second)
	cfg.HealthErrorPct = fc.Health.ErrorPct
	if cfg.HealthErrorPct <= 0 {
		cfg.HealthErrorPct = 20
	}
	cfg.HealthMinRequests = fc.Health.MinRequests
	if cfg.HealthMinRequests <= 0 {
		cfg.HealthMinRequests = 10
	}

	cfg.TrackedCities = fc.Metrics.TrackedCities

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadSecrets(path string) (secretsFile, error) {
	var sec secretsFile
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return sec, nil
		}
		return sec, fmt.Errorf("read secrets file: %w", err)
	}
	if err := yaml.Unmarshal(data, &sec); err != nil {
		return sec, fmt.Errorf("parse secrets file: %w", err)
	}
	return sec, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// parseDuration parses s and falls back to defaultVal when s is empty, malformed or not positive.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero returns defaultVal on empty or malformed s. Zero and
// negative values are returned as-is for validate to reject.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate enforces cross-field invariants. RequestTimeout is raised above
// WeatherAPITimeout when needed so the provider timeout fires first.
func validate(cfg *Config) error {
	if cfg.WeatherAPITimeout <= 0 {
		return fmt.Errorf("weather_api.timeout must be positive")
	}
	if cfg.RequestTimeout <= cfg.WeatherAPITimeout {
		cfg.RequestTimeout = cfg.WeatherAPITimeout + time.Second
	}
	if cfg.CacheWarmInterval < 0 {
		return fmt.Errorf("cache.warm_interval must not be negative")
	}
	if cfg.HealthErrorPct > 100 {
		return fmt.Errorf("health.error_pct must be between 1 and 100, got %d", cfg.HealthErrorPct)
	}
	switch cfg.CacheBackend {
	case BackendValkey, BackendMemcached, BackendInMemory:
	default:
		return fmt.Errorf("cache.backend must be valkey, memcached or in_memory, got %q", cfg.CacheBackend)
	}
	return nil
}

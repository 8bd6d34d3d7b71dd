// Package config loads the InfoDot server configuration: defaults, then an
// optional YAML file, then INFODOT_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP      HTTP      `yaml:"http"`
	Log       Log       `yaml:"log"`
	Cache     Cache     `yaml:"cache"`
	Redis     Redis     `yaml:"redis"`
	Store     Store     `yaml:"store"`
	Broadcast Broadcast `yaml:"broadcast"`
	Metrics   Metrics   `yaml:"metrics"`
}

type HTTP struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

type Log struct {
	Kind        string `yaml:"kind"` // zap | logrus | slog
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type Cache struct {
	Namespace    string        `yaml:"namespace"`
	Provider     string        `yaml:"provider"` // memory | ristretto | bigcache | redis
	Index        string        `yaml:"index"`    // local | redis
	Codec        string        `yaml:"codec"`    // json | msgpack | cbor
	DefaultTTL   time.Duration `yaml:"default_ttl"`
	MaxEntries   int           `yaml:"max_entries"`
	MaxSizeMB    int           `yaml:"max_size_mb"`
	SingleFlight bool          `yaml:"single_flight"`
	FailClosed   bool          `yaml:"fail_closed"`
	Disabled     bool          `yaml:"disabled"`
	WarmUp       bool          `yaml:"warm_up"`
	HookQueue    int           `yaml:"hook_queue"` // 0 runs hooks inline
	Breaker      Breaker       `yaml:"breaker"`
}

type Breaker struct {
	Enabled          bool          `yaml:"enabled"`
	FailureThreshold float64       `yaml:"failure_threshold"`
	MinRequests      uint32        `yaml:"min_requests"`
	Timeout          time.Duration `yaml:"timeout"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type Store struct {
	Kind     string `yaml:"kind"` // memory | dynamodb
	Table    string `yaml:"table"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

type Broadcast struct {
	Redis    bool          `yaml:"redis"`     // PUBLISH and relay through Redis
	EventBus string        `yaml:"event_bus"` // EventBridge bus name; empty disables
	Source   string        `yaml:"source"`
	Queue    int           `yaml:"queue"`
	Timeout  time.Duration `yaml:"timeout"`
}

type Metrics struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

func Default() Config {
	return Config{
		HTTP: HTTP{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: Log{Kind: "zap", Level: "info"},
		Cache: Cache{
			Namespace:  "infodot",
			Provider:   "memory",
			Index:      "local",
			Codec:      "json",
			DefaultTTL: 10 * time.Minute,
			MaxEntries: 100_000,
			MaxSizeMB:  256,
			WarmUp:     true,
			HookQueue:  1024,
			Breaker: Breaker{
				FailureThreshold: 0.5,
				MinRequests:      20,
				Timeout:          30 * time.Second,
			},
		},
		Redis:     Redis{Addr: "localhost:6379"},
		Store:     Store{Kind: "memory", Table: "infodot", Region: "us-east-1"},
		Broadcast: Broadcast{Source: "infodot.api", Queue: 256, Timeout: 5 * time.Second},
		Metrics:   Metrics{Enabled: true, Namespace: "infodot"},
	}
}

// Load reads path (skipped when empty) over the defaults, applies the
// environment and validates.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overlays INFODOT_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(name string, dst *string) {
		if v, ok := lookup("INFODOT_" + name); ok {
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := lookup("INFODOT_" + name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("INFODOT_%s: %w", name, err))
				return
			}
			*dst = b
		}
	}
	integer := func(name string, dst *int) {
		if v, ok := lookup("INFODOT_" + name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("INFODOT_%s: %w", name, err))
				return
			}
			*dst = n
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v, ok := lookup("INFODOT_" + name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("INFODOT_%s: %w", name, err))
				return
			}
			*dst = d
		}
	}

	str("HTTP_ADDR", &c.HTTP.Addr)
	str("LOG_KIND", &c.Log.Kind)
	str("LOG_LEVEL", &c.Log.Level)
	boolean("LOG_DEVELOPMENT", &c.Log.Development)

	str("CACHE_NAMESPACE", &c.Cache.Namespace)
	str("CACHE_PROVIDER", &c.Cache.Provider)
	str("CACHE_INDEX", &c.Cache.Index)
	str("CACHE_CODEC", &c.Cache.Codec)
	duration("CACHE_TTL", &c.Cache.DefaultTTL)
	integer("CACHE_MAX_ENTRIES", &c.Cache.MaxEntries)
	boolean("CACHE_SINGLE_FLIGHT", &c.Cache.SingleFlight)
	boolean("CACHE_FAIL_CLOSED", &c.Cache.FailClosed)
	boolean("CACHE_DISABLED", &c.Cache.Disabled)
	boolean("CACHE_WARM_UP", &c.Cache.WarmUp)
	boolean("CACHE_BREAKER", &c.Cache.Breaker.Enabled)

	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	integer("REDIS_DB", &c.Redis.DB)

	str("STORE_KIND", &c.Store.Kind)
	str("DYNAMO_TABLE", &c.Store.Table)
	str("DYNAMO_ENDPOINT", &c.Store.Endpoint)
	str("AWS_REGION", &c.Store.Region)

	boolean("BROADCAST_REDIS", &c.Broadcast.Redis)
	str("EVENT_BUS", &c.Broadcast.EventBus)

	boolean("METRICS_ENABLED", &c.Metrics.Enabled)
	return errors.Join(errs...)
}

func oneOf(field, v string, allowed ...string) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return fmt.Errorf("%s: %q is not one of %s", field, v, strings.Join(allowed, ", "))
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	if c.HTTP.Addr == "" {
		add(errors.New("http.addr is required"))
	}
	add(oneOf("log.kind", c.Log.Kind, "zap", "logrus", "slog"))
	add(oneOf("cache.provider", c.Cache.Provider, "memory", "ristretto", "bigcache", "redis"))
	add(oneOf("cache.index", c.Cache.Index, "local", "redis"))
	add(oneOf("cache.codec", c.Cache.Codec, "json", "msgpack", "cbor"))
	add(oneOf("store.kind", c.Store.Kind, "memory", "dynamodb"))
	if c.Cache.Namespace == "" {
		add(errors.New("cache.namespace is required"))
	}
	if c.Cache.DefaultTTL <= 0 {
		add(errors.New("cache.default_ttl must be positive"))
	}
	if c.Cache.Provider == "redis" && c.Cache.Index != "redis" {
		// entries are shared; a process-local index cannot flush another replica's writes
		add(errors.New("cache.index must be redis when cache.provider is redis"))
	}
	if c.Cache.Provider != "redis" && c.Cache.MaxEntries <= 0 {
		add(errors.New("cache.max_entries must be positive"))
	}
	if b := c.Cache.Breaker; b.Enabled && (b.FailureThreshold <= 0 || b.FailureThreshold > 1) {
		add(fmt.Errorf("cache.breaker.failure_threshold %.2f not in (0, 1]", b.FailureThreshold))
	}
	if c.NeedsRedis() && c.Redis.Addr == "" {
		add(errors.New("redis.addr is required by the selected components"))
	}
	if c.Store.Kind == "dynamodb" && (c.Store.Table == "" || c.Store.Region == "") {
		add(errors.New("store.table and store.region are required for dynamodb"))
	}
	if c.Broadcast.EventBus != "" && c.Store.Region == "" {
		add(errors.New("store.region is required for event_bus"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// NeedsRedis reports whether any component is Redis backed.
func (c Config) NeedsRedis() bool {
	return c.Cache.Provider == "redis" || c.Cache.Index == "redis" || c.Broadcast.Redis
}

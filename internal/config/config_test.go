package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultsValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.NeedsRedis())
	assert.False(t, cfg.Cache.SingleFlight, "single flight is opt-in")
	assert.False(t, cfg.Cache.FailClosed, "reads fail open by default")
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "infodot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: ":9090"
cache:
  provider: ristretto
  codec: msgpack
  default_ttl: 2m
  breaker:
    enabled: true
    timeout: 5s
store:
  kind: dynamodb
  table: qa
`), 0o600))

	t.Setenv("INFODOT_CACHE_CODEC", "cbor")
	t.Setenv("INFODOT_CACHE_SINGLE_FLIGHT", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, "ristretto", cfg.Cache.Provider)
	assert.Equal(t, "cbor", cfg.Cache.Codec)
	assert.Equal(t, 2*time.Minute, cfg.Cache.DefaultTTL)
	assert.True(t, cfg.Cache.SingleFlight)
	assert.True(t, cfg.Cache.Breaker.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Cache.Breaker.Timeout)
	assert.Equal(t, 0.5, cfg.Cache.Breaker.FailureThreshold, "unset keys keep defaults")
	assert.Equal(t, "qa", cfg.Store.Table)
	assert.Equal(t, "us-east-1", cfg.Store.Region)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestApplyEnvParseErrors(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(env(map[string]string{
		"INFODOT_CACHE_TTL":      "soon",
		"INFODOT_REDIS_DB":       "two",
		"INFODOT_CACHE_DISABLED": "maybe",
		"INFODOT_CACHE_PROVIDER": "redis",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INFODOT_CACHE_TTL")
	assert.Contains(t, err.Error(), "INFODOT_REDIS_DB")
	assert.Contains(t, err.Error(), "INFODOT_CACHE_DISABLED")
	assert.Equal(t, "redis", cfg.Cache.Provider, "valid overrides still apply")
	assert.Equal(t, 10*time.Minute, cfg.Cache.DefaultTTL)
}

func TestValidateReportsEverything(t *testing.T) {
	cfg := Default()
	cfg.Log.Kind = "printf"
	cfg.Cache.Provider = "memcached"
	cfg.Cache.DefaultTTL = 0
	cfg.Cache.Breaker = Breaker{Enabled: true, FailureThreshold: 2}
	cfg.Store = Store{Kind: "dynamodb"}

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"log.kind", "cache.provider", "default_ttl", "failure_threshold", "store.table"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestRedisRequirement(t *testing.T) {
	cfg := Default()
	cfg.Cache.Index = "redis"
	cfg.Redis.Addr = ""
	assert.True(t, cfg.NeedsRedis())
	assert.ErrorContains(t, cfg.Validate(), "redis.addr")

	cfg = Default()
	cfg.Broadcast.Redis = true
	assert.True(t, cfg.NeedsRedis())
	assert.NoError(t, cfg.Validate())
}

func TestSharedProviderNeedsSharedIndex(t *testing.T) {
	cfg := Default()
	cfg.Cache.Provider = "redis"
	assert.ErrorContains(t, cfg.Validate(), "cache.index must be redis")

	cfg.Cache.Index = "redis"
	assert.NoError(t, cfg.Validate())
}

func TestWatchReloadsValidEdits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "infodot.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: info\n"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan Config, 4)
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, path, zaptest.NewLogger(t), func(c Config) { got <- c }) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	// give the watcher time to register before editing
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("log:\n  kind: nope\n"), 0o600))
	time.Sleep(2 * reloadDebounce)
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o600))

	select {
	case c := <-got:
		assert.Equal(t, "debug", c.Log.Level)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}
}

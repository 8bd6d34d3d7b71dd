package tagcache

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/tagcache/codec"
	pr "github.com/unkn0wn-root/tagcache/provider"
	ti "github.com/unkn0wn-root/tagcache/tagindex"
)

type SetCostFunc func(storageKey string, raw []byte) int64

// Fetch loads a value from the source of truth on a cache miss.
type Fetch[V any] func(ctx context.Context) (V, error)

// Invalidator is the untyped half of the cache. Entity lifecycle hooks depend
// on it without knowing which value types are cached.
type Invalidator interface {
	// InvalidateKey removes one entry. Absent keys are not an error.
	InvalidateKey(ctx context.Context, key string) error
	// InvalidateTags removes every entry labelled with any of tags.
	// Unknown tags are not an error.
	InvalidateTags(ctx context.Context, tags ...string) error
}

// Cache is the typed cache-aside API. V is the caller's value type.
type Cache[V any] interface {
	Invalidator
	Enabled() bool

	Get(ctx context.Context, key string) (v V, ok bool, err error)
	// Set replaces the entry wholesale: value, TTL and tag set.
	// ttl == 0 uses the store default; ttl < 0 means no expiry.
	Set(ctx context.Context, key string, value V, ttl time.Duration, tags ...string) error
	// GetOrCompute returns the cached value or calls fetch, caches its result
	// under key with ttl and tags, and returns it. A fetch error is returned
	// as-is and nothing is cached.
	GetOrCompute(ctx context.Context, key string, ttl time.Duration, tags []string, fetch Fetch[V]) (V, error)
}

// Options tune a Store. Only Namespace and Provider are required.
type Options struct {
	// Required
	Namespace string // logical namespace, e.g. "infodot:prod"
	Provider  pr.Provider

	TagIndex        ti.TagIndex      // nil => tagindex.NewLocal(CleanupInterval, IndexRetention)
	Logger          Logger           // if nil, NopLogger is used
	Hooks           Hooks            // if nil, NopHooks is used
	DefaultTTL      time.Duration    // 0 => 10m
	CleanupInterval time.Duration    // local index sweep; 0 => 1h
	IndexRetention  time.Duration    // local index membership lifetime; 0 => 24h
	Now             func() time.Time // nil => time.Now
	Disabled        bool             // default false (enabled)
	ComputeSetCost  SetCostFunc      // default 1

	// SingleFlight collapses concurrent misses on the same key into one fetch.
	// Off by default: without it concurrent misses each fetch and the last
	// write wins.
	SingleFlight bool

	// FailClosed propagates provider read errors. By default the cache fails
	// open: the read goes straight to fetch and the result is not written back.
	FailClosed bool
}

// New returns a typed view over s using codec cd for values.
func New[V any](s *Store, cd c.Codec[V]) (Cache[V], error) {
	return newCache[V](s, cd)
}

// MustNew is like New but panics on error. Handy for wiring fixed codecs.
func MustNew[V any](s *Store, cd c.Codec[V]) Cache[V] {
	cc, err := New[V](s, cd)
	if err != nil {
		panic(err)
	}
	return cc
}

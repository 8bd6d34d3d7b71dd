package tagcache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	c "github.com/unkn0wn-root/tagcache/codec"
)

type cache[V any] struct {
	*Store
	codec  c.Codec[V]
	flight *singleflight.Group // nil unless Options.SingleFlight
}

func newCache[V any](s *Store, cd c.Codec[V]) (*cache[V], error) {
	if s == nil {
		return nil, ErrStoreRequired
	}
	if cd == nil {
		return nil, ErrCodecRequired
	}
	cc := &cache[V]{Store: s, codec: cd}
	if s.singleFlight {
		cc.flight = new(singleflight.Group)
	}
	return cc, nil
}

func (c *cache[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	if !c.enabled {
		return zero, false, nil
	}
	if key == "" {
		return zero, false, ErrEmptyKey
	}
	sk := c.storageKey(key)
	payload, ok, err := c.load(ctx, sk)
	if err != nil || !ok {
		return zero, false, err
	}
	v, err := c.codec.Decode(payload)
	if err != nil {
		c.selfHeal(ctx, sk, "value_decode")
		return zero, false, nil
	}
	return v, true, nil
}

func (c *cache[V]) Set(ctx context.Context, key string, value V, ttl time.Duration, tags ...string) error {
	if !c.enabled {
		return nil
	}
	if key == "" {
		return ErrEmptyKey
	}
	payload, err := c.codec.Encode(value)
	if err != nil {
		return err
	}
	return c.save(ctx, c.storageKey(key), payload, ttl, tags)
}

func (c *cache[V]) GetOrCompute(ctx context.Context, key string, ttl time.Duration, tags []string, fetch Fetch[V]) (V, error) {
	var zero V
	if !c.enabled {
		return fetch(ctx)
	}
	if key == "" {
		return zero, ErrEmptyKey
	}
	sk := c.storageKey(key)

	v, ok, err := c.Get(ctx, key)
	if err != nil {
		c.hooks.ProviderError("get", sk, err)
		if c.failClosed {
			return zero, err
		}
		c.log.Warn("cache read failed; bypassing cache", Fields{"key": key, "err": err})
		return fetch(ctx)
	}
	if ok {
		c.hooks.Hit(sk)
		return v, nil
	}
	c.hooks.Miss(sk)

	if c.flight == nil {
		return c.compute(ctx, key, sk, ttl, tags, fetch)
	}
	// the first caller's ctx drives the shared fetch
	res, err, _ := c.flight.Do(sk, func() (any, error) {
		return c.compute(ctx, key, sk, ttl, tags, fetch)
	})
	if err != nil {
		return zero, err
	}
	v, _ = res.(V)
	return v, nil
}

func (c *cache[V]) compute(ctx context.Context, key, sk string, ttl time.Duration, tags []string, fetch Fetch[V]) (V, error) {
	v, err := fetch(ctx)
	if err != nil {
		c.hooks.FetchError(sk, err)
		var zero V
		return zero, err
	}
	if err := c.Set(ctx, key, v, ttl, tags...); err != nil {
		// the caller still gets the fresh value; the next read recomputes
		c.hooks.ProviderError("set", sk, err)
		c.log.Warn("cache write failed", Fields{"key": key, "err": err})
	}
	return v, nil
}

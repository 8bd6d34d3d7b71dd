// Package breaker wraps a Provider in a sony/gobreaker circuit breaker.
// While the circuit is open every call fails fast with ErrOpen, so reads fall
// through to the source of truth instead of waiting on a dead cache backend.
package breaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	pr "github.com/unkn0wn-root/tagcache/provider"
)

// ErrOpen is returned while the breaker rejects calls.
var ErrOpen = errors.New("breaker: cache provider unavailable")

type Config struct {
	Name string
	// MaxRequests allowed through while half-open.
	MaxRequests uint32
	// Interval clears counts while closed; 0 never clears.
	Interval time.Duration
	// Timeout is how long the circuit stays open before probing.
	Timeout time.Duration
	// The breaker trips once MinRequests calls were seen and the failure
	// ratio reaches FailureThreshold.
	MinRequests      uint32
	FailureThreshold float64
	// OnStateChange is optional.
	OnStateChange func(name string, from, to gobreaker.State)
}

func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          10 * time.Second,
		MinRequests:      5,
		FailureThreshold: 0.6,
	}
}

type Provider struct {
	inner pr.Provider
	cb    *gobreaker.CircuitBreaker
}

var _ pr.Provider = (*Provider)(nil)

func New(inner pr.Provider, cfg Config) *Provider {
	if cfg.MinRequests == 0 {
		cfg.MinRequests = 1
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 1
	}
	st := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			if c.Requests < cfg.MinRequests {
				return false
			}
			return float64(c.TotalFailures)/float64(c.Requests) >= cfg.FailureThreshold
		},
		OnStateChange: cfg.OnStateChange,
		// a caller giving up is not a backend failure
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
	return &Provider{inner: inner, cb: gobreaker.NewCircuitBreaker(st)}
}

// State reports the current breaker state.
func (p *Provider) State() gobreaker.State { return p.cb.State() }

type getResult struct {
	b  []byte
	ok bool
}

func (p *Provider) Get(ctx context.Context, key string) ([]byte, bool, error) {
	res, err := p.cb.Execute(func() (interface{}, error) {
		b, ok, err := p.inner.Get(ctx, key)
		return getResult{b: b, ok: ok}, err
	})
	if err != nil {
		return nil, false, mapErr(err)
	}
	r := res.(getResult)
	return r.b, r.ok, nil
}

func (p *Provider) Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (bool, error) {
	res, err := p.cb.Execute(func() (interface{}, error) {
		return p.inner.Set(ctx, key, value, cost, ttl)
	})
	if err != nil {
		return false, mapErr(err)
	}
	return res.(bool), nil
}

func (p *Provider) Del(ctx context.Context, key string) error {
	_, err := p.cb.Execute(func() (interface{}, error) {
		return nil, p.inner.Del(ctx, key)
	})
	return mapErr(err)
}

func (p *Provider) Close(ctx context.Context) error {
	return p.inner.Close(ctx)
}

func mapErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrOpen
	}
	return err
}

// Package asynchook moves hook work off the request path. Events go to a
// bounded queue drained by a fixed set of workers; when the queue is full the
// event is dropped and counted.
//
//	raw := sloghooks.New(logger, sloghooks.Options{SelfHealEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000)
//	defer hooks.Close()
//
//	store, _ := tagcache.NewStore(tagcache.Options{
//	    Namespace: "infodot:prod",
//	    Provider:  provider,
//	    Hooks:     hooks,
//	})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/tagcache"
)

type Hooks struct {
	inner   tagcache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

var _ tagcache.Hooks = (*Hooks)(nil)

func New(inner tagcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events fired after Close
// are dropped.
func (h *Hooks) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	close(h.q)
	h.mu.Unlock()
	h.wg.Wait()
}

// Dropped is the number of events discarded because the queue was full or closed.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) Hit(k string)  { h.try(func() { h.inner.Hit(k) }) }
func (h *Hooks) Miss(k string) { h.try(func() { h.inner.Miss(k) }) }
func (h *Hooks) FetchError(k string, err error) {
	h.try(func() { h.inner.FetchError(k, err) })
}
func (h *Hooks) ProviderError(op, k string, err error) {
	h.try(func() { h.inner.ProviderError(op, k, err) })
}
func (h *Hooks) SelfHeal(k, reason string)    { h.try(func() { h.inner.SelfHeal(k, reason) }) }
func (h *Hooks) ProviderSetRejected(k string) { h.try(func() { h.inner.ProviderSetRejected(k) }) }
func (h *Hooks) TagsFlushed(tags []string, keys int) {
	cp := append([]string(nil), tags...)
	h.try(func() { h.inner.TagsFlushed(cp, keys) })
}
func (h *Hooks) IndexError(op string, err error) { h.try(func() { h.inner.IndexError(op, err) }) }
func (h *Hooks) InvalidateOutage(target string, indexErr, delErr error) {
	h.try(func() { h.inner.InvalidateOutage(target, indexErr, delErr) })
}

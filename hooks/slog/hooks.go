// Package sloghooks logs cache events through log/slog. Hits and misses are
// not logged; use hooks/prom for rates.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/tagcache"
)

type Options struct {
	// Sampling; 0 or 1 logs every event.
	SelfHealEvery      uint64
	ProviderErrorEvery uint64
	// Redact maps storage keys before logging. Defaults to a SHA-256 prefix
	// since keys carry user ids.
	Redact func(string) string
}

type Hooks struct {
	tagcache.NopHooks

	l    *slog.Logger
	opts Options

	selfHealCtr atomic.Uint64
	providerCtr atomic.Uint64
}

var _ tagcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n <= 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) FetchError(storageKey string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("tagcache.fetch_error", "key", h.redact(storageKey), "err", err)
}

func (h *Hooks) ProviderError(op, storageKey string, err error) {
	if h.l == nil || !sample(h.opts.ProviderErrorEvery, &h.providerCtr) {
		return
	}
	h.l.Warn("tagcache.provider_error", "op", op, "key", h.redact(storageKey), "err", err)
}

func (h *Hooks) SelfHeal(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("tagcache.self_heal", "key", h.redact(storageKey), "reason", reason)
}

func (h *Hooks) ProviderSetRejected(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("tagcache.provider_set_rejected", "key", h.redact(storageKey))
}

func (h *Hooks) TagsFlushed(tags []string, keys int) {
	if h.l == nil {
		return
	}
	h.l.Debug("tagcache.tags_flushed", "tags", tags, "keys", keys)
}

func (h *Hooks) IndexError(op string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("tagcache.index_error", "op", op, "err", err)
}

func (h *Hooks) InvalidateOutage(target string, indexErr, delErr error) {
	if h.l == nil {
		return
	}
	h.l.Error("tagcache.invalidate_outage",
		"target", target,
		"index_err", indexErr,
		"del_err", delErr)
}

// Package promhooks exports cache events as Prometheus metrics.
package promhooks

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/tagcache"
)

type Options struct {
	Namespace  string // metric namespace, e.g. "infodot"
	Registerer prometheus.Registerer
	// Classify maps a storage key to a low-cardinality "op" label such as
	// "questions_popular". nil labels every event "all".
	Classify func(storageKey string) string
}

type Hooks struct {
	classify func(string) string

	requests     *prometheus.CounterVec // op, result=hit|miss
	fetchErrors  *prometheus.CounterVec // op
	providerErrs *prometheus.CounterVec // op=get|set
	selfHeals    *prometheus.CounterVec // reason
	rejected     prometheus.Counter
	flushedKeys  prometheus.Counter
	flushes      *prometheus.CounterVec // tag
	indexErrs    *prometheus.CounterVec // op
	outages      prometheus.Counter
}

var _ tagcache.Hooks = (*Hooks)(nil)

// New builds and registers the collectors. Registration errors are returned
// so tests can use a fresh registry each time.
func New(opts Options) (*Hooks, error) {
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	ns := opts.Namespace
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Namespace: ns, Subsystem: "cache", Name: name, Help: help})
	}
	vec := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Subsystem: "cache", Name: name, Help: help}, labels)
	}

	h := &Hooks{
		classify:     opts.Classify,
		requests:     vec("requests_total", "Cache lookups by result", "op", "result"),
		fetchErrors:  vec("fetch_errors_total", "Fetch failures on miss", "op"),
		providerErrs: vec("provider_errors_total", "Provider failures", "op"),
		selfHeals:    vec("self_heals_total", "Unreadable entries dropped on read", "reason"),
		rejected:     counter("set_rejected_total", "Writes dropped by the provider"),
		flushedKeys:  counter("flushed_keys_total", "Entries removed by tag flushes"),
		flushes:      vec("tag_flushes_total", "Tag flushes by tag", "tag"),
		indexErrs:    vec("index_errors_total", "Tag index failures", "op"),
		outages:      counter("invalidate_outages_total", "Invalidations that could not complete"),
	}
	if h.classify == nil {
		h.classify = func(string) string { return "all" }
	}

	for _, c := range []prometheus.Collector{
		h.requests, h.fetchErrors, h.providerErrs, h.selfHeals, h.rejected,
		h.flushedKeys, h.flushes, h.indexErrs, h.outages,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Hooks) Hit(k string)  { h.requests.WithLabelValues(h.classify(k), "hit").Inc() }
func (h *Hooks) Miss(k string) { h.requests.WithLabelValues(h.classify(k), "miss").Inc() }

func (h *Hooks) FetchError(k string, _ error) {
	h.fetchErrors.WithLabelValues(h.classify(k)).Inc()
}

func (h *Hooks) ProviderError(op, _ string, _ error) { h.providerErrs.WithLabelValues(op).Inc() }
func (h *Hooks) SelfHeal(_, reason string)           { h.selfHeals.WithLabelValues(reason).Inc() }
func (h *Hooks) ProviderSetRejected(string)          { h.rejected.Inc() }

func (h *Hooks) TagsFlushed(tags []string, keys int) {
	h.flushedKeys.Add(float64(keys))
	for _, t := range tags {
		h.flushes.WithLabelValues(tagLabel(t)).Inc()
	}
}

func (h *Hooks) IndexError(op string, _ error)         { h.indexErrs.WithLabelValues(op).Inc() }
func (h *Hooks) InvalidateOutage(string, error, error) { h.outages.Inc() }

// tagLabel folds per-entity tags like "user:42" into "user" to bound cardinality.
func tagLabel(t string) string {
	for i := 0; i < len(t); i++ {
		if t[i] == ':' {
			return t[:i]
		}
	}
	return t
}

package tagcache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The cache calls them on hot paths.
type Hooks interface {
	// Hit and Miss fire from GetOrCompute only.
	Hit(storageKey string)
	Miss(storageKey string)

	// Fetch returned an error; nothing was cached.
	FetchError(storageKey string, err error)

	// Provider failed. op ∈ {"get", "set"}. On "get" the read bypassed the
	// cache unless FailClosed is set.
	ProviderError(op, storageKey string, err error)

	// An unreadable entry was deleted on read.
	// reason ∈ {"corrupt", "value_decode"}
	SelfHeal(storageKey, reason string)

	// Provider returned ok=false on Set (backpressure/eviction).
	ProviderSetRejected(storageKey string)

	// Tags were flushed; keys is the number of entries removed.
	TagsFlushed(tags []string, keys int)

	// TagIndex errors. op ∈ {"attach", "detach", "flush"}.
	IndexError(op string, err error)

	// An invalidation could not complete (likely backend outage).
	InvalidateOutage(target string, indexErr, delErr error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) Hit(string)                            {}
func (NopHooks) Miss(string)                           {}
func (NopHooks) FetchError(string, error)              {}
func (NopHooks) ProviderError(string, string, error)   {}
func (NopHooks) SelfHeal(string, string)               {}
func (NopHooks) ProviderSetRejected(string)            {}
func (NopHooks) TagsFlushed([]string, int)             {}
func (NopHooks) IndexError(string, error)              {}
func (NopHooks) InvalidateOutage(string, error, error) {}

// MultiHooks fans every event out to each hook in order.
type MultiHooks []Hooks

var _ Hooks = MultiHooks(nil)

func (m MultiHooks) Hit(k string) {
	for _, h := range m {
		h.Hit(k)
	}
}

func (m MultiHooks) Miss(k string) {
	for _, h := range m {
		h.Miss(k)
	}
}

func (m MultiHooks) FetchError(k string, err error) {
	for _, h := range m {
		h.FetchError(k, err)
	}
}

func (m MultiHooks) ProviderError(op, k string, err error) {
	for _, h := range m {
		h.ProviderError(op, k, err)
	}
}

func (m MultiHooks) SelfHeal(k, reason string) {
	for _, h := range m {
		h.SelfHeal(k, reason)
	}
}

func (m MultiHooks) ProviderSetRejected(k string) {
	for _, h := range m {
		h.ProviderSetRejected(k)
	}
}

func (m MultiHooks) TagsFlushed(tags []string, keys int) {
	for _, h := range m {
		h.TagsFlushed(tags, keys)
	}
}

func (m MultiHooks) IndexError(op string, err error) {
	for _, h := range m {
		h.IndexError(op, err)
	}
}

func (m MultiHooks) InvalidateOutage(target string, indexErr, delErr error) {
	for _, h := range m {
		h.InvalidateOutage(target, indexErr, delErr)
	}
}

package tagcache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/unkn0wn-root/tagcache/internal/util"
	"github.com/unkn0wn-root/tagcache/internal/wire"
	pr "github.com/unkn0wn-root/tagcache/provider"
	ti "github.com/unkn0wn-root/tagcache/tagindex"
)

const (
	defaultTTL            = 10 * time.Minute
	defaultSweep          = time.Hour
	defaultIndexRetention = 24 * time.Hour
)

// Store owns the provider and tag index shared by typed caches.
// It is safe for concurrent use.
type Store struct {
	ns             string
	provider       pr.Provider
	index          ti.TagIndex
	log            Logger
	hooks          Hooks
	enabled        bool
	defaultTTL     time.Duration
	now            func() time.Time
	computeSetCost SetCostFunc
	singleFlight   bool
	failClosed     bool
}

var _ Invalidator = (*Store)(nil)

// NewStore validates opts and applies defaults.
func NewStore(opts Options) (*Store, error) {
	if opts.Provider == nil {
		return nil, ErrProviderRequired
	}
	if opts.Namespace == "" {
		return nil, ErrNamespaceRequired
	}

	s := &Store{
		ns:           opts.Namespace,
		provider:     opts.Provider,
		enabled:      !opts.Disabled,
		singleFlight: opts.SingleFlight,
		failClosed:   opts.FailClosed,
	}

	s.log = coalesce[Logger](opts.Logger, NopLogger{})
	s.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	s.defaultTTL = coalesce[time.Duration](opts.DefaultTTL, defaultTTL)

	s.now = opts.Now
	if s.now == nil {
		s.now = time.Now
	}
	if opts.ComputeSetCost != nil {
		s.computeSetCost = opts.ComputeSetCost
	} else {
		s.computeSetCost = func(string, []byte) int64 { return 1 }
	}

	if opts.TagIndex != nil {
		s.index = opts.TagIndex
	} else {
		sweep := coalesce[time.Duration](opts.CleanupInterval, defaultSweep)
		retention := coalesce[time.Duration](opts.IndexRetention, defaultIndexRetention)
		s.index = ti.NewLocal(sweep, retention)
	}
	return s, nil
}

func (s *Store) Enabled() bool { return s.enabled }

func (s *Store) Namespace() string { return s.ns }

// Close closes the tag index (best effort) and then the provider.
func (s *Store) Close(ctx context.Context) error {
	if s.index != nil {
		_ = s.index.Close(ctx)
	}
	if s.provider != nil {
		return s.provider.Close(ctx)
	}
	return nil
}

func (s *Store) InvalidateKey(ctx context.Context, key string) error {
	if !s.enabled {
		return nil
	}
	if key == "" {
		return ErrEmptyKey
	}
	sk := s.storageKey(key)

	// learn the entry's tags so its memberships do not linger
	var tags []string
	if raw, ok, err := s.provider.Get(ctx, sk); err == nil && ok {
		if e, err := wire.Decode(raw); err == nil {
			tags = e.Tags
		}
	}

	var idxErr error
	if len(tags) > 0 {
		if idxErr = s.index.Detach(ctx, sk, tags); idxErr != nil {
			s.hooks.IndexError("detach", idxErr)
		}
	}
	if delErr := s.provider.Del(ctx, sk); delErr != nil {
		s.hooks.InvalidateOutage(key, idxErr, delErr)
		return &InvalidateError{Target: key, IndexErr: idxErr, DelErr: delErr}
	}
	s.log.Debug("invalidated key", Fields{"key": key, "tags": len(tags)})
	return nil
}

func (s *Store) InvalidateTags(ctx context.Context, tags ...string) error {
	if !s.enabled {
		return nil
	}
	tags = util.DedupTags(tags)
	if len(tags) == 0 {
		return nil
	}
	target := "tags:" + strings.Join(tags, ",")

	keys, err := s.index.Flush(ctx, tags)
	if err != nil {
		s.hooks.IndexError("flush", err)
		s.hooks.InvalidateOutage(target, err, nil)
		return &InvalidateError{Target: target, IndexErr: err}
	}

	var delErrs []error
	for _, k := range keys {
		if err := s.provider.Del(ctx, k); err != nil {
			delErrs = append(delErrs, err)
		}
	}
	s.hooks.TagsFlushed(tags, len(keys))
	s.log.Debug("flushed tags", Fields{"tags": tags, "keys": len(keys)})

	if len(delErrs) > 0 {
		derr := errors.Join(delErrs...)
		s.hooks.InvalidateOutage(target, nil, derr)
		return &InvalidateError{Target: target, DelErr: derr}
	}
	return nil
}

// load returns the payload of an unexpired entry. Provider errors are returned;
// corrupt entries are deleted and reported as misses.
func (s *Store) load(ctx context.Context, sk string) ([]byte, bool, error) {
	raw, ok, err := s.provider.Get(ctx, sk)
	if err != nil || !ok {
		return nil, false, err
	}
	e, err := wire.Decode(raw)
	if err != nil {
		s.selfHeal(ctx, sk, "corrupt")
		return nil, false, nil
	}
	if e.Expired(s.now().UnixNano()) {
		// providers without per-entry TTL (bigcache) keep expired bytes around
		_ = s.provider.Del(ctx, sk)
		return nil, false, nil
	}
	return e.Payload, true, nil
}

// save attaches sk to tags, writes the framed entry, then attaches again.
// A flush that lands between the first attach and the write removes the
// membership of an entry that is about to exist; the second attach restores
// it so later flushes still find the entry. The racing flush itself may miss
// that one write.
func (s *Store) save(ctx context.Context, sk string, payload []byte, ttl time.Duration, tags []string) error {
	switch {
	case ttl == 0:
		ttl = s.defaultTTL
	case ttl < 0:
		ttl = 0
	}
	tags = util.DedupTags(tags)

	var exp time.Time
	if ttl > 0 {
		exp = s.now().Add(ttl)
	}
	var expNanos int64
	if !exp.IsZero() {
		expNanos = exp.UnixNano()
	}
	raw, err := wire.Encode(wire.Entry{ExpiresAt: expNanos, Tags: tags, Payload: payload})
	if err != nil {
		return err
	}

	if err := s.index.Attach(ctx, sk, tags, exp); err != nil {
		s.hooks.IndexError("attach", err)
		return err
	}

	ok, err := s.provider.Set(ctx, sk, raw, s.computeSetCost(sk, raw), ttl)
	if err != nil {
		return err
	}
	if !ok {
		s.hooks.ProviderSetRejected(sk)
		s.log.Debug("set rejected by provider (pressure)", Fields{"key": sk})
		return nil
	}

	if len(tags) > 0 {
		if err := s.index.Attach(ctx, sk, tags, exp); err != nil {
			// an entry without its memberships would escape tag flushes
			s.hooks.IndexError("attach", err)
			_ = s.provider.Del(ctx, sk)
			return err
		}
	}
	return nil
}

func (s *Store) selfHeal(ctx context.Context, sk, reason string) {
	_ = s.provider.Del(ctx, sk)
	s.hooks.SelfHeal(sk, reason)
	s.log.Debug("dropped unreadable entry", Fields{"key": sk, "reason": reason})
}

func (s *Store) storageKey(userKey string) string {
	return util.StorageKey("entry", s.ns, userKey)
}

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

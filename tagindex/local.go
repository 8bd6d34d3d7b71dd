package tagindex

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Local keeps tag memberships in-process (default).
// Optional cleanup loop prunes memberships of entries that expired more than
// retention ago. Memberships of entries without expiry are never pruned.
type Local struct {
	mu     sync.Mutex
	sets   map[string]map[string]time.Time // tag -> key -> entry expiry (zero: none)
	now    func() time.Time
	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once

	retention time.Duration
}

var _ TagIndex = (*Local)(nil)

// NewLocal creates an in-process index. retention is the grace kept after an
// entry's expiry before its memberships are pruned.
func NewLocal(cleanupInterval, retention time.Duration) *Local {
	s := &Local{
		sets:      make(map[string]map[string]time.Time),
		now:       time.Now,
		retention: retention,
	}
	if cleanupInterval > 0 && retention > 0 {
		s.ticker = time.NewTicker(cleanupInterval)
		s.stopCh = make(chan struct{})
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-s.ticker.C:
					s.Cleanup(retention)
				case <-s.stopCh:
					return
				}
			}
		}()
	}
	return s
}

func (s *Local) Attach(_ context.Context, key string, tags []string, expiresAt time.Time) error {
	if len(tags) == 0 {
		return nil
	}
	s.mu.Lock()
	for _, t := range tags {
		set, ok := s.sets[t]
		if !ok {
			set = make(map[string]time.Time)
			s.sets[t] = set
		}
		set[key] = expiresAt
	}
	s.mu.Unlock()
	return nil
}

func (s *Local) Detach(_ context.Context, key string, tags []string) error {
	s.mu.Lock()
	for _, t := range tags {
		set, ok := s.sets[t]
		if !ok {
			continue
		}
		delete(set, key)
		if len(set) == 0 {
			delete(s.sets, t)
		}
	}
	s.mu.Unlock()
	return nil
}

// Flush takes the lock once so no Attach interleaves between reading and
// clearing the sets.
func (s *Local) Flush(_ context.Context, tags []string) ([]string, error) {
	union := make(map[string]struct{})
	s.mu.Lock()
	for _, t := range tags {
		for k := range s.sets[t] {
			union[k] = struct{}{}
		}
		delete(s.sets, t)
	}
	s.mu.Unlock()
	return sortedKeys(union), nil
}

func (s *Local) Members(_ context.Context, tag string) ([]string, error) {
	s.mu.Lock()
	set := s.sets[tag]
	out := make(map[string]struct{}, len(set))
	for k := range set {
		out[k] = struct{}{}
	}
	s.mu.Unlock()
	return sortedKeys(out), nil
}

func (s *Local) Cleanup(retention time.Duration) {
	if retention <= 0 {
		return
	}
	cutoff := s.now().Add(-retention)

	s.mu.Lock()
	for t, set := range s.sets {
		for k, exp := range set {
			if !exp.IsZero() && exp.Before(cutoff) {
				delete(set, k)
			}
		}
		if len(set) == 0 {
			delete(s.sets, t)
		}
	}
	s.mu.Unlock()
}

func (s *Local) Close(_ context.Context) error {
	s.once.Do(func() {
		if s.stopCh != nil {
			close(s.stopCh)
			if s.ticker != nil {
				s.ticker.Stop()
			}
			s.wg.Wait()
		}
	})
	return nil
}

func sortedKeys(m map[string]struct{}) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Package memory is an in-process provider backed by a map and an LRU list.
// It honors per-entry TTLs and is the default for development and tests.
package memory

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"time"

	pr "github.com/unkn0wn-root/tagcache/provider"
)

var ErrClosed = errors.New("memory provider: closed")

type Config struct {
	// MaxEntries <= 0 means unbounded.
	MaxEntries int
	// SweepInterval <= 0 disables the background sweep; expired entries are
	// still dropped on access.
	SweepInterval time.Duration
	// Now overrides the clock. nil => time.Now.
	Now func() time.Time
}

type entry struct {
	key       string
	value     []byte
	expiresAt time.Time // zero => never
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !e.expiresAt.After(now)
}

// Memory keeps the most recently used entry at the front of lru.
type Memory struct {
	mu    sync.Mutex
	items map[string]*list.Element
	lru   *list.List
	max   int
	now   func() time.Time

	stop   chan struct{}
	wg     sync.WaitGroup
	closed bool
}

var _ pr.Provider = (*Memory)(nil)

func New(cfg Config) *Memory {
	m := &Memory{
		items: make(map[string]*list.Element),
		lru:   list.New(),
		max:   cfg.MaxEntries,
		now:   cfg.Now,
		stop:  make(chan struct{}),
	}
	if m.now == nil {
		m.now = time.Now
	}
	if cfg.SweepInterval > 0 {
		m.wg.Add(1)
		go m.sweepLoop(cfg.SweepInterval)
	}
	return m
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, false, ErrClosed
	}
	el, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	e := el.Value.(*entry)
	if e.expired(m.now()) {
		m.removeLocked(el)
		return nil, false, nil
	}
	m.lru.MoveToFront(el)
	return clone(e.value), true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, ErrClosed
	}
	var exp time.Time
	if ttl > 0 {
		exp = m.now().Add(ttl)
	}
	if el, ok := m.items[key]; ok {
		e := el.Value.(*entry)
		e.value = clone(value)
		e.expiresAt = exp
		m.lru.MoveToFront(el)
		return true, nil
	}
	m.items[key] = m.lru.PushFront(&entry{key: key, value: clone(value), expiresAt: exp})
	m.evictLocked()
	return true, nil
}

func (m *Memory) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.items[key]; ok {
		m.removeLocked(el)
	}
	return nil
}

// Close stops the sweeper. Safe to call more than once.
func (m *Memory) Close(context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.stop)
	m.wg.Wait()
	return nil
}

// Len counts stored entries, including expired ones not yet swept.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Sweep drops expired entries and returns how many were removed.
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for el := m.lru.Back(); el != nil; {
		prev := el.Prev()
		if el.Value.(*entry).expired(now) {
			m.removeLocked(el)
			n++
		}
		el = prev
	}
	return n
}

func (m *Memory) sweepLoop(every time.Duration) {
	defer m.wg.Done()
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			m.Sweep()
		case <-m.stop:
			return
		}
	}
}

func (m *Memory) evictLocked() {
	if m.max <= 0 {
		return
	}
	for len(m.items) > m.max {
		back := m.lru.Back()
		if back == nil {
			return
		}
		m.removeLocked(back)
	}
}

func (m *Memory) removeLocked(el *list.Element) {
	m.lru.Remove(el)
	delete(m.items, el.Value.(*entry).key)
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

package asynchook

import (
	"sync"
	"testing"

	"github.com/unkn0wn-root/tagcache"
)

type countingHooks struct {
	tagcache.NopHooks
	mu      sync.Mutex
	hits    int
	flushed []string
	block   chan struct{}
}

func (c *countingHooks) Hit(string) {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
}

func (c *countingHooks) TagsFlushed(tags []string, _ int) {
	c.mu.Lock()
	c.flushed = append(c.flushed, tags...)
	c.mu.Unlock()
}

func TestDeliversBeforeClose(t *testing.T) {
	inner := &countingHooks{}
	h := New(inner, 2, 100)
	for i := 0; i < 50; i++ {
		h.Hit("k")
	}
	tags := []string{"questions"}
	h.TagsFlushed(tags, 1)
	tags[0] = "mutated"
	h.Close()

	if inner.hits != 50 {
		t.Fatalf("hits=%d want 50", inner.hits)
	}
	if len(inner.flushed) != 1 || inner.flushed[0] != "questions" {
		t.Fatalf("flushed=%v", inner.flushed)
	}
	if h.Dropped() != 0 {
		t.Fatalf("dropped=%d", h.Dropped())
	}
}

func TestDropsWhenFullAndAfterClose(t *testing.T) {
	inner := &countingHooks{block: make(chan struct{})}
	h := New(inner, 1, 1)

	// one event held by the worker, one in the queue, the rest dropped
	for i := 0; i < 10; i++ {
		h.Hit("k")
	}
	close(inner.block)
	h.Close()
	if h.Dropped() == 0 {
		t.Fatalf("expected drops with a full queue")
	}

	before := h.Dropped()
	h.Miss("k")
	h.Close()
	if h.Dropped() != before+1 {
		t.Fatalf("event after close should be dropped")
	}
}

package memory

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func TestGetSetDel(t *testing.T) {
	ctx := context.Background()
	m := New(Config{})
	defer m.Close(ctx)

	if _, ok, err := m.Get(ctx, "k"); ok || err != nil {
		t.Fatalf("empty get: ok=%v err=%v", ok, err)
	}
	in := []byte("v1")
	if ok, err := m.Set(ctx, "k", in, 1, 0); !ok || err != nil {
		t.Fatalf("set: ok=%v err=%v", ok, err)
	}
	in[0] = 'x' // stored bytes must not alias the caller's slice
	got, ok, _ := m.Get(ctx, "k")
	if !ok || string(got) != "v1" {
		t.Fatalf("got %q ok=%v", got, ok)
	}
	if err := m.Del(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if err := m.Del(ctx, "k"); err != nil {
		t.Fatalf("deleting an absent key: %v", err)
	}
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Fatalf("key should be gone")
	}
}

func TestTTL(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{t: time.Unix(100, 0)}
	m := New(Config{Now: clk.now})
	defer m.Close(ctx)

	_, _ = m.Set(ctx, "short", []byte("a"), 1, time.Second)
	_, _ = m.Set(ctx, "forever", []byte("b"), 1, 0)

	clk.advance(999 * time.Millisecond)
	if _, ok, _ := m.Get(ctx, "short"); !ok {
		t.Fatalf("expired too early")
	}
	clk.advance(time.Millisecond)
	if _, ok, _ := m.Get(ctx, "short"); ok {
		t.Fatalf("should have expired")
	}
	if _, ok, _ := m.Get(ctx, "forever"); !ok {
		t.Fatalf("ttl 0 must not expire")
	}
}

func TestLRUEviction(t *testing.T) {
	ctx := context.Background()
	m := New(Config{MaxEntries: 2})
	defer m.Close(ctx)

	_, _ = m.Set(ctx, "a", []byte("1"), 1, 0)
	_, _ = m.Set(ctx, "b", []byte("2"), 1, 0)
	_, _, _ = m.Get(ctx, "a") // a is now most recent
	_, _ = m.Set(ctx, "c", []byte("3"), 1, 0)

	if _, ok, _ := m.Get(ctx, "b"); ok {
		t.Fatalf("b should have been evicted")
	}
	for _, k := range []string{"a", "c"} {
		if _, ok, _ := m.Get(ctx, k); !ok {
			t.Fatalf("%s should remain", k)
		}
	}
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{t: time.Unix(100, 0)}
	m := New(Config{Now: clk.now})
	defer m.Close(ctx)

	_, _ = m.Set(ctx, "a", []byte("1"), 1, time.Second)
	_, _ = m.Set(ctx, "b", []byte("2"), 1, time.Minute)
	clk.advance(2 * time.Second)

	if n := m.Sweep(); n != 1 {
		t.Fatalf("swept %d want 1", n)
	}
	if m.Len() != 1 {
		t.Fatalf("len=%d", m.Len())
	}
}

func TestClosed(t *testing.T) {
	ctx := context.Background()
	m := New(Config{SweepInterval: time.Millisecond})
	if err := m.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if err := m.Close(ctx); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, err := m.Set(ctx, "k", nil, 1, 0); !errors.Is(err, ErrClosed) {
		t.Fatalf("want ErrClosed, got %v", err)
	}
}

package bigcache

import (
	"context"
	"testing"
	"time"
)

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	p, err := New(ctx, Config{LifeWindow: time.Hour, Shards: 16})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close(ctx)

	if _, ok, err := p.Get(ctx, "k"); ok || err != nil {
		t.Fatalf("miss: ok=%v err=%v", ok, err)
	}
	if ok, err := p.Set(ctx, "k", []byte("v"), 1, time.Second); !ok || err != nil {
		t.Fatalf("set: ok=%v err=%v", ok, err)
	}
	b, ok, err := p.Get(ctx, "k")
	if err != nil || !ok || string(b) != "v" {
		t.Fatalf("get: %q ok=%v err=%v", b, ok, err)
	}
	if p.Len() != 1 {
		t.Fatalf("len=%d", p.Len())
	}
	if err := p.Del(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if err := p.Del(ctx, "k"); err != nil {
		t.Fatalf("del of absent key: %v", err)
	}
}

package ristretto

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestInvalidConfig(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("want ErrInvalidConfig, got %v", err)
	}
}

func TestSyncSetIsVisible(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig(1000)
	cfg.Sync = true
	cfg.Metrics = true
	p, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close(ctx)

	if ok, err := p.Set(ctx, "k", []byte("v"), 1, time.Minute); !ok || err != nil {
		t.Fatalf("set: ok=%v err=%v", ok, err)
	}
	b, ok, err := p.Get(ctx, "k")
	if err != nil || !ok || string(b) != "v" {
		t.Fatalf("get: %q ok=%v err=%v", b, ok, err)
	}
	if p.Metrics() == nil {
		t.Fatalf("metrics enabled but nil")
	}

	_ = p.Del(ctx, "k")
	if _, ok, _ := p.Get(ctx, "k"); ok {
		t.Fatalf("deleted key still present")
	}
}

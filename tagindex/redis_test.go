package tagindex

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisIndex(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisWithTTL(rdb, "test", ttl), mr
}

func TestRedisAttachFlush(t *testing.T) {
	ctx := context.Background()
	s, _ := newRedisIndex(t, 0)

	if err := s.Attach(ctx, "k1", []string{"questions", "popular"}, time.Time{}); err != nil {
		t.Fatal(err)
	}
	if err := s.Attach(ctx, "k2", []string{"solutions", "popular"}, time.Time{}); err != nil {
		t.Fatal(err)
	}

	got, err := s.Flush(ctx, []string{"popular"})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(got, ",") != "k1,k2" {
		t.Fatalf("got=%v", got)
	}
	if m, _ := s.Members(ctx, "popular"); len(m) != 0 {
		t.Fatalf("popular not cleared: %v", m)
	}
	if m, _ := s.Members(ctx, "questions"); len(m) != 1 || m[0] != "k1" {
		t.Fatalf("questions members=%v", m)
	}
}

func TestRedisDetachAndUnknownFlush(t *testing.T) {
	ctx := context.Background()
	s, _ := newRedisIndex(t, 0)

	_ = s.Attach(ctx, "a", []string{"t"}, time.Time{})
	if err := s.Detach(ctx, "a", []string{"t", "missing"}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Flush(ctx, []string{"t", "missing"})
	if err != nil || len(got) != 0 {
		t.Fatalf("got=%v err=%v", got, err)
	}
}

func TestRedisTagSetTTL(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisIndex(t, time.Minute)

	_ = s.Attach(ctx, "a", []string{"t"}, time.Now().Add(time.Second))
	if ttl := mr.TTL("tags:test:t"); ttl != time.Minute {
		t.Fatalf("ttl=%v", ttl)
	}
	mr.FastForward(2 * time.Minute)
	if m, _ := s.Members(ctx, "t"); len(m) != 0 {
		t.Fatalf("expected expired set, got %v", m)
	}
}

func TestRedisTagSetOutlivesItsEntries(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisIndex(t, time.Minute)

	_ = s.Attach(ctx, "long", []string{"t"}, time.Now().Add(time.Hour))
	if ttl := mr.TTL("tags:test:t"); ttl <= 59*time.Minute {
		t.Fatalf("set would expire before its entry: ttl=%v", ttl)
	}

	_ = s.Attach(ctx, "forever", []string{"t"}, time.Time{})
	if ttl := mr.TTL("tags:test:t"); ttl != 0 {
		t.Fatalf("set holding a non-expiring entry must persist, ttl=%v", ttl)
	}
	mr.FastForward(48 * time.Hour)
	if m, _ := s.Members(ctx, "t"); len(m) != 2 {
		t.Fatalf("members=%v", m)
	}
}

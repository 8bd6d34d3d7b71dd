package tagindex

import (
	"context"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis shares tag memberships across processes and survives restarts.
// Each tag is a Redis set at "tags:<ns>:<tag>". Optionally a TTL is refreshed
// on every Attach to bound growth of sets whose tags are never flushed. The
// refreshed TTL never ends before the attached entry expires, and attaching an
// entry without expiry makes the set persistent.
//
// The client is shared with the provider; Close does not close it.
type Redis struct {
	rdb redis.UniversalClient
	ns  string
	ttl time.Duration
}

var _ TagIndex = (*Redis)(nil)

// NewRedis creates a Redis-backed index without TTL.
func NewRedis(client redis.UniversalClient, namespace string) *Redis {
	return &Redis{rdb: client, ns: namespace}
}

// NewRedisWithTTL creates a Redis-backed index whose tag sets expire ttl after
// their last Attach (or when the attached entry expires, if later). If ttl <= 0,
// sets do not expire.
func NewRedisWithTTL(client redis.UniversalClient, namespace string, ttl time.Duration) *Redis {
	return &Redis{rdb: client, ns: namespace, ttl: ttl}
}

func (s *Redis) key(tag string) string { return "tags:" + s.ns + ":" + tag }

func (s *Redis) Attach(ctx context.Context, key string, tags []string, expiresAt time.Time) error {
	if len(tags) == 0 {
		return nil
	}
	life := s.ttl
	if life > 0 && !expiresAt.IsZero() {
		if rem := time.Until(expiresAt); rem > life {
			life = rem
		}
	}
	_, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, t := range tags {
			k := s.key(t)
			p.SAdd(ctx, k, key)
			switch {
			case s.ttl <= 0:
			case expiresAt.IsZero():
				p.Persist(ctx, k)
			default:
				p.Expire(ctx, k, life)
			}
		}
		return nil
	})
	return err
}

func (s *Redis) Detach(ctx context.Context, key string, tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	_, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, t := range tags {
			p.SRem(ctx, s.key(t), key)
		}
		return nil
	})
	return err
}

// Flush reads and deletes all tag sets inside one MULTI/EXEC so a concurrent
// SADD lands either before (and is returned) or after (and survives).
func (s *Redis) Flush(ctx context.Context, tags []string) ([]string, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	members := make([]*redis.StringSliceCmd, 0, len(tags))
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, t := range tags {
			k := s.key(t)
			members = append(members, p.SMembers(ctx, k))
			p.Del(ctx, k)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	union := make(map[string]struct{})
	for _, cmd := range members {
		for _, k := range cmd.Val() {
			union[k] = struct{}{}
		}
	}
	return sortedKeys(union), nil
}

func (s *Redis) Members(ctx context.Context, tag string) ([]string, error) {
	out, err := s.rdb.SMembers(ctx, s.key(tag)).Result()
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	sort.Strings(out)
	return out, nil
}

// Cleanup is not applicable (Redis handles expiry if TTL is set).
func (s *Redis) Cleanup(time.Duration) {}

func (s *Redis) Close(context.Context) error { return nil }

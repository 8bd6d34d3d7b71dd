package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis publishes JSON messages with PUBLISH so other processes (and their
// hubs) can relay them.
type Redis struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedis publishes channel c as prefix+c. An empty prefix defaults to
// "infodot:".
func NewRedis(rdb redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = "infodot:"
	}
	return &Redis{rdb: rdb, prefix: prefix}
}

func (r *Redis) Publish(ctx context.Context, channel, event string, payload map[string]any) error {
	b, err := json.Marshal(Message{Channel: channel, Event: event, Payload: payload, SentAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("broadcast: marshal: %w", err)
	}
	if err := r.rdb.Publish(ctx, r.prefix+channel, b).Err(); err != nil {
		return fmt.Errorf("broadcast: redis publish %s: %w", channel, err)
	}
	return nil
}

// Relay subscribes to every prefixed channel and republishes each message to
// dst until ctx is done or dst is a stopped hub. It lets a hub serve events
// published elsewhere. Shutdown is not an error.
func (r *Redis) Relay(ctx context.Context, dst Publisher) error {
	sub := r.rdb.PSubscribe(ctx, r.prefix+"*")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("broadcast: psubscribe: %w", err)
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var m Message
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				continue
			}
			if err := dst.Publish(ctx, m.Channel, m.Event, m.Payload); err != nil {
				if ctx.Err() != nil || errors.Is(err, ErrHubStopped) {
					return nil
				}
				return err
			}
		}
	}
}

// Package provider defines the byte stores tagcache writes framed entries to.
//
// A provider must hand back exactly the bytes it was given: the cache relies
// on its own frame for expiry and tags and treats anything it cannot parse as
// corruption. Keys under "entry:<ns>:" belong to the cache; other writers must
// stay out of that keyspace.
package provider

import (
	"context"
	"time"
)

// Provider is a concurrent-safe byte store with optional per-entry TTL.
type Provider interface {
	// Get returns (value, true, nil) on a hit and (nil, false, nil) on a miss.
	// Transport or server failures return a non-nil error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value. cost is a hint for cost-aware stores and ttl <= 0
	// means no expiry. ok=false means the store dropped the write.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes key. Deleting an absent key is not an error.
	Del(ctx context.Context, key string) error

	Close(ctx context.Context) error
}

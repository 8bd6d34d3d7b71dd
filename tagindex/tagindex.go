// Package tagindex keeps the secondary index from cache tags to the storage
// keys labelled with them.
//
// Flushing a tag returns every key currently in its set and empties the set;
// the caller is responsible for deleting those keys from the provider.
// Memberships may outlive the entries they point at (TTL expiry does not touch
// the index); deleting an already-absent key is harmless.
package tagindex

import (
	"context"
	"time"
)

// TagIndex abstracts where tag memberships live.
// Use Local for a single process, or Redis when several replicas share a provider.
type TagIndex interface {
	// Attach adds key to the set of every tag in tags. expiresAt is when the
	// entry stored under key expires; zero means it never does.
	Attach(ctx context.Context, key string, tags []string, expiresAt time.Time) error
	// Detach removes key from the given tags' sets. Missing memberships are ignored.
	Detach(ctx context.Context, key string, tags []string) error
	// Flush atomically empties the given tags and returns the union of their
	// members, each key once. Unknown tags contribute nothing.
	Flush(ctx context.Context, tags []string) ([]string, error)
	// Members returns the keys currently attached to tag.
	Members(ctx context.Context, tag string) ([]string, error)
	// Cleanup prunes memberships whose entry expired more than retention ago
	// (no-op for Redis).
	Cleanup(retention time.Duration)
	// Close releases resources (no-op ok).
	Close(context.Context) error
}

// Package tagcache implements a provider-agnostic cache-aside layer with
// tag-scoped invalidation.
//
// Components:
//   - Provider: byte store with TTL (memory, Ristretto, BigCache, Redis).
//   - Codec[V]: (de)serializes V <-> []byte.
//   - TagIndex: secondary index tag -> storage keys. Local (in-process) by
//     default, optional Redis implementation shared by replicas.
//
// A Store owns the provider and the index; typed Cache[V] views are created
// over it with New. All views of one Store share a namespace, so a tag flush
// reaches entries written through any of them.
//
// Keys:
//
//	entry:<ns>:<key>  - framed entries (expiry + tags + payload)
//	tags:<ns>:<tag>   - tag sets (Redis index only)
//
// Read path:
//
//	v, err := questions.GetOrCompute(ctx, "questions:recent:limit=10", time.Minute,
//	    []string{"questions", "recent"}, fetchRecent)
//
// Write path (after the database commit):
//
//	_ = store.InvalidateTags(ctx, "questions")
//
// Consistency: a recompute that read the database before an invalidation may
// still write its (now stale) result after the invalidation. Nothing here
// orders the two; the next TTL expiry or invalidation repairs the entry.
package tagcache

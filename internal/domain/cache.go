package domain

import (
	"context"
	"time"
)

// Cache namespaces, one per memoized pipeline stage. Entries in
// different namespaces never collide even for identical keys.
const (
	CacheNamespaceQueryAnalysis = "query-analysis"
	CacheNamespaceRetrieval     = "retrieval"
	CacheNamespaceReranking     = "reranking"
)

// Cache is a namespaced key/value store with per-entry expiry.
//
// Cache trouble must never abort the pipeline, so the interface has no
// error returns: implementations treat a failed read as a miss and
// silently drop a failed write (logging at most). Entries are
// write-once per key per TTL and reads are idempotent, so no locking
// beyond the store's own is required.
type Cache interface {
	// Get returns the value stored under key in namespace. A missing
	// or expired entry is a miss (false), not an error.
	Get(ctx context.Context, namespace, key string) ([]byte, bool)

	// Set stores value under key in namespace for ttl.
	Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration)
}

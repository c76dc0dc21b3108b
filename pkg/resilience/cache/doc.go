// Package cache stores quote snapshots twice: once in a TTL cache that
// answers the hot path, and once in a last-known-good store that never
// expires and backs degraded-mode responses.
//
// The two records age differently on purpose. A cache entry is only valid
// while now - fetchedAt <= TTL; past that the fetcher must consult the
// upstream again. The last-known-good record for the same key survives
// indefinitely and is only ever overwritten by a newer successful fetch, so
// a provider outage hours long still leaves something to serve.
//
// Entries are idempotent snapshots of an externally-timestamped value, so
// both backends use last-writer-wins semantics; there is no merge.
//
// NewMemoryStore keeps both maps in process memory. NewRedisStore shares
// them across instances: cache keys carry a Redis-side expiry to bound
// storage, last-known-good keys persist.
package cache

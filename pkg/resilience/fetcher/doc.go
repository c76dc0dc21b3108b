// Package fetcher layers the resilience primitives into one read path:
// TTL cache, outbound rate limit, circuit breaker, retried provider call
// with value validation, and a last-known-good fallback.
//
// A fresh cache entry answers immediately without touching the network or
// spending a rate limit token. Everything after a miss can degrade: a denied
// limiter, an open breaker, or an exhausted retry sequence all fall back to
// the newest previously fetched value, marked Stale. Only when no value was
// ever fetched does FetchValue fail, with ErrUnavailable.
//
// The zero-dependency outbound governor is CallLog, a process-local sliding
// window. Any distributed limiter exposing Allow(ctx, key) can take its
// place for cluster-wide coordination.
package fetcher

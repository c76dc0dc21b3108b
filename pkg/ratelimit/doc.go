/*
Package ratelimit provides rate limiting primitives for Go applications.

This package offers two layers:

  - bucket: Pure token bucket arithmetic for a single rate-limited key
  - distributed: Shared, atomically-updated rate limiting across instances

The bucket package carries no I/O; it is the arithmetic core that both
distributed backends apply against their stores:

	cfg := bucket.Config{MaxTokens: 10, RefillRate: 10, Window: time.Second}
	state := bucket.NewState(cfg, time.Now())
	state, allowed := bucket.Take(cfg, state, time.Now())

The distributed package wraps the same semantics behind a Redis Lua script
or a mutex-guarded in-memory store, keyed by caller identity:

	limiter, _ := distributed.NewRedisLimiter(distributed.Config{
		Redis:      rdb,
		MaxTokens:  100,
		RefillRate: 100,
		Window:     time.Minute,
	})
	if limiter.Allow(ctx, "ip:10.0.0.1") {
		// Handle request
	}

Denied inbound requests should receive HTTP 429 with X-RateLimit-Limit,
X-RateLimit-Remaining and X-RateLimit-Reset headers; see examples/api-guard.

Both backends fail open: a store outage admits the request, logs the error
and increments the fail-open counter rather than turning a Redis incident
into an API outage.
*/
package ratelimit

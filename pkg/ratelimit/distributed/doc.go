// Package distributed provides keyed rate limiting shared across multiple
// application instances, with Redis as the coordination backend.
//
// Each key (an IP, a user ID, a provider name) owns a token bucket persisted
// in the shared store. The check-and-decrement for a key executes as a single
// atomic unit (a Lua script for the Redis backend, a mutex-guarded map for
// the in-memory backend), so N concurrent checks against a bucket holding N
// tokens admit exactly N.
//
// # Quick Start
//
//	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//
//	limiter, err := distributed.NewRedisLimiter(distributed.Config{
//		Redis:      rdb,
//		MaxTokens:  100,           // burst capacity
//		RefillRate: 100,           // tokens per window
//		Window:     time.Minute,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer limiter.Close()
//
//	if limiter.Allow(ctx, "ip:"+addr) {
//		// Process request
//	} else {
//		// Respond 429 with X-RateLimit-* headers from Remaining
//	}
//
// # Backends
//
// NewRedisLimiter coordinates through Redis and is the right choice for
// horizontally scaled deployments: every instance sees the same bucket.
// Bucket records expire after twice the window when unused, so idle keys
// cost nothing.
//
// NewMemoryLimiter keeps buckets in process memory behind a mutex. It
// satisfies the same contract for single-node deployments and for governing
// a process's own outbound calls, and it never fails.
//
// # Failure Semantics
//
// The limiter never propagates store errors to callers. When Redis is
// unreachable a check is allowed, logged at Warn, and counted in the
// fail-open metric; availability wins over strict enforcement. Deployments
// that need the opposite policy (login throttling, abuse control) set
// Config.FailClosed.
//
// # Informational Reads
//
// Remaining reports the tokens a key would have right now without consuming
// one and without advancing the refill clock; it backs X-RateLimit-Remaining
// headers. Reset deletes a key's bucket so its next check starts full.
package distributed

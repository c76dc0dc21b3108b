/*
Package rateshield provides a Go library for protecting APIs and consuming
unreliable external data feeds, built around distributed rate limiting and
layered failure isolation.

Rate Limiting (pkg/ratelimit):
  - bucket: Token bucket arithmetic with smooth time-based refill
  - distributed: Multi-instance rate limiting with Redis, fail-open semantics

Resilience (pkg/resilience):
  - breaker: Circuit breaker for known-unhealthy upstreams
  - retry: Exponential backoff retry with transient-error classification
  - cache: TTL quote cache with a last-known-good fallback store
  - provider: HTTP clients for FX and crypto quote feeds
  - fetcher: Resilient fetch orchestration with degraded-mode fallback

Example usage:

	import (
		"github.com/vnykmshr/rateshield/pkg/ratelimit/distributed"
		"github.com/vnykmshr/rateshield/pkg/resilience/fetcher"
	)

	limiter, _ := distributed.NewMemoryLimiter(distributed.Config{
		MaxTokens:  100,
		RefillRate: 100,
		Window:     time.Minute,
	})
	defer limiter.Close()

	if limiter.Allow(ctx, "ip:10.0.0.1") {
		// Handle request
	}

	f, _ := fetcher.New(fetcher.Config{Provider: fxProvider})
	quote, err := f.FetchValue(ctx, "fx:gbp_usd")
	if err == nil && quote.Stale {
		// Degraded mode: last known good value
	}
*/
package rateshield

/*
Package resilience provides the building blocks for consuming volatile,
rate-limited, occasionally-unreliable external data feeds.

The packages layer from leaf to orchestrator:

  - breaker: Circuit breaker that fast-fails calls to a known-unhealthy upstream
  - retry: Exponential backoff retry for transient failures
  - cache: TTL quote cache plus a never-expiring last-known-good store
  - provider: HTTP clients for FX and crypto quote feeds
  - fetcher: Orchestrates cache, rate limit, breaker, retry and fallback

The design philosophy is shared with pkg/ratelimit: bound concurrent access
to a scarce resource, degrade gracefully under failure, and never let one
bad dependency cascade. A fetch returns a fresh value, a value explicitly
flagged stale, or an explicit unavailability error, never an ambiguous
default.
*/
package resilience

// Package metrics provides Prometheus instrumentation for rateshield components.
//
// The registry covers every observable side effect the engine produces:
// rate limit admissions and denials, fail-open events, cache hits and misses,
// circuit breaker transitions, network fetch attempts and fallback usage.
//
// # Quick Start
//
// Components accept a metrics Config and register against the default
// Prometheus registerer unless told otherwise:
//
//	limiter, _ := distributed.NewMemoryLimiter(distributed.Config{
//		MaxTokens:  100,
//		RefillRate: 100,
//		Window:     time.Minute,
//		Metrics:    metrics.DefaultConfig(),
//	})
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.Handler())
//	log.Fatal(http.ListenAndServe(":8080", nil))
//
// # Available Metrics
//
// ## Rate Limiting
//
//   - rateshield_ratelimit_requests_total: Total admission checks
//   - rateshield_ratelimit_allowed_total: Checks that were admitted
//   - rateshield_ratelimit_denied_total: Checks that were denied
//   - rateshield_ratelimit_failopen_total: Checks allowed because the backend store failed
//   - rateshield_ratelimit_tokens_available: Tokens remaining after the last check
//
// ## Cache
//
//   - rateshield_cache_hits_total: Fresh cache hits
//   - rateshield_cache_misses_total: Cache misses or expired entries
//   - rateshield_cache_entries: Current cache size
//
// ## Circuit Breaker
//
//   - rateshield_breaker_transitions_total: State transitions, labeled by target state
//   - rateshield_breaker_consecutive_failures: Current consecutive failure count
//   - rateshield_breaker_open: 1 while the breaker is open
//
// ## Fetcher
//
//   - rateshield_fetch_attempts_total: Network attempts against the provider
//   - rateshield_fetch_fallbacks_total: Responses served from last-known-good data
//   - rateshield_fetch_duration_seconds: End-to-end fetch latency
//   - rateshield_refresh_runs_total: Scheduled background refresh runs
//
// # Labels
//
// Metrics include relevant labels for filtering and aggregation:
//
//   - limiter_type: "token_bucket" or "call_log"
//   - limiter_name, cache_name, breaker_name, fetcher_name: user-provided instance names
//   - state: breaker transition target ("open", "closed")
//   - result: fetch outcome ("fresh", "stale", "error")
package metrics

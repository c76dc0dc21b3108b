// Package metrics provides Prometheus instrumentation for rateshield components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metric instances for rateshield components.
type Registry struct {
	// Rate Limiting Metrics
	RateLimitRequests *prometheus.CounterVec
	RateLimitAllowed  *prometheus.CounterVec
	RateLimitDenied   *prometheus.CounterVec
	RateLimitFailOpen *prometheus.CounterVec
	RateLimitTokens   *prometheus.GaugeVec

	// Cache Metrics
	CacheHits    *prometheus.CounterVec
	CacheMisses  *prometheus.CounterVec
	CacheEntries *prometheus.GaugeVec

	// Circuit Breaker Metrics
	BreakerTransitions *prometheus.CounterVec
	BreakerFailures    *prometheus.GaugeVec
	BreakerOpen        *prometheus.GaugeVec

	// Fetcher Metrics
	FetchAttempts  *prometheus.CounterVec
	FetchFallbacks *prometheus.CounterVec
	FetchDuration  *prometheus.HistogramVec
	RefreshRuns    *prometheus.CounterVec
}

// DefaultRegistry is the default metrics registry used by rateshield components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus
// registerer. It registers every collector, so call it at most once per
// registerer; Config.Resolve handles that bookkeeping.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		// Rate Limiting Metrics
		RateLimitRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rateshield",
				Subsystem: "ratelimit",
				Name:      "requests_total",
				Help:      "Total number of rate limit admission checks",
			},
			[]string{"limiter_type", "limiter_name"},
		),

		RateLimitAllowed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rateshield",
				Subsystem: "ratelimit",
				Name:      "allowed_total",
				Help:      "Total number of admitted checks",
			},
			[]string{"limiter_type", "limiter_name"},
		),

		RateLimitDenied: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rateshield",
				Subsystem: "ratelimit",
				Name:      "denied_total",
				Help:      "Total number of denied checks",
			},
			[]string{"limiter_type", "limiter_name"},
		),

		RateLimitFailOpen: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rateshield",
				Subsystem: "ratelimit",
				Name:      "failopen_total",
				Help:      "Checks allowed because the backing store was unreachable",
			},
			[]string{"limiter_type", "limiter_name"},
		),

		RateLimitTokens: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "rateshield",
				Subsystem: "ratelimit",
				Name:      "tokens_available",
				Help:      "Tokens remaining after the most recent check",
			},
			[]string{"limiter_type", "limiter_name"},
		),

		// Cache Metrics
		CacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rateshield",
				Subsystem: "cache",
				Name:      "hits_total",
				Help:      "Total number of fresh cache hits",
			},
			[]string{"cache_name"},
		),

		CacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rateshield",
				Subsystem: "cache",
				Name:      "misses_total",
				Help:      "Total number of cache misses or expired entries",
			},
			[]string{"cache_name"},
		),

		CacheEntries: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "rateshield",
				Subsystem: "cache",
				Name:      "entries",
				Help:      "Current number of cached entries",
			},
			[]string{"cache_name"},
		),

		// Circuit Breaker Metrics
		BreakerTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rateshield",
				Subsystem: "breaker",
				Name:      "transitions_total",
				Help:      "Circuit breaker state transitions by target state",
			},
			[]string{"breaker_name", "state"},
		),

		BreakerFailures: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "rateshield",
				Subsystem: "breaker",
				Name:      "consecutive_failures",
				Help:      "Current consecutive failure count",
			},
			[]string{"breaker_name"},
		),

		BreakerOpen: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "rateshield",
				Subsystem: "breaker",
				Name:      "open",
				Help:      "1 while the circuit breaker is open, 0 otherwise",
			},
			[]string{"breaker_name"},
		),

		// Fetcher Metrics
		FetchAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rateshield",
				Subsystem: "fetch",
				Name:      "attempts_total",
				Help:      "Total number of network attempts against the provider",
			},
			[]string{"fetcher_name"},
		),

		FetchFallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rateshield",
				Subsystem: "fetch",
				Name:      "fallbacks_total",
				Help:      "Responses served from last-known-good data",
			},
			[]string{"fetcher_name"},
		),

		FetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "rateshield",
				Subsystem: "fetch",
				Name:      "duration_seconds",
				Help:      "End-to-end fetch latency by outcome",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"fetcher_name", "result"},
		),

		RefreshRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rateshield",
				Subsystem: "refresh",
				Name:      "runs_total",
				Help:      "Total number of scheduled background refresh runs",
			},
			[]string{"fetcher_name"},
		),
	}
}

package fetcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	rserrors "github.com/vnykmshr/rateshield/pkg/common/errors"
	"github.com/vnykmshr/rateshield/pkg/common/validation"
	"github.com/vnykmshr/rateshield/pkg/metrics"
	"github.com/vnykmshr/rateshield/pkg/ratelimit/bucket"
	"github.com/vnykmshr/rateshield/pkg/resilience/breaker"
	"github.com/vnykmshr/rateshield/pkg/resilience/cache"
	"github.com/vnykmshr/rateshield/pkg/resilience/provider"
	"github.com/vnykmshr/rateshield/pkg/resilience/retry"
)

// Quote is a fetched value. Stale marks a last-known-good fallback served
// because the live path was unavailable.
type Quote struct {
	Key       string
	Value     float64
	FetchedAt time.Time
	Stale     bool
}

// Stats is a point-in-time view of fetcher state.
type Stats struct {
	CacheSize           int
	LastKnownCount      int
	ConsecutiveFailures int
	BreakerOpen         bool
}

// Config holds fetcher configuration. Provider is required; every other
// field has a working default.
type Config struct {
	// Provider resolves keys upstream.
	Provider provider.Provider

	// Cache stores fresh entries and last-known-good values. Defaults to
	// an in-memory store.
	Cache cache.Store

	// CacheTTL is how long a fetched value stays fresh. Defaults to 5m.
	CacheTTL time.Duration

	// Limiter governs outbound calls. Defaults to a CallLog admitting 60
	// calls per minute.
	Limiter Limiter

	// Breaker trips after consecutive provider failures. Defaults to a
	// breaker with standard thresholds.
	Breaker *breaker.Breaker

	// Retry shapes the attempt loop around provider calls.
	Retry retry.Config

	// Ranges bounds accepted values per key namespace. Out-of-range values
	// count as failed attempts and are never cached.
	Ranges map[string]validation.Range

	// Name labels logs and metrics.
	Name string

	// Clock provides the current time. If nil, the system clock is used.
	Clock bucket.Clock

	// Logger receives degraded-path events. If nil, logging is off.
	Logger *zap.Logger

	// Metrics controls Prometheus instrumentation.
	Metrics metrics.Config
}

// DefaultRanges returns the sanity bounds for the known key namespaces.
func DefaultRanges() map[string]validation.Range {
	return map[string]validation.Range{
		provider.NamespaceFX:     {Min: 0, Max: 5},
		provider.NamespaceCrypto: {Min: 0, Max: 1e6},
	}
}

// Fetcher is the resilient read path in front of a quote provider.
// It is safe for concurrent use.
type Fetcher struct {
	config   Config
	registry *metrics.Registry
}

// New creates a fetcher.
func New(config Config) (*Fetcher, error) {
	if err := validation.ValidateNotNil("fetcher", "Provider", config.Provider); err != nil {
		return nil, err
	}
	if config.Name == "" {
		config.Name = "default"
	}
	if config.Clock == nil {
		config.Clock = bucket.SystemClock{}
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = 5 * time.Minute
	}
	if err := validation.ValidatePositiveDuration("fetcher", "cacheTTL", config.CacheTTL); err != nil {
		return nil, err
	}
	if config.Cache == nil {
		cacheConfig := cache.DefaultConfig()
		cacheConfig.Name = config.Name
		cacheConfig.Clock = config.Clock
		cacheConfig.Logger = config.Logger
		cacheConfig.Metrics = config.Metrics
		config.Cache = cache.NewMemoryStore(cacheConfig)
	}
	if config.Limiter == nil {
		config.Limiter = NewCallLog(60, time.Minute, config.Clock)
	}
	if config.Breaker == nil {
		b, err := breaker.New(breaker.Config{
			Name:    config.Name,
			Clock:   config.Clock,
			Logger:  config.Logger,
			Metrics: config.Metrics,
		})
		if err != nil {
			return nil, err
		}
		config.Breaker = b
	}
	if config.Ranges == nil {
		config.Ranges = DefaultRanges()
	}
	if config.Retry.Logger == nil {
		config.Retry.Logger = config.Logger
	}

	return &Fetcher{
		config:   config,
		registry: config.Metrics.Resolve(),
	}, nil
}

// FetchValue returns the value for key: from cache while fresh, otherwise
// from the provider through the limiter, breaker and retry loop, otherwise
// from last-known-good with Stale set. It fails only when no value for key
// was ever fetched, with an error wrapping ErrUnavailable.
func (f *Fetcher) FetchValue(ctx context.Context, key string) (Quote, error) {
	start := f.config.Clock.Now()

	if quote, ok := f.cached(ctx, key); ok {
		f.observe("cache_hit", start)
		return quote, nil
	}

	if !f.config.Limiter.Allow(ctx, key) {
		f.config.Logger.Warn("outbound limit reached",
			zap.String("fetcher", f.config.Name), zap.String("key", key))
		return f.fallback(ctx, key, rserrors.ErrRateLimited, start)
	}

	if f.config.Breaker.IsOpen() {
		f.config.Logger.Warn("circuit open, skipping provider",
			zap.String("fetcher", f.config.Name), zap.String("key", key))
		return f.fallback(ctx, key, rserrors.ErrCircuitOpen, start)
	}

	value, err := f.fetchRetried(ctx, key)
	if err != nil {
		if ctx.Err() == nil {
			f.config.Breaker.RecordFailure()
		}
		return f.fallback(ctx, key, err, start)
	}

	f.store(ctx, key, value)
	f.config.Breaker.RecordSuccess()
	f.observe("fresh", start)
	return Quote{Key: key, Value: value, FetchedAt: f.config.Clock.Now()}, nil
}

// FetchValues resolves several keys with one pass through the limiter,
// breaker and retry loop. Fresh cache entries are excluded from the upstream
// call; keys the provider could not resolve fall back per key.
func (f *Fetcher) FetchValues(ctx context.Context, keys []string) (map[string]Quote, error) {
	start := f.config.Clock.Now()
	quotes := make(map[string]Quote, len(keys))

	var missing []string
	for _, key := range keys {
		if quote, ok := f.cached(ctx, key); ok {
			quotes[key] = quote
		} else {
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		f.observe("cache_hit", start)
		return quotes, nil
	}

	var blocked error
	switch {
	case !f.config.Limiter.Allow(ctx, f.config.Name):
		blocked = rserrors.ErrRateLimited
	case f.config.Breaker.IsOpen():
		blocked = rserrors.ErrCircuitOpen
	}
	if blocked != nil {
		f.config.Logger.Warn("batch degraded before provider call",
			zap.String("fetcher", f.config.Name),
			zap.Int("keys", len(missing)),
			zap.Error(blocked))
		return quotes, f.fallbackBatch(ctx, missing, blocked, quotes, start)
	}

	values, err := f.fetchBatchRetried(ctx, missing)
	if err != nil {
		if ctx.Err() == nil {
			f.config.Breaker.RecordFailure()
		}
		return quotes, f.fallbackBatch(ctx, missing, err, quotes, start)
	}
	f.config.Breaker.RecordSuccess()

	now := f.config.Clock.Now()
	var unresolved []string
	for _, key := range missing {
		value, ok := values[key]
		if !ok {
			unresolved = append(unresolved, key)
			continue
		}
		f.store(ctx, key, value)
		quotes[key] = Quote{Key: key, Value: value, FetchedAt: now}
	}
	if len(unresolved) > 0 {
		return quotes, f.fallbackBatch(ctx, unresolved,
			fmt.Errorf("provider response incomplete"), quotes, start)
	}

	f.observe("fresh", start)
	return quotes, nil
}

// Stats returns a snapshot of cache and breaker state.
func (f *Fetcher) Stats(ctx context.Context) (Stats, error) {
	size, err := f.config.Cache.Len(ctx)
	if err != nil {
		return Stats{}, err
	}
	lastKnown, err := f.config.Cache.LastKnownLen(ctx)
	if err != nil {
		return Stats{}, err
	}
	snapshot := f.config.Breaker.Snapshot()
	return Stats{
		CacheSize:           size,
		LastKnownCount:      lastKnown,
		ConsecutiveFailures: snapshot.ConsecutiveFailures,
		BreakerOpen:         snapshot.Open,
	}, nil
}

// ClearCache drops all cache entries. Last-known-good values survive so
// degraded mode keeps working after an operator flush.
func (f *Fetcher) ClearCache(ctx context.Context) error {
	return f.config.Cache.Clear(ctx)
}

// Close releases the cache backend.
func (f *Fetcher) Close() error {
	return f.config.Cache.Close()
}

func (f *Fetcher) cached(ctx context.Context, key string) (Quote, bool) {
	entry, ok, err := f.config.Cache.Get(ctx, key)
	if err != nil {
		f.config.Logger.Warn("cache read failed, treating as miss",
			zap.String("key", key), zap.Error(err))
		return Quote{}, false
	}
	if !ok || !entry.FreshWithin(f.config.CacheTTL, f.config.Clock.Now()) {
		return Quote{}, false
	}
	return Quote{Key: key, Value: entry.Value, FetchedAt: entry.FetchedAt}, true
}

func (f *Fetcher) store(ctx context.Context, key string, value float64) {
	entry := cache.Entry{Value: value, FetchedAt: f.config.Clock.Now()}
	if err := f.config.Cache.Set(ctx, key, entry, f.config.CacheTTL); err != nil {
		f.config.Logger.Warn("cache write failed",
			zap.String("key", key), zap.Error(err))
	}
}

// fetchRetried runs the provider call under the retry policy, counting
// out-of-range values as failed attempts so later attempts still run.
func (f *Fetcher) fetchRetried(ctx context.Context, key string) (float64, error) {
	var value float64
	err := retry.Do(ctx, f.retryConfig(), func(ctx context.Context) error {
		v, err := f.config.Provider.Fetch(ctx, key)
		if err != nil {
			return err
		}
		if err := f.validate(key, v); err != nil {
			return retry.Transient(err)
		}
		value = v
		return nil
	})
	return value, err
}

func (f *Fetcher) fetchBatchRetried(ctx context.Context, keys []string) (map[string]float64, error) {
	var values map[string]float64
	err := retry.Do(ctx, f.retryConfig(), func(ctx context.Context) error {
		batch, err := f.config.Provider.FetchBatch(ctx, keys)
		if err != nil {
			return err
		}
		for key, v := range batch {
			if err := f.validate(key, v); err != nil {
				return retry.Transient(err)
			}
		}
		values = batch
		return nil
	})
	return values, err
}

func (f *Fetcher) retryConfig() retry.Config {
	config := f.config.Retry
	previous := config.OnAttempt
	config.OnAttempt = func(attempt int) {
		if f.registry != nil {
			f.registry.FetchAttempts.WithLabelValues(f.config.Name).Inc()
		}
		if previous != nil {
			previous(attempt)
		}
	}
	return config
}

func (f *Fetcher) validate(key string, value float64) error {
	namespace, _, _ := strings.Cut(key, ":")
	bounds, ok := f.config.Ranges[namespace]
	if !ok {
		return nil
	}
	return bounds.Validate("fetcher", key, value)
}

// fallback serves the last-known-good value for key, or ErrUnavailable when
// none was ever recorded. cause is the reason the live path failed.
func (f *Fetcher) fallback(ctx context.Context, key string, cause error, start time.Time) (Quote, error) {
	entry, ok, err := f.config.Cache.LastKnown(context.WithoutCancel(ctx), key)
	if err != nil || !ok {
		f.observe("unavailable", start)
		return Quote{}, fmt.Errorf("%s: %w (%v)", key, rserrors.ErrUnavailable, cause)
	}

	// Quota denials are routine degradation; only provider failures warn.
	log := f.config.Logger.Warn
	if rserrors.IsQuotaError(cause) {
		log = f.config.Logger.Info
	}
	age := f.config.Clock.Now().Sub(entry.FetchedAt)
	log("serving stale value",
		zap.String("fetcher", f.config.Name),
		zap.String("key", key),
		zap.Duration("age", age),
		zap.Error(cause))
	if f.registry != nil {
		f.registry.FetchFallbacks.WithLabelValues(f.config.Name).Inc()
	}
	f.observe("stale", start)
	return Quote{Key: key, Value: entry.Value, FetchedAt: entry.FetchedAt, Stale: true}, nil
}

// fallbackBatch fills quotes with stale entries for the given keys. The
// returned error is nil when every key found a fallback.
func (f *Fetcher) fallbackBatch(ctx context.Context, keys []string, cause error, quotes map[string]Quote, start time.Time) error {
	var lost []string
	for _, key := range keys {
		quote, err := f.fallback(ctx, key, cause, start)
		if err != nil {
			lost = append(lost, key)
			continue
		}
		quotes[key] = quote
	}
	if len(lost) > 0 {
		return fmt.Errorf("%s: %w (%v)",
			strings.Join(lost, ","), rserrors.ErrUnavailable, cause)
	}
	return nil
}

func (f *Fetcher) observe(result string, start time.Time) {
	if f.registry == nil {
		return
	}
	elapsed := f.config.Clock.Now().Sub(start)
	f.registry.FetchDuration.WithLabelValues(f.config.Name, result).Observe(elapsed.Seconds())
}

package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vnykmshr/rateshield/pkg/common/validation"
	"github.com/vnykmshr/rateshield/pkg/metrics"
	"github.com/vnykmshr/rateshield/pkg/ratelimit/bucket"
)

// Entry is a point-in-time snapshot of a fetched value.
type Entry struct {
	Value     float64
	FetchedAt time.Time
}

// FreshWithin reports whether the entry is still valid under ttl at now.
func (e Entry) FreshWithin(ttl time.Duration, now time.Time) bool {
	return now.Sub(e.FetchedAt) <= ttl
}

// Store persists TTL cache entries and last-known-good values.
//
// Set writes both records for the key: the cache entry expires after ttl,
// the last-known-good record does not. There is no per-key delete; Clear
// drops every cache entry at once and leaves last-known-good untouched.
type Store interface {
	// Get returns the cache entry for key. The second return is false on
	// a miss or an expired entry.
	Get(ctx context.Context, key string) (Entry, bool, error)

	// Set records entry under key in both the TTL cache and the
	// last-known-good store.
	Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error

	// LastKnown returns the most recent successfully fetched value for
	// key regardless of age.
	LastKnown(ctx context.Context, key string) (Entry, bool, error)

	// Clear removes all cache entries. Last-known-good records survive.
	Clear(ctx context.Context) error

	// Len reports the number of live cache entries.
	Len(ctx context.Context) (int, error)

	// LastKnownLen reports the number of last-known-good records.
	LastKnownLen(ctx context.Context) (int, error)

	// Close releases backend resources.
	Close() error
}

// Config configures a cache store.
type Config struct {
	// Name labels metrics and log lines for this store.
	Name string

	// Redis backs the store when set; required by NewRedisStore.
	Redis redis.UniversalClient

	// KeyPrefix namespaces Redis keys.
	KeyPrefix string

	// RedisTimeout bounds each Redis round trip.
	RedisTimeout time.Duration

	// Clock supplies time for expiry checks. Defaults to wall clock.
	Clock bucket.Clock

	// Logger receives store events. Defaults to a no-op logger.
	Logger *zap.Logger

	// Metrics controls instrumentation.
	Metrics metrics.Config
}

// DefaultConfig returns a config suitable for an in-memory store.
func DefaultConfig() Config {
	return Config{
		Name:         "default",
		KeyPrefix:    "rateshield:cache",
		RedisTimeout: 500 * time.Millisecond,
		Clock:        bucket.SystemClock{},
	}
}

func applyConfigDefaults(config *Config) {
	if config.Name == "" {
		config.Name = "default"
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "rateshield:cache"
	}
	if config.RedisTimeout <= 0 {
		config.RedisTimeout = 500 * time.Millisecond
	}
	if config.Clock == nil {
		config.Clock = bucket.SystemClock{}
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
}

type storeMetrics struct {
	registry *metrics.Registry
	name     string
}

func newStoreMetrics(config Config) storeMetrics {
	return storeMetrics{registry: config.Metrics.Resolve(), name: config.Name}
}

func (m storeMetrics) hit() {
	if m.registry != nil {
		m.registry.CacheHits.WithLabelValues(m.name).Inc()
	}
}

func (m storeMetrics) miss() {
	if m.registry != nil {
		m.registry.CacheMisses.WithLabelValues(m.name).Inc()
	}
}

func (m storeMetrics) entries(n int) {
	if m.registry != nil {
		m.registry.CacheEntries.WithLabelValues(m.name).Set(float64(n))
	}
}

// NewMemoryStore creates a process-local store.
func NewMemoryStore(config Config) Store {
	applyConfigDefaults(&config)
	return newMemoryStore(config)
}

// NewRedisStore creates a store shared through Redis.
func NewRedisStore(config Config) (Store, error) {
	if err := validation.ValidateNotNil("cache", "Redis", config.Redis); err != nil {
		return nil, err
	}
	applyConfigDefaults(&config)
	return newRedisStore(config), nil
}

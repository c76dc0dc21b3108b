package distributed

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vnykmshr/rateshield/pkg/common/errors"
	"github.com/vnykmshr/rateshield/pkg/metrics"
	"github.com/vnykmshr/rateshield/pkg/ratelimit/bucket"
)

// Limiter admits or denies one unit of work against a named, shared quota.
type Limiter interface {
	// Allow reports whether one unit of work may proceed for key. The
	// check-and-decrement is atomic against the backing store. Store
	// failures obey the fail-open policy and never surface as errors.
	Allow(ctx context.Context, key string) bool

	// Remaining reports the whole tokens currently available for key
	// without consuming one. Used for informational rate limit headers.
	Remaining(ctx context.Context, key string) int

	// Reset deletes the stored bucket for key; the next check starts from
	// a full bucket. Resetting an unknown key is not an error.
	Reset(ctx context.Context, key string) error

	// Stats returns a snapshot of this limiter's admission counters.
	Stats(ctx context.Context) (*Stats, error)

	// Close releases resources held by the limiter.
	Close() error
}

// Stats holds limiter admission counters.
type Stats struct {
	Allowed  int64
	Denied   int64
	FailOpen int64

	// TrackedKeys is the number of live bucket records. Only the memory
	// backend can report it cheaply; the Redis backend returns 0.
	TrackedKeys int
}

// Config holds configuration for distributed rate limiters.
type Config struct {
	// MaxTokens is the bucket capacity per key.
	MaxTokens int

	// RefillRate is the number of tokens added per Window.
	RefillRate float64

	// Window is the refill period.
	Window time.Duration

	// Redis client for coordination. Required by NewRedisLimiter.
	Redis redis.UniversalClient

	// KeyPrefix namespaces this limiter's records in the shared store.
	KeyPrefix string

	// Name labels this limiter in metrics. Defaults to KeyPrefix.
	Name string

	// RedisTimeout bounds each store round trip.
	RedisTimeout time.Duration

	// FailClosed denies requests when the backing store is unreachable.
	// The default is fail-open: availability over strict enforcement.
	FailClosed bool

	// Clock provides the current time. If nil, the system clock is used.
	Clock bucket.Clock

	// Logger receives fail-open and reset events. If nil, logging is off.
	Logger *zap.Logger

	// Metrics controls Prometheus instrumentation.
	Metrics metrics.Config
}

// DefaultConfig returns a default limiter configuration.
func DefaultConfig() Config {
	return Config{
		KeyPrefix:    "rateshield:limiter",
		RedisTimeout: 500 * time.Millisecond,
		Metrics:      metrics.DefaultConfig(),
	}
}

func (c Config) bucketConfig() bucket.Config {
	return bucket.Config{
		MaxTokens:  c.MaxTokens,
		RefillRate: c.RefillRate,
		Window:     c.Window,
	}
}

func validateConfig(c Config) error {
	return c.bucketConfig().Validate()
}

func applyConfigDefaults(c Config) Config {
	if c.KeyPrefix == "" {
		c.KeyPrefix = "rateshield:limiter"
	}
	if c.Name == "" {
		c.Name = c.KeyPrefix
	}
	if c.RedisTimeout == 0 {
		c.RedisTimeout = 500 * time.Millisecond
	}
	if c.Clock == nil {
		c.Clock = bucket.SystemClock{}
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// NewRedisLimiter creates a limiter coordinated through Redis.
func NewRedisLimiter(config Config) (Limiter, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	if config.Redis == nil {
		return nil, errors.NewValidationError("distributed", "redis", nil, "cannot be nil").
			WithHint("provide a redis.UniversalClient or use NewMemoryLimiter")
	}
	return newRedisLimiter(applyConfigDefaults(config)), nil
}

// NewMemoryLimiter creates a process-local limiter with the same contract.
func NewMemoryLimiter(config Config) (Limiter, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	return newMemoryLimiter(applyConfigDefaults(config)), nil
}

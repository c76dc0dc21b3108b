package distributed

import (
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vnykmshr/rateshield/internal/testutil"
	"github.com/vnykmshr/rateshield/pkg/common/errors"
)

func TestNewLimiterValidation(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{"negative max tokens", Config{MaxTokens: -1, RefillRate: 1, Window: time.Second}},
		{"negative refill rate", Config{MaxTokens: 1, RefillRate: -1, Window: time.Second}},
		{"zero window", Config{MaxTokens: 1, RefillRate: 1, Window: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewMemoryLimiter(tt.config); err == nil {
				t.Error("expected validation error, got nil")
			} else if !errors.IsValidationError(err) {
				t.Errorf("expected ValidationError, got %T", err)
			}
		})
	}
}

func TestNewRedisLimiterRequiresClient(t *testing.T) {
	_, err := NewRedisLimiter(Config{MaxTokens: 1, RefillRate: 1, Window: time.Second})
	testutil.AssertError(t, err)
	if !errors.IsValidationError(err) {
		t.Errorf("expected ValidationError, got %T", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	testutil.AssertEqual(t, config.KeyPrefix, "rateshield:limiter")
	testutil.AssertEqual(t, config.RedisTimeout, 500*time.Millisecond)
	testutil.AssertEqual(t, config.FailClosed, false)
}

// unreachableRedis returns a client pointing at a port nothing listens on.
// go-redis connects lazily, so construction succeeds and every command fails.
func unreachableRedis() redis.UniversalClient {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestRedisLimiterFailsOpenOnStoreOutage(t *testing.T) {
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	rdb := unreachableRedis()
	defer func() { _ = rdb.Close() }()

	limiter, err := NewRedisLimiter(Config{
		Redis:        rdb,
		MaxTokens:    1,
		RefillRate:   1,
		Window:       time.Second,
		RedisTimeout: 100 * time.Millisecond,
	})
	testutil.AssertNoError(t, err)
	defer func() { _ = limiter.Close() }()

	// Availability over enforcement: the request is admitted.
	if !limiter.Allow(ctx, "user:1") {
		t.Error("limiter should fail open when the store is unreachable")
	}

	// The fail-open path must be observable, not silent.
	stats, err := limiter.Stats(ctx)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, stats.FailOpen, int64(1))

	// Informational reads degrade to the optimistic answer.
	testutil.AssertEqual(t, limiter.Remaining(ctx, "user:1"), 1)
}

func TestRedisLimiterFailClosedPolicy(t *testing.T) {
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	rdb := unreachableRedis()
	defer func() { _ = rdb.Close() }()

	limiter, err := NewRedisLimiter(Config{
		Redis:        rdb,
		MaxTokens:    1,
		RefillRate:   1,
		Window:       time.Second,
		RedisTimeout: 100 * time.Millisecond,
		FailClosed:   true,
	})
	testutil.AssertNoError(t, err)
	defer func() { _ = limiter.Close() }()

	if limiter.Allow(ctx, "user:1") {
		t.Error("fail-closed limiter should deny when the store is unreachable")
	}
	testutil.AssertEqual(t, limiter.Remaining(ctx, "user:1"), 0)
}

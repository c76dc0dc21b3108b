package integration

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vnykmshr/rateshield/internal/testutil"
	"github.com/vnykmshr/rateshield/pkg/ratelimit/distributed"
	"github.com/vnykmshr/rateshield/pkg/resilience/cache"
	"github.com/vnykmshr/rateshield/pkg/resilience/fetcher"
	"github.com/vnykmshr/rateshield/pkg/resilience/provider"
	"github.com/vnykmshr/rateshield/pkg/resilience/retry"
)

func redisClient(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 1})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// TestFetcherSharedThroughRedis runs two fetcher instances against the same
// Redis limiter and cache: a value fetched by one instance is served from
// cache by the other, and the shared token budget holds across both.
func TestFetcherSharedThroughRedis(t *testing.T) {
	client := redisClient(t)
	prefix := fmt.Sprintf("rateshield:test:integration:%d", time.Now().UnixNano())

	var upstreamCalls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamCalls.Add(1)
		w.Write([]byte(`{"rates":{"USD":1.27}}`))
	}))
	defer upstream.Close()

	newInstance := func(name string) *fetcher.Fetcher {
		limiterConfig := distributed.DefaultConfig()
		limiterConfig.MaxTokens = 2
		limiterConfig.RefillRate = 2
		limiterConfig.Window = time.Minute
		limiterConfig.Redis = client
		limiterConfig.KeyPrefix = prefix + ":limiter"
		limiterConfig.Name = name
		limiter, err := distributed.NewRedisLimiter(limiterConfig)
		testutil.AssertNoError(t, err)

		cacheConfig := cache.DefaultConfig()
		cacheConfig.Redis = client
		cacheConfig.KeyPrefix = prefix + ":cache"
		cacheConfig.Name = name
		store, err := cache.NewRedisStore(cacheConfig)
		testutil.AssertNoError(t, err)

		p := provider.NewHTTP(provider.Config{FXBaseURL: upstream.URL, CryptoBaseURL: upstream.URL})
		f, err := fetcher.New(fetcher.Config{
			Provider: p,
			Cache:    store,
			CacheTTL: time.Minute,
			Limiter:  limiter,
			Name:     name,
			Retry: retry.Config{
				MaxAttempts:       1,
				PerAttemptTimeout: -1,
				Sleep:             func(context.Context, time.Duration) error { return nil },
			},
		})
		testutil.AssertNoError(t, err)
		t.Cleanup(func() { f.Close() })
		return f
	}

	first := newInstance("instance-a")
	second := newInstance("instance-b")
	ctx := context.Background()

	quote, err := first.FetchValue(ctx, "fx:gbp_usd")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, quote.Value, 1.27)
	testutil.AssertEqual(t, upstreamCalls.Load(), int32(1))

	// the other instance reads the shared cache, no upstream call
	quote, err = second.FetchValue(ctx, "fx:gbp_usd")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, quote.Value, 1.27)
	testutil.AssertEqual(t, quote.Stale, false)
	testutil.AssertEqual(t, upstreamCalls.Load(), int32(1))

	// shared last-known-good backs both instances after a cache flush
	testutil.AssertNoError(t, second.ClearCache(ctx))
	stats, err := first.Stats(ctx)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, stats.CacheSize, 0)
	testutil.AssertEqual(t, stats.LastKnownCount, 1)
}

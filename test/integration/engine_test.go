// Package integration contains integration tests that verify cross-package
// functionality: the fetcher pipeline wired to real limiter, breaker and
// cache instances over an httptest upstream.
package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vnykmshr/rateshield/internal/testutil"
	"github.com/vnykmshr/rateshield/pkg/ratelimit/distributed"
	"github.com/vnykmshr/rateshield/pkg/resilience/breaker"
	"github.com/vnykmshr/rateshield/pkg/resilience/fetcher"
	"github.com/vnykmshr/rateshield/pkg/resilience/provider"
	"github.com/vnykmshr/rateshield/pkg/resilience/retry"
)

// TestFetcherOverHTTPUpstream runs the full read path against an httptest
// upstream: first call hits the network, second is answered from cache, and
// after the upstream dies the stale value is served.
func TestFetcherOverHTTPUpstream(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	var upstreamCalls atomic.Int32

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamCalls.Add(1)
		if !healthy.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"rates":{"USD":1.27}}`))
	}))
	defer upstream.Close()

	clock := testutil.NewMockClock(time.Time{})
	p := provider.NewHTTP(provider.Config{FXBaseURL: upstream.URL, CryptoBaseURL: upstream.URL})

	b, err := breaker.New(breaker.Config{FailureThreshold: 2, Cooldown: time.Minute, Clock: clock})
	testutil.AssertNoError(t, err)

	f, err := fetcher.New(fetcher.Config{
		Provider: p,
		CacheTTL: time.Minute,
		Breaker:  b,
		Clock:    clock,
		Retry: retry.Config{
			MaxAttempts:       2,
			PerAttemptTimeout: -1,
			Sleep:             func(context.Context, time.Duration) error { return nil },
		},
	})
	testutil.AssertNoError(t, err)
	defer f.Close()
	ctx := context.Background()

	quote, err := f.FetchValue(ctx, "fx:gbp_usd")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, quote.Value, 1.27)
	testutil.AssertEqual(t, quote.Stale, false)
	testutil.AssertEqual(t, upstreamCalls.Load(), int32(1))

	// within the TTL the cache answers
	_, err = f.FetchValue(ctx, "fx:gbp_usd")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, upstreamCalls.Load(), int32(1))

	// upstream dies, cache expires: retried attempts then stale fallback
	healthy.Store(false)
	clock.Advance(2 * time.Minute)

	quote, err = f.FetchValue(ctx, "fx:gbp_usd")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, quote.Stale, true)
	testutil.AssertEqual(t, quote.Value, 1.27)
	testutil.AssertEqual(t, upstreamCalls.Load(), int32(3))

	// one more failing round trips the breaker
	quote, err = f.FetchValue(ctx, "fx:gbp_usd")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, quote.Stale, true)

	stats, err := f.Stats(ctx)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, stats.BreakerOpen, true)

	// open breaker short-circuits the upstream entirely
	before := upstreamCalls.Load()
	_, err = f.FetchValue(ctx, "fx:gbp_usd")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, upstreamCalls.Load(), before)

	// recovery after cooldown
	healthy.Store(true)
	clock.Advance(time.Minute)

	quote, err = f.FetchValue(ctx, "fx:gbp_usd")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, quote.Stale, false)
}

// TestFetcherWithDistributedLimiter wires the memory-backed distributed
// limiter in as the fetcher's outbound governor.
func TestFetcherWithDistributedLimiter(t *testing.T) {
	var upstreamCalls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamCalls.Add(1)
		w.Write([]byte(`{"rates":{"USD":1.27}}`))
	}))
	defer upstream.Close()

	clock := testutil.NewMockClock(time.Time{})

	limiterConfig := distributed.DefaultConfig()
	limiterConfig.MaxTokens = 2
	limiterConfig.RefillRate = 2
	limiterConfig.Window = time.Minute
	limiterConfig.Clock = clock
	limiter, err := distributed.NewMemoryLimiter(limiterConfig)
	testutil.AssertNoError(t, err)
	defer limiter.Close()

	p := provider.NewHTTP(provider.Config{FXBaseURL: upstream.URL, CryptoBaseURL: upstream.URL})
	f, err := fetcher.New(fetcher.Config{
		Provider: p,
		CacheTTL: time.Second,
		Limiter:  limiter,
		Clock:    clock,
		Retry: retry.Config{
			MaxAttempts:       1,
			PerAttemptTimeout: -1,
			Sleep:             func(context.Context, time.Duration) error { return nil },
		},
	})
	testutil.AssertNoError(t, err)
	defer f.Close()
	ctx := context.Background()

	// two fetches spend the two tokens for this key
	for i := 0; i < 2; i++ {
		quote, err := f.FetchValue(ctx, "fx:gbp_usd")
		testutil.AssertNoError(t, err)
		testutil.AssertEqual(t, quote.Stale, false)
		clock.Advance(2 * time.Second)
	}
	testutil.AssertEqual(t, upstreamCalls.Load(), int32(2))

	// the third goes stale without touching the upstream
	quote, err := f.FetchValue(ctx, "fx:gbp_usd")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, quote.Stale, true)
	testutil.AssertEqual(t, upstreamCalls.Load(), int32(2))
}

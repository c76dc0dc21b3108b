package distributed

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/vnykmshr/rateshield/pkg/metrics"
	"github.com/vnykmshr/rateshield/pkg/ratelimit/bucket"
)

// memoryLimiter implements Limiter with process-local state. A single mutex
// makes each check-and-decrement atomic, which satisfies the same contract
// the Redis Lua script provides for multi-instance deployments.
type memoryLimiter struct {
	config   Config
	bcfg     bucket.Config
	registry *metrics.Registry

	mu        sync.Mutex
	buckets   map[string]bucket.State
	lastSweep time.Time

	allowed atomic.Int64
	denied  atomic.Int64
}

func newMemoryLimiter(config Config) *memoryLimiter {
	return &memoryLimiter{
		config:    config,
		bcfg:      config.bucketConfig(),
		registry:  config.Metrics.Resolve(),
		buckets:   make(map[string]bucket.State),
		lastSweep: config.Clock.Now(),
	}
}

// Allow reports whether one unit of work may proceed for key.
func (ml *memoryLimiter) Allow(_ context.Context, key string) bool {
	now := ml.config.Clock.Now()

	ml.mu.Lock()
	ml.sweepLocked(now)
	state, allowed := bucket.Take(ml.bcfg, ml.loadLocked(key, now), now)
	ml.buckets[key] = state
	ml.mu.Unlock()

	ml.record(allowed, state.Tokens)
	return allowed
}

// Remaining reports available tokens for key without consuming one.
func (ml *memoryLimiter) Remaining(_ context.Context, key string) int {
	now := ml.config.Clock.Now()

	ml.mu.Lock()
	defer ml.mu.Unlock()
	return bucket.Remaining(ml.bcfg, ml.loadLocked(key, now), now)
}

// Reset deletes the stored bucket for key.
func (ml *memoryLimiter) Reset(_ context.Context, key string) error {
	ml.mu.Lock()
	delete(ml.buckets, key)
	ml.mu.Unlock()

	ml.config.Logger.Info("rate limit bucket reset", zap.String("key", key))
	return nil
}

// Stats returns a snapshot of this limiter's admission counters.
func (ml *memoryLimiter) Stats(_ context.Context) (*Stats, error) {
	ml.mu.Lock()
	tracked := len(ml.buckets)
	ml.mu.Unlock()

	return &Stats{
		Allowed:     ml.allowed.Load(),
		Denied:      ml.denied.Load(),
		TrackedKeys: tracked,
	}, nil
}

// Close drops all tracked buckets.
func (ml *memoryLimiter) Close() error {
	ml.mu.Lock()
	ml.buckets = make(map[string]bucket.State)
	ml.mu.Unlock()
	return nil
}

// loadLocked returns the live state for key. Records idle past their TTL are
// treated as absent, matching the Redis backend's key expiry.
func (ml *memoryLimiter) loadLocked(key string, now time.Time) bucket.State {
	if state, ok := ml.buckets[key]; ok && now.Sub(state.LastRefill) <= ml.bcfg.RecordTTL() {
		return state
	}
	return bucket.NewState(ml.bcfg, now)
}

// sweepLocked prunes idle records at most once per window.
func (ml *memoryLimiter) sweepLocked(now time.Time) {
	if now.Sub(ml.lastSweep) < ml.config.Window {
		return
	}
	ml.lastSweep = now
	for key, state := range ml.buckets {
		if now.Sub(state.LastRefill) > ml.bcfg.RecordTTL() {
			delete(ml.buckets, key)
		}
	}
}

func (ml *memoryLimiter) record(allowed bool, tokens float64) {
	if allowed {
		ml.allowed.Add(1)
	} else {
		ml.denied.Add(1)
	}

	if ml.registry == nil {
		return
	}
	ml.registry.RateLimitRequests.WithLabelValues("token_bucket", ml.config.Name).Inc()
	if allowed {
		ml.registry.RateLimitAllowed.WithLabelValues("token_bucket", ml.config.Name).Inc()
	} else {
		ml.registry.RateLimitDenied.WithLabelValues("token_bucket", ml.config.Name).Inc()
	}
	ml.registry.RateLimitTokens.WithLabelValues("token_bucket", ml.config.Name).Set(tokens)
}

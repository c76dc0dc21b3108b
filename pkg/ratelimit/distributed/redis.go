package distributed

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vnykmshr/rateshield/pkg/common/errors"
	"github.com/vnykmshr/rateshield/pkg/metrics"
)

// redisLimiter implements Limiter against a shared Redis store. Every check
// runs one Lua script so concurrent callers on the same key cannot lose
// updates.
type redisLimiter struct {
	config   Config
	registry *metrics.Registry

	takeScript      *redis.Script
	remainingScript *redis.Script

	allowed  atomic.Int64
	denied   atomic.Int64
	failOpen atomic.Int64
}

func newRedisLimiter(config Config) *redisLimiter {
	return &redisLimiter{
		config:          config,
		registry:        config.Metrics.Resolve(),
		takeScript:      redis.NewScript(luaTake),
		remainingScript: redis.NewScript(luaRemaining),
	}
}

func (rl *redisLimiter) bucketKey(key string) string {
	return rl.config.KeyPrefix + ":" + key
}

func (rl *redisLimiter) scriptArgs() []interface{} {
	return []interface{}{
		timeToFloat(rl.config.Clock.Now()),
		rl.config.MaxTokens,
		rl.config.RefillRate,
		rl.config.Window.Seconds(),
		rl.config.bucketConfig().RecordTTL().Milliseconds(),
	}
}

// Allow reports whether one unit of work may proceed for key.
func (rl *redisLimiter) Allow(ctx context.Context, key string) bool {
	ctx, cancel := context.WithTimeout(ctx, rl.config.RedisTimeout)
	defer cancel()

	result, err := rl.takeScript.Run(ctx, rl.config.Redis,
		[]string{rl.bucketKey(key)}, rl.scriptArgs()...).Result()
	if err != nil {
		return rl.storeFailure(key, "Allow", err)
	}

	slice, ok := result.([]interface{})
	if !ok || len(slice) != 2 {
		return rl.storeFailure(key, "Allow", fmt.Errorf("unexpected script result %v", result))
	}

	allowedFlag, _ := slice[0].(int64)
	tokensStr, _ := slice[1].(string)
	tokens, _ := strconv.ParseFloat(tokensStr, 64)

	allowed := allowedFlag == 1
	rl.record(allowed, tokens)
	return allowed
}

// Remaining reports available tokens for key without consuming one.
func (rl *redisLimiter) Remaining(ctx context.Context, key string) int {
	ctx, cancel := context.WithTimeout(ctx, rl.config.RedisTimeout)
	defer cancel()

	result, err := rl.remainingScript.Run(ctx, rl.config.Redis,
		[]string{rl.bucketKey(key)}, rl.scriptArgs()...).Result()
	if err != nil {
		rl.config.Logger.Warn("rate limiter store unreachable on informational read",
			zap.String("key", key), zap.Error(err))
		if rl.config.FailClosed {
			return 0
		}
		return rl.config.MaxTokens
	}

	remaining, ok := result.(int64)
	if !ok {
		return rl.config.MaxTokens
	}
	return int(remaining)
}

// Reset deletes the stored bucket for key.
func (rl *redisLimiter) Reset(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, rl.config.RedisTimeout)
	defer cancel()

	if err := rl.config.Redis.Del(ctx, rl.bucketKey(key)).Err(); err != nil {
		return errors.NewOperationError("distributed", "Reset", err).
			WithContext("key " + key)
	}
	rl.config.Logger.Info("rate limit bucket reset", zap.String("key", key))
	return nil
}

// Stats returns a snapshot of this limiter's admission counters.
func (rl *redisLimiter) Stats(ctx context.Context) (*Stats, error) {
	return &Stats{
		Allowed:  rl.allowed.Load(),
		Denied:   rl.denied.Load(),
		FailOpen: rl.failOpen.Load(),
	}, nil
}

// Close releases resources. The Redis client is owned by the caller.
func (rl *redisLimiter) Close() error {
	return nil
}

// storeFailure applies the fail-open policy for an unreachable store.
func (rl *redisLimiter) storeFailure(key, op string, err error) bool {
	allowed := !rl.config.FailClosed
	rl.failOpen.Add(1)
	rl.config.Logger.Warn("rate limiter store unreachable",
		zap.String("operation", op),
		zap.String("key", key),
		zap.Bool("allowed", allowed),
		zap.Error(err))

	if rl.registry != nil {
		rl.registry.RateLimitRequests.WithLabelValues("token_bucket", rl.config.Name).Inc()
		rl.registry.RateLimitFailOpen.WithLabelValues("token_bucket", rl.config.Name).Inc()
	}
	return allowed
}

func (rl *redisLimiter) record(allowed bool, tokens float64) {
	if allowed {
		rl.allowed.Add(1)
	} else {
		rl.denied.Add(1)
	}

	if rl.registry == nil {
		return
	}
	rl.registry.RateLimitRequests.WithLabelValues("token_bucket", rl.config.Name).Inc()
	if allowed {
		rl.registry.RateLimitAllowed.WithLabelValues("token_bucket", rl.config.Name).Inc()
	} else {
		rl.registry.RateLimitDenied.WithLabelValues("token_bucket", rl.config.Name).Inc()
	}
	rl.registry.RateLimitTokens.WithLabelValues("token_bucket", rl.config.Name).Set(tokens)
}

// timeToFloat converts time to float64 seconds for Redis storage.
func timeToFloat(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// Lua scripts for atomic operations. The arithmetic must stay in lockstep
// with pkg/ratelimit/bucket: whole-token refill, capacity cap, and the
// refill clock advancing on denial as well as admission.

const luaTake = `
-- KEYS[1]: bucket hash key
-- ARGV[1]: current time (seconds)
-- ARGV[2]: max tokens
-- ARGV[3]: refill rate (tokens per window)
-- ARGV[4]: window (seconds)
-- ARGV[5]: record ttl (milliseconds)

local now = tonumber(ARGV[1])
local max_tokens = tonumber(ARGV[2])
local rate = tonumber(ARGV[3])
local window = tonumber(ARGV[4])

local state = redis.call('HMGET', KEYS[1], 'tokens', 'last_refill')
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

-- Absent or expired records start as a full bucket
if tokens == nil or last_refill == nil then
    tokens = max_tokens
    last_refill = now
end

local elapsed = math.max(0, now - last_refill)
local added = math.floor(elapsed * rate / window)
tokens = math.min(max_tokens, tokens + added)

local allowed = 0
if tokens >= 1 then
    tokens = tokens - 1
    allowed = 1
end

redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'last_refill', tostring(now))
redis.call('PEXPIRE', KEYS[1], tonumber(ARGV[5]))

return {allowed, tostring(tokens)}
`

const luaRemaining = `
-- KEYS[1]: bucket hash key
-- ARGV[1]: current time (seconds)
-- ARGV[2]: max tokens
-- ARGV[3]: refill rate (tokens per window)
-- ARGV[4]: window (seconds)
-- ARGV[5]: record ttl (milliseconds), unused

local now = tonumber(ARGV[1])
local max_tokens = tonumber(ARGV[2])
local rate = tonumber(ARGV[3])
local window = tonumber(ARGV[4])

local state = redis.call('HMGET', KEYS[1], 'tokens', 'last_refill')
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

if tokens == nil or last_refill == nil then
    return max_tokens
end

local elapsed = math.max(0, now - last_refill)
local added = math.floor(elapsed * rate / window)
tokens = math.min(max_tokens, tokens + added)

return math.floor(tokens)
`

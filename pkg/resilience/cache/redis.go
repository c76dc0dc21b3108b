package cache

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/vnykmshr/rateshield/pkg/common/errors"
)

// redisStore shares cache entries across instances. Each entry is a Redis
// hash {value, fetched_at}; cache keys carry a server-side expiry so a dead
// instance never strands state, last-known-good keys never expire.
type redisStore struct {
	config Config
	stats  storeMetrics
}

func newRedisStore(config Config) *redisStore {
	return &redisStore{
		config: config,
		stats:  newStoreMetrics(config),
	}
}

func (s *redisStore) entryKey(key string) string {
	return s.config.KeyPrefix + ":entry:" + key
}

func (s *redisStore) lastKnownKey(key string) string {
	return s.config.KeyPrefix + ":lkg:" + key
}

func (s *redisStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	entry, ok, err := s.load(ctx, s.entryKey(key))
	if err != nil {
		return Entry{}, false, errors.NewOperationError("cache", "Get", err).
			WithContext("key " + key)
	}
	if ok {
		s.stats.hit()
	} else {
		s.stats.miss()
	}
	return entry, ok, nil
}

func (s *redisStore) Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.RedisTimeout)
	defer cancel()

	fields := []interface{}{
		"value", strconv.FormatFloat(entry.Value, 'g', -1, 64),
		"fetched_at", strconv.FormatInt(entry.FetchedAt.UnixNano(), 10),
	}

	pipe := s.config.Redis.TxPipeline()
	pipe.HSet(ctx, s.entryKey(key), fields...)
	pipe.PExpire(ctx, s.entryKey(key), ttl)
	pipe.HSet(ctx, s.lastKnownKey(key), fields...)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.NewOperationError("cache", "Set", err).
			WithContext("key " + key)
	}
	return nil
}

func (s *redisStore) LastKnown(ctx context.Context, key string) (Entry, bool, error) {
	entry, ok, err := s.load(ctx, s.lastKnownKey(key))
	if err != nil {
		return Entry{}, false, errors.NewOperationError("cache", "LastKnown", err).
			WithContext("key " + key)
	}
	return entry, ok, nil
}

func (s *redisStore) Clear(ctx context.Context) error {
	keys, err := s.scan(ctx, s.config.KeyPrefix+":entry:*")
	if err != nil {
		return errors.NewOperationError("cache", "Clear", err)
	}
	if len(keys) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.RedisTimeout)
	defer cancel()
	if err := s.config.Redis.Del(ctx, keys...).Err(); err != nil {
		return errors.NewOperationError("cache", "Clear", err)
	}
	s.config.Logger.Info("cache cleared",
		zap.String("cache", s.config.Name), zap.Int("entries", len(keys)))
	s.stats.entries(0)
	return nil
}

func (s *redisStore) Len(ctx context.Context) (int, error) {
	keys, err := s.scan(ctx, s.config.KeyPrefix+":entry:*")
	if err != nil {
		return 0, errors.NewOperationError("cache", "Len", err)
	}
	return len(keys), nil
}

func (s *redisStore) LastKnownLen(ctx context.Context) (int, error) {
	keys, err := s.scan(ctx, s.config.KeyPrefix+":lkg:*")
	if err != nil {
		return 0, errors.NewOperationError("cache", "LastKnownLen", err)
	}
	return len(keys), nil
}

// Close releases resources. The Redis client is owned by the caller.
func (s *redisStore) Close() error {
	return nil
}

func (s *redisStore) load(ctx context.Context, storageKey string) (Entry, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.RedisTimeout)
	defer cancel()

	fields, err := s.config.Redis.HMGet(ctx, storageKey, "value", "fetched_at").Result()
	if err != nil {
		return Entry{}, false, err
	}
	valueStr, okValue := fields[0].(string)
	fetchedStr, okFetched := fields[1].(string)
	if !okValue || !okFetched {
		return Entry{}, false, nil
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return Entry{}, false, err
	}
	fetchedNanos, err := strconv.ParseInt(fetchedStr, 10, 64)
	if err != nil {
		return Entry{}, false, err
	}
	return Entry{Value: value, FetchedAt: time.Unix(0, fetchedNanos)}, true, nil
}

func (s *redisStore) scan(ctx context.Context, pattern string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.RedisTimeout)
	defer cancel()

	var keys []string
	iter := s.config.Redis.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

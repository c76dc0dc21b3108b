package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vnykmshr/rateshield/internal/testutil"
)

func newTestStore(clock *testutil.MockClock) Store {
	config := DefaultConfig()
	config.Clock = clock
	return NewMemoryStore(config)
}

func TestMemoryStoreGetSet(t *testing.T) {
	clock := testutil.NewMockClock(time.Time{})
	store := newTestStore(clock)
	defer store.Close()
	ctx := context.Background()

	if _, ok, err := store.Get(ctx, "fx:gbp_usd"); err != nil || ok {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}

	entry := Entry{Value: 1.27, FetchedAt: clock.Now()}
	testutil.AssertNoError(t, store.Set(ctx, "fx:gbp_usd", entry, time.Minute))

	got, ok, err := store.Get(ctx, "fx:gbp_usd")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, ok, true)
	testutil.AssertEqual(t, got.Value, 1.27)
}

func TestMemoryStoreEntryExpires(t *testing.T) {
	clock := testutil.NewMockClock(time.Time{})
	store := newTestStore(clock)
	defer store.Close()
	ctx := context.Background()

	entry := Entry{Value: 42000, FetchedAt: clock.Now()}
	testutil.AssertNoError(t, store.Set(ctx, "crypto:bitcoin", entry, time.Minute))

	clock.Advance(time.Minute)
	if _, ok, _ := store.Get(ctx, "crypto:bitcoin"); !ok {
		t.Fatal("entry at exactly ttl should still be served")
	}

	clock.Advance(time.Nanosecond)
	if _, ok, _ := store.Get(ctx, "crypto:bitcoin"); ok {
		t.Fatal("entry past ttl should miss")
	}
}

func TestMemoryStoreLastKnownSurvivesExpiry(t *testing.T) {
	clock := testutil.NewMockClock(time.Time{})
	store := newTestStore(clock)
	defer store.Close()
	ctx := context.Background()

	entry := Entry{Value: 1.27, FetchedAt: clock.Now()}
	testutil.AssertNoError(t, store.Set(ctx, "fx:gbp_usd", entry, time.Minute))

	clock.Advance(24 * time.Hour)
	if _, ok, _ := store.Get(ctx, "fx:gbp_usd"); ok {
		t.Fatal("cache entry should have expired")
	}

	got, ok, err := store.LastKnown(ctx, "fx:gbp_usd")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, ok, true)
	testutil.AssertEqual(t, got.Value, 1.27)
}

func TestMemoryStoreClearKeepsLastKnown(t *testing.T) {
	clock := testutil.NewMockClock(time.Time{})
	store := newTestStore(clock)
	defer store.Close()
	ctx := context.Background()

	for i, key := range []string{"fx:gbp_usd", "fx:eur_usd", "crypto:bitcoin"} {
		entry := Entry{Value: float64(i + 1), FetchedAt: clock.Now()}
		testutil.AssertNoError(t, store.Set(ctx, key, entry, time.Minute))
	}

	n, err := store.Len(ctx)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, n, 3)

	testutil.AssertNoError(t, store.Clear(ctx))

	n, err = store.Len(ctx)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, n, 0)

	lkg, err := store.LastKnownLen(ctx)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, lkg, 3)

	if _, ok, _ := store.LastKnown(ctx, "fx:eur_usd"); !ok {
		t.Fatal("last-known-good should survive Clear")
	}
}

func TestMemoryStoreNewerSetOverwritesLastKnown(t *testing.T) {
	clock := testutil.NewMockClock(time.Time{})
	store := newTestStore(clock)
	defer store.Close()
	ctx := context.Background()

	first := Entry{Value: 1.25, FetchedAt: clock.Now()}
	testutil.AssertNoError(t, store.Set(ctx, "fx:gbp_usd", first, time.Minute))

	clock.Advance(time.Hour)
	second := Entry{Value: 1.31, FetchedAt: clock.Now()}
	testutil.AssertNoError(t, store.Set(ctx, "fx:gbp_usd", second, time.Minute))

	got, ok, err := store.LastKnown(ctx, "fx:gbp_usd")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, ok, true)
	testutil.AssertEqual(t, got.Value, 1.31)
}

func TestMemoryStoreLenSkipsExpired(t *testing.T) {
	clock := testutil.NewMockClock(time.Time{})
	store := newTestStore(clock)
	defer store.Close()
	ctx := context.Background()

	testutil.AssertNoError(t, store.Set(ctx, "short", Entry{Value: 1, FetchedAt: clock.Now()}, time.Second))
	testutil.AssertNoError(t, store.Set(ctx, "long", Entry{Value: 2, FetchedAt: clock.Now()}, time.Hour))

	clock.Advance(time.Minute)

	n, err := store.Len(ctx)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, n, 1)
}

func TestEntryFreshWithin(t *testing.T) {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	entry := Entry{Value: 1.27, FetchedAt: base}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"just fetched", base, true},
		{"at ttl", base.Add(time.Minute), true},
		{"past ttl", base.Add(time.Minute + time.Nanosecond), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.AssertEqual(t, entry.FreshWithin(time.Minute, tt.now), tt.want)
		})
	}
}

func TestNewRedisStoreRequiresClient(t *testing.T) {
	_, err := NewRedisStore(Config{})
	testutil.AssertError(t, err)
}

// newTestRedisStore skips unless a local Redis is reachable.
func newTestRedisStore(t *testing.T) Store {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 1})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("redis not available: %v", err)
	}

	config := DefaultConfig()
	config.Redis = client
	config.KeyPrefix = fmt.Sprintf("rateshield:test:cache:%d", time.Now().UnixNano())
	store, err := NewRedisStore(config)
	testutil.AssertNoError(t, err)

	t.Cleanup(func() {
		store.Close()
		client.Close()
	})
	return store
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	fetched := time.Now().Truncate(time.Millisecond)
	entry := Entry{Value: 1.2712, FetchedAt: fetched}
	testutil.AssertNoError(t, store.Set(ctx, "fx:gbp_usd", entry, time.Minute))

	got, ok, err := store.Get(ctx, "fx:gbp_usd")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, ok, true)
	testutil.AssertEqual(t, got.Value, 1.2712)
	testutil.AssertEqual(t, got.FetchedAt.UnixNano(), fetched.UnixNano())

	got, ok, err = store.LastKnown(ctx, "fx:gbp_usd")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, ok, true)
	testutil.AssertEqual(t, got.Value, 1.2712)
}

func TestRedisStoreClear(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	entry := Entry{Value: 42000, FetchedAt: time.Now()}
	testutil.AssertNoError(t, store.Set(ctx, "crypto:bitcoin", entry, time.Minute))
	testutil.AssertNoError(t, store.Clear(ctx))

	if _, ok, _ := store.Get(ctx, "crypto:bitcoin"); ok {
		t.Fatal("cache entry should be gone after Clear")
	}
	if _, ok, _ := store.LastKnown(ctx, "crypto:bitcoin"); !ok {
		t.Fatal("last-known-good should survive Clear")
	}
}

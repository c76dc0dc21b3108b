package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	entry     Entry
	expiresAt time.Time
}

type memoryStore struct {
	config Config

	mu        sync.RWMutex
	entries   map[string]memoryEntry
	lastKnown map[string]Entry
	closed    bool

	stats storeMetrics
}

func newMemoryStore(config Config) *memoryStore {
	return &memoryStore{
		config:    config,
		entries:   make(map[string]memoryEntry),
		lastKnown: make(map[string]Entry),
		stats:     newStoreMetrics(config),
	}
}

func (s *memoryStore) Get(_ context.Context, key string) (Entry, bool, error) {
	now := s.config.Clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.entries[key]
	if ok && now.After(record.expiresAt) {
		delete(s.entries, key)
		ok = false
	}
	if !ok {
		s.stats.miss()
		return Entry{}, false, nil
	}
	s.stats.hit()
	return record.entry, true, nil
}

func (s *memoryStore) Set(_ context.Context, key string, entry Entry, ttl time.Duration) error {
	now := s.config.Clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = memoryEntry{entry: entry, expiresAt: now.Add(ttl)}
	s.lastKnown[key] = entry
	s.stats.entries(len(s.entries))
	return nil
}

func (s *memoryStore) LastKnown(_ context.Context, key string) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.lastKnown[key]
	return entry, ok, nil
}

func (s *memoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]memoryEntry)
	s.stats.entries(0)
	return nil
}

func (s *memoryStore) Len(_ context.Context) (int, error) {
	now := s.config.Clock.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	live := 0
	for _, record := range s.entries {
		if !now.After(record.expiresAt) {
			live++
		}
	}
	return live, nil
}

func (s *memoryStore) LastKnownLen(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.lastKnown), nil
}

func (s *memoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.entries = make(map[string]memoryEntry)
	s.lastKnown = make(map[string]Entry)
	return nil
}

package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const defaultMemoryEntries = 1024

// MemoryStore is a process local Store for development and tests. Views
// live in a bounded LRU that also drops entries after the store TTL, so
// views left behind by a version bump age out. Version counters are kept
// apart and never evicted.
type MemoryStore struct {
	views *expirable.LRU[string, memoryEntry]

	mu       sync.Mutex
	counters map[string]int64
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

func NewMemoryStore(size int, ttl time.Duration) *MemoryStore {
	if size <= 0 {
		size = defaultMemoryEntries
	}
	return &MemoryStore{
		views:    expirable.NewLRU[string, memoryEntry](size, nil, ttl),
		counters: make(map[string]int64),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	n, ok := s.counters[key]
	s.mu.Unlock()
	if ok {
		return strconv.AppendInt(nil, n, 10), nil
	}

	e, ok := s.views.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		s.views.Remove(key)
		return nil, ErrMiss
	}
	return e.value, nil
}

// Set stores a view. A ttl shorter than the store TTL is honored per entry.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = time.Now().Add(ttl)
	}
	s.views.Add(key, e)
	return nil
}

func (s *MemoryStore) Incr(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters[key]++
	return s.counters[key], nil
}

// Len is the number of cached views.
func (s *MemoryStore) Len() int {
	return s.views.Len()
}

func (s *MemoryStore) Close() error {
	s.views.Purge()
	return nil
}

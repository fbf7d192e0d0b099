package models

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process SnapshotStore. Entries older than ttl read
// as missing and are dropped on the next write.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memoryEntry
	ttl   time.Duration
	now   func() time.Time
}

type memoryEntry struct {
	snapshot Snapshot
	savedAt  time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		items: make(map[string]memoryEntry),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (s *MemoryStore) Latest(ctx context.Context, sessionKey string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.items[sessionKey]
	if !ok || s.expired(entry) {
		return nil, ErrSnapshotNotFound
	}
	snap := entry.snapshot
	return &snap, nil
}

func (s *MemoryStore) Save(ctx context.Context, sessionKey string, snapshot *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, entry := range s.items {
		if s.expired(entry) {
			delete(s.items, key)
		}
	}
	s.items[sessionKey] = memoryEntry{snapshot: *snapshot, savedAt: s.now()}
	return nil
}

func (s *MemoryStore) expired(e memoryEntry) bool {
	return s.ttl > 0 && s.now().Sub(e.savedAt) > s.ttl
}

package data

import (
	"context"
	"sync"
	"time"

	"social-auth-service/internal/biz"
)

type pendingEntry struct {
	attrs     map[string]string
	expiresAt time.Time
}

// MemoryPendingStore holds pending extra fields in process memory. Entries
// expire with the session TTL; a background sweep reclaims them so
// abandoned logins do not leak.
type MemoryPendingStore struct {
	mu      sync.Mutex
	entries map[string]pendingEntry
	ttl     time.Duration
	done    chan struct{}
}

func NewMemoryPendingStore(ttl time.Duration) *MemoryPendingStore {
	s := &MemoryPendingStore{
		entries: make(map[string]pendingEntry),
		ttl:     ttl,
		done:    make(chan struct{}),
	}
	go s.sweep()
	return s
}

func (s *MemoryPendingStore) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for key, e := range s.entries {
				if now.After(e.expiresAt) {
					delete(s.entries, key)
				}
			}
			s.mu.Unlock()
		}
	}
}

// Stash stores attrs under key, replacing any prior entry.
func (s *MemoryPendingStore) Stash(ctx context.Context, key string, attrs map[string]string) error {
	copied := make(map[string]string, len(attrs))
	for k, v := range attrs {
		copied[k] = v
	}
	s.mu.Lock()
	s.entries[key] = pendingEntry{attrs: copied, expiresAt: time.Now().Add(s.ttl)}
	s.mu.Unlock()
	return nil
}

// Take removes and returns the entry for key. Exactly one caller wins under
// concurrency; everyone else, and any caller after expiry, gets an empty
// map.
func (s *MemoryPendingStore) Take(ctx context.Context, key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return map[string]string{}, nil
	}
	delete(s.entries, key)
	if time.Now().After(e.expiresAt) {
		return map[string]string{}, nil
	}
	return e.attrs, nil
}

// Close stops the background sweep.
func (s *MemoryPendingStore) Close() error {
	close(s.done)
	return nil
}

var _ biz.PendingStore = (*MemoryPendingStore)(nil)

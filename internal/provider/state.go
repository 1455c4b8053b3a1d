package provider

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"
)

type stateEntry struct {
	provider  string
	expiresAt time.Time
}

// StateStore issues and consumes one-time CSRF state values for the
// browser redirect flow. A state is bound to the provider it was issued
// for and is valid for exactly one callback.
type StateStore struct {
	mu        sync.Mutex
	states    map[string]stateEntry
	ttl       time.Duration
	done      chan struct{}
	closeOnce sync.Once
}

func NewStateStore(ttl time.Duration) *StateStore {
	s := &StateStore{
		states: make(map[string]stateEntry),
		ttl:    ttl,
		done:   make(chan struct{}),
	}
	go s.sweep()
	return s
}

func (s *StateStore) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for state, e := range s.states {
				if now.After(e.expiresAt) {
					delete(s.states, state)
				}
			}
			s.mu.Unlock()
		}
	}
}

// Issue generates a fresh state value bound to provider.
func (s *StateStore) Issue(provider string) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	state := base64.RawURLEncoding.EncodeToString(b)

	s.mu.Lock()
	s.states[state] = stateEntry{provider: provider, expiresAt: time.Now().Add(s.ttl)}
	s.mu.Unlock()
	return state, nil
}

// Consume validates and invalidates a state value. It reports true only
// once per issued state, and only for the provider it was issued for.
func (s *StateStore) Consume(state, provider string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.states[state]
	if !ok {
		return false
	}
	delete(s.states, state)
	return e.provider == provider && time.Now().Before(e.expiresAt)
}

// Close stops the background sweep.
func (s *StateStore) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

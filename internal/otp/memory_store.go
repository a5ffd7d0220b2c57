package otp

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps challenges in a map, dropping expired entries on read.
// It backs dev setups that run without Redis.
type MemoryStore struct {
	mu      sync.Mutex
	byPhone map[string]Challenge
	now     func() time.Time
}

// NewMemoryStore builds an in-memory challenge store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byPhone: make(map[string]Challenge), now: time.Now}
}

// Put stores the challenge, replacing any previous entry for the phone.
func (s *MemoryStore) Put(_ context.Context, ch Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !ch.ExpiresAt.After(s.now()) {
		delete(s.byPhone, ch.Phone)
		return nil
	}
	s.byPhone[ch.Phone] = ch
	return nil
}

// Get loads the challenge for a phone. Expired challenges read as absent,
// matching the Redis TTL behavior.
func (s *MemoryStore) Get(_ context.Context, phone string) (Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.byPhone[phone]
	if !ok {
		return Challenge{}, ErrNoChallenge
	}
	if !ch.ExpiresAt.After(s.now()) {
		delete(s.byPhone, phone)
		return Challenge{}, ErrNoChallenge
	}
	return ch, nil
}

// Delete removes the challenge.
func (s *MemoryStore) Delete(_ context.Context, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byPhone, phone)
	return nil
}

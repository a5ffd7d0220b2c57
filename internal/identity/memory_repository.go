package identity

import (
	"context"
	"sync"
)

type memoryRepository struct {
	mu         sync.RWMutex
	identities map[string]Identity
}

// NewMemoryRepository builds an in-memory identity store for testing and
// dependency-free development.
func NewMemoryRepository() Repository {
	return &memoryRepository{identities: make(map[string]Identity)}
}

func (r *memoryRepository) Create(_ context.Context, id Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.identities[id.Phone]; exists {
		return ErrExists
	}
	r.identities[id.Phone] = id
	return nil
}

func (r *memoryRepository) GetByPhone(_ context.Context, phone string) (Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.identities[phone]
	if !ok {
		return Identity{}, ErrNotFound
	}
	return id, nil
}

func (r *memoryRepository) GetByUsername(_ context.Context, username string) (Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.identities {
		if id.Username == username {
			return id, nil
		}
	}
	return Identity{}, ErrNotFound
}

func (r *memoryRepository) GetByReferralCode(_ context.Context, code string) (Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if code == "" {
		return Identity{}, ErrNotFound
	}
	for _, id := range r.identities {
		if id.ReferralCode == code {
			return id, nil
		}
	}
	return Identity{}, ErrNotFound
}

func (r *memoryRepository) Update(_ context.Context, id Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.identities[id.Phone]; !ok {
		return ErrNotFound
	}
	r.identities[id.Phone] = id
	return nil
}

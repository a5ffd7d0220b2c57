package binding

import (
	"context"
	"sync"
)

type memoryRepository struct {
	mu     sync.RWMutex
	byChan map[string]Binding
}

// NewMemoryRepository builds an in-memory binding store for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{byChan: make(map[string]Binding)}
}

func (r *memoryRepository) Upsert(_ context.Context, b Binding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byChan[b.ChannelID] = b
	return nil
}

func (r *memoryRepository) GetByPhone(_ context.Context, phone string) (Binding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.byChan {
		if b.Phone == phone {
			return b, nil
		}
	}
	return Binding{}, ErrNotFound
}

package device

import (
	"context"
	"sync"
)

type memoryRepository struct {
	mu      sync.RWMutex
	devices map[string]Device
	scans   []ScanEntry
}

// NewMemoryRepository constructs an in-memory repository for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{devices: make(map[string]Device)}
}

func (r *memoryRepository) Get(_ context.Context, deviceID string) (Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[deviceID]
	if !ok {
		return Device{}, ErrNotFound
	}
	return d, nil
}

func (r *memoryRepository) Create(_ context.Context, d Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices[d.DeviceID] = d
	return nil
}

// Mutate holds the write lock across the whole read-modify-write, making
// it atomic against concurrent mutations of the same device.
func (r *memoryRepository) Mutate(_ context.Context, deviceID string, fn func(d *Device) error) (Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[deviceID]
	if !ok {
		return Device{}, ErrNotFound
	}
	if err := fn(&d); err != nil {
		return Device{}, err
	}
	r.devices[deviceID] = d
	return d, nil
}

func (r *memoryRepository) AppendScan(_ context.Context, entry ScanEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scans = append(r.scans, entry)
	return nil
}

package referral

import (
	"context"
	"sync"
)

type memoryLog struct {
	mu     sync.RWMutex
	events []Event
}

// NewMemoryLog constructs an in-memory referral log for tests.
func NewMemoryLog() Log {
	return &memoryLog{}
}

func (l *memoryLog) Append(_ context.Context, e Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}

func (l *memoryLog) ListByReferrer(_ context.Context, phone string) ([]Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Event
	for i := len(l.events) - 1; i >= 0; i-- {
		if l.events[i].Referrer == phone {
			out = append(out, l.events[i])
		}
	}
	return out, nil
}

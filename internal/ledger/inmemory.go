package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/panadol94/tipsmega-api/internal/device"
	"github.com/panadol94/tipsmega-api/internal/identity"
	"github.com/panadol94/tipsmega-api/internal/referral"
)

// inMemoryLedger layers a single mutex over the in-memory repositories.
// Every ledger operation runs under the lock, which makes the read-compute-
// write sequences (including the two-entity claim) linearizable without a
// real transaction engine. It never aborts, so ErrTxAborted is exclusive to
// the Postgres backend.
type inMemoryLedger struct {
	mu      sync.Mutex
	ids     identity.Repository
	devices device.Repository
	events  referral.Log
}

// NewInMemory creates a concurrency-safe ledger over in-memory repositories,
// useful for unit tests and dependency-free development.
func NewInMemory(ids identity.Repository, devices device.Repository, events referral.Log) Ledger {
	return &inMemoryLedger{ids: ids, devices: devices, events: events}
}

func (l *inMemoryLedger) Summary(ctx context.Context, phone string) (Summary, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id, err := l.ids.GetByPhone(ctx, phone)
	if err != nil {
		return Summary{}, err
	}
	return Summary{GrantedTotal: id.GrantedTotal, ClaimedTotal: id.ClaimedTotal, Pending: id.Pending()}, nil
}

func (l *inMemoryLedger) Adjust(ctx context.Context, username string, delta int64) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id, err := l.ids.GetByUsername(ctx, username)
	if err != nil {
		return 0, err
	}
	id.GrantedTotal += delta
	if err := l.ids.Update(ctx, id); err != nil {
		return 0, err
	}
	return id.GrantedTotal, nil
}

func (l *inMemoryLedger) Redeem(ctx context.Context, refereePhone, code string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	referrer, err := l.ids.GetByReferralCode(ctx, code)
	if err != nil {
		return "", err
	}
	if referrer.Phone == refereePhone {
		return "", ErrSelfReferral
	}

	referrer.GrantedTotal += ReferralReward
	referrer.ReferralCount++
	if err := l.ids.Update(ctx, referrer); err != nil {
		return "", err
	}

	err = l.events.Append(ctx, referral.Event{
		ID:        uuid.NewString(),
		Referrer:  referrer.Phone,
		Referee:   refereePhone,
		Code:      code,
		Reward:    ReferralReward,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return "", err
	}
	return referrer.Phone, nil
}

func (l *inMemoryLedger) Claim(ctx context.Context, phone, deviceID string) (ClaimResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id, err := l.ids.GetByPhone(ctx, phone)
	if err != nil {
		return ClaimResult{}, err
	}
	d, err := l.devices.Get(ctx, deviceID)
	if err != nil {
		return ClaimResult{}, err
	}

	// Pending is recomputed here, under the lock, so a concurrent referral
	// or admin adjustment is either fully included or fully excluded.
	pending := id.GrantedTotal - id.ClaimedTotal
	if pending <= 0 {
		return ClaimResult{Stars: d.Stars, Granted: false, Amount: 0}, nil
	}

	id.ClaimedTotal = id.GrantedTotal
	id.LastClaimDevice = deviceID

	if err := l.ids.Update(ctx, id); err != nil {
		return ClaimResult{}, err
	}
	// The increment goes through Mutate: the device repository owns the
	// record for the whole read-modify-write, so a concurrent scan cannot
	// interleave inside it.
	d, err = l.devices.Mutate(ctx, deviceID, func(dev *device.Device) error {
		dev.Stars += pending
		return nil
	})
	if err != nil {
		return ClaimResult{}, err
	}

	return ClaimResult{Stars: d.Stars, Granted: true, Amount: pending}, nil
}

func (l *inMemoryLedger) Events(ctx context.Context, phone string) ([]referral.Event, error) {
	return l.events.ListByReferrer(ctx, phone)
}

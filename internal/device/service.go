package device

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// ErrNoStars indicates the device has exhausted its daily quota.
var ErrNoStars = errors.New("no stars left")

const (
	newDeviceStars = 1
	scoreMin       = 10
	scoreSpan      = 84 // presentational score in [10, 93]
)

// Service manages the per-device daily star quota.
type Service struct {
	repo       Repository
	dailyLimit int64
	loc        *time.Location
	now        func() time.Time
}

// NewService builds a device quota service. The timezone fixes the calendar
// day used for the daily top-up.
func NewService(repo Repository, dailyLimit int, timezone string) (*Service, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	return &Service{repo: repo, dailyLimit: int64(dailyLimit), loc: loc, now: time.Now}, nil
}

// InitResult reports the device state after initialization.
type InitResult struct {
	DeviceID string
	Stars    int64
	IsNew    bool
}

// ScanResult reports the outcome of a scan.
type ScanResult struct {
	Score int64
	Stars int64
}

// Init creates the device with one free star on first contact, or applies
// the daily top-up on a day change. Top-up only ever raises stars, up to
// the daily limit.
func (s *Service) Init(ctx context.Context, deviceID string) (InitResult, error) {
	d, err := s.repo.Mutate(ctx, deviceID, func(d *Device) error {
		s.topUp(d)
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		d = Device{DeviceID: deviceID, Stars: newDeviceStars, LastActiveDate: "", CreatedAt: s.now().UTC()}
		if err := s.repo.Create(ctx, d); err != nil {
			return InitResult{}, err
		}
		return InitResult{DeviceID: deviceID, Stars: d.Stars, IsNew: true}, nil
	}
	if err != nil {
		return InitResult{}, err
	}
	return InitResult{DeviceID: deviceID, Stars: d.Stars, IsNew: false}, nil
}

// Scan consumes one star, appends an immutable scan log entry and returns
// the remaining balance with a presentational score. Fails without mutation
// when the quota is exhausted.
func (s *Service) Scan(ctx context.Context, deviceID, targetID string) (ScanResult, error) {
	d, err := s.repo.Mutate(ctx, deviceID, func(d *Device) error {
		s.topUp(d)
		if d.Stars <= 0 {
			return ErrNoStars
		}
		d.Stars--
		return nil
	})
	if err != nil {
		return ScanResult{}, err
	}

	score := int64(scoreMin + rand.Intn(scoreSpan))
	entry := ScanEntry{
		ID:        uuid.NewString(),
		DeviceID:  deviceID,
		TargetID:  targetID,
		Score:     score,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.AppendScan(ctx, entry); err != nil {
		return ScanResult{}, err
	}

	return ScanResult{Score: score, Stars: d.Stars}, nil
}

// topUp applies the day-rollover rule in place. Stars are raised to the
// daily limit only when below it; the active date always advances on a day
// change. A blank date marks a freshly created device: it gets stamped with
// today without the top-up, so the starter star is spent before any daily
// grant.
func (s *Service) topUp(d *Device) {
	today := s.now().In(s.loc).Format("2006-01-02")
	if d.LastActiveDate == today {
		return
	}
	if d.LastActiveDate != "" && d.Stars < s.dailyLimit {
		d.Stars = s.dailyLimit
	}
	d.LastActiveDate = today
}

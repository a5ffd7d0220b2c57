package device

import (
	"context"
	"testing"
	"time"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(NewMemoryRepository(), 5, "Asia/Kuala_Lumpur")
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestInitNewDevice(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	res, err := svc.Init(ctx, "device-x")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if !res.IsNew || res.Stars != 1 {
		t.Fatalf("expected {stars:1, isNew:true}, got %+v", res)
	}

	again, err := svc.Init(ctx, "device-x")
	if err != nil {
		t.Fatalf("second init: %v", err)
	}
	if again.IsNew {
		t.Fatalf("expected isNew=false on second init")
	}
}

func TestInitNeverDecreasesStars(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	seed := Device{DeviceID: "rich", Stars: 40, LastActiveDate: "2020-01-01"}
	if err := svc.repo.Create(ctx, seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	res, err := svc.Init(ctx, "rich")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if res.Stars != 40 {
		t.Fatalf("top-up lowered stars: got %d, want 40", res.Stars)
	}
}

func TestScanLifecycle(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, svc.loc)
	svc.now = func() time.Time { return base }

	if _, err := svc.Init(ctx, "device-x"); err != nil {
		t.Fatalf("init: %v", err)
	}

	res, err := svc.Scan(ctx, "device-x", "t1")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if res.Stars != 0 {
		t.Fatalf("expected 0 stars after first scan, got %d", res.Stars)
	}
	if res.Score < 10 || res.Score > 93 {
		t.Fatalf("score out of range: %d", res.Score)
	}

	if _, err := svc.Scan(ctx, "device-x", "t2"); err != ErrNoStars {
		t.Fatalf("expected ErrNoStars, got %v", err)
	}
	d, err := svc.repo.Get(ctx, "device-x")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if d.Stars != 0 {
		t.Fatalf("failed scan mutated stars: %d", d.Stars)
	}

	// Next calendar day: init tops up to the daily limit.
	svc.now = func() time.Time { return base.AddDate(0, 0, 1) }
	topped, err := svc.Init(ctx, "device-x")
	if err != nil {
		t.Fatalf("rollover init: %v", err)
	}
	if topped.Stars != 5 {
		t.Fatalf("expected top-up to 5, got %d", topped.Stars)
	}
}

func TestScanUnknownDevice(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.Scan(context.Background(), "ghost", "t1"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestScanAppliesRolloverBeforeDeduct(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 23, 0, 0, 0, svc.loc)
	svc.now = func() time.Time { return base }
	if _, err := svc.Init(ctx, "device-y"); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := svc.Scan(ctx, "device-y", "t1"); err != nil {
		t.Fatalf("scan: %v", err)
	}

	// A scan on the next day must top up first, then deduct one.
	svc.now = func() time.Time { return base.AddDate(0, 0, 1) }
	res, err := svc.Scan(ctx, "device-y", "t2")
	if err != nil {
		t.Fatalf("rollover scan: %v", err)
	}
	if res.Stars != 4 {
		t.Fatalf("expected 4 stars after rollover scan, got %d", res.Stars)
	}
}

package otp

import (
	"context"
	"testing"
	"time"

	"github.com/panadol94/tipsmega-api/internal/binding"
	"github.com/panadol94/tipsmega-api/internal/logging"
	"github.com/panadol94/tipsmega-api/internal/notify"
)

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	now := time.Now()
	store.now = func() time.Time { return now }

	ch := Challenge{Phone: "+60123456789", ChannelID: "tg-1", CodeHash: "h", ExpiresAt: now.Add(time.Minute)}
	if err := store.Put(ctx, ch); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := store.Get(ctx, ch.Phone)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CodeHash != "h" {
		t.Fatalf("unexpected challenge: %+v", got)
	}

	// Past the expiry the entry reads as absent, like a lapsed Redis TTL.
	now = now.Add(2 * time.Minute)
	if _, err := store.Get(ctx, ch.Phone); err != ErrNoChallenge {
		t.Fatalf("expected ErrNoChallenge after expiry, got %v", err)
	}

	if err := store.Delete(ctx, ch.Phone); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestMemoryStoreBacksVerifyLifecycle(t *testing.T) {
	ctx := context.Background()
	bindings := binding.NewMemoryRepository()
	if err := bindings.Upsert(ctx, binding.Binding{ChannelID: "tg-1", Phone: "+60123456789"}); err != nil {
		t.Fatalf("seed binding: %v", err)
	}

	notifier := &captureNotifier{ch: make(chan notify.Message, 1)}
	svc := NewService(NewMemoryStore(), bindings, staticMembers{member: true},
		notifier, "test-secret", 3*time.Minute, logging.Discard())

	code := requestCode(t, svc, notifier, "+60123456789")
	if err := svc.Verify(ctx, "+60123456789", code); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := svc.Verify(ctx, "+60123456789", code); err != ErrExpired {
		t.Fatalf("expected ErrExpired on replay, got %v", err)
	}
}

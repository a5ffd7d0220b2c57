package otp

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/panadol94/tipsmega-api/internal/binding"
	"github.com/panadol94/tipsmega-api/internal/logging"
	"github.com/panadol94/tipsmega-api/internal/notify"
)

type staticMembers struct{ member bool }

func (m staticMembers) IsMember(context.Context, string) (bool, error) { return m.member, nil }

type captureNotifier struct{ ch chan notify.Message }

func (n *captureNotifier) Send(_ context.Context, msg notify.Message) error {
	n.ch <- msg
	return nil
}

var codeRe = regexp.MustCompile(`\d{6}`)

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	payload, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return payload
}

func newTestService(t *testing.T, member bool) (*Service, *captureNotifier) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	bindings := binding.NewMemoryRepository()
	if err := bindings.Upsert(context.Background(), binding.Binding{ChannelID: "tg-1", Phone: "+60123456789"}); err != nil {
		t.Fatalf("seed binding: %v", err)
	}

	notifier := &captureNotifier{ch: make(chan notify.Message, 1)}
	svc := NewService(NewRedisStore(client), bindings, staticMembers{member: member},
		notifier, "test-secret", 3*time.Minute, logging.Discard())
	return svc, notifier
}

func requestCode(t *testing.T, svc *Service, notifier *captureNotifier, phone string) string {
	t.Helper()
	if _, err := svc.Request(context.Background(), phone); err != nil {
		t.Fatalf("request: %v", err)
	}
	select {
	case msg := <-notifier.ch:
		code := codeRe.FindString(msg.Body)
		if code == "" {
			t.Fatalf("no code in delivery body %q", msg.Body)
		}
		return code
	case <-time.After(time.Second):
		t.Fatalf("otp delivery timed out")
		return ""
	}
}

func TestRequestGates(t *testing.T) {
	svc, _ := newTestService(t, true)
	if _, err := svc.Request(context.Background(), "+60999999999"); err != ErrNotBound {
		t.Fatalf("expected ErrNotBound, got %v", err)
	}

	svcNoMember, _ := newTestService(t, false)
	if _, err := svcNoMember.Request(context.Background(), "+60123456789"); err != ErrNotMember {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}
}

func TestVerifyConsumesChallengeOnce(t *testing.T) {
	svc, notifier := newTestService(t, true)
	ctx := context.Background()

	code := requestCode(t, svc, notifier, "+60123456789")

	if err := svc.Verify(ctx, "+60123456789", code); err != nil {
		t.Fatalf("verify: %v", err)
	}

	// Replay with the same code must fail: the challenge is consumed.
	if err := svc.Verify(ctx, "+60123456789", code); err != ErrExpired {
		t.Fatalf("expected ErrExpired on replay, got %v", err)
	}
}

func TestVerifyAttemptBudget(t *testing.T) {
	svc, notifier := newTestService(t, true)
	ctx := context.Background()

	code := requestCode(t, svc, notifier, "+60123456789")

	for i := 0; i < 3; i++ {
		if err := svc.Verify(ctx, "+60123456789", "000000"); err != ErrWrongCode {
			t.Fatalf("attempt %d: expected ErrWrongCode, got %v", i, err)
		}
	}

	// Budget exhausted: the record is deleted and even the right code fails.
	if err := svc.Verify(ctx, "+60123456789", code); err != ErrTooManyAttempts {
		t.Fatalf("expected ErrTooManyAttempts, got %v", err)
	}
	if err := svc.Verify(ctx, "+60123456789", code); err != ErrExpired {
		t.Fatalf("expected ErrExpired after deletion, got %v", err)
	}
}

func TestVerifyExpired(t *testing.T) {
	svc, _ := newTestService(t, true)
	ctx := context.Background()

	expired := Challenge{
		Phone:     "+60123456789",
		ChannelID: "tg-1",
		CodeHash:  svc.hash("123456"),
		ExpiresAt: time.Now().Add(time.Minute),
	}
	if err := svc.store.Put(ctx, expired); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Flip the stored expiry into the past; the read-time check rejects it.
	expired.ExpiresAt = time.Now().Add(-time.Second)
	raw := svc.store.(*RedisStore)
	if err := raw.client.Set(ctx, keyPrefix+expired.Phone, mustJSON(t, expired), time.Minute).Err(); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	if err := svc.Verify(ctx, "+60123456789", "123456"); err != ErrExpired {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestRequestOverwritesPriorChallenge(t *testing.T) {
	svc, notifier := newTestService(t, true)
	ctx := context.Background()

	first := requestCode(t, svc, notifier, "+60123456789")
	second := requestCode(t, svc, notifier, "+60123456789")
	if first == second {
		t.Skip("codes collided; nothing to assert")
	}

	if err := svc.Verify(ctx, "+60123456789", first); err != ErrWrongCode {
		t.Fatalf("old code should no longer match, got %v", err)
	}
	if err := svc.Verify(ctx, "+60123456789", second); err != nil {
		t.Fatalf("new code: %v", err)
	}
}

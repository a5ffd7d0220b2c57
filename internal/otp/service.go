// Package otp implements the time-boxed, attempt-limited one-time code
// exchange gating registration and password reset.
package otp

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/panadol94/tipsmega-api/internal/binding"
	"github.com/panadol94/tipsmega-api/internal/notify"
)

var (
	// ErrNotBound indicates the phone has no channel binding yet.
	ErrNotBound = errors.New("phone not bound to a channel")

	// ErrNotMember indicates the bound channel account has not joined the
	// gating group.
	ErrNotMember = errors.New("channel account is not a group member")

	// ErrExpired covers an absent, consumed or expired challenge.
	ErrExpired = errors.New("otp expired or missing")

	// ErrTooManyAttempts indicates the attempt budget is exhausted; the
	// challenge is deleted and even the correct code is rejected afterwards.
	ErrTooManyAttempts = errors.New("too many otp attempts")

	// ErrWrongCode indicates a hash mismatch. Each wrong code burns one
	// attempt; the counter mutation is a deliberate rate-limiting side effect.
	ErrWrongCode = errors.New("wrong otp code")
)

const (
	maxAttempts  = 3
	deliveryWait = 10 * time.Second
)

// MembershipChecker reports whether a channel account currently belongs to
// the gating group.
type MembershipChecker interface {
	IsMember(ctx context.Context, channelID string) (bool, error)
}

// Service issues and verifies one-time codes bound to a phone.
type Service struct {
	store    Store
	bindings binding.Repository
	members  MembershipChecker
	notifier notify.Notifier
	secret   []byte
	ttl      time.Duration
	logger   *slog.Logger
}

// NewService builds the OTP service. The secret keys the HMAC used to hash
// codes at rest.
func NewService(store Store, bindings binding.Repository, members MembershipChecker,
	notifier notify.Notifier, secret string, ttl time.Duration, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		bindings: bindings,
		members:  members,
		notifier: notifier,
		secret:   []byte(secret),
		ttl:      ttl,
		logger:   logger,
	}
}

// Request issues a fresh challenge for the phone, overwriting any previous
// one, and dispatches the plaintext code out-of-band. Delivery is
// fire-and-forget; the response only carries the expiry window.
func (s *Service) Request(ctx context.Context, phone string) (time.Duration, error) {
	b, err := s.bindings.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, binding.ErrNotFound) {
			return 0, ErrNotBound
		}
		return 0, err
	}

	member, err := s.members.IsMember(ctx, b.ChannelID)
	if err != nil {
		return 0, fmt.Errorf("membership check: %w", err)
	}
	if !member {
		return 0, ErrNotMember
	}

	code, err := generateCode()
	if err != nil {
		return 0, err
	}

	ch := Challenge{
		Phone:     phone,
		ChannelID: b.ChannelID,
		CodeHash:  s.hash(code),
		ExpiresAt: time.Now().Add(s.ttl),
		Attempts:  0,
	}
	if err := s.store.Put(ctx, ch); err != nil {
		return 0, err
	}

	go s.deliver(b.ChannelID, code)

	return s.ttl, nil
}

// Verify consumes the challenge on success, making each code usable exactly
// once. Three hash mismatches delete the challenge for good.
func (s *Service) Verify(ctx context.Context, phone, code string) error {
	ch, err := s.store.Get(ctx, phone)
	if err != nil {
		if errors.Is(err, ErrNoChallenge) {
			return ErrExpired
		}
		return err
	}
	if time.Now().After(ch.ExpiresAt) {
		return ErrExpired
	}
	if ch.Attempts >= maxAttempts {
		if err := s.store.Delete(ctx, phone); err != nil {
			return err
		}
		return ErrTooManyAttempts
	}
	if !hmac.Equal([]byte(ch.CodeHash), []byte(s.hash(code))) {
		ch.Attempts++
		if err := s.store.Put(ctx, ch); err != nil {
			return err
		}
		return ErrWrongCode
	}
	if err := s.store.Delete(ctx, phone); err != nil {
		return err
	}
	return nil
}

func (s *Service) hash(code string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Service) deliver(channelID, code string) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryWait)
	defer cancel()
	msg := notify.Message{
		ChannelID: channelID,
		Body:      fmt.Sprintf("🔐 TipsMega888 OTP\n\nOTP anda: %s\nValid: %d minit\n\nJika bukan anda, abaikan mesej ini.", code, int(s.ttl.Minutes())),
	}
	if err := s.notifier.Send(ctx, msg); err != nil && s.logger != nil {
		s.logger.Warn("otp delivery failed", "channel_id", channelID, "error", err)
	}
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

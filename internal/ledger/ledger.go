// Package ledger reconciles per-identity granted/claimed star totals
// against per-device balances. All multi-field mutations are linearizable
// per identity, and the two-entity claim commits as a single unit.
package ledger

import (
	"context"
	"errors"

	"github.com/panadol94/tipsmega-api/internal/referral"
)

var (
	// ErrTxAborted occurs when a concurrent modification forced the backend
	// to abort. No partial state is observable; the operation is safe to retry.
	ErrTxAborted = errors.New("transaction aborted by concurrent modification")

	// ErrSelfReferral indicates an identity presented its own referral code.
	ErrSelfReferral = errors.New("self referral")
)

// ReferralReward is the granted-total increment credited per referred
// registration.
const ReferralReward = 1

// WelcomeBonus is the absolute granted total set at verified registration.
const WelcomeBonus = 30

// Summary is a read-only view of an identity's credit ledger.
type Summary struct {
	GrantedTotal int64
	ClaimedTotal int64
	Pending      int64 // GrantedTotal - ClaimedTotal, unclamped
}

// ClaimResult reports the outcome of the atomic claim.
type ClaimResult struct {
	Stars   int64 // device balance after the claim
	Granted bool
	Amount  int64 // pending credit moved onto the device
}

// Ledger is the transactional contract for all credit mutations. Concurrent
// operations touching the same identity or device must not lose updates;
// implementations either serialize them or abort with ErrTxAborted.
type Ledger interface {
	// Summary recomputes pending from the current totals.
	Summary(ctx context.Context, phone string) (Summary, error)

	// Adjust moves the granted total by an arbitrary signed delta and
	// returns the new total. No floor: pending may go negative and is only
	// clamped at claim time.
	Adjust(ctx context.Context, username string, delta int64) (int64, error)

	// Redeem rewards the owner of code for referring refereePhone and
	// returns the referrer's phone. A self-match fails with ErrSelfReferral;
	// an unknown code fails with the identity not-found error.
	Redeem(ctx context.Context, refereePhone, code string) (string, error)

	// Claim atomically moves the identity's pending credit onto the device
	// and jumps the claim watermark to the freshly read granted total. Both
	// writes commit as one unit or not at all. Pending <= 0 is a no-op.
	Claim(ctx context.Context, phone, deviceID string) (ClaimResult, error)

	// Events lists the referral rewards credited to the given phone.
	Events(ctx context.Context, phone string) ([]referral.Event, error)
}

package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/panadol94/tipsmega-api/internal/device"
	"github.com/panadol94/tipsmega-api/internal/identity"
	"github.com/panadol94/tipsmega-api/internal/referral"
)

// PostgresLedger runs every credit mutation inside a serializable
// transaction with row locks on the exact identities and devices touched.
// Serialization failures and deadlocks surface as ErrTxAborted; the caller
// retries.
type PostgresLedger struct {
	db     *pgxpool.Pool
	events *referral.PostgresLog
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db, events: referral.NewPostgresLog(db)}
}

// Summary returns the current ledger totals for an identity.
func (l *PostgresLedger) Summary(ctx context.Context, phone string) (Summary, error) {
	row := l.db.QueryRow(ctx, `SELECT granted_total, claimed_total FROM identities WHERE phone = $1`, phone)
	var s Summary
	if err := row.Scan(&s.GrantedTotal, &s.ClaimedTotal); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Summary{}, identity.ErrNotFound
		}
		return Summary{}, err
	}
	s.Pending = s.GrantedTotal - s.ClaimedTotal
	return s, nil
}

// Adjust applies a signed delta to the granted total atomically and returns
// the new value.
func (l *PostgresLedger) Adjust(ctx context.Context, username string, delta int64) (int64, error) {
	row := l.db.QueryRow(ctx, `UPDATE identities SET granted_total = granted_total + $2
        WHERE username = $1 RETURNING granted_total`, username, delta)
	var total int64
	if err := row.Scan(&total); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, identity.ErrNotFound
		}
		return 0, translate(err)
	}
	return total, nil
}

// Redeem rewards the referral code owner inside one transaction: granted
// total and referral count increments plus the audit event commit together.
func (l *PostgresLedger) Redeem(ctx context.Context, refereePhone, code string) (string, error) {
	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var referrerPhone string
	row := tx.QueryRow(ctx, `SELECT phone FROM identities WHERE referral_code = $1 FOR UPDATE`, code)
	if err := row.Scan(&referrerPhone); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", identity.ErrNotFound
		}
		return "", translate(err)
	}
	if referrerPhone == refereePhone {
		return "", ErrSelfReferral
	}

	if _, err := tx.Exec(ctx, `UPDATE identities SET granted_total = granted_total + $2,
        referral_count = referral_count + 1 WHERE phone = $1`, referrerPhone, int64(ReferralReward)); err != nil {
		return "", translate(err)
	}

	if _, err := tx.Exec(ctx, `INSERT INTO referral_logs (id, referrer, referee, code, reward, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.NewString(), referrerPhone, refereePhone, code, int64(ReferralReward), time.Now().UTC()); err != nil {
		return "", translate(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", translate(err)
	}
	return referrerPhone, nil
}

// Claim moves pending credit onto the device. Identity and device rows are
// locked, pending is recomputed from the locked read, and both updates
// commit as one unit; any failure rolls back both.
func (l *PostgresLedger) Claim(ctx context.Context, phone, deviceID string) (ClaimResult, error) {
	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return ClaimResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var granted, claimed int64
	row := tx.QueryRow(ctx, `SELECT granted_total, claimed_total FROM identities
        WHERE phone = $1 FOR UPDATE`, phone)
	if err := row.Scan(&granted, &claimed); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ClaimResult{}, identity.ErrNotFound
		}
		return ClaimResult{}, translate(err)
	}

	var stars int64
	row = tx.QueryRow(ctx, `SELECT stars FROM devices WHERE device_id = $1 FOR UPDATE`, deviceID)
	if err := row.Scan(&stars); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ClaimResult{}, device.ErrNotFound
		}
		return ClaimResult{}, translate(err)
	}

	pending := granted - claimed
	if pending <= 0 {
		return ClaimResult{Stars: stars, Granted: false, Amount: 0}, nil
	}

	stars += pending
	if _, err := tx.Exec(ctx, `UPDATE devices SET stars = $2 WHERE device_id = $1`, deviceID, stars); err != nil {
		return ClaimResult{}, translate(err)
	}
	// Watermark jumps to the freshly read granted total, not += pending.
	if _, err := tx.Exec(ctx, `UPDATE identities SET claimed_total = $2, last_claim_device = $3
        WHERE phone = $1`, phone, granted, deviceID); err != nil {
		return ClaimResult{}, translate(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return ClaimResult{}, translate(err)
	}

	return ClaimResult{Stars: stars, Granted: true, Amount: pending}, nil
}

// Events lists referral rewards credited to the phone.
func (l *PostgresLedger) Events(ctx context.Context, phone string) ([]referral.Event, error) {
	return l.events.ListByReferrer(ctx, phone)
}

// translate maps serialization failures and deadlocks onto the retryable
// sentinel.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return ErrTxAborted
		}
	}
	return err
}

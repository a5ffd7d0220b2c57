package identity

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound indicates no identity matches the lookup key.
	ErrNotFound = errors.New("identity not found")

	// ErrExists indicates the phone or username is already registered.
	ErrExists = errors.New("identity exists")
)

// Repository persists identities.
type Repository interface {
	Create(ctx context.Context, id Identity) error
	GetByPhone(ctx context.Context, phone string) (Identity, error)
	GetByUsername(ctx context.Context, username string) (Identity, error)
	GetByReferralCode(ctx context.Context, code string) (Identity, error)
	Update(ctx context.Context, id Identity) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const identityColumns = `phone, username, pass_salt, pass_hash, verified, referral_code,
        referred_by, referral_count, granted_total, claimed_total, last_claim_device, created_at`

// Create inserts a new identity keyed by canonical phone.
func (r *PostgresRepository) Create(ctx context.Context, id Identity) error {
	_, err := r.db.Exec(ctx, `INSERT INTO identities (`+identityColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		id.Phone, id.Username, id.PassSalt, id.PassHash, id.Verified, id.ReferralCode,
		id.ReferredBy, id.ReferralCount, id.GrantedTotal, id.ClaimedTotal, id.LastClaimDevice,
		id.CreatedAt.UTC())
	return err
}

// GetByPhone fetches an identity by canonical phone.
func (r *PostgresRepository) GetByPhone(ctx context.Context, phone string) (Identity, error) {
	return r.getBy(ctx, `SELECT `+identityColumns+` FROM identities WHERE phone = $1`, phone)
}

// GetByUsername fetches an identity by its unique username.
func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (Identity, error) {
	return r.getBy(ctx, `SELECT `+identityColumns+` FROM identities WHERE username = $1`, username)
}

// GetByReferralCode fetches the identity owning a referral code.
func (r *PostgresRepository) GetByReferralCode(ctx context.Context, code string) (Identity, error) {
	return r.getBy(ctx, `SELECT `+identityColumns+` FROM identities WHERE referral_code = $1`, code)
}

// Update persists all mutable identity fields.
func (r *PostgresRepository) Update(ctx context.Context, id Identity) error {
	cmd, err := r.db.Exec(ctx, `UPDATE identities SET username = $2, pass_salt = $3, pass_hash = $4,
        verified = $5, referral_code = $6, referred_by = $7, referral_count = $8,
        granted_total = $9, claimed_total = $10, last_claim_device = $11 WHERE phone = $1`,
		id.Phone, id.Username, id.PassSalt, id.PassHash, id.Verified, id.ReferralCode,
		id.ReferredBy, id.ReferralCount, id.GrantedTotal, id.ClaimedTotal, id.LastClaimDevice)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) getBy(ctx context.Context, query, arg string) (Identity, error) {
	row := r.db.QueryRow(ctx, query, arg)
	var (
		id        Identity
		createdAt time.Time
	)
	if err := row.Scan(&id.Phone, &id.Username, &id.PassSalt, &id.PassHash, &id.Verified,
		&id.ReferralCode, &id.ReferredBy, &id.ReferralCount, &id.GrantedTotal, &id.ClaimedTotal,
		&id.LastClaimDevice, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Identity{}, ErrNotFound
		}
		return Identity{}, err
	}
	id.CreatedAt = createdAt.UTC()
	return id, nil
}

// Package binding maps canonical phones to the external Telegram accounts
// that proved ownership of them.
package binding

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates no channel has claimed the phone.
var ErrNotFound = errors.New("binding not found")

// Binding links a canonical phone to the channel account that shared it.
type Binding struct {
	ChannelID string
	Phone     string
	CreatedAt time.Time
}

// Repository persists phone-to-channel bindings.
type Repository interface {
	// Upsert stores the binding, overwriting any previous phone held by the
	// channel. Re-sharing a contact is last-write-wins.
	Upsert(ctx context.Context, b Binding) error
	GetByPhone(ctx context.Context, phone string) (Binding, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed binding repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert stores or replaces the channel's binding.
func (r *PostgresRepository) Upsert(ctx context.Context, b Binding) error {
	_, err := r.db.Exec(ctx, `INSERT INTO bindings (channel_id, phone, created_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (channel_id) DO UPDATE SET phone = EXCLUDED.phone`,
		b.ChannelID, b.Phone, b.CreatedAt.UTC())
	return err
}

// GetByPhone fetches the binding for a canonical phone.
func (r *PostgresRepository) GetByPhone(ctx context.Context, phone string) (Binding, error) {
	row := r.db.QueryRow(ctx, `SELECT channel_id, phone, created_at FROM bindings WHERE phone = $1`, phone)
	var (
		b         Binding
		createdAt time.Time
	)
	if err := row.Scan(&b.ChannelID, &b.Phone, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Binding{}, ErrNotFound
		}
		return Binding{}, err
	}
	b.CreatedAt = createdAt.UTC()
	return b, nil
}

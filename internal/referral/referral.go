// Package referral keeps the append-only audit log of referral rewards.
package referral

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Event is an immutable record of one referral reward.
type Event struct {
	ID        string
	Referrer  string // phone of the rewarded identity
	Referee   string // phone of the newly registered identity
	Code      string
	Reward    int64
	CreatedAt time.Time
}

// Log persists referral events. Append-only; events are never updated or
// deleted.
type Log interface {
	Append(ctx context.Context, e Event) error
	ListByReferrer(ctx context.Context, phone string) ([]Event, error)
}

// PostgresLog stores referral events in PostgreSQL.
type PostgresLog struct {
	db *pgxpool.Pool
}

// NewPostgresLog builds a Postgres-backed referral log.
func NewPostgresLog(db *pgxpool.Pool) *PostgresLog {
	return &PostgresLog{db: db}
}

// Append records a referral event.
func (l *PostgresLog) Append(ctx context.Context, e Event) error {
	_, err := l.db.Exec(ctx, `INSERT INTO referral_logs (id, referrer, referee, code, reward, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`, e.ID, e.Referrer, e.Referee, e.Code, e.Reward, e.CreatedAt.UTC())
	return err
}

// ListByReferrer returns events rewarded to the given phone, newest first.
func (l *PostgresLog) ListByReferrer(ctx context.Context, phone string) ([]Event, error) {
	rows, err := l.db.Query(ctx, `SELECT id, referrer, referee, code, reward, created_at
        FROM referral_logs WHERE referrer = $1 ORDER BY created_at DESC`, phone)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e         Event
			createdAt time.Time
		)
		if err := rows.Scan(&e.ID, &e.Referrer, &e.Referee, &e.Code, &e.Reward, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt = createdAt.UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}

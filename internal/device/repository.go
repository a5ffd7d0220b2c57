package device

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the device has never been initialized.
var ErrNotFound = errors.New("device not found")

// Repository persists devices and their scan log. All counter changes go
// through Mutate so the read-modify-write is atomic per device: concurrent
// scans, top-ups and claims serialize instead of overwriting each other.
type Repository interface {
	Get(ctx context.Context, deviceID string) (Device, error)
	Create(ctx context.Context, d Device) error

	// Mutate loads the device, applies fn under exclusive ownership of the
	// record and persists the result. An fn error aborts without writing
	// and is returned verbatim.
	Mutate(ctx context.Context, deviceID string, fn func(d *Device) error) (Device, error)

	AppendScan(ctx context.Context, entry ScanEntry) error
}

// PostgresRepository stores devices in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get fetches a device by its opaque client-supplied identifier.
func (r *PostgresRepository) Get(ctx context.Context, deviceID string) (Device, error) {
	row := r.db.QueryRow(ctx, `SELECT device_id, stars, last_active_date, created_at
        FROM devices WHERE device_id = $1`, deviceID)
	var (
		d         Device
		createdAt time.Time
	)
	if err := row.Scan(&d.DeviceID, &d.Stars, &d.LastActiveDate, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Device{}, ErrNotFound
		}
		return Device{}, err
	}
	d.CreatedAt = createdAt.UTC()
	return d, nil
}

// Create inserts a new device record.
func (r *PostgresRepository) Create(ctx context.Context, d Device) error {
	_, err := r.db.Exec(ctx, `INSERT INTO devices (device_id, stars, last_active_date, created_at)
        VALUES ($1, $2, $3, $4)`, d.DeviceID, d.Stars, d.LastActiveDate, d.CreatedAt.UTC())
	return err
}

// Mutate runs fn inside a transaction holding the device row lock, so a
// concurrent claim or scan waits for the full read-modify-write instead of
// clobbering it.
func (r *PostgresRepository) Mutate(ctx context.Context, deviceID string, fn func(d *Device) error) (Device, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return Device{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	row := tx.QueryRow(ctx, `SELECT device_id, stars, last_active_date, created_at
        FROM devices WHERE device_id = $1 FOR UPDATE`, deviceID)
	var (
		d         Device
		createdAt time.Time
	)
	if err := row.Scan(&d.DeviceID, &d.Stars, &d.LastActiveDate, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Device{}, ErrNotFound
		}
		return Device{}, err
	}
	d.CreatedAt = createdAt.UTC()

	if err := fn(&d); err != nil {
		return Device{}, err
	}

	if _, err := tx.Exec(ctx, `UPDATE devices SET stars = $2, last_active_date = $3
        WHERE device_id = $1`, d.DeviceID, d.Stars, d.LastActiveDate); err != nil {
		return Device{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Device{}, err
	}
	return d, nil
}

// AppendScan records an immutable scan log entry.
func (r *PostgresRepository) AppendScan(ctx context.Context, entry ScanEntry) error {
	_, err := r.db.Exec(ctx, `INSERT INTO scan_logs (id, device_id, target_id, score, created_at)
        VALUES ($1, $2, $3, $4, $5)`, entry.ID, entry.DeviceID, entry.TargetID, entry.Score,
		entry.CreatedAt.UTC())
	return err
}

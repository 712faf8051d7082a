package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/guitaripod/pixie/internal/models"
)

// SQLiteDeviceAuthRepository implements DeviceAuthRepository.
type SQLiteDeviceAuthRepository struct {
	db *sql.DB
}

// NewSQLiteDeviceAuthRepository creates a new SQLite device-auth repository.
func NewSQLiteDeviceAuthRepository(db *sql.DB) *SQLiteDeviceAuthRepository {
	return &SQLiteDeviceAuthRepository{db: db}
}

func (r *SQLiteDeviceAuthRepository) Create(ctx context.Context, f *models.DeviceAuthFlow) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO device_auth_flows (id, upstream_device_code, user_code, client_type, provider, poll_interval, expires_at, user_id, denied, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		f.ID, f.UpstreamDeviceCode, f.UserCode, f.ClientType, f.Provider, f.PollInterval,
		f.ExpiresAt.Format(time.RFC3339), nil, f.CreatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteDeviceAuthRepository) GetByID(ctx context.Context, id string) (*models.DeviceAuthFlow, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, upstream_device_code, user_code, client_type, provider, poll_interval, expires_at, user_id, denied, created_at
		FROM device_auth_flows WHERE id = ?`, id)

	var f models.DeviceAuthFlow
	var userID sql.NullString
	var denied int
	var expiresAt, createdAt string
	err := row.Scan(&f.ID, &f.UpstreamDeviceCode, &f.UserCode, &f.ClientType, &f.Provider, &f.PollInterval,
		&expiresAt, &userID, &denied, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if userID.Valid {
		f.UserID = &userID.String
	}
	f.Denied = denied != 0
	f.ExpiresAt, _ = time.Parse(time.RFC3339, expiresAt)
	f.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &f, nil
}

// SetUser writes user_id only if it hasn't been set yet, so a race between two
// polls (or a poll racing the callback) cannot flip an already-claimed flow.
func (r *SQLiteDeviceAuthRepository) SetUser(ctx context.Context, id, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE device_auth_flows SET user_id = ? WHERE id = ? AND user_id IS NULL`, userID, id)
	return err
}

func (r *SQLiteDeviceAuthRepository) SetDenied(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE device_auth_flows SET denied = 1 WHERE id = ? AND user_id IS NULL`, id)
	return err
}

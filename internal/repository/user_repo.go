package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/guitaripod/pixie/internal/models"
)

// SQLiteUserRepository implements UserRepository over SQLite/libsql.
type SQLiteUserRepository struct {
	db *sql.DB
}

// NewSQLiteUserRepository creates a new SQLite user repository.
func NewSQLiteUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

func (r *SQLiteUserRepository) Create(ctx context.Context, u *models.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, provider, provider_id, email, name, api_key, is_admin, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Provider, u.ProviderID, u.Email, u.Name, u.APIKey, u.IsAdmin,
		u.CreatedAt.Format(time.RFC3339), u.UpdatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteUserRepository) scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	var email, name sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(&u.ID, &u.Provider, &u.ProviderID, &email, &name, &u.APIKey, &u.IsAdmin, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.Email = email.String
	u.Name = name.String
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	u.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &u, nil
}

func (r *SQLiteUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, provider, provider_id, email, name, api_key, is_admin, created_at, updated_at
		FROM users WHERE id = ?`, id)
	return r.scanUser(row)
}

func (r *SQLiteUserRepository) GetByProviderID(ctx context.Context, provider, providerID string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, provider, provider_id, email, name, api_key, is_admin, created_at, updated_at
		FROM users WHERE provider = ? AND provider_id = ?`, provider, providerID)
	return r.scanUser(row)
}

func (r *SQLiteUserRepository) GetByAPIKey(ctx context.Context, apiKey string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, provider, provider_id, email, name, api_key, is_admin, created_at, updated_at
		FROM users WHERE api_key = ?`, apiKey)
	return r.scanUser(row)
}

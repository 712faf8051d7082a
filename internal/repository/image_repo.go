package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/guitaripod/pixie/internal/models"
)

// SQLiteImageRepository implements ImageRepository.
type SQLiteImageRepository struct {
	db *sql.DB
}

// NewSQLiteImageRepository creates a new SQLite image repository.
func NewSQLiteImageRepository(db *sql.DB) *SQLiteImageRepository {
	return &SQLiteImageRepository{db: db}
}

func (r *SQLiteImageRepository) Create(ctx context.Context, img *models.StoredImage) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO stored_images (id, user_id, r2_key, prompt, provider, model, size, quality, created_at, expires_at, openai_cost_cents, credits_charged, token_usage)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		img.ID, img.UserID, img.R2Key, img.Prompt, img.Provider, img.Model, img.Size,
		nullableString(img.Quality), img.CreatedAt.Format(time.RFC3339), img.ExpiresAt.Format(time.RFC3339),
		img.OpenAICostCents, img.CreditsCharged, nullableString(img.TokenUsage))
	return err
}

func scanImage(scan func(...any) error) (*models.StoredImage, error) {
	var img models.StoredImage
	var quality, tokenUsage sql.NullString
	var createdAt, expiresAt string
	err := scan(&img.ID, &img.UserID, &img.R2Key, &img.Prompt, &img.Provider, &img.Model, &img.Size,
		&quality, &createdAt, &expiresAt, &img.OpenAICostCents, &img.CreditsCharged, &tokenUsage)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	img.Quality = quality.String
	img.TokenUsage = tokenUsage.String
	img.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	img.ExpiresAt, _ = time.Parse(time.RFC3339, expiresAt)
	return &img, nil
}

func (r *SQLiteImageRepository) GetByID(ctx context.Context, id string) (*models.StoredImage, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, r2_key, prompt, provider, model, size, quality, created_at, expires_at, openai_cost_cents, credits_charged, token_usage
		FROM stored_images WHERE id = ?`, id)
	return scanImage(row.Scan)
}

func (r *SQLiteImageRepository) ListPublic(ctx context.Context, limit, offset int) ([]*models.StoredImage, int, error) {
	return r.list(ctx, `SELECT id, user_id, r2_key, prompt, provider, model, size, quality, created_at, expires_at, openai_cost_cents, credits_charged, token_usage
		FROM stored_images ORDER BY created_at DESC LIMIT ? OFFSET ?`, []any{limit, offset},
		`SELECT COUNT(*) FROM stored_images`, nil)
}

func (r *SQLiteImageRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.StoredImage, int, error) {
	return r.list(ctx, `SELECT id, user_id, r2_key, prompt, provider, model, size, quality, created_at, expires_at, openai_cost_cents, credits_charged, token_usage
		FROM stored_images WHERE user_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`, []any{userID, limit, offset},
		`SELECT COUNT(*) FROM stored_images WHERE user_id = ?`, []any{userID})
}

func (r *SQLiteImageRepository) list(ctx context.Context, query string, args []any, countQuery string, countArgs []any) ([]*models.StoredImage, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = rows.Close() }()

	var out []*models.StoredImage
	for rows.Next() {
		img, err := scanImage(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, img)
	}
	return out, total, rows.Err()
}

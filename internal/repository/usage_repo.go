package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/guitaripod/pixie/internal/models"
)

// SQLiteUsageRepository implements UsageRepository.
type SQLiteUsageRepository struct {
	db *sql.DB
}

// NewSQLiteUsageRepository creates a new SQLite usage repository.
func NewSQLiteUsageRepository(db *sql.DB) *SQLiteUsageRepository {
	return &SQLiteUsageRepository{db: db}
}

func (r *SQLiteUsageRepository) Create(ctx context.Context, rec *models.UsageRecord) error {
	var r2Keys sql.NullString
	if len(rec.R2Keys) > 0 {
		b, err := json.Marshal(rec.R2Keys)
		if err != nil {
			return err
		}
		r2Keys = sql.NullString{String: string(b), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO usage_records (id, user_id, request_type, provider, model, prompt, size, quality,
			image_count, input_images_count, tokens_total, tokens_input, tokens_output, tokens_text, tokens_image,
			r2_keys, response_time_ms, error, credits_charged, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.RequestType, rec.Provider, rec.Model, rec.Prompt, rec.Size, nullableString(rec.Quality),
		rec.ImageCount, rec.InputImagesCount, rec.TokensTotal, rec.TokensInput, rec.TokensOutput, rec.TokensText, rec.TokensImage,
		r2Keys, rec.ResponseTimeMs, nullableString(rec.Error), rec.CreditsCharged, rec.CreatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteUsageRepository) GetSummary(ctx context.Context, userID string) (UsageSummary, error) {
	var s UsageSummary
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(image_count), 0), COALESCE(SUM(credits_charged), 0)
		FROM usage_records WHERE user_id = ?`, userID).Scan(&s.TotalRequests, &s.TotalImages, &s.CreditsSpent)
	return s, err
}

func (r *SQLiteUsageRepository) GetDaily(ctx context.Context, userID string, days int) ([]DailyUsage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT substr(created_at, 1, 10) AS day, COUNT(*), COALESCE(SUM(image_count), 0), COALESCE(SUM(credits_charged), 0)
		FROM usage_records
		WHERE user_id = ? AND created_at >= ?
		GROUP BY day ORDER BY day DESC`,
		userID, time.Now().UTC().AddDate(0, 0, -days).Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []DailyUsage
	for rows.Next() {
		var d DailyUsage
		if err := rows.Scan(&d.Date, &d.Requests, &d.Images, &d.CreditsSpent); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *SQLiteUsageRepository) GetSystemStats(ctx context.Context) (SystemStats, error) {
	var s SystemStats

	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&s.UserCount); err != nil {
		return s, err
	}
	if err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(balance), 0), COALESCE(SUM(lifetime_purchased), 0), COALESCE(SUM(lifetime_spent), 0)
		FROM user_credits`).Scan(&s.BalanceSum, &s.LifetimePurchasedSum, &s.LifetimeSpentSum); err != nil {
		return s, err
	}
	if err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_usd_cents), 0) FROM credit_purchases WHERE status = ?`,
		models.PurchaseStatusCompleted).Scan(&s.RevenueUSDCents); err != nil {
		return s, err
	}
	if err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(openai_cost_cents), 0) FROM stored_images`).
		Scan(&s.StoredImageCount, &s.OpenAICostCentsSum); err != nil {
		return s, err
	}

	s.GrossProfitUSDCents = float64(s.RevenueUSDCents) - s.OpenAICostCentsSum
	if s.RevenueUSDCents > 0 {
		s.MarginFraction = s.GrossProfitUSDCents / float64(s.RevenueUSDCents)
	}
	return s, nil
}

package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/guitaripod/pixie/internal/models"
)

// SQLitePurchaseRepository implements PurchaseRepository.
type SQLitePurchaseRepository struct {
	db *sql.DB
}

// NewSQLitePurchaseRepository creates a new SQLite purchase repository.
func NewSQLitePurchaseRepository(db *sql.DB) *SQLitePurchaseRepository {
	return &SQLitePurchaseRepository{db: db}
}

func (r *SQLitePurchaseRepository) Create(ctx context.Context, p *models.CreditPurchase) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO credit_purchases (id, user_id, pack_id, credits, amount_usd_cents, payment_provider, payment_id, status, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.PackID, p.Credits, p.AmountUSDCents, p.PaymentProvider,
		nullableString(p.PaymentID), p.Status, p.CreatedAt.Format(time.RFC3339), nullableTime(p.CompletedAt))
	return err
}

func (r *SQLitePurchaseRepository) scan(row *sql.Row) (*models.CreditPurchase, error) {
	var p models.CreditPurchase
	var paymentID sql.NullString
	var createdAt string
	var completedAt sql.NullString
	err := row.Scan(&p.ID, &p.UserID, &p.PackID, &p.Credits, &p.AmountUSDCents, &p.PaymentProvider,
		&paymentID, &p.Status, &createdAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.PaymentID = paymentID.String
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if completedAt.Valid {
		t, _ := time.Parse(time.RFC3339, completedAt.String)
		p.CompletedAt = &t
	}
	return &p, nil
}

func (r *SQLitePurchaseRepository) GetByID(ctx context.Context, id string) (*models.CreditPurchase, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, pack_id, credits, amount_usd_cents, payment_provider, payment_id, status, created_at, completed_at
		FROM credit_purchases WHERE id = ?`, id)
	return r.scan(row)
}

func (r *SQLitePurchaseRepository) GetByProviderPaymentID(ctx context.Context, provider, paymentID string) (*models.CreditPurchase, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, pack_id, credits, amount_usd_cents, payment_provider, payment_id, status, created_at, completed_at
		FROM credit_purchases WHERE payment_provider = ? AND payment_id = ?`, provider, paymentID)
	return r.scan(row)
}

func (r *SQLitePurchaseRepository) UpdatePaymentID(ctx context.Context, id, paymentID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE credit_purchases SET payment_id = ? WHERE id = ?`, paymentID, id)
	return err
}

// Complete transitions pending -> completed guarded by WHERE status='pending',
// so concurrent completion attempts (webhook racing a poll) are safe: only one wins.
func (r *SQLitePurchaseRepository) Complete(ctx context.Context, id string) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := r.db.ExecContext(ctx, `
		UPDATE credit_purchases SET status = ?, completed_at = ? WHERE id = ? AND status = ?`,
		models.PurchaseStatusCompleted, now, id, models.PurchaseStatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/guitaripod/pixie/internal/apperror"
	"github.com/guitaripod/pixie/internal/models"
)

// SQLiteCreditRepository implements CreditRepository. Every mutating method
// runs inside a transaction so the balance read, the write, and the journal
// row are committed atomically; this is the store-level half of the
// linearizability requirement the rate gate provides the other half of.
type SQLiteCreditRepository struct {
	db *sql.DB
}

// NewSQLiteCreditRepository creates a new SQLite credit repository.
func NewSQLiteCreditRepository(db *sql.DB) *SQLiteCreditRepository {
	return &SQLiteCreditRepository{db: db}
}

func (r *SQLiteCreditRepository) GetBalance(ctx context.Context, userID string) (int, error) {
	var balance int
	err := r.db.QueryRowContext(ctx, `SELECT balance FROM user_credits WHERE user_id = ?`, userID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return balance, err
}

// ensureRow makes sure a user_credits row exists within tx, returning the current balance.
func ensureRow(ctx context.Context, tx *sql.Tx, userID string) (int, error) {
	var balance int
	err := tx.QueryRowContext(ctx, `SELECT balance FROM user_credits WHERE user_id = ?`, userID).Scan(&balance)
	if err == sql.ErrNoRows {
		now := time.Now().UTC().Format(time.RFC3339)
		_, err = tx.ExecContext(ctx, `
			INSERT INTO user_credits (user_id, balance, lifetime_purchased, lifetime_spent, updated_at)
			VALUES (?, 0, 0, 0, ?)`, userID, now)
		return 0, err
	}
	return balance, err
}

func (r *SQLiteCreditRepository) Deduct(ctx context.Context, userID string, amount int, txType, description, referenceID string) (int, error) {
	if amount < 0 {
		return 0, fmt.Errorf("deduct amount must be non-negative, got %d", amount)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	balance, err := ensureRow(ctx, tx, userID)
	if err != nil {
		return 0, err
	}
	if balance < amount {
		return 0, apperror.New(apperror.PaymentRequired, "insufficient credit balance")
	}

	newBalance := balance - amount
	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		UPDATE user_credits SET balance = ?, lifetime_spent = lifetime_spent + ?, updated_at = ?
		WHERE user_id = ? AND balance >= ?`,
		newBalance, amount, now.Format(time.RFC3339), userID, amount); err != nil {
		return 0, err
	}

	if err := insertTransaction(ctx, tx, &models.CreditTransaction{
		ID:           ulid.Make().String(),
		UserID:       userID,
		Type:         txType,
		Amount:       -amount,
		BalanceAfter: newBalance,
		Description:  description,
		ReferenceID:  referenceID,
		CreatedAt:    now,
	}); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return newBalance, nil
}

func (r *SQLiteCreditRepository) Add(ctx context.Context, userID string, amount int, txType, description, referenceID string) (int, error) {
	if amount < 0 {
		return 0, fmt.Errorf("add amount must be non-negative, got %d", amount)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	balance, err := ensureRow(ctx, tx, userID)
	if err != nil {
		return 0, err
	}

	newBalance := balance + amount
	now := time.Now().UTC()

	lifetimePurchasedDelta := 0
	if txType == models.TxTypePurchase {
		lifetimePurchasedDelta = amount
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE user_credits SET balance = ?, lifetime_purchased = lifetime_purchased + ?, updated_at = ?
		WHERE user_id = ?`,
		newBalance, lifetimePurchasedDelta, now.Format(time.RFC3339), userID); err != nil {
		return 0, err
	}

	if err := insertTransaction(ctx, tx, &models.CreditTransaction{
		ID:           ulid.Make().String(),
		UserID:       userID,
		Type:         txType,
		Amount:       amount,
		BalanceAfter: newBalance,
		Description:  description,
		ReferenceID:  referenceID,
		CreatedAt:    now,
	}); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return newBalance, nil
}

// AdminAdjust applies a signed delta. A negative delta larger in magnitude
// than the current balance is clamped to the current balance (balance -> 0);
// the transaction row records the actually-applied delta, never the requested one.
func (r *SQLiteCreditRepository) AdminAdjust(ctx context.Context, userID string, amount int, description string) (int, int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer func() { _ = tx.Rollback() }()

	balance, err := ensureRow(ctx, tx, userID)
	if err != nil {
		return 0, 0, err
	}

	applied := amount
	if amount < 0 && -amount > balance {
		applied = -balance
	}
	newBalance := balance + applied
	now := time.Now().UTC()

	if _, err := tx.ExecContext(ctx, `
		UPDATE user_credits SET balance = ?, updated_at = ? WHERE user_id = ?`,
		newBalance, now.Format(time.RFC3339), userID); err != nil {
		return 0, 0, err
	}

	if err := insertTransaction(ctx, tx, &models.CreditTransaction{
		ID:           ulid.Make().String(),
		UserID:       userID,
		Type:         models.TxTypeAdminAdjust,
		Amount:       applied,
		BalanceAfter: newBalance,
		Description:  description,
		CreatedAt:    now,
	}); err != nil {
		return 0, 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, err
	}
	return newBalance, applied, nil
}

func insertTransaction(ctx context.Context, tx *sql.Tx, t *models.CreditTransaction) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO credit_transactions (id, user_id, type, amount, balance_after, description, reference_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Type, t.Amount, t.BalanceAfter, t.Description, t.ReferenceID, t.CreatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteCreditRepository) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]*models.CreditTransaction, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM credit_transactions WHERE user_id = ?`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, type, amount, balance_after, description, reference_id, created_at
		FROM credit_transactions WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = rows.Close() }()

	var out []*models.CreditTransaction
	for rows.Next() {
		var t models.CreditTransaction
		var referenceID sql.NullString
		var createdAt string
		if err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.Amount, &t.BalanceAfter, &t.Description, &referenceID, &createdAt); err != nil {
			return nil, 0, err
		}
		t.ReferenceID = referenceID.String
		t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, &t)
	}
	return out, total, rows.Err()
}

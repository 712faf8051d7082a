package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// SQLiteLockRepository implements LockRepository as a single-row-per-user
// table. Acquire is a plain INSERT; a uniqueness violation means another
// request holds the lock, unless it's stale, in which case it's reclaimed.
type SQLiteLockRepository struct {
	db *sql.DB
}

// NewSQLiteLockRepository creates a new SQLite lock repository.
func NewSQLiteLockRepository(db *sql.DB) *SQLiteLockRepository {
	return &SQLiteLockRepository{db: db}
}

func (r *SQLiteLockRepository) Acquire(ctx context.Context, userID string, staleAfter time.Duration) (bool, error) {
	ok, err := r.tryInsert(ctx, userID)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}

	cutoff := time.Now().UTC().Add(-staleAfter).Format(time.RFC3339)
	if _, err := r.db.ExecContext(ctx, `DELETE FROM user_locks WHERE user_id = ? AND acquired_at < ?`, userID, cutoff); err != nil {
		return false, err
	}

	return r.tryInsert(ctx, userID)
}

func (r *SQLiteLockRepository) tryInsert(ctx context.Context, userID string) (bool, error) {
	_, err := r.db.ExecContext(ctx, `INSERT INTO user_locks (user_id, acquired_at) VALUES (?, ?)`,
		userID, time.Now().UTC().Format(time.RFC3339))
	if err == nil {
		return true, nil
	}
	if isUniqueViolation(err) {
		return false, nil
	}
	return false, err
}

func (r *SQLiteLockRepository) Release(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM user_locks WHERE user_id = ?`, userID)
	return err
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "constraint")
}

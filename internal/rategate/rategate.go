// Package rategate serializes image requests per user. A user may have at
// most one generation/edit request in flight at a time; purchase completion
// and admin credit adjustments do not acquire the gate. This is enforced with a single-row-per-user lock in the database rather
// than an in-process mutex, so it holds across multiple gateway instances.
package rategate

import (
	"context"
	"time"

	"github.com/guitaripod/pixie/internal/apperror"
	"github.com/guitaripod/pixie/internal/repository"
)

// Gate serializes access per user ID.
type Gate struct {
	locks      repository.LockRepository
	staleAfter time.Duration
}

// New creates a Gate. staleAfter bounds how long a lock may be held before a
// later request is allowed to reclaim it — guards against a crashed holder
// wedging a user out permanently.
func New(locks repository.LockRepository, staleAfter time.Duration) *Gate {
	return &Gate{locks: locks, staleAfter: staleAfter}
}

// Acquire returns a release func on success, or apperror.RateLimited if
// another request already holds the lock for userID.
func (g *Gate) Acquire(ctx context.Context, userID string) (release func(), err error) {
	ok, err := g.locks.Acquire(ctx, userID, g.staleAfter)
	if err != nil {
		return nil, apperror.Wrap(err)
	}
	if !ok {
		return nil, apperror.New(apperror.RateLimited, "another request is already in progress for this account")
	}
	return func() {
		_ = g.locks.Release(context.Background(), userID)
	}, nil
}

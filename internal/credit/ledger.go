package credit

import (
	"context"

	"github.com/guitaripod/pixie/internal/apperror"
	"github.com/guitaripod/pixie/internal/models"
	"github.com/guitaripod/pixie/internal/repository"
)

// Ledger is the domain-level wrapper around repository.CreditRepository.
// Callers performing a credit-affecting operation are expected to hold the
// per-user rategate lock for the duration of Reserve..Deduct/Add.
type Ledger struct {
	repo repository.CreditRepository
}

// New creates a Ledger.
func New(repo repository.CreditRepository) *Ledger {
	return &Ledger{repo: repo}
}

// Balance returns the user's current credit balance.
func (l *Ledger) Balance(ctx context.Context, userID string) (int, error) {
	return l.repo.GetBalance(ctx, userID)
}

// Reserve checks, without mutating anything, that the user can afford
// estimatedCredits. Called before dispatching an upstream provider request
// so an obviously-unaffordable request never reaches the provider.
func (l *Ledger) Reserve(ctx context.Context, userID string, estimatedCredits int) error {
	balance, err := l.repo.GetBalance(ctx, userID)
	if err != nil {
		return apperror.Wrap(err)
	}
	if balance < estimatedCredits {
		return apperror.New(apperror.PaymentRequired, "insufficient credit balance for this request")
	}
	return nil
}

// Deduct atomically charges amount credits, recording description/referenceID
// on the ledger row. Fails with apperror.PaymentRequired if the balance is
// insufficient at the time of the write (it is re-checked, not assumed from Reserve).
func (l *Ledger) Deduct(ctx context.Context, userID string, amount int, txType, description, referenceID string) (int, error) {
	balance, err := l.repo.Deduct(ctx, userID, amount, txType, description, referenceID)
	if err != nil {
		return 0, apperror.As(err)
	}
	return balance, nil
}

// Add atomically credits amount to the user's balance.
func (l *Ledger) Add(ctx context.Context, userID string, amount int, txType, description, referenceID string) (int, error) {
	balance, err := l.repo.Add(ctx, userID, amount, txType, description, referenceID)
	if err != nil {
		return 0, apperror.Wrap(err)
	}
	return balance, nil
}

// GrantPurchase credits a completed purchase's total credits to the buyer.
func (l *Ledger) GrantPurchase(ctx context.Context, userID, packID, purchaseID string, totalCredits int) (int, error) {
	return l.Add(ctx, userID, totalCredits, models.TxTypePurchase, "Purchased "+packID+" pack", purchaseID)
}

// AdminAdjust applies a signed admin adjustment, clamping an over-large
// negative delta to the current balance, and returns the new balance plus
// the delta actually applied.
func (l *Ledger) AdminAdjust(ctx context.Context, userID string, amount int, reason string) (newBalance, applied int, err error) {
	newBalance, applied, err = l.repo.AdminAdjust(ctx, userID, amount, reason)
	if err != nil {
		return 0, 0, apperror.Wrap(err)
	}
	return newBalance, applied, nil
}

// ListTransactions returns a page of the user's transaction journal, newest first.
func (l *Ledger) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]*models.CreditTransaction, int, error) {
	txs, total, err := l.repo.ListTransactions(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, apperror.Wrap(err)
	}
	return txs, total, nil
}

package credit

import (
	"context"
	"testing"

	"github.com/guitaripod/pixie/internal/apperror"
	"github.com/guitaripod/pixie/internal/models"
)

type fakeCreditRepo struct {
	balance int
}

func (f *fakeCreditRepo) GetBalance(ctx context.Context, userID string) (int, error) {
	return f.balance, nil
}

func (f *fakeCreditRepo) Deduct(ctx context.Context, userID string, amount int, txType, description, referenceID string) (int, error) {
	if f.balance < amount {
		return 0, apperror.New(apperror.PaymentRequired, "insufficient credit balance")
	}
	f.balance -= amount
	return f.balance, nil
}

func (f *fakeCreditRepo) Add(ctx context.Context, userID string, amount int, txType, description, referenceID string) (int, error) {
	f.balance += amount
	return f.balance, nil
}

func (f *fakeCreditRepo) AdminAdjust(ctx context.Context, userID string, amount int, description string) (int, int, error) {
	applied := amount
	if amount < 0 && -amount > f.balance {
		applied = -f.balance
	}
	f.balance += applied
	return f.balance, applied, nil
}

func (f *fakeCreditRepo) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]*models.CreditTransaction, int, error) {
	return nil, 0, nil
}

func TestLedger_Reserve_Insufficient(t *testing.T) {
	l := New(&fakeCreditRepo{balance: 5})
	err := l.Reserve(context.Background(), "user-1", 10)
	if err == nil {
		t.Fatal("expected error for insufficient balance")
	}
	if ae, ok := err.(*apperror.Error); !ok || ae.Kind != apperror.PaymentRequired {
		t.Errorf("expected PaymentRequired, got %v", err)
	}
}

func TestLedger_Deduct(t *testing.T) {
	l := New(&fakeCreditRepo{balance: 100})
	balance, err := l.Deduct(context.Background(), "user-1", 40, models.TxTypeSpend, "test", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balance != 60 {
		t.Errorf("balance = %d, want 60", balance)
	}
}

func TestLedger_AdminAdjust_ClampsToZero(t *testing.T) {
	l := New(&fakeCreditRepo{balance: 30})
	newBalance, applied, err := l.AdminAdjust(context.Background(), "user-1", -100, "correction")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if newBalance != 0 {
		t.Errorf("newBalance = %d, want 0", newBalance)
	}
	if applied != -30 {
		t.Errorf("applied = %d, want -30", applied)
	}
}

package purchase

import (
	"context"
	"testing"
	"time"

	"github.com/guitaripod/pixie/internal/apperror"
	"github.com/guitaripod/pixie/internal/credit"
	"github.com/guitaripod/pixie/internal/models"
)

type fakePurchaseRepo struct {
	byID         map[string]*models.CreditPurchase
	byPaymentKey map[string]*models.CreditPurchase
	completeCall int
}

func newFakePurchaseRepo() *fakePurchaseRepo {
	return &fakePurchaseRepo{byID: map[string]*models.CreditPurchase{}, byPaymentKey: map[string]*models.CreditPurchase{}}
}

func (f *fakePurchaseRepo) Create(ctx context.Context, p *models.CreditPurchase) error {
	f.byID[p.ID] = p
	return nil
}

func (f *fakePurchaseRepo) GetByID(ctx context.Context, id string) (*models.CreditPurchase, error) {
	return f.byID[id], nil
}

func (f *fakePurchaseRepo) GetByProviderPaymentID(ctx context.Context, provider, paymentID string) (*models.CreditPurchase, error) {
	return f.byPaymentKey[provider+":"+paymentID], nil
}

func (f *fakePurchaseRepo) UpdatePaymentID(ctx context.Context, id, paymentID string) error {
	p := f.byID[id]
	p.PaymentID = paymentID
	f.byPaymentKey[p.PaymentProvider+":"+paymentID] = p
	return nil
}

func (f *fakePurchaseRepo) Complete(ctx context.Context, id string) (bool, error) {
	f.completeCall++
	p := f.byID[id]
	if p.Status == models.PurchaseStatusCompleted {
		return false, nil
	}
	p.Status = models.PurchaseStatusCompleted
	now := time.Now().UTC()
	p.CompletedAt = &now
	return true, nil
}

type fakeCreditRepo struct {
	balance int
	grants  int
}

func (f *fakeCreditRepo) GetBalance(ctx context.Context, userID string) (int, error) { return f.balance, nil }
func (f *fakeCreditRepo) Deduct(ctx context.Context, userID string, amount int, txType, description, referenceID string) (int, error) {
	f.balance -= amount
	return f.balance, nil
}
func (f *fakeCreditRepo) Add(ctx context.Context, userID string, amount int, txType, description, referenceID string) (int, error) {
	f.balance += amount
	f.grants++
	return f.balance, nil
}
func (f *fakeCreditRepo) AdminAdjust(ctx context.Context, userID string, amount int, description string) (int, int, error) {
	f.balance += amount
	return f.balance, amount, nil
}
func (f *fakeCreditRepo) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]*models.CreditTransaction, int, error) {
	return nil, 0, nil
}

func TestComplete_IsIdempotentUnderConcurrentCallers(t *testing.T) {
	purchases := newFakePurchaseRepo()
	purchases.byID["p1"] = &models.CreditPurchase{ID: "p1", UserID: "u1", PackID: "starter", Credits: 150, Status: models.PurchaseStatusPending}
	creditRepo := &fakeCreditRepo{}
	svc := New(purchases, credit.New(creditRepo), nil, nil, nil)

	if err := svc.complete(context.Background(), "p1"); err != nil {
		t.Fatalf("first complete: %v", err)
	}
	if err := svc.complete(context.Background(), "p1"); err != nil {
		t.Fatalf("second complete: %v", err)
	}

	if creditRepo.grants != 1 {
		t.Errorf("expected exactly one credit grant, got %d", creditRepo.grants)
	}
	if creditRepo.balance != 150 {
		t.Errorf("balance = %d, want 150", creditRepo.balance)
	}
}

func TestValidateRevenueCatPurchase_RejectsAlreadyCompletedToken(t *testing.T) {
	purchases := newFakePurchaseRepo()
	existing := &models.CreditPurchase{ID: "p1", UserID: "u1", PackID: "starter", PaymentProvider: models.PaymentProviderRevenueCat, PaymentID: "tok-1", Status: models.PurchaseStatusCompleted}
	purchases.byID["p1"] = existing
	purchases.byPaymentKey[models.PaymentProviderRevenueCat+":tok-1"] = existing

	svc := New(purchases, credit.New(&fakeCreditRepo{}), nil, nil, nil)
	_, err := svc.ValidateRevenueCatPurchase(context.Background(), "u1", "starter", "tok-1", "starter_pack", "ios")
	if err == nil {
		t.Fatal("expected an error for an already-completed purchase token")
	}
	if ae := apperror.As(err); ae.Kind != apperror.BadRequest {
		t.Errorf("expected BadRequest, got %v", ae.Kind)
	}
}

func TestInitiateCrypto_RejectsIneligiblePack(t *testing.T) {
	svc := New(newFakePurchaseRepo(), credit.New(&fakeCreditRepo{}), nil, NewNOWPaymentsGateway(nil), nil)
	_, err := svc.InitiateCrypto(context.Background(), "u1", "starter", "btc")
	if err == nil {
		t.Fatal("expected starter pack to be rejected for crypto payment")
	}
}

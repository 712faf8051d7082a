// Package purchase implements the credit-pack purchase lifecycle across all
// three payment backends (Stripe card, NOWPayments crypto, RevenueCat mobile
// receipt): initiate records a pending CreditPurchase and hands back a
// backend-specific payload, reconcile observes a webhook or poll result, and
// complete is the single idempotent path that actually grants credits.
package purchase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v78"

	"github.com/guitaripod/pixie/internal/apperror"
	"github.com/guitaripod/pixie/internal/credit"
	"github.com/guitaripod/pixie/internal/models"
	"github.com/guitaripod/pixie/internal/repository"
)

// Service orchestrates the purchase lifecycle over the three gateways.
type Service struct {
	purchases   repository.PurchaseRepository
	ledger      *credit.Ledger
	stripe      *StripeGateway
	nowpayments *NOWPaymentsGateway
	revenuecat  *RevenueCatGateway
}

// New creates a purchase Service.
func New(purchases repository.PurchaseRepository, ledger *credit.Ledger, stripe *StripeGateway, nowpayments *NOWPaymentsGateway, revenuecat *RevenueCatGateway) *Service {
	return &Service{purchases: purchases, ledger: ledger, stripe: stripe, nowpayments: nowpayments, revenuecat: revenuecat}
}

func newPendingPurchase(userID string, pack models.CreditPack, provider string) *models.CreditPurchase {
	return &models.CreditPurchase{
		ID:              uuid.New().String(),
		UserID:          userID,
		PackID:          pack.ID,
		Credits:         pack.TotalCredits(),
		AmountUSDCents:  pack.PriceUSDCents,
		PaymentProvider: provider,
		Status:          models.PurchaseStatusPending,
		CreatedAt:       time.Now().UTC(),
	}
}

// StripeCheckout is returned by InitiateStripe.
type StripeCheckout struct {
	PurchaseID  string
	CheckoutURL string
}

// InitiateStripe records a pending purchase and opens a Stripe Checkout Session for it.
func (s *Service) InitiateStripe(ctx context.Context, userID, packID, successURL, cancelURL, customerEmail string) (*StripeCheckout, error) {
	pack, ok := credit.FindPack(packID)
	if !ok {
		return nil, apperror.WithParam(apperror.BadRequest, "unknown credit pack", "pack_id")
	}

	purchase := newPendingPurchase(userID, pack, models.PaymentProviderStripe)
	if err := s.purchases.Create(ctx, purchase); err != nil {
		return nil, apperror.Wrap(err)
	}

	checkoutURL, sessionID, err := s.stripe.CreateCheckoutSession(purchase.ID, pack, successURL, cancelURL, customerEmail)
	if err != nil {
		return nil, err
	}
	if err := s.purchases.UpdatePaymentID(ctx, purchase.ID, sessionID); err != nil {
		return nil, apperror.Wrap(err)
	}

	return &StripeCheckout{PurchaseID: purchase.ID, CheckoutURL: checkoutURL}, nil
}

// CryptoPayment is returned by InitiateCrypto.
type CryptoPayment struct {
	PurchaseID     string
	PaymentID      string
	CryptoAddress  string
	CryptoAmount   float64
	CryptoCurrency string
	ExpiresAt      string
}

// InitiateCrypto records a pending purchase and opens a NOWPayments charge for it.
func (s *Service) InitiateCrypto(ctx context.Context, userID, packID, payCurrency string) (*CryptoPayment, error) {
	pack, ok := credit.FindPack(packID)
	if !ok {
		return nil, apperror.WithParam(apperror.BadRequest, "unknown credit pack", "pack_id")
	}
	if !credit.IsCryptoEligible(packID) {
		return nil, apperror.New(apperror.BadRequest, "this pack is below the crypto processor's minimum transaction amount")
	}

	purchase := newPendingPurchase(userID, pack, models.PaymentProviderNOWPayments)
	if err := s.purchases.Create(ctx, purchase); err != nil {
		return nil, apperror.Wrap(err)
	}

	amountUSD := float64(pack.PriceUSDCents) / 100
	payment, err := s.nowpayments.CreatePayment(ctx, purchase.ID, pack.Name+" Credit Pack", amountUSD, payCurrency)
	if err != nil {
		return nil, err
	}
	if err := s.purchases.UpdatePaymentID(ctx, purchase.ID, payment.PaymentID); err != nil {
		return nil, apperror.Wrap(err)
	}

	expiresAt := payment.ExpiryEstimate
	if expiresAt == "" {
		expiresAt = "30 minutes"
	}
	return &CryptoPayment{
		PurchaseID:     purchase.ID,
		PaymentID:      payment.PaymentID,
		CryptoAddress:  payment.PayAddress,
		CryptoAmount:   payment.PayAmount,
		CryptoCurrency: payment.PayCurrency,
		ExpiresAt:      expiresAt,
	}, nil
}

// HandleStripeWebhook verifies and processes a Stripe webhook delivery.
// Callers should log a non-nil error but still answer Stripe with HTTP 200 —
// complete's WHERE status='pending' guard makes a retried delivery safe, and
// a 4xx/5xx response here only invites Stripe's retry storm.
func (s *Service) HandleStripeWebhook(ctx context.Context, payload []byte, sigHeader string) error {
	event, err := s.stripe.ConstructEvent(payload, sigHeader)
	if err != nil {
		return err
	}

	switch event.Type {
	case "checkout.session.completed":
		_, purchaseID, paid, err := CheckoutSessionFromEvent(event)
		if err != nil {
			return err
		}
		if !paid || purchaseID == "" {
			return nil
		}
		return s.complete(ctx, purchaseID)
	default:
		return nil
	}
}

// HandleCryptoWebhook verifies and processes a NOWPayments IPN delivery.
func (s *Service) HandleCryptoWebhook(ctx context.Context, payload []byte, signature string) error {
	ok, err := s.nowpayments.VerifyIPNSignature(signature, payload)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.New(apperror.Unauthorized, "invalid NOWPayments IPN signature")
	}

	var wh IPNWebhook
	if err := json.Unmarshal(payload, &wh); err != nil {
		return apperror.Wrap(err)
	}
	if !statusSucceeded(wh.PaymentStatus) {
		return nil
	}
	return s.complete(ctx, wh.OrderID)
}

// ValidateRevenueCatPurchase validates a mobile receipt against the
// RevenueCat subscriber API and, on success, completes the purchase it
// backs. A purchase token that was already completed is rejected as a
// duplicate rather than silently re-granting credits.
func (s *Service) ValidateRevenueCatPurchase(ctx context.Context, userID, packID, purchaseToken, productID, store string) (*models.CreditPurchase, error) {
	existing, err := s.purchases.GetByProviderPaymentID(ctx, models.PaymentProviderRevenueCat, purchaseToken)
	if err != nil {
		return nil, apperror.Wrap(err)
	}
	if existing != nil && existing.Status == models.PurchaseStatusCompleted {
		return nil, apperror.New(apperror.BadRequest, "this purchase has already been redeemed")
	}

	pack, ok := credit.FindPack(packID)
	if !ok {
		return nil, apperror.WithParam(apperror.BadRequest, "unknown credit pack", "pack_id")
	}

	valid, err := s.revenuecat.ValidatePurchase(ctx, purchaseToken, productID, store)
	if err != nil {
		return nil, err
	}
	if !valid {
		return nil, apperror.New(apperror.Unauthorized, "RevenueCat receipt validation failed")
	}

	purchase := existing
	if purchase == nil {
		purchase = newPendingPurchase(userID, pack, models.PaymentProviderRevenueCat)
		purchase.PaymentID = purchaseToken
		if err := s.purchases.Create(ctx, purchase); err != nil {
			return nil, apperror.Wrap(err)
		}
	}

	if err := s.complete(ctx, purchase.ID); err != nil {
		return nil, err
	}
	return s.purchases.GetByID(ctx, purchase.ID)
}

// PollStatus is the fallback polling path: if the purchase is still pending
// locally and the backend supports a status lookup, it checks upstream and
// completes inline when the charge has cleared.
func (s *Service) PollStatus(ctx context.Context, purchaseID string) (*models.CreditPurchase, error) {
	purchase, err := s.purchases.GetByID(ctx, purchaseID)
	if err != nil {
		return nil, apperror.Wrap(err)
	}
	if purchase == nil {
		return nil, apperror.New(apperror.NotFound, "purchase not found")
	}
	if purchase.Status != models.PurchaseStatusPending {
		return purchase, nil
	}

	switch purchase.PaymentProvider {
	case models.PaymentProviderStripe:
		sess, err := s.stripe.GetCheckoutSession(purchase.PaymentID)
		if err != nil {
			return nil, err
		}
		if sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
			if err := s.complete(ctx, purchase.ID); err != nil {
				return nil, err
			}
		}
	case models.PaymentProviderNOWPayments:
		payment, err := s.nowpayments.GetPaymentStatus(ctx, purchase.PaymentID)
		if err != nil {
			return nil, err
		}
		if statusSucceeded(payment.PaymentStatus) {
			if err := s.complete(ctx, purchase.ID); err != nil {
				return nil, err
			}
		}
	default:
		// RevenueCat purchases only transition via the validate endpoint or webhook.
	}

	return s.purchases.GetByID(ctx, purchaseID)
}

// complete performs the pending->completed transition and grants credits.
// It is safe to call concurrently: Complete's WHERE status='pending' guard
// ensures only the caller that actually flips the row also grants credits.
func (s *Service) complete(ctx context.Context, purchaseID string) error {
	purchase, err := s.purchases.GetByID(ctx, purchaseID)
	if err != nil {
		return apperror.Wrap(err)
	}
	if purchase == nil {
		return apperror.New(apperror.NotFound, "purchase not found")
	}

	ok, err := s.purchases.Complete(ctx, purchaseID)
	if err != nil {
		return apperror.Wrap(err)
	}
	if !ok {
		return nil
	}

	if _, err := s.ledger.GrantPurchase(ctx, purchase.UserID, purchase.PackID, purchase.ID, purchase.Credits); err != nil {
		return fmt.Errorf("purchase %s completed but credit grant failed: %w", purchase.ID, err)
	}
	return nil
}

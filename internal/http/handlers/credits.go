package handlers

import (
	"context"

	"github.com/guitaripod/pixie/internal/apperror"
	"github.com/guitaripod/pixie/internal/credit"
	"github.com/guitaripod/pixie/internal/models"
	"github.com/guitaripod/pixie/internal/purchase"
)

// CreditsHandler serves balance, transaction history, pack catalogue,
// estimation, and the purchase-initiation/status surfaces.
type CreditsHandler struct {
	ledger    *credit.Ledger
	purchases *purchase.Service
}

// NewCreditsHandler creates a credits handler.
func NewCreditsHandler(ledger *credit.Ledger, purchases *purchase.Service) *CreditsHandler {
	return &CreditsHandler{ledger: ledger, purchases: purchases}
}

// BalanceOutput is the response of GET /v1/credits/balance.
type BalanceOutput struct {
	Body struct {
		Balance int `json:"balance"`
	}
}

// GetBalance handles GET /v1/credits/balance.
func (h *CreditsHandler) GetBalance(ctx context.Context, input *struct{}) (*BalanceOutput, error) {
	user := getUser(ctx)
	if user == nil {
		return nil, humaErr(apperror.New(apperror.Unauthorized, "missing or invalid API key"))
	}

	balance, err := h.ledger.Balance(ctx, user.ID)
	if err != nil {
		return nil, humaErr(apperror.Wrap(err))
	}
	out := &BalanceOutput{}
	out.Body.Balance = balance
	return out, nil
}

// TransactionsInput is the query of GET /v1/credits/transactions.
type TransactionsInput struct {
	Page    int `query:"page"`
	PerPage int `query:"per_page"`
}

// TransactionsOutput is the response of GET /v1/credits/transactions.
type TransactionsOutput struct {
	Body struct {
		Page    int                        `json:"page"`
		PerPage int                        `json:"per_page"`
		Total   int                        `json:"total"`
		Items   []*models.CreditTransaction `json:"items"`
	}
}

// ListTransactions handles GET /v1/credits/transactions.
func (h *CreditsHandler) ListTransactions(ctx context.Context, input *TransactionsInput) (*TransactionsOutput, error) {
	user := getUser(ctx)
	if user == nil {
		return nil, humaErr(apperror.New(apperror.Unauthorized, "missing or invalid API key"))
	}

	page := clampPage(input.Page)
	perPage := clampPerPage(input.PerPage, 20)

	items, total, err := h.ledger.ListTransactions(ctx, user.ID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, humaErr(apperror.Wrap(err))
	}

	out := &TransactionsOutput{}
	out.Body.Page, out.Body.PerPage, out.Body.Total = page, perPage, total
	out.Body.Items = items
	return out, nil
}

// PacksOutput is the response of GET /v1/credits/packs.
type PacksOutput struct {
	Body struct {
		Packs []models.CreditPack `json:"packs"`
	}
}

// ListPacks handles GET /v1/credits/packs. Public: no API key required.
func (h *CreditsHandler) ListPacks(ctx context.Context, input *struct{}) (*PacksOutput, error) {
	out := &PacksOutput{}
	out.Body.Packs = credit.Packs
	return out, nil
}

// EstimateInput is the body of POST /v1/credits/estimate.
type EstimateInput struct {
	Body struct {
		Quality string `json:"quality" doc:"low | medium | high | auto"`
		Size    string `json:"size"`
		IsEdit  bool   `json:"is_edit,omitempty"`
		N       int    `json:"n,omitempty" doc:"Number of images, default 1"`
	}
}

// EstimateOutput is the response of POST /v1/credits/estimate.
type EstimateOutput struct {
	Body struct {
		EstimatedCredits int `json:"estimated_credits"`
	}
}

// Estimate handles POST /v1/credits/estimate. Public: no API key required.
func (h *CreditsHandler) Estimate(ctx context.Context, input *EstimateInput) (*EstimateOutput, error) {
	n := input.Body.N
	if n < 1 {
		n = 1
	}
	out := &EstimateOutput{}
	out.Body.EstimatedCredits = credit.EstimateImageCreditsN(input.Body.Quality, input.Body.Size, input.Body.IsEdit, n)
	return out, nil
}

// PurchaseInput is the body of POST /v1/credits/purchase, the generic
// provider-dispatching initiate endpoint.
type PurchaseInput struct {
	Body struct {
		PackID          string `json:"pack_id" minLength:"1"`
		PaymentProvider string `json:"payment_provider" doc:"stripe | nowpayments"`
		PaymentCurrency string `json:"payment_currency,omitempty" doc:"Required for provider=nowpayments"`
		SuccessURL      string `json:"success_url,omitempty" doc:"Required for provider=stripe"`
		CancelURL       string `json:"cancel_url,omitempty" doc:"Required for provider=stripe"`
	}
}

// PurchaseOutput is the response of POST /v1/credits/purchase: the fields
// that don't apply to the resolved provider are left zero-valued.
type PurchaseOutput struct {
	Body struct {
		PurchaseID     string  `json:"purchase_id"`
		CheckoutURL    string  `json:"checkout_url,omitempty"`
		PaymentID      string  `json:"payment_id,omitempty"`
		CryptoAddress  string  `json:"crypto_address,omitempty"`
		CryptoAmount   float64 `json:"crypto_amount,omitempty"`
		CryptoCurrency string  `json:"crypto_currency,omitempty"`
		ExpiresAt      string  `json:"expires_at,omitempty"`
	}
}

// Initiate handles POST /v1/credits/purchase, dispatching to the Stripe or
// NOWPayments gateway by the request's payment_provider field. RevenueCat
// purchases don't go through initiate at all — they're validated directly
// via the mobile receipt the store already issued.
func (h *CreditsHandler) Initiate(ctx context.Context, input *PurchaseInput) (*PurchaseOutput, error) {
	user := getUser(ctx)
	if user == nil {
		return nil, humaErr(apperror.New(apperror.Unauthorized, "missing or invalid API key"))
	}

	out := &PurchaseOutput{}
	switch input.Body.PaymentProvider {
	case models.PaymentProviderStripe:
		checkout, err := h.purchases.InitiateStripe(ctx, user.ID, input.Body.PackID, input.Body.SuccessURL, input.Body.CancelURL, user.Email)
		if err != nil {
			return nil, humaErr(err)
		}
		out.Body.PurchaseID = checkout.PurchaseID
		out.Body.CheckoutURL = checkout.CheckoutURL
	case models.PaymentProviderNOWPayments:
		payment, err := h.purchases.InitiateCrypto(ctx, user.ID, input.Body.PackID, input.Body.PaymentCurrency)
		if err != nil {
			return nil, humaErr(err)
		}
		out.Body.PurchaseID = payment.PurchaseID
		out.Body.PaymentID = payment.PaymentID
		out.Body.CryptoAddress = payment.CryptoAddress
		out.Body.CryptoAmount = payment.CryptoAmount
		out.Body.CryptoCurrency = payment.CryptoCurrency
		out.Body.ExpiresAt = payment.ExpiresAt
	default:
		return nil, humaErr(apperror.WithParam(apperror.BadRequest, "unsupported payment_provider", "payment_provider"))
	}
	return out, nil
}

// PurchaseStripeInput is the body of POST /v1/credits/purchase/stripe.
type PurchaseStripeInput struct {
	Body struct {
		PackID     string `json:"pack_id" minLength:"1"`
		SuccessURL string `json:"success_url" minLength:"1"`
		CancelURL  string `json:"cancel_url" minLength:"1"`
	}
}

// PurchaseStripeOutput is the response of POST /v1/credits/purchase/stripe.
type PurchaseStripeOutput struct {
	Body struct {
		PurchaseID  string `json:"purchase_id"`
		CheckoutURL string `json:"checkout_url"`
	}
}

// InitiateStripe handles POST /v1/credits/purchase/stripe.
func (h *CreditsHandler) InitiateStripe(ctx context.Context, input *PurchaseStripeInput) (*PurchaseStripeOutput, error) {
	user := getUser(ctx)
	if user == nil {
		return nil, humaErr(apperror.New(apperror.Unauthorized, "missing or invalid API key"))
	}

	checkout, err := h.purchases.InitiateStripe(ctx, user.ID, input.Body.PackID, input.Body.SuccessURL, input.Body.CancelURL, user.Email)
	if err != nil {
		return nil, humaErr(err)
	}

	out := &PurchaseStripeOutput{}
	out.Body.PurchaseID = checkout.PurchaseID
	out.Body.CheckoutURL = checkout.CheckoutURL
	return out, nil
}

// PurchaseCryptoInput is the body of POST /v1/credits/purchase/crypto.
type PurchaseCryptoInput struct {
	Body struct {
		PackID      string `json:"pack_id" minLength:"1"`
		PayCurrency string `json:"pay_currency" minLength:"1" doc:"e.g. btc, eth, usdttrc20"`
	}
}

// PurchaseCryptoOutput is the response of POST /v1/credits/purchase/crypto.
type PurchaseCryptoOutput struct {
	Body struct {
		PurchaseID     string  `json:"purchase_id"`
		PaymentID      string  `json:"payment_id"`
		CryptoAddress  string  `json:"crypto_address"`
		CryptoAmount   float64 `json:"crypto_amount"`
		CryptoCurrency string  `json:"crypto_currency"`
		ExpiresAt      string  `json:"expires_at"`
	}
}

// InitiateCrypto handles POST /v1/credits/purchase/crypto.
func (h *CreditsHandler) InitiateCrypto(ctx context.Context, input *PurchaseCryptoInput) (*PurchaseCryptoOutput, error) {
	user := getUser(ctx)
	if user == nil {
		return nil, humaErr(apperror.New(apperror.Unauthorized, "missing or invalid API key"))
	}

	payment, err := h.purchases.InitiateCrypto(ctx, user.ID, input.Body.PackID, input.Body.PayCurrency)
	if err != nil {
		return nil, humaErr(err)
	}

	out := &PurchaseCryptoOutput{}
	out.Body.PurchaseID = payment.PurchaseID
	out.Body.PaymentID = payment.PaymentID
	out.Body.CryptoAddress = payment.CryptoAddress
	out.Body.CryptoAmount = payment.CryptoAmount
	out.Body.CryptoCurrency = payment.CryptoCurrency
	out.Body.ExpiresAt = payment.ExpiresAt
	return out, nil
}

// RevenueCatValidateInput is the body of POST /v1/credits/purchase/revenuecat/validate.
type RevenueCatValidateInput struct {
	Body struct {
		PackID        string `json:"pack_id" minLength:"1"`
		PurchaseToken string `json:"purchase_token" minLength:"1"`
		ProductID     string `json:"product_id" minLength:"1"`
		Store         string `json:"store" doc:"app_store | play_store"`
	}
}

// PurchaseStatusOutput is the response shape shared by the RevenueCat
// validation endpoint and the generic purchase-status poll.
type PurchaseStatusOutput struct {
	Body models.CreditPurchase
}

// ValidateRevenueCat handles POST /v1/credits/purchase/revenuecat/validate.
func (h *CreditsHandler) ValidateRevenueCat(ctx context.Context, input *RevenueCatValidateInput) (*PurchaseStatusOutput, error) {
	user := getUser(ctx)
	if user == nil {
		return nil, humaErr(apperror.New(apperror.Unauthorized, "missing or invalid API key"))
	}

	purchase, err := h.purchases.ValidateRevenueCatPurchase(ctx, user.ID, input.Body.PackID, input.Body.PurchaseToken, input.Body.ProductID, input.Body.Store)
	if err != nil {
		return nil, humaErr(err)
	}
	return &PurchaseStatusOutput{Body: *purchase}, nil
}

// PurchaseStatusInput is the path of GET /v1/credits/purchase/{purchase_id}/status.
type PurchaseStatusInput struct {
	PurchaseID string `path:"purchase_id"`
}

// GetPurchaseStatus handles GET /v1/credits/purchase/{purchase_id}/status.
func (h *CreditsHandler) GetPurchaseStatus(ctx context.Context, input *PurchaseStatusInput) (*PurchaseStatusOutput, error) {
	user := getUser(ctx)
	if user == nil {
		return nil, humaErr(apperror.New(apperror.Unauthorized, "missing or invalid API key"))
	}

	purchase, err := h.purchases.PollStatus(ctx, input.PurchaseID)
	if err != nil {
		return nil, humaErr(err)
	}
	if purchase.UserID != user.ID && !user.IsAdmin {
		return nil, humaErr(apperror.New(apperror.Forbidden, "cannot view another user's purchase"))
	}
	return &PurchaseStatusOutput{Body: *purchase}, nil
}

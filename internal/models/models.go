// Package models defines the persisted entities for the pixie gateway.
package models

import "time"

// User is created on first successful OAuth exchange (web, native, or device flow).
// The bearer api_key is the sole credential accepted by the API-key middleware.
type User struct {
	ID         string    `json:"id"`
	Provider   string    `json:"provider"` // github | google | apple
	ProviderID string    `json:"provider_id"`
	Email      string    `json:"email,omitempty"`
	Name       string    `json:"name,omitempty"`
	APIKey     string    `json:"-"`
	IsAdmin    bool      `json:"is_admin"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Provider identity values accepted by the OAuth surfaces.
const (
	ProviderGitHub = "github"
	ProviderGoogle = "google"
	ProviderApple  = "apple"
)

// UserCredits is the 1:1 balance row for a User. Balance must never go negative.
type UserCredits struct {
	UserID            string    `json:"user_id"`
	Balance           int       `json:"balance"`
	LifetimePurchased int       `json:"lifetime_purchased"`
	LifetimeSpent     int       `json:"lifetime_spent"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// CreditTransaction is an append-only ledger row. Amount is signed: positive
// rows add to the balance, negative rows deduct from it.
type CreditTransaction struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Type         string    `json:"type"`
	Amount       int       `json:"amount"`
	BalanceAfter int       `json:"balance_after"`
	Description  string    `json:"description"`
	ReferenceID  string    `json:"reference_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Transaction type enum (CreditTransaction.Type).
const (
	TxTypePurchase       = "purchase"
	TxTypeSpend          = "spend"
	TxTypeRefund         = "refund"
	TxTypeBonus          = "bonus"
	TxTypeAdminAdjust    = "admin_adjustment"
)

// Payment backend enum (CreditPurchase.PaymentProvider).
const (
	PaymentProviderStripe      = "stripe"
	PaymentProviderNOWPayments = "nowpayments"
	PaymentProviderRevenueCat  = "revenuecat"
)

// Purchase status enum.
const (
	PurchaseStatusPending   = "pending"
	PurchaseStatusCompleted = "completed"
	PurchaseStatusFailed    = "failed"
	PurchaseStatusExpired   = "expired"
)

// CreditPurchase records one purchase attempt, regardless of backend. A purchase
// transitions pending -> completed exactly once; Complete() is idempotent.
type CreditPurchase struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	PackID          string     `json:"pack_id"`
	Credits         int        `json:"credits"`
	AmountUSDCents  int        `json:"amount_usd_cents"`
	PaymentProvider string     `json:"payment_provider"`
	PaymentID       string     `json:"payment_id"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// CreditPack is the static purchasable bundle catalogue.
type CreditPack struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Credits       int    `json:"credits"`
	BonusCredits  int    `json:"bonus_credits"`
	PriceUSDCents int    `json:"price_usd_cents"`
	Description   string `json:"description"`
}

// TotalCredits is the amount granted on completion: credits + bonus_credits.
func (p CreditPack) TotalCredits() int {
	return p.Credits + p.BonusCredits
}

// StoredImage is the persisted metadata row for one generated/edited image.
// r2_key follows "{user_id}/{image_id}.png"; expires_at is a retention hint only.
type StoredImage struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	R2Key            string    `json:"r2_key"`
	Prompt           string    `json:"prompt"`
	Provider         string    `json:"provider"`
	Model            string    `json:"model"`
	Size             string    `json:"size"`
	Quality          string    `json:"quality,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	ExpiresAt        time.Time `json:"expires_at"`
	OpenAICostCents  float64   `json:"openai_cost_cents"`
	CreditsCharged   int       `json:"credits_charged"`
	TokenUsage       string    `json:"token_usage,omitempty"` // JSON-encoded token breakdown
}

// Request type enum (UsageRecord.RequestType).
const (
	RequestTypeGeneration = "generation"
	RequestTypeEdit       = "edit"
)

// UsageRecord is written once per upstream provider call that returns a
// result, including when the credit deduction afterwards fails (Error holds
// that failure). A provider call that itself fails writes no record.
type UsageRecord struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	RequestType       string    `json:"request_type"`
	Provider          string    `json:"provider"`
	Model             string    `json:"model"`
	Prompt            string    `json:"prompt"`
	Size              string    `json:"size"`
	Quality           string    `json:"quality,omitempty"`
	ImageCount        int       `json:"image_count"`
	InputImagesCount  int       `json:"input_images_count,omitempty"`
	TokensTotal       int       `json:"tokens_total"`
	TokensInput       int       `json:"tokens_input"`
	TokensOutput      int       `json:"tokens_output"`
	TokensText        int       `json:"tokens_text"`
	TokensImage       int       `json:"tokens_image"`
	R2Keys            []string  `json:"r2_keys,omitempty"`
	ResponseTimeMs    int64     `json:"response_time_ms"`
	Error             string    `json:"error,omitempty"`
	CreditsCharged    int       `json:"credits_charged"`
	CreatedAt         time.Time `json:"created_at"`
}

// DeviceAuthFlow backs the CLI's device-code grant (RFC 8628). The id field is
// what's returned to the client as "device_code"; the upstream device code the
// provider actually issued is held in UpstreamDeviceCode and never leaves the server.
type DeviceAuthFlow struct {
	ID                 string     `json:"id"`
	UpstreamDeviceCode string     `json:"-"`
	UserCode           string     `json:"user_code"`
	ClientType         string     `json:"client_type"`
	Provider           string     `json:"provider"`
	PollInterval       int        `json:"interval"`
	ExpiresAt          time.Time  `json:"expires_at"`
	UserID             *string    `json:"-"`
	Denied             bool       `json:"-"`
	CreatedAt          time.Time  `json:"created_at"`
}

// UserLock is the single-flight lock row acquired for the duration of a
// credit-affecting request. Presence of a row means a request is in flight.
type UserLock struct {
	UserID     string    `json:"user_id"`
	AcquiredAt time.Time `json:"acquired_at"`
}

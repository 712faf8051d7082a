// Package repository defines typed data-access interfaces over the entities
// in internal/models, plus their SQLite/libsql implementations.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/guitaripod/pixie/internal/models"
)

// UserRepository persists User rows.
type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByProviderID(ctx context.Context, provider, providerID string) (*models.User, error)
	GetByAPIKey(ctx context.Context, apiKey string) (*models.User, error)
}

// CreditRepository persists the 1:1 UserCredits row and the append-only journal.
// Deduct/Add are expected to be called while the caller holds the
// per-user rate-gate lock; they still enforce balance >= 0 at the SQL layer.
type CreditRepository interface {
	GetBalance(ctx context.Context, userID string) (int, error)
	// Deduct re-reads the balance, fails with apperror.PaymentRequired if
	// insufficient, then atomically decrements balance/increments lifetime_spent
	// and appends a negative-amount transaction. Returns the new balance.
	Deduct(ctx context.Context, userID string, amount int, txType, description, referenceID string) (newBalance int, err error)
	// Add atomically increments balance (and, for type=purchase, lifetime_purchased)
	// and appends a positive-amount transaction. Returns the new balance.
	Add(ctx context.Context, userID string, amount int, txType, description, referenceID string) (newBalance int, err error)
	// AdminAdjust applies a signed delta, clamping a too-large negative delta to
	// the current balance, and records the actually-applied delta. Returns the
	// new balance and the delta actually applied.
	AdminAdjust(ctx context.Context, userID string, amount int, description string) (newBalance, applied int, err error)
	ListTransactions(ctx context.Context, userID string, limit, offset int) ([]*models.CreditTransaction, int, error)
}

// PurchaseRepository persists CreditPurchase rows.
type PurchaseRepository interface {
	Create(ctx context.Context, p *models.CreditPurchase) error
	GetByID(ctx context.Context, id string) (*models.CreditPurchase, error)
	GetByProviderPaymentID(ctx context.Context, provider, paymentID string) (*models.CreditPurchase, error)
	UpdatePaymentID(ctx context.Context, id, paymentID string) error
	// Complete performs the pending->completed transition guarded by a
	// WHERE status='pending' clause; ok is false if the row was already
	// completed (i.e. this call was a no-op).
	Complete(ctx context.Context, id string) (ok bool, err error)
}

// ImageRepository persists StoredImage metadata rows.
type ImageRepository interface {
	Create(ctx context.Context, img *models.StoredImage) error
	GetByID(ctx context.Context, id string) (*models.StoredImage, error)
	ListPublic(ctx context.Context, limit, offset int) ([]*models.StoredImage, int, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.StoredImage, int, error)
}

// UsageRepository persists UsageRecord rows.
type UsageRepository interface {
	Create(ctx context.Context, rec *models.UsageRecord) error
	GetSummary(ctx context.Context, userID string) (UsageSummary, error)
	GetDaily(ctx context.Context, userID string, days int) ([]DailyUsage, error)
	GetSystemStats(ctx context.Context) (SystemStats, error)
}

// UsageSummary aggregates a user's all-time usage.
type UsageSummary struct {
	TotalRequests  int `json:"total_requests"`
	TotalImages    int `json:"total_images"`
	CreditsSpent   int `json:"credits_spent"`
}

// DailyUsage is one day's bucket in the usage-details endpoint.
type DailyUsage struct {
	Date          string `json:"date"`
	Requests      int    `json:"requests"`
	Images        int    `json:"images"`
	CreditsSpent  int    `json:"credits_spent"`
}

// SystemStats backs the admin credits-stats endpoint.
type SystemStats struct {
	UserCount               int     `json:"user_count"`
	BalanceSum              int     `json:"balance_sum"`
	LifetimePurchasedSum    int     `json:"lifetime_purchased_sum"`
	LifetimeSpentSum        int     `json:"lifetime_spent_sum"`
	RevenueUSDCents         int     `json:"revenue_usd_cents"`
	StoredImageCount        int     `json:"stored_image_count"`
	OpenAICostCentsSum      float64 `json:"openai_cost_cents_sum"`
	GrossProfitUSDCents     float64 `json:"gross_profit_usd_cents"`
	MarginFraction          float64 `json:"margin_fraction"`
}

// DeviceAuthRepository persists DeviceAuthFlow rows for the CLI device-code grant.
type DeviceAuthRepository interface {
	Create(ctx context.Context, f *models.DeviceAuthFlow) error
	GetByID(ctx context.Context, id string) (*models.DeviceAuthFlow, error)
	// SetUser writes user_id exactly once; subsequent calls for an already-set
	// row are no-ops so concurrent polls observe the same outcome.
	SetUser(ctx context.Context, id, userID string) error
	SetDenied(ctx context.Context, id string) error
}

// LockRepository implements the per-user rate-gate (see internal/rategate).
type LockRepository interface {
	// Acquire inserts a lock row for userID. On a uniqueness conflict it
	// deletes rows older than staleAfter and retries the insert exactly once.
	Acquire(ctx context.Context, userID string, staleAfter time.Duration) (bool, error)
	Release(ctx context.Context, userID string) error
}

// Repositories aggregates all repository instances for dependency injection.
type Repositories struct {
	User       UserRepository
	Credit     CreditRepository
	Purchase   PurchaseRepository
	Image      ImageRepository
	Usage      UsageRepository
	DeviceAuth DeviceAuthRepository
	Lock       LockRepository
}

// NewRepositories wires the SQLite-backed implementations of every repository.
func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		User:       NewSQLiteUserRepository(db),
		Credit:     NewSQLiteCreditRepository(db),
		Purchase:   NewSQLitePurchaseRepository(db),
		Image:      NewSQLiteImageRepository(db),
		Usage:      NewSQLiteUsageRepository(db),
		DeviceAuth: NewSQLiteDeviceAuthRepository(db),
		Lock:       NewSQLiteLockRepository(db),
	}
}

// Package config handles application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/guitaripod/pixie/internal/credit"
)

// DeploymentMode governs which OpenAI credentials a request is allowed to use.
type DeploymentMode string

const (
	DeploymentOfficial   DeploymentMode = "official"
	DeploymentSelfHosted DeploymentMode = "self-hosted"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port    int
	BaseURL string // public base URL this process is reachable at; used to build blob URLs

	// Database
	DatabaseURL string

	// Deployment
	DeploymentMode   DeploymentMode
	CreditMultiplier float64 // gross-margin multiplier applied at charge time, default 3.0

	// Provider credentials
	OpenAIAPIKey string
	GeminiAPIKey string

	// OAuth providers (authorization-code + native token + device flow)
	OAuthGitHubClientID     string
	OAuthGitHubClientSecret string
	OAuthGoogleClientID     string
	OAuthGoogleClientSecret string
	OAuthGoogleClientIDs    []string // all accepted audiences for native id-token exchange (web/android/ios)
	OAuthAppleClientID      string
	OAuthAppleClientSecret  string
	OAuthAppleTeamID        string
	OAuthAppleKeyID         string
	OAuthApplePrivateKey    string

	// Stripe
	StripeSecretKey     string
	StripeWebhookSecret string
	StripePriceIDs      map[string]string // pack id -> Stripe price id

	// NOWPayments
	NOWPaymentsAPIKey     string
	NOWPaymentsIPNSecret  string
	NOWPaymentsSandbox    bool

	// RevenueCat
	RevenueCatAPIKey       string // secret API key, used for subscriber lookups
	RevenueCatAppleAppID   string
	RevenueCatGoogleAppID  string

	// CORS
	CORSOrigins []string

	// Object storage (S3-compatible, e.g. Tigris) backing the Blob component
	StorageEnabled   bool
	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageBucket    string
	StorageRegion    string
	BlobPublicURLBase string // defaults to BaseURL + "/r2"

	// Rate gate
	RateGateTTL time.Duration

	// Request budget
	UpstreamTimeout time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnvInt("PORT", 8080),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
		DatabaseURL: getEnv("DATABASE_URL", "file:pixie.db?_journal=WAL&_timeout=5000"),

		DeploymentMode:   DeploymentMode(getEnv("DEPLOYMENT_MODE", string(DeploymentOfficial))),
		CreditMultiplier: getEnvFloat("CREDIT_MULTIPLIER", 3.0),

		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),

		OAuthGitHubClientID:     getEnv("GITHUB_CLIENT_ID", ""),
		OAuthGitHubClientSecret: getEnv("GITHUB_CLIENT_SECRET", ""),
		OAuthGoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		OAuthGoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		OAuthGoogleClientIDs:    getEnvSlice("GOOGLE_CLIENT_IDS", nil),
		OAuthAppleClientID:      getEnv("APPLE_CLIENT_ID", ""),
		OAuthAppleClientSecret:  getEnv("APPLE_CLIENT_SECRET", ""),
		OAuthAppleTeamID:        getEnv("APPLE_TEAM_ID", ""),
		OAuthAppleKeyID:         getEnv("APPLE_KEY_ID", ""),
		OAuthApplePrivateKey:    getEnv("APPLE_PRIVATE_KEY", ""),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),

		NOWPaymentsAPIKey:    getEnv("NOWPAYMENTS_API_KEY", ""),
		NOWPaymentsIPNSecret: getEnv("NOWPAYMENTS_IPN_SECRET", ""),
		NOWPaymentsSandbox:   getEnvBool("NOWPAYMENTS_SANDBOX", false),

		RevenueCatAPIKey:      getEnv("REVENUECAT_API_KEY", ""),
		RevenueCatAppleAppID:  getEnv("REVENUECAT_APPLE_APP_ID", ""),
		RevenueCatGoogleAppID: getEnv("REVENUECAT_GOOGLE_APP_ID", ""),

		CORSOrigins: getEnvSlice("CORS_ORIGINS", []string{"*"}),

		StorageEndpoint:  getEnv("AWS_ENDPOINT_URL_S3", ""),
		StorageAccessKey: getEnv("AWS_ACCESS_KEY_ID", ""),
		StorageSecretKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		StorageBucket:    getEnvWithFallback("BUCKET_NAME", "STORAGE_BUCKET", ""),
		StorageRegion:    getEnv("AWS_REGION", "auto"),

		RateGateTTL:     getEnvDuration("RATE_GATE_TTL", 60*time.Second),
		UpstreamTimeout: getEnvDuration("UPSTREAM_TIMEOUT", 300*time.Second),
	}

	cfg.StorageEnabled = cfg.StorageBucket != "" && cfg.StorageEndpoint != ""
	cfg.BlobPublicURLBase = getEnv("BLOB_PUBLIC_URL_BASE", strings.TrimRight(cfg.BaseURL, "/")+"/r2")

	cfg.StripePriceIDs = map[string]string{}
	for _, pack := range credit.Packs {
		if v := getEnv("STRIPE_PRICE_ID_"+strings.ToUpper(pack.ID), ""); v != "" {
			cfg.StripePriceIDs[pack.ID] = v
		}
	}

	if cfg.DeploymentMode != DeploymentOfficial && cfg.DeploymentMode != DeploymentSelfHosted {
		return nil, fmt.Errorf("invalid DEPLOYMENT_MODE %q: must be %q or %q", cfg.DeploymentMode, DeploymentOfficial, DeploymentSelfHosted)
	}
	if cfg.DeploymentMode == DeploymentOfficial && cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required in official deployment mode")
	}

	return cfg, nil
}

// IsSelfHosted reports whether requests must bring their own OpenAI key.
func (c *Config) IsSelfHosted() bool {
	return c.DeploymentMode == DeploymentSelfHosted
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "true" || lower == "1" || lower == "yes"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func getEnvWithFallback(primary, fallback, defaultValue string) string {
	if value := os.Getenv(primary); value != "" {
		return value
	}
	if value := os.Getenv(fallback); value != "" {
		return value
	}
	return defaultValue
}

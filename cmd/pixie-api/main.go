// Package main is the entry point for the pixie image-generation gateway.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/guitaripod/pixie/internal/account"
	"github.com/guitaripod/pixie/internal/blob"
	"github.com/guitaripod/pixie/internal/config"
	"github.com/guitaripod/pixie/internal/credit"
	"github.com/guitaripod/pixie/internal/database"
	"github.com/guitaripod/pixie/internal/http/handlers"
	"github.com/guitaripod/pixie/internal/http/mw"
	"github.com/guitaripod/pixie/internal/imagegen"
	"github.com/guitaripod/pixie/internal/logging"
	"github.com/guitaripod/pixie/internal/oauthflow"
	"github.com/guitaripod/pixie/internal/provider"
	"github.com/guitaripod/pixie/internal/purchase"
	"github.com/guitaripod/pixie/internal/rategate"
	"github.com/guitaripod/pixie/internal/repository"
	"github.com/guitaripod/pixie/internal/version"
)

func main() {
	logger := logging.SetDefault()

	v := version.Get()
	logger.Info("starting pixie-api",
		"version", v.Version,
		"commit", v.Commit,
		"built", v.Date,
		"go_version", v.GoVersion,
	)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := database.MigrateWithLogger(db, logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	schemaVersion, err := database.GetLatestSchemaVersion(db)
	if err != nil {
		logger.Warn("failed to get schema version", "error", err)
	} else if schemaVersion != "" {
		migrationCount, _ := database.GetMigrationCount(db)
		logger.Info("database schema ready", "schema_version", schemaVersion, "migrations_applied", migrationCount)
	}

	repos := repository.NewRepositories(db)

	// Domain services
	accounts := account.New(repos.User)
	ledger := credit.New(repos.Credit)
	gate := rategate.New(repos.Lock, cfg.RateGateTTL)

	blobStore, err := blob.New(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize blob storage", "error", err)
		os.Exit(1)
	}
	if blobStore.IsEnabled() {
		logger.Info("blob storage enabled", "bucket", cfg.StorageBucket, "region", cfg.StorageRegion)
	} else {
		logger.Warn("blob storage disabled; generated images will not persist")
	}

	openaiProvider := provider.NewOpenAIProvider(cfg, logger)
	geminiProvider := provider.NewGeminiProvider(cfg, logger)
	registry := provider.NewRegistry(cfg, openaiProvider, geminiProvider)

	pipeline := imagegen.New(cfg, gate, ledger, registry, blobStore, repos.Image, repos.Usage, logger)

	githubFlow := oauthflow.NewGitHubFlow(cfg, accounts)
	googleFlow := oauthflow.NewGoogleFlow(cfg, accounts)
	appleFlow := oauthflow.NewAppleFlow(cfg, accounts)
	deviceFlow := oauthflow.NewDeviceFlow(cfg, repos.DeviceAuth, accounts)

	stripeGateway := purchase.NewStripeGateway(cfg)
	nowpaymentsGateway := purchase.NewNOWPaymentsGateway(cfg)
	revenuecatGateway := purchase.NewRevenueCatGateway(cfg)
	purchases := purchase.New(repos.Purchase, ledger, stripeGateway, nowpaymentsGateway, revenuecatGateway)

	// Router and global middleware
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(mw.APIVersion())
	router.Use(mw.Timeout(mw.TimeoutConfig{
		Default:      15 * time.Second,
		Extended:     cfg.UpstreamTimeout,
		ExtendedPatterns: []string{"/v1/images/generations", "/v1/images/edits"},
	}))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link", "X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	router.Use(middleware.RequestSize(1 * 1024 * 1024))
	router.Use(httprate.LimitByIP(100, time.Minute))
	router.Use(middleware.Throttle(100))

	humaConfig := huma.DefaultConfig("Pixie Image Gateway", v.Version)
	humaConfig.Info.Description = "OpenAI-compatible, multi-tenant image generation gateway with credit-based billing."
	humaConfig.Servers = []*huma.Server{
		{URL: cfg.BaseURL, Description: "API Server"},
	}
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearerAuth": {
			Type:        "http",
			Scheme:      "bearer",
			Description: "API key authentication. Include your API key in the Authorization header as `Bearer pixie_your_key`.",
		},
	}
	api := humachi.New(router, humaConfig)

	hiddenConfig := huma.DefaultConfig("Pixie Image Gateway", v.Version)
	hiddenConfig.DocsPath = ""
	hiddenConfig.OpenAPIPath = ""
	hiddenConfig.SchemasPath = ""
	hiddenAPI := humachi.New(router, hiddenConfig)

	protectedConfig := huma.DefaultConfig("Pixie Image Gateway", v.Version)
	protectedConfig.Info.Description = humaConfig.Info.Description
	protectedConfig.Servers = humaConfig.Servers
	protectedConfig.Components.SecuritySchemes = humaConfig.Components.SecuritySchemes
	protectedConfig.DocsPath = ""
	protectedConfig.OpenAPIPath = ""
	protectedConfig.SchemasPath = ""

	// Public health/k8s-probe routes
	huma.Get(api, "/", handlers.HealthCheck)
	huma.Get(hiddenAPI, "/healthz", handlers.Livez)
	readyzHandler := handlers.NewReadyzHandler(db)
	huma.Get(hiddenAPI, "/readyz", readyzHandler.Readyz)

	// Public credit-catalogue/estimate routes
	creditsHandler := handlers.NewCreditsHandler(ledger, purchases)
	huma.Get(api, "/v1/credits/packs", creditsHandler.ListPacks)
	huma.Post(api, "/v1/credits/estimate", creditsHandler.Estimate)

	// Public gallery routes
	galleryHandler := handlers.NewGalleryHandler(repos.Image, blobStore)
	huma.Get(api, "/v1/images", galleryHandler.ListPublic)
	huma.Get(api, "/v1/images/{image_id}", galleryHandler.GetImage)

	blobHandler := handlers.NewBlobHandler(blobStore)
	router.Get("/r2/{user_id}/{image_id}", blobHandler.ServeBlob)

	// OAuth authorization-code and native-token exchange (identity issuance,
	// not itself authenticated)
	oauthHandler := handlers.NewOAuthHandler(githubFlow, googleFlow, appleFlow)
	router.Get("/v1/auth/{provider}", oauthHandler.Start)
	huma.Post(api, "/v1/auth/{provider}/callback", oauthHandler.Callback)
	huma.Post(api, "/v1/auth/{provider}/token", oauthHandler.NativeToken)

	// Device-code flow (CLI)
	deviceHandler := handlers.NewDeviceHandler(deviceFlow, repos.DeviceAuth)
	huma.Post(api, "/v1/auth/device/code", deviceHandler.StartDeviceCode)
	huma.Post(api, "/v1/auth/device/token", deviceHandler.PollDeviceToken)
	huma.Get(api, "/v1/auth/device/{device_code}/status", deviceHandler.GetStatus)

	// Payment webhooks (signature verified by handler, not bearer auth)
	webhookHandler := handlers.NewWebhookHandler(purchases, logger)
	router.Post("/v1/stripe/webhook", webhookHandler.HandleStripe)
	router.Post("/v1/credits/webhook/crypto", webhookHandler.HandleCrypto)

	// Bearer-authenticated routes
	router.Group(func(r chi.Router) {
		r.Use(mw.Auth(repos.User))

		protectedAPI := humachi.New(r, protectedConfig)

		imagesHandler := handlers.NewImagesHandler(pipeline)
		huma.Post(protectedAPI, "/v1/images/generations", imagesHandler.Generate)
		huma.Post(protectedAPI, "/v1/images/edits", imagesHandler.Edit)

		huma.Get(protectedAPI, "/v1/images/user/{user_id}", galleryHandler.ListByUser)

		huma.Get(protectedAPI, "/v1/credits/balance", creditsHandler.GetBalance)
		huma.Get(protectedAPI, "/v1/credits/transactions", creditsHandler.ListTransactions)
		huma.Post(protectedAPI, "/v1/credits/purchase", creditsHandler.Initiate)
		huma.Post(protectedAPI, "/v1/credits/purchase/stripe", creditsHandler.InitiateStripe)
		huma.Post(protectedAPI, "/v1/credits/purchase/crypto", creditsHandler.InitiateCrypto)
		huma.Post(protectedAPI, "/v1/credits/purchase/revenuecat/validate", creditsHandler.ValidateRevenueCat)
		huma.Get(protectedAPI, "/v1/credits/purchase/{purchase_id}/status", creditsHandler.GetPurchaseStatus)

		usageHandler := handlers.NewUsageHandler(repos.Usage)
		huma.Get(protectedAPI, "/v1/usage/users/{user_id}", usageHandler.GetSummary)
		huma.Get(protectedAPI, "/v1/usage/users/{user_id}/details", usageHandler.GetDetails)
	})

	// Admin-only routes
	router.Group(func(r chi.Router) {
		r.Use(mw.Auth(repos.User))
		r.Use(mw.RequireAdmin())

		adminAPI := humachi.New(r, protectedConfig)

		usageHandler := handlers.NewUsageHandler(repos.Usage)
		huma.Get(adminAPI, "/v1/usage/system", usageHandler.GetSystem)

		adminHandler := handlers.NewAdminHandler(ledger, repos.Usage)
		huma.Post(adminAPI, "/v1/admin/credits/adjust", adminHandler.AdjustCredits)
		huma.Get(adminAPI, "/v1/admin/credits/stats", adminHandler.GetStats)
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		<-sigChan

		logger.Info("shutting down server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}()

	mode := "hosted"
	if cfg.IsSelfHosted() {
		mode = "self-hosted"
	}
	logger.Info("starting server", "port", cfg.Port, "base_url", cfg.BaseURL, "mode", mode)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// Package routes defines the API routing configuration.
// It wires repositories into services and handlers and groups routes by
// the owner kinds allowed to call them.
package routes

import (
	"context"

	"coinforge/internal/config"
	"coinforge/internal/handlers"
	"coinforge/internal/middleware"
	"coinforge/internal/models"
	"coinforge/internal/repositories"
	"coinforge/internal/services/fiat"
	"coinforge/internal/services/ledger"
	"coinforge/internal/services/reward"
	"coinforge/internal/services/store"
	"coinforge/internal/services/wallet"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Services bundles the wired service layer so cmd/ can reuse it (the
// sweeper and the seed tool need services, not routes).
type Services struct {
	Wallet wallet.Service
	Reward reward.Service
	Store  store.Service
	Fiat   fiat.Service
	Ledger ledger.Service
}

// BuildServices constructs repositories and services in dependency order.
func BuildServices(db *gorm.DB) *Services {
	walletRepo := repositories.NewWalletRepository(db)
	ledgerRepo := repositories.NewLedgerRepository(db)
	expiryRepo := repositories.NewExpiryRepository(db)
	lockRepo := repositories.NewLockRepository(db)
	rewardRepo := repositories.NewRewardRepository(db)
	rateRepo := repositories.NewRateRepository(db)
	storeRepo := repositories.NewStoreRepository(db)
	fiatRepo := repositories.NewFiatRepository(db)
	auditRepo := repositories.NewAuditRepository(db)

	engine := ledger.NewEngine(walletRepo, ledgerRepo, expiryRepo)

	walletService := wallet.NewService(
		db,
		walletRepo,
		expiryRepo,
		lockRepo,
		auditRepo,
		engine,
		repositories.CacheService,
	)
	invalidate := func(ctx context.Context, walletID uint) {
		walletService.InvalidateSnapshot(ctx, walletID)
	}

	rewardService := reward.NewService(db, walletRepo, rewardRepo, auditRepo, engine, invalidate)
	storeService := store.NewService(db, walletRepo, storeRepo, auditRepo, engine, repositories.CacheService, invalidate)
	fiatService := fiat.NewService(
		db,
		walletRepo,
		rateRepo,
		fiatRepo,
		auditRepo,
		engine,
		config.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
		invalidate,
	)
	ledgerService := ledger.NewService(walletRepo, ledgerRepo)

	return &Services{
		Wallet: walletService,
		Reward: rewardService,
		Store:  storeService,
		Fiat:   fiatService,
		Ledger: ledgerService,
	}
}

// SetupRoutes configures all application routes.
func SetupRoutes(app *fiber.App, db *gorm.DB, svcs *Services) {
	auditRepo := repositories.NewAuditRepository(db)

	walletHandler := handlers.NewWalletHandler(svcs.Wallet, svcs.Ledger)
	rewardHandler := handlers.NewRewardHandler(svcs.Reward, svcs.Wallet)
	storeHandler := handlers.NewStoreHandler(svcs.Store, svcs.Wallet)
	fiatHandler := handlers.NewFiatHandler(svcs.Fiat, svcs.Wallet)
	adminHandler := handlers.NewAdminHandler(svcs.Wallet, svcs.Reward, svcs.Store, svcs.Fiat, svcs.Ledger, auditRepo)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Welcome to Coinforge API",
			"version": "1.0.0",
			"docs":    "/api",
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	// The payment provider signs its callbacks; no bearer token here.
	api.Post("/fiat/webhook", fiatHandler.HandleWebhook)

	protected := api.Use(middleware.Auth())

	// Wallet
	protected.Get("/wallet", walletHandler.GetSnapshot)
	protected.Get("/wallet/history", walletHandler.GetHistory)

	// Rewards
	protected.Post("/rewards", rewardHandler.Grant)
	protected.Get("/rewards/limits", rewardHandler.GetLimits)

	// Store
	protected.Get("/store/items", storeHandler.GetCatalog)
	protected.Post("/store/checkout", storeHandler.Checkout)
	protected.Get("/store/orders", storeHandler.GetOrders)

	// Fiat purchases
	protected.Post("/fiat/quote", fiatHandler.GetQuote)
	protected.Post("/fiat/purchases", fiatHandler.InitiatePurchase)
	protected.Get("/fiat/purchases", fiatHandler.GetPurchases)

	setupAdminRoutes(protected, adminHandler, storeHandler)
}

func setupAdminRoutes(router fiber.Router, h *handlers.AdminHandler, storeHandler *handlers.StoreHandler) {
	admin := router.Group("/admin", middleware.RequireKinds(models.OwnerAdmin, models.OwnerSubAdmin))

	// Issuance
	admin.Post("/mint", h.Mint)
	admin.Post("/burn", h.Burn)
	admin.Post("/grants/expiring", h.GrantExpiring)
	admin.Post("/budgets", h.AllocateBudget)

	// Locks
	admin.Post("/locks", h.CreateLock)
	admin.Post("/locks/:id/release", h.ReleaseLock)

	// Reward limits
	admin.Put("/limits/roles", h.SetRoleLimit)
	admin.Put("/limits/wallets", h.SetWalletOverride)

	// Rates
	admin.Get("/rates", h.GetRates)
	admin.Post("/rates", h.CreateRate)
	admin.Post("/rates/:id/deactivate", h.DeactivateRate)

	// Catalog management and refunds
	admin.Post("/store/items", h.CreateItem)
	admin.Put("/store/items/:id", h.UpdateItem)
	admin.Get("/store/orders/:id", h.GetOrder)
	admin.Post("/store/orders/:id/refund", storeHandler.Refund)
	admin.Get("/fiat/purchases/:id", h.GetPurchase)

	// Audit and reporting
	admin.Get("/wallets/:id/audit", h.GetWalletAudit)
	admin.Get("/wallets/:id/reconcile", h.Reconcile)
	admin.Get("/reports/volume", h.GetVolumeReport)
	admin.Get("/reports/top-givers", h.GetTopGivers)
	admin.Get("/reports/top-receivers", h.GetTopReceivers)
}

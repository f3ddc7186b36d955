package main

import (
	"context"
	"errors"
	"log"
	"time"

	"coinforge/internal/config"
	domain "coinforge/internal/errors"
	"coinforge/internal/models"
	"coinforge/internal/repositories"
	"coinforge/internal/routes"

	"github.com/shopspring/decimal"
)

// Seeds the records the engine expects before its first request: the
// System wallet, the role-level reward limits, and an initial rate.
func main() {
	config.LoadEnv()

	if err := repositories.InitDB(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if repositories.DB != nil {
			sqlDB, err := repositories.DB.DB()
			if err != nil {
				log.Printf("⚠️ Failed to get SQL DB instance: %v", err)
			} else if err := sqlDB.Close(); err != nil {
				log.Printf("⚠️ Failed to close PostgreSQL connection: %v", err)
			}
		}
		if repositories.CacheService != nil {
			if err := repositories.CacheService.Close(); err != nil {
				log.Printf("⚠️ Failed to close Redis connection: %v", err)
			}
		}
	}()

	svcs := routes.BuildServices(repositories.DB)
	ctx := context.Background()

	system, err := svcs.Wallet.EnsureWallet(ctx, models.OwnerSystem, models.SystemOwnerID)
	if err != nil {
		log.Fatal("Failed to create System wallet:", err)
	}
	log.Printf("✅ System wallet ready (id=%d)", system.ID)

	seedRoleLimits()
	seedInitialRate()

	log.Println("✅ Seed complete")
}

func seedRoleLimits() {
	mentorDaily := decimal.RequireFromString(config.GetEnv("SEED_MENTOR_DAILY_LIMIT", "500"))
	mentorMonthly := decimal.RequireFromString(config.GetEnv("SEED_MENTOR_MONTHLY_LIMIT", "5000"))
	salesmanDaily := decimal.RequireFromString(config.GetEnv("SEED_SALESMAN_DAILY_LIMIT", "200"))
	salesmanMonthly := decimal.RequireFromString(config.GetEnv("SEED_SALESMAN_MONTHLY_LIMIT", "2000"))

	limits := []models.RewardLimit{
		{OwnerKind: models.OwnerMentor, DailyLimit: &mentorDaily, MonthlyLimit: &mentorMonthly, IsActive: true},
		{OwnerKind: models.OwnerSalesman, DailyLimit: &salesmanDaily, MonthlyLimit: &salesmanMonthly, IsActive: true},
		// Admins grant without caps; the row still has to exist and be active.
		{OwnerKind: models.OwnerAdmin, IsActive: true},
		{OwnerKind: models.OwnerSubAdmin, IsActive: true},
	}

	rewards := repositories.NewRewardRepository(repositories.DB)
	for i := range limits {
		existing, err := rewards.RoleLimit(limits[i].OwnerKind)
		if err != nil {
			log.Fatal("Failed to read role limit:", err)
		}
		if existing != nil {
			log.Printf("Role limit for %s already exists", limits[i].OwnerKind)
			continue
		}
		if err := rewards.UpsertRoleLimit(&limits[i]); err != nil {
			log.Fatal("Failed to seed role limit:", err)
		}
		log.Printf("✅ Seeded role limit for %s", limits[i].OwnerKind)
	}
}

func seedInitialRate() {
	currency := config.GetEnv("SEED_RATE_CURRENCY", "USD")
	rates := repositories.NewRateRepository(repositories.DB)

	existing, err := rates.ActiveAt(currency, time.Now().UTC())
	if err != nil && !errors.Is(err, domain.ErrRateNotFound) {
		log.Fatal("Failed to read rates:", err)
	}
	if existing != nil {
		log.Printf("Active %s rate already exists (id=%d)", currency, existing.ID)
		return
	}

	rate := &models.Rate{
		BaseCurrency:  currency,
		CoinsPerUnit:  decimal.RequireFromString(config.GetEnv("SEED_RATE_COINS_PER_UNIT", "100")),
		OfferPercent:  decimal.RequireFromString(config.GetEnv("SEED_RATE_OFFER_PERCENT", "0")),
		EffectiveFrom: time.Now().UTC(),
		IsActive:      true,
	}
	if err := rates.Create(rate); err != nil {
		log.Fatal("Failed to seed rate:", err)
	}
	log.Printf("✅ Seeded %s rate (id=%d)", currency, rate.ID)
}

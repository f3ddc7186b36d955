// Package fiat implements the rate table and the fiat purchase state
// machine: PENDING → COMPLETED (coins minted) or FAILED (no effect), driven
// by a signature-verified provider callback. The coin amount is frozen at
// initiation from the then-active rate; nothing after that point can change
// what a purchase pays out.
package fiat

import (
	"context"
	"fmt"
	"time"

	domain "coinforge/internal/errors"
	"coinforge/internal/metrics"
	"coinforge/internal/models"
	"coinforge/internal/repositories"
	"coinforge/internal/services/ledger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v72/webhook"
	"gorm.io/gorm"
)

// Service manages conversion rates and fiat purchases.
type Service interface {
	CreateRate(ctx context.Context, actor ledger.Actor, rate *models.Rate) error
	DeactivateRate(ctx context.Context, actor ledger.Actor, rateID uint) error
	ListRates(currency string) ([]models.Rate, error)
	// Quote prices a fiat amount in coins at the currently active rate.
	Quote(currency string, amountFiat decimal.Decimal) (decimal.Decimal, *models.Rate, error)

	InitiatePurchase(ctx context.Context, kind models.OwnerKind, ownerID uint, amountFiat decimal.Decimal, currency string) (*models.FiatPurchase, error)
	// HandleProviderCallback consumes one provider webhook delivery. The
	// signature is verified before any storage transaction opens;
	// unverifiable payloads are rejected with no state change. Deliveries
	// are at-least-once: a callback for an already-completed purchase is a
	// no-op success.
	HandleProviderCallback(ctx context.Context, payload []byte, sigHeader string) (*models.FiatPurchase, error)

	GetPurchase(id uint) (*models.FiatPurchase, error)
	ListPurchases(walletID uint, limit, offset int) ([]models.FiatPurchase, int64, error)
}

// Callback is the provider payload the state machine consumes.
type Callback struct {
	ProviderRef string          `json:"provider_ref"`
	Status      string          `json:"status"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
}

// Provider callback statuses.
const (
	CallbackSucceeded = "succeeded"
	CallbackFailed    = "failed"
)

type service struct {
	db            *gorm.DB
	wallets       repositories.WalletRepository
	rates         repositories.RateRepository
	purchases     repositories.FiatRepository
	audit         repositories.AuditRepository
	engine        *ledger.Engine
	webhookSecret string

	invalidate func(ctx context.Context, walletID uint)
}

func NewService(
	db *gorm.DB,
	wallets repositories.WalletRepository,
	rates repositories.RateRepository,
	purchases repositories.FiatRepository,
	audit repositories.AuditRepository,
	engine *ledger.Engine,
	webhookSecret string,
	invalidate func(ctx context.Context, walletID uint),
) Service {
	if db == nil {
		panic("db is required")
	}
	if engine == nil {
		panic("ledger engine is required")
	}
	if webhookSecret == "" {
		panic("webhook secret is required")
	}
	if invalidate == nil {
		invalidate = func(context.Context, uint) {}
	}
	return &service{
		db:            db,
		wallets:       wallets,
		rates:         rates,
		purchases:     purchases,
		audit:         audit,
		engine:        engine,
		webhookSecret: webhookSecret,
		invalidate:    invalidate,
	}
}

func (s *service) CreateRate(ctx context.Context, actor ledger.Actor, rate *models.Rate) error {
	if rate.BaseCurrency == "" || !rate.CoinsPerUnit.IsPositive() || rate.OfferPercent.IsNegative() {
		return domain.ErrValidation
	}
	if rate.EffectiveTo != nil && rate.EffectiveTo.Before(rate.EffectiveFrom) {
		return domain.ErrValidation
	}
	if err := s.rates.Create(rate); err != nil {
		return err
	}
	return s.auditRateChange(actor, fmt.Sprintf("rate %s=%s coins/unit (+%s%%)",
		rate.BaseCurrency, rate.CoinsPerUnit, rate.OfferPercent))
}

func (s *service) DeactivateRate(ctx context.Context, actor ledger.Actor, rateID uint) error {
	if err := s.rates.Deactivate(rateID); err != nil {
		return err
	}
	return s.auditRateChange(actor, fmt.Sprintf("rate %d deactivated", rateID))
}

func (s *service) ListRates(currency string) ([]models.Rate, error) {
	return s.rates.List(currency)
}

func (s *service) Quote(currency string, amountFiat decimal.Decimal) (decimal.Decimal, *models.Rate, error) {
	if !amountFiat.IsPositive() {
		return decimal.Zero, nil, domain.ErrInvalidAmount
	}
	rate, err := s.rates.ActiveAt(currency, time.Now().UTC())
	if err != nil {
		return decimal.Zero, nil, err
	}
	return rate.CoinsFor(amountFiat), rate, nil
}

func (s *service) InitiatePurchase(ctx context.Context, kind models.OwnerKind, ownerID uint, amountFiat decimal.Decimal, currency string) (*models.FiatPurchase, error) {
	coins, rate, err := s.Quote(currency, amountFiat)
	if err != nil {
		return nil, err
	}

	wallet, err := s.wallets.EnsureWallet(kind, ownerID)
	if err != nil {
		return nil, err
	}

	purchase := &models.FiatPurchase{
		WalletID:    wallet.ID,
		AmountFiat:  amountFiat,
		Currency:    currency,
		CoinsIssued: coins,
		RateID:      rate.ID,
		Status:      models.FiatPurchasePending,
		ProviderRef: "fp_" + uuid.NewString(),
	}
	if err := s.purchases.Create(purchase); err != nil {
		return nil, err
	}

	metrics.RecordFiatPurchase(models.FiatPurchasePending)
	return purchase, nil
}

func (s *service) HandleProviderCallback(ctx context.Context, payload []byte, sigHeader string) (*models.FiatPurchase, error) {
	// Signature verification is the only externally-facing work and it
	// happens before any storage transaction opens.
	cb, err := s.verifyCallback(payload, sigHeader)
	if err != nil {
		return nil, err
	}

	var purchase *models.FiatPurchase
	err = repositories.ExecuteInTransaction(s.db, func(tx *gorm.DB) error {
		purchase, err = s.purchases.GetByProviderRefForUpdate(tx, cb.ProviderRef)
		if err != nil {
			return err
		}

		switch purchase.Status {
		case models.FiatPurchaseCompleted:
			// At-least-once delivery; the first completion already minted.
			return nil
		case models.FiatPurchaseFailed:
			if cb.Status == CallbackFailed {
				return nil
			}
			return domain.ErrPurchaseFinalized
		}

		if cb.Status != CallbackSucceeded {
			purchase.Status = models.FiatPurchaseFailed
			return s.purchases.Save(tx, purchase)
		}

		wallet, err := s.wallets.GetForUpdate(tx, purchase.WalletID)
		if err != nil {
			return err
		}
		system, err := s.wallets.GetSystemWallet()
		if err != nil {
			return err
		}

		before := wallet.SpendableBalance
		_, err = s.engine.Apply(tx, wallet, ledger.Posting{
			Type:         models.TransactionTypeFiatPurchase,
			Amount:       purchase.CoinsIssued,
			BalanceType:  models.BalanceSpendable,
			Counterparty: &system.ID,
			Actor:        ledger.Actor{Kind: models.OwnerSystem, ID: models.SystemOwnerID},
			Note:         fmt.Sprintf("fiat purchase %s", purchase.ProviderRef),
			Metadata: models.JSON{
				"fiat_purchase_id": purchase.ID,
				"amount_fiat":      purchase.AmountFiat,
				"currency":         purchase.Currency,
				"rate_id":          purchase.RateID,
			},
		})
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		purchase.Status = models.FiatPurchaseCompleted
		purchase.CompletedAt = &now
		if err := s.purchases.Save(tx, purchase); err != nil {
			return err
		}

		return s.audit.Append(tx, &models.AuditLog{
			WalletID:  wallet.ID,
			Action:    models.AuditActionMint,
			ActorKind: models.OwnerSystem,
			ActorID:   models.SystemOwnerID,
			Before:    before,
			Delta:     purchase.CoinsIssued,
			After:     wallet.SpendableBalance,
			Note:      "fiat purchase " + purchase.ProviderRef,
		})
	})
	if err != nil {
		metrics.RecordOperationError("fiat_callback", errorCode(err))
		return nil, err
	}

	metrics.RecordFiatPurchase(purchase.Status)
	s.invalidate(ctx, purchase.WalletID)
	return purchase, nil
}

// verifyCallback checks the provider's HMAC signature and decodes the
// event. The provider wraps our callback fields in its event envelope.
func (s *service) verifyCallback(payload []byte, sigHeader string) (*Callback, error) {
	event, err := webhook.ConstructEvent(payload, sigHeader, s.webhookSecret)
	if err != nil {
		return nil, domain.ErrBadSignature
	}

	obj := event.Data.Object
	cb := &Callback{}
	if ref, ok := obj["provider_ref"].(string); ok {
		cb.ProviderRef = ref
	}
	if status, ok := obj["status"].(string); ok {
		cb.Status = status
	}
	if currency, ok := obj["currency"].(string); ok {
		cb.Currency = currency
	}
	if amount, ok := obj["amount"].(float64); ok {
		cb.Amount = decimal.NewFromFloat(amount)
	}

	if cb.ProviderRef == "" || cb.Status == "" {
		return nil, domain.ErrValidation
	}
	return cb, nil
}

func (s *service) GetPurchase(id uint) (*models.FiatPurchase, error) {
	return s.purchases.GetByID(id)
}

func (s *service) ListPurchases(walletID uint, limit, offset int) ([]models.FiatPurchase, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.purchases.ListByWallet(walletID, limit, offset)
}

// auditRateChange records a rate edit against the System wallet: rates are
// platform-level state with no single wallet of their own.
func (s *service) auditRateChange(actor ledger.Actor, note string) error {
	system, err := s.wallets.GetSystemWallet()
	if err != nil {
		return err
	}
	return s.audit.Append(s.db, &models.AuditLog{
		WalletID:  system.ID,
		Action:    models.AuditActionRateChange,
		ActorKind: actor.Kind,
		ActorID:   actor.ID,
		Before:    decimal.Zero,
		Delta:     decimal.Zero,
		After:     decimal.Zero,
		Note:      note,
	})
}

func errorCode(err error) string {
	if derr, ok := err.(*domain.DomainError); ok {
		return derr.Code
	}
	return "INTERNAL"
}

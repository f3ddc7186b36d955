package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Fiat purchase statuses
const (
	FiatPurchasePending   = "PENDING"
	FiatPurchaseCompleted = "COMPLETED"
	FiatPurchaseFailed    = "FAILED"
)

// FiatPurchase tracks one fiat-for-coins purchase through its state
// machine: PENDING → COMPLETED (coins minted) or PENDING → FAILED (no
// effect). Both end states are terminal. CoinsIssued is frozen at
// initiation from the then-active Rate; later rate changes never touch an
// in-flight or completed purchase.
type FiatPurchase struct {
	ID          uint            `gorm:"primarykey" json:"id"`
	WalletID    uint            `gorm:"not null;index" json:"wallet_id"`
	AmountFiat  decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"amount_fiat"`
	Currency    string          `gorm:"size:3;not null" json:"currency"`
	CoinsIssued decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"coins_issued"`
	RateID      uint            `gorm:"not null" json:"rate_id"`
	Status      string          `gorm:"not null;default:'PENDING';index" json:"status"`
	ProviderRef string          `gorm:"uniqueIndex;not null" json:"provider_ref"`
	CompletedAt *time.Time      `json:"completed_at"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Terminal reports whether the purchase has reached an end state.
func (p *FiatPurchase) Terminal() bool {
	return p.Status == FiatPurchaseCompleted || p.Status == FiatPurchaseFailed
}

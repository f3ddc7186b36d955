package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExpiryBalance is a time-boxed promotional credit chunk. Chunks are spent
// before the wallet's perpetual spendable balance, in ascending ExpiresAt
// order. Once ExpiresAt passes, whatever remains is use-it-or-lose-it: the
// sweep moves it into AmountExpired.
type ExpiryBalance struct {
	ID            uint            `gorm:"primarykey" json:"id"`
	WalletID      uint            `gorm:"not null;index" json:"wallet_id"`
	AmountTotal   decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"amount_total"`
	AmountUsed    decimal.Decimal `gorm:"type:numeric(20,8);not null;default:0" json:"amount_used"`
	AmountExpired decimal.Decimal `gorm:"type:numeric(20,8);not null;default:0" json:"amount_expired"`
	ExpiresAt     time.Time       `gorm:"not null;index" json:"expires_at"`
	Note          string          `json:"note,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Remaining is the still-spendable portion of the chunk.
func (e *ExpiryBalance) Remaining() decimal.Decimal {
	return e.AmountTotal.Sub(e.AmountUsed).Sub(e.AmountExpired)
}

// Usable reports whether the chunk can still fund a spend at the given
// instant. Expiry is re-checked at the moment of deduction, not only at the
// earlier availability check.
func (e *ExpiryBalance) Usable(at time.Time) bool {
	return at.Before(e.ExpiresAt) && e.Remaining().IsPositive()
}

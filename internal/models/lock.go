package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Lock types
const (
	LockTypeHold      = "HOLD"
	LockTypeDispute   = "DISPUTE"
	LockTypePromotion = "PROMOTION"
)

// Lock is a time-held reservation against a wallet's spendable balance.
// While unreleased, its Remaining reduces the wallet's effective spendable
// funds (mirrored in Wallet.LockedAmount). Locks release either explicitly
// or when UnlocksAt passes.
type Lock struct {
	ID         uint            `gorm:"primarykey" json:"id"`
	WalletID   uint            `gorm:"not null;index" json:"wallet_id"`
	Amount     decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"amount"`
	Remaining  decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"remaining"`
	UnlocksAt  time.Time       `gorm:"not null;index" json:"unlocks_at"`
	LockType   string          `gorm:"not null;default:'HOLD'" json:"lock_type"`
	IsReleased bool            `gorm:"not null;default:false;index" json:"is_released"`
	Note       string          `json:"note,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Due reports whether the lock should auto-release at the given instant.
func (l *Lock) Due(at time.Time) bool {
	return !l.IsReleased && !at.Before(l.UnlocksAt)
}

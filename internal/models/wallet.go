package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OwnerKind identifies the kind of principal a wallet belongs to.
// A wallet owner is the pair (OwnerKind, OwnerID); the pair is unique.
type OwnerKind string

const (
	OwnerEndUser  OwnerKind = "END_USER"
	OwnerMentor   OwnerKind = "MENTOR"
	OwnerSalesman OwnerKind = "SALESMAN"
	OwnerAdmin    OwnerKind = "ADMIN"
	OwnerSubAdmin OwnerKind = "SUB_ADMIN"
	OwnerSystem   OwnerKind = "SYSTEM"
)

// SystemOwnerID is the well-known owner id of the singleton System wallet.
// The System wallet is the only source of newly issued coins and of
// reward-budget allocations.
const SystemOwnerID uint = 1

// Valid reports whether k is a known owner kind.
func (k OwnerKind) Valid() bool {
	switch k {
	case OwnerEndUser, OwnerMentor, OwnerSalesman, OwnerAdmin, OwnerSubAdmin, OwnerSystem:
		return true
	}
	return false
}

// CanHoldRewardBudget reports whether this owner kind may carry a reward
// budget. Only mentors and sales agents spend rewardBudget; the System
// wallet is the source it is allocated from.
func (k OwnerKind) CanHoldRewardBudget() bool {
	return k == OwnerMentor || k == OwnerSalesman
}

// Wallet holds the balances for one owner. Balances never go negative;
// every change is mirrored by exactly one Transaction row written in the
// same storage transaction.
type Wallet struct {
	ID               uint            `gorm:"primarykey" json:"id"`
	OwnerKind        OwnerKind       `gorm:"not null;uniqueIndex:idx_wallet_owner" json:"owner_kind"`
	OwnerID          uint            `gorm:"not null;uniqueIndex:idx_wallet_owner" json:"owner_id"`
	SpendableBalance decimal.Decimal `gorm:"type:numeric(20,8);not null;default:0" json:"spendable_balance"`
	RewardBudget     decimal.Decimal `gorm:"type:numeric(20,8);not null;default:0" json:"reward_budget"`
	LockedAmount     decimal.Decimal `gorm:"type:numeric(20,8);not null;default:0" json:"locked_amount"`
	TotalEarned      decimal.Decimal `gorm:"type:numeric(20,8);not null;default:0" json:"total_earned"`
	TotalSpent       decimal.Decimal `gorm:"type:numeric(20,8);not null;default:0" json:"total_spent"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (w *Wallet) BeforeCreate(tx *gorm.DB) error {
	// Wallets are created lazily with zero balances; a non-zero opening
	// balance would bypass the ledger.
	w.SpendableBalance = decimal.Zero
	w.RewardBudget = decimal.Zero
	w.LockedAmount = decimal.Zero
	w.TotalEarned = decimal.Zero
	w.TotalSpent = decimal.Zero
	return nil
}

// EffectiveSpendable is the portion of the spendable balance not held by
// unreleased locks.
func (w *Wallet) EffectiveSpendable() decimal.Decimal {
	eff := w.SpendableBalance.Sub(w.LockedAmount)
	if eff.IsNegative() {
		return decimal.Zero
	}
	return eff
}

// IsSystem reports whether this is the singleton System wallet.
func (w *Wallet) IsSystem() bool {
	return w.OwnerKind == OwnerSystem && w.OwnerID == SystemOwnerID
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RewardLimit is the role-level default reward-issuance cap. A nil limit
// means unlimited on that axis; an inactive row (or no row at all) means
// the role may not grant rewards.
type RewardLimit struct {
	ID           uint             `gorm:"primarykey" json:"id"`
	OwnerKind    OwnerKind        `gorm:"not null;uniqueIndex" json:"owner_kind"`
	DailyLimit   *decimal.Decimal `gorm:"type:numeric(20,8)" json:"daily_limit"`
	MonthlyLimit *decimal.Decimal `gorm:"type:numeric(20,8)" json:"monthly_limit"`
	IsActive     bool             `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// RewardLimitUser is a per-wallet override. When active it fully replaces
// the role default, including axes it leaves nil (nil = unlimited).
type RewardLimitUser struct {
	ID           uint             `gorm:"primarykey" json:"id"`
	WalletID     uint             `gorm:"not null;uniqueIndex" json:"wallet_id"`
	DailyLimit   *decimal.Decimal `gorm:"type:numeric(20,8)" json:"daily_limit"`
	MonthlyLimit *decimal.Decimal `gorm:"type:numeric(20,8)" json:"monthly_limit"`
	IsActive     bool             `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// RewardUsage accumulates the amount a wallet has rewarded on one calendar
// day (UTC). One row per (wallet, day); the grant transaction locks this
// row so the limit check and the increment are a single atomic step.
type RewardUsage struct {
	ID             uint            `gorm:"primarykey" json:"id"`
	WalletID       uint            `gorm:"not null;uniqueIndex:idx_reward_usage_day" json:"wallet_id"`
	Date           time.Time       `gorm:"type:date;not null;uniqueIndex:idx_reward_usage_day" json:"date"`
	AmountRewarded decimal.Decimal `gorm:"type:numeric(20,8);not null;default:0" json:"amount_rewarded"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

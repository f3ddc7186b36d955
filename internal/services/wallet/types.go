package wallet

import (
	"time"

	"coinforge/internal/models"

	"github.com/shopspring/decimal"
)

// Snapshot is the read view of one wallet: balances plus the credits about
// to expire and the holds about to release.
type Snapshot struct {
	WalletID           uint                   `json:"wallet_id"`
	OwnerKind          models.OwnerKind       `json:"owner_kind"`
	OwnerID            uint                   `json:"owner_id"`
	SpendableBalance   decimal.Decimal        `json:"spendable_balance"`
	EffectiveSpendable decimal.Decimal        `json:"effective_spendable"`
	RewardBudget       decimal.Decimal        `json:"reward_budget"`
	LockedAmount       decimal.Decimal        `json:"locked_amount"`
	TotalEarned        decimal.Decimal        `json:"total_earned"`
	TotalSpent         decimal.Decimal        `json:"total_spent"`
	ExpiringCredits    decimal.Decimal        `json:"expiring_credits"`
	NextExpiring       []models.ExpiryBalance `json:"next_expiring"`
	NextUnlocking      []models.Lock          `json:"next_unlocking"`
	TakenAt            time.Time              `json:"taken_at"`
}

// snapshotPreview bounds how many chunks and locks a snapshot carries.
const snapshotPreview = 5

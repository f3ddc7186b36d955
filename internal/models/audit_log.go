package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Audit actions
const (
	AuditActionMint           = "MINT"
	AuditActionBurn           = "BURN"
	AuditActionBudgetAllocate = "BUDGET_ALLOCATE"
	AuditActionReward         = "REWARD"
	AuditActionExpiryGrant    = "EXPIRY_GRANT"
	AuditActionRefund         = "REFUND"
	AuditActionRateChange     = "RATE_CHANGE"
	AuditActionLimitChange    = "LIMIT_CHANGE"
	AuditActionLockCreate     = "LOCK_CREATE"
	AuditActionLockRelease    = "LOCK_RELEASE"
)

// AuditLog is the human-readable trail of privileged balance-affecting
// actions, written in the same storage transaction as the mutation it
// mirrors. It is parallel to, not a replacement for, the Transaction
// ledger: the ledger is the canonical record, the audit log answers "who
// did this and why".
type AuditLog struct {
	ID        uint            `gorm:"primarykey" json:"id"`
	WalletID  uint            `gorm:"not null;index" json:"wallet_id"`
	Action    string          `gorm:"not null;index" json:"action"`
	ActorKind OwnerKind       `gorm:"not null" json:"actor_kind"`
	ActorID   uint            `gorm:"not null" json:"actor_id"`
	Before    decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"before"`
	Delta     decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"delta"`
	After     decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"after"`
	Note      string          `json:"note,omitempty"`
	CreatedAt time.Time       `gorm:"index" json:"created_at"`
}

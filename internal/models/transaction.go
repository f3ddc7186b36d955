package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction types
const (
	TransactionTypeMint               = "MINT"
	TransactionTypeBurn               = "BURN"
	TransactionTypeManualReward       = "MANUAL_REWARD"
	TransactionTypeManualRewardBudget = "MANUAL_REWARD_BUDGET"
	TransactionTypePurchaseItem       = "PURCHASE_ITEM"
	TransactionTypePurchaseRefund     = "PURCHASE_REFUND"
	TransactionTypeFiatPurchase       = "FIAT_PURCHASE"
	TransactionTypeExpiryGrant        = "EXPIRY_GRANT"
	TransactionTypeExpiryDebit        = "EXPIRY_DEBIT"
	TransactionTypeExpiryLapse        = "EXPIRY_LAPSE"
)

// BalanceType names which wallet balance a transaction touched.
type BalanceType string

const (
	BalanceSpendable    BalanceType = "SPENDABLE"
	BalanceRewardBudget BalanceType = "REWARD_BUDGET"
	// BalanceExpiry rows track one promotional chunk; before/after are the
	// chunk's remaining amount, so summing a wallet's EXPIRY rows yields
	// its total unexpired promotional credit.
	BalanceExpiry BalanceType = "EXPIRY"
	// BalanceOrder rows are per-line provenance for store orders;
	// before/after are the order total still unattributed to a line. They
	// never touch a wallet balance.
	BalanceOrder BalanceType = "ORDER"
)

// Transaction is one immutable ledger row: a single signed change to a
// single balance of a single wallet. Rows are append-only; they are never
// updated or deleted. BalanceAfter = BalanceBefore + Amount always holds.
type Transaction struct {
	ID                   uint            `gorm:"primarykey" json:"id"`
	WalletID             uint            `gorm:"not null;index" json:"wallet_id"`
	Type                 string          `gorm:"not null;index" json:"type"`
	Amount               decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"amount"`
	BalanceType          BalanceType     `gorm:"not null" json:"balance_type"`
	BalanceBefore        decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"balance_before"`
	BalanceAfter         decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"balance_after"`
	CounterpartyWalletID *uint           `gorm:"index" json:"counterparty_wallet_id,omitempty"`
	ActorKind            OwnerKind       `json:"actor_kind,omitempty"`
	ActorID              uint            `json:"actor_id,omitempty"`
	Note                 string          `json:"note,omitempty"`
	Metadata             JSON            `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt            time.Time       `gorm:"index" json:"created_at"`
}

// ValidType reports whether t is one of the known transaction types.
func ValidTransactionType(t string) bool {
	switch t {
	case TransactionTypeMint, TransactionTypeBurn,
		TransactionTypeManualReward, TransactionTypeManualRewardBudget,
		TransactionTypePurchaseItem, TransactionTypePurchaseRefund,
		TransactionTypeFiatPurchase,
		TransactionTypeExpiryGrant, TransactionTypeExpiryDebit, TransactionTypeExpiryLapse:
		return true
	}
	return false
}

package ledger

import (
	"coinforge/internal/models"

	"github.com/shopspring/decimal"
)

// Actor identifies who performed a privileged operation.
type Actor struct {
	Kind models.OwnerKind
	ID   uint
}

// Posting is one requested balance change: a signed amount against one
// balance of one wallet. Apply turns it into the wallet write plus the
// immutable ledger row, as a single step.
type Posting struct {
	Type         string
	Amount       decimal.Decimal
	BalanceType  models.BalanceType
	Counterparty *uint
	Actor        Actor
	Note         string
	Metadata     models.JSON
}

// SpendResult reports where an expiry-first spend drew its funds.
type SpendResult struct {
	Transactions  []*models.Transaction
	FromChunks    decimal.Decimal
	FromSpendable decimal.Decimal
}

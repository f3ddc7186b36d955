// Package ledger implements the ledger engine: every wallet balance change
// goes through Apply, which performs the wallet write and the append of the
// immutable Transaction row as one step inside the caller's storage
// transaction. Code outside this package has no way to move a balance
// without producing its ledger row.
package ledger

import (
	domain "coinforge/internal/errors"
	"coinforge/internal/metrics"
	"coinforge/internal/models"
	"coinforge/internal/repositories"

	"gorm.io/gorm"
)

// Engine binds wallet mutations to ledger appends.
type Engine struct {
	wallets repositories.WalletRepository
	ledger  repositories.LedgerRepository
	expiry  repositories.ExpiryRepository
}

func NewEngine(
	wallets repositories.WalletRepository,
	ledger repositories.LedgerRepository,
	expiry repositories.ExpiryRepository,
) *Engine {
	if wallets == nil {
		panic("wallet repository is required")
	}
	if ledger == nil {
		panic("ledger repository is required")
	}
	if expiry == nil {
		panic("expiry repository is required")
	}
	return &Engine{wallets: wallets, ledger: ledger, expiry: expiry}
}

// Apply mutates one balance of the given wallet by p.Amount and appends the
// matching Transaction row, both on tx. The wallet must already be loaded
// FOR UPDATE inside tx. A change that would drive the balance negative
// fails with no mutation; any storage failure aborts the caller's whole
// transaction.
func (e *Engine) Apply(tx *gorm.DB, w *models.Wallet, p Posting) (*models.Transaction, error) {
	if p.Amount.IsZero() {
		return nil, domain.ErrInvalidAmount
	}
	if !models.ValidTransactionType(p.Type) {
		return nil, domain.ErrValidation
	}

	var before, after = w.SpendableBalance, w.SpendableBalance

	switch p.BalanceType {
	case models.BalanceSpendable:
		before = w.SpendableBalance
		after = before.Add(p.Amount)
		if after.IsNegative() {
			return nil, domain.ErrInsufficientBalance
		}
		w.SpendableBalance = after
		if p.Amount.IsPositive() {
			w.TotalEarned = w.TotalEarned.Add(p.Amount)
		} else {
			w.TotalSpent = w.TotalSpent.Add(p.Amount.Neg())
		}
	case models.BalanceRewardBudget:
		before = w.RewardBudget
		after = before.Add(p.Amount)
		if after.IsNegative() {
			return nil, domain.ErrInsufficientBudget
		}
		w.RewardBudget = after
	default:
		return nil, domain.ErrValidation
	}

	if err := e.wallets.Save(tx, w); err != nil {
		return nil, err
	}

	entry := &models.Transaction{
		WalletID:             w.ID,
		Type:                 p.Type,
		Amount:               p.Amount,
		BalanceType:          p.BalanceType,
		BalanceBefore:        before,
		BalanceAfter:         after,
		CounterpartyWalletID: p.Counterparty,
		ActorKind:            p.Actor.Kind,
		ActorID:              p.Actor.ID,
		Note:                 p.Note,
		Metadata:             p.Metadata,
	}
	if err := e.ledger.Append(tx, entry); err != nil {
		return nil, err
	}

	metrics.RecordTransaction(p.Type, p.Amount.Abs().InexactFloat64())
	return entry, nil
}

// AppendRaw appends a pre-built ledger row that mutates no wallet balance
// (expiry grants and lapses, order provenance). Rows that claim a wallet
// balance type are refused: those must go through Apply.
func (e *Engine) AppendRaw(tx *gorm.DB, entry *models.Transaction) error {
	if entry.BalanceType == models.BalanceSpendable || entry.BalanceType == models.BalanceRewardBudget {
		return domain.ErrValidation
	}
	if !entry.BalanceAfter.Equal(entry.BalanceBefore.Add(entry.Amount)) {
		return domain.ErrValidation
	}
	if err := e.ledger.Append(tx, entry); err != nil {
		return err
	}
	metrics.RecordTransaction(entry.Type, entry.Amount.Abs().InexactFloat64())
	return nil
}

// appendChunkRow records a change against one promotional chunk. Chunk rows
// use the EXPIRY balance type; before/after are the chunk's remaining.
func (e *Engine) appendChunkRow(tx *gorm.DB, chunk *models.ExpiryBalance, txType string, p Posting) (*models.Transaction, error) {
	after := chunk.Remaining()
	before := after.Sub(p.Amount)

	entry := &models.Transaction{
		WalletID:             chunk.WalletID,
		Type:                 txType,
		Amount:               p.Amount,
		BalanceType:          models.BalanceExpiry,
		BalanceBefore:        before,
		BalanceAfter:         after,
		CounterpartyWalletID: p.Counterparty,
		ActorKind:            p.Actor.Kind,
		ActorID:              p.Actor.ID,
		Note:                 p.Note,
		Metadata: mergeMetadata(p.Metadata, models.JSON{
			"expiry_balance_id": chunk.ID,
			"expires_at":        chunk.ExpiresAt,
		}),
	}
	if err := e.ledger.Append(tx, entry); err != nil {
		return nil, err
	}

	metrics.RecordTransaction(txType, p.Amount.Abs().InexactFloat64())
	return entry, nil
}

func mergeMetadata(base, extra models.JSON) models.JSON {
	merged := models.JSON{}
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}

package ledger

import (
	"time"

	domain "coinforge/internal/errors"
	"coinforge/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SpendWithExpiryFirst deducts amount from the wallet, draining active
// promotional chunks in ascending expires_at order (oldest-created first on
// ties) before touching the spendable balance. All-or-nothing: when chunks
// plus effective spendable cannot cover the amount, nothing is mutated and
// ErrInsufficientBalance is returned.
//
// The wallet must be locked FOR UPDATE inside tx. One ledger row is written
// per touched chunk plus one for the spendable remainder, so the ledger
// shows where every coin came from.
func (e *Engine) SpendWithExpiryFirst(tx *gorm.DB, w *models.Wallet, amount decimal.Decimal, p Posting) (*SpendResult, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	now := time.Now().UTC()
	chunks, err := e.expiry.ActiveForUpdate(tx, w.ID, now)
	if err != nil {
		return nil, err
	}

	chunkTotal := decimal.Zero
	for i := range chunks {
		chunkTotal = chunkTotal.Add(chunks[i].Remaining())
	}
	if chunkTotal.Add(w.EffectiveSpendable()).LessThan(amount) {
		return nil, domain.ErrInsufficientBalance
	}

	result := &SpendResult{FromChunks: decimal.Zero, FromSpendable: decimal.Zero}
	left := amount

	for i := range chunks {
		if !left.IsPositive() {
			break
		}
		chunk := &chunks[i]
		// The availability check above and this deduction can straddle a
		// concurrent expiry sweep; skip anything no longer usable.
		if !chunk.Usable(now) {
			continue
		}

		take := decimal.Min(chunk.Remaining(), left)
		chunk.AmountUsed = chunk.AmountUsed.Add(take)
		if err := e.expiry.Save(tx, chunk); err != nil {
			return nil, err
		}

		row, err := e.appendChunkRow(tx, chunk, models.TransactionTypeExpiryDebit, Posting{
			Amount:       take.Neg(),
			Counterparty: p.Counterparty,
			Actor:        p.Actor,
			Note:         p.Note,
			Metadata:     p.Metadata,
		})
		if err != nil {
			return nil, err
		}

		result.Transactions = append(result.Transactions, row)
		result.FromChunks = result.FromChunks.Add(take)
		left = left.Sub(take)
	}

	if left.IsPositive() {
		if w.EffectiveSpendable().LessThan(left) {
			// A chunk lapsed between the availability check and here.
			return nil, domain.ErrInsufficientBalance
		}
		row, err := e.Apply(tx, w, Posting{
			Type:         p.Type,
			Amount:       left.Neg(),
			BalanceType:  models.BalanceSpendable,
			Counterparty: p.Counterparty,
			Actor:        p.Actor,
			Note:         p.Note,
			Metadata:     p.Metadata,
		})
		if err != nil {
			return nil, err
		}
		result.Transactions = append(result.Transactions, row)
		result.FromSpendable = left
	}

	return result, nil
}

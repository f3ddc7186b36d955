package ledger

import (
	"testing"
	"time"

	domain "coinforge/internal/errors"
	"coinforge/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSpendWithExpiryFirst(t *testing.T) {
	soon := time.Now().UTC().Add(time.Hour)
	later := time.Now().UTC().Add(48 * time.Hour)

	t.Run("drains chunks before spendable", func(t *testing.T) {
		engine, wallets, ledgerRepo, expiry := newTestEngine()
		w := &models.Wallet{ID: 3, SpendableBalance: dec("100")}
		chunks := []models.ExpiryBalance{
			{ID: 1, WalletID: 3, AmountTotal: dec("20"), ExpiresAt: soon},
			{ID: 2, WalletID: 3, AmountTotal: dec("30"), ExpiresAt: later},
		}

		expiry.On("ActiveForUpdate", mock.Anything, uint(3), mock.Anything).Return(chunks, nil)
		expiry.On("Save", mock.Anything, mock.Anything).Return(nil)
		wallets.On("Save", mock.Anything, w).Return(nil)
		ledgerRepo.On("Append", mock.Anything, mock.Anything).Return(nil)

		result, err := engine.SpendWithExpiryFirst(nil, w, dec("60"), Posting{
			Type: models.TransactionTypePurchaseItem,
		})
		require.NoError(t, err)

		// 20 from the first chunk, 30 from the second, 10 from spendable.
		assert.True(t, result.FromChunks.Equal(dec("50")))
		assert.True(t, result.FromSpendable.Equal(dec("10")))
		assert.True(t, w.SpendableBalance.Equal(dec("90")))
		require.Len(t, result.Transactions, 3)

		assert.Equal(t, models.TransactionTypeExpiryDebit, result.Transactions[0].Type)
		assert.Equal(t, models.BalanceExpiry, result.Transactions[0].BalanceType)
		assert.True(t, result.Transactions[0].Amount.Equal(dec("-20")))
		assert.True(t, result.Transactions[1].Amount.Equal(dec("-30")))

		remainder := result.Transactions[2]
		assert.Equal(t, models.TransactionTypePurchaseItem, remainder.Type)
		assert.Equal(t, models.BalanceSpendable, remainder.BalanceType)
		assert.True(t, remainder.Amount.Equal(dec("-10")))
	})

	t.Run("partial chunk leaves remainder in chunk", func(t *testing.T) {
		engine, _, ledgerRepo, expiry := newTestEngine()
		w := &models.Wallet{ID: 3, SpendableBalance: dec("0")}
		chunks := []models.ExpiryBalance{
			{ID: 1, WalletID: 3, AmountTotal: dec("50"), ExpiresAt: soon},
		}

		expiry.On("ActiveForUpdate", mock.Anything, uint(3), mock.Anything).Return(chunks, nil)
		expiry.On("Save", mock.Anything, mock.MatchedBy(func(c *models.ExpiryBalance) bool {
			return c.AmountUsed.Equal(dec("15"))
		})).Return(nil)
		ledgerRepo.On("Append", mock.Anything, mock.Anything).Return(nil)

		result, err := engine.SpendWithExpiryFirst(nil, w, dec("15"), Posting{
			Type: models.TransactionTypePurchaseItem,
		})
		require.NoError(t, err)
		assert.True(t, result.FromChunks.Equal(dec("15")))
		assert.True(t, result.FromSpendable.IsZero())
		expiry.AssertExpectations(t)
	})

	t.Run("chunk rows track chunk remaining", func(t *testing.T) {
		engine, _, ledgerRepo, expiry := newTestEngine()
		w := &models.Wallet{ID: 3}
		chunks := []models.ExpiryBalance{
			{ID: 1, WalletID: 3, AmountTotal: dec("50"), AmountUsed: dec("10"), ExpiresAt: soon},
		}

		expiry.On("ActiveForUpdate", mock.Anything, uint(3), mock.Anything).Return(chunks, nil)
		expiry.On("Save", mock.Anything, mock.Anything).Return(nil)
		ledgerRepo.On("Append", mock.Anything, mock.Anything).Return(nil)

		result, err := engine.SpendWithExpiryFirst(nil, w, dec("25"), Posting{
			Type: models.TransactionTypePurchaseItem,
		})
		require.NoError(t, err)

		row := result.Transactions[0]
		assert.True(t, row.BalanceBefore.Equal(dec("40")))
		assert.True(t, row.BalanceAfter.Equal(dec("15")))
		assert.True(t, row.BalanceAfter.Equal(row.BalanceBefore.Add(row.Amount)))
	})

	t.Run("insufficient across chunks and spendable", func(t *testing.T) {
		engine, _, ledgerRepo, expiry := newTestEngine()
		w := &models.Wallet{ID: 3, SpendableBalance: dec("10")}
		chunks := []models.ExpiryBalance{
			{ID: 1, WalletID: 3, AmountTotal: dec("5"), ExpiresAt: soon},
		}

		expiry.On("ActiveForUpdate", mock.Anything, uint(3), mock.Anything).Return(chunks, nil)

		_, err := engine.SpendWithExpiryFirst(nil, w, dec("16"), Posting{
			Type: models.TransactionTypePurchaseItem,
		})
		assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
		assert.True(t, w.SpendableBalance.Equal(dec("10")))
		assert.Empty(t, ledgerRepo.Appended)
	})

	t.Run("locked amount shrinks effective spendable", func(t *testing.T) {
		engine, _, _, expiry := newTestEngine()
		w := &models.Wallet{ID: 3, SpendableBalance: dec("100"), LockedAmount: dec("95")}

		expiry.On("ActiveForUpdate", mock.Anything, uint(3), mock.Anything).Return([]models.ExpiryBalance{}, nil)

		_, err := engine.SpendWithExpiryFirst(nil, w, dec("10"), Posting{
			Type: models.TransactionTypePurchaseItem,
		})
		assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	})

	t.Run("non-positive amount rejected", func(t *testing.T) {
		engine, _, _, _ := newTestEngine()
		w := &models.Wallet{ID: 3, SpendableBalance: dec("10")}

		_, err := engine.SpendWithExpiryFirst(nil, w, dec("0"), Posting{Type: models.TransactionTypePurchaseItem})
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	})
}

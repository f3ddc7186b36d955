package ledger

import (
	"testing"
	"time"

	domain "coinforge/internal/errors"
	"coinforge/internal/models"
	"coinforge/internal/repositories"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type MockWalletRepo struct {
	mock.Mock
}

func (m *MockWalletRepo) EnsureWallet(kind models.OwnerKind, ownerID uint) (*models.Wallet, error) {
	args := m.Called(kind, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Wallet), args.Error(1)
}

func (m *MockWalletRepo) GetSystemWallet() (*models.Wallet, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Wallet), args.Error(1)
}

func (m *MockWalletRepo) GetByID(id uint) (*models.Wallet, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Wallet), args.Error(1)
}

func (m *MockWalletRepo) GetByOwner(kind models.OwnerKind, ownerID uint) (*models.Wallet, error) {
	args := m.Called(kind, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Wallet), args.Error(1)
}

func (m *MockWalletRepo) GetForUpdate(tx *gorm.DB, id uint) (*models.Wallet, error) {
	args := m.Called(tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Wallet), args.Error(1)
}

func (m *MockWalletRepo) GetPairForUpdate(tx *gorm.DB, a, b uint) (*models.Wallet, *models.Wallet, error) {
	args := m.Called(tx, a, b)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*models.Wallet), args.Get(1).(*models.Wallet), args.Error(2)
}

func (m *MockWalletRepo) Save(tx *gorm.DB, wallet *models.Wallet) error {
	args := m.Called(tx, wallet)
	return args.Error(0)
}

type MockLedgerRepo struct {
	mock.Mock

	Appended []*models.Transaction
}

func (m *MockLedgerRepo) Append(tx *gorm.DB, entry *models.Transaction) error {
	args := m.Called(tx, entry)
	if args.Error(0) == nil {
		m.Appended = append(m.Appended, entry)
	}
	return args.Error(0)
}

func (m *MockLedgerRepo) History(walletID uint, f repositories.HistoryFilter) ([]models.Transaction, int64, error) {
	args := m.Called(walletID, f)
	return args.Get(0).([]models.Transaction), args.Get(1).(int64), args.Error(2)
}

func (m *MockLedgerRepo) SumByBalanceType(walletID uint, balanceType models.BalanceType) (decimal.Decimal, error) {
	args := m.Called(walletID, balanceType)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockLedgerRepo) VolumeByTypeDay(from, to time.Time) ([]repositories.VolumeRow, error) {
	args := m.Called(from, to)
	return args.Get(0).([]repositories.VolumeRow), args.Error(1)
}

func (m *MockLedgerRepo) TopRewardGivers(from, to time.Time, limit int) ([]repositories.CounterpartyRow, error) {
	args := m.Called(from, to, limit)
	return args.Get(0).([]repositories.CounterpartyRow), args.Error(1)
}

func (m *MockLedgerRepo) TopRewardReceivers(from, to time.Time, limit int) ([]repositories.CounterpartyRow, error) {
	args := m.Called(from, to, limit)
	return args.Get(0).([]repositories.CounterpartyRow), args.Error(1)
}

type MockExpiryRepo struct {
	mock.Mock
}

func (m *MockExpiryRepo) Create(tx *gorm.DB, chunk *models.ExpiryBalance) error {
	args := m.Called(tx, chunk)
	return args.Error(0)
}

func (m *MockExpiryRepo) Save(tx *gorm.DB, chunk *models.ExpiryBalance) error {
	args := m.Called(tx, chunk)
	return args.Error(0)
}

func (m *MockExpiryRepo) ActiveForUpdate(tx *gorm.DB, walletID uint, now time.Time) ([]models.ExpiryBalance, error) {
	args := m.Called(tx, walletID, now)
	return args.Get(0).([]models.ExpiryBalance), args.Error(1)
}

func (m *MockExpiryRepo) NextExpiring(walletID uint, now time.Time, limit int) ([]models.ExpiryBalance, error) {
	args := m.Called(walletID, now, limit)
	return args.Get(0).([]models.ExpiryBalance), args.Error(1)
}

func (m *MockExpiryRepo) DueForUpdate(tx *gorm.DB, now time.Time, limit int) ([]models.ExpiryBalance, error) {
	args := m.Called(tx, now, limit)
	return args.Get(0).([]models.ExpiryBalance), args.Error(1)
}

func newTestEngine() (*Engine, *MockWalletRepo, *MockLedgerRepo, *MockExpiryRepo) {
	wallets := new(MockWalletRepo)
	ledgerRepo := new(MockLedgerRepo)
	expiry := new(MockExpiryRepo)
	return NewEngine(wallets, ledgerRepo, expiry), wallets, ledgerRepo, expiry
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestEngineApply(t *testing.T) {
	t.Run("credit spendable", func(t *testing.T) {
		engine, wallets, ledgerRepo, _ := newTestEngine()
		w := &models.Wallet{ID: 7, SpendableBalance: dec("10")}

		wallets.On("Save", mock.Anything, w).Return(nil)
		ledgerRepo.On("Append", mock.Anything, mock.Anything).Return(nil)

		entry, err := engine.Apply(nil, w, Posting{
			Type:        models.TransactionTypeMint,
			Amount:      dec("25"),
			BalanceType: models.BalanceSpendable,
		})
		require.NoError(t, err)

		assert.True(t, w.SpendableBalance.Equal(dec("35")))
		assert.True(t, w.TotalEarned.Equal(dec("25")))
		assert.True(t, entry.BalanceBefore.Equal(dec("10")))
		assert.True(t, entry.BalanceAfter.Equal(dec("35")))
		assert.Equal(t, models.BalanceSpendable, entry.BalanceType)

		wallets.AssertExpectations(t)
		ledgerRepo.AssertExpectations(t)
	})

	t.Run("debit spendable tracks total spent", func(t *testing.T) {
		engine, wallets, ledgerRepo, _ := newTestEngine()
		w := &models.Wallet{ID: 7, SpendableBalance: dec("100")}

		wallets.On("Save", mock.Anything, w).Return(nil)
		ledgerRepo.On("Append", mock.Anything, mock.Anything).Return(nil)

		_, err := engine.Apply(nil, w, Posting{
			Type:        models.TransactionTypeBurn,
			Amount:      dec("-40"),
			BalanceType: models.BalanceSpendable,
		})
		require.NoError(t, err)
		assert.True(t, w.SpendableBalance.Equal(dec("60")))
		assert.True(t, w.TotalSpent.Equal(dec("40")))
	})

	t.Run("overdraw fails with no mutation", func(t *testing.T) {
		engine, _, ledgerRepo, _ := newTestEngine()
		w := &models.Wallet{ID: 7, SpendableBalance: dec("10")}

		_, err := engine.Apply(nil, w, Posting{
			Type:        models.TransactionTypeBurn,
			Amount:      dec("-10.00000001"),
			BalanceType: models.BalanceSpendable,
		})
		assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
		assert.True(t, w.SpendableBalance.Equal(dec("10")))
		assert.Empty(t, ledgerRepo.Appended)
	})

	t.Run("budget overdraw", func(t *testing.T) {
		engine, _, _, _ := newTestEngine()
		w := &models.Wallet{ID: 7, RewardBudget: dec("5")}

		_, err := engine.Apply(nil, w, Posting{
			Type:        models.TransactionTypeManualReward,
			Amount:      dec("-6"),
			BalanceType: models.BalanceRewardBudget,
		})
		assert.ErrorIs(t, err, domain.ErrInsufficientBudget)
		assert.True(t, w.RewardBudget.Equal(dec("5")))
	})

	t.Run("zero amount rejected", func(t *testing.T) {
		engine, _, _, _ := newTestEngine()
		w := &models.Wallet{ID: 7}

		_, err := engine.Apply(nil, w, Posting{
			Type:        models.TransactionTypeMint,
			BalanceType: models.BalanceSpendable,
		})
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	})

	t.Run("unknown transaction type rejected", func(t *testing.T) {
		engine, _, _, _ := newTestEngine()
		w := &models.Wallet{ID: 7, SpendableBalance: dec("10")}

		_, err := engine.Apply(nil, w, Posting{
			Type:        "TELEPORT",
			Amount:      dec("1"),
			BalanceType: models.BalanceSpendable,
		})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("non-wallet balance type rejected", func(t *testing.T) {
		engine, _, _, _ := newTestEngine()
		w := &models.Wallet{ID: 7, SpendableBalance: dec("10")}

		_, err := engine.Apply(nil, w, Posting{
			Type:        models.TransactionTypeExpiryDebit,
			Amount:      dec("-1"),
			BalanceType: models.BalanceExpiry,
		})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestEngineAppendRaw(t *testing.T) {
	t.Run("refuses wallet balance types", func(t *testing.T) {
		engine, _, _, _ := newTestEngine()

		err := engine.AppendRaw(nil, &models.Transaction{
			WalletID:     1,
			Type:         models.TransactionTypeMint,
			Amount:       dec("5"),
			BalanceType:  models.BalanceSpendable,
			BalanceAfter: dec("5"),
		})
		assert.ErrorIs(t, err, domain.ErrValidation)

		err = engine.AppendRaw(nil, &models.Transaction{
			WalletID:     1,
			Type:         models.TransactionTypeManualRewardBudget,
			Amount:       dec("5"),
			BalanceType:  models.BalanceRewardBudget,
			BalanceAfter: dec("5"),
		})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("refuses inconsistent before and after", func(t *testing.T) {
		engine, _, _, _ := newTestEngine()

		err := engine.AppendRaw(nil, &models.Transaction{
			WalletID:      1,
			Type:          models.TransactionTypeExpiryGrant,
			Amount:        dec("5"),
			BalanceType:   models.BalanceExpiry,
			BalanceBefore: dec("0"),
			BalanceAfter:  dec("6"),
		})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("accepts consistent expiry row", func(t *testing.T) {
		engine, _, ledgerRepo, _ := newTestEngine()
		ledgerRepo.On("Append", mock.Anything, mock.Anything).Return(nil)

		err := engine.AppendRaw(nil, &models.Transaction{
			WalletID:      1,
			Type:          models.TransactionTypeExpiryGrant,
			Amount:        dec("5"),
			BalanceType:   models.BalanceExpiry,
			BalanceBefore: dec("0"),
			BalanceAfter:  dec("5"),
		})
		assert.NoError(t, err)
		require.Len(t, ledgerRepo.Appended, 1)
	})
}

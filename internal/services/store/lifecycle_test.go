package store

import (
	"context"
	"testing"
	"time"

	domain "coinforge/internal/errors"
	"coinforge/internal/models"
	"coinforge/internal/repositories"
	"coinforge/internal/services/ledger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type mockWallets struct {
	mock.Mock
	repositories.WalletRepository
}

func (m *mockWallets) EnsureWallet(kind models.OwnerKind, ownerID uint) (*models.Wallet, error) {
	args := m.Called(kind, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Wallet), args.Error(1)
}

func (m *mockWallets) GetForUpdate(tx *gorm.DB, id uint) (*models.Wallet, error) {
	args := m.Called(tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Wallet), args.Error(1)
}

func (m *mockWallets) Save(tx *gorm.DB, wallet *models.Wallet) error {
	args := m.Called(tx, wallet)
	return args.Error(0)
}

type mockLedgerRepo struct {
	mock.Mock
	repositories.LedgerRepository

	Appended []*models.Transaction
}

func (m *mockLedgerRepo) Append(tx *gorm.DB, entry *models.Transaction) error {
	args := m.Called(tx, entry)
	if args.Error(0) == nil {
		m.Appended = append(m.Appended, entry)
	}
	return args.Error(0)
}

type mockExpiryRepo struct {
	mock.Mock
	repositories.ExpiryRepository
}

func (m *mockExpiryRepo) ActiveForUpdate(tx *gorm.DB, walletID uint, now time.Time) ([]models.ExpiryBalance, error) {
	args := m.Called(tx, walletID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ExpiryBalance), args.Error(1)
}

func (m *mockExpiryRepo) Save(tx *gorm.DB, chunk *models.ExpiryBalance) error {
	args := m.Called(tx, chunk)
	return args.Error(0)
}

type mockStoreRepo struct {
	mock.Mock
	repositories.StoreRepository
}

func (m *mockStoreRepo) GetItemsForUpdate(tx *gorm.DB, ids []uint) ([]models.StoreItem, error) {
	args := m.Called(tx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.StoreItem), args.Error(1)
}

func (m *mockStoreRepo) AdjustStock(tx *gorm.DB, itemID uint, delta int) error {
	args := m.Called(tx, itemID, delta)
	return args.Error(0)
}

func (m *mockStoreRepo) CreateOrder(tx *gorm.DB, order *models.StoreOrder) error {
	args := m.Called(tx, order)
	return args.Error(0)
}

func (m *mockStoreRepo) CreateOrderItem(tx *gorm.DB, item *models.StoreOrderItem) error {
	args := m.Called(tx, item)
	return args.Error(0)
}

func (m *mockStoreRepo) SaveOrder(tx *gorm.DB, order *models.StoreOrder) error {
	args := m.Called(tx, order)
	return args.Error(0)
}

func (m *mockStoreRepo) GetOrderForUpdate(tx *gorm.DB, id uint) (*models.StoreOrder, error) {
	args := m.Called(tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StoreOrder), args.Error(1)
}

type mockAuditRepo struct {
	mock.Mock
	repositories.AuditRepository

	Entries []*models.AuditLog
}

func (m *mockAuditRepo) Append(tx *gorm.DB, entry *models.AuditLog) error {
	args := m.Called(tx, entry)
	if args.Error(0) == nil {
		m.Entries = append(m.Entries, entry)
	}
	return args.Error(0)
}

type lifecycleMocks struct {
	wallets *mockWallets
	store   *mockStoreRepo
	ledgers *mockLedgerRepo
	expiry  *mockExpiryRepo
	audit   *mockAuditRepo
	sql     sqlmock.Sqlmock
}

// newLifecycleService wires the order processor onto a sqlmock-backed
// database so the transactional paths run end to end against mocked
// repositories.
func newLifecycleService(t *testing.T) (Service, *lifecycleMocks) {
	t.Helper()

	sqlDB, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)

	m := &lifecycleMocks{
		wallets: new(mockWallets),
		store:   new(mockStoreRepo),
		ledgers: new(mockLedgerRepo),
		expiry:  new(mockExpiryRepo),
		audit:   new(mockAuditRepo),
		sql:     sqlMock,
	}
	engine := ledger.NewEngine(m.wallets, m.ledgers, m.expiry)
	svc := NewService(gdb, m.wallets, m.store, m.audit, engine, nil, nil)
	return svc, m
}

func TestCheckoutLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("completes order and prices lines", func(t *testing.T) {
		svc, m := newLifecycleService(t)

		wallet := &models.Wallet{ID: 3, OwnerKind: models.OwnerEndUser, OwnerID: 9, SpendableBalance: dec("100")}
		item := models.StoreItem{ID: 1, Name: "Widget", PriceCoins: dec("12.5"), Stock: 4, IsActive: true}

		m.wallets.On("EnsureWallet", models.OwnerEndUser, uint(9)).Return(wallet, nil)
		m.sql.ExpectBegin()
		m.store.On("GetItemsForUpdate", mock.Anything, []uint{1}).Return([]models.StoreItem{item}, nil)
		m.wallets.On("GetForUpdate", mock.Anything, uint(3)).Return(wallet, nil)
		m.store.On("CreateOrder", mock.Anything, mock.AnythingOfType("*models.StoreOrder")).
			Run(func(args mock.Arguments) { args.Get(1).(*models.StoreOrder).ID = 7 }).
			Return(nil)
		m.store.On("AdjustStock", mock.Anything, uint(1), -2).Return(nil)
		m.expiry.On("ActiveForUpdate", mock.Anything, uint(3), mock.Anything).Return([]models.ExpiryBalance{}, nil)
		m.wallets.On("Save", mock.Anything, wallet).Return(nil)
		m.ledgers.On("Append", mock.Anything, mock.AnythingOfType("*models.Transaction")).Return(nil)
		m.store.On("CreateOrderItem", mock.Anything, mock.AnythingOfType("*models.StoreOrderItem")).Return(nil)
		m.store.On("SaveOrder", mock.Anything, mock.AnythingOfType("*models.StoreOrder")).Return(nil)
		m.sql.ExpectCommit()

		order, err := svc.Checkout(ctx, models.OwnerEndUser, 9, []CheckoutLine{{ItemID: 1, Quantity: 2}})
		require.NoError(t, err)

		assert.Equal(t, models.OrderStatusCompleted, order.Status)
		assert.True(t, order.TotalCoins.Equal(dec("25")))
		assert.True(t, wallet.SpendableBalance.Equal(dec("75")))

		require.Len(t, order.Items, 1)
		assert.Equal(t, uint(1), order.Items[0].ItemID)
		assert.Equal(t, 2, order.Items[0].Quantity)
		assert.True(t, order.Items[0].PriceAtPurchase.Equal(dec("12.5")))

		// One spendable debit plus one provenance row for the single line.
		require.Len(t, m.ledgers.Appended, 2)
		spend := m.ledgers.Appended[0]
		assert.Equal(t, models.BalanceSpendable, spend.BalanceType)
		assert.True(t, spend.Amount.Equal(dec("-25")))
		line := m.ledgers.Appended[1]
		assert.Equal(t, models.BalanceOrder, line.BalanceType)
		assert.True(t, line.BalanceBefore.Equal(dec("25")))
		assert.True(t, line.BalanceAfter.Equal(dec("0")))

		assert.NoError(t, m.sql.ExpectationsWereMet())
	})

	t.Run("insufficient balance leaves nothing behind", func(t *testing.T) {
		svc, m := newLifecycleService(t)

		wallet := &models.Wallet{ID: 3, OwnerKind: models.OwnerEndUser, OwnerID: 9, SpendableBalance: dec("10")}
		item := models.StoreItem{ID: 1, Name: "Widget", PriceCoins: dec("12.5"), Stock: 4, IsActive: true}

		m.wallets.On("EnsureWallet", models.OwnerEndUser, uint(9)).Return(wallet, nil)
		m.sql.ExpectBegin()
		m.store.On("GetItemsForUpdate", mock.Anything, []uint{1}).Return([]models.StoreItem{item}, nil)
		m.wallets.On("GetForUpdate", mock.Anything, uint(3)).Return(wallet, nil)
		m.store.On("CreateOrder", mock.Anything, mock.AnythingOfType("*models.StoreOrder")).Return(nil)
		m.store.On("AdjustStock", mock.Anything, uint(1), -2).Return(nil)
		m.expiry.On("ActiveForUpdate", mock.Anything, uint(3), mock.Anything).Return([]models.ExpiryBalance{}, nil)
		m.sql.ExpectRollback()

		_, err := svc.Checkout(ctx, models.OwnerEndUser, 9, []CheckoutLine{{ItemID: 1, Quantity: 2}})
		assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

		assert.Empty(t, m.ledgers.Appended)
		assert.True(t, wallet.SpendableBalance.Equal(dec("10")))
		m.store.AssertNotCalled(t, "SaveOrder", mock.Anything, mock.Anything)
		assert.NoError(t, m.sql.ExpectationsWereMet())
	})

	t.Run("unknown item", func(t *testing.T) {
		svc, m := newLifecycleService(t)

		wallet := &models.Wallet{ID: 3, OwnerKind: models.OwnerEndUser, OwnerID: 9, SpendableBalance: dec("100")}
		m.wallets.On("EnsureWallet", models.OwnerEndUser, uint(9)).Return(wallet, nil)
		m.sql.ExpectBegin()
		m.store.On("GetItemsForUpdate", mock.Anything, []uint{42}).Return([]models.StoreItem{}, nil)
		m.sql.ExpectRollback()

		_, err := svc.Checkout(ctx, models.OwnerEndUser, 9, []CheckoutLine{{ItemID: 42, Quantity: 1}})
		assert.ErrorIs(t, err, domain.ErrItemNotFound)
		assert.Empty(t, m.ledgers.Appended)
	})
}

func TestRefundLifecycle(t *testing.T) {
	ctx := context.Background()
	actor := ledger.Actor{Kind: models.OwnerAdmin, ID: 42}

	completedOrder := func() *models.StoreOrder {
		return &models.StoreOrder{
			ID:          7,
			OrderNumber: "ORD-test",
			WalletID:    3,
			TotalCoins:  dec("25"),
			Status:      models.OrderStatusCompleted,
			Items: []models.StoreOrderItem{
				{OrderID: 7, ItemID: 1, Quantity: 2, PriceAtPurchase: dec("12.5")},
			},
		}
	}

	t.Run("restores stock and credits the total", func(t *testing.T) {
		svc, m := newLifecycleService(t)

		order := completedOrder()
		wallet := &models.Wallet{ID: 3, OwnerKind: models.OwnerEndUser, OwnerID: 9, SpendableBalance: dec("75")}

		m.sql.ExpectBegin()
		m.store.On("GetOrderForUpdate", mock.Anything, uint(7)).Return(order, nil)
		m.wallets.On("GetForUpdate", mock.Anything, uint(3)).Return(wallet, nil)
		m.wallets.On("Save", mock.Anything, wallet).Return(nil)
		m.ledgers.On("Append", mock.Anything, mock.AnythingOfType("*models.Transaction")).Return(nil)
		m.store.On("AdjustStock", mock.Anything, uint(1), 2).Return(nil)
		m.store.On("SaveOrder", mock.Anything, order).Return(nil)
		m.audit.On("Append", mock.Anything, mock.AnythingOfType("*models.AuditLog")).Return(nil)
		m.sql.ExpectCommit()

		refunded, err := svc.Refund(ctx, actor, 7)
		require.NoError(t, err)

		assert.Equal(t, models.OrderStatusRefunded, refunded.Status)
		assert.True(t, wallet.SpendableBalance.Equal(dec("100")))

		require.Len(t, m.ledgers.Appended, 2)
		credit := m.ledgers.Appended[0]
		assert.Equal(t, models.TransactionTypePurchaseRefund, credit.Type)
		assert.Equal(t, models.BalanceSpendable, credit.BalanceType)
		assert.True(t, credit.Amount.Equal(dec("25")))
		line := m.ledgers.Appended[1]
		assert.Equal(t, models.BalanceOrder, line.BalanceType)
		assert.True(t, line.BalanceBefore.Equal(dec("-25")))
		assert.True(t, line.BalanceAfter.Equal(dec("0")))

		require.Len(t, m.audit.Entries, 1)
		assert.Equal(t, models.AuditActionRefund, m.audit.Entries[0].Action)
		assert.True(t, m.audit.Entries[0].Delta.Equal(dec("25")))

		assert.NoError(t, m.sql.ExpectationsWereMet())
	})

	t.Run("second refund is rejected", func(t *testing.T) {
		svc, m := newLifecycleService(t)

		order := completedOrder()
		order.Status = models.OrderStatusRefunded

		m.sql.ExpectBegin()
		m.store.On("GetOrderForUpdate", mock.Anything, uint(7)).Return(order, nil)
		m.sql.ExpectRollback()

		_, err := svc.Refund(ctx, actor, 7)
		assert.ErrorIs(t, err, domain.ErrOrderNotRefundable)
		assert.Empty(t, m.ledgers.Appended)
		m.store.AssertNotCalled(t, "AdjustStock", mock.Anything, mock.Anything, mock.Anything)
		assert.NoError(t, m.sql.ExpectationsWereMet())
	})

	t.Run("pending order is not refundable", func(t *testing.T) {
		svc, m := newLifecycleService(t)

		order := completedOrder()
		order.Status = models.OrderStatusPending

		m.sql.ExpectBegin()
		m.store.On("GetOrderForUpdate", mock.Anything, uint(7)).Return(order, nil)
		m.sql.ExpectRollback()

		_, err := svc.Refund(ctx, actor, 7)
		assert.ErrorIs(t, err, domain.ErrOrderNotRefundable)
		assert.Empty(t, m.ledgers.Appended)
	})
}

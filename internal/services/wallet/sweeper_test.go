package wallet

import (
	"context"
	"testing"
	"time"

	"coinforge/internal/models"
	"coinforge/internal/repositories"
	"coinforge/internal/repositories/cache"
	"coinforge/internal/services/ledger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v9"
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

type mockWalletRepo struct {
	mock.Mock
	repositories.WalletRepository
}

func (m *mockWalletRepo) GetForUpdate(tx *gorm.DB, id uint) (*models.Wallet, error) {
	args := m.Called(tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Wallet), args.Error(1)
}

func (m *mockWalletRepo) Save(tx *gorm.DB, wallet *models.Wallet) error {
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

func (m *mockExpiryRepo) DueForUpdate(tx *gorm.DB, now time.Time, limit int) ([]models.ExpiryBalance, error) {
	args := m.Called(tx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ExpiryBalance), args.Error(1)
}

func (m *mockExpiryRepo) Save(tx *gorm.DB, chunk *models.ExpiryBalance) error {
	args := m.Called(tx, chunk)
	return args.Error(0)
}

type mockLockRepo struct {
	mock.Mock
	repositories.LockRepository
}

func (m *mockLockRepo) DueForUpdate(tx *gorm.DB, now time.Time, limit int) ([]models.Lock, error) {
	args := m.Called(tx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Lock), args.Error(1)
}

func (m *mockLockRepo) Save(tx *gorm.DB, lock *models.Lock) error {
	args := m.Called(tx, lock)
	return args.Error(0)
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

type sweeperMocks struct {
	wallets *mockWalletRepo
	ledgers *mockLedgerRepo
	expiry  *mockExpiryRepo
	locks   *mockLockRepo
	audit   *mockAuditRepo
	sql     sqlmock.Sqlmock
	redis   redismock.ClientMock
}

func newSweeperService(t *testing.T) (Service, *sweeperMocks) {
	t.Helper()

	sqlDB, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)

	client, redisMock := redismock.NewClientMock()
	cacheSvc := cache.NewCacheService(client, time.Minute)

	m := &sweeperMocks{
		wallets: new(mockWalletRepo),
		ledgers: new(mockLedgerRepo),
		expiry:  new(mockExpiryRepo),
		locks:   new(mockLockRepo),
		audit:   new(mockAuditRepo),
		sql:     sqlMock,
		redis:   redisMock,
	}
	engine := ledger.NewEngine(m.wallets, m.ledgers, m.expiry)
	svc := NewService(gdb, m.wallets, m.expiry, m.locks, m.audit, engine, cacheSvc)
	return svc, m
}

// A swept chunk and a released lock both change what the owner can spend,
// so each must drop the wallet's cached snapshot.
func TestSweepExpiredInvalidatesSnapshots(t *testing.T) {
	svc, m := newSweeperService(t)

	past := time.Now().UTC().Add(-time.Hour)
	chunk := models.ExpiryBalance{
		ID: 4, WalletID: 3,
		AmountTotal: dec("20"), AmountUsed: dec("5"),
		ExpiresAt: past,
	}
	lock := models.Lock{
		ID: 9, WalletID: 5,
		Amount: dec("30"), Remaining: dec("30"),
		UnlocksAt: past,
	}
	lockWallet := &models.Wallet{ID: 5, SpendableBalance: dec("80"), LockedAmount: dec("30")}

	// Chunk pass: one lapse, then an empty batch ends the loop.
	m.sql.ExpectBegin()
	m.sql.ExpectCommit()
	m.expiry.On("DueForUpdate", mock.Anything, mock.Anything, 1).
		Return([]models.ExpiryBalance{chunk}, nil).Once()
	m.expiry.On("Save", mock.Anything, mock.AnythingOfType("*models.ExpiryBalance")).Return(nil)
	m.ledgers.On("Append", mock.Anything, mock.AnythingOfType("*models.Transaction")).Return(nil)
	m.redis.ExpectDel(cache.WalletSnapshotKey(3)).SetVal(1)
	m.sql.ExpectBegin()
	m.sql.ExpectCommit()
	m.expiry.On("DueForUpdate", mock.Anything, mock.Anything, 1).
		Return([]models.ExpiryBalance{}, nil).Once()

	// Lock pass: one release, then an empty batch.
	m.sql.ExpectBegin()
	m.sql.ExpectCommit()
	m.locks.On("DueForUpdate", mock.Anything, mock.Anything, 1).
		Return([]models.Lock{lock}, nil).Once()
	m.wallets.On("GetForUpdate", mock.Anything, uint(5)).Return(lockWallet, nil)
	m.locks.On("Save", mock.Anything, mock.AnythingOfType("*models.Lock")).Return(nil)
	m.wallets.On("Save", mock.Anything, lockWallet).Return(nil)
	m.audit.On("Append", mock.Anything, mock.AnythingOfType("*models.AuditLog")).Return(nil)
	m.redis.ExpectDel(cache.WalletSnapshotKey(5)).SetVal(1)
	m.sql.ExpectBegin()
	m.sql.ExpectCommit()
	m.locks.On("DueForUpdate", mock.Anything, mock.Anything, 1).
		Return([]models.Lock{}, nil).Once()

	chunks, locks, err := svc.SweepExpired(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, chunks)
	assert.Equal(t, 1, locks)

	// The lapse row accounts for the full unspent remainder.
	require.Len(t, m.ledgers.Appended, 1)
	lapse := m.ledgers.Appended[0]
	assert.Equal(t, models.TransactionTypeExpiryLapse, lapse.Type)
	assert.Equal(t, models.BalanceExpiry, lapse.BalanceType)
	assert.True(t, lapse.Amount.Equal(dec("-15")))

	assert.True(t, lockWallet.LockedAmount.IsZero())
	require.Len(t, m.audit.Entries, 1)
	assert.Equal(t, models.AuditActionLockRelease, m.audit.Entries[0].Action)

	assert.NoError(t, m.sql.ExpectationsWereMet())
	assert.NoError(t, m.redis.ExpectationsWereMet())
}

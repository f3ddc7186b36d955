package fiat

import (
	"context"
	"testing"
	"time"

	domain "coinforge/internal/errors"
	"coinforge/internal/models"
	"coinforge/internal/repositories"
	"coinforge/internal/services/ledger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type MockRateRepo struct {
	mock.Mock
}

func (m *MockRateRepo) Create(rate *models.Rate) error {
	args := m.Called(rate)
	return args.Error(0)
}

func (m *MockRateRepo) ActiveAt(currency string, at time.Time) (*models.Rate, error) {
	args := m.Called(currency, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Rate), args.Error(1)
}

func (m *MockRateRepo) GetByID(id uint) (*models.Rate, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Rate), args.Error(1)
}

func (m *MockRateRepo) List(currency string) ([]models.Rate, error) {
	args := m.Called(currency)
	return args.Get(0).([]models.Rate), args.Error(1)
}

func (m *MockRateRepo) Deactivate(id uint) error {
	args := m.Called(id)
	return args.Error(0)
}

// Stub repositories for wiring; unused in these tests.
type stubWallets struct{ repositories.WalletRepository }
type stubLedgerRepo struct{ repositories.LedgerRepository }
type stubExpiry struct{ repositories.ExpiryRepository }
type stubPurchases struct{ repositories.FiatRepository }
type stubAudit struct{ repositories.AuditRepository }

func newTestService(rates repositories.RateRepository) Service {
	engine := ledger.NewEngine(stubWallets{}, stubLedgerRepo{}, stubExpiry{})
	return NewService(&gorm.DB{}, stubWallets{}, rates, stubPurchases{}, stubAudit{}, engine, "whsec_test", nil)
}

func TestQuote(t *testing.T) {
	t.Run("prices at the active rate with bonus", func(t *testing.T) {
		rates := new(MockRateRepo)
		rates.On("ActiveAt", "USD", mock.Anything).Return(&models.Rate{
			ID:           3,
			BaseCurrency: "USD",
			CoinsPerUnit: decimal.RequireFromString("100"),
			OfferPercent: decimal.RequireFromString("10"),
		}, nil)

		coins, rate, err := newTestService(rates).Quote("USD", decimal.RequireFromString("5"))
		require.NoError(t, err)
		assert.True(t, coins.Equal(decimal.RequireFromString("550")), "got %s", coins)
		assert.Equal(t, uint(3), rate.ID)
	})

	t.Run("no active rate", func(t *testing.T) {
		rates := new(MockRateRepo)
		rates.On("ActiveAt", "EUR", mock.Anything).Return(nil, domain.ErrRateNotFound)

		_, _, err := newTestService(rates).Quote("EUR", decimal.RequireFromString("5"))
		assert.ErrorIs(t, err, domain.ErrRateNotFound)
	})

	t.Run("non-positive fiat amount", func(t *testing.T) {
		rates := new(MockRateRepo)

		_, _, err := newTestService(rates).Quote("USD", decimal.Zero)
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
		rates.AssertNotCalled(t, "ActiveAt", mock.Anything, mock.Anything)
	})
}

func TestCreateRateValidation(t *testing.T) {
	svc := newTestService(new(MockRateRepo))
	now := time.Now().UTC()
	past := now.Add(-time.Hour)

	tests := []struct {
		name string
		rate models.Rate
	}{
		{"missing currency", models.Rate{CoinsPerUnit: decimal.RequireFromString("100"), EffectiveFrom: now}},
		{"zero coins per unit", models.Rate{BaseCurrency: "USD", EffectiveFrom: now}},
		{"negative offer", models.Rate{BaseCurrency: "USD", CoinsPerUnit: decimal.RequireFromString("100"), OfferPercent: decimal.RequireFromString("-1"), EffectiveFrom: now}},
		{"window ends before it starts", models.Rate{BaseCurrency: "USD", CoinsPerUnit: decimal.RequireFromString("100"), EffectiveFrom: now, EffectiveTo: &past}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.CreateRate(context.Background(), ledger.Actor{}, &tt.rate)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestHandleProviderCallbackSignature(t *testing.T) {
	svc := newTestService(new(MockRateRepo))

	// An unsigned payload never reaches storage.
	_, err := svc.HandleProviderCallback(context.Background(),
		[]byte(`{"type":"payment_intent.succeeded"}`), "t=1,v1=deadbeef")
	assert.ErrorIs(t, err, domain.ErrBadSignature)

	_, err = svc.HandleProviderCallback(context.Background(), []byte(`{}`), "")
	assert.ErrorIs(t, err, domain.ErrBadSignature)
}

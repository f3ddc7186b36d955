package repositories

import (
	stderrors "errors"
	"fmt"

	domain "coinforge/internal/errors"
	"coinforge/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FiatRepository owns fiat purchase rows.
type FiatRepository interface {
	Create(purchase *models.FiatPurchase) error
	GetByID(id uint) (*models.FiatPurchase, error)
	// GetByProviderRefForUpdate locks the purchase matching a provider
	// callback so at-least-once webhook deliveries serialize.
	GetByProviderRefForUpdate(tx *gorm.DB, providerRef string) (*models.FiatPurchase, error)
	Save(tx *gorm.DB, purchase *models.FiatPurchase) error
	ListByWallet(walletID uint, limit, offset int) ([]models.FiatPurchase, int64, error)
}

type fiatRepository struct {
	db *gorm.DB
}

func NewFiatRepository(db *gorm.DB) FiatRepository {
	return &fiatRepository{db: db}
}

func (r *fiatRepository) Create(purchase *models.FiatPurchase) error {
	if err := r.db.Create(purchase).Error; err != nil {
		return fmt.Errorf("failed to create fiat purchase: %w", err)
	}
	return nil
}

func (r *fiatRepository) GetByID(id uint) (*models.FiatPurchase, error) {
	var purchase models.FiatPurchase
	if err := r.db.First(&purchase, id).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPurchaseNotFound
		}
		return nil, fmt.Errorf("failed to get fiat purchase: %w", err)
	}
	return &purchase, nil
}

func (r *fiatRepository) GetByProviderRefForUpdate(tx *gorm.DB, providerRef string) (*models.FiatPurchase, error) {
	var purchase models.FiatPurchase
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("provider_ref = ?", providerRef).
		First(&purchase).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPurchaseNotFound
		}
		return nil, fmt.Errorf("failed to lock fiat purchase: %w", err)
	}
	return &purchase, nil
}

func (r *fiatRepository) Save(tx *gorm.DB, purchase *models.FiatPurchase) error {
	if err := tx.Save(purchase).Error; err != nil {
		return fmt.Errorf("failed to save fiat purchase: %w", err)
	}
	return nil
}

func (r *fiatRepository) ListByWallet(walletID uint, limit, offset int) ([]models.FiatPurchase, int64, error) {
	q := r.db.Model(&models.FiatPurchase{}).Where("wallet_id = ?", walletID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count fiat purchases: %w", err)
	}

	var purchases []models.FiatPurchase
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&purchases).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list fiat purchases: %w", err)
	}
	return purchases, total, nil
}

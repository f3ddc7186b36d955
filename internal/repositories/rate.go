package repositories

import (
	stderrors "errors"
	"fmt"
	"time"

	domain "coinforge/internal/errors"
	"coinforge/internal/models"

	"gorm.io/gorm"
)

// RateRepository owns fiat-to-coin conversion windows.
type RateRepository interface {
	Create(rate *models.Rate) error
	// ActiveAt resolves the single effective rate for a currency at an
	// instant: the active row with the latest effective_from ≤ at whose
	// effective_to is null or ≥ at.
	ActiveAt(currency string, at time.Time) (*models.Rate, error)
	GetByID(id uint) (*models.Rate, error)
	List(currency string) ([]models.Rate, error)
	Deactivate(id uint) error
}

type rateRepository struct {
	db *gorm.DB
}

func NewRateRepository(db *gorm.DB) RateRepository {
	return &rateRepository{db: db}
}

func (r *rateRepository) Create(rate *models.Rate) error {
	if err := r.db.Create(rate).Error; err != nil {
		return fmt.Errorf("failed to create rate: %w", err)
	}
	return nil
}

func (r *rateRepository) ActiveAt(currency string, at time.Time) (*models.Rate, error) {
	var rate models.Rate
	err := r.db.
		Where("base_currency = ? AND is_active = true AND effective_from <= ?", currency, at).
		Where("effective_to IS NULL OR effective_to >= ?", at).
		Order("effective_from DESC").
		First(&rate).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrRateNotFound
		}
		return nil, fmt.Errorf("failed to resolve rate: %w", err)
	}
	return &rate, nil
}

func (r *rateRepository) GetByID(id uint) (*models.Rate, error) {
	var rate models.Rate
	if err := r.db.First(&rate, id).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrRateNotFound
		}
		return nil, fmt.Errorf("failed to get rate: %w", err)
	}
	return &rate, nil
}

func (r *rateRepository) List(currency string) ([]models.Rate, error) {
	q := r.db.Model(&models.Rate{})
	if currency != "" {
		q = q.Where("base_currency = ?", currency)
	}
	var rates []models.Rate
	if err := q.Order("effective_from DESC").Find(&rates).Error; err != nil {
		return nil, fmt.Errorf("failed to list rates: %w", err)
	}
	return rates, nil
}

func (r *rateRepository) Deactivate(id uint) error {
	result := r.db.Model(&models.Rate{}).Where("id = ?", id).Update("is_active", false)
	if result.Error != nil {
		return fmt.Errorf("failed to deactivate rate: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrRateNotFound
	}
	return nil
}

package repositories

import (
	"fmt"
	"time"

	"coinforge/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ExpiryRepository owns promotional credit chunks.
type ExpiryRepository interface {
	Create(tx *gorm.DB, chunk *models.ExpiryBalance) error
	Save(tx *gorm.DB, chunk *models.ExpiryBalance) error
	// ActiveForUpdate locks the wallet's usable chunks in spend order:
	// ascending expires_at, ties broken oldest-created first.
	ActiveForUpdate(tx *gorm.DB, walletID uint, now time.Time) ([]models.ExpiryBalance, error)
	// NextExpiring lists a wallet's usable chunks for snapshots, nearest
	// expiry first.
	NextExpiring(walletID uint, now time.Time, limit int) ([]models.ExpiryBalance, error)
	// DueForUpdate locks a batch of chunks whose expiry has passed but
	// whose remainder has not yet been lapsed.
	DueForUpdate(tx *gorm.DB, now time.Time, limit int) ([]models.ExpiryBalance, error)
}

type expiryRepository struct {
	db *gorm.DB
}

func NewExpiryRepository(db *gorm.DB) ExpiryRepository {
	return &expiryRepository{db: db}
}

func (r *expiryRepository) Create(tx *gorm.DB, chunk *models.ExpiryBalance) error {
	if err := tx.Create(chunk).Error; err != nil {
		return fmt.Errorf("failed to create expiry balance: %w", err)
	}
	return nil
}

func (r *expiryRepository) Save(tx *gorm.DB, chunk *models.ExpiryBalance) error {
	if err := tx.Save(chunk).Error; err != nil {
		return fmt.Errorf("failed to save expiry balance: %w", err)
	}
	return nil
}

func (r *expiryRepository) ActiveForUpdate(tx *gorm.DB, walletID uint, now time.Time) ([]models.ExpiryBalance, error) {
	var chunks []models.ExpiryBalance
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("wallet_id = ? AND expires_at > ? AND amount_total - amount_used - amount_expired > 0", walletID, now).
		Order("expires_at ASC, created_at ASC").
		Find(&chunks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock expiry balances: %w", err)
	}
	return chunks, nil
}

func (r *expiryRepository) NextExpiring(walletID uint, now time.Time, limit int) ([]models.ExpiryBalance, error) {
	var chunks []models.ExpiryBalance
	err := r.db.
		Where("wallet_id = ? AND expires_at > ? AND amount_total - amount_used - amount_expired > 0", walletID, now).
		Order("expires_at ASC, created_at ASC").
		Limit(limit).
		Find(&chunks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list expiry balances: %w", err)
	}
	return chunks, nil
}

func (r *expiryRepository) DueForUpdate(tx *gorm.DB, now time.Time, limit int) ([]models.ExpiryBalance, error) {
	var chunks []models.ExpiryBalance
	err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("expires_at <= ? AND amount_total - amount_used - amount_expired > 0", now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&chunks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock due expiry balances: %w", err)
	}
	return chunks, nil
}

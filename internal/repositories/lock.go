package repositories

import (
	stderrors "errors"
	"fmt"
	"time"

	domain "coinforge/internal/errors"
	"coinforge/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LockRepository owns time-held balance reservations.
type LockRepository interface {
	Create(tx *gorm.DB, lock *models.Lock) error
	Save(tx *gorm.DB, lock *models.Lock) error
	GetForUpdate(tx *gorm.DB, id uint) (*models.Lock, error)
	// NextUnlocking lists a wallet's unreleased locks for snapshots,
	// nearest unlock first.
	NextUnlocking(walletID uint, limit int) ([]models.Lock, error)
	// DueForUpdate locks a batch of reservations whose unlock time passed.
	DueForUpdate(tx *gorm.DB, now time.Time, limit int) ([]models.Lock, error)
}

type lockRepository struct {
	db *gorm.DB
}

func NewLockRepository(db *gorm.DB) LockRepository {
	return &lockRepository{db: db}
}

func (r *lockRepository) Create(tx *gorm.DB, lock *models.Lock) error {
	if err := tx.Create(lock).Error; err != nil {
		return fmt.Errorf("failed to create lock: %w", err)
	}
	return nil
}

func (r *lockRepository) Save(tx *gorm.DB, lock *models.Lock) error {
	if err := tx.Save(lock).Error; err != nil {
		return fmt.Errorf("failed to save lock: %w", err)
	}
	return nil
}

func (r *lockRepository) GetForUpdate(tx *gorm.DB, id uint) (*models.Lock, error) {
	var lock models.Lock
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&lock, id).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrLockNotFound
		}
		return nil, fmt.Errorf("failed to lock reservation: %w", err)
	}
	return &lock, nil
}

func (r *lockRepository) NextUnlocking(walletID uint, limit int) ([]models.Lock, error) {
	var locks []models.Lock
	err := r.db.
		Where("wallet_id = ? AND is_released = false", walletID).
		Order("unlocks_at ASC").
		Limit(limit).
		Find(&locks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list locks: %w", err)
	}
	return locks, nil
}

func (r *lockRepository) DueForUpdate(tx *gorm.DB, now time.Time, limit int) ([]models.Lock, error) {
	var locks []models.Lock
	err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("is_released = false AND unlocks_at <= ?", now).
		Order("unlocks_at ASC").
		Limit(limit).
		Find(&locks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock due reservations: %w", err)
	}
	return locks, nil
}

package repositories

import (
	"fmt"

	"coinforge/internal/models"

	"gorm.io/gorm"
)

// AuditRepository owns the append-only audit trail.
type AuditRepository interface {
	Append(tx *gorm.DB, entry *models.AuditLog) error
	ListByWallet(walletID uint, limit, offset int) ([]models.AuditLog, int64, error)
}

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Append(tx *gorm.DB, entry *models.AuditLog) error {
	if err := tx.Create(entry).Error; err != nil {
		return fmt.Errorf("failed to append audit log: %w", err)
	}
	return nil
}

func (r *auditRepository) ListByWallet(walletID uint, limit, offset int) ([]models.AuditLog, int64, error) {
	q := r.db.Model(&models.AuditLog{}).Where("wallet_id = ?", walletID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	var entries []models.AuditLog
	err := q.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&entries).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return entries, total, nil
}

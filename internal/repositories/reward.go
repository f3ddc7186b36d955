package repositories

import (
	stderrors "errors"
	"fmt"
	"time"

	"coinforge/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RewardRepository owns reward limits and usage accumulators.
type RewardRepository interface {
	RoleLimit(kind models.OwnerKind) (*models.RewardLimit, error)
	WalletOverride(walletID uint) (*models.RewardLimitUser, error)
	UpsertRoleLimit(limit *models.RewardLimit) error
	UpsertWalletOverride(override *models.RewardLimitUser) error
	// UsageForUpdate returns today's usage row for the wallet, creating it
	// at zero if absent, locked FOR UPDATE. Holding this row lock for the
	// rest of the grant transaction is what makes the limit check and the
	// usage increment one atomic step.
	UsageForUpdate(tx *gorm.DB, walletID uint, day time.Time) (*models.RewardUsage, error)
	SaveUsage(tx *gorm.DB, usage *models.RewardUsage) error
	// MonthUsage sums the wallet's rewarded amounts for the month holding
	// day, today's locked row included.
	MonthUsage(tx *gorm.DB, walletID uint, day time.Time) (decimal.Decimal, error)
}

type rewardRepository struct {
	db *gorm.DB
}

func NewRewardRepository(db *gorm.DB) RewardRepository {
	return &rewardRepository{db: db}
}

// RoleLimit returns nil with no error when the role has no limit row;
// the guard treats that as rewards forbidden.
func (r *rewardRepository) RoleLimit(kind models.OwnerKind) (*models.RewardLimit, error) {
	var limit models.RewardLimit
	err := r.db.Where("owner_kind = ?", kind).First(&limit).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get role limit: %w", err)
	}
	return &limit, nil
}

func (r *rewardRepository) WalletOverride(walletID uint) (*models.RewardLimitUser, error) {
	var override models.RewardLimitUser
	err := r.db.Where("wallet_id = ?", walletID).First(&override).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get wallet override: %w", err)
	}
	return &override, nil
}

func (r *rewardRepository) UpsertRoleLimit(limit *models.RewardLimit) error {
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_kind"}},
		DoUpdates: clause.AssignmentColumns([]string{"daily_limit", "monthly_limit", "is_active", "updated_at"}),
	}).Create(limit).Error
	if err != nil {
		return fmt.Errorf("failed to upsert role limit: %w", err)
	}
	return nil
}

func (r *rewardRepository) UpsertWalletOverride(override *models.RewardLimitUser) error {
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "wallet_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"daily_limit", "monthly_limit", "is_active", "updated_at"}),
	}).Create(override).Error
	if err != nil {
		return fmt.Errorf("failed to upsert wallet override: %w", err)
	}
	return nil
}

func (r *rewardRepository) UsageForUpdate(tx *gorm.DB, walletID uint, day time.Time) (*models.RewardUsage, error) {
	day = truncateToDay(day)

	// A plain insert that hits the unique index would abort the whole
	// transaction under Postgres, so seed the row with ON CONFLICT DO
	// NOTHING and take the lock with a re-read either way.
	seed := models.RewardUsage{WalletID: walletID, Date: day, AmountRewarded: decimal.Zero}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "wallet_id"}, {Name: "date"}},
		DoNothing: true,
	}).Create(&seed).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create reward usage: %w", err)
	}

	var usage models.RewardUsage
	err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("wallet_id = ? AND date = ?", walletID, day).
		First(&usage).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock reward usage: %w", err)
	}
	return &usage, nil
}

func (r *rewardRepository) SaveUsage(tx *gorm.DB, usage *models.RewardUsage) error {
	if err := tx.Save(usage).Error; err != nil {
		return fmt.Errorf("failed to save reward usage: %w", err)
	}
	return nil
}

func (r *rewardRepository) MonthUsage(tx *gorm.DB, walletID uint, day time.Time) (decimal.Decimal, error) {
	start := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	var total decimal.Decimal
	err := tx.Model(&models.RewardUsage{}).
		Where("wallet_id = ? AND date >= ? AND date < ?", walletID, start, end).
		Select("COALESCE(SUM(amount_rewarded), 0)").
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum month usage: %w", err)
	}
	return total, nil
}

func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

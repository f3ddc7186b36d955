package repositories

import (
	"fmt"
	"time"

	"coinforge/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// HistoryFilter narrows a wallet's transaction history query.
type HistoryFilter struct {
	Type   string
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

// VolumeRow is one (type, day) aggregate from the ledger.
type VolumeRow struct {
	Type   string          `json:"type"`
	Day    time.Time       `json:"day"`
	Count  int64           `json:"count"`
	Volume decimal.Decimal `json:"volume"`
}

// CounterpartyRow ranks wallets by reward volume given or received.
type CounterpartyRow struct {
	WalletID uint            `json:"wallet_id"`
	Total    decimal.Decimal `json:"total"`
}

// LedgerRepository owns the append-only Transaction table. Rows are never
// updated or deleted.
type LedgerRepository interface {
	Append(tx *gorm.DB, entry *models.Transaction) error
	History(walletID uint, f HistoryFilter) ([]models.Transaction, int64, error)
	SumByBalanceType(walletID uint, balanceType models.BalanceType) (decimal.Decimal, error)
	VolumeByTypeDay(from, to time.Time) ([]VolumeRow, error)
	TopRewardGivers(from, to time.Time, limit int) ([]CounterpartyRow, error)
	TopRewardReceivers(from, to time.Time, limit int) ([]CounterpartyRow, error)
}

type ledgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) Append(tx *gorm.DB, entry *models.Transaction) error {
	if err := tx.Create(entry).Error; err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

func (r *ledgerRepository) History(walletID uint, f HistoryFilter) ([]models.Transaction, int64, error) {
	q := r.db.Model(&models.Transaction{}).Where("wallet_id = ?", walletID)
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	var rows []models.Transaction
	err := q.Order("created_at DESC, id DESC").Limit(f.Limit).Offset(f.Offset).Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get transaction history: %w", err)
	}
	return rows, total, nil
}

// SumByBalanceType reconciles a wallet: the sum of its ledger amounts for
// one balance type equals that balance, since wallets open at zero.
func (r *ledgerRepository) SumByBalanceType(walletID uint, balanceType models.BalanceType) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.Model(&models.Transaction{}).
		Where("wallet_id = ? AND balance_type = ?", walletID, balanceType).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum transactions: %w", err)
	}
	return total, nil
}

func (r *ledgerRepository) VolumeByTypeDay(from, to time.Time) ([]VolumeRow, error) {
	var rows []VolumeRow
	err := r.db.Model(&models.Transaction{}).
		Where("created_at BETWEEN ? AND ?", from, to).
		Select("type, DATE_TRUNC('day', created_at) as day, COUNT(*) as count, COALESCE(SUM(ABS(amount)), 0) as volume").
		Group("type, day").
		Order("day DESC, type").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate volume: %w", err)
	}
	return rows, nil
}

func (r *ledgerRepository) TopRewardGivers(from, to time.Time, limit int) ([]CounterpartyRow, error) {
	return r.topRewardParties(from, to, limit, true)
}

func (r *ledgerRepository) TopRewardReceivers(from, to time.Time, limit int) ([]CounterpartyRow, error) {
	return r.topRewardParties(from, to, limit, false)
}

func (r *ledgerRepository) topRewardParties(from, to time.Time, limit int, givers bool) ([]CounterpartyRow, error) {
	// Givers appear as the negative (budget debit) side of a reward pair,
	// receivers as the positive spendable side.
	q := r.db.Model(&models.Transaction{}).
		Where("type = ? AND created_at BETWEEN ? AND ?", models.TransactionTypeManualReward, from, to)
	if givers {
		q = q.Where("amount < 0")
	} else {
		q = q.Where("amount > 0")
	}

	var rows []CounterpartyRow
	err := q.Select("wallet_id, COALESCE(SUM(ABS(amount)), 0) as total").
		Group("wallet_id").
		Order("total DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to rank reward parties: %w", err)
	}
	return rows, nil
}

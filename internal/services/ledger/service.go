package ledger

import (
	"time"

	"coinforge/internal/models"
	"coinforge/internal/repositories"

	"github.com/shopspring/decimal"
)

// Service exposes the read side of the ledger: history and aggregate
// reporting. Both derive from Transaction rows only and never mutate.
type Service interface {
	History(walletID uint, f repositories.HistoryFilter) ([]models.Transaction, int64, error)
	VolumeByTypeDay(from, to time.Time) ([]repositories.VolumeRow, error)
	TopRewardGivers(from, to time.Time, limit int) ([]repositories.CounterpartyRow, error)
	TopRewardReceivers(from, to time.Time, limit int) ([]repositories.CounterpartyRow, error)
	// Reconcile recomputes a wallet's spendable balance from its ledger
	// rows and reports it next to the stored value. The two are equal
	// unless the append-with-mutation contract has been broken.
	Reconcile(walletID uint) (stored, ledgerSum decimal.Decimal, err error)
}

type service struct {
	wallets repositories.WalletRepository
	ledger  repositories.LedgerRepository
}

func NewService(wallets repositories.WalletRepository, ledger repositories.LedgerRepository) Service {
	return &service{wallets: wallets, ledger: ledger}
}

func (s *service) History(walletID uint, f repositories.HistoryFilter) ([]models.Transaction, int64, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	return s.ledger.History(walletID, f)
}

func (s *service) VolumeByTypeDay(from, to time.Time) ([]repositories.VolumeRow, error) {
	return s.ledger.VolumeByTypeDay(from, to)
}

func (s *service) TopRewardGivers(from, to time.Time, limit int) ([]repositories.CounterpartyRow, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	return s.ledger.TopRewardGivers(from, to, limit)
}

func (s *service) TopRewardReceivers(from, to time.Time, limit int) ([]repositories.CounterpartyRow, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	return s.ledger.TopRewardReceivers(from, to, limit)
}

func (s *service) Reconcile(walletID uint) (decimal.Decimal, decimal.Decimal, error) {
	wallet, err := s.wallets.GetByID(walletID)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	sum, err := s.ledger.SumByBalanceType(walletID, models.BalanceSpendable)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return wallet.SpendableBalance, sum, nil
}

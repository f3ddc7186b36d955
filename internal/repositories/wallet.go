package repositories

import (
	stderrors "errors"
	"fmt"

	domain "coinforge/internal/errors"
	"coinforge/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WalletRepository owns wallet rows. Balance writes happen only through
// Save inside an enclosing transaction that also appends the ledger row.
type WalletRepository interface {
	EnsureWallet(kind models.OwnerKind, ownerID uint) (*models.Wallet, error)
	GetSystemWallet() (*models.Wallet, error)
	GetByID(id uint) (*models.Wallet, error)
	GetByOwner(kind models.OwnerKind, ownerID uint) (*models.Wallet, error)
	GetForUpdate(tx *gorm.DB, id uint) (*models.Wallet, error)
	GetPairForUpdate(tx *gorm.DB, a, b uint) (*models.Wallet, *models.Wallet, error)
	Save(tx *gorm.DB, wallet *models.Wallet) error
}

type walletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) WalletRepository {
	return &walletRepository{db: db}
}

// EnsureWallet returns the wallet for (kind, ownerID), creating it with
// zero balances on first touch. Two concurrent first-touches race on the
// unique owner index; the loser re-reads the winner's row.
func (r *walletRepository) EnsureWallet(kind models.OwnerKind, ownerID uint) (*models.Wallet, error) {
	wallet, err := r.GetByOwner(kind, ownerID)
	if err == nil {
		return wallet, nil
	}
	if err != domain.ErrWalletNotFound {
		return nil, err
	}

	wallet = &models.Wallet{OwnerKind: kind, OwnerID: ownerID}
	if err := r.db.Create(wallet).Error; err != nil {
		if stderrors.Is(err, gorm.ErrDuplicatedKey) {
			return r.GetByOwner(kind, ownerID)
		}
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}
	return wallet, nil
}

// GetSystemWallet fetches the singleton System wallet. Its absence is a
// startup problem, not a runtime one; cmd/server fails fast if this errors.
func (r *walletRepository) GetSystemWallet() (*models.Wallet, error) {
	return r.GetByOwner(models.OwnerSystem, models.SystemOwnerID)
}

func (r *walletRepository) GetByID(id uint) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.First(&wallet, id).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &wallet, nil
}

func (r *walletRepository) GetByOwner(kind models.OwnerKind, ownerID uint) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.Where("owner_kind = ? AND owner_id = ?", kind, ownerID).First(&wallet).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &wallet, nil
}

// GetForUpdate loads a wallet with a row lock inside tx. Every flow that
// mutates a balance goes through here so concurrent operations on the same
// wallet serialize at the storage layer.
func (r *walletRepository) GetForUpdate(tx *gorm.DB, id uint) (*models.Wallet, error) {
	var wallet models.Wallet
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&wallet, id).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to lock wallet: %w", err)
	}
	return &wallet, nil
}

// GetPairForUpdate locks two wallets in ascending id order, the fixed
// global order that keeps opposite-direction transfers from deadlocking.
// Results come back in the argument order.
func (r *walletRepository) GetPairForUpdate(tx *gorm.DB, a, b uint) (*models.Wallet, *models.Wallet, error) {
	first, second := a, b
	if b < a {
		first, second = b, a
	}

	w1, err := r.GetForUpdate(tx, first)
	if err != nil {
		return nil, nil, err
	}
	w2, err := r.GetForUpdate(tx, second)
	if err != nil {
		return nil, nil, err
	}

	if first == a {
		return w1, w2, nil
	}
	return w2, w1, nil
}

func (r *walletRepository) Save(tx *gorm.DB, wallet *models.Wallet) error {
	if err := tx.Save(wallet).Error; err != nil {
		return fmt.Errorf("failed to save wallet: %w", err)
	}
	return nil
}

// Package wallet implements the wallet store: lazy get-or-create of
// wallets, the snapshot read view, coin issuance (mint/burn), expiring
// promotional grants, and balance locks.
package wallet

import (
	"context"
	"log"
	"time"

	domain "coinforge/internal/errors"
	"coinforge/internal/metrics"
	"coinforge/internal/models"
	"coinforge/internal/repositories"
	"coinforge/internal/repositories/cache"
	"coinforge/internal/services/ledger"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service is the wallet store plus the privileged balance operations that
// belong to no richer flow.
type Service interface {
	EnsureWallet(ctx context.Context, kind models.OwnerKind, ownerID uint) (*models.Wallet, error)
	GetSystemWallet() (*models.Wallet, error)
	Snapshot(ctx context.Context, kind models.OwnerKind, ownerID uint) (*Snapshot, error)
	InvalidateSnapshot(ctx context.Context, walletID uint)

	// Mint issues new coins into a wallet; Burn removes coins from one.
	// Both are admin operations audited against the target wallet, with the
	// System wallet recorded as counterparty on the ledger row.
	Mint(ctx context.Context, actor ledger.Actor, kind models.OwnerKind, ownerID uint, amount decimal.Decimal, note string) (*models.Transaction, error)
	Burn(ctx context.Context, actor ledger.Actor, walletID uint, amount decimal.Decimal, note string) (*models.Transaction, error)

	// GrantExpiring issues a use-it-or-lose-it promotional credit chunk.
	GrantExpiring(ctx context.Context, actor ledger.Actor, walletID uint, amount decimal.Decimal, expiresAt time.Time, note string) (*models.ExpiryBalance, error)

	// CreateLock reserves part of the spendable balance until release;
	// ReleaseLock returns the reservation early.
	CreateLock(ctx context.Context, actor ledger.Actor, walletID uint, amount decimal.Decimal, unlocksAt time.Time, lockType, note string) (*models.Lock, error)
	ReleaseLock(ctx context.Context, actor ledger.Actor, lockID uint, note string) error

	// SweepExpired lapses overdue chunks and releases due locks, one row
	// per storage transaction. Returns how many of each it processed.
	SweepExpired(ctx context.Context, batch int) (chunks, locks int, err error)
}

type service struct {
	db      *gorm.DB
	wallets repositories.WalletRepository
	expiry  repositories.ExpiryRepository
	locks   repositories.LockRepository
	audit   repositories.AuditRepository
	engine  *ledger.Engine
	cache   *cache.CacheService
}

func NewService(
	db *gorm.DB,
	wallets repositories.WalletRepository,
	expiry repositories.ExpiryRepository,
	locks repositories.LockRepository,
	audit repositories.AuditRepository,
	engine *ledger.Engine,
	cacheSvc *cache.CacheService,
) Service {
	if db == nil {
		panic("db is required")
	}
	if engine == nil {
		panic("ledger engine is required")
	}
	return &service{
		db:      db,
		wallets: wallets,
		expiry:  expiry,
		locks:   locks,
		audit:   audit,
		engine:  engine,
		cache:   cacheSvc,
	}
}

func (s *service) EnsureWallet(ctx context.Context, kind models.OwnerKind, ownerID uint) (*models.Wallet, error) {
	if !kind.Valid() || ownerID == 0 {
		return nil, domain.ErrInvalidOwner
	}
	return s.wallets.EnsureWallet(kind, ownerID)
}

func (s *service) GetSystemWallet() (*models.Wallet, error) {
	return s.wallets.GetSystemWallet()
}

func (s *service) Snapshot(ctx context.Context, kind models.OwnerKind, ownerID uint) (*Snapshot, error) {
	wallet, err := s.EnsureWallet(ctx, kind, ownerID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		var cached Snapshot
		if found, err := s.cache.Get(ctx, cache.WalletSnapshotKey(wallet.ID), &cached); err == nil && found {
			return &cached, nil
		}
	}

	now := time.Now().UTC()
	chunks, err := s.expiry.NextExpiring(wallet.ID, now, snapshotPreview)
	if err != nil {
		return nil, err
	}
	locks, err := s.locks.NextUnlocking(wallet.ID, snapshotPreview)
	if err != nil {
		return nil, err
	}

	expiring := decimal.Zero
	for i := range chunks {
		expiring = expiring.Add(chunks[i].Remaining())
	}

	snap := &Snapshot{
		WalletID:           wallet.ID,
		OwnerKind:          wallet.OwnerKind,
		OwnerID:            wallet.OwnerID,
		SpendableBalance:   wallet.SpendableBalance,
		EffectiveSpendable: wallet.EffectiveSpendable(),
		RewardBudget:       wallet.RewardBudget,
		LockedAmount:       wallet.LockedAmount,
		TotalEarned:        wallet.TotalEarned,
		TotalSpent:         wallet.TotalSpent,
		ExpiringCredits:    expiring,
		NextExpiring:       chunks,
		NextUnlocking:      locks,
		TakenAt:            now,
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cache.WalletSnapshotKey(wallet.ID), snap); err != nil {
			// Cache trouble never fails a read.
			log.Printf("failed to cache wallet snapshot: %v", err)
		}
	}
	return snap, nil
}

func (s *service) InvalidateSnapshot(ctx context.Context, walletID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cache.WalletSnapshotKey(walletID)); err != nil {
		log.Printf("failed to invalidate wallet snapshot %d: %v", walletID, err)
	}
}

func (s *service) Mint(ctx context.Context, actor ledger.Actor, kind models.OwnerKind, ownerID uint, amount decimal.Decimal, note string) (*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	target, err := s.EnsureWallet(ctx, kind, ownerID)
	if err != nil {
		return nil, err
	}
	system, err := s.wallets.GetSystemWallet()
	if err != nil {
		return nil, err
	}

	var entry *models.Transaction
	err = repositories.ExecuteInTransaction(s.db, func(tx *gorm.DB) error {
		locked, err := s.wallets.GetForUpdate(tx, target.ID)
		if err != nil {
			return err
		}

		before := locked.SpendableBalance
		entry, err = s.engine.Apply(tx, locked, ledger.Posting{
			Type:         models.TransactionTypeMint,
			Amount:       amount,
			BalanceType:  models.BalanceSpendable,
			Counterparty: &system.ID,
			Actor:        actor,
			Note:         note,
		})
		if err != nil {
			return err
		}

		return s.audit.Append(tx, &models.AuditLog{
			WalletID:  locked.ID,
			Action:    models.AuditActionMint,
			ActorKind: actor.Kind,
			ActorID:   actor.ID,
			Before:    before,
			Delta:     amount,
			After:     locked.SpendableBalance,
			Note:      note,
		})
	})
	if err != nil {
		metrics.RecordOperationError("mint", errorCode(err))
		return nil, err
	}

	s.InvalidateSnapshot(ctx, target.ID)
	return entry, nil
}

func (s *service) Burn(ctx context.Context, actor ledger.Actor, walletID uint, amount decimal.Decimal, note string) (*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	system, err := s.wallets.GetSystemWallet()
	if err != nil {
		return nil, err
	}

	var entry *models.Transaction
	err = repositories.ExecuteInTransaction(s.db, func(tx *gorm.DB) error {
		locked, err := s.wallets.GetForUpdate(tx, walletID)
		if err != nil {
			return err
		}
		if locked.EffectiveSpendable().LessThan(amount) {
			return domain.ErrInsufficientBalance
		}

		before := locked.SpendableBalance
		entry, err = s.engine.Apply(tx, locked, ledger.Posting{
			Type:         models.TransactionTypeBurn,
			Amount:       amount.Neg(),
			BalanceType:  models.BalanceSpendable,
			Counterparty: &system.ID,
			Actor:        actor,
			Note:         note,
		})
		if err != nil {
			return err
		}

		return s.audit.Append(tx, &models.AuditLog{
			WalletID:  locked.ID,
			Action:    models.AuditActionBurn,
			ActorKind: actor.Kind,
			ActorID:   actor.ID,
			Before:    before,
			Delta:     amount.Neg(),
			After:     locked.SpendableBalance,
			Note:      note,
		})
	})
	if err != nil {
		metrics.RecordOperationError("burn", errorCode(err))
		return nil, err
	}

	s.InvalidateSnapshot(ctx, walletID)
	return entry, nil
}

func (s *service) GrantExpiring(ctx context.Context, actor ledger.Actor, walletID uint, amount decimal.Decimal, expiresAt time.Time, note string) (*models.ExpiryBalance, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	if !expiresAt.After(time.Now().UTC()) {
		return nil, domain.ErrValidation
	}

	var chunk *models.ExpiryBalance
	err := repositories.ExecuteInTransaction(s.db, func(tx *gorm.DB) error {
		locked, err := s.wallets.GetForUpdate(tx, walletID)
		if err != nil {
			return err
		}

		chunk = &models.ExpiryBalance{
			WalletID:      locked.ID,
			AmountTotal:   amount,
			AmountUsed:    decimal.Zero,
			AmountExpired: decimal.Zero,
			ExpiresAt:     expiresAt.UTC(),
			Note:          note,
		}
		if err := s.expiry.Create(tx, chunk); err != nil {
			return err
		}

		entry := &models.Transaction{
			WalletID:      locked.ID,
			Type:          models.TransactionTypeExpiryGrant,
			Amount:        amount,
			BalanceType:   models.BalanceExpiry,
			BalanceBefore: decimal.Zero,
			BalanceAfter:  amount,
			ActorKind:     actor.Kind,
			ActorID:       actor.ID,
			Note:          note,
			Metadata: models.JSON{
				"expiry_balance_id": chunk.ID,
				"expires_at":        chunk.ExpiresAt,
			},
		}
		if err := s.engine.AppendRaw(tx, entry); err != nil {
			return err
		}

		return s.audit.Append(tx, &models.AuditLog{
			WalletID:  locked.ID,
			Action:    models.AuditActionExpiryGrant,
			ActorKind: actor.Kind,
			ActorID:   actor.ID,
			Before:    decimal.Zero,
			Delta:     amount,
			After:     amount,
			Note:      note,
		})
	})
	if err != nil {
		metrics.RecordOperationError("grant_expiring", errorCode(err))
		return nil, err
	}

	s.InvalidateSnapshot(ctx, walletID)
	return chunk, nil
}

func (s *service) CreateLock(ctx context.Context, actor ledger.Actor, walletID uint, amount decimal.Decimal, unlocksAt time.Time, lockType, note string) (*models.Lock, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	if !unlocksAt.After(time.Now().UTC()) {
		return nil, domain.ErrValidation
	}

	var lock *models.Lock
	err := repositories.ExecuteInTransaction(s.db, func(tx *gorm.DB) error {
		locked, err := s.wallets.GetForUpdate(tx, walletID)
		if err != nil {
			return err
		}
		// A lock reserves funds that exist: it may not exceed what is
		// still effectively spendable.
		if locked.EffectiveSpendable().LessThan(amount) {
			return domain.ErrInsufficientBalance
		}

		lock = &models.Lock{
			WalletID:  locked.ID,
			Amount:    amount,
			Remaining: amount,
			UnlocksAt: unlocksAt.UTC(),
			LockType:  lockType,
			Note:      note,
		}
		if err := s.locks.Create(tx, lock); err != nil {
			return err
		}

		locked.LockedAmount = locked.LockedAmount.Add(amount)
		if err := s.wallets.Save(tx, locked); err != nil {
			return err
		}

		return s.audit.Append(tx, &models.AuditLog{
			WalletID:  locked.ID,
			Action:    models.AuditActionLockCreate,
			ActorKind: actor.Kind,
			ActorID:   actor.ID,
			Before:    locked.LockedAmount.Sub(amount),
			Delta:     amount,
			After:     locked.LockedAmount,
			Note:      note,
		})
	})
	if err != nil {
		metrics.RecordOperationError("create_lock", errorCode(err))
		return nil, err
	}

	s.InvalidateSnapshot(ctx, walletID)
	return lock, nil
}

func (s *service) ReleaseLock(ctx context.Context, actor ledger.Actor, lockID uint, note string) error {
	var walletID uint
	err := repositories.ExecuteInTransaction(s.db, func(tx *gorm.DB) error {
		lock, err := s.locks.GetForUpdate(tx, lockID)
		if err != nil {
			return err
		}
		if lock.IsReleased {
			return domain.ErrLockReleased
		}
		walletID = lock.WalletID

		wallet, err := s.wallets.GetForUpdate(tx, lock.WalletID)
		if err != nil {
			return err
		}
		return s.releaseLockLocked(tx, wallet, lock, actor, note)
	})
	if err != nil {
		metrics.RecordOperationError("release_lock", errorCode(err))
		return err
	}

	s.InvalidateSnapshot(ctx, walletID)
	return nil
}

// releaseLockLocked releases a lock whose row and wallet are already locked
// in tx. Shared by the explicit release path and the sweep.
func (s *service) releaseLockLocked(tx *gorm.DB, wallet *models.Wallet, lock *models.Lock, actor ledger.Actor, note string) error {
	remaining := lock.Remaining
	lock.IsReleased = true
	lock.Remaining = decimal.Zero
	if err := s.locks.Save(tx, lock); err != nil {
		return err
	}

	before := wallet.LockedAmount
	wallet.LockedAmount = wallet.LockedAmount.Sub(remaining)
	if wallet.LockedAmount.IsNegative() {
		wallet.LockedAmount = decimal.Zero
	}
	if err := s.wallets.Save(tx, wallet); err != nil {
		return err
	}

	return s.audit.Append(tx, &models.AuditLog{
		WalletID:  wallet.ID,
		Action:    models.AuditActionLockRelease,
		ActorKind: actor.Kind,
		ActorID:   actor.ID,
		Before:    before,
		Delta:     remaining.Neg(),
		After:     wallet.LockedAmount,
		Note:      note,
	})
}

func errorCode(err error) string {
	if derr, ok := err.(*domain.DomainError); ok {
		return derr.Code
	}
	return "INTERNAL"
}

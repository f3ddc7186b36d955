package wallet

import (
	"context"
	"log"
	"time"

	"coinforge/internal/metrics"
	"coinforge/internal/models"
	"coinforge/internal/repositories"
	"coinforge/internal/services/ledger"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SweepExpired lapses overdue promotional chunks and releases locks whose
// unlock time has passed. Each chunk and each lock is handled in its own
// storage transaction; the sweep never holds more than the single row it is
// updating, so it stays out of the way of live spends.
func (s *service) SweepExpired(ctx context.Context, batch int) (int, int, error) {
	if batch <= 0 {
		batch = 100
	}
	now := time.Now().UTC()

	chunksDone := 0
	for chunksDone < batch {
		swept, err := s.sweepOneChunk(ctx, now)
		if err != nil {
			return chunksDone, 0, err
		}
		if !swept {
			break
		}
		chunksDone++
	}

	locksDone := 0
	for locksDone < batch {
		released, err := s.sweepOneLock(ctx, now)
		if err != nil {
			return chunksDone, locksDone, err
		}
		if !released {
			break
		}
		locksDone++
	}

	return chunksDone, locksDone, nil
}

func (s *service) sweepOneChunk(ctx context.Context, now time.Time) (bool, error) {
	swept := false
	var walletID uint
	err := repositories.ExecuteInTransaction(s.db, func(tx *gorm.DB) error {
		due, err := s.expiry.DueForUpdate(tx, now, 1)
		if err != nil {
			return err
		}
		if len(due) == 0 {
			return nil
		}

		chunk := &due[0]
		walletID = chunk.WalletID
		lapsed := chunk.Remaining()
		chunk.AmountExpired = chunk.AmountExpired.Add(lapsed)
		if err := s.expiry.Save(tx, chunk); err != nil {
			return err
		}

		entry := &models.Transaction{
			WalletID:      chunk.WalletID,
			Type:          models.TransactionTypeExpiryLapse,
			Amount:        lapsed.Neg(),
			BalanceType:   models.BalanceExpiry,
			BalanceBefore: lapsed,
			BalanceAfter:  decimal.Zero,
			Metadata: models.JSON{
				"expiry_balance_id": chunk.ID,
				"expires_at":        chunk.ExpiresAt,
			},
		}
		if err := s.engine.AppendRaw(tx, entry); err != nil {
			return err
		}

		swept = true
		return nil
	})
	if swept {
		metrics.RecordExpiredChunk()
		s.InvalidateSnapshot(ctx, walletID)
	}
	return swept, err
}

func (s *service) sweepOneLock(ctx context.Context, now time.Time) (bool, error) {
	released := false
	var walletID uint
	err := repositories.ExecuteInTransaction(s.db, func(tx *gorm.DB) error {
		due, err := s.locks.DueForUpdate(tx, now, 1)
		if err != nil {
			return err
		}
		if len(due) == 0 {
			return nil
		}

		lock := &due[0]
		walletID = lock.WalletID
		wallet, err := s.wallets.GetForUpdate(tx, lock.WalletID)
		if err != nil {
			return err
		}

		actor := ledger.Actor{Kind: models.OwnerSystem, ID: models.SystemOwnerID}
		if err := s.releaseLockLocked(tx, wallet, lock, actor, "auto-release on unlock time"); err != nil {
			return err
		}
		released = true
		return nil
	})
	if released {
		s.InvalidateSnapshot(ctx, walletID)
	}
	return released, err
}

// Sweeper runs SweepExpired on a fixed interval until its context ends.
type Sweeper struct {
	service  Service
	interval time.Duration
	batch    int
}

func NewSweeper(svc Service, interval time.Duration, batch int) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{service: svc, interval: interval, batch: batch}
}

// Start blocks until ctx is done; callers run it in a goroutine.
func (sw *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			chunks, locks, err := sw.service.SweepExpired(ctx, sw.batch)
			if err != nil {
				log.Printf("expiry sweep failed: %v", err)
				continue
			}
			if chunks > 0 || locks > 0 {
				log.Printf("expiry sweep: lapsed %d chunks, released %d locks", chunks, locks)
			}
		}
	}
}

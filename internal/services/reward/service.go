// Package reward implements reward-budget allocation and the manual reward
// flow, gated by the daily/monthly limit guard. The limit check and the
// usage increment run under one row lock on the day's usage row, inside the
// same storage transaction as the balance moves: two concurrent grants on
// the same giver serialize on that lock, so both can never pass a limit
// only one of them fits under.
package reward

import (
	"context"
	"time"

	domain "coinforge/internal/errors"
	"coinforge/internal/metrics"
	"coinforge/internal/models"
	"coinforge/internal/repositories"
	"coinforge/internal/services/ledger"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service grants rewards and allocates reward budgets.
type Service interface {
	// Grant moves amount from the giver's reward budget to the receiver's
	// spendable balance, one atomic scope, limit-guarded.
	Grant(ctx context.Context, actor ledger.Actor, giverWalletID uint, receiverKind models.OwnerKind, receiverID uint, amount decimal.Decimal, note string) (*GrantResult, error)

	// AllocateBudget replenishes a mentor/salesman reward budget from the
	// System wallet's spendable balance. Admin only (enforced by the
	// calling layer; the actor is recorded).
	AllocateBudget(ctx context.Context, actor ledger.Actor, targetWalletID uint, amount decimal.Decimal, note string) (*GrantResult, error)

	// EffectiveLimits resolves the caps that would gate a grant from the
	// wallet right now, for display.
	EffectiveLimits(walletID uint, kind models.OwnerKind) (*Limits, error)

	SetRoleLimit(ctx context.Context, actor ledger.Actor, limit *models.RewardLimit) error
	SetWalletOverride(ctx context.Context, actor ledger.Actor, override *models.RewardLimitUser) error
}

// Limits is a resolved pair of caps; nil means unlimited on that axis.
type Limits struct {
	DailyLimit   *decimal.Decimal `json:"daily_limit"`
	MonthlyLimit *decimal.Decimal `json:"monthly_limit"`
	Source       string           `json:"source"` // "override" or "role"
}

// GrantResult carries the linked pair of ledger rows a grant produced.
type GrantResult struct {
	Debit  *models.Transaction `json:"debit"`
	Credit *models.Transaction `json:"credit"`
}

type service struct {
	db      *gorm.DB
	wallets repositories.WalletRepository
	rewards repositories.RewardRepository
	audit   repositories.AuditRepository
	engine  *ledger.Engine

	invalidate func(ctx context.Context, walletID uint)
}

func NewService(
	db *gorm.DB,
	wallets repositories.WalletRepository,
	rewards repositories.RewardRepository,
	audit repositories.AuditRepository,
	engine *ledger.Engine,
	invalidate func(ctx context.Context, walletID uint),
) Service {
	if db == nil {
		panic("db is required")
	}
	if engine == nil {
		panic("ledger engine is required")
	}
	if invalidate == nil {
		invalidate = func(context.Context, uint) {}
	}
	return &service{
		db:         db,
		wallets:    wallets,
		rewards:    rewards,
		audit:      audit,
		engine:     engine,
		invalidate: invalidate,
	}
}

// EffectiveLimits resolves an active per-wallet override, else the active
// role default. No active row on either level means rewards are forbidden
// for this wallet: the guard fails closed.
func (s *service) EffectiveLimits(walletID uint, kind models.OwnerKind) (*Limits, error) {
	override, err := s.rewards.WalletOverride(walletID)
	if err != nil {
		return nil, err
	}
	if override != nil && override.IsActive {
		return &Limits{DailyLimit: override.DailyLimit, MonthlyLimit: override.MonthlyLimit, Source: "override"}, nil
	}

	role, err := s.rewards.RoleLimit(kind)
	if err != nil {
		return nil, err
	}
	if role != nil && role.IsActive {
		return &Limits{DailyLimit: role.DailyLimit, MonthlyLimit: role.MonthlyLimit, Source: "role"}, nil
	}

	return nil, domain.ErrRewardsForbidden
}

func (s *service) Grant(ctx context.Context, actor ledger.Actor, giverWalletID uint, receiverKind models.OwnerKind, receiverID uint, amount decimal.Decimal, note string) (*GrantResult, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	giver, err := s.wallets.GetByID(giverWalletID)
	if err != nil {
		return nil, err
	}
	if !giver.OwnerKind.CanHoldRewardBudget() {
		return nil, domain.ErrBudgetNotAllowed
	}

	// Receiver wallet may not exist yet; its creation is idempotent and
	// safe outside the grant transaction.
	receiver, err := s.wallets.EnsureWallet(receiverKind, receiverID)
	if err != nil {
		return nil, err
	}
	if receiver.ID == giver.ID {
		return nil, domain.ErrValidation
	}

	limits, err := s.EffectiveLimits(giver.ID, giver.OwnerKind)
	if err != nil {
		metrics.RecordRewardRejection("forbidden")
		return nil, err
	}

	result := &GrantResult{}
	err = repositories.ExecuteInTransaction(s.db, func(tx *gorm.DB) error {
		giverLocked, receiverLocked, err := s.wallets.GetPairForUpdate(tx, giver.ID, receiver.ID)
		if err != nil {
			return err
		}
		if giverLocked.RewardBudget.LessThan(amount) {
			return domain.ErrInsufficientBudget
		}

		if err := s.consumeAllowance(tx, giverLocked.ID, amount, limits); err != nil {
			return err
		}

		budgetBefore := giverLocked.RewardBudget
		meta := models.JSON{"receiver_wallet_id": receiverLocked.ID}

		result.Debit, err = s.engine.Apply(tx, giverLocked, ledger.Posting{
			Type:         models.TransactionTypeManualReward,
			Amount:       amount.Neg(),
			BalanceType:  models.BalanceRewardBudget,
			Counterparty: &receiverLocked.ID,
			Actor:        actor,
			Note:         note,
			Metadata:     meta,
		})
		if err != nil {
			return err
		}

		result.Credit, err = s.engine.Apply(tx, receiverLocked, ledger.Posting{
			Type:         models.TransactionTypeManualReward,
			Amount:       amount,
			BalanceType:  models.BalanceSpendable,
			Counterparty: &giverLocked.ID,
			Actor:        actor,
			Note:         note,
			Metadata:     models.JSON{"giver_wallet_id": giverLocked.ID},
		})
		if err != nil {
			return err
		}

		return s.audit.Append(tx, &models.AuditLog{
			WalletID:  giverLocked.ID,
			Action:    models.AuditActionReward,
			ActorKind: actor.Kind,
			ActorID:   actor.ID,
			Before:    budgetBefore,
			Delta:     amount.Neg(),
			After:     giverLocked.RewardBudget,
			Note:      note,
		})
	})
	if err != nil {
		metrics.RecordOperationError("reward_grant", errorCode(err))
		return nil, err
	}

	s.invalidate(ctx, giver.ID)
	s.invalidate(ctx, receiver.ID)
	return result, nil
}

// consumeAllowance locks today's usage row, verifies both caps with the
// pending amount included, and increments the accumulator. The caller's
// transaction holds the row lock until commit, so a concurrent grant waits
// here and re-reads the incremented usage.
func (s *service) consumeAllowance(tx *gorm.DB, walletID uint, amount decimal.Decimal, limits *Limits) error {
	now := time.Now().UTC()

	usage, err := s.rewards.UsageForUpdate(tx, walletID, now)
	if err != nil {
		return err
	}

	if limits.DailyLimit != nil && usage.AmountRewarded.Add(amount).GreaterThan(*limits.DailyLimit) {
		metrics.RecordRewardRejection("daily")
		return domain.ErrDailyLimitExceeded
	}

	if limits.MonthlyLimit != nil {
		monthTotal, err := s.rewards.MonthUsage(tx, walletID, now)
		if err != nil {
			return err
		}
		if monthTotal.Add(amount).GreaterThan(*limits.MonthlyLimit) {
			metrics.RecordRewardRejection("monthly")
			return domain.ErrMonthlyLimitExceeded
		}
	}

	usage.AmountRewarded = usage.AmountRewarded.Add(amount)
	return s.rewards.SaveUsage(tx, usage)
}

func (s *service) AllocateBudget(ctx context.Context, actor ledger.Actor, targetWalletID uint, amount decimal.Decimal, note string) (*GrantResult, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	target, err := s.wallets.GetByID(targetWalletID)
	if err != nil {
		return nil, err
	}
	if !target.OwnerKind.CanHoldRewardBudget() {
		return nil, domain.ErrBudgetNotAllowed
	}

	system, err := s.wallets.GetSystemWallet()
	if err != nil {
		return nil, err
	}

	result := &GrantResult{}
	err = repositories.ExecuteInTransaction(s.db, func(tx *gorm.DB) error {
		systemLocked, targetLocked, err := s.wallets.GetPairForUpdate(tx, system.ID, target.ID)
		if err != nil {
			return err
		}
		if systemLocked.EffectiveSpendable().LessThan(amount) {
			return domain.ErrInsufficientBalance
		}

		budgetBefore := targetLocked.RewardBudget

		result.Debit, err = s.engine.Apply(tx, systemLocked, ledger.Posting{
			Type:         models.TransactionTypeManualRewardBudget,
			Amount:       amount.Neg(),
			BalanceType:  models.BalanceSpendable,
			Counterparty: &targetLocked.ID,
			Actor:        actor,
			Note:         note,
		})
		if err != nil {
			return err
		}

		result.Credit, err = s.engine.Apply(tx, targetLocked, ledger.Posting{
			Type:         models.TransactionTypeManualRewardBudget,
			Amount:       amount,
			BalanceType:  models.BalanceRewardBudget,
			Counterparty: &systemLocked.ID,
			Actor:        actor,
			Note:         note,
		})
		if err != nil {
			return err
		}

		return s.audit.Append(tx, &models.AuditLog{
			WalletID:  targetLocked.ID,
			Action:    models.AuditActionBudgetAllocate,
			ActorKind: actor.Kind,
			ActorID:   actor.ID,
			Before:    budgetBefore,
			Delta:     amount,
			After:     targetLocked.RewardBudget,
			Note:      note,
		})
	})
	if err != nil {
		metrics.RecordOperationError("budget_allocate", errorCode(err))
		return nil, err
	}

	s.invalidate(ctx, system.ID)
	s.invalidate(ctx, target.ID)
	return result, nil
}

func (s *service) SetRoleLimit(ctx context.Context, actor ledger.Actor, limit *models.RewardLimit) error {
	if !limit.OwnerKind.Valid() {
		return domain.ErrInvalidOwner
	}
	if err := s.rewards.UpsertRoleLimit(limit); err != nil {
		return err
	}
	return s.auditLimitChange(actor, 0, "role limit "+string(limit.OwnerKind))
}

func (s *service) SetWalletOverride(ctx context.Context, actor ledger.Actor, override *models.RewardLimitUser) error {
	if _, err := s.wallets.GetByID(override.WalletID); err != nil {
		return err
	}
	if err := s.rewards.UpsertWalletOverride(override); err != nil {
		return err
	}
	return s.auditLimitChange(actor, override.WalletID, "wallet override")
}

// auditLimitChange writes the trail row for a limit edit. Role-level edits
// have no single wallet; they are recorded against the System wallet.
func (s *service) auditLimitChange(actor ledger.Actor, walletID uint, note string) error {
	if walletID == 0 {
		system, err := s.wallets.GetSystemWallet()
		if err != nil {
			return err
		}
		walletID = system.ID
	}
	return s.audit.Append(s.db, &models.AuditLog{
		WalletID:  walletID,
		Action:    models.AuditActionLimitChange,
		ActorKind: actor.Kind,
		ActorID:   actor.ID,
		Before:    decimal.Zero,
		Delta:     decimal.Zero,
		After:     decimal.Zero,
		Note:      note,
	})
}

func errorCode(err error) string {
	if derr, ok := err.(*domain.DomainError); ok {
		return derr.Code
	}
	return "INTERNAL"
}

package handlers

import (
	"strconv"
	"time"

	domain "coinforge/internal/errors"
	"coinforge/internal/models"
	"coinforge/internal/repositories"
	"coinforge/internal/services/fiat"
	"coinforge/internal/services/ledger"
	"coinforge/internal/services/reward"
	"coinforge/internal/services/store"
	"coinforge/internal/services/wallet"
	"coinforge/internal/utils/pagination"
	"coinforge/internal/utils/response"
	"coinforge/internal/utils/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// AdminHandler groups the operator surface: issuance, budgets, limits,
// locks, rates, catalog management, audit and reporting.
type AdminHandler struct {
	walletService wallet.Service
	rewardService reward.Service
	storeService  store.Service
	fiatService   fiat.Service
	ledgerService ledger.Service
	audit         repositories.AuditRepository
}

func NewAdminHandler(
	walletService wallet.Service,
	rewardService reward.Service,
	storeService store.Service,
	fiatService fiat.Service,
	ledgerService ledger.Service,
	audit repositories.AuditRepository,
) *AdminHandler {
	return &AdminHandler{
		walletService: walletService,
		rewardService: rewardService,
		storeService:  storeService,
		fiatService:   fiatService,
		ledgerService: ledgerService,
		audit:         audit,
	}
}

func parseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, domain.ErrInvalidAmount
	}
	return amount, nil
}

// Mint creates coins into a wallet's spendable balance.
func (h *AdminHandler) Mint(c *fiber.Ctx) error {
	claims, err := extractClaims(c)
	if err != nil {
		return response.Unauthorized(c, "invalid claims")
	}

	var input struct {
		OwnerKind string `json:"owner_kind" validate:"required"`
		OwnerID   uint   `json:"owner_id" validate:"required"`
		Amount    string `json:"amount" validate:"required"`
		Note      string `json:"note"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "invalid request format")
	}
	if err := validation.Struct(input); err != nil {
		return response.BadRequest(c, validation.Describe(err))
	}

	amount, err := parseAmount(input.Amount)
	if err != nil {
		return response.DomainError(c, err)
	}

	txn, err := h.walletService.Mint(c.Context(), actorFrom(claims), models.OwnerKind(input.OwnerKind), input.OwnerID, amount, input.Note)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Created(c, txn)
}

// Burn destroys coins from a wallet's spendable balance.
func (h *AdminHandler) Burn(c *fiber.Ctx) error {
	claims, err := extractClaims(c)
	if err != nil {
		return response.Unauthorized(c, "invalid claims")
	}

	var input struct {
		WalletID uint   `json:"wallet_id" validate:"required"`
		Amount   string `json:"amount" validate:"required"`
		Note     string `json:"note"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "invalid request format")
	}
	if err := validation.Struct(input); err != nil {
		return response.BadRequest(c, validation.Describe(err))
	}

	amount, err := parseAmount(input.Amount)
	if err != nil {
		return response.DomainError(c, err)
	}

	txn, err := h.walletService.Burn(c.Context(), actorFrom(claims), input.WalletID, amount, input.Note)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Created(c, txn)
}

// GrantExpiring credits a wallet with coins that lapse at a deadline.
func (h *AdminHandler) GrantExpiring(c *fiber.Ctx) error {
	claims, err := extractClaims(c)
	if err != nil {
		return response.Unauthorized(c, "invalid claims")
	}

	var input struct {
		WalletID  uint   `json:"wallet_id" validate:"required"`
		Amount    string `json:"amount" validate:"required"`
		ExpiresAt string `json:"expires_at" validate:"required"`
		Note      string `json:"note"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "invalid request format")
	}
	if err := validation.Struct(input); err != nil {
		return response.BadRequest(c, validation.Describe(err))
	}

	amount, err := parseAmount(input.Amount)
	if err != nil {
		return response.DomainError(c, err)
	}
	expiresAt, err := time.Parse(time.RFC3339, input.ExpiresAt)
	if err != nil {
		return response.BadRequest(c, "expires_at must be RFC3339")
	}

	chunk, err := h.walletService.GrantExpiring(c.Context(), actorFrom(claims), input.WalletID, amount, expiresAt, input.Note)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Created(c, chunk)
}

// AllocateBudget moves spendable coins from the System wallet into a
// mentor or salesman reward budget.
func (h *AdminHandler) AllocateBudget(c *fiber.Ctx) error {
	claims, err := extractClaims(c)
	if err != nil {
		return response.Unauthorized(c, "invalid claims")
	}

	var input struct {
		WalletID uint   `json:"wallet_id" validate:"required"`
		Amount   string `json:"amount" validate:"required"`
		Note     string `json:"note"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "invalid request format")
	}
	if err := validation.Struct(input); err != nil {
		return response.BadRequest(c, validation.Describe(err))
	}

	amount, err := parseAmount(input.Amount)
	if err != nil {
		return response.DomainError(c, err)
	}

	result, err := h.rewardService.AllocateBudget(c.Context(), actorFrom(claims), input.WalletID, amount, input.Note)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Created(c, result)
}

// CreateLock places a hold on part of a wallet's spendable balance.
func (h *AdminHandler) CreateLock(c *fiber.Ctx) error {
	claims, err := extractClaims(c)
	if err != nil {
		return response.Unauthorized(c, "invalid claims")
	}

	var input struct {
		WalletID  uint   `json:"wallet_id" validate:"required"`
		Amount    string `json:"amount" validate:"required"`
		UnlocksAt string `json:"unlocks_at" validate:"required"`
		LockType  string `json:"lock_type" validate:"required"`
		Note      string `json:"note"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "invalid request format")
	}
	if err := validation.Struct(input); err != nil {
		return response.BadRequest(c, validation.Describe(err))
	}

	amount, err := parseAmount(input.Amount)
	if err != nil {
		return response.DomainError(c, err)
	}
	unlocksAt, err := time.Parse(time.RFC3339, input.UnlocksAt)
	if err != nil {
		return response.BadRequest(c, "unlocks_at must be RFC3339")
	}

	lock, err := h.walletService.CreateLock(c.Context(), actorFrom(claims), input.WalletID, amount, unlocksAt, input.LockType, input.Note)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Created(c, lock)
}

// ReleaseLock releases a hold ahead of its deadline.
func (h *AdminHandler) ReleaseLock(c *fiber.Ctx) error {
	claims, err := extractClaims(c)
	if err != nil {
		return response.Unauthorized(c, "invalid claims")
	}

	lockID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "invalid lock id")
	}

	var input struct {
		Note string `json:"note"`
	}
	_ = c.BodyParser(&input)

	if err := h.walletService.ReleaseLock(c.Context(), actorFrom(claims), uint(lockID), input.Note); err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, fiber.Map{"released": true})
}

// SetRoleLimit upserts a role-level reward issuance cap. A null limit
// means unlimited on that axis.
func (h *AdminHandler) SetRoleLimit(c *fiber.Ctx) error {
	claims, err := extractClaims(c)
	if err != nil {
		return response.Unauthorized(c, "invalid claims")
	}

	var input struct {
		OwnerKind    string  `json:"owner_kind" validate:"required"`
		DailyLimit   *string `json:"daily_limit"`
		MonthlyLimit *string `json:"monthly_limit"`
		IsActive     bool    `json:"is_active"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "invalid request format")
	}
	if err := validation.Struct(input); err != nil {
		return response.BadRequest(c, validation.Describe(err))
	}

	daily, err := parseOptionalAmount(input.DailyLimit)
	if err != nil {
		return response.DomainError(c, err)
	}
	monthly, err := parseOptionalAmount(input.MonthlyLimit)
	if err != nil {
		return response.DomainError(c, err)
	}

	limit := &models.RewardLimit{
		OwnerKind:    models.OwnerKind(input.OwnerKind),
		DailyLimit:   daily,
		MonthlyLimit: monthly,
		IsActive:     input.IsActive,
	}
	if err := h.rewardService.SetRoleLimit(c.Context(), actorFrom(claims), limit); err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, limit)
}

// SetWalletOverride upserts a per-wallet reward limit override. An active
// override fully replaces the role default.
func (h *AdminHandler) SetWalletOverride(c *fiber.Ctx) error {
	claims, err := extractClaims(c)
	if err != nil {
		return response.Unauthorized(c, "invalid claims")
	}

	var input struct {
		WalletID     uint    `json:"wallet_id" validate:"required"`
		DailyLimit   *string `json:"daily_limit"`
		MonthlyLimit *string `json:"monthly_limit"`
		IsActive     bool    `json:"is_active"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "invalid request format")
	}
	if err := validation.Struct(input); err != nil {
		return response.BadRequest(c, validation.Describe(err))
	}

	daily, err := parseOptionalAmount(input.DailyLimit)
	if err != nil {
		return response.DomainError(c, err)
	}
	monthly, err := parseOptionalAmount(input.MonthlyLimit)
	if err != nil {
		return response.DomainError(c, err)
	}

	override := &models.RewardLimitUser{
		WalletID:     input.WalletID,
		DailyLimit:   daily,
		MonthlyLimit: monthly,
		IsActive:     input.IsActive,
	}
	if err := h.rewardService.SetWalletOverride(c.Context(), actorFrom(claims), override); err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, override)
}

func parseOptionalAmount(raw *string) (*decimal.Decimal, error) {
	if raw == nil {
		return nil, nil
	}
	amount, err := decimal.NewFromString(*raw)
	if err != nil {
		return nil, domain.ErrInvalidAmount
	}
	return &amount, nil
}

// CreateRate opens a new conversion rate window.
func (h *AdminHandler) CreateRate(c *fiber.Ctx) error {
	claims, err := extractClaims(c)
	if err != nil {
		return response.Unauthorized(c, "invalid claims")
	}

	var input struct {
		BaseCurrency  string  `json:"base_currency" validate:"required,len=3"`
		CoinsPerUnit  string  `json:"coins_per_unit" validate:"required"`
		OfferPercent  string  `json:"offer_percent"`
		EffectiveFrom string  `json:"effective_from" validate:"required"`
		EffectiveTo   *string `json:"effective_to"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "invalid request format")
	}
	if err := validation.Struct(input); err != nil {
		return response.BadRequest(c, validation.Describe(err))
	}

	coinsPerUnit, err := parseAmount(input.CoinsPerUnit)
	if err != nil {
		return response.DomainError(c, err)
	}
	offer := decimal.Zero
	if input.OfferPercent != "" {
		if offer, err = decimal.NewFromString(input.OfferPercent); err != nil {
			return response.BadRequest(c, "invalid offer_percent")
		}
	}
	from, err := time.Parse(time.RFC3339, input.EffectiveFrom)
	if err != nil {
		return response.BadRequest(c, "effective_from must be RFC3339")
	}
	var to *time.Time
	if input.EffectiveTo != nil {
		t, err := time.Parse(time.RFC3339, *input.EffectiveTo)
		if err != nil {
			return response.BadRequest(c, "effective_to must be RFC3339")
		}
		to = &t
	}

	rate := &models.Rate{
		BaseCurrency:  input.BaseCurrency,
		CoinsPerUnit:  coinsPerUnit,
		OfferPercent:  offer,
		EffectiveFrom: from,
		EffectiveTo:   to,
		IsActive:      true,
	}
	if err := h.fiatService.CreateRate(c.Context(), actorFrom(claims), rate); err != nil {
		return response.DomainError(c, err)
	}
	return response.Created(c, rate)
}

// DeactivateRate retires a rate window.
func (h *AdminHandler) DeactivateRate(c *fiber.Ctx) error {
	claims, err := extractClaims(c)
	if err != nil {
		return response.Unauthorized(c, "invalid claims")
	}

	rateID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "invalid rate id")
	}

	if err := h.fiatService.DeactivateRate(c.Context(), actorFrom(claims), uint(rateID)); err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, fiber.Map{"deactivated": true})
}

// GetRates lists rate windows, optionally filtered by currency.
func (h *AdminHandler) GetRates(c *fiber.Ctx) error {
	rates, err := h.fiatService.ListRates(c.Query("currency"))
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, rates)
}

// CreateItem adds a catalog item.
func (h *AdminHandler) CreateItem(c *fiber.Ctx) error {
	var input struct {
		Name        string `json:"name" validate:"required"`
		Description string `json:"description"`
		PriceCoins  string `json:"price_coins" validate:"required"`
		Stock       int    `json:"stock" validate:"gte=0"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "invalid request format")
	}
	if err := validation.Struct(input); err != nil {
		return response.BadRequest(c, validation.Describe(err))
	}

	price, err := parseAmount(input.PriceCoins)
	if err != nil {
		return response.DomainError(c, err)
	}

	item := &models.StoreItem{
		Name:        input.Name,
		Description: input.Description,
		PriceCoins:  price,
		Stock:       input.Stock,
		IsActive:    true,
	}
	if err := h.storeService.CreateItem(c.Context(), item); err != nil {
		return response.DomainError(c, err)
	}
	return response.Created(c, item)
}

// UpdateItem edits a catalog item. Price edits never adjust past orders.
func (h *AdminHandler) UpdateItem(c *fiber.Ctx) error {
	itemID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "invalid item id")
	}

	var input struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		PriceCoins  *string `json:"price_coins"`
		Stock       *int    `json:"stock"`
		IsActive    *bool   `json:"is_active"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "invalid request format")
	}

	item, err := h.storeService.GetItem(uint(itemID))
	if err != nil {
		return response.DomainError(c, err)
	}

	if input.Name != nil {
		item.Name = *input.Name
	}
	if input.Description != nil {
		item.Description = *input.Description
	}
	if input.PriceCoins != nil {
		price, err := parseAmount(*input.PriceCoins)
		if err != nil {
			return response.DomainError(c, err)
		}
		item.PriceCoins = price
	}
	if input.Stock != nil {
		if *input.Stock < 0 {
			return response.BadRequest(c, "stock must not be negative")
		}
		item.Stock = *input.Stock
	}
	if input.IsActive != nil {
		item.IsActive = *input.IsActive
	}

	if err := h.storeService.UpdateItem(c.Context(), item); err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, item)
}

// GetOrder fetches one order with its lines, any wallet's.
func (h *AdminHandler) GetOrder(c *fiber.Ctx) error {
	orderID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "invalid order id")
	}

	order, err := h.storeService.GetOrder(uint(orderID))
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, order)
}

// GetPurchase fetches one fiat purchase, any wallet's.
func (h *AdminHandler) GetPurchase(c *fiber.Ctx) error {
	purchaseID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "invalid purchase id")
	}

	purchase, err := h.fiatService.GetPurchase(uint(purchaseID))
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, purchase)
}

// GetWalletAudit lists the audit trail for a wallet.
func (h *AdminHandler) GetWalletAudit(c *fiber.Ctx) error {
	walletID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "invalid wallet id")
	}

	p := pagination.ParseFromRequest(c)
	entries, total, err := h.audit.ListByWallet(uint(walletID), p.Limit, p.Offset)
	if err != nil {
		return response.DomainError(c, err)
	}

	p.Total = total
	return c.JSON(pagination.Response(p, entries))
}

// Reconcile recomputes a wallet's spendable balance from its ledger rows.
func (h *AdminHandler) Reconcile(c *fiber.Ctx) error {
	walletID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "invalid wallet id")
	}

	stored, ledgerSum, err := h.ledgerService.Reconcile(uint(walletID))
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, fiber.Map{
		"wallet_id":  walletID,
		"stored":     stored,
		"ledger_sum": ledgerSum,
		"consistent": stored.Equal(ledgerSum),
	})
}

func parseReportWindow(c *fiber.Ctx) (time.Time, time.Time, error) {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -30)

	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = t
	}
	return from, to, nil
}

// GetVolumeReport aggregates transaction volume per type per day.
func (h *AdminHandler) GetVolumeReport(c *fiber.Ctx) error {
	from, to, err := parseReportWindow(c)
	if err != nil {
		return response.BadRequest(c, "from/to must be RFC3339")
	}

	rows, err := h.ledgerService.VolumeByTypeDay(from, to)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, fiber.Map{"from": from, "to": to, "rows": rows})
}

// GetTopGivers lists wallets that issued the most rewards in the window.
func (h *AdminHandler) GetTopGivers(c *fiber.Ctx) error {
	from, to, err := parseReportWindow(c)
	if err != nil {
		return response.BadRequest(c, "from/to must be RFC3339")
	}
	limit, _ := strconv.Atoi(c.Query("limit", "10"))

	rows, err := h.ledgerService.TopRewardGivers(from, to, limit)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, fiber.Map{"from": from, "to": to, "rows": rows})
}

// GetTopReceivers lists wallets that received the most rewards in the window.
func (h *AdminHandler) GetTopReceivers(c *fiber.Ctx) error {
	from, to, err := parseReportWindow(c)
	if err != nil {
		return response.BadRequest(c, "from/to must be RFC3339")
	}
	limit, _ := strconv.Atoi(c.Query("limit", "10"))

	rows, err := h.ledgerService.TopRewardReceivers(from, to, limit)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, fiber.Map{"from": from, "to": to, "rows": rows})
}

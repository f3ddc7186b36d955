package handlers

import (
	"coinforge/internal/models"
	"coinforge/internal/services/reward"
	"coinforge/internal/services/wallet"
	"coinforge/internal/utils/response"
	"coinforge/internal/utils/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type RewardHandler struct {
	rewardService reward.Service
	walletService wallet.Service
}

func NewRewardHandler(rewardService reward.Service, walletService wallet.Service) *RewardHandler {
	return &RewardHandler{
		rewardService: rewardService,
		walletService: walletService,
	}
}

// Grant lets a mentor or sales agent reward an end user from their budget.
func (h *RewardHandler) Grant(c *fiber.Ctx) error {
	claims, err := extractClaims(c)
	if err != nil {
		return response.Unauthorized(c, "invalid claims")
	}

	var input struct {
		ReceiverKind string          `json:"receiver_kind" validate:"required"`
		ReceiverID   uint            `json:"receiver_id" validate:"required"`
		Amount       decimal.Decimal `json:"amount" validate:"required"`
		Note         string          `json:"note"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "invalid request format")
	}
	if err := validation.Struct(input); err != nil {
		return response.BadRequest(c, validation.Describe(err))
	}

	giver, err := h.walletService.EnsureWallet(c.Context(), claims.OwnerKind, claims.OwnerID)
	if err != nil {
		return response.DomainError(c, err)
	}

	result, err := h.rewardService.Grant(
		c.Context(),
		actorFrom(claims),
		giver.ID,
		models.OwnerKind(input.ReceiverKind),
		input.ReceiverID,
		input.Amount,
		input.Note,
	)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Created(c, result)
}

// GetLimits shows the caller the caps currently gating their grants.
func (h *RewardHandler) GetLimits(c *fiber.Ctx) error {
	claims, err := extractClaims(c)
	if err != nil {
		return response.Unauthorized(c, "invalid claims")
	}

	w, err := h.walletService.EnsureWallet(c.Context(), claims.OwnerKind, claims.OwnerID)
	if err != nil {
		return response.DomainError(c, err)
	}

	limits, err := h.rewardService.EffectiveLimits(w.ID, w.OwnerKind)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, limits)
}

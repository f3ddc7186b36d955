package handlers

import (
	"coinforge/internal/services/fiat"
	"coinforge/internal/services/wallet"
	"coinforge/internal/utils/pagination"
	"coinforge/internal/utils/response"
	"coinforge/internal/utils/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type FiatHandler struct {
	fiatService   fiat.Service
	walletService wallet.Service
}

func NewFiatHandler(fiatService fiat.Service, walletService wallet.Service) *FiatHandler {
	return &FiatHandler{
		fiatService:   fiatService,
		walletService: walletService,
	}
}

// GetQuote returns how many coins a fiat amount buys at the current rate.
func (h *FiatHandler) GetQuote(c *fiber.Ctx) error {
	var input struct {
		Amount   string `json:"amount" validate:"required"`
		Currency string `json:"currency" validate:"required,len=3"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "invalid request format")
	}
	if err := validation.Struct(input); err != nil {
		return response.BadRequest(c, validation.Describe(err))
	}

	amount, err := decimal.NewFromString(input.Amount)
	if err != nil {
		return response.BadRequest(c, "invalid amount")
	}

	coins, rate, err := h.fiatService.Quote(input.Currency, amount)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, fiber.Map{
		"coins":          coins,
		"rate_id":        rate.ID,
		"coins_per_unit": rate.CoinsPerUnit,
		"offer_percent":  rate.OfferPercent,
	})
}

// InitiatePurchase opens a pending fiat purchase for the caller.
func (h *FiatHandler) InitiatePurchase(c *fiber.Ctx) error {
	claims, err := extractClaims(c)
	if err != nil {
		return response.Unauthorized(c, "invalid claims")
	}

	var input struct {
		Amount   string `json:"amount" validate:"required"`
		Currency string `json:"currency" validate:"required,len=3"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "invalid request format")
	}
	if err := validation.Struct(input); err != nil {
		return response.BadRequest(c, validation.Describe(err))
	}

	amount, err := decimal.NewFromString(input.Amount)
	if err != nil {
		return response.BadRequest(c, "invalid amount")
	}

	purchase, err := h.fiatService.InitiatePurchase(c.Context(), claims.OwnerKind, claims.OwnerID, amount, input.Currency)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Created(c, purchase)
}

// HandleWebhook receives the payment provider callback. The raw body and
// signature header are passed through untouched so the signature check
// sees exactly what the provider signed.
func (h *FiatHandler) HandleWebhook(c *fiber.Ctx) error {
	payload := c.Body()
	sigHeader := c.Get("Stripe-Signature")

	purchase, err := h.fiatService.HandleProviderCallback(c.Context(), payload, sigHeader)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, fiber.Map{"status": purchase.Status, "provider_ref": purchase.ProviderRef})
}

// GetPurchases lists the caller's fiat purchases.
func (h *FiatHandler) GetPurchases(c *fiber.Ctx) error {
	claims, err := extractClaims(c)
	if err != nil {
		return response.Unauthorized(c, "invalid claims")
	}

	w, err := h.walletService.EnsureWallet(c.Context(), claims.OwnerKind, claims.OwnerID)
	if err != nil {
		return response.DomainError(c, err)
	}

	p := pagination.ParseFromRequest(c)
	purchases, total, err := h.fiatService.ListPurchases(w.ID, p.Limit, p.Offset)
	if err != nil {
		return response.DomainError(c, err)
	}

	p.Total = total
	return c.JSON(pagination.Response(p, purchases))
}

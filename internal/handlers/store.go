package handlers

import (
	"strconv"

	"coinforge/internal/services/store"
	"coinforge/internal/services/wallet"
	"coinforge/internal/utils/pagination"
	"coinforge/internal/utils/response"
	"coinforge/internal/utils/validation"

	"github.com/gofiber/fiber/v2"
)

type StoreHandler struct {
	storeService  store.Service
	walletService wallet.Service
}

func NewStoreHandler(storeService store.Service, walletService wallet.Service) *StoreHandler {
	return &StoreHandler{
		storeService:  storeService,
		walletService: walletService,
	}
}

// GetCatalog lists active items.
func (h *StoreHandler) GetCatalog(c *fiber.Ctx) error {
	items, err := h.storeService.Catalog(c.Context())
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, items)
}

// Checkout places an order for the calling wallet.
func (h *StoreHandler) Checkout(c *fiber.Ctx) error {
	claims, err := extractClaims(c)
	if err != nil {
		return response.Unauthorized(c, "invalid claims")
	}

	var input struct {
		Items []store.CheckoutLine `json:"items" validate:"required,min=1,dive"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "invalid request format")
	}
	if err := validation.Struct(input); err != nil {
		return response.BadRequest(c, validation.Describe(err))
	}

	order, err := h.storeService.Checkout(c.Context(), claims.OwnerKind, claims.OwnerID, input.Items)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Created(c, order)
}

// GetOrders lists the caller's orders.
func (h *StoreHandler) GetOrders(c *fiber.Ctx) error {
	claims, err := extractClaims(c)
	if err != nil {
		return response.Unauthorized(c, "invalid claims")
	}

	w, err := h.walletService.EnsureWallet(c.Context(), claims.OwnerKind, claims.OwnerID)
	if err != nil {
		return response.DomainError(c, err)
	}

	p := pagination.ParseFromRequest(c)
	orders, total, err := h.storeService.ListOrders(w.ID, p.Limit, p.Offset)
	if err != nil {
		return response.DomainError(c, err)
	}

	p.Total = total
	return c.JSON(pagination.Response(p, orders))
}

// Refund reverses a completed order. Admin surface.
func (h *StoreHandler) Refund(c *fiber.Ctx) error {
	claims, err := extractClaims(c)
	if err != nil {
		return response.Unauthorized(c, "invalid claims")
	}

	orderID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "invalid order id")
	}

	order, err := h.storeService.Refund(c.Context(), actorFrom(claims), uint(orderID))
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, order)
}

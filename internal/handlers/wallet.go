package handlers

import (
	"time"

	"coinforge/internal/middleware"
	"coinforge/internal/repositories"
	"coinforge/internal/services/ledger"
	"coinforge/internal/services/wallet"
	"coinforge/internal/utils/pagination"
	"coinforge/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

type WalletHandler struct {
	walletService wallet.Service
	ledgerService ledger.Service
}

func NewWalletHandler(walletService wallet.Service, ledgerService ledger.Service) *WalletHandler {
	return &WalletHandler{
		walletService: walletService,
		ledgerService: ledgerService,
	}
}

// extractClaims pulls the resolved principal the middleware stored.
func extractClaims(c *fiber.Ctx) (*middleware.Claims, error) {
	claims, ok := c.Locals(middleware.ClaimsKey).(*middleware.Claims)
	if !ok || claims == nil {
		return nil, fiber.ErrUnauthorized
	}
	return claims, nil
}

func actorFrom(claims *middleware.Claims) ledger.Actor {
	return ledger.Actor{Kind: claims.OwnerKind, ID: claims.ActorID}
}

// GetSnapshot returns the caller's wallet view: balances, nearest-expiring
// credits, nearest-unlocking holds.
func (h *WalletHandler) GetSnapshot(c *fiber.Ctx) error {
	claims, err := extractClaims(c)
	if err != nil {
		return response.Unauthorized(c, "invalid claims")
	}

	snap, err := h.walletService.Snapshot(c.Context(), claims.OwnerKind, claims.OwnerID)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, snap)
}

// GetHistory returns the caller's paginated transaction history, optionally
// filtered by type and date range.
func (h *WalletHandler) GetHistory(c *fiber.Ctx) error {
	claims, err := extractClaims(c)
	if err != nil {
		return response.Unauthorized(c, "invalid claims")
	}

	w, err := h.walletService.EnsureWallet(c.Context(), claims.OwnerKind, claims.OwnerID)
	if err != nil {
		return response.DomainError(c, err)
	}

	p := pagination.ParseFromRequest(c)
	filter := repositories.HistoryFilter{
		Type:   c.Query("type"),
		Limit:  p.Limit,
		Offset: p.Offset,
	}
	if from := c.Query("from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			filter.From = &t
		}
	}
	if to := c.Query("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			filter.To = &t
		}
	}

	rows, total, err := h.ledgerService.History(w.ID, filter)
	if err != nil {
		return response.DomainError(c, err)
	}

	p.Total = total
	return c.JSON(pagination.Response(p, rows))
}

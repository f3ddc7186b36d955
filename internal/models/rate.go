package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Rate is a time-windowed fiat-to-coin conversion factor. At most one rate
// is effective per currency at a given instant: the active row with the
// latest EffectiveFrom ≤ now whose EffectiveTo is null or ≥ now.
type Rate struct {
	ID            uint            `gorm:"primarykey" json:"id"`
	BaseCurrency  string          `gorm:"size:3;not null;index" json:"base_currency"`
	CoinsPerUnit  decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"coins_per_unit"`
	OfferPercent  decimal.Decimal `gorm:"type:numeric(5,2);not null;default:0" json:"offer_percent"`
	EffectiveFrom time.Time       `gorm:"not null;index" json:"effective_from"`
	EffectiveTo   *time.Time      `json:"effective_to"`
	IsActive      bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// CoinsFor converts a fiat amount using this rate, bonus included:
// amountFiat × coinsPerUnit × (1 + offerPercent/100).
func (r *Rate) CoinsFor(amountFiat decimal.Decimal) decimal.Decimal {
	base := amountFiat.Mul(r.CoinsPerUnit)
	if r.OfferPercent.IsZero() {
		return base
	}
	bonus := base.Mul(r.OfferPercent).Div(decimal.NewFromInt(100))
	return base.Add(bonus)
}

// EffectiveAt reports whether this rate covers the given instant.
func (r *Rate) EffectiveAt(at time.Time) bool {
	if !r.IsActive || at.Before(r.EffectiveFrom) {
		return false
	}
	return r.EffectiveTo == nil || !at.After(*r.EffectiveTo)
}

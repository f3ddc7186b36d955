package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRateCoinsFor(t *testing.T) {
	rate := &Rate{
		CoinsPerUnit: decimal.RequireFromString("100"),
		OfferPercent: decimal.RequireFromString("10"),
	}

	// 5 fiat × 100 coins/unit × 1.10 bonus = 550 coins
	coins := rate.CoinsFor(decimal.RequireFromString("5"))
	assert.True(t, coins.Equal(decimal.RequireFromString("550")), "got %s", coins)

	rate.OfferPercent = decimal.Zero
	coins = rate.CoinsFor(decimal.RequireFromString("5"))
	assert.True(t, coins.Equal(decimal.RequireFromString("500")))

	// Fractional fiat amounts stay exact.
	rate.OfferPercent = decimal.RequireFromString("7.5")
	coins = rate.CoinsFor(decimal.RequireFromString("0.01"))
	assert.True(t, coins.Equal(decimal.RequireFromString("1.075")), "got %s", coins)
}

func TestRateEffectiveAt(t *testing.T) {
	now := time.Now().UTC()
	to := now.Add(time.Hour)
	rate := &Rate{
		IsActive:      true,
		EffectiveFrom: now.Add(-time.Hour),
		EffectiveTo:   &to,
	}

	assert.True(t, rate.EffectiveAt(now))
	assert.True(t, rate.EffectiveAt(to), "window end is inclusive")
	assert.False(t, rate.EffectiveAt(to.Add(time.Second)))
	assert.False(t, rate.EffectiveAt(now.Add(-2*time.Hour)))

	rate.EffectiveTo = nil
	assert.True(t, rate.EffectiveAt(now.Add(1000*time.Hour)), "open-ended window")

	rate.IsActive = false
	assert.False(t, rate.EffectiveAt(now))
}

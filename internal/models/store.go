package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order statuses
const (
	OrderStatusPending   = "PENDING"
	OrderStatusCompleted = "COMPLETED"
	OrderStatusRefunded  = "REFUNDED"
	OrderStatusCancelled = "CANCELLED"
)

// StoreItem is a catalog entry priced in coins.
type StoreItem struct {
	ID          uint            `gorm:"primarykey" json:"id"`
	Name        string          `gorm:"not null" json:"name"`
	Description string          `json:"description,omitempty"`
	PriceCoins  decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"price_coins"`
	Stock       int             `gorm:"not null;default:0" json:"stock"`
	IsActive    bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// StoreOrder is one checkout. TotalCoins is the sum of its lines at the
// prices in force when the order was placed.
type StoreOrder struct {
	ID          uint             `gorm:"primarykey" json:"id"`
	OrderNumber string           `gorm:"uniqueIndex;not null" json:"order_number"`
	WalletID    uint             `gorm:"not null;index" json:"wallet_id"`
	TotalCoins  decimal.Decimal  `gorm:"type:numeric(20,8);not null" json:"total_coins"`
	Status      string           `gorm:"not null;default:'PENDING';index" json:"status"`
	Items       []StoreOrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// StoreOrderItem is one order line. PriceAtPurchase snapshots the catalog
// price so later edits never change what the buyer paid.
type StoreOrderItem struct {
	ID              uint            `gorm:"primarykey" json:"id"`
	OrderID         uint            `gorm:"not null;index" json:"order_id"`
	ItemID          uint            `gorm:"not null;index" json:"item_id"`
	Quantity        int             `gorm:"not null" json:"quantity"`
	PriceAtPurchase decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"price_at_purchase"`
	CreatedAt       time.Time       `json:"created_at"`
}

// LineTotal is quantity × the snapshotted unit price.
func (i *StoreOrderItem) LineTotal() decimal.Decimal {
	return i.PriceAtPurchase.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

package repositories

import (
	stderrors "errors"
	"fmt"

	domain "coinforge/internal/errors"
	"coinforge/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StoreRepository owns the catalog and order tables.
type StoreRepository interface {
	CreateItem(item *models.StoreItem) error
	UpdateItem(item *models.StoreItem) error
	GetItem(id uint) (*models.StoreItem, error)
	ListItems(activeOnly bool) ([]models.StoreItem, error)
	GetItemsForUpdate(tx *gorm.DB, ids []uint) ([]models.StoreItem, error)
	// AdjustStock applies a conditional stock delta; negative deltas only
	// succeed while enough stock remains, so two concurrent checkouts
	// cannot both take the last unit.
	AdjustStock(tx *gorm.DB, itemID uint, delta int) error
	CreateOrder(tx *gorm.DB, order *models.StoreOrder) error
	CreateOrderItem(tx *gorm.DB, item *models.StoreOrderItem) error
	SaveOrder(tx *gorm.DB, order *models.StoreOrder) error
	GetOrder(id uint) (*models.StoreOrder, error)
	GetOrderForUpdate(tx *gorm.DB, id uint) (*models.StoreOrder, error)
	ListOrders(walletID uint, limit, offset int) ([]models.StoreOrder, int64, error)
}

type storeRepository struct {
	db *gorm.DB
}

func NewStoreRepository(db *gorm.DB) StoreRepository {
	return &storeRepository{db: db}
}

func (r *storeRepository) CreateItem(item *models.StoreItem) error {
	if err := r.db.Create(item).Error; err != nil {
		return fmt.Errorf("failed to create store item: %w", err)
	}
	return nil
}

func (r *storeRepository) UpdateItem(item *models.StoreItem) error {
	if err := r.db.Save(item).Error; err != nil {
		return fmt.Errorf("failed to update store item: %w", err)
	}
	return nil
}

func (r *storeRepository) GetItem(id uint) (*models.StoreItem, error) {
	var item models.StoreItem
	if err := r.db.First(&item, id).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get store item: %w", err)
	}
	return &item, nil
}

func (r *storeRepository) ListItems(activeOnly bool) ([]models.StoreItem, error) {
	q := r.db.Model(&models.StoreItem{})
	if activeOnly {
		q = q.Where("is_active = true")
	}
	var items []models.StoreItem
	if err := q.Order("id").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list store items: %w", err)
	}
	return items, nil
}

func (r *storeRepository) GetItemsForUpdate(tx *gorm.DB, ids []uint) ([]models.StoreItem, error) {
	var items []models.StoreItem
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock store items: %w", err)
	}
	return items, nil
}

func (r *storeRepository) AdjustStock(tx *gorm.DB, itemID uint, delta int) error {
	q := tx.Model(&models.StoreItem{}).Where("id = ?", itemID)
	if delta < 0 {
		q = q.Where("stock >= ?", -delta)
	}
	result := q.Update("stock", gorm.Expr("stock + ?", delta))
	if result.Error != nil {
		return fmt.Errorf("failed to adjust stock: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrInsufficientStock
	}
	return nil
}

func (r *storeRepository) CreateOrder(tx *gorm.DB, order *models.StoreOrder) error {
	if err := tx.Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (r *storeRepository) CreateOrderItem(tx *gorm.DB, item *models.StoreOrderItem) error {
	if err := tx.Create(item).Error; err != nil {
		return fmt.Errorf("failed to create order item: %w", err)
	}
	return nil
}

func (r *storeRepository) SaveOrder(tx *gorm.DB, order *models.StoreOrder) error {
	if err := tx.Save(order).Error; err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}

func (r *storeRepository) GetOrder(id uint) (*models.StoreOrder, error) {
	var order models.StoreOrder
	if err := r.db.Preload("Items").First(&order, id).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}

func (r *storeRepository) GetOrderForUpdate(tx *gorm.DB, id uint) (*models.StoreOrder, error) {
	var order models.StoreOrder
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, id).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}
	// Items are immutable once written; no need to lock them.
	if err := tx.Where("order_id = ?", id).Find(&order.Items).Error; err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	return &order, nil
}

func (r *storeRepository) ListOrders(walletID uint, limit, offset int) ([]models.StoreOrder, int64, error) {
	q := r.db.Model(&models.StoreOrder{}).Where("wallet_id = ?", walletID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	var orders []models.StoreOrder
	err := q.Preload("Items").Order("created_at DESC").Limit(limit).Offset(offset).Find(&orders).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, total, nil
}

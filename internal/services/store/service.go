// Package store implements catalog checkout and refund on top of the
// expiry-first allocator. An order either completes in full — stock
// decremented, coins spent, lines snapshotted — or leaves nothing behind.
package store

import (
	"context"
	"fmt"
	"log"
	"sort"

	domain "coinforge/internal/errors"
	"coinforge/internal/metrics"
	"coinforge/internal/models"
	"coinforge/internal/repositories"
	"coinforge/internal/repositories/cache"
	"coinforge/internal/services/ledger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CheckoutLine is one requested order line.
type CheckoutLine struct {
	ItemID   uint `json:"item_id" validate:"required"`
	Quantity int  `json:"quantity" validate:"required,gt=0"`
}

// Service is the order processor plus catalog administration.
type Service interface {
	Checkout(ctx context.Context, kind models.OwnerKind, ownerID uint, lines []CheckoutLine) (*models.StoreOrder, error)
	Refund(ctx context.Context, actor ledger.Actor, orderID uint) (*models.StoreOrder, error)
	GetOrder(orderID uint) (*models.StoreOrder, error)
	ListOrders(walletID uint, limit, offset int) ([]models.StoreOrder, int64, error)

	Catalog(ctx context.Context) ([]models.StoreItem, error)
	GetItem(itemID uint) (*models.StoreItem, error)
	CreateItem(ctx context.Context, item *models.StoreItem) error
	UpdateItem(ctx context.Context, item *models.StoreItem) error
}

type service struct {
	db      *gorm.DB
	wallets repositories.WalletRepository
	store   repositories.StoreRepository
	audit   repositories.AuditRepository
	engine  *ledger.Engine
	cache   *cache.CacheService

	invalidate func(ctx context.Context, walletID uint)
}

func NewService(
	db *gorm.DB,
	wallets repositories.WalletRepository,
	storeRepo repositories.StoreRepository,
	audit repositories.AuditRepository,
	engine *ledger.Engine,
	cacheSvc *cache.CacheService,
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
		store:      storeRepo,
		audit:      audit,
		engine:     engine,
		cache:      cacheSvc,
		invalidate: invalidate,
	}
}

func (s *service) Checkout(ctx context.Context, kind models.OwnerKind, ownerID uint, lines []CheckoutLine) (*models.StoreOrder, error) {
	if len(lines) == 0 {
		return nil, domain.ErrValidation
	}

	// Collapse duplicate item ids so one row lock covers each item.
	quantities := map[uint]int{}
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, domain.ErrValidation
		}
		quantities[line.ItemID] += line.Quantity
	}
	itemIDs := make([]uint, 0, len(quantities))
	for id := range quantities {
		itemIDs = append(itemIDs, id)
	}
	sort.Slice(itemIDs, func(i, j int) bool { return itemIDs[i] < itemIDs[j] })

	wallet, err := s.wallets.EnsureWallet(kind, ownerID)
	if err != nil {
		return nil, err
	}

	var order *models.StoreOrder
	err = repositories.ExecuteInTransaction(s.db, func(tx *gorm.DB) error {
		items, err := s.store.GetItemsForUpdate(tx, itemIDs)
		if err != nil {
			return err
		}
		if len(items) != len(itemIDs) {
			return domain.ErrItemNotFound
		}

		// Every line must pass before anything mutates: no partial order.
		total := decimal.Zero
		byID := map[uint]*models.StoreItem{}
		for i := range items {
			item := &items[i]
			byID[item.ID] = item
			qty := quantities[item.ID]
			if !item.IsActive {
				return domain.ErrItemInactive
			}
			if item.Stock < qty {
				return domain.ErrInsufficientStock
			}
			total = total.Add(item.PriceCoins.Mul(decimal.NewFromInt(int64(qty))))
		}

		walletLocked, err := s.wallets.GetForUpdate(tx, wallet.ID)
		if err != nil {
			return err
		}

		order = &models.StoreOrder{
			OrderNumber: "ORD-" + uuid.NewString(),
			WalletID:    walletLocked.ID,
			TotalCoins:  total,
			Status:      models.OrderStatusPending,
		}
		if err := s.store.CreateOrder(tx, order); err != nil {
			return err
		}

		for _, id := range itemIDs {
			if err := s.store.AdjustStock(tx, id, -quantities[id]); err != nil {
				return err
			}
		}

		_, err = s.engine.SpendWithExpiryFirst(tx, walletLocked, total, ledger.Posting{
			Type:     models.TransactionTypePurchaseItem,
			Metadata: models.JSON{"order_id": order.ID, "order_number": order.OrderNumber},
			Note:     fmt.Sprintf("store order %s", order.OrderNumber),
		})
		if err != nil {
			return err
		}

		// Per-line provenance rows: the running order total before/after
		// attributing each line, independent of which balances funded it.
		unattributed := total
		for _, id := range itemIDs {
			item := byID[id]
			qty := quantities[id]
			lineTotal := item.PriceCoins.Mul(decimal.NewFromInt(int64(qty)))

			orderItem := &models.StoreOrderItem{
				OrderID:         order.ID,
				ItemID:          item.ID,
				Quantity:        qty,
				PriceAtPurchase: item.PriceCoins,
			}
			if err := s.store.CreateOrderItem(tx, orderItem); err != nil {
				return err
			}
			order.Items = append(order.Items, *orderItem)

			entry := &models.Transaction{
				WalletID:      walletLocked.ID,
				Type:          models.TransactionTypePurchaseItem,
				Amount:        lineTotal.Neg(),
				BalanceType:   models.BalanceOrder,
				BalanceBefore: unattributed,
				BalanceAfter:  unattributed.Sub(lineTotal),
				Note:          item.Name,
				Metadata: models.JSON{
					"order_id":          order.ID,
					"item_id":           item.ID,
					"quantity":          qty,
					"price_at_purchase": item.PriceCoins,
				},
			}
			if err := s.engine.AppendRaw(tx, entry); err != nil {
				return err
			}
			unattributed = unattributed.Sub(lineTotal)
		}

		order.Status = models.OrderStatusCompleted
		return s.store.SaveOrder(tx, order)
	})
	if err != nil {
		metrics.RecordOperationError("checkout", errorCode(err))
		return nil, err
	}

	metrics.RecordOrder(models.OrderStatusCompleted)
	s.invalidate(ctx, wallet.ID)
	s.invalidateCatalog(ctx)
	return order, nil
}

func (s *service) Refund(ctx context.Context, actor ledger.Actor, orderID uint) (*models.StoreOrder, error) {
	var order *models.StoreOrder
	err := repositories.ExecuteInTransaction(s.db, func(tx *gorm.DB) error {
		var err error
		order, err = s.store.GetOrderForUpdate(tx, orderID)
		if err != nil {
			return err
		}
		// Refund only ever fires from COMPLETED: a second refund and a
		// cancelled order both land here.
		if order.Status != models.OrderStatusCompleted {
			return domain.ErrOrderNotRefundable
		}

		wallet, err := s.wallets.GetForUpdate(tx, order.WalletID)
		if err != nil {
			return err
		}

		before := wallet.SpendableBalance
		_, err = s.engine.Apply(tx, wallet, ledger.Posting{
			Type:        models.TransactionTypePurchaseRefund,
			Amount:      order.TotalCoins,
			BalanceType: models.BalanceSpendable,
			Actor:       actor,
			Note:        fmt.Sprintf("refund of order %s", order.OrderNumber),
			Metadata:    models.JSON{"order_id": order.ID, "order_number": order.OrderNumber},
		})
		if err != nil {
			return err
		}

		restored := decimal.Zero
		for i := range order.Items {
			item := &order.Items[i]
			if err := s.store.AdjustStock(tx, item.ItemID, item.Quantity); err != nil {
				return err
			}

			lineTotal := item.LineTotal()
			entry := &models.Transaction{
				WalletID:      wallet.ID,
				Type:          models.TransactionTypePurchaseRefund,
				Amount:        lineTotal,
				BalanceType:   models.BalanceOrder,
				BalanceBefore: restored.Sub(order.TotalCoins),
				BalanceAfter:  restored.Sub(order.TotalCoins).Add(lineTotal),
				Metadata: models.JSON{
					"order_id": order.ID,
					"item_id":  item.ItemID,
					"quantity": item.Quantity,
				},
			}
			if err := s.engine.AppendRaw(tx, entry); err != nil {
				return err
			}
			restored = restored.Add(lineTotal)
		}

		order.Status = models.OrderStatusRefunded
		if err := s.store.SaveOrder(tx, order); err != nil {
			return err
		}

		return s.audit.Append(tx, &models.AuditLog{
			WalletID:  wallet.ID,
			Action:    models.AuditActionRefund,
			ActorKind: actor.Kind,
			ActorID:   actor.ID,
			Before:    before,
			Delta:     order.TotalCoins,
			After:     wallet.SpendableBalance,
			Note:      order.OrderNumber,
		})
	})
	if err != nil {
		metrics.RecordOperationError("refund", errorCode(err))
		return nil, err
	}

	metrics.RecordOrder(models.OrderStatusRefunded)
	s.invalidate(ctx, order.WalletID)
	s.invalidateCatalog(ctx)
	return order, nil
}

func (s *service) GetOrder(orderID uint) (*models.StoreOrder, error) {
	return s.store.GetOrder(orderID)
}

func (s *service) ListOrders(walletID uint, limit, offset int) ([]models.StoreOrder, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.ListOrders(walletID, limit, offset)
}

func (s *service) Catalog(ctx context.Context) ([]models.StoreItem, error) {
	if s.cache != nil {
		var cached []models.StoreItem
		if found, err := s.cache.Get(ctx, cache.CatalogKey(), &cached); err == nil && found {
			return cached, nil
		}
	}

	items, err := s.store.ListItems(true)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cache.CatalogKey(), items); err != nil {
			log.Printf("failed to cache catalog: %v", err)
		}
	}
	return items, nil
}

func (s *service) GetItem(itemID uint) (*models.StoreItem, error) {
	return s.store.GetItem(itemID)
}

func (s *service) CreateItem(ctx context.Context, item *models.StoreItem) error {
	if item.Name == "" || !item.PriceCoins.IsPositive() || item.Stock < 0 {
		return domain.ErrValidation
	}
	if err := s.store.CreateItem(item); err != nil {
		return err
	}
	s.invalidateCatalog(ctx)
	return nil
}

func (s *service) UpdateItem(ctx context.Context, item *models.StoreItem) error {
	if item.ID == 0 || item.Name == "" || !item.PriceCoins.IsPositive() || item.Stock < 0 {
		return domain.ErrValidation
	}
	if _, err := s.store.GetItem(item.ID); err != nil {
		return err
	}
	if err := s.store.UpdateItem(item); err != nil {
		return err
	}
	s.invalidateCatalog(ctx)
	return nil
}

func (s *service) invalidateCatalog(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cache.CatalogKey()); err != nil {
		log.Printf("failed to invalidate catalog cache: %v", err)
	}
}

func errorCode(err error) string {
	if derr, ok := err.(*domain.DomainError); ok {
		return derr.Code
	}
	return "INTERNAL"
}

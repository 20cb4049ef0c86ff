package mysql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/domain/order"
	"storefront/domain/shared"
	"storefront/infrastructure/persistence"
	"storefront/infrastructure/persistence/mysql/po"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderLedger MySQL/GORM implementation of order.Ledger
// GORM usage specification: Association features are prohibited to maintain aggregate boundaries
type OrderLedger struct {
	db *gorm.DB
}

// NewOrderLedger Create order ledger
func NewOrderLedger(db *gorm.DB) *OrderLedger {
	return &OrderLedger{db: db}
}

// getDB returns the transaction from context if available, otherwise the default db
func (r *OrderLedger) getDB(ctx context.Context) *gorm.DB {
	return persistence.DB(ctx, r.db)
}

// Create inserts the order row and every item row, or nothing.
// Inside a UoW the caller's transaction is reused and a savepoint guards the inserts.
func (r *OrderLedger) Create(ctx context.Context, o *order.Order) (int64, error) {
	orderPO, itemPOs := po.FromOrderDomain(o)

	err := r.getDB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(orderPO).Error; err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		for i := range itemPOs {
			itemPOs[i].OrderID = orderPO.ID
		}
		if len(itemPOs) > 0 {
			if err := tx.Create(&itemPOs).Error; err != nil {
				return fmt.Errorf("insert order items: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	itemIDs := make([]int64, len(itemPOs))
	for i, item := range itemPOs {
		itemIDs[i] = item.ID
	}
	o.MarkPersisted(orderPO.ID, itemIDs)
	return orderPO.ID, nil
}

func (r *OrderLedger) orderQuery(ctx context.Context) *gorm.DB {
	return r.getDB(ctx).
		Model(&po.OrderPO{}).
		Select("orders.*, users.name AS user_name").
		Joins("LEFT JOIN users ON users.id = orders.user_id")
}

// FindByID loads the order with its items
func (r *OrderLedger) FindByID(ctx context.Context, id int64) (*order.Order, error) {
	var rows []po.OrderRow
	if err := r.orderQuery(ctx).Where("orders.id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, order.NewOrderNotFoundError(id)
	}
	items, err := r.Items(ctx, id)
	if err != nil {
		return nil, err
	}
	return rows[0].ToDomain(items), nil
}

// Items returns the current order lines; a vanished product yields an empty name
func (r *OrderLedger) Items(ctx context.Context, orderID int64) ([]order.Item, error) {
	byOrder, err := r.itemsFor(ctx, []int64{orderID})
	if err != nil {
		return nil, err
	}
	return byOrder[orderID], nil
}

func (r *OrderLedger) itemsFor(ctx context.Context, orderIDs []int64) (map[int64][]order.Item, error) {
	result := make(map[int64][]order.Item, len(orderIDs))
	if len(orderIDs) == 0 {
		return result, nil
	}
	var rows []po.OrderItemRow
	err := r.getDB(ctx).
		Model(&po.OrderItemPO{}).
		Select("order_items.*, products.name AS product_name").
		Joins("LEFT JOIN products ON products.id = order_items.product_id").
		Where("order_items.order_id IN ?", orderIDs).
		Order("order_items.order_id ASC, order_items.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	for i := range rows {
		result[rows[i].OrderID] = append(result[rows[i].OrderID], rows[i].ToDomain())
	}
	return result, nil
}

func (r *OrderLedger) withItems(ctx context.Context, rows []po.OrderRow) ([]*order.Order, error) {
	ids := make([]int64, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}
	items, err := r.itemsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	orders := make([]*order.Order, len(rows))
	for i := range rows {
		orders[i] = rows[i].ToDomain(items[rows[i].ID])
	}
	return orders, nil
}

// ListByUser newest first
func (r *OrderLedger) ListByUser(ctx context.Context, userID int64) ([]*order.Order, error) {
	var rows []po.OrderRow
	err := r.orderQuery(ctx).
		Where("orders.user_id = ?", userID).
		Order("orders.created_at DESC, orders.id DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return r.withItems(ctx, rows)
}

// Search back-office listing by status and order id / customer name
func (r *OrderLedger) Search(ctx context.Context, filter order.Filter) ([]*order.Order, error) {
	q := r.orderQuery(ctx)
	if filter.Status != "" {
		q = q.Where("orders.status = ?", string(filter.Status))
	}
	if term := strings.TrimSpace(filter.Query); term != "" {
		like := "%" + term + "%"
		q = q.Where("(CAST(orders.id AS CHAR) LIKE ? OR users.name LIKE ?)", like, like)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var rows []po.OrderRow
	if err := q.Order("orders.created_at DESC, orders.id DESC").Scan(&rows).Error; err != nil {
		return nil, err
	}
	return r.withItems(ctx, rows)
}

// UpdateStatus unconditional; transition rules live in the aggregate
func (r *OrderLedger) UpdateStatus(ctx context.Context, id int64, status order.Status) error {
	result := r.getDB(ctx).Model(&po.OrderPO{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": string(status), "updated_at": time.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return order.NewOrderNotFoundError(id)
	}
	return nil
}

// UpdateItemQuantity deletes the row at zero instead of storing it
func (r *OrderLedger) UpdateItemQuantity(ctx context.Context, itemID int64, quantity int, unitPrice decimal.Decimal) error {
	db := r.getDB(ctx)
	if quantity <= 0 {
		return db.Where("id = ?", itemID).Delete(&po.OrderItemPO{}).Error
	}
	return db.Model(&po.OrderItemPO{}).
		Where("id = ?", itemID).
		Updates(map[string]any{
			"quantity":   quantity,
			"unit_price": unitPrice,
			"line_total": order.LineTotalOf(quantity, unitPrice),
		}).Error
}

func (r *OrderLedger) UpdateTotals(ctx context.Context, id int64, totals shared.Totals) error {
	return r.getDB(ctx).Model(&po.OrderPO{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"subtotal_amount": totals.Subtotal,
			"discount_amount": totals.Discount,
			"total_amount":    totals.Total,
			"updated_at":      time.Now(),
		}).Error
}

// RestockItems adds every remaining line quantity back to product stock
func (r *OrderLedger) RestockItems(ctx context.Context, orderID int64) error {
	items, err := r.Items(ctx, orderID)
	if err != nil {
		return err
	}
	db := r.getDB(ctx)
	var errs []error
	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		err := db.Model(&po.ProductPO{}).
			Where("id = ?", item.ProductID).
			Update("quantity", gorm.Expr("quantity + ?", item.Quantity)).Error
		if err != nil {
			errs = append(errs, fmt.Errorf("restock product %d: %w", item.ProductID, err))
		}
	}
	return errors.Join(errs...)
}

var _ order.Ledger = (*OrderLedger)(nil)

package po

import (
	"time"

	"storefront/domain/order"
	"storefront/domain/shared"

	"github.com/shopspring/decimal"
)

// OrderPO Order persistence object
// Note: Only used for database mapping, does not contain any business logic
// Defining GORM associations is prohibited here
type OrderPO struct {
	ID             int64           `gorm:"primaryKey;autoIncrement"`
	UserID         int64           `gorm:"index;not null"`
	SubtotalAmount decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Status         string          `gorm:"size:32;index;not null"`
	PaymentMethod  string          `gorm:"size:32"`
	CreatedAt      time.Time       `gorm:"autoCreateTime;index"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime"`
}

// TableName Specify table name
func (OrderPO) TableName() string {
	return "orders"
}

// OrderItemPO Order item persistence object
type OrderItemPO struct {
	ID        int64           `gorm:"primaryKey;autoIncrement"`
	OrderID   int64           `gorm:"index;not null"`
	ProductID int64           `gorm:"not null"`
	Quantity  int             `gorm:"not null"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	LineTotal decimal.Decimal `gorm:"type:decimal(10,2);not null"`
}

// TableName Specify table name
func (OrderItemPO) TableName() string {
	return "order_items"
}

// OrderItemRow order_items joined with the product name
type OrderItemRow struct {
	OrderItemPO
	ProductName *string
}

// OrderRow orders joined with the customer name
type OrderRow struct {
	OrderPO
	UserName *string
}

// FromOrderDomain Convert domain model to persistence object
func FromOrderDomain(o *order.Order) (*OrderPO, []OrderItemPO) {
	totals := o.Totals()
	orderPO := &OrderPO{
		ID:             o.OrderID(),
		UserID:         o.UserID(),
		SubtotalAmount: totals.Subtotal,
		DiscountAmount: totals.Discount,
		TotalAmount:    totals.Total,
		Status:         string(o.Status()),
		PaymentMethod:  o.PaymentMethod(),
		CreatedAt:      o.CreatedAt(),
	}

	items := o.Items()
	itemPOs := make([]OrderItemPO, len(items))
	for i, item := range items {
		itemPOs[i] = OrderItemPO{
			ID:        item.ID,
			OrderID:   o.OrderID(),
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal,
		}
	}
	return orderPO, itemPOs
}

// ToDomain Convert persistence object to domain model
func (r *OrderRow) ToDomain(items []order.Item) *order.Order {
	name := ""
	if r.UserName != nil {
		name = *r.UserName
	}
	return order.RebuildFromDTO(order.ReconstructionDTO{
		ID:       r.ID,
		UserID:   r.UserID,
		UserName: name,
		Totals: shared.Totals{
			Subtotal: r.SubtotalAmount,
			Discount: r.DiscountAmount,
			Total:    r.TotalAmount,
		},
		Status:        order.Status(r.Status),
		PaymentMethod: r.PaymentMethod,
		Items:         items,
		CreatedAt:     r.CreatedAt,
	})
}

// ToDomain Convert item row to domain entity
func (r *OrderItemRow) ToDomain() order.Item {
	name := ""
	if r.ProductName != nil {
		name = *r.ProductName
	}
	return order.Item{
		ID:          r.ID,
		OrderID:     r.OrderID,
		ProductID:   r.ProductID,
		ProductName: name,
		Quantity:    r.Quantity,
		UnitPrice:   r.UnitPrice,
		LineTotal:   r.LineTotal,
	}
}

package order

import (
	"context"

	"storefront/domain/shared"

	"github.com/shopspring/decimal"
)

// Filter 后台订单检索条件
type Filter struct {
	Query  string // 订单号或用户名模糊匹配
	Status Status // 空表示全部
	Limit  int
}

// Ledger 订单账本
type Ledger interface {
	// Create 原子写入订单及全部订单行，返回新订单 ID
	Create(ctx context.Context, o *Order) (int64, error)

	FindByID(ctx context.Context, id int64) (*Order, error)
	Items(ctx context.Context, orderID int64) ([]Item, error)
	ListByUser(ctx context.Context, userID int64) ([]*Order, error)
	Search(ctx context.Context, filter Filter) ([]*Order, error)

	// UpdateStatus 无条件写入状态
	UpdateStatus(ctx context.Context, id int64, status Status) error

	// UpdateItemQuantity quantity <= 0 时删除该行，否则更新数量并重算 line_total
	UpdateItemQuantity(ctx context.Context, itemID int64, quantity int, unitPrice decimal.Decimal) error

	UpdateTotals(ctx context.Context, id int64, totals shared.Totals) error

	// RestockItems 按订单行数量回补商品库存
	RestockItems(ctx context.Context, orderID int64) error
}

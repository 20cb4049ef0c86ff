// Package catalog 商品目录（由外部协作方维护，本服务只读取价格/名称并增减库存）
package catalog

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var ErrProductNotFound = errors.New("product not found")

// Product 商品；Quantity 是唯一可变的库存计数，无预占机制
type Product struct {
	ID       int64
	Name     string
	Price    decimal.Decimal
	Quantity int
}

// Repository 商品存储
type Repository interface {
	FindByID(ctx context.Context, id int64) (*Product, error)
	// FindByIDs 不存在的商品不出现在结果中
	FindByIDs(ctx context.Context, ids []int64) (map[int64]*Product, error)
	// AdjustStock 读-改-写，结果下限为 0，返回调整后的库存
	AdjustStock(ctx context.Context, id int64, delta int) (int, error)
}

// ClampStock 库存调整后的值，下限 0
func ClampStock(current, delta int) int {
	next := current + delta
	if next < 0 {
		return 0
	}
	return next
}

/*
Package cart 购物车领域

购物车行是临时数据：登录用户存于数据库表 user_cart_items，匿名用户存于会话。
两种存储实现同一个 Store 接口，调用方只按 Owner 区分，不感知存储介质。

加购规则：
  allowed = min(requested, stock - inCart, MaxPerUser - inCart)
allowed <= 0 时按实际起作用的上限返回 ErrOutOfStock 或 ErrCapReached，且不做任何修改。
*/
package cart

import (
	"context"

	"github.com/shopspring/decimal"
)

// MaxPerUser 单个用户单个商品的购买上限
const MaxPerUser = 10

// UnknownProductName 商品已下架/删除时列表中使用的占位名称
const UnknownProductName = "Unavailable item"

// Owner 购物车归属：登录用户或匿名会话
type Owner struct {
	UserID    int64
	SessionID string
}

// Authenticated 是否有登录身份
func (o Owner) Authenticated() bool {
	return o.UserID > 0
}

// Valid 至少要有一种身份
func (o Owner) Valid() bool {
	return o.Authenticated() || o.SessionID != ""
}

// Line 购物车行，价格与名称来自实时商品数据
type Line struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Available bool            `json:"available"`
}

// LineTotal 行小计
func (l Line) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Limit 加购时起作用的约束
type Limit string

const (
	LimitNone  Limit = ""
	LimitStock Limit = "stock"
	LimitCap   Limit = "cap"
)

// AddResult 加购结果；Partial 表示只加入了部分数量
type AddResult struct {
	ProductID int64 `json:"product_id"`
	Requested int   `json:"requested"`
	Added     int   `json:"added"`
	Quantity  int   `json:"quantity"`
	Partial   bool  `json:"partial"`
	Limit     Limit `json:"limit,omitempty"`
}

// Store 购物车存储
type Store interface {
	ListItems(ctx context.Context, owner Owner) ([]Line, error)
	AddItem(ctx context.Context, owner Owner, productID int64, quantity int) (AddResult, error)
	// DecrementItem 返回剩余数量；减到 0 时删除该行
	DecrementItem(ctx context.Context, owner Owner, productID int64, amount int) (int, error)
	RemoveItem(ctx context.Context, owner Owner, productID int64) error
	Clear(ctx context.Context, owner Owner) error
}

// Allowance 计算本次可加入的数量
func Allowance(requested, stock, inCart, max int) (int, Limit, error) {
	if requested <= 0 {
		return 0, LimitNone, ErrInvalidQuantity
	}
	stockRoom := stock - inCart
	capRoom := max - inCart

	allowed := requested
	limit := LimitNone
	if stockRoom < allowed {
		allowed, limit = stockRoom, LimitStock
	}
	if capRoom < allowed {
		allowed, limit = capRoom, LimitCap
	}
	if allowed <= 0 {
		if limit == LimitCap {
			return 0, limit, ErrCapReached
		}
		return 0, LimitStock, ErrOutOfStock
	}
	return allowed, limit, nil
}

// NewAddResult 组装加购结果
func NewAddResult(productID int64, requested, added, quantity int, limit Limit) AddResult {
	r := AddResult{
		ProductID: productID,
		Requested: requested,
		Added:     added,
		Quantity:  quantity,
		Partial:   added < requested,
	}
	if r.Partial {
		r.Limit = limit
	}
	return r
}

// ClampDecrement 返回减量后的数量，范围 [0, current]；amount 未指定(<=0)时按 1 处理
func ClampDecrement(current, amount int) int {
	if amount <= 0 {
		amount = 1
	}
	next := current - amount
	if next < 0 {
		return 0
	}
	return next
}

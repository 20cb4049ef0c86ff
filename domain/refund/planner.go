/*
Package refund 退款规划

Plan 根据"订单行 -> 退款数量"的映射计算本次退款：

 1. 映射为空 ⇒ 全额退款，每行退剩余全部数量
 2. 否则每行 requested = clamp(映射值, 0, 行数量)；不在映射中的行不退
    映射的键优先匹配订单行 ID，不是任何订单行 ID 的键按商品 ID 匹配
 3. 退款小计 = Σ requested × 单价
 4. 按原订单折扣比例 discount/subtotal 分摊折扣，两位小数四舍五入
 5. 退款金额不超过网关实际扣款金额
 6. 金额 <= 0 ⇒ ErrNothingToRefund

Plan 本身不做任何 I/O；调用网关与写账由 settlement 负责。
*/
package refund

import (
	"storefront/domain/order"
	"storefront/domain/shared"

	"github.com/shopspring/decimal"
)

// Line 一行的退款数量
type Line struct {
	Item      order.Item
	Quantity  int // 本次退款数量
	Remaining int // 退款后剩余数量
}

// Plan 退款计划
type Plan struct {
	Lines          []Line
	RefundedUnits  int
	TotalUnits     int
	RefundSubtotal decimal.Decimal
	RefundDiscount decimal.Decimal
	RefundAmount   decimal.Decimal
	Ratio          decimal.Decimal
	Capped         bool // 金额被扣款上限截断
}

// Full 是否退掉了订单全部数量
func (p *Plan) Full() bool {
	return p.TotalUnits > 0 && p.RefundedUnits >= p.TotalUnits
}

// NewPlan 计算退款计划。captured 为 nil 表示没有网关扣款记录（不设上限）
func NewPlan(totals shared.Totals, items []order.Item, requested map[int64]int, captured *decimal.Decimal) (*Plan, error) {
	full := len(requested) == 0
	pick := selector(items, requested)

	plan := &Plan{
		RefundSubtotal: decimal.Zero,
		Ratio:          DiscountRatio(totals),
	}
	for _, item := range items {
		plan.TotalUnits += item.Quantity

		qty := item.Quantity
		if !full {
			qty = clamp(pick(item), 0, item.Quantity)
		}
		if qty == 0 {
			continue
		}
		plan.RefundedUnits += qty
		plan.RefundSubtotal = plan.RefundSubtotal.Add(order.LineTotalOf(qty, item.UnitPrice))
		plan.Lines = append(plan.Lines, Line{Item: item, Quantity: qty, Remaining: item.Quantity - qty})
	}

	plan.RefundDiscount = shared.Round2(plan.RefundSubtotal.Mul(plan.Ratio))
	plan.RefundAmount = shared.Round2(plan.RefundSubtotal.Sub(plan.RefundDiscount))

	if captured != nil && plan.RefundAmount.GreaterThan(*captured) {
		plan.RefundAmount = *captured
		plan.Capped = true
	}
	if !plan.RefundAmount.IsPositive() {
		return nil, ErrNothingToRefund
	}
	return plan, nil
}

// DiscountRatio 原订单折扣比例；小计为 0 时为 0
func DiscountRatio(totals shared.Totals) decimal.Decimal {
	if !totals.Subtotal.IsPositive() {
		return decimal.Zero
	}
	return totals.Discount.Div(totals.Subtotal)
}

// RemainingTotals 由剩余订单行重新求和（不做减法），折扣按同一比例分摊
func RemainingTotals(items []order.Item, ratio decimal.Decimal) shared.Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		subtotal = subtotal.Add(order.LineTotalOf(item.Quantity, item.UnitPrice))
	}
	discount := shared.Round2(subtotal.Mul(ratio))
	return shared.Totals{
		Subtotal: subtotal,
		Discount: discount,
		Total:    subtotal.Sub(discount),
	}
}

func selector(items []order.Item, requested map[int64]int) func(order.Item) int {
	itemIDs := make(map[int64]struct{}, len(items))
	for _, item := range items {
		itemIDs[item.ID] = struct{}{}
	}
	byProduct := make(map[int64]int)
	for key, qty := range requested {
		if _, isItem := itemIDs[key]; !isItem {
			byProduct[key] += qty
		}
	}
	return func(item order.Item) int {
		if qty, ok := requested[item.ID]; ok {
			return qty
		}
		return byProduct[item.ProductID]
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

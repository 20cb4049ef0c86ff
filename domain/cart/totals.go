package cart

import (
	"storefront/domain/shared"

	"github.com/shopspring/decimal"
)

// MemberDiscountRate 会员返现比例 5%
var MemberDiscountRate = decimal.New(5, -2)

// ComputeTotals 计算购物车金额。
// 下单和 PayPal 建单都必须调用它，保证两处金额一致。
// 负数或缺失的价格/数量按 0 处理，从不报错。
func ComputeTotals(lines []Line, isMember bool) shared.Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		qty := l.Quantity
		if qty < 0 {
			qty = 0
		}
		price := shared.NonNegative(l.UnitPrice)
		subtotal = subtotal.Add(price.Mul(decimal.NewFromInt(int64(qty))))
	}

	discount := decimal.Zero
	if isMember {
		discount = shared.Round2(subtotal.Mul(MemberDiscountRate))
	}

	return shared.Totals{
		Subtotal: subtotal,
		Discount: discount,
		Total:    subtotal.Sub(discount),
	}
}

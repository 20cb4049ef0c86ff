package shared

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Cents 是最小货币单位
var Cents = decimal.New(1, -2)

// Round2 四舍五入到两位小数
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// NonNegative 负数视为 0
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Within 判断 |a-b| <= tolerance
func Within(a, b, tolerance decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tolerance)
}

// ParseAmount 解析金额字符串；空串或非法输入返回 ErrInvalidInput
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, NewValidationError("amount", "amount", "amount is required")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, NewValidationError("amount", "amount", "amount is not a number")
	}
	return d, nil
}

// FormatAmount 固定两位小数，网关报文使用
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// Totals 订单或购物车的金额汇总
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

// Payable 总额为正才允许结算
func (t Totals) Payable() bool {
	return t.Total.IsPositive()
}

package payment

import "strings"

// Method 支付方式
type Method string

const (
	MethodPayPal Method = "PayPal"
	MethodNetsQR Method = "NETS QR"
	MethodNets   Method = "NETS"
	MethodPayNow Method = "PayNow"
)

// NormalizeMethod 把自由文本的支付方式归一化；无法识别时原样返回
func NormalizeMethod(value string) Method {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return ""
	}
	upper := strings.ToUpper(raw)
	switch {
	case strings.Contains(upper, "NETS") && strings.Contains(upper, "QR"):
		return MethodNetsQR
	case strings.Contains(upper, "NETS"):
		return MethodNets
	case strings.Contains(upper, "PAYNOW"):
		return MethodPayNow
	case strings.Contains(upper, "PAYPAL"):
		return MethodPayPal
	}
	return Method(raw)
}

// ResolveMethod 推断历史订单的支付方式：
// 订单字段优先；其次看交易记录的 payer_id；有任何 PayPal 痕迹则为 PayPal；
// 最后，状态为 paid/refunded 的老订单默认 PayPal。
func ResolveMethod(orderMethod, orderStatus string, tx *Transaction) Method {
	if m := NormalizeMethod(orderMethod); m != "" {
		return m
	}
	if tx != nil {
		payerID := strings.TrimSpace(tx.PayerID)
		upper := strings.ToUpper(payerID)
		if strings.Contains(upper, "NETS") {
			return MethodNets
		}
		if strings.Contains(upper, "PAYNOW") {
			return MethodPayNow
		}
		if payerID != "" || tx.PayerEmail != "" || tx.CaptureID != "" {
			return MethodPayPal
		}
	}
	if orderStatus == "paid" || orderStatus == "refunded" {
		return MethodPayPal
	}
	return ""
}

// GatewayRefundable 只有 PayPal 支持网关退款
func (m Method) GatewayRefundable() bool {
	return m == MethodPayPal
}

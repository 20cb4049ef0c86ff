/*
Package payment 支付子领域

三种支付通道共享 Gateway 能力接口，但交互形态不同：
  - PayPal: 同步建单/扣款/退款，只有 COMPLETED 视为扣款成功
  - NETS QR: 异步，网关回调或客户端轮询驱动完成，txn_retrieval_ref 为幂等键
  - PayNow: 纯离线静态二维码，无网关往返，由客户端声明"已付款"

网关调用超时属于"结果未知"（ErrOutcomeUnknown），既不是成功也不是失败。
*/
package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Intent 建单结果
type Intent struct {
	Reference string          // PayPal order id / NETS txn_retrieval_ref / PayNow reference
	Amount    decimal.Decimal
	Currency  string
	QRCode    string // NETS: base64 图片；PayNow: TLV 文本
	Raw       map[string]any
}

// Intent.Raw 中各通道附带的原始字段
const (
	RawResponseCode  = "response_code"
	RawNetworkStatus = "network_status"
	RawPayload       = "payload"
	RawQRImage       = "qr_image" // base64 PNG
)

// Capture 扣款结果
type Capture struct {
	CaptureID  string
	PayerID    string
	PayerEmail string
	Amount     decimal.Decimal
	Currency   string
	Status     string
	Time       time.Time
}

// Completed 只有 COMPLETED 才算扣款成功
func (c Capture) Completed() bool {
	return c.Status == StatusCompleted
}

// RefundResult 退款结果
type RefundResult struct {
	RefundID string
	Status   string
}

// LedgerStatus 把网关退款状态映射为交易记录状态；ok=false 表示调用方必须停止
func (r RefundResult) LedgerStatus() (string, bool) {
	switch r.Status {
	case StatusCompleted:
		return StatusRefunded, true
	case StatusPending:
		return StatusRefundPending, true
	}
	return "", false
}

// Gateway 支付通道能力
type Gateway interface {
	Method() Method
	CreateIntent(ctx context.Context, amount decimal.Decimal, reference string) (*Intent, error)
	Capture(ctx context.Context, reference string) (*Capture, error)
	Refund(ctx context.Context, captureID string, amount decimal.Decimal) (*RefundResult, error)
}

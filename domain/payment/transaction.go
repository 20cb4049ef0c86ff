package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// 交易状态。PayPal 的 capture/refund 状态原样保存，其余为本地状态
const (
	StatusCompleted      = "COMPLETED"
	StatusPending        = "PENDING"
	StatusRefunded       = "REFUNDED"
	StatusRefundPending  = "REFUND_PENDING"
	StatusRefundUnknown  = "REFUND_UNKNOWN"
	StatusCaptured       = "captured"
	StatusClientAsserted = "CLIENT_ASSERTED"
)

// Transaction 网关侧支付记录。查询按订单取第一条，即假定一单一笔交易
type Transaction struct {
	ID           int64
	OrderID      int64
	PayerID      string
	PayerEmail   string
	Amount       decimal.Decimal
	Currency     string
	Status       string
	CaptureID    string
	RefundReason string
	Time         time.Time
}

// TransactionLedger 交易账本
type TransactionLedger interface {
	Create(ctx context.Context, tx *Transaction) error
	// FindByOrderID 未找到时返回 (nil, nil)
	FindByOrderID(ctx context.Context, orderID int64) (*Transaction, error)
	UpdateStatusByOrderID(ctx context.Context, orderID int64, status, reason string) error
}

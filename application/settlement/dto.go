package settlement

import (
	"time"

	cartapp "storefront/application/cart"
	"storefront/domain/order"
	"storefront/domain/payment"
	"storefront/domain/refund"
	"storefront/domain/shared"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 结算 DTO
// ============================================================================

// CheckoutIntent 发起支付后返回给客户端的信息
type CheckoutIntent struct {
	Method    string          `json:"payment_method"`
	Reference string          `json:"reference"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	QRCode    string          `json:"qr_code,omitempty"`
	QRImage   string          `json:"qr_image,omitempty"` // base64 PNG
	Totals    shared.Totals   `json:"totals"`
}

func newCheckoutIntent(method payment.Method, intent *payment.Intent, summary *cartapp.Summary) *CheckoutIntent {
	ci := &CheckoutIntent{
		Method:    string(method),
		Reference: intent.Reference,
		Amount:    intent.Amount,
		Currency:  intent.Currency,
		QRCode:    intent.QRCode,
		Totals:    summary.Totals,
	}
	if img, ok := intent.Raw[payment.RawQRImage].(string); ok {
		ci.QRImage = img
	}
	return ci
}

// StatusPendingReview 款项已被网关接受，但订单未能落库，等待人工对账
const StatusPendingReview = "pending"

// SettlementResult 结算结果。Duplicate 表示命中幂等键，返回的是已存在的订单
type SettlementResult struct {
	OrderID          int64         `json:"order_id,omitempty"`
	Status           string        `json:"status"`
	PaymentMethod    string        `json:"payment_method"`
	Totals           shared.Totals `json:"totals"`
	FailedDecrements []int64       `json:"failed_decrements,omitempty"`
	Duplicate        bool          `json:"duplicate,omitempty"`
	Reference        string        `json:"reference,omitempty"`
	Message          string        `json:"message,omitempty"`
}

// Pending 付款已发生但没有订单
func (r *SettlementResult) Pending() bool {
	return r.Status == StatusPendingReview && r.OrderID == 0
}

func duplicateResult(record *payment.NetsTransaction) *SettlementResult {
	return &SettlementResult{
		OrderID:       record.OrderID,
		Status:        payment.NetsStatusSuccess,
		PaymentMethod: string(payment.MethodNetsQR),
		Duplicate:     true,
	}
}

// NetsCompleteCommand 客户端或网关回调提交的完成信息；UserID 为 0 表示来自网关回调
type NetsCompleteCommand struct {
	UserID           int64  `json:"-"`
	TxnRetrievalRef  string `json:"txn_retrieval_ref" binding:"required"`
	NetTransactionID string `json:"net_transaction_id"`
	ResponseCode     string `json:"response_code"`
	NetworkStatus    *int   `json:"network_status"`
	Payload          string `json:"-"`
}

// ============================================================================
// 退款 DTO
// ============================================================================

// RefundCommand 后台退款请求。Items 为空表示全额退款；键为订单行 ID（或商品 ID）
type RefundCommand struct {
	OrderID int64
	Items   map[int64]int
	Restock *bool // nil 时使用配置的默认值
	Reason  string
	AdminID int64
	Note    string
}

// RefundOutcome 退款结果，Outcome 为 ok/pending/error/unsupported/missing_tx
type RefundOutcome struct {
	OrderID           int64           `json:"order_id"`
	Outcome           refund.Outcome  `json:"outcome"`
	Amount            decimal.Decimal `json:"amount"`
	RefundedUnits     int             `json:"refunded_units"`
	Full              bool            `json:"full"`
	Status            string          `json:"status,omitempty"`
	PaymentMethod     string          `json:"payment_method,omitempty"`
	RefundID          string          `json:"refund_id,omitempty"`
	TransactionStatus string          `json:"transaction_status,omitempty"`
	Remaining         shared.Totals   `json:"remaining"`
	Message           string          `json:"message,omitempty"`
}

func (o *RefundOutcome) fail(err error) (*RefundOutcome, error) {
	o.Outcome = refund.OutcomeError
	o.Message = err.Error()
	return o, err
}

// ============================================================================
// 订单视图
// ============================================================================

// OrderView 订单 + 订单行 + 退款申请状态
type OrderView struct {
	ID            int64           `json:"order_id"`
	UserID        int64           `json:"user_id"`
	UserName      string          `json:"user_name,omitempty"`
	Status        string          `json:"status"`
	PaymentMethod string          `json:"payment_method"`
	Totals        shared.Totals   `json:"totals"`
	Items         []order.Item    `json:"items"`
	RefundRequest *refund.Request `json:"refund_request,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

func toOrderView(o *order.Order, req *refund.Request) OrderView {
	items := o.Items()
	if items == nil {
		items = []order.Item{}
	}
	return OrderView{
		ID:            o.OrderID(),
		UserID:        o.UserID(),
		UserName:      o.UserName(),
		Status:        string(o.Status()),
		PaymentMethod: string(payment.ResolveMethod(o.PaymentMethod(), string(o.Status()), nil)),
		Totals:        o.Totals(),
		Items:         items,
		RefundRequest: req,
		CreatedAt:     o.CreatedAt(),
	}
}

// CancelResult 取消结果
type CancelResult struct {
	OrderID   int64  `json:"order_id"`
	Status    string `json:"status"`
	Restocked bool   `json:"restocked"`
}

package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// NETS 交易状态
const (
	NetsStatusPending = "pending"
	NetsStatusSuccess = "success"
	NetsStatusFailed  = "failed"
)

// NetsTransaction NETS QR 待完成记录，txn_retrieval_ref 唯一
type NetsTransaction struct {
	ID               int64
	UserID           int64
	OrderID          int64 // 0 表示尚未生成订单
	Amount           decimal.Decimal
	TxnRetrievalRef  string
	NetTransactionID string
	CourseInitID     string
	Status           string
	ResponseCode     string
	NetworkStatus    int
	Payload          string
	CreatedAt        time.Time
}

// Settled 已关联订单
func (n *NetsTransaction) Settled() bool {
	return n.OrderID > 0
}

// NetsCompletion 完成时写回的字段
type NetsCompletion struct {
	NetTransactionID string
	Status           string
	ResponseCode     string
	NetworkStatus    *int
	Payload          string
}

// NetsNotification 网关回调（webhook）推送的交易结果
type NetsNotification struct {
	TxnRetrievalRef  string `json:"txn_retrieval_ref"`
	NetTransactionID string `json:"net_transaction_id"`
	ResponseCode     string `json:"response_code"`
	TxnStatus        int    `json:"txn_status"`
	NetworkStatus    *int   `json:"network_status"`
}

// Succeeded response_code 00 且 txn_status 1
func (n *NetsNotification) Succeeded() bool {
	return n.ResponseCode == "00" && n.TxnStatus == 1
}

// NetsRepository NETS 待完成记录存储
type NetsRepository interface {
	Create(ctx context.Context, txn *NetsTransaction) error
	// FindByRef 未找到时返回 (nil, nil)
	FindByRef(ctx context.Context, ref string) (*NetsTransaction, error)
	// ClaimOrder 仅当记录尚未关联订单时写入 order_id；已被占用返回 false
	ClaimOrder(ctx context.Context, ref string, orderID int64, completion NetsCompletion) (bool, error)
	MarkFailed(ctx context.Context, ref, responseCode, payload string) error
}

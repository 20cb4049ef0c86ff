package refund

import (
	"context"
	"time"
)

// RequestStatus 退款申请状态
type RequestStatus string

const (
	RequestRequested RequestStatus = "requested"
	RequestApproved  RequestStatus = "approved"
)

// Request 用户发起、管理员批准的退款申请；每个订单至多一条
type Request struct {
	ID          int64         `json:"id"`
	OrderID     int64         `json:"order_id"`
	UserID      int64         `json:"user_id"`
	Reason      string        `json:"reason"`
	Status      RequestStatus `json:"status"`
	AdminID     int64         `json:"admin_id,omitempty"`
	AdminNote   string        `json:"admin_note,omitempty"`
	ProcessedAt *time.Time    `json:"processed_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// RequestRepository 退款申请存储
type RequestRepository interface {
	// Upsert 新申请覆盖旧申请，并清空管理员处理字段
	Upsert(ctx context.Context, orderID, userID int64, reason string) error
	// FindByOrderID 未找到时返回 (nil, nil)
	FindByOrderID(ctx context.Context, orderID int64) (*Request, error)
	FindByOrderIDs(ctx context.Context, orderIDs []int64) (map[int64]*Request, error)
	MarkApproved(ctx context.Context, orderID, adminID int64, note string) error
}
